// Package monitor runs a job monitoring session: it follows the job's logs,
// polls the scheduler for the job's status and decides when the session is
// over.
package monitor

// State is the lifecycle of a monitoring session. It only moves forward.
type State int

const (
	// WaitingForLog means the job's log file does not exist yet.
	WaitingForLog State = iota
	// Streaming means log lines are being delivered as they are written.
	Streaming
	// Draining means the end was detected and remaining lines are flushed.
	Draining
	// Terminated is final.
	Terminated
)

func (s State) String() string {
	switch s {
	case WaitingForLog:
		return "waiting"
	case Streaming:
		return "streaming"
	case Draining:
		return "draining"
	case Terminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Reason records why a session left Streaming.
type Reason string

const (
	// ReasonCompleted means the job disappeared from the queue.
	ReasonCompleted Reason = "completed"
	// ReasonInterrupted means the user stopped following.
	ReasonInterrupted Reason = "interrupted"
	// ReasonSourceEnded means the log follower ended on its own.
	ReasonSourceEnded Reason = "source_ended"
)
