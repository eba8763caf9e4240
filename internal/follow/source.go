// Package follow reads job log files as they grow and emits their lines on
// two channels, one for the job's output stream and one for its error stream.
package follow

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
)

// queueSize is the buffer of each line channel. Senders block when it is
// full; lines are never dropped.
const queueSize = 1024

// errStopped is returned internally when a wait is cut short by Stop.
var errStopped = errors.New("follower stopped")

// Channel identifies which stream a line came from.
type Channel int

const (
	// Output is the job's standard output stream.
	Output Channel = iota
	// Error is the job's standard error stream.
	Error
)

func (c Channel) String() string {
	if c == Error {
		return "stderr"
	}
	return "stdout"
}

// Line is one line read from a followed stream. Seq increases by one per
// line within a channel, starting at 1.
type Line struct {
	Channel Channel
	Text    string
	Seq     uint64
}

// Source follows a job's logs.
type Source interface {
	// Start begins waiting for the log file and following it.
	Start(ctx context.Context) error
	// Ready is closed once the primary log file exists.
	Ready() <-chan struct{}
	// Output carries stdout lines; closed when following ends.
	Output() <-chan Line
	// Errors carries stderr lines; closed when following ends.
	Errors() <-chan Line
	// Done is closed after both line channels are closed.
	Done() <-chan struct{}
	// Err reports why following ended on its own, if it did.
	Err() error
	// Stop ends following. Lines already read are still delivered.
	Stop()
}

// lifecycle is the state shared by the Source implementations.
type lifecycle struct {
	out  chan Line
	errs chan Line

	outSeq atomic.Uint64
	errSeq atomic.Uint64

	ready     chan struct{}
	readyOnce sync.Once
	done      chan struct{}
	stopCh    chan struct{}
	stopOnce  sync.Once
	started   atomic.Bool

	mu  sync.Mutex
	err error
}

func newLifecycle() *lifecycle {
	return &lifecycle{
		out:    make(chan Line, queueSize),
		errs:   make(chan Line, queueSize),
		ready:  make(chan struct{}),
		done:   make(chan struct{}),
		stopCh: make(chan struct{}),
	}
}

func (l *lifecycle) Ready() <-chan struct{} { return l.ready }
func (l *lifecycle) Output() <-chan Line    { return l.out }
func (l *lifecycle) Errors() <-chan Line    { return l.errs }
func (l *lifecycle) Done() <-chan struct{}  { return l.done }

func (l *lifecycle) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.err
}

func (l *lifecycle) setErr(err error) {
	l.mu.Lock()
	if l.err == nil {
		l.err = err
	}
	l.mu.Unlock()
}

func (l *lifecycle) markReady() {
	l.readyOnce.Do(func() { close(l.ready) })
}

func (l *lifecycle) requestStop() {
	l.stopOnce.Do(func() { close(l.stopCh) })
}

func (l *lifecycle) isStopping() bool {
	select {
	case <-l.stopCh:
		return true
	default:
		return false
	}
}

// finish closes both line channels and then Done. Called once, after every
// sender has returned.
func (l *lifecycle) finish() {
	close(l.out)
	close(l.errs)
	close(l.done)
}

// emit tags and queues one line. It blocks while the queue is full.
func (l *lifecycle) emit(ch Channel, text string) {
	line := Line{Channel: ch, Text: text}
	if ch == Error {
		line.Seq = l.errSeq.Add(1)
		l.errs <- line
		return
	}
	line.Seq = l.outSeq.Add(1)
	l.out <- line
}

// lineBuffer splits a byte stream into lines, holding back an unterminated
// tail until more data or a flush arrives.
type lineBuffer struct {
	pending strings.Builder
}

// write appends data and returns the complete lines it produced, without
// their terminators.
func (b *lineBuffer) write(data []byte) []string {
	b.pending.Write(data)
	buf := b.pending.String()

	var lines []string
	for {
		idx := strings.IndexByte(buf, '\n')
		if idx < 0 {
			break
		}
		lines = append(lines, strings.TrimSuffix(buf[:idx], "\r"))
		buf = buf[idx+1:]
	}
	b.pending.Reset()
	b.pending.WriteString(buf)
	return lines
}

// flush returns the unterminated tail, if any.
func (b *lineBuffer) flush() (string, bool) {
	if b.pending.Len() == 0 {
		return "", false
	}
	line := strings.TrimSuffix(b.pending.String(), "\r")
	b.pending.Reset()
	return line, true
}
