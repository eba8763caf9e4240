package follow

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"time"
)

// DefaultTailCommand follows a file from its first line and keeps
// following across truncation and recreation.
var DefaultTailCommand = []string{"tail", "-n", "+1", "-F"}

// ProcessFollower follows a log file through a subprocess. The subprocess's
// stdout feeds Output and its stderr feeds Error.
type ProcessFollower struct {
	*lifecycle

	path    string
	command []string
	poll    time.Duration
	logger  *slog.Logger

	mu       sync.Mutex
	cmd      *exec.Cmd
	killOnce sync.Once
}

// NewProcessFollower creates a follower running command with path appended.
// A nil command uses DefaultTailCommand.
func NewProcessFollower(path string, command []string, poll time.Duration, logger *slog.Logger) *ProcessFollower {
	if len(command) == 0 {
		command = DefaultTailCommand
	}
	return &ProcessFollower{
		lifecycle: newLifecycle(),
		path:      path,
		command:   command,
		poll:      poll,
		logger:    logger,
	}
}

// Start waits for the file in the background, then spawns the subprocess.
func (f *ProcessFollower) Start(ctx context.Context) error {
	if !f.started.CompareAndSwap(false, true) {
		return fmt.Errorf("follower already started")
	}
	go f.run(ctx)
	return nil
}

// Stop terminates the subprocess. Safe to call more than once and before
// the subprocess exists.
func (f *ProcessFollower) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.requestStop()
	if f.cmd == nil || f.cmd.Process == nil {
		return
	}
	f.killOnce.Do(func() {
		if err := f.cmd.Process.Kill(); err != nil {
			f.logger.Debug("kill follower process", "error", err)
		}
	})
}

func (f *ProcessFollower) run(ctx context.Context) {
	defer f.finish()

	if err := waitForFile(ctx, f.path, f.poll, f.stopCh, f.logger); err != nil {
		return
	}
	f.markReady()

	cmd, stdout, stderr, err := f.spawn()
	if err != nil {
		if !errors.Is(err, errStopped) {
			f.setErr(err)
		}
		return
	}
	f.logger.Debug("follower process started", "pid", cmd.Process.Pid, "path", f.path)

	exited := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			f.Stop()
		case <-exited:
		}
	}()

	var wg sync.WaitGroup
	wg.Add(2)
	go f.readStream(stdout, Output, &wg)
	go f.readStream(stderr, Error, &wg)

	// Both pipes must be drained before Wait closes them.
	wg.Wait()
	waitErr := cmd.Wait()
	close(exited)

	if f.isStopping() {
		f.logger.Debug("follower process stopped", "path", f.path)
		return
	}
	if waitErr != nil {
		f.setErr(fmt.Errorf("%s exited unexpectedly: %w", f.command[0], waitErr))
	} else {
		f.setErr(fmt.Errorf("%s exited unexpectedly", f.command[0]))
	}
	f.logger.Warn("follower process exited", "path", f.path, "error", f.Err())
}

func (f *ProcessFollower) spawn() (*exec.Cmd, io.ReadCloser, io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.isStopping() {
		return nil, nil, nil, errStopped
	}

	args := append(append([]string{}, f.command[1:]...), f.path)
	cmd := exec.Command(f.command[0], args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to create stdout: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		stdout.Close()
		return nil, nil, nil, fmt.Errorf("failed to create stderr: %w", err)
	}
	if err := cmd.Start(); err != nil {
		stdout.Close()
		stderr.Close()
		return nil, nil, nil, fmt.Errorf("failed to start %s: %w", f.command[0], err)
	}

	f.cmd = cmd
	return cmd, stdout, stderr, nil
}

func (f *ProcessFollower) readStream(r io.Reader, ch Channel, wg *sync.WaitGroup) {
	defer wg.Done()

	reader := bufio.NewReader(r)
	for {
		line, err := reader.ReadString('\n')
		if line != "" {
			f.emit(ch, strings.TrimRight(line, "\r\n"))
		}
		if err != nil {
			if err != io.EOF {
				f.logger.Debug("read error", "channel", ch.String(), "error", err)
			}
			return
		}
	}
}
