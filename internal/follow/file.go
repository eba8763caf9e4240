package follow

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// FileFollower follows a job's stdout file and, when set, its stderr file.
// Growth is picked up from fsnotify write events, with the poll interval as
// a fallback.
type FileFollower struct {
	*lifecycle

	primary   string
	secondary string
	poll      time.Duration
	logger    *slog.Logger
}

// NewFileFollower creates a follower for primary (Output) and secondary
// (Error). secondary may be empty.
func NewFileFollower(primary, secondary string, poll time.Duration, logger *slog.Logger) *FileFollower {
	return &FileFollower{
		lifecycle: newLifecycle(),
		primary:   primary,
		secondary: secondary,
		poll:      poll,
		logger:    logger,
	}
}

// Start launches one following loop per file.
func (f *FileFollower) Start(ctx context.Context) error {
	if !f.started.CompareAndSwap(false, true) {
		return fmt.Errorf("follower already started")
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		f.followFile(ctx, f.primary, Output)
	}()
	if f.secondary != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.followFile(ctx, f.secondary, Error)
		}()
	}

	go func() {
		wg.Wait()
		f.finish()
	}()
	return nil
}

// Stop ends following after a last read of everything already written.
func (f *FileFollower) Stop() {
	f.requestStop()
}

func (f *FileFollower) fail(err error) {
	f.logger.Warn("log follower failed", "error", err)
	f.setErr(err)
	f.requestStop()
}

func (f *FileFollower) followFile(ctx context.Context, path string, ch Channel) {
	if err := waitForFile(ctx, path, f.poll, f.stopCh, f.logger); err != nil {
		return
	}
	if ch == Output {
		f.markReady()
	}
	f.logger.Debug("following log file", "path", path, "channel", ch.String())

	file, err := os.Open(path)
	if err != nil {
		f.fail(fmt.Errorf("open %s: %w", path, err))
		return
	}
	defer file.Close()

	var lines lineBuffer
	emitAll := func(data []byte) {
		for _, line := range lines.write(data) {
			f.emit(ch, line)
		}
	}
	flush := func() {
		if line, ok := lines.flush(); ok {
			f.emit(ch, line)
		}
	}
	// A fragment left over from before a truncation is its own line.
	reader := &fileReader{file: file, buf: make([]byte, 32*1024), truncated: flush}

	var events chan fsnotify.Event
	var errs chan error
	watcher, err := fsnotify.NewWatcher()
	if err == nil {
		defer watcher.Close()
		if err := watcher.Add(path); err == nil {
			events = watcher.Events
			errs = watcher.Errors
		}
	}

	ticker := time.NewTicker(f.poll)
	defer ticker.Stop()

	for {
		if err := reader.readAvailable(emitAll); err != nil {
			flush()
			f.fail(fmt.Errorf("read %s: %w", path, err))
			return
		}

		select {
		case <-f.stopCh:
			if err := reader.readAvailable(emitAll); err != nil {
				f.logger.Debug("final read failed", "path", path, "error", err)
			}
			flush()
			return
		case <-ctx.Done():
			flush()
			return
		case <-ticker.C:
		case _, ok := <-events:
			if !ok {
				events = nil
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			f.logger.Debug("log file watcher error", "path", path, "error", err)
		}
	}
}

// fileReader reads whatever has been appended since the last call. A file
// that shrank is treated as truncated and read again from the start.
type fileReader struct {
	file      *os.File
	offset    int64
	buf       []byte
	truncated func()
}

func (r *fileReader) readAvailable(fn func([]byte)) error {
	if info, err := r.file.Stat(); err == nil && info.Size() < r.offset {
		if _, err := r.file.Seek(0, io.SeekStart); err != nil {
			return err
		}
		r.offset = 0
		if r.truncated != nil {
			r.truncated()
		}
	}

	for {
		n, err := r.file.Read(r.buf)
		if n > 0 {
			r.offset += int64(n)
			fn(r.buf[:n])
		}
		if err == io.EOF || (err == nil && n == 0) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}
