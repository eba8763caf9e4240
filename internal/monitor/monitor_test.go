package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/tuanbt/qslurm/internal/control"
	"github.com/tuanbt/qslurm/internal/follow"
	"github.com/tuanbt/qslurm/internal/scheduler"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// fakeStatus returns scripted results in order, then fallback forever.
type fakeStatus struct {
	mu       sync.Mutex
	calls    int
	script   []*scheduler.Snapshot
	fallback *scheduler.Snapshot
	err      error
}

func (f *fakeStatus) Status(ctx context.Context, id scheduler.JobID) (*scheduler.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	i := f.calls
	f.calls++
	snap := f.fallback
	if i < len(f.script) {
		snap = f.script[i]
	}
	if snap == nil {
		if f.err != nil {
			return nil, f.err
		}
		return nil, scheduler.ErrJobNotFound
	}
	return snap, nil
}

func (f *fakeStatus) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func running(id string) *scheduler.Snapshot {
	return &scheduler.Snapshot{JobID: scheduler.JobID(id), State: "RUNNING", Queue: "v6_384"}
}

// recordSink stores every event it receives.
type recordSink struct {
	mu         sync.Mutex
	states     []State
	lines      []follow.Line
	directives []control.Directive
	statuses   []*scheduler.Snapshot
	finished   []Finished
}

func (r *recordSink) State(state State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, state)
}

func (r *recordSink) Line(line follow.Line, d control.Directive) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = append(r.lines, line)
	r.directives = append(r.directives, d)
}

func (r *recordSink) Status(snap *scheduler.Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, snap)
}

func (r *recordSink) Finished(fin Finished) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finished = append(r.finished, fin)
}

func (r *recordSink) channelTexts(ch follow.Channel) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, l := range r.lines {
		if l.Channel == ch {
			out = append(out, l.Text)
		}
	}
	return out
}

// fakeSource is a Source backed by buffered channels the test fills.
type fakeSource struct {
	out   chan follow.Line
	errs  chan follow.Line
	ready chan struct{}
	done  chan struct{}
	once  sync.Once

	mu      sync.Mutex
	err     error
	stopped bool
	outSeq  uint64
	errSeq  uint64
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		out:   make(chan follow.Line, 4096),
		errs:  make(chan follow.Line, 4096),
		ready: make(chan struct{}),
		done:  make(chan struct{}),
	}
}

func (f *fakeSource) Start(ctx context.Context) error { return nil }
func (f *fakeSource) Ready() <-chan struct{}          { return f.ready }
func (f *fakeSource) Output() <-chan follow.Line      { return f.out }
func (f *fakeSource) Errors() <-chan follow.Line      { return f.errs }
func (f *fakeSource) Done() <-chan struct{}           { return f.done }

func (f *fakeSource) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

func (f *fakeSource) Stop() {
	f.mu.Lock()
	f.stopped = true
	f.mu.Unlock()
	f.end(nil)
}

func (f *fakeSource) end(err error) {
	f.once.Do(func() {
		f.mu.Lock()
		f.err = err
		f.mu.Unlock()
		close(f.out)
		close(f.errs)
		close(f.done)
	})
}

func (f *fakeSource) push(ch follow.Channel, text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if ch == follow.Error {
		f.errSeq++
		f.errs <- follow.Line{Channel: ch, Text: text, Seq: f.errSeq}
		return
	}
	f.outSeq++
	f.out <- follow.Line{Channel: ch, Text: text, Seq: f.outSeq}
}

func testOptions(id string) Options {
	return Options{
		JobID:           scheduler.JobID(id),
		LogPath:         "log/" + id + ".log",
		ShowStatus:      true,
		StatusInterval:  20 * time.Millisecond,
		AbsentThreshold: 1,
		PullWait:        10 * time.Millisecond,
	}
}

func runWithTimeout(t *testing.T, s *Session, ctx context.Context, timeout time.Duration) (Finished, error) {
	t.Helper()
	type result struct {
		fin Finished
		err error
	}
	ch := make(chan result, 1)
	go func() {
		fin, err := s.Run(ctx)
		ch <- result{fin, err}
	}()
	select {
	case r := <-ch:
		return r.fin, r.err
	case <-time.After(timeout):
		t.Fatalf("session did not finish within %v (state %s)", timeout, s.State())
		return Finished{}, nil
	}
}

func TestStateString(t *testing.T) {
	tests := map[State]string{
		WaitingForLog: "waiting",
		Streaming:     "streaming",
		Draining:      "draining",
		Terminated:    "terminated",
		State(42):     "unknown",
	}
	for s, want := range tests {
		if s.String() != want {
			t.Errorf("State(%d).String() = %q, want %q", s, s.String(), want)
		}
	}
}

func TestMuxAlternatesAndPreservesOrder(t *testing.T) {
	src := newFakeSource()
	for i := 1; i <= 3; i++ {
		src.push(follow.Output, fmt.Sprintf("o%d", i))
		src.push(follow.Error, fmt.Sprintf("e%d", i))
	}
	src.end(nil)

	m := NewMux(src, 10*time.Millisecond)
	var got []string
	for !m.Exhausted() {
		if line, ok := m.Next(context.Background()); ok {
			got = append(got, line.Text)
		}
	}

	want := []string{"o1", "e1", "o2", "e2", "o3", "e3"}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestMuxDoesNotStarveOneChannel(t *testing.T) {
	src := newFakeSource()
	for i := 0; i < 10; i++ {
		src.push(follow.Output, "out")
	}
	src.push(follow.Error, "err")

	m := NewMux(src, 10*time.Millisecond)
	for i := 0; i < 2; i++ {
		line, ok := m.Next(context.Background())
		if !ok {
			t.Fatal("expected a line")
		}
		if line.Channel == follow.Error {
			return
		}
	}
	t.Error("error line not delivered within two pulls")
}

func TestMuxBoundedWait(t *testing.T) {
	src := newFakeSource()
	m := NewMux(src, 30*time.Millisecond)

	start := time.Now()
	if _, ok := m.Next(context.Background()); ok {
		t.Fatal("expected no line")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Next blocked for %v", elapsed)
	}
	if m.Exhausted() {
		t.Error("open channels reported as exhausted")
	}
}

func TestPollerCompletesAfterThreshold(t *testing.T) {
	status := &fakeStatus{script: []*scheduler.Snapshot{nil, running("7"), nil, nil, running("7")}}
	p := NewPoller(status, "7", 5*time.Millisecond, 2, true, testLogger())

	done := make(chan struct{})
	go func() {
		p.Run(context.Background())
		close(done)
	}()

	select {
	case <-p.Completed():
	case <-time.After(2 * time.Second):
		t.Fatal("poller never completed")
	}
	<-done

	if calls := status.Calls(); calls != 4 {
		t.Errorf("expected completion on the 4th query, got %d queries", calls)
	}
	if q := p.Queries(); q != 4 {
		t.Errorf("expected 4 queries counted, got %d", q)
	}
	if snap := p.Latest(); snap == nil || snap.State != "RUNNING" {
		t.Errorf("expected last snapshot kept, got %+v", snap)
	}
}

func TestPollerQueryErrorCountsAsAbsent(t *testing.T) {
	status := &fakeStatus{err: errors.New("slurm_load_jobs error: Socket timed out")}
	p := NewPoller(status, "8", 5*time.Millisecond, 1, false, testLogger())

	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	select {
	case <-p.Completed():
	default:
		t.Fatal("expected completion on query error")
	}
	if q := p.Queries(); q != 1 {
		t.Errorf("expected a single query, got %d", q)
	}
}

func TestPollerUntrackedPublishesNothing(t *testing.T) {
	status := &fakeStatus{script: []*scheduler.Snapshot{running("9"), running("9")}}
	p := NewPoller(status, "9", 5*time.Millisecond, 1, false, testLogger())
	p.Run(context.Background())

	if p.Latest() != nil {
		t.Error("expected no snapshot in completion-only mode")
	}
	if q := p.Queries(); q != 3 {
		t.Errorf("expected completion on the 3rd query, got %d", q)
	}
	select {
	case <-p.Updates():
		t.Error("expected no update signal in completion-only mode")
	default:
	}
}

func TestPollerStopsOnCancel(t *testing.T) {
	status := &fakeStatus{fallback: running("10")}
	p := NewPoller(status, "10", 5*time.Millisecond, 1, true, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("poller did not stop")
	}
	select {
	case <-p.Completed():
		t.Error("cancel must not signal completion")
	default:
	}
}

func TestSessionDrainsAllLinesInOrder(t *testing.T) {
	src := newFakeSource()
	close(src.ready)

	const n = 500
	for i := 1; i <= n; i++ {
		src.push(follow.Output, fmt.Sprintf("out %d", i))
		if i%5 == 0 {
			src.push(follow.Error, fmt.Sprintf("err %d", i))
		}
	}

	status := &fakeStatus{script: []*scheduler.Snapshot{running("1"), running("1"), running("1")}}
	sink := &recordSink{}
	s := NewSession(testOptions("1"), src, status, sink, testLogger())

	fin, err := runWithTimeout(t, s, context.Background(), 5*time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out := sink.channelTexts(follow.Output)
	if len(out) != n {
		t.Fatalf("expected %d output lines, got %d", n, len(out))
	}
	for i, text := range out {
		if want := fmt.Sprintf("out %d", i+1); text != want {
			t.Fatalf("output line %d = %q, want %q", i, text, want)
		}
	}
	errs := sink.channelTexts(follow.Error)
	if len(errs) != n/5 {
		t.Fatalf("expected %d error lines, got %d", n/5, len(errs))
	}
	for i, text := range errs {
		if want := fmt.Sprintf("err %d", (i+1)*5); text != want {
			t.Fatalf("error line %d = %q, want %q", i, text, want)
		}
	}

	if fin.Reason != ReasonCompleted {
		t.Errorf("expected reason completed, got %s", fin.Reason)
	}
	if fin.Lines != n+n/5 {
		t.Errorf("expected %d lines counted, got %d", n+n/5, fin.Lines)
	}
	if fin.LogPath != "log/1.log" {
		t.Errorf("unexpected log path %q", fin.LogPath)
	}
	if len(sink.finished) != 1 {
		t.Errorf("expected exactly one finished event, got %d", len(sink.finished))
	}
	if s.State() != Terminated {
		t.Errorf("expected terminated, got %s", s.State())
	}
}

func TestSessionStatesAreMonotonic(t *testing.T) {
	src := newFakeSource()
	close(src.ready)
	src.push(follow.Output, "__START__Building index")
	src.push(follow.Output, "__STOP__")

	status := &fakeStatus{script: []*scheduler.Snapshot{running("2"), running("2")}}
	sink := &recordSink{}
	s := NewSession(testOptions("2"), src, status, sink, testLogger())

	if _, err := runWithTimeout(t, s, context.Background(), 5*time.Second); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []State{WaitingForLog, Streaming, Draining, Terminated}
	if fmt.Sprint(sink.states) != fmt.Sprint(want) {
		t.Errorf("states = %v, want %v", sink.states, want)
	}

	if s.advance(Streaming) {
		t.Error("backward transition was accepted")
	}
	if s.State() != Terminated {
		t.Errorf("state moved backwards to %s", s.State())
	}

	if len(sink.directives) != 2 || sink.directives[0].Kind != control.BannerStart || sink.directives[1].Kind != control.BannerStop {
		t.Errorf("unexpected directives %+v", sink.directives)
	}
	if len(sink.statuses) == 0 {
		t.Error("expected at least one status snapshot")
	}

	if _, err := s.Run(context.Background()); err == nil {
		t.Error("expected error when running a finished session")
	}
}

func TestSessionWaitsForLogWithoutError(t *testing.T) {
	src := newFakeSource()
	status := &fakeStatus{fallback: running("3")}
	sink := &recordSink{}
	s := NewSession(testOptions("3"), src, status, sink, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	type result struct {
		fin Finished
		err error
	}
	done := make(chan result, 1)
	go func() {
		fin, err := s.Run(ctx)
		done <- result{fin, err}
	}()

	time.Sleep(300 * time.Millisecond)
	if s.State() != WaitingForLog {
		t.Fatalf("expected waiting, got %s", s.State())
	}
	// 20ms interval over 300ms; anything far above means the poll interval
	// is not respected.
	if calls := status.Calls(); calls > 30 {
		t.Errorf("status polled %d times in 300ms", calls)
	}

	cancel()
	select {
	case r := <-done:
		if r.err != nil {
			t.Errorf("waiting must not produce an error, got %v", r.err)
		}
		if r.fin.Reason != ReasonInterrupted {
			t.Errorf("expected interrupted, got %s", r.fin.Reason)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("session did not stop after cancel")
	}
}

func TestSessionSourceEndsUnexpectedly(t *testing.T) {
	src := newFakeSource()
	close(src.ready)
	src.push(follow.Output, "last words")

	status := &fakeStatus{fallback: running("4")}
	s := NewSession(testOptions("4"), src, status, &recordSink{}, testLogger())

	go func() {
		time.Sleep(50 * time.Millisecond)
		src.end(errors.New("tail exited unexpectedly"))
	}()

	fin, err := runWithTimeout(t, s, context.Background(), 5*time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fin.Reason != ReasonSourceEnded {
		t.Errorf("expected source_ended, got %s", fin.Reason)
	}
	if fin.Err == nil {
		t.Error("expected source error in finished event")
	}
	if fin.Lines != 1 {
		t.Errorf("expected the queued line to be drained, got %d lines", fin.Lines)
	}
}

func TestSessionJobAbsentFromFirstQuery(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "12345.log")
	content := "line 1\n__SPLIT__Results\nline 3\n"
	if err := os.WriteFile(logPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write log: %v", err)
	}

	src := follow.NewFileFollower(logPath, filepath.Join(dir, "12345.err"), 20*time.Millisecond, testLogger())
	status := &fakeStatus{}
	sink := &recordSink{}
	opts := testOptions("12345")
	opts.LogPath = logPath
	s := NewSession(opts, src, status, sink, testLogger())

	fin, err := runWithTimeout(t, s, context.Background(), 5*time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if s.State() != Terminated {
		t.Errorf("expected terminated, got %s", s.State())
	}
	if fin.Reason != ReasonCompleted {
		t.Errorf("expected completed, got %s", fin.Reason)
	}
	got := sink.channelTexts(follow.Output)
	if fmt.Sprint(got) != fmt.Sprint([]string{"line 1", "__SPLIT__Results", "line 3"}) {
		t.Errorf("unexpected lines %q", got)
	}
	if len(sink.directives) < 2 {
		t.Fatalf("expected directives for every line, got %d", len(sink.directives))
	}
	if sink.directives[1] != (control.Directive{Kind: control.SectionBreak, Text: "Results"}) {
		t.Errorf("unexpected directive %+v", sink.directives[1])
	}
	if calls := status.Calls(); calls != 1 {
		t.Errorf("expected a single status query, got %d", calls)
	}
}

// exitingStatus writes the job's whole log on the first query and then
// reports the job gone, like a job that ran between two polls.
type exitingStatus struct {
	path    string
	content string
	once    sync.Once
}

func (e *exitingStatus) Status(ctx context.Context, id scheduler.JobID) (*scheduler.Snapshot, error) {
	var err error
	e.once.Do(func() {
		if err = os.MkdirAll(filepath.Dir(e.path), 0755); err == nil {
			err = os.WriteFile(e.path, []byte(e.content), 0644)
		}
	})
	if err != nil {
		return nil, err
	}
	return nil, scheduler.ErrJobNotFound
}

func TestSessionLogWrittenJustBeforeJobLeaves(t *testing.T) {
	tests := []struct {
		name string
		poll time.Duration
		sub  string
	}{
		// The log directory does not exist yet, so nothing is watched and
		// the hourly poll never fires: only the stop path can see the file.
		{"unwatched directory", time.Hour, "log"},
		{"watched directory", 20 * time.Millisecond, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for i := 0; i < 10; i++ {
				dir := filepath.Join(t.TempDir(), tt.sub)
				logPath := filepath.Join(dir, "7.log")

				src := follow.NewFileFollower(logPath, filepath.Join(dir, "7.err"), tt.poll, testLogger())
				status := &exitingStatus{path: logPath, content: "only line\n"}
				sink := &recordSink{}
				opts := testOptions("7")
				opts.LogPath = logPath
				s := NewSession(opts, src, status, sink, testLogger())

				fin, err := runWithTimeout(t, s, context.Background(), 5*time.Second)
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if fin.Reason != ReasonCompleted {
					t.Errorf("expected completed, got %s", fin.Reason)
				}
				if fin.Lines != 1 {
					t.Fatalf("run %d: expected the line written before completion, got %d lines", i, fin.Lines)
				}
				if got := sink.channelTexts(follow.Output); len(got) != 1 || got[0] != "only line" {
					t.Fatalf("run %d: unexpected lines %q", i, got)
				}
			}
		})
	}
}

func TestSessionStopJoinsWhileReading(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "20.log")
	if err := os.WriteFile(logPath, nil, 0644); err != nil {
		t.Fatalf("failed to create log: %v", err)
	}

	src := follow.NewFileFollower(logPath, "", 20*time.Millisecond, testLogger())
	status := &fakeStatus{fallback: running("20")}
	sink := &recordSink{}
	opts := testOptions("20")
	opts.LogPath = logPath
	s := NewSession(opts, src, status, sink, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		f, err := os.OpenFile(logPath, os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return
		}
		defer f.Close()
		for i := 0; i < 50; i++ {
			fmt.Fprintf(f, "tick %d\n", i)
			time.Sleep(2 * time.Millisecond)
		}
	}()

	go func() {
		<-writerDone
		cancel()
	}()

	fin, err := runWithTimeout(t, s, ctx, 5*time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fin.Reason != ReasonInterrupted {
		t.Errorf("expected interrupted, got %s", fin.Reason)
	}
	if got := sink.channelTexts(follow.Output); len(got) != 50 {
		t.Errorf("expected all 50 lines written before the stop, got %d", len(got))
	}
}

func TestSessionWithoutStatusClient(t *testing.T) {
	src := newFakeSource()
	close(src.ready)
	src.push(follow.Output, "hello")

	s := NewSession(testOptions("30"), src, nil, &recordSink{}, testLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	fin, err := runWithTimeout(t, s, ctx, 5*time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fin.Reason != ReasonInterrupted || fin.Lines != 1 {
		t.Errorf("unexpected result %+v", fin)
	}
}
