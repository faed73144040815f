package session

import (
	"bytes"
	"errors"
	"os"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/creack/pty"
	"golang.org/x/sys/unix"

	"github.com/framegrace/vtengine/internal/eventloop"
)

type fakeTerminal struct {
	r, w     *os.File
	fd       int
	input    bytes.Buffer
	writeErr error
	sizes    [][2]int
	closed   bool
}

func newFakeTerminal(t *testing.T) *fakeTerminal {
	t.Helper()
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	t.Cleanup(func() {
		r.Close()
		w.Close()
	})
	return &fakeTerminal{r: r, w: w, fd: int(r.Fd())}
}

func (f *fakeTerminal) Read(p []byte) (int, error) { return f.r.Read(p) }

func (f *fakeTerminal) Write(p []byte) (int, error) {
	if f.writeErr != nil {
		return 0, f.writeErr
	}
	return f.input.Write(p)
}

func (f *fakeTerminal) Close() error {
	f.closed = true
	return nil
}

func (f *fakeTerminal) Fd() int { return f.fd }

func (f *fakeTerminal) Resize(cols, rows int) error {
	f.sizes = append(f.sizes, [2]int{cols, rows})
	return nil
}

// childOutput simulates the child writing to its terminal.
func (f *fakeTerminal) childOutput(t *testing.T, s string) {
	t.Helper()
	if _, err := f.w.WriteString(s); err != nil {
		t.Fatalf("child output: %v", err)
	}
}

// hangup simulates the slave side going away.
func (f *fakeTerminal) hangup() { f.w.Close() }

type fakeProcess struct {
	exited  bool
	code    int
	signals []unix.Signal
	killed  bool
	waited  bool
}

func (p *fakeProcess) Pid() int { return 4242 }

func (p *fakeProcess) TryWait() (bool, int, error) { return p.exited, p.code, nil }

func (p *fakeProcess) Signal(sig unix.Signal) error {
	p.signals = append(p.signals, sig)
	return nil
}

func (p *fakeProcess) Kill() error {
	p.killed = true
	if !p.exited {
		p.exited, p.code = true, -1
	}
	return nil
}

func (p *fakeProcess) Wait() (int, error) {
	p.waited = true
	return p.code, nil
}

type fakeSpawner struct {
	term *fakeTerminal
	proc *fakeProcess
	err  error
	last Command
}

func (s *fakeSpawner) Spawn(c Command) (Terminal, Process, error) {
	s.last = c
	if s.err != nil {
		return nil, nil, s.err
	}
	return s.term, s.proc, nil
}

type sessionHarness struct {
	t        *testing.T
	loop     *eventloop.Loop
	spawner  *fakeSpawner
	s        *Session
	data     bytes.Buffer
	finished []int
}

func newSessionHarness(t *testing.T, opts ...Option) *sessionHarness {
	t.Helper()
	loop, err := eventloop.New()
	if err != nil {
		t.Fatalf("loop: %v", err)
	}
	t.Cleanup(func() { loop.Close() })
	h := &sessionHarness{
		t:       t,
		loop:    loop,
		spawner: &fakeSpawner{term: newFakeTerminal(t), proc: &fakeProcess{}},
	}
	base := []Option{
		WithSpawner(h.spawner),
		WithDataHandler(func(b []byte) { h.data.Write(b) }),
		WithFinishedHandler(func(code int) { h.finished = append(h.finished, code) }),
	}
	h.s = New(loop, append(base, opts...)...)
	return h
}

// runUntil drives the loop until cond holds or the deadline passes.
func (h *sessionHarness) runUntil(cond func() bool) {
	h.t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			h.t.Fatal("condition not reached before deadline")
		}
		if err := h.loop.RunOnce(100 * time.Millisecond); err != nil {
			h.t.Fatalf("RunOnce: %v", err)
		}
	}
}

func TestStartDeliversOutput(t *testing.T) {
	h := newSessionHarness(t)
	if err := h.s.Start("/bin/prog", []string{"a"}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !h.s.Active() || h.s.Pid() != 4242 {
		t.Fatalf("active=%v pid=%d", h.s.Active(), h.s.Pid())
	}

	h.spawner.term.childOutput(t, "hello\r\n")
	h.runUntil(func() bool { return h.data.Len() == 7 })
	if got := h.data.String(); got != "hello\r\n" {
		t.Fatalf("data = %q", got)
	}
}

func TestStartDefaults(t *testing.T) {
	h := newSessionHarness(t)
	if err := h.s.Start("", nil); err != nil {
		t.Fatalf("Start: %v", err)
	}
	c := h.spawner.last
	if c.Path != DefaultCommand {
		t.Errorf("path = %q, want %q", c.Path, DefaultCommand)
	}
	if len(c.Args) != 1 || c.Args[0] != "-l" {
		t.Errorf("args = %q, want [-l]", c.Args)
	}
	if c.Cols != 80 || c.Rows != 24 {
		t.Errorf("size = %dx%d, want 80x24", c.Cols, c.Rows)
	}
	if len(c.Env) == 0 {
		t.Error("env should default to the process environment")
	}
}

func TestStartUsesOptions(t *testing.T) {
	h := newSessionHarness(t, WithSize(100, 30), WithEnv([]string{"A=1"}), WithDir("/tmp"))
	if err := h.s.Start("/bin/prog", nil); err != nil {
		t.Fatalf("Start: %v", err)
	}
	c := h.spawner.last
	if c.Cols != 100 || c.Rows != 30 || c.Dir != "/tmp" {
		t.Errorf("command = %+v", c)
	}
	if len(c.Env) != 1 || c.Env[0] != "A=1" {
		t.Errorf("env = %q", c.Env)
	}
	if len(c.Args) != 1 || c.Args[0] != "-l" {
		t.Errorf("args = %q, want [-l]", c.Args)
	}
}

func TestStartKeepsExplicitArgs(t *testing.T) {
	h := newSessionHarness(t)
	if err := h.s.Start("/bin/bash", []string{"-c", "true"}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if c := h.spawner.last; len(c.Args) != 2 || c.Args[0] != "-c" || c.Args[1] != "true" {
		t.Errorf("args = %q, want [-c true]", c.Args)
	}
}

func TestStartWhileActiveFails(t *testing.T) {
	h := newSessionHarness(t)
	if err := h.s.Start("/bin/prog", nil); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := h.s.Start("/bin/prog", nil); !errors.Is(err, ErrSessionActive) {
		t.Fatalf("second Start: got %v, want ErrSessionActive", err)
	}
}

func TestStartFailureLeavesSessionInactive(t *testing.T) {
	h := newSessionHarness(t)
	h.spawner.err = errors.New("no ptys left")
	err := h.s.Start("/bin/prog", nil)
	if !errors.Is(err, ErrStartFailed) {
		t.Fatalf("Start: got %v, want ErrStartFailed", err)
	}
	if h.s.Active() || h.s.Pid() != -1 {
		t.Fatal("session should stay inactive")
	}
}

func TestChildExitEmitsFinishedOnce(t *testing.T) {
	h := newSessionHarness(t)
	h.s.Start("/bin/prog", nil)
	h.spawner.proc.exited, h.spawner.proc.code = true, 3
	h.spawner.term.hangup()

	h.runUntil(func() bool { return len(h.finished) > 0 })
	h.loop.RunOnce(20 * time.Millisecond)

	if len(h.finished) != 1 || h.finished[0] != 3 {
		t.Fatalf("finished = %v, want [3]", h.finished)
	}
	if h.s.Active() {
		t.Fatal("session still active after exit")
	}
	if !h.spawner.term.closed {
		t.Fatal("terminal not closed on exit")
	}
	if n, err := h.s.Write([]byte("late")); n != 0 || err != nil {
		t.Fatalf("Write after exit = %d, %v; want 0, nil", n, err)
	}
	if h.spawner.term.input.Len() != 0 || len(h.finished) != 1 {
		t.Fatalf("input = %q finished = %v", h.spawner.term.input.String(), h.finished)
	}
}

func TestOutputBeforeExitIsDelivered(t *testing.T) {
	h := newSessionHarness(t)
	h.s.Start("/bin/prog", nil)
	h.spawner.term.childOutput(t, "bye")
	h.spawner.proc.exited = true
	h.spawner.term.hangup()

	h.runUntil(func() bool { return len(h.finished) > 0 })
	if h.data.String() != "bye" {
		t.Fatalf("data = %q, want %q", h.data.String(), "bye")
	}
}

func TestHangupWhileAliveRechecks(t *testing.T) {
	h := newSessionHarness(t)
	h.s.Start("/bin/prog", nil)
	h.spawner.term.hangup()

	if err := h.loop.RunOnce(time.Second); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if len(h.finished) != 0 {
		t.Fatalf("finished early: %v", h.finished)
	}
	if h.s.reg == nil || h.s.reg.Enabled() {
		t.Fatal("registration should be paused while the child is alive")
	}

	h.spawner.proc.exited, h.spawner.proc.code = true, 0
	h.runUntil(func() bool { return len(h.finished) > 0 })
	if h.finished[0] != 0 {
		t.Fatalf("finished = %v, want [0]", h.finished)
	}
}

func TestWrite(t *testing.T) {
	h := newSessionHarness(t)
	if n, err := h.s.Write([]byte("ignored")); n != 0 || err != nil {
		t.Fatalf("inactive Write = %d, %v", n, err)
	}

	h.s.Start("/bin/prog", nil)
	if _, err := h.s.Write([]byte("ls\r")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if got := h.spawner.term.input.String(); got != "ls\r" {
		t.Fatalf("input = %q", got)
	}

	h.spawner.term.writeErr = errors.New("broken")
	if _, err := h.s.Write([]byte("x")); err == nil {
		t.Fatal("Write should report the failure")
	}
	if !h.s.Active() {
		t.Fatal("write failure must not end the session")
	}
}

func TestResize(t *testing.T) {
	h := newSessionHarness(t)
	if err := h.s.Resize(100, 40); err != nil {
		t.Fatalf("inactive Resize: %v", err)
	}
	if err := h.s.Resize(0, 10); err == nil {
		t.Fatal("Resize should reject an empty size")
	}

	h.s.Start("/bin/prog", nil)
	if c := h.spawner.last; c.Cols != 100 || c.Rows != 40 {
		t.Fatalf("start size = %dx%d, want 100x40", c.Cols, c.Rows)
	}
	if err := h.s.Resize(90, 30); err != nil {
		t.Fatalf("Resize: %v", err)
	}
	sizes := h.spawner.term.sizes
	if len(sizes) != 1 || sizes[0] != [2]int{90, 30} {
		t.Fatalf("sizes = %v", sizes)
	}
	sig := h.spawner.proc.signals
	if len(sig) != 1 || sig[0] != unix.SIGWINCH {
		t.Fatalf("signals = %v, want [SIGWINCH]", sig)
	}
}

func TestSignalRequiresChild(t *testing.T) {
	h := newSessionHarness(t)
	if err := h.s.Signal(unix.SIGINT); !errors.Is(err, ErrInactive) {
		t.Fatalf("Signal: got %v, want ErrInactive", err)
	}
}

func TestStopKillsAndReaps(t *testing.T) {
	h := newSessionHarness(t)
	h.s.Start("/bin/prog", nil)
	if err := h.s.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	p := h.spawner.proc
	if !p.killed || !p.waited {
		t.Fatalf("killed=%v waited=%v", p.killed, p.waited)
	}
	if h.s.Active() || !h.spawner.term.closed {
		t.Fatal("Stop left resources attached")
	}
	if err := h.s.Stop(); err != nil {
		t.Fatalf("second Stop: %v", err)
	}
	h.loop.RunOnce(20 * time.Millisecond)
	if len(h.finished) != 0 {
		t.Fatalf("Stop emitted finished: %v", h.finished)
	}
}

func TestStartAfterFinishCreatesNewSession(t *testing.T) {
	h := newSessionHarness(t)
	h.s.Start("/bin/prog", nil)
	h.spawner.proc.exited = true
	h.spawner.term.hangup()
	h.runUntil(func() bool { return len(h.finished) > 0 })

	h.spawner.term = newFakeTerminal(t)
	h.spawner.proc = &fakeProcess{}
	if err := h.s.Start("/bin/prog", nil); err != nil {
		t.Fatalf("restart: %v", err)
	}
	if !h.s.Active() {
		t.Fatal("restarted session inactive")
	}
}

func requirePTY(t *testing.T) {
	t.Helper()
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("no /bin/sh")
	}
	m, s, err := pty.Open()
	if err != nil {
		t.Skipf("no pty available: %v", err)
	}
	m.Close()
	s.Close()
}

func newPTYHarness(t *testing.T) *sessionHarness {
	h := newSessionHarness(t)
	h.s = New(h.loop,
		WithDataHandler(func(b []byte) { h.data.Write(b) }),
		WithFinishedHandler(func(code int) { h.finished = append(h.finished, code) }),
	)
	t.Cleanup(func() { h.s.Stop() })
	return h
}

func TestPTYImmediateExit(t *testing.T) {
	requirePTY(t)
	h := newPTYHarness(t)
	if err := h.s.Start("/bin/sh", []string{"-c", "printf ready; exit 3"}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	h.runUntil(func() bool { return len(h.finished) > 0 })
	if h.finished[0] != 3 {
		t.Fatalf("exit code = %d, want 3", h.finished[0])
	}
	if !strings.Contains(h.data.String(), "ready") {
		t.Fatalf("output = %q", h.data.String())
	}
	n, err := h.s.Write([]byte("late\n"))
	if n != 0 || err != nil {
		t.Fatalf("Write after exit = %d, %v; want 0, nil", n, err)
	}
	if len(h.finished) != 1 || h.s.Active() {
		t.Fatalf("finished = %v active = %v", h.finished, h.s.Active())
	}
}

func TestPTYExecFailureReports127(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("relies on Linux pty hangup semantics")
	}
	requirePTY(t)
	h := newPTYHarness(t)
	if err := h.s.Start("/nonexistent/vtengine-test-program", []string{"x"}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	h.runUntil(func() bool { return len(h.finished) > 0 })
	if h.finished[0] != ExecFailedCode {
		t.Fatalf("exit code = %d, want %d", h.finished[0], ExecFailedCode)
	}
}

func TestPTYStopKillsChild(t *testing.T) {
	requirePTY(t)
	h := newPTYHarness(t)
	if err := h.s.Start("/bin/sh", []string{"-c", "sleep 30"}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	pid := h.s.Pid()
	if err := h.s.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := unix.Kill(pid, 0); !errors.Is(err, unix.ESRCH) {
		t.Fatalf("child %d still exists: %v", pid, err)
	}
}

func TestPTYSessionReleasesDescriptors(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("counts /proc/self/fd")
	}
	requirePTY(t)
	h := newPTYHarness(t)
	openFDs := func() int {
		entries, err := os.ReadDir("/proc/self/fd")
		if err != nil {
			t.Fatalf("read fds: %v", err)
		}
		return len(entries)
	}
	before := openFDs()
	if err := h.s.Start("/bin/sh", []string{"-c", "exit 0"}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	h.runUntil(func() bool { return len(h.finished) > 0 })
	if after := openFDs(); after != before {
		t.Fatalf("open descriptors: %d before, %d after the child finished", before, after)
	}
}
