package shell

import (
	"bytes"
	"io"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"jobshell/internal/config"
	"jobshell/internal/jobs"
	"jobshell/internal/launcher"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func (b *syncBuffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf.Reset()
}

// scriptReader hands out lines as the test sends them; closing lines ends
// input.
type scriptReader struct {
	lines chan string
}

func (r *scriptReader) Readline() (string, error) {
	line, ok := <-r.lines
	if !ok {
		return "", io.EOF
	}
	return line, nil
}

func (r *scriptReader) Close() error { return nil }

type sentSignal struct {
	pid int
	sig unix.Signal
}

type signalRecorder struct {
	mu   sync.Mutex
	sent []sentSignal
	err  error
}

func (r *signalRecorder) signal(pid int, sig unix.Signal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, sentSignal{pid: pid, sig: sig})
	return r.err
}

func (r *signalRecorder) signals() []sentSignal {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]sentSignal(nil), r.sent...)
}

type fakeSpawner struct {
	next    int
	err     error
	spawned [][]string
	modes   []launcher.Mode
}

func (f *fakeSpawner) Spawn(argv []string, mode launcher.Mode) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.next++
	f.spawned = append(f.spawned, argv)
	f.modes = append(f.modes, mode)
	return f.next, nil
}

type waitStep struct {
	pid    int
	status unix.WaitStatus
	err    error
}

// scriptedWait replays steps and then reports that no children are left.
type scriptedWait struct {
	steps []waitStep
	calls int
}

func (w *scriptedWait) wait(pid int, ws *unix.WaitStatus, options int, _ *unix.Rusage) (int, error) {
	w.calls++
	if len(w.steps) == 0 {
		return 0, unix.ECHILD
	}
	step := w.steps[0]
	w.steps = w.steps[1:]
	*ws = step.status
	return step.pid, step.err
}

func exited(code int) unix.WaitStatus { return unix.WaitStatus(code << 8) }

func signaled(sig unix.Signal) unix.WaitStatus { return unix.WaitStatus(sig) }

func stopped(sig unix.Signal) unix.WaitStatus { return unix.WaitStatus(int(sig)<<8 | 0x7f) }

func testConfig(maxJobs int) *config.Config {
	cfg := config.Default()
	cfg.MaxJobs = maxJobs
	cfg.Color = false
	cfg.Banner = false
	return cfg
}

type harness struct {
	shell   *Shell
	out     *syncBuffer
	reader  *scriptReader
	signals *signalRecorder
	wait    *scriptedWait
	spawner *fakeSpawner
}

// newHarness builds a shell whose processes, signals and waits are all fake.
func newHarness(t *testing.T, maxJobs int) *harness {
	t.Helper()
	h := newRealHarness(t, testConfig(maxJobs))

	h.signals = &signalRecorder{}
	h.wait = &scriptedWait{}
	h.spawner = &fakeSpawner{next: 4240}

	h.shell.launcher = h.spawner
	h.shell.signal = h.signals.signal
	h.shell.reaper.signal = h.signals.signal
	h.shell.reaper.wait = h.wait.wait
	h.shell.router.signal = h.signals.signal
	return h
}

// newRealHarness builds a shell that starts real processes.
func newRealHarness(t *testing.T, cfg *config.Config) *harness {
	t.Helper()
	out := &syncBuffer{}
	reader := &scriptReader{lines: make(chan string)}
	console := NewConsole(out, out, cfg.Prompt, true)

	s, err := New(cfg, Options{Reader: reader, Console: console, Logger: zerolog.Nop()})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	return &harness{shell: s, out: out, reader: reader}
}

func (h *harness) insert(t *testing.T, pid int, command string, state jobs.State) int {
	t.Helper()
	id, err := h.shell.table.Insert(pid, command, state)
	require.NoError(t, err)
	return id
}
