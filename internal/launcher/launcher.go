// Package launcher starts external programs as children of the shell.
//
// Children are started through os/exec, which restores every signal the shell
// has asked to be notified about (SIGCHLD, SIGINT, SIGTSTP) to its default
// disposition before exec. The launcher never waits for a child; the shell's
// reaper owns every wait4 call.
package launcher

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"strconv"
	"syscall"

	"github.com/rs/zerolog"
	"golang.org/x/sys/unix"
)

// Mode selects how a child relates to the shell's process group.
type Mode int

const (
	// Foreground children inherit the shell's process group and stdin.
	Foreground Mode = iota
	// Background children lead a new process group whose id is their pid.
	Background
)

func (m Mode) String() string {
	if m == Background {
		return "background"
	}
	return "foreground"
}

type ErrorKind int

const (
	// KindFork means no child process was created.
	KindFork ErrorKind = iota + 1
	// KindExec means the program could not be found or executed.
	KindExec
)

// ErrEmptyCommand is returned when Spawn is given no arguments.
var ErrEmptyCommand = errors.New("empty command")

// LaunchError describes a failed Spawn.
type LaunchError struct {
	Kind ErrorKind
	Name string
	Err  error
}

func (e *LaunchError) Error() string {
	if e.Kind == KindExec {
		return fmt.Sprintf("Command not found: %s", e.Name)
	}
	return fmt.Sprintf("fork error: %v", e.Err)
}

func (e *LaunchError) Unwrap() error { return e.Err }

// Launcher starts children wired to the given standard streams.
type Launcher struct {
	Stdin  *os.File
	Stdout *os.File
	Stderr *os.File

	log zerolog.Logger
}

// New returns a Launcher attached to the process's standard streams.
func New(logger zerolog.Logger) *Launcher {
	return &Launcher{
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
		log:    logger.With().Str("component", "launcher").Logger(),
	}
}

// Spawn starts argv[0] resolved through PATH and returns its pid.
func (l *Launcher) Spawn(argv []string, mode Mode) (int, error) {
	if len(argv) == 0 {
		return 0, &LaunchError{Kind: KindExec, Err: ErrEmptyCommand}
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	if cmd.Err != nil {
		return 0, &LaunchError{Kind: KindExec, Name: argv[0], Err: cmd.Err}
	}

	// Background children read from the null device.
	if mode == Foreground && l.Stdin != nil {
		cmd.Stdin = l.Stdin
	}
	if l.Stdout != nil {
		cmd.Stdout = l.Stdout
	}
	if l.Stderr != nil {
		cmd.Stderr = l.Stderr
	}
	if mode == Background {
		cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	}

	if err := cmd.Start(); err != nil {
		return 0, classify(argv[0], err)
	}

	pid := cmd.Process.Pid
	// The handle is dropped without waiting; the child stays unreaped until
	// the shell's reaper collects it.
	if err := cmd.Process.Release(); err != nil {
		l.log.Debug().Err(err).Int("pid", pid).Msg("release process handle")
	}

	l.log.Debug().
		Int("pid", pid).
		Str("mode", mode.String()).
		Strs("argv", argv).
		Msg("spawned child")
	return pid, nil
}

func classify(name string, err error) error {
	switch {
	case errors.Is(err, exec.ErrNotFound),
		errors.Is(err, fs.ErrNotExist),
		errors.Is(err, fs.ErrPermission),
		errors.Is(err, syscall.ENOEXEC):
		return &LaunchError{Kind: KindExec, Name: name, Err: err}
	default:
		return &LaunchError{Kind: KindFork, Name: name, Err: err}
	}
}

// Signal delivers sig to the process pid.
func Signal(pid int, sig unix.Signal) error {
	if pid <= 0 {
		return fmt.Errorf("signal %s: invalid pid %d", unix.SignalName(sig), pid)
	}
	return unix.Kill(pid, sig)
}

// ParseSignal accepts names with or without the SIG prefix ("TERM", "SIGTERM")
// and decimal signal numbers.
func ParseSignal(name string) (unix.Signal, error) {
	if sig := unix.SignalNum(name); sig != 0 {
		return sig, nil
	}
	if sig := unix.SignalNum("SIG" + name); sig != 0 {
		return sig, nil
	}
	if n, err := strconv.Atoi(name); err == nil && n > 0 && unix.SignalName(unix.Signal(n)) != "" {
		return unix.Signal(n), nil
	}
	return 0, fmt.Errorf("unknown signal %q", name)
}
