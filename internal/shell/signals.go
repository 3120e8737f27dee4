package shell

import (
	"os"
	"sync/atomic"

	"github.com/rs/zerolog"
	"golang.org/x/sys/unix"
)

// Foreground names the child the shell is blocked on. Zero means the shell is
// not waiting for anyone. Only the main loop writes it.
type Foreground struct {
	pid atomic.Int64
}

func (f *Foreground) Set(pid int) { f.pid.Store(int64(pid)) }

func (f *Foreground) Clear() { f.pid.Store(0) }

func (f *Foreground) PID() int { return int(f.pid.Load()) }

// Router forwards the keyboard signals the shell intercepts to the foreground
// child. It never touches the job table; SIGCHLD is handled by the main loop.
type Router struct {
	fg      *Foreground
	console *Console
	signal  func(pid int, sig unix.Signal) error
	log     zerolog.Logger
}

// Run routes signals until ch is closed.
func (r *Router) Run(ch <-chan os.Signal) {
	for sig := range ch {
		r.Route(sig)
	}
}

func (r *Router) Route(sig os.Signal) {
	switch sig {
	case unix.SIGINT:
		r.forward(unix.SIGINT)
		r.console.Newline()
	case unix.SIGTSTP:
		r.forward(unix.SIGTSTP)
	}
}

func (r *Router) forward(sig unix.Signal) {
	pid := r.fg.PID()
	if pid == 0 {
		return
	}
	if err := r.signal(pid, sig); err != nil {
		r.log.Debug().Err(err).Int("pid", pid).Str("signal", unix.SignalName(sig)).Msg("forward failed")
		return
	}
	r.log.Debug().Int("pid", pid).Str("signal", unix.SignalName(sig)).Msg("forwarded signal")
}
