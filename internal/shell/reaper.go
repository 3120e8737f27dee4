package shell

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/sys/unix"

	"jobshell/internal/jobs"
)

// WaitFunc has the shape of unix.Wait4.
type WaitFunc func(pid int, wstatus *unix.WaitStatus, options int, rusage *unix.Rusage) (int, error)

// WaitError reports a wait4 failure other than EINTR or ECHILD.
type WaitError struct {
	Err error
}

func (e *WaitError) Error() string { return fmt.Sprintf("waitpid error: %v", e.Err) }

func (e *WaitError) Unwrap() error { return e.Err }

// fgStatus is what a drain learned about the foreground child.
type fgStatus int

const (
	fgPending fgStatus = iota
	fgStopped
	fgTerminated
	// fgGone means the kernel has no children left to report.
	fgGone
)

// Reaper is the only code that changes job state in response to the kernel.
type Reaper struct {
	table   *jobs.Table
	console *Console
	wait    WaitFunc
	signal  func(pid int, sig unix.Signal) error
	log     zerolog.Logger
}

// Drain collects every pending status change without blocking and updates
// the table, printing a notice for each tracked transition. fg names the
// foreground child, if any; its termination is left to the caller and
// reported through the returned status.
func (r *Reaper) Drain(fg int) (fgStatus, error) {
	status := fgPending
	for {
		var ws unix.WaitStatus
		pid, err := r.wait(-1, &ws, unix.WNOHANG|unix.WUNTRACED, nil)
		switch {
		case errors.Is(err, unix.EINTR):
			continue
		case errors.Is(err, unix.ECHILD):
			if fg != 0 && status == fgPending {
				status = fgGone
			}
			return status, nil
		case err != nil:
			return status, &WaitError{Err: err}
		case pid <= 0:
			return status, nil
		}

		observed := r.observe(pid, ws, fg)
		if pid == fg {
			status = observed
		}
	}
}

func (r *Reaper) observe(pid int, ws unix.WaitStatus, fg int) fgStatus {
	job, tracked := r.table.FindByPID(pid)
	event := r.log.Debug().Int("pid", pid).Uint32("status", uint32(ws))

	switch {
	case ws.Exited() || ws.Signaled():
		if pid == fg {
			event.Msg("foreground child terminated")
			return fgTerminated
		}
		if !tracked {
			event.Msg("reaped untracked child")
			return fgTerminated
		}
		r.table.RemoveByPID(pid)
		event.Int("job_id", job.ID).Msg("job done")
		r.console.Notice("[%d] Done: %s", job.ID, job.Command)
		return fgTerminated

	case ws.Stopped():
		if tracked {
			r.table.SetState(pid, jobs.Stopped)
			event.Int("job_id", job.ID).Msg("job stopped")
			r.console.Notice("[%d] Stopped: %s", job.ID, job.Command)
			return fgStopped
		}
		r.promote(pid)
		return fgStopped
	}

	event.Msg("ignored status")
	return fgPending
}

// promote records a child the shell was not tracking, normally the
// foreground child on its first stop.
func (r *Reaper) promote(pid int) {
	id, err := r.table.Insert(pid, jobs.ForegroundLabel, jobs.Stopped)
	if err != nil {
		r.log.Warn().Err(err).Int("pid", pid).Msg("cannot track stopped child")
		r.console.Notice("Job queue full")
		// An untracked stopped child could never be resumed.
		if kerr := r.signal(pid, unix.SIGKILL); kerr != nil {
			r.log.Warn().Err(kerr).Int("pid", pid).Msg("kill untracked child")
		}
		return
	}
	r.log.Debug().Int("pid", pid).Int("job_id", id).Msg("promoted stopped child")
	r.console.Notice("[%d] Stopped (use 'fg %d' to resume)", id, id)
}
