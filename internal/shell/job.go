package shell

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"golang.org/x/sys/unix"

	"jobshell/internal/jobs"
	"jobshell/internal/launcher"
)

func (s *Shell) runExternal(args []string, background bool) error {
	mode := launcher.Foreground
	if background {
		mode = launcher.Background
	}

	pid, err := s.launcher.Spawn(args, mode)
	if err != nil {
		var launchErr *launcher.LaunchError
		if errors.As(err, &launchErr) && launchErr.Kind == launcher.KindExec {
			s.console.Printf("%s\n", launchErr)
			return nil
		}
		return err
	}

	if !background {
		s.waitForeground(pid)
		return nil
	}

	command := jobs.CommandString(args)
	id, err := s.table.Insert(pid, command, jobs.Running)
	if err != nil {
		// Nothing could ever reap or resume a child the table does not know.
		if kerr := s.signal(pid, unix.SIGKILL); kerr != nil {
			s.log.Warn().Err(kerr).Int("pid", pid).Msg("kill untracked child")
		}
		if errors.Is(err, jobs.ErrFull) {
			s.console.Printf("Job queue full\n")
			return nil
		}
		return err
	}

	s.log.Debug().Int("pid", pid).Int("job_id", id).Msg("background job started")
	s.console.Printf("[%d] %d %s\n", id, pid, command)
	return nil
}

// waitForeground blocks until pid stops or terminates. Every wait happens
// through the reaper on this goroutine, so a status cannot be consumed
// anywhere else while the shell waits.
func (s *Shell) waitForeground(pid int) {
	s.fg.Set(pid)
	defer s.fg.Clear()

	for {
		status, err := s.reaper.Drain(pid)
		if err != nil {
			s.console.Errorf("%v", err)
			return
		}

		switch status {
		case fgTerminated, fgGone:
			s.table.RemoveByPID(pid)
			return
		case fgStopped:
			return
		}

		<-s.sigchld
	}
}

func writeJobTable(w io.Writer, list []jobs.Job) {
	if len(list) == 0 {
		fmt.Fprintln(w, "No jobs")
		return
	}

	fmt.Fprintln(w)
	tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)
	fmt.Fprintln(tw, "Job ID\tPID\tState\tCommand")
	fmt.Fprintln(tw, "------\t---\t-----\t-------")
	for _, job := range list {
		fmt.Fprintf(tw, "[%d]\t%d\t%s\t%s\n", job.ID, job.PID, job.State, job.Command)
	}
	tw.Flush()
	fmt.Fprintln(w)
}

func filterJobs(list []jobs.Job, running, stopped bool) []jobs.Job {
	if running == stopped {
		return list
	}
	want := jobs.Running
	if stopped {
		want = jobs.Stopped
	}
	var out []jobs.Job
	for _, job := range list {
		if job.State == want {
			out = append(out, job)
		}
	}
	return out
}
