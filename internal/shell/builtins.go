package shell

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/pborman/getopt/v2"
	"golang.org/x/sys/unix"

	"jobshell/internal/jobs"
	"jobshell/internal/launcher"
)

var builtinNames = map[string]bool{
	"exit": true,
	"quit": true,
	"jobs": true,
	"fg":   true,
	"bg":   true,
	"kill": true,
	"help": true,
}

func (s *Shell) executeBuiltin(args []string) (bool, error) {
	switch args[0] {
	case "exit", "quit":
		return true, ErrExit
	case "jobs":
		return true, s.listJobs(args)
	case "fg":
		return true, s.foregroundJob(args)
	case "bg":
		return true, s.backgroundJob(args)
	case "kill":
		return true, s.killJob(args)
	case "help":
		return true, s.showHelp()
	}

	if p, ok := s.plugins[args[0]]; ok {
		return true, p.Execute(args[1:])
	}
	return false, nil
}

// lookupJob resolves a job id argument, with or without a leading '%'.
func (s *Shell) lookupJob(arg string) (jobs.Job, bool) {
	id, err := strconv.Atoi(strings.TrimPrefix(arg, "%"))
	if err != nil {
		s.console.Printf("Job [%s] not found\n", arg)
		return jobs.Job{}, false
	}
	job, ok := s.table.FindByID(id)
	if !ok {
		s.console.Printf("Job [%d] not found\n", id)
	}
	return job, ok
}

func (s *Shell) listJobs(args []string) error {
	opts := getopt.New()
	opts.SetProgram("jobs")
	pidsOnly := opts.BoolLong("pids", 'p', "print process ids only")
	running := opts.BoolLong("running", 'r', "list running jobs only")
	stopped := opts.BoolLong("stopped", 's', "list stopped jobs only")
	if err := opts.Getopt(args, nil); err != nil {
		s.console.Printf("jobs: %v\nUsage: jobs [-prs]\n", err)
		return nil
	}

	list := filterJobs(s.table.Jobs(), *running, *stopped)

	var buf bytes.Buffer
	if *pidsOnly {
		for _, job := range list {
			fmt.Fprintln(&buf, job.PID)
		}
	} else {
		writeJobTable(&buf, list)
	}
	_, err := s.console.Write(buf.Bytes())
	return err
}

func (s *Shell) foregroundJob(args []string) error {
	if len(args) < 2 {
		s.console.Printf("Usage: fg <job_id>\n")
		return nil
	}
	job, ok := s.lookupJob(args[1])
	if !ok {
		return nil
	}

	if job.State == jobs.Stopped {
		if err := s.signal(job.PID, unix.SIGCONT); err != nil {
			return fmt.Errorf("fg: %w", err)
		}
		s.table.SetState(job.PID, jobs.Running)
	}

	s.console.Printf("Bringing job [%d] to foreground: %s\n", job.ID, job.Command)
	s.waitForeground(job.PID)
	return nil
}

func (s *Shell) backgroundJob(args []string) error {
	if len(args) < 2 {
		s.console.Printf("Usage: bg <job_id>\n")
		return nil
	}
	job, ok := s.lookupJob(args[1])
	if !ok {
		return nil
	}

	if job.State != jobs.Stopped {
		s.console.Printf("Job [%d] is already running\n", job.ID)
		return nil
	}
	if err := s.signal(job.PID, unix.SIGCONT); err != nil {
		return fmt.Errorf("bg: %w", err)
	}
	s.table.SetState(job.PID, jobs.Running)
	s.console.Printf("Job [%d] continued in background: %s\n", job.ID, job.Command)
	return nil
}

// killJob signals a job. The table entry stays until the reaper sees the
// child terminate.
func (s *Shell) killJob(args []string) error {
	opts := getopt.New()
	opts.SetProgram("kill")
	opts.SetParameters("<job_id>")
	sigName := opts.StringLong("signal", 's', "KILL", "signal to send", "SIGNAL")
	if err := opts.Getopt(args, nil); err != nil {
		s.console.Printf("kill: %v\nUsage: kill [-s SIGNAL] <job_id>\n", err)
		return nil
	}

	rest := opts.Args()
	if len(rest) < 1 {
		s.console.Printf("Usage: kill <job_id>\n")
		return nil
	}
	sig, err := launcher.ParseSignal(*sigName)
	if err != nil {
		s.console.Printf("kill: %v\n", err)
		return nil
	}
	job, ok := s.lookupJob(rest[0])
	if !ok {
		return nil
	}

	if err := s.signal(job.PID, sig); err != nil {
		return fmt.Errorf("kill: %w", err)
	}
	if sig == unix.SIGKILL {
		s.console.Printf("Job [%d] terminated\n", job.ID)
	} else {
		s.console.Printf("Job [%d] sent %s\n", job.ID, unix.SignalName(sig))
	}
	return nil
}

const helpText = `
Available commands:
  <command> &          - Run command in background
  jobs [-prs]          - List all jobs
  fg <job_id>          - Bring job to foreground
  bg <job_id>          - Continue stopped job in background
  kill [-s SIG] <id>   - Terminate a job (SIGKILL unless -s is given)
  help                 - Show this help
  quit/exit            - Exit shell
  Ctrl+C               - Interrupt foreground job
  Ctrl+Z               - Suspend foreground job
`

func (s *Shell) showHelp() error {
	var buf bytes.Buffer
	buf.WriteString(helpText)
	if len(s.plugins) > 0 {
		names := make([]string, 0, len(s.plugins))
		for name := range s.plugins {
			names = append(names, name)
		}
		sort.Strings(names)
		fmt.Fprintf(&buf, "\nPlugin commands: %s\n", strings.Join(names, ", "))
	}
	buf.WriteString("\n")
	_, err := s.console.Write(buf.Bytes())
	return err
}
