package jobs

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// MaxCommandLen bounds the command text kept for display.
const MaxCommandLen = 1024

// ForegroundLabel names a job that was promoted from the foreground on its
// first stop, when the shell never recorded the text that started it.
const ForegroundLabel = "(foreground job)"

// State is the last observed state of a job.
type State int

const (
	Running State = iota
	Stopped
	// Done is only used when reporting; a finished job leaves the table.
	Done
)

func (s State) String() string {
	switch s {
	case Running:
		return "Running"
	case Stopped:
		return "Stopped"
	case Done:
		return "Done"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Job is a child process known to the shell.
type Job struct {
	ID      int
	PID     int
	State   State
	Command string
}

// CommandString renders argv the way jobs are displayed: each argument
// followed by a single space.
func CommandString(argv []string) string {
	var b strings.Builder
	for _, arg := range argv {
		b.WriteString(arg)
		b.WriteByte(' ')
	}
	return truncate(b.String())
}

func truncate(s string) string {
	if len(s) <= MaxCommandLen {
		return s
	}
	cut := MaxCommandLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
