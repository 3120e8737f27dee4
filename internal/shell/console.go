package shell

import (
	"fmt"
	"io"
	"sync"

	"github.com/fatih/color"
)

// Console serializes everything the shell prints. The signal router writes to
// it from its own goroutine.
type Console struct {
	mu     sync.Mutex
	out    io.Writer
	errOut io.Writer
	prompt string
	// plain is set when the line reader does not redraw the prompt after
	// output written while it waits for input.
	plain bool

	title *color.Color
	alert *color.Color
}

func NewConsole(out, errOut io.Writer, prompt string, plain bool) *Console {
	return &Console{
		out:    out,
		errOut: errOut,
		prompt: prompt,
		plain:  plain,
	}
}

// EnableColor turns on colored banner and error output. fatih/color still
// disables itself when stdout is not a terminal.
func (c *Console) EnableColor() {
	c.title = color.New(color.FgCyan, color.Bold)
	c.alert = color.New(color.FgRed, color.Bold)
}

func (c *Console) Printf(format string, args ...interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, format, args...)
}

func (c *Console) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.out.Write(p)
}

// Errorf writes a diagnostic line to the error stream.
func (c *Console) Errorf(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if c.alert != nil {
		msg = c.alert.Sprint(msg)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.errOut, msg)
}

// Notice reports an asynchronous job transition and restores the prompt.
func (c *Console) Notice(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.plain {
		fmt.Fprintf(c.out, "\n%s\n%s", msg, c.prompt)
		return
	}
	fmt.Fprintln(c.out, msg)
}

func (c *Console) Prompt() {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprint(c.out, c.prompt)
}

func (c *Console) Newline() {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.out)
}

// EOF ends the session's output. A line editor has already moved to a new
// line by itself.
func (c *Console) EOF() {
	if c.plain {
		c.Newline()
	}
}

func (c *Console) Banner() {
	title := "=== Unix Shell Job Scheduler ==="
	if c.title != nil {
		title = c.title.Sprint(title)
	}
	c.Printf("%s\nType 'help' for available commands\n\n", title)
}
