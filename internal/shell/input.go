package shell

import (
	"bufio"
	"io"

	"github.com/chzyer/readline"
)

const maxLineBytes = 1 << 20

// LineReader supplies input lines. Readline returns io.EOF when input ends.
type LineReader interface {
	Readline() (string, error)
	Close() error
}

// Terminal reads lines through a readline instance. Output written through
// Stdout while a line is being edited redraws the prompt below it.
type Terminal struct {
	rl *readline.Instance
}

func NewTerminal(prompt string) (*Terminal, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:                 prompt,
		HistoryLimit:           -1,
		DisableAutoSaveHistory: true,
		InterruptPrompt:        "^C",
	})
	if err != nil {
		return nil, err
	}
	return &Terminal{rl: rl}, nil
}

// Readline treats Ctrl+C at the prompt as an empty line.
func (t *Terminal) Readline() (string, error) {
	line, err := t.rl.Readline()
	if err == readline.ErrInterrupt {
		return "", nil
	}
	return line, err
}

func (t *Terminal) Stdout() io.Writer { return t.rl.Stdout() }

func (t *Terminal) Stderr() io.Writer { return t.rl.Stderr() }

func (t *Terminal) Close() error { return t.rl.Close() }

// plainReader reads unedited lines from a pipe or file, printing the prompt
// itself. A line longer than maxLineBytes is dropped with a diagnostic.
type plainReader struct {
	reader  *bufio.Reader
	console *Console
}

func NewPlainReader(r io.Reader, console *Console) LineReader {
	return &plainReader{reader: bufio.NewReader(r), console: console}
}

func (r *plainReader) Readline() (string, error) {
	r.console.Prompt()

	var line []byte
	tooLong := false
	for {
		chunk, isPrefix, err := r.reader.ReadLine()
		if err != nil {
			if err == io.EOF && (len(line) > 0 || tooLong) {
				break
			}
			return "", err
		}
		if !tooLong && len(line)+len(chunk) <= maxLineBytes {
			line = append(line, chunk...)
		} else {
			tooLong = true
			line = nil
		}
		if !isPrefix {
			break
		}
	}

	if tooLong {
		r.console.Errorf("Error: input line longer than %d bytes ignored", maxLineBytes)
		return "", nil
	}
	return string(line), nil
}

// Close leaves the underlying reader open; it usually is os.Stdin.
func (r *plainReader) Close() error { return nil }
