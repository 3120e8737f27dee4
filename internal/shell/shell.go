package shell

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"

	"github.com/chzyer/readline"
	"github.com/kballard/go-shellquote"
	"github.com/rs/zerolog"
	"golang.org/x/sys/unix"

	"jobshell/internal/config"
	"jobshell/internal/jobs"
	"jobshell/internal/launcher"
	"jobshell/internal/plugin"
)

// ErrExit is returned by Execute when the user asks the shell to exit.
var ErrExit = errors.New("exit requested")

type spawner interface {
	Spawn(argv []string, mode launcher.Mode) (int, error)
}

type Shell struct {
	config   *config.Config
	table    *jobs.Table
	launcher spawner
	reaper   *Reaper
	router   *Router
	fg       Foreground
	console  *Console
	reader   LineReader
	plugins  plugin.Registry
	signal   func(pid int, sig unix.Signal) error
	log      zerolog.Logger

	// sigchld plays the part of a self-pipe: the job table is only drained
	// from the main loop when something arrives here.
	sigchld    chan os.Signal
	interrupts chan os.Signal
	closeOnce  sync.Once
}

type Options struct {
	Reader  LineReader
	Console *Console
	Logger  zerolog.Logger
}

// New builds a shell and starts intercepting SIGCHLD, SIGINT and SIGTSTP.
// Close releases the signals.
func New(cfg *config.Config, opts Options) (*Shell, error) {
	plugins, err := plugin.LoadAll(cfg.Plugins, builtinNames)
	if err != nil {
		return nil, fmt.Errorf("error loading plugins: %w", err)
	}
	if cfg.Color {
		opts.Console.EnableColor()
	}

	logger := opts.Logger.With().Str("component", "shell").Logger()
	table := jobs.NewTable(cfg.MaxJobs)

	s := &Shell{
		config:     cfg,
		table:      table,
		launcher:   launcher.New(opts.Logger),
		console:    opts.Console,
		reader:     opts.Reader,
		plugins:    plugins,
		signal:     launcher.Signal,
		log:        logger,
		sigchld:    make(chan os.Signal, 1),
		interrupts: make(chan os.Signal, 4),
	}
	s.reaper = &Reaper{
		table:   table,
		console: opts.Console,
		wait:    unix.Wait4,
		signal:  launcher.Signal,
		log:     logger,
	}
	s.router = &Router{
		fg:      &s.fg,
		console: opts.Console,
		signal:  launcher.Signal,
		log:     logger,
	}

	signal.Notify(s.sigchld, unix.SIGCHLD)
	signal.Notify(s.interrupts, unix.SIGINT, unix.SIGTSTP)
	go s.router.Run(s.interrupts)

	return s, nil
}

// NewStdio builds a shell on the process's standard streams, using a line
// editor when stdin is a terminal.
func NewStdio(cfg *config.Config, logger zerolog.Logger) (*Shell, error) {
	if readline.IsTerminal(int(os.Stdin.Fd())) {
		term, err := NewTerminal(cfg.Prompt)
		if err != nil {
			return nil, fmt.Errorf("error initializing readline: %w", err)
		}
		console := NewConsole(term.Stdout(), term.Stderr(), cfg.Prompt, false)
		s, err := New(cfg, Options{Reader: term, Console: console, Logger: logger})
		if err != nil {
			term.Close()
			return nil, err
		}
		return s, nil
	}

	console := NewConsole(os.Stdout, os.Stderr, cfg.Prompt, true)
	return New(cfg, Options{
		Reader:  NewPlainReader(os.Stdin, console),
		Console: console,
		Logger:  logger,
	})
}

type readResult struct {
	line string
	err  error
}

// Run reads and executes lines until end of input or exit. Job notices are
// printed while it waits for the next line.
func (s *Shell) Run() error {
	if s.config.Banner {
		s.console.Banner()
	}

	lines := make(chan readResult)
	next := make(chan struct{}, 1)
	go s.readLines(next, lines)
	defer close(next)

	next <- struct{}{}
	for {
		select {
		case <-s.sigchld:
			s.drain()

		case res := <-lines:
			switch {
			case res.err == io.EOF:
				s.console.EOF()
				return nil
			case res.err != nil:
				return fmt.Errorf("error reading input: %w", res.err)
			}

			if err := s.Execute(res.line); err != nil {
				if errors.Is(err, ErrExit) {
					return nil
				}
				s.console.Errorf("Error: %v", err)
			}
			next <- struct{}{}
		}
	}
}

// readLines reads one line per request so that the prompt is never shown
// while a command is still running.
func (s *Shell) readLines(next <-chan struct{}, lines chan<- readResult) {
	for range next {
		line, err := s.reader.Readline()
		lines <- readResult{line: line, err: err}
	}
}

// Execute runs a single input line.
func (s *Shell) Execute(input string) error {
	args, background := parseLine(input)
	if len(args) == 0 {
		return nil
	}

	if ok, err := s.executeBuiltin(args); ok {
		return err
	}
	return s.runExternal(args, background)
}

// parseLine splits input into words. The first "&" field, split on blanks
// only, marks the command for the background and ends it. Quotes group words
// in the text before it; backslashes are kept as typed. Input the quoting
// rules reject is split on whitespace instead.
func parseLine(input string) ([]string, bool) {
	line, background := cutBackground(input)
	words, err := shellquote.Split(literalBackslashes(line))
	if err != nil {
		words = strings.Fields(line)
	}
	return words, background
}

func isBlank(c byte) bool { return c == ' ' || c == '\t' }

// cutBackground returns the text before the first "&" field.
func cutBackground(line string) (string, bool) {
	for i := 0; i < len(line); {
		for i < len(line) && isBlank(line[i]) {
			i++
		}
		start := i
		for i < len(line) && !isBlank(line[i]) {
			i++
		}
		if line[start:i] == "&" {
			return line[:start], true
		}
	}
	return line, false
}

// literalBackslashes doubles every backslash outside single quotes, so that
// shellquote hands each one back unchanged.
func literalBackslashes(line string) string {
	if !strings.Contains(line, `\`) {
		return line
	}
	var b strings.Builder
	var single, double bool
	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case c == '\'' && !double:
			single = !single
		case c == '"' && !single:
			double = !double
		case c == '\\' && !single:
			b.WriteByte('\\')
		}
		b.WriteByte(c)
	}
	return b.String()
}

func (s *Shell) drain() {
	if _, err := s.reaper.Drain(0); err != nil {
		s.console.Errorf("%v", err)
	}
}

// Close stops signal interception and closes the line reader.
func (s *Shell) Close() error {
	var err error
	s.closeOnce.Do(func() {
		signal.Stop(s.sigchld)
		signal.Stop(s.interrupts)
		close(s.interrupts)
		err = s.reader.Close()
	})
	return err
}
