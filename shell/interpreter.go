package shell

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"unicode"

	"cmdshell/internal/metrics"
	"cmdshell/util"
)

// DefaultPrompt is shown before each line when reading from a terminal.
const DefaultPrompt = "> "

// Factory builds a fresh interpreter over one session's streams.  [New]
// satisfies it; servers use a closure to carry construction parameters.
type Factory func(in io.Reader, out io.Writer, opts ...Option) *Interpreter

// Option configures an Interpreter at construction time.
type Option func(*Interpreter)

// WithCommands registers cmds after the builtins, replacing any command
// with the same name.
func WithCommands(cmds ...Command) Option {
	return func(sh *Interpreter) { sh.Register(cmds...) }
}

// WithHidden hides names from listings and completion.
func WithHidden(names ...string) Option {
	return func(sh *Interpreter) { sh.Hide(names...) }
}

// WithDisabled rejects names at dispatch time.
func WithDisabled(names ...string) Option {
	return func(sh *Interpreter) { sh.Disable(names...) }
}

// WithPrompt sets the terminal prompt.
func WithPrompt(prompt string) Option {
	return func(sh *Interpreter) { sh.prompt = prompt }
}

// WithIntro sets a banner printed once when Run starts.
func WithIntro(intro string) Option {
	return func(sh *Interpreter) { sh.intro = intro }
}

// WithRawInput reads through a line editor with prompt, history and
// completion.  Use it only when the input is a real terminal.
func WithRawInput() Option {
	return func(sh *Interpreter) { sh.rawInput = true }
}

// WithHistoryFile persists raw-input history to path.
func WithHistoryFile(path string) Option {
	return func(sh *Interpreter) { sh.historyFile = path }
}

// WithInterrupts delivers interrupt signals to the read loop, which
// reports them and keeps the session alive.
func WithInterrupts(ch <-chan os.Signal) Option {
	return func(sh *Interpreter) { sh.interrupts = ch }
}

// WithLogger sets the logger handed to commands via [Interpreter.Logger].
func WithLogger(l *util.Logger) Option {
	return func(sh *Interpreter) { sh.logger = l }
}

// WithMetrics counts dispatched and rejected commands.
func WithMetrics(m *metrics.Collector) Option {
	return func(sh *Interpreter) { sh.metrics = m }
}

// Interpreter is a line-oriented command processor bound to one input
// and one output stream.  It serves exactly one session.
type Interpreter struct {
	commands map[string]Command
	hidden   map[string]bool
	disabled map[string]bool

	reader *lineReader
	out    *errWriter

	rawInput    bool
	prompt      string
	intro       string
	historyFile string
	interrupts  <-chan os.Signal
	logger      *util.Logger
	metrics     *metrics.Collector
}

// New returns an interpreter reading lines from in and writing to out.
func New(in io.Reader, out io.Writer, opts ...Option) *Interpreter {
	sh := &Interpreter{
		commands: make(map[string]Command),
		hidden:   map[string]bool{cmdEOF: true},
		disabled: make(map[string]bool),
		out:      &errWriter{w: out},
		prompt:   DefaultPrompt,
	}
	sh.Register(builtins()...)
	for _, opt := range opts {
		opt(sh)
	}

	var src lineSource
	if sh.rawInput {
		ts, err := newTerminalSource(in, out, sh.historyFile, sh.ListCommands)
		if err != nil {
			if sh.logger != nil {
				sh.logger.Warn("line editing unavailable, reading plain input: %v", err)
			}
			sh.rawInput = false
		} else {
			src = ts
		}
	}
	if src == nil {
		src = &streamSource{r: bufio.NewReader(in)}
	}
	sh.reader = newLineReader(src)
	return sh
}

// Register adds commands to the table.
func (sh *Interpreter) Register(cmds ...Command) {
	for _, c := range cmds {
		if c.Name == "" || c.Run == nil {
			continue
		}
		sh.commands[c.Name] = c
	}
}

// Hide excludes names from listings and completion.  Hidden commands
// remain invocable.
func (sh *Interpreter) Hide(names ...string) {
	for _, n := range names {
		sh.hidden[n] = true
	}
}

// Unhide reverses [Interpreter.Hide].
func (sh *Interpreter) Unhide(names ...string) {
	for _, n := range names {
		delete(sh.hidden, n)
	}
}

// Disable makes names unlisted and uninvocable; they report as unknown.
// "exit" and "EOF" cannot be disabled.
func (sh *Interpreter) Disable(names ...string) {
	for _, n := range names {
		if undisableable(n) {
			continue
		}
		sh.disabled[n] = true
	}
}

// Enable reverses [Interpreter.Disable].
func (sh *Interpreter) Enable(names ...string) {
	for _, n := range names {
		delete(sh.disabled, n)
	}
}

// IsDisabled reports whether name is currently disabled.
func (sh *Interpreter) IsDisabled(name string) bool { return sh.disabled[name] }

// IsHidden reports whether name is currently hidden.
func (sh *Interpreter) IsHidden(name string) bool { return sh.hidden[name] }

// Logger returns the logger set with [WithLogger], or nil.
func (sh *Interpreter) Logger() *util.Logger { return sh.logger }

// ListCommands returns the registered command names that are neither
// hidden nor disabled, sorted.
func (sh *Interpreter) ListCommands() []string {
	names := make([]string, 0, len(sh.commands))
	for name := range sh.commands {
		if sh.hidden[name] || sh.disabled[name] {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Run reads and dispatches lines until a command terminates the
// session.  It returns nil on normal termination, ctx.Err() on
// cancellation, and the underlying error when the input or output
// stream fails.
func (sh *Interpreter) Run(ctx context.Context) error {
	defer sh.reader.close()

	if sh.intro != "" {
		sh.PrintLine(sh.intro)
	}

	for {
		if err := sh.out.err; err != nil {
			return fmt.Errorf("write output: %w", err)
		}

		line, err := sh.reader.next(ctx, sh.prompt, sh.interrupts)
		switch {
		case err == nil:
		case errors.Is(err, errInterrupt):
			sh.PrintLine("")
			sh.PrintError("Please use the 'exit' command to quit")
			continue
		case errors.Is(err, io.EOF):
			line = cmdEOF
		case ctx.Err() != nil:
			return ctx.Err()
		default:
			return fmt.Errorf("read input: %w", err)
		}

		if sh.Dispatch(line) == Terminate {
			if err := sh.out.err; err != nil {
				return fmt.Errorf("write output: %w", err)
			}
			return nil
		}
	}
}

// Dispatch preprocesses and executes one line:
//
//   - a blank line does nothing;
//   - a disabled first word reports an unknown command;
//   - "NAME ?" shows help for NAME instead of running it;
//   - anything else runs the named command with the rest of the line.
func (sh *Interpreter) Dispatch(line string) Outcome {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Continue
	}
	if sh.disabled[fields[0]] {
		return sh.unknown(fields[0])
	}
	if len(fields) > 1 && fields[1] == "?" {
		sh.Help(fields[0])
		return Continue
	}

	name, args := parseLine(line)
	cmd, ok := sh.commands[name]
	if !ok || sh.disabled[name] {
		return sh.unknown(name)
	}
	sh.metrics.CommandDispatched()
	return cmd.Run(sh, args)
}

// parseLine splits a line into command name and argument text.  A
// leading "?" is shorthand for "help".
func parseLine(line string) (name, args string) {
	line = strings.TrimSpace(line)
	if strings.HasPrefix(line, "?") {
		line = cmdHelp + " " + line[1:]
	}
	i := strings.IndexFunc(line, unicode.IsSpace)
	if i < 0 {
		return line, ""
	}
	return line[:i], strings.TrimSpace(line[i:])
}

func firstField(s string) string {
	if f := strings.Fields(s); len(f) > 0 {
		return f[0]
	}
	return ""
}

func (sh *Interpreter) unknown(name string) Outcome {
	sh.metrics.UnknownCommand()
	sh.PrintError("unknown command: " + name)
	return Unknown
}

// ── output ───────────────────────────────────────────────────────────

// Out returns the session's output stream.
func (sh *Interpreter) Out() io.Writer { return sh.out }

// Printf writes formatted text to the output stream.
func (sh *Interpreter) Printf(format string, args ...interface{}) {
	fmt.Fprintf(sh.out, format, args...)
}

// PrintLine writes s followed by a newline.
func (sh *Interpreter) PrintLine(s string) {
	fmt.Fprintln(sh.out, s)
}

// PrintError writes s as an error line.
func (sh *Interpreter) PrintError(s string) {
	fmt.Fprintln(sh.out, "[-] "+s)
}

// PrintStatus writes s as a status line.
func (sh *Interpreter) PrintStatus(s string) {
	fmt.Fprintln(sh.out, "[*] "+s)
}

// PrintGood writes s as a success line.
func (sh *Interpreter) PrintGood(s string) {
	fmt.Fprintln(sh.out, "[+] "+s)
}

// errWriter remembers the first write error so the read-eval loop can
// end a session whose peer has gone away.
type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) Write(p []byte) (int, error) {
	if e.err != nil {
		return 0, e.err
	}
	n, err := e.w.Write(p)
	if err != nil {
		e.err = err
	}
	return n, err
}
