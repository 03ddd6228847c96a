package shell

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/chzyer/readline"
)

// errInterrupt is returned by a line read that was cut short by an
// interrupt (SIGINT, or Ctrl-C under readline).
var errInterrupt = errors.New("interrupted")

// lineSource produces input lines without their line terminator.
type lineSource interface {
	readLine(prompt string) (string, error)
	close() error
}

// streamSource reads from a plain stream.  It never shows a prompt.
type streamSource struct {
	r *bufio.Reader
}

func (s *streamSource) readLine(string) (string, error) {
	line, err := s.r.ReadString('\n')
	if err != nil {
		// A final unterminated line still counts; EOF surfaces on the
		// next call.
		if errors.Is(err, io.EOF) && line != "" {
			return trimEOL(line), nil
		}
		return "", err
	}
	return trimEOL(line), nil
}

func (s *streamSource) close() error { return nil }

func trimEOL(line string) string {
	return strings.TrimRight(line, "\r\n")
}

// terminalSource reads through readline: line editing, history and
// completion of visible command names.
type terminalSource struct {
	rl *readline.Instance
}

func newTerminalSource(in io.Reader, out io.Writer, historyFile string, names func() []string) (*terminalSource, error) {
	rc, ok := in.(io.ReadCloser)
	if !ok {
		rc = io.NopCloser(in)
	}
	completer := readline.NewPrefixCompleter(
		readline.PcItemDynamic(func(string) []string { return names() }),
	)
	rl, err := readline.NewEx(&readline.Config{
		Stdin:           rc,
		Stdout:          out,
		Stderr:          out,
		HistoryFile:     historyFile,
		AutoComplete:    completer,
		InterruptPrompt: "^C",
	})
	if err != nil {
		return nil, err
	}
	return &terminalSource{rl: rl}, nil
}

func (s *terminalSource) readLine(prompt string) (string, error) {
	s.rl.SetPrompt(prompt)
	line, err := s.rl.Readline()
	if errors.Is(err, readline.ErrInterrupt) {
		return "", errInterrupt
	}
	return line, err
}

func (s *terminalSource) close() error { return s.rl.Close() }

type readResult struct {
	line string
	err  error
}

// lineReader runs blocking reads on a helper goroutine so a read can be
// abandoned on interrupt or cancellation.  Exactly one line is read per
// request, so nothing past the final command is consumed.
type lineReader struct {
	src     lineSource
	prompts chan string
	results chan readResult
	done    chan struct{}
	start   sync.Once
	stop    sync.Once
	pending bool
}

func newLineReader(src lineSource) *lineReader {
	return &lineReader{
		src:     src,
		prompts: make(chan string),
		results: make(chan readResult),
		done:    make(chan struct{}),
	}
}

// next returns the next input line.  A read interrupted by a signal
// stays outstanding; the following call collects its result.
func (r *lineReader) next(ctx context.Context, prompt string, interrupts <-chan os.Signal) (string, error) {
	r.start.Do(func() { go r.loop() })

	if !r.pending {
		select {
		case r.prompts <- prompt:
			r.pending = true
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	select {
	case res := <-r.results:
		r.pending = false
		return res.line, res.err
	case <-interrupts:
		return "", errInterrupt
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (r *lineReader) loop() {
	for {
		select {
		case prompt := <-r.prompts:
			line, err := r.src.readLine(prompt)
			select {
			case r.results <- readResult{line, err}:
			case <-r.done:
				return
			}
		case <-r.done:
			return
		}
	}
}

// close stops the helper goroutine.  A read blocked inside the source
// ends when the underlying stream is closed by its owner.
func (r *lineReader) close() error {
	var err error
	r.stop.Do(func() {
		close(r.done)
		err = r.src.close()
	})
	return err
}
