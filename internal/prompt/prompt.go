package prompt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/chzyer/readline"
)

// ErrInterrupted is returned when the user presses Ctrl-C at a prompt.
var ErrInterrupted = errors.New("operation interrupted by user")

// ansiBlue and ansiReset colour the question like the rest of the output.
const (
	ansiBlue  = "\033[34m"
	ansiReset = "\033[0m"
)

// Prompter asks a question and reports whether the answer was yes.
type Prompter interface {
	Confirm(ctx context.Context, question string) (bool, error)
}

// Readline prompts on the terminal using one readline instance for the
// whole run, so no stray reader is left behind between questions.
type Readline struct {
	stdin  io.Reader
	stdout io.Writer

	mu       sync.Mutex
	input    *readline.CancelableStdin
	instance *readline.Instance
	// eof is set once stdin is exhausted; every later question is a "no".
	eof bool
}

// NewReadline returns a prompter bound to the process' terminal.
func NewReadline() *Readline {
	return newReadline(os.Stdin, os.Stdout)
}

func newReadline(stdin io.Reader, stdout io.Writer) *Readline {
	return &Readline{
		stdin:  stdin,
		stdout: stdout,
	}
}

// Confirm shows the question and reads one line. EOF counts as "no".
func (p *Readline) Confirm(ctx context.Context, question string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.eof {
		return false, nil
	}

	rl, err := p.open()
	if err != nil {
		return false, err
	}

	rl.SetPrompt(ansiBlue + strings.TrimSpace(question) + " " + ansiReset)

	type answer struct {
		line string
		err  error
	}

	answers := make(chan answer, 1)

	go func() {
		line, readErr := rl.Readline()
		answers <- answer{line: line, err: readErr}
	}()

	select {
	case <-ctx.Done():
		// The pending read is abandoned; the instance is unusable after it.
		_ = p.teardown()

		return false, ctx.Err()
	case a := <-answers:
		if a.err == nil {
			return ParseAnswer(a.line), nil
		}

		if errors.Is(a.err, io.EOF) {
			p.eof = true
			_ = p.teardown()
		}

		return false, mapReadError(a.err)
	}
}

// Close restores the terminal and stops reading stdin.
func (p *Readline) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.teardown()
}

func (p *Readline) open() (*readline.Instance, error) {
	if p.instance != nil {
		return p.instance, nil
	}

	input := readline.NewCancelableStdin(p.stdin)

	//nolint:exhaustruct // Defaults are fine for the remaining readline options.
	rl, err := readline.NewEx(&readline.Config{
		HistoryLimit:    -1,
		InterruptPrompt: "^C",
		Stdin:           input,
		Stdout:          p.stdout,
	})
	if err != nil {
		_ = input.Close()

		return nil, fmt.Errorf("open prompt: %w", err)
	}

	p.input = input
	p.instance = rl

	return rl, nil
}

// teardown closes the instance. Instance.Close waits for the terminal
// reader, which only returns once the cancelable input is closed.
func (p *Readline) teardown() error {
	if p.instance == nil {
		return nil
	}

	_ = p.input.Close()
	err := p.instance.Close()

	p.instance = nil
	p.input = nil

	return err
}

// mapReadError turns readline terminators into prompt results.
func mapReadError(err error) error {
	switch {
	case errors.Is(err, readline.ErrInterrupt):
		return ErrInterrupted
	case errors.Is(err, io.EOF):
		return nil
	default:
		return fmt.Errorf("read answer: %w", err)
	}
}

// ParseAnswer accepts "y", "yes", "Y " and similar as consent.
func ParseAnswer(line string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(line)), "y")
}

// Fixed answers every question the same way without asking. It backs the
// --yes flag and is handy in tests.
type Fixed struct {
	// Answer is returned for every question.
	Answer bool
	// Asked collects the questions in order.
	Asked []string
}

// Confirm implements Prompter.
func (f *Fixed) Confirm(ctx context.Context, question string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	f.Asked = append(f.Asked, question)

	return f.Answer, nil
}
