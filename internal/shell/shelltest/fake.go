// Package shelltest provides a scripted shell.Runner for tests.
package shelltest

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/oshokin/s2l-bootstrap/internal/shell"
)

// Response is what the fake returns for a matching command line.
type Response struct {
	Stdout   string
	Stderr   string
	ExitCode int
	// Err, when set, is returned as a spawn failure (binary missing etc.).
	Err error
	// Hook runs before the response is returned, e.g. to touch files.
	Hook func(cmd shell.Command)
}

// Fake records every command and answers from a table keyed by command
// line prefix. The longest matching prefix wins; unmatched commands succeed
// with empty output.
type Fake struct {
	mu        sync.Mutex
	responses map[string][]Response
	calls     []shell.Command
	started   []shell.Command
	nextPID   int
}

// New returns an empty fake.
func New() *Fake {
	return &Fake{
		responses: make(map[string][]Response),
		nextPID:   1000,
	}
}

// On queues a response for command lines starting with prefix. Several
// responses for one prefix are consumed in order; the last one sticks.
func (f *Fake) On(prefix string, resp Response) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.responses[prefix] = append(f.responses[prefix], resp)

	return f
}

// Run implements shell.Runner.
func (f *Fake) Run(ctx context.Context, cmd shell.Command) (*shell.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	resp := f.record(cmd, false)
	if resp.Hook != nil {
		resp.Hook(cmd)
	}

	if resp.Err != nil {
		return nil, resp.Err
	}

	result := &shell.Result{
		Stdout:   resp.Stdout,
		Stderr:   resp.Stderr,
		ExitCode: resp.ExitCode,
	}

	if resp.ExitCode != 0 {
		return result, &shell.ExitError{
			Command:  cmd.String(),
			ExitCode: resp.ExitCode,
			Stderr:   resp.Stderr,
			Err:      errors.New("fake exit"),
		}
	}

	return result, nil
}

// Start implements shell.Runner.
func (f *Fake) Start(ctx context.Context, cmd shell.Command) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	resp := f.record(cmd, true)
	if resp.Err != nil {
		return 0, resp.Err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.nextPID++

	return f.nextPID, nil
}

// Calls returns the command lines passed to Run, in order.
func (f *Fake) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	return render(f.calls)
}

// Started returns the command lines passed to Start, in order.
func (f *Fake) Started() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	return render(f.started)
}

// Commands returns the raw commands passed to Run.
func (f *Fake) Commands() []shell.Command {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]shell.Command(nil), f.calls...)
}

// Called reports whether any Run or Start command line starts with prefix.
func (f *Fake) Called(prefix string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, line := range append(render(f.calls), render(f.started)...) {
		if strings.HasPrefix(line, prefix) {
			return true
		}
	}

	return false
}

func (f *Fake) record(cmd shell.Command, started bool) Response {
	f.mu.Lock()
	defer f.mu.Unlock()

	if started {
		f.started = append(f.started, cmd)
	} else {
		f.calls = append(f.calls, cmd)
	}

	line := cmd.String()
	best := ""
	found := false

	for prefix := range f.responses {
		if strings.HasPrefix(line, prefix) && (!found || len(prefix) > len(best)) {
			best = prefix
			found = true
		}
	}

	if !found {
		return Response{}
	}

	queue := f.responses[best]
	resp := queue[0]

	if len(queue) > 1 {
		f.responses[best] = queue[1:]
	}

	return resp
}

func render(cmds []shell.Command) []string {
	lines := make([]string, 0, len(cmds))
	for _, cmd := range cmds {
		lines = append(lines, cmd.String())
	}

	return lines
}
