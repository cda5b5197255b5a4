package shell

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
)

// Command describes a single external program invocation.
type Command struct {
	// Name is the executable name or path.
	Name string
	// Args are passed verbatim, no shell is involved.
	Args []string
	// Dir is the working directory; empty means the current one.
	Dir string
	// Interactive streams stdio to the terminal instead of capturing it.
	Interactive bool
}

// String renders the command line for logs and error messages.
func (c Command) String() string {
	if len(c.Args) == 0 {
		return c.Name
	}

	return c.Name + " " + strings.Join(c.Args, " ")
}

// Result holds what a finished command produced. Output fields are empty
// for interactive commands.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Runner executes commands. Run blocks until the command exits, Start
// returns as soon as the process is spawned and never waits for it.
type Runner interface {
	Run(ctx context.Context, cmd Command) (*Result, error)
	Start(ctx context.Context, cmd Command) (int, error)
}

// ExitError reports a command that ran but exited with a non-zero status.
type ExitError struct {
	Command  string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("%s: exit status %d", e.Command, e.ExitCode)
	if stderr := strings.TrimSpace(e.Stderr); stderr != "" {
		msg += ": " + stderr
	}

	return msg
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// ExecRunner is the os/exec backed Runner.
type ExecRunner struct {
	// Stdin, Stdout and Stderr are used by interactive commands and
	// default to the process' own streams.
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// NewExecRunner returns a runner wired to the terminal.
func NewExecRunner() *ExecRunner {
	return &ExecRunner{
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	}
}

// Run executes the command and waits for it.
func (r *ExecRunner) Run(ctx context.Context, command Command) (*Result, error) {
	//nolint:gosec // Commands are assembled from settings, not from remote input.
	cmd := exec.CommandContext(ctx, command.Name, command.Args...)
	cmd.Dir = command.Dir

	var stdout, stderr bytes.Buffer

	if command.Interactive {
		cmd.Stdin = r.Stdin
		cmd.Stdout = r.Stdout
		cmd.Stderr = io.MultiWriter(r.Stderr, &stderr)
	} else {
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr
	}

	err := cmd.Run()

	result := &Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: cmd.ProcessState.ExitCode(),
	}

	if err == nil {
		return result, nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return result, fmt.Errorf("%s: %w", command, ctxErr)
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return result, &ExitError{
			Command:  command.String(),
			ExitCode: exitErr.ExitCode(),
			Stderr:   result.Stderr,
			Err:      err,
		}
	}

	return result, fmt.Errorf("run %s: %w", command, err)
}

// Start spawns the command and releases it. The child is not tied to ctx
// cancellation so it outlives the bootstrapper.
func (r *ExecRunner) Start(ctx context.Context, command Command) (int, error) {
	//nolint:gosec // Commands are assembled from settings, not from remote input.
	cmd := exec.CommandContext(context.WithoutCancel(ctx), command.Name, command.Args...)
	cmd.Dir = command.Dir
	cmd.Stdin = r.Stdin
	cmd.Stdout = r.Stdout
	cmd.Stderr = r.Stderr
	detach(cmd)

	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("start %s: %w", command, err)
	}

	pid := cmd.Process.Pid

	if err := cmd.Process.Release(); err != nil {
		return pid, fmt.Errorf("release %s: %w", command, err)
	}

	return pid, nil
}
