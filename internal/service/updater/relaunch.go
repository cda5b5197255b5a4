package updater

import (
	"context"
	"fmt"
	"os"

	"github.com/oshokin/s2l-bootstrap/internal/logger"
)

// ExecFunc replaces the running program with argv0 started with argv.
type ExecFunc func(argv0 string, argv []string, envv []string) error

// Relauncher re-executes the bootstrapper with its original arguments.
type Relauncher struct {
	args       []string
	executable func() (string, error)
	exec       ExecFunc
}

// NewRelauncher returns a relauncher for the given argv (usually os.Args).
func NewRelauncher(args []string) *Relauncher {
	return &Relauncher{
		args:       append([]string(nil), args...),
		executable: os.Executable,
		exec:       execSelf,
	}
}

// WithExec swaps the exec implementation. Used by tests.
func (r *Relauncher) WithExec(fn ExecFunc) *Relauncher {
	r.exec = fn
	return r
}

// Relaunch only returns when the exec failed.
func (r *Relauncher) Relaunch(ctx context.Context) error {
	executable, err := r.executable()
	if err != nil {
		return fmt.Errorf("resolve executable: %w", err)
	}

	argv := r.args
	if len(argv) == 0 {
		argv = []string{executable}
	}

	logger.Info(logger.WithName(ctx, "updater"), "Restarting the bootstrap to use the updated repository...")
	logger.Sync()

	if err = r.exec(executable, argv, os.Environ()); err != nil {
		return fmt.Errorf("relaunch %s: %w", executable, err)
	}

	return nil
}
