package launcher

import (
	"context"
	"errors"
	"fmt"

	"github.com/oshokin/s2l-bootstrap/internal/config"
	"github.com/oshokin/s2l-bootstrap/internal/logger"
	"github.com/oshokin/s2l-bootstrap/internal/shell"
)

// ErrLaunch is returned when the application could not be started or,
// in wait mode, exited with a failure.
var ErrLaunch = errors.New("launch failed")

// Launcher starts the entry point.
type Launcher struct {
	runner      shell.Runner
	interpreter string
	dir         string
	entryPoint  string
	mode        config.LaunchMode
}

// New returns a launcher for the companion application.
func New(runner shell.Runner, interpreter string, cfg *config.Config) *Launcher {
	return &Launcher{
		runner:      runner,
		interpreter: interpreter,
		dir:         cfg.CompanionDir,
		entryPoint:  cfg.EntryPoint,
		mode:        cfg.Launch,
	}
}

// Launch starts the application. In detach mode it returns right after
// the process is spawned.
func (l *Launcher) Launch(ctx context.Context) error {
	ctx = logger.WithName(ctx, "launcher")

	cmd := shell.Command{
		Name:        l.interpreter,
		Args:        []string{l.entryPoint},
		Dir:         l.dir,
		Interactive: true,
	}

	logger.Info(ctx, "Installation and setup are complete. Launching the application...")

	if l.mode == config.LaunchWait {
		if _, err := l.runner.Run(ctx, cmd); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}

			return fmt.Errorf("%s: %w: %w", cmd, ErrLaunch, err)
		}

		logger.Info(ctx, "The application has exited.")

		return nil
	}

	pid, err := l.runner.Start(ctx, cmd)
	if err != nil {
		return fmt.Errorf("%s: %w: %w", cmd, ErrLaunch, err)
	}

	logger.InfoKV(ctx, "Application started", "pid", pid)

	return nil
}
