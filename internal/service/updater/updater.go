package updater

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/oshokin/s2l-bootstrap/internal/logger"
	"github.com/oshokin/s2l-bootstrap/internal/prompt"
	"github.com/oshokin/s2l-bootstrap/internal/shell"
)

// UpToDateMarker is what git prints when the pull brought nothing new.
const UpToDateMarker = "Already up to date"

// Outcome is the result of an update check.
type Outcome int

const (
	// OutcomeMissing means there is no companion folder to update.
	OutcomeMissing Outcome = iota
	// OutcomeDeclined means the user did not want to update.
	OutcomeDeclined
	// OutcomeUpToDate means the pull succeeded without new commits.
	OutcomeUpToDate
	// OutcomeUpdated means new commits were applied; a relaunch is due.
	OutcomeUpdated
	// OutcomeFailed means the pull failed and was skipped.
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeMissing:
		return "missing"
	case OutcomeDeclined:
		return "declined"
	case OutcomeUpToDate:
		return "up-to-date"
	case OutcomeUpdated:
		return "updated"
	case OutcomeFailed:
		return "failed"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// ErrClone is returned when the companion repository could not be cloned.
var ErrClone = errors.New("clone failed")

// Checker updates the companion checkout.
type Checker struct {
	runner   shell.Runner
	prompter prompt.Prompter
	dir      string
}

// NewChecker returns a checker for the companion folder dir.
func NewChecker(runner shell.Runner, prompter prompt.Prompter, dir string) *Checker {
	return &Checker{
		runner:   runner,
		prompter: prompter,
		dir:      dir,
	}
}

// Exists reports whether the companion folder is present.
func (c *Checker) Exists() bool {
	info, err := os.Stat(c.dir)

	return err == nil && info.IsDir()
}

// Check asks whether to update and pulls when the user agrees. Only
// cancellation is returned as an error; git failures end in OutcomeFailed.
func (c *Checker) Check(ctx context.Context) (Outcome, error) {
	ctx = logger.WithName(ctx, "updater")

	if !c.Exists() {
		logger.Warnf(ctx, "%s folder not found. Skipping repository updates.", c.dir)
		return OutcomeMissing, nil
	}

	question := fmt.Sprintf("Would you like to check for updates in the %s folder? (y/n):", c.dir)

	agreed, err := c.prompter.Confirm(ctx, question)
	if err != nil {
		return OutcomeDeclined, err
	}

	if !agreed {
		logger.Warnf(ctx, "Skipping updates for the %s repository.", c.dir)
		return OutcomeDeclined, nil
	}

	return c.Pull(ctx)
}

// Pull rebases the checkout onto its upstream.
func (c *Checker) Pull(ctx context.Context) (Outcome, error) {
	logger.Infof(ctx, "Checking for updates in the %s folder...", c.dir)

	res, err := c.runner.Run(ctx, shell.Command{
		Name: "git",
		Args: []string{"pull", "--rebase"},
		Dir:  c.dir,
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return OutcomeFailed, ctxErr
		}

		logger.Errorf(ctx, "Failed to check for updates in the %s folder. Error details:", c.dir)

		details := err.Error()
		if res != nil && strings.TrimSpace(res.Stderr) != "" {
			details = strings.TrimSpace(res.Stderr)
		}

		logger.Warn(ctx, details)

		return OutcomeFailed, nil
	}

	if strings.Contains(res.Stdout, UpToDateMarker) {
		logger.Infof(ctx, "No updates available in the %s repository.", c.dir)
		return OutcomeUpToDate, nil
	}

	logger.Infof(ctx, "Updates have been applied to the %s repository.", c.dir)

	return OutcomeUpdated, nil
}

// Clone fetches the companion repository when its folder is missing.
// It returns false when the folder was already there.
func (c *Checker) Clone(ctx context.Context, repositoryURL string) (bool, error) {
	ctx = logger.WithName(ctx, "updater")

	if c.Exists() {
		return false, nil
	}

	logger.InfoKV(ctx, "Cloning companion repository", "url", repositoryURL, "dir", c.dir)

	_, err := c.runner.Run(ctx, shell.Command{
		Name:        "git",
		Args:        []string{"clone", repositoryURL, c.dir},
		Interactive: true,
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return false, ctxErr
		}

		return false, fmt.Errorf("%s: %w: %w", repositoryURL, ErrClone, err)
	}

	return true, nil
}
