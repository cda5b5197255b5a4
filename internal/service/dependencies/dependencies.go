package dependencies

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/oshokin/s2l-bootstrap/internal/config"
	"github.com/oshokin/s2l-bootstrap/internal/domain/variant"
	"github.com/oshokin/s2l-bootstrap/internal/logger"
	"github.com/oshokin/s2l-bootstrap/internal/prompt"
	"github.com/oshokin/s2l-bootstrap/internal/shell"
)

// ErrInstall is returned when pip fails.
var ErrInstall = errors.New("dependency installation failed")

const gpuQuestion = "Do you want to use the CUDA variant of PyTorch " +
	"(huge performance boost on NVIDIA GPUs)? y/n:"

// Installer runs pip inside the companion folder.
type Installer struct {
	runner      shell.Runner
	prompter    prompt.Prompter
	interpreter string
	dir         string
	goos        string
	settings    *config.Config
}

// NewInstaller returns an installer using the given interpreter.
func NewInstaller(
	runner shell.Runner,
	prompter prompt.Prompter,
	interpreter string,
	goos string,
	cfg *config.Config,
) *Installer {
	return &Installer{
		runner:      runner,
		prompter:    prompter,
		interpreter: interpreter,
		dir:         cfg.CompanionDir,
		goos:        goos,
		settings:    cfg,
	}
}

// Install installs the requirements manifest unconditionally.
func (i *Installer) Install(ctx context.Context) error {
	ctx = logger.WithName(ctx, "dependencies")

	logger.InfoKV(ctx, "Installing requirements", "manifest", i.settings.Requirements)

	return i.pip(ctx, "install", "-r", i.settings.Requirements)
}

// SelectVariant swaps in the CUDA build or drops it, when both module
// files are still present. It returns the applied variant, or "" when
// nothing had to be done.
func (i *Installer) SelectVariant(ctx context.Context) (variant.Variant, error) {
	ctx = logger.WithName(ctx, "variant")

	modules := variant.Modules{
		CPU: i.settings.Accelerator.CPUModule,
		GPU: i.settings.Accelerator.GPUModule,
	}

	plan := variant.Decide(i.goos, i.exists(modules.CPU), i.exists(modules.GPU))
	if !plan.Applicable {
		logger.Debugf(ctx, "Accelerator variant already selected, nothing to do")
		return "", nil
	}

	var wantsGPU bool

	if plan.AskUser {
		var err error
		if wantsGPU, err = i.prompter.Confirm(ctx, gpuQuestion); err != nil {
			return "", err
		}
	} else {
		logger.Info(ctx, "Your system is not compatible with CUDA anyway, using non-CUDA version.")
	}

	chosen := plan.Choose(wantsGPU)

	if chosen == variant.GPU {
		if err := i.installGPU(ctx); err != nil {
			return "", err
		}
	}

	obsolete := modules.Obsolete(chosen)
	if err := os.Remove(filepath.Join(i.dir, obsolete)); err != nil {
		return chosen, fmt.Errorf("remove %s: %w", obsolete, err)
	}

	logger.InfoKV(ctx, "Accelerator variant selected", "variant", string(chosen), "removed", obsolete)

	return chosen, nil
}

// installGPU replaces the default accelerator package with its CUDA build.
func (i *Installer) installGPU(ctx context.Context) error {
	acc := i.settings.Accelerator

	if err := i.pip(ctx, "uninstall", acc.Package, "-y"); err != nil {
		return err
	}

	args := append([]string{"install", acc.Package}, acc.ExtraPackages...)
	args = append(args, "--index-url", acc.IndexURL)

	return i.pip(ctx, args...)
}

func (i *Installer) pip(ctx context.Context, args ...string) error {
	cmd := shell.Command{
		Name:        i.interpreter,
		Args:        append([]string{"-m", "pip"}, args...),
		Dir:         i.dir,
		Interactive: true,
	}

	if _, err := i.runner.Run(ctx, cmd); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		return fmt.Errorf("pip %s: %w: %w", args[0], ErrInstall, err)
	}

	return nil
}

func (i *Installer) exists(name string) bool {
	_, err := os.Stat(filepath.Join(i.dir, name))

	return err == nil
}
