package bootstrap

import (
	"context"
	"os"
	"strings"

	"github.com/oshokin/s2l-bootstrap/internal/config"
	"github.com/oshokin/s2l-bootstrap/internal/domain/variant"
	"github.com/oshokin/s2l-bootstrap/internal/logger"
	"github.com/oshokin/s2l-bootstrap/internal/platform"
	"github.com/oshokin/s2l-bootstrap/internal/prompt"
	"github.com/oshokin/s2l-bootstrap/internal/repository/marker"
	"github.com/oshokin/s2l-bootstrap/internal/service/dependencies"
	"github.com/oshokin/s2l-bootstrap/internal/service/environment"
	"github.com/oshokin/s2l-bootstrap/internal/service/launcher"
	"github.com/oshokin/s2l-bootstrap/internal/service/toolchain"
	"github.com/oshokin/s2l-bootstrap/internal/service/updater"
	"github.com/oshokin/s2l-bootstrap/internal/shell"
)

// Options are inputs accepted by the bootstrap entry point.
type Options struct {
	// ConfigPath is the optional settings file.
	ConfigPath string
	// EnvironmentName overrides the configured environment (first CLI argument).
	EnvironmentName string
	// CompanionDir overrides the configured companion folder.
	CompanionDir string
	// Launch overrides the configured launch mode when not empty.
	Launch config.LaunchMode
	// AssumeYes answers every question with yes.
	AssumeYes bool
	// Args is the full argv used to relaunch after an update.
	Args []string
}

// Relauncher restarts the bootstrapper after the companion project changed.
type Relauncher interface {
	Relaunch(ctx context.Context) error
}

// Deps are the collaborators of the pipeline.
type Deps struct {
	Runner     shell.Runner
	Prompter   prompt.Prompter
	Platform   *platform.Platform
	Relauncher Relauncher
	Marker     *marker.FileRepository
	// ToolchainOptions tune downloads, mostly for tests.
	ToolchainOptions []toolchain.Option
}

// Report summarises what a run did.
type Report struct {
	EnvironmentName    string
	Interpreter        string
	Update             updater.Outcome
	Relaunched         bool
	EnvironmentCreated bool
	Cloned             bool
	Variant            variant.Variant
}

// Run loads settings, wires the real collaborators and executes the pipeline.
func Run(ctx context.Context, opts *Options) (*Report, error) {
	ctx = logger.WithName(ctx, "s2l-bootstrap")

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, err
	}

	if dir := strings.TrimSpace(opts.CompanionDir); dir != "" {
		cfg.CompanionDir = dir
	}

	if opts.Launch != "" {
		cfg.Launch = opts.Launch
	}

	if err = config.Validate(cfg); err != nil {
		return nil, err
	}

	plat, err := platform.Detect()
	if err != nil {
		return nil, err
	}

	var prompter prompt.Prompter = &prompt.Fixed{Answer: true}

	if !opts.AssumeYes {
		readline := prompt.NewReadline()

		defer func() {
			_ = readline.Close()
		}()

		prompter = readline
	}

	args := opts.Args
	if len(args) == 0 {
		args = os.Args
	}

	deps := Deps{
		Runner:     shell.NewExecRunner(),
		Prompter:   prompter,
		Platform:   plat,
		Relauncher: updater.NewRelauncher(args),
		Marker:     marker.NewFileRepository(marker.DefaultFilename),
	}

	return Execute(ctx, cfg, opts.EnvironmentName, deps)
}

// Execute runs the pipeline top to bottom and stops at the first failure.
//
//nolint:cyclop,funlen // The pipeline is deliberately one linear sequence.
func Execute(ctx context.Context, cfg *config.Config, envName string, deps Deps) (*Report, error) {
	if envName = strings.TrimSpace(envName); envName == "" {
		envName = cfg.EnvironmentName
	}

	report := &Report{EnvironmentName: envName}

	if _, err := deps.Marker.Acquire(ctx); err != nil {
		return report, wrap(StepLock, err)
	}

	defer func() {
		if err := deps.Marker.Release(ctx); err != nil {
			logger.WarnKV(ctx, "Failed to remove bootstrap marker", "error", err)
		}
	}()

	checker := updater.NewChecker(deps.Runner, deps.Prompter, cfg.CompanionDir)

	outcome, err := checker.Check(ctx)
	report.Update = outcome

	if err != nil {
		return report, wrap(StepUpdate, err)
	}

	if outcome == updater.OutcomeUpdated {
		// The relaunched process has to be able to take the marker.
		if err = deps.Marker.Release(ctx); err != nil {
			return report, wrap(StepRelaunch, err)
		}

		if err = deps.Relauncher.Relaunch(ctx); err != nil {
			return report, wrap(StepRelaunch, err)
		}

		report.Relaunched = true

		return report, nil
	}

	tools := toolchain.New(deps.Runner, deps.Platform, cfg, deps.ToolchainOptions...)

	if err = tools.EnsureGit(ctx); err != nil {
		return report, wrap(StepGit, err)
	}

	if err = tools.EnsureConda(ctx); err != nil {
		return report, wrap(StepConda, err)
	}

	envs := environment.NewManager(deps.Runner, tools.CondaPath(), cfg.PythonVersion)

	if report.EnvironmentCreated, err = envs.Ensure(ctx, envName); err != nil {
		return report, wrap(StepEnvironment, err)
	}

	if report.Cloned, err = checker.Clone(ctx, cfg.RepositoryURL); err != nil {
		return report, wrap(StepClone, err)
	}

	report.Interpreter = deps.Platform.Interpreter(tools.CondaRoot(), envName)

	installer := dependencies.NewInstaller(deps.Runner, deps.Prompter, report.Interpreter, deps.Platform.OS, cfg)

	if err = installer.Install(ctx); err != nil {
		return report, wrap(StepInstall, err)
	}

	if report.Variant, err = installer.SelectVariant(ctx); err != nil {
		return report, wrap(StepVariant, err)
	}

	if err = launcher.New(deps.Runner, report.Interpreter, cfg).Launch(ctx); err != nil {
		return report, wrap(StepLaunch, err)
	}

	return report, nil
}
