package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/s2l-bootstrap/internal/config"
	"github.com/oshokin/s2l-bootstrap/internal/logger"
	"github.com/oshokin/s2l-bootstrap/internal/service/bootstrap"
	"github.com/oshokin/s2l-bootstrap/internal/version"
)

const interruptedMessage = "\033[33mOperation interrupted by user. Exiting...\033[0m"

var errUnknownLogLevel = errors.New("unknown log level")

var (
	// configPath to the optional settings file.
	configPath string
	// companionDir overrides the companion folder from the settings file.
	companionDir string
	// waitForApp keeps the bootstrapper attached to the launched application.
	waitForApp bool
	// assumeYes answers every question with yes.
	assumeYes bool
	// logLevel of console and file output.
	logLevel string
	// logDir enables rotated file logs when set.
	logDir string

	// rootCmd prepares the environment and starts the companion application.
	rootCmd = &cobra.Command{
		Use:   "s2l-bootstrap [env-name]",
		Short: "Prepare the S2L environment and launch the application",
		Long: "Updates the companion S2L checkout, makes sure git and conda are installed, " +
			"creates the conda environment, installs requirements, picks the CPU or CUDA " +
			"accelerator build and starts the application.",
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runBootstrap,
	}
)

func runBootstrap(_ *cobra.Command, args []string) error {
	level, ok := logger.ParseLogLevel(logLevel)
	if !ok {
		return fmt.Errorf("%w: %q", errUnknownLogLevel, logLevel)
	}

	closer, err := logger.Setup(logDir)
	if err != nil {
		return err
	}

	defer func() {
		logger.Sync()
		_ = closer.Close()
		// Later messages from Execute go to the console only.
		logger.SetLogger(logger.New(logger.Level(), os.Stdout))
	}()

	logger.SetLevel(level)

	// Setup graceful shutdown handling.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	options := &bootstrap.Options{
		ConfigPath:   configPath,
		CompanionDir: companionDir,
		AssumeYes:    assumeYes,
		Args:         os.Args,
	}

	if len(args) > 0 {
		options.EnvironmentName = args[0]
	}

	if waitForApp {
		options.Launch = config.LaunchWait
	}

	report, err := bootstrap.Run(ctx, options)
	if err != nil {
		return err
	}

	if !report.Relaunched {
		logger.InfoKV(ctx, "Bootstrap completed",
			"environment", report.EnvironmentName,
			"interpreter", report.Interpreter,
			"variant", string(report.Variant))
	}

	return nil
}

// Execute runs the s2l-bootstrap CLI and exits with the pipeline status.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)
	rootCmd.AddCommand(newConfigCommand())

	err := rootCmd.Execute()

	switch {
	case err == nil:
	case bootstrap.IsInterrupted(err):
		_, _ = fmt.Fprintln(os.Stderr, interruptedMessage)
	case errors.Is(err, bootstrap.ErrRestartRequired):
		logger.Info(context.Background(), "Restart the bootstrapper in a new terminal to continue.")
	default:
		logger.ErrorKV(context.Background(), "Bootstrap failed", "error", err)
	}

	logger.Sync()
	os.Exit(bootstrap.ExitCode(err))
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	flags := rootCmd.Flags()
	flags.StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to settings file")
	flags.StringVar(&companionDir, "companion-dir", "", "companion project folder (default from settings)")
	flags.BoolVar(&waitForApp, "wait", false, "wait for the application to exit")
	flags.BoolVarP(&assumeYes, "yes", "y", false, "answer yes to every question")
	flags.StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
	flags.StringVar(&logDir, "log-dir", "", "directory for rotated log files")
}
