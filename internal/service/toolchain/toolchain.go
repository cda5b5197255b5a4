package toolchain

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/oshokin/s2l-bootstrap/internal/config"
	"github.com/oshokin/s2l-bootstrap/internal/logger"
	"github.com/oshokin/s2l-bootstrap/internal/platform"
	"github.com/oshokin/s2l-bootstrap/internal/shell"
)

var (
	// ErrMissing is returned when a required binary is absent and could not
	// be installed automatically.
	ErrMissing = errors.New("required tool is missing")
	// ErrRestartRequired is returned after conda was installed: the new
	// PATH only takes full effect in a fresh run.
	ErrRestartRequired = errors.New("restart required")
)

const (
	gitBinary = "git"

	wingetGitID   = "Git.Git"
	wingetCondaID = "Continuum.Miniconda3"
)

// Service verifies and installs the toolchain.
type Service struct {
	runner    shell.Runner
	platform  *platform.Platform
	condaRoot string
	installer config.Installer

	httpClient *http.Client
	tempDir    string
	getenv     func(string) string
	setenv     func(string, string) error
}

// Option customises a Service.
type Option func(*Service)

// WithHTTPClient replaces the client used to download installers.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Service) {
		if c != nil {
			s.httpClient = c
		}
	}
}

// WithTempDir sets where the installer script is written.
func WithTempDir(dir string) Option {
	return func(s *Service) {
		if dir != "" {
			s.tempDir = dir
		}
	}
}

// WithEnv replaces the process environment accessors.
func WithEnv(getenv func(string) string, setenv func(string, string) error) Option {
	return func(s *Service) {
		s.getenv = getenv
		s.setenv = setenv
	}
}

// New creates the toolchain service.
func New(runner shell.Runner, plat *platform.Platform, cfg *config.Config, opts ...Option) *Service {
	s := &Service{
		runner:     runner,
		platform:   plat,
		condaRoot:  plat.CondaRoot(cfg.CondaRoot),
		installer:  cfg.Installer,
		httpClient: http.DefaultClient,
		tempDir:    os.TempDir(),
		getenv:     os.Getenv,
		setenv:     os.Setenv,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// CondaRoot returns the Miniconda installation directory.
func (s *Service) CondaRoot() string {
	return s.condaRoot
}

// CondaPath returns the conda launcher.
func (s *Service) CondaPath() string {
	return s.platform.Conda(s.condaRoot)
}

// EnsureGit checks for git and installs it when possible.
func (s *Service) EnsureGit(ctx context.Context) error {
	ctx = logger.WithName(ctx, "git")

	present, err := s.probe(ctx, gitBinary)
	if err != nil || present {
		return err
	}

	logger.Error(ctx, "Git is not installed. Attempting to install Git...")

	install, ok := s.gitInstallCommand()
	if !ok {
		logger.Error(ctx, "Please install Git manually for your system.")
		return fmt.Errorf("git on %s: %w", s.platform.OS, ErrMissing)
	}

	if _, err = s.runner.Run(ctx, install); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		logger.ErrorKV(ctx, "Git installation failed, please install it manually", "error", err)

		return fmt.Errorf("install git: %w: %w", ErrMissing, err)
	}

	if present, err = s.probe(ctx, gitBinary); err != nil {
		return err
	}

	if !present {
		return fmt.Errorf("git still not callable after install: %w", ErrMissing)
	}

	logger.Info(ctx, "Git installed successfully.")

	return nil
}

func (s *Service) gitInstallCommand() (shell.Command, bool) {
	switch s.platform.OS {
	case platform.Linux:
		return shell.Command{Name: "sudo", Args: []string{"apt-get", "install", "-y", "git"}, Interactive: true}, true
	case platform.Darwin:
		return shell.Command{Name: "brew", Args: []string{"install", "git"}, Interactive: true}, true
	case platform.Windows:
		return wingetInstall(wingetGitID), true
	default:
		return shell.Command{}, false
	}
}

// EnsureConda checks for conda. When it has to be installed the method
// returns ErrRestartRequired on success.
func (s *Service) EnsureConda(ctx context.Context) error {
	ctx = logger.WithName(ctx, "conda")

	present, err := s.probe(ctx, s.CondaPath())
	if err != nil || present {
		return err
	}

	switch {
	case s.platform.IsPOSIX():
		logger.Info(ctx, "Conda is not installed. Installing Miniconda...")

		if err = s.installMiniconda(ctx); err != nil {
			return err
		}
	case s.platform.OS == platform.Windows:
		logger.Info(ctx, "Conda is not installed. Installing Miniconda with winget...")

		if _, err = s.runner.Run(ctx, wingetInstall(wingetCondaID)); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}

			logger.Error(ctx, "Failed to install Miniconda. Please install it manually and retry.")

			return fmt.Errorf("install miniconda: %w: %w", ErrMissing, err)
		}
	default:
		logger.Error(ctx, "Miniconda auto-installation is not supported here. Please install it manually.")
		return fmt.Errorf("conda on %s: %w", s.platform.OS, ErrMissing)
	}

	logger.Info(ctx, "Miniconda installed successfully. Please restart the bootstrap.")

	return ErrRestartRequired
}

// installMiniconda downloads the shell installer, runs it in batch mode
// and exposes the new bin directory on PATH.
func (s *Service) installMiniconda(ctx context.Context) error {
	installerPath := filepath.Join(s.tempDir, "miniconda_installer.sh")

	logger.Info(ctx, "Downloading Miniconda installer...")

	if err := s.download(ctx, installerPath); err != nil {
		return fmt.Errorf("download miniconda: %w", err)
	}

	defer func() {
		_ = os.Remove(installerPath)
	}()

	logger.Info(ctx, "Installing Miniconda...")

	install := shell.Command{
		Name:        "bash",
		Args:        []string{installerPath, "-b", "-p", s.condaRoot},
		Interactive: true,
	}

	if _, err := s.runner.Run(ctx, install); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		return fmt.Errorf("run miniconda installer: %w: %w", ErrMissing, err)
	}

	binDir := s.platform.BinDir(s.condaRoot)

	pathValue := binDir
	if current := s.getenv("PATH"); current != "" {
		pathValue = current + string(os.PathListSeparator) + binDir
	}

	if err := s.setenv("PATH", pathValue); err != nil {
		return fmt.Errorf("extend PATH: %w", err)
	}

	logger.DebugKV(ctx, "Extended PATH", "dir", binDir)

	return nil
}

// probe runs "<binary> --version". A spawn failure or non-zero exit both
// mean the binary is unusable; only cancellation is reported as an error.
func (s *Service) probe(ctx context.Context, binary string) (bool, error) {
	_, err := s.runner.Run(ctx, shell.Command{Name: binary, Args: []string{"--version"}})
	if err == nil {
		logger.DebugKV(ctx, "Found binary", "binary", binary)
		return true, nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return false, ctxErr
	}

	logger.DebugKV(ctx, "Binary not callable", "binary", binary, "error", err)

	return false, nil
}

func wingetInstall(id string) shell.Command {
	return shell.Command{
		Name:        "winget",
		Args:        []string{"install", "--id", id, "-e", "--silent"},
		Interactive: true,
	}
}
