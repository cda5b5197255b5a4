package config

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// LaunchMode controls whether the application is awaited after start.
type LaunchMode string

const (
	// LaunchDetach starts the application and returns immediately.
	LaunchDetach LaunchMode = "detach"
	// LaunchWait blocks until the application exits.
	LaunchWait LaunchMode = "wait"
)

// Config holds everything the bootstrapper needs to know about the
// companion project and the toolchain.
type Config struct {
	// CompanionDir is the project folder that is updated, installed and launched.
	CompanionDir string `yaml:"companion_dir"`
	// RepositoryURL is cloned into CompanionDir when the folder is missing.
	RepositoryURL string `yaml:"repository_url"`
	// EnvironmentName is the conda environment used when no argument is given.
	EnvironmentName string `yaml:"environment_name"`
	// PythonVersion pins the interpreter of a freshly created environment.
	PythonVersion string `yaml:"python_version"`
	// CondaRoot overrides the Miniconda installation directory (default ~/miniconda3).
	CondaRoot string `yaml:"conda_root"`
	// Requirements is the manifest installed with pip, relative to CompanionDir.
	Requirements string `yaml:"requirements"`
	// EntryPoint is the script started with the environment's interpreter.
	EntryPoint string `yaml:"entry_point"`
	// Launch selects detached or blocking start of the entry point.
	Launch LaunchMode `yaml:"launch"`
	// Installer describes where Miniconda installers are downloaded from.
	Installer Installer `yaml:"installer"`
	// Accelerator describes the CPU/GPU module pair and the GPU packages.
	Accelerator Accelerator `yaml:"accelerator"`
}

// Installer configures the Miniconda download.
type Installer struct {
	// BaseURL is the folder containing Miniconda3-latest-<OS>-<arch>.sh files.
	BaseURL string `yaml:"base_url"`
	// SHA256 optionally pins the installer checksum (hex).
	SHA256 string `yaml:"sha256"`
}

// Accelerator configures the GPU variant swap.
type Accelerator struct {
	// CPUModule is deleted when the GPU variant is chosen.
	CPUModule string `yaml:"cpu_module"`
	// GPUModule is deleted when the CPU variant is chosen.
	GPUModule string `yaml:"gpu_module"`
	// Package is reinstalled from IndexURL on the GPU path.
	Package string `yaml:"package"`
	// ExtraPackages are installed together with Package on the GPU path.
	ExtraPackages []string `yaml:"extra_packages"`
	// IndexURL is the pip index serving GPU builds.
	IndexURL string `yaml:"index_url"`
}

const (
	// DefaultConfigFilename is looked up in the working directory.
	DefaultConfigFilename = "s2l-bootstrap.yaml"

	// DefaultCompanionDir is the companion project folder.
	DefaultCompanionDir = "S2L"

	// DefaultRepositoryURL is where the companion project lives.
	DefaultRepositoryURL = "https://github.com/python313again/S2L"

	// DefaultEnvironmentName is used when no positional argument is given.
	DefaultEnvironmentName = "S2L"

	// DefaultPythonVersion is the interpreter pinned for new environments.
	DefaultPythonVersion = "3.11.9"

	// DefaultRequirements is the pip manifest inside the companion folder.
	DefaultRequirements = "requirements.txt"

	// DefaultEntryPoint is the application script inside the companion folder.
	DefaultEntryPoint = "main.py"

	// DefaultInstallerBaseURL hosts the Miniconda installers.
	DefaultInstallerBaseURL = "https://repo.anaconda.com/miniconda/"

	// DefaultCPUModule is the pure Python visualizer.
	DefaultCPUModule = "libs/roi_visualizer.py"

	// DefaultGPUModule is the compiled CUDA visualizer.
	DefaultGPUModule = "libs/roi_visualizer.cp311-win_amd64.pyd"

	// DefaultAcceleratorPackage is swapped for its CUDA build.
	DefaultAcceleratorPackage = "torch"

	// DefaultAcceleratorIndexURL serves CUDA 12.4 wheels.
	DefaultAcceleratorIndexURL = "https://download.pytorch.org/whl/cu124"

	// DefaultFilePermissions is used when saving settings.
	DefaultFilePermissions = 0o600
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errUnknownLaunchMode is returned for launch values other than detach/wait.
	errUnknownLaunchMode = errors.New("unknown launch mode")
	// errSameModule is returned when both accelerator modules point to one file.
	errSameModule = errors.New("cpu and gpu modules must differ")
	// errInvalidChecksum is returned for a malformed installer checksum.
	errInvalidChecksum = errors.New("installer sha256 must be 64 hex characters")
)

// Default returns settings matching the stock S2L setup.
func Default() *Config {
	cfg := new(Config)
	_ = Validate(cfg)

	return cfg
}

// Load reads settings from path. A missing file at the default location is
// not an error: the defaults are returned instead.
func Load(path string) (*Config, error) {
	explicit := path != "" && path != DefaultConfigFilename
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !explicit {
			return Default(), nil
		}

		return nil, fmt.Errorf("read settings: %w", err)
	}

	if isJSON(path) {
		contents = jsonc.ToJSON(contents)
	}

	var cfg Config
	// YAML is a superset of JSON, so one decoder serves both formats.
	if err = yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err = Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes settings to path in YAML.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	if err = os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate fills defaults for empty fields and rejects malformed values.
//
//nolint:cyclop // A flat list of defaults reads better than helpers.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	setDefault(&cfg.CompanionDir, DefaultCompanionDir)
	setDefault(&cfg.RepositoryURL, DefaultRepositoryURL)
	setDefault(&cfg.EnvironmentName, DefaultEnvironmentName)
	setDefault(&cfg.PythonVersion, DefaultPythonVersion)
	setDefault(&cfg.Requirements, DefaultRequirements)
	setDefault(&cfg.EntryPoint, DefaultEntryPoint)
	setDefault(&cfg.Installer.BaseURL, DefaultInstallerBaseURL)
	setDefault(&cfg.Accelerator.CPUModule, DefaultCPUModule)
	setDefault(&cfg.Accelerator.GPUModule, DefaultGPUModule)
	setDefault(&cfg.Accelerator.Package, DefaultAcceleratorPackage)
	setDefault(&cfg.Accelerator.IndexURL, DefaultAcceleratorIndexURL)

	if cfg.Launch == "" {
		cfg.Launch = LaunchDetach
	}

	if cfg.Launch != LaunchDetach && cfg.Launch != LaunchWait {
		return fmt.Errorf("%w: %q", errUnknownLaunchMode, cfg.Launch)
	}

	if filepath.Clean(cfg.Accelerator.CPUModule) == filepath.Clean(cfg.Accelerator.GPUModule) {
		return errSameModule
	}

	for name, raw := range map[string]string{
		"repository url":     cfg.RepositoryURL,
		"installer base url": cfg.Installer.BaseURL,
		"accelerator index":  cfg.Accelerator.IndexURL,
	} {
		if _, err := url.ParseRequestURI(raw); err != nil {
			return fmt.Errorf("invalid %s: %w", name, err)
		}
	}

	if sum := cfg.Installer.SHA256; sum != "" {
		if decoded, err := hex.DecodeString(sum); err != nil || len(decoded) != sha256.Size {
			return errInvalidChecksum
		}
	}

	return nil
}

func setDefault(field *string, value string) {
	*field = strings.TrimSpace(*field)
	if *field == "" {
		*field = value
	}
}

func isJSON(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		return true
	default:
		return false
	}
}
