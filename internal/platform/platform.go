package platform

import (
	"errors"
	"fmt"
	"os"
	"path"
	"runtime"
	"strings"
)

const (
	// Windows, Darwin and Linux are the GOOS values the bootstrapper knows.
	Windows = "windows"
	Darwin  = "darwin"
	Linux   = "linux"

	// defaultCondaDir is created under the home directory by the installer.
	defaultCondaDir = "miniconda3"
)

// ErrUnsupportedPlatform is returned when no installer exists for OS/arch.
var ErrUnsupportedPlatform = errors.New("platform not supported")

// Platform is the machine the bootstrapper runs on.
type Platform struct {
	OS   string
	Arch string
	Home string
}

// Detect describes the current machine.
func Detect() (*Platform, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("home directory: %w", err)
	}

	return &Platform{
		OS:   runtime.GOOS,
		Arch: runtime.GOARCH,
		Home: home,
	}, nil
}

// IsPOSIX reports whether the shell-script installer can be used.
func (p *Platform) IsPOSIX() bool {
	return p.OS == Linux || p.OS == Darwin
}

// CondaRoot returns the Miniconda directory, honouring an override that
// may start with "~".
func (p *Platform) CondaRoot(override string) string {
	override = strings.TrimSpace(override)

	switch {
	case override == "":
		return p.join(p.Home, defaultCondaDir)
	case override == "~":
		return p.Home
	case strings.HasPrefix(override, "~/"), strings.HasPrefix(override, `~\`):
		return p.join(p.Home, override[2:])
	default:
		return override
	}
}

// Conda returns the conda launcher inside root.
func (p *Platform) Conda(root string) string {
	if p.OS == Windows {
		return p.join(root, "condabin", "conda.bat")
	}

	return p.join(root, "bin", "conda")
}

// BinDir is appended to PATH after a fresh install.
func (p *Platform) BinDir(root string) string {
	if p.OS == Windows {
		return p.join(root, "condabin")
	}

	return p.join(root, "bin")
}

// Interpreter returns the python executable of the named environment.
func (p *Platform) Interpreter(root, env string) string {
	if p.OS == Windows {
		return p.join(root, "envs", env, "python.exe")
	}

	return p.join(root, "envs", env, "bin", "python")
}

// InstallerName returns the Miniconda installer file for this OS/arch.
func (p *Platform) InstallerName() (string, error) {
	var osPart string

	switch p.OS {
	case Linux:
		osPart = "Linux"
	case Darwin:
		osPart = "MacOSX"
	default:
		return "", fmt.Errorf("%s: %w", p.OS, ErrUnsupportedPlatform)
	}

	var archPart string

	switch p.Arch {
	case "amd64":
		archPart = "x86_64"
	case "arm64":
		archPart = "arm64"
		if p.OS == Linux {
			archPart = "aarch64"
		}
	default:
		return "", fmt.Errorf("%s/%s: %w", p.OS, p.Arch, ErrUnsupportedPlatform)
	}

	return fmt.Sprintf("Miniconda3-latest-%s-%s.sh", osPart, archPart), nil
}

// join glues path elements with the separator of the target OS, not the
// host one, so results stay predictable in tests.
func (p *Platform) join(elems ...string) string {
	if p.OS != Windows {
		return path.Join(elems...)
	}

	parts := make([]string, 0, len(elems))
	for i, e := range elems {
		if i == 0 {
			e = strings.TrimRight(e, `\/`)
		} else {
			e = strings.Trim(e, `\/`)
		}

		if e != "" {
			parts = append(parts, e)
		}
	}

	return strings.Join(parts, `\`)
}
