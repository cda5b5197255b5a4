package dependencies

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/s2l-bootstrap/internal/config"
	"github.com/oshokin/s2l-bootstrap/internal/domain/variant"
	"github.com/oshokin/s2l-bootstrap/internal/prompt"
	"github.com/oshokin/s2l-bootstrap/internal/shell/shelltest"
)

const python = "/home/oleg/miniconda3/envs/S2L/bin/python"

func setup(t *testing.T, withModules bool) *config.Config {
	t.Helper()

	cfg := config.Default()
	cfg.CompanionDir = filepath.Join(t.TempDir(), "S2L")

	require.NoError(t, os.MkdirAll(filepath.Join(cfg.CompanionDir, "libs"), 0o755))

	if withModules {
		for _, m := range []string{cfg.Accelerator.CPUModule, cfg.Accelerator.GPUModule} {
			require.NoError(t, os.WriteFile(filepath.Join(cfg.CompanionDir, m), []byte("x"), 0o600))
		}
	}

	return cfg
}

func exists(t *testing.T, cfg *config.Config, name string) bool {
	t.Helper()

	_, err := os.Stat(filepath.Join(cfg.CompanionDir, name))

	return err == nil
}

// TestInstall runs pip with the manifest inside the companion folder.
func TestInstall(t *testing.T) {
	t.Parallel()

	cfg := setup(t, false)
	fake := shelltest.New()

	require.NoError(t, NewInstaller(fake, nil, python, "linux", cfg).Install(context.Background()))
	require.Equal(t, []string{python + " -m pip install -r requirements.txt"}, fake.Calls())
	require.Equal(t, cfg.CompanionDir, fake.Commands()[0].Dir)
}

// TestInstall_Fails wraps pip errors.
func TestInstall_Fails(t *testing.T) {
	t.Parallel()

	cfg := setup(t, false)
	fake := shelltest.New().On(python+" -m pip install", shelltest.Response{ExitCode: 1})

	require.ErrorIs(t, NewInstaller(fake, nil, python, "linux", cfg).Install(context.Background()), ErrInstall)
}

// TestSelectVariant_GPU swaps torch for the CUDA build and drops the CPU module.
func TestSelectVariant_GPU(t *testing.T) {
	t.Parallel()

	cfg := setup(t, true)
	cfg.Accelerator.ExtraPackages = []string{"torchvision"}
	fake := shelltest.New()
	asker := &prompt.Fixed{Answer: true}

	got, err := NewInstaller(fake, asker, python, "windows", cfg).SelectVariant(context.Background())
	require.NoError(t, err)
	require.Equal(t, variant.GPU, got)
	require.Len(t, asker.Asked, 1)

	require.Equal(t, []string{
		python + " -m pip uninstall torch -y",
		python + " -m pip install torch torchvision --index-url https://download.pytorch.org/whl/cu124",
	}, fake.Calls())

	require.False(t, exists(t, cfg, cfg.Accelerator.CPUModule))
	require.True(t, exists(t, cfg, cfg.Accelerator.GPUModule))
}

// TestSelectVariant_CPU keeps the pure Python module.
func TestSelectVariant_CPU(t *testing.T) {
	t.Parallel()

	cfg := setup(t, true)
	fake := shelltest.New()

	got, err := NewInstaller(fake, &prompt.Fixed{Answer: false}, python, "linux", cfg).
		SelectVariant(context.Background())
	require.NoError(t, err)
	require.Equal(t, variant.CPU, got)
	require.Empty(t, fake.Calls())
	require.True(t, exists(t, cfg, cfg.Accelerator.CPUModule))
	require.False(t, exists(t, cfg, cfg.Accelerator.GPUModule))
}

// TestSelectVariant_DarwinForcesCPU ignores the user's wish on macOS.
func TestSelectVariant_DarwinForcesCPU(t *testing.T) {
	t.Parallel()

	cfg := setup(t, true)
	fake := shelltest.New()
	asker := &prompt.Fixed{Answer: true}

	got, err := NewInstaller(fake, asker, python, "darwin", cfg).SelectVariant(context.Background())
	require.NoError(t, err)
	require.Equal(t, variant.CPU, got)
	require.Empty(t, asker.Asked)
	require.False(t, fake.Called(python+" -m pip uninstall"))
	require.False(t, fake.Called(python+" -m pip install"))
	require.False(t, exists(t, cfg, cfg.Accelerator.GPUModule))
	require.True(t, exists(t, cfg, cfg.Accelerator.CPUModule))
}

// TestSelectVariant_AlreadyApplied does nothing when one module is gone.
func TestSelectVariant_AlreadyApplied(t *testing.T) {
	t.Parallel()

	cfg := setup(t, true)
	require.NoError(t, os.Remove(filepath.Join(cfg.CompanionDir, cfg.Accelerator.GPUModule)))

	fake := shelltest.New()
	asker := &prompt.Fixed{Answer: true}

	got, err := NewInstaller(fake, asker, python, "linux", cfg).SelectVariant(context.Background())
	require.NoError(t, err)
	require.Empty(t, got)
	require.Empty(t, asker.Asked)
	require.Empty(t, fake.Calls())
}

// TestSelectVariant_GPUInstallFails keeps both modules when pip fails.
func TestSelectVariant_GPUInstallFails(t *testing.T) {
	t.Parallel()

	cfg := setup(t, true)
	fake := shelltest.New().On(python+" -m pip install torch", shelltest.Response{ExitCode: 1})

	_, err := NewInstaller(fake, &prompt.Fixed{Answer: true}, python, "linux", cfg).
		SelectVariant(context.Background())
	require.ErrorIs(t, err, ErrInstall)
	require.True(t, exists(t, cfg, cfg.Accelerator.CPUModule))
	require.True(t, exists(t, cfg, cfg.Accelerator.GPUModule))
}
