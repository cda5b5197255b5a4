package bootstrap

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/s2l-bootstrap/internal/config"
	"github.com/oshokin/s2l-bootstrap/internal/domain/variant"
	"github.com/oshokin/s2l-bootstrap/internal/platform"
	"github.com/oshokin/s2l-bootstrap/internal/prompt"
	"github.com/oshokin/s2l-bootstrap/internal/repository/marker"
	"github.com/oshokin/s2l-bootstrap/internal/service/updater"
	"github.com/oshokin/s2l-bootstrap/internal/shell"
	"github.com/oshokin/s2l-bootstrap/internal/shell/shelltest"
)

const (
	condaBin   = "/home/oleg/miniconda3/bin/conda"
	defaultEnv = "/home/oleg/miniconda3/envs/S2L/bin/python"
)

type fakeRelauncher struct {
	calls int
}

func (f *fakeRelauncher) Relaunch(context.Context) error {
	f.calls++
	return nil
}

type interruptingPrompter struct{}

func (interruptingPrompter) Confirm(context.Context, string) (bool, error) {
	return false, prompt.ErrInterrupted
}

type fixture struct {
	cfg        *config.Config
	fake       *shelltest.Fake
	asker      *prompt.Fixed
	relauncher *fakeRelauncher
	deps       Deps
}

func newFixture(t *testing.T, goos string) *fixture {
	t.Helper()

	root := t.TempDir()

	cfg := config.Default()
	cfg.CompanionDir = filepath.Join(root, "S2L")

	f := &fixture{
		cfg:        cfg,
		fake:       shelltest.New(),
		asker:      &prompt.Fixed{Answer: true},
		relauncher: new(fakeRelauncher),
	}

	f.deps = Deps{
		Runner:     f.fake,
		Prompter:   f.asker,
		Platform:   &platform.Platform{OS: goos, Arch: "amd64", Home: "/home/oleg"},
		Relauncher: f.relauncher,
		Marker:     marker.NewFileRepository(filepath.Join(root, marker.DefaultFilename)),
	}

	return f
}

// withCompanion creates the companion folder, optionally with both accelerator modules.
func (f *fixture) withCompanion(t *testing.T, modules bool) {
	t.Helper()

	require.NoError(t, os.MkdirAll(filepath.Join(f.cfg.CompanionDir, "libs"), 0o755))

	if !modules {
		return
	}

	for _, m := range []string{f.cfg.Accelerator.CPUModule, f.cfg.Accelerator.GPUModule} {
		require.NoError(t, os.WriteFile(filepath.Join(f.cfg.CompanionDir, m), []byte("x"), 0o600))
	}
}

func (f *fixture) exists(name string) bool {
	_, err := os.Stat(filepath.Join(f.cfg.CompanionDir, name))

	return err == nil
}

// TestExecute_FreshMachine walks the whole pipeline without a companion folder.
func TestExecute_FreshMachine(t *testing.T) {
	t.Parallel()

	f := newFixture(t, platform.Linux)
	f.fake.On("git clone", shelltest.Response{Hook: func(shell.Command) {
		require.NoError(t, os.MkdirAll(f.cfg.CompanionDir, 0o755))
	}})

	report, err := Execute(context.Background(), f.cfg, "", f.deps)
	require.NoError(t, err)

	require.Empty(t, f.asker.Asked, "no update prompt without a companion folder")
	require.Equal(t, updater.OutcomeMissing, report.Update)
	require.True(t, report.EnvironmentCreated)
	require.True(t, report.Cloned)
	require.Empty(t, report.Variant)
	require.Equal(t, defaultEnv, report.Interpreter)

	require.Equal(t, []string{
		"git --version",
		condaBin + " --version",
		condaBin + " env list",
		condaBin + " create -n S2L python=3.11.9 -y",
		"git clone " + config.DefaultRepositoryURL + " " + f.cfg.CompanionDir,
		defaultEnv + " -m pip install -r requirements.txt",
	}, f.fake.Calls())
	require.Equal(t, []string{defaultEnv + " main.py"}, f.fake.Started())

	_, err = f.deps.Marker.Load(context.Background())
	require.ErrorIs(t, err, marker.ErrNotFound)
}

// TestExecute_RelaunchesAfterUpdate re-executes when the pull brought commits.
func TestExecute_RelaunchesAfterUpdate(t *testing.T) {
	t.Parallel()

	f := newFixture(t, platform.Linux)
	f.withCompanion(t, false)
	f.fake.On("git pull --rebase", shelltest.Response{Stdout: "Fast-forward\n main.py | 1 +\n"})

	report, err := Execute(context.Background(), f.cfg, "", f.deps)
	require.NoError(t, err)
	require.True(t, report.Relaunched)
	require.Equal(t, 1, f.relauncher.calls)
	require.Equal(t, []string{"git pull --rebase"}, f.fake.Calls())

	_, err = f.deps.Marker.Load(context.Background())
	require.ErrorIs(t, err, marker.ErrNotFound)
}

// TestExecute_UpToDateContinues does not relaunch when git reports nothing new.
func TestExecute_UpToDateContinues(t *testing.T) {
	t.Parallel()

	f := newFixture(t, platform.Linux)
	f.withCompanion(t, false)
	f.fake.On("git pull --rebase", shelltest.Response{Stdout: "Already up to date.\n"})

	report, err := Execute(context.Background(), f.cfg, "", f.deps)
	require.NoError(t, err)
	require.Equal(t, updater.OutcomeUpToDate, report.Update)
	require.False(t, report.Relaunched)
	require.Zero(t, f.relauncher.calls)
	require.False(t, report.Cloned)
	require.Len(t, f.fake.Started(), 1)
}

// TestExecute_FailedPullIsNotFatal carries on after git errors.
func TestExecute_FailedPullIsNotFatal(t *testing.T) {
	t.Parallel()

	f := newFixture(t, platform.Linux)
	f.withCompanion(t, false)
	f.fake.On("git pull --rebase", shelltest.Response{ExitCode: 1, Stderr: "fatal: no upstream"})

	report, err := Execute(context.Background(), f.cfg, "", f.deps)
	require.NoError(t, err)
	require.Equal(t, updater.OutcomeFailed, report.Update)
	require.Zero(t, f.relauncher.calls)
}

// TestExecute_ExistingEnvironment never calls conda create.
func TestExecute_ExistingEnvironment(t *testing.T) {
	t.Parallel()

	f := newFixture(t, platform.Linux)
	f.withCompanion(t, false)
	f.asker.Answer = false
	f.fake.On(condaBin+" env list", shelltest.Response{
		Stdout: "# conda environments:\n#\nbase  *  /home/oleg/miniconda3\nS2L     /home/oleg/miniconda3/envs/S2L\n",
	})

	report, err := Execute(context.Background(), f.cfg, "", f.deps)
	require.NoError(t, err)
	require.False(t, report.EnvironmentCreated)
	require.False(t, f.fake.Called(condaBin+" create"))
}

// TestExecute_DarwinForcesCPU removes the GPU module without touching torch.
func TestExecute_DarwinForcesCPU(t *testing.T) {
	t.Parallel()

	f := newFixture(t, platform.Darwin)
	f.withCompanion(t, true)
	f.fake.On("git pull --rebase", shelltest.Response{Stdout: "Already up to date.\n"})

	report, err := Execute(context.Background(), f.cfg, "", f.deps)
	require.NoError(t, err)
	require.Equal(t, variant.CPU, report.Variant)

	require.False(t, f.exists(f.cfg.Accelerator.GPUModule))
	require.True(t, f.exists(f.cfg.Accelerator.CPUModule))
	require.False(t, f.fake.Called(defaultEnv+" -m pip uninstall"))
	require.False(t, f.fake.Called(defaultEnv+" -m pip install torch"))

	// Only the update question was asked.
	require.Len(t, f.asker.Asked, 1)
}

// TestExecute_CustomEnvironmentName threads the name through every path and check.
func TestExecute_CustomEnvironmentName(t *testing.T) {
	t.Parallel()

	const python = "/home/oleg/miniconda3/envs/gpu-env/bin/python"

	f := newFixture(t, platform.Linux)
	f.withCompanion(t, true)
	f.asker.Answer = true
	f.fake.On("git pull --rebase", shelltest.Response{Stdout: "Already up to date.\n"})

	report, err := Execute(context.Background(), f.cfg, "gpu-env", f.deps)
	require.NoError(t, err)
	require.Equal(t, "gpu-env", report.EnvironmentName)
	require.Equal(t, python, report.Interpreter)
	require.Equal(t, variant.GPU, report.Variant)

	require.True(t, f.fake.Called(condaBin+" create -n gpu-env python=3.11.9 -y"))
	require.True(t, f.fake.Called(python+" -m pip install -r requirements.txt"))
	require.True(t, f.fake.Called(python+" -m pip uninstall torch -y"))
	require.True(t, f.fake.Called(python+" -m pip install torch --index-url"))
	require.Equal(t, []string{python + " main.py"}, f.fake.Started())
	require.False(t, f.fake.Called(defaultEnv))
	require.False(t, f.exists(f.cfg.Accelerator.CPUModule))
}

// TestExecute_RestartAfterCondaInstall ends the run with a success exit code.
func TestExecute_RestartAfterCondaInstall(t *testing.T) {
	t.Parallel()

	f := newFixture(t, platform.Windows)
	f.deps.Platform.Home = `C:\Users\oleg`
	f.fake.On(`C:\Users\oleg\miniconda3\condabin\conda.bat --version`, shelltest.Response{Err: exec.ErrNotFound})

	_, err := Execute(context.Background(), f.cfg, "", f.deps)
	require.ErrorIs(t, err, ErrRestartRequired)
	require.Equal(t, ExitSuccess, ExitCode(err))
	require.True(t, f.fake.Called("winget install --id Continuum.Miniconda3"))
	require.False(t, f.fake.Called(`C:\Users\oleg\miniconda3\condabin\conda.bat env list`))
}

// TestExecute_MissingGit aborts with a failure exit code.
func TestExecute_MissingGit(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "plan9")
	f.fake.On("git --version", shelltest.Response{Err: exec.ErrNotFound})

	_, err := Execute(context.Background(), f.cfg, "", f.deps)
	require.ErrorIs(t, err, ErrToolchainMissing)
	require.Equal(t, ExitFailure, ExitCode(err))

	var stepErr *StepError
	require.ErrorAs(t, err, &stepErr)
	require.Equal(t, StepGit, stepErr.Step)
}

// TestExecute_InstallFailure stops before launching.
func TestExecute_InstallFailure(t *testing.T) {
	t.Parallel()

	f := newFixture(t, platform.Linux)
	f.withCompanion(t, false)
	f.asker.Answer = false
	f.fake.On(defaultEnv+" -m pip install", shelltest.Response{ExitCode: 1})

	_, err := Execute(context.Background(), f.cfg, "", f.deps)
	require.ErrorIs(t, err, ErrInstall)
	require.Empty(t, f.fake.Started())
}

// TestExecute_Interrupted maps a Ctrl-C at a prompt to the interrupt path.
func TestExecute_Interrupted(t *testing.T) {
	t.Parallel()

	f := newFixture(t, platform.Linux)
	f.withCompanion(t, false)
	f.deps.Prompter = interruptingPrompter{}

	_, err := Execute(context.Background(), f.cfg, "", f.deps)
	require.True(t, IsInterrupted(err))
	require.Equal(t, ExitFailure, ExitCode(err))
	require.Empty(t, f.fake.Calls())
}

// TestExecute_AlreadyRunning refuses to start while another run holds the marker.
func TestExecute_AlreadyRunning(t *testing.T) {
	t.Parallel()

	f := newFixture(t, platform.Linux)

	holder := marker.NewFileRepository(f.deps.Marker.Path())
	_, err := holder.Acquire(context.Background())
	require.NoError(t, err)

	_, err = Execute(context.Background(), f.cfg, "", f.deps)
	require.ErrorIs(t, err, ErrAlreadyRunning)
	require.Empty(t, f.fake.Calls())
}

// TestExitCode covers the success and failure mapping.
func TestExitCode(t *testing.T) {
	t.Parallel()

	require.Equal(t, ExitSuccess, ExitCode(nil))
	require.Equal(t, ExitSuccess, ExitCode(wrap(StepConda, ErrRestartRequired)))
	require.Equal(t, ExitFailure, ExitCode(errors.New("boom")))
	require.True(t, IsInterrupted(wrap(StepUpdate, context.Canceled)))
	require.False(t, IsInterrupted(wrap(StepInstall, ErrInstall)))
	require.EqualError(t, wrap(StepLaunch, errors.New("no python")), "launch: no python")
}
