package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"github.com/oshokin/s2l-bootstrap/internal/prompt"
	"github.com/oshokin/s2l-bootstrap/internal/repository/marker"
	"github.com/oshokin/s2l-bootstrap/internal/service/dependencies"
	"github.com/oshokin/s2l-bootstrap/internal/service/environment"
	"github.com/oshokin/s2l-bootstrap/internal/service/launcher"
	"github.com/oshokin/s2l-bootstrap/internal/service/toolchain"
)

// Exit codes of the CLI.
const (
	ExitSuccess = 0
	ExitFailure = 1
)

// Step names a stage of the pipeline.
type Step string

// Pipeline stages in execution order.
const (
	StepLock        Step = "lock"
	StepUpdate      Step = "update"
	StepRelaunch    Step = "relaunch"
	StepGit         Step = "git"
	StepConda       Step = "conda"
	StepEnvironment Step = "environment"
	StepClone       Step = "clone"
	StepInstall     Step = "install"
	StepVariant     Step = "variant"
	StepLaunch      Step = "launch"
)

// Sentinel errors, re-exported from the services that produce them.
var (
	ErrToolchainMissing  = toolchain.ErrMissing
	ErrRestartRequired   = toolchain.ErrRestartRequired
	ErrEnvironmentCreate = environment.ErrCreate
	ErrInstall           = dependencies.ErrInstall
	ErrLaunch            = launcher.ErrLaunch
	ErrInterrupted       = prompt.ErrInterrupted
	ErrAlreadyRunning    = marker.ErrAlreadyRunning
)

// StepError ties a failure to the stage it happened in.
type StepError struct {
	Step Step
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

func wrap(step Step, err error) error {
	if err == nil {
		return nil
	}

	return &StepError{Step: step, Err: err}
}

// IsInterrupted reports whether err stems from the user cancelling.
func IsInterrupted(err error) bool {
	return errors.Is(err, ErrInterrupted) || errors.Is(err, context.Canceled)
}

// ExitCode maps a pipeline result to the process exit status. A restart
// request after installing conda is a normal end of the run.
func ExitCode(err error) int {
	if err == nil || errors.Is(err, ErrRestartRequired) {
		return ExitSuccess
	}

	return ExitFailure
}
