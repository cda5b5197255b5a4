// Package bootstrap runs the whole setup as one linear pipeline:
// lock, update check, toolchain, environment, clone, install, variant
// and launch. Every failure is reported as a StepError naming the step,
// with the step's sentinel error underneath for errors.Is checks.
package bootstrap
