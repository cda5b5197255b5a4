//go:build !unix

package updater

import (
	"errors"
	"os"
	"os/exec"
)

// execSelf emulates exec where the OS has none: the new image runs as a
// child with our stdio and its exit code becomes ours.
func execSelf(argv0 string, argv []string, envv []string) error {
	//nolint:gosec // Re-running our own executable.
	cmd := exec.Command(argv0, argv[1:]...)
	cmd.Env = envv
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	err := cmd.Run()

	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		return err
	}

	os.Exit(cmd.ProcessState.ExitCode())

	return nil
}
