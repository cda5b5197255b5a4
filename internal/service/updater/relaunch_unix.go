//go:build unix

package updater

import "syscall"

// execSelf replaces the process image in place.
func execSelf(argv0 string, argv []string, envv []string) error {
	return syscall.Exec(argv0, argv, envv)
}
