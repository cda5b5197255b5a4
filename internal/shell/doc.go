// Package shell runs the external tools the bootstrapper depends on
// (git, conda, pip, installers) behind a small Runner interface so the
// workflow can be exercised without touching the real machine.
package shell
