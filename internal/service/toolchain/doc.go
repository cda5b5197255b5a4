// Package toolchain makes sure git and conda are callable, installing
// them with the platform's package manager or the Miniconda installer
// when they are missing.
package toolchain
