// Package integration drives the bootstrap pipeline against real
// processes: small shell scripts stand in for git, conda and python.
package integration
