// Package platform resolves OS-specific locations: the Miniconda root,
// the conda launcher, environment interpreters and installer names.
package platform
