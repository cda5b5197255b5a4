// Package environment lists and creates the conda environment the
// companion application runs in.
package environment
