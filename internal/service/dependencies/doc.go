// Package dependencies installs the companion requirements into the
// environment and applies the CPU or CUDA variant of the accelerator
// stack. Choosing a variant deletes the other module file for good.
package dependencies
