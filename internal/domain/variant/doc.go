// Package variant decides between the CPU-only and the CUDA build of the
// visualizer module shipped with the companion project.
package variant
