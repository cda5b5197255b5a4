// Package launcher starts the companion application with the
// environment's interpreter once setup is complete.
package launcher
