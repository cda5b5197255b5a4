// Package prompt asks the yes/no questions of the interactive setup.
package prompt
