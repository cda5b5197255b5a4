// Package config defines the bootstrap settings and helpers to load,
// validate and save them. Settings are YAML by default; JSON files with
// comments are accepted as well.
package config
