package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	rotatelogs "github.com/lestrrat-go/file-rotatelogs"
)

const (
	// fileLogMaxAge is how long rotated bootstrap logs are kept.
	fileLogMaxAge = 7 * 24 * time.Hour
	// fileLogRotationTime is how often a new log file is started.
	fileLogRotationTime = time.Hour
	// fileLogPattern is the strftime pattern of rotated log file names.
	fileLogPattern = "s2l-bootstrap.%Y%m%d%H.log"
	// logDirPermissions is applied when the log directory has to be created.
	logDirPermissions = 0o750
)

// NewFileWriter returns a writer that rotates log files inside dir.
func NewFileWriter(dir string) (io.WriteCloser, error) {
	if err := os.MkdirAll(filepath.Clean(dir), logDirPermissions); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	w, err := rotatelogs.New(
		filepath.Join(dir, fileLogPattern),
		rotatelogs.WithMaxAge(fileLogMaxAge),
		rotatelogs.WithRotationTime(fileLogRotationTime),
	)
	if err != nil {
		return nil, fmt.Errorf("open rotated log: %w", err)
	}

	return w, nil
}

// Setup installs a global logger printing to stdout and, when logDir is
// not empty, to a rotated file. The returned closer must be called on exit.
func Setup(logDir string) (io.Closer, error) {
	if logDir == "" {
		SetLogger(New(defaultLevel, os.Stdout))

		return nopCloser{}, nil
	}

	fileWriter, err := NewFileWriter(logDir)
	if err != nil {
		return nil, err
	}

	SetLogger(New(defaultLevel, os.Stdout, fileWriter))

	return fileWriter, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
