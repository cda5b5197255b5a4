package logger

import (
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// global is the shared logger used when the context carries none.
	//nolint:gochecknoglobals // Logger is used all over the project, so it's okay.
	global *zap.SugaredLogger
	// defaultLevel is the minimum level printed to the console and the log file.
	//nolint:gochecknoglobals // Shared so --log-level can change it after init.
	defaultLevel = zap.NewAtomicLevelAt(zap.InfoLevel)
)

func init() { //nolint:gochecknoinits // Without a logger set here early failures would be silent.
	SetLogger(New(defaultLevel, os.Stdout))
}

// New creates a sugared logger that writes human-readable console lines
// to every provided writer. A nil level falls back to the shared atomic level.
func New(level zapcore.LevelEnabler, writers ...io.Writer) *zap.SugaredLogger {
	if level == nil {
		level = defaultLevel
	}

	if len(writers) == 0 {
		writers = []io.Writer{os.Stdout}
	}

	cores := make([]zapcore.Core, 0, len(writers))
	for _, w := range writers {
		cores = append(cores, zapcore.NewCore(newConsoleEncoder(w == os.Stdout), zapcore.AddSync(w), level))
	}

	return zap.New(zapcore.NewTee(cores...)).Sugar()
}

// newConsoleEncoder mimics the colour-coded lines of an interactive script.
// Colours are only emitted for the terminal, never into log files.
func newConsoleEncoder(colored bool) zapcore.Encoder {
	encodeLevel := zapcore.CapitalLevelEncoder
	if colored {
		encodeLevel = zapcore.CapitalColorLevelEncoder
	}

	//nolint:exhaustruct // Default values are fine for the rest of the encoder.
	return zapcore.NewConsoleEncoder(zapcore.EncoderConfig{
		MessageKey:       "message",
		LevelKey:         "level",
		NameKey:          "logger",
		LineEnding:       zapcore.DefaultLineEnding,
		EncodeLevel:      encodeLevel,
		EncodeTime:       zapcore.ISO8601TimeEncoder,
		EncodeDuration:   zapcore.StringDurationEncoder,
		EncodeName:       zapcore.FullNameEncoder,
		ConsoleSeparator: " ",
	})
}

// ParseLogLevel converts string input to a zap level.
func ParseLogLevel(s string) (zapcore.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zapcore.DebugLevel, true
	case "info":
		return zapcore.InfoLevel, true
	case "warn", "warning":
		return zapcore.WarnLevel, true
	case "error":
		return zapcore.ErrorLevel, true
	default:
		return zapcore.InfoLevel, false
	}
}

// Level returns the current level of the shared logger.
func Level() zapcore.Level {
	return defaultLevel.Level()
}

// Logger returns the global logger.
func Logger() *zap.SugaredLogger {
	return global
}

// SetLogger replaces the global logger. Not thread-safe.
func SetLogger(l *zap.SugaredLogger) {
	global = l
}

// SetLevel changes the level of the shared logger.
func SetLevel(level zapcore.Level) {
	defaultLevel.SetLevel(level)
}

// Sync flushes buffered entries of the global logger.
func Sync() {
	//nolint:errcheck // Syncing stdout fails on some terminals, nothing to do about it.
	_ = global.Sync()
}
