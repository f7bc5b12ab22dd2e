package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/term"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/mrz1836/cadence/internal/config"
	"github.com/mrz1836/cadence/internal/logging"
)

// Log rotation settings that the configuration does not expose.
const (
	logMaxAgeDays = 28
	logCompress   = true
)

// logFileWriter holds the log file writer for cleanup purposes.
var logFileWriter io.WriteCloser //nolint:gochecknoglobals // Needed for cleanup

// zerologConfigOnce ensures zerolog global settings are configured exactly once.
var zerologConfigOnce sync.Once //nolint:gochecknoglobals // One-time configuration

// zerologGlobalMu protects concurrent writes to the zerolog global logger.
// This is separate from globalLoggerMu to avoid deadlocks.
var zerologGlobalMu sync.Mutex //nolint:gochecknoglobals // Protects zerolog global

// configureZerologGlobals sets zerolog global field names once.
func configureZerologGlobals() {
	zerologConfigOnce.Do(func() {
		zerolog.TimestampFieldName = "ts"
		zerolog.MessageFieldName = "event"
	})
}

// InitLogger creates and configures a zerolog.Logger based on verbosity flags.
//
// Console levels are set as follows:
//   - verbose=true: Debug level (most detailed)
//   - quiet=true: Warn level (errors and warnings only)
//   - default: Info level (normal operation)
//
// The console gets a pretty writer on a color TTY and JSON otherwise. When
// cfg is non-nil, the logger also writes to the rotating file under
// .cadence/logs at cfg.Logging.Level. If the log file cannot be created the
// logger continues with console-only output.
func InitLogger(verbose, quiet bool, cfg *config.Config) zerolog.Logger {
	configureZerologGlobals()

	consoleLevel := selectLevel(verbose, quiet)
	console := zerolog.LevelWriter(levelFilter{w: zerolog.MultiLevelWriter(selectOutput()), min: consoleLevel})

	writer := console
	level := consoleLevel
	if cfg != nil {
		fileLevel := parseLevel(cfg.Logging.Level)
		if fw, err := createLogFileWriter(cfg); err == nil {
			CloseLogFile()
			logFileWriter = fw
			writer = zerolog.MultiLevelWriter(console, levelFilter{w: zerolog.MultiLevelWriter(fw), min: fileLevel})
			level = min(consoleLevel, fileLevel)
		}
	}

	logger := zerolog.New(writer).Level(level).Hook(logging.SecretHook{}).With().Timestamp().Logger()
	setGlobalLogger(logger)
	return logger
}

// InitLoggerWithWriter creates and configures a zerolog.Logger with a custom writer.
// This is primarily intended for testing purposes.
func InitLoggerWithWriter(verbose, quiet bool, w io.Writer) zerolog.Logger {
	configureZerologGlobals()

	level := selectLevel(verbose, quiet)
	logger := zerolog.New(logging.NewFilteringWriter(w)).Level(level).Hook(logging.SecretHook{}).With().Timestamp().Logger()
	setGlobalLogger(logger)
	return logger
}

// setGlobalLogger points the zerolog/log package at the CLI logger so
// log.Info() and friends share its format.
func setGlobalLogger(cliLogger zerolog.Logger) {
	zerologGlobalMu.Lock()
	defer zerologGlobalMu.Unlock()
	log.Logger = cliLogger
}

// CloseLogFile closes the global log file writer if it was opened.
// This should be called during application shutdown for clean cleanup.
func CloseLogFile() {
	if logFileWriter != nil {
		_ = logFileWriter.Close()
		logFileWriter = nil
	}
}

// selectLevel determines the appropriate log level based on flags.
func selectLevel(verbose, quiet bool) zerolog.Level {
	switch {
	case verbose:
		return zerolog.DebugLevel
	case quiet:
		return zerolog.WarnLevel
	default:
		return zerolog.InfoLevel
	}
}

// parseLevel reads a configured level name, defaulting to info.
func parseLevel(name string) zerolog.Level {
	level, err := zerolog.ParseLevel(name)
	if err != nil || name == "" {
		return zerolog.InfoLevel
	}
	return level
}

// selectOutput determines the appropriate output writer based on
// terminal capabilities and environment settings.
func selectOutput() io.Writer {
	if term.IsTerminal(int(os.Stderr.Fd())) && os.Getenv("NO_COLOR") == "" {
		return zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.Kitchen,
		}
	}
	return logging.NewFilteringWriter(os.Stderr)
}

// levelFilter drops entries below min before they reach w.
type levelFilter struct {
	w   zerolog.LevelWriter
	min zerolog.Level
}

// Write implements io.Writer.
func (f levelFilter) Write(p []byte) (int, error) {
	return f.w.Write(p)
}

// WriteLevel implements zerolog.LevelWriter.
func (f levelFilter) WriteLevel(level zerolog.Level, p []byte) (int, error) {
	if level < f.min {
		return len(p), nil
	}
	return f.w.WriteLevel(level, p)
}

// filteringWriteCloser wraps a WriteCloser with sensitive data filtering.
type filteringWriteCloser struct {
	filter *logging.FilteringWriter
	closer io.Closer
}

// Write implements io.Writer by delegating to the filtering writer.
func (fwc *filteringWriteCloser) Write(p []byte) (n int, err error) {
	return fwc.filter.Write(p)
}

// Close implements io.Closer by delegating to the underlying closer.
func (fwc *filteringWriteCloser) Close() error {
	return fwc.closer.Close()
}

// createLogFileWriter creates a rotating file writer for the CLI log,
// wrapped so secrets are never written to disk.
func createLogFileWriter(cfg *config.Config) (io.WriteCloser, error) {
	logPath, err := cfg.LogPath()
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(logPath), 0o750); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	lj := &lumberjack.Logger{
		Filename:   logPath,
		MaxSize:    cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAge:     logMaxAgeDays,
		Compress:   logCompress,
	}

	return &filteringWriteCloser{
		filter: logging.NewFilteringWriter(lj),
		closer: lj,
	}, nil
}
