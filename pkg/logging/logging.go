package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Options controls the logging surface of the CLI.
type Options struct {
	Verbose bool
	Debug   bool
	Quiet   bool
	// LogFile is an explicit log file path. The sentinel "auto" places the
	// file under the XDG state directory.
	LogFile string
}

// SetupLogger configures the global logger from the CLI flags.
// Quiet wins over Verbose and Debug.
func SetupLogger(opts Options) {
	switch {
	case opts.Quiet:
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	case opts.Debug:
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case opts.Verbose:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	}

	consoleWriter := zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.Kitchen,
	}

	writers := []io.Writer{consoleWriter}

	var fileErr error
	logFile := opts.LogFile
	if logFile == "auto" {
		logFile = filepath.Join(xdg.StateHome, "minicon", "minicon.log")
	}
	if logFile != "" {
		var handle *os.File
		handle, fileErr = setupLogFile(logFile)
		if fileErr == nil {
			writers = append(writers, handle)
		}
	}

	multi := io.MultiWriter(writers...)
	log.Logger = zerolog.New(multi).With().Timestamp().Logger()

	if fileErr != nil {
		log.Warn().Err(fileErr).Str("path", logFile).Msg("Failed to create log file, logging to console only")
	}

	if opts.Debug {
		log.Logger = log.Logger.With().Caller().Logger()
	}

	log.Debug().Str("logFile", logFile).Msg("Logger initialized")
}

// GetLogger returns a contextualized logger with the given name
func GetLogger(name string) zerolog.Logger {
	return log.With().Str("component", name).Logger()
}

// setupLogFile creates the log file and its parent directories
func setupLogFile(logPath string) (*os.File, error) {
	logDir := filepath.Dir(logPath)
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	return file, nil
}
