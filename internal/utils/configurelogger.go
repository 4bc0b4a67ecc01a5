package utils

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/Honorable-Knights-of-the-Roundtable/jackwrapper/pkg/jack"
)

// Configure the slog logger with a specific log level and potential output file.
//
// Valid log levels are "none", "error", "warn", "info", "debug", "trace". Any other value returns an error.
// logFile may either specify a file path (an error is returned if the path cannot be opened) or none,
// in which case the logger points to stdout.
//
// Returns the os.File pointer that slog writes to, so it may be gracefully shut, and the resolved level
// so it can be handed on to jack.Server.SetLoggingLevel:
// ```
// logFilePointer, level, err := utils.ConfigureDefaultLogger(...)
//
//	if logFilePointer != nil{
//		defer logFilePointer.Close()
//	}
//
// ```
func ConfigureDefaultLogger(logLevel string, logFile string, loggerOptions slog.HandlerOptions) (*os.File, slog.Level, error) {

	switch logLevel {
	case "none":
		// No logging is required, disable the logger and return
		slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))
		return nil, jack.LevelOff, nil
	case "error":
		loggerOptions.Level = slog.LevelError
	case "warn":
		loggerOptions.Level = slog.LevelWarn
	case "info":
		loggerOptions.Level = slog.LevelInfo
	case "debug":
		loggerOptions.Level = slog.LevelDebug
	case "trace":
		loggerOptions.Level = jack.LevelTrace
	default:
		return nil, 0, fmt.Errorf("unexpected log level %q", logLevel)
	}
	level := loggerOptions.Level.Level()

	// --------------------------------------------------------------------------------

	var logFilePointer *os.File
	var slogHandler slog.Handler
	if logFile == "" {
		slogHandler = slog.NewTextHandler(os.Stdout, &loggerOptions)
	} else {
		var err error
		logFilePointer, err = os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
		if err != nil {
			return nil, 0, err
		}
		slogHandler = slog.NewJSONHandler(logFilePointer, &loggerOptions)
	}

	// --------------------------------------------------------------------------------

	slog.SetDefault(slog.New(slogHandler))
	return logFilePointer, level, nil
}
