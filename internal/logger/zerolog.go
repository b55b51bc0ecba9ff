package logger

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// ZerologAdapter implements Logger on top of a zerolog.Logger. Every entry
// carries the pipeline component that wrote it.
type ZerologAdapter struct {
	logger zerolog.Logger
}

func NewZerolog(writer io.Writer, level zerolog.Level) *ZerologAdapter {
	return &ZerologAdapter{logger: zerolog.New(writer).Level(level).With().Timestamp().Logger()}
}

// NewConsoleLogger writes human readable lines to stderr, keeping stdout
// free for the crop report.
func NewConsoleLogger(level zerolog.Level) *ZerologAdapter {
	consoleWriter := zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: "15:04:05",
	}
	return NewZerolog(consoleWriter, level)
}

// New builds a logger from the level and format names used in the config
// file and on the command line ("console" or "json").
func New(level, format string) (*ZerologAdapter, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(format) {
	case "", "console":
		return NewConsoleLogger(lvl), nil
	case "json":
		return NewZerolog(os.Stderr, lvl), nil
	}
	return nil, fmt.Errorf("unknown log format %q (want console or json)", format)
}

// ParseLevel accepts debug, info, warn/warning, error and disabled
func ParseLevel(level string) (zerolog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return zerolog.DebugLevel, nil
	case "", "info":
		return zerolog.InfoLevel, nil
	case "warn", "warning":
		return zerolog.WarnLevel, nil
	case "error":
		return zerolog.ErrorLevel, nil
	case "disabled", "off":
		return zerolog.Disabled, nil
	}
	return zerolog.NoLevel, fmt.Errorf("unknown log level %q", level)
}

func (z *ZerologAdapter) Info(component, message string, fields map[string]interface{}) {
	z.emit(zerolog.InfoLevel, component, nil, message, fields)
}

func (z *ZerologAdapter) Warning(component, message string, fields map[string]interface{}) {
	z.emit(zerolog.WarnLevel, component, nil, message, fields)
}

func (z *ZerologAdapter) Debug(component, message string, fields map[string]interface{}) {
	z.emit(zerolog.DebugLevel, component, nil, message, fields)
}

func (z *ZerologAdapter) Error(component string, err error, fields map[string]interface{}) {
	z.emit(zerolog.ErrorLevel, component, err, "stage failed", fields)
}

// emit builds at most one event; WithLevel returns nil below the level.
func (z *ZerologAdapter) emit(level zerolog.Level, component string, err error, message string, fields map[string]interface{}) {
	e := z.logger.WithLevel(level)
	if e == nil {
		return
	}
	e = e.Str("component", component)
	if err != nil {
		e = e.Err(err)
	}
	if len(fields) > 0 {
		e = e.Fields(fields)
	}
	e.Msg(message)
}
