package calib

import (
	"fmt"
	"io"
	"log/slog"
	"os"
)

type Logger interface {
	Info(message string, module string)
	Warn(message string, module string)
	Error(string)
}

var logger Logger = NewStdLogger(io.Discard, io.Discard)

func SetLogger(l Logger) {
	logger = l
}

// StdLogger writes info and warning messages through the text Handler
// and errors as JSON, usually on stdout and stderr.
type StdLogger struct {
	InfoLog  *slog.Logger
	ErrorLog *slog.Logger
}

func NewStdLogger(out io.Writer, errOut io.Writer) StdLogger {
	opts := &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}
	return StdLogger{
		InfoLog:  slog.New(NewHandler(out, opts)),
		ErrorLog: slog.New(slog.NewJSONHandler(errOut, opts)),
	}
}

// NewConsoleLogger is the logger used by the executables.
func NewConsoleLogger() StdLogger {
	return NewStdLogger(os.Stdout, os.Stderr)
}

func (l StdLogger) Info(message string, module string) {
	l.InfoLog.Info(message, moduleKey, module)
}

func (l StdLogger) Warn(message string, module string) {
	l.InfoLog.Warn(message, moduleKey, module)
}

func (l StdLogger) Error(message string) {
	l.ErrorLog.Error(message)
}

// Fatal logs the error and terminates the program with a non-zero status.
func Fatal(l Logger, err error) {
	l.Error(err.Error())
	os.Exit(1)
}

func debugf(verbosity int, module string, format string, args ...any) {
	if verbosity > 1 {
		logger.Info(fmt.Sprintf(format, args...), module)
	}
}

func infof(verbosity int, module string, format string, args ...any) {
	if verbosity > 0 {
		logger.Info(fmt.Sprintf(format, args...), module)
	}
}
