/*
Copyright © 2025 Jayson Grace <jayson.e.grace@gmail.com>

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in
all copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
THE SOFTWARE.
*/

// Package logging provides the console logger used by pubami. Loggers travel
// in a context.Context so region workers can log with their own prefix while
// sharing the process-wide configuration set by Initialize.
package logging

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/fatih/color"
)

// LogLevel represents the severity level of a log message
type LogLevel int

// OutputType represents the output format for logs
type OutputType int

// Output types for different log formats
const (
	PlainOutput OutputType = iota
	ColorOutput
	JSONOutput
)

// Log levels ordered from least to most severe.
const (
	DebugLevel LogLevel = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

// String returns the string representation of the log level.
func (l LogLevel) String() string {
	switch l {
	case DebugLevel:
		return "DEBUG"
	case InfoLevel:
		return "INFO"
	case WarnLevel:
		return "WARN"
	case ErrorLevel:
		return "ERROR"
	default:
		return "INFO"
	}
}

func (l LogLevel) slogLevel() slog.Level {
	switch l {
	case DebugLevel:
		return slog.LevelDebug
	case WarnLevel:
		return slog.LevelWarn
	case ErrorLevel:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// CustomLogger writes leveled, optionally colored or JSON encoded messages to
// ConsoleWriter.
type CustomLogger struct {
	mu            sync.Mutex
	LogLevel      slog.Level
	OutputType    OutputType
	Quiet         bool
	ConsoleWriter io.Writer
	Verbose       bool
	// Prefix is prepended to every message, e.g. "[us-east-1]".
	Prefix string
}

type jsonRecord struct {
	Time    string `json:"time"`
	Level   string `json:"level"`
	Prefix  string `json:"prefix,omitempty"`
	Message string `json:"msg"`
}

func (l *CustomLogger) formatMessage(level LogLevel, message string, args ...interface{}) string {
	formattedMsg := fmt.Sprintf(message, args...)
	if l.Prefix != "" {
		formattedMsg = l.Prefix + " " + formattedMsg
	}

	if l.OutputType != ColorOutput {
		return formattedMsg
	}

	switch level {
	case DebugLevel:
		return color.HiBlackString("[DEBUG] %s", formattedMsg)
	case InfoLevel:
		return color.HiGreenString("[INFO] %s", formattedMsg)
	case WarnLevel:
		return color.HiYellowString("[WARN] %s", formattedMsg)
	case ErrorLevel:
		return color.HiRedString("[ERROR] %s", formattedMsg)
	default:
		return formattedMsg
	}
}

// shouldShowLocked must be called while holding l.mu.
// Quiet mode shows errors only, verbose mode shows everything, otherwise the
// configured LogLevel is the threshold.
func (l *CustomLogger) shouldShowLocked(level LogLevel) bool {
	if l.Quiet {
		return level == ErrorLevel
	}
	if l.Verbose {
		return true
	}
	return level.slogLevel() >= l.LogLevel
}

func (l *CustomLogger) log(level LogLevel, message string, args ...interface{}) {
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.shouldShowLocked(level) || l.ConsoleWriter == nil {
		return
	}

	var line string
	if l.OutputType == JSONOutput {
		data, err := json.Marshal(jsonRecord{
			Time:    now.UTC().Format(time.RFC3339),
			Level:   level.String(),
			Prefix:  l.Prefix,
			Message: fmt.Sprintf(message, args...),
		})
		if err != nil {
			line = fmt.Sprintf(message, args...)
		} else {
			line = string(data)
		}
	} else {
		line = fmt.Sprintf("[%s] %s", now.Format("2006-01-02 15:04:05"), l.formatMessage(level, message, args...))
	}

	if _, err := fmt.Fprintln(l.ConsoleWriter, line); err != nil {
		fmt.Fprintln(os.Stderr, line)
	}
}

func newCustomLogger(level slog.Level) *CustomLogger {
	return &CustomLogger{
		LogLevel:      level,
		ConsoleWriter: os.Stderr,
		OutputType:    PlainOutput,
	}
}

// NewCustomLoggerWithOptions creates a new CustomLogger with full configuration.
func NewCustomLoggerWithOptions(logLevelStr, outputFormat string, quiet, verbose bool) *CustomLogger {
	logLevel := parseLevel(logLevelStr)

	outputType := PlainOutput
	switch outputFormat {
	case "json":
		outputType = JSONOutput
	case "color":
		outputType = ColorOutput
	case "text", "plain":
		outputType = PlainOutput
	}

	if verbose && logLevel > slog.LevelDebug {
		logLevel = slog.LevelDebug
	}

	return &CustomLogger{
		LogLevel:      logLevel,
		OutputType:    outputType,
		Quiet:         quiet,
		ConsoleWriter: os.Stderr,
		Verbose:       verbose,
	}
}

// WithPrefix returns a copy of the logger that prefixes every message.
func (l *CustomLogger) WithPrefix(prefix string) *CustomLogger {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.Prefix != "" {
		prefix = l.Prefix + " " + prefix
	}
	return &CustomLogger{
		LogLevel:      l.LogLevel,
		OutputType:    l.OutputType,
		Quiet:         l.Quiet,
		ConsoleWriter: l.ConsoleWriter,
		Verbose:       l.Verbose,
		Prefix:        prefix,
	}
}

// SetOutput replaces the console writer. This method is thread-safe.
func (l *CustomLogger) SetOutput(w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ConsoleWriter = w
}

// Info logs an informational message.
func (l *CustomLogger) Info(format string, args ...interface{}) {
	l.log(InfoLevel, format, args...)
}

// Warn logs a warning message.
func (l *CustomLogger) Warn(format string, args ...interface{}) {
	l.log(WarnLevel, format, args...)
}

// Debug logs a debug message.
func (l *CustomLogger) Debug(format string, args ...interface{}) {
	l.log(DebugLevel, format, args...)
}

// Error logs an error message. It accepts either an error, a format string,
// or any other value as the first argument.
func (l *CustomLogger) Error(firstArg interface{}, args ...interface{}) {
	switch v := firstArg.(type) {
	case error:
		if len(args) == 0 {
			l.log(ErrorLevel, "%s", v.Error())
		} else {
			l.log(ErrorLevel, v.Error(), args...)
		}
	case string:
		l.log(ErrorLevel, v, args...)
	default:
		l.log(ErrorLevel, "%v", v)
	}
}

func parseLevel(name string) slog.Level {
	switch name {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

var (
	defaultMu     sync.RWMutex
	defaultLogger = newCustomLogger(slog.LevelInfo)
)

// Initialize configures the process-wide default logger.
func Initialize(logLevel, outputFormat string, quiet, verbose bool) error {
	switch outputFormat {
	case "", "json", "color", "text", "plain":
	default:
		return fmt.Errorf("unsupported log format %q (expected text, json or color)", outputFormat)
	}

	l := NewCustomLoggerWithOptions(logLevel, outputFormat, quiet, verbose)

	defaultMu.Lock()
	defaultLogger = l
	defaultMu.Unlock()
	return nil
}

// Default returns the process-wide logger.
func Default() *CustomLogger {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultLogger
}

type loggerKeyType struct{}

var loggerKey = loggerKeyType{}

// WithLogger returns a new context with the provided logger.
func WithLogger(ctx context.Context, l *CustomLogger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// FromContext retrieves the logger from the context, falling back to the
// default logger.
func FromContext(ctx context.Context) *CustomLogger {
	if ctx != nil {
		if l, ok := ctx.Value(loggerKey).(*CustomLogger); ok && l != nil {
			return l
		}
	}
	return Default()
}

// WithPrefix returns a context whose logger prefixes every message.
func WithPrefix(ctx context.Context, prefix string) context.Context {
	return WithLogger(ctx, FromContext(ctx).WithPrefix(prefix))
}

// Warn logs through the default logger.
func Warn(message string, args ...interface{}) { Default().Warn(message, args...) }

// InfoContext logs an informational message using the logger from context.
func InfoContext(ctx context.Context, message string, args ...interface{}) {
	FromContext(ctx).Info(message, args...)
}

// WarnContext logs a warning message using the logger from context.
func WarnContext(ctx context.Context, message string, args ...interface{}) {
	FromContext(ctx).Warn(message, args...)
}

// DebugContext logs a debug message using the logger from context.
func DebugContext(ctx context.Context, message string, args ...interface{}) {
	FromContext(ctx).Debug(message, args...)
}

// ErrorContext logs an error message using the logger from context. It accepts
// either an error, a format string, or any other value as the first argument.
func ErrorContext(ctx context.Context, firstArg interface{}, args ...interface{}) {
	FromContext(ctx).Error(firstArg, args...)
}
