// Package logger provides leveled logging for the analysis runs.
package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// Level represents a logging level.
type Level int

const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

func (l Level) String() string {
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
		return "FATAL"
	}
}

// ParseLevel maps a config string to a Level, defaulting to InfoLevel.
func ParseLevel(level string) Level {
	switch strings.ToLower(level) {
	case "debug":
		return DebugLevel
	case "warn":
		return WarnLevel
	case "error":
		return ErrorLevel
	default:
		return InfoLevel
	}
}

// Logger provides leveled logging as text lines or, with the json format, zerolog JSON lines.
type Logger struct {
	level  Level
	logger *log.Logger
	json   *zerolog.Logger
}

var defaultLogger *Logger

// Init initializes the default logger writing to stderr.
func Init(level string, format string) {
	InitWithOutput(level, format, os.Stderr)
}

// InitWithOutput initializes the default logger writing to out.
func InitWithOutput(level string, format string, out io.Writer) {
	l := &Logger{level: ParseLevel(level)}

	if strings.ToLower(format) == "json" {
		zl := zerolog.New(out).With().Timestamp().Logger()
		l.json = &zl
	} else {
		l.logger = log.New(out, "", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	}

	defaultLogger = l
}

func (l Level) zerologLevel() zerolog.Level {
	switch l {
	case DebugLevel:
		return zerolog.DebugLevel
	case InfoLevel:
		return zerolog.InfoLevel
	case WarnLevel:
		return zerolog.WarnLevel
	case ErrorLevel:
		return zerolog.ErrorLevel
	default:
		return zerolog.FatalLevel
	}
}

func (l *Logger) output(level Level, format string, args ...interface{}) {
	if l.json != nil {
		// WithLevel never exits, Fatal handles that itself
		l.json.WithLevel(level.zerologLevel()).Msgf(format, args...)
		return
	}
	_ = l.logger.Output(3, fmt.Sprintf("[%s] %s", level, fmt.Sprintf(format, args...)))
}

func enabled(level Level) bool {
	return defaultLogger != nil && defaultLogger.level <= level
}

func Debug(format string, args ...interface{}) {
	if enabled(DebugLevel) {
		defaultLogger.output(DebugLevel, format, args...)
	}
}

func Info(format string, args ...interface{}) {
	if enabled(InfoLevel) {
		defaultLogger.output(InfoLevel, format, args...)
	}
}

func Warn(format string, args ...interface{}) {
	if enabled(WarnLevel) {
		defaultLogger.output(WarnLevel, format, args...)
	}
}

func Error(format string, args ...interface{}) {
	if enabled(ErrorLevel) {
		defaultLogger.output(ErrorLevel, format, args...)
	}
}

func Fatal(format string, args ...interface{}) {
	if defaultLogger != nil {
		defaultLogger.output(ErrorLevel+1, format, args...)
	} else {
		log.Printf("[FATAL] "+format, args...)
	}
	os.Exit(1)
}
