package logger

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

const (
	DEBUG int = iota
	INFO
	WARNING
	ERROR
	SILENCE
)

type Logger interface {
	Debugf(msg string, a ...any)
	Infof(msg string, a ...any)
	Warnf(msg string, a ...any)
	Errorf(msg string, a ...any)
}

type defaultLogger struct {
	zl zerolog.Logger
}

func NewLogger(level int) *defaultLogger {
	return NewLoggerWithWriter(level, zerolog.ConsoleWriter{Out: os.Stderr})
}

func NewLoggerWithWriter(level int, w io.Writer) *defaultLogger {
	zl := zerolog.New(w).With().Timestamp().Logger()
	switch level {
	case DEBUG:
		zl = zl.Level(zerolog.DebugLevel)
	case INFO:
		zl = zl.Level(zerolog.InfoLevel)
	case WARNING:
		zl = zl.Level(zerolog.WarnLevel)
	case ERROR:
		zl = zl.Level(zerolog.ErrorLevel)
	default:
		zl = zl.Level(zerolog.Disabled)
	}

	return &defaultLogger{zl: zl}
}

func (l *defaultLogger) Debugf(msg string, a ...any) {
	l.zl.Debug().Msgf(msg, a...)
}

func (l *defaultLogger) Infof(msg string, a ...any) {
	l.zl.Info().Msgf(msg, a...)
}

func (l *defaultLogger) Warnf(msg string, a ...any) {
	l.zl.Warn().Msgf(msg, a...)
}

func (l *defaultLogger) Errorf(msg string, a ...any) {
	l.zl.Error().Msgf(msg, a...)
}
