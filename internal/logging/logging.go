package logging

import (
	"cmp"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/term"
)

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

type Format int

const (
	FormatText Format = iota
	FormatJSON
)

type Config struct {
	Level  Level
	Format Format
	Output io.Writer // defaults to os.Stderr
}

type Logger struct {
	log zerolog.Logger
}

func NewLogger(cfg Config) *Logger {
	out := cmp.Or[io.Writer](cfg.Output, os.Stderr)
	if cfg.Format == FormatText {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.TimeOnly, NoColor: !isTerminal(out)}
	}

	return &Logger{log: zerolog.New(out).Level(cfg.Level.zerolog()).With().Timestamp().Logger()}
}

// NewNop returns a logger that discards everything, mostly for tests.
func NewNop() *Logger {
	return &Logger{log: zerolog.Nop()}
}

// With returns a child logger carrying an additional field.
func (l *Logger) With(key, value string) *Logger {
	return &Logger{log: l.log.With().Str(key, value).Logger()}
}

// Err logs err at error level with the given structured fields.
func (l *Logger) Err(err error, msg string, fields map[string]string) {
	e := l.log.Error().Err(err)
	for k, v := range fields {
		e = e.Str(k, v)
	}
	e.Msg(msg)
}

func (l *Logger) Debugf(f string, a ...any) {
	l.log.Debug().Msgf(f, a...)
}

func (l *Logger) Infof(f string, a ...any) {
	l.log.Info().Msgf(f, a...)
}

func (l *Logger) Warnf(f string, a ...any) {
	l.log.Warn().Msgf(f, a...)
}

func (l *Logger) Errorf(f string, a ...any) {
	l.log.Error().Msgf(f, a...)
}

func (lvl Level) zerolog() zerolog.Level {
	switch lvl {
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelWarn:
		return zerolog.WarnLevel
	case LevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}
