package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Config controls how the service logger is built.
type Config struct {
	Level  string `env:"LEVEL"  envDefault:"info"`
	Format string `env:"FORMAT" envDefault:"json"`
	Caller bool   `env:"CALLER" envDefault:"false"`
}

// New creates the root logger for a service. Every other component receives
// a pointer to this logger (or a child of it) through its constructor.
func New(cfg Config, service string) *zerolog.Logger {
	return NewWithWriter(cfg, service, os.Stdout)
}

// NewWithWriter is New with an explicit output, used by tests.
func NewWithWriter(cfg Config, service string, out io.Writer) *zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339Nano

	var w io.Writer = out
	if strings.EqualFold(cfg.Format, "console") {
		w = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	ctx := zerolog.New(w).
		Level(parseLevel(cfg.Level)).
		With().
		Timestamp().
		Str("service", service)
	if cfg.Caller {
		ctx = ctx.Caller()
	}

	logger := ctx.Logger()
	return &logger
}

func parseLevel(level string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}
