package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config configures the process logger.
type Config struct {
	Level string
	// File is the path of an optional rotated log file. Logs always go to stderr.
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

func DefaultConfig() Config {
	return Config{
		Level:      "info",
		MaxSizeMB:  100,
		MaxBackups: 10,
		MaxAgeDays: 30,
		Compress:   true,
	}
}

// New returns a JSON logger with UTC timestamps. The returned closer releases the log
// file, if any.
func New(config Config, fields map[string]string) (zerolog.Logger, io.Closer, error) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(config.Level))
	if err != nil {
		return zerolog.Nop(), nil, fmt.Errorf("invalid log level %q: %w", config.Level, err)
	}
	zerolog.TimestampFunc = func() time.Time { return time.Now().UTC() }

	var out io.Writer = os.Stderr
	var closer io.Closer = nopCloser{}
	if config.File != "" {
		rotated := &lumberjack.Logger{
			Filename:   config.File,
			MaxSize:    config.MaxSizeMB,
			MaxBackups: config.MaxBackups,
			MaxAge:     config.MaxAgeDays,
			Compress:   config.Compress,
		}
		out = zerolog.MultiLevelWriter(os.Stderr, rotated)
		closer = rotated
	}

	ctx := zerolog.New(out).Level(lvl).With().Timestamp()
	for k, v := range fields {
		ctx = ctx.Str(k, v)
	}
	return ctx.Logger(), closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
