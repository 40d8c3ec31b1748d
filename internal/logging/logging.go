// Package logging builds the process logger.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options selects level, encoding and an optional rotated log file.
type Options struct {
	Level  string
	Format string // json or console
	File   string
}

// New returns a logger writing to stderr, and to File when set. The returned
// closer flushes and closes the file.
func New(o Options) (zerolog.Logger, io.Closer, error) {
	lvl := zerolog.InfoLevel
	if s := strings.TrimSpace(o.Level); s != "" {
		l, err := zerolog.ParseLevel(strings.ToLower(s))
		if err != nil {
			return zerolog.Nop(), nopCloser{}, err
		}
		lvl = l
	}
	var out io.Writer = os.Stderr
	if o.Format == "console" {
		out = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	}
	var closer io.Closer = nopCloser{}
	if o.File != "" {
		lj := &lumberjack.Logger{
			Filename:   o.File,
			MaxSize:    100, // MB
			MaxBackups: 5,
			MaxAge:     28, // days
			Compress:   true,
		}
		out = zerolog.MultiLevelWriter(out, lj)
		closer = lj
	}
	return zerolog.New(out).Level(lvl).With().Timestamp().Str("service", "diffusiond").Logger(), closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
