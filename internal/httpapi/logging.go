package httpapi

import (
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// zlog is the structured logger of the HTTP layer; Nop until SetLogger.
var zlog = zerolog.Nop()

// SetLogger installs a structured logger used by the HTTP layer.
func SetLogger(l zerolog.Logger) { zlog = l }

// LogLevel controls per-request logging behavior.
type LogLevel int

const (
	LevelOff LogLevel = iota
	LevelError
	LevelInfo
	LevelDebug
)

func parseLevel(s string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "off", "":
		return LevelOff
	case "error", "warn":
		return LevelError
	case "info":
		return LevelInfo
	case "debug":
		return LevelDebug
	default:
		return LevelInfo
	}
}

// defaultLogLevel applies when a request carries no override.
var defaultLogLevel = func() LogLevel {
	if v, ok := os.LookupEnv("DIFFUSIOND_REQUEST_LOG"); ok {
		return parseLevel(v)
	}
	return LevelInfo
}()

// SetDefaultRequestLogLevel sets the request log level used without overrides.
func SetDefaultRequestLogLevel(s string) { defaultLogLevel = parseLevel(s) }

func requestLogLevel(r *http.Request) LogLevel {
	// Per-request overrides
	if v := r.URL.Query().Get("log"); v != "" {
		if v == "1" {
			return LevelDebug
		}
		return parseLevel(v)
	}
	if v := r.Header.Get("X-Log-Level"); v != "" {
		return parseLevel(v)
	}
	return defaultLogLevel
}

// logEnd writes the "generate end" line at the request's level.
func logEnd(lvl LogLevel, status int, rid, genID string, dur time.Duration, err error) {
	var ev *zerolog.Event
	switch {
	case lvl >= LevelInfo:
		ev = zlog.Info()
	case lvl >= LevelError && status >= http.StatusInternalServerError:
		ev = zlog.Error()
	default:
		return
	}
	ev = ev.Int("status", status).Dur("dur", dur).Str("generation_id", genID)
	if rid != "" {
		ev = ev.Str("request_id", rid)
	}
	if err != nil {
		ev = ev.Err(err)
	}
	ev.Msg("generate end")
}
