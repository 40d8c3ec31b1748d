package httpapi

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]LogLevel{
		"":        LevelOff,
		"off":     LevelOff,
		"error":   LevelError,
		"warn":    LevelError,
		"info":    LevelInfo,
		" DEBUG ": LevelDebug,
		"weird":   LevelInfo, // default
	}
	for in, want := range cases {
		if got := parseLevel(in); got != want {
			t.Fatalf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestRequestLogLevel_Overrides(t *testing.T) {
	// query param ?log=debug
	r := httptest.NewRequest("GET", "/x?log=debug", nil)
	if got := requestLogLevel(r); got != LevelDebug {
		t.Fatalf("query override failed: %v", got)
	}
	// shorthand ?log=1
	r = httptest.NewRequest("GET", "/x?log=1", nil)
	if got := requestLogLevel(r); got != LevelDebug {
		t.Fatalf("shorthand query override failed: %v", got)
	}
	// header X-Log-Level
	r = httptest.NewRequest("GET", "/x", nil)
	r.Header.Set("X-Log-Level", "error")
	if got := requestLogLevel(r); got != LevelError {
		t.Fatalf("header override failed: %v", got)
	}
	// query wins over header
	r = httptest.NewRequest("GET", "/x?log=off", nil)
	r.Header.Set("X-Log-Level", "debug")
	if got := requestLogLevel(r); got != LevelOff {
		t.Fatalf("query should win: %v", got)
	}
}

func TestSetDefaultRequestLogLevel(t *testing.T) {
	orig := defaultLogLevel
	defer func() { defaultLogLevel = orig }()
	SetDefaultRequestLogLevel("error")
	if got := requestLogLevel(httptest.NewRequest("GET", "/x", nil)); got != LevelError {
		t.Fatalf("default not applied: %v", got)
	}
}

func TestLogEnd_RespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	SetLogger(zerolog.New(&buf))
	defer SetLogger(zerolog.Nop())

	logEnd(LevelOff, http.StatusInternalServerError, "r1", "g1", time.Millisecond, errors.New("boom"))
	if buf.Len() != 0 {
		t.Fatalf("LevelOff must not log: %s", buf.String())
	}
	logEnd(LevelError, http.StatusBadRequest, "r1", "g1", time.Millisecond, nil)
	if buf.Len() != 0 {
		t.Fatalf("LevelError must skip 4xx: %s", buf.String())
	}
	logEnd(LevelError, http.StatusInternalServerError, "r1", "g1", time.Millisecond, errors.New("boom"))
	out := buf.String()
	for _, want := range []string{`"level":"error"`, `"status":500`, `"request_id":"r1"`, `"generation_id":"g1"`, `"error":"boom"`, "generate end"} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %s in %s", want, out)
		}
	}
	buf.Reset()
	logEnd(LevelInfo, http.StatusOK, "", "g2", time.Millisecond, nil)
	if !strings.Contains(buf.String(), `"level":"info"`) || strings.Contains(buf.String(), "request_id") {
		t.Fatalf("unexpected info line: %s", buf.String())
	}
}
