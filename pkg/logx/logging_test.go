package logx

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func parseLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal(buf.Bytes(), &m); err != nil {
		t.Fatalf("unmarshal log line %q: %v", buf.String(), err)
	}
	return m
}

func TestNewWriterEmitsStructuredFields(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	log := NewWriter(&buf, "debug")

	log.Info("title scanned",
		String("title", "Hamilton"),
		Int("dates", 2),
		Bool("new", true),
		Duration("elapsed", 1500*time.Millisecond),
		Any("extra", map[string]int{"attempt": 1}),
	)

	m := parseLine(t, &buf)
	if m["message"] != "title scanned" {
		t.Errorf("message = %v", m["message"])
	}
	if m["level"] != "info" {
		t.Errorf("level = %v", m["level"])
	}
	if m["title"] != "Hamilton" {
		t.Errorf("title = %v", m["title"])
	}
	if m["dates"] != float64(2) {
		t.Errorf("dates = %v", m["dates"])
	}
	if m["new"] != true {
		t.Errorf("new = %v", m["new"])
	}
	if m["elapsed"] != float64(1500) {
		t.Errorf("elapsed = %v", m["elapsed"])
	}
	extra, ok := m["extra"].(map[string]any)
	if !ok || extra["attempt"] != float64(1) {
		t.Errorf("extra = %v", m["extra"])
	}
	if _, ok := m["time"]; !ok {
		t.Error("missing timestamp")
	}
}

func TestNewWriterLevelGate(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	log := NewWriter(&buf, "info")

	log.Trace("hidden")
	log.Debug("hidden")
	if buf.Len() != 0 {
		t.Fatalf("sub-info levels leaked: %q", buf.String())
	}

	log.Warn("visible")
	if !strings.Contains(buf.String(), "visible") {
		t.Errorf("warn suppressed: %q", buf.String())
	}
}

func TestWithFieldsDoNotLeakToParent(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	base := NewWriter(&buf, "info").With(String("comp", "monitor"))
	derived := base.With(String("title", "Wicked"))

	derived.Info("checked")
	m := parseLine(t, &buf)
	if m["comp"] != "monitor" || m["title"] != "Wicked" {
		t.Errorf("derived fields = %v", m)
	}

	buf.Reset()
	base.Info("pass done")
	m = parseLine(t, &buf)
	if _, ok := m["title"]; ok {
		t.Errorf("derived field leaked into parent: %v", m)
	}
	if m["comp"] != "monitor" {
		t.Errorf("parent lost its own field: %v", m)
	}
}

func TestErrFieldSkipsNil(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	log := NewWriter(&buf, "info")

	log.Error("fetch failed", Err(errors.New("connection refused")))
	if !strings.Contains(buf.String(), "connection refused") {
		t.Errorf("error text missing: %q", buf.String())
	}

	buf.Reset()
	log.Error("fetch failed", Err(nil))
	if strings.Contains(buf.String(), "null") {
		t.Errorf("nil error rendered: %q", buf.String())
	}
}

func TestEnabled(t *testing.T) {
	t.Parallel()
	log := NewWriter(&bytes.Buffer{}, "warn")

	if log.Enabled(LevelInfo) {
		t.Error("info enabled at warn")
	}
	if !log.Enabled(LevelWarn) {
		t.Error("warn disabled at warn")
	}
	if !log.Enabled(LevelError) {
		t.Error("error disabled at warn")
	}
}

func TestZeroValueLoggerIsSafe(t *testing.T) {
	t.Parallel()
	var log Logger
	if !log.IsZero() {
		t.Error("zero value not reported as zero")
	}
	log.Info("into the void")
	log.With(String("k", "v")).Error("still nothing")
}

func TestParseLevel(t *testing.T) {
	t.Parallel()
	cases := []struct {
		in   string
		want Level
	}{
		{"trace", LevelTrace},
		{"DEBUG", LevelDebug},
		{"info", LevelInfo},
		{"warning", LevelWarn},
		{" error ", LevelError},
		{"", LevelInfo},
		{"bogus", LevelInfo},
	}
	for _, tc := range cases {
		if got := parseLevel(tc.in, LevelInfo); got != tc.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

// The Service tests stay sequential: New adjusts zerolog package globals.
func TestServiceFileSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tdfmon.log")
	svc, log := New(Config{Level: "debug", Console: false, File: FileConfig{Enabled: true, Path: path}})
	defer svc.Close()

	log.Info("pass complete", Int("titles", 3))

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), "pass complete") || !strings.Contains(string(data), `"titles":3`) {
		t.Errorf("log file contents = %q", data)
	}
}

func TestServiceApplyKeepsLoggersLive(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "first.log")
	second := filepath.Join(dir, "second.log")

	svc, log := New(Config{Level: "debug", Console: false, File: FileConfig{Enabled: true, Path: first}})
	defer svc.Close()
	log.Debug("before swap")

	svc.Apply(Config{Level: "error", Console: false, File: FileConfig{Enabled: true, Path: second}})
	log.Debug("filtered after swap")
	log.Error("after swap")

	got, err := os.ReadFile(first)
	if err != nil {
		t.Fatalf("read first: %v", err)
	}
	if !strings.Contains(string(got), "before swap") || strings.Contains(string(got), "after swap") {
		t.Errorf("first sink = %q", got)
	}

	got, err = os.ReadFile(second)
	if err != nil {
		t.Fatalf("read second: %v", err)
	}
	if strings.Contains(string(got), "filtered after swap") {
		t.Errorf("debug leaked past error level: %q", got)
	}
	if !strings.Contains(string(got), "after swap") {
		t.Errorf("second sink = %q", got)
	}
}
