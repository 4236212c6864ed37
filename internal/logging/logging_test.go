package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/labstack/gommon/log"
)

func TestJSONRecords(t *testing.T) {
	var buf bytes.Buffer
	l := New("api", "info", "json", &buf)

	l.Infoj(log.JSON{"event": "incident_created", "id": "01H"})
	l.Debug("dropped")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("log lines = %d, want 1: %q", len(lines), buf.String())
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatalf("record is not JSON: %v: %s", err, lines[0])
	}
	if rec["level"] != "INFO" || rec["event"] != "incident_created" || rec["prefix"] != "api" {
		t.Fatalf("record = %v", rec)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]log.Lvl{
		"debug":   log.DEBUG,
		"WARN":    log.WARN,
		"error":   log.ERROR,
		"off":     log.OFF,
		"unknown": log.INFO,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
