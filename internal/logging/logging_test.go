package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
)

func TestConsoleLevels(t *testing.T) {
	tests := []struct {
		name      string
		opts      Options
		wantDebug bool
		wantInfo  bool
	}{
		{"default", Options{}, false, true},
		{"quiet", Options{Quiet: true}, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			tt.opts.Console = &buf
			l, err := New(tt.opts)
			if err != nil {
				t.Fatal(err)
			}
			defer l.Close()

			l.Debug("debug-line")
			l.Info("info-line")
			l.Warn("warn-line")

			out := buf.String()
			if strings.Contains(out, "debug-line") != tt.wantDebug {
				t.Errorf("debug output: %q", out)
			}
			if strings.Contains(out, "info-line") != tt.wantInfo {
				t.Errorf("info output: %q", out)
			}
			if !strings.Contains(out, "warn-line") {
				t.Errorf("warn must always be written: %q", out)
			}
		})
	}
}

func TestDebugFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "debug.log")
	var console bytes.Buffer
	l, err := New(Options{Debug: true, File: path, Console: &console})
	if err != nil {
		t.Fatal(err)
	}
	if l.Path != path {
		t.Errorf("path: got %q", l.Path)
	}
	l.Debug("woven", zap.Int("joinPoint", 7))
	if err := l.Close(); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 || !strings.HasPrefix(lines[0], "=== xmx debug session started") {
		t.Fatalf("unexpected debug file:\n%s", data)
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[1]), &entry); err != nil {
		t.Fatalf("entry is not JSON: %v", err)
	}
	if entry["msg"] != "woven" || entry["joinPoint"] != 7.0 {
		t.Errorf("entry: %v", entry)
	}
	if !strings.Contains(console.String(), "woven") {
		t.Error("debug mode must also log to the console")
	}
}
