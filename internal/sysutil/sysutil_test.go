package sysutil

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func TestParseLevel(t *testing.T) {
	cases := []struct {
		in   string
		want zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"  DeBuG  ", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"fatal", zerolog.FatalLevel},
		{"panic", zerolog.PanicLevel},
		{"unknown", zerolog.InfoLevel},
	}
	for _, tc := range cases {
		if got := ParseLevel(tc.in); got != tc.want {
			t.Fatalf("ParseLevel(%q) = %v; want %v", tc.in, got, tc.want)
		}
	}
}

func TestSetupLogger(t *testing.T) {
	origLevel, origLogger := zerolog.GlobalLevel(), log.Logger
	t.Cleanup(func() {
		zerolog.SetGlobalLevel(origLevel)
		log.Logger = origLogger
	})

	var buf bytes.Buffer
	SetupLogger("warn", false, &buf)
	log.Info().Msg("hidden")
	log.Warn().Str("date", "14 OCTOBER").Msg("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info line written at warn level: %s", out)
	}
	if !strings.Contains(out, `"date":"14 OCTOBER"`) || !strings.Contains(out, `"time"`) {
		t.Fatalf("unexpected JSON output: %s", out)
	}

	buf.Reset()
	SetupLogger("debug", true, &buf)
	log.Debug().Msg("pretty")
	if strings.HasPrefix(strings.TrimSpace(buf.String()), "{") {
		t.Fatalf("pretty output looks like JSON: %s", buf.String())
	}
}

func TestEnsureDBDir(t *testing.T) {
	base := t.TempDir()
	path := filepath.Join(base, "nested", "data", "app.db")
	if err := EnsureDBDir(path); err != nil {
		t.Fatalf("EnsureDBDir: %v", err)
	}
	if fi, err := os.Stat(filepath.Dir(path)); err != nil || !fi.IsDir() {
		t.Fatalf("dir not created: %v", err)
	}

	for _, p := range []string{"", "app.db", "file:x?mode=memory", ":memory:"} {
		if err := EnsureDBDir(p); err != nil {
			t.Fatalf("EnsureDBDir(%q): %v", p, err)
		}
	}

	blocker := filepath.Join(base, "file")
	if err := os.WriteFile(blocker, []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := EnsureDBDir(filepath.Join(blocker, "sub", "app.db")); err == nil {
		t.Fatal("expected error when parent is a file")
	}
}
