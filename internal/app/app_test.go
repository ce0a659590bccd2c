package app

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/five82/perch/internal/config"
)

func TestLogout_ClearsCredentialKeepsMarker(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.toml")
	store, err := config.NewStore(path)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if err := store.Save(config.Config{AccessKey: "k", AccessSecret: "s", LatestSeenID: 42}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	if err := Logout(path); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	cfg, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, ok := cfg.Token(); ok {
		t.Fatalf("credential still present: %+v", cfg)
	}
	if cfg.LatestSeenID != 42 {
		t.Fatalf("LatestSeenID = %d, want 42", cfg.LatestSeenID)
	}
}

func TestLogout_NoCredentialIsNoop(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.toml")
	if err := Logout(path); err != nil {
		t.Fatalf("Logout: %v", err)
	}
}

func TestShowLogs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "perch.log")
	content := strings.Join([]string{
		"2026-10-17T09:30:00Z DBG loading component=image",
		"2026-10-17T09:30:01Z INF logged in component=engine",
		"2026-10-17T09:30:02Z WRN timeline fetch failed component=engine",
	}, "\n") + "\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	var buf bytes.Buffer
	if err := ShowLogs(&buf, LogsOptions{Path: path, Lines: 2}); err != nil {
		t.Fatalf("ShowLogs: %v", err)
	}
	if got := strings.Count(buf.String(), "\n"); got != 2 {
		t.Fatalf("ShowLogs printed %d lines, want 2:\n%s", got, buf.String())
	}

	buf.Reset()
	if err := ShowLogs(&buf, LogsOptions{Path: path, Level: "warn"}); err != nil {
		t.Fatalf("ShowLogs: %v", err)
	}
	if got := strings.TrimSpace(buf.String()); !strings.Contains(got, "WRN") || strings.Contains(got, "INF") {
		t.Fatalf("ShowLogs(level=warn) = %q", got)
	}
}

func TestLoadEnv(t *testing.T) {
	dir := t.TempDir()
	// Equivalent of t.Chdir (Go 1.24+) for the go1.21 toolchain.
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })
	t.Setenv("TWITTER_CLIENT_ID", "")
	_ = os.Unsetenv("TWITTER_CLIENT_ID")
	t.Setenv("TWITTER_CLIENT_SECRET", "from-env")

	if err := os.WriteFile(".env", []byte("TWITTER_CLIENT_ID=from-file\nTWITTER_CLIENT_SECRET=from-file\n"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := LoadEnv(); err != nil {
		t.Fatalf("LoadEnv: %v", err)
	}
	if got := os.Getenv("TWITTER_CLIENT_ID"); got != "from-file" {
		t.Fatalf("TWITTER_CLIENT_ID = %q, want from-file", got)
	}
	if got := os.Getenv("TWITTER_CLIENT_SECRET"); got != "from-env" {
		t.Fatalf("TWITTER_CLIENT_SECRET = %q, want the existing value kept", got)
	}
}
