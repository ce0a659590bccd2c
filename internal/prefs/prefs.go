// Package prefs handles perch user preferences persistence.
// Preferences are stored in $XDG_CONFIG_HOME/perch/prefs.toml.
package prefs

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	toml "github.com/pelletier/go-toml/v2"
)

// Prefs holds user preferences for perch.
type Prefs struct {
	Theme    string `toml:"theme"`
	PageSize int    `toml:"page_size"`
	LogLevel string `toml:"log_level"`

	// RefreshMinutes loads newer tweets on a timer. Zero disables it.
	RefreshMinutes int `toml:"refresh_minutes"`
}

const (
	defaultTheme    = "Dracula"
	defaultPageSize = 50
	maxPageSize     = 200
	defaultLogLevel = "info"
)

// Default returns the preferences used when no file exists.
func Default() Prefs {
	return Prefs{Theme: defaultTheme, PageSize: defaultPageSize, LogLevel: defaultLogLevel}
}

// DefaultPath returns the default preferences file path.
func DefaultPath() string {
	return filepath.Join(xdg.ConfigHome, "perch", "prefs.toml")
}

// Load reads preferences from the given path, falling back to defaults on any
// problem. Preferences never block startup.
func Load(path string) Prefs {
	resolved := resolvePath(path)
	p := Default()

	file, err := os.Open(resolved)
	if err != nil {
		return p
	}
	defer func() { _ = file.Close() }()

	bytes, err := io.ReadAll(file)
	if err != nil {
		return p
	}
	if err := toml.Unmarshal(bytes, &p); err != nil {
		return Default()
	}
	return normalize(p)
}

// Save writes preferences to the given path, creating directories as needed.
func Save(path string, p Prefs) error {
	resolved := resolvePath(path)

	if err := os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
		return fmt.Errorf("create prefs dir: %w", err)
	}
	bytes, err := toml.Marshal(normalize(p))
	if err != nil {
		return fmt.Errorf("marshal prefs: %w", err)
	}
	if err := os.WriteFile(resolved, bytes, 0o644); err != nil {
		return fmt.Errorf("write prefs: %w", err)
	}
	return nil
}

func normalize(p Prefs) Prefs {
	if strings.TrimSpace(p.Theme) == "" {
		p.Theme = defaultTheme
	}
	if p.PageSize <= 0 {
		p.PageSize = defaultPageSize
	}
	if p.PageSize > maxPageSize {
		p.PageSize = maxPageSize
	}
	if strings.TrimSpace(p.LogLevel) == "" {
		p.LogLevel = defaultLogLevel
	}
	if p.RefreshMinutes < 0 {
		p.RefreshMinutes = 0
	}
	return p
}

func resolvePath(path string) string {
	if strings.TrimSpace(path) == "" {
		return DefaultPath()
	}
	trimmed := strings.TrimSpace(path)
	if strings.HasPrefix(trimmed, "~") {
		if home, err := os.UserHomeDir(); err == nil {
			trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
		}
	}
	return trimmed
}
