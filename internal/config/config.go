package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	toml "github.com/pelletier/go-toml/v2"

	"github.com/five82/perch/internal/logger"
	"github.com/five82/perch/internal/twitter"
)

// Config is the persisted credential file. The access pair and the bearer
// token are mutually exclusive.
type Config struct {
	AccessKey    string `toml:"access_key,omitempty"`
	AccessSecret string `toml:"access_secret,omitempty"`
	Bearer       string `toml:"bearer,omitempty"`
	LatestSeenID uint64 `toml:"latest_seen_id,omitempty"`
}

// Token returns the stored credential, preferring the access pair.
func (c Config) Token() (twitter.Token, bool) {
	if c.AccessKey != "" && c.AccessSecret != "" {
		return twitter.Token{Key: c.AccessKey, Secret: c.AccessSecret}, true
	}
	if c.Bearer != "" {
		return twitter.Token{Bearer: c.Bearer}, true
	}
	return twitter.Token{}, false
}

// SetToken replaces any stored credential with t.
func (c *Config) SetToken(t twitter.Token) {
	c.ClearToken()
	if t.IsBearer() {
		c.Bearer = t.Bearer
		return
	}
	c.AccessKey = t.Key
	c.AccessSecret = t.Secret
}

// ClearToken removes the stored credential. The latest-seen cursor is kept.
func (c *Config) ClearToken() {
	c.AccessKey = ""
	c.AccessSecret = ""
	c.Bearer = ""
}

const fileName = "credentials.toml"

// DefaultPath returns the credential file location under the xdg config dir.
func DefaultPath() string {
	return filepath.Join(xdg.ConfigHome, "perch", fileName)
}

// Store reads and writes the credential file at a fixed path.
type Store struct {
	path string
}

// NewStore resolves path (empty means DefaultPath) and returns a Store for it.
func NewStore(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		path = DefaultPath()
	}
	resolved, err := expandPath(path)
	if err != nil {
		return nil, err
	}
	return &Store{path: resolved}, nil
}

// Path returns the resolved file path.
func (s *Store) Path() string { return s.path }

// Load parses the credential file. A missing file is not an error: a default
// Config is written and returned.
func (s *Store) Load() (Config, error) {
	file, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Named("config").Info().Str("path", s.path).Msg("credential file not found, creating a default one")
			cfg := Config{}
			if err := s.Save(cfg); err != nil {
				return cfg, err
			}
			return cfg, nil
		}
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	bytes, err := io.ReadAll(file)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := toml.Unmarshal(bytes, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	cfg.AccessKey = strings.TrimSpace(cfg.AccessKey)
	cfg.AccessSecret = strings.TrimSpace(cfg.AccessSecret)
	cfg.Bearer = strings.TrimSpace(cfg.Bearer)
	return cfg, nil
}

// Save writes cfg, creating parent directories as needed. The file holds
// credentials, so it is written owner-only.
func (s *Store) Save(cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	bytes, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(s.path, bytes, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
