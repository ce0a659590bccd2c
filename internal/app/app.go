package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"github.com/joho/godotenv"

	"github.com/five82/perch/internal/browser"
	"github.com/five82/perch/internal/config"
	"github.com/five82/perch/internal/engine"
	"github.com/five82/perch/internal/imagecache"
	"github.com/five82/perch/internal/logger"
	"github.com/five82/perch/internal/logtail"
	"github.com/five82/perch/internal/prefs"
	"github.com/five82/perch/internal/twitter"
	"github.com/five82/perch/internal/ui"
	"github.com/five82/perch/internal/update"
)

const shutdownTimeout = 3 * time.Second

// Options configure the perch application.
type Options struct {
	ConfigPath string // empty uses ~/.config/perch/credentials.toml
	PrefsPath  string // empty uses ~/.config/perch/prefs.toml
	LogPath    string // empty uses DefaultLogPath
	Version    string
}

// DefaultLogPath returns the log file location under the xdg state dir.
func DefaultLogPath() string {
	return filepath.Join(xdg.StateHome, "perch", "perch.log")
}

// Run boots the engine and the TUI and blocks until the user quits or ctx is
// cancelled.
func Run(ctx context.Context, opts Options) error {
	if err := LoadEnv(); err != nil {
		return err
	}
	userPrefs := prefs.Load(opts.PrefsPath)

	logPath := opts.LogPath
	if logPath == "" {
		logPath = DefaultLogPath()
	}
	logFile, err := logger.OpenFile(logPath)
	if err != nil {
		return err
	}
	defer func() { _ = logFile.Close() }()
	logger.Init(logger.Options{Level: userPrefs.LogLevel, Format: "console", Writer: logFile})
	log := logger.Named("app")
	log.Info().Str("version", opts.Version).Msg("starting perch")

	store, err := config.NewStore(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("resolve config path: %w", err)
	}

	client, err := twitter.NewClient(twitter.OptionsFromEnv())
	if err != nil {
		if errors.Is(err, twitter.ErrNoConsumer) {
			return fmt.Errorf("init twitter client: %w (set TWITTER_CLIENT_ID and TWITTER_CLIENT_SECRET or add them to a .env file)", err)
		}
		return fmt.Errorf("init twitter client: %w", err)
	}

	boundary := ui.NewBoundary()
	cache := imagecache.New(imagecache.Options{Boundary: boundary})
	checker := update.Checker{Current: opts.Version}

	handle := engine.Spawn(ctx, engine.Options{
		Client:      client,
		Boundary:    boundary,
		Settings:    store,
		Cache:       cache,
		OpenURL:     browser.Open,
		CheckUpdate: checker.Check,
		PageSize:    userPrefs.PageSize,
	})
	refreshCtx, stopRefresh := context.WithCancel(ctx)
	defer stopRefresh()
	StartRefresher(refreshCtx, handle, time.Duration(userPrefs.RefreshMinutes)*time.Minute)

	runErr := ui.Run(ctx, boundary, ui.Options{
		Engine:    handle,
		Cache:     cache,
		Prefs:     userPrefs,
		PrefsPath: opts.PrefsPath,
		Version:   opts.Version,
	})

	stopRefresh()
	handle.Close()
	select {
	case <-handle.Done():
	case <-time.After(shutdownTimeout):
		log.Warn().Msg("background engine did not stop in time")
	}
	log.Info().Msg("perch exited")
	return runErr
}

// LoadEnv loads consumer credentials from .env files. Values already set in
// the environment win. Missing files are skipped.
func LoadEnv() error {
	for _, path := range envFiles() {
		if err := godotenv.Load(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", path, err)
		}
	}
	return nil
}

func envFiles() []string {
	return []string{".env", filepath.Join(xdg.ConfigHome, "perch", ".env")}
}

// Logout removes the stored credential. The latest-seen marker is kept.
func Logout(configPath string) error {
	store, err := config.NewStore(configPath)
	if err != nil {
		return fmt.Errorf("resolve config path: %w", err)
	}
	cfg, err := store.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if _, ok := cfg.Token(); !ok {
		return nil
	}
	cfg.ClearToken()
	if err := store.Save(cfg); err != nil {
		return fmt.Errorf("save config: %w", err)
	}
	return nil
}

// LogsOptions select what ShowLogs prints.
type LogsOptions struct {
	Path  string // empty uses DefaultLogPath
	Lines int    // non-positive prints everything
	Level string // minimum level; empty keeps all
	Color bool
}

// ShowLogs writes the end of the log file to w.
func ShowLogs(w io.Writer, opts LogsOptions) error {
	path := opts.Path
	if path == "" {
		path = DefaultLogPath()
	}
	lines, err := logtail.Read(path, opts.Lines)
	if err != nil {
		return err
	}
	lines = logtail.Filter(lines, opts.Level)
	if opts.Color {
		lines = logtail.ColorizeLines(lines)
	}
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}
