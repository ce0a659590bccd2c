// Package app is the composition root for perch.
//
// # Overview
//
// Run wires configuration, logging, the Twitter client, the image cache, the
// background engine and the TUI, then blocks until the user quits.
//
//	Run()
//	  ├─> LoadEnv()            consumer key/secret from .env files
//	  ├─> prefs.Load()         theme, page size, log level, refresh timer
//	  ├─> logger.Init()        zerolog to $XDG_STATE_HOME/perch/perch.log
//	  ├─> config.NewStore()    credentials.toml
//	  ├─> twitter.NewClient()
//	  ├─> ui.NewBoundary()     engine and cache deliver through it
//	  ├─> imagecache.New()
//	  ├─> engine.Spawn()
//	  ├─> StartRefresher()     optional periodic LoadNewer
//	  └─> ui.Run()             blocks
//
// On return the engine handle is closed and Run waits briefly for the engine
// goroutine to exit.
//
// # Errors
//
// Missing consumer credentials, an unusable log path or a bad config path are
// returned from Run before anything is drawn. Everything after startup is
// reported in the UI and logged.
//
// # Other Commands
//
// Logout clears the stored credential while keeping the latest-seen marker.
// ShowLogs prints the tail of the log file, optionally filtered by level and
// colourised.
package app
