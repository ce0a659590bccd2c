// Package config persists perch's credential file.
//
// # Overview
//
// The file is small, human-editable TOML:
//
//	access_key = "..."
//	access_secret = "..."
//	latest_seen_id = 1449152239211134977
//
// A bearer token may be stored instead of the access pair:
//
//	bearer = "..."
//
// SetToken keeps the two forms mutually exclusive.
//
// # Location
//
// The default path is $XDG_CONFIG_HOME/perch/credentials.toml (resolved through
// adrg/xdg). NewStore accepts an explicit path; a leading "~" is expanded.
//
// # Error Handling
//
// A missing file is NOT an error: Load writes a default file and returns an
// empty Config. Read and parse failures are returned wrapped ("open config",
// "read config", "parse config").
//
// # Write-back
//
// The background engine calls Save after every credential change and after
// every update to the latest-seen id.
package config
