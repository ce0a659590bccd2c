// Package ui provides the terminal front end for perch.
//
// # Architecture Overview
//
// The UI is a Bubble Tea program. It never talks to the network: every request
// goes to the background engine through the Engine interface, and every answer
// comes back as an engine.Response delivered through a Boundary.
//
//	engine ──Deliver──> Boundary ──Program.Send──> Model.Update
//	  ^                                                │
//	  └──────────── Engine (OpenLogin, Load*, ...) ────┘
//
// The image cache also reaches the UI through the Boundary: decoded images are
// turned into artifacts on the UI goroutine (pre-rendered half-block art held
// in a texture registry) and released there when the cache evicts them.
//
// # Screens
//
//   - Logged out: prompt to start a login
//   - Awaiting PIN: authorization URL and a PIN input
//   - Logging in: spinner while a credential is exchanged or verified
//   - Feed: timeline list on the left, selected tweet on the right
//   - Disconnected: shown once the engine has gone away
//
// # Selection
//
// The list is newest first. When a page arrives with nothing selected, the
// latest seen tweet is selected, falling back to the newest. Moving onto a
// tweet newer than the latest seen one records it through SetLatestSeen.
// Moving down past the oldest tweet requests an older page.
//
// # Themes
//
// Dracula, Nightfox and Slate are built in. T cycles them and persists the
// choice to prefs.toml.
package ui
