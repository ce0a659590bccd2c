// Package engine runs the background half of perch.
//
// # Overview
//
// The engine is a single goroutine that owns the login state machine, the
// timeline pager and the persisted settings. The UI talks to it through a
// Handle and hears back through a Boundary. Neither side ever blocks on the
// other.
//
// # Message Flow
//
//	┌──────────┐  Command (mailbox)   ┌──────────────┐
//	│    UI    │ ───────────────────> │  run loop    │
//	│          │ <─────────────────── │              │
//	└──────────┘  Response (Deliver)  └──────┬───────┘
//	                                         │ async
//	                                         v
//	                                  helper goroutines
//	                                  (twitter API, image fetch,
//	                                   update check)
//
// The mailbox is unbounded, so sends from the UI return immediately. Remote
// calls run on helper goroutines; when one finishes it posts a closure back to
// the loop, which applies the result. All state therefore changes on one
// goroutine and needs no locking.
//
// # Loop
//
// Each iteration waits for whichever comes first:
//
//   - queued commands, handled in submission order
//   - a finished helper call
//   - the tick (one second by default), which sends WakeOnly, sweeps the image
//     cache and, once an hour, checks for a newer release
//   - context cancellation
//
// # Shutdown
//
// The engine stops when its context is cancelled, when Handle.Close has been
// called and the mailbox is drained, or when Boundary.Deliver fails. In every
// case it tries to deliver Disconnected before exiting and then closes Done.
// Sends after that point log a warning and are dropped.
//
// # Login
//
// At startup a stored credential is verified silently (LoggingIn, then
// LoggedIn or Failed). Otherwise OpenLogin requests a grant, reports the
// authorization URL with AwaitingPin and opens it in the browser; SubmitPin
// exchanges the PIN and persists the resulting credential. Commands that do
// not apply to the current login phase are logged and produce no response.
//
// # Timeline
//
// LoadInitial, LoadOlder and LoadNewer share one cursor. While a fetch holds it
// further fetches are rejected with a log entry. Every successful page is
// merged into the held sequence and the whole sequence is sent as FeedPage.
package engine
