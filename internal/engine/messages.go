package engine

import (
	"github.com/five82/perch/internal/imagecache"
	"github.com/five82/perch/internal/twitter"
)

// Command is a request from the UI to the engine. The set of commands is
// closed; see the types below.
type Command interface {
	isCommand()
}

func (OpenLogin) isCommand()     {}
func (SubmitPin) isCommand()     {}
func (LoadInitial) isCommand()   {}
func (LoadOlder) isCommand()     {}
func (LoadNewer) isCommand()     {}
func (LoadImage) isCommand()     {}
func (SetLatestSeen) isCommand() {}

// OpenLogin starts a login attempt and opens the authorization page.
type OpenLogin struct{}

// SubmitPin exchanges the PIN shown on the authorization page.
type SubmitPin struct {
	PIN string
}

// LoadInitial fetches the most recent page of the home timeline.
type LoadInitial struct{}

// LoadOlder fetches the page before the oldest held tweet.
type LoadOlder struct{}

// LoadNewer fetches the page after the newest held tweet.
type LoadNewer struct{}

// LoadImage runs the fetch task for a freshly created cache entry. The engine
// takes ownership of Handle.
type LoadImage struct {
	Key    imagecache.Key
	Handle *imagecache.Handle
}

// SetLatestSeen persists the id of the tweet the user last looked at.
type SetLatestSeen struct {
	ID uint64
}

// Response is a message from the engine to the UI. The set is closed.
type Response interface {
	isResponse()
}

func (WakeOnly) isResponse()        {}
func (Disconnected) isResponse()    {}
func (LoggingIn) isResponse()       {}
func (AwaitingPin) isResponse()     {}
func (LoggedIn) isResponse()        {}
func (Failed) isResponse()          {}
func (FeedPage) isResponse()        {}
func (ImageReady) isResponse()      {}
func (UpdateAvailable) isResponse() {}

// WakeOnly carries no data; it makes the UI redraw.
type WakeOnly struct{}

// Disconnected is the last response an engine sends.
type Disconnected struct{}

// LoggingIn reports that a credential is being verified or exchanged.
type LoggingIn struct{}

// AwaitingPin reports that a grant was issued and the user must enter the PIN
// shown at URL.
type AwaitingPin struct {
	URL string
}

// LoggedIn reports a completed login.
type LoggedIn struct {
	Identity twitter.Identity
}

// Failed carries a user-visible error message.
type Failed struct {
	Message string
}

// FeedPage carries the full merged timeline, ascending by id, and the
// persisted latest-seen id (zero when unset).
type FeedPage struct {
	Items      []twitter.Tweet
	LatestSeen uint64
}

// ImageReady reports that an image entry reached a terminal state.
type ImageReady struct {
	Key    imagecache.Key
	Result imagecache.Result
}

// UpdateAvailable reports a newer released version.
type UpdateAvailable struct {
	Version string
}
