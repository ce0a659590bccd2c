// Package twitter provides the remote API client used by the background engine.
//
// # Overview
//
// The client covers the four calls the engine needs: obtaining a temporary
// grant, building the authorization URL for it, exchanging the user's PIN for
// a long-lived Token, and fetching pages of the home timeline. Verify resumes
// a stored Token on startup.
//
// # Authentication
//
// User tokens are OAuth1 key/secret pairs signed through dghubble/oauth1 with
// the out-of-band ("oob") PIN callback. App-only bearer tokens are sent in an
// Authorization header. The consumer key and secret come from
// TWITTER_CLIENT_ID and TWITTER_CLIENT_SECRET.
//
// # Pagination
//
// Cursor is opaque to callers. HomePage takes the current cursor and returns
// the advanced one; on error the input cursor is returned unchanged so a failed
// fetch never poisons the next attempt.
//
// # Error Handling
//
// Errors are wrapped with fmt.Errorf context, for example:
//   - "request token: ..."
//   - "execute request: dial tcp: connection refused"
//   - "api /1.1/statuses/home_timeline.json returned status 429"
package twitter
