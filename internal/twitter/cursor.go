package twitter

import (
	"net/url"
	"strconv"
)

// Mode selects which slice of the home timeline a page fetch returns.
type Mode int

const (
	// ModeInitial fetches the most recent page and resets the cursor bounds.
	ModeInitial Mode = iota
	// ModeOlder fetches items before the oldest item seen so far.
	ModeOlder
	// ModeNewer fetches items after the newest item seen so far.
	ModeNewer
)

func (m Mode) String() string {
	switch m {
	case ModeOlder:
		return "older"
	case ModeNewer:
		return "newer"
	default:
		return "initial"
	}
}

// Cursor bounds page fetches. Callers treat it as opaque: they pass it to
// HomePage and keep the cursor it returns.
type Cursor struct {
	minID uint64 // oldest id seen
	maxID uint64 // newest id seen
}

// NewCursor returns a cursor whose newer-fetch lower bound is since.
// Zero means no bound.
func NewCursor(since uint64) Cursor {
	return Cursor{maxID: since}
}

// resolve maps an older fetch with nothing held yet to an initial fetch.
func (c Cursor) resolve(mode Mode) Mode {
	if mode == ModeOlder && c.minID == 0 {
		return ModeInitial
	}
	return mode
}

func (c Cursor) query(mode Mode, count int) url.Values {
	values := url.Values{}
	if count > 0 {
		values.Set("count", strconv.Itoa(count))
	}
	values.Set("tweet_mode", "extended")
	switch mode {
	case ModeOlder:
		if c.minID > 1 {
			values.Set("max_id", strconv.FormatUint(c.minID-1, 10))
		}
	case ModeNewer:
		if c.maxID > 0 {
			values.Set("since_id", strconv.FormatUint(c.maxID, 10))
		}
	}
	return values
}

// advance returns the cursor after a page for mode has been received.
// An empty page leaves the bounds where they were.
func (c Cursor) advance(mode Mode, page []Tweet) Cursor {
	if len(page) == 0 {
		return c
	}
	lo, hi := page[0].ID, page[0].ID
	for _, t := range page[1:] {
		if t.ID < lo {
			lo = t.ID
		}
		if t.ID > hi {
			hi = t.ID
		}
	}
	switch mode {
	case ModeInitial:
		return Cursor{minID: lo, maxID: hi}
	case ModeOlder:
		if c.minID == 0 || lo < c.minID {
			c.minID = lo
		}
		if hi > c.maxID {
			c.maxID = hi
		}
	case ModeNewer:
		if hi > c.maxID {
			c.maxID = hi
		}
		if c.minID == 0 || lo < c.minID {
			c.minID = lo
		}
	}
	return c
}
