package imagecache

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Key identifies a remote image. Today every key is an HTTPS URL.
type Key string

// HTTPS returns the key for an https URL.
func HTTPS(url string) Key { return Key(strings.TrimSpace(url)) }

// Artifact is an opaque renderable resource created by the UI boundary.
// The zero value means "none".
type Artifact uint64

// Status is the load phase of an entry.
type Status int

const (
	Pending Status = iota
	Loaded
	Failed
)

func (s Status) String() string {
	switch s {
	case Loaded:
		return "loaded"
	case Failed:
		return "failed"
	default:
		return "pending"
	}
}

// Result is a snapshot of an entry's state.
type Result struct {
	Status   Status
	Artifact Artifact
	Err      string
}

func (r Result) String() string {
	switch r.Status {
	case Loaded:
		return fmt.Sprintf("loaded(%d)", r.Artifact)
	case Failed:
		return fmt.Sprintf("failed(%s)", r.Err)
	default:
		return "pending"
	}
}

// entry is shared by the cache table and every Handle for its key. refs counts
// the table's own reference plus one per live Handle.
type entry struct {
	key        Key
	refs       atomic.Int64
	lastAccess atomic.Int64 // unix nanoseconds

	mu     sync.RWMutex
	result Result
}

func (e *entry) touch(now time.Time) { e.lastAccess.Store(now.UnixNano()) }

func (e *entry) idle(now time.Time) time.Duration {
	return now.Sub(time.Unix(0, e.lastAccess.Load()))
}

func (e *entry) load() Result {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.result
}

// finish moves the entry out of Pending. Only the first call has an effect.
func (e *entry) finish(r Result) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.result.Status != Pending {
		return false
	}
	e.result = r
	return true
}

// Handle is one reference to a cache entry. Every holder sees the same entry,
// so concurrent holders observe the same eventual Result. A Handle must be
// released when its holder no longer needs the image; until then the entry
// cannot be evicted.
type Handle struct {
	e        *entry
	now      func() time.Time
	released atomic.Bool
}

func newHandle(e *entry, now func() time.Time) *Handle {
	e.refs.Add(1)
	return &Handle{e: e, now: now}
}

// Key returns the key of the entry.
func (h *Handle) Key() Key { return h.e.key }

// Result returns the current state and marks the entry as recently used.
func (h *Handle) Result() Result {
	h.e.touch(h.now())
	return h.e.load()
}

// Same reports whether h and other refer to the same entry.
func (h *Handle) Same(other *Handle) bool {
	return h != nil && other != nil && h.e == other.e
}

// Clone returns an additional reference to the same entry.
func (h *Handle) Clone() *Handle { return newHandle(h.e, h.now) }

// Release drops this reference. It is safe to call more than once.
func (h *Handle) Release() {
	if h == nil || h.released.Swap(true) {
		return
	}
	h.e.refs.Add(-1)
}
