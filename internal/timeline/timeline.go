// Package timeline keeps the locally merged view of the paginated home feed.
package timeline

import (
	"errors"
	"sort"

	"github.com/five82/perch/internal/twitter"
)

// ErrBusy is returned by Begin while a fetch already holds the cursor.
var ErrBusy = errors.New("timeline fetch already in flight")

const defaultPageSize = 50

// Merge folds page into seq, which must be sorted by id ascending with no
// duplicates. An id already present replaces the stored tweet in place; a new
// id is inserted at its sorted position. The result keeps both properties.
func Merge(seq, page []twitter.Tweet) []twitter.Tweet {
	for _, tw := range page {
		idx := sort.Search(len(seq), func(i int) bool { return seq[i].ID >= tw.ID })
		if idx < len(seq) && seq[idx].ID == tw.ID {
			seq[idx] = tw
			continue
		}
		seq = append(seq, twitter.Tweet{})
		copy(seq[idx+1:], seq[idx:])
		seq[idx] = tw
	}
	return seq
}

// Pager owns the pagination cursor and the merged sequence. It is not safe for
// concurrent use; the engine confines it to its loop goroutine.
type Pager struct {
	cursor   *twitter.Cursor
	items    []twitter.Tweet
	pageSize int
}

// NewPager returns a pager whose first newer-fetch starts after since.
func NewPager(since uint64, pageSize int) *Pager {
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	cur := twitter.NewCursor(since)
	return &Pager{cursor: &cur, pageSize: pageSize}
}

// PageSize returns the number of items requested per fetch.
func (p *Pager) PageSize() int { return p.pageSize }

// Busy reports whether a fetch currently holds the cursor.
func (p *Pager) Busy() bool { return p.cursor == nil }

// Begin moves the cursor out for one fetch. It must be followed by exactly one
// Complete or Abort.
func (p *Pager) Begin() (twitter.Cursor, error) {
	if p.cursor == nil {
		return twitter.Cursor{}, ErrBusy
	}
	cur := *p.cursor
	p.cursor = nil
	return cur, nil
}

// Complete moves the advanced cursor back in, merges page and returns a copy
// of the full merged sequence.
func (p *Pager) Complete(next twitter.Cursor, page []twitter.Tweet) []twitter.Tweet {
	p.cursor = &next
	p.items = Merge(p.items, page)
	return p.Items()
}

// Abort moves the previous cursor back in after a failed fetch, leaving the
// sequence untouched.
func (p *Pager) Abort(prev twitter.Cursor) {
	p.cursor = &prev
}

// Items returns a copy of the merged sequence.
func (p *Pager) Items() []twitter.Tweet {
	if len(p.items) == 0 {
		return nil
	}
	dup := make([]twitter.Tweet, len(p.items))
	copy(dup, p.items)
	return dup
}
