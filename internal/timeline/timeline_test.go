package timeline

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/five82/perch/internal/twitter"
)

func ids(seq []twitter.Tweet) []uint64 {
	out := make([]uint64, len(seq))
	for i, tw := range seq {
		out[i] = tw.ID
	}
	return out
}

func page(idList ...uint64) []twitter.Tweet {
	out := make([]twitter.Tweet, len(idList))
	for i, id := range idList {
		out[i] = twitter.Tweet{ID: id}
	}
	return out
}

func equalIDs(a, b []uint64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestMerge_InitialThenNewer(t *testing.T) {
	seq := Merge(nil, page(5, 3, 8))
	if got := ids(seq); !equalIDs(got, []uint64{3, 5, 8}) {
		t.Fatalf("after initial = %v, want [3 5 8]", got)
	}

	newer := page(10, 5)
	newer[1].Text = "edited"
	seq = Merge(seq, newer)
	if got := ids(seq); !equalIDs(got, []uint64{3, 5, 8, 10}) {
		t.Fatalf("after newer = %v, want [3 5 8 10]", got)
	}
	if seq[1].Text != "edited" {
		t.Fatalf("id 5 text = %q, want replaced value", seq[1].Text)
	}
}

func TestMerge_SortedUniqueAndIdempotent(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	var seq []twitter.Tweet
	for round := 0; round < 50; round++ {
		p := make([]twitter.Tweet, rng.Intn(20))
		for i := range p {
			p[i] = twitter.Tweet{ID: uint64(rng.Intn(200))}
		}
		seq = Merge(seq, p)

		for i := 1; i < len(seq); i++ {
			if seq[i-1].ID >= seq[i].ID {
				t.Fatalf("round %d: sequence not strictly ascending at %d: %v", round, i, ids(seq))
			}
		}

		before := ids(seq)
		seq = Merge(seq, p)
		if got := ids(seq); !equalIDs(got, before) {
			t.Fatalf("round %d: re-merge changed sequence: %v -> %v", round, before, got)
		}
	}
}

func TestPager_BeginRejectsSecondFetch(t *testing.T) {
	p := NewPager(0, 0)
	if p.PageSize() != defaultPageSize {
		t.Fatalf("PageSize = %d, want %d", p.PageSize(), defaultPageSize)
	}

	cur, err := p.Begin()
	if err != nil {
		t.Fatalf("Begin returned error: %v", err)
	}
	if !p.Busy() {
		t.Fatalf("Busy = false while cursor is out")
	}
	if _, err := p.Begin(); !errors.Is(err, ErrBusy) {
		t.Fatalf("second Begin error = %v, want ErrBusy", err)
	}

	items := p.Complete(cur, page(2, 1))
	if got := ids(items); !equalIDs(got, []uint64{1, 2}) {
		t.Fatalf("Complete items = %v, want [1 2]", got)
	}
	if p.Busy() {
		t.Fatalf("Busy = true after Complete")
	}
}

func TestPager_AbortKeepsSequence(t *testing.T) {
	p := NewPager(0, 10)
	cur, _ := p.Begin()
	p.Complete(cur, page(4))

	cur, _ = p.Begin()
	p.Abort(cur)
	if p.Busy() {
		t.Fatalf("Busy = true after Abort")
	}
	if got := ids(p.Items()); !equalIDs(got, []uint64{4}) {
		t.Fatalf("Items = %v, want [4]", got)
	}
}

func TestPager_ItemsIsACopy(t *testing.T) {
	p := NewPager(0, 10)
	cur, _ := p.Begin()
	items := p.Complete(cur, page(1))
	items[0].ID = 999
	if got := p.Items()[0].ID; got != 1 {
		t.Fatalf("stored id = %d, want 1", got)
	}
}
