package ui

import (
	"context"
	"errors"
	"image"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/five82/perch/internal/engine"
	"github.com/five82/perch/internal/imagecache"
)

// ErrClosed is returned once the program has exited.
var ErrClosed = errors.New("ui closed")

// Boundary is the UI end of the engine and image cache. It forwards
// deliveries into the Bubble Tea program. Deliveries made before the program
// is attached wait for it, so nothing is reordered.
type Boundary struct {
	attached chan struct{}
	done     chan struct{}
	once     sync.Once
	closing  sync.Once
	program  *tea.Program
}

var (
	_ engine.Boundary     = (*Boundary)(nil)
	_ imagecache.Boundary = (*Boundary)(nil)
)

// NewBoundary returns an unattached boundary.
func NewBoundary() *Boundary {
	return &Boundary{attached: make(chan struct{}), done: make(chan struct{})}
}

func (b *Boundary) attach(p *tea.Program) {
	b.once.Do(func() {
		b.program = p
		close(b.attached)
	})
}

// Close makes every pending and future delivery fail with ErrClosed.
func (b *Boundary) Close() {
	b.closing.Do(func() { close(b.done) })
}

// Deliver implements engine.Boundary.
func (b *Boundary) Deliver(resp engine.Response) error {
	return b.send(resp)
}

type createArtifactMsg struct {
	img   image.Image
	reply chan imagecache.Artifact
}

type releaseArtifactMsg struct {
	artifact imagecache.Artifact
}

// CreateArtifact implements imagecache.Boundary. The artifact is produced on
// the UI goroutine.
func (b *Boundary) CreateArtifact(ctx context.Context, img image.Image) (imagecache.Artifact, error) {
	reply := make(chan imagecache.Artifact, 1)
	if err := b.send(createArtifactMsg{img: img, reply: reply}); err != nil {
		return 0, err
	}
	select {
	case a := <-reply:
		return a, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	case <-b.done:
		return 0, ErrClosed
	}
}

// ReleaseArtifact implements imagecache.Boundary.
func (b *Boundary) ReleaseArtifact(a imagecache.Artifact) {
	_ = b.send(releaseArtifactMsg{artifact: a})
}

func (b *Boundary) send(msg tea.Msg) error {
	select {
	case <-b.attached:
	case <-b.done:
		return ErrClosed
	}
	select {
	case <-b.done:
		return ErrClosed
	default:
	}
	b.program.Send(msg)
	return nil
}
