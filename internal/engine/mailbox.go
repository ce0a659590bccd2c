package engine

import (
	"errors"
	"sync"
)

// ErrStopped is returned when a command is sent after the engine has shut down.
var ErrStopped = errors.New("background engine stopped")

// mailbox is an unbounded multi-producer, single-consumer command queue.
// Producers never block. ready holds at most one pending wake-up.
type mailbox struct {
	mu     sync.Mutex
	queue  []Command
	closed bool
	ready  chan struct{}
}

func newMailbox() *mailbox {
	return &mailbox{ready: make(chan struct{}, 1)}
}

func (m *mailbox) push(c Command) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrStopped
	}
	m.queue = append(m.queue, c)
	m.mu.Unlock()
	m.wake()
	return nil
}

// close stops accepting commands. Already queued commands are still drained.
func (m *mailbox) close() {
	m.mu.Lock()
	already := m.closed
	m.closed = true
	m.mu.Unlock()
	if !already {
		m.wake()
	}
}

// drain takes every queued command in submission order. open is false once the
// mailbox is closed and empty after this call.
func (m *mailbox) drain() (cmds []Command, open bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cmds, m.queue = m.queue, nil
	return cmds, !m.closed
}

func (m *mailbox) wake() {
	select {
	case m.ready <- struct{}{}:
	default:
	}
}
