// Package audit records kill decisions for later inspection. It is a
// pure observability trail, not decision state: the daemon never reads
// it back, so a restart sees a clean slate regardless of what any sink
// holds.
package audit

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/oomkilld/oomkilld/internal/procfs"
)

// KillEvent is one record of a completed kill.
type KillEvent struct {
	ID         uuid.UUID
	PID        procfs.PID
	Name       string
	VMRSSBytes uint64
	Score      float64
	KilledAt   time.Time
}

// Sink records KillEvents. The killer worker calls Record synchronously
// and waits for it to return (PostgresSink waits for its INSERT); Record
// errors are for logging only and never change the caller's control flow.
type Sink interface {
	Record(ctx context.Context, event KillEvent) error
}

// MemorySink keeps the most recent events in a fixed-size ring buffer.
// It is the default sink when no audit DSN is configured.
type MemorySink struct {
	mu       sync.Mutex
	capacity int
	events   []KillEvent
	next     int
	filled   bool
}

// NewMemorySink builds a ring buffer holding at most capacity events.
func NewMemorySink(capacity int) *MemorySink {
	if capacity <= 0 {
		capacity = 256
	}
	return &MemorySink{capacity: capacity, events: make([]KillEvent, capacity)}
}

// Record implements Sink.
func (m *MemorySink) Record(_ context.Context, event KillEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.events[m.next] = event
	m.next = (m.next + 1) % m.capacity
	if m.next == 0 {
		m.filled = true
	}
	return nil
}

// Recent returns the stored events, oldest first.
func (m *MemorySink) Recent() []KillEvent {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.filled {
		out := make([]KillEvent, m.next)
		copy(out, m.events[:m.next])
		return out
	}

	out := make([]KillEvent, m.capacity)
	copy(out, m.events[m.next:])
	copy(out[m.capacity-m.next:], m.events[:m.next])
	return out
}

// NewEvent stamps a new KillEvent with a fresh UUID.
func NewEvent(pid procfs.PID, name string, rssBytes uint64, score float64, killedAt time.Time) KillEvent {
	return KillEvent{
		ID:         uuid.New(),
		PID:        pid,
		Name:       name,
		VMRSSBytes: rssBytes,
		Score:      score,
		KilledAt:   killedAt,
	}
}
