// Package eventbus is the process-local fan-out of typed events §6 defines
// (job_submitted, job_enqueued, job_scheduled, job_dispatched, job_pending,
// job_requeued, job_updated, job_manual_run). Bounded per-subscriber
// backlog, lossy under slow consumers — late subscribers never see history
// (§9 "Event bus as leaky broadcast"; logs have their own replay buffer in
// internal/coordstore).
//
// Grounded on original_source/scheduler/event_bus.py's SchedulerEventBus
// (per-subscriber queue.Queue(maxsize=256), put_nowait/Full drop), ported
// to buffered channels — the idiomatic Go primitive for this and the
// reason no third-party pub/sub library is warranted for in-process fan-out
// this small.
package eventbus

import (
	"sync"
	"time"
)

// Backlog is the per-subscriber channel capacity. Matches the original's
// maxsize=256.
const Backlog = 256

// Event is the envelope §6 defines: {type, payload, ts}.
type Event struct {
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload"`
	TS      time.Time      `json:"ts"`
}

// Event type constants, §6.
const (
	JobSubmitted  = "job_submitted"
	JobEnqueued   = "job_enqueued"
	JobScheduled  = "job_scheduled"
	JobDispatched = "job_dispatched"
	JobPending    = "job_pending"
	JobRequeued   = "job_requeued"
	JobUpdated    = "job_updated"
	JobManualRun  = "job_manual_run"
)

type Bus struct {
	mu          sync.Mutex
	subscribers map[string]chan Event
	nextID      int
}

func New() *Bus {
	return &Bus{subscribers: make(map[string]chan Event)}
}

// Subscribe registers a new listener and returns its id (for Unsubscribe)
// and its channel. The channel is never closed by Publish; callers should
// drain it until they Unsubscribe.
func (b *Bus) Subscribe() (string, <-chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := subID(b.nextID)
	ch := make(chan Event, Backlog)
	b.subscribers[id] = ch
	return id, ch
}

func (b *Bus) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ch, ok := b.subscribers[id]; ok {
		delete(b.subscribers, id)
		close(ch)
	}
}

// Publish fans an event out to every current subscriber. A subscriber whose
// buffer is full has this event dropped — drop-newest-on-full (§9).
func (b *Bus) Publish(eventType string, payload map[string]any) {
	event := Event{Type: eventType, Payload: payload, TS: time.Now()}

	b.mu.Lock()
	channels := make([]chan Event, 0, len(b.subscribers))
	for _, ch := range b.subscribers {
		channels = append(channels, ch)
	}
	b.mu.Unlock()

	for _, ch := range channels {
		select {
		case ch <- event:
		default:
			// slow consumer; drop this event rather than block publishers.
		}
	}
}

func subID(n int) string {
	const hex = "0123456789abcdef"
	if n == 0 {
		return "sub-0"
	}
	buf := make([]byte, 0, 8)
	for n > 0 {
		buf = append([]byte{hex[n%16]}, buf...)
		n /= 16
	}
	return "sub-" + string(buf)
}
