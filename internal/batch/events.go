package batch

import (
	"sync"
	"time"

	"subtitle-merger/internal/domain"
)

// EventType classifies messages emitted during batch execution.
type EventType string

const (
	EventTypeStatus  EventType = "status"
	EventTypeLog     EventType = "log"
	EventTypeSummary EventType = "summary"
)

// Event is a sequenced payload consumed by UI subscribers.
type Event struct {
	Seq        int64                `json:"seq"`
	Timestamp  time.Time            `json:"timestamp"`
	JobID      string               `json:"jobId,omitempty"`
	FolderPath string               `json:"folderPath,omitempty"`
	Type       EventType            `json:"type"`
	Status     domain.JobStatus     `json:"status,omitempty"`
	Message    string               `json:"message,omitempty"`
	Line       string               `json:"line,omitempty"`
	Summary    *domain.BatchSummary `json:"summary,omitempty"`
}

// EventBus stores recent events and provides incremental reads.
// An optional notifier receives each published event for push
// delivery; it runs outside the bus lock.
type EventBus struct {
	mu        sync.RWMutex
	nextSeq   int64
	maxEvents int
	events    []Event
	notify    func(Event)
}

// NewEventBus creates a bounded in-memory event buffer.
func NewEventBus(maxEvents int) *EventBus {
	if maxEvents <= 0 {
		maxEvents = 500
	}

	return &EventBus{
		maxEvents: maxEvents,
		events:    make([]Event, 0, maxEvents),
	}
}

// SetNotifier registers a push callback for published events.
func (b *EventBus) SetNotifier(notify func(Event)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.notify = notify
}

// Publish appends one event and assigns sequence and timestamp.
func (b *EventBus) Publish(event Event) Event {
	b.mu.Lock()

	b.nextSeq++
	event.Seq = b.nextSeq
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	b.events = append(b.events, event)
	if len(b.events) > b.maxEvents {
		trim := len(b.events) - b.maxEvents
		b.events = append([]Event(nil), b.events[trim:]...)
	}

	notify := b.notify
	b.mu.Unlock()

	if notify != nil {
		notify(event)
	}
	return event
}

// Since returns events with sequence strictly greater than seq.
func (b *EventBus) Since(seq int64) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if len(b.events) == 0 {
		return nil
	}

	out := make([]Event, 0, len(b.events))
	for _, event := range b.events {
		if event.Seq > seq {
			out = append(out, event)
		}
	}
	return out
}
