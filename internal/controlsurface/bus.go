// Package controlsurface exposes the engine's state/level events and
// method surface to external listeners: an in-process pub/sub bus, and
// a D-Bus adapter built on top of it (SPEC_FULL §4.7).
package controlsurface

import (
	"sync"

	"github.com/fede/whisperaloud/internal/domain"
	"github.com/fede/whisperaloud/internal/ports"
)

// EventKind identifies the shape of an Event's payload.
type EventKind string

const (
	EventSessionStateChanged EventKind = "session_state_changed"
	EventLevelUpdate         EventKind = "level_update"
	EventTranscriptionReady  EventKind = "transcription_ready"
	EventConfigChanged       EventKind = "config_changed"
	EventError               EventKind = "error"
)

// Event is one published notification. Only the field matching Kind is
// meaningful; the rest are zero values.
type Event struct {
	Kind EventKind

	State  domain.SessionState
	Reason domain.SessionStateReason

	Level float64

	Result ports.TranscriptionMeta
	Stop   domain.StopResult

	ChangedKeys []string

	ErrorCode    domain.ErrorCode
	ErrorMessage string
}

// Bus is a small fan-out event bus: any number of subscribers may
// attach and each receives every event published after it subscribes.
// It generalizes the teacher's single-sink `ports.EventSink` into
// multiple independent listeners (e.g. the D-Bus adapter and a future
// GUI front-end) without coupling them to each other.
type Bus struct {
	mu          sync.Mutex
	subscribers map[int]chan Event
	nextID      int
}

// NewBus creates an empty event bus.
func NewBus() *Bus {
	return &Bus{subscribers: make(map[int]chan Event)}
}

// Subscribe registers a new listener and returns its channel along
// with an unsubscribe function. The channel is buffered; a slow
// subscriber drops events rather than blocking publishers.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	ch := make(chan Event, 64)
	b.subscribers[id] = ch

	unsubscribe := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if existing, ok := b.subscribers[id]; ok {
			delete(b.subscribers, id)
			close(existing)
		}
	}
	return ch, unsubscribe
}

// Publish fans an event out to every current subscriber, non-blocking.
func (b *Bus) Publish(evt Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, ch := range b.subscribers {
		select {
		case ch <- evt:
		default:
		}
	}
}

// Compile-time assertion that PublisherAdapter (below) satisfies
// ports.EventPublisher on behalf of Bus.
var _ ports.EventPublisher = (*PublisherAdapter)(nil)

// PublisherAdapter adapts the typed ports.EventPublisher calls used by
// the Session Controller into Bus events.
type PublisherAdapter struct {
	Bus *Bus
}

func (p *PublisherAdapter) SessionStateChanged(state domain.SessionState, reason domain.SessionStateReason) {
	p.Bus.Publish(Event{Kind: EventSessionStateChanged, State: state, Reason: reason})
}

func (p *PublisherAdapter) LevelUpdate(level float64) {
	p.Bus.Publish(Event{Kind: EventLevelUpdate, Level: level})
}

func (p *PublisherAdapter) TranscriptionReady(result domain.StopResult, meta ports.TranscriptionMeta) {
	p.Bus.Publish(Event{Kind: EventTranscriptionReady, Stop: result, Result: meta})
}

func (p *PublisherAdapter) ConfigChanged(changedKeys []string) {
	p.Bus.Publish(Event{Kind: EventConfigChanged, ChangedKeys: changedKeys})
}

func (p *PublisherAdapter) Error(code domain.ErrorCode, message string) {
	p.Bus.Publish(Event{Kind: EventError, ErrorCode: code, ErrorMessage: message})
}
