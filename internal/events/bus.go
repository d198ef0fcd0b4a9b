// Package events is the in-process notification surface consumed by UI layers.
package events

import "sync"

// Kind identifies one notification category.
type Kind string

const (
	KindRecordingState Kind = "recording_state"
	KindTranscript     Kind = "transcript"
	KindPlaybackState  Kind = "playback_state"
)

// Event is one notification payload; only the fields for its Kind are set.
type Event struct {
	Kind Kind

	RecordingState string

	Transcript      string
	TranscriptFinal bool

	Playing bool
}

// Bus delivers events synchronously to all current subscribers.
type Bus struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]func(Event)
}

// NewBus constructs an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[int]func(Event))}
}

// Subscribe registers a listener and returns its unsubscribe function.
func (b *Bus) Subscribe(fn func(Event)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	b.subs[id] = fn

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subs, id)
	}
}

// Publish invokes every subscriber with the event before returning.
func (b *Bus) Publish(evt Event) {
	b.mu.Lock()
	listeners := make([]func(Event), 0, len(b.subs))
	for _, fn := range b.subs {
		listeners = append(listeners, fn)
	}
	b.mu.Unlock()

	for _, fn := range listeners {
		fn(evt)
	}
}
