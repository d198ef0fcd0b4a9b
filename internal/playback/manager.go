// Package playback tracks synthesized-speech outputs and keeps one audible.
package playback

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// Source is one playable audio output owned by a handle.
//
// Stop must be idempotent and must release the underlying audio resource.
// Implementations report natural completion through the callback passed at
// construction time, never from inside Stop.
type Source interface {
	Start()
	Pause()
	Resume()
	Stop()
}

// State is the snapshot delivered to subscribers on every transition.
type State struct {
	Playing  bool
	HandleID string
}

// Handle represents one in-flight playback registered with the manager.
type Handle struct {
	id      string
	source  Source
	manager *Manager
}

// ID returns the handle's unique identifier.
func (h *Handle) ID() string {
	return h.id
}

// Pause suspends audio output without deregistering the handle.
func (h *Handle) Pause() {
	h.source.Pause()
}

// Resume continues audio output after Pause.
func (h *Handle) Resume() {
	h.source.Resume()
}

// Stop force-stops this handle and deregisters it.
func (h *Handle) Stop() {
	h.manager.stop(h.id)
}

// Playing reports whether this handle is the currently audible one.
func (h *Handle) Playing() bool {
	return h.manager.currentID() == h.id
}

// Manager serializes all playback mutation and enforces at-most-one-audible.
//
// Construct once per application and pass by reference; lifecycle spans the
// whole process.
type Manager struct {
	logger *slog.Logger

	mu      sync.Mutex
	current *Handle
	handles map[string]*Handle
	nextSub int
	subs    map[int]func(State)
}

// NewManager constructs an empty playback manager.
func NewManager(logger *slog.Logger) *Manager {
	return &Manager{
		logger:  logger,
		handles: make(map[string]*Handle),
		subs:    make(map[int]func(State)),
	}
}

// Register force-stops any audible handle, then starts the new source.
//
// The swap happens under one critical section: IsPlaying never observes a
// momentary false between the outgoing and incoming handles.
func (m *Manager) Register(source Source) *Handle {
	handle := &Handle{id: uuid.NewString(), source: source, manager: m}

	m.mu.Lock()
	previous := m.current
	if previous != nil {
		delete(m.handles, previous.id)
		previous.source.Stop()
	}
	m.handles[handle.id] = handle
	m.current = handle
	m.mu.Unlock()

	if previous != nil {
		m.logWarn("playback preempted", "stopped_id", previous.id, "started_id", handle.id)
	}
	source.Start()
	m.notify()
	return handle
}

// IsPlaying reports whether any handle is currently audible.
func (m *Manager) IsPlaying() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current != nil
}

// Subscribe registers a listener notified synchronously on every transition.
func (m *Manager) Subscribe(fn func(State)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextSub
	m.nextSub++
	m.subs[id] = fn

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.subs, id)
	}
}

// StopAll force-stops every tracked handle; used for explicit interrupts.
func (m *Manager) StopAll() {
	m.mu.Lock()
	stopped := make([]*Handle, 0, len(m.handles))
	for id, handle := range m.handles {
		delete(m.handles, id)
		stopped = append(stopped, handle)
	}
	m.current = nil
	m.mu.Unlock()

	for _, handle := range stopped {
		handle.source.Stop()
	}
	if len(stopped) > 0 {
		m.notify()
	}
}

// Complete deregisters a handle whose audio finished playing unassisted.
//
// Indistinguishable from an explicit stop for subscribers.
func (m *Manager) Complete(id string) {
	m.deregister(id, false)
}

// stop force-stops one handle and deregisters it.
func (m *Manager) stop(id string) {
	m.deregister(id, true)
}

func (m *Manager) deregister(id string, forceStop bool) {
	m.mu.Lock()
	handle, ok := m.handles[id]
	if !ok {
		m.mu.Unlock()
		return
	}
	delete(m.handles, id)
	if m.current == handle {
		m.current = nil
	}
	m.mu.Unlock()

	if forceStop {
		handle.source.Stop()
	}
	m.notify()
}

func (m *Manager) currentID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return ""
	}
	return m.current.id
}

// notify delivers the current state snapshot to all subscribers.
func (m *Manager) notify() {
	m.mu.Lock()
	state := State{}
	if m.current != nil {
		state = State{Playing: true, HandleID: m.current.id}
	}
	listeners := make([]func(State), 0, len(m.subs))
	for _, fn := range m.subs {
		listeners = append(listeners, fn)
	}
	m.mu.Unlock()

	for _, fn := range listeners {
		fn(state)
	}
}

func (m *Manager) logWarn(msg string, args ...any) {
	if m.logger == nil {
		return
	}
	m.logger.Warn(msg, args...)
}
