// Package recorder segments microphone audio into silence-bounded utterances.
package recorder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/jmlago/parlo/internal/audio"
	"github.com/jmlago/parlo/internal/events"
	"github.com/jmlago/parlo/internal/fsm"
	"github.com/jmlago/parlo/internal/metrics"
	"github.com/jmlago/parlo/internal/pcm"
	"github.com/jmlago/parlo/internal/vad"
)

var (
	// ErrSessionActive is returned by Start while a session is already running.
	ErrSessionActive = errors.New("recording session already active")

	// ErrMicUnavailable wraps capture-device failures at session start.
	ErrMicUnavailable = errors.New("microphone unavailable")
)

// Microphone opens a capture stream for one recording session.
type Microphone interface {
	Start(ctx context.Context) (Stream, error)
}

// Stream is a live capture session delivering fixed-size analysis windows.
type Stream interface {
	Windows() <-chan []float32
	SampleRate() int
	Stop() error
}

// PulseMicrophone resolves device preferences and opens a Pulse capture stream.
type PulseMicrophone struct {
	Input      string
	Fallback   string
	SampleRate int
	Logger     *slog.Logger
}

func (m *PulseMicrophone) Start(ctx context.Context) (Stream, error) {
	selection, err := audio.SelectDevice(ctx, m.Input, m.Fallback)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMicUnavailable, err)
	}
	if selection.Warning != "" && m.Logger != nil {
		m.Logger.Warn("capture device fallback", "warning", selection.Warning)
	}

	capture, err := audio.StartCapture(ctx, selection.Device, m.SampleRate)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMicUnavailable, err)
	}
	return capture, nil
}

// Config carries recorder tuning; zero fields fall back to defaults.
type Config struct {
	Meter          *vad.Meter
	Converter      *pcm.Converter
	SilenceTimeout time.Duration
	MinDuration    time.Duration
	MinBytes       int
	Clock          clockwork.Clock
	Bus            *events.Bus
	Metrics        *metrics.Metrics
	Logger         *slog.Logger
}

const (
	defaultSilenceTimeout = time.Second
	defaultMinDuration    = 300 * time.Millisecond
	defaultMinBytes       = 3200

	segmentBuffer = 32
)

// Recorder drives the voice-activity state machine over one capture stream
// at a time and emits each utterance as an encoded segment.
//
// Event-bus subscribers are invoked with the recorder lock held and must not
// call back into the recorder.
type Recorder struct {
	mic     Microphone
	meter   *vad.Meter
	conv    *pcm.Converter
	clock   clockwork.Clock
	bus     *events.Bus
	metrics *metrics.Metrics
	logger  *slog.Logger

	silenceTimeout time.Duration
	minDuration    time.Duration
	minBytes       int

	mu        sync.Mutex
	state     fsm.State
	sessionID string
	stream    Stream
	flush     bool
	done      chan struct{}
	segments  chan *pcm.EncodedAudio
	frames    []float32
	speech    int
	deadline  time.Time
}

// New builds a recorder around the given microphone.
func New(mic Microphone, cfg Config) (*Recorder, error) {
	if mic == nil {
		return nil, errors.New("recorder requires a microphone")
	}
	if cfg.Meter == nil {
		return nil, errors.New("recorder requires an energy meter")
	}
	if cfg.Converter == nil {
		return nil, errors.New("recorder requires a segment converter")
	}
	if cfg.SilenceTimeout <= 0 {
		cfg.SilenceTimeout = defaultSilenceTimeout
	}
	if cfg.MinDuration <= 0 {
		cfg.MinDuration = defaultMinDuration
	}
	if cfg.MinBytes <= 0 {
		cfg.MinBytes = defaultMinBytes
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}

	return &Recorder{
		mic:            mic,
		meter:          cfg.Meter,
		conv:           cfg.Converter,
		clock:          cfg.Clock,
		bus:            cfg.Bus,
		metrics:        cfg.Metrics,
		logger:         cfg.Logger,
		silenceTimeout: cfg.SilenceTimeout,
		minDuration:    cfg.MinDuration,
		minBytes:       cfg.MinBytes,
		state:          fsm.StateIdle,
	}, nil
}

// Start opens the microphone and begins segmenting until Stop or Cancel.
//
// The returned channel delivers finished segments and closes when the
// session ends. A second Start while a session is active is rejected.
func (r *Recorder) Start(ctx context.Context) (<-chan *pcm.EncodedAudio, error) {
	r.mu.Lock()
	if r.sessionID != "" {
		r.mu.Unlock()
		return nil, ErrSessionActive
	}
	sessionID := uuid.NewString()
	r.sessionID = sessionID
	r.mu.Unlock()

	stream, err := r.mic.Start(ctx)
	if err != nil {
		r.mu.Lock()
		r.sessionID = ""
		r.mu.Unlock()
		return nil, err
	}

	r.mu.Lock()
	r.stream = stream
	r.flush = false
	r.done = make(chan struct{})
	r.segments = make(chan *pcm.EncodedAudio, segmentBuffer)
	r.frames = nil
	r.deadline = time.Time{}
	r.transition(fsm.EventStart)
	segments := r.segments
	done := r.done
	r.mu.Unlock()

	r.logInfo("recording session started", "session_id", sessionID)
	go r.run(stream, done)
	return segments, nil
}

// Stop ends the active session; flush emits any buffered speech first.
// Stopping an idle recorder is a no-op.
func (r *Recorder) Stop(flush bool) error {
	return r.end(flush)
}

// Cancel ends the active session and discards buffered speech.
func (r *Recorder) Cancel() error {
	return r.end(false)
}

func (r *Recorder) end(flush bool) error {
	r.mu.Lock()
	if r.sessionID == "" {
		r.mu.Unlock()
		return nil
	}
	r.flush = flush
	stream := r.stream
	done := r.done
	r.mu.Unlock()

	// Drain the run loop even when Stop fails, otherwise the session
	// stays registered and every later Start is rejected.
	err := stream.Stop()
	<-done
	if err != nil {
		return fmt.Errorf("stop capture stream: %w", err)
	}
	return nil
}

// State returns the current machine state.
func (r *Recorder) State() fsm.State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// SessionID returns the active session identifier, or empty when idle.
func (r *Recorder) SessionID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessionID
}

// run consumes analysis windows until the capture stream closes.
func (r *Recorder) run(stream Stream, done chan struct{}) {
	rate := stream.SampleRate()
	for window := range stream.Windows() {
		r.process(window, rate)
	}
	r.finish(rate)
	close(done)
}

// process advances the state machine by one analysis window.
func (r *Recorder) process(window []float32, rate int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	energy, active := r.meter.Sample(window)

	switch r.state {
	case fsm.StateListening:
		if active {
			r.transition(fsm.EventEnergyRise)
			r.frames = append(r.frames, window...)
			r.speech += len(window)
			r.logDebug("speech detected", "energy", energy)
		}
	case fsm.StateSpeech:
		r.frames = append(r.frames, window...)
		if active {
			r.speech += len(window)
		} else {
			r.transition(fsm.EventEnergyFall)
			r.deadline = r.clock.Now().Add(r.silenceTimeout)
			r.logDebug("silence pending", "energy", energy)
		}
	case fsm.StateSilencePending:
		r.frames = append(r.frames, window...)
		if active {
			r.transition(fsm.EventEnergyRise)
			r.speech += len(window)
			r.deadline = time.Time{}
			r.logDebug("speech resumed", "energy", energy)
		} else if !r.clock.Now().Before(r.deadline) {
			r.transition(fsm.EventSilenceElapsed)
			r.emitLocked(rate)
			r.transition(fsm.EventFlushed)
		}
	}
}

// finish flushes or discards buffered speech once the stream has closed.
func (r *Recorder) finish(rate int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch r.state {
	case fsm.StateSpeech, fsm.StateSilencePending:
		if r.flush {
			r.transition(fsm.EventStop)
			r.emitLocked(rate)
			r.transition(fsm.EventStop)
		} else {
			r.frames = nil
			r.transition(fsm.EventCancel)
		}
	case fsm.StateListening, fsm.StateFinalizing:
		if r.flush {
			r.transition(fsm.EventStop)
		} else {
			r.transition(fsm.EventCancel)
		}
	case fsm.StateError:
		r.transition(fsm.EventReset)
	}

	close(r.segments)
	r.logInfo("recording session ended", "session_id", r.sessionID)
	r.sessionID = ""
	r.stream = nil
	r.frames = nil
	r.speech = 0
	r.deadline = time.Time{}
}

// emitLocked encodes buffered frames into one segment. Caller holds r.mu.
func (r *Recorder) emitLocked(rate int) {
	frames := r.frames
	speech := r.speech
	r.frames = nil
	r.speech = 0
	r.deadline = time.Time{}
	if len(frames) == 0 {
		return
	}

	// Size checks count voiced frames only so trailing silence cannot
	// promote a too-short burst into a segment.
	duration := time.Duration(speech) * time.Second / time.Duration(rate)
	if duration < r.minDuration || speech*2 < r.minBytes {
		r.logDebug("segment discarded", "duration", duration)
		if r.metrics != nil {
			r.metrics.SegmentsDiscarded.Inc()
		}
		return
	}

	encoded := r.conv.FromFrames([][]float32{frames}, rate)
	if encoded == nil {
		r.logDebug("segment discarded", "duration", duration)
		if r.metrics != nil {
			r.metrics.SegmentsDiscarded.Inc()
		}
		return
	}

	select {
	case r.segments <- encoded:
		if r.metrics != nil {
			r.metrics.SegmentsEmitted.Inc()
		}
		r.logInfo("segment emitted", "duration", encoded.Duration, "bytes", len(encoded.Data))
	default:
		r.logWarn("segment dropped; consumer is not keeping up", "duration", encoded.Duration)
	}
}

// transition applies one event; an illegal event parks the machine in error.
// Caller holds r.mu.
func (r *Recorder) transition(event fsm.Event) {
	next, err := fsm.Transition(r.state, event)
	if err != nil {
		r.logWarn("state machine fault", "state", string(r.state), "event", string(event), "error", err)
		next, _ = fsm.Transition(r.state, fsm.EventFail)
	}
	if next == r.state {
		return
	}
	r.state = next
	if r.bus != nil {
		r.bus.Publish(events.Event{Kind: events.KindRecordingState, RecordingState: string(next)})
	}
}

func (r *Recorder) logInfo(msg string, args ...any) {
	if r.logger != nil {
		r.logger.Info(msg, args...)
	}
}

func (r *Recorder) logWarn(msg string, args ...any) {
	if r.logger != nil {
		r.logger.Warn(msg, args...)
	}
}

func (r *Recorder) logDebug(msg string, args ...any) {
	if r.logger != nil {
		r.logger.Debug(msg, args...)
	}
}
