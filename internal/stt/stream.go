// Package stt turns recorded utterance segments into finalized transcripts.
package stt

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/jmlago/parlo/internal/events"
	"github.com/jmlago/parlo/internal/gate"
	"github.com/jmlago/parlo/internal/metrics"
	"github.com/jmlago/parlo/internal/pcm"
)

// Sink receives each finalized transcript.
type Sink interface {
	Commit(ctx context.Context, transcript string) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, transcript string) error

func (f SinkFunc) Commit(ctx context.Context, transcript string) error {
	return f(ctx, transcript)
}

// StreamConfig carries stream wiring; zero tuning fields fall back to defaults.
type StreamConfig struct {
	Transcriber  Transcriber
	Gate         *gate.Gate
	Sink         Sink
	RetryLimit   int
	RetryBackoff time.Duration
	Clock        clockwork.Clock
	Bus          *events.Bus
	Metrics      *metrics.Metrics
	Logger       *slog.Logger
}

const (
	defaultRetryLimit   = 3
	defaultRetryBackoff = 500 * time.Millisecond
)

// Stream drives segments through recognition, accumulation, and gating,
// committing the buffered transcript once the gate judges it complete.
type Stream struct {
	transcriber  Transcriber
	gate         *gate.Gate
	sink         Sink
	retryLimit   int
	retryBackoff time.Duration
	clock        clockwork.Clock
	bus          *events.Bus
	metrics      *metrics.Metrics
	logger       *slog.Logger

	buffer *Buffer
}

// NewStream builds a transcription stream.
func NewStream(cfg StreamConfig) (*Stream, error) {
	if cfg.Transcriber == nil {
		return nil, errors.New("stream requires a transcriber")
	}
	if cfg.Gate == nil {
		return nil, errors.New("stream requires a submission gate")
	}
	if cfg.Sink == nil {
		return nil, errors.New("stream requires a sink")
	}
	if cfg.RetryLimit <= 0 {
		cfg.RetryLimit = defaultRetryLimit
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = defaultRetryBackoff
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}

	return &Stream{
		transcriber:  cfg.Transcriber,
		gate:         cfg.Gate,
		sink:         cfg.Sink,
		retryLimit:   cfg.RetryLimit,
		retryBackoff: cfg.RetryBackoff,
		clock:        cfg.Clock,
		bus:          cfg.Bus,
		metrics:      cfg.Metrics,
		logger:       cfg.Logger,
		buffer:       NewBuffer(),
	}, nil
}

// Transcript returns the text accumulated for the current turn.
func (s *Stream) Transcript() string {
	return s.buffer.Text()
}

// Cancel discards the turn in progress. Call it before the segment
// channel closes so the trailing flush commits nothing; transcriptions
// still in flight land on a stale generation and are dropped.
func (s *Stream) Cancel() {
	s.buffer.Reset()
	s.gate.Reset()
	s.publishTranscript("", false)
	s.logInfo("turn discarded")
}

// Run consumes segments until the channel closes, then flushes whatever
// text is still buffered as a final transcript.
func (s *Stream) Run(ctx context.Context, segments <-chan *pcm.EncodedAudio) error {
	generation := s.buffer.Generation()

	for segment := range segments {
		text, err := s.transcribe(ctx, segment)
		if err != nil {
			if errors.Is(err, ErrEmptyTranscript) {
				s.logDebug("segment produced no text")
				continue
			}
			if s.metrics != nil {
				s.metrics.TranscriptionErrors.Inc()
			}
			s.logWarn("segment transcription failed", "error", err)
			continue
		}

		if !s.buffer.Append(generation, text) {
			// The turn was cancelled underneath this continuation; every
			// remaining segment belongs to that turn, so drop them all.
			s.logDebug("stale transcription dropped", "generation", generation)
			continue
		}
		s.publishTranscript(s.buffer.Text(), false)

		verdict := s.gate.Evaluate(ctx, s.buffer.Text())
		s.logDebug("gate verdict", "verdict", string(verdict.Verdict), "reason", verdict.Reason)
		if verdict.Verdict == gate.VerdictComplete {
			s.finalize(ctx)
			generation = s.buffer.Generation()
		}
	}

	s.finalize(ctx)
	return ctx.Err()
}

// transcribe recognizes one segment with bounded retries.
func (s *Stream) transcribe(ctx context.Context, segment *pcm.EncodedAudio) (string, error) {
	backoff := s.retryBackoff
	var lastErr error

	for attempt := 1; attempt <= s.retryLimit; attempt++ {
		if s.metrics != nil {
			s.metrics.TranscriptionCalls.Inc()
		}

		text, err := s.transcriber.Transcribe(ctx, segment)
		if err == nil {
			return text, nil
		}
		if errors.Is(err, ErrEmptyTranscript) {
			return "", err
		}
		lastErr = err

		if attempt == s.retryLimit {
			break
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-s.clock.After(backoff):
		}
		backoff *= 2
	}

	return "", lastErr
}

// finalize commits the buffered transcript and starts a fresh turn.
func (s *Stream) finalize(ctx context.Context) {
	text := s.buffer.Text()
	if text == "" {
		return
	}

	if err := s.sink.Commit(ctx, text); err != nil {
		s.logWarn("transcript commit failed", "error", err)
	}
	s.publishTranscript(text, true)
	s.buffer.Reset()
	s.gate.Reset()
	s.logInfo("transcript finalized", "chars", len(text))
}

func (s *Stream) publishTranscript(text string, final bool) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(events.Event{
		Kind:            events.KindTranscript,
		Transcript:      text,
		TranscriptFinal: final,
	})
}

func (s *Stream) logInfo(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Info(msg, args...)
	}
}

func (s *Stream) logWarn(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Warn(msg, args...)
	}
}

func (s *Stream) logDebug(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}
