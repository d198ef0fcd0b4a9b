// Package tts renders text to speech and hands it to the playback manager.
package tts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jmlago/parlo/internal/audio"
	"github.com/jmlago/parlo/internal/metrics"
	"github.com/jmlago/parlo/internal/pcm"
	"github.com/jmlago/parlo/internal/playback"
)

// ErrNothingToSay marks a Speak call with no speakable text.
var ErrNothingToSay = errors.New("nothing to say")

// SourceFactory builds a playback source from decoded PCM. onDone must be
// invoked on natural completion and never from Stop.
type SourceFactory func(samples []int16, sampleRate, channels int, onDone func()) (playback.Source, error)

// StreamConfig carries speech-stream wiring.
type StreamConfig struct {
	Synthesizer Synthesizer
	Manager     *playback.Manager
	NewSource   SourceFactory
	Metrics     *metrics.Metrics
	Logger      *slog.Logger
}

// Stream converts text into registered playbacks.
type Stream struct {
	synth     Synthesizer
	manager   *playback.Manager
	newSource SourceFactory
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// NewStream builds a speech stream; the default source factory opens a
// Pulse playback per utterance.
func NewStream(cfg StreamConfig) (*Stream, error) {
	if cfg.Synthesizer == nil {
		return nil, errors.New("speech stream requires a synthesizer")
	}
	if cfg.Manager == nil {
		return nil, errors.New("speech stream requires a playback manager")
	}
	if cfg.NewSource == nil {
		cfg.NewSource = func(samples []int16, sampleRate, channels int, onDone func()) (playback.Source, error) {
			return audio.NewPlayback(samples, sampleRate, channels, onDone)
		}
	}

	return &Stream{
		synth:     cfg.Synthesizer,
		manager:   cfg.Manager,
		newSource: cfg.NewSource,
		metrics:   cfg.Metrics,
		logger:    cfg.Logger,
	}, nil
}

// Speak synthesizes the text and registers its playback, preempting any
// current output. Synthesis or decode failure registers nothing.
func (s *Stream) Speak(ctx context.Context, text string) (*playback.Handle, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrNothingToSay
	}

	if s.metrics != nil {
		s.metrics.SynthesisCalls.Inc()
	}
	data, err := s.synth.Synthesize(ctx, text)
	if err != nil {
		return nil, err
	}

	samples, sampleRate, channels, err := pcm.DecodeWAV(data)
	if err != nil {
		return nil, fmt.Errorf("decode synthesized audio: %w", err)
	}

	// The handle does not exist until Register returns, so completion
	// waits on the identifier instead of racing for it.
	ready := make(chan string, 1)
	onDone := func() {
		s.manager.Complete(<-ready)
	}

	source, err := s.newSource(samples, sampleRate, channels, onDone)
	if err != nil {
		return nil, fmt.Errorf("open playback sink: %w", err)
	}

	handle := s.manager.Register(source)
	ready <- handle.ID()

	if s.metrics != nil {
		s.metrics.PlaybackStarts.Inc()
	}
	if s.logger != nil {
		s.logger.Info("speech playback started", "handle_id", handle.ID(), "chars", len(text))
	}
	return handle, nil
}
