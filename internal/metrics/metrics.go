// Package metrics exposes Prometheus counters for the voice pipeline.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is the set of pipeline counters registered on one registry.
type Metrics struct {
	registry *prometheus.Registry

	SegmentsEmitted     prometheus.Counter
	SegmentsDiscarded   prometheus.Counter
	TranscriptionCalls  prometheus.Counter
	TranscriptionErrors prometheus.Counter
	ClassifierCalls     prometheus.Counter
	ClassifierCacheHits prometheus.Counter
	SynthesisCalls      prometheus.Counter
	PlaybackStarts      prometheus.Counter
	PlaybackInterrupts  prometheus.Counter
}

// New builds a metrics set on a fresh registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		SegmentsEmitted: factory.NewCounter(prometheus.CounterOpts{
			Name: "parlo_segments_emitted_total",
			Help: "Utterance segments that passed minimum-size checks.",
		}),
		SegmentsDiscarded: factory.NewCounter(prometheus.CounterOpts{
			Name: "parlo_segments_discarded_total",
			Help: "Utterance segments dropped for being too short.",
		}),
		TranscriptionCalls: factory.NewCounter(prometheus.CounterOpts{
			Name: "parlo_transcription_calls_total",
			Help: "Speech-to-text requests issued.",
		}),
		TranscriptionErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "parlo_transcription_errors_total",
			Help: "Speech-to-text requests that failed after retries.",
		}),
		ClassifierCalls: factory.NewCounter(prometheus.CounterOpts{
			Name: "parlo_classifier_calls_total",
			Help: "Completion-gate classifier requests issued.",
		}),
		ClassifierCacheHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "parlo_classifier_cache_hits_total",
			Help: "Completion-gate verdicts served from the per-transcript cache.",
		}),
		SynthesisCalls: factory.NewCounter(prometheus.CounterOpts{
			Name: "parlo_synthesis_calls_total",
			Help: "Text-to-speech requests issued.",
		}),
		PlaybackStarts: factory.NewCounter(prometheus.CounterOpts{
			Name: "parlo_playback_starts_total",
			Help: "Playback handles registered.",
		}),
		PlaybackInterrupts: factory.NewCounter(prometheus.CounterOpts{
			Name: "parlo_playback_interrupts_total",
			Help: "Playback handles force-stopped before completion.",
		}),
	}
}

// Handler serves the registry in Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve runs the metrics listener until the context is cancelled.
func (m *Metrics) Serve(ctx context.Context, addr string, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	server := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	if logger != nil {
		logger.Info("metrics listener started", "addr", addr)
	}
	if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
