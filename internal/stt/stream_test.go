package stt

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/jmlago/parlo/internal/events"
	"github.com/jmlago/parlo/internal/gate"
	"github.com/jmlago/parlo/internal/metrics"
	"github.com/jmlago/parlo/internal/pcm"
)

type scriptedResponse struct {
	text string
	err  error
}

type scriptedTranscriber struct {
	mu     sync.Mutex
	script []scriptedResponse
	calls  int
}

func (s *scriptedTranscriber) Transcribe(context.Context, *pcm.EncodedAudio) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls++
	if len(s.script) == 0 {
		return "", errors.New("script exhausted")
	}
	next := s.script[0]
	s.script = s.script[1:]
	return next.text, next.err
}

type recordingSink struct {
	mu      sync.Mutex
	commits []string
}

func (r *recordingSink) Commit(_ context.Context, transcript string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commits = append(r.commits, transcript)
	return nil
}

func (r *recordingSink) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.commits...)
}

func segmentChan(count int) chan *pcm.EncodedAudio {
	ch := make(chan *pcm.EncodedAudio, count)
	for i := 0; i < count; i++ {
		ch <- &pcm.EncodedAudio{Data: []byte{1}, MIME: pcm.MIMEWAV}
	}
	close(ch)
	return ch
}

func newTestStream(t *testing.T, transcriber Transcriber, sink Sink, bus *events.Bus, m *metrics.Metrics) *Stream {
	t.Helper()

	stream, err := NewStream(StreamConfig{
		Transcriber:  transcriber,
		Gate:         gate.New(gate.Config{}),
		Sink:         sink,
		RetryBackoff: time.Millisecond,
		Bus:          bus,
		Metrics:      m,
	})
	require.NoError(t, err)
	return stream
}

func TestRunCommitsWhenGatePassesTranscript(t *testing.T) {
	t.Parallel()

	transcriber := &scriptedTranscriber{script: []scriptedResponse{
		{text: "i was thinking we could"},
		{text: "repaint the kitchen this weekend."},
	}}
	sink := &recordingSink{}
	bus := events.NewBus()

	var mu sync.Mutex
	var published []events.Event
	bus.Subscribe(func(evt events.Event) {
		if evt.Kind == events.KindTranscript {
			mu.Lock()
			published = append(published, evt)
			mu.Unlock()
		}
	})

	stream := newTestStream(t, transcriber, sink, bus, nil)
	require.NoError(t, stream.Run(context.Background(), segmentChan(2)))

	require.Equal(t, []string{"i was thinking we could repaint the kitchen this weekend."}, sink.all())
	require.Empty(t, stream.Transcript(), "buffer resets after finalize")

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, published, 3)
	require.False(t, published[0].TranscriptFinal)
	require.False(t, published[1].TranscriptFinal)
	require.True(t, published[2].TranscriptFinal)
	require.Equal(t, "i was thinking we could repaint the kitchen this weekend.", published[2].Transcript)
}

func TestRunFlushesBufferedTextOnClose(t *testing.T) {
	t.Parallel()

	transcriber := &scriptedTranscriber{script: []scriptedResponse{
		{text: "still forming the thought"},
	}}
	sink := &recordingSink{}

	stream := newTestStream(t, transcriber, sink, nil, nil)
	require.NoError(t, stream.Run(context.Background(), segmentChan(1)))

	require.Equal(t, []string{"still forming the thought"}, sink.all())
}

func TestCancelDiscardsBufferedTurn(t *testing.T) {
	t.Parallel()

	transcriber := &scriptedTranscriber{script: []scriptedResponse{
		{text: "partial thought before the user changed"},
		{text: "their mind entirely"},
	}}
	sink := &recordingSink{}
	bus := events.NewBus()

	partial := make(chan struct{}, 1)
	bus.Subscribe(func(evt events.Event) {
		if evt.Kind == events.KindTranscript && evt.Transcript != "" {
			select {
			case partial <- struct{}{}:
			default:
			}
		}
	})

	segments := make(chan *pcm.EncodedAudio, 2)
	segments <- &pcm.EncodedAudio{Data: []byte{1}, MIME: pcm.MIMEWAV}
	segments <- &pcm.EncodedAudio{Data: []byte{1}, MIME: pcm.MIMEWAV}

	stream := newTestStream(t, transcriber, sink, bus, nil)

	done := make(chan error, 1)
	go func() { done <- stream.Run(context.Background(), segments) }()

	<-partial
	stream.Cancel()
	close(segments)

	require.NoError(t, <-done)
	require.Empty(t, sink.all(), "cancelled turn commits nothing")
	require.Empty(t, stream.Transcript())
}

func TestRunRetriesTransientFailures(t *testing.T) {
	t.Parallel()

	transcriber := &scriptedTranscriber{script: []scriptedResponse{
		{err: errors.New("rate limited")},
		{err: errors.New("rate limited")},
		{text: "finally made it through."},
	}}
	sink := &recordingSink{}
	m := metrics.New()

	stream := newTestStream(t, transcriber, sink, nil, m)
	require.NoError(t, stream.Run(context.Background(), segmentChan(1)))

	require.Equal(t, []string{"finally made it through."}, sink.all())
	require.Equal(t, 3, transcriber.calls)
	require.Equal(t, float64(3), testutil.ToFloat64(m.TranscriptionCalls))
	require.Equal(t, float64(0), testutil.ToFloat64(m.TranscriptionErrors))
}

func TestRunSurvivesExhaustedRetries(t *testing.T) {
	t.Parallel()

	transcriber := &scriptedTranscriber{script: []scriptedResponse{
		{err: errors.New("down")},
		{err: errors.New("down")},
		{err: errors.New("down")},
		{text: "recovered on the next segment."},
	}}
	sink := &recordingSink{}
	m := metrics.New()

	stream := newTestStream(t, transcriber, sink, nil, m)
	require.NoError(t, stream.Run(context.Background(), segmentChan(2)))

	require.Equal(t, []string{"recovered on the next segment."}, sink.all())
	require.Equal(t, float64(1), testutil.ToFloat64(m.TranscriptionErrors))
}

func TestRunSkipsEmptyTranscripts(t *testing.T) {
	t.Parallel()

	transcriber := &scriptedTranscriber{script: []scriptedResponse{
		{err: ErrEmptyTranscript},
		{text: "actual content arrived."},
	}}
	sink := &recordingSink{}
	m := metrics.New()

	stream := newTestStream(t, transcriber, sink, nil, m)
	require.NoError(t, stream.Run(context.Background(), segmentChan(2)))

	require.Equal(t, []string{"actual content arrived."}, sink.all())
	require.Equal(t, float64(0), testutil.ToFloat64(m.TranscriptionErrors), "empty text is not an error")
}

func TestNewStreamValidatesWiring(t *testing.T) {
	t.Parallel()

	_, err := NewStream(StreamConfig{})
	require.Error(t, err)

	_, err = NewStream(StreamConfig{Transcriber: &scriptedTranscriber{}})
	require.Error(t, err)

	_, err = NewStream(StreamConfig{Transcriber: &scriptedTranscriber{}, Gate: gate.New(gate.Config{})})
	require.Error(t, err)
}
