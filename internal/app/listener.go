package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/jmlago/parlo/internal/config"
	"github.com/jmlago/parlo/internal/events"
	"github.com/jmlago/parlo/internal/gate"
	"github.com/jmlago/parlo/internal/ipc"
	"github.com/jmlago/parlo/internal/logging"
	"github.com/jmlago/parlo/internal/metrics"
	"github.com/jmlago/parlo/internal/pcm"
	"github.com/jmlago/parlo/internal/playback"
	"github.com/jmlago/parlo/internal/recorder"
	"github.com/jmlago/parlo/internal/stt"
	"github.com/jmlago/parlo/internal/tts"
	"github.com/jmlago/parlo/internal/vad"
)

// commandListen runs the capture/transcribe/gate loop as the socket owner.
func (r Runner) commandListen(ctx context.Context, cfg config.Config, logger *slog.Logger) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	listener, err := ipc.Acquire(ctx, socketPath, 180*time.Millisecond, 8, nil)
	if err != nil {
		if errors.Is(err, ipc.ErrAlreadyRunning) {
			fmt.Fprintln(r.Stderr, "error: parlo listener already running")
			return 1
		}
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	defer func() {
		_ = listener.Close()
		_ = os.Remove(socketPath)
	}()

	client, err := newAPIClient(cfg)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	met := metrics.New()
	bus := events.NewBus()

	meter, err := vad.NewMeter(cfg.VAD.ActivationRMS)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	mic := &recorder.PulseMicrophone{
		Input:      cfg.Audio.Input,
		Fallback:   cfg.Audio.Fallback,
		SampleRate: cfg.Audio.SampleRate,
		Logger:     logger,
	}
	rec, err := recorder.New(mic, recorder.Config{
		Meter:          meter,
		Converter:      pcm.NewConverter(cfg.VAD.MinSegmentBytes),
		SilenceTimeout: durationMS(cfg.VAD.SilenceTimeoutMS),
		MinDuration:    durationMS(cfg.VAD.MinSegmentMS),
		MinBytes:       cfg.VAD.MinSegmentBytes,
		Bus:            bus,
		Metrics:        met,
		Logger:         logger,
	})
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	manager := playback.NewManager(logger)
	unsubscribe := manager.Subscribe(func(state playback.State) {
		bus.Publish(events.Event{Kind: events.KindPlaybackState, Playing: state.Playing})
	})
	defer unsubscribe()

	var classifier gate.Classifier
	if cfg.Gate.Model != "" {
		classifier = gate.NewOpenAIClassifier(client, cfg.Gate.Model, durationMS(cfg.Gate.TimeoutMS))
	}
	submitGate := gate.New(gate.Config{
		Classifier:  classifier,
		MinWords:    cfg.Gate.MinWords,
		StopPhrases: cfg.Gate.StopPhrases,
		RetryLimit:  cfg.Gate.RetryLimit,
		Metrics:     met,
		Logger:      logger,
	})

	sink := stt.SinkFunc(func(_ context.Context, transcript string) error {
		fmt.Fprintln(r.Stdout, transcript)
		return nil
	})
	stream, err := stt.NewStream(stt.StreamConfig{
		Transcriber: stt.NewOpenAITranscriber(client, cfg.STT.Model, cfg.STT.Language, durationMS(cfg.STT.TimeoutMS)),
		Gate:        submitGate,
		Sink:        sink,
		RetryLimit:  cfg.STT.RetryLimit,
		Bus:         bus,
		Metrics:     met,
		Logger:      logger,
	})
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if cfg.Metrics.Enable {
		go func() {
			if serveErr := met.Serve(runCtx, cfg.Metrics.ListenAddr, logger); serveErr != nil {
				logger.Error("metrics listener failed", "error", serveErr.Error())
			}
		}()
	}

	segments, err := rec.Start(runCtx)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if cfg.Debug.EnableAudioDump {
		segments = dumpSegments(segments, logger)
	}

	go func() {
		<-runCtx.Done()
		stream.Cancel()
		_ = rec.Cancel()
	}()

	handler := ipc.HandlerFunc(func(_ context.Context, req ipc.Request) ipc.Response {
		switch req.Command {
		case "status":
			return ipc.Response{
				OK:         true,
				State:      string(rec.State()),
				Transcript: stream.Transcript(),
				Playing:    manager.IsPlaying(),
			}
		case "stop":
			if stopErr := rec.Stop(true); stopErr != nil {
				return ipc.Response{OK: false, Error: stopErr.Error()}
			}
			return ipc.Response{OK: true, Message: "stopped"}
		case "cancel":
			stream.Cancel()
			if cancelErr := rec.Cancel(); cancelErr != nil {
				return ipc.Response{OK: false, Error: cancelErr.Error()}
			}
			return ipc.Response{OK: true, Message: "cancelled"}
		case "interrupt":
			manager.StopAll()
			met.PlaybackInterrupts.Inc()
			return ipc.Response{OK: true, Message: "interrupted"}
		default:
			return ipc.Response{OK: false, Error: fmt.Sprintf("unsupported command %q", req.Command)}
		}
	})

	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- ipc.Serve(runCtx, listener, handler)
	}()

	runErr := stream.Run(runCtx, segments)
	manager.StopAll()
	cancel()
	if serverErr := <-serverErrCh; serverErr != nil {
		fmt.Fprintf(r.Stderr, "error: ipc server failed: %v\n", serverErr)
		return 1
	}
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		fmt.Fprintf(r.Stderr, "error: %v\n", runErr)
		return 1
	}

	logger.Info("listener stopped")
	return 0
}

// commandSay synthesizes one phrase and blocks until playback finishes.
func (r Runner) commandSay(ctx context.Context, cfg config.Config, logger *slog.Logger, text string) int {
	client, err := newAPIClient(cfg)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	manager := playback.NewManager(logger)
	speech, err := tts.NewStream(tts.StreamConfig{
		Synthesizer: tts.NewOpenAISynthesizer(client, cfg.TTS.Model, cfg.TTS.Voice, cfg.TTS.Speed, durationMS(cfg.TTS.TimeoutMS)),
		Manager:     manager,
		Metrics:     metrics.New(),
		Logger:      logger,
	})
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	done := make(chan struct{}, 1)
	unsubscribe := manager.Subscribe(func(state playback.State) {
		if !state.Playing {
			select {
			case done <- struct{}{}:
			default:
			}
		}
	})
	defer unsubscribe()

	if _, err := speech.Speak(ctx, text); err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	select {
	case <-ctx.Done():
		manager.StopAll()
		return 1
	case <-done:
	}
	return 0
}

// dumpSegments tees each emitted segment to a WAV file under the state dir.
func dumpSegments(in <-chan *pcm.EncodedAudio, logger *slog.Logger) <-chan *pcm.EncodedAudio {
	out := make(chan *pcm.EncodedAudio, 8)

	go func() {
		defer close(out)

		dir := ""
		if stateDir, err := logging.StateDir(); err == nil {
			dir = filepath.Join(stateDir, "segments")
			if err := os.MkdirAll(dir, 0o700); err != nil {
				logger.Warn("audio dump disabled", "error", err.Error())
				dir = ""
			}
		}

		for segment := range in {
			if dir != "" {
				name := filepath.Join(dir, "segment-"+time.Now().Format("20060102-150405.000")+".wav")
				if err := os.WriteFile(name, segment.Data, 0o600); err != nil {
					logger.Warn("audio dump write failed", "path", name, "error", err.Error())
				}
			}
			out <- segment
		}
	}()

	return out
}
