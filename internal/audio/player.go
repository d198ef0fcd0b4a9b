package audio

import (
	"fmt"
	"sync"

	"github.com/jfreymuth/pulse"
)

// feeder hands PCM to the Pulse callback and models pause and stop.
//
// A paused feeder keeps the stream alive by emitting silence; a stopped
// feeder ends the stream on the next callback.
type feeder struct {
	mu      sync.Mutex
	samples []int16
	pos     int
	paused  bool
	stopped bool
}

func (f *feeder) fill(buf []int16) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.stopped {
		return 0, pulse.EndOfData
	}
	if f.paused {
		for i := range buf {
			buf[i] = 0
		}
		return len(buf), nil
	}
	if f.pos >= len(f.samples) {
		return 0, pulse.EndOfData
	}

	n := copy(buf, f.samples[f.pos:])
	f.pos += n
	if f.pos >= len(f.samples) {
		return n, pulse.EndOfData
	}
	return n, nil
}

func (f *feeder) setPaused(paused bool) {
	f.mu.Lock()
	f.paused = paused
	f.mu.Unlock()
}

func (f *feeder) stop() {
	f.mu.Lock()
	f.stopped = true
	f.mu.Unlock()
}

// drained reports whether the feeder ran out of samples without being stopped.
func (f *feeder) drained() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.stopped && f.pos >= len(f.samples)
}

// Playback plays one PCM buffer through a dedicated Pulse stream.
//
// Natural completion is reported through the onDone callback; Stop never
// triggers it.
type Playback struct {
	feed   *feeder
	client *pulse.Client
	stream *pulse.PlaybackStream
	onDone func()

	startOnce   sync.Once
	cleanupOnce sync.Once
}

// NewPlayback connects to Pulse and prepares a stream without starting it.
func NewPlayback(samples []int16, sampleRate, channels int, onDone func()) (*Playback, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("empty playback buffer")
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("invalid playback sample rate %d", sampleRate)
	}

	layout := pulse.PlaybackMono
	switch channels {
	case 1:
	case 2:
		layout = pulse.PlaybackStereo
	default:
		return nil, fmt.Errorf("unsupported playback channel count %d", channels)
	}

	client, err := pulse.NewClient(
		pulse.ClientApplicationName(appName),
		pulse.ClientApplicationIconName("audio-speakers"),
	)
	if err != nil {
		return nil, fmt.Errorf("connect pulse server: %w", err)
	}

	playback := &Playback{
		feed:   &feeder{samples: samples},
		client: client,
		onDone: onDone,
	}

	stream, err := client.NewPlayback(
		pulse.Int16Reader(playback.feed.fill),
		layout,
		pulse.PlaybackSampleRate(sampleRate),
		pulse.PlaybackLatency(0.05),
		pulse.PlaybackMediaName("parlo speech"),
	)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("create pulse playback stream: %w", err)
	}

	playback.stream = stream
	return playback, nil
}

// Start begins audible output and watches for natural completion.
func (p *Playback) Start() {
	p.startOnce.Do(func() {
		p.stream.Start()
		go func() {
			p.stream.Drain()
			finished := p.feed.drained()
			p.cleanup()
			if finished && p.onDone != nil {
				p.onDone()
			}
		}()
	})
}

// Pause mutes output while keeping the stream open.
func (p *Playback) Pause() {
	p.feed.setPaused(true)
}

// Resume continues audible output after Pause.
func (p *Playback) Resume() {
	p.feed.setPaused(false)
}

// Stop ends the stream without reporting completion. Idempotent.
func (p *Playback) Stop() {
	p.feed.stop()
}

// Close releases the stream for a playback that was never started.
func (p *Playback) Close() {
	p.feed.stop()
	p.cleanup()
}

func (p *Playback) cleanup() {
	p.cleanupOnce.Do(func() {
		p.stream.Close()
		p.client.Close()
	})
}
