// Package pcm converts captured audio into the canonical waveform container.
package pcm

import (
	"time"
)

// MIMEWAV tags every converter output buffer.
const MIMEWAV = "audio/wav"

// EncodedAudio is an immutable canonical waveform buffer ready for transcription.
type EncodedAudio struct {
	Data       []byte
	MIME       string
	SampleRate int
	Channels   int
	Duration   time.Duration
}

// containerDecoder is a scoped decoding resource; Close must run on every path.
type containerDecoder interface {
	Decode() (channels [][]float32, sampleRate int, err error)
	Close() error
}

// Converter normalizes raw audio buffers into EncodedAudio.
type Converter struct {
	minBytes   int
	newDecoder func([]byte) containerDecoder
}

// NewConverter builds a converter that discards buffers below minBytes.
func NewConverter(minBytes int) *Converter {
	return &Converter{
		minBytes:   minBytes,
		newDecoder: func(data []byte) containerDecoder { return &wavDecoder{data: data} },
	}
}

// Convert decodes a raw container buffer into canonical form.
//
// Buffers below the minimum viable size are truncated stream fragments, not
// clips; they return nil before any decoder is constructed. Decode failures
// on streaming chunks are expected and also return nil.
func (c *Converter) Convert(raw []byte) *EncodedAudio {
	if len(raw) < c.minBytes {
		return nil
	}

	decoder := c.newDecoder(raw)
	defer func() { _ = decoder.Close() }()

	channels, sampleRate, err := decoder.Decode()
	if err != nil {
		return nil
	}

	return c.FromFrames(channels, sampleRate)
}

// FromFrames interleaves per-channel float samples and encodes them.
//
// Returns nil when there is nothing to encode.
func (c *Converter) FromFrames(channels [][]float32, sampleRate int) *EncodedAudio {
	if len(channels) == 0 || sampleRate <= 0 {
		return nil
	}

	frameCount := len(channels[0])
	for _, ch := range channels {
		if len(ch) < frameCount {
			frameCount = len(ch)
		}
	}
	if frameCount == 0 {
		return nil
	}

	samples := make([]int16, 0, frameCount*len(channels))
	for frame := 0; frame < frameCount; frame++ {
		for _, ch := range channels {
			samples = append(samples, SampleToInt16(ch[frame]))
		}
	}

	data, err := EncodeWAV(samples, sampleRate, len(channels))
	if err != nil {
		return nil
	}

	return &EncodedAudio{
		Data:       data,
		MIME:       MIMEWAV,
		SampleRate: sampleRate,
		Channels:   len(channels),
		Duration:   time.Duration(frameCount) * time.Second / time.Duration(sampleRate),
	}
}

// SampleToInt16 clamps a [-1,1] float sample and scales it to signed 16-bit.
//
// Negative values scale by 32768 and positive by 32767, matching the
// asymmetric signed range.
func SampleToInt16(sample float32) int16 {
	if sample < -1 {
		sample = -1
	}
	if sample > 1 {
		sample = 1
	}
	if sample < 0 {
		return int16(sample * 32768)
	}
	return int16(sample * 32767)
}

// Int16ToSample maps a signed 16-bit value back onto [-1,1].
func Int16ToSample(value int16) float32 {
	if value < 0 {
		return float32(value) / 32768
	}
	return float32(value) / 32767
}

// wavDecoder decodes a WAV container into per-channel float samples.
type wavDecoder struct {
	data     []byte
	released bool
}

func (d *wavDecoder) Decode() ([][]float32, int, error) {
	samples, sampleRate, channelCount, err := DecodeWAV(d.data)
	if err != nil {
		return nil, 0, err
	}

	channels := make([][]float32, channelCount)
	frames := len(samples) / channelCount
	for ch := range channels {
		channels[ch] = make([]float32, frames)
	}
	for frame := 0; frame < frames; frame++ {
		for ch := 0; ch < channelCount; ch++ {
			channels[ch][frame] = Int16ToSample(samples[frame*channelCount+ch])
		}
	}
	return channels, sampleRate, nil
}

// Close releases the decoder's buffer reference; safe to call repeatedly.
func (d *wavDecoder) Close() error {
	d.data = nil
	d.released = true
	return nil
}
