package pcm

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

const wavHeaderSize = 44

// wavHeader is the RIFF/WAVE header layout for canonical PCM output.
type wavHeader struct {
	ChunkID       [4]byte
	ChunkSize     uint32
	Format        [4]byte
	Subchunk1ID   [4]byte
	Subchunk1Size uint32
	AudioFormat   uint16
	NumChannels   uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
	Subchunk2ID   [4]byte
	Subchunk2Size uint32
}

// EncodeWAV wraps interleaved PCM-16 samples in a RIFF/WAVE container.
func EncodeWAV(samples []int16, sampleRate int, channels int) ([]byte, error) {
	if len(samples) == 0 {
		return nil, errors.New("cannot encode empty audio samples")
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}
	if channels <= 0 {
		return nil, fmt.Errorf("channel count must be positive, got %d", channels)
	}

	const bitsPerSample = 16
	dataSize := uint32(len(samples) * 2)

	header := wavHeader{
		ChunkID:       [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     36 + dataSize,
		Format:        [4]byte{'W', 'A', 'V', 'E'},
		Subchunk1ID:   [4]byte{'f', 'm', 't', ' '},
		Subchunk1Size: 16,
		AudioFormat:   1, // PCM
		NumChannels:   uint16(channels),
		SampleRate:    uint32(sampleRate),
		ByteRate:      uint32(sampleRate * channels * bitsPerSample / 8),
		BlockAlign:    uint16(channels * bitsPerSample / 8),
		BitsPerSample: bitsPerSample,
		Subchunk2ID:   [4]byte{'d', 'a', 't', 'a'},
		Subchunk2Size: dataSize,
	}

	buf := bytes.NewBuffer(make([]byte, 0, wavHeaderSize+len(samples)*2))
	if err := binary.Write(buf, binary.LittleEndian, header); err != nil {
		return nil, fmt.Errorf("write WAV header: %w", err)
	}
	if err := binary.Write(buf, binary.LittleEndian, samples); err != nil {
		return nil, fmt.Errorf("write WAV data: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeWAV extracts interleaved PCM-16 samples plus format metadata.
func DecodeWAV(data []byte) (samples []int16, sampleRate int, channels int, err error) {
	if len(data) < wavHeaderSize {
		return nil, 0, 0, fmt.Errorf("WAV data too short: need at least %d bytes, got %d", wavHeaderSize, len(data))
	}

	reader := bytes.NewReader(data)
	var header wavHeader
	if err := binary.Read(reader, binary.LittleEndian, &header); err != nil {
		return nil, 0, 0, fmt.Errorf("read WAV header: %w", err)
	}

	if string(header.ChunkID[:]) != "RIFF" {
		return nil, 0, 0, errors.New("invalid WAV container: missing RIFF header")
	}
	if string(header.Format[:]) != "WAVE" {
		return nil, 0, 0, errors.New("invalid WAV container: missing WAVE format")
	}
	if string(header.Subchunk1ID[:]) != "fmt " {
		return nil, 0, 0, errors.New("invalid WAV container: missing fmt chunk")
	}
	if string(header.Subchunk2ID[:]) != "data" {
		return nil, 0, 0, errors.New("invalid WAV container: missing data chunk")
	}
	if header.AudioFormat != 1 {
		return nil, 0, 0, fmt.Errorf("unsupported audio format %d: only PCM is supported", header.AudioFormat)
	}
	if header.BitsPerSample != 16 {
		return nil, 0, 0, fmt.Errorf("unsupported bit depth %d: only 16-bit is supported", header.BitsPerSample)
	}
	if header.NumChannels == 0 {
		return nil, 0, 0, errors.New("invalid WAV container: zero channels")
	}
	if header.SampleRate == 0 {
		return nil, 0, 0, errors.New("invalid WAV container: zero sample rate")
	}

	numSamples := int(header.Subchunk2Size) / 2
	if numSamples <= 0 {
		return nil, 0, 0, errors.New("invalid WAV container: no audio data")
	}
	if wavHeaderSize+numSamples*2 > len(data) {
		return nil, 0, 0, errors.New("invalid WAV container: data chunk exceeds buffer")
	}

	samples = make([]int16, numSamples)
	if err := binary.Read(reader, binary.LittleEndian, samples); err != nil {
		return nil, 0, 0, fmt.Errorf("read WAV samples: %w", err)
	}

	return samples, int(header.SampleRate), int(header.NumChannels), nil
}
