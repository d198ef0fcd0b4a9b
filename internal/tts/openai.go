package tts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// Synthesizer renders text into a WAV byte buffer.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// OpenAISynthesizer renders speech through the audio/speech API.
type OpenAISynthesizer struct {
	client  *openai.Client
	model   string
	voice   string
	speed   float64
	timeout time.Duration
}

// NewOpenAISynthesizer builds a synthesizer over an existing API client.
func NewOpenAISynthesizer(client *openai.Client, model, voice string, speed float64, timeout time.Duration) *OpenAISynthesizer {
	return &OpenAISynthesizer{client: client, model: model, voice: voice, speed: speed, timeout: timeout}
}

func (s *OpenAISynthesizer) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if text == "" {
		return nil, errors.New("empty synthesis text")
	}
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	resp, err := s.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(s.model),
		Input:          text,
		Voice:          openai.SpeechVoice(s.voice),
		ResponseFormat: openai.SpeechResponseFormatWav,
		Speed:          s.speed,
	})
	if err != nil {
		return nil, fmt.Errorf("synthesize speech: %w", err)
	}
	defer resp.Close()

	data, err := io.ReadAll(resp)
	if err != nil {
		return nil, fmt.Errorf("read synthesized audio: %w", err)
	}
	return data, nil
}
