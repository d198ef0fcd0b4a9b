package stt

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/jmlago/parlo/internal/pcm"
)

// ErrEmptyTranscript marks a recognition response with no usable text.
var ErrEmptyTranscript = errors.New("transcription returned no text")

// Transcriber turns one encoded audio segment into text.
type Transcriber interface {
	Transcribe(ctx context.Context, segment *pcm.EncodedAudio) (string, error)
}

// OpenAITranscriber recognizes WAV segments through the audio API.
type OpenAITranscriber struct {
	client   *openai.Client
	model    string
	language string
	timeout  time.Duration
}

// NewOpenAITranscriber builds a transcriber over an existing API client.
func NewOpenAITranscriber(client *openai.Client, model, language string, timeout time.Duration) *OpenAITranscriber {
	return &OpenAITranscriber{client: client, model: model, language: language, timeout: timeout}
}

func (t *OpenAITranscriber) Transcribe(ctx context.Context, segment *pcm.EncodedAudio) (string, error) {
	if segment == nil || len(segment.Data) == 0 {
		return "", errors.New("empty audio segment")
	}
	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	resp, err := t.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    t.model,
		Language: t.language,
		Reader:   bytes.NewReader(segment.Data),
		FilePath: "segment.wav",
	})
	if err != nil {
		return "", fmt.Errorf("transcribe segment: %w", err)
	}

	text := cleanTranscript(resp.Text)
	if text == "" {
		return "", ErrEmptyTranscript
	}
	return text, nil
}
