package stt

import (
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Buffer accumulates per-segment transcripts for one conversation turn.
//
// Each turn carries a generation identifier; appends stamped with a stale
// generation are rejected so late transcription results cannot leak into
// a turn that was already finalized or cancelled.
type Buffer struct {
	mu         sync.Mutex
	generation string
	segments   []string
}

// NewBuffer builds an empty buffer with a fresh generation.
func NewBuffer() *Buffer {
	return &Buffer{generation: uuid.NewString()}
}

// Generation returns the identifier of the current turn.
func (b *Buffer) Generation() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.generation
}

// Append merges one transcript into the turn. It reports false when the
// given generation no longer matches, leaving the buffer untouched.
func (b *Buffer) Append(generation, transcript string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if generation != b.generation {
		return false
	}
	b.segments = mergeSegment(b.segments, transcript)
	return true
}

// Text returns the accumulated transcript joined in arrival order.
func (b *Buffer) Text() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return strings.Join(b.segments, " ")
}

// Reset clears the buffer and rotates the generation.
func (b *Buffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.segments = nil
	b.generation = uuid.NewString()
}

// mergeSegment appends a transcript, folding repeats and prefix overlaps
// so a re-recognized utterance does not duplicate text.
func mergeSegment(segments []string, transcript string) []string {
	transcript = cleanTranscript(transcript)
	if transcript == "" {
		return segments
	}
	if len(segments) == 0 {
		return append(segments, transcript)
	}

	last := segments[len(segments)-1]
	switch {
	case transcript == last:
		return segments
	case strings.HasPrefix(transcript, last):
		segments[len(segments)-1] = transcript
		return segments
	case strings.HasPrefix(last, transcript):
		return segments
	default:
		return append(segments, transcript)
	}
}

// cleanTranscript normalizes whitespace.
func cleanTranscript(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	return strings.Join(strings.Fields(raw), " ")
}
