package config

import (
	"fmt"
	"strings"
)

// Validate enforces config invariants and returns non-fatal warnings.
func Validate(cfg Config) ([]Warning, error) {
	warnings := make([]Warning, 0)

	if cfg.Audio.SampleRate <= 0 {
		return nil, fmt.Errorf("audio.sample_rate must be > 0")
	}
	if cfg.Audio.SampleRate != 16000 {
		warnings = append(warnings, Warning{
			Message: fmt.Sprintf("audio.sample_rate %d is unusual; recognition models expect 16000", cfg.Audio.SampleRate),
		})
	}

	if cfg.VAD.ActivationRMS <= 0 || cfg.VAD.ActivationRMS >= 1 {
		return nil, fmt.Errorf("vad.activation_rms must be in (0, 1)")
	}
	if cfg.VAD.SilenceTimeoutMS <= 0 {
		return nil, fmt.Errorf("vad.silence_timeout_ms must be > 0")
	}
	if cfg.VAD.MinSegmentBytes < 0 {
		return nil, fmt.Errorf("vad.min_segment_bytes must be >= 0")
	}
	if cfg.VAD.MinSegmentMS < 0 {
		return nil, fmt.Errorf("vad.min_segment_ms must be >= 0")
	}

	if cfg.Gate.MinWords <= 0 {
		return nil, fmt.Errorf("gate.min_words must be > 0")
	}
	if cfg.Gate.RetryLimit <= 0 {
		return nil, fmt.Errorf("gate.retry_limit must be > 0")
	}
	if cfg.Gate.TimeoutMS < 0 {
		return nil, fmt.Errorf("gate.timeout_ms must be >= 0")
	}
	if strings.TrimSpace(cfg.Gate.Model) == "" {
		warnings = append(warnings, Warning{Message: "gate.model is empty; the completion classifier is disabled"})
	}

	if strings.TrimSpace(cfg.STT.Model) == "" {
		return nil, fmt.Errorf("stt.model must not be empty")
	}
	if cfg.STT.RetryLimit <= 0 {
		return nil, fmt.Errorf("stt.retry_limit must be > 0")
	}
	if cfg.STT.TimeoutMS < 0 {
		return nil, fmt.Errorf("stt.timeout_ms must be >= 0")
	}

	if strings.TrimSpace(cfg.TTS.Model) == "" {
		return nil, fmt.Errorf("tts.model must not be empty")
	}
	if strings.TrimSpace(cfg.TTS.Voice) == "" {
		return nil, fmt.Errorf("tts.voice must not be empty")
	}
	if cfg.TTS.Speed < 0.25 || cfg.TTS.Speed > 4.0 {
		return nil, fmt.Errorf("tts.speed must be between 0.25 and 4.0")
	}
	if cfg.TTS.TimeoutMS < 0 {
		return nil, fmt.Errorf("tts.timeout_ms must be >= 0")
	}

	if strings.TrimSpace(cfg.OpenAI.APIKeyEnv) == "" {
		return nil, fmt.Errorf("openai.api_key_env must not be empty")
	}

	if cfg.Metrics.Enable && strings.TrimSpace(cfg.Metrics.ListenAddr) == "" {
		return nil, fmt.Errorf("metrics.listen_addr must not be empty when metrics.enable=true")
	}

	return warnings, nil
}
