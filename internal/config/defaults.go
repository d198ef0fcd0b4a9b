package config

// Default returns the canonical runtime configuration used when no file is present.
func Default() Config {
	return Config{
		Audio: AudioConfig{
			Input:      "default",
			Fallback:   "default",
			SampleRate: 16000,
		},
		VAD: VADConfig{
			ActivationRMS:    0.015,
			SilenceTimeoutMS: 1000,
			MinSegmentBytes:  3200,
			MinSegmentMS:     300,
		},
		Gate: GateConfig{
			Model:      "gpt-4o-mini",
			MinWords:   3,
			RetryLimit: 3,
			TimeoutMS:  5000,
		},
		STT: STTConfig{
			Model:      "whisper-1",
			Language:   "en",
			RetryLimit: 3,
			TimeoutMS:  15000,
		},
		TTS: TTSConfig{
			Model:     "tts-1",
			Voice:     "alloy",
			Speed:     1.0,
			TimeoutMS: 15000,
		},
		OpenAI: OpenAIConfig{
			APIKeyEnv: "OPENAI_API_KEY",
		},
		Metrics: MetricsConfig{
			Enable:     false,
			ListenAddr: "127.0.0.1:9464",
		},
		Debug: DebugConfig{},
	}
}
