// Package config resolves, parses, validates, and defaults parlo configuration.
package config

// Config is the fully materialized runtime configuration used by parlo.
type Config struct {
	Audio   AudioConfig
	VAD     VADConfig
	Gate    GateConfig
	STT     STTConfig
	TTS     TTSConfig
	OpenAI  OpenAIConfig
	Metrics MetricsConfig
	Debug   DebugConfig
}

// AudioConfig controls input-source selection and the capture format.
type AudioConfig struct {
	Input      string
	Fallback   string
	SampleRate int
}

// VADConfig controls voice-activity detection and segmentation thresholds.
type VADConfig struct {
	ActivationRMS    float64
	SilenceTimeoutMS int
	MinSegmentBytes  int
	MinSegmentMS     int
}

// GateConfig controls the transcript submission gate.
type GateConfig struct {
	Model       string
	MinWords    int
	StopPhrases []string
	RetryLimit  int
	TimeoutMS   int
}

// STTConfig controls the transcription backend.
type STTConfig struct {
	Model      string
	Language   string
	RetryLimit int
	TimeoutMS  int
}

// TTSConfig controls the synthesis backend.
type TTSConfig struct {
	Model     string
	Voice     string
	Speed     float64
	TimeoutMS int
}

// OpenAIConfig controls API endpoint and credential sourcing.
type OpenAIConfig struct {
	BaseURL   string
	APIKeyEnv string
}

// MetricsConfig controls the optional Prometheus listener.
type MetricsConfig struct {
	Enable     bool
	ListenAddr string
}

// DebugConfig controls optional debug artifact output.
type DebugConfig struct {
	EnableAudioDump bool
}

// Warning is a non-fatal parse/validation message.
type Warning struct {
	Line    int
	Message string
}
