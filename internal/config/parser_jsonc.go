package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

type jsoncConfig struct {
	Audio   *jsoncAudio   `json:"audio"`
	VAD     *jsoncVAD     `json:"vad"`
	Gate    *jsoncGate    `json:"gate"`
	STT     *jsoncSTT     `json:"stt"`
	TTS     *jsoncTTS     `json:"tts"`
	OpenAI  *jsoncOpenAI  `json:"openai"`
	Metrics *jsoncMetrics `json:"metrics"`
	Debug   *jsoncDebug   `json:"debug"`
}

type jsoncAudio struct {
	Input      *string `json:"input"`
	Fallback   *string `json:"fallback"`
	SampleRate *int    `json:"sample_rate"`
}

type jsoncVAD struct {
	ActivationRMS    *float64 `json:"activation_rms"`
	SilenceTimeoutMS *int     `json:"silence_timeout_ms"`
	MinSegmentBytes  *int     `json:"min_segment_bytes"`
	MinSegmentMS     *int     `json:"min_segment_ms"`
}

type jsoncGate struct {
	Model       *string          `json:"model"`
	MinWords    *int             `json:"min_words"`
	StopPhrases *jsoncStringList `json:"stop_phrases"`
	RetryLimit  *int             `json:"retry_limit"`
	TimeoutMS   *int             `json:"timeout_ms"`
}

type jsoncSTT struct {
	Model      *string `json:"model"`
	Language   *string `json:"language"`
	RetryLimit *int    `json:"retry_limit"`
	TimeoutMS  *int    `json:"timeout_ms"`
}

type jsoncTTS struct {
	Model     *string  `json:"model"`
	Voice     *string  `json:"voice"`
	Speed     *float64 `json:"speed"`
	TimeoutMS *int     `json:"timeout_ms"`
}

type jsoncOpenAI struct {
	BaseURL   *string `json:"base_url"`
	APIKeyEnv *string `json:"api_key_env"`
}

type jsoncMetrics struct {
	Enable     *bool   `json:"enable"`
	ListenAddr *string `json:"listen_addr"`
}

type jsoncDebug struct {
	AudioDump *bool `json:"audio_dump"`
}

type jsoncStringList []string

func (l *jsoncStringList) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*l = list
		return nil
	}

	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		parts := strings.Split(single, ",")
		out := make([]string, 0, len(parts))
		for _, part := range parts {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			out = append(out, part)
		}
		*l = out
		return nil
	}

	return fmt.Errorf("expected string array or comma-delimited string")
}

func parseJSONC(content string, base Config) (Config, []Warning, error) {
	normalized, err := normalizeJSONC(content)
	if err != nil {
		return Config{}, nil, err
	}

	decoder := json.NewDecoder(strings.NewReader(normalized))
	decoder.DisallowUnknownFields()

	var payload jsoncConfig
	if err := decoder.Decode(&payload); err != nil {
		return Config{}, nil, wrapJSONDecodeError(normalized, err)
	}
	if err := ensureSingleJSONValue(decoder); err != nil {
		return Config{}, nil, wrapJSONDecodeError(normalized, err)
	}

	cfg := base
	payload.applyTo(&cfg)

	warnings, err := Validate(cfg)
	if err != nil {
		return Config{}, nil, err
	}
	return cfg, warnings, nil
}

func (payload jsoncConfig) applyTo(cfg *Config) {
	if payload.Audio != nil {
		if payload.Audio.Input != nil {
			cfg.Audio.Input = *payload.Audio.Input
		}
		if payload.Audio.Fallback != nil {
			cfg.Audio.Fallback = *payload.Audio.Fallback
		}
		if payload.Audio.SampleRate != nil {
			cfg.Audio.SampleRate = *payload.Audio.SampleRate
		}
	}

	if payload.VAD != nil {
		if payload.VAD.ActivationRMS != nil {
			cfg.VAD.ActivationRMS = *payload.VAD.ActivationRMS
		}
		if payload.VAD.SilenceTimeoutMS != nil {
			cfg.VAD.SilenceTimeoutMS = *payload.VAD.SilenceTimeoutMS
		}
		if payload.VAD.MinSegmentBytes != nil {
			cfg.VAD.MinSegmentBytes = *payload.VAD.MinSegmentBytes
		}
		if payload.VAD.MinSegmentMS != nil {
			cfg.VAD.MinSegmentMS = *payload.VAD.MinSegmentMS
		}
	}

	if payload.Gate != nil {
		if payload.Gate.Model != nil {
			cfg.Gate.Model = strings.TrimSpace(*payload.Gate.Model)
		}
		if payload.Gate.MinWords != nil {
			cfg.Gate.MinWords = *payload.Gate.MinWords
		}
		if payload.Gate.StopPhrases != nil {
			cfg.Gate.StopPhrases = *payload.Gate.StopPhrases
		}
		if payload.Gate.RetryLimit != nil {
			cfg.Gate.RetryLimit = *payload.Gate.RetryLimit
		}
		if payload.Gate.TimeoutMS != nil {
			cfg.Gate.TimeoutMS = *payload.Gate.TimeoutMS
		}
	}

	if payload.STT != nil {
		if payload.STT.Model != nil {
			cfg.STT.Model = strings.TrimSpace(*payload.STT.Model)
		}
		if payload.STT.Language != nil {
			cfg.STT.Language = strings.TrimSpace(*payload.STT.Language)
		}
		if payload.STT.RetryLimit != nil {
			cfg.STT.RetryLimit = *payload.STT.RetryLimit
		}
		if payload.STT.TimeoutMS != nil {
			cfg.STT.TimeoutMS = *payload.STT.TimeoutMS
		}
	}

	if payload.TTS != nil {
		if payload.TTS.Model != nil {
			cfg.TTS.Model = strings.TrimSpace(*payload.TTS.Model)
		}
		if payload.TTS.Voice != nil {
			cfg.TTS.Voice = strings.TrimSpace(*payload.TTS.Voice)
		}
		if payload.TTS.Speed != nil {
			cfg.TTS.Speed = *payload.TTS.Speed
		}
		if payload.TTS.TimeoutMS != nil {
			cfg.TTS.TimeoutMS = *payload.TTS.TimeoutMS
		}
	}

	if payload.OpenAI != nil {
		if payload.OpenAI.BaseURL != nil {
			cfg.OpenAI.BaseURL = strings.TrimSpace(*payload.OpenAI.BaseURL)
		}
		if payload.OpenAI.APIKeyEnv != nil {
			cfg.OpenAI.APIKeyEnv = strings.TrimSpace(*payload.OpenAI.APIKeyEnv)
		}
	}

	if payload.Metrics != nil {
		if payload.Metrics.Enable != nil {
			cfg.Metrics.Enable = *payload.Metrics.Enable
		}
		if payload.Metrics.ListenAddr != nil {
			cfg.Metrics.ListenAddr = strings.TrimSpace(*payload.Metrics.ListenAddr)
		}
	}

	if payload.Debug != nil && payload.Debug.AudioDump != nil {
		cfg.Debug.EnableAudioDump = *payload.Debug.AudioDump
	}
}

func normalizeJSONC(content string) (string, error) {
	withoutComments, err := stripJSONCComments(content)
	if err != nil {
		return "", err
	}
	return stripJSONCTrailingCommas(withoutComments), nil
}

func stripJSONCComments(content string) (string, error) {
	var out strings.Builder
	out.Grow(len(content))

	inString := false
	escape := false
	lineComment := false
	blockComment := false

	for i := 0; i < len(content); i++ {
		ch := content[i]

		if lineComment {
			if ch == '\n' || ch == '\r' {
				lineComment = false
				out.WriteByte(ch)
				continue
			}
			out.WriteByte(' ')
			continue
		}

		if blockComment {
			if ch == '*' && i+1 < len(content) && content[i+1] == '/' {
				blockComment = false
				out.WriteString("  ")
				i++
				continue
			}
			if ch == '\n' || ch == '\r' || ch == '\t' {
				out.WriteByte(ch)
			} else {
				out.WriteByte(' ')
			}
			continue
		}

		if inString {
			out.WriteByte(ch)
			if escape {
				escape = false
				continue
			}
			if ch == '\\' {
				escape = true
				continue
			}
			if ch == '"' {
				inString = false
			}
			continue
		}

		if ch == '"' {
			inString = true
			out.WriteByte(ch)
			continue
		}

		if ch == '/' && i+1 < len(content) {
			next := content[i+1]
			if next == '/' {
				lineComment = true
				out.WriteString("  ")
				i++
				continue
			}
			if next == '*' {
				blockComment = true
				out.WriteString("  ")
				i++
				continue
			}
		}

		out.WriteByte(ch)
	}

	if blockComment {
		return "", fmt.Errorf("unterminated block comment in JSONC")
	}

	return out.String(), nil
}

func stripJSONCTrailingCommas(content string) string {
	var out strings.Builder
	out.Grow(len(content))

	inString := false
	escape := false

	for i := 0; i < len(content); i++ {
		ch := content[i]

		if inString {
			out.WriteByte(ch)
			if escape {
				escape = false
				continue
			}
			if ch == '\\' {
				escape = true
				continue
			}
			if ch == '"' {
				inString = false
			}
			continue
		}

		if ch == '"' {
			inString = true
			out.WriteByte(ch)
			continue
		}

		if ch == ',' {
			j := i + 1
			for j < len(content) && isJSONWhitespace(content[j]) {
				j++
			}
			if j < len(content) && (content[j] == '}' || content[j] == ']') {
				continue
			}
		}

		out.WriteByte(ch)
	}

	return out.String()
}

func isJSONWhitespace(ch byte) bool {
	switch ch {
	case ' ', '\n', '\r', '\t':
		return true
	default:
		return false
	}
}

func ensureSingleJSONValue(decoder *json.Decoder) error {
	var extra struct{}
	err := decoder.Decode(&extra)
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err == nil {
		return fmt.Errorf("multiple JSON values are not allowed")
	}
	return err
}

func wrapJSONDecodeError(content string, err error) error {
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		line, col := offsetToLineCol(content, syntaxErr.Offset)
		return fmt.Errorf("line %d column %d: %w", line, col, err)
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		line, col := offsetToLineCol(content, typeErr.Offset)
		return fmt.Errorf("line %d column %d: %w", line, col, err)
	}

	return err
}

func offsetToLineCol(content string, offset int64) (int, int) {
	if offset <= 0 {
		return 1, 1
	}

	limit := int(offset)
	if limit > len(content) {
		limit = len(content)
	}

	line := 1
	col := 1
	for i := 0; i < limit-1; i++ {
		if content[i] == '\n' {
			line++
			col = 1
			continue
		}
		col++
	}
	return line, col
}
