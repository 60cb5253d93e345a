package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/lumate/voicecoach/internal/config"
	"github.com/lumate/voicecoach/internal/model/audio"
)

const openAISpeechEndpoint = "https://api.openai.com/v1/audio/speech"

// OpenAISynthesizer renders speech through OpenAI's speech API. Besides the
// named voice parameter it supports free-text voice instructions, making it
// the descriptor-capable variant: a persona without a voice identifier can
// still shape the voice through its description.
type OpenAISynthesizer struct {
	apiKey       string
	model        string
	voice        string
	instructions string
	client       *http.Client
	logger       zerolog.Logger
}

// NewOpenAISynthesizer builds the backend from configuration.
func NewOpenAISynthesizer(cfg config.SpeechConfig, logger zerolog.Logger) *OpenAISynthesizer {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &OpenAISynthesizer{
		apiKey: cfg.OpenAIAPIKey,
		model:  cfg.OpenAIModel,
		voice:  cfg.OpenAIVoice,
		client: &http.Client{Timeout: timeout},
		logger: logger.With().Str("component", "openai-tts").Logger(),
	}
}

func (s *OpenAISynthesizer) Variant() Variant {
	return VariantOpenAI
}

// SetVoiceParam accepts either the voice name or the voice instructions.
func (s *OpenAISynthesizer) SetVoiceParam(name, value string) error {
	switch name {
	case "voice":
		s.voice = value
	case "instructions":
		s.instructions = value
	default:
		return fmt.Errorf("openai synthesizer has no parameter %q", name)
	}
	return nil
}

type openAISpeechRequest struct {
	Model          string `json:"model"`
	Input          string `json:"input"`
	Voice          string `json:"voice"`
	Instructions   string `json:"instructions,omitempty"`
	ResponseFormat string `json:"response_format,omitempty"`
}

// Synthesize converts text to an MP3 clip.
func (s *OpenAISynthesizer) Synthesize(ctx context.Context, text string) (*audio.Clip, error) {
	if s.apiKey == "" {
		return nil, fmt.Errorf("openai API key not configured")
	}

	body, err := json.Marshal(openAISpeechRequest{
		Model:          s.model,
		Input:          text,
		Voice:          s.voice,
		Instructions:   s.instructions,
		ResponseFormat: "mp3",
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, openAISpeechEndpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	start := time.Now()
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("openai speech API returned %d: %s", resp.StatusCode, detail)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read audio response: %w", err)
	}

	s.logger.Debug().
		Str("voice", s.voice).
		Bool("instructed", s.instructions != "").
		Int("audioBytes", len(data)).
		Dur("took", time.Since(start)).
		Msg("synthesized reply")

	return &audio.Clip{Data: data, Format: "mp3"}, nil
}
