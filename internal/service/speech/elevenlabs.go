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

const (
	elevenLabsAPIEndpoint  = "https://api.elevenlabs.io/v1"
	elevenLabsDefaultVoice = "21m00Tcm4TlvDq8ikWAM" // Rachel
)

// ElevenLabsSynthesizer renders speech through the ElevenLabs REST API.
// Voice selection is by stable voice identifier.
type ElevenLabsSynthesizer struct {
	apiKey     string
	modelID    string
	voiceID    string
	stability  float64
	similarity float64
	client     *http.Client
	logger     zerolog.Logger
}

// NewElevenLabsSynthesizer builds the backend from configuration.
func NewElevenLabsSynthesizer(cfg config.SpeechConfig, logger zerolog.Logger) *ElevenLabsSynthesizer {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &ElevenLabsSynthesizer{
		apiKey:     cfg.ElevenAPIKey,
		modelID:    cfg.ElevenModelID,
		voiceID:    elevenLabsDefaultVoice,
		stability:  cfg.ElevenStability,
		similarity: cfg.ElevenSimilarity,
		client:     &http.Client{Timeout: timeout},
		logger:     logger.With().Str("component", "elevenlabs-tts").Logger(),
	}
}

func (s *ElevenLabsSynthesizer) Variant() Variant {
	return VariantElevenLabs
}

// SetVoiceParam accepts the binding resolver's assignment for this variant.
func (s *ElevenLabsSynthesizer) SetVoiceParam(name, value string) error {
	if name != "voice_id" {
		return fmt.Errorf("elevenlabs synthesizer has no parameter %q", name)
	}
	s.voiceID = value
	return nil
}

// Synthesize converts text to an MP3 clip.
func (s *ElevenLabsSynthesizer) Synthesize(ctx context.Context, text string) (*audio.Clip, error) {
	if s.apiKey == "" {
		return nil, fmt.Errorf("elevenlabs API key not configured")
	}

	payload := map[string]any{
		"text":     text,
		"model_id": s.modelID,
		"voice_settings": map[string]float64{
			"stability":        s.stability,
			"similarity_boost": s.similarity,
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/text-to-speech/%s", elevenLabsAPIEndpoint, s.voiceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("xi-api-key", s.apiKey)
	req.Header.Set("Accept", "audio/mpeg")

	start := time.Now()
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("elevenlabs API returned %d: %s", resp.StatusCode, detail)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read audio response: %w", err)
	}

	s.logger.Debug().
		Str("voice", s.voiceID).
		Int("audioBytes", len(data)).
		Dur("took", time.Since(start)).
		Msg("synthesized reply")

	return &audio.Clip{Data: data, Format: "mp3"}, nil
}
