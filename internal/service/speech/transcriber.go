package speech

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"

	"github.com/lumate/voicecoach/internal/model/audio"
)

// Transcriber converts an audio clip into text.
type Transcriber interface {
	Transcribe(ctx context.Context, clip *audio.Clip) (string, error)
}

// WhisperTranscriber implements Transcriber against OpenAI's Whisper API.
type WhisperTranscriber struct {
	client *openai.Client
	logger zerolog.Logger
}

// NewWhisperTranscriber builds the Whisper-backed transcriber.
func NewWhisperTranscriber(apiKey string, logger zerolog.Logger) *WhisperTranscriber {
	return &WhisperTranscriber{
		client: openai.NewClient(apiKey),
		logger: logger.With().Str("component", "whisper").Logger(),
	}
}

// Transcribe sends the clip bytes to Whisper and returns the recognized text.
func (t *WhisperTranscriber) Transcribe(ctx context.Context, clip *audio.Clip) (string, error) {
	if clip.Empty() {
		return "", fmt.Errorf("audio clip is empty")
	}

	format := clip.Format
	if format == "" {
		format = "ogg"
	}

	resp, err := t.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    openai.Whisper1,
		Reader:   bytes.NewReader(clip.Data),
		FilePath: "utterance." + format,
	})
	if err != nil {
		return "", fmt.Errorf("whisper transcription: %w", err)
	}

	text := strings.TrimSpace(resp.Text)
	t.logger.Debug().Int("audioBytes", len(clip.Data)).Int("textLength", len(text)).Msg("transcribed utterance")
	return text, nil
}
