package speech

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/lumate/voicecoach/internal/config"
	"github.com/lumate/voicecoach/internal/model/audio"
)

// Variant identifies a synthesis backend implementation. Backends differ in
// how a voice is selected, which is why the binding resolver keys on this.
type Variant string

const (
	VariantElevenLabs Variant = "elevenlabs"
	VariantOpenAI     Variant = "openai"
	VariantVolcengine Variant = "volcengine"
)

// Synthesizer renders reply text into a voice clip. Voice selection happens
// through SetVoiceParam using the parameter names the binding resolver
// derives for the backend's variant.
type Synthesizer interface {
	Variant() Variant
	SetVoiceParam(name, value string) error
	Synthesize(ctx context.Context, text string) (*audio.Clip, error)
}

// NewSynthesizer builds the configured backend. An unknown variant is a
// configuration error and surfaces before the bot starts serving.
func NewSynthesizer(cfg config.SpeechConfig, logger zerolog.Logger) (Synthesizer, error) {
	switch Variant(cfg.SynthVariant) {
	case VariantElevenLabs:
		return NewElevenLabsSynthesizer(cfg, logger), nil
	case VariantOpenAI:
		return NewOpenAISynthesizer(cfg, logger), nil
	case VariantVolcengine:
		return NewVolcengineSynthesizer(cfg, logger), nil
	default:
		return nil, fmt.Errorf("unsupported synthesizer variant: %q", cfg.SynthVariant)
	}
}
