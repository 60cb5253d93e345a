package speech

import (
	"context"
	"testing"

	"github.com/lumate/voicecoach/internal/model/audio"
	"github.com/lumate/voicecoach/internal/model/persona"
)

type recordingSynth struct {
	variant Variant
	params  map[string]string
}

func (s *recordingSynth) Variant() Variant { return s.variant }

func (s *recordingSynth) SetVoiceParam(name, value string) error {
	if s.params == nil {
		s.params = make(map[string]string)
	}
	s.params[name] = value
	return nil
}

func (s *recordingSynth) Synthesize(context.Context, string) (*audio.Clip, error) {
	return &audio.Clip{Data: []byte{0x01}, Format: "mp3"}, nil
}

func TestNewResolverUnknownVariant(t *testing.T) {
	if _, err := NewResolver(Variant("festival")); err == nil {
		t.Fatal("expected error for variant without a voice parameter entry")
	}
}

func TestBindVoiceIDWins(t *testing.T) {
	resolver, err := NewResolver(VariantOpenAI)
	if err != nil {
		t.Fatalf("NewResolver err: %v", err)
	}

	a := resolver.Bind(persona.Persona{VoiceID: "nova", Description: "a warm coach"})
	if a.Param != "voice" || a.Value != "nova" {
		t.Fatalf("voice id should win: got %+v", a)
	}
}

func TestBindDescriptionOnCapableVariant(t *testing.T) {
	resolver, err := NewResolver(VariantOpenAI)
	if err != nil {
		t.Fatalf("NewResolver err: %v", err)
	}

	a := resolver.Bind(persona.Persona{Description: "a warm, upbeat coach"})
	if a.Param != "instructions" || a.Value != "a warm, upbeat coach" {
		t.Fatalf("description should bind to instructions: got %+v", a)
	}
}

func TestBindDescriptionOnIncapableVariantIsNoOp(t *testing.T) {
	resolver, err := NewResolver(VariantElevenLabs)
	if err != nil {
		t.Fatalf("NewResolver err: %v", err)
	}

	a := resolver.Bind(persona.Persona{Description: "a warm coach"})
	if !a.NoOp() {
		t.Fatalf("expected no-op assignment, got %+v", a)
	}
}

func TestApplySetsParameter(t *testing.T) {
	resolver, err := NewResolver(VariantVolcengine)
	if err != nil {
		t.Fatalf("NewResolver err: %v", err)
	}
	synth := &recordingSynth{variant: VariantVolcengine}

	a := resolver.Bind(persona.Persona{VoiceID: "zh_female_tianxinxiaomei"})
	if err := resolver.Apply(synth, a); err != nil {
		t.Fatalf("Apply err: %v", err)
	}
	if synth.params["speaker"] != "zh_female_tianxinxiaomei" {
		t.Fatalf("speaker not applied: got %v", synth.params)
	}
}

func TestApplyNoOpSkipsSynth(t *testing.T) {
	resolver, err := NewResolver(VariantElevenLabs)
	if err != nil {
		t.Fatalf("NewResolver err: %v", err)
	}
	synth := &recordingSynth{variant: VariantElevenLabs}

	if err := resolver.Apply(synth, Assignment{}); err != nil {
		t.Fatalf("Apply err: %v", err)
	}
	if len(synth.params) != 0 {
		t.Fatalf("no-op must not touch the synthesizer: got %v", synth.params)
	}
}
