package speech

import (
	"fmt"

	"github.com/lumate/voicecoach/internal/model/persona"
)

// voiceParamOf maps each backend variant to the parameter that selects a
// voice by identifier. Every supported variant must have an entry; the
// resolver constructor enforces this at startup.
var voiceParamOf = map[Variant]string{
	VariantElevenLabs: "voice_id",
	VariantOpenAI:     "voice",
	VariantVolcengine: "speaker",
}

// descriptorParamOf lists the variants able to synthesize a voice from a
// free-text description, and the parameter that carries it.
var descriptorParamOf = map[Variant]string{
	VariantOpenAI: "instructions",
}

// Assignment is one backend parameter set by a persona binding. The zero
// value means no parameter is set and the backend keeps its current voice.
type Assignment struct {
	Param string
	Value string
}

// NoOp reports whether the assignment leaves the backend untouched.
func (a Assignment) NoOp() bool {
	return a.Param == ""
}

// Resolver maps personas onto the voice parameter of one backend variant.
type Resolver struct {
	variant Variant
}

// NewResolver validates the variant against the parameter table. A variant
// without an entry cannot bind any voice and is rejected here rather than
// at call time.
func NewResolver(variant Variant) (*Resolver, error) {
	if _, ok := voiceParamOf[variant]; !ok {
		return nil, fmt.Errorf("no voice parameter registered for synthesizer variant %q", variant)
	}
	return &Resolver{variant: variant}, nil
}

// Bind derives the parameter assignment for a persona. A voice identifier
// always wins; a description applies only on descriptor-capable variants;
// otherwise the backend's configured voice stays in effect.
func (r *Resolver) Bind(p persona.Persona) Assignment {
	if p.VoiceID != "" {
		return Assignment{Param: voiceParamOf[r.variant], Value: p.VoiceID}
	}
	if p.Description != "" {
		if param, ok := descriptorParamOf[r.variant]; ok {
			return Assignment{Param: param, Value: p.Description}
		}
	}
	return Assignment{}
}

// Apply pushes the assignment onto the synthesizer. NoOp assignments are
// skipped entirely.
func (r *Resolver) Apply(s Synthesizer, a Assignment) error {
	if a.NoOp() {
		return nil
	}
	return s.SetVoiceParam(a.Param, a.Value)
}
