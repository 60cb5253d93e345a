package persona

// Persona is a selectable voice configuration. VoiceID addresses a concrete
// voice at the synthesis provider; Description doubles as a free-text voice
// prompt for backends that can synthesize a voice from a description. A
// usable persona carries at least one of the three fields.
type Persona struct {
	VoiceID     string `json:"voiceId,omitempty"`
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
}

// Usable reports whether the persona carries any identifying attribute.
func (p Persona) Usable() bool {
	return p.VoiceID != "" || p.Name != "" || p.Description != ""
}

// Label returns the user-facing name, falling back to the description.
func (p Persona) Label() string {
	if p.Name != "" {
		return p.Name
	}
	return p.Description
}

// Seed provides the default coach personas shipped with the bot.
func Seed() []Persona {
	return []Persona{
		{
			VoiceID:     "9d455f7c-d4b3-485a-80bd-fa3efa21ec2a",
			Name:        "Scott",
			Description: "Business Coach",
		},
		{
			VoiceID:     "070d6e3b-a45d-46de-9f21-b3e6889b5be9",
			Name:        "Kelly",
			Description: "Personal Life Coach",
		},
		{
			VoiceID:     "88e2fd83-17e6-44b4-b91e-0d05556285d6",
			Name:        "Julie",
			Description: "Fitness Coach",
		},
	}
}
