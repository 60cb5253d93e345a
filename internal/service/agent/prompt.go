package agent

import (
	"fmt"
	"strings"

	"github.com/lumate/voicecoach/internal/model/persona"
)

// personaClause frames the model as the selected coach. Appended to the
// base prompt whenever the persona carries a name or description.
const personaClause = "Pretend to be %s. You are a trusted coach that must always keep " +
	"responses positive and offer good advice. Ask and help answer tough questions about " +
	"the problem or challenge shared. Make sure your tone of voice remains optimistic and " +
	"always provides some advice to get started."

// BuildSystemPrompt combines the base instruction with the persona framing.
// A persona with neither name nor description leaves the base prompt as-is.
func BuildSystemPrompt(base string, p persona.Persona) string {
	if p.Name == "" && p.Description == "" {
		return base
	}

	identity := p.Name
	if p.Description != "" {
		if identity != "" {
			identity += ", "
		}
		identity += p.Description
	}

	var builder strings.Builder
	builder.WriteString(base)
	builder.WriteString(" ")
	builder.WriteString(fmt.Sprintf(personaClause, identity))
	return builder.String()
}
