package convo

// Role identifies the author of a dialogue turn.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is a single exchange entry in a conversation.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Memory holds the dialogue history owned by the agent. The orchestrator
// treats it as opaque: it only carries it between the agent and the codec.
type Memory struct {
	Turns []Turn `json:"turns"`
}

// Empty reports whether the memory holds no prior conversation.
func (m Memory) Empty() bool {
	return len(m.Turns) == 0
}

// Append returns a copy of the memory extended with one turn.
func (m Memory) Append(role, content string) Memory {
	turns := make([]Turn, 0, len(m.Turns)+1)
	turns = append(turns, m.Turns...)
	turns = append(turns, Turn{Role: role, Content: content})
	return Memory{Turns: turns}
}
