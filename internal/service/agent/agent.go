package agent

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog"

	"github.com/lumate/voicecoach/internal/config"
	"github.com/lumate/voicecoach/internal/model/convo"
	"github.com/lumate/voicecoach/internal/model/persona"
)

// Service generates persona-framed replies. It owns the dialogue memory
// format: the orchestrator hands memory in and out without inspecting it.
type Service struct {
	chain        compose.Runnable[map[string]any, *schema.Message]
	systemPrompt string
	historyLimit int
	logger       zerolog.Logger
}

// NewService compiles the prompt+model chain for the configured Ark model.
func NewService(ctx context.Context, cfg config.AIConfig, systemPrompt string, historyLimit int, logger zerolog.Logger) (*Service, error) {
	chatModel, err := cfg.NewChatModel(ctx)
	if err != nil {
		return nil, fmt.Errorf("create chat model: %w", err)
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.MessagesPlaceholder("history", true),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("compile chat chain: %w", err)
	}

	return &Service{
		chain:        runnable,
		systemPrompt: systemPrompt,
		historyLimit: historyLimit,
		logger:       logger.With().Str("component", "agent").Logger(),
	}, nil
}

// Respond produces a reply for the user's input and returns the memory
// extended with both sides of the exchange.
func (s *Service) Respond(ctx context.Context, p persona.Persona, memory convo.Memory, input string) (string, convo.Memory, error) {
	response, err := s.chain.Invoke(ctx, map[string]any{
		"system":  BuildSystemPrompt(s.systemPrompt, p),
		"history": s.historyMessages(memory),
		"query":   input,
	})
	if err != nil {
		return "", convo.Memory{}, fmt.Errorf("run chat chain: %w", err)
	}

	s.logger.Debug().
		Str("persona", p.Label()).
		Int("historyTurns", len(memory.Turns)).
		Int("replyLength", len(response.Content)).
		Msg("generated reply")

	updated := memory.
		Append(convo.RoleUser, input).
		Append(convo.RoleAssistant, response.Content)
	return response.Content, updated, nil
}

// Greeting is the opener a freshly selected persona speaks. It carries no
// dialogue history.
func (s *Service) Greeting(p persona.Persona) string {
	return "What challenges are you facing today? I'm here to help."
}

// historyMessages converts the stored turns into model messages, keeping
// only the most recent window.
func (s *Service) historyMessages(memory convo.Memory) []*schema.Message {
	turns := memory.Turns
	if len(turns) == 0 {
		return nil
	}

	startIdx := 0
	if s.historyLimit > 0 && len(turns) > s.historyLimit {
		startIdx = len(turns) - s.historyLimit
	}

	history := make([]*schema.Message, 0, len(turns)-startIdx)
	for _, turn := range turns[startIdx:] {
		switch turn.Role {
		case convo.RoleUser:
			history = append(history, schema.UserMessage(turn.Content))
		case convo.RoleAssistant:
			history = append(history, schema.AssistantMessage(turn.Content, nil))
		}
	}
	return history
}
