package channel

import (
	"context"

	"github.com/lumate/voicecoach/internal/model/persona"
	"github.com/lumate/voicecoach/internal/service/pipeline"
)

// Orchestrator is the slice of the pipeline service a chat connector drives.
type Orchestrator interface {
	HandleUtterance(ctx context.Context, userID string, input pipeline.Utterance) (pipeline.Reply, error)
	SelectPersona(ctx context.Context, userID, rawIndex string) (pipeline.Reply, error)
	StartSession(ctx context.Context, userID string) (pipeline.Reply, error)
	ListPersonas(ctx context.Context, userID string) ([]persona.Persona, error)
	Current(ctx context.Context, userID string) (persona.Persona, error)
}

// Connector is a chat-platform adapter. Implementations translate platform
// events into orchestrator calls and deliver replies back.
type Connector interface {
	// Start begins consuming platform events until the context is canceled.
	Start(ctx context.Context) error

	// Stop releases platform resources.
	Stop() error

	// Name identifies the connector for logging.
	Name() string

	// Enabled reports whether the connector is configured to run.
	Enabled() bool
}
