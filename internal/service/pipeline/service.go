package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/lumate/voicecoach/internal/metrics"
	"github.com/lumate/voicecoach/internal/model/audio"
	"github.com/lumate/voicecoach/internal/model/convo"
	"github.com/lumate/voicecoach/internal/model/persona"
	"github.com/lumate/voicecoach/internal/service/speech"
	"github.com/lumate/voicecoach/internal/store"
)

// DialogueAgent generates persona-framed replies and owns the memory format.
type DialogueAgent interface {
	Respond(ctx context.Context, p persona.Persona, memory convo.Memory, input string) (string, convo.Memory, error)
	Greeting(p persona.Persona) string
}

// Utterance is one inbound message: plain text, or a single audio clip that
// must be transcribed first.
type Utterance struct {
	Text string
	Clip *audio.Clip
}

// Reply is the pipeline's output. Clip is nil when synthesis failed and the
// caller should fall back to text.
type Reply struct {
	Text string
	Clip *audio.Clip
}

// Service sequences transcribe, generate, bind, synthesize and commit for
// each utterance, and owns all session mutations. Runs for the same user
// are strictly serialized; different users proceed concurrently.
type Service struct {
	sessions    *store.SessionStore
	catalog     persona.Catalog
	agent       DialogueAgent
	transcriber speech.Transcriber
	synth       speech.Synthesizer
	synthMu     sync.Mutex
	resolver    *speech.Resolver
	locks       *userLocks
	logger      zerolog.Logger
}

// NewService wires the orchestrator. The resolver is constructed here so an
// unbindable synthesizer variant fails at startup, not mid-conversation.
func NewService(
	sessions *store.SessionStore,
	catalog persona.Catalog,
	agent DialogueAgent,
	transcriber speech.Transcriber,
	synth speech.Synthesizer,
	lockWait time.Duration,
	logger zerolog.Logger,
) (*Service, error) {
	resolver, err := speech.NewResolver(synth.Variant())
	if err != nil {
		return nil, err
	}

	return &Service{
		sessions:    sessions,
		catalog:     catalog,
		agent:       agent,
		transcriber: transcriber,
		synth:       synth,
		resolver:    resolver,
		locks:       newUserLocks(lockWait),
		logger:      logger.With().Str("component", "pipeline").Logger(),
	}, nil
}

// HandleUtterance runs the full pipeline for one inbound message. Session
// state is only mutated after every external call has succeeded; a failed
// run leaves the stored memory exactly as it was.
func (s *Service) HandleUtterance(ctx context.Context, userID string, input Utterance) (Reply, error) {
	release, err := s.locks.acquire(ctx, userID)
	if err != nil {
		return Reply{}, err
	}
	metrics.ActiveRuns.Inc()
	defer func() {
		release()
		metrics.ActiveRuns.Dec()
	}()

	text := input.Text
	if input.Clip != nil {
		start := time.Now()
		text, err = s.transcriber.Transcribe(ctx, input.Clip)
		metrics.StageDuration.WithLabelValues("transcribe").Observe(time.Since(start).Seconds())
		if err != nil {
			metrics.PipelineRuns.WithLabelValues("transcription_failed").Inc()
			return Reply{}, fmt.Errorf("%w: %v", ErrTranscriptionFailed, err)
		}
	}

	session, err := s.sessions.Get(ctx, userID)
	if err != nil {
		metrics.PipelineRuns.WithLabelValues("store_failed").Inc()
		return Reply{}, fmt.Errorf("load session: %w", err)
	}

	memory := s.decodeMemory(userID, session.Memory)

	start := time.Now()
	replyText, updated, err := s.agent.Respond(ctx, session.Current, memory, text)
	metrics.StageDuration.WithLabelValues("generate").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.PipelineRuns.WithLabelValues("generation_failed").Inc()
		return Reply{}, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}

	clip, synthErr := s.speak(ctx, session.Current, replyText)
	if synthErr != nil {
		// The generated answer is still worth delivering as text, but the
		// turn is not committed: the next run replays it against the prior
		// history.
		metrics.PipelineRuns.WithLabelValues("synthesis_failed").Inc()
		return Reply{Text: replyText}, synthErr
	}

	encoded, err := convo.Encode(updated)
	if err != nil {
		metrics.PipelineRuns.WithLabelValues("commit_failed").Inc()
		return Reply{}, fmt.Errorf("encode memory: %w", err)
	}
	if err := s.sessions.SetMemory(ctx, userID, &encoded); err != nil {
		metrics.PipelineRuns.WithLabelValues("commit_failed").Inc()
		return Reply{}, fmt.Errorf("commit memory: %w", err)
	}

	metrics.PipelineRuns.WithLabelValues("ok").Inc()
	return Reply{Text: replyText, Clip: clip}, nil
}

// SelectPersona switches the user's active persona and greets them in the
// new voice. An unknown index leaves the session untouched.
//
// The new persona is resolved from the process-wide catalog by position,
// not from the session's own persona list.
func (s *Service) SelectPersona(ctx context.Context, userID, rawIndex string) (Reply, error) {
	index, err := persona.ParseIndex(rawIndex)
	if err != nil {
		return Reply{}, fmt.Errorf("%w: %q", ErrInvalidPersonaIndex, rawIndex)
	}
	selected, err := s.catalog.Resolve(index)
	if err != nil {
		return Reply{}, fmt.Errorf("%w: %d", ErrInvalidPersonaIndex, index)
	}

	release, err := s.locks.acquire(ctx, userID)
	if err != nil {
		return Reply{}, err
	}
	defer release()

	if err := s.sessions.SetCurrentPersona(ctx, userID, selected); err != nil {
		return Reply{}, fmt.Errorf("persist persona switch: %w", err)
	}
	metrics.PersonaSwitches.Inc()
	s.logger.Info().Str("user", userID).Str("persona", selected.Label()).Msg("persona switched")

	greeting := s.agent.Greeting(selected)
	clip, synthErr := s.speak(ctx, selected, greeting)
	if synthErr != nil {
		return Reply{Text: greeting}, synthErr
	}
	return Reply{Text: greeting, Clip: clip}, nil
}

// StartSession resets the user to the default session and returns the
// current persona's greeting through the synthesis path.
func (s *Service) StartSession(ctx context.Context, userID string) (Reply, error) {
	release, err := s.locks.acquire(ctx, userID)
	if err != nil {
		return Reply{}, err
	}
	defer release()

	session, err := s.sessions.Reset(ctx, userID)
	if err != nil {
		return Reply{}, fmt.Errorf("reset session: %w", err)
	}

	greeting := s.agent.Greeting(session.Current)
	clip, synthErr := s.speak(ctx, session.Current, greeting)
	if synthErr != nil {
		return Reply{Text: greeting}, synthErr
	}
	return Reply{Text: greeting, Clip: clip}, nil
}

// ListPersonas returns the user's selectable personas. Get creates the
// session on first contact, so even this read takes the user lock: a
// concurrent create here could otherwise overwrite a pipeline run's commit.
func (s *Service) ListPersonas(ctx context.Context, userID string) ([]persona.Persona, error) {
	release, err := s.locks.acquire(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer release()

	session, err := s.sessions.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	return session.Personas, nil
}

// Current returns the user's active persona, under the user lock for the
// same reason as ListPersonas.
func (s *Service) Current(ctx context.Context, userID string) (persona.Persona, error) {
	release, err := s.locks.acquire(ctx, userID)
	if err != nil {
		return persona.Persona{}, err
	}
	defer release()

	session, err := s.sessions.Get(ctx, userID)
	if err != nil {
		return persona.Persona{}, fmt.Errorf("load session: %w", err)
	}
	return session.Current, nil
}

// speak applies the persona's voice binding and synthesizes the text. The
// synthesizer instance is shared across users and SetVoiceParam mutates it,
// so the bind and the synthesis call must happen under one lock: the
// per-user lock alone cannot stop another user's bind from landing between
// the two.
func (s *Service) speak(ctx context.Context, p persona.Persona, text string) (*audio.Clip, error) {
	s.synthMu.Lock()
	defer s.synthMu.Unlock()

	if err := s.resolver.Apply(s.synth, s.resolver.Bind(p)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSynthesisFailed, err)
	}

	start := time.Now()
	clip, err := s.synth.Synthesize(ctx, text)
	metrics.StageDuration.WithLabelValues("synthesize").Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSynthesisFailed, err)
	}
	return clip, nil
}

// decodeMemory restores the stored history, degrading a corrupt blob to an
// empty one. Losing history beats failing the whole run.
func (s *Service) decodeMemory(userID string, encoded *string) convo.Memory {
	if encoded == nil {
		return convo.Memory{}
	}
	memory, err := convo.Decode(*encoded)
	if err != nil {
		if errors.Is(err, convo.ErrCorruptState) {
			metrics.CorruptMemoryRecoveries.Inc()
			s.logger.Warn().Str("user", userID).Err(err).Msg("stored memory corrupt, starting fresh")
			return convo.Memory{}
		}
		s.logger.Warn().Str("user", userID).Err(err).Msg("memory decode failed, starting fresh")
		return convo.Memory{}
	}
	return memory
}
