package pipeline_test

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/lumate/voicecoach/internal/model/audio"
	"github.com/lumate/voicecoach/internal/model/convo"
	"github.com/lumate/voicecoach/internal/model/persona"
	"github.com/lumate/voicecoach/internal/service/pipeline"
	"github.com/lumate/voicecoach/internal/service/speech"
	"github.com/lumate/voicecoach/internal/store"
)

type fakeAgent struct {
	mu           sync.Mutex
	delay        time.Duration
	fail         bool
	historySeen  []int
	promptInputs []string
}

func (a *fakeAgent) Respond(_ context.Context, _ persona.Persona, memory convo.Memory, input string) (string, convo.Memory, error) {
	if a.delay > 0 {
		time.Sleep(a.delay)
	}
	a.mu.Lock()
	a.historySeen = append(a.historySeen, len(memory.Turns))
	a.promptInputs = append(a.promptInputs, input)
	a.mu.Unlock()

	if a.fail {
		return "", convo.Memory{}, fmt.Errorf("model unavailable")
	}

	reply := "echo: " + input
	updated := memory.Append(convo.RoleUser, input).Append(convo.RoleAssistant, reply)
	return reply, updated, nil
}

func (a *fakeAgent) Greeting(persona.Persona) string {
	return "What challenges are you facing today? I'm here to help."
}

type fakeSynth struct {
	fail   bool
	params map[string]string
}

func (s *fakeSynth) Variant() speech.Variant { return speech.VariantOpenAI }

func (s *fakeSynth) SetVoiceParam(name, value string) error {
	if s.params == nil {
		s.params = make(map[string]string)
	}
	s.params[name] = value
	return nil
}

func (s *fakeSynth) Synthesize(_ context.Context, text string) (*audio.Clip, error) {
	if s.fail {
		return nil, fmt.Errorf("backend unavailable")
	}
	return &audio.Clip{Data: []byte(text), Format: "mp3"}, nil
}

// gatedSynth stalls its first Synthesize call before reading the voice
// parameter, exposing any rebind that slips in between a run's bind and
// its synthesis.
type gatedSynth struct {
	voice   string
	seen    []string
	gate    bool
	entered chan struct{}
	release chan struct{}
}

func (s *gatedSynth) Variant() speech.Variant { return speech.VariantOpenAI }

func (s *gatedSynth) SetVoiceParam(name, value string) error {
	switch name {
	case "voice":
		s.voice = value
	case "instructions":
	default:
		return fmt.Errorf("no parameter %q", name)
	}
	return nil
}

func (s *gatedSynth) Synthesize(_ context.Context, text string) (*audio.Clip, error) {
	if s.gate {
		s.gate = false
		close(s.entered)
		<-s.release
	}
	s.seen = append(s.seen, s.voice)
	return &audio.Clip{Data: []byte(text), Format: "mp3"}, nil
}

type fakeTranscriber struct {
	text string
	fail bool
}

func (t *fakeTranscriber) Transcribe(context.Context, *audio.Clip) (string, error) {
	if t.fail {
		return "", fmt.Errorf("speech service unavailable")
	}
	return t.text, nil
}

type fixture struct {
	service  *pipeline.Service
	sessions *store.SessionStore
	agent    *fakeAgent
	synth    *fakeSynth
}

func newFixture(t *testing.T, agent *fakeAgent, synth *fakeSynth, transcriber speech.Transcriber, lockWait time.Duration) *fixture {
	t.Helper()
	catalog := persona.NewMemoryCatalog(persona.Seed())
	sessions := store.NewSessionStore(store.NewMemKV(), catalog)

	service, err := pipeline.NewService(sessions, catalog, agent, transcriber, synth, lockWait, zerolog.Nop())
	require.NoError(t, err)

	return &fixture{service: service, sessions: sessions, agent: agent, synth: synth}
}

func TestFreshUserTextPipeline(t *testing.T) {
	fx := newFixture(t, &fakeAgent{}, &fakeSynth{}, &fakeTranscriber{}, time.Second)
	ctx := context.Background()

	reply, err := fx.service.HandleUtterance(ctx, "7", pipeline.Utterance{Text: "I feel stuck at work"})
	require.NoError(t, err)
	require.Equal(t, "echo: I feel stuck at work", reply.Text)
	require.NotNil(t, reply.Clip)

	session, err := fx.sessions.Get(ctx, "7")
	require.NoError(t, err)
	require.NotNil(t, session.Memory, "completed run must commit memory")

	// The follow-up must replay the committed history to the agent.
	_, err = fx.service.HandleUtterance(ctx, "7", pipeline.Utterance{Text: "tell me more"})
	require.NoError(t, err)
	require.Equal(t, []int{0, 2}, fx.agent.historySeen)
}

func TestAudioUtteranceIsTranscribed(t *testing.T) {
	fx := newFixture(t, &fakeAgent{}, &fakeSynth{}, &fakeTranscriber{text: "hello from audio"}, time.Second)

	reply, err := fx.service.HandleUtterance(context.Background(), "7", pipeline.Utterance{
		Clip: &audio.Clip{Data: []byte{0x4f}, Format: "ogg"},
	})
	require.NoError(t, err)
	require.Equal(t, "echo: hello from audio", reply.Text)
	require.Equal(t, []string{"hello from audio"}, fx.agent.promptInputs)
}

func TestTranscriptionFailureAbortsWithoutMutation(t *testing.T) {
	fx := newFixture(t, &fakeAgent{}, &fakeSynth{}, &fakeTranscriber{fail: true}, time.Second)
	ctx := context.Background()

	_, err := fx.service.HandleUtterance(ctx, "7", pipeline.Utterance{
		Clip: &audio.Clip{Data: []byte{0x4f}, Format: "ogg"},
	})
	require.ErrorIs(t, err, pipeline.ErrTranscriptionFailed)

	session, err := fx.sessions.Get(ctx, "7")
	require.NoError(t, err)
	require.Nil(t, session.Memory)
}

func TestGenerationFailureLeavesMemoryIntact(t *testing.T) {
	fx := newFixture(t, &fakeAgent{}, &fakeSynth{}, &fakeTranscriber{}, time.Second)
	ctx := context.Background()

	_, err := fx.service.HandleUtterance(ctx, "7", pipeline.Utterance{Text: "first"})
	require.NoError(t, err)
	before, err := fx.sessions.Get(ctx, "7")
	require.NoError(t, err)

	fx.agent.fail = true
	_, err = fx.service.HandleUtterance(ctx, "7", pipeline.Utterance{Text: "second"})
	require.ErrorIs(t, err, pipeline.ErrGenerationFailed)

	after, err := fx.sessions.Get(ctx, "7")
	require.NoError(t, err)
	require.Equal(t, before.Memory, after.Memory)
}

func TestSynthesisFailureReturnsTextWithoutCommit(t *testing.T) {
	fx := newFixture(t, &fakeAgent{}, &fakeSynth{}, &fakeTranscriber{}, time.Second)
	ctx := context.Background()

	_, err := fx.service.HandleUtterance(ctx, "7", pipeline.Utterance{Text: "first"})
	require.NoError(t, err)
	before, err := fx.sessions.Get(ctx, "7")
	require.NoError(t, err)

	fx.synth.fail = true
	reply, err := fx.service.HandleUtterance(ctx, "7", pipeline.Utterance{Text: "second"})
	require.ErrorIs(t, err, pipeline.ErrSynthesisFailed)
	require.Equal(t, "echo: second", reply.Text, "generated text must survive a synthesis failure")
	require.Nil(t, reply.Clip)

	after, err := fx.sessions.Get(ctx, "7")
	require.NoError(t, err)
	require.Equal(t, before.Memory, after.Memory, "failed run must not commit")
}

func TestSelectPersonaInvalidIndex(t *testing.T) {
	fx := newFixture(t, &fakeAgent{}, &fakeSynth{}, &fakeTranscriber{}, time.Second)
	ctx := context.Background()

	_, err := fx.service.HandleUtterance(ctx, "7", pipeline.Utterance{Text: "hello"})
	require.NoError(t, err)
	before, err := fx.sessions.Get(ctx, "7")
	require.NoError(t, err)

	for _, token := range []string{"5", "-1", "abc"} {
		_, err = fx.service.SelectPersona(ctx, "7", token)
		require.ErrorIs(t, err, pipeline.ErrInvalidPersonaIndex, "token %q", token)
	}

	after, err := fx.sessions.Get(ctx, "7")
	require.NoError(t, err)
	require.Equal(t, before.Current, after.Current)
	require.Equal(t, before.Memory, after.Memory)
}

func TestSelectPersonaSwitchesAndResetsMemory(t *testing.T) {
	fx := newFixture(t, &fakeAgent{}, &fakeSynth{}, &fakeTranscriber{}, time.Second)
	ctx := context.Background()

	_, err := fx.service.HandleUtterance(ctx, "7", pipeline.Utterance{Text: "hello"})
	require.NoError(t, err)

	reply, err := fx.service.SelectPersona(ctx, "7", "1")
	require.NoError(t, err)
	require.NotEmpty(t, reply.Text)
	require.NotNil(t, reply.Clip, "greeting must go through the synthesis path")

	session, err := fx.sessions.Get(ctx, "7")
	require.NoError(t, err)
	require.Equal(t, "Kelly", session.Current.Name)
	require.Nil(t, session.Memory, "persona switch must reset memory")
}

func TestSelectPersonaAppliesVoiceBinding(t *testing.T) {
	fx := newFixture(t, &fakeAgent{}, &fakeSynth{}, &fakeTranscriber{}, time.Second)

	_, err := fx.service.SelectPersona(context.Background(), "7", "2")
	require.NoError(t, err)
	require.Equal(t, persona.Seed()[2].VoiceID, fx.synth.params["voice"])
}

func TestStartSessionResets(t *testing.T) {
	fx := newFixture(t, &fakeAgent{}, &fakeSynth{}, &fakeTranscriber{}, time.Second)
	ctx := context.Background()

	_, err := fx.service.HandleUtterance(ctx, "7", pipeline.Utterance{Text: "hello"})
	require.NoError(t, err)
	_, err = fx.service.SelectPersona(ctx, "7", "1")
	require.NoError(t, err)

	reply, err := fx.service.StartSession(ctx, "7")
	require.NoError(t, err)
	require.NotEmpty(t, reply.Text)

	session, err := fx.sessions.Get(ctx, "7")
	require.NoError(t, err)
	require.Equal(t, "Scott", session.Current.Name)
	require.Nil(t, session.Memory)
}

func TestCorruptMemoryDegradesToEmptyHistory(t *testing.T) {
	fx := newFixture(t, &fakeAgent{}, &fakeSynth{}, &fakeTranscriber{}, time.Second)
	ctx := context.Background()

	corrupt := "%%% definitely not base64 %%%"
	require.NoError(t, fx.sessions.SetMemory(ctx, "7", &corrupt))

	reply, err := fx.service.HandleUtterance(ctx, "7", pipeline.Utterance{Text: "hello"})
	require.NoError(t, err, "corrupt state must not fail the run")
	require.Equal(t, "echo: hello", reply.Text)
	require.Equal(t, []int{0}, fx.agent.historySeen, "corrupt memory must decode as empty history")
}

func TestSameUserRunsAreSerialized(t *testing.T) {
	agent := &fakeAgent{delay: 30 * time.Millisecond}
	fx := newFixture(t, agent, &fakeSynth{}, &fakeTranscriber{}, 5*time.Second)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := fx.service.HandleUtterance(ctx, "7", pipeline.Utterance{Text: fmt.Sprintf("message %d", n)})
			require.NoError(t, err)
		}(i)
	}
	wg.Wait()

	// Whichever run went second must have observed the first run's commit.
	sort.Ints(agent.historySeen)
	require.Equal(t, []int{0, 2}, agent.historySeen)

	session, err := fx.sessions.Get(ctx, "7")
	require.NoError(t, err)
	decoded, err := convo.Decode(*session.Memory)
	require.NoError(t, err)
	require.Len(t, decoded.Turns, 4)
}

func TestBusySessionRejectsSecondRun(t *testing.T) {
	agent := &fakeAgent{delay: 200 * time.Millisecond}
	fx := newFixture(t, agent, &fakeSynth{}, &fakeTranscriber{}, 20*time.Millisecond)
	ctx := context.Background()

	errs := make(chan error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := fx.service.HandleUtterance(ctx, "7", pipeline.Utterance{Text: "hello"})
			errs <- err
		}()
		time.Sleep(10 * time.Millisecond)
	}
	wg.Wait()
	close(errs)

	var busy int
	for err := range errs {
		if errors.Is(err, pipeline.ErrSessionBusy) {
			busy++
		} else {
			require.NoError(t, err)
		}
	}
	require.Equal(t, 1, busy, "second concurrent run must be rejected as busy")
}

func TestSessionReadsRespectUserLock(t *testing.T) {
	agent := &fakeAgent{delay: 200 * time.Millisecond}
	fx := newFixture(t, agent, &fakeSynth{}, &fakeTranscriber{}, 20*time.Millisecond)
	ctx := context.Background()

	started := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		close(started)
		_, err := fx.service.HandleUtterance(ctx, "7", pipeline.Utterance{Text: "hello"})
		done <- err
	}()
	<-started
	time.Sleep(20 * time.Millisecond)

	// While the run holds the user lock, reads must wait their bounded turn
	// rather than racing the run's get-or-create and commit.
	_, err := fx.service.ListPersonas(ctx, "7")
	require.ErrorIs(t, err, pipeline.ErrSessionBusy)
	_, err = fx.service.Current(ctx, "7")
	require.ErrorIs(t, err, pipeline.ErrSessionBusy)

	require.NoError(t, <-done)

	personas, err := fx.service.ListPersonas(ctx, "7")
	require.NoError(t, err)
	require.Len(t, personas, 3)
	current, err := fx.service.Current(ctx, "7")
	require.NoError(t, err)
	require.Equal(t, "Scott", current.Name)
}

func TestConcurrentUsersKeepTheirOwnVoices(t *testing.T) {
	synth := &gatedSynth{entered: make(chan struct{}), release: make(chan struct{})}
	catalog := persona.NewMemoryCatalog(persona.Seed())
	sessions := store.NewSessionStore(store.NewMemKV(), catalog)
	service, err := pipeline.NewService(sessions, catalog, &fakeAgent{}, &fakeTranscriber{}, synth, 5*time.Second, zerolog.Nop())
	require.NoError(t, err)
	ctx := context.Background()

	// User B talks as Kelly; user A keeps the default Scott.
	_, err = service.SelectPersona(ctx, "b", "1")
	require.NoError(t, err)
	synth.seen = nil
	synth.gate = true

	done := make(chan error, 2)
	go func() {
		_, err := service.HandleUtterance(ctx, "a", pipeline.Utterance{Text: "hello"})
		done <- err
	}()
	<-synth.entered

	// A is mid-synthesis with Scott's voice bound; B's run must not be able
	// to rebind the shared backend underneath it.
	go func() {
		_, err := service.HandleUtterance(ctx, "b", pipeline.Utterance{Text: "hello"})
		done <- err
	}()
	time.Sleep(20 * time.Millisecond)
	close(synth.release)

	require.NoError(t, <-done)
	require.NoError(t, <-done)
	require.Equal(t, []string{persona.Seed()[0].VoiceID, persona.Seed()[1].VoiceID}, synth.seen)
}

func TestDifferentUsersRunConcurrently(t *testing.T) {
	agent := &fakeAgent{delay: 50 * time.Millisecond}
	fx := newFixture(t, agent, &fakeSynth{}, &fakeTranscriber{}, 10*time.Millisecond)
	ctx := context.Background()

	// With a 10ms lock bound and 50ms runs, overlapping users only succeed
	// if they do not contend for the same lock.
	var wg sync.WaitGroup
	for _, userID := range []string{"1", "2", "3"} {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := fx.service.HandleUtterance(ctx, id, pipeline.Utterance{Text: "hello"})
			require.NoError(t, err)
		}(userID)
	}
	wg.Wait()
}
