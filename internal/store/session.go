package store

import (
	"context"
	"fmt"
	"time"

	"github.com/bytedance/sonic"

	"github.com/lumate/voicecoach/internal/model/persona"
)

// Session is the per-user persisted record: the persona list the user can
// pick from, the currently selected persona and the serialized dialogue
// memory. Memory is nil until the first completed pipeline run.
type Session struct {
	Personas  []persona.Persona `json:"personas"`
	Current   persona.Persona   `json:"current"`
	Memory    *string           `json:"memory,omitempty"`
	CreatedAt time.Time         `json:"createdAt"`
	UpdatedAt time.Time         `json:"updatedAt"`
}

// SessionStore keeps sessions in an external KV. All writes are
// last-writer-wins; callers serialize per-user access (the orchestrator
// holds a per-user lock around every read-modify-write cycle).
type SessionStore struct {
	kv      KV
	catalog persona.Catalog
}

// NewSessionStore builds a session store over the given KV backend.
func NewSessionStore(kv KV, catalog persona.Catalog) *SessionStore {
	return &SessionStore{kv: kv, catalog: catalog}
}

func sessionKey(userID string) string {
	return "session:" + userID
}

func (s *SessionStore) defaultSession() Session {
	now := time.Now().UTC()
	defaults := s.catalog.List()
	return Session{
		Personas:  defaults,
		Current:   defaults[0],
		Memory:    nil,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Get returns the user's session, creating and persisting the default
// record on first contact so a second Get observes identical contents.
func (s *SessionStore) Get(ctx context.Context, userID string) (Session, error) {
	data, ok, err := s.kv.Read(ctx, sessionKey(userID))
	if err != nil {
		return Session{}, err
	}
	if !ok {
		session := s.defaultSession()
		if err := s.put(ctx, userID, session); err != nil {
			return Session{}, err
		}
		return session, nil
	}

	var session Session
	if err := sonic.Unmarshal(data, &session); err != nil {
		return Session{}, fmt.Errorf("unmarshal session %s: %w", userID, err)
	}
	return session, nil
}

// SetCurrentPersona switches the active persona and drops the dialogue
// memory: conversation context never carries across personas.
func (s *SessionStore) SetCurrentPersona(ctx context.Context, userID string, p persona.Persona) error {
	session, err := s.Get(ctx, userID)
	if err != nil {
		return err
	}
	session.Current = p
	session.Memory = nil
	return s.put(ctx, userID, session)
}

// SetMemory overwrites the serialized dialogue memory. A nil value clears it.
func (s *SessionStore) SetMemory(ctx context.Context, userID string, encoded *string) error {
	session, err := s.Get(ctx, userID)
	if err != nil {
		return err
	}
	session.Memory = encoded
	return s.put(ctx, userID, session)
}

// Reset restores the full default session, used on explicit /start.
func (s *SessionStore) Reset(ctx context.Context, userID string) (Session, error) {
	session := s.defaultSession()
	if err := s.put(ctx, userID, session); err != nil {
		return Session{}, err
	}
	return session, nil
}

func (s *SessionStore) put(ctx context.Context, userID string, session Session) error {
	session.UpdatedAt = time.Now().UTC()
	data, err := sonic.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session %s: %w", userID, err)
	}
	return s.kv.Write(ctx, sessionKey(userID), data)
}
