package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dmitrijs2005/shellkeeper/internal/client/models"
)

// SessionKey is the local-storage key holding the backend session.
const SessionKey = "auth.session"

// SessionStore keeps the backend session as JSON in local storage.
type SessionStore struct {
	repo Repository
}

func NewSessionStore(repo Repository) *SessionStore {
	return &SessionStore{repo: repo}
}

func (s *SessionStore) Load(ctx context.Context) (*models.Session, error) {
	raw, err := s.repo.Get(ctx, ScopeLocal, SessionKey)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, nil
	}
	var sess models.Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		// an undecodable record is treated as a session whose token is garbage,
		// so the guard's corruption handling gets to wipe it
		return &models.Session{AccessToken: string(raw)}, nil
	}
	return &sess, nil
}

func (s *SessionStore) Save(ctx context.Context, sess *models.Session) error {
	raw, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	return s.repo.Set(ctx, ScopeLocal, SessionKey, raw)
}

func (s *SessionStore) Clear(ctx context.Context) error {
	return s.repo.Delete(ctx, ScopeLocal, SessionKey)
}
