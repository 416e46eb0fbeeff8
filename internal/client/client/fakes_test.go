package client

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dmitrijs2005/shellkeeper/internal/client/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

// memStore is an in-memory SessionStore.
type memStore struct {
	sess    *models.Session
	loadErr error
	saves   int
	clears  int
}

func (m *memStore) Load(context.Context) (*models.Session, error) {
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	if m.sess == nil {
		return nil, nil
	}
	cp := *m.sess
	return &cp, nil
}

func (m *memStore) Save(_ context.Context, s *models.Session) error {
	m.saves++
	cp := *s
	m.sess = &cp
	return nil
}

func (m *memStore) Clear(context.Context) error {
	m.clears++
	m.sess = nil
	return nil
}

var errStoreDown = errors.New("store down")

func signToken(t *testing.T, sub string, exp time.Time) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   sub,
		ExpiresAt: jwt.NewNumericDate(exp),
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return tok
}
