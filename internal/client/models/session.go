// Package models defines the session guard's data model: the backend
// session, the authenticated identity and the merged application user.
package models

import (
	"encoding/json"
	"time"
)

// Identity is the authentication record the backend attaches to a session.
type Identity struct {
	ID           string         `json:"id"`
	Email        string         `json:"email,omitempty"`
	Role         string         `json:"role,omitempty"`
	UserMetadata map[string]any `json:"user_metadata,omitempty"`
	AppMetadata  map[string]any `json:"app_metadata,omitempty"`
	CreatedAt    *time.Time     `json:"created_at,omitempty"`
}

// Fields returns the identity as a plain map, the shape it has on the wire.
func (i *Identity) Fields() User {
	if i == nil {
		return nil
	}
	b, err := json.Marshal(i)
	if err != nil {
		return User{"id": i.ID, "email": i.Email}
	}
	u := User{}
	if err := json.Unmarshal(b, &u); err != nil {
		return User{"id": i.ID, "email": i.Email}
	}
	return u
}

// Session is the server-issued proof of authentication for this client.
type Session struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type,omitempty"`
	ExpiresAt    time.Time `json:"expires_at"`
	User         Identity  `json:"user"`
}

// Expired reports whether the session's access token is past its expiry.
// A zero ExpiresAt never expires.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}
