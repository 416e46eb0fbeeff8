package client

import (
	"fmt"
	"time"

	"github.com/dmitrijs2005/shellkeeper/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

// tokenClaims reads the subject and expiry of an access token. The signature
// is not checked here; the backend verifies it on every authenticated call.
func tokenClaims(token string) (subject string, expiresAt time.Time, err error) {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return "", time.Time{}, fmt.Errorf("%w: %w", common.ErrInvalidToken, err)
	}
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}
	return claims.Subject, expiresAt, nil
}
