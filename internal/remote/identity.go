package remote

import (
	"errors"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

type tokenClaims struct {
	jwt.RegisteredClaims
	UserID string `json:"user_id,omitempty"`
}

// LocalUserID extracts the user identity carried by the configured bearer
// token, used as the default assignee for new tasks. The token is not
// verified here; session handling and validation belong to the remote store.
func LocalUserID(token string) (string, error) {
	if strings.TrimSpace(token) == "" {
		return "", errors.New("no bearer token configured")
	}
	claims := &tokenClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return "", err
	}
	if claims.UserID != "" {
		return claims.UserID, nil
	}
	if claims.Subject != "" {
		return claims.Subject, nil
	}
	return "", errors.New("token carries no subject")
}
