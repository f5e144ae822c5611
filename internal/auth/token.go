// Package auth provides the minimal session-token codec spec.md §8 names
// as a testable round-trip property, grounded in auth-handler.go's
// generateID/generateToken hex-from-crypto/rand idiom. Scoped narrowly:
// no login, JWT, or session-store surface lives here since full auth is
// out of scope (spec.md §1) — only the codec spec.md §8 requires.
package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/semaj90/campaign-rag/internal/apperr"
)

const secretBytes = 16

// Session is the decoded shape carried inside a session token.
type Session struct {
	SessionID string
	Secret    string
}

// GeneratedToken pairs the opaque token string with the session data it
// encodes, mirroring auth-handler.go's generateToken/generateID split
// between an id and a random secret component.
type GeneratedToken struct {
	Token     string
	SessionID string
	Secret    string
}

// GenerateSessionToken mints a new session id and secret, both random
// hex strings, and encodes them into a single "sessionId.secret" token.
func GenerateSessionToken() (GeneratedToken, error) {
	sessionID, err := randomHex(secretBytes)
	if err != nil {
		return GeneratedToken{}, apperr.Wrap(apperr.CodeGenerationFailed, "failed to generate session id", err)
	}
	secret, err := randomHex(secretBytes)
	if err != nil {
		return GeneratedToken{}, apperr.Wrap(apperr.CodeGenerationFailed, "failed to generate session secret", err)
	}
	token := sessionID + "." + secret
	return GeneratedToken{Token: token, SessionID: sessionID, Secret: secret}, nil
}

// ParseSessionToken decodes a token produced by GenerateSessionToken back
// into its {sessionId, secret} components. spec.md §8's round-trip
// property requires ParseSessionToken(GenerateSessionToken().token) to
// recover the original values exactly.
func ParseSessionToken(token string) (Session, error) {
	parts := strings.SplitN(token, ".", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return Session{}, apperr.New(apperr.CodeInvalidQuery, "malformed session token")
	}
	return Session{SessionID: parts[0], Secret: parts[1]}, nil
}

func randomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("crypto/rand read failed: %w", err)
	}
	return hex.EncodeToString(b), nil
}
