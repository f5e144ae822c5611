package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndParseSessionTokenRoundTrip(t *testing.T) {
	generated, err := GenerateSessionToken()
	require.NoError(t, err)
	assert.NotEmpty(t, generated.SessionID)
	assert.NotEmpty(t, generated.Secret)

	parsed, err := ParseSessionToken(generated.Token)
	require.NoError(t, err)
	assert.Equal(t, generated.SessionID, parsed.SessionID)
	assert.Equal(t, generated.Secret, parsed.Secret)
}

func TestGenerateSessionTokenIsUnique(t *testing.T) {
	a, err := GenerateSessionToken()
	require.NoError(t, err)
	b, err := GenerateSessionToken()
	require.NoError(t, err)
	assert.NotEqual(t, a.Token, b.Token)
}

func TestParseSessionTokenRejectsMalformedInput(t *testing.T) {
	cases := []string{"", "no-dot-here", ".missing-session-id", "missing-secret.", "a.b.c"}
	for _, tc := range cases {
		_, err := ParseSessionToken(tc)
		if tc == "a.b.c" {
			// Two-part split on first dot: "a" / "b.c" is well-formed.
			assert.NoError(t, err)
			continue
		}
		assert.Error(t, err, "expected error for input %q", tc)
	}
}
