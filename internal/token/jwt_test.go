package token

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	codec := NewCodec("jwt_secret", DefaultTTL)

	signed, issued, err := codec.Issue("cli_abc", 3, nil)
	require.NoError(t, err)

	payload, err := codec.Verify(signed)
	require.NoError(t, err)

	assert.Equal(t, "cli_abc", payload.Sub)
	assert.Equal(t, 3, payload.Version)
	assert.Nil(t, payload.SecretExpiresAt)
	assert.True(t, payload.ExpiresAt.After(payload.IssuedAt))
	assert.WithinDuration(t, issued.ExpiresAt, payload.ExpiresAt, time.Second)
}

func TestSecretExpiresAtSurvivesRoundTrip(t *testing.T) {
	codec := NewCodec("jwt_secret", DefaultTTL)

	secretExpiry := time.Now().Add(2 * time.Hour).Truncate(time.Second)
	signed, _, err := codec.Issue("cli_abc", 1, &secretExpiry)
	require.NoError(t, err)

	payload, err := codec.Verify(signed)
	require.NoError(t, err)
	require.NotNil(t, payload.SecretExpiresAt)
	assert.WithinDuration(t, secretExpiry, *payload.SecretExpiresAt, time.Second)
}

func TestExpiredToken(t *testing.T) {
	codec := NewCodec("jwt_secret", DefaultTTL)

	now := time.Now()
	signed, err := codec.Sign(Payload{
		Sub:       "cli_abc",
		IssuedAt:  now.Add(-48 * time.Hour),
		ExpiresAt: now.Add(-24 * time.Hour),
		Version:   1,
	})
	require.NoError(t, err)

	_, err = codec.Verify(signed)
	var verr *VerifyError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, CategoryExpired, verr.Category)
}

func TestInvalidSignature(t *testing.T) {
	codec := NewCodec("jwt_secret", DefaultTTL)
	other := NewCodec("a different secret", DefaultTTL)

	signed, _, err := other.Issue("cli_abc", 1, nil)
	require.NoError(t, err)

	_, err = codec.Verify(signed)
	var verr *VerifyError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, CategoryInvalidSignature, verr.Category)
}

func TestGarbageIsBadJWT(t *testing.T) {
	codec := NewCodec("jwt_secret", DefaultTTL)

	for _, tok := range []string{"wef", "", "a.b.c", "eyJhbGciOiJIUzI1NiJ9"} {
		_, err := codec.Verify(tok)
		var verr *VerifyError
		require.ErrorAs(t, err, &verr, "token %q", tok)
		assert.Equal(t, CategoryBadJWT, verr.Category, "token %q", tok)
	}
}

func TestMissingSubjectIsBadJWT(t *testing.T) {
	codec := NewCodec("jwt_secret", DefaultTTL)

	now := time.Now()
	signed, err := codec.Sign(Payload{
		IssuedAt:  now,
		ExpiresAt: now.Add(time.Hour),
		Version:   1,
	})
	require.NoError(t, err)

	_, err = codec.Verify(signed)
	var verr *VerifyError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, CategoryBadJWT, verr.Category)
}
