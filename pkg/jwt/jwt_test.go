package jwt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbeoliero/huddle/pkg/errcode"
)

func TestGenerateAndParseToken(t *testing.T) {
	token, err := GenerateToken("ana", 5, "secret", 1)
	require.NoError(t, err)

	claims, err := ParseToken(token, "secret")
	require.NoError(t, err)
	assert.Equal(t, "ana", claims.UserId)
	assert.Equal(t, 5, claims.PlatformId)
	assert.Equal(t, "huddle", claims.Issuer)
}

func TestParseToken_WrongSecret(t *testing.T) {
	token, err := GenerateToken("ana", 5, "secret", 1)
	require.NoError(t, err)

	_, err = ParseToken(token, "other")
	assert.ErrorIs(t, err, errcode.ErrTokenInvalid)
}

func TestParseToken_Expired(t *testing.T) {
	token, err := GenerateToken("ana", 5, "secret", -1)
	require.NoError(t, err)

	_, err = ParseToken(token, "secret")
	assert.ErrorIs(t, err, errcode.ErrTokenExpired)
}

func TestParseToken_Garbage(t *testing.T) {
	_, err := ParseToken("not-a-token", "secret")
	assert.ErrorIs(t, err, errcode.ErrTokenInvalid)
}

func TestTokenKey(t *testing.T) {
	assert.Equal(t, "huddle:token:ana:5", tokenKey("ana", 5))
}
