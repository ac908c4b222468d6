package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTRoundTrip(t *testing.T) {
	token, err := GenerateJWT(42, "alice", "user", "secret", time.Hour)
	require.NoError(t, err)

	claims, err := ParseJWT(token, "secret")
	require.NoError(t, err)
	assert.Equal(t, uint(42), claims.UserID)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, "user", claims.Role)
}

func TestParseJWT_Rejects(t *testing.T) {
	token, err := GenerateJWT(42, "alice", "user", "secret", time.Hour)
	require.NoError(t, err)

	_, err = ParseJWT(token, "other-secret")
	assert.Error(t, err)

	expired, err := GenerateJWT(42, "alice", "user", "secret", -time.Minute)
	require.NoError(t, err)
	_, err = ParseJWT(expired, "secret")
	assert.Error(t, err)
}

func TestPasswordHash(t *testing.T) {
	hash, err := HashPassword("hunter22")
	require.NoError(t, err)
	assert.True(t, CheckPasswordHash("hunter22", hash))
	assert.False(t, CheckPasswordHash("hunter23", hash))
}

func TestGenerateOTP(t *testing.T) {
	for i := 0; i < 50; i++ {
		otp, err := GenerateOTP()
		require.NoError(t, err)
		assert.Len(t, otp, 4)
		assert.GreaterOrEqual(t, otp, "1000")
		assert.LessOrEqual(t, otp, "9999")
	}
}

func TestCleanText(t *testing.T) {
	assert.Equal(t, "hello", CleanText("  <b>hello</b> "))
	assert.Equal(t, "", CleanText("<script>alert(1)</script>"))
	assert.Equal(t, "Tom & Jerry", CleanText("Tom & Jerry"))
}
