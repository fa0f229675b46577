package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifyRoundTrip(t *testing.T) {
	v := NewVerifier("test-secret")

	token, err := v.Sign(Actor{ID: "u1", Role: "admin"}, time.Minute)
	require.NoError(t, err)

	actor, err := v.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "u1", actor.ID)
	assert.True(t, actor.IsAdmin())
}

func TestVerifyDefaultsRole(t *testing.T) {
	v := NewVerifier("test-secret")

	token, err := v.Sign(Actor{ID: "u1"}, time.Minute)
	require.NoError(t, err)

	actor, err := v.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "customer", actor.Role)
	assert.False(t, actor.IsAdmin())
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	token, err := NewVerifier("secret-a").Sign(Actor{ID: "u1"}, time.Minute)
	require.NoError(t, err)

	_, err = NewVerifier("secret-b").Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsExpired(t *testing.T) {
	v := NewVerifier("test-secret")

	token, err := v.Sign(Actor{ID: "u1"}, -time.Minute)
	require.NoError(t, err)

	_, err = v.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
