package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func TestSignAndVerifyRoundTrip(t *testing.T) {
	signer, err := NewSigner("secret", "dev")
	require.NoError(t, err)

	token, err := signer.Sign(Claims{
		Role:             "admin",
		Email:            "ops@example.com",
		RegisteredClaims: jwt.RegisteredClaims{Subject: "user-1"},
	})
	require.NoError(t, err)

	claims, err := signer.Verify(token)
	require.NoError(t, err)
	require.Equal(t, "user-1", claims.Subject)
	require.Equal(t, "admin", claims.Role)
}

func TestVerifyRejectsForeignSecretAndExpiry(t *testing.T) {
	signer, err := NewSigner("secret", "dev")
	require.NoError(t, err)
	other, err := NewSigner("other", "dev")
	require.NoError(t, err)

	token, err := other.Sign(Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "user-1"}})
	require.NoError(t, err)
	_, err = signer.Verify(token)
	require.True(t, errors.Is(err, ErrInvalidToken))

	expired, err := signer.Sign(Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   "user-1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
	}})
	require.NoError(t, err)
	_, err = signer.Verify(expired)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestNewSignerRequiresSecretInProduction(t *testing.T) {
	_, err := NewSigner("", "production")
	require.Error(t, err)

	signer, err := NewSigner("", "dev")
	require.NoError(t, err)
	require.NotNil(t, signer)
}
