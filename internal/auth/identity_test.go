package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestChainFallsThroughVerifiers(t *testing.T) {
	line, _ := newTestLineVerifier(t)
	jwtSvc, err := NewJWTService(JWTConfig{Secret: "secret", Issuer: "yaruyo"})
	require.NoError(t, err)

	token, err := jwtSvc.GenerateAccessToken(AccessTokenInput{UserID: "U1", DisplayName: "たろう"})
	require.NoError(t, err)

	chain := Chain{line, jwtSvc}
	identity, err := chain.Verify(context.Background(), token)
	require.NoError(t, err)
	require.Equal(t, "U1", identity.UserID)

	_, err = chain.Verify(context.Background(), "garbage")
	require.Error(t, err)

	_, err = chain.Verify(context.Background(), "  ")
	require.Error(t, err)
}

func TestEmptyChain(t *testing.T) {
	_, err := Chain{nil}.Verify(context.Background(), "token")
	require.ErrorIs(t, err, ErrNoVerifier)
}
