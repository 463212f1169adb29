// Package auth verifies bearer tokens and resolves them to LINE user identities.
package auth

import (
	"context"
	"errors"
	"strings"
)

// ErrNoVerifier is returned by a chain with no configured verifiers.
var ErrNoVerifier = errors.New("auth: no token verifier configured")

// Identity is the caller asserted by a verified token. UserID is the LINE user id.
type Identity struct {
	UserID      string
	DisplayName string
	PictureURL  string
}

// TokenVerifier turns a raw bearer token into an Identity.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*Identity, error)
}

// Chain tries each verifier in order and returns the first identity.
type Chain []TokenVerifier

// Verify implements TokenVerifier.
func (c Chain) Verify(ctx context.Context, token string) (*Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, errors.New("auth: token is empty")
	}

	var errs []error
	for _, v := range c {
		if v == nil {
			continue
		}
		identity, err := v.Verify(ctx, token)
		if err == nil {
			return identity, nil
		}
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return nil, ErrNoVerifier
	}
	return nil, errors.Join(errs...)
}
