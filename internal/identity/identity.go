package identity

import (
	"context"
	"errors"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrUserNotFound = errors.New("user not found")
)

// Principal is the already-authenticated caller the checkout trusts.
type Principal struct {
	ID       int64
	Email    string
	FullName string
}

// Provider resolves a principal from an inbound credential.
type Provider interface {
	Resolve(ctx context.Context, token string) (*Principal, error)
}
