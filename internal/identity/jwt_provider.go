package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/Ssanntii/Stock-Final-UTN/internal/repository"
	"github.com/Ssanntii/Stock-Final-UTN/pkg/logging"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

type jwtProvider struct {
	secret []byte
	users  repository.UserRepository
	logger *zap.Logger
}

// NewJWTProvider verifies HS256 tokens and re-reads the user row per request,
// so a deleted account stops resolving immediately.
func NewJWTProvider(secret string, users repository.UserRepository, logger *zap.Logger) Provider {
	return &jwtProvider{
		secret: []byte(secret),
		users:  users,
		logger: logger,
	}
}

func (p *jwtProvider) Resolve(ctx context.Context, tokenString string) (*Principal, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return p.secret, nil
	})
	if err != nil {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	user, err := p.users.GetByEmail(ctx, claims.Email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}

		logging.Error(ctx, p.logger, "Failed to load user for token", zap.Error(err))
		return nil, err
	}

	return &Principal{
		ID:       user.ID,
		Email:    user.Email,
		FullName: user.FullName,
	}, nil
}
