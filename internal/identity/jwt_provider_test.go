package identity

import (
	"context"
	"testing"
	"time"

	"github.com/Ssanntii/Stock-Final-UTN/internal/domain"
	"github.com/Ssanntii/Stock-Final-UTN/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeUserRepo struct {
	users map[string]*domain.User
}

func (f *fakeUserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	user, ok := f.users[email]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	return user, nil
}

const testSecret = "test-secret"

func TestJWTProvider_ResolvesPrincipal(t *testing.T) {
	repo := &fakeUserRepo{users: map[string]*domain.User{
		"buyer@example.com": {ID: 42, FullName: "Buyer Person", Email: "buyer@example.com", Verified: true},
	}}
	provider := NewJWTProvider(testSecret, repo, zap.NewNop())

	token, err := GenerateToken(testSecret, "buyer@example.com", time.Minute)
	require.NoError(t, err)

	principal, err := provider.Resolve(context.Background(), token)
	require.NoError(t, err)

	assert.Equal(t, int64(42), principal.ID)
	assert.Equal(t, "buyer@example.com", principal.Email)
	assert.Equal(t, "Buyer Person", principal.FullName)
}

func TestJWTProvider_RejectsGarbageToken(t *testing.T) {
	provider := NewJWTProvider(testSecret, &fakeUserRepo{}, zap.NewNop())

	_, err := provider.Resolve(context.Background(), "not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTProvider_RejectsWrongSecret(t *testing.T) {
	provider := NewJWTProvider(testSecret, &fakeUserRepo{}, zap.NewNop())

	token, err := GenerateToken("other-secret", "buyer@example.com", time.Minute)
	require.NoError(t, err)

	_, err = provider.Resolve(context.Background(), token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTProvider_RejectsExpiredToken(t *testing.T) {
	provider := NewJWTProvider(testSecret, &fakeUserRepo{}, zap.NewNop())

	token, err := GenerateToken(testSecret, "buyer@example.com", -time.Minute)
	require.NoError(t, err)

	_, err = provider.Resolve(context.Background(), token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTProvider_UnknownUser(t *testing.T) {
	provider := NewJWTProvider(testSecret, &fakeUserRepo{users: map[string]*domain.User{}}, zap.NewNop())

	token, err := GenerateToken(testSecret, "ghost@example.com", time.Minute)
	require.NoError(t, err)

	_, err = provider.Resolve(context.Background(), token)
	assert.ErrorIs(t, err, ErrUserNotFound)
}
