package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/evanshop/storefront/internal/redisx"
)

const (
	RoleCustomer = "customer"
	RoleAdmin    = "admin"
)

var ErrInvalidToken = errors.New("invalid or expired token")

type Identity struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

// SessionStore resolves a bearer token to the identity it was issued
// for. The caller presents the credential with each request; how it was
// obtained is outside this service.
type SessionStore interface {
	Lookup(ctx context.Context, token string) (Identity, error)
}

type RedisStore struct {
	RDB *redis.Client
	TTL time.Duration
}

func (s *RedisStore) Lookup(ctx context.Context, token string) (Identity, error) {
	raw, err := s.RDB.Get(ctx, fmt.Sprintf(redisx.KeySession, token)).Result()
	if errors.Is(err, redis.Nil) {
		return Identity{}, ErrInvalidToken
	}
	if err != nil {
		return Identity{}, err
	}
	var id Identity
	if err := json.Unmarshal([]byte(raw), &id); err != nil {
		return Identity{}, fmt.Errorf("decode session: %w", err)
	}
	return id, nil
}

// Issue mints a session token for an identity. Used by operator tooling
// and tests; the login surface itself lives elsewhere.
func (s *RedisStore) Issue(ctx context.Context, id Identity) (string, error) {
	raw := make([]byte, 24)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	token := hex.EncodeToString(raw)
	b, err := json.Marshal(id)
	if err != nil {
		return "", err
	}
	key := fmt.Sprintf(redisx.KeySession, token)
	if err := s.RDB.Set(ctx, key, b, s.TTL).Err(); err != nil {
		return "", err
	}
	return token, nil
}
