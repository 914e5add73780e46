package auth

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/meridian-bank/meridian/internal/shared"
)

// TokenStore issues opaque bearer tokens backed by Redis. A token resolves
// to the already-validated identity the rest of the system trusts.
type TokenStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewTokenStore constructs a TokenStore. ttl zero defaults to one hour.
func NewTokenStore(client *redis.Client, ttl time.Duration) *TokenStore {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &TokenStore{client: client, ttl: ttl}
}

type tokenPayload struct {
	UserID int64       `json:"user_id"`
	Role   shared.Role `json:"role"`
}

func tokenKey(token string) string {
	return "auth:token:" + token
}

// Issue stores a fresh token for the identity.
func (s *TokenStore) Issue(ctx context.Context, id shared.Identity) (string, error) {
	token := uuid.NewString()
	raw, err := json.Marshal(tokenPayload{UserID: id.UserID, Role: id.Role})
	if err != nil {
		return "", err
	}
	if err := s.client.Set(ctx, tokenKey(token), raw, s.ttl).Err(); err != nil {
		return "", err
	}
	return token, nil
}

// Resolve returns the identity a token stands for.
func (s *TokenStore) Resolve(ctx context.Context, token string) (shared.Identity, error) {
	if token == "" {
		return shared.Identity{}, shared.ErrInvalidCredentials
	}
	raw, err := s.client.Get(ctx, tokenKey(token)).Bytes()
	if errors.Is(err, redis.Nil) {
		return shared.Identity{}, shared.ErrInvalidCredentials
	}
	if err != nil {
		return shared.Identity{}, err
	}
	var p tokenPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return shared.Identity{}, shared.ErrInvalidCredentials
	}
	return shared.Identity{UserID: p.UserID, Role: p.Role}, nil
}

// Revoke drops a token, ending the session.
func (s *TokenStore) Revoke(ctx context.Context, token string) error {
	return s.client.Del(ctx, tokenKey(token)).Err()
}
