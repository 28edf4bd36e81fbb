package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const revokedPrefix = "session:revoked:"

// Sessions tracks logged-out session ids in Redis until their tokens would have expired.
type Sessions struct {
	client *redis.Client
}

// NewSessions creates a Redis-backed session revocation store.
func NewSessions(client *redis.Client) *Sessions {
	return &Sessions{client: client}
}

// Revoke marks the session id as logged out until expiresAt.
func (s *Sessions) Revoke(ctx context.Context, id string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil
	}
	if err := s.client.Set(ctx, revokedPrefix+id, 1, ttl).Err(); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}

// IsRevoked reports whether the session id was logged out.
func (s *Sessions) IsRevoked(ctx context.Context, id string) (bool, error) {
	n, err := s.client.Exists(ctx, revokedPrefix+id).Result()
	if err != nil {
		return false, fmt.Errorf("check session: %w", err)
	}
	return n > 0, nil
}
