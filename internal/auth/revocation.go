package auth

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const revokedPrefix = "auth:revoked:"

// RevocationStore remembers logged-out token ids in Redis until they expire.
type RevocationStore struct {
	client *redis.Client
}

// NewRevocationStore constructs RevocationStore.
func NewRevocationStore(client *redis.Client) *RevocationStore {
	return &RevocationStore{client: client}
}

// Revoke marks jti as revoked until the token would have expired anyway.
func (s *RevocationStore) Revoke(ctx context.Context, jti string, until time.Time) error {
	if s == nil || s.client == nil {
		return errors.New("auth: revocation store not initialised")
	}
	ttl := time.Until(until)
	if ttl <= 0 {
		return nil
	}
	return s.client.Set(ctx, revokedPrefix+jti, "1", ttl).Err()
}

// Revoked reports whether jti has been revoked.
func (s *RevocationStore) Revoked(ctx context.Context, jti string) (bool, error) {
	if s == nil || s.client == nil {
		return false, errors.New("auth: revocation store not initialised")
	}
	n, err := s.client.Exists(ctx, revokedPrefix+jti).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
