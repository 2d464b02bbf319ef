package shared

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const idempotencyPending = "pending"

// ErrIdempotencyConflict indicates the key is still held by an unfinished request.
var ErrIdempotencyConflict = fmt.Errorf("%w: idempotent request still in progress", ErrConflict)

// StoredResponse is the replayable outcome of a completed idempotent request.
type StoredResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"contentType"`
	Body        []byte `json:"body"`
}

// IdempotencyStore reserves request keys in Redis and remembers their outcome.
type IdempotencyStore struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// NewIdempotencyStore constructs the store.
func NewIdempotencyStore(client *redis.Client, ttl time.Duration) *IdempotencyStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &IdempotencyStore{client: client, ttl: ttl, prefix: "idem:"}
}

// Begin reserves key. It returns a stored response when the key already completed,
// ErrIdempotencyConflict when another request holds it, and (nil, nil) when the
// caller now owns the key and must call Complete or Release.
func (s *IdempotencyStore) Begin(ctx context.Context, key string) (*StoredResponse, error) {
	if s == nil || s.client == nil {
		return nil, errors.New("idempotency store not initialised")
	}
	if key == "" {
		return nil, errors.New("idempotency key required")
	}
	ok, err := s.client.SetNX(ctx, s.prefix+key, idempotencyPending, s.ttl).Result()
	if err != nil {
		return nil, err
	}
	if ok {
		return nil, nil
	}
	raw, err := s.client.Get(ctx, s.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		// expired between SETNX and GET; retry the reservation once
		ok, err = s.client.SetNX(ctx, s.prefix+key, idempotencyPending, s.ttl).Result()
		if err != nil {
			return nil, err
		}
		if ok {
			return nil, nil
		}
		return nil, ErrIdempotencyConflict
	}
	if err != nil {
		return nil, err
	}
	if raw == idempotencyPending {
		return nil, ErrIdempotencyConflict
	}
	var stored StoredResponse
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		return nil, fmt.Errorf("idempotency: decode stored response: %w", err)
	}
	return &stored, nil
}

// Complete records the final response for key.
func (s *IdempotencyStore) Complete(ctx context.Context, key string, resp StoredResponse) error {
	if s == nil || s.client == nil {
		return nil
	}
	payload, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.prefix+key, payload, s.ttl).Err()
}

// Release removes a key, typically used to roll back failed processing.
func (s *IdempotencyStore) Release(ctx context.Context, key string) error {
	if s == nil || s.client == nil {
		return nil
	}
	if key == "" {
		return errors.New("idempotency key required")
	}
	return s.client.Del(ctx, s.prefix+key).Err()
}
