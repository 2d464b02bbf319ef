package shared_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/supplyops/internal/shared"
)

func newStore(t *testing.T) (*shared.IdempotencyStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return shared.NewIdempotencyStore(client, time.Hour), mr
}

func TestIdempotencyBeginReservesKey(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()

	stored, err := store.Begin(ctx, "k1")
	require.NoError(t, err)
	require.Nil(t, stored)

	_, err = store.Begin(ctx, "k1")
	require.ErrorIs(t, err, shared.ErrIdempotencyConflict)
	require.ErrorIs(t, err, shared.ErrConflict)
}

func TestIdempotencyCompleteReplays(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()

	_, err := store.Begin(ctx, "k2")
	require.NoError(t, err)
	require.NoError(t, store.Complete(ctx, "k2", shared.StoredResponse{Status: 201, ContentType: "application/json", Body: []byte(`{"id":1}`)}))

	stored, err := store.Begin(ctx, "k2")
	require.NoError(t, err)
	require.NotNil(t, stored)
	require.Equal(t, 201, stored.Status)
	require.JSONEq(t, `{"id":1}`, string(stored.Body))
}

func TestIdempotencyReleaseAllowsRetry(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()

	_, err := store.Begin(ctx, "k3")
	require.NoError(t, err)
	require.NoError(t, store.Release(ctx, "k3"))

	stored, err := store.Begin(ctx, "k3")
	require.NoError(t, err)
	require.Nil(t, stored)
}

func TestIdempotencyKeyExpires(t *testing.T) {
	store, mr := newStore(t)
	ctx := context.Background()

	_, err := store.Begin(ctx, "k4")
	require.NoError(t, err)
	mr.FastForward(2 * time.Hour)

	stored, err := store.Begin(ctx, "k4")
	require.NoError(t, err)
	require.Nil(t, stored)
}
