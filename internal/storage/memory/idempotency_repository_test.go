package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/sales/internal/domain"
)

func newIdempotencyRepoAt(now time.Time) *idempotencyRepositoryInMemory {
	repo := NewIdempotencyRepository()
	repo.now = func() time.Time { return now }
	return repo
}

func TestIdempotencyRepository_ReserveAndReplay(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
	repo := newIdempotencyRepoAt(now)

	created, err := repo.CreateProcessing(ctx, " order-key ", "hash-1", now.Add(time.Hour))
	require.NoError(t, err)
	require.Equal(t, "order-key", created.Key)
	require.Equal(t, domain.IdempotencyStatusProcessing, created.Status)

	_, err = repo.CreateProcessing(ctx, "order-key", "hash-1", now.Add(time.Hour))
	require.ErrorIs(t, err, domain.ErrIdempotencyKeyAlreadyExists)

	_, err = repo.CreateProcessing(ctx, "order-key", "hash-2", now.Add(time.Hour))
	require.ErrorIs(t, err, domain.ErrIdempotencyHashMismatch)

	body := []byte(`{"id":"order-1"}`)
	require.NoError(t, repo.MarkDone(ctx, "order-key", body, 201))
	body[0] = 'X'

	record, err := repo.Get(ctx, "order-key")
	require.NoError(t, err)
	require.True(t, record.Completed())
	require.Equal(t, 201, record.HTTPStatus)
	require.JSONEq(t, `{"id":"order-1"}`, string(record.ResponseBody))
}

func TestIdempotencyRepository_ExpiredKeyIsReusable(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
	repo := newIdempotencyRepoAt(now)

	_, err := repo.CreateProcessing(ctx, "stale", "old-hash", now.Add(-time.Second))
	require.NoError(t, err)
	require.NoError(t, repo.MarkFailed(ctx, "stale", []byte(`{}`), 400))

	record, err := repo.CreateProcessing(ctx, "stale", "new-hash", now.Add(time.Hour))
	require.NoError(t, err)
	require.Equal(t, "new-hash", record.RequestHash)
	require.False(t, record.Completed())
}

func TestIdempotencyRepository_DeleteExpiredOldestFirst(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
	repo := newIdempotencyRepoAt(now)

	for key, ttl := range map[string]time.Duration{
		"oldest": -3 * time.Minute,
		"older":  -2 * time.Minute,
		"old":    -time.Minute,
		"active": time.Hour,
	} {
		_, err := repo.CreateProcessing(ctx, key, "h", now.Add(ttl))
		require.NoError(t, err)
	}

	removed, err := repo.DeleteExpired(ctx, now, 2)
	require.NoError(t, err)
	require.Equal(t, 2, removed)

	_, err = repo.Get(ctx, "oldest")
	require.ErrorIs(t, err, domain.ErrIdempotencyKeyNotFound)
	_, err = repo.Get(ctx, "old")
	require.NoError(t, err)

	removed, err = repo.DeleteExpired(ctx, time.Time{}, 0)
	require.NoError(t, err)
	require.Equal(t, 1, removed)

	_, err = repo.Get(ctx, "active")
	require.NoError(t, err)
}

func TestIdempotencyRepository_Validation(t *testing.T) {
	ctx := context.Background()
	repo := NewIdempotencyRepository()

	_, err := repo.CreateProcessing(ctx, " ", "h", time.Time{})
	require.ErrorIs(t, err, domain.ErrIdempotencyKeyRequired)
	_, err = repo.CreateProcessing(ctx, "k", "", time.Time{})
	require.ErrorIs(t, err, domain.ErrIdempotencyRequestHashRequired)
	require.ErrorIs(t, repo.MarkDone(ctx, "missing", nil, 200), domain.ErrIdempotencyKeyNotFound)
}
