package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"
)

type frozenClock struct{ t time.Time }

func (c frozenClock) Now() time.Time { return c.t }

func TestDedupStoreSeen(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewDedupStore(mock, "seen_hashes", nil)
	require.NoError(t, err)

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("dailyledger", "abc123").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	seen, err := store.Seen(context.Background(), "dailyledger", "abc123")
	require.NoError(t, err)
	require.True(t, seen)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDedupStoreRegister(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	store, err := NewDedupStore(mock, "seen_hashes", frozenClock{t: now})
	require.NoError(t, err)

	mock.ExpectExec("INSERT INTO seen_hashes").
		WithArgs("dailyledger", "abc123", now).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.Register(context.Background(), "dailyledger", "abc123"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDedupStorePrune(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewDedupStore(mock, "seen_hashes", nil)
	require.NoError(t, err)

	cutoff := time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectExec("DELETE FROM seen_hashes").
		WithArgs(cutoff).
		WillReturnResult(pgxmock.NewResult("DELETE", 42))

	removed, err := store.Prune(context.Background(), cutoff)
	require.NoError(t, err)
	require.EqualValues(t, 42, removed)
	require.NoError(t, mock.ExpectationsWereMet())
}
