package shared

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsSQLiteConflictError(t *testing.T) {
	assert.False(t, IsSQLiteConflictError(nil))
	assert.True(t, IsSQLiteConflictError(errors.New("database is locked (5) (SQLITE_BUSY)")))
	assert.True(t, IsSQLiteConflictError(errors.New("database is locked")))
	assert.False(t, IsSQLiteConflictError(errors.New("no such table: turns")))
}

func TestRetryOnConflictRetriesBusy(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond}
	attempts := 0

	err := RetryOnConflict(context.Background(), policy, "record turn", func(context.Context) error {
		attempts++
		if attempts < 3 {
			return errors.New("SQLITE_BUSY")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRetryOnConflictGivesUp(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 2, BaseDelay: time.Millisecond}
	attempts := 0
	busy := errors.New("database is locked")

	err := RetryOnConflict(context.Background(), policy, "record turn", func(context.Context) error {
		attempts++
		return busy
	})

	assert.ErrorIs(t, err, busy)
	assert.Equal(t, "record turn: database is locked", err.Error())
	assert.Equal(t, 2, attempts)
}

func TestRetryOnConflictDoesNotRetryOtherErrors(t *testing.T) {
	attempts := 0
	err := RetryOnConflict(context.Background(), DefaultRetryPolicy, "op", func(context.Context) error {
		attempts++
		return errors.New("constraint failed")
	})

	assert.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestRetryOnConflictHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := RetryOnConflict(ctx, RetryPolicy{MaxAttempts: 3, BaseDelay: time.Hour}, "op", func(context.Context) error {
		return errors.New("SQLITE_BUSY")
	})

	assert.ErrorIs(t, err, context.Canceled)
}
