package fulfillment

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func Test_MapConflict(t *testing.T) {
	serialization := &pgconn.PgError{Code: "40001"}
	deadlock := &pgconn.PgError{Code: "40P01"}

	testCases := []struct {
		name     string
		err      error
		conflict bool
	}{
		{name: "serialization failure", err: serialization, conflict: true},
		{name: "deadlock detected", err: deadlock, conflict: true},
		// commit-time aborts arrive wrapped in the commit sentinel and must
		// still be classified as retryable
		{name: "wrapped commit failure", err: fmt.Errorf("%w: %w", ErrTransactionCommit, serialization), conflict: true},
		{name: "other pg error", err: &pgconn.PgError{Code: "23505"}, conflict: false},
		{name: "plain error", err: errors.New("boom"), conflict: false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			mapped := mapConflict(tc.err)
			if tc.conflict {
				assert.ErrorIs(t, mapped, ErrConcurrencyConflict)
				return
			}
			assert.NotErrorIs(t, mapped, ErrConcurrencyConflict)
			assert.Equal(t, tc.err, mapped)
		})
	}
}
