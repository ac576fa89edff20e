//go:build integration

package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eburns009/starhouse-crm/pkg/models"
)

func TestTransactionRepository_UpsertAndReassign(t *testing.T) {
	tc := setupContactTest(t)
	ctx := context.Background()

	a := tc.createContact("Jane", "Doe", "jane@example.org")
	b := tc.createContact("Janie", "Doe", "janie@example.org")

	tx := &models.Transaction{
		ContactID:    a.ID,
		SourceSystem: models.SourcePayPal,
		ExternalID:   "TX-100",
		Amount:       decimal.RequireFromString("25.00"),
		OccurredAt:   time.Now().Add(-24 * time.Hour),
	}
	inserted, err := tc.txs.Upsert(ctx, tx)
	require.NoError(t, err)
	assert.True(t, inserted)

	// Re-importing the same export changes nothing.
	inserted, err = tc.txs.Upsert(ctx, &models.Transaction{
		ContactID:    a.ID,
		SourceSystem: models.SourcePayPal,
		ExternalID:   "TX-100",
		Amount:       decimal.RequireFromString("25.00"),
		OccurredAt:   tx.OccurredAt,
	})
	require.NoError(t, err)
	assert.False(t, inserted)

	moved, err := tc.txs.Reassign(ctx, a.ID, b.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, moved)

	count, err := tc.txs.CountByContact(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	keys, err := tc.txs.TransactionKeys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"paypal|TX-100"}, keys[b.ID])

	times, err := tc.txs.LastTransactionTimes(ctx)
	require.NoError(t, err)
	assert.WithinDuration(t, tx.OccurredAt, times[b.ID], time.Second)
}
