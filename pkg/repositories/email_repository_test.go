//go:build integration

package repositories

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eburns009/starhouse-crm/pkg/apperrors"
	"github.com/eburns009/starhouse-crm/pkg/models"
)

func TestEmailRepository_AddIsIdempotent(t *testing.T) {
	tc := setupContactTest(t)
	ctx := context.Background()

	c := tc.createContact("Jane", "Doe", "jane@example.org")

	// Same address in a different case is the same address.
	inserted, err := tc.emails.Add(ctx, &models.ContactEmail{
		ContactID: c.ID,
		Address:   "Jane@Example.org",
	})
	require.NoError(t, err)
	assert.False(t, inserted)

	inserted, err = tc.emails.Add(ctx, &models.ContactEmail{
		ContactID: c.ID,
		Address:   "jane.doe@gmail.com",
	})
	require.NoError(t, err)
	assert.True(t, inserted)

	owned, err := tc.emails.ListByContact(ctx, c.ID)
	require.NoError(t, err)
	assert.Len(t, owned, 2)
}

func TestEmailRepository_SetPrimary(t *testing.T) {
	tc := setupContactTest(t)
	ctx := context.Background()

	c := tc.createContact("Jane", "Doe", "jane@example.org")
	_, err := tc.emails.Add(ctx, &models.ContactEmail{
		ContactID: c.ID,
		Address:   "jane.doe@gmail.com",
	})
	require.NoError(t, err)

	require.NoError(t, tc.emails.SetPrimary(ctx, c.ID, "jane.doe@gmail.com"))

	owned, err := tc.emails.ListByContact(ctx, c.ID)
	require.NoError(t, err)
	primaries := 0
	for _, e := range owned {
		if e.IsPrimary {
			primaries++
			assert.Equal(t, "jane.doe@gmail.com", e.Address)
		}
	}
	assert.Equal(t, 1, primaries)

	// The denormalized column follows the primary flag.
	got, err := tc.contacts.GetByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "jane.doe@gmail.com", got.Email)

	// An address the contact does not own cannot become primary.
	err = tc.emails.SetPrimary(ctx, c.ID, "stranger@example.org")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}
