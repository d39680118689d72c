package integration

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storefront/gateway/internal/domain/storefront"
	"github.com/storefront/gateway/internal/infrastructure/persistence"
)

// TestExemptionRepository_Integration tests the exemption audit repository
// against a real PostgreSQL database with the migrated schema.
func TestExemptionRepository_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping postgres-backed test in short mode")
	}

	testDB := NewTestDB(t)
	repo := persistence.NewGormVatExemptionRepository(testDB.DB)
	ctx := context.Background()

	t.Run("Create and FindByID", func(t *testing.T) {
		req, err := storefront.NewExemptionRequest(
			"gid://shopify/Customer/1001", "buyer@example.com",
			"DE 123.456-789", "de", "Acme GmbH")
		require.NoError(t, err)

		require.NoError(t, repo.Create(ctx, req))

		found, err := repo.FindByID(ctx, req.ID)
		require.NoError(t, err)
		assert.Equal(t, req.ID, found.ID)
		assert.Equal(t, "gid://shopify/Customer/1001", found.CustomerID)
		assert.Equal(t, "buyer@example.com", found.Email)
		assert.Equal(t, "DE123456789", found.VATNumber, "number is stored normalized")
		assert.Equal(t, "DE", found.CountryCode)
		assert.Equal(t, "Acme GmbH", found.CompanyName)
		assert.Equal(t, storefront.ExemptionSubmitted, found.Status)
		assert.WithinDuration(t, req.CreatedAt, found.CreatedAt, time.Second)
	})

	t.Run("FindByID unknown ID", func(t *testing.T) {
		_, err := repo.FindByID(ctx, uuid.New())
		assert.ErrorIs(t, err, storefront.ErrNotFound)
	})

	t.Run("FindByCustomer newest first with limit", func(t *testing.T) {
		testDB.CleanTables()

		customerID := "gid://shopify/Customer/2001"
		numbers := []string{"DE111111111", "DE222222222", "DE333333333"}
		base := time.Now().UTC().Add(-time.Hour)
		for i, number := range numbers {
			req, err := storefront.NewExemptionRequest(customerID, "order@example.com", number, "DE", "")
			require.NoError(t, err)
			// Spread the rows out in time so the ordering is unambiguous
			req.CreatedAt = base.Add(time.Duration(i) * time.Minute)
			req.UpdatedAt = req.CreatedAt
			require.NoError(t, repo.Create(ctx, req))
		}

		found, err := repo.FindByCustomer(ctx, customerID, 2)
		require.NoError(t, err)
		require.Len(t, found, 2)
		assert.Equal(t, "DE333333333", found[0].VATNumber)
		assert.Equal(t, "DE222222222", found[1].VATNumber)

		// A non-positive limit falls back to the default instead of failing
		all, err := repo.FindByCustomer(ctx, customerID, 0)
		require.NoError(t, err)
		assert.Len(t, all, 3)
	})

	t.Run("FindByCustomer scoped to customer", func(t *testing.T) {
		testDB.CleanTables()

		mine, err := storefront.NewExemptionRequest(
			"gid://shopify/Customer/3001", "mine@example.com", "FR40303265045", "FR", "")
		require.NoError(t, err)
		require.NoError(t, repo.Create(ctx, mine))

		other, err := storefront.NewExemptionRequest(
			"gid://shopify/Customer/3002", "other@example.com", "IT12345678901", "IT", "")
		require.NoError(t, err)
		require.NoError(t, repo.Create(ctx, other))

		found, err := repo.FindByCustomer(ctx, "gid://shopify/Customer/3001", 10)
		require.NoError(t, err)
		require.Len(t, found, 1)
		assert.Equal(t, "FR40303265045", found[0].VATNumber)
	})

	t.Run("HasPending only counts submitted requests for the same number", func(t *testing.T) {
		testDB.CleanTables()

		customerID := "gid://shopify/Customer/4001"
		req, err := storefront.NewExemptionRequest(customerID, "pending@example.com", "DE999999999", "DE", "")
		require.NoError(t, err)
		require.NoError(t, repo.Create(ctx, req))

		pending, err := repo.HasPending(ctx, customerID, "DE999999999")
		require.NoError(t, err)
		assert.True(t, pending)

		pending, err = repo.HasPending(ctx, customerID, "DE888888888")
		require.NoError(t, err)
		assert.False(t, pending, "a different number is not a duplicate")

		pending, err = repo.HasPending(ctx, "gid://shopify/Customer/4002", "DE999999999")
		require.NoError(t, err)
		assert.False(t, pending, "another customer's request is not a duplicate")

		// Once the merchant reviews the request it stops blocking resubmission
		err = testDB.DB.Exec(
			"UPDATE vat_exemption_requests SET status = ? WHERE id = ?",
			storefront.ExemptionApproved.String(), req.ID).Error
		require.NoError(t, err)

		pending, err = repo.HasPending(ctx, customerID, "DE999999999")
		require.NoError(t, err)
		assert.False(t, pending)
	})
}
