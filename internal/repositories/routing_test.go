package repositories

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// dryRunDB opens a handle that builds SQL without connecting and counts the queries it runs
func dryRunDB(t *testing.T) (*gorm.DB, *int) {
	t.Helper()
	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN: "host=localhost user=annix dbname=annix sslmode=disable",
	}), &gorm.Config{DryRun: true, DisableAutomaticPing: true})
	require.NoError(t, err)

	queries := new(int)
	err = db.Callback().Query().Before("gorm:query").Register("routing:count", func(*gorm.DB) {
		*queries++
	})
	require.NoError(t, err)
	return db, queries
}

func TestMatchingReadsUsePrimary(t *testing.T) {
	ctx := context.Background()
	primary, writes := dryRunDB(t)
	replica, reads := dryRunDB(t)
	suppliers := NewSupplierRepository(primary, replica)
	sections := NewSectionRepository(primary, replica)
	ids := []uuid.UUID{uuid.New()}

	_, err := suppliers.FindApprovedActive(ctx)
	require.NoError(t, err)
	_, err = suppliers.FindActiveCapabilities(ctx, ids)
	require.NoError(t, err)
	_, err = sections.FindForBoqs(ctx, ids)
	require.NoError(t, err)

	require.Equal(t, 3, *writes)
	require.Zero(t, *reads)
}

func TestListingReadsUseReplica(t *testing.T) {
	ctx := context.Background()
	primary, writes := dryRunDB(t)
	replica, reads := dryRunDB(t)

	_, err := NewSupplierRepository(primary, replica).FindContacts(ctx, []uuid.UUID{uuid.New()})
	require.NoError(t, err)
	_, err = NewSectionRepository(primary, replica).Find(ctx, uuid.New())
	require.NoError(t, err)

	require.Zero(t, *writes)
	require.GreaterOrEqual(t, *reads, 2)
}
