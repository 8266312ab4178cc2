// Package snapshottest provides fixtures and a conformance suite for
// snapshot.Adapter implementations.
package snapshottest

import (
	"context"
	"testing"
	"time"

	"github.com/dmitrijs2005/mtms/internal/models"
	"github.com/dmitrijs2005/mtms/internal/snapshot"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Sample returns a snapshot exercising every field, including an optional
// UpdatedAt and a fractional amount.
func Sample() *models.Snapshot {
	created := time.Date(2024, 3, 10, 9, 15, 0, 123456000, time.UTC)
	updated := created.Add(2 * time.Hour)

	return &models.Snapshot{
		SchemaVersion: snapshot.CurrentSchemaVersion,
		Users: []models.User{
			{
				ID: "8f7d6c1e-0000-4000-8000-000000000001", Username: "ahmed",
				Credential: "$argon2id$v=19$m=1024,t=1,p=1$c2FsdHNhbHQ$a2V5a2V5",
				FullName:   "Ahmed Ali", Role: models.RoleSubmitter, CreatedAt: created.Add(-time.Hour),
			},
			{
				ID: "8f7d6c1e-0000-4000-8000-000000000002", Username: "layla",
				Credential: "$2a$04$abcdefghijklmnopqrstuuM1nQ0v9x0p6r3Zr0ZQb2cGm7yq8dS5e",
				FullName:   "Layla Hassan", Role: models.RoleTreasury, CreatedAt: created.Add(-30 * time.Minute),
			},
		},
		Transfers: []models.Transfer{
			{
				ID: "tr-1", CustomerName: "Sara", BankAccount: "AC-123",
				Amount: decimal.NewFromInt(100), CreatedAt: created,
				CreatedBy: "8f7d6c1e-0000-4000-8000-000000000001", CreatorName: "Ahmed Ali",
				Status: models.StatusReached, UpdatedAt: &updated, Version: 1,
			},
			{
				ID: "tr-2", CustomerName: "Omar", BankAccount: "IQ-77-0001",
				Amount: decimal.RequireFromString("2500.75"), CreatedAt: created.Add(24 * time.Hour),
				CreatedBy: "8f7d6c1e-0000-4000-8000-000000000001", CreatorName: "Ahmed Ali",
				Status: models.StatusPending,
			},
		},
	}
}

// AssertSnapshotsEqual compares snapshots field by field, using
// decimal.Equal for amounts and time.Equal for timestamps.
func AssertSnapshotsEqual(t *testing.T, want, got *models.Snapshot) {
	t.Helper()
	require.NotNil(t, got)
	assert.Equal(t, want.SchemaVersion, got.SchemaVersion)

	require.Len(t, got.Users, len(want.Users))
	for i := range want.Users {
		w, g := want.Users[i], got.Users[i]
		assert.Equal(t, w.ID, g.ID)
		assert.Equal(t, w.Username, g.Username)
		assert.Equal(t, w.Credential, g.Credential)
		assert.Equal(t, w.FullName, g.FullName)
		assert.Equal(t, w.Role, g.Role)
		assert.True(t, w.CreatedAt.Equal(g.CreatedAt), "user %d created_at: want %s got %s", i, w.CreatedAt, g.CreatedAt)
	}

	require.Len(t, got.Transfers, len(want.Transfers))
	for i := range want.Transfers {
		w, g := want.Transfers[i], got.Transfers[i]
		assert.Equal(t, w.ID, g.ID)
		assert.Equal(t, w.CustomerName, g.CustomerName)
		assert.Equal(t, w.BankAccount, g.BankAccount)
		assert.True(t, w.Amount.Equal(g.Amount), "transfer %d amount: want %s got %s", i, w.Amount, g.Amount)
		assert.True(t, w.CreatedAt.Equal(g.CreatedAt), "transfer %d created_at: want %s got %s", i, w.CreatedAt, g.CreatedAt)
		assert.Equal(t, w.CreatedBy, g.CreatedBy)
		assert.Equal(t, w.CreatorName, g.CreatorName)
		assert.Equal(t, w.Status, g.Status)
		assert.Equal(t, w.Version, g.Version)
		if w.UpdatedAt == nil {
			assert.Nil(t, g.UpdatedAt, "transfer %d updated_at", i)
		} else if assert.NotNil(t, g.UpdatedAt, "transfer %d updated_at", i) {
			assert.True(t, w.UpdatedAt.Equal(*g.UpdatedAt))
		}
	}
}

// RunAdapterSuite checks the behaviour every Adapter must share: an empty
// first load, exact round trips, replacement on save, and idempotent
// save(load()).
func RunAdapterSuite(t *testing.T, newAdapter func(t *testing.T) snapshot.Adapter) {
	t.Helper()
	ctx := context.Background()

	t.Run("empty load", func(t *testing.T) {
		a := newAdapter(t)
		s, err := a.Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, snapshot.CurrentSchemaVersion, s.SchemaVersion)
		assert.Empty(t, s.Users)
		assert.Empty(t, s.Transfers)
	})

	t.Run("round trip", func(t *testing.T) {
		a := newAdapter(t)
		want := Sample()
		require.NoError(t, a.Save(ctx, want))

		got, err := a.Load(ctx)
		require.NoError(t, err)
		AssertSnapshotsEqual(t, want, got)
	})

	t.Run("save replaces previous state", func(t *testing.T) {
		a := newAdapter(t)
		require.NoError(t, a.Save(ctx, Sample()))

		smaller := Sample()
		smaller.Users = smaller.Users[:1]
		smaller.Transfers = smaller.Transfers[1:]
		require.NoError(t, a.Save(ctx, smaller))

		got, err := a.Load(ctx)
		require.NoError(t, err)
		AssertSnapshotsEqual(t, smaller, got)
	})

	t.Run("save of load is a no-op", func(t *testing.T) {
		a := newAdapter(t)
		require.NoError(t, a.Save(ctx, Sample()))

		first, err := a.Load(ctx)
		require.NoError(t, err)
		require.NoError(t, a.Save(ctx, first))
		second, err := a.Load(ctx)
		require.NoError(t, err)
		require.NoError(t, a.Save(ctx, second))
		third, err := a.Load(ctx)
		require.NoError(t, err)

		AssertSnapshotsEqual(t, first, second)
		AssertSnapshotsEqual(t, second, third)
	})

	t.Run("empty snapshot round trip", func(t *testing.T) {
		a := newAdapter(t)
		require.NoError(t, a.Save(ctx, Sample()))
		require.NoError(t, a.Save(ctx, snapshot.Empty()))

		got, err := a.Load(ctx)
		require.NoError(t, err)
		assert.Empty(t, got.Users)
		assert.Empty(t, got.Transfers)
	})
}
