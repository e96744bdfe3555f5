package portal

import (
	"context"
	"fmt"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreUserCRUD(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	u := &User{Username: "alice", Email: "alice@example.edu", IsActive: true}
	require.NoError(t, store.CreateUser(ctx, u))
	assert.NotZero(t, u.ID, "create assigns the surrogate id")

	err := store.CreateUser(ctx, &User{Username: "alice"})
	assert.Error(t, err, "duplicate natural key")

	got, ok, err := store.GetUserByUsername(ctx, "alice")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "alice@example.edu", got.Email)

	_, ok, err = store.GetUserByUsername(ctx, "nobody")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.UpdateUser(ctx, &User{Username: "alice", Email: "new@example.edu"}))
	got, _, err = store.GetUserByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "new@example.edu", got.Email)
	assert.Equal(t, u.ID, got.ID, "update preserves the id")

	err = store.UpdateUser(ctx, &User{Username: "nobody"})
	assert.Error(t, err)
}

func TestMemoryStoreListsSorted(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	for _, name := range []string{"zeta", "alpha", "mid"} {
		require.NoError(t, store.CreateUser(ctx, &User{Username: name}))
	}
	users, err := store.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 3)
	assert.Equal(t, "alpha", users[0].Username)
	assert.Equal(t, "mid", users[1].Username)
	assert.Equal(t, "zeta", users[2].Username)

	require.NoError(t, store.CreateProjectUser(ctx, &ProjectUser{ProjectTitle: "p2", Username: "alpha"}))
	require.NoError(t, store.CreateProjectUser(ctx, &ProjectUser{ProjectTitle: "p1", Username: "zeta"}))
	require.NoError(t, store.CreateProjectUser(ctx, &ProjectUser{ProjectTitle: "p1", Username: "alpha"}))
	memberships, err := store.ListProjectUsers(ctx)
	require.NoError(t, err)
	require.Len(t, memberships, 3)
	assert.Equal(t, "p1", memberships[0].ProjectTitle)
	assert.Equal(t, "alpha", memberships[0].Username)
	assert.Equal(t, "zeta", memberships[1].Username)
	assert.Equal(t, "p2", memberships[2].ProjectTitle)
}

func TestMemoryStoreCompositeKeys(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	effective := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.CreateNodeRate(ctx, &NodeRate{
		NodeTypeName:  "a100-8x",
		EffectiveDate: effective,
		HourlyRate:    big.NewRat(25, 2),
		Currency:      "USD",
	}))

	rate, ok, err := store.GetNodeRate(ctx, "a100-8x", "2026-01-01")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 0, rate.HourlyRate.Cmp(big.NewRat(25, 2)))

	_, ok, err = store.GetNodeRate(ctx, "a100-8x", "2026-06-01")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.CreateReservation(ctx, &Reservation{
		ProjectTitle: "proj",
		NodeHostname: "gpu-node-01",
		StartDate:    effective,
		EndDate:      effective.AddDate(0, 1, 0),
	}))
	res, ok, err := store.GetReservation(ctx, "proj", "gpu-node-01", "2026-01-01")
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, store.CreateCostAllocation(ctx, &CostAllocation{
		ReservationID: res.ID,
		Account:       "acct-1",
		Percent:       big.NewRat(100, 1),
	}))
	_, ok, err = store.GetCostAllocation(ctx, res.ID, "acct-1")
	require.NoError(t, err)
	assert.True(t, ok)
	_, ok, err = store.GetCostAllocation(ctx, res.ID+1, "acct-1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryStoreIDsMonotonic(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	var last int64
	for i := 0; i < 4; i++ {
		u := &User{Username: fmt.Sprintf("user-%d", i)}
		require.NoError(t, store.CreateUser(ctx, u))
		assert.Greater(t, u.ID, last)
		last = u.ID
	}
}

func TestMemoryStoreInTransaction(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.CreateUser(ctx, &User{Username: "kept"}))

	err := store.InTransaction(ctx, func(tx Store) error {
		if err := tx.CreateUser(ctx, &User{Username: "rolled-back"}); err != nil {
			return err
		}
		return fmt.Errorf("boom")
	})
	require.Error(t, err)

	users, err := store.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "kept", users[0].Username)

	err = store.InTransaction(ctx, func(tx Store) error {
		return tx.CreateUser(ctx, &User{Username: "committed"})
	})
	require.NoError(t, err)
	users, err = store.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 2)
}
