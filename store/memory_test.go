package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"assetmgt/models"
)

func TestMemoryTransactionRollback(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	asset := &models.Asset{ProductName: "Laptop", CompanyName: "Acme", AvailableQuantity: 2}
	require.NoError(t, s.InsertAsset(ctx, asset))

	boom := errors.New("boom")
	err := s.WithTransaction(ctx, func(ctx context.Context) error {
		ok, err := s.AdjustAvailable(ctx, asset.ID, -1)
		require.NoError(t, err)
		require.True(t, ok)
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := s.AssetByID(ctx, asset.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.AvailableQuantity)
}

func TestMemoryRollbackKeepsOutsideWrites(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	laptop := &models.Asset{ProductName: "Laptop", CompanyName: "Acme", AvailableQuantity: 2}
	require.NoError(t, s.InsertAsset(ctx, laptop))

	mouse := &models.Asset{ProductName: "Mouse", CompanyName: "Acme", AvailableQuantity: 1}
	done := make(chan error, 1)
	boom := errors.New("boom")
	err := s.WithTransaction(ctx, func(txCtx context.Context) error {
		_, err := s.AdjustAvailable(txCtx, laptop.ID, -1)
		require.NoError(t, err)

		go func() { done <- s.InsertAsset(ctx, mouse) }()
		select {
		case err := <-done:
			t.Fatalf("write outside the transaction did not wait: %v", err)
		case <-time.After(50 * time.Millisecond):
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)
	require.NoError(t, <-done)

	got, err := s.AssetByID(ctx, laptop.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.AvailableQuantity)
	_, err = s.AssetByID(ctx, mouse.ID)
	assert.NoError(t, err)
}

func TestMemoryAdjustAvailableNeverNegative(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	asset := &models.Asset{ProductName: "Mouse", AvailableQuantity: 1}
	require.NoError(t, s.InsertAsset(ctx, asset))

	ok, err := s.AdjustAvailable(ctx, asset.ID, -1)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.AdjustAvailable(ctx, asset.ID, -1)
	require.NoError(t, err)
	assert.False(t, ok)

	got, _ := s.AssetByID(ctx, asset.ID)
	assert.Equal(t, 0, got.AvailableQuantity)
}

func TestMemoryIncrementEmployeesGuard(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	require.NoError(t, s.CreateUser(ctx, &models.User{Email: "hr@acme.io", Role: "hr", PackageLimit: 1}))

	ok, err := s.IncrementEmployees(ctx, "hr@acme.io")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.IncrementEmployees(ctx, "hr@acme.io")
	require.NoError(t, err)
	assert.False(t, ok)

	u, _ := s.UserByEmail(ctx, "hr@acme.io")
	assert.Equal(t, 1, u.CurrentEmployees)
}

func TestMemoryPendingRequestUnique(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	assetID := primitive.NewObjectID()

	first := &models.Request{AssetID: assetID, RequesterEmail: "e@acme.io", RequestStatus: models.RequestPending}
	require.NoError(t, s.InsertRequest(ctx, first))

	dup := &models.Request{AssetID: assetID, RequesterEmail: "e@acme.io", RequestStatus: models.RequestPending}
	assert.ErrorIs(t, s.InsertRequest(ctx, dup), ErrDuplicate)

	ok, err := s.DecideRequest(ctx, first.ID, models.RequestRejected, "hr@acme.io", time.Now())
	require.NoError(t, err)
	assert.True(t, ok)

	assert.NoError(t, s.InsertRequest(ctx, dup))
}

func TestMemoryListAssetsPagination(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	base := time.Now()
	for i := 0; i < 5; i++ {
		a := &models.Asset{
			ProductName:       "Item",
			CompanyName:       "Acme",
			AvailableQuantity: i,
			DateAdded:         base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, s.InsertAsset(ctx, a))
	}

	items, total, err := s.ListAssets(ctx, AssetFilter{CompanyNames: []string{"Acme"}, SortQuantity: "asc"}, Page{Page: 1, Limit: 2})
	require.NoError(t, err)
	assert.EqualValues(t, 5, total)
	require.Len(t, items, 2)
	assert.Equal(t, 2, items[0].AvailableQuantity)
	assert.Equal(t, 3, items[1].AvailableQuantity)

	items, _, err = s.ListAssets(ctx, AssetFilter{Stock: "out"}, Page{})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 0, items[0].AvailableQuantity)
}
