package inventory_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/dukerupert/emporium/internal/domain"
	"github.com/dukerupert/emporium/internal/inventory"
	"github.com/dukerupert/emporium/internal/memstore"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T, stock int) (*inventory.Ledger, *memstore.ProductStore, uuid.UUID) {
	t.Helper()
	store := memstore.NewProductStore()
	id := uuid.New()
	store.Put(domain.Product{ID: id, Name: "Mug", Price: decimal.RequireFromString("20"), Stock: stock})
	return inventory.NewLedger(store), store, id
}

func stockOf(t *testing.T, store *memstore.ProductStore, id uuid.UUID) int {
	t.Helper()
	p, err := store.GetProduct(context.Background(), id)
	require.NoError(t, err)
	return p.Stock
}

func Test_Ledger_Reserve(t *testing.T) {
	ctx := context.Background()

	t.Run("takes stock", func(t *testing.T) {
		ledger, store, id := setup(t, 5)
		require.NoError(t, ledger.Reserve(ctx, id, 3))
		assert.Equal(t, 2, stockOf(t, store, id))
	})

	t.Run("exact stock succeeds", func(t *testing.T) {
		ledger, store, id := setup(t, 2)
		require.NoError(t, ledger.Reserve(ctx, id, 2))
		assert.Equal(t, 0, stockOf(t, store, id))
	})

	t.Run("insufficient stock changes nothing", func(t *testing.T) {
		ledger, store, id := setup(t, 2)
		err := ledger.Reserve(ctx, id, 3)

		var ise *inventory.InsufficientStockError
		require.True(t, errors.As(err, &ise))
		assert.Equal(t, id, ise.ProductID)
		assert.Equal(t, 3, ise.Requested)
		assert.Equal(t, domain.ECONFLICT, domain.ErrorCode(err))
		assert.Equal(t, 2, stockOf(t, store, id))
	})

	t.Run("non-positive quantity", func(t *testing.T) {
		ledger, _, id := setup(t, 2)
		assert.ErrorIs(t, ledger.Reserve(ctx, id, 0), domain.ErrInvalidQuantity)
		assert.ErrorIs(t, ledger.Release(ctx, id, -1), domain.ErrInvalidQuantity)
	})

	t.Run("unknown product", func(t *testing.T) {
		ledger, _, _ := setup(t, 2)
		assert.ErrorIs(t, ledger.Reserve(ctx, uuid.New(), 1), domain.ErrProductNotFound)
	})
}

func Test_Ledger_Release(t *testing.T) {
	ctx := context.Background()
	ledger, store, id := setup(t, 1)

	require.NoError(t, ledger.Reserve(ctx, id, 1))
	require.NoError(t, ledger.Release(ctx, id, 1))
	assert.Equal(t, 1, stockOf(t, store, id))
}

func Test_InsufficientStockError_Message(t *testing.T) {
	id := uuid.New()
	named := &inventory.InsufficientStockError{ProductID: id, ProductName: "Mug", Requested: 2}
	assert.Equal(t, "Insufficient stock for Mug", domain.ErrorMessage(named))

	unnamed := &inventory.InsufficientStockError{ProductID: id, Requested: 2}
	assert.Contains(t, domain.ErrorMessage(unnamed), id.String())
}

func Test_Ledger_ConcurrentReservationsNeverOversell(t *testing.T) {
	const (
		stock   = 10
		buyers  = 50
		perUnit = 1
	)
	ctx := context.Background()
	ledger, store, id := setup(t, stock)

	var (
		wg        sync.WaitGroup
		succeeded atomic.Int32
	)
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := ledger.Reserve(ctx, id, perUnit); err == nil {
				succeeded.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(stock), succeeded.Load())
	assert.Equal(t, 0, stockOf(t, store, id))
}
