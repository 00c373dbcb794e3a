package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/goods-issue/internal/core/domain"
)

func TestAdjust_WritesManualEntry(t *testing.T) {
	f := newEngineFixture(t)
	stockID := f.store.addStock(profileStock(5, 2, 15, 3))
	svc := NewStockService(f.store, f.lane, testLogger())

	entry, err := svc.Adjust(context.Background(), AdjustRequest{
		Scope:           profileStock(5, 2, 0, 0).Scope,
		Quantity:        12,
		ExpectedVersion: 3,
		ActorID:         int64Ptr(4),
		Reason:          "stocktake",
	})
	require.NoError(t, err)

	assert.Equal(t, domain.EventManual, entry.EventKind)
	assert.Equal(t, 15, entry.PreviousQty)
	assert.Equal(t, -3, entry.ChangeQty)
	assert.Equal(t, 12, entry.NewQty)
	assert.NotZero(t, entry.ID)

	stock := f.store.stock(stockID)
	assert.Equal(t, 12, stock.CurrentQuantity)
	assert.Equal(t, 4, stock.Version)
}

func TestAdjust_StaleVersion(t *testing.T) {
	f := newEngineFixture(t)
	stockID := f.store.addStock(profileStock(5, 2, 15, 3))
	svc := NewStockService(f.store, f.lane, testLogger())

	_, err := svc.Adjust(context.Background(), AdjustRequest{
		Scope:           profileStock(5, 2, 0, 0).Scope,
		Quantity:        12,
		ExpectedVersion: 2,
	})
	assert.ErrorIs(t, err, ErrStockConflict)
	assert.Equal(t, 15, f.store.stock(stockID).CurrentQuantity)
	assert.Empty(t, f.store.historyEntries())
}

func TestAdjust_Rejections(t *testing.T) {
	f := newEngineFixture(t)
	svc := NewStockService(f.store, f.lane, testLogger())
	scope := domain.ScopeKey{Material: domain.MaterialSteel, ArticleID: 1}

	_, err := svc.Adjust(context.Background(), AdjustRequest{Scope: scope, Quantity: -1})
	assert.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = svc.Adjust(context.Background(), AdjustRequest{Scope: scope, Quantity: 1})
	assert.ErrorIs(t, err, ErrStockNotFound)
}
