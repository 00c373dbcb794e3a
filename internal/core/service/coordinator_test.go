package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/goods-issue/internal/core/domain"
)

func TestCoordinator_IsolatesFailingOrders(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	seedAllMaterials(f.store, 1)
	f.store.addOrder(domain.Order{ID: 3, Number: "53030", Status: domain.OrderStatusCompleted})
	stockID := f.store.addStock(profileStock(8, 0, 5, 0))
	f.store.addLine(domain.RequirementLine{OrderID: 3, Material: domain.MaterialProfiles, ArticleID: 8, ArticleRef: "P8", QuantityDemanded: 1})

	coord := NewCoordinator(NewReconcileService(f.engine, testLogger()), 2, f.recorder, testLogger())
	results := coord.Reconcile(ctx, []int64{1, 404, 3}, nil)

	require.Len(t, results, 3)
	assert.NoError(t, results[0].Err)
	assert.Equal(t, 3, results[0].Summary.Processed())
	assert.ErrorIs(t, results[1].Err, ErrOrderNotFound)
	assert.Equal(t, int64(404), results[1].OrderID)
	assert.NoError(t, results[2].Err)
	assert.Equal(t, 1, results[2].Summary.Processed())
	assert.Equal(t, 4, f.store.stock(stockID).CurrentQuantity)
}

func TestCoordinator_RetriesVersionConflicts(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	f.store.addOrder(domain.Order{ID: 1, Number: "53001", Status: domain.OrderStatusCompleted})
	f.store.addLine(profileLine(1, 5, 2, 10))
	stockID := f.store.addStock(profileStock(5, 2, 15, 3))

	conflicts := 1
	f.store.beforeUpdate = func(s *mockStore, id int64) error {
		if conflicts > 0 {
			conflicts--
			r := s.stocks[id]
			r.CurrentQuantity = 20
			r.Version++
			s.stocks[id] = r
		}
		return nil
	}

	coord := NewCoordinator(NewReconcileService(f.engine, testLogger()), 2, f.recorder, testLogger())
	results := coord.Reconcile(ctx, []int64{1}, nil)

	require.Len(t, results, 1)
	require.NoError(t, results[0].Err)
	assert.Equal(t, 1, results[0].Summary.Processed())
	assert.Equal(t, 1, f.recorder.retries)

	// the conflicting write was rolled back, so the retry reads the original record
	assert.Equal(t, 5, f.store.stock(stockID).CurrentQuantity)
	assert.Equal(t, 4, f.store.stock(stockID).Version)
}

func TestCoordinator_GivesUpAfterRetries(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	f.store.addOrder(domain.Order{ID: 1, Number: "53001", Status: domain.OrderStatusCompleted})
	f.store.addLine(profileLine(1, 5, 2, 10))
	f.store.addStock(profileStock(5, 2, 15, 3))
	f.store.beforeUpdate = func(s *mockStore, id int64) error {
		r := s.stocks[id]
		r.Version++
		s.stocks[id] = r
		return nil
	}

	coord := NewCoordinator(NewReconcileService(f.engine, testLogger()), 1, f.recorder, testLogger())
	results := coord.Reconcile(ctx, []int64{1}, nil)

	require.Len(t, results, 1)
	assert.ErrorIs(t, results[0].Err, ErrStockConflict)
	assert.Equal(t, 1, f.recorder.retries)
}

func TestCoordinator_CanceledContext(t *testing.T) {
	f := newEngineFixture(t)
	seedAllMaterials(f.store, 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	coord := NewCoordinator(NewReconcileService(f.engine, testLogger()), 0, nil, testLogger())
	results := coord.Reconcile(ctx, []int64{1, 2}, nil)

	require.Len(t, results, 2)
	for _, r := range results {
		assert.ErrorIs(t, r.Err, context.Canceled)
	}
	assert.Zero(t, f.store.txCount)
}

func TestCoordinator_Reverse(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	profile, _, _ := seedAllMaterials(f.store, 1)
	coord := NewCoordinator(NewReconcileService(f.engine, testLogger()), 0, nil, testLogger())

	coord.Reconcile(ctx, []int64{1}, nil)
	results := coord.Reverse(ctx, []int64{1}, nil)

	require.Len(t, results, 1)
	require.NoError(t, results[0].Err)
	assert.Equal(t, domain.DirectionReverse, results[0].Summary.Direction)
	assert.Equal(t, 15, f.store.stock(profile).CurrentQuantity)
}

func TestMergeSummary_KeepsEarlierCommits(t *testing.T) {
	prev := domain.OrderSummary{OrderID: 1, OrderNumber: "53001", Materials: []domain.Summary{
		{Material: domain.MaterialProfiles, Processed: 2},
	}}
	next := domain.OrderSummary{OrderID: 1, Materials: []domain.Summary{
		{Material: domain.MaterialProfiles},
		{Material: domain.MaterialSteel, Processed: 1},
	}}

	merged := mergeSummary(prev, next)
	assert.Equal(t, "53001", merged.OrderNumber)
	assert.Equal(t, 3, merged.Processed())
}
