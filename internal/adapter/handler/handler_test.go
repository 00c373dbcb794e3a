package handler

import (
	"context"
	"io"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/goods-issue/internal/adapter/storage"
	"github.com/rl1809/goods-issue/internal/core/domain"
	"github.com/rl1809/goods-issue/internal/core/service"
)

type testEnv struct {
	store       *storage.SQLStore
	reconciler  *service.ReconcileService
	coordinator *service.Coordinator
	stock       *service.StockService
	logger      logrus.FieldLogger
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store, err := storage.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "handler.db"))
	require.NoError(t, err)

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	lane := service.NewLane(16)
	t.Cleanup(func() {
		lane.Close()
		store.Close()
	})

	engine := service.NewEngine(store, lane, logger)
	reconciler := service.NewReconcileService(engine, logger)
	return &testEnv{
		store:       store,
		reconciler:  reconciler,
		coordinator: service.NewCoordinator(reconciler, 1, nil, logger),
		stock:       service.NewStockService(store, lane, logger),
		logger:      logger,
	}
}

var steelScope = domain.ScopeKey{Material: domain.MaterialSteel, ArticleID: 7}

// seedOrder creates a completed order with one steel line of 4 against 10 on hand.
func (e *testEnv) seedOrder(t *testing.T, orderID int64) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, e.store.SaveOrder(ctx, domain.Order{ID: orderID, Number: "ZL-9", Status: domain.OrderStatusCompleted}))
	_, err := e.store.AddRequirement(ctx, domain.RequirementLine{OrderID: orderID, Material: domain.MaterialSteel, ArticleID: 7, ArticleRef: "S-7", QuantityDemanded: 4})
	require.NoError(t, err)
	if rec, _ := e.store.GetStock(ctx, steelScope); rec == nil {
		_, err = e.store.AddStock(ctx, domain.StockRecord{Scope: steelScope, CurrentQuantity: 10})
		require.NoError(t, err)
	}
}

func (e *testEnv) steelQuantity(t *testing.T) int {
	t.Helper()
	rec, err := e.store.GetStock(context.Background(), steelScope)
	require.NoError(t, err)
	require.NotNil(t, rec)
	return rec.CurrentQuantity
}
