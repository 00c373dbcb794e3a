package app

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/goods-issue/internal/config"
	"github.com/rl1809/goods-issue/internal/core/domain"
)

func testConfig(t *testing.T) *config.Config {
	return &config.Config{
		StoreDriver:     config.StoreSQLite,
		SQLitePath:      filepath.Join(t.TempDir(), "app.db"),
		Notifier:        config.NotifierLog,
		HTTPAddr:        ":0",
		GRPCAddr:        ":0",
		LaneQueueSize:   8,
		ConflictRetries: 2,
		LogLevel:        "info",
	}
}

func TestNew_SQLiteWithoutRedis(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	ctx := context.Background()

	a, err := New(ctx, testConfig(t), logger)
	require.NoError(t, err)
	defer a.Close()

	require.NoError(t, a.Store.SaveOrder(ctx, domain.Order{ID: 1, Number: "ZL-1", Status: domain.OrderStatusCompleted}))
	_, err = a.Store.AddRequirement(ctx, domain.RequirementLine{OrderID: 1, Material: domain.MaterialSteel, ArticleID: 7, ArticleRef: "S-7", QuantityDemanded: 2})
	require.NoError(t, err)
	_, err = a.Store.AddStock(ctx, domain.StockRecord{Scope: domain.ScopeKey{Material: domain.MaterialSteel, ArticleID: 7}, CurrentQuantity: 5})
	require.NoError(t, err)

	results := a.Coordinator.Reconcile(ctx, []int64{1}, nil)
	require.Len(t, results, 1)
	require.NoError(t, results[0].Err)
	assert.Equal(t, 1, results[0].Summary.Processed())

	w := httptest.NewRecorder()
	a.MetricsHandler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `goods_issue_lines_total{direction="forward",material="steel",outcome="processed"} 1`)
}

func TestNew_UnreachableRedis(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	cfg := testConfig(t)
	cfg.RedisAddr = "127.0.0.1:1"

	_, err := New(context.Background(), cfg, logger)
	assert.Error(t, err)
}
