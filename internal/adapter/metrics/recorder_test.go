package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/rl1809/goods-issue/internal/core/domain"
)

func TestRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewRecorder(reg)

	summary := domain.NewSummary(1, domain.MaterialSteel, domain.DirectionForward)
	summary.Processed = 3
	summary.Skipped = 1
	summary.Errors = append(summary.Errors, domain.LineError{LineID: 2, Error: "missing stock record"})
	summary.Shortfalls = []domain.Shortfall{{LineID: 3, Demanded: 10, Missing: 4}}
	summary.BelowMinimum = []string{"S-7"}

	r.ObserveSummary(summary)
	r.ObserveSummary(summary)
	r.ObserveFailure(domain.MaterialHardware, domain.DirectionReverse)
	r.ObserveConflictRetry()

	assert.Equal(t, 6.0, testutil.ToFloat64(r.lines.WithLabelValues("steel", "forward", "processed")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.lines.WithLabelValues("steel", "forward", "skipped")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.lines.WithLabelValues("steel", "forward", "error")))
	assert.Equal(t, 8.0, testutil.ToFloat64(r.shortfall.WithLabelValues("steel")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.belowMinimum.WithLabelValues("steel")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.failures.WithLabelValues("hardware", "reverse")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.retries))
}

func TestNewRecorder_RegistersOnce(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewRecorder(reg)

	assert.Panics(t, func() { NewRecorder(reg) })
}
