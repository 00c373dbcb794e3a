package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/rl1809/goods-issue/internal/core/domain"
	"github.com/rl1809/goods-issue/internal/port"
)

// OrderResult is one order's outcome inside a batch. Err is set when any
// catalog failed; Summary still holds the catalogs that committed.
type OrderResult struct {
	OrderID int64               `json:"order_id"`
	Summary domain.OrderSummary `json:"summary"`
	Err     error               `json:"-"`
}

// Coordinator runs reconciliation over many orders, strictly one after the
// other. An order that fails never stops the rest of the batch.
type Coordinator struct {
	service  *ReconcileService
	retries  int
	recorder port.Recorder
	logger   logrus.FieldLogger
}

func NewCoordinator(service *ReconcileService, conflictRetries int, recorder port.Recorder, logger logrus.FieldLogger) *Coordinator {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	if conflictRetries < 0 {
		conflictRetries = 0
	}
	return &Coordinator{
		service:  service,
		retries:  conflictRetries,
		recorder: recorder,
		logger:   logger,
	}
}

// Reconcile issues stock for each order.
func (c *Coordinator) Reconcile(ctx context.Context, orderIDs []int64, actorID *int64) []OrderResult {
	return c.run(ctx, orderIDs, actorID, domain.DirectionForward)
}

// Reverse returns stock for each order.
func (c *Coordinator) Reverse(ctx context.Context, orderIDs []int64, actorID *int64) []OrderResult {
	return c.run(ctx, orderIDs, actorID, domain.DirectionReverse)
}

func (c *Coordinator) run(ctx context.Context, orderIDs []int64, actorID *int64, direction domain.Direction) []OrderResult {
	runID := uuid.New()
	log := c.logger.WithFields(logrus.Fields{"batch_id": runID, "direction": direction})

	results := make([]OrderResult, 0, len(orderIDs))
	var processed, skipped, lineErrors, failed int
	for _, orderID := range orderIDs {
		var res OrderResult
		if err := ctx.Err(); err != nil {
			res = OrderResult{OrderID: orderID, Err: err}
		} else {
			res = c.reconcileOne(ctx, orderID, actorID, direction)
		}

		processed += res.Summary.Processed()
		skipped += res.Summary.Skipped()
		lineErrors += res.Summary.ErrorCount()
		if res.Err != nil {
			failed++
			log.WithError(res.Err).WithField("order_id", orderID).Error("order reconciliation failed")
		}
		results = append(results, res)
	}

	log.WithFields(logrus.Fields{
		"orders":    len(orderIDs),
		"failed":    failed,
		"processed": processed,
		"skipped":   skipped,
		"errors":    lineErrors,
	}).Info("batch reconciliation completed")
	return results
}

// reconcileOne is the per-order error boundary. Version conflicts roll the
// failing catalog back, so the whole order can be re-run: catalogs that
// already committed have nothing outstanding and are no-ops.
func (c *Coordinator) reconcileOne(ctx context.Context, orderID int64, actorID *int64, direction domain.Direction) (res OrderResult) {
	res.OrderID = orderID
	defer func() {
		if r := recover(); r != nil {
			res.Err = fmt.Errorf("order %d: reconciliation panicked: %v", orderID, r)
		}
	}()

	for attempt := 0; ; attempt++ {
		summary, err := c.service.Reconcile(ctx, orderID, actorID, direction)
		res.Summary = mergeSummary(res.Summary, summary)
		res.Err = err
		if err == nil || !errors.Is(err, ErrStockConflict) || attempt >= c.retries {
			return res
		}
		c.recorder.ObserveConflictRetry()
		c.logger.WithFields(logrus.Fields{"order_id": orderID, "attempt": attempt + 1}).
			Warn("stock version conflict, retrying order")
	}
}

// mergeSummary keeps material results from earlier attempts; a retried
// attempt reports committed catalogs as empty passes.
func mergeSummary(prev, next domain.OrderSummary) domain.OrderSummary {
	if len(prev.Materials) == 0 {
		return next
	}
	merged := next
	merged.Materials = nil
	byMaterial := make(map[domain.Material]domain.Summary, len(prev.Materials))
	for _, m := range prev.Materials {
		byMaterial[m.Material] = m
	}
	for _, m := range next.Materials {
		if old, ok := byMaterial[m.Material]; ok && m.Processed == 0 && m.Skipped == 0 && len(m.Errors) == 0 {
			m = old
		}
		delete(byMaterial, m.Material)
		merged.Materials = append(merged.Materials, m)
	}
	for _, material := range domain.Materials {
		if old, ok := byMaterial[material]; ok {
			merged.Materials = append(merged.Materials, old)
		}
	}
	if merged.OrderNumber == "" {
		merged.OrderNumber = prev.OrderNumber
	}
	return merged
}
