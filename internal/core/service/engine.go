package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/rl1809/goods-issue/internal/core/domain"
	"github.com/rl1809/goods-issue/internal/port"
)

const missingStockError = "missing stock record"

// Engine issues and returns stock for one order and one material at a time.
// Each pass is a single transaction run on the write lane.
type Engine struct {
	store     port.Store
	lane      *Lane
	materials map[domain.Material]Material
	notifier  port.Notifier
	recorder  port.Recorder
	logger    logrus.FieldLogger
	now       func() time.Time
}

type EngineOption func(*Engine)

func WithNotifier(n port.Notifier) EngineOption {
	return func(e *Engine) { e.notifier = n }
}

func WithRecorder(r port.Recorder) EngineOption {
	return func(e *Engine) { e.recorder = r }
}

func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) { e.now = now }
}

func WithMaterials(materials ...Material) EngineOption {
	return func(e *Engine) {
		e.materials = make(map[domain.Material]Material, len(materials))
		for _, m := range materials {
			e.materials[m.Kind()] = m
		}
	}
}

func NewEngine(store port.Store, lane *Lane, logger logrus.FieldLogger, opts ...EngineOption) *Engine {
	e := &Engine{
		store:    store,
		lane:     lane,
		notifier: nopNotifier{},
		recorder: nopRecorder{},
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
	WithMaterials(DefaultMaterials()...)(e)
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Forward issues stock for every outstanding requirement line of the order.
// Orders that are not issue-eligible yield an empty summary.
func (e *Engine) Forward(ctx context.Context, orderID int64, actorID *int64, material domain.Material) (domain.Summary, error) {
	summary := domain.NewSummary(orderID, material, domain.DirectionForward)
	m, ok := e.materials[material]
	if !ok {
		return summary, fmt.Errorf("%w: %s", ErrUnknownMaterial, material)
	}

	order, err := e.loadOrder(ctx, orderID)
	if err != nil {
		return summary, err
	}
	summary.OrderNumber = order.Number

	log := e.logger.WithFields(logrus.Fields{
		"order_id":     orderID,
		"order_number": order.Number,
		"material":     material,
		"direction":    domain.DirectionForward,
	})

	if !order.IssueEligible() {
		log.WithField("status", order.Status).Info("order not completed, skipping goods issue")
		return summary, nil
	}

	var result domain.Summary
	err = e.lane.Do(ctx, func(ctx context.Context) error {
		result = domain.NewSummary(orderID, material, domain.DirectionForward)
		result.OrderNumber = order.Number
		return e.store.WithinTx(ctx, func(tx port.Tx) error {
			lines, err := tx.ListOutstanding(ctx, orderID, material)
			if err != nil {
				return fmt.Errorf("list outstanding lines: %w", err)
			}
			for _, line := range lines {
				if err := e.issueLine(ctx, tx, m, *order, line, actorID, &result, log); err != nil {
					return err
				}
			}
			return nil
		})
	})
	if err != nil {
		return summary, e.fail(material, domain.DirectionForward, orderID, err, log)
	}

	e.finish(ctx, result, log)
	return result, nil
}

func (e *Engine) issueLine(
	ctx context.Context,
	tx port.Tx,
	m Material,
	order domain.Order,
	line domain.RequirementLine,
	actorID *int64,
	summary *domain.Summary,
	log logrus.FieldLogger,
) error {
	scopes := m.Scopes(order, line)

	if line.QuantityDemanded < 0 {
		summary.Errors = append(summary.Errors, domain.LineError{
			LineID:     line.ID,
			ArticleRef: line.ArticleRef,
			Error:      fmt.Sprintf("invalid demanded quantity %d", line.QuantityDemanded),
		})
		summary.Skipped++
		return tx.SetLineStatus(ctx, line.ID, domain.LineStatusCompleted)
	}

	stock, err := findFirstStock(ctx, tx, scopes)
	if err != nil {
		return err
	}
	if stock == nil {
		lineErr := domain.LineError{
			LineID:     line.ID,
			ArticleRef: line.ArticleRef,
			Error:      missingStockError,
		}
		if len(scopes) > 0 {
			lineErr.Scope = scopes[0].String()
		}
		summary.Errors = append(summary.Errors, lineErr)
		summary.Skipped++
		log.WithFields(logrus.Fields{"line_id": line.ID, "article": line.ArticleRef}).
			Warn("missing stock record, completing line without issue")
		return tx.SetLineStatus(ctx, line.ID, domain.LineStatusCompleted)
	}

	adj := domain.Adjust(stock.CurrentQuantity, -line.QuantityDemanded)
	if err := tx.UpdateStock(ctx, stock.ID, adj.NewQty, stock.Version, actorID); err != nil {
		return fmt.Errorf("update stock %s: %w", stock.Scope, err)
	}

	lineID := line.ID
	if _, err := tx.AppendHistory(ctx, domain.HistoryEntry{
		Scope:             stock.Scope,
		RequirementLineID: &lineID,
		EventKind:         domain.EventIssue,
		PreviousQty:       adj.PreviousQty,
		ChangeQty:         adj.ChangeQty,
		NewQty:            adj.NewQty,
		Shortfall:         adj.Shortfall,
		Reason:            m.IssueReason(order),
		Reference:         domain.OrderReference(order.ID),
		ActorID:           actorID,
		CreatedAt:         e.now(),
	}); err != nil {
		return fmt.Errorf("append history: %w", err)
	}

	if err := tx.SetLineStatus(ctx, line.ID, domain.LineStatusCompleted); err != nil {
		return fmt.Errorf("complete line %d: %w", line.ID, err)
	}
	summary.Processed++

	if adj.Shortfall > 0 {
		summary.Shortfalls = append(summary.Shortfalls, domain.Shortfall{
			LineID:     line.ID,
			ArticleRef: line.ArticleRef,
			Demanded:   line.QuantityDemanded,
			Missing:    adj.Shortfall,
		})
		log.WithFields(logrus.Fields{
			"line_id":   line.ID,
			"article":   line.ArticleRef,
			"shortfall": adj.Shortfall,
		}).Warn("issued more than on hand, stock floored at zero")
	}
	if stock.BelowMinimum(adj.NewQty) {
		summary.BelowMinimum = append(summary.BelowMinimum, stock.Scope.String())
	}

	log.WithFields(logrus.Fields{
		"line_id":      line.ID,
		"scope":        stock.Scope.String(),
		"previous_qty": adj.PreviousQty,
		"change_qty":   adj.ChangeQty,
		"new_qty":      adj.NewQty,
	}).Debug("issued stock")
	return nil
}

// Reverse returns stock for every completed line of the order, adding back
// exactly what the line's latest issue entry removed. The live demanded
// quantity is never consulted.
func (e *Engine) Reverse(ctx context.Context, orderID int64, actorID *int64, material domain.Material) (domain.Summary, error) {
	summary := domain.NewSummary(orderID, material, domain.DirectionReverse)
	m, ok := e.materials[material]
	if !ok {
		return summary, fmt.Errorf("%w: %s", ErrUnknownMaterial, material)
	}

	order, err := e.loadOrder(ctx, orderID)
	if err != nil {
		return summary, err
	}
	summary.OrderNumber = order.Number

	log := e.logger.WithFields(logrus.Fields{
		"order_id":     orderID,
		"order_number": order.Number,
		"material":     material,
		"direction":    domain.DirectionReverse,
	})

	var result domain.Summary
	err = e.lane.Do(ctx, func(ctx context.Context) error {
		result = domain.NewSummary(orderID, material, domain.DirectionReverse)
		result.OrderNumber = order.Number
		return e.store.WithinTx(ctx, func(tx port.Tx) error {
			lines, err := tx.ListCompleted(ctx, orderID, material)
			if err != nil {
				return fmt.Errorf("list completed lines: %w", err)
			}
			for _, line := range lines {
				if err := e.returnLine(ctx, tx, m, *order, line, actorID, &result, log); err != nil {
					return err
				}
			}
			return nil
		})
	})
	if err != nil {
		return summary, e.fail(material, domain.DirectionReverse, orderID, err, log)
	}

	e.finish(ctx, result, log)
	return result, nil
}

func (e *Engine) returnLine(
	ctx context.Context,
	tx port.Tx,
	m Material,
	order domain.Order,
	line domain.RequirementLine,
	actorID *int64,
	summary *domain.Summary,
	log logrus.FieldLogger,
) error {
	issue, err := tx.LastIssue(ctx, order.ID, line.ID)
	if err != nil {
		return fmt.Errorf("find issue for line %d: %w", line.ID, err)
	}
	if issue == nil {
		// completed without touching stock
		summary.Skipped++
		return tx.SetLineStatus(ctx, line.ID, domain.LineStatusPending)
	}

	stock, err := tx.FindStock(ctx, issue.Scope)
	if err != nil {
		return fmt.Errorf("find stock %s: %w", issue.Scope, err)
	}
	if stock == nil {
		summary.Errors = append(summary.Errors, domain.LineError{
			LineID:     line.ID,
			ArticleRef: line.ArticleRef,
			Scope:      issue.Scope.String(),
			Error:      missingStockError,
		})
		summary.Skipped++
		log.WithFields(logrus.Fields{"line_id": line.ID, "scope": issue.Scope.String()}).
			Warn("stock record gone, resetting line without return")
		return tx.SetLineStatus(ctx, line.ID, domain.LineStatusPending)
	}

	adj := domain.Adjust(stock.CurrentQuantity, issue.RemovedQty())
	if err := tx.UpdateStock(ctx, stock.ID, adj.NewQty, stock.Version, actorID); err != nil {
		return fmt.Errorf("update stock %s: %w", stock.Scope, err)
	}

	lineID := line.ID
	if _, err := tx.AppendHistory(ctx, domain.HistoryEntry{
		Scope:             stock.Scope,
		RequirementLineID: &lineID,
		EventKind:         domain.EventReturn,
		PreviousQty:       adj.PreviousQty,
		ChangeQty:         adj.ChangeQty,
		NewQty:            adj.NewQty,
		Reason:            m.ReturnReason(order),
		Reference:         domain.OrderReversalReference(order.ID),
		ActorID:           actorID,
		CreatedAt:         e.now(),
	}); err != nil {
		return fmt.Errorf("append history: %w", err)
	}

	if err := tx.SetLineStatus(ctx, line.ID, domain.LineStatusPending); err != nil {
		return fmt.Errorf("reset line %d: %w", line.ID, err)
	}
	summary.Processed++

	log.WithFields(logrus.Fields{
		"line_id":     line.ID,
		"scope":       stock.Scope.String(),
		"reverse_qty": adj.ChangeQty,
		"new_qty":     adj.NewQty,
	}).Debug("returned stock")
	return nil
}

func (e *Engine) loadOrder(ctx context.Context, orderID int64) (*domain.Order, error) {
	order, err := e.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("load order %d: %w", orderID, err)
	}
	if order == nil {
		return nil, fmt.Errorf("%w: %d", ErrOrderNotFound, orderID)
	}
	return order, nil
}

func (e *Engine) fail(material domain.Material, direction domain.Direction, orderID int64, err error, log logrus.FieldLogger) error {
	e.recorder.ObserveFailure(material, direction)
	log.WithError(err).Error("reconciliation rolled back")
	if errors.Is(err, port.ErrVersionConflict) {
		return fmt.Errorf("%s %s for order %d: %w: %w", direction, material, orderID, ErrStockConflict, err)
	}
	return fmt.Errorf("%s %s for order %d: %w", direction, material, orderID, err)
}

func (e *Engine) finish(ctx context.Context, summary domain.Summary, log logrus.FieldLogger) {
	e.recorder.ObserveSummary(summary)
	log.WithFields(logrus.Fields{
		"processed": summary.Processed,
		"skipped":   summary.Skipped,
		"errors":    len(summary.Errors),
	}).Info("reconciliation completed")

	if summary.Processed == 0 {
		return
	}
	event := domain.StockChangedEvent{
		EventID:      uuid.New(),
		OrderID:      summary.OrderID,
		OrderNumber:  summary.OrderNumber,
		Material:     summary.Material,
		Direction:    summary.Direction,
		Processed:    summary.Processed,
		BelowMinimum: summary.BelowMinimum,
	}
	if err := e.notifier.StockChanged(ctx, event); err != nil {
		log.WithError(err).Warn("stock changed notification failed")
	}
}

func findFirstStock(ctx context.Context, tx port.Tx, scopes []domain.ScopeKey) (*domain.StockRecord, error) {
	for _, scope := range scopes {
		stock, err := tx.FindStock(ctx, scope)
		if err != nil {
			return nil, fmt.Errorf("find stock %s: %w", scope, err)
		}
		if stock != nil {
			return stock, nil
		}
	}
	return nil, nil
}

type nopNotifier struct{}

func (nopNotifier) StockChanged(context.Context, domain.StockChangedEvent) error { return nil }

type nopRecorder struct{}

func (nopRecorder) ObserveSummary(domain.Summary)                    {}
func (nopRecorder) ObserveFailure(domain.Material, domain.Direction) {}
func (nopRecorder) ObserveConflictRetry()                             {}
