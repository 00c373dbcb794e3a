package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rl1809/goods-issue/internal/core/domain"
	"github.com/rl1809/goods-issue/internal/port"
)

const defaultOrderLockTTL = 30 * time.Second

// ReconcileService handles order lifecycle events by running the engine over
// every material catalog of the order, one after the other. Catalogs commit
// independently: a failed catalog leaves the others committed.
type ReconcileService struct {
	engine  *Engine
	cache   port.CacheRepository
	locker  port.Locker
	lockTTL time.Duration
	logger  logrus.FieldLogger
}

type ServiceOption func(*ReconcileService)

// WithIdempotencyCache drops lifecycle events whose request ID was seen before.
func WithIdempotencyCache(cache port.CacheRepository) ServiceOption {
	return func(s *ReconcileService) { s.cache = cache }
}

// WithOrderLock serializes reconciliation of one order across instances.
func WithOrderLock(locker port.Locker, ttl time.Duration) ServiceOption {
	return func(s *ReconcileService) {
		s.locker = locker
		if ttl > 0 {
			s.lockTTL = ttl
		}
	}
}

func NewReconcileService(engine *Engine, logger logrus.FieldLogger, opts ...ServiceOption) *ReconcileService {
	s := &ReconcileService{
		engine:  engine,
		lockTTL: defaultOrderLockTTL,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OrderReachedCompletion issues stock for the order. Repeated deliveries are
// harmless: completed lines are never issued twice. A non-empty requestID is
// additionally deduplicated through the idempotency cache.
func (s *ReconcileService) OrderReachedCompletion(ctx context.Context, requestID string, orderID int64, actorID *int64) (domain.OrderSummary, error) {
	return s.handleEvent(ctx, requestID, orderID, actorID, domain.DirectionForward)
}

// OrderRegressedFromCompletion returns the stock issued for the order.
func (s *ReconcileService) OrderRegressedFromCompletion(ctx context.Context, requestID string, orderID int64, actorID *int64) (domain.OrderSummary, error) {
	return s.handleEvent(ctx, requestID, orderID, actorID, domain.DirectionReverse)
}

// handleEvent claims the request ID before reconciling and gives it back when
// reconciliation fails, so only a delivery that went through is a duplicate.
func (s *ReconcileService) handleEvent(ctx context.Context, requestID string, orderID int64, actorID *int64, direction domain.Direction) (domain.OrderSummary, error) {
	if requestID == "" || s.cache == nil {
		return s.Reconcile(ctx, orderID, actorID, direction)
	}

	key := fmt.Sprintf("reconcile:%s:%d:%s", direction, orderID, requestID)
	ok, err := s.cache.SetIdempotency(ctx, key)
	if err != nil {
		return domain.OrderSummary{OrderID: orderID, Direction: direction}, fmt.Errorf("idempotency check failed: %w", err)
	}
	if !ok {
		return domain.OrderSummary{OrderID: orderID, Direction: direction}, ErrDuplicateRequest
	}

	summary, err := s.Reconcile(ctx, orderID, actorID, direction)
	if err != nil {
		if relErr := s.cache.ReleaseIdempotency(context.WithoutCancel(ctx), key); relErr != nil {
			s.logger.WithError(relErr).WithFields(logrus.Fields{
				"order_id":   orderID,
				"request_id": requestID,
			}).Warn("release idempotency key failed")
		}
	}
	return summary, err
}

// ReconcileForward issues all catalogs of the order.
func (s *ReconcileService) ReconcileForward(ctx context.Context, orderID int64, actorID *int64) (domain.OrderSummary, error) {
	return s.Reconcile(ctx, orderID, actorID, domain.DirectionForward)
}

// ReconcileReversal returns all catalogs of the order.
func (s *ReconcileService) ReconcileReversal(ctx context.Context, orderID int64, actorID *int64) (domain.OrderSummary, error) {
	return s.Reconcile(ctx, orderID, actorID, domain.DirectionReverse)
}

func (s *ReconcileService) Reconcile(ctx context.Context, orderID int64, actorID *int64, direction domain.Direction) (domain.OrderSummary, error) {
	summary := domain.OrderSummary{OrderID: orderID, Direction: direction}

	if s.locker != nil {
		release, err := s.locker.Obtain(ctx, fmt.Sprintf("reconcile:order:%d", orderID), s.lockTTL)
		if err != nil {
			return summary, fmt.Errorf("lock order %d: %w", orderID, err)
		}
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				s.logger.WithError(err).WithField("order_id", orderID).Warn("release order lock failed")
			}
		}()
	}

	var errs []error
	for _, material := range domain.Materials {
		var (
			result domain.Summary
			err    error
		)
		if direction == domain.DirectionForward {
			result, err = s.engine.Forward(ctx, orderID, actorID, material)
		} else {
			result, err = s.engine.Reverse(ctx, orderID, actorID, material)
		}
		if err != nil {
			if errors.Is(err, ErrOrderNotFound) {
				return summary, err
			}
			errs = append(errs, err)
			continue
		}
		summary.OrderNumber = result.OrderNumber
		summary.Materials = append(summary.Materials, result)
	}
	return summary, errors.Join(errs...)
}
