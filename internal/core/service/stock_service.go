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

type AdjustRequest struct {
	Scope           domain.ScopeKey
	Quantity        int
	ExpectedVersion int
	ActorID         *int64
	Reason          string
}

// StockService applies manual stock corrections. Writes are version checked:
// a correction made against a stale reading is rejected, never merged.
type StockService struct {
	store  port.Store
	lane   *Lane
	logger logrus.FieldLogger
	now    func() time.Time
}

func NewStockService(store port.Store, lane *Lane, logger logrus.FieldLogger) *StockService {
	return &StockService{
		store:  store,
		lane:   lane,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (s *StockService) Adjust(ctx context.Context, req AdjustRequest) (domain.HistoryEntry, error) {
	if req.Quantity < 0 {
		return domain.HistoryEntry{}, fmt.Errorf("%w: %d", ErrInvalidQuantity, req.Quantity)
	}

	var entry domain.HistoryEntry
	err := s.lane.Do(ctx, func(ctx context.Context) error {
		return s.store.WithinTx(ctx, func(tx port.Tx) error {
			stock, err := tx.FindStock(ctx, req.Scope)
			if err != nil {
				return fmt.Errorf("find stock %s: %w", req.Scope, err)
			}
			if stock == nil {
				return fmt.Errorf("%w: %s", ErrStockNotFound, req.Scope)
			}
			if stock.Version != req.ExpectedVersion {
				return fmt.Errorf("%w: %s at version %d, expected %d",
					ErrStockConflict, req.Scope, stock.Version, req.ExpectedVersion)
			}

			if err := tx.UpdateStock(ctx, stock.ID, req.Quantity, req.ExpectedVersion, req.ActorID); err != nil {
				if errors.Is(err, port.ErrVersionConflict) {
					return fmt.Errorf("%w: %w", ErrStockConflict, err)
				}
				return fmt.Errorf("update stock %s: %w", req.Scope, err)
			}

			entry = domain.HistoryEntry{
				Scope:       stock.Scope,
				EventKind:   domain.EventManual,
				PreviousQty: stock.CurrentQuantity,
				ChangeQty:   req.Quantity - stock.CurrentQuantity,
				NewQty:      req.Quantity,
				Reason:      req.Reason,
				Reference:   "MANUAL",
				ActorID:     req.ActorID,
				CreatedAt:   s.now(),
			}
			id, err := tx.AppendHistory(ctx, entry)
			if err != nil {
				return fmt.Errorf("append history: %w", err)
			}
			entry.ID = id
			return nil
		})
	})
	if err != nil {
		return domain.HistoryEntry{}, err
	}

	s.logger.WithFields(logrus.Fields{
		"scope":        req.Scope.String(),
		"previous_qty": entry.PreviousQty,
		"new_qty":      entry.NewQty,
	}).Info("manual stock adjustment")
	return entry, nil
}
