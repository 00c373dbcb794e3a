package port

import (
	"context"
	"errors"

	"github.com/rl1809/goods-issue/internal/core/domain"
)

// ErrVersionConflict is returned by conditional stock writes when the record
// changed since it was read.
var ErrVersionConflict = errors.New("stock version conflict")

type OrderReader interface {
	// GetOrder returns nil without error when the order does not exist
	GetOrder(ctx context.Context, orderID int64) (*domain.Order, error)
}

type HistoryReader interface {
	// ListHistory returns the entries written under reference, oldest first
	ListHistory(ctx context.Context, reference string) ([]domain.HistoryEntry, error)
}

// Store is the stock, history and requirement storage. All mutations happen
// inside WithinTx.
type Store interface {
	OrderReader

	// WithinTx runs fn in one transaction, committing when fn returns nil
	WithinTx(ctx context.Context, fn func(tx Tx) error) error
}

type Tx interface {
	// ListOutstanding returns lines of the order and material that are not completed
	ListOutstanding(ctx context.Context, orderID int64, material domain.Material) ([]domain.RequirementLine, error)

	// ListCompleted returns completed lines of the order and material
	ListCompleted(ctx context.Context, orderID int64, material domain.Material) ([]domain.RequirementLine, error)

	SetLineStatus(ctx context.Context, lineID int64, status domain.LineStatus) error

	// FindStock returns nil without error when no record matches the scope
	FindStock(ctx context.Context, scope domain.ScopeKey) (*domain.StockRecord, error)

	// UpdateStock writes quantity and bumps version by one, only if the stored
	// version still equals expectedVersion. Otherwise ErrVersionConflict.
	UpdateStock(ctx context.Context, stockID int64, quantity, expectedVersion int, actorID *int64) error

	AppendHistory(ctx context.Context, entry domain.HistoryEntry) (int64, error)

	// LastIssue returns the most recent issue entry written for the line under
	// the order's reference, or nil.
	LastIssue(ctx context.Context, orderID, lineID int64) (*domain.HistoryEntry, error)
}
