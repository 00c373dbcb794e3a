package port

import (
	"context"

	"github.com/rl1809/goods-issue/internal/core/domain"
)

// Notifier publishes stock changes for dashboards. Callers ignore delivery
// failures beyond logging them.
type Notifier interface {
	StockChanged(ctx context.Context, event domain.StockChangedEvent) error
}

type Recorder interface {
	ObserveSummary(summary domain.Summary)
	ObserveFailure(material domain.Material, direction domain.Direction)
	ObserveConflictRetry()
}
