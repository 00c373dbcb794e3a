package notifier

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/rl1809/goods-issue/internal/core/domain"
	"github.com/rl1809/goods-issue/internal/port"
)

// LogNotifier writes every stock change to the process log.
type LogNotifier struct {
	logger logrus.FieldLogger
}

func NewLogNotifier(logger logrus.FieldLogger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) StockChanged(ctx context.Context, event domain.StockChangedEvent) error {
	entry := n.logger.WithFields(logrus.Fields{
		"event_id":     event.EventID.String(),
		"order_id":     event.OrderID,
		"order_number": event.OrderNumber,
		"material":     event.Material,
		"direction":    event.Direction,
		"processed":    event.Processed,
	})
	if len(event.BelowMinimum) > 0 {
		entry.WithField("below_minimum", event.BelowMinimum).Warn("stock changed, articles below minimum")
		return nil
	}
	entry.Info("stock changed")
	return nil
}

// Fanout delivers each event to every notifier and joins their failures.
type Fanout []port.Notifier

func (f Fanout) StockChanged(ctx context.Context, event domain.StockChangedEvent) error {
	var errs []error
	for _, n := range f {
		if err := n.StockChanged(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func encode(event domain.StockChangedEvent) ([]byte, error) {
	return json.Marshal(event)
}
