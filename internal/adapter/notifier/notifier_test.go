package notifier

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/goods-issue/internal/core/domain"
)

func testEvent() domain.StockChangedEvent {
	return domain.StockChangedEvent{
		EventID:     uuid.New(),
		OrderID:     7,
		OrderNumber: "ZL-7",
		Material:    domain.MaterialSteel,
		Direction:   domain.DirectionForward,
		Processed:   2,
	}
}

func TestLogNotifier(t *testing.T) {
	logger, hook := test.NewNullLogger()
	n := NewLogNotifier(logger)

	require.NoError(t, n.StockChanged(context.Background(), testEvent()))
	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.InfoLevel, entry.Level)
	assert.Equal(t, int64(7), entry.Data["order_id"])
	assert.Equal(t, 2, entry.Data["processed"])

	event := testEvent()
	event.BelowMinimum = []string{"S-7"}
	require.NoError(t, n.StockChanged(context.Background(), event))
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
}

type recordingNotifier struct {
	events []domain.StockChangedEvent
	err    error
}

func (r *recordingNotifier) StockChanged(_ context.Context, event domain.StockChangedEvent) error {
	r.events = append(r.events, event)
	return r.err
}

func TestFanout_DeliversToAllAndJoinsErrors(t *testing.T) {
	down := errors.New("broker down")
	first := &recordingNotifier{err: down}
	second := &recordingNotifier{}

	err := Fanout{first, second}.StockChanged(context.Background(), testEvent())
	assert.ErrorIs(t, err, down)
	assert.Len(t, first.events, 1)
	assert.Len(t, second.events, 1)

	assert.NoError(t, Fanout{second}.StockChanged(context.Background(), testEvent()))
	assert.NoError(t, Fanout{}.StockChanged(context.Background(), testEvent()))
}
