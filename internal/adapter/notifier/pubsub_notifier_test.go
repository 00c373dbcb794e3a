package notifier

import (
	"context"
	"encoding/json"
	"testing"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/rl1809/goods-issue/internal/core/domain"
)

func newFakePubSub(t *testing.T) (*pstest.Server, *pubsub.Client) {
	t.Helper()
	ctx := context.Background()

	srv := pstest.NewServer()
	t.Cleanup(func() { srv.Close() })

	conn, err := grpc.NewClient(srv.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)

	client, err := pubsub.NewClient(ctx, "test-project", option.WithGRPCConn(conn))
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return srv, client
}

func TestPubSubNotifier_Publishes(t *testing.T) {
	srv, client := newFakePubSub(t)
	ctx := context.Background()

	_, err := client.CreateTopic(ctx, "stock-changed")
	require.NoError(t, err)

	n, err := NewPubSubNotifier(client, "stock-changed")
	require.NoError(t, err)
	defer n.Stop()

	event := testEvent()
	require.NoError(t, n.StockChanged(ctx, event))

	msgs := srv.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "steel", msgs[0].Attributes["material"])
	assert.Equal(t, "forward", msgs[0].Attributes["direction"])
	assert.Equal(t, "7", msgs[0].Attributes["order_id"])

	var got domain.StockChangedEvent
	require.NoError(t, json.Unmarshal(msgs[0].Data, &got))
	assert.Equal(t, event.EventID, got.EventID)
	assert.Equal(t, 2, got.Processed)
}

func TestPubSubNotifier_MissingTopic(t *testing.T) {
	_, client := newFakePubSub(t)

	n, err := NewPubSubNotifier(client, "does-not-exist")
	require.NoError(t, err)
	defer n.Stop()

	assert.Error(t, n.StockChanged(context.Background(), testEvent()))
}

func TestNewPubSubNotifier_Validates(t *testing.T) {
	_, err := NewPubSubNotifier(nil, "t")
	assert.Error(t, err)

	_, client := newFakePubSub(t)
	_, err = NewPubSubNotifier(client, "")
	assert.Error(t, err)
}
