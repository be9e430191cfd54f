package broker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryBroker_DeliverAndConsume(t *testing.T) {
	b := NewInMemoryBroker(8)
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	deliveries, err := b.Consume(ctx)
	require.NoError(t, err)

	b.Deliver("loan.create_request", []byte(`{"user_id":1}`), "msg-1")

	select {
	case d := <-deliveries:
		assert.Equal(t, "loan.create_request", d.RoutingKey)
		assert.Equal(t, "msg-1", d.MessageID)
		assert.False(t, d.Redelivered)
		require.NoError(t, d.Ack())
	case <-time.After(time.Second):
		t.Fatal("no delivery received")
	}
}

func TestInMemoryBroker_RequeueRedelivers(t *testing.T) {
	b := NewInMemoryBroker(8)
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	deliveries, err := b.Consume(ctx)
	require.NoError(t, err)

	b.Deliver("loan.return_request", []byte(`{"loan_id":1}`), "")

	first := <-deliveries
	require.NoError(t, first.Requeue())

	select {
	case second := <-deliveries:
		assert.True(t, second.Redelivered)
		assert.Equal(t, first.Body, second.Body)
		require.NoError(t, second.Ack())
	case <-time.After(time.Second):
		t.Fatal("requeued delivery not redelivered")
	}
}

func TestInMemoryBroker_RequeueFullSurfaces(t *testing.T) {
	b := NewInMemoryBroker(1)
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	deliveries, err := b.Consume(ctx)
	require.NoError(t, err)

	b.Deliver("loan.renew_request", []byte(`{"loan_id":1}`), "")
	first := <-deliveries
	b.Deliver("loan.renew_request", []byte(`{"loan_id":2}`), "")
	second := <-deliveries

	// Stop the bridge so requeued messages stay buffered.
	cancel()
	for range deliveries {
	}

	require.NoError(t, first.Requeue())
	// The requeue buffer holds one message; the second cannot be dropped
	// silently.
	assert.ErrorIs(t, second.Requeue(), ErrRequeueFull)
}

func TestInMemoryBroker_PublishCaptured(t *testing.T) {
	b := NewInMemoryBroker(1)
	defer b.Close()

	require.NoError(t, b.Publish(context.Background(), "loan.created", []byte(`{"loan_id":1}`)))

	published := b.Published()
	require.Len(t, published, 1)
	assert.Equal(t, "loan.created", published[0].RoutingKey)
}

func TestInMemoryBroker_ClosedRejects(t *testing.T) {
	b := NewInMemoryBroker(1)
	require.NoError(t, b.Close())

	_, err := b.Consume(context.Background())
	assert.ErrorIs(t, err, ErrBrokerClosed)

	err = b.Publish(context.Background(), "loan.created", nil)
	assert.ErrorIs(t, err, ErrBrokerClosed)
}
