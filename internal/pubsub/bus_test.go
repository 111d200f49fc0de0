package pubsub

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, ch <-chan Message) Message {
	t.Helper()
	select {
	case msg := <-ch:
		return msg
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
		return Message{}
	}
}

func TestBus_BroadcastReachesTopicSubscribers(t *testing.T) {
	bus := New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	accountID := uuid.New()
	ch1 := bus.Subscribe(ctx, AccountTopic(accountID))
	ch2 := bus.Subscribe(ctx, AccountTopic(accountID))

	bus.Broadcast(AccountTopic(accountID), Message{Op: OpUpdate, Seq: 7, Table: "accounts"})

	msg := receive(t, ch1)
	assert.Equal(t, OpUpdate, msg.Op)
	assert.Equal(t, uint64(7), msg.Seq)
	assert.Equal(t, "accounts", receive(t, ch2).Table)
}

func TestBus_TopicsAreIsolated(t *testing.T) {
	bus := New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	other := bus.Subscribe(ctx, AccountTopic(uuid.New()))
	bus.Broadcast(AccountTopic(uuid.New()), Message{Op: OpInsert})

	select {
	case msg := <-other:
		t.Fatalf("unexpected message on unrelated topic: %+v", msg)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBus_SubscriptionEndsWithContext(t *testing.T) {
	bus := New()
	ctx, cancel := context.WithCancel(context.Background())

	ch := bus.Subscribe(ctx, "account:x")
	cancel()

	// Channel closes once the unsubscribe goroutine runs.
	require.Eventually(t, func() bool {
		select {
		case _, open := <-ch:
			return !open
		default:
			return false
		}
	}, time.Second, 10*time.Millisecond)
}

func TestBus_DisconnectSignalsSessionTopic(t *testing.T) {
	bus := New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tokenID := uuid.New()
	ch := bus.Subscribe(ctx, SessionTopic(tokenID))

	bus.Disconnect(tokenID)

	msg := receive(t, ch)
	assert.Equal(t, OpDisconnect, msg.Op)
	assert.Nil(t, msg.Old)
	assert.Nil(t, msg.New)
}

func TestBus_FullSubscriberDoesNotBlockBroadcast(t *testing.T) {
	bus := New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	topic := "account:slow"
	bus.Subscribe(ctx, topic)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 200; i++ {
			bus.Broadcast(topic, Message{Op: OpUpdate, Seq: uint64(i)})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("broadcast blocked on a slow subscriber")
	}
}
