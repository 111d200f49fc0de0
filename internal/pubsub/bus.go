// Package pubsub is the broadcast fabric between the cascade handlers and
// live gateway/client connections. Two topic families exist: account
// topics carry entity change envelopes, session topics carry an empty
// disconnect signal.
package pubsub

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Topic names.
func AccountTopic(accountID uuid.UUID) string { return "account:" + accountID.String() }
func SessionTopic(tokenID uuid.UUID) string   { return "session:" + tokenID.String() }

// Op mirrors the change-stream operation that produced a broadcast.
type Op string

const (
	OpInsert     Op = "insert"
	OpUpdate     Op = "update"
	OpDelete     Op = "delete"
	OpDisconnect Op = "disconnect"
)

// Message is the envelope delivered to subscribers. Old and New are the
// row images for account-topic broadcasts; both are nil on a session
// disconnect signal.
type Message struct {
	Op    Op             `json:"op"`
	Seq   uint64         `json:"lsn"`
	Table string         `json:"table,omitempty"`
	Old   map[string]any `json:"old_struct,omitempty"`
	New   map[string]any `json:"struct,omitempty"`
}

type subscriber struct {
	topic string
	ch    chan Message
}

// Bus fan-outs messages to all subscribers of a topic. Delivery is
// best-effort: a subscriber whose buffer is full misses the message rather
// than blocking the cascade path.
type Bus struct {
	mu   sync.RWMutex
	subs map[int]*subscriber
	next int
}

func New() *Bus {
	return &Bus{subs: make(map[int]*subscriber)}
}

// Subscribe registers a subscriber for a topic and returns its channel.
// The channel is closed when the provided context ends.
func (b *Bus) Subscribe(ctx context.Context, topic string) <-chan Message {
	sub := &subscriber{topic: topic, ch: make(chan Message, 64)}

	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = sub
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.subs, id)
		close(sub.ch)
		b.mu.Unlock()
	}()

	return sub.ch
}

// Broadcast delivers the message to every current subscriber of the topic.
func (b *Bus) Broadcast(topic string, msg Message) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, sub := range b.subs {
		if sub.topic != topic {
			continue
		}
		select {
		case sub.ch <- msg:
		default:
		}
	}
}

// Disconnect signals every live connection bound to the session topic to
// terminate.
func (b *Bus) Disconnect(tokenID uuid.UUID) {
	b.Broadcast(SessionTopic(tokenID), Message{Op: OpDisconnect})
}
