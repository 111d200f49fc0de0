package hooks

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/firezone/firezone-sub013/internal/pubsub"
)

// ---------- Mock flow store ----------

type mockFlows struct {
	mock.Mock
}

func (m *mockFlows) DeleteForAccount(ctx context.Context, accountID uuid.UUID) (int64, error) {
	args := m.Called(ctx, accountID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockFlows) DeleteForPolicy(ctx context.Context, accountID, policyID uuid.UUID) (int64, error) {
	args := m.Called(ctx, accountID, policyID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockFlows) DeleteForResource(ctx context.Context, accountID, resourceID uuid.UUID) (int64, error) {
	args := m.Called(ctx, accountID, resourceID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockFlows) DeleteForResourceGatewayGroup(ctx context.Context, accountID, resourceID, gatewayGroupID uuid.UUID) (int64, error) {
	args := m.Called(ctx, accountID, resourceID, gatewayGroupID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockFlows) DeleteForClient(ctx context.Context, accountID, clientID uuid.UUID) (int64, error) {
	args := m.Called(ctx, accountID, clientID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockFlows) DeleteForGateway(ctx context.Context, accountID, gatewayID uuid.UUID) (int64, error) {
	args := m.Called(ctx, accountID, gatewayID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockFlows) DeleteForGatewayGroup(ctx context.Context, accountID, gatewayGroupID uuid.UUID) (int64, error) {
	args := m.Called(ctx, accountID, gatewayGroupID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockFlows) DeleteForToken(ctx context.Context, accountID, tokenID uuid.UUID) (int64, error) {
	args := m.Called(ctx, accountID, tokenID)
	return args.Get(0).(int64), args.Error(1)
}

// ---------- Recording bus ----------

type sentMessage struct {
	topic string
	msg   pubsub.Message
}

// recordingBus captures broadcasts and disconnects for assertions.
type recordingBus struct {
	mu           sync.Mutex
	messages     []sentMessage
	disconnected []uuid.UUID
}

func (b *recordingBus) Broadcast(topic string, msg pubsub.Message) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.messages = append(b.messages, sentMessage{topic: topic, msg: msg})
}

func (b *recordingBus) Disconnect(tokenID uuid.UUID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.disconnected = append(b.disconnected, tokenID)
}

func (b *recordingBus) lastOp() pubsub.Op {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.messages) == 0 {
		return ""
	}
	return b.messages[len(b.messages)-1].msg.Op
}

// ---------- Stub session index ----------

type stubSessions struct {
	tokenIDs []uuid.UUID
	err      error
	calls    int
}

func (s *stubSessions) TokenIDsForProvider(ctx context.Context, accountID, providerID uuid.UUID) ([]uuid.UUID, error) {
	s.calls++
	return s.tokenIDs, s.err
}
