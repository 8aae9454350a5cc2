package chathub_test

import (
	"context"
	"encoding/json"
	"errors"
	"meetinclick/backend/internal/chathub"
	"meetinclick/backend/internal/kv"
	"meetinclick/backend/internal/models"
	"meetinclick/backend/internal/negotiation"
	"meetinclick/backend/internal/notify"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type hubFixture struct {
	broker     *kv.MemoryBroker
	ledger     *negotiation.Ledger
	negotiator *negotiation.Negotiator
	hub        *chathub.ManagerService
}

func newHubFixture(t *testing.T, matches chathub.Candidates) *hubFixture {
	t.Helper()
	broker := kv.NewMemoryBroker()
	store := kv.NewMemoryStore(broker)
	ledger := negotiation.NewLedger(store, notify.Nop{})
	negotiator := negotiation.NewNegotiator(store, ledger, notify.Nop{})
	hub := chathub.NewManagerService(broker, negotiator, ledger, matches)

	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-hub.Done()
	})
	return &hubFixture{broker: broker, ledger: ledger, negotiator: negotiator, hub: hub}
}

// connect registers a client and waits for its notification feed.
func (f *hubFixture) connect(t *testing.T, userID string) *MockClient {
	t.Helper()
	before := f.broker.Subscribers()
	c := newMockClient(userID)
	require.True(t, f.hub.Register(c))
	require.Eventually(t, func() bool { return f.broker.Subscribers() == before+1 }, time.Second, 5*time.Millisecond)
	return c
}

func (f *hubFixture) command(c chathub.Client, cmd chathub.Command) {
	f.hub.IncomingCh <- chathub.Incoming{Client: c, Command: cmd}
}

func (f *hubFixture) approvedConversation(t *testing.T, a, b string) string {
	t.Helper()
	ctx := context.Background()
	req, err := f.ledger.SendRequest(ctx, a, b)
	require.NoError(t, err)
	_, err = f.ledger.Respond(ctx, req.PairKey, b, models.DecisionApprove)
	require.NoError(t, err)
	id, err := f.negotiator.StartConversation(ctx, a, b)
	require.NoError(t, err)
	return id
}

func TestManager_ForwardsNotifications(t *testing.T) {
	f := newHubFixture(t, nil)
	alice := f.connect(t, "alice")

	err := notify.NewBrokerDispatcher(f.broker).Notify(context.Background(), models.Notification{
		UserID:  "alice",
		Kind:    models.NotifyConversationRequest,
		Payload: map[string]string{models.PayloadSenderID: "bob"},
	})
	require.NoError(t, err)

	env := alice.next(t)
	assert.Equal(t, chathub.EnvNotification, env.Type)
	assert.Equal(t, models.NotificationsPath("alice"), env.Path)

	var n models.Notification
	require.NoError(t, json.Unmarshal(env.Data, &n))
	assert.Equal(t, models.NotifyConversationRequest, n.Kind)
	assert.Equal(t, "bob", n.Payload[models.PayloadSenderID])
}

func TestManager_NotificationsOnlyReachAddressee(t *testing.T) {
	f := newHubFixture(t, nil)
	alice := f.connect(t, "alice")
	bob := f.connect(t, "bob")

	require.NoError(t, notify.NewBrokerDispatcher(f.broker).Notify(context.Background(),
		models.Notification{UserID: "bob", Kind: models.NotifyNewMessage}))

	assert.Equal(t, chathub.EnvNotification, bob.next(t).Type)
	alice.assertQuiet(t)
}

func TestManager_WatchConversation(t *testing.T) {
	f := newHubFixture(t, nil)
	id := f.approvedConversation(t, "alice", "bob")
	alice := f.connect(t, "alice")

	f.command(alice, chathub.Command{Type: chathub.CmdWatchConversation, ConversationID: id})
	ack := alice.next(t)
	require.Equal(t, chathub.EnvWatching, ack.Type)
	assert.Equal(t, "conversation:"+id, ack.WatchID)

	_, err := f.negotiator.SendMessage(context.Background(), id, "bob", "hello there")
	require.NoError(t, err)

	env := alice.next(t)
	assert.Equal(t, chathub.EnvChange, env.Type)
	assert.Equal(t, ack.WatchID, env.WatchID)
	assert.Equal(t, models.ConversationPath(id), env.Path)

	var conv models.Conversation
	require.NoError(t, json.Unmarshal(env.Data, &conv))
	require.Len(t, conv.Messages, 1)
	assert.Equal(t, "hello there", conv.Messages[0].Content)
}

func TestManager_WatchConversation_NonParticipantRejected(t *testing.T) {
	f := newHubFixture(t, nil)
	id := f.approvedConversation(t, "alice", "bob")
	carol := f.connect(t, "carol")

	f.command(carol, chathub.Command{Type: chathub.CmdWatchConversation, ConversationID: id})

	env := carol.next(t)
	assert.Equal(t, chathub.EnvError, env.Type)
	assert.Equal(t, "NOT_PARTICIPANT", env.Reason)
	assert.Equal(t, 1, f.broker.Subscribers())
}

func TestManager_WatchRequest(t *testing.T) {
	f := newHubFixture(t, nil)
	bob := f.connect(t, "bob")

	f.command(bob, chathub.Command{Type: chathub.CmdWatchRequest, OtherUserID: "bob"})
	env := bob.next(t)
	assert.Equal(t, chathub.EnvError, env.Type)
	assert.Equal(t, "INVALID_TARGET", env.Reason)

	f.command(bob, chathub.Command{Type: chathub.CmdWatchRequest, OtherUserID: "alice"})
	ack := bob.next(t)
	require.Equal(t, chathub.EnvWatching, ack.Type)
	assert.Equal(t, "request:alice", ack.WatchID)

	_, err := f.ledger.SendRequest(context.Background(), "alice", "bob")
	require.NoError(t, err)

	change := bob.next(t)
	assert.Equal(t, chathub.EnvChange, change.Type)
	assert.Equal(t, models.NewPairKey("alice", "bob").RequestPath(), change.Path)

	var req models.ConversationRequest
	require.NoError(t, json.Unmarshal(change.Data, &req))
	assert.Equal(t, models.RequestPending, req.Status)
}

func TestManager_UnwatchReleasesSubscription(t *testing.T) {
	f := newHubFixture(t, nil)
	id := f.approvedConversation(t, "alice", "bob")
	alice := f.connect(t, "alice")

	f.command(alice, chathub.Command{Type: chathub.CmdWatchConversation, ConversationID: id})
	ack := alice.next(t)
	require.Equal(t, chathub.EnvWatching, ack.Type)
	assert.Equal(t, 2, f.broker.Subscribers())

	f.command(alice, chathub.Command{Type: chathub.CmdUnwatch, WatchID: ack.WatchID})
	env := alice.next(t)
	assert.Equal(t, chathub.EnvUnwatched, env.Type)
	assert.Equal(t, 1, f.broker.Subscribers())

	_, err := f.negotiator.SendMessage(context.Background(), id, "bob", "anyone?")
	require.NoError(t, err)
	alice.assertQuiet(t)
}

func TestManager_RepeatedWatchReplacesPrevious(t *testing.T) {
	f := newHubFixture(t, nil)
	id := f.approvedConversation(t, "alice", "bob")
	alice := f.connect(t, "alice")

	for i := 0; i < 2; i++ {
		f.command(alice, chathub.Command{Type: chathub.CmdWatchConversation, ConversationID: id})
		require.Equal(t, chathub.EnvWatching, alice.next(t).Type)
	}
	assert.Equal(t, 2, f.broker.Subscribers())

	_, err := f.negotiator.SendMessage(context.Background(), id, "bob", "once")
	require.NoError(t, err)
	assert.Equal(t, chathub.EnvChange, alice.next(t).Type)
	alice.assertQuiet(t)
}

func TestManager_UnregisterReleasesEverything(t *testing.T) {
	f := newHubFixture(t, nil)
	id := f.approvedConversation(t, "alice", "bob")
	alice := f.connect(t, "alice")

	f.command(alice, chathub.Command{Type: chathub.CmdWatchConversation, ConversationID: id})
	require.Equal(t, chathub.EnvWatching, alice.next(t).Type)
	f.command(alice, chathub.Command{Type: chathub.CmdWatchRequest, OtherUserID: "bob"})
	require.Equal(t, chathub.EnvWatching, alice.next(t).Type)
	assert.Equal(t, 3, f.broker.Subscribers())

	f.hub.UnregisterCh <- alice
	alice.waitClosed(t)
	assert.Equal(t, 0, f.broker.Subscribers())
}

func TestManager_ShutdownClosesClients(t *testing.T) {
	broker := kv.NewMemoryBroker()
	store := kv.NewMemoryStore(broker)
	ledger := negotiation.NewLedger(store, notify.Nop{})
	hub := chathub.NewManagerService(broker, negotiation.NewNegotiator(store, ledger, notify.Nop{}), ledger, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	c := newMockClient("alice")
	require.True(t, hub.Register(c))
	cancel()
	<-hub.Done()

	c.waitClosed(t)
	assert.Equal(t, 0, broker.Subscribers())
	assert.False(t, hub.Register(newMockClient("bob")))
}

type flakyConversations struct {
	mu       sync.Mutex
	failures int
	broker   kv.Broker
}

func (f *flakyConversations) Subscribe(ctx context.Context, id, _ string) (*kv.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failures > 0 {
		f.failures--
		return nil, errors.New("connection refused")
	}
	return f.broker.Subscribe(ctx, models.ConversationPath(id))
}

func TestManager_SubscriptionFailureIsReportedAndRetryable(t *testing.T) {
	f := newHubFixture(t, nil)
	f.hub.Conversations = &flakyConversations{failures: 1, broker: f.broker}
	alice := f.connect(t, "alice")

	cmd := chathub.Command{Type: chathub.CmdWatchConversation, ConversationID: "alice_bob"}
	f.command(alice, cmd)
	env := alice.next(t)
	assert.Equal(t, chathub.EnvError, env.Type)
	assert.Equal(t, "STORE_UNAVAILABLE", env.Reason)
	assert.Equal(t, "UNAVAILABLE", env.Code)

	f.command(alice, cmd)
	assert.Equal(t, chathub.EnvWatching, alice.next(t).Type)
}

type fakeCandidates struct {
	lists chan []models.User
}

func (f *fakeCandidates) Watch(_ context.Context, _ string) (<-chan []models.User, error) {
	return f.lists, nil
}

func TestManager_WatchMatches(t *testing.T) {
	candidates := &fakeCandidates{lists: make(chan []models.User, 2)}
	f := newHubFixture(t, candidates)
	alice := f.connect(t, "alice")

	f.command(alice, chathub.Command{Type: chathub.CmdWatchMatches})
	ack := alice.next(t)
	require.Equal(t, chathub.EnvWatching, ack.Type)
	assert.Equal(t, "matches", ack.WatchID)

	candidates.lists <- []models.User{{ID: "bob", Username: "bob"}}
	env := alice.next(t)
	assert.Equal(t, chathub.EnvCandidates, env.Type)

	var users []models.User
	require.NoError(t, json.Unmarshal(env.Data, &users))
	require.Len(t, users, 1)
	assert.Equal(t, "bob", users[0].ID)
}

func TestManager_UnknownCommand(t *testing.T) {
	f := newHubFixture(t, nil)
	alice := f.connect(t, "alice")

	f.command(alice, chathub.Command{Type: "dance"})
	env := alice.next(t)
	assert.Equal(t, chathub.EnvError, env.Type)
	assert.Equal(t, "UNKNOWN_COMMAND", env.Reason)

	f.command(alice, chathub.Command{Type: chathub.CmdWatchMatches})
	assert.Equal(t, "UNKNOWN_COMMAND", alice.next(t).Reason)
}
