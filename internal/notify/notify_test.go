package notify_test

import (
	"context"
	"encoding/json"
	"errors"
	"meetinclick/backend/internal/kv"
	"meetinclick/backend/internal/localization"
	"meetinclick/backend/internal/models"
	"meetinclick/backend/internal/notify"
	apperr "meetinclick/backend/pkg/errors"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestMulti_DeliversToAllAndJoinsErrors(t *testing.T) {
	var got []string
	record := func(name string, err error) notify.Dispatcher {
		return notify.Func(func(_ context.Context, n models.Notification) error {
			got = append(got, name+":"+n.UserID)
			return err
		})
	}
	boom := errors.New("boom")

	err := notify.Multi{record("a", nil), nil, record("b", boom), record("c", nil)}.
		Notify(context.Background(), models.Notification{UserID: "u"})

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"a:u", "b:u", "c:u"}, got)
	assert.NoError(t, notify.Nop{}.Notify(context.Background(), models.Notification{}))
}

func TestBrokerDispatcher_PublishesOnUserPath(t *testing.T) {
	ctx := context.Background()
	broker := kv.NewMemoryBroker()
	sub, err := broker.Subscribe(ctx, models.NotificationsPath("bob"))
	require.NoError(t, err)
	defer sub.Close()

	d := notify.NewBrokerDispatcher(broker)
	require.NoError(t, d.Notify(ctx, models.Notification{UserID: "alice", Kind: models.NotifyNewMessage}))
	require.NoError(t, d.Notify(ctx, models.Notification{UserID: "bob", Kind: models.NotifyConversationRequest}))

	select {
	case ev := <-sub.C:
		assert.Equal(t, "notifications/bob", ev.Path)
		var n models.Notification
		require.NoError(t, json.Unmarshal(ev.Value, &n))
		assert.Equal(t, models.NotifyConversationRequest, n.Kind)
		assert.False(t, n.At.IsZero())
	case <-time.After(time.Second):
		t.Fatal("notification not published")
	}
}

type fakeEnqueuer struct {
	tasks []*asynq.Task
	err   error
}

func (f *fakeEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.tasks = append(f.tasks, task)
	return &asynq.TaskInfo{ID: "1", Queue: notify.QueueName}, nil
}

func TestQueueDispatcher_RoundTripsThroughWorker(t *testing.T) {
	ctx := context.Background()
	q := &fakeEnqueuer{}
	n := models.Notification{
		UserID:  "bob",
		Kind:    models.NotifyRequestResolved,
		Payload: map[string]string{models.PayloadDecision: "approve"},
	}

	require.NoError(t, notify.NewQueueDispatcher(q).Notify(ctx, n))
	require.Len(t, q.tasks, 1)
	assert.Equal(t, notify.TypeDeliver, q.tasks[0].Type())

	var delivered models.Notification
	handler := notify.HandleDelivery(notify.Func(func(_ context.Context, got models.Notification) error {
		delivered = got
		return nil
	}))
	require.NoError(t, handler.ProcessTask(ctx, q.tasks[0]))
	assert.Equal(t, n.UserID, delivered.UserID)
	assert.Equal(t, n.Payload, delivered.Payload)
}

func TestQueueDispatcher_EnqueueFailure(t *testing.T) {
	q := &fakeEnqueuer{err: errors.New("redis down")}
	err := notify.NewQueueDispatcher(q).Notify(context.Background(), models.Notification{UserID: "bob"})
	assert.Error(t, err)
}

func TestHandleDelivery_MalformedPayloadSkipsRetry(t *testing.T) {
	handler := notify.HandleDelivery(notify.Nop{})
	err := handler.ProcessTask(context.Background(), asynq.NewTask(notify.TypeDeliver, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestRegisterDeliveryTask(t *testing.T) {
	mux := asynq.NewServeMux()
	called := false
	notify.RegisterDeliveryTask(mux, notify.Func(func(context.Context, models.Notification) error {
		called = true
		return nil
	}))

	task, err := notify.NewDeliveryTask(models.Notification{UserID: "u"})
	require.NoError(t, err)
	require.NoError(t, mux.ProcessTask(context.Background(), task))
	assert.True(t, called)
}

type MockUsers struct {
	mock.Mock
}

func (m *MockUsers) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

type captureBot struct {
	sent []tgbotapi.Chattable
}

func (c *captureBot) Send(msg tgbotapi.Chattable) (tgbotapi.Message, error) {
	c.sent = append(c.sent, msg)
	return tgbotapi.Message{}, nil
}

func TestTelegramDispatcher(t *testing.T) {
	chatID := int64(99)
	users := new(MockUsers)
	users.On("GetUserByID", mock.Anything, "linked").Return(&models.User{ID: "linked", TelegramChatID: &chatID}, nil)
	users.On("GetUserByID", mock.Anything, "unlinked").Return(&models.User{ID: "unlinked"}, nil)
	users.On("GetUserByID", mock.Anything, "gone").Return(nil, apperr.ErrUserNotFound)
	bot := &captureBot{}
	d := notify.NewTelegramDispatcher(users, bot, localization.Default())
	ctx := context.Background()

	n := models.Notification{Kind: models.NotifyNewMessage, Payload: map[string]string{models.PayloadSenderName: "Ann", models.PayloadContent: "hey"}}

	n.UserID = "unlinked"
	require.NoError(t, d.Notify(ctx, n))
	n.UserID = "gone"
	require.NoError(t, d.Notify(ctx, n))
	assert.Empty(t, bot.sent)

	n.UserID = "linked"
	require.NoError(t, d.Notify(ctx, n))
	require.Len(t, bot.sent, 1)
	assert.Equal(t, "New message from Ann: hey", bot.sent[0].(tgbotapi.MessageConfig).Text)
}
