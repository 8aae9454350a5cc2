package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"meetinclick/backend/internal/models"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"
)

const (
	TypeDeliver   = "notify:deliver"
	QueueName     = "notifications"
	DeliveryRetry = 3
)

// Enqueuer is the part of *asynq.Client used by QueueDispatcher.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// QueueDispatcher moves delivery off the request path: Notify only enqueues
// a task, a worker registered with RegisterDeliveryTask does the sending.
type QueueDispatcher struct {
	client Enqueuer
}

func NewQueueDispatcher(client Enqueuer) *QueueDispatcher {
	return &QueueDispatcher{client: client}
}

func NewDeliveryTask(n models.Notification) (*asynq.Task, error) {
	payload, err := json.Marshal(n)
	if err != nil {
		return nil, fmt.Errorf("notify: encode task payload: %w", err)
	}
	return asynq.NewTask(TypeDeliver, payload), nil
}

func (q *QueueDispatcher) Notify(ctx context.Context, n models.Notification) error {
	task, err := NewDeliveryTask(n)
	if err != nil {
		return err
	}
	if _, err := q.client.EnqueueContext(ctx, task, asynq.Queue(QueueName), asynq.MaxRetry(DeliveryRetry)); err != nil {
		return fmt.Errorf("notify: enqueue %s for %s: %w", n.Kind, n.UserID, err)
	}
	return nil
}

// HandleDelivery decodes a delivery task and passes it to d.
func HandleDelivery(d Dispatcher) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var n models.Notification
		if err := json.Unmarshal(t.Payload(), &n); err != nil {
			// retrying a malformed payload cannot succeed
			return fmt.Errorf("notify: decode task: %v: %w", err, asynq.SkipRetry)
		}
		return d.Notify(ctx, n)
	}
}

// RegisterDeliveryTask installs the delivery handler on mux.
func RegisterDeliveryTask(mux *asynq.ServeMux, d Dispatcher) {
	mux.Handle(TypeDeliver, HandleDelivery(d))
}

// NewWorker builds an asynq server consuming the notifications queue.
func NewWorker(opt asynq.RedisConnOpt, concurrency int) *asynq.Server {
	log := logrus.WithField("component", "notify")
	return asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues:      map[string]int{QueueName: 1},
		Logger:      log,
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			log.WithError(err).WithField("task", task.Type()).Warn("notification delivery failed")
		}),
	})
}
