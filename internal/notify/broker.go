package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"meetinclick/backend/internal/kv"
	"meetinclick/backend/internal/models"
	"time"
)

// BrokerDispatcher publishes on notifications/{userID}, where the realtime
// hub picks it up for the user's open sessions.
type BrokerDispatcher struct {
	Broker kv.Broker
}

func NewBrokerDispatcher(b kv.Broker) *BrokerDispatcher {
	return &BrokerDispatcher{Broker: b}
}

func (d *BrokerDispatcher) Notify(ctx context.Context, n models.Notification) error {
	if n.At.IsZero() {
		n.At = time.Now().UTC()
	}
	value, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("notify: encode notification: %w", err)
	}
	return d.Broker.Publish(ctx, models.ChangeEvent{
		Path:  models.NotificationsPath(n.UserID),
		Value: value,
		At:    n.At,
	})
}
