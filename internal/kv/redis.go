package kv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"meetinclick/backend/internal/config"
	"meetinclick/backend/internal/models"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// RedisBroker publishes change events on "{prefix}:kv:{path}" channels and
// subscribes with PSUBSCRIBE so descendants are delivered too.
type RedisBroker struct {
	client *redis.Client
	prefix string
}

func NewRedisBroker(client *redis.Client, prefix string) *RedisBroker {
	return &RedisBroker{client: client, prefix: prefix}
}

func (b *RedisBroker) channel(path string) string {
	return b.prefix + ":kv:" + path
}

func (b *RedisBroker) Publish(ctx context.Context, ev models.ChangeEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("kv: encode change event: %w", err)
	}
	if err := b.client.Publish(ctx, b.channel(ev.Path), payload).Err(); err != nil {
		return fmt.Errorf("kv: redis publish %s: %w", ev.Path, err)
	}
	return nil
}

func (b *RedisBroker) Subscribe(ctx context.Context, path string) (*Subscription, error) {
	ps := b.client.PSubscribe(ctx, b.channel(path), b.channel(path)+"/*")
	// Receive blocks until Redis confirms, so a dead server fails here.
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("kv: redis psubscribe %s: %w", path, err)
	}

	out := make(chan models.ChangeEvent, subscriberBuffer)
	sub := newSubscription(out, func() { _ = ps.Close() })
	log := logrus.WithFields(logrus.Fields{"component": "kv", "path": path})

	go func() {
		defer close(out)
		msgs := ps.Channel()
		for {
			select {
			case <-sub.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var ev models.ChangeEvent
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					log.WithError(err).Warn("dropping malformed change event")
					continue
				}
				select {
				case out <- ev:
				case <-sub.Done():
					return
				}
			}
		}
	}()

	sub.closeOnCancel(ctx)
	return sub, nil
}

// RedisStore keeps values under "{prefix}:{path}".
type RedisStore struct {
	client *redis.Client
	prefix string
	broker Broker
}

// NewRedisStore uses a RedisBroker on the same client when broker is nil.
func NewRedisStore(client *redis.Client, prefix string, broker Broker) *RedisStore {
	if broker == nil {
		broker = NewRedisBroker(client, prefix)
	}
	return &RedisStore{client: client, prefix: prefix, broker: broker}
}

func (s *RedisStore) key(path string) string {
	return s.prefix + ":" + path
}

func (s *RedisStore) Get(ctx context.Context, path string) ([]byte, error) {
	val, err := s.client.Get(ctx, s.key(path)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("kv: redis get %s: %w", path, err)
	}
	return val, nil
}

func (s *RedisStore) Set(ctx context.Context, path string, value []byte) error {
	if err := s.client.Set(ctx, s.key(path), value, 0).Err(); err != nil {
		return fmt.Errorf("kv: redis set %s: %w", path, err)
	}
	s.publish(ctx, path, value, false)
	return nil
}

func (s *RedisStore) Update(ctx context.Context, path string, fn UpdateFunc) error {
	key := s.key(path)

	for attempt := 0; attempt < config.MaxUpdateRetries; attempt++ {
		var (
			next    []byte
			skipped bool
			fnErr   error
		)
		err := s.client.Watch(ctx, func(tx *redis.Tx) error {
			current, err := tx.Get(ctx, key).Bytes()
			exists := true
			if errors.Is(err, redis.Nil) {
				current, exists = nil, false
			} else if err != nil {
				return fmt.Errorf("kv: redis get %s: %w", path, err)
			}

			next, fnErr = fn(current, exists)
			if errors.Is(fnErr, ErrNoWrite) {
				skipped = true
				return nil
			}
			if fnErr != nil {
				return fnErr
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, next, 0)
				return nil
			})
			return err
		}, key)

		switch {
		case errors.Is(err, redis.TxFailedErr):
			continue
		case fnErr != nil && !skipped:
			return fnErr
		case err != nil:
			return fmt.Errorf("kv: redis update %s: %w", path, err)
		case skipped:
			return nil
		}
		s.publish(ctx, path, next, false)
		return nil
	}
	return ErrConflict
}

func (s *RedisStore) Delete(ctx context.Context, path string) error {
	n, err := s.client.Del(ctx, s.key(path)).Result()
	if err != nil {
		return fmt.Errorf("kv: redis del %s: %w", path, err)
	}
	if n == 0 {
		return nil
	}
	s.publish(ctx, path, nil, true)
	return nil
}

func (s *RedisStore) Subscribe(ctx context.Context, path string) (*Subscription, error) {
	return s.broker.Subscribe(ctx, path)
}

// publish runs after the write committed, so a failure only costs watchers
// one event and is logged rather than returned.
func (s *RedisStore) publish(ctx context.Context, path string, value []byte, deleted bool) {
	err := s.broker.Publish(ctx, models.ChangeEvent{
		Path:    path,
		Value:   value,
		Deleted: deleted,
		At:      time.Now().UTC(),
	})
	if err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{"component": "kv", "path": path}).
			Error("change event not published")
	}
}
