package kv

import (
	"context"
	"errors"
	"meetinclick/backend/internal/config"
	"meetinclick/backend/internal/models"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const subscriberBuffer = 64

// MemoryBroker is an in-process Broker. Slow subscribers lose events once
// their buffer is full.
type MemoryBroker struct {
	mu     sync.Mutex
	subs   map[uint64]*memorySub
	nextID uint64
}

type memorySub struct {
	path string
	ch   chan models.ChangeEvent
}

func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{subs: make(map[uint64]*memorySub)}
}

func (b *MemoryBroker) Publish(_ context.Context, ev models.ChangeEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, s := range b.subs {
		if !Covers(s.path, ev.Path) {
			continue
		}
		select {
		case s.ch <- ev:
		default:
			logrus.WithFields(logrus.Fields{"component": "kv", "path": ev.Path}).
				Warn("subscriber buffer full, dropping change event")
		}
	}
	return nil
}

func (b *MemoryBroker) Subscribe(ctx context.Context, path string) (*Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ch := make(chan models.ChangeEvent, subscriberBuffer)

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = &memorySub{path: path, ch: ch}
	b.mu.Unlock()

	sub := newSubscription(ch, func() {
		b.mu.Lock()
		delete(b.subs, id)
		close(ch)
		b.mu.Unlock()
	})
	sub.closeOnCancel(ctx)
	return sub, nil
}

// Subscribers returns the number of open subscriptions.
func (b *MemoryBroker) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

type memoryEntry struct {
	value   []byte
	version uint64
}

// MemoryStore keeps everything in a map. Used in tests and single-node mode.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	version uint64
	broker  Broker
	now     func() time.Time
}

// NewMemoryStore creates a store publishing on broker, or on a private
// MemoryBroker when broker is nil.
func NewMemoryStore(broker Broker) *MemoryStore {
	if broker == nil {
		broker = NewMemoryBroker()
	}
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		broker:  broker,
		now:     time.Now,
	}
}

func (s *MemoryStore) Get(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[path]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(e.value), nil
}

func (s *MemoryStore) Set(ctx context.Context, path string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	s.version++
	s.entries[path] = memoryEntry{value: clone(value), version: s.version}
	s.mu.Unlock()

	s.publish(ctx, path, value, false)
	return nil
}

func (s *MemoryStore) Update(ctx context.Context, path string, fn UpdateFunc) error {
	for attempt := 0; attempt < config.MaxUpdateRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		s.mu.Lock()
		e, exists := s.entries[path]
		s.mu.Unlock()

		next, err := fn(clone(e.value), exists)
		if errors.Is(err, ErrNoWrite) {
			return nil
		}
		if err != nil {
			return err
		}

		s.mu.Lock()
		current, stillExists := s.entries[path]
		if stillExists != exists || current.version != e.version {
			s.mu.Unlock()
			continue
		}
		s.version++
		s.entries[path] = memoryEntry{value: clone(next), version: s.version}
		s.mu.Unlock()

		s.publish(ctx, path, next, false)
		return nil
	}
	return ErrConflict
}

func (s *MemoryStore) Delete(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	_, ok := s.entries[path]
	if ok {
		s.version++
		delete(s.entries, path)
	}
	s.mu.Unlock()
	if !ok {
		return nil
	}
	s.publish(ctx, path, nil, true)
	return nil
}

func (s *MemoryStore) Subscribe(ctx context.Context, path string) (*Subscription, error) {
	return s.broker.Subscribe(ctx, path)
}

func (s *MemoryStore) publish(ctx context.Context, path string, value []byte, deleted bool) {
	err := s.broker.Publish(ctx, models.ChangeEvent{
		Path:    path,
		Value:   clone(value),
		Deleted: deleted,
		At:      s.now().UTC(),
	})
	if err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{"component": "kv", "path": path}).
			Error("change event not published")
	}
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
