// Package kv is the hierarchical key-value port behind requests, conversations
// and change notifications. Paths are slash separated ("requests/a_b").
package kv

import (
	"context"
	"errors"
	"meetinclick/backend/internal/models"
	"strings"
	"sync"
)

var (
	ErrNotFound = errors.New("kv: not found")
	// ErrConflict is returned when Update lost the race too many times in a row.
	ErrConflict = errors.New("kv: too many concurrent updates")
	// ErrNoWrite lets an UpdateFunc finish without writing anything.
	ErrNoWrite = errors.New("kv: no write")
)

// UpdateFunc receives the current value (nil, false when absent) and returns
// the value to store. It may run more than once and must not have side effects.
type UpdateFunc func(current []byte, exists bool) ([]byte, error)

type Store interface {
	Get(ctx context.Context, path string) ([]byte, error)
	Set(ctx context.Context, path string, value []byte) error
	// Update is a compare-and-set loop around fn.
	Update(ctx context.Context, path string, fn UpdateFunc) error
	Delete(ctx context.Context, path string) error
	// Subscribe delivers change events for path and everything below it.
	Subscribe(ctx context.Context, path string) (*Subscription, error)
}

// Broker fans change events out to subscribers, possibly across processes.
type Broker interface {
	Publish(ctx context.Context, ev models.ChangeEvent) error
	Subscribe(ctx context.Context, path string) (*Subscription, error)
}

// Subscription is a live feed of change events. C is closed once the
// subscription is released.
type Subscription struct {
	C <-chan models.ChangeEvent

	done    chan struct{}
	once    sync.Once
	release func()
}

func newSubscription(c <-chan models.ChangeEvent, release func()) *Subscription {
	return &Subscription{C: c, done: make(chan struct{}), release: release}
}

// Close releases the subscription. Safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		close(s.done)
		if s.release != nil {
			s.release()
		}
	})
}

// Done is closed when Close has been called.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// closeOnCancel ties the subscription lifetime to ctx.
func (s *Subscription) closeOnCancel(ctx context.Context) {
	if ctx.Done() == nil {
		return
	}
	go func() {
		select {
		case <-ctx.Done():
			s.Close()
		case <-s.done:
		}
	}()
}

// Covers reports whether an event at eventPath is visible to a subscriber of path.
func Covers(path, eventPath string) bool {
	path = strings.Trim(path, "/")
	eventPath = strings.Trim(eventPath, "/")
	if path == "" {
		return true
	}
	return eventPath == path || strings.HasPrefix(eventPath, path+"/")
}
