// Package notify delivers fire-and-forget notifications to users. Callers
// notify after their write committed and only log delivery failures.
package notify

import (
	"context"
	"errors"
	"meetinclick/backend/internal/models"
)

type Dispatcher interface {
	Notify(ctx context.Context, n models.Notification) error
}

// Func adapts a function to Dispatcher.
type Func func(ctx context.Context, n models.Notification) error

func (f Func) Notify(ctx context.Context, n models.Notification) error {
	return f(ctx, n)
}

// Nop drops every notification.
type Nop struct{}

func (Nop) Notify(context.Context, models.Notification) error { return nil }

// Multi fans a notification out to every dispatcher. One failing target
// does not stop the others.
type Multi []Dispatcher

func (m Multi) Notify(ctx context.Context, n models.Notification) error {
	var errs []error
	for _, d := range m {
		if d == nil {
			continue
		}
		if err := d.Notify(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
