// Package negotiation holds the request ledger and the conversation
// negotiator. Every read-modify-write runs inside kv.Store.Update.
package negotiation

import (
	"context"
	"encoding/json"
	"errors"
	"meetinclick/backend/internal/kv"
	"meetinclick/backend/internal/models"
	"meetinclick/backend/internal/notify"
	apperr "meetinclick/backend/pkg/errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// UserLookup resolves display names and checks that a user exists.
type UserLookup interface {
	GetUserByID(ctx context.Context, id string) (*models.User, error)
}

// Ledger keeps exactly one conversation request per unordered pair of users.
type Ledger struct {
	Store    kv.Store
	Notifier notify.Dispatcher
	// Users is optional. When set, requests to unknown users are rejected
	// and notifications carry the sender's username.
	Users UserLookup

	now func() time.Time
	log *logrus.Entry
}

func NewLedger(store kv.Store, notifier notify.Dispatcher) *Ledger {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &Ledger{
		Store:    store,
		Notifier: notifier,
		now:      time.Now,
		log:      logrus.WithField("component", "ledger"),
	}
}

func validPair(a, b string) bool {
	return a != "" && b != "" && a != b
}

// SendRequest records a pending request from senderID to recipientID. Any
// existing record for the pair, in either direction and any state, makes
// this a duplicate.
func (l *Ledger) SendRequest(ctx context.Context, senderID, recipientID string) (*models.ConversationRequest, error) {
	if !validPair(senderID, recipientID) {
		return nil, apperr.ErrInvalidTarget
	}
	if l.Users != nil {
		if _, err := l.Users.GetUserByID(ctx, recipientID); err != nil {
			return nil, err
		}
	}

	key := models.NewPairKey(senderID, recipientID)
	req := &models.ConversationRequest{
		ID:          uuid.NewString(),
		PairKey:     key,
		SenderID:    senderID,
		RecipientID: recipientID,
		Status:      models.RequestPending,
		CreatedAt:   l.now().UTC(),
	}

	err := l.Store.Update(ctx, key.RequestPath(), func(_ []byte, exists bool) ([]byte, error) {
		if exists {
			return nil, apperr.ErrDuplicateRequest
		}
		return json.Marshal(req)
	})
	if err != nil {
		return nil, apperr.StoreUnavailable(err)
	}

	l.log.WithFields(logrus.Fields{"pair": key, "sender": senderID}).Info("conversation request sent")
	l.notify(ctx, models.Notification{
		UserID: recipientID,
		Kind:   models.NotifyConversationRequest,
		Payload: map[string]string{
			models.PayloadRequestID:  req.ID,
			models.PayloadPairKey:    key.String(),
			models.PayloadSenderID:   senderID,
			models.PayloadSenderName: l.username(ctx, senderID),
		},
	})
	return req, nil
}

// Respond applies the recipient's decision to a pending request.
func (l *Ledger) Respond(ctx context.Context, pair models.PairKey, responderID string, decision models.Decision) (*models.ConversationRequest, error) {
	status, ok := decision.Status()
	if !ok {
		return nil, apperr.ErrInvalidDecision
	}
	if _, _, ok := pair.Users(); !ok {
		return nil, apperr.ErrNoSuchRequest
	}

	var updated models.ConversationRequest
	err := l.Store.Update(ctx, pair.RequestPath(), func(current []byte, exists bool) ([]byte, error) {
		if !exists {
			return nil, apperr.ErrNoSuchRequest
		}
		updated = models.ConversationRequest{}
		if err := json.Unmarshal(current, &updated); err != nil {
			return nil, err
		}
		if updated.RecipientID != responderID {
			return nil, apperr.ErrNotRecipient
		}
		if updated.Status != models.RequestPending {
			return nil, apperr.ErrAlreadyResolved
		}
		at := l.now().UTC()
		updated.Status = status
		updated.RespondedAt = &at
		return json.Marshal(&updated)
	})
	if err != nil {
		return nil, apperr.StoreUnavailable(err)
	}

	l.log.WithFields(logrus.Fields{"pair": pair, "status": status}).Info("conversation request answered")
	l.notify(ctx, models.Notification{
		UserID: updated.SenderID,
		Kind:   models.NotifyRequestResolved,
		Payload: map[string]string{
			models.PayloadRequestID:     updated.ID,
			models.PayloadPairKey:       pair.String(),
			models.PayloadDecision:      string(decision),
			models.PayloadResponderName: l.username(ctx, responderID),
		},
	})
	return &updated, nil
}

// Request returns the record for the pair or ErrNoSuchRequest.
func (l *Ledger) Request(ctx context.Context, a, b string) (*models.ConversationRequest, error) {
	if !validPair(a, b) {
		return nil, apperr.ErrInvalidTarget
	}
	raw, err := l.Store.Get(ctx, models.NewPairKey(a, b).RequestPath())
	if errors.Is(err, kv.ErrNotFound) {
		return nil, apperr.ErrNoSuchRequest
	}
	if err != nil {
		return nil, apperr.StoreUnavailable(err)
	}
	var req models.ConversationRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, apperr.StoreUnavailable(err)
	}
	return &req, nil
}

// StatusFor reports the pair status as seen by a.
func (l *Ledger) StatusFor(ctx context.Context, a, b string) (models.PairStatus, error) {
	req, err := l.Request(ctx, a, b)
	if errors.Is(err, apperr.ErrNoSuchRequest) {
		return models.PairNone, nil
	}
	if err != nil {
		return "", err
	}
	return models.StatusFor(req, a), nil
}

// Reset removes the pair record so a new request can be sent. Operator use only.
func (l *Ledger) Reset(ctx context.Context, a, b string) error {
	if !validPair(a, b) {
		return apperr.ErrInvalidTarget
	}
	key := models.NewPairKey(a, b)
	if err := l.Store.Delete(ctx, key.RequestPath()); err != nil {
		return apperr.StoreUnavailable(err)
	}
	l.log.WithField("pair", key).Warn("conversation request reset")
	return nil
}

// Subscribe watches the request record of the pair.
func (l *Ledger) Subscribe(ctx context.Context, pair models.PairKey) (*kv.Subscription, error) {
	sub, err := l.Store.Subscribe(ctx, pair.RequestPath())
	if err != nil {
		return nil, apperr.StoreUnavailable(err)
	}
	return sub, nil
}

func (l *Ledger) username(ctx context.Context, id string) string {
	return lookupName(ctx, l.Users, id)
}

func (l *Ledger) notify(ctx context.Context, n models.Notification) {
	deliver(ctx, l.Notifier, l.log, n, l.now)
}

func lookupName(ctx context.Context, users UserLookup, id string) string {
	if users == nil {
		return ""
	}
	u, err := users.GetUserByID(ctx, id)
	if err != nil {
		return ""
	}
	return u.Username
}

// deliver notifies after a commit. Failures never undo the operation.
func deliver(ctx context.Context, d notify.Dispatcher, log *logrus.Entry, n models.Notification, now func() time.Time) {
	if n.At.IsZero() {
		n.At = now().UTC()
	}
	if err := d.Notify(ctx, n); err != nil {
		log.WithError(err).WithFields(logrus.Fields{"user_id": n.UserID, "kind": n.Kind}).Warn("notification failed")
	}
}
