package negotiation

import (
	"context"
	"encoding/json"
	"errors"
	"meetinclick/backend/internal/config"
	"meetinclick/backend/internal/kv"
	"meetinclick/backend/internal/models"
	"meetinclick/backend/internal/notify"
	apperr "meetinclick/backend/pkg/errors"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
)

// Negotiator runs conversations between approved pairs under a per-sender
// character budget.
type Negotiator struct {
	Store    kv.Store
	Ledger   *Ledger
	Notifier notify.Dispatcher
	Users    UserLookup
	// MaxCharacters is the per-sender, per-conversation ceiling.
	MaxCharacters int

	now func() time.Time
	log *logrus.Entry
}

func NewNegotiator(store kv.Store, ledger *Ledger, notifier notify.Dispatcher) *Negotiator {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &Negotiator{
		Store:         store,
		Ledger:        ledger,
		Notifier:      notifier,
		MaxCharacters: config.MaxCharacters,
		now:           time.Now,
		log:           logrus.WithField("component", "negotiator"),
	}
}

// StartConversation opens the conversation between actorID and otherID once
// their request is approved. Calling it again returns the same id.
func (n *Negotiator) StartConversation(ctx context.Context, actorID, otherID string) (string, error) {
	if !validPair(actorID, otherID) {
		return "", apperr.ErrInvalidTarget
	}
	status, err := n.Ledger.StatusFor(ctx, actorID, otherID)
	if err != nil {
		return "", err
	}
	if status != models.PairApproved {
		return "", apperr.ErrNotApproved
	}

	conv := models.NewConversation(actorID, otherID, n.now().UTC())
	created := false
	err = n.Store.Update(ctx, models.ConversationPath(conv.ID), func(_ []byte, exists bool) ([]byte, error) {
		if exists {
			created = false
			return nil, kv.ErrNoWrite
		}
		created = true
		return json.Marshal(conv)
	})
	if err != nil {
		return "", apperr.StoreUnavailable(err)
	}
	if created {
		n.log.WithField("conversation_id", conv.ID).Info("conversation started")
	}
	return conv.ID, nil
}

// SendMessage appends rawContent from senderID if it fits in the sender's
// remaining budget, and returns the committed conversation. The content is
// stored as written; only its cost ignores whitespace.
func (n *Negotiator) SendMessage(ctx context.Context, conversationID, senderID, rawContent string) (*models.Conversation, error) {
	cost := CharactersUsed(rawContent)
	ceiling := n.ceiling()

	var conv models.Conversation
	var sent models.Message
	err := n.Store.Update(ctx, models.ConversationPath(conversationID), func(current []byte, exists bool) ([]byte, error) {
		if !exists {
			return nil, apperr.ErrNoSuchConversation
		}
		conv = models.Conversation{}
		if err := json.Unmarshal(current, &conv); err != nil {
			return nil, err
		}
		if !conv.HasParticipant(senderID) {
			return nil, apperr.ErrNotParticipant
		}
		if cost == 0 {
			return nil, apperr.ErrEmptyMessage
		}
		used := UsedBy(&conv, senderID)
		if used+cost > ceiling {
			return nil, apperr.ErrCharacterBudgetExceeded.WithDetail("%d of %d characters used, message needs %d", used, ceiling, cost)
		}

		sentAt := n.now().UTC()
		if last := conv.LastMessage(); last != nil && !sentAt.After(last.SentAt) {
			sentAt = last.SentAt.Add(time.Millisecond)
		}
		if conv.NextSeq < 1 {
			conv.NextSeq = int64(len(conv.Messages)) + 1
		}
		sent = models.Message{
			Seq:      conv.NextSeq,
			SenderID: senderID,
			Content:  rawContent,
			SentAt:   sentAt,
		}
		conv.Messages = append(conv.Messages, sent)
		conv.NextSeq++
		return json.Marshal(&conv)
	})
	if err != nil {
		return nil, apperr.StoreUnavailable(err)
	}

	n.log.WithFields(logrus.Fields{"conversation_id": conversationID, "seq": sent.Seq}).Debug("message sent")
	deliver(ctx, n.Notifier, n.log, models.Notification{
		UserID: conv.Other(senderID),
		Kind:   models.NotifyNewMessage,
		Payload: map[string]string{
			models.PayloadConversationID: conversationID,
			models.PayloadSenderID:       senderID,
			models.PayloadSenderName:     lookupName(ctx, n.Users, senderID),
			models.PayloadSeq:            strconv.FormatInt(sent.Seq, 10),
			models.PayloadContent:        rawContent,
		},
	}, n.now)
	return &conv, nil
}

// Conversation returns the conversation if viewerID takes part in it.
func (n *Negotiator) Conversation(ctx context.Context, id, viewerID string) (*models.Conversation, error) {
	raw, err := n.Store.Get(ctx, models.ConversationPath(id))
	if errors.Is(err, kv.ErrNotFound) {
		return nil, apperr.ErrNoSuchConversation
	}
	if err != nil {
		return nil, apperr.StoreUnavailable(err)
	}
	var conv models.Conversation
	if err := json.Unmarshal(raw, &conv); err != nil {
		return nil, apperr.StoreUnavailable(err)
	}
	if !conv.HasParticipant(viewerID) {
		return nil, apperr.ErrNotParticipant
	}
	return &conv, nil
}

// RemainingBudget reports how much of the ceiling senderID has left, based
// on messages already sent.
func (n *Negotiator) RemainingBudget(ctx context.Context, id, senderID string) (Budget, error) {
	conv, err := n.Conversation(ctx, id, senderID)
	if err != nil {
		return Budget{}, err
	}
	return BudgetFor(conv, senderID, n.ceiling()), nil
}

// Subscribe watches the conversation. Only participants may watch.
func (n *Negotiator) Subscribe(ctx context.Context, id, viewerID string) (*kv.Subscription, error) {
	if _, err := n.Conversation(ctx, id, viewerID); err != nil {
		return nil, err
	}
	sub, err := n.Store.Subscribe(ctx, models.ConversationPath(id))
	if err != nil {
		return nil, apperr.StoreUnavailable(err)
	}
	return sub, nil
}

func (n *Negotiator) ceiling() int {
	if n.MaxCharacters <= 0 {
		return config.MaxCharacters
	}
	return n.MaxCharacters
}
