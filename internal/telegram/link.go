package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"meetinclick/backend/internal/kv"
	"time"

	"github.com/google/uuid"
)

const (
	linksPath   = "telegram_links"
	LinkCodeTTL = 15 * time.Minute
)

var ErrInvalidLinkCode = errors.New("telegram: invalid or expired link code")

type linkRecord struct {
	UserID    string    `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// LinkCodes hands out one-time codes used as the /start payload of the bot
// deep link, so a chat can only be bound to the account that asked for it.
type LinkCodes struct {
	Store kv.Store
	TTL   time.Duration
	now   func() time.Time
}

func NewLinkCodes(store kv.Store) *LinkCodes {
	return &LinkCodes{Store: store, TTL: LinkCodeTTL, now: time.Now}
}

func (l *LinkCodes) path(code string) string {
	return linksPath + "/" + code
}

// Issue creates a code for userID.
func (l *LinkCodes) Issue(ctx context.Context, userID string) (string, error) {
	code := uuid.NewString()
	rec, err := json.Marshal(linkRecord{UserID: userID, ExpiresAt: l.now().Add(l.TTL).UTC()})
	if err != nil {
		return "", err
	}
	if err := l.Store.Set(ctx, l.path(code), rec); err != nil {
		return "", fmt.Errorf("telegram: store link code: %w", err)
	}
	return code, nil
}

// Consume returns the user the code was issued to and invalidates it.
func (l *LinkCodes) Consume(ctx context.Context, code string) (string, error) {
	if code == "" {
		return "", ErrInvalidLinkCode
	}
	raw, err := l.Store.Get(ctx, l.path(code))
	if errors.Is(err, kv.ErrNotFound) {
		return "", ErrInvalidLinkCode
	}
	if err != nil {
		return "", fmt.Errorf("telegram: load link code: %w", err)
	}
	if err := l.Store.Delete(ctx, l.path(code)); err != nil {
		return "", fmt.Errorf("telegram: delete link code: %w", err)
	}

	var rec linkRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return "", ErrInvalidLinkCode
	}
	if l.now().After(rec.ExpiresAt) {
		return "", ErrInvalidLinkCode
	}
	return rec.UserID, nil
}

// DeepLink is the t.me URL that opens the bot with code as /start payload.
func DeepLink(botUsername, code string) string {
	return "https://t.me/" + botUsername + "?start=" + code
}
