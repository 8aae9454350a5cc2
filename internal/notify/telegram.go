package notify

import (
	"context"
	"errors"
	"meetinclick/backend/internal/localization"
	"meetinclick/backend/internal/models"
	"meetinclick/backend/internal/telegram"
	apperr "meetinclick/backend/pkg/errors"

	"github.com/sirupsen/logrus"
)

// UserLookup resolves the recipient's Telegram chat.
type UserLookup interface {
	GetUserByID(ctx context.Context, id string) (*models.User, error)
}

// TelegramDispatcher sends a localized text to users who linked a chat.
// Everyone else is skipped silently.
type TelegramDispatcher struct {
	Users     UserLookup
	Bot       telegram.Sender
	Localizer *localization.Localizer
	Lang      string
}

func NewTelegramDispatcher(users UserLookup, bot telegram.Sender, loc *localization.Localizer) *TelegramDispatcher {
	return &TelegramDispatcher{Users: users, Bot: bot, Localizer: loc, Lang: localization.DefaultLanguage}
}

func (d *TelegramDispatcher) Notify(ctx context.Context, n models.Notification) error {
	user, err := d.Users.GetUserByID(ctx, n.UserID)
	if errors.Is(err, apperr.ErrUserNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if user.TelegramChatID == nil {
		return nil
	}

	msg, ok := telegram.NotificationMessage(d.Localizer, d.Lang, *user.TelegramChatID, n)
	if !ok {
		logrus.WithFields(logrus.Fields{"component": "notify", "kind": n.Kind}).Debug("no telegram rendering for notification")
		return nil
	}
	_, err = d.Bot.Send(msg)
	return err
}
