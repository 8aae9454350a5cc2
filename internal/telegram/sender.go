package telegram

import (
	"meetinclick/backend/internal/localization"
	"meetinclick/backend/internal/models"
	"strings"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Sender is the outgoing half of *tgbotapi.BotAPI.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

const previewRunes = 40

// Callback data is "<decision>:<senderID>". The pair key would not fit in
// Telegram's 64 byte limit, the responder is the user pressing the button.
func callbackData(d models.Decision, senderID string) string {
	return string(d) + ":" + senderID
}

func parseCallbackData(data string) (models.Decision, string, bool) {
	decision, senderID, ok := strings.Cut(data, ":")
	if !ok || senderID == "" {
		return "", "", false
	}
	d := models.Decision(decision)
	if _, valid := d.Status(); !valid {
		return "", "", false
	}
	return d, senderID, true
}

func displayName(loc *localization.Localizer, lang, name string) string {
	if name == "" {
		return loc.GetString(lang, "notify.someone")
	}
	return name
}

func preview(content string) string {
	if utf8.RuneCountInString(content) <= previewRunes {
		return content
	}
	return string([]rune(content)[:previewRunes]) + "…"
}

// NotificationMessage renders n for a Telegram chat. ok is false for kinds
// that have no Telegram form.
func NotificationMessage(loc *localization.Localizer, lang string, chatID int64, n models.Notification) (tgbotapi.MessageConfig, bool) {
	p := n.Payload
	switch n.Kind {
	case models.NotifyConversationRequest:
		msg := tgbotapi.NewMessage(chatID, loc.Format(lang, "notify.conversation_request", displayName(loc, lang, p[models.PayloadSenderName])))
		senderID := p[models.PayloadSenderID]
		if senderID != "" {
			msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
				tgbotapi.NewInlineKeyboardRow(
					tgbotapi.NewInlineKeyboardButtonData(loc.GetString(lang, "tg.button_approve"), callbackData(models.DecisionApprove, senderID)),
					tgbotapi.NewInlineKeyboardButtonData(loc.GetString(lang, "tg.button_decline"), callbackData(models.DecisionDecline, senderID)),
				),
			)
		}
		return msg, true

	case models.NotifyRequestResolved:
		key := "notify.request_declined"
		if p[models.PayloadDecision] == string(models.DecisionApprove) {
			key = "notify.request_approved"
		}
		return tgbotapi.NewMessage(chatID, loc.Format(lang, key, displayName(loc, lang, p[models.PayloadResponderName]))), true

	case models.NotifyNewMessage:
		text := loc.Format(lang, "notify.new_message", displayName(loc, lang, p[models.PayloadSenderName]), preview(p[models.PayloadContent]))
		return tgbotapi.NewMessage(chatID, text), true
	}
	return tgbotapi.MessageConfig{}, false
}
