// Package telegram handles the integration with the Telegram Bot API.
// The bot links a chat to an account, delivers notifications and lets the
// recipient answer conversation requests with inline buttons.
package telegram

import (
	"context"
	"errors"
	"meetinclick/backend/internal/localization"
	"meetinclick/backend/internal/models"
	apperr "meetinclick/backend/pkg/errors"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
)

// BotAPI is the subset of *tgbotapi.BotAPI the service needs.
type BotAPI interface {
	Sender
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

type Directory interface {
	GetUserByTelegramID(ctx context.Context, chatID int64) (*models.User, error)
	LinkTelegram(ctx context.Context, id string, chatID int64) error
}

type Responder interface {
	Respond(ctx context.Context, pair models.PairKey, responderID string, decision models.Decision) (*models.ConversationRequest, error)
}

// BotService is responsible for receiving Telegram updates.
type BotService struct {
	BotAPI    BotAPI
	Directory Directory
	Requests  Responder
	Links     *LinkCodes
	Localizer *localization.Localizer
	log       *logrus.Entry

	bot *tgbotapi.BotAPI
}

func NewBotService(token string, dir Directory, requests Responder, links *LinkCodes, loc *localization.Localizer) (*BotService, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	bot.Debug = false
	s := newService(bot, dir, requests, links, loc)
	s.bot = bot
	s.log.WithField("account", bot.Self.UserName).Info("authorized on Telegram")
	return s, nil
}

func newService(api BotAPI, dir Directory, requests Responder, links *LinkCodes, loc *localization.Localizer) *BotService {
	return &BotService{
		BotAPI:    api,
		Directory: dir,
		Requests:  requests,
		Links:     links,
		Localizer: loc,
		log:       logrus.WithField("component", "telegram"),
	}
}

// Username of the bot account, used to build deep links.
func (s *BotService) Username() string {
	if s.bot == nil {
		return ""
	}
	return s.bot.Self.UserName
}

// Run polls for updates until ctx is cancelled.
func (s *BotService) Run(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := s.bot.GetUpdatesChan(u)
	defer s.bot.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			s.handleUpdate(ctx, update)
		}
	}
}

func (s *BotService) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.Message != nil && update.Message.IsCommand():
		lang := localization.DefaultLanguage
		if update.Message.From != nil {
			lang = s.Localizer.Match(update.Message.From.LanguageCode)
		}
		s.HandleCommand(ctx, update.Message.Chat.ID, lang, update.Message.Command(), update.Message.CommandArguments())
	case update.CallbackQuery != nil:
		s.HandleCallback(ctx, update.CallbackQuery)
	}
}

// HandleCommand answers a bot command sent from chatID.
func (s *BotService) HandleCommand(ctx context.Context, chatID int64, lang, command, args string) {
	switch command {
	case "start":
		if args == "" {
			s.reply(chatID, s.Localizer.GetString(lang, "tg.welcome"))
			return
		}
		s.link(ctx, chatID, lang, args)
	case "help":
		s.reply(chatID, s.Localizer.GetString(lang, "tg.help"))
	default:
		s.reply(chatID, s.Localizer.GetString(lang, "tg.unknown_command"))
	}
}

func (s *BotService) link(ctx context.Context, chatID int64, lang, code string) {
	userID, err := s.Links.Consume(ctx, code)
	if errors.Is(err, ErrInvalidLinkCode) {
		s.reply(chatID, s.Localizer.GetString(lang, "tg.link_invalid"))
		return
	}
	if err == nil {
		err = s.Directory.LinkTelegram(ctx, userID, chatID)
	}
	if err != nil {
		s.log.WithError(err).WithField("chat_id", chatID).Error("failed to link chat")
		s.reply(chatID, s.Localizer.MessageFor(lang, err))
		return
	}
	s.log.WithFields(logrus.Fields{"chat_id": chatID, "user_id": userID}).Info("telegram chat linked")
	s.reply(chatID, s.Localizer.GetString(lang, "tg.linked"))
}

// HandleCallback processes an approve/decline button press.
func (s *BotService) HandleCallback(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	// Respond to the callback query to remove the "loading" state
	if _, err := s.BotAPI.Request(tgbotapi.NewCallback(cq.ID, "")); err != nil {
		s.log.WithError(err).Warn("failed to answer callback query")
	}
	if cq.From == nil {
		return
	}
	// private chat with the bot, so the chat id is the user id
	chatID := cq.From.ID
	lang := s.Localizer.Match(cq.From.LanguageCode)

	decision, senderID, ok := parseCallbackData(cq.Data)
	if !ok {
		return
	}

	user, err := s.Directory.GetUserByTelegramID(ctx, chatID)
	if errors.Is(err, apperr.ErrUserNotFound) {
		s.reply(chatID, s.Localizer.GetString(lang, "tg.not_linked"))
		return
	}
	if err != nil {
		s.log.WithError(err).WithField("chat_id", chatID).Error("failed to resolve telegram user")
		s.reply(chatID, s.Localizer.MessageFor(lang, err))
		return
	}

	_, err = s.Requests.Respond(ctx, models.NewPairKey(senderID, user.ID), user.ID, decision)
	if err != nil {
		s.reply(chatID, s.Localizer.MessageFor(lang, err))
		return
	}
	if decision == models.DecisionApprove {
		s.reply(chatID, s.Localizer.GetString(lang, "tg.request_approved"))
		return
	}
	s.reply(chatID, s.Localizer.GetString(lang, "tg.request_declined"))
}

func (s *BotService) reply(chatID int64, text string) {
	if _, err := s.BotAPI.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		s.log.WithError(err).WithField("chat_id", chatID).Warn("failed to send telegram message")
	}
}
