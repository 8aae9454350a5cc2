package handler

import (
	"context"
	"meetinclick/backend/internal/chathub"
	"meetinclick/backend/internal/localization"
	"meetinclick/backend/internal/matching"
	"meetinclick/backend/internal/negotiation"
	"meetinclick/backend/internal/storage"
	"meetinclick/backend/internal/telegram"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// Handler містить посилання на сервіси, які обслуговують HTTP API.
type Handler struct {
	Hub        *chathub.ManagerService
	Users      storage.UserDirectory
	Matcher    *matching.MatcherService
	Ledger     *negotiation.Ledger
	Negotiator *negotiation.Negotiator
	Auth       *Authenticator
	Localizer  *localization.Localizer

	// Необов'язкові: прив'язка Telegram вмикається, коли бот запущено.
	Links       *telegram.LinkCodes
	BotUsername string

	StoreTimeout   time.Duration
	AllowedOrigins []string

	log *logrus.Entry
}

func NewHandler(
	hub *chathub.ManagerService,
	users storage.UserDirectory,
	matcher *matching.MatcherService,
	ledger *negotiation.Ledger,
	negotiator *negotiation.Negotiator,
	auth *Authenticator,
	loc *localization.Localizer,
) *Handler {
	if loc == nil {
		loc = localization.Default()
	}
	return &Handler{
		Hub:        hub,
		Users:      users,
		Matcher:    matcher,
		Ledger:     ledger,
		Negotiator: negotiator,
		Auth:       auth,
		Localizer:  loc,
		log:        logrus.WithField("component", "api"),
	}
}

// Register підключає всі маршрути до роутера.
func (h *Handler) Register(r gin.IRouter) {
	r.GET("/health", h.Health)
	r.POST("/users", h.withTimeout(), h.CreateUser)
	r.POST("/token", h.withTimeout(), h.IssueToken)

	// WebSocket живе довше за STORE_TIMEOUT
	r.GET("/ws", h.RequireAuth(), h.ServeWebSocket)

	api := r.Group("/", h.RequireAuth(), h.withTimeout())
	api.GET("/me", h.Me)
	api.PUT("/me/category", h.SetCategory)
	api.PUT("/me/topics", h.SetTopics)
	api.PUT("/me/location", h.SetLocation)
	api.DELETE("/me/location", h.ClearLocation)
	api.POST("/me/telegram", h.LinkTelegram)

	api.GET("/matches", h.Matches)

	api.POST("/requests", h.SendRequest)
	api.POST("/requests/:pair/respond", h.Respond)
	api.GET("/pairs/:other", h.PairStatus)

	api.POST("/conversations", h.StartConversation)
	api.GET("/conversations/:id", h.Conversation)
	api.POST("/conversations/:id/messages", h.SendMessage)
	api.GET("/conversations/:id/budget", h.Budget)
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// withTimeout bounds every store round trip of the request.
func (h *Handler) withTimeout() gin.HandlerFunc {
	return func(c *gin.Context) {
		if h.StoreTimeout <= 0 {
			c.Next()
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), h.StoreTimeout)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
