package handler

import (
	"meetinclick/backend/internal/models"
	"meetinclick/backend/internal/telegram"
	apperr "meetinclick/backend/pkg/errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

var errTelegramDisabled = apperr.FailedPrecondition("TELEGRAM_DISABLED", "telegram bot is not configured")

type createUserRequest struct {
	Username           string               `json:"username" binding:"required"`
	Gender             string               `json:"gender"`
	Age                int                  `json:"age"`
	MainCategory       *models.MainCategory `json:"main_category"`
	ConversationTopics []string             `json:"conversation_topics"`
}

// CreateUser реєструє користувача і одразу видає токен.
func (h *Handler) CreateUser(c *gin.Context) {
	var req createUserRequest
	if !h.bind(c, &req) {
		return
	}
	user := &models.User{
		Username:           req.Username,
		Gender:             req.Gender,
		Age:                req.Age,
		MainCategory:       req.MainCategory,
		ConversationTopics: req.ConversationTopics,
	}
	if err := h.Users.CreateUser(c.Request.Context(), user); err != nil {
		h.fail(c, err)
		return
	}
	token, err := h.Auth.Issue(user.ID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"user": user, "token": token})
}

type tokenRequest struct {
	UserID string `json:"user_id" binding:"required"`
}

// IssueToken stands in for an identity provider: any existing user id gets a token.
func (h *Handler) IssueToken(c *gin.Context) {
	var req tokenRequest
	if !h.bind(c, &req) {
		return
	}
	if _, err := h.Users.GetUserByID(c.Request.Context(), req.UserID); err != nil {
		h.fail(c, err)
		return
	}
	token, err := h.Auth.Issue(req.UserID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token, "user_id": req.UserID})
}

func (h *Handler) Me(c *gin.Context) {
	user, err := h.Users.GetUserByID(c.Request.Context(), currentUser(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

type categoryRequest struct {
	MainCategory models.MainCategory `json:"main_category" binding:"required"`
}

func (h *Handler) SetCategory(c *gin.Context) {
	var req categoryRequest
	if !h.bind(c, &req) {
		return
	}
	user, err := h.Users.SetMainCategory(c.Request.Context(), currentUser(c), req.MainCategory)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

type topicsRequest struct {
	Topics []string `json:"topics"`
}

func (h *Handler) SetTopics(c *gin.Context) {
	var req topicsRequest
	if !h.bind(c, &req) {
		return
	}
	user, err := h.Users.SetConversationTopics(c.Request.Context(), currentUser(c), req.Topics)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

type locationRequest struct {
	Latitude  *float64 `json:"latitude" binding:"required"`
	Longitude *float64 `json:"longitude" binding:"required"`
}

func (h *Handler) SetLocation(c *gin.Context) {
	var req locationRequest
	if !h.bind(c, &req) {
		return
	}
	loc := &models.Location{Latitude: *req.Latitude, Longitude: *req.Longitude}
	user, err := h.Users.SetLocation(c.Request.Context(), currentUser(c), loc)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *Handler) ClearLocation(c *gin.Context) {
	user, err := h.Users.SetLocation(c.Request.Context(), currentUser(c), nil)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// LinkTelegram видає одноразовий код і deep link для бота.
func (h *Handler) LinkTelegram(c *gin.Context) {
	if h.Links == nil || h.BotUsername == "" {
		h.fail(c, errTelegramDisabled)
		return
	}
	code, err := h.Links.Issue(c.Request.Context(), currentUser(c))
	if err != nil {
		h.fail(c, apperr.StoreUnavailable(err))
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"code":       code,
		"link":       telegram.DeepLink(h.BotUsername, code),
		"expires_in": int(h.Links.TTL.Seconds()),
	})
}
