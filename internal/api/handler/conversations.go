package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type startConversationBody struct {
	OtherUserID string `json:"other_user_id" binding:"required"`
}

func (h *Handler) StartConversation(c *gin.Context) {
	var body startConversationBody
	if !h.bind(c, &body) {
		return
	}
	id, err := h.Negotiator.StartConversation(c.Request.Context(), currentUser(c), body.OtherUserID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"conversation_id": id})
}

func (h *Handler) Conversation(c *gin.Context) {
	conv, err := h.Negotiator.Conversation(c.Request.Context(), c.Param("id"), currentUser(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, conv)
}

// Content is not marked required: blank text must reach the negotiator
// and fail as EMPTY_MESSAGE.
type sendMessageBody struct {
	Content string `json:"content"`
}

func (h *Handler) SendMessage(c *gin.Context) {
	var body sendMessageBody
	if !h.bind(c, &body) {
		return
	}
	conv, err := h.Negotiator.SendMessage(c.Request.Context(), c.Param("id"), currentUser(c), body.Content)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, conv)
}

func (h *Handler) Budget(c *gin.Context) {
	budget, err := h.Negotiator.RemainingBudget(c.Request.Context(), c.Param("id"), currentUser(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, budget)
}
