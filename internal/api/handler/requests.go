package handler

import (
	"meetinclick/backend/internal/models"
	"net/http"

	"github.com/gin-gonic/gin"
)

type sendRequestBody struct {
	RecipientID string `json:"recipient_id" binding:"required"`
}

func (h *Handler) SendRequest(c *gin.Context) {
	var body sendRequestBody
	if !h.bind(c, &body) {
		return
	}
	req, err := h.Ledger.SendRequest(c.Request.Context(), currentUser(c), body.RecipientID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, req)
}

type respondBody struct {
	Decision models.Decision `json:"decision" binding:"required"`
}

func (h *Handler) Respond(c *gin.Context) {
	var body respondBody
	if !h.bind(c, &body) {
		return
	}
	pair := models.PairKey(c.Param("pair"))
	req, err := h.Ledger.Respond(c.Request.Context(), pair, currentUser(c), body.Decision)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, req)
}

// PairStatus reports the pair state from the caller's side.
func (h *Handler) PairStatus(c *gin.Context) {
	other := c.Param("other")
	status, err := h.Ledger.StatusFor(c.Request.Context(), currentUser(c), other)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"other_user_id": other,
		"pair_key":      models.NewPairKey(currentUser(c), other),
		"status":        status,
	})
}
