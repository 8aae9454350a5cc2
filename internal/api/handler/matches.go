package handler

import (
	"meetinclick/backend/internal/matching"
	"meetinclick/backend/internal/models"
	"net/http"

	"github.com/gin-gonic/gin"
)

type matchView struct {
	models.User
	Status     models.PairStatus `json:"pair_status"`
	DistanceKm *float64          `json:"distance_km,omitempty"`
}

// Matches повертає кандидатів разом зі станом пари для кожного з них.
func (h *Handler) Matches(c *gin.Context) {
	ctx := c.Request.Context()
	me, err := h.Users.GetUserByID(ctx, currentUser(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	candidates, err := h.Matcher.Candidates(ctx, me.ID)
	if err != nil {
		h.fail(c, err)
		return
	}

	out := make([]matchView, 0, len(candidates))
	for _, cand := range candidates {
		status, err := h.Ledger.StatusFor(ctx, me.ID, cand.ID)
		if err != nil {
			h.fail(c, err)
			return
		}
		v := matchView{User: cand, Status: status}
		if a, b := me.Location(), cand.Location(); a != nil && b != nil {
			d := matching.DistanceKm(*a, *b)
			v.DistanceKm = &d
		}
		out = append(out, v)
	}
	c.JSON(http.StatusOK, gin.H{"matches": out})
}
