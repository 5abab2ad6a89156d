package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/partstrade/trade-service/internal/apperr"
)

func (h *Handler) synonymPair(c *gin.Context) (int64, int64, bool) {
	brandID, err := paramID(c, "brandId")
	if err != nil {
		h.respondError(c, err)
		return 0, 0, false
	}
	synonymID, err := paramID(c, "synonymId")
	if err != nil {
		h.respondError(c, err)
		return 0, 0, false
	}
	if brandID == synonymID {
		h.respondError(c, apperr.New(apperr.CodeValidation, "a brand cannot be its own synonym"))
		return 0, 0, false
	}
	return brandID, synonymID, true
}

// AddSynonym links two brands in both directions.
// POST /api/brands/:brandId/synonyms/:synonymId
func (h *Handler) AddSynonym(c *gin.Context) {
	a, b, ok := h.synonymPair(c)
	if !ok {
		return
	}
	if err := h.deps.Synonyms.AddSynonym(c.Request.Context(), a, b); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// RemoveSynonym unlinks two brands in both directions.
// DELETE /api/brands/:brandId/synonyms/:synonymId
func (h *Handler) RemoveSynonym(c *gin.Context) {
	a, b, ok := h.synonymPair(c)
	if !ok {
		return
	}
	if err := h.deps.Synonyms.RemoveSynonym(c.Request.Context(), a, b); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
