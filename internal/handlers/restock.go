package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/partstrade/trade-service/internal/apperr"
	"github.com/partstrade/trade-service/internal/restock"
)

// RunRestock runs one restock pass.
// POST /api/restock/runs
func (h *Handler) RunRestock(c *gin.Context) {
	var req restock.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, apperr.Wrap(apperr.CodeValidation, err, "invalid request body"))
		return
	}

	res, err := h.deps.Restock.Run(c.Request.Context(), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}
