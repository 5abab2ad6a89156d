package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/partstrade/trade-service/internal/apperr"
	"github.com/partstrade/trade-service/internal/orders"
)

// UploadOrder reconciles a customer order file.
// POST /api/customers/:customerId/orders
// Multipart fields: file, subject, body, uid.
func (h *Handler) UploadOrder(c *gin.Context) {
	customerID, err := paramID(c, "customerId")
	if err != nil {
		h.respondError(c, err)
		return
	}

	filename, content, err := readUpload(c, h.deps.MaxUpload)
	if err != nil {
		h.respondError(c, err)
		return
	}

	req := orders.Request{
		CustomerID: customerID,
		Filename:   filename,
		Content:    content,
		Subject:    c.PostForm("subject"),
		Body:       c.PostForm("body"),
	}
	if v := c.PostForm("uid"); v != "" {
		uid, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			h.respondError(c, apperr.Newf(apperr.CodeValidation, "invalid uid %q", v))
			return
		}
		req.UID = &uid
	}

	res, err := h.deps.Reconciler.Reconcile(c.Request.Context(), req)
	if err != nil {
		h.respondError(c, err)
		return
	}

	status := http.StatusCreated
	if res.Duplicate {
		status = http.StatusOK
	}
	c.JSON(status, res)
}
