package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/partstrade/trade-service/internal/aggregate"
	"github.com/partstrade/trade-service/internal/apperr"
	"github.com/partstrade/trade-service/internal/pipeline"
	"github.com/partstrade/trade-service/internal/types"
)

// UploadPriceList ingests a supplier file.
// POST /api/providers/:providerId/pricelists
// Multipart fields: file, config_id, columns (JSON column map), dedup_key.
func (h *Handler) UploadPriceList(c *gin.Context) {
	providerID, err := paramID(c, "providerId")
	if err != nil {
		h.respondError(c, err)
		return
	}

	filename, content, err := readUpload(c, h.deps.MaxUpload)
	if err != nil {
		h.respondError(c, err)
		return
	}

	req := pipeline.Request{
		ProviderID: providerID,
		Filename:   filename,
		Content:    content,
		Source:     types.SourceAPI,
		DedupKey:   c.PostForm("dedup_key"),
	}
	if v := c.PostForm("config_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			h.respondError(c, apperr.Newf(apperr.CodeValidation, "invalid config_id %q", v))
			return
		}
		req.ConfigID = &id
	}
	if v := c.PostForm("columns"); v != "" {
		var cm types.ColumnMap
		if err := json.Unmarshal([]byte(v), &cm); err != nil {
			h.respondError(c, apperr.Wrap(apperr.CodeValidation, err, "invalid columns"))
			return
		}
		req.Columns = &cm
	}

	res, err := h.deps.Ingestor.Ingest(c.Request.Context(), req)
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

// GetRun returns an ingestion run.
// GET /api/ingestion/runs/:runId
func (h *Handler) GetRun(c *gin.Context) {
	run, err := h.deps.Ingestor.GetRun(c.Request.Context(), c.Param("runId"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, run)
}

// StaleCheck runs the stale pricelist monitor.
// POST /api/stale-check
func (h *Handler) StaleCheck(c *gin.Context) {
	alerts, err := h.deps.Ingestor.CheckStalePricelists(c.Request.Context(), h.now())
	if err != nil {
		h.respondError(c, err)
		return
	}
	if alerts == nil {
		alerts = []types.PriceListStaleAlert{}
	}
	c.JSON(http.StatusOK, gin.H{"alerts": alerts})
}

// BuildPriceListRequest is the optional body of BuildPriceList.
type BuildPriceListRequest struct {
	Email bool `json:"email"`
}

// BuildPriceList builds and persists a customer pricelist.
// POST /api/customer-configs/:configId/pricelists
// With ?format=xlsx the export is returned instead of the summary.
func (h *Handler) BuildPriceList(c *gin.Context) {
	configID, err := paramID(c, "configId")
	if err != nil {
		h.respondError(c, err)
		return
	}

	var body BuildPriceListRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			h.respondError(c, apperr.Wrap(apperr.CodeValidation, err, "invalid request body"))
			return
		}
	}

	res, err := h.deps.Builder.Build(c.Request.Context(), configID, aggregate.BuildOptions{Email: body.Email})
	if err != nil {
		h.respondError(c, err)
		return
	}

	if c.Query("format") == "xlsx" {
		c.Header("Content-Disposition", `attachment; filename="`+res.Filename+`"`)
		c.Data(http.StatusCreated, xlsxContentType, res.Export)
		return
	}
	c.JSON(http.StatusCreated, res)
}

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
