package handlers

import (
	"io"
	"mime/multipart"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/partstrade/trade-service/internal/apperr"
)

// ErrorBody is the error envelope of every failed request.
type ErrorBody struct {
	Code      apperr.Code `json:"code"`
	Message   string      `json:"message"`
	Retryable bool        `json:"retryable"`
	Details   any         `json:"details,omitempty"`
}

// respondError maps err to its status. Server-side failures are logged and
// answered with the public message only.
func (h *Handler) respondError(c *gin.Context, err error) {
	code := apperr.CodeOf(err)
	meta := apperr.MetadataFor(code)

	body := ErrorBody{Code: code, Message: meta.PublicMessage, Retryable: meta.Retryable}
	if meta.HTTPStatus < 500 {
		if ae := apperr.As(err); ae != nil {
			body.Message = ae.Message()
			if meta.DetailsAllowed {
				body.Details = ae.Details()
			}
		} else {
			body.Message = err.Error()
		}
	} else {
		h.log.Error().
			Interface("error_dump", apperr.Dump(err)).
			Str("path", c.FullPath()).
			Msg("Request failed")
	}

	c.AbortWithStatusJSON(meta.HTTPStatus, gin.H{"error": body})
}

func paramID(c *gin.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Newf(apperr.CodeValidation, "invalid %s %q", name, c.Param(name))
	}
	return id, nil
}

// readUpload reads the multipart file field "file" up to limit bytes.
func readUpload(c *gin.Context, limit int64) (string, []byte, error) {
	fh, err := c.FormFile("file")
	if err != nil {
		return "", nil, apperr.Wrap(apperr.CodeValidation, err, "multipart field \"file\" is required")
	}
	if fh.Size > limit {
		return "", nil, apperr.Newf(apperr.CodeValidation, "file %s exceeds %d bytes", fh.Filename, limit)
	}

	content, err := readPart(fh, limit)
	if err != nil {
		return "", nil, apperr.Wrap(apperr.CodeValidation, err, "failed to read uploaded file")
	}
	return fh.Filename, content, nil
}

func readPart(fh *multipart.FileHeader, limit int64) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(io.LimitReader(f, limit))
}
