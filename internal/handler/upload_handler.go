package handler

import (
	"fmt"
	"io"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/caseindex/internal/extract"
	"github.com/xxxsen/caseindex/internal/model"
	appErr "github.com/xxxsen/caseindex/internal/pkg/errors"
	"github.com/xxxsen/caseindex/internal/pkg/response"
	"github.com/xxxsen/caseindex/internal/service"
)

type UploadHandler struct {
	ingest   *service.IngestService
	maxBytes int64
}

func NewUploadHandler(ingest *service.IngestService, maxBytes int64) *UploadHandler {
	return &UploadHandler{ingest: ingest, maxBytes: maxBytes}
}

// Upload checks type, then case_id, then size before any file bytes are read.
func (h *UploadHandler) Upload(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		handleError(c, appErr.ErrMissingFile)
		return
	}
	if !h.supported(extract.FileType(file.Filename)) {
		handleError(c, fmt.Errorf("%w: supported: %s", appErr.ErrUnsupportedFileType, strings.Join(h.ingest.SupportedExtensions(), ", ")))
		return
	}
	caseID := strings.TrimSpace(c.PostForm("case_id"))
	if caseID == "" {
		handleError(c, appErr.ErrMissingCaseID)
		return
	}
	if h.maxBytes > 0 && file.Size > h.maxBytes {
		handleError(c, fmt.Errorf("%w: limit is %s", appErr.ErrFileTooLarge, formatUploadLimit(h.maxBytes)))
		return
	}
	opened, err := file.Open()
	if err != nil {
		handleError(c, appErr.Invalid(fmt.Errorf("open upload: %w", err)))
		return
	}
	defer opened.Close()
	data, err := io.ReadAll(opened)
	if err != nil {
		handleError(c, appErr.Invalid(fmt.Errorf("read upload: %w", err)))
		return
	}
	result, err := h.ingest.Ingest(c.Request.Context(), model.Upload{
		Data:           data,
		Filename:       file.Filename,
		ContentType:    file.Header.Get("Content-Type"),
		CaseID:         caseID,
		CaseDocumentID: c.PostForm("case_document_id"),
	})
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, result)
}

func (h *UploadHandler) supported(ext string) bool {
	for _, item := range h.ingest.SupportedExtensions() {
		if item == ext {
			return true
		}
	}
	return false
}
