package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/xxxsen/caseindex/internal/model"
	appErr "github.com/xxxsen/caseindex/internal/pkg/errors"
	"github.com/xxxsen/caseindex/internal/pkg/response"
	"github.com/xxxsen/caseindex/internal/service"
)

type QueryHandler struct {
	retrieval *service.RetrievalService
}

func NewQueryHandler(retrieval *service.RetrievalService) *QueryHandler {
	return &QueryHandler{retrieval: retrieval}
}

func (h *QueryHandler) Query(c *gin.Context) {
	limit, err := intQuery(c, "limit", service.DefaultQueryLimit, appErr.ErrInvalidLimit)
	if err != nil {
		handleError(c, err)
		return
	}
	filter := &model.Filter{
		CaseID:         c.Query("case_id"),
		CaseDocumentID: c.Query("case_document_id"),
	}
	result, err := h.retrieval.Query(c.Request.Context(), c.Query("q"), limit, filter)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, result)
}

func (h *QueryHandler) Documents(c *gin.Context) {
	bundle, err := h.retrieval.GetDocuments(c.Request.Context(), c.Query("case_id"), c.Query("case_document_id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, bundle)
}
