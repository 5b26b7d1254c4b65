package handler

import (
	"fmt"

	"github.com/gin-gonic/gin"

	appErr "github.com/xxxsen/caseindex/internal/pkg/errors"
	"github.com/xxxsen/caseindex/internal/pkg/response"
	"github.com/xxxsen/caseindex/internal/service"
)

const (
	defaultChunksLimit = 100
	maxChunksLimit     = 1000
)

type IndexHandler struct {
	retrieval *service.RetrievalService
	indexName string
}

func NewIndexHandler(retrieval *service.RetrievalService, indexName string) *IndexHandler {
	return &IndexHandler{retrieval: retrieval, indexName: indexName}
}

func (h *IndexHandler) Root(c *gin.Context) {
	response.Success(c, gin.H{"message": "Case Index API"})
}

func (h *IndexHandler) Health(c *gin.Context) {
	response.Success(c, gin.H{"status": "healthy"})
}

// Chunks summarises the index. Listing individual vectors is left to /query.
func (h *IndexHandler) Chunks(c *gin.Context) {
	limit, err := intQuery(c, "limit", defaultChunksLimit, appErr.ErrInvalidLimit)
	if err != nil {
		handleError(c, err)
		return
	}
	if limit < 1 || limit > maxChunksLimit {
		handleError(c, fmt.Errorf("%w: %d not in [1, %d]", appErr.ErrInvalidLimit, limit, maxChunksLimit))
		return
	}
	stats, err := h.retrieval.Stats(c.Request.Context())
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{
		"total_vectors":  stats.TotalVectorCount,
		"index_fullness": stats.IndexFullness,
		"namespaces":     stats.Namespaces,
		"limit":          limit,
		"note":           "Use /query endpoint to search specific chunks",
	})
}

func (h *IndexHandler) Stats(c *gin.Context) {
	stats, err := h.retrieval.Stats(c.Request.Context())
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{
		"index_name": h.indexName,
		"stats":      stats,
	})
}
