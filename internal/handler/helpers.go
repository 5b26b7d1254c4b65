package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/caseindex/internal/middleware"
	"github.com/xxxsen/caseindex/internal/pkg/errcode"
	appErr "github.com/xxxsen/caseindex/internal/pkg/errors"
	"github.com/xxxsen/caseindex/internal/pkg/response"
)

func handleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	requestID, _ := c.Get(middleware.ContextRequestIDKey)
	logger := logutil.GetLogger(c.Request.Context()).With(
		zap.Any("request_id", requestID),
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.Error(err),
	)
	switch {
	case errors.Is(err, appErr.ErrUnsupportedFileType):
		logger.Info("unsupported file type")
		response.Error(c, http.StatusBadRequest, errcode.ErrUnsupportedFileType, err.Error())
	case errors.Is(err, appErr.ErrFileTooLarge):
		logger.Info("upload too large")
		response.Error(c, http.StatusBadRequest, errcode.ErrInvalidFile, err.Error())
	case errors.Is(err, appErr.ErrMissingCaseID):
		logger.Info("case_id missing")
		response.Error(c, http.StatusUnprocessableEntity, errcode.ErrMissingCaseID, err.Error())
	case errors.Is(err, appErr.ErrMissingFile):
		logger.Info("file missing")
		response.Error(c, http.StatusUnprocessableEntity, errcode.ErrInvalidFile, err.Error())
	case appErr.IsInvalid(err):
		logger.Info("invalid request")
		response.Error(c, http.StatusUnprocessableEntity, errcode.ErrInvalid, err.Error())
	case errors.Is(err, appErr.ErrExtraction), errors.Is(err, appErr.ErrEmptyDocument):
		logger.Error("process document failed")
		response.Error(c, http.StatusInternalServerError, errcode.ErrProcessFailed, "Error processing file: "+err.Error())
	case errors.Is(err, appErr.ErrEmbedding):
		logger.Error("embedding failed")
		response.Error(c, http.StatusInternalServerError, errcode.ErrEmbeddingFailed, err.Error())
	case errors.Is(err, appErr.ErrVectorStore):
		logger.Error("vector store failed")
		response.Error(c, http.StatusInternalServerError, errcode.ErrVectorStoreFailed, err.Error())
	default:
		logger.Error("request failed")
		response.Error(c, http.StatusInternalServerError, errcode.ErrInternal, "internal error")
	}
}

// intQuery parses an optional integer parameter; base is the validation
// error returned for unparsable values.
func intQuery(c *gin.Context, name string, def int, base error) (int, error) {
	value := c.Query(name)
	if value == "" {
		return def, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q", base, name, value)
	}
	return parsed, nil
}
