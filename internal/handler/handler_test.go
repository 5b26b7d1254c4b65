package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/xxxsen/caseindex/internal/ai"
	"github.com/xxxsen/caseindex/internal/chunker"
	"github.com/xxxsen/caseindex/internal/config"
	"github.com/xxxsen/caseindex/internal/filestore"
	"github.com/xxxsen/caseindex/internal/handler"
	"github.com/xxxsen/caseindex/internal/middleware"
	"github.com/xxxsen/caseindex/internal/pkg/errcode"
	"github.com/xxxsen/caseindex/internal/service"
	"github.com/xxxsen/caseindex/internal/vectorstore"
)

const testDim = 16

type envelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

type brokenEmbedder struct{}

func (brokenEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	return nil, errors.New("quota exhausted")
}

func (brokenEmbedder) ModelName() string { return "broken:test" }

func setupRouter(t *testing.T, embedder ai.IEmbedder) http.Handler {
	t.Helper()
	gin.SetMode(gin.TestMode)
	if embedder == nil {
		p, err := ai.NewEmbedProvider("hash", ai.ProviderArgs{Dimension: testDim})
		require.NoError(t, err)
		embedder = ai.NewEmbedder(p, "test")
	}
	embedder = ai.NewCheckedEmbedder(embedder, testDim, time.Second)

	store := vectorstore.NewMemory(testDim, "", 1000, 0)
	files, err := filestore.New(config.FileStoreConfig{
		Type: "local",
		Data: map[string]interface{}{"dir": t.TempDir(), "public_url": "http://files.test"},
	})
	require.NoError(t, err)
	c, err := chunker.New(chunker.Config{MaxTokens: 50, OverlapTokens: 10})
	require.NoError(t, err)

	ingest := service.NewIngestService(c, embedder, store, filestore.NewUploader(files, time.Second), service.IngestConfig{
		SupportedExtensions: config.DefaultSupportedExtensions,
		Concurrency:         2,
	})
	retrieval := service.NewRetrievalService(store, embedder, service.RetrievalConfig{Dimension: testDim})

	engine := gin.New()
	engine.Use(middleware.RequestID())
	handler.RegisterRoutes(engine.Group("/"), handler.RouterDeps{
		Upload: handler.NewUploadHandler(ingest, 1024),
		Query:  handler.NewQueryHandler(retrieval),
		Index:  handler.NewIndexHandler(retrieval, "test-index"),
	})
	return engine
}

func doUpload(t *testing.T, router http.Handler, filename, body string, fields map[string]string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if filename != "" {
		part, err := w.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = part.Write([]byte(body))
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	require.NoError(t, w.Close())
	req := httptest.NewRequest(http.MethodPost, "/upload", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return serve(t, router, req)
}

func doGet(t *testing.T, router http.Handler, target string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	return serve(t, router, httptest.NewRequest(http.MethodGet, target, nil))
}

func serve(t *testing.T, router http.Handler, req *http.Request) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	var env envelope
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &env))
	return resp, env
}

func TestUploadQueryAndDocuments(t *testing.T) {
	router := setupRouter(t, nil)
	text := strings.Repeat("the court granted the motion to dismiss ", 20)

	resp, env := doUpload(t, router, "ruling.txt", text, map[string]string{"case_id": "case-7", "case_document_id": "doc-1"})
	require.Equal(t, http.StatusOK, resp.Code)
	var result struct {
		DocumentsProcessed int     `json:"documents_processed"`
		ChunksCreated      int     `json:"chunks_created"`
		FileType           string  `json:"file_type"`
		S3URL              *string `json:"s3_url"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &result))
	require.Equal(t, 1, result.DocumentsProcessed)
	require.Equal(t, 4, result.ChunksCreated)
	require.Equal(t, ".txt", result.FileType)
	require.NotNil(t, result.S3URL)
	require.True(t, strings.HasPrefix(*result.S3URL, "http://files.test/documents/"))

	resp, env = doGet(t, router, "/query?q=motion+to+dismiss&limit=2&case_id=case-7")
	require.Equal(t, http.StatusOK, resp.Code)
	var query struct {
		Results []struct {
			Score    float64 `json:"score"`
			Metadata struct {
				CaseID string `json:"case_id"`
			} `json:"metadata"`
		} `json:"results"`
		TotalResults int `json:"total_results"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &query))
	require.Equal(t, 2, query.TotalResults)
	require.Equal(t, "case-7", query.Results[0].Metadata.CaseID)

	resp, env = doGet(t, router, "/documents?case_id=case-7")
	require.Equal(t, http.StatusOK, resp.Code)
	var bundle struct {
		Documents []struct {
			Filename   string `json:"filename"`
			ChunkCount int    `json:"chunk_count"`
		} `json:"documents"`
		Markdown       string `json:"markdown"`
		TotalDocuments int    `json:"total_documents"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &bundle))
	require.Equal(t, 1, bundle.TotalDocuments)
	require.Equal(t, 4, bundle.Documents[0].ChunkCount)
	require.True(t, strings.HasPrefix(bundle.Markdown, "# ruling.txt\n\n"))

	resp, env = doGet(t, router, "/documents?case_id=unknown")
	require.Equal(t, http.StatusOK, resp.Code)
	require.NoError(t, json.Unmarshal(env.Data, &bundle))
	require.Empty(t, bundle.Documents)
	require.Empty(t, bundle.Markdown)
}

func TestUploadValidation(t *testing.T) {
	router := setupRouter(t, nil)

	resp, env := doUpload(t, router, "notes.rtf", "x", map[string]string{"case_id": "c"})
	require.Equal(t, http.StatusBadRequest, resp.Code)
	require.Equal(t, errcode.ErrUnsupportedFileType, env.Code)

	resp, env = doUpload(t, router, "notes.txt", "x", nil)
	require.Equal(t, http.StatusUnprocessableEntity, resp.Code)
	require.Equal(t, errcode.ErrMissingCaseID, env.Code)

	resp, _ = doUpload(t, router, "", "", map[string]string{"case_id": "c"})
	require.Equal(t, http.StatusUnprocessableEntity, resp.Code)

	resp, env = doUpload(t, router, "big.txt", strings.Repeat("a", 2048), map[string]string{"case_id": "c"})
	require.Equal(t, http.StatusBadRequest, resp.Code)
	require.Equal(t, errcode.ErrInvalidFile, env.Code)
	require.Contains(t, env.Msg, "1KB")

	resp, env = doUpload(t, router, "blank.txt", "   ", map[string]string{"case_id": "c"})
	require.Equal(t, http.StatusInternalServerError, resp.Code)
	require.Equal(t, errcode.ErrProcessFailed, env.Code)
}

func TestUploadEmbeddingFailure(t *testing.T) {
	router := setupRouter(t, brokenEmbedder{})
	resp, env := doUpload(t, router, "a.txt", "some text", map[string]string{"case_id": "c"})
	require.Equal(t, http.StatusInternalServerError, resp.Code)
	require.Equal(t, errcode.ErrEmbeddingFailed, env.Code)
	require.Contains(t, env.Msg, "quota exhausted")

	resp, env = doGet(t, router, "/query?q=anything")
	require.Equal(t, http.StatusInternalServerError, resp.Code)
	require.Equal(t, errcode.ErrEmbeddingFailed, env.Code)
}

func TestQueryValidation(t *testing.T) {
	router := setupRouter(t, nil)
	for _, target := range []string{"/query?q=x&limit=0", "/query?q=x&limit=51", "/query?q=x&limit=ten", "/query?q=", "/documents"} {
		resp, _ := doGet(t, router, target)
		require.Equal(t, http.StatusUnprocessableEntity, resp.Code, target)
	}
	for _, target := range []string{"/query?q=x&limit=1", "/query?q=x&limit=50", "/query?q=x"} {
		resp, env := doGet(t, router, target)
		require.Equal(t, http.StatusOK, resp.Code, target)
		require.Equal(t, 0, env.Code)
	}
}

func TestIndexEndpoints(t *testing.T) {
	router := setupRouter(t, nil)
	_, _ = doUpload(t, router, "a.md", "# Title\n\nBody text.", map[string]string{"case_id": "c"})

	resp, env := doGet(t, router, "/stats")
	require.Equal(t, http.StatusOK, resp.Code)
	var stats struct {
		IndexName string `json:"index_name"`
		Stats     struct {
			TotalVectorCount int64 `json:"total_vector_count"`
			Dimension        int   `json:"dimension"`
		} `json:"stats"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &stats))
	require.Equal(t, "test-index", stats.IndexName)
	require.Equal(t, int64(1), stats.Stats.TotalVectorCount)
	require.Equal(t, testDim, stats.Stats.Dimension)

	resp, env = doGet(t, router, "/chunks")
	require.Equal(t, http.StatusOK, resp.Code)
	var chunks map[string]interface{}
	require.NoError(t, json.Unmarshal(env.Data, &chunks))
	require.Equal(t, float64(1), chunks["total_vectors"])
	require.NotEmpty(t, chunks["note"])

	resp, _ = doGet(t, router, "/chunks?limit=1001")
	require.Equal(t, http.StatusUnprocessableEntity, resp.Code)

	resp, env = doGet(t, router, "/health")
	require.Equal(t, http.StatusOK, resp.Code)
	require.JSONEq(t, `{"status":"healthy"}`, string(env.Data))
	require.NotEmpty(t, resp.Header().Get("X-Request-Id"))
}
