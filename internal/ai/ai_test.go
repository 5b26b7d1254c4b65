package ai

import (
	"context"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	appErr "github.com/xxxsen/caseindex/internal/pkg/errors"
)

func newHash(t *testing.T, dim int) IEmbedder {
	p, err := NewEmbedProvider("hash", ProviderArgs{Dimension: dim})
	require.NoError(t, err)
	return NewEmbedder(p, "local")
}

func TestHashEmbedderDeterministic(t *testing.T) {
	e := newHash(t, 64)
	a, err := e.Embed(context.Background(), "Motion to dismiss granted", TaskRetrievalDocument)
	require.NoError(t, err)
	b, err := e.Embed(context.Background(), "motion to DISMISS granted", TaskRetrievalQuery)
	require.NoError(t, err)
	require.Len(t, a, 64)
	require.Equal(t, a, b)

	var norm float64
	for _, v := range a {
		norm += float64(v) * float64(v)
	}
	require.InDelta(t, 1.0, math.Sqrt(norm), 1e-5)
	require.Equal(t, "hash:local", e.ModelName())
}

func TestHashEmbedderRequiresDimension(t *testing.T) {
	_, err := NewEmbedProvider("hash", ProviderArgs{})
	require.Error(t, err)
	_, err = NewEmbedProvider("hash", ProviderArgs{Dimension: 8, Data: map[string]interface{}{"key": "short"}})
	require.Error(t, err)
}

func TestUnknownProvider(t *testing.T) {
	_, err := NewEmbedProvider("nope", ProviderArgs{Dimension: 8})
	require.Error(t, err)
	_, err = NewEmbedProvider(" ", ProviderArgs{Dimension: 8})
	require.Error(t, err)
}

type stubEmbedder struct {
	vec []float32
	err error
	hit int
}

func (s *stubEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	s.hit++
	if s.err != nil {
		return nil, s.err
	}
	return s.vec, nil
}

func (s *stubEmbedder) ModelName() string { return "stub:test" }

func TestCheckedEmbedder(t *testing.T) {
	stub := &stubEmbedder{vec: []float32{1, 0, 0}}
	e := NewCheckedEmbedder(stub, 3, time.Second)

	vec, err := e.Embed(context.Background(), "text", TaskRetrievalDocument)
	require.NoError(t, err)
	require.Len(t, vec, 3)

	_, err = e.Embed(context.Background(), "   ", TaskRetrievalDocument)
	require.True(t, errors.Is(err, appErr.ErrEmbedding))
	require.Equal(t, 1, stub.hit)

	stub.vec = []float32{1, 0}
	_, err = e.Embed(context.Background(), "text", TaskRetrievalDocument)
	require.True(t, errors.Is(err, appErr.ErrEmbedding))
	require.Contains(t, err.Error(), "dimension mismatch")

	stub.err = errors.New("quota exceeded")
	_, err = e.Embed(context.Background(), "text", TaskRetrievalDocument)
	require.True(t, errors.Is(err, appErr.ErrEmbedding))
	require.Contains(t, err.Error(), "quota exceeded")
	require.Equal(t, "stub:test", e.ModelName())
}

func TestOpenAIEmbedder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/embeddings", r.URL.Path)
		require.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[{"embedding":[0.5,0.25]}]}`))
	}))
	defer srv.Close()

	p, err := NewEmbedProvider("openai", ProviderArgs{Dimension: 2, Data: map[string]interface{}{
		"api_key":  "sk-test",
		"base_url": srv.URL,
	}})
	require.NoError(t, err)
	vec, err := p.Embed(context.Background(), "text-embedding-3-small", "hello", TaskRetrievalQuery)
	require.NoError(t, err)
	require.Equal(t, []float32{0.5, 0.25}, vec)
}

func TestOpenAIEmbedderErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad key", http.StatusUnauthorized)
	}))
	defer srv.Close()

	p, err := NewEmbedProvider("openai", ProviderArgs{Data: map[string]interface{}{"api_key": "k", "base_url": srv.URL}})
	require.NoError(t, err)
	_, err = p.Embed(context.Background(), "m", "hello", TaskRetrievalQuery)
	require.Error(t, err)
	require.Contains(t, err.Error(), "bad key")

	p, err = NewEmbedProvider("openai", ProviderArgs{})
	require.NoError(t, err)
	_, err = p.Embed(context.Background(), "m", "hello", TaskRetrievalQuery)
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestGeminiWithoutKeyIsUnavailable(t *testing.T) {
	p, err := NewEmbedProvider("gemini", ProviderArgs{Dimension: 768})
	require.NoError(t, err)
	_, err = p.Embed(context.Background(), "text-embedding-004", "hello", TaskRetrievalQuery)
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestOllamaRequiresModel(t *testing.T) {
	_, err := NewEmbedProvider("ollama", ProviderArgs{Dimension: 768})
	require.Error(t, err)
}
