package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	appErr "github.com/xxxsen/caseindex/internal/pkg/errors"
)

type checkedEmbedder struct {
	next      IEmbedder
	dimension int
	timeout   time.Duration
}

// NewCheckedEmbedder bounds every call by timeout (0 disables it), rejects
// empty input and any vector whose length differs from dimension. All
// failures come back as ErrEmbedding.
func NewCheckedEmbedder(next IEmbedder, dimension int, timeout time.Duration) IEmbedder {
	return &checkedEmbedder{next: next, dimension: dimension, timeout: timeout}
}

func (c *checkedEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, appErr.Embedding(fmt.Errorf("empty text"))
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	vec, err := c.next.Embed(ctx, text, taskType)
	if err != nil {
		return nil, appErr.Embedding(err)
	}
	if c.dimension > 0 && len(vec) != c.dimension {
		return nil, appErr.Embedding(fmt.Errorf("dimension mismatch: got %d, want %d", len(vec), c.dimension))
	}
	return vec, nil
}

func (c *checkedEmbedder) ModelName() string {
	return c.next.ModelName()
}
