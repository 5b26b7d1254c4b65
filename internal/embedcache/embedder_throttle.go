package embedcache

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/xxxsen/caseindex/internal/ai"
)

// WrapThrottleToEmbedder caps outbound embedding calls at rps requests per
// second. Cache hits above this wrapper never consume a token.
func WrapThrottleToEmbedder(e ai.IEmbedder, rps float64) ai.IEmbedder {
	if e == nil || rps <= 0 {
		return e
	}
	burst := int(rps)
	if burst < 1 {
		burst = 1
	}
	return &throttleEmbedder{next: e, limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

type throttleEmbedder struct {
	next    ai.IEmbedder
	limiter *rate.Limiter
}

func (t *throttleEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return t.next.Embed(ctx, text, taskType)
}

func (t *throttleEmbedder) ModelName() string {
	return t.next.ModelName()
}
