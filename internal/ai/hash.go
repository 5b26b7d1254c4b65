package ai

import (
	"context"
	"fmt"
	"math"
	"strings"
	"unicode"

	"github.com/minio/highwayhash"
)

var hashEmbedKey = []byte("caseindex-hash-embedder-key-0032")

type hashConfig struct {
	Key string `json:"key"`
}

// hashEmbedProvider is a local feature-hashing embedder. Every lower-cased
// word adds +1 or -1 to one bucket picked by its highwayhash; the result is
// L2 normalised. It needs no network and is stable across runs.
type hashEmbedProvider struct {
	key       []byte
	dimension int
}

func (p *hashEmbedProvider) Name() string {
	return "hash"
}

func (p *hashEmbedProvider) Embed(ctx context.Context, model string, text string, taskType string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	vec := make([]float32, p.dimension)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	for _, w := range words {
		sum := highwayhash.Sum64([]byte(w), p.key)
		idx := int(sum % uint64(p.dimension))
		if sum>>63 == 1 {
			vec[idx]--
			continue
		}
		vec[idx]++
	}
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec, nil
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= scale
	}
	return vec, nil
}

func createHashEmbedFactory(args ProviderArgs) (IEmbedProvider, error) {
	cfg := &hashConfig{}
	if err := decodeConfig(args.Data, cfg); err != nil {
		return nil, err
	}
	if args.Dimension <= 0 {
		return nil, fmt.Errorf("hash embedder requires a positive dimension")
	}
	key := hashEmbedKey
	if cfg.Key != "" {
		if len(cfg.Key) != 32 {
			return nil, fmt.Errorf("hash embedder key must be 32 bytes")
		}
		key = []byte(cfg.Key)
	}
	return &hashEmbedProvider{key: key, dimension: args.Dimension}, nil
}

func init() {
	RegisterEmbed("hash", createHashEmbedFactory)
}
