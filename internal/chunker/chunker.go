// Package chunker splits extracted document text into overlapping,
// token-bounded spans.
package chunker

import (
	"context"
	"fmt"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

const (
	DefaultMaxTokens     = 1024
	DefaultOverlapTokens = 200
)

type Config struct {
	MaxTokens     int `json:"max_tokens"`
	OverlapTokens int `json:"overlap_tokens"`
}

func DefaultConfig() Config {
	return Config{MaxTokens: DefaultMaxTokens, OverlapTokens: DefaultOverlapTokens}
}

func (c Config) Validate() error {
	if c.MaxTokens <= 0 {
		return fmt.Errorf("chunk.max_tokens must be positive")
	}
	if c.OverlapTokens < 0 || c.OverlapTokens >= c.MaxTokens {
		return fmt.Errorf("chunk.overlap_tokens must be in [0, max_tokens)")
	}
	return nil
}

// Span is one chunk of the source text. Tokens [Start, End) of the source.
type Span struct {
	Index int
	Start int
	End   int
	Text  string
}

func (s Span) TokenCount() int {
	return s.End - s.Start
}

type Chunker struct {
	cfg Config
}

func New(cfg Config) (*Chunker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Chunker{cfg: cfg}, nil
}

func (c *Chunker) Config() Config {
	return c.cfg
}

// Chunk returns spans where span i starts at token i*(max-overlap) and the
// last span ends at the final token. Blank text yields no spans.
func (c *Chunker) Chunk(ctx context.Context, text string) []Span {
	tokens := Tokenize(text)
	if len(tokens) == 0 {
		return nil
	}
	step := c.cfg.MaxTokens - c.cfg.OverlapTokens
	spans := make([]Span, 0, ExpectedChunks(len(tokens), c.cfg))
	for start := 0; ; start += step {
		end := start + c.cfg.MaxTokens
		if end > len(tokens) {
			end = len(tokens)
		}
		spans = append(spans, Span{
			Index: len(spans),
			Start: start,
			End:   end,
			Text:  strings.Join(tokens[start:end], ""),
		})
		if end == len(tokens) {
			break
		}
	}
	logutil.GetLogger(ctx).Debug("text chunked",
		zap.Int("tokens", len(tokens)),
		zap.Int("chunks", len(spans)),
		zap.Int("max_tokens", c.cfg.MaxTokens),
		zap.Int("overlap_tokens", c.cfg.OverlapTokens),
	)
	return spans
}

// ExpectedChunks is ceil((n-overlap)/(max-overlap)) for n > max.
func ExpectedChunks(tokenCount int, cfg Config) int {
	switch {
	case tokenCount <= 0:
		return 0
	case tokenCount <= cfg.MaxTokens:
		return 1
	}
	step := cfg.MaxTokens - cfg.OverlapTokens
	return (tokenCount - cfg.OverlapTokens + step - 1) / step
}
