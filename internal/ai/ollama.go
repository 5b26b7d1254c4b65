package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms/ollama"
)

const defaultOllamaURL = "http://localhost:11434"

type ollamaConfig struct {
	BaseURL string `json:"base_url"`
	Model   string `json:"model"`
}

// ollamaEmbedProvider is bound to the model it was created with; the model
// passed to Embed is only a label.
type ollamaEmbedProvider struct {
	model  string
	client *ollama.LLM
}

func (p *ollamaEmbedProvider) Name() string {
	return "ollama"
}

func (p *ollamaEmbedProvider) Embed(ctx context.Context, model string, text string, taskType string) ([]float32, error) {
	out, err := p.client.CreateEmbedding(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("ollama model %s returned no embeddings", p.model)
	}
	return out[0], nil
}

func createOllamaEmbedFactory(args ProviderArgs) (IEmbedProvider, error) {
	cfg := &ollamaConfig{}
	if err := decodeConfig(args.Data, cfg); err != nil {
		return nil, err
	}
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultOllamaURL
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = strings.TrimSpace(args.Model)
	}
	if model == "" {
		return nil, fmt.Errorf("ollama embedding model is required")
	}
	client, err := ollama.New(ollama.WithModel(model), ollama.WithServerURL(baseURL))
	if err != nil {
		return nil, fmt.Errorf("init ollama client: %w", err)
	}
	return &ollamaEmbedProvider{model: model, client: client}, nil
}

func init() {
	RegisterEmbed("ollama", createOllamaEmbedFactory)
}
