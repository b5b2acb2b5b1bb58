package llm

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/crewquery/engine/pkg/config"
)

// Clients bundles the clients the pipeline needs: the main chat client used
// for SQL generation and summaries, a cheaper fast client for lightweight
// calls, and an embedder for semantic schema retrieval.
type Clients struct {
	Chat     Client
	Fast     Client
	Embedder Embedder
}

// NewClients builds the configured client set. Chat and Fast are wrapped in
// failover when a fallback endpoint is configured.
func NewClients(cfg *config.LLMConfig, logger *zap.Logger) (*Clients, error) {
	chat, err := newChatClient(cfg, cfg.Model, logger)
	if err != nil {
		return nil, fmt.Errorf("chat client: %w", err)
	}

	fast := chat
	if cfg.EffectiveFastModel() != cfg.Model {
		fast, err = newChatClient(cfg, cfg.EffectiveFastModel(), logger)
		if err != nil {
			return nil, fmt.Errorf("fast client: %w", err)
		}
	}

	embedder, err := newEmbedder(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("embedder: %w", err)
	}

	return &Clients{Chat: chat, Fast: fast, Embedder: embedder}, nil
}

func newChatClient(cfg *config.LLMConfig, model string, logger *zap.Logger) (Client, error) {
	build := func(endpoint string) (Client, error) {
		switch cfg.Provider {
		case config.ProviderOpenAI:
			return NewOpenAIClient(&OpenAIConfig{
				Endpoint: endpoint,
				Model:    model,
				APIKey:   cfg.APIKey,
			}, logger)
		case config.ProviderAnthropic:
			return NewAnthropicClient(&AnthropicConfig{
				Endpoint: endpoint,
				Model:    model,
				APIKey:   cfg.APIKey,
			}, logger)
		default:
			return nil, fmt.Errorf("unsupported provider %q", cfg.Provider)
		}
	}

	primary, err := build(cfg.Endpoint)
	if err != nil {
		return nil, err
	}

	var fallback Client
	if cfg.FallbackEndpoint != "" {
		fallback, err = build(cfg.FallbackEndpoint)
		if err != nil {
			return nil, fmt.Errorf("fallback: %w", err)
		}
	}

	return NewFailoverClient(primary, fallback, cfg.Timeout(), logger), nil
}

// newEmbedder always uses the OpenAI-compatible embedding API; Anthropic
// offers no embedding endpoint, so anthropic deployments point
// EmbeddingEndpoint at a compatible service.
func newEmbedder(cfg *config.LLMConfig, logger *zap.Logger) (Embedder, error) {
	endpoint := cfg.EmbeddingEndpoint
	if endpoint == "" {
		if cfg.Provider == config.ProviderAnthropic {
			// Semantic retrieval stays disabled; the retriever falls back
			// to keyword matching.
			return nil, nil
		}
		endpoint = cfg.Endpoint
	}

	build := func(ep string) (Embedder, error) {
		return NewOpenAIClient(&OpenAIConfig{
			Endpoint:       ep,
			Model:          cfg.Model,
			EmbeddingModel: cfg.EmbeddingModel,
			APIKey:         cfg.APIKey,
		}, logger)
	}

	primary, err := build(endpoint)
	if err != nil {
		return nil, err
	}

	var fallback Embedder
	if cfg.EmbeddingFallbackEndpoint != "" {
		fallback, err = build(cfg.EmbeddingFallbackEndpoint)
		if err != nil {
			return nil, fmt.Errorf("fallback: %w", err)
		}
	}

	return NewFailoverEmbedder(primary, fallback, cfg.Timeout(), logger), nil
}
