package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Supported model backend providers.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// Config holds all configuration for crewquery-engine.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (API keys) must only come from environment variables.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"8080"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	Version  string `yaml:"-"` // Set at load time, not from config

	// Model backend configuration
	LLM LLMConfig `yaml:"llm"`

	// Pipeline tuning knobs. All empirically chosen constants live here
	// rather than in code.
	Pipeline PipelineConfig `yaml:"pipeline"`

	// Schema catalog configuration
	Schema SchemaConfig `yaml:"schema"`

	// Application store (conversations) configuration
	AppDB AppDBConfig `yaml:"app_db"`

	// Databases lists the physical databases attached by the execution
	// engine under their fixed aliases.
	Databases []AttachedDatabase `yaml:"databases"`
}

// LLMConfig holds chat and embedding backend settings. Each call tries the
// primary endpoint first and the fallback endpoint second.
type LLMConfig struct {
	Provider string `yaml:"provider" env:"LLM_PROVIDER" env-default:"openai"` // openai | anthropic

	Endpoint         string `yaml:"endpoint" env:"LLM_ENDPOINT" env-default:""`
	FallbackEndpoint string `yaml:"fallback_endpoint" env:"LLM_FALLBACK_ENDPOINT" env-default:""`
	Model            string `yaml:"model" env:"LLM_MODEL" env-default:""`
	// FastModel serves cheap calls (intent classification, rewriting,
	// general chat). Falls back to Model when empty.
	FastModel string `yaml:"fast_model" env:"LLM_FAST_MODEL" env-default:""`
	APIKey    string `yaml:"-" env:"LLM_API_KEY"` // Secret - not in YAML

	EmbeddingEndpoint         string `yaml:"embedding_endpoint" env:"EMBEDDING_ENDPOINT" env-default:""`
	EmbeddingFallbackEndpoint string `yaml:"embedding_fallback_endpoint" env:"EMBEDDING_FALLBACK_ENDPOINT" env-default:""`
	EmbeddingModel            string `yaml:"embedding_model" env:"EMBEDDING_MODEL" env-default:"text-embedding-3-small"`

	TimeoutSeconds int `yaml:"timeout_seconds" env:"LLM_TIMEOUT_SECONDS" env-default:"120"`
}

// Timeout returns the per-call deadline for model requests.
func (c *LLMConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// EffectiveFastModel returns FastModel, or Model when no fast model is set.
func (c *LLMConfig) EffectiveFastModel() string {
	if c.FastModel != "" {
		return c.FastModel
	}
	return c.Model
}

// PipelineConfig bounds the text-to-SQL pipeline.
type PipelineConfig struct {
	// MaxAttempts caps generate-validate-execute cycles per request.
	MaxAttempts int `yaml:"max_attempts" env:"PIPELINE_MAX_ATTEMPTS" env-default:"3"`
	// RowLimit caps rows returned by the execution engine.
	RowLimit int `yaml:"row_limit" env:"PIPELINE_ROW_LIMIT" env-default:"100"`
	// SummaryRowLimit caps rows forwarded to the summarizer prompt. It is
	// deliberately tighter than RowLimit to bound prompt size.
	SummaryRowLimit int `yaml:"summary_row_limit" env:"PIPELINE_SUMMARY_ROW_LIMIT" env-default:"20"`
	// TopK bounds schema retrieval results.
	TopK int `yaml:"top_k" env:"PIPELINE_TOP_K" env-default:"5"`
	// FullSchemaTokenThreshold switches retrieval to full-dump mode when
	// the whole catalog fits under this estimated token count.
	FullSchemaTokenThreshold int `yaml:"full_schema_token_threshold" env:"PIPELINE_FULL_SCHEMA_TOKEN_THRESHOLD" env-default:"30000"`
	// ConfidenceThreshold below which intent classification asks for
	// clarification instead of committing.
	ConfidenceThreshold float64 `yaml:"confidence_threshold" env:"PIPELINE_CONFIDENCE_THRESHOLD" env-default:"0.5"`
	// RewriteWindow is how many prior turns the query rewriter sees.
	RewriteWindow int `yaml:"rewrite_window" env:"PIPELINE_REWRITE_WINDOW" env-default:"3"`
	// HistoryWindow is how many prior turns general chat and intent
	// classification see.
	HistoryWindow int `yaml:"history_window" env:"PIPELINE_HISTORY_WINDOW" env-default:"5"`
	// QueryTimeoutSeconds bounds a single SQL execution.
	QueryTimeoutSeconds int `yaml:"query_timeout_seconds" env:"PIPELINE_QUERY_TIMEOUT_SECONDS" env-default:"30"`
}

// QueryTimeout returns the per-statement execution deadline.
func (c *PipelineConfig) QueryTimeout() time.Duration {
	return time.Duration(c.QueryTimeoutSeconds) * time.Second
}

// SchemaConfig locates the catalog file and few-shot examples.
type SchemaConfig struct {
	Path        string `yaml:"path" env:"SCHEMA_PATH" env-default:"data/schema/full_schema.json"`
	FewShotPath string `yaml:"few_shot_path" env:"FEW_SHOT_PATH" env-default:"data/few_shot_examples.yaml"`
}

// AppDBConfig holds the durable conversation store settings.
type AppDBConfig struct {
	Path           string `yaml:"path" env:"APP_DB_PATH" env-default:"data/app.db"`
	MigrationsPath string `yaml:"migrations_path" env:"APP_DB_MIGRATIONS_PATH" env-default:"migrations"`
}

// AttachedDatabase maps one physical database file to the fixed alias used
// to qualify its tables in generated SQL.
type AttachedDatabase struct {
	Alias string `yaml:"alias"`
	Path  string `yaml:"path"`
}

// Load reads configuration from config.yaml with environment variable
// overrides. The version parameter is injected at build time and set on the
// returned Config.
func Load(version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
		return nil, fmt.Errorf("failed to read config.yaml: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate rejects configurations the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.Pipeline.MaxAttempts < 1 {
		return fmt.Errorf("pipeline.max_attempts must be >= 1, got %d", c.Pipeline.MaxAttempts)
	}
	if c.Pipeline.RowLimit < 1 {
		return fmt.Errorf("pipeline.row_limit must be >= 1, got %d", c.Pipeline.RowLimit)
	}
	if c.Pipeline.SummaryRowLimit > c.Pipeline.RowLimit {
		return fmt.Errorf("pipeline.summary_row_limit (%d) must not exceed pipeline.row_limit (%d)",
			c.Pipeline.SummaryRowLimit, c.Pipeline.RowLimit)
	}
	if c.Pipeline.ConfidenceThreshold < 0 || c.Pipeline.ConfidenceThreshold > 1 {
		return fmt.Errorf("pipeline.confidence_threshold must be in [0,1], got %f", c.Pipeline.ConfidenceThreshold)
	}
	switch c.LLM.Provider {
	case ProviderOpenAI, ProviderAnthropic:
	default:
		return fmt.Errorf("llm.provider must be openai or anthropic, got %q", c.LLM.Provider)
	}
	seen := make(map[string]bool, len(c.Databases))
	for _, db := range c.Databases {
		if db.Alias == "" || db.Path == "" {
			return fmt.Errorf("every attached database needs both alias and path")
		}
		if seen[db.Alias] {
			return fmt.Errorf("duplicate database alias %q", db.Alias)
		}
		seen[db.Alias] = true
	}
	return nil
}
