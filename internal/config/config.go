package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	AssetAPI  AssetAPIConfig  `yaml:"assetapi" mapstructure:"assetapi"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	OpenAI    OpenAIConfig    `yaml:"openai" mapstructure:"openai"`
	Index     IndexConfig     `yaml:"index" mapstructure:"index"`
	Ingest    IngestConfig    `yaml:"ingest" mapstructure:"ingest"`
	Pipeline  PipelineConfig  `yaml:"pipeline" mapstructure:"pipeline"`
	Staging   StagingConfig   `yaml:"staging" mapstructure:"staging"`
	Retry     RetryConfig     `yaml:"retry" mapstructure:"retry"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// AssetAPIConfig holds credentials and endpoints for the asset-management API.
type AssetAPIConfig struct {
	BaseURL   string  `yaml:"base_url" mapstructure:"base_url"`
	UserEmail string  `yaml:"user_email" mapstructure:"user_email"`
	RateRPS   float64 `yaml:"rate_rps" mapstructure:"rate_rps"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key       string `yaml:"key" mapstructure:"key"`
	Model     string `yaml:"model" mapstructure:"model"`
	MaxTokens int    `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// OpenAIConfig holds OpenAI API settings for the embedding backend.
type OpenAIConfig struct {
	Key            string `yaml:"key" mapstructure:"key"`
	EmbeddingModel string `yaml:"embedding_model" mapstructure:"embedding_model"`
}

// IndexConfig configures the local chunk index.
type IndexConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// IngestConfig configures document ingestion.
type IngestConfig struct {
	DataDir       string `yaml:"data_dir" mapstructure:"data_dir"`
	Workers       int    `yaml:"workers" mapstructure:"workers"`
	ChunkSize     int    `yaml:"chunk_size" mapstructure:"chunk_size"`
	ChunkOverlap  int    `yaml:"chunk_overlap" mapstructure:"chunk_overlap"`
	PdfToTextPath string `yaml:"pdftotext_path" mapstructure:"pdftotext_path"`
}

// PipelineConfig configures extraction behavior.
type PipelineConfig struct {
	// AssetNamePrefix is prepended to the extracted fund name before staging,
	// e.g. to mark records created by the pipeline in a shared environment.
	AssetNamePrefix string `yaml:"asset_name_prefix" mapstructure:"asset_name_prefix"`
	TopK            int    `yaml:"top_k" mapstructure:"top_k"`
}

// StagingConfig configures the staging store and hand-off file.
type StagingConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	SQLitePath  string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
	File        string `yaml:"file" mapstructure:"file"`
}

// RetryConfig configures retry behavior for network calls.
type RetryConfig struct {
	MaxAttempts      int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int     `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int     `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
	Multiplier       float64 `yaml:"multiplier" mapstructure:"multiplier"`
	JitterFraction   float64 `yaml:"jitter_fraction" mapstructure:"jitter_fraction"`
}

// ServerConfig configures the review API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("FUNDINTAKE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("assetapi.rate_rps", 5)
	v.SetDefault("anthropic.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.max_tokens", 4096)
	v.SetDefault("openai.embedding_model", "text-embedding-3-small")
	v.SetDefault("index.path", "fundintake-index.db")
	v.SetDefault("ingest.data_dir", "data")
	v.SetDefault("ingest.workers", 4)
	v.SetDefault("ingest.chunk_size", 1000)
	v.SetDefault("ingest.chunk_overlap", 200)
	v.SetDefault("ingest.pdftotext_path", "pdftotext")
	v.SetDefault("pipeline.top_k", 7)
	v.SetDefault("staging.driver", "sqlite")
	v.SetDefault("staging.sqlite_path", "fundintake-staging.db")
	v.SetDefault("staging.file", "collected_data.json")
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.initial_backoff_ms", 500)
	v.SetDefault("retry.max_backoff_ms", 30000)
	v.SetDefault("retry.multiplier", 2.0)
	v.SetDefault("retry.jitter_fraction", 0.25)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings required before any extraction begins.
// Missing credentials abort the run at startup.
func (c *Config) Validate() error {
	if c.AssetAPI.BaseURL == "" {
		return eris.New("config: assetapi.base_url is required")
	}
	if c.AssetAPI.UserEmail == "" {
		return eris.New("config: assetapi.user_email is required")
	}
	if c.Anthropic.Key == "" {
		return eris.New("config: anthropic.key is required")
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
