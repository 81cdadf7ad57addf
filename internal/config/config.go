package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Mailbox   MailboxConfig   `yaml:"mailbox"`
	OpenAI    OpenAIConfig    `yaml:"openai"`
	Bedrock   BedrockConfig   `yaml:"bedrock"`
	SES       SESConfig       `yaml:"ses"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	AutoSend  AutoSendConfig  `yaml:"auto_send"`
	Reply     ReplyConfig     `yaml:"reply"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port int    `yaml:"port"`
	Host string `yaml:"host"`
}

// GetHost returns the server host, with ECS detection
func (c ServerConfig) GetHost() string {
	// On ECS/container, listen on all interfaces
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("AWS_EXECUTION_ENV") != "" {
		return "0.0.0.0"
	}
	// Allow override via environment
	if host := os.Getenv("SERVER_HOST"); host != "" {
		return host
	}
	return c.Host
}

// DatabaseConfig holds PostgreSQL connection settings
type DatabaseConfig struct {
	URL             string `yaml:"url"`
	MaxOpenConns    int    `yaml:"max_open_conns"`
	MaxIdleConns    int    `yaml:"max_idle_conns"`
	ConnMaxLifetime int    `yaml:"conn_max_lifetime_minutes"`
}

// RedisConfig holds Redis settings for distributed locks and rate limiting.
// Optional: when disabled, locks fall back to PG advisory locks and the LLM
// rate limiter is bypassed.
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// MailboxConfig holds the OTA mailbox (Gmail-style API) configuration
type MailboxConfig struct {
	BaseURL         string `yaml:"base_url"`
	ClientID        string `yaml:"client_id"`
	ClientSecret    string `yaml:"client_secret"`
	RefreshToken    string `yaml:"refresh_token"`
	OperatorAddress string `yaml:"operator_address"`
	Query           string `yaml:"query"`
	Label           string `yaml:"label"`
	TimeoutSeconds  int    `yaml:"timeout_seconds"`
}

// Timeout returns the configured timeout as a duration
func (c MailboxConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// OpenAIConfig holds OpenAI API configuration for drafting and embeddings
type OpenAIConfig struct {
	APIKey              string `yaml:"api_key"`
	Model               string `yaml:"model"`
	EmbeddingModel      string `yaml:"embedding_model"`
	EmbeddingDimensions int    `yaml:"embedding_dimensions"`
	BaseURL             string `yaml:"base_url"`
	TimeoutSeconds      int    `yaml:"timeout_seconds"`
	Enabled             bool   `yaml:"enabled"`
}

// Timeout returns the configured timeout as a duration
func (c OpenAIConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// BedrockConfig holds AWS Bedrock configuration (alternative LLM backend)
type BedrockConfig struct {
	Region         string `yaml:"region"`
	AccessKey      string `yaml:"access_key"`
	SecretKey      string `yaml:"secret_key"`
	ModelID        string `yaml:"model_id"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	Enabled        bool   `yaml:"enabled"`
}

// Timeout returns the configured timeout as a duration
func (c BedrockConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// SESConfig holds AWS SES configuration for staff alert emails
type SESConfig struct {
	Region          string   `yaml:"region"`
	AccessKey       string   `yaml:"access_key"`
	SecretKey       string   `yaml:"secret_key"`
	FromAddress     string   `yaml:"from_address"`
	AlertRecipients []string `yaml:"alert_recipients"`
	TimeoutSeconds  int      `yaml:"timeout_seconds"`
	Enabled         bool     `yaml:"enabled"`
}

// Timeout returns the configured timeout as a duration
func (c SESConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// PipelineConfig holds ingestion pipeline configuration
type PipelineConfig struct {
	PollIntervalSeconds int  `yaml:"poll_interval_seconds"`
	LookbackDays        int  `yaml:"lookback_days"`
	BatchMax            int  `yaml:"batch_max"`
	WorkerCount         int  `yaml:"worker_count"`
	QueueSize           int  `yaml:"queue_size"`
	UseLLM              bool `yaml:"use_llm"`
	RetainRawPayload    bool `yaml:"retain_raw_payload"`
}

// PollInterval returns the polling interval as a duration
func (c PipelineConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSeconds) * time.Second
}

// AutoSendConfig holds the auto-send gate thresholds
type AutoSendConfig struct {
	MinTotal int     `yaml:"min_total"`
	MinRate  float64 `yaml:"min_rate"`
}

// ReplyConfig holds reply composition settings
type ReplyConfig struct {
	DefaultLocale string `yaml:"default_locale"`
	OperatorName  string `yaml:"operator_name"`
	Signature     string `yaml:"signature"`
}

// RateLimitConfig bounds outbound LLM traffic per minute (Redis-backed)
type RateLimitConfig struct {
	LLMPerMinute int `yaml:"llm_per_minute"`
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	// Set defaults
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 30
	}
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = "localhost:6379"
	}
	if cfg.Mailbox.BaseURL == "" {
		cfg.Mailbox.BaseURL = "https://gmail.googleapis.com"
	}
	if cfg.Mailbox.Query == "" {
		cfg.Mailbox.Query = "from:(automated@airbnb.com OR express@airbnb.com)"
	}
	if cfg.Mailbox.TimeoutSeconds == 0 {
		cfg.Mailbox.TimeoutSeconds = 30
	}
	if cfg.OpenAI.Model == "" {
		cfg.OpenAI.Model = "gpt-4o-mini"
	}
	if cfg.OpenAI.EmbeddingModel == "" {
		cfg.OpenAI.EmbeddingModel = "text-embedding-3-small"
	}
	if cfg.OpenAI.EmbeddingDimensions == 0 {
		cfg.OpenAI.EmbeddingDimensions = 1536
	}
	if cfg.OpenAI.BaseURL == "" {
		cfg.OpenAI.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.OpenAI.TimeoutSeconds == 0 {
		cfg.OpenAI.TimeoutSeconds = 30
	}
	if cfg.Bedrock.Region == "" {
		cfg.Bedrock.Region = "us-west-2"
	}
	if cfg.Bedrock.ModelID == "" {
		cfg.Bedrock.ModelID = "anthropic.claude-3-5-sonnet-20241022-v2:0"
	}
	if cfg.Bedrock.TimeoutSeconds == 0 {
		cfg.Bedrock.TimeoutSeconds = 30
	}
	if cfg.SES.Region == "" {
		cfg.SES.Region = "us-west-2"
	}
	if cfg.SES.TimeoutSeconds == 0 {
		cfg.SES.TimeoutSeconds = 30
	}
	if cfg.Pipeline.PollIntervalSeconds == 0 {
		cfg.Pipeline.PollIntervalSeconds = 60
	}
	if cfg.Pipeline.LookbackDays == 0 {
		cfg.Pipeline.LookbackDays = 7
	}
	if cfg.Pipeline.BatchMax == 0 {
		cfg.Pipeline.BatchMax = 50
	}
	if cfg.Pipeline.WorkerCount == 0 {
		cfg.Pipeline.WorkerCount = 4
	}
	if cfg.Pipeline.QueueSize == 0 {
		cfg.Pipeline.QueueSize = 256
	}
	if cfg.AutoSend.MinTotal == 0 {
		cfg.AutoSend.MinTotal = 5
	}
	if cfg.AutoSend.MinRate == 0 {
		cfg.AutoSend.MinRate = 0.8
	}
	if cfg.Reply.DefaultLocale == "" {
		cfg.Reply.DefaultLocale = "ko"
	}
	if cfg.RateLimit.LLMPerMinute == 0 {
		cfg.RateLimit.LLMPerMinute = 60
	}

	return &cfg, nil
}

// LoadFromEnv loads configuration with environment variable overrides.
// It automatically loads a .env file (if present) before reading env vars,
// so secrets can live in .env locally and in real env vars on ECS.
func LoadFromEnv(path string) (*Config, error) {
	// Load .env file if it exists (no error if missing)
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	// Override with environment variables if present
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		cfg.Database.URL = dbURL
	}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.Redis.Addr = addr
		cfg.Redis.Enabled = true
	}
	if pw := os.Getenv("REDIS_PASSWORD"); pw != "" {
		cfg.Redis.Password = pw
	}
	if v := os.Getenv("MAILBOX_CLIENT_ID"); v != "" {
		cfg.Mailbox.ClientID = v
	}
	if v := os.Getenv("MAILBOX_CLIENT_SECRET"); v != "" {
		cfg.Mailbox.ClientSecret = v
	}
	if v := os.Getenv("MAILBOX_REFRESH_TOKEN"); v != "" {
		cfg.Mailbox.RefreshToken = v
	}
	if v := os.Getenv("OPERATOR_EMAIL"); v != "" {
		cfg.Mailbox.OperatorAddress = v
	}
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		cfg.OpenAI.APIKey = apiKey
		cfg.OpenAI.Enabled = true
	}
	if baseURL := os.Getenv("OPENAI_BASE_URL"); baseURL != "" {
		cfg.OpenAI.BaseURL = baseURL
	}
	if accessKey := os.Getenv("AWS_BEDROCK_ACCESS_KEY"); accessKey != "" {
		cfg.Bedrock.AccessKey = accessKey
	}
	if secretKey := os.Getenv("AWS_BEDROCK_SECRET_KEY"); secretKey != "" {
		cfg.Bedrock.SecretKey = secretKey
	}
	if region := os.Getenv("AWS_BEDROCK_REGION"); region != "" {
		cfg.Bedrock.Region = region
	}
	if accessKey := os.Getenv("AWS_SES_ACCESS_KEY"); accessKey != "" {
		cfg.SES.AccessKey = accessKey
	}
	if secretKey := os.Getenv("AWS_SES_SECRET_KEY"); secretKey != "" {
		cfg.SES.SecretKey = secretKey
	}
	if region := os.Getenv("AWS_SES_REGION"); region != "" {
		cfg.SES.Region = region
	}

	return cfg, nil
}

// Validate checks the settings the pipeline cannot run without.
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("config: database.url is required (or set DATABASE_URL)")
	}
	if c.Mailbox.ClientID == "" || c.Mailbox.ClientSecret == "" {
		return fmt.Errorf("config: mailbox oauth client id/secret are required")
	}
	if c.Mailbox.OperatorAddress == "" {
		return fmt.Errorf("config: mailbox.operator_address is required")
	}
	if c.Pipeline.UseLLM && !c.OpenAI.Enabled && !c.Bedrock.Enabled {
		return fmt.Errorf("config: pipeline.use_llm requires openai or bedrock to be enabled")
	}
	return nil
}
