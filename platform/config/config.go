// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSOrigins() []string
	GetCallbackRateLimit() float64
}

// DatabaseConfig provides database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
}

// StoreConfig selects the Record Store backend.
type StoreConfig interface {
	GetStoreBackend() string
	GetDataDir() string
}

// HubSpotConfig provides settings for the CRM collaborator.
type HubSpotConfig interface {
	GetHubSpotAccessToken() string
	GetHubSpotBaseURL() string
	GetHubSpotRequestsPerSecond() float64
	GetCollaboratorTimeout() time.Duration
}

// SlackConfig provides settings for the chat collaborator and the callback verifier.
type SlackConfig interface {
	GetSlackBotToken() string
	GetSlackSigningSecret() string
	GetSlackChannelID() string
	GetSlackAPIBaseURL() string
	GetCollaboratorTimeout() time.Duration
}

// OpenAIConfig provides settings for the LLM collaborators.
type OpenAIConfig interface {
	GetOpenAIAPIKey() string
	GetOpenAIBaseURL() string
	GetOpenAIModel() string
	GetCollaboratorTimeout() time.Duration
}

// PipelineConfig provides settings for stage execution.
type PipelineConfig interface {
	GetPipelineConcurrency() int
	GetPipelineFailurePolicy() string
	GetPhoneDefaultRegion() string
}

// StalenessConfig provides the per-stage staleness threshold table.
type StalenessConfig interface {
	GetThresholds() Thresholds
}

// SchedulerConfig provides settings for the asynq scheduler.
type SchedulerConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
	GetPipelineSchedule() string
}

// TriggerConfig provides settings for authenticated pipeline triggers.
type TriggerConfig interface {
	GetPipelineTriggerURL() string
	GetPipelineTriggerSecret() string
}

// MinIOConfig provides settings for MinIO S3-compatible storage.
type MinIOConfig interface {
	GetMinIOEndpoint() string
	GetMinIOAccessKey() string
	GetMinIOSecretKey() string
	GetMinIOUseSSL() bool
	GetMinIOArchiveBucket() string
	IsMinIOEnabled() bool
}

// KafkaConfig provides settings for the lifecycle event stream.
type KafkaConfig interface {
	GetKafkaBrokers() []string
	GetKafkaTopic() string
	GetKafkaMaxAttempts() int
	IsKafkaEnabled() bool
}

// SMTPConfig provides settings for direct email delivery of approved drafts.
type SMTPConfig interface {
	GetSMTPHost() string
	GetSMTPPort() int
	GetSMTPUsername() string
	GetSMTPPassword() string
	GetSMTPFromEmail() string
	GetSMTPFromName() string
	IsSMTPEnabled() bool
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env               string
	HTTPAddr          string
	CORSOrigins       []string
	CallbackRateLimit float64

	StoreBackend string
	DataDir      string
	DatabaseURL  string

	OpenAIAPIKey  string
	OpenAIBaseURL string
	OpenAIModel   string

	HubSpotAccessToken       string
	HubSpotBaseURL           string
	HubSpotRequestsPerSecond float64

	SlackBotToken      string
	SlackSigningSecret string
	SlackChannelID     string
	SlackAPIBaseURL    string

	CollaboratorTimeout   time.Duration
	PipelineConcurrency   int
	PipelineFailurePolicy string
	PhoneDefaultRegion    string

	Thresholds Thresholds

	RedisURL         string
	RedisTLSInsecure bool
	AsynqQueueName   string
	AsynqConcurrency int
	PipelineSchedule string

	PipelineTriggerURL    string
	PipelineTriggerSecret string

	MinIOEndpoint      string
	MinIOAccessKey     string
	MinIOSecretKey     string
	MinIOUseSSL        bool
	MinIOArchiveBucket string

	KafkaBrokers     []string
	KafkaTopic       string
	KafkaMaxAttempts int

	SMTPHost      string
	SMTPPort      int
	SMTPUsername  string
	SMTPPassword  string
	SMTPFromEmail string
	SMTPFromName  string
}

// =============================================================================
// Interface Implementations
// =============================================================================

// HTTPConfig
func (c *Config) GetHTTPAddr() string           { return c.HTTPAddr }
func (c *Config) GetCORSOrigins() []string      { return c.CORSOrigins }
func (c *Config) GetCallbackRateLimit() float64 { return c.CallbackRateLimit }

// DatabaseConfig
func (c *Config) GetDatabaseURL() string { return c.DatabaseURL }

// StoreConfig
func (c *Config) GetStoreBackend() string { return c.StoreBackend }
func (c *Config) GetDataDir() string      { return c.DataDir }

// HubSpotConfig
func (c *Config) GetHubSpotAccessToken() string        { return c.HubSpotAccessToken }
func (c *Config) GetHubSpotBaseURL() string            { return c.HubSpotBaseURL }
func (c *Config) GetHubSpotRequestsPerSecond() float64 { return c.HubSpotRequestsPerSecond }
func (c *Config) GetCollaboratorTimeout() time.Duration {
	return c.CollaboratorTimeout
}

// SlackConfig
func (c *Config) GetSlackBotToken() string      { return c.SlackBotToken }
func (c *Config) GetSlackSigningSecret() string { return c.SlackSigningSecret }
func (c *Config) GetSlackChannelID() string     { return c.SlackChannelID }
func (c *Config) GetSlackAPIBaseURL() string    { return c.SlackAPIBaseURL }

// OpenAIConfig
func (c *Config) GetOpenAIAPIKey() string  { return c.OpenAIAPIKey }
func (c *Config) GetOpenAIBaseURL() string { return c.OpenAIBaseURL }
func (c *Config) GetOpenAIModel() string   { return c.OpenAIModel }

// PipelineConfig
func (c *Config) GetPipelineConcurrency() int      { return c.PipelineConcurrency }
func (c *Config) GetPipelineFailurePolicy() string { return c.PipelineFailurePolicy }
func (c *Config) GetPhoneDefaultRegion() string    { return c.PhoneDefaultRegion }

// StalenessConfig
func (c *Config) GetThresholds() Thresholds { return c.Thresholds }

// SchedulerConfig
func (c *Config) GetRedisURL() string         { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool   { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string   { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int    { return c.AsynqConcurrency }
func (c *Config) GetPipelineSchedule() string { return c.PipelineSchedule }

// TriggerConfig
func (c *Config) GetPipelineTriggerURL() string    { return c.PipelineTriggerURL }
func (c *Config) GetPipelineTriggerSecret() string { return c.PipelineTriggerSecret }

// MinIOConfig
func (c *Config) GetMinIOEndpoint() string      { return c.MinIOEndpoint }
func (c *Config) GetMinIOAccessKey() string     { return c.MinIOAccessKey }
func (c *Config) GetMinIOSecretKey() string     { return c.MinIOSecretKey }
func (c *Config) GetMinIOUseSSL() bool          { return c.MinIOUseSSL }
func (c *Config) GetMinIOArchiveBucket() string { return c.MinIOArchiveBucket }
func (c *Config) IsMinIOEnabled() bool          { return c.MinIOEndpoint != "" }

// KafkaConfig
func (c *Config) GetKafkaBrokers() []string { return c.KafkaBrokers }
func (c *Config) GetKafkaTopic() string     { return c.KafkaTopic }
func (c *Config) GetKafkaMaxAttempts() int  { return c.KafkaMaxAttempts }
func (c *Config) IsKafkaEnabled() bool      { return len(c.KafkaBrokers) > 0 }

// SMTPConfig
func (c *Config) GetSMTPHost() string      { return c.SMTPHost }
func (c *Config) GetSMTPPort() int         { return c.SMTPPort }
func (c *Config) GetSMTPUsername() string  { return c.SMTPUsername }
func (c *Config) GetSMTPPassword() string  { return c.SMTPPassword }
func (c *Config) GetSMTPFromEmail() string { return c.SMTPFromEmail }
func (c *Config) GetSMTPFromName() string  { return c.SMTPFromName }
func (c *Config) IsSMTPEnabled() bool      { return c.SMTPHost != "" && c.SMTPFromEmail != "" }

// =============================================================================
// Loading
// =============================================================================

// Load reads the API process configuration. Missing collaborator credentials
// fail here so the process never starts half-configured.
func Load() (*Config, error) {
	cfg, err := load()
	if err != nil {
		return nil, err
	}

	if cfg.OpenAIAPIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is required")
	}
	if cfg.HubSpotAccessToken == "" {
		return nil, fmt.Errorf("HUBSPOT_ACCESS_TOKEN is required")
	}
	if !strings.HasPrefix(cfg.SlackBotToken, "xoxb-") {
		return nil, fmt.Errorf("SLACK_BOT_TOKEN must start with xoxb-")
	}
	if cfg.SlackSigningSecret == "" {
		return nil, fmt.Errorf("SLACK_SIGNING_SECRET is required")
	}
	if cfg.SlackChannelID == "" {
		return nil, fmt.Errorf("SLACK_CHANNEL_ID is required")
	}
	if cfg.StoreBackend == StoreBackendPostgres && cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required when STORE_BACKEND=postgres")
	}

	return cfg, nil
}

// LoadScheduler reads the configuration for the scheduler process, which only
// needs Redis and the address of the API it triggers.
func LoadScheduler() (*Config, error) {
	cfg, err := load()
	if err != nil {
		return nil, err
	}

	if cfg.RedisURL == "" {
		return nil, fmt.Errorf("REDIS_URL is required")
	}
	if cfg.PipelineTriggerURL == "" {
		return nil, fmt.Errorf("PIPELINE_TRIGGER_URL is required")
	}

	return cfg, nil
}

// Store backends.
const (
	StoreBackendFile     = "file"
	StoreBackendPostgres = "postgres"
)

// Failure policies for per-item stage failures.
const (
	FailurePolicyAbort = "abort"
	FailurePolicySkip  = "skip"
)

func load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Env:               getEnv("APP_ENV", "development"),
		HTTPAddr:          getEnv("HTTP_ADDR", ":8080"),
		CORSOrigins:       splitCSV(getEnv("CORS_ORIGINS", "http://localhost:3000")),
		CallbackRateLimit: mustFloat(getEnv("CALLBACK_RATE_LIMIT", "10")),

		StoreBackend: strings.ToLower(getEnv("STORE_BACKEND", StoreBackendFile)),
		DataDir:      getEnv("DATA_DIR", "data"),
		DatabaseURL:  os.Getenv("DATABASE_URL"),

		OpenAIAPIKey:  os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL: getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		OpenAIModel:   getEnv("OPENAI_MODEL", "gpt-4o-mini"),

		HubSpotAccessToken:       os.Getenv("HUBSPOT_ACCESS_TOKEN"),
		HubSpotBaseURL:           getEnv("HUBSPOT_BASE_URL", "https://api.hubapi.com"),
		HubSpotRequestsPerSecond: mustFloat(getEnv("HUBSPOT_REQUESTS_PER_SECOND", "9")),

		SlackBotToken:      os.Getenv("SLACK_BOT_TOKEN"),
		SlackSigningSecret: os.Getenv("SLACK_SIGNING_SECRET"),
		SlackChannelID:     os.Getenv("SLACK_CHANNEL_ID"),
		SlackAPIBaseURL:    getEnv("SLACK_API_BASE_URL", "https://slack.com/api"),

		CollaboratorTimeout:   mustDuration(getEnv("COLLABORATOR_TIMEOUT", "30s")),
		PipelineConcurrency:   mustInt(getEnv("PIPELINE_CONCURRENCY", "4")),
		PipelineFailurePolicy: strings.ToLower(getEnv("PIPELINE_FAILURE_POLICY", FailurePolicyAbort)),
		PhoneDefaultRegion:    strings.ToUpper(getEnv("PHONE_DEFAULT_REGION", "US")),

		RedisURL:         os.Getenv("REDIS_URL"),
		RedisTLSInsecure: strings.EqualFold(os.Getenv("REDIS_TLS_INSECURE"), "true"),
		AsynqQueueName:   getEnv("ASYNQ_QUEUE", "default"),
		AsynqConcurrency: mustInt(getEnv("ASYNQ_CONCURRENCY", "2")),
		PipelineSchedule: getEnv("PIPELINE_SCHEDULE", "0 9 * * 1-5"),

		PipelineTriggerURL:    os.Getenv("PIPELINE_TRIGGER_URL"),
		PipelineTriggerSecret: os.Getenv("PIPELINE_TRIGGER_SECRET"),

		MinIOEndpoint:      os.Getenv("MINIO_ENDPOINT"),
		MinIOAccessKey:     os.Getenv("MINIO_ACCESS_KEY"),
		MinIOSecretKey:     os.Getenv("MINIO_SECRET_KEY"),
		MinIOUseSSL:        strings.EqualFold(os.Getenv("MINIO_USE_SSL"), "true"),
		MinIOArchiveBucket: getEnv("MINIO_BUCKET_FOLLOWUP_ARCHIVE", "follow-up-archive"),

		KafkaBrokers:     splitCSV(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:       getEnv("KAFKA_TOPIC", "followup.lifecycle"),
		KafkaMaxAttempts: mustInt(getEnv("KAFKA_MAX_ATTEMPTS", "3")),

		SMTPHost:      os.Getenv("SMTP_HOST"),
		SMTPPort:      mustInt(getEnv("SMTP_PORT", "587")),
		SMTPUsername:  os.Getenv("SMTP_USERNAME"),
		SMTPPassword:  os.Getenv("SMTP_PASSWORD"),
		SMTPFromEmail: os.Getenv("SMTP_FROM_EMAIL"),
		SMTPFromName:  getEnv("SMTP_FROM_NAME", "Sales Team"),
	}

	switch cfg.StoreBackend {
	case StoreBackendFile, StoreBackendPostgres:
	default:
		return nil, fmt.Errorf("STORE_BACKEND must be %q or %q", StoreBackendFile, StoreBackendPostgres)
	}

	switch cfg.PipelineFailurePolicy {
	case FailurePolicyAbort, FailurePolicySkip:
	default:
		return nil, fmt.Errorf("PIPELINE_FAILURE_POLICY must be %q or %q", FailurePolicyAbort, FailurePolicySkip)
	}

	thresholds, err := LoadThresholds(os.Getenv("STALENESS_CONFIG_PATH"))
	if err != nil {
		return nil, err
	}
	cfg.Thresholds = thresholds

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func mustDuration(value string) time.Duration {
	parsed, err := time.ParseDuration(value)
	if err != nil {
		panic("invalid duration: " + value)
	}
	return parsed
}

func mustInt(value string) int {
	parsed, err := strconv.Atoi(value)
	if err != nil {
		panic("invalid int: " + value)
	}
	return parsed
}

func mustFloat(value string) float64 {
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		panic("invalid float: " + value)
	}
	return parsed
}

func splitCSV(value string) []string {
	if value == "" {
		return nil
	}

	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
