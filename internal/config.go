package internal

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

type Config struct {
	Server        ServerConfig        `mapstructure:"http_server"`
	Store         StoreConfig         `mapstructure:"store"`
	Snapshot      SnapshotConfig      `mapstructure:"snapshot"`
	Risk          RiskConfig          `mapstructure:"risk"`
	LLM           LLMConfig           `mapstructure:"llm"`
	Pipeline      PipelineConfig      `mapstructure:"pipeline"`
	Conversation  ConversationConfig  `mapstructure:"conversation"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

type ServerConfig struct {
	Port              int           `mapstructure:"port" validate:"min=1,max=65535"`
	AllowedOrigins    string        `mapstructure:"allowed_origins"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
}

type StoreConfig struct {
	Path       string `mapstructure:"path" validate:"required"`
	SampleRows int    `mapstructure:"sample_rows" validate:"min=0,max=20"`
	BatchSize  int    `mapstructure:"batch_size" validate:"min=1"`
}

type SnapshotConfig struct {
	Path string `mapstructure:"path"`
}

type RiskConfig struct {
	// ReferenceDate pins the date used by the inactivity and recent-join rules (YYYY-MM-DD).
	ReferenceDate string `mapstructure:"reference_date" validate:"omitempty,datetime=2006-01-02"`
	InactiveDays  int    `mapstructure:"inactive_days" validate:"min=1"`
	RecentDays    int    `mapstructure:"recent_days" validate:"min=1"`
}

type LLMConfig struct {
	Provider    string        `mapstructure:"provider" validate:"required,oneof=ollama openai"`
	Model       string        `mapstructure:"model" validate:"required"`
	BaseURL     string        `mapstructure:"base_url" validate:"omitempty,url"`
	APIKey      string        `mapstructure:"api_key"`
	Temperature float64       `mapstructure:"temperature" validate:"min=0,max=2"`
	NumCtx      int           `mapstructure:"num_ctx" validate:"min=0"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

type PipelineConfig struct {
	MaxRetries      int           `mapstructure:"max_retries" validate:"min=1,max=10"`
	GenerateTimeout time.Duration `mapstructure:"generate_timeout"`
	ExecuteTimeout  time.Duration `mapstructure:"execute_timeout"`
}

type ConversationConfig struct {
	Backend     string `mapstructure:"backend" validate:"required,oneof=memory badger"`
	Path        string `mapstructure:"path" validate:"required_if=Backend badger"`
	MaxMessages int    `mapstructure:"max_messages" validate:"min=0"`
}

type ObservabilityConfig struct {
	Metrics MetricsConfig `mapstructure:"metrics"`
	Logging LoggingConfig `mapstructure:"logging"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path" validate:"required_if=Enabled true"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"required,oneof=json text"`
}

// DefaultConfig mirrors the values shipped in config.yml.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:              8000,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      3 * time.Minute,
			IdleTimeout:       2 * time.Minute,
		},
		Store:    StoreConfig{Path: "data/risk_views.db", SampleRows: 3, BatchSize: 200},
		Snapshot: SnapshotConfig{Path: "data/mock_data.json"},
		Risk:     RiskConfig{InactiveDays: 90, RecentDays: 30},
		LLM: LLMConfig{
			Provider: "ollama",
			Model:    "llama3.2-ctx4000",
			BaseURL:  "http://127.0.0.1:11434",
			NumCtx:   4000,
			Timeout:  2 * time.Minute,
		},
		Pipeline: PipelineConfig{
			MaxRetries:      3,
			GenerateTimeout: 2 * time.Minute,
			ExecuteTimeout:  10 * time.Second,
		},
		Conversation: ConversationConfig{Backend: "memory", MaxMessages: 20},
		Observability: ObservabilityConfig{
			Metrics: MetricsConfig{Enabled: true, Path: "/metrics"},
			Logging: LoggingConfig{Level: "info", Format: "text"},
		},
	}
}

// LoadConfigFromEnv builds the configuration for container deployments.
func LoadConfigFromEnv() *Config {
	cfg := DefaultConfig()

	cfg.Server.Port = getEnvAsInt("IAM_HTTP_SERVER_PORT", cfg.Server.Port)
	cfg.Server.AllowedOrigins = getEnv("IAM_HTTP_SERVER_ALLOWED_ORIGINS", cfg.Server.AllowedOrigins)

	cfg.Store.Path = getEnv("IAM_STORE_PATH", cfg.Store.Path)
	cfg.Store.SampleRows = getEnvAsInt("IAM_STORE_SAMPLE_ROWS", cfg.Store.SampleRows)
	cfg.Snapshot.Path = getEnv("IAM_SNAPSHOT_PATH", cfg.Snapshot.Path)
	cfg.Risk.ReferenceDate = getEnv("IAM_RISK_REFERENCE_DATE", cfg.Risk.ReferenceDate)

	cfg.LLM.Provider = getEnv("IAM_LLM_PROVIDER", cfg.LLM.Provider)
	cfg.LLM.Model = getEnv("IAM_LLM_MODEL", cfg.LLM.Model)
	cfg.LLM.BaseURL = getEnv("IAM_LLM_BASE_URL", cfg.LLM.BaseURL)
	cfg.LLM.APIKey = getEnv("IAM_LLM_API_KEY", cfg.LLM.APIKey)
	cfg.LLM.Timeout = getEnvAsDuration("IAM_LLM_TIMEOUT", cfg.LLM.Timeout)

	cfg.Pipeline.MaxRetries = getEnvAsInt("IAM_PIPELINE_MAX_RETRIES", cfg.Pipeline.MaxRetries)
	cfg.Pipeline.GenerateTimeout = getEnvAsDuration("IAM_PIPELINE_GENERATE_TIMEOUT", cfg.Pipeline.GenerateTimeout)
	cfg.Pipeline.ExecuteTimeout = getEnvAsDuration("IAM_PIPELINE_EXECUTE_TIMEOUT", cfg.Pipeline.ExecuteTimeout)

	cfg.Conversation.Backend = getEnv("IAM_CONVERSATION_BACKEND", cfg.Conversation.Backend)
	cfg.Conversation.Path = getEnv("IAM_CONVERSATION_PATH", cfg.Conversation.Path)

	cfg.Observability.Logging.Level = getEnv("IAM_LOG_LEVEL", cfg.Observability.Logging.Level)
	cfg.Observability.Logging.Format = getEnv("IAM_LOG_FORMAT", cfg.Observability.Logging.Format)

	return cfg
}

// ----------------- HELPERS -----------------

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultVal
}

// ----------------- VALIDATION -----------------

var structValidator = validator.New(validator.WithRequiredStructEnabled())

func (c *Config) Validate() error {
	var errs []string

	if err := structValidator.Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			for _, fe := range fieldErrs {
				errs = append(errs, fmt.Sprintf("%s: failed %q", fe.Namespace(), fe.Tag()))
			}
		} else {
			errs = append(errs, err.Error())
		}
	}

	if err := c.Server.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("server config: %v", err))
	}

	if err := c.LLM.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("llm config: %v", err))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}

	return nil
}

func (c *ServerConfig) Validate() error {
	if c.AllowedOrigins != "" {
		origins := strings.Split(c.AllowedOrigins, ",")
		for _, origin := range origins {
			origin = strings.TrimSpace(origin)
			if origin == "*" {
				continue
			}
			if _, err := url.Parse(origin); err != nil {
				return fmt.Errorf("invalid allowed origin %s: %w", origin, err)
			}
		}
	}
	if c.ReadTimeout < c.ReadHeaderTimeout {
		return errors.New("read_timeout must be >= read_header_timeout")
	}
	return nil
}

func (c *LLMConfig) Validate() error {
	if c.Provider == "openai" && c.APIKey == "" && c.BaseURL == "" {
		return errors.New("api_key is required for the openai provider without a base_url")
	}
	return nil
}

// ParsedReferenceDate returns the configured reference date, or the zero time when unset.
func (c *RiskConfig) ParsedReferenceDate() (time.Time, error) {
	if c.ReferenceDate == "" {
		return time.Time{}, nil
	}
	return time.Parse("2006-01-02", c.ReferenceDate)
}
