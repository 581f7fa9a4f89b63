package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/frahmantamala/iam-copilot/internal"
)

var (
	configDir    string
	snapshotPath string
	dbPath       string
)

var rootCmd = &cobra.Command{
	Use:   "iam-copilot",
	Short: "IAM Copilot",
	Long:  `Builds a risk database from an identity snapshot and answers questions about it in plain language.`,
	// errors are printed once by Execute
	SilenceErrors: true,
	SilenceUsage:  true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorMessage(err))
		os.Exit(1)
	}
}

// errorMessage lists every failed field of a validation error, where Error shows only the first.
func errorMessage(err error) string {
	if appErr, ok := internal.IsAppError(err); ok {
		if _, fields := appErr.Details.(internal.ValidationErrors); fields {
			return appErr.Message + ": " + appErr.GetDetailedMessage()
		}
	}
	return err.Error()
}

func loadConfig(path string) (*internal.Config, error) {
	// Check if we're running in Docker environment
	if os.Getenv("APP_ENV") == "production" || os.Getenv("DOCKER_ENV") == "true" {
		// Load configuration from environment variables (Docker deployment)
		cfg := internal.LoadConfigFromEnv()
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("error validating config from environment: %w", err)
		}
		return cfg, nil
	}

	// Load configuration from file (development); a missing file keeps the defaults
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yml")
	v.SetEnvPrefix("IAM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v, internal.DefaultConfig())

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config: %w", err)
		}
	}

	var cfg internal.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("error validating config: %w", err)
	}

	return &cfg, nil
}

// setDefaults registers every key so AutomaticEnv can override keys absent from the file.
func setDefaults(v *viper.Viper, d *internal.Config) {
	v.SetDefault("http_server.port", d.Server.Port)
	v.SetDefault("http_server.allowed_origins", d.Server.AllowedOrigins)
	v.SetDefault("http_server.read_header_timeout", d.Server.ReadHeaderTimeout)
	v.SetDefault("http_server.read_timeout", d.Server.ReadTimeout)
	v.SetDefault("http_server.idle_timeout", d.Server.IdleTimeout)
	v.SetDefault("http_server.write_timeout", d.Server.WriteTimeout)

	v.SetDefault("store.path", d.Store.Path)
	v.SetDefault("store.sample_rows", d.Store.SampleRows)
	v.SetDefault("store.batch_size", d.Store.BatchSize)
	v.SetDefault("snapshot.path", d.Snapshot.Path)

	v.SetDefault("risk.reference_date", d.Risk.ReferenceDate)
	v.SetDefault("risk.inactive_days", d.Risk.InactiveDays)
	v.SetDefault("risk.recent_days", d.Risk.RecentDays)

	v.SetDefault("llm.provider", d.LLM.Provider)
	v.SetDefault("llm.model", d.LLM.Model)
	v.SetDefault("llm.base_url", d.LLM.BaseURL)
	v.SetDefault("llm.api_key", d.LLM.APIKey)
	v.SetDefault("llm.temperature", d.LLM.Temperature)
	v.SetDefault("llm.num_ctx", d.LLM.NumCtx)
	v.SetDefault("llm.timeout", d.LLM.Timeout)

	v.SetDefault("pipeline.max_retries", d.Pipeline.MaxRetries)
	v.SetDefault("pipeline.generate_timeout", d.Pipeline.GenerateTimeout)
	v.SetDefault("pipeline.execute_timeout", d.Pipeline.ExecuteTimeout)

	v.SetDefault("conversation.backend", d.Conversation.Backend)
	v.SetDefault("conversation.path", d.Conversation.Path)
	v.SetDefault("conversation.max_messages", d.Conversation.MaxMessages)

	v.SetDefault("observability.metrics.enabled", d.Observability.Metrics.Enabled)
	v.SetDefault("observability.metrics.path", d.Observability.Metrics.Path)
	v.SetDefault("observability.logging.level", d.Observability.Logging.Level)
	v.SetDefault("observability.logging.format", d.Observability.Logging.Format)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configDir, "config", ".", "directory containing config.yml")
	rootCmd.PersistentFlags().StringVar(&snapshotPath, "snapshot", "", "identity snapshot (.json, .yaml); overrides snapshot.path")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "risk database file; overrides store.path")

	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(risksCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(httpServerCmd)
}
