package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	// Load environment variables from .env files when present.
	_ "github.com/joho/godotenv/autoload"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Data          DataConfig          `yaml:"data"`
	Report        ReportConfig        `yaml:"report"`
	Gemini        GeminiConfig        `yaml:"gemini"`
	Narrative     NarrativeConfig     `yaml:"narrative"`
	Agent         AgentConfig         `yaml:"agent"`
	Database      DatabaseConfig      `yaml:"database"`
	Storage       StorageConfig       `yaml:"storage"`
	Schedule      ScheduleConfig      `yaml:"schedule"`
	Notify        NotifyConfig        `yaml:"notify"`
	Observability ObservabilityConfig `yaml:"observability"`
	Log           LogConfig           `yaml:"log"`
}

type ServerConfig struct {
	Host                    string        `yaml:"host"`
	Port                    int           `yaml:"port"`
	BaseURL                 string        `yaml:"base_url"`
	CORSOrigins             []string      `yaml:"cors_origins"`
	RegenerateRatePerMinute int           `yaml:"regenerate_rate_per_minute"`
	ShutdownTimeout         time.Duration `yaml:"shutdown_timeout"`
}

// DataConfig selects where spend records come from.
type DataConfig struct {
	Source  string `yaml:"source"` // csv or postgres
	CSVPath string `yaml:"csv_path"`
}

type ReportConfig struct {
	OutputDir string   `yaml:"output_dir"`
	Formats   []string `yaml:"formats"`
	Currency  string   `yaml:"currency"`
	Title     string   `yaml:"title"`
}

type GeminiConfig struct {
	APIKey  string        `yaml:"api_key"`
	Model   string        `yaml:"model"`
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

type NarrativeConfig struct {
	Enabled       bool          `yaml:"enabled"`
	MaxAttempts   int           `yaml:"max_attempts"`
	Delay         time.Duration `yaml:"delay"`
	Exponential   bool          `yaml:"exponential"`
	RatePerMinute int           `yaml:"rate_per_minute"`
	Timeout       time.Duration `yaml:"timeout"`
}

type AgentConfig struct {
	MaxIterations int `yaml:"max_iterations"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"sslmode"`
	MaxConns int32  `yaml:"max_conns"`
}

type StorageConfig struct {
	Type              string `yaml:"type"` // local or s3
	LocalPath         string `yaml:"local_path"`
	S3Bucket          string `yaml:"s3_bucket"`
	S3Region          string `yaml:"s3_region"`
	S3Prefix          string `yaml:"s3_prefix"`
	S3AccessKeyID     string `yaml:"s3_access_key_id"`
	S3SecretAccessKey string `yaml:"s3_secret_access_key"`
	S3Endpoint        string `yaml:"s3_endpoint"`
}

type ScheduleConfig struct {
	Enabled bool   `yaml:"enabled"`
	Spec    string `yaml:"spec"`
}

type NotifyConfig struct {
	ResendAPIKey string   `yaml:"resend_api_key"`
	From         string   `yaml:"from"`
	Recipients   []string `yaml:"recipients"`
}

type ObservabilityConfig struct {
	MetricsEnabled bool `yaml:"metrics_enabled"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Defaults returns the configuration used when nothing is set
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Host:                    "localhost",
			Port:                    8080,
			BaseURL:                 "http://localhost:8080",
			CORSOrigins:             []string{"*"},
			RegenerateRatePerMinute: 6,
			ShutdownTimeout:         10 * time.Second,
		},
		Data: DataConfig{
			Source:  "csv",
			CSVPath: "data/campaign_spend.csv",
		},
		Report: ReportConfig{
			OutputDir: "reports",
			Formats:   []string{"html", "md", "xlsx"},
			Currency:  "USD",
			Title:     "Campaign Spend Insights",
		},
		Gemini: GeminiConfig{
			Model:   "gemini-2.0-flash",
			Timeout: 30 * time.Second,
		},
		Narrative: NarrativeConfig{
			Enabled:       true,
			MaxAttempts:   3,
			Delay:         2 * time.Second,
			RatePerMinute: 15,
			Timeout:       20 * time.Second,
		},
		Agent: AgentConfig{
			MaxIterations: 10,
		},
		Database: DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "postgres",
			Password: "postgres",
			Database: "spend-insights",
			SSLMode:  "disable",
			MaxConns: 10,
		},
		Storage: StorageConfig{
			Type:      "local",
			LocalPath: "reports",
		},
		Schedule: ScheduleConfig{
			Spec: "0 6 * * *",
		},
		Observability: ObservabilityConfig{
			MetricsEnabled: true,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads configuration from the optional YAML file named by CONFIG_FILE,
// then applies environment variables on top.
func Load() (*Config, error) {
	cfg := Defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.overlay(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) overlay(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Server.Host = getEnv("SERVER_HOST", c.Server.Host)
	c.Server.Port = getEnvAsInt("SERVER_PORT", c.Server.Port)
	c.Server.BaseURL = getEnv("BASE_URL", c.Server.BaseURL)
	c.Server.CORSOrigins = getEnvAsSlice("CORS_ORIGINS", c.Server.CORSOrigins)
	c.Server.RegenerateRatePerMinute = getEnvAsInt("SERVER_REGENERATE_RATE_PER_MINUTE", c.Server.RegenerateRatePerMinute)
	c.Server.ShutdownTimeout = getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", c.Server.ShutdownTimeout)

	c.Data.Source = getEnv("DATA_SOURCE", c.Data.Source)
	c.Data.CSVPath = getEnv("DATA_CSV_PATH", c.Data.CSVPath)

	c.Report.OutputDir = getEnv("REPORT_OUTPUT_DIR", c.Report.OutputDir)
	c.Report.Formats = getEnvAsSlice("REPORT_FORMATS", c.Report.Formats)
	c.Report.Currency = getEnv("REPORT_CURRENCY", c.Report.Currency)
	c.Report.Title = getEnv("REPORT_TITLE", c.Report.Title)

	c.Gemini.APIKey = getEnv("GEMINI_API_KEY", c.Gemini.APIKey)
	c.Gemini.Model = getEnv("GEMINI_MODEL", c.Gemini.Model)
	c.Gemini.BaseURL = getEnv("GEMINI_BASE_URL", c.Gemini.BaseURL)
	c.Gemini.Timeout = getEnvAsDuration("GEMINI_TIMEOUT", c.Gemini.Timeout)

	c.Narrative.Enabled = getEnvAsBool("NARRATIVE_ENABLED", c.Narrative.Enabled)
	c.Narrative.MaxAttempts = getEnvAsInt("NARRATIVE_MAX_ATTEMPTS", c.Narrative.MaxAttempts)
	c.Narrative.Delay = getEnvAsDuration("NARRATIVE_RETRY_DELAY", c.Narrative.Delay)
	c.Narrative.Exponential = getEnvAsBool("NARRATIVE_EXPONENTIAL_BACKOFF", c.Narrative.Exponential)
	c.Narrative.RatePerMinute = getEnvAsInt("NARRATIVE_RATE_PER_MINUTE", c.Narrative.RatePerMinute)
	c.Narrative.Timeout = getEnvAsDuration("NARRATIVE_TIMEOUT", c.Narrative.Timeout)

	c.Agent.MaxIterations = getEnvAsInt("AGENT_MAX_ITERATIONS", c.Agent.MaxIterations)

	c.Database.Host = getEnv("POSTGRES_HOST", c.Database.Host)
	c.Database.Port = getEnvAsInt("POSTGRES_PORT", c.Database.Port)
	c.Database.User = getEnv("POSTGRES_USER", c.Database.User)
	c.Database.Password = getEnv("POSTGRES_PASSWORD", c.Database.Password)
	c.Database.Database = getEnv("POSTGRES_DB", c.Database.Database)
	c.Database.SSLMode = getEnv("POSTGRES_SSLMODE", c.Database.SSLMode)
	c.Database.MaxConns = int32(getEnvAsInt("POSTGRES_MAX_CONNS", int(c.Database.MaxConns)))

	c.Storage.Type = getEnv("STORAGE_TYPE", c.Storage.Type)
	c.Storage.LocalPath = getEnv("STORAGE_LOCAL_PATH", c.Storage.LocalPath)
	c.Storage.S3Bucket = getEnv("STORAGE_S3_BUCKET", c.Storage.S3Bucket)
	c.Storage.S3Region = getEnv("STORAGE_S3_REGION", c.Storage.S3Region)
	c.Storage.S3Prefix = getEnv("STORAGE_S3_PREFIX", c.Storage.S3Prefix)
	c.Storage.S3AccessKeyID = getEnv("STORAGE_S3_ACCESS_KEY_ID", c.Storage.S3AccessKeyID)
	c.Storage.S3SecretAccessKey = getEnv("STORAGE_S3_SECRET_ACCESS_KEY", c.Storage.S3SecretAccessKey)
	c.Storage.S3Endpoint = getEnv("STORAGE_S3_ENDPOINT", c.Storage.S3Endpoint)

	c.Schedule.Enabled = getEnvAsBool("SCHEDULE_ENABLED", c.Schedule.Enabled)
	c.Schedule.Spec = getEnv("SCHEDULE_SPEC", c.Schedule.Spec)

	c.Notify.ResendAPIKey = getEnv("RESEND_API_KEY", c.Notify.ResendAPIKey)
	c.Notify.From = getEnv("RESEND_FROM_EMAIL", c.Notify.From)
	c.Notify.Recipients = getEnvAsSlice("REPORT_RECIPIENTS", c.Notify.Recipients)

	c.Observability.MetricsEnabled = getEnvAsBool("METRICS_ENABLED", c.Observability.MetricsEnabled)

	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv("LOG_FORMAT", c.Log.Format)
}

var knownFormats = map[string]bool{"html": true, "md": true, "markdown": true, "xlsx": true, "json": true}

// Validate reports every invalid setting at once
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", c.Server.Port))
	}

	switch c.Data.Source {
	case "csv":
		if c.Data.CSVPath == "" {
			errs = append(errs, errors.New("DATA_CSV_PATH is required when DATA_SOURCE=csv"))
		}
	case "postgres":
	default:
		errs = append(errs, fmt.Errorf("DATA_SOURCE must be csv or postgres, got %q", c.Data.Source))
	}

	for _, f := range c.Report.Formats {
		if !knownFormats[strings.ToLower(strings.TrimSpace(f))] {
			errs = append(errs, fmt.Errorf("unknown report format %q", f))
		}
	}

	if c.Narrative.MaxAttempts < 1 {
		errs = append(errs, errors.New("NARRATIVE_MAX_ATTEMPTS must be at least 1"))
	}
	if c.Narrative.RatePerMinute < 0 {
		errs = append(errs, errors.New("NARRATIVE_RATE_PER_MINUTE must not be negative"))
	}
	if c.Agent.MaxIterations < 1 {
		errs = append(errs, errors.New("AGENT_MAX_ITERATIONS must be at least 1"))
	}

	switch c.Storage.Type {
	case "local":
	case "s3":
		if c.Storage.S3Bucket == "" {
			errs = append(errs, errors.New("STORAGE_S3_BUCKET is required when STORAGE_TYPE=s3"))
		}
		if c.Storage.S3Region == "" {
			errs = append(errs, errors.New("STORAGE_S3_REGION is required when STORAGE_TYPE=s3"))
		}
	default:
		errs = append(errs, fmt.Errorf("STORAGE_TYPE must be local or s3, got %q", c.Storage.Type))
	}

	if c.Schedule.Enabled {
		if _, err := cron.ParseStandard(c.Schedule.Spec); err != nil {
			errs = append(errs, fmt.Errorf("invalid SCHEDULE_SPEC %q: %w", c.Schedule.Spec, err))
		}
	}

	if c.Notify.ResendAPIKey != "" && len(c.Notify.Recipients) == 0 {
		errs = append(errs, errors.New("REPORT_RECIPIENTS is required when RESEND_API_KEY is set"))
	}

	return errors.Join(errs...)
}

// NarrativeUsesGemini reports whether narratives go to Gemini.
func (c *Config) NarrativeUsesGemini() bool {
	return c.Narrative.Enabled && c.Gemini.APIKey != ""
}

// DSN returns the database connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
