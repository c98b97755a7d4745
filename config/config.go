package config

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/upb/llm-compare/models"
)

// Storage drivers
const (
	StorageDriverPostgres = "postgres"
	StorageDriverSQLite   = "sqlite"
	StorageDriverMemory   = "memory"
)

// Config represents the complete application configuration
type Config struct {
	Server        ServerConfig
	Storage       StorageConfig
	Providers     ProvidersConfig
	Dispatch      DispatchConfig
	Experiment    ExperimentConfig
	Metrics       MetricsConfig
	Audit         AuditConfig
	Observability ObservabilityConfig
	Environment   string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	AllowedOrigins  []string
	TLS             struct {
		Enabled  bool
		CertFile string
		KeyFile  string
	}
}

// StorageConfig selects and configures the persistence backend
type StorageConfig struct {
	Driver           string // postgres, sqlite or memory
	Database         DatabaseConfig
	SQLitePath       string
	HistoryCacheSize int // cached users in front of a SQL store; 0 disables
	HistoryCacheTTL  time.Duration
}

// DatabaseConfig holds PostgreSQL database configuration.
// When ConnectionString (from DATABASE_URL) is set, it takes precedence over individual fields.
type DatabaseConfig struct {
	ConnectionString string // From DATABASE_URL when set
	Host             string
	Port             int
	User             string
	Password         string
	Database         string
	SSLMode          string
	MaxOpenConns     int
	MaxIdleConns     int
	ConnMaxLifetime  time.Duration
}

// ProviderSettings holds one provider's adapter configuration
type ProviderSettings struct {
	APIKey            string // process-wide default credential
	BaseURL           string
	DefaultModel      string
	Timeout           time.Duration
	MaxRetries        int
	RequestsPerSecond float64 // 0 disables client-side throttling
	Burst             int
}

// ProvidersConfig holds LLM provider configurations
type ProvidersConfig struct {
	OpenAI    ProviderSettings
	Gemini    ProviderSettings
	Grok      ProviderSettings
	Anthropic ProviderSettings
}

// DispatchConfig holds fan-out settings
type DispatchConfig struct {
	HistoryWindow   int
	ProviderTimeout time.Duration
}

// ExperimentConfig holds the response post-processing experiment settings
type ExperimentConfig struct {
	Enabled     bool
	Probability float64
	Seed        int64 // 0 seeds from the clock
}

// MetricsConfig holds the in-memory ledger settings
type MetricsConfig struct {
	PricingFile string
}

// AuditConfig holds the asynchronous dispatch record writer settings
type AuditConfig struct {
	Enabled     bool
	BufferSize  int
	WorkerCount int
}

// ObservabilityConfig holds logging configuration
type ObservabilityConfig struct {
	LogLevel  string
	LogFormat string // json or console
}

// New creates a new Config instance by loading environment variables
func New(ctx context.Context) (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load(".env")

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getPort(),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 90*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
			AllowedOrigins:  getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"*"}),
			TLS: struct {
				Enabled  bool
				CertFile string
				KeyFile  string
			}{
				Enabled:  getEnvAsBool("TLS_ENABLED", false),
				CertFile: getEnv("TLS_CERT_FILE", "certs/cert.pem"),
				KeyFile:  getEnv("TLS_KEY_FILE", "certs/key.pem"),
			},
		},
		Storage: StorageConfig{
			Driver:     strings.ToLower(getEnv("STORAGE_DRIVER", StorageDriverSQLite)),
			Database:   loadDatabaseConfig(),
			SQLitePath: getEnv("SQLITE_PATH", "llm-compare.db"),

			HistoryCacheSize: getEnvAsInt("HISTORY_CACHE_SIZE", 1000),
			HistoryCacheTTL:  getEnvAsDuration("HISTORY_CACHE_TTL", 10*time.Minute),
		},
		Providers: ProvidersConfig{
			OpenAI:    loadProviderSettings("OPENAI", "https://api.openai.com/v1", "gpt-3.5-turbo"),
			Gemini:    loadProviderSettings("GEMINI", "https://generativelanguage.googleapis.com/v1beta", "gemini-pro"),
			Grok:      loadProviderSettings("GROK", "https://api.x.ai/v1", "grok-2"),
			Anthropic: loadProviderSettings("ANTHROPIC", "https://api.anthropic.com", "claude-3-5-haiku-latest"),
		},
		Dispatch: DispatchConfig{
			HistoryWindow:   getEnvAsInt("HISTORY_WINDOW", 5),
			ProviderTimeout: getEnvAsDuration("PROVIDER_TIMEOUT", 30*time.Second),
		},
		Experiment: ExperimentConfig{
			Enabled:     getEnvAsBool("EXPERIMENT_ENABLED", false),
			Probability: getEnvAsFloat("EXPERIMENT_PROBABILITY", 0.5),
			Seed:        getEnvAsInt64("EXPERIMENT_SEED", 0),
		},
		Metrics: MetricsConfig{
			PricingFile: getEnv("PRICING_FILE", ""),
		},
		Audit: AuditConfig{
			Enabled:     getEnvAsBool("AUDIT_ENABLED", true),
			BufferSize:  getEnvAsInt("AUDIT_BUFFER_SIZE", 1000),
			WorkerCount: getEnvAsInt("AUDIT_WORKER_COUNT", 2),
		},
		Observability: ObservabilityConfig{
			LogLevel:  getEnv("LOG_LEVEL", "info"),
			LogFormat: getEnv("LOG_FORMAT", "json"),
		},
	}

	// Grok keys are often exported under xAI's name
	if cfg.Providers.Grok.APIKey == "" {
		cfg.Providers.Grok.APIKey = getEnv("XAI_API_KEY", "")
	}

	// Validate the configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if all required configuration fields are set
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case StorageDriverPostgres:
		if c.Storage.Database.ConnectionString == "" && c.Storage.Database.Host == "" {
			return fmt.Errorf("database configuration required: set DATABASE_URL or DB_HOST")
		}
		if c.Storage.Database.ConnectionString == "" {
			if c.Storage.Database.User == "" {
				return fmt.Errorf("database user is required")
			}
			if c.Storage.Database.Database == "" {
				return fmt.Errorf("database name is required")
			}
		}
	case StorageDriverSQLite:
		if c.Storage.SQLitePath == "" {
			return fmt.Errorf("sqlite path is required when STORAGE_DRIVER=sqlite")
		}
	case StorageDriverMemory:
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}

	if c.Storage.HistoryCacheSize < 0 {
		return fmt.Errorf("history cache size cannot be negative")
	}
	if c.Storage.HistoryCacheSize > 0 && c.Storage.HistoryCacheTTL <= 0 {
		return fmt.Errorf("history cache ttl must be positive when the cache is enabled")
	}

	if c.Dispatch.HistoryWindow <= 0 {
		return fmt.Errorf("history window must be positive")
	}
	if c.Dispatch.ProviderTimeout <= 0 {
		return fmt.Errorf("provider timeout must be positive")
	}

	for id, p := range c.Providers.All() {
		if p.Timeout <= 0 {
			return fmt.Errorf("%s timeout must be positive", id)
		}
		if p.RequestsPerSecond < 0 {
			return fmt.Errorf("%s requests per second cannot be negative", id)
		}
	}

	if c.Experiment.Probability < 0 || c.Experiment.Probability > 1 {
		return fmt.Errorf("experiment probability must be within [0, 1]")
	}

	if c.Audit.Enabled && (c.Audit.BufferSize <= 0 || c.Audit.WorkerCount <= 0) {
		return fmt.Errorf("audit buffer size and worker count must be positive")
	}

	// Observability validation
	if c.Observability.LogLevel == "" {
		return fmt.Errorf("log level is required")
	}

	return nil
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "prod"
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development" || c.Environment == "dev"
}

// All returns the provider settings keyed by provider id
func (p ProvidersConfig) All() map[models.ProviderID]ProviderSettings {
	return map[models.ProviderID]ProviderSettings{
		models.ProviderOpenAI:    p.OpenAI,
		models.ProviderGemini:    p.Gemini,
		models.ProviderGrok:      p.Grok,
		models.ProviderAnthropic: p.Anthropic,
	}
}

// DSN returns the PostgreSQL connection string.
// Uses ConnectionString (from DATABASE_URL) when set; otherwise builds from individual fields.
func (c *DatabaseConfig) DSN() string {
	if c.ConnectionString != "" {
		return c.ConnectionString
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// LogString returns a safe string for logging (no password). Parses ConnectionString when set.
func (c *DatabaseConfig) LogString() string {
	if c.ConnectionString != "" {
		u, err := url.Parse(c.ConnectionString)
		if err == nil {
			host := u.Hostname()
			port := u.Port()
			if port == "" {
				port = "5432"
			}
			db := strings.TrimPrefix(u.Path, "/")
			return fmt.Sprintf("host=%s port=%s database=%s", host, port, db)
		}
		return "host=<from DATABASE_URL>"
	}
	return fmt.Sprintf("host=%s port=%d database=%s", c.Host, c.Port, c.Database)
}

// loadDatabaseConfig loads database config from DATABASE_URL or DB_* env vars
func loadDatabaseConfig() DatabaseConfig {
	dbURL := getEnv("DATABASE_URL", "")
	if dbURL != "" {
		return DatabaseConfig{
			ConnectionString: dbURL,
			MaxOpenConns:     getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:     getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime:  getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		}
	}
	return DatabaseConfig{
		Host:            getEnv("DB_HOST", "localhost"),
		Port:            getEnvAsInt("DB_PORT", 5432),
		User:            getEnv("DB_USER", "dev"),
		Password:        getEnv("DB_PASSWORD", "dev_password"),
		Database:        getEnv("DB_NAME", "llm_compare"),
		SSLMode:         getEnv("DB_SSLMODE", "disable"),
		MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
		MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
		ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
	}
}

// loadProviderSettings reads <PREFIX>_API_KEY, <PREFIX>_BASE_URL and friends
func loadProviderSettings(prefix, baseURL, model string) ProviderSettings {
	return ProviderSettings{
		APIKey:            getEnv(prefix+"_API_KEY", ""),
		BaseURL:           getEnv(prefix+"_BASE_URL", baseURL),
		DefaultModel:      getEnv(prefix+"_MODEL", model),
		Timeout:           getEnvAsDuration(prefix+"_TIMEOUT", 30*time.Second),
		MaxRetries:        getEnvAsInt(prefix+"_MAX_RETRIES", 0),
		RequestsPerSecond: getEnvAsFloat(prefix+"_RPS", 0),
		Burst:             getEnvAsInt(prefix+"_BURST", 1),
	}
}

// Address returns the HTTP server address
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Helper functions

// getPort returns the server port from PORT or SERVER_PORT env vars (default: 8080)
func getPort() int {
	if value := os.Getenv("PORT"); value != "" {
		if p, err := strconv.Atoi(value); err == nil {
			return p
		}
	}
	if value := os.Getenv("SERVER_PORT"); value != "" {
		if p, err := strconv.Atoi(value); err == nil {
			return p
		}
	}
	return 8080
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(valueStr, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
