package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	App         AppConfig         `mapstructure:"app"`
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Redis       RedisConfig       `mapstructure:"redis"`
	NATS        NATSConfig        `mapstructure:"nats"`
	Auth        AuthConfig        `mapstructure:"auth"`
	CORS        CORSConfig        `mapstructure:"cors"`
	RateLimit   RateLimitConfig   `mapstructure:"ratelimit"`
	Logger      LoggerConfig      `mapstructure:"logger"`
	Backend     BackendConfig     `mapstructure:"backend"`
	Heuristic   HeuristicConfig   `mapstructure:"heuristic"`
	Webhooks    WebhooksConfig    `mapstructure:"webhooks"`
	Reports     ReportsConfig     `mapstructure:"reports"`
	RequestLogs RequestLogsConfig `mapstructure:"requestlogs"`
}

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
	Version     string `mapstructure:"version"`
	Debug       bool   `mapstructure:"debug"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	HTTPPort        int           `mapstructure:"http_port"`
	GRPCPort        int           `mapstructure:"grpc_port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
}

// HTTPAddr returns the listen address for the HTTP server
func (c ServerConfig) HTTPAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.HTTPPort)
}

// GRPCAddr returns the listen address for the gRPC server
func (c ServerConfig) GRPCAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.GRPCPort)
}

type DatabaseConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	Schema          string        `mapstructure:"schema"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s&search_path=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode, c.Schema,
	)
}

type RedisConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Host      string `mapstructure:"host"`
	Port      int    `mapstructure:"port"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix"`
	TLS       bool   `mapstructure:"tls"`
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type NATSConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	URL           string `mapstructure:"url"`
	StreamName    string `mapstructure:"stream_name"`
	SubjectPrefix string `mapstructure:"subject_prefix"`
}

type AuthConfig struct {
	// AdminToken unlocks admin-only routes via the X-Admin-Token header
	AdminToken string `mapstructure:"admin_token"`
	// BootstrapKey is accepted as a full-permission API key so a fresh
	// deployment can create its first real key
	BootstrapKey   string `mapstructure:"bootstrap_key"`
	QuotaWarnRatio float64 `mapstructure:"quota_warn_ratio"`
}

type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age"`
}

type RateLimitConfig struct {
	Enabled           bool `mapstructure:"enabled"`
	RequestsPerMinute int  `mapstructure:"requests_per_minute"`
}

type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	TimeFormat string `mapstructure:"time_format"`
}

// BackendConfig points at the remote ScamShield classification API
type BackendConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	BaseURL   string        `mapstructure:"base_url"`
	Timeout   time.Duration `mapstructure:"timeout"`
	TokenFile string        `mapstructure:"token_file"`
	APIToken  string        `mapstructure:"api_token"`
}

type HeuristicConfig struct {
	Jitter      bool   `mapstructure:"jitter"`
	Seed        uint64 `mapstructure:"seed"`
	MarkerOpen  string `mapstructure:"marker_open"`
	MarkerClose string `mapstructure:"marker_close"`
}

type WebhooksConfig struct {
	Workers           int           `mapstructure:"workers"`
	QueueSize         int           `mapstructure:"queue_size"`
	Timeout           time.Duration `mapstructure:"timeout"`
	HighRiskThreshold int           `mapstructure:"high_risk_threshold"`
}

type ReportsConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Interval time.Duration `mapstructure:"interval"`
}

type RequestLogsConfig struct {
	Capacity int `mapstructure:"capacity"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "scamshield")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.version", "1.0.0")

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.http_port", 8080)
	v.SetDefault("server.grpc_port", 9090)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)
	v.SetDefault("server.request_timeout", 60*time.Second)

	v.SetDefault("database.enabled", false)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "scamshield")
	v.SetDefault("database.dbname", "scamshield")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.schema", "public")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.auto_migrate", true)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.key_prefix", "scamshield:")

	v.SetDefault("nats.enabled", false)
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("nats.stream_name", "SCAMSHIELD_SCANS")
	v.SetDefault("nats.subject_prefix", "scans")

	v.SetDefault("auth.quota_warn_ratio", 0.8)

	v.SetDefault("cors.allowed_origins", []string{"*"})
	v.SetDefault("cors.allowed_methods", []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"})
	v.SetDefault("cors.allowed_headers", []string{"Accept", "Authorization", "Content-Type", "X-Admin-Token", "X-Request-ID"})
	v.SetDefault("cors.max_age", 300)

	v.SetDefault("ratelimit.enabled", false)
	v.SetDefault("ratelimit.requests_per_minute", 120)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.time_format", time.RFC3339)

	v.SetDefault("backend.enabled", false)
	v.SetDefault("backend.base_url", "http://localhost:8000")
	v.SetDefault("backend.timeout", 10*time.Second)

	v.SetDefault("heuristic.jitter", true)

	v.SetDefault("webhooks.workers", 4)
	v.SetDefault("webhooks.queue_size", 1000)
	v.SetDefault("webhooks.timeout", 10*time.Second)
	v.SetDefault("webhooks.high_risk_threshold", 80)

	v.SetDefault("reports.enabled", true)
	v.SetDefault("reports.interval", 24*time.Hour)

	v.SetDefault("requestlogs.capacity", 1000)
}

// Load reads configuration from file and environment variables. A missing
// config file is not an error when no explicit path was given.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/scamshield")
	}

	v.SetEnvPrefix("SCAMSHIELD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Secrets are usually injected through the environment only
	v.BindEnv("database.password", "SCAMSHIELD_DATABASE_PASSWORD")
	v.BindEnv("redis.password", "SCAMSHIELD_REDIS_PASSWORD")
	v.BindEnv("auth.admin_token", "SCAMSHIELD_AUTH_ADMIN_TOKEN")
	v.BindEnv("auth.bootstrap_key", "SCAMSHIELD_AUTH_BOOTSTRAP_KEY")
	v.BindEnv("backend.api_token", "SCAMSHIELD_BACKEND_API_TOKEN")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configPath != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// LoadDefault loads configuration with default path
func LoadDefault() (*Config, error) {
	return Load("")
}

// Validate checks values that would otherwise fail at runtime
func (c *Config) Validate() error {
	var errs []error
	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		errs = append(errs, fmt.Errorf("server.http_port out of range: %d", c.Server.HTTPPort))
	}
	if c.Server.GRPCPort < 0 || c.Server.GRPCPort > 65535 {
		errs = append(errs, fmt.Errorf("server.grpc_port out of range: %d", c.Server.GRPCPort))
	}
	if c.Backend.Enabled && c.Backend.BaseURL == "" {
		errs = append(errs, errors.New("backend.base_url is required when backend is enabled"))
	}
	if c.Webhooks.Workers < 1 {
		errs = append(errs, errors.New("webhooks.workers must be at least 1"))
	}
	if c.Webhooks.HighRiskThreshold < 0 || c.Webhooks.HighRiskThreshold > 99 {
		errs = append(errs, fmt.Errorf("webhooks.high_risk_threshold must be within 0..99, got %d", c.Webhooks.HighRiskThreshold))
	}
	if c.Auth.QuotaWarnRatio <= 0 || c.Auth.QuotaWarnRatio > 1 {
		errs = append(errs, fmt.Errorf("auth.quota_warn_ratio must be within (0,1], got %v", c.Auth.QuotaWarnRatio))
	}
	if c.RateLimit.Enabled && c.RateLimit.RequestsPerMinute <= 0 {
		errs = append(errs, errors.New("ratelimit.requests_per_minute must be positive"))
	}
	return errors.Join(errs...)
}

// IsProduction reports whether the app runs in production
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}
