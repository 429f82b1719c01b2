package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Supported DB_DRIVER values
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Cache         CacheConfig
	Broker        BrokerConfig
	App           AppConfig
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DatabaseConfig holds store selection and connection configuration
type DatabaseConfig struct {
	Driver      string
	Host        string
	Port        string
	User        string
	Password    string
	DBName      string
	SSLMode     string
	SQLitePath  string
	AutoMigrate bool
}

// CacheConfig holds the Redis caching layer configuration
type CacheConfig struct {
	Enabled     bool
	Host        string
	Port        string
	User        string
	Password    string
	TTL         time.Duration
	NegativeTTL time.Duration
}

// BrokerConfig holds RabbitMQ configuration. An empty URL disables events.
type BrokerConfig struct {
	URL      string
	Exchange string
}

// AppConfig holds application-specific configuration
type AppConfig struct {
	PublicHost string // host used when building short links
	PublicPort string
}

// ObservabilityConfig holds logging, tracing and metrics settings
type ObservabilityConfig struct {
	Environment      string
	ServiceName      string
	LogLevel         string
	OTLPEndpoint     string
	TraceSampleRatio float64
}

// Load loads configuration from the environment, reading a .env file first
// when one exists in the working directory.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", "8080"),
			ReadTimeout:  getEnvDuration("HTTP_READ_TIMEOUT", 10*time.Second),
			WriteTimeout: getEnvDuration("HTTP_WRITE_TIMEOUT", 10*time.Second),
		},
		Database: DatabaseConfig{
			Driver:      strings.ToLower(getEnv("DB_DRIVER", DriverSQLite)),
			Host:        getEnv("DB_HOST", "localhost"),
			Port:        getEnv("DB_PORT", "5432"),
			User:        getEnv("DB_USER", "shortlink"),
			Password:    getEnv("DB_PASSWORD", "shortlink"),
			DBName:      getEnv("DB_NAME", "shortlink"),
			SSLMode:     getEnv("DB_SSLMODE", "disable"),
			SQLitePath:  getEnv("SQLITE_PATH", "urls.db"),
			AutoMigrate: getEnvBool("DB_AUTO_MIGRATE", true),
		},
		Cache: CacheConfig{
			Enabled:     getEnvBool("CACHE_ENABLED", false),
			Host:        getEnv("RDB_HOST", "localhost"),
			Port:        getEnv("RDB_PORT", "6379"),
			User:        getEnv("RDB_USER", ""),
			Password:    getEnv("RDB_PASSWORD", ""),
			TTL:         getEnvDuration("CACHE_TTL", time.Hour),
			NegativeTTL: getEnvDuration("CACHE_NEGATIVE_TTL", 30*time.Second),
		},
		Broker: BrokerConfig{
			URL:      getEnv("AMQP_URL", ""),
			Exchange: getEnv("AMQP_EXCHANGE", "shortlink.events"),
		},
		App: AppConfig{
			PublicHost: getEnv("PUBLIC_HOST", "127.0.0.1"),
			PublicPort: getEnv("PUBLIC_PORT", ""),
		},
		Observability: ObservabilityConfig{
			Environment:      getEnv("APP_ENV", "development"),
			ServiceName:      getEnv("SERVICE_NAME", "shortlink"),
			LogLevel:         getEnv("LOG_LEVEL", "info"),
			OTLPEndpoint:     getEnv("OTLP_ENDPOINT", ""),
			TraceSampleRatio: getEnvFloat("TRACE_SAMPLE_RATIO", 1),
		},
	}

	// Short links point at the listening port unless told otherwise
	if cfg.App.PublicPort == "" {
		cfg.App.PublicPort = cfg.Server.Port
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error

	switch c.Database.Driver {
	case DriverPostgres, DriverSQLite, DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("DB_DRIVER: unsupported driver %q", c.Database.Driver))
	}
	if c.Database.Driver == DriverSQLite && c.Database.SQLitePath == "" {
		errs = append(errs, errors.New("SQLITE_PATH: must not be empty"))
	}
	if !validPort(c.Server.Port) {
		errs = append(errs, fmt.Errorf("PORT: invalid port %q", c.Server.Port))
	}
	if !validPort(c.App.PublicPort) {
		errs = append(errs, fmt.Errorf("PUBLIC_PORT: invalid port %q", c.App.PublicPort))
	}
	if c.App.PublicHost == "" {
		errs = append(errs, errors.New("PUBLIC_HOST: must not be empty"))
	}
	if c.Cache.Enabled {
		if c.Cache.TTL <= 0 {
			errs = append(errs, errors.New("CACHE_TTL: must be positive"))
		}
		if c.Cache.NegativeTTL <= 0 {
			errs = append(errs, errors.New("CACHE_NEGATIVE_TTL: must be positive"))
		}
	}
	if r := c.Observability.TraceSampleRatio; r < 0 || r > 1 {
		errs = append(errs, fmt.Errorf("TRACE_SAMPLE_RATIO: %v is outside [0, 1]", r))
	}

	return errors.Join(errs...)
}

// ShortBase returns the scheme and authority every short link starts with.
func (a *AppConfig) ShortBase() string {
	return "http://" + a.PublicHost + ":" + a.PublicPort
}

type ConnectionInterface interface {
	ConnectionString() string
}

// ConnectionString returns the PostgreSQL connection string
func (d *DatabaseConfig) ConnectionString() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     d.Host + ":" + d.Port,
		Path:     "/" + d.DBName,
		RawQuery: "sslmode=" + url.QueryEscape(d.SSLMode),
	}
	return u.String()
}

// ConnectionString returns the Redis connection string
func (c *CacheConfig) ConnectionString() string {
	u := url.URL{
		Scheme: "redis",
		Host:   c.Host + ":" + c.Port,
		Path:   "/0",
	}
	if c.User != "" || c.Password != "" {
		u.User = url.UserPassword(c.User, c.Password)
	}
	return u.String()
}

func validPort(p string) bool {
	n, err := strconv.Atoi(p)
	return err == nil && n > 0 && n < 65536
}

func getEnv(key, defaultVal string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
