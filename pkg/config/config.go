// Package config loads application configuration from a YAML file with
// environment-variable overrides. It provides typed structs for every
// subsystem (Server, Indexer, Search, Redis, Kafka, Postgres, Logging,
// Metrics).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Indexer  IndexerConfig  `yaml:"indexer"`
	Search   SearchConfig   `yaml:"search"`
	Redis    RedisConfig    `yaml:"redis"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Postgres PostgresConfig `yaml:"postgres"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings for the search service.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	// CORSOrigins lists browser origins allowed to call the API. Empty
	// disables CORS headers.
	CORSOrigins []string `yaml:"corsOrigins"`
}

// Source kinds accepted by IndexerConfig.Source.
const (
	SourceFile     = "file"
	SourcePostgres = "postgres"
)

// Store kinds accepted by IndexerConfig.Store.
const (
	StoreFile  = "file"
	StoreRedis = "redis"
)

// IndexerConfig controls where publication records come from, where the
// snapshot is persisted and how often the scheduler re-indexes.
type IndexerConfig struct {
	DataDir        string        `yaml:"dataDir"`
	DocumentsPath  string        `yaml:"documentsPath"`
	Source         string        `yaml:"source"`
	Store          string        `yaml:"store"`
	Compression    string        `yaml:"compression"`
	UpdateInterval time.Duration `yaml:"updateInterval"`
	RetryAttempts  int           `yaml:"retryAttempts"`
}

// SearchConfig controls result limits.
type SearchConfig struct {
	DefaultLimit int `yaml:"defaultLimit"`
	MaxResults   int `yaml:"maxResults"`
	CacheSize    int `yaml:"cacheSize"`
}

// RedisConfig holds Redis connection parameters for the query cache and
// the optional Redis snapshot store.
type RedisConfig struct {
	Enabled     bool          `yaml:"enabled"`
	Addr        string        `yaml:"addr"`
	Password    string        `yaml:"password"`
	DB          int           `yaml:"db"`
	PoolSize    int           `yaml:"poolSize"`
	CacheTTL    time.Duration `yaml:"cacheTTL"`
	SnapshotKey string        `yaml:"snapshotKey"`
}

// KafkaConfig holds broker and topic settings.
type KafkaConfig struct {
	Enabled       bool        `yaml:"enabled"`
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	RecordIngest  string `yaml:"recordIngest"`
	IndexComplete string `yaml:"indexComplete"`
}

// PostgresConfig holds PostgreSQL connection parameters for the
// publications source.
type PostgresConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides. Missing values keep their defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns a Config suitable for local development.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			CORSOrigins:     []string{"*"},
		},
		Indexer: IndexerConfig{
			DataDir:        "index_data",
			DocumentsPath:  "publications.jsonl",
			Source:         SourceFile,
			Store:          StoreFile,
			Compression:    "zstd",
			UpdateInterval: 7 * 24 * time.Hour,
			RetryAttempts:  3,
		},
		Search: SearchConfig{
			DefaultLimit: 10,
			MaxResults:   100,
			CacheSize:    1024,
		},
		Redis: RedisConfig{
			Addr:        "localhost:6379",
			PoolSize:    10,
			CacheTTL:    60 * time.Second,
			SnapshotKey: "pubsearch:snapshot",
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "pubsearch-group",
			Topics: KafkaTopics{
				RecordIngest:  "publication-records",
				IndexComplete: "index.complete",
			},
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "pubsearch",
			User:            "pubsearch",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
	}
}

// Validate rejects configurations the services cannot start with.
func (c *Config) Validate() error {
	switch c.Indexer.Source {
	case SourceFile, SourcePostgres:
	default:
		return fmt.Errorf("indexer.source: unknown source %q", c.Indexer.Source)
	}
	switch c.Indexer.Store {
	case StoreFile, StoreRedis:
	default:
		return fmt.Errorf("indexer.store: unknown store %q", c.Indexer.Store)
	}
	if c.Indexer.Store == StoreFile && c.Indexer.DataDir == "" {
		return fmt.Errorf("indexer.dataDir is required for the file store")
	}
	if c.Search.DefaultLimit <= 0 {
		return fmt.Errorf("search.defaultLimit must be positive")
	}
	if c.Search.MaxResults < c.Search.DefaultLimit {
		return fmt.Errorf("search.maxResults must be >= search.defaultLimit")
	}
	return nil
}

// applyEnvOverrides reads PS_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("PS_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v, ok := os.LookupEnv("PS_SERVER_CORS_ORIGINS"); ok {
		cfg.Server.CORSOrigins = nil
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.Server.CORSOrigins = append(cfg.Server.CORSOrigins, o)
			}
		}
	}
	if v := os.Getenv("PS_INDEXER_DATA_DIR"); v != "" {
		cfg.Indexer.DataDir = v
	}
	if v := os.Getenv("PS_INDEXER_DOCUMENTS_PATH"); v != "" {
		cfg.Indexer.DocumentsPath = v
	}
	if v := os.Getenv("PS_INDEXER_SOURCE"); v != "" {
		cfg.Indexer.Source = v
	}
	if v := os.Getenv("PS_INDEXER_STORE"); v != "" {
		cfg.Indexer.Store = v
	}
	if v := os.Getenv("PS_INDEXER_UPDATE_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Indexer.UpdateInterval = d
		}
	}
	if v := os.Getenv("PS_REDIS_ENABLED"); v != "" {
		cfg.Redis.Enabled = parseBool(v)
	}
	if v := os.Getenv("PS_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("PS_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("PS_KAFKA_ENABLED"); v != "" {
		cfg.Kafka.Enabled = parseBool(v)
	}
	if v := os.Getenv("PS_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("PS_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("PS_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = port
		}
	}
	if v := os.Getenv("PS_POSTGRES_DATABASE"); v != "" {
		cfg.Postgres.Database = v
	}
	if v := os.Getenv("PS_POSTGRES_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := os.Getenv("PS_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("PS_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("PS_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}

func parseBool(v string) bool {
	b, err := strconv.ParseBool(v)
	return err == nil && b
}
