// Package config loads and validates the index configuration from YAML files
// with environment-variable overrides. It provides typed structs for storage
// (memory, PostgreSQL, Redis), the Kafka ingest worker, index tunables,
// ranking weights, read retries, logging and metrics.
package config

import (
	"fmt"
	"log/slog"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Storage  StorageConfig  `yaml:"storage"`
	Postgres PostgresConfig `yaml:"postgres"`
	Redis    RedisConfig    `yaml:"redis"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Index    IndexConfig    `yaml:"index"`
	Ranking  RankingConfig  `yaml:"ranking"`
	Retry    RetryConfig    `yaml:"retry"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// StorageConfig selects the storage collaborator.
type StorageConfig struct {
	// Driver is "memory" or "postgres".
	Driver string `yaml:"driver"`
	// FrequentQueries is "store" (same backend as everything else) or "redis".
	FrequentQueries string `yaml:"frequentQueries"`
}

// PostgresConfig holds PostgreSQL connection parameters.
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
	// RelaxedReads opens write transactions at READ UNCOMMITTED.
	RelaxedReads bool `yaml:"relaxedReads"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	PoolSize  int    `yaml:"poolSize"`
	KeyPrefix string `yaml:"keyPrefix"`
}

// KafkaConfig holds Kafka broker and topic settings for the ingest worker.
type KafkaConfig struct {
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	DocumentIngest string `yaml:"documentIngest"`
	IndexComplete  string `yaml:"indexComplete"`
}

// IndexConfig controls corpus initialization, the frequent-query cache and
// the positional statistics computed during document processing.
type IndexConfig struct {
	ResetOnStart         bool             `yaml:"resetOnStart"`
	FrequentQueryCeiling int              `yaml:"frequentQueryCeiling"`
	Statistics           StatisticsConfig `yaml:"statistics"`
	Stem                 bool             `yaml:"stem"`
	FuzzyMaxDistance     int              `yaml:"fuzzyMaxDistance"`
	FuzzyIgnoreCase      bool             `yaml:"fuzzyIgnoreCase"`
	// ExpandApproximate turns on fuzzy expansion of optional query words.
	ExpandApproximate bool `yaml:"expandApproximate"`
}

// StatisticsConfig toggles which positional occurrence statistics are
// computed and stored.
type StatisticsConfig struct {
	Average   bool `yaml:"average"`
	Median    bool `yaml:"median"`
	Variance  bool `yaml:"variance"`
	Positions bool `yaml:"positions"`
}

// RankingConfig holds the weights of the default ranking function.
type RankingConfig struct {
	Exact  float64 `yaml:"exact"`
	Approx float64 `yaml:"approx"`
	Eval   float64 `yaml:"eval"`
	Open   float64 `yaml:"open"`
	Age    float64 `yaml:"age"`
}

// Sum returns the total of all five weights.
func (r RankingConfig) Sum() float64 {
	return r.Exact + r.Approx + r.Eval + r.Open + r.Age
}

// RetryConfig is the fixed-delay policy applied to storage reads.
type RetryConfig struct {
	MaxAttempts int           `yaml:"maxAttempts"`
	Delay       time.Duration `yaml:"delay"`
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
// overrides. It returns a Config populated with defaults for any missing values.
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
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// Default returns a Config with local-development defaults.
func Default() *Config {
	return &Config{
		Storage: StorageConfig{
			Driver:          "memory",
			FrequentQueries: "store",
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "textindex",
			User:            "textindex",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Redis: RedisConfig{
			Addr:      "localhost:6379",
			PoolSize:  10,
			KeyPrefix: "textindex:",
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "textindex-indexer",
			Topics: KafkaTopics{
				DocumentIngest: "document-ingest",
				IndexComplete:  "index.complete",
			},
		},
		Index: IndexConfig{
			FrequentQueryCeiling: 1000,
			Statistics: StatisticsConfig{
				Average:   true,
				Median:    true,
				Variance:  true,
				Positions: true,
			},
			FuzzyMaxDistance:  3,
			FuzzyIgnoreCase:   true,
			ExpandApproximate: true,
		},
		Ranking: DefaultRanking(),
		Retry: RetryConfig{
			MaxAttempts: 10,
			Delay:       2 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Port:    9090,
		},
	}
}

// DefaultRanking returns the stock ranking weights. They sum to 1.
func DefaultRanking() RankingConfig {
	return RankingConfig{
		Exact:  0.21,
		Approx: 0.19,
		Eval:   0.19,
		Open:   0.18,
		Age:    0.23,
	}
}

// Validate rejects settings the engine cannot run with. A weight set that
// does not sum to 1 is allowed but logged.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case "memory", "postgres":
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	switch c.Storage.FrequentQueries {
	case "", "store", "redis":
	default:
		return fmt.Errorf("unknown frequent query backend %q", c.Storage.FrequentQueries)
	}
	if c.Index.FrequentQueryCeiling <= 0 {
		return fmt.Errorf("index.frequentQueryCeiling must be positive, got %d", c.Index.FrequentQueryCeiling)
	}
	if c.Index.FuzzyMaxDistance < 0 {
		return fmt.Errorf("index.fuzzyMaxDistance must not be negative, got %d", c.Index.FuzzyMaxDistance)
	}
	r := c.Ranking
	for name, w := range map[string]float64{"exact": r.Exact, "approx": r.Approx, "eval": r.Eval, "open": r.Open, "age": r.Age} {
		if w < 0 {
			return fmt.Errorf("ranking.%s must not be negative, got %v", name, w)
		}
	}
	if math.Abs(r.Sum()-1) > 1e-9 {
		slog.Warn("ranking weights do not sum to 1", "sum", r.Sum())
	}
	if c.Retry.MaxAttempts <= 0 {
		return fmt.Errorf("retry.maxAttempts must be positive, got %d", c.Retry.MaxAttempts)
	}
	if c.Retry.Delay < 0 {
		return fmt.Errorf("retry.delay must not be negative, got %v", c.Retry.Delay)
	}
	return nil
}

// applyEnvOverrides reads TI_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("TI_STORAGE_DRIVER"); v != "" {
		cfg.Storage.Driver = v
	}
	if v := os.Getenv("TI_STORAGE_FREQUENT_QUERIES"); v != "" {
		cfg.Storage.FrequentQueries = v
	}
	if v := os.Getenv("TI_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("TI_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = port
		}
	}
	if v := os.Getenv("TI_POSTGRES_DATABASE"); v != "" {
		cfg.Postgres.Database = v
	}
	if v := os.Getenv("TI_POSTGRES_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := os.Getenv("TI_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("TI_POSTGRES_SSLMODE"); v != "" {
		cfg.Postgres.SSLMode = v
	}
	if v := os.Getenv("TI_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("TI_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("TI_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("TI_INDEX_FREQUENT_QUERY_CEILING"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Index.FrequentQueryCeiling = n
		}
	}
	if v := os.Getenv("TI_RETRY_MAX_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Retry.MaxAttempts = n
		}
	}
	if v := os.Getenv("TI_RETRY_DELAY"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Retry.Delay = d
		}
	}
	if v := os.Getenv("TI_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("TI_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}
