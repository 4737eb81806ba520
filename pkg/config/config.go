// Package config loads and validates pipeline configuration from YAML files
// with environment-variable overrides. It provides typed structs for every
// stage (Fetcher, Mapper, Reducer, Output) and every optional sink.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	apperrors "github.com/Adithya-Monish-Kumar-K/review-term-analytics/pkg/errors"
)

// Config is the top-level application configuration.
type Config struct {
	Fetcher  FetcherConfig  `yaml:"fetcher"`
	Mapper   MapperConfig   `yaml:"mapper"`
	Reducer  ReducerConfig  `yaml:"reducer"`
	Output   OutputConfig   `yaml:"output"`
	Sink     SinkConfig     `yaml:"sink"`
	Postgres PostgresConfig `yaml:"postgres"`
	SQLite   SQLiteConfig   `yaml:"sqlite"`
	Redis    RedisConfig    `yaml:"redis"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Logging  LoggingConfig  `yaml:"logging"`
	Tracing  TracingConfig  `yaml:"tracing"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// FetcherConfig controls the review collection stage.
type FetcherConfig struct {
	BaseURL             string        `yaml:"baseUrl"`
	Categories          []string      `yaml:"categories"`
	OutputDir           string        `yaml:"outputDir"`
	ReviewsGoal         int           `yaml:"reviewsGoal"`
	MaxReviewsPerItem   int           `yaml:"maxReviewsPerItem"`
	PageLimit           int           `yaml:"pageLimit"`
	RequestTimeout      time.Duration `yaml:"requestTimeout"`
	RetryAttempts       int           `yaml:"retryAttempts"`
	RetryInitialDelay   time.Duration `yaml:"retryInitialDelay"`
	BreakerThreshold    int           `yaml:"breakerThreshold"`
	BreakerResetTimeout time.Duration `yaml:"breakerResetTimeout"`
	Concurrency         int           `yaml:"concurrency"`
}

// MapperConfig controls term extraction. An empty StopwordsPath selects the
// built-in Spanish list; a nil AccentMap selects the default vowel map.
type MapperConfig struct {
	Threshold     float64           `yaml:"threshold"`
	StopwordsPath string            `yaml:"stopwordsPath"`
	AccentMap     map[string]string `yaml:"accentMap"`
	Workers       int               `yaml:"workers"`
}

// ReducerConfig controls the grouped reduce. Partitions > 1 enables the
// partition-then-merge mode.
type ReducerConfig struct {
	Partitions int `yaml:"partitions"`
}

// OutputConfig controls the ranked tables.
type OutputConfig struct {
	Dir      string `yaml:"dir"`
	Format   string `yaml:"format"`
	MaxTerms int    `yaml:"maxTerms"`
}

// SinkConfig selects where scored rows are persisted besides the tables.
// Kind is one of "", "sqlite" or "postgres".
type SinkConfig struct {
	Kind string `yaml:"kind"`
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
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// SQLiteConfig holds the local database path.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// RedisConfig holds Redis connection and page-cache parameters.
type RedisConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

// KafkaConfig holds the broker list and the topic for score events.
type KafkaConfig struct {
	Enabled bool     `yaml:"enabled"`
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// TracingConfig toggles logging of the per-run span tree.
type TracingConfig struct {
	Enabled bool `yaml:"enabled"`
}

// MetricsConfig controls the Prometheus scrape server and Pushgateway push.
type MetricsConfig struct {
	Enabled        bool   `yaml:"enabled"`
	Port           int    `yaml:"port"`
	PushGatewayURL string `yaml:"pushGatewayUrl"`
	JobName        string `yaml:"jobName"`
}

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides. It returns a Config populated with defaults for any missing
// values.
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

// Default returns a Config with local-development defaults.
func Default() *Config {
	return &Config{
		Fetcher: FetcherConfig{
			BaseURL:             "https://api.mercadolibre.com",
			OutputDir:           "reviews",
			ReviewsGoal:         50000,
			MaxReviewsPerItem:   100,
			PageLimit:           50,
			RequestTimeout:      10 * time.Second,
			RetryAttempts:       3,
			RetryInitialDelay:   200 * time.Millisecond,
			BreakerThreshold:    5,
			BreakerResetTimeout: 30 * time.Second,
			Concurrency:         2,
		},
		Mapper: MapperConfig{
			Threshold: 3,
			Workers:   4,
		},
		Reducer: ReducerConfig{
			Partitions: 1,
		},
		Output: OutputConfig{
			Dir:    "terms",
			Format: "csv",
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "reviewterms",
			User:            "reviewterms",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    5,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
		},
		SQLite: SQLiteConfig{
			Path: "reviewterms.db",
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 10,
			CacheTTL: 6 * time.Hour,
		},
		Kafka: KafkaConfig{
			Brokers: []string{"localhost:9092"},
			Topic:   "scores.published",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Port:    9090,
			JobName: "reviewterms",
		},
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case c.Fetcher.PageLimit <= 0:
		return fmt.Errorf("%w: fetcher.pageLimit must be positive", apperrors.ErrInvalidConfig)
	case c.Fetcher.ReviewsGoal <= 0:
		return fmt.Errorf("%w: fetcher.reviewsGoal must be positive", apperrors.ErrInvalidConfig)
	case c.Fetcher.MaxReviewsPerItem <= 0:
		return fmt.Errorf("%w: fetcher.maxReviewsPerItem must be positive", apperrors.ErrInvalidConfig)
	case c.Fetcher.Concurrency <= 0:
		return fmt.Errorf("%w: fetcher.concurrency must be positive", apperrors.ErrInvalidConfig)
	case c.Mapper.Workers <= 0:
		return fmt.Errorf("%w: mapper.workers must be positive", apperrors.ErrInvalidConfig)
	case c.Reducer.Partitions <= 0:
		return fmt.Errorf("%w: reducer.partitions must be positive", apperrors.ErrInvalidConfig)
	case c.Output.MaxTerms < 0:
		return fmt.Errorf("%w: output.maxTerms must not be negative", apperrors.ErrInvalidConfig)
	}
	switch c.Output.Format {
	case "csv", "tsv":
	default:
		return fmt.Errorf("%w: unknown output.format %q", apperrors.ErrInvalidConfig, c.Output.Format)
	}
	switch c.Sink.Kind {
	case "", "sqlite", "postgres":
	default:
		return fmt.Errorf("%w: unknown sink.kind %q", apperrors.ErrInvalidConfig, c.Sink.Kind)
	}
	return nil
}

// applyEnvOverrides reads RT_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("RT_FETCHER_BASE_URL"); v != "" {
		cfg.Fetcher.BaseURL = v
	}
	if v := os.Getenv("RT_FETCHER_CATEGORIES"); v != "" {
		cfg.Fetcher.Categories = strings.Split(v, ",")
	}
	if v := os.Getenv("RT_FETCHER_OUTPUT_DIR"); v != "" {
		cfg.Fetcher.OutputDir = v
	}
	if v := os.Getenv("RT_MAPPER_THRESHOLD"); v != "" {
		if threshold, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Mapper.Threshold = threshold
		}
	}
	if v := os.Getenv("RT_MAPPER_STOPWORDS_PATH"); v != "" {
		cfg.Mapper.StopwordsPath = v
	}
	if v := os.Getenv("RT_MAPPER_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Mapper.Workers = n
		}
	}
	if v := os.Getenv("RT_REDUCER_PARTITIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Reducer.Partitions = n
		}
	}
	if v := os.Getenv("RT_OUTPUT_DIR"); v != "" {
		cfg.Output.Dir = v
	}
	if v := os.Getenv("RT_OUTPUT_FORMAT"); v != "" {
		cfg.Output.Format = v
	}
	if v := os.Getenv("RT_OUTPUT_MAX_TERMS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Output.MaxTerms = n
		}
	}
	if v := os.Getenv("RT_SINK_KIND"); v != "" {
		cfg.Sink.Kind = v
	}
	if v := os.Getenv("RT_SQLITE_PATH"); v != "" {
		cfg.SQLite.Path = v
	}
	if v := os.Getenv("RT_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("RT_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = port
		}
	}
	if v := os.Getenv("RT_POSTGRES_DATABASE"); v != "" {
		cfg.Postgres.Database = v
	}
	if v := os.Getenv("RT_POSTGRES_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := os.Getenv("RT_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("RT_POSTGRES_SSLMODE"); v != "" {
		cfg.Postgres.SSLMode = v
	}
	if v := os.Getenv("RT_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
		cfg.Redis.Enabled = true
	}
	if v := os.Getenv("RT_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("RT_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
		cfg.Kafka.Enabled = true
	}
	if v := os.Getenv("RT_KAFKA_TOPIC"); v != "" {
		cfg.Kafka.Topic = v
	}
	if v := os.Getenv("RT_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("RT_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("RT_METRICS_PUSHGATEWAY_URL"); v != "" {
		cfg.Metrics.PushGatewayURL = v
	}
}
