// Package config loads and validates application configuration from YAML files
// with environment-variable overrides. It provides typed structs for every
// subsystem (Corpus, Indexer, Kafka, Redis, Postgres, Logging, etc.).
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
	Corpus   CorpusConfig   `yaml:"corpus"`
	Indexer  IndexerConfig  `yaml:"indexer"`
	Postgres PostgresConfig `yaml:"postgres"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Redis    RedisConfig    `yaml:"redis"`
	Notify   NotifyConfig   `yaml:"notify"`
	Logging  LoggingConfig  `yaml:"logging"`
	Tracing  TracingConfig  `yaml:"tracing"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// CorpusConfig describes where the parsed corpus lives and how each
// translation directory is laid out.
type CorpusConfig struct {
	Root         string `yaml:"root"`
	ManifestName string `yaml:"manifestName"`
	BooksDir     string `yaml:"booksDir"`
	MetadataFile string `yaml:"metadataFile"`
	OutputDir    string `yaml:"outputDir"`
}

// IndexerConfig controls translation parallelism, posting-file writes and
// the failure policy of a corpus run.
type IndexerConfig struct {
	Workers               int  `yaml:"workers"`
	WriteConcurrency      int  `yaml:"writeConcurrency"`
	LargePostingThreshold int  `yaml:"largePostingThreshold"`
	ContinueOnError       bool `yaml:"continueOnError"`
	StrictLanguages       bool `yaml:"strictLanguages"`
	VerifyOutput          bool `yaml:"verifyOutput"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Enabled         bool          `yaml:"enabled"`
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

// KafkaConfig holds Kafka broker and topic settings.
type KafkaConfig struct {
	Enabled bool        `yaml:"enabled"`
	Brokers []string    `yaml:"brokers"`
	Topics  KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	IndexComplete string `yaml:"indexComplete"`
}

// RedisConfig holds Redis connection parameters and the key prefix used by
// the search cache.
type RedisConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	PoolSize  int    `yaml:"poolSize"`
	KeyPrefix string `yaml:"keyPrefix"`
}

// NotifyConfig bounds every notification sink call.
type NotifyConfig struct {
	Timeout     time.Duration `yaml:"timeout"`
	MaxAttempts int           `yaml:"maxAttempts"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// TracingConfig toggles per-translation span logging.
type TracingConfig struct {
	Enabled bool `yaml:"enabled"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides. It returns a Config populated with sensible defaults for any
// missing values.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
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

// Default returns the built-in configuration without reading a file or the
// environment.
func Default() *Config {
	return defaultConfig()
}

// Validate rejects settings the indexer cannot run with.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Corpus.Root) == "" {
		return fmt.Errorf("invalid config: corpus.root is required")
	}
	if c.Corpus.BooksDir == "" || c.Corpus.OutputDir == "" || c.Corpus.MetadataFile == "" {
		return fmt.Errorf("invalid config: corpus.booksDir, corpus.outputDir and corpus.metadataFile are required")
	}
	if c.Indexer.Workers <= 0 {
		return fmt.Errorf("invalid config: indexer.workers must be positive, got %d", c.Indexer.Workers)
	}
	if c.Indexer.WriteConcurrency <= 0 {
		return fmt.Errorf("invalid config: indexer.writeConcurrency must be positive, got %d", c.Indexer.WriteConcurrency)
	}
	if c.Indexer.LargePostingThreshold <= 0 {
		return fmt.Errorf("invalid config: indexer.largePostingThreshold must be positive, got %d", c.Indexer.LargePostingThreshold)
	}
	if c.Kafka.Enabled && (len(c.Kafka.Brokers) == 0 || c.Kafka.Topics.IndexComplete == "") {
		return fmt.Errorf("invalid config: kafka.brokers and kafka.topics.indexComplete are required when kafka is enabled")
	}
	return nil
}

// defaultConfig returns a Config with defaults for a local corpus build.
func defaultConfig() *Config {
	return &Config{
		Corpus: CorpusConfig{
			Root:         "dist/bibles",
			ManifestName: "manifest.json",
			BooksDir:     "json",
			MetadataFile: "metadata.json",
			OutputDir:    "indexes_json",
		},
		Indexer: IndexerConfig{
			Workers:               1,
			WriteConcurrency:      8,
			LargePostingThreshold: 5000,
			ContinueOnError:       false,
			StrictLanguages:       true,
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "scriptureindex",
			User:            "scriptureindex",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    5,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Kafka: KafkaConfig{
			Brokers: []string{"localhost:9092"},
			Topics: KafkaTopics{
				IndexComplete: "index.complete",
			},
		},
		Redis: RedisConfig{
			Addr:      "localhost:6379",
			PoolSize:  10,
			KeyPrefix: "search:",
		},
		Notify: NotifyConfig{
			Timeout:     10 * time.Second,
			MaxAttempts: 3,
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

// applyEnvOverrides reads SI_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SI_CORPUS_ROOT"); v != "" {
		cfg.Corpus.Root = v
	}
	if v := os.Getenv("SI_CORPUS_OUTPUT_DIR"); v != "" {
		cfg.Corpus.OutputDir = v
	}
	if v := os.Getenv("SI_INDEXER_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Indexer.Workers = n
		}
	}
	if v := os.Getenv("SI_INDEXER_WRITE_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Indexer.WriteConcurrency = n
		}
	}
	if v := os.Getenv("SI_INDEXER_LARGE_POSTING_THRESHOLD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Indexer.LargePostingThreshold = n
		}
	}
	if v := os.Getenv("SI_INDEXER_CONTINUE_ON_ERROR"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Indexer.ContinueOnError = b
		}
	}
	if v := os.Getenv("SI_INDEXER_STRICT_LANGUAGES"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Indexer.StrictLanguages = b
		}
	}
	if v := os.Getenv("SI_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("SI_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = port
		}
	}
	if v := os.Getenv("SI_POSTGRES_DATABASE"); v != "" {
		cfg.Postgres.Database = v
	}
	if v := os.Getenv("SI_POSTGRES_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := os.Getenv("SI_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("SI_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("SI_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("SI_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("SI_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("SI_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}
