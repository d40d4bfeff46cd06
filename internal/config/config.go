// Package config loads policy-rag settings from defaults, an optional
// YAML or TOML file, a .env file and the environment, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every policy-rag environment variable
const EnvPrefix = "POLICY_RAG_"

// Config is the root application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server" toml:"server"`
	Storage   StorageConfig   `yaml:"storage" toml:"storage"`
	Redis     RedisConfig     `yaml:"redis" toml:"redis"`
	Embedding EmbeddingConfig `yaml:"embedding" toml:"embedding"`
	Generator GeneratorConfig `yaml:"generator" toml:"generator"`
	Retrieval RetrievalConfig `yaml:"retrieval" toml:"retrieval"`
	Ingestion IngestionConfig `yaml:"ingestion" toml:"ingestion"`
	Worker    WorkerConfig    `yaml:"worker" toml:"worker"`
	Log       LogConfig       `yaml:"log" toml:"log"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Host                string `yaml:"host" toml:"host"`
	Port                int    `yaml:"port" toml:"port"`
	ReadTimeoutSeconds  int    `yaml:"read_timeout_secs" toml:"read_timeout_secs"`
	WriteTimeoutSeconds int    `yaml:"write_timeout_secs" toml:"write_timeout_secs"`
	RunWorker           bool   `yaml:"run_worker" toml:"run_worker"`
}

// StorageConfig selects the document and vector store.
type StorageConfig struct {
	Backend     string `yaml:"backend" toml:"backend"` // sqlite or postgres
	SQLitePath  string `yaml:"sqlite_path" toml:"sqlite_path"`
	PostgresURL string `yaml:"postgres_url" toml:"postgres_url"`
}

// RedisConfig enables the response cache, task queue and seeding lock.
// An empty URL disables all three.
type RedisConfig struct {
	URL string `yaml:"url" toml:"url"`
}

// EmbeddingConfig selects the encoder.
type EmbeddingConfig struct {
	Provider   string `yaml:"provider" toml:"provider"` // hash, openai or eino
	Model      string `yaml:"model" toml:"model"`
	BaseURL    string `yaml:"base_url" toml:"base_url"`
	APIKey     string `yaml:"api_key" toml:"api_key"`
	Dimensions int    `yaml:"dimensions" toml:"dimensions"`
}

// GeneratorConfig selects the optional answer generator.
type GeneratorConfig struct {
	Provider          string  `yaml:"provider" toml:"provider"` // none, openai or eino
	Model             string  `yaml:"model" toml:"model"`
	BaseURL           string  `yaml:"base_url" toml:"base_url"`
	APIKey            string  `yaml:"api_key" toml:"api_key"`
	Temperature       float32 `yaml:"temperature" toml:"temperature"`
	MaxTokens         int     `yaml:"max_tokens" toml:"max_tokens"`
	TimeoutSeconds    int     `yaml:"timeout_secs" toml:"timeout_secs"`
	RequestsPerSecond float64 `yaml:"requests_per_second" toml:"requests_per_second"`
	Burst             int     `yaml:"burst" toml:"burst"`
}

// RetrievalConfig holds query limits and chunking parameters.
type RetrievalConfig struct {
	MaxQueryLength      int     `yaml:"max_query_length" toml:"max_query_length"`
	MaxTopK             int     `yaml:"max_top_k" toml:"max_top_k"`
	DefaultTopK         int     `yaml:"default_top_k" toml:"default_top_k"`
	ChunkSize           int     `yaml:"chunk_size" toml:"chunk_size"`
	ChunkOverlap        int     `yaml:"chunk_overlap" toml:"chunk_overlap"`
	SimilarityThreshold float64 `yaml:"similarity_threshold" toml:"similarity_threshold"`
	CacheTTLSeconds     int     `yaml:"cache_ttl_secs" toml:"cache_ttl_secs"`
}

// IngestionConfig controls corpus seeding and directory watching.
type IngestionConfig struct {
	SeedOnStart  bool   `yaml:"seed_on_start" toml:"seed_on_start"`
	WatchDir     string `yaml:"watch_dir" toml:"watch_dir"`
	WatchPattern string `yaml:"watch_pattern" toml:"watch_pattern"`
}

// WorkerConfig configures background ingestion.
type WorkerConfig struct {
	Concurrency           int `yaml:"concurrency" toml:"concurrency"`
	DequeueTimeoutSeconds int `yaml:"dequeue_timeout_secs" toml:"dequeue_timeout_secs"`
}

// LogConfig configures the slog handler.
type LogConfig struct {
	Level  string `yaml:"level" toml:"level"`   // debug, info, warn, error
	Format string `yaml:"format" toml:"format"` // text or json
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:                "0.0.0.0",
			Port:                8080,
			ReadTimeoutSeconds:  15,
			WriteTimeoutSeconds: 60,
		},
		Storage: StorageConfig{
			Backend:    "sqlite",
			SQLitePath: "policy-rag.db",
		},
		Embedding: EmbeddingConfig{
			Provider: "hash",
		},
		Generator: GeneratorConfig{
			Provider:       "none",
			Temperature:    0.3,
			MaxTokens:      1000,
			TimeoutSeconds: 30,
			Burst:          1,
		},
		Retrieval: RetrievalConfig{
			MaxQueryLength:      1000,
			MaxTopK:             50,
			DefaultTopK:         5,
			ChunkSize:           500,
			ChunkOverlap:        50,
			SimilarityThreshold: 0.3,
			CacheTTLSeconds:     600,
		},
		Ingestion: IngestionConfig{
			SeedOnStart:  true,
			WatchPattern: "**/*.{md,txt,html}",
		},
		Worker: WorkerConfig{
			Concurrency:           2,
			DequeueTimeoutSeconds: 5,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load builds the configuration. path may name a .yaml, .yml or .toml
// file; an empty path skips the file. envFile names a dotenv file whose
// variables are exported unless already set; a missing envFile is ignored.
func Load(path, envFile string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, c)
	case ".toml":
		err = toml.Unmarshal(data, c)
	default:
		return fmt.Errorf("unsupported config file extension %q", filepath.Ext(path))
	}
	if err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}

// applyEnv overlays environment variables. The unprefixed PORT,
// DATABASE_URL, REDIS_URL and OPENAI_API_KEY are honoured for container
// deployments; prefixed variables win over them.
func (c *Config) applyEnv() {
	c.Server.Port = getEnvInt("PORT", c.Server.Port)
	if url := os.Getenv("DATABASE_URL"); url != "" {
		c.Storage.PostgresURL = url
		c.Storage.Backend = "postgres"
	}
	c.Redis.URL = getEnv("REDIS_URL", c.Redis.URL)
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		if c.Embedding.APIKey == "" {
			c.Embedding.APIKey = key
		}
		if c.Generator.APIKey == "" {
			c.Generator.APIKey = key
		}
	}

	p := EnvPrefix
	c.Server.Host = getEnv(p+"HOST", c.Server.Host)
	c.Server.Port = getEnvInt(p+"PORT", c.Server.Port)
	c.Server.ReadTimeoutSeconds = getEnvInt(p+"READ_TIMEOUT_SECS", c.Server.ReadTimeoutSeconds)
	c.Server.WriteTimeoutSeconds = getEnvInt(p+"WRITE_TIMEOUT_SECS", c.Server.WriteTimeoutSeconds)
	c.Server.RunWorker = getEnvBool(p+"RUN_WORKER", c.Server.RunWorker)

	c.Storage.Backend = getEnv(p+"STORAGE_BACKEND", c.Storage.Backend)
	c.Storage.SQLitePath = getEnv(p+"SQLITE_PATH", c.Storage.SQLitePath)
	c.Storage.PostgresURL = getEnv(p+"POSTGRES_URL", c.Storage.PostgresURL)
	c.Redis.URL = getEnv(p+"REDIS_URL", c.Redis.URL)

	c.Embedding.Provider = getEnv(p+"EMBEDDING_PROVIDER", c.Embedding.Provider)
	c.Embedding.Model = getEnv(p+"EMBEDDING_MODEL", c.Embedding.Model)
	c.Embedding.BaseURL = getEnv(p+"EMBEDDING_BASE_URL", c.Embedding.BaseURL)
	c.Embedding.APIKey = getEnv(p+"EMBEDDING_API_KEY", c.Embedding.APIKey)
	c.Embedding.Dimensions = getEnvInt(p+"EMBEDDING_DIMENSIONS", c.Embedding.Dimensions)

	c.Generator.Provider = getEnv(p+"GENERATOR_PROVIDER", c.Generator.Provider)
	c.Generator.Model = getEnv(p+"GENERATOR_MODEL", c.Generator.Model)
	c.Generator.BaseURL = getEnv(p+"GENERATOR_BASE_URL", c.Generator.BaseURL)
	c.Generator.APIKey = getEnv(p+"GENERATOR_API_KEY", c.Generator.APIKey)
	c.Generator.Temperature = float32(getEnvFloat(p+"GENERATOR_TEMPERATURE", float64(c.Generator.Temperature)))
	c.Generator.MaxTokens = getEnvInt(p+"GENERATOR_MAX_TOKENS", c.Generator.MaxTokens)
	c.Generator.TimeoutSeconds = getEnvInt(p+"GENERATOR_TIMEOUT_SECS", c.Generator.TimeoutSeconds)
	c.Generator.RequestsPerSecond = getEnvFloat(p+"GENERATOR_RPS", c.Generator.RequestsPerSecond)
	c.Generator.Burst = getEnvInt(p+"GENERATOR_BURST", c.Generator.Burst)

	c.Retrieval.MaxQueryLength = getEnvInt(p+"MAX_QUERY_LENGTH", c.Retrieval.MaxQueryLength)
	c.Retrieval.MaxTopK = getEnvInt(p+"MAX_TOP_K", c.Retrieval.MaxTopK)
	c.Retrieval.DefaultTopK = getEnvInt(p+"DEFAULT_TOP_K", c.Retrieval.DefaultTopK)
	c.Retrieval.ChunkSize = getEnvInt(p+"CHUNK_SIZE", c.Retrieval.ChunkSize)
	c.Retrieval.ChunkOverlap = getEnvInt(p+"CHUNK_OVERLAP", c.Retrieval.ChunkOverlap)
	c.Retrieval.SimilarityThreshold = getEnvFloat(p+"SIMILARITY_THRESHOLD", c.Retrieval.SimilarityThreshold)
	c.Retrieval.CacheTTLSeconds = getEnvInt(p+"CACHE_TTL_SECS", c.Retrieval.CacheTTLSeconds)

	c.Ingestion.SeedOnStart = getEnvBool(p+"SEED_ON_START", c.Ingestion.SeedOnStart)
	c.Ingestion.WatchDir = getEnv(p+"WATCH_DIR", c.Ingestion.WatchDir)
	c.Ingestion.WatchPattern = getEnv(p+"WATCH_PATTERN", c.Ingestion.WatchPattern)

	c.Worker.Concurrency = getEnvInt(p+"WORKER_CONCURRENCY", c.Worker.Concurrency)
	c.Worker.DequeueTimeoutSeconds = getEnvInt(p+"WORKER_DEQUEUE_TIMEOUT", c.Worker.DequeueTimeoutSeconds)

	c.Log.Level = getEnv(p+"LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv(p+"LOG_FORMAT", c.Log.Format)
}

// Validate rejects inconsistent settings.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server port %d out of range", c.Server.Port))
	}

	switch c.Storage.Backend {
	case "sqlite":
		if c.Storage.SQLitePath == "" {
			errs = append(errs, errors.New("sqlite path is required"))
		}
	case "postgres":
		if c.Storage.PostgresURL == "" {
			errs = append(errs, errors.New("postgres URL is required"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage backend %q", c.Storage.Backend))
	}

	switch c.Embedding.Provider {
	case "hash", "openai", "eino":
	default:
		errs = append(errs, fmt.Errorf("unknown embedding provider %q", c.Embedding.Provider))
	}
	switch c.Generator.Provider {
	case "none", "openai", "eino":
	default:
		errs = append(errs, fmt.Errorf("unknown generator provider %q", c.Generator.Provider))
	}

	r := c.Retrieval
	if r.MaxQueryLength < 1 {
		errs = append(errs, errors.New("max query length must be positive"))
	}
	if r.MaxTopK < 1 || r.DefaultTopK < 1 || r.DefaultTopK > r.MaxTopK {
		errs = append(errs, fmt.Errorf("top_k bounds invalid: default %d, max %d", r.DefaultTopK, r.MaxTopK))
	}
	if r.ChunkSize < 1 {
		errs = append(errs, errors.New("chunk size must be positive"))
	}
	if r.ChunkOverlap < 0 || r.ChunkOverlap >= r.ChunkSize {
		errs = append(errs, fmt.Errorf("chunk overlap %d must be in [0, %d)", r.ChunkOverlap, r.ChunkSize))
	}

	if _, err := ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		errs = append(errs, fmt.Errorf("unknown log format %q", c.Log.Format))
	}

	return errors.Join(errs...)
}

// ReadTimeout returns the HTTP read timeout
func (s ServerConfig) ReadTimeout() time.Duration {
	return time.Duration(s.ReadTimeoutSeconds) * time.Second
}

// WriteTimeout returns the HTTP write timeout
func (s ServerConfig) WriteTimeout() time.Duration {
	return time.Duration(s.WriteTimeoutSeconds) * time.Second
}

// Timeout returns the generator request timeout
func (g GeneratorConfig) Timeout() time.Duration {
	return time.Duration(g.TimeoutSeconds) * time.Second
}

// CacheTTL returns how long cached answers live
func (r RetrievalConfig) CacheTTL() time.Duration {
	return time.Duration(r.CacheTTLSeconds) * time.Second
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if result, err := strconv.Atoi(value); err == nil {
			return result
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if result, err := strconv.ParseFloat(value, 64); err == nil {
			return result
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		switch strings.ToLower(value) {
		case "true", "1", "yes":
			return true
		case "false", "0", "no":
			return false
		}
	}
	return defaultValue
}
