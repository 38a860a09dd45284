package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// Backend names.
const (
	BackendRedis   = "redis"
	BackendMemory  = "memory"
	BackendQdrant  = "qdrant"
	BackendChromem = "chromem"
	BackendOllama  = "ollama"
	BackendHash    = "hash"
	BackendLocal   = "local"
	BackendRemote  = "remote"
)

type Config struct {
	Port     int
	DBPath   string
	LogLevel string
	// Short-term tier
	ShortTermBackend  string
	RedisAddr         string
	RedisPassword     string
	RedisDB           int
	ShortTermTTL      time.Duration
	ShortTermMaxUsers int64
	// Long-term tier
	LongTermBackend string
	QdrantURL       string
	ChromemPath     string
	// Embeddings
	EmbeddingBackend string
	OllamaBaseURL    string
	EmbeddingModel   string
	EmbeddingDim     int
	// Retrieval and pipeline
	PromotionAccessMin int
	MemoryLimit        int
	MemoryThreshold    float64
	MaxMemoryLength    int
	EnableRetrieval    bool
	EnableLearning     bool
	AsyncLearning      bool
	RequestTimeout     time.Duration
	LearningWorkers    int
	LearningQueueSize  int
	// Audit retention
	InteractionRetentionDays int
	PurgeSchedule            string
	// Clients. PipelineMemory "remote" runs the pipeline filter against the
	// memory server at MemoryServerURL; the MCP adapter always does.
	PipelineMemory  string
	MemoryServerURL string
	MCPUserID       string
}

// Load reads configuration from the environment, after preloading a .env
// file if one exists. When MEMORY_CONFIG_FILE names a YAML file its values
// sit between the environment and the defaults.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return LoadFile(os.Getenv("MEMORY_CONFIG_FILE"))
}

// LoadFile is Load without the .env step. An empty path skips the file.
func LoadFile(path string) (*Config, error) {
	l := &loader{}
	if path != "" {
		file, err := readFile(path)
		if err != nil {
			return nil, err
		}
		l.file = file
	}

	cfg := &Config{
		Port:                     l.envInt("PORT", 8741),
		DBPath:                   l.envStr("MEMORY_DB_PATH", "/data/memory.db"),
		LogLevel:                 l.envStr("LOG_LEVEL", "info"),
		ShortTermBackend:         l.envStr("SHORT_TERM_BACKEND", BackendRedis),
		RedisAddr:                l.envStr("REDIS_ADDR", "localhost:6379"),
		RedisPassword:            l.envStr("REDIS_PASSWORD", ""),
		RedisDB:                  l.envInt("REDIS_DB", 0),
		ShortTermTTL:             time.Duration(l.envInt("SHORT_TERM_TTL_HOURS", 24)) * time.Hour,
		ShortTermMaxUsers:        int64(l.envInt("SHORT_TERM_MAX_USERS", 10000)),
		LongTermBackend:          l.envStr("LONG_TERM_BACKEND", BackendQdrant),
		QdrantURL:                l.envStr("QDRANT_URL", "http://localhost:6333"),
		ChromemPath:              l.envStr("CHROMEM_PATH", ""),
		EmbeddingBackend:         l.envStr("EMBEDDING_BACKEND", BackendOllama),
		OllamaBaseURL:            l.envStr("OLLAMA_BASE_URL", "http://localhost:11434"),
		EmbeddingModel:           l.envStr("EMBEDDING_MODEL", "nomic-embed-text"),
		EmbeddingDim:             l.envInt("EMBEDDING_DIM", 768),
		PromotionAccessMin:       l.envInt("PROMOTION_ACCESS_MIN", 3),
		MemoryLimit:              l.envInt("MEMORY_LIMIT", 5),
		MemoryThreshold:          l.envFloat("MEMORY_THRESHOLD", 0.1),
		MaxMemoryLength:          l.envInt("MAX_MEMORY_LENGTH", 500),
		EnableRetrieval:          l.envBool("ENABLE_RETRIEVAL", true),
		EnableLearning:           l.envBool("ENABLE_LEARNING", true),
		AsyncLearning:            l.envBool("ASYNC_LEARNING", true),
		RequestTimeout:           time.Duration(l.envInt("REQUEST_TIMEOUT_SECONDS", 10)) * time.Second,
		LearningWorkers:          l.envInt("LEARNING_WORKERS", 2),
		LearningQueueSize:        l.envInt("LEARNING_QUEUE_SIZE", 64),
		InteractionRetentionDays: l.envInt("INTERACTION_RETENTION_DAYS", 30),
		PurgeSchedule:            l.envStr("PURGE_SCHEDULE", "0 3 * * *"),
		PipelineMemory:           l.envStr("PIPELINE_MEMORY", BackendLocal),
		MemoryServerURL:          l.envStr("MEMORY_SERVER_URL", "http://localhost:8741"),
		MCPUserID:                l.envStr("MEMORY_USER_ID", ""),
	}

	if err := errors.Join(l.errs...); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// Retention is how long interaction audit rows are kept; zero disables the purge.
func (c *Config) Retention() time.Duration {
	return time.Duration(c.InteractionRetentionDays) * 24 * time.Hour
}

func (c *Config) validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535, got %d", c.Port)
	}
	if c.DBPath == "" {
		return fmt.Errorf("MEMORY_DB_PATH must not be empty")
	}
	if err := oneOf("SHORT_TERM_BACKEND", c.ShortTermBackend, BackendRedis, BackendMemory); err != nil {
		return err
	}
	if err := oneOf("LONG_TERM_BACKEND", c.LongTermBackend, BackendQdrant, BackendChromem); err != nil {
		return err
	}
	if err := oneOf("EMBEDDING_BACKEND", c.EmbeddingBackend, BackendOllama, BackendHash); err != nil {
		return err
	}
	if err := oneOf("PIPELINE_MEMORY", c.PipelineMemory, BackendLocal, BackendRemote); err != nil {
		return err
	}
	if c.PipelineMemory == BackendRemote && c.MemoryServerURL == "" {
		return fmt.Errorf("MEMORY_SERVER_URL must not be empty when PIPELINE_MEMORY is remote")
	}
	if c.EmbeddingBackend == BackendOllama && c.OllamaBaseURL == "" {
		return fmt.Errorf("OLLAMA_BASE_URL must not be empty")
	}
	if c.EmbeddingDim < 1 {
		return fmt.Errorf("EMBEDDING_DIM must be positive, got %d", c.EmbeddingDim)
	}
	if c.ShortTermTTL <= 0 {
		return fmt.Errorf("SHORT_TERM_TTL_HOURS must be positive")
	}
	if c.ShortTermMaxUsers < 1 {
		return fmt.Errorf("SHORT_TERM_MAX_USERS must be positive, got %d", c.ShortTermMaxUsers)
	}
	if c.MemoryLimit < 1 {
		return fmt.Errorf("MEMORY_LIMIT must be positive, got %d", c.MemoryLimit)
	}
	if c.MemoryThreshold < 0 || c.MemoryThreshold > 1 {
		return fmt.Errorf("MEMORY_THRESHOLD must be between 0 and 1, got %g", c.MemoryThreshold)
	}
	if c.MaxMemoryLength < 1 {
		return fmt.Errorf("MAX_MEMORY_LENGTH must be positive, got %d", c.MaxMemoryLength)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT_SECONDS must be positive")
	}
	if c.LearningWorkers < 1 || c.LearningQueueSize < 1 {
		return fmt.Errorf("LEARNING_WORKERS and LEARNING_QUEUE_SIZE must be positive")
	}
	if c.InteractionRetentionDays < 0 {
		return fmt.Errorf("INTERACTION_RETENTION_DAYS must not be negative")
	}
	if c.InteractionRetentionDays > 0 {
		if _, err := cron.ParseStandard(c.PurgeSchedule); err != nil {
			return fmt.Errorf("PURGE_SCHEDULE %q: %w", c.PurgeSchedule, err)
		}
	}
	return nil
}

func oneOf(key, value string, allowed ...string) error {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return fmt.Errorf("%s must be one of %s, got %q", key, strings.Join(allowed, ", "), value)
}

// readFile loads a flat YAML mapping. Keys are matched case-insensitively
// against the environment variable names.
func readFile(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		switch v.(type) {
		case map[string]any, []any:
			return nil, fmt.Errorf("config file %s: %s must be a scalar", path, k)
		case nil:
			continue
		}
		out[strings.ToUpper(k)] = fmt.Sprint(v)
	}
	return out, nil
}

// loader resolves a key from the environment, then the config file.
type loader struct {
	file map[string]string
	errs []error
}

func (l *loader) lookup(key string) (string, bool) {
	if v := os.Getenv(key); v != "" {
		return v, true
	}
	v, ok := l.file[key]
	return v, ok && v != ""
}

func (l *loader) envStr(key, fallback string) string {
	if v, ok := l.lookup(key); ok {
		return v
	}
	return fallback
}

func (l *loader) envInt(key string, fallback int) int {
	v, ok := l.lookup(key)
	if !ok {
		return fallback
	}
	i, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		l.errs = append(l.errs, fmt.Errorf("%s: %q is not an integer", key, v))
		return fallback
	}
	return i
}

func (l *loader) envFloat(key string, fallback float64) float64 {
	v, ok := l.lookup(key)
	if !ok {
		return fallback
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		l.errs = append(l.errs, fmt.Errorf("%s: %q is not a number", key, v))
		return fallback
	}
	return f
}

func (l *loader) envBool(key string, fallback bool) bool {
	v, ok := l.lookup(key)
	if !ok {
		return fallback
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		l.errs = append(l.errs, fmt.Errorf("%s: %q is not a boolean", key, v))
		return fallback
	}
	return b
}
