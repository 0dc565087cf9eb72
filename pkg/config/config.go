package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvFile names the environment variable pointing at an optional YAML config file.
const EnvFile = "SCRIPTGEN_CONFIG"

type Config struct {
	GoogleApiKey    string `yaml:"google_api_key"`
	AnthropicApiKey string `yaml:"anthropic_api_key"`
	LLMProvider     string `yaml:"llm_provider"`
	PlannerModel    string `yaml:"planner_model"`
	WriterModel     string `yaml:"writer_model"`
	JudgeModel      string `yaml:"judge_model"`

	EmbeddingProvider string `yaml:"embedding_provider"`
	EmbeddingModel    string `yaml:"embedding_model"`
	EmbeddingDim      int    `yaml:"embedding_dim"`
	KnowledgeDir      string `yaml:"knowledge_dir"`

	MaxIterations  int     `yaml:"max_iterations"`
	MinSourceScore float64 `yaml:"min_source_score"`

	SearchProvider   string        `yaml:"search_provider"`
	TavilyApiKey     string        `yaml:"tavily_api_key"`
	SearchMaxResults int           `yaml:"search_max_results"`
	SearchTimeout    time.Duration `yaml:"search_timeout"`
	Extractor        string        `yaml:"extractor"`
	MistralApiKey    string        `yaml:"mistral_api_key"`

	RedisURL      string        `yaml:"redis_url"`
	RedisPassword string        `yaml:"redis_password"`
	RedisDB       int           `yaml:"redis_db"`
	CacheTTL      time.Duration `yaml:"cache_ttl"`

	DatabaseURL string `yaml:"database_url"`
	Port        string `yaml:"port"`
	OutputDir   string `yaml:"output_dir"`
}

// Defaults returns the configuration used when nothing is set.
func Defaults() *Config {
	return &Config{
		LLMProvider:       "google",
		PlannerModel:      "gemini-3-flash-preview",
		WriterModel:       "gemini-3-flash-preview",
		JudgeModel:        "gemini-3-pro-preview",
		EmbeddingProvider: "google",
		EmbeddingModel:    "gemini-embedding-001",
		EmbeddingDim:      768,
		KnowledgeDir:      "./knowledge_store",
		MaxIterations:     2,
		MinSourceScore:    0.3,
		SearchProvider:    "tavily",
		SearchMaxResults:  2,
		SearchTimeout:     30 * time.Second,
		Extractor:         "tavily",
		CacheTTL:          24 * time.Hour,
		Port:              "8081",
		OutputDir:         ".",
	}
}

// Load builds the configuration from defaults, then the YAML file at path
// (or $SCRIPTGEN_CONFIG when path is empty), then the environment.
// Environment variables win over the file.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path == "" {
		path = os.Getenv(EnvFile)
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	cfg.GoogleApiKey = getEnv("GOOGLE_API_KEY", cfg.GoogleApiKey)
	cfg.AnthropicApiKey = getEnv("ANTHROPIC_API_KEY", cfg.AnthropicApiKey)
	cfg.LLMProvider = getEnv("LLM_PROVIDER", cfg.LLMProvider)
	cfg.PlannerModel = getEnv("PLANNER_MODEL", cfg.PlannerModel)
	cfg.WriterModel = getEnv("WRITER_MODEL", cfg.WriterModel)
	cfg.JudgeModel = getEnv("JUDGE_MODEL", cfg.JudgeModel)

	cfg.EmbeddingProvider = getEnv("EMBEDDING_PROVIDER", cfg.EmbeddingProvider)
	cfg.EmbeddingModel = getEnv("EMBEDDING_MODEL", cfg.EmbeddingModel)
	cfg.EmbeddingDim = getEnvAsInt("EMBEDDING_DIM", cfg.EmbeddingDim)
	cfg.KnowledgeDir = getEnv("KNOWLEDGE_DIR", cfg.KnowledgeDir)

	cfg.MaxIterations = getEnvAsInt("MAX_ITERATIONS", cfg.MaxIterations)
	cfg.MinSourceScore = getEnvAsFloat("MIN_SOURCE_SCORE", cfg.MinSourceScore)

	cfg.SearchProvider = getEnv("SEARCH_PROVIDER", cfg.SearchProvider)
	cfg.TavilyApiKey = getEnv("TAVILY_API_KEY", cfg.TavilyApiKey)
	cfg.SearchMaxResults = getEnvAsInt("SEARCH_MAX_RESULTS", cfg.SearchMaxResults)
	cfg.SearchTimeout = getEnvAsDuration("SEARCH_TIMEOUT", cfg.SearchTimeout)
	cfg.Extractor = getEnv("EXTRACTOR", cfg.Extractor)
	cfg.MistralApiKey = getEnv("MISTRAL_API_KEY", cfg.MistralApiKey)

	cfg.RedisURL = getEnv("REDIS_URL", cfg.RedisURL)
	cfg.RedisPassword = getEnv("REDIS_PASSWORD", cfg.RedisPassword)
	cfg.RedisDB = getEnvAsInt("REDIS_DB", cfg.RedisDB)
	cfg.CacheTTL = getEnvAsDuration("CACHE_TTL", cfg.CacheTTL)

	cfg.DatabaseURL = getEnv("DATABASE_URL", cfg.DatabaseURL)
	cfg.Port = getEnv("PORT", cfg.Port)
	cfg.OutputDir = getEnv("OUTPUT_DIR", cfg.OutputDir)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the pipeline cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.MaxIterations < 1 {
		errs = append(errs, fmt.Errorf("max_iterations must be at least 1, got %d", c.MaxIterations))
	}
	if c.MinSourceScore < 0 || c.MinSourceScore > 1 {
		errs = append(errs, fmt.Errorf("min_source_score must be within [0, 1], got %v", c.MinSourceScore))
	}
	if c.EmbeddingDim < 1 {
		errs = append(errs, fmt.Errorf("embedding_dim must be positive, got %d", c.EmbeddingDim))
	}
	errs = append(errs,
		oneOf("llm_provider", c.LLMProvider, "google", "anthropic"),
		oneOf("embedding_provider", c.EmbeddingProvider, "google", "hash"),
		oneOf("search_provider", c.SearchProvider, "tavily", "arxiv"),
		oneOf("extractor", c.Extractor, "tavily", "http", "browser"),
	)
	return errors.Join(errs...)
}

// LLMApiKey returns the key for the configured LLM provider.
func (c *Config) LLMApiKey() string {
	if strings.EqualFold(c.LLMProvider, "anthropic") {
		return c.AnthropicApiKey
	}
	return c.GoogleApiKey
}

func oneOf(name, value string, allowed ...string) error {
	for _, a := range allowed {
		if strings.EqualFold(value, a) {
			return nil
		}
	}
	return fmt.Errorf("%s must be one of %s, got %q", name, strings.Join(allowed, ", "), value)
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
