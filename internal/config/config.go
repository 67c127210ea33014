// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ashureev/pcdoctor/internal/domain"
)

// Config holds all application configuration.
type Config struct {
	Host           string
	Port           string
	AllowedOrigins []string
	MaxIterations  int
	Analyzer       AnalyzerConfig
	Proposal       ProposalConfig
	Journal        JournalConfig
	RateLimit      RateLimitConfig
	HTTP           HTTPConfig
}

// AnalyzerConfig controls the LLM-backed analyzer.
type AnalyzerConfig struct {
	Provider    string
	Model       string
	APIKey      string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

// ProposalConfig controls command proposal normalization.
type ProposalConfig struct {
	DefaultTimeoutSeconds int
	MaxTimeoutSeconds     int
}

// JournalConfig controls the SQLite turn journal.
type JournalConfig struct {
	Enabled   bool
	DBPath    string
	Retention time.Duration
}

// RateLimitConfig controls per-client request throttling.
type RateLimitConfig struct {
	RequestsPerWindow int
	WindowDuration    time.Duration
}

// HTTPConfig controls request handling limits.
type HTTPConfig struct {
	MaxRequestBodySize int64
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	apiKey := getEnv("ANALYZER_API_KEY", "")
	if apiKey == "" {
		apiKey = getEnv("GEMINI_API_KEY", "")
	}

	cfg := &Config{
		Host:           getEnv("HOST", "127.0.0.1"),
		Port:           getEnv("PORT", "8000"),
		AllowedOrigins: getEnvList("ALLOWED_ORIGINS", []string{"*"}),
		MaxIterations:  getEnvInt("MAX_ITERATIONS", domain.DefaultMaxIterations),
		Analyzer: AnalyzerConfig{
			Provider:    getEnv("ANALYZER_PROVIDER", "openai"),
			Model:       getEnv("ANALYZER_MODEL", ""),
			APIKey:      apiKey,
			Temperature: getEnvFloat("ANALYZER_TEMPERATURE", 0.7),
			MaxTokens:   getEnvInt("ANALYZER_MAX_TOKENS", 2048),
			Timeout:     getEnvDuration("ANALYZER_TIMEOUT", 60*time.Second),
		},
		Proposal: ProposalConfig{
			DefaultTimeoutSeconds: getEnvInt("PROPOSAL_DEFAULT_TIMEOUT", 30),
			MaxTimeoutSeconds:     getEnvInt("PROPOSAL_MAX_TIMEOUT", 120),
		},
		Journal: JournalConfig{
			Enabled:   getEnvBool("JOURNAL_ENABLED", true),
			DBPath:    getEnv("DB_PATH", "./data/pcdoctor.db"),
			Retention: getEnvDuration("JOURNAL_RETENTION", 7*24*time.Hour),
		},
		RateLimit: RateLimitConfig{
			RequestsPerWindow: getEnvInt("RATE_LIMIT_REQUESTS", 30),
			WindowDuration:    getEnvDuration("RATE_LIMIT_WINDOW", time.Minute),
		},
		HTTP: HTTPConfig{
			MaxRequestBodySize: int64(getEnvInt("MAX_REQUEST_BODY_SIZE", 1<<20)),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.MaxIterations <= 0 {
		return fmt.Errorf("MAX_ITERATIONS must be > 0")
	}
	if c.Analyzer.Timeout <= 0 {
		return fmt.Errorf("ANALYZER_TIMEOUT must be > 0")
	}
	if c.Proposal.DefaultTimeoutSeconds <= 0 {
		return fmt.Errorf("PROPOSAL_DEFAULT_TIMEOUT must be > 0")
	}
	if c.Proposal.MaxTimeoutSeconds < c.Proposal.DefaultTimeoutSeconds {
		return fmt.Errorf("PROPOSAL_MAX_TIMEOUT must be >= PROPOSAL_DEFAULT_TIMEOUT")
	}
	if c.Journal.Enabled && c.Journal.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty when the journal is enabled")
	}
	if c.RateLimit.RequestsPerWindow <= 0 || c.RateLimit.WindowDuration <= 0 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS and RATE_LIMIT_WINDOW must be > 0")
	}
	if c.HTTP.MaxRequestBodySize <= 0 {
		return fmt.Errorf("MAX_REQUEST_BODY_SIZE must be > 0")
	}
	return nil
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return c.Host + ":" + c.Port
}

// AnalyzerEnabled reports whether an API key is available for the LLM analyzer.
func (c *Config) AnalyzerEnabled() bool {
	return c.Analyzer.APIKey != ""
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return f
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}

func getEnvList(key string, fallback []string) []string {
	value, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(value) == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
