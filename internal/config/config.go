// Package config provides configuration loading and validation for the server
// and the one-shot CLI.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Defaults applied where neither the config file, environment, nor flags
// provide a value.
const (
	DefaultModel     = "gemini-2.5-flash"
	DefaultPort      = 8080
	DefaultScoreMin  = 0
	DefaultScoreMax  = 100
	DefaultRetention = time.Hour
)

// Config holds process-wide settings. Per-job knobs (workers, attempts, score
// bounds) act as defaults that each job request may override.
type Config struct {
	// Provider
	APIKeys []string `json:"api_keys,omitempty"` // Gemini API keys, rotated round-robin
	Model   string   `json:"model,omitempty"`    // Gemini model name

	// Job defaults
	ScoreMin           float64 `json:"score_min,omitempty"`
	ScoreMax           float64 `json:"score_max,omitempty"`
	EnableEvaluation   bool    `json:"enable_evaluation,omitempty"`
	MaxEvaluationWords int     `json:"max_evaluation_words,omitempty"`
	Workers            int     `json:"workers,omitempty"`
	MaxAttempts        int     `json:"max_attempts,omitempty"`

	// Server
	Port             int `json:"port,omitempty"`
	RetentionMinutes int `json:"retention_minutes,omitempty"` // finished-job eviction window
}

// LoadConfig loads configuration from a JSON file.
// Returns an error if the file cannot be read or parsed.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	return &cfg, nil
}

// FromEnv reads configuration from the environment. GEMINI_API_KEYS is a
// comma-separated list; a single GEMINI_API_KEY is accepted as a fallback.
func FromEnv() Config {
	cfg := Config{
		APIKeys:          splitKeys(os.Getenv("GEMINI_API_KEYS")),
		Model:            os.Getenv("AUTOSCORE_MODEL"),
		Workers:          envInt("AUTOSCORE_WORKERS"),
		MaxAttempts:      envInt("AUTOSCORE_MAX_ATTEMPTS"),
		Port:             envInt("AUTOSCORE_PORT"),
		RetentionMinutes: envInt("AUTOSCORE_RETENTION_MINUTES"),
	}
	if len(cfg.APIKeys) == 0 {
		cfg.APIKeys = splitKeys(os.Getenv("GEMINI_API_KEY"))
	}
	return cfg
}

// MergeWithDefaults returns a new Config with unset fields filled from
// defaults. Config file values win over environment values when both are set.
func (c *Config) MergeWithDefaults(defaults Config) Config {
	result := *c

	if len(result.APIKeys) == 0 {
		result.APIKeys = defaults.APIKeys
	}
	if result.Model == "" {
		result.Model = defaults.Model
	}
	if result.ScoreMin == 0 && result.ScoreMax == 0 {
		result.ScoreMin = defaults.ScoreMin
		result.ScoreMax = defaults.ScoreMax
	}
	if result.MaxEvaluationWords == 0 {
		result.MaxEvaluationWords = defaults.MaxEvaluationWords
	}
	if result.Workers == 0 {
		result.Workers = defaults.Workers
	}
	if result.MaxAttempts == 0 {
		result.MaxAttempts = defaults.MaxAttempts
	}
	if result.Port == 0 {
		result.Port = defaults.Port
	}
	if result.RetentionMinutes == 0 {
		result.RetentionMinutes = defaults.RetentionMinutes
	}

	// Bool fields: cannot distinguish unset from false, so we don't merge.

	return result
}

// Finalize fills remaining gaps with the built-in defaults.
func (c Config) Finalize() Config {
	if c.Model == "" {
		c.Model = DefaultModel
	}
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.ScoreMin == 0 && c.ScoreMax == 0 {
		c.ScoreMin = DefaultScoreMin
		c.ScoreMax = DefaultScoreMax
	}
	return c
}

// Validate checks that the configuration has valid values.
func (c *Config) Validate() error {
	if len(c.APIKeys) == 0 {
		return fmt.Errorf("config error: at least one Gemini API key is required (set GEMINI_API_KEYS)")
	}
	for _, key := range c.APIKeys {
		if strings.TrimSpace(key) == "" {
			return fmt.Errorf("config error: 'api_keys' contains an empty entry")
		}
	}
	if c.ScoreMin >= c.ScoreMax {
		return fmt.Errorf("config error: score range [%g,%g] is invalid: min must be less than max", c.ScoreMin, c.ScoreMax)
	}
	if c.Workers < 0 {
		return fmt.Errorf("config error: 'workers' must be non-negative")
	}
	if c.MaxAttempts < 0 {
		return fmt.Errorf("config error: 'max_attempts' must be non-negative")
	}
	if c.MaxEvaluationWords < 0 {
		return fmt.Errorf("config error: 'max_evaluation_words' must be non-negative")
	}
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("config error: 'port' must be in [0,65535]")
	}
	if c.RetentionMinutes < 0 {
		return fmt.Errorf("config error: 'retention_minutes' must be non-negative")
	}
	return nil
}

// Retention returns the finished-job retention window.
func (c Config) Retention() time.Duration {
	if c.RetentionMinutes <= 0 {
		return DefaultRetention
	}
	return time.Duration(c.RetentionMinutes) * time.Minute
}

func splitKeys(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	keys := make([]string, 0, len(parts))
	for _, p := range parts {
		if key := strings.TrimSpace(p); key != "" {
			keys = append(keys, key)
		}
	}
	return keys
}

func envInt(name string) int {
	raw := os.Getenv(name)
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return n
}
