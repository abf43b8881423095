// Package config handles configuration loading and validation.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Alignment policies for query and completion streams of different lengths.
const (
	AlignStrict   = "strict"
	AlignTruncate = "truncate"
)

// Config holds all application configuration.
type Config struct {
	// Evaluation configuration
	Eval EvalConfig `yaml:"eval"`

	// Logging configuration
	Log LogConfig `yaml:"log"`

	// Bus configuration
	Bus BusConfig `yaml:"bus"`

	// History configuration
	History HistoryConfig `yaml:"history"`

	// Data preparation configuration
	Prep PrepConfig `yaml:"prep"`
}

// EvalConfig holds rank metric evaluation settings.
type EvalConfig struct {
	TopK             int           `envconfig:"QAC_TOP_K" yaml:"top_k"`
	Alignment        string        `envconfig:"QAC_ALIGNMENT" yaml:"alignment"`
	ProgressInterval time.Duration `envconfig:"QAC_PROGRESS_INTERVAL" yaml:"progress_interval"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `envconfig:"QAC_LOG_LEVEL" yaml:"level"`
	Format string `envconfig:"QAC_LOG_FORMAT" yaml:"format"`
}

// BusConfig holds event bus settings.
type BusConfig struct {
	Type         string `envconfig:"QAC_BUS_TYPE" yaml:"type"`
	KafkaBrokers string `envconfig:"QAC_KAFKA_BROKERS" yaml:"kafka_brokers"`
	KafkaGroup   string `envconfig:"QAC_KAFKA_GROUP" yaml:"kafka_group"`
	Topic        string `envconfig:"QAC_BUS_TOPIC" yaml:"topic"`
	EventLog     string `envconfig:"QAC_EVENT_LOG" yaml:"event_log"` // JSONL copy of published events
}

// HistoryConfig holds run history settings.
type HistoryConfig struct {
	RedisURL string        `envconfig:"QAC_REDIS_URL" yaml:"redis_url"`
	TTL      time.Duration `envconfig:"QAC_HISTORY_TTL" yaml:"ttl"` // 0 = no expiry
	Limit    int           `envconfig:"QAC_HISTORY_LIMIT" yaml:"limit"`
}

// PrepConfig holds data preparation settings.
type PrepConfig struct {
	Seed         int64   `envconfig:"QAC_SEED" yaml:"seed"`
	Valid        float64 `envconfig:"QAC_VALID_RATIO" yaml:"valid"`
	Test         float64 `envconfig:"QAC_TEST_RATIO" yaml:"test"`
	MinPrefixLen int     `envconfig:"QAC_MIN_PREFIX_LEN" yaml:"min_prefix_len"`
	MinSuffixLen int     `envconfig:"QAC_MIN_SUFFIX_LEN" yaml:"min_suffix_len"`
}

// Load loads configuration from environment variables and optional config file.
func Load(configPath string) (*Config, error) {
	// Set defaults first
	cfg := Default()

	// Load from YAML file if provided (overrides defaults)
	if configPath != "" {
		if err := loadFromFile(cfg, configPath); err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
	}

	// Override with environment variables (highest priority)
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("processing env config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables only.
func LoadFromEnv() (*Config, error) {
	return Load("")
}

func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	return yaml.Unmarshal(data, cfg)
}

// Default returns a configuration populated with defaults only.
func Default() *Config {
	cfg := &Config{}
	setDefaults(cfg)
	return cfg
}

func setDefaults(cfg *Config) {
	cfg.Eval = EvalConfig{
		TopK:             10,
		Alignment:        AlignStrict,
		ProgressInterval: 5 * time.Second,
	}

	cfg.Log = LogConfig{
		Level:  "info",
		Format: "text",
	}

	cfg.Bus = BusConfig{
		Type:       "none",
		KafkaGroup: "qac-eval",
		Topic:      "eval.completed",
	}

	cfg.History = HistoryConfig{
		RedisURL: "redis://localhost:6379",
		TTL:      30 * 24 * time.Hour,
		Limit:    20,
	}

	cfg.Prep = PrepConfig{
		Seed:         42,
		Valid:        0.1,
		Test:         0.1,
		MinPrefixLen: 2,
		MinSuffixLen: 1,
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	var errs []string

	// Eval validation
	if c.Eval.TopK < 1 {
		errs = append(errs, "top_k must be positive")
	}

	validAlignments := map[string]bool{AlignStrict: true, AlignTruncate: true}
	if !validAlignments[c.Eval.Alignment] {
		errs = append(errs, fmt.Sprintf("invalid alignment: %s (must be strict or truncate)", c.Eval.Alignment))
	}

	if c.Eval.ProgressInterval < 0 {
		errs = append(errs, "progress_interval must not be negative")
	}

	// Log validation
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Log.Level] {
		errs = append(errs, fmt.Sprintf("invalid log level: %s (must be debug, info, warn, or error)", c.Log.Level))
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[c.Log.Format] {
		errs = append(errs, fmt.Sprintf("invalid log format: %s (must be text or json)", c.Log.Format))
	}

	// Bus validation
	validBusTypes := map[string]bool{"none": true, "memory": true, "kafka": true}
	if !validBusTypes[c.Bus.Type] {
		errs = append(errs, fmt.Sprintf("invalid bus type: %s (must be none, memory, or kafka)", c.Bus.Type))
	}

	if c.Bus.Type == "kafka" && strings.TrimSpace(c.Bus.KafkaBrokers) == "" {
		errs = append(errs, "kafka_brokers is required for kafka bus")
	}

	if c.Bus.Topic == "" {
		errs = append(errs, "bus topic must not be empty")
	}

	// History validation
	if c.History.TTL < 0 {
		errs = append(errs, "history ttl must not be negative")
	}

	if c.History.Limit < 1 {
		errs = append(errs, "history limit must be positive")
	}

	// Prep validation
	if c.Prep.Valid < 0 || c.Prep.Valid >= 1 {
		errs = append(errs, "valid ratio must be in [0, 1)")
	}

	if c.Prep.Test < 0 || c.Prep.Test >= 1 {
		errs = append(errs, "test ratio must be in [0, 1)")
	}

	if c.Prep.Valid+c.Prep.Test >= 1 {
		errs = append(errs, "valid + test ratio must be below 1")
	}

	if c.Prep.MinPrefixLen < 0 || c.Prep.MinSuffixLen < 0 {
		errs = append(errs, "min_prefix_len and min_suffix_len must not be negative")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}
