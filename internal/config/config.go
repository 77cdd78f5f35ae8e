// Package config provides configuration management for the news harvester.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"kornews/internal/normalizer"
)

// Store backends.
const (
	BackendAirtable = "airtable"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// Deduplication modes.
const (
	DedupBulk   = "bulk"
	DedupOnline = "online"
)

// Semantic field names used in the store field map.
const (
	FieldTitle              = "title"
	FieldCategory           = "category"
	FieldSummary            = "summary"
	FieldDate               = "date"
	FieldURL                = "url"
	FieldImageURL           = "image_url"
	FieldTitleTranslated    = "title_translated"
	FieldCategoryTranslated = "category_translated"
	FieldSummaryTranslated  = "summary_translated"
)

// Configuration validation errors.
var (
	ErrMissingOrigin            = errors.New("site.origin is required")
	ErrInvalidOrigin            = errors.New("site.origin must be an absolute http(s) URL")
	ErrMissingKeyword           = errors.New("site.keyword is required")
	ErrInvalidMaxPages          = errors.New("site.max_pages must be at least 1")
	ErrInvalidPageDelay         = errors.New("site.page_delay_ms must be non-negative")
	ErrMissingDateVariant       = errors.New("site.date_variant is required")
	ErrMissingItemSelector      = errors.New("site.selectors.item is required")
	ErrInvalidMaxAttempts       = errors.New("retry.max_attempts must be at least 1")
	ErrInvalidInitialDelay      = errors.New("retry.initial_delay_ms must be non-negative")
	ErrInvalidBackoffMultiplier = errors.New("retry.backoff_multiplier must be >= 1.0")
	ErrInvalidTimeout           = errors.New("retry.timeout_sec must be at least 1")
	ErrInvalidWorkers           = errors.New("workers must be at least 1")
	ErrMissingLanguages         = errors.New("translation.source_lang and translation.target_lang are required")
	ErrInvalidBackend           = errors.New("store.backend must be one of: airtable, postgres, memory")
	ErrInvalidDedupMode         = errors.New("store.dedup_mode must be 'bulk' or 'online'")
	ErrMissingAirtableTable     = errors.New("store.airtable.base_id and store.airtable.table_id are required")
	ErrMissingPostgresTable     = errors.New("store.postgres.table is required")
	ErrMissingField             = errors.New("store.fields entry is required")
	ErrInvalidLogLevel          = errors.New("logging.level must be one of: debug, info, warn, error")
	ErrInvalidLogFormat         = errors.New("logging.format must be 'text' or 'json'")
	ErrMissingSecret            = errors.New("required secret is not set")
)

// Config represents the complete harvester configuration.
type Config struct {
	Harvester HarvesterConfig `yaml:"harvester"`
	Schedule  ScheduleConfig  `yaml:"schedule"`
}

// HarvesterConfig contains pipeline settings.
type HarvesterConfig struct {
	Site        SiteConfig        `yaml:"site"`
	Store       StoreConfig       `yaml:"store"`
	Translation TranslationConfig `yaml:"translation"`
	Logging     LoggingConfig     `yaml:"logging"`
	Retry       RetryPolicy       `yaml:"retry"`
	Workers     int               `yaml:"workers"`
}

// SiteConfig describes the search endpoint and its markup contract.
type SiteConfig struct {
	Origin      string         `yaml:"origin"`
	SearchPath  string         `yaml:"search_path"`
	Keyword     string         `yaml:"keyword"`
	UserAgent   string         `yaml:"user_agent"`
	DateVariant string         `yaml:"date_variant"`
	Selectors   SelectorConfig `yaml:"selectors"`
	MaxPages    int            `yaml:"max_pages"`
	PageDelayMs int            `yaml:"page_delay_ms"`
	MaxBodyKb   int            `yaml:"max_body_kb"`
}

// SelectorConfig maps article fields to CSS selectors inside one item fragment.
type SelectorConfig struct {
	Item       string   `yaml:"item"`
	Title      string   `yaml:"title"`
	Link       string   `yaml:"link"`
	Image      string   `yaml:"image"`
	Category   string   `yaml:"category"`
	Summary    string   `yaml:"summary"`
	Date       string   `yaml:"date"`
	ImageAttrs []string `yaml:"image_attrs"`
}

// RetryPolicy defines retry behavior for connection-level fetch failures.
type RetryPolicy struct {
	MaxAttempts       int     `yaml:"max_attempts"`
	InitialDelayMs    int     `yaml:"initial_delay_ms"`
	MaxDelayMs        int     `yaml:"max_delay_ms"`
	BackoffMultiplier float64 `yaml:"backoff_multiplier"`
	TimeoutSec        int     `yaml:"timeout_sec"`
}

// TranslationConfig controls the optional enrichment stage.
type TranslationConfig struct {
	Endpoint          string  `yaml:"endpoint"`
	SourceLang        string  `yaml:"source_lang"`
	TargetLang        string  `yaml:"target_lang"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	TimeoutSec        int     `yaml:"timeout_sec"`
	Enabled           bool    `yaml:"enabled"`
}

// StoreConfig selects and configures the record store.
type StoreConfig struct {
	Fields    map[string]string `yaml:"fields"`
	Backend   string            `yaml:"backend"`
	DedupMode string            `yaml:"dedup_mode"`
	Airtable  AirtableConfig    `yaml:"airtable"`
	Postgres  PostgresConfig    `yaml:"postgres"`
}

// AirtableConfig configures the Airtable REST backend.
type AirtableConfig struct {
	Endpoint          string  `yaml:"endpoint"`
	BaseID            string  `yaml:"base_id"`
	TableID           string  `yaml:"table_id"`
	APIKeyEnv         string  `yaml:"api_key_env"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	TimeoutSec        int     `yaml:"timeout_sec"`
}

// PostgresConfig configures the PostgreSQL backend.
type PostgresConfig struct {
	DSNEnv   string `yaml:"dsn_env"`
	Table    string `yaml:"table"`
	MaxConns int    `yaml:"max_conns"`
}

// LoggingConfig defines logging behavior.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ScheduleConfig drives the long-running worker.
type ScheduleConfig struct {
	Cron       string `yaml:"cron"`
	RunOnStart bool   `yaml:"run_on_start"`
}

// RequiredFields lists the semantic names every store field map must define.
var RequiredFields = []string{
	FieldTitle,
	FieldCategory,
	FieldSummary,
	FieldDate,
	FieldURL,
	FieldImageURL,
	FieldTitleTranslated,
	FieldCategoryTranslated,
	FieldSummaryTranslated,
}

// LoadConfig loads configuration from YAML file.
// A .env file in the working directory, if present, is loaded into the environment first.
func LoadConfig(filepath string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(filepath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(data)
}

// Parse decodes YAML bytes over Default and validates the result.
// Keys absent from data keep their default; keys present keep their value, zero included.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// Default returns the configuration used for every key a file leaves out.
func Default() Config {
	return Config{
		Harvester: HarvesterConfig{
			Site: SiteConfig{
				SearchPath:  "/search",
				UserAgent:   "Mozilla/5.0",
				MaxPages:    3,
				PageDelayMs: 1000,
				MaxBodyKb:   4096,
				Selectors: SelectorConfig{
					Item:       "li.news_node",
					Title:      "h3.news_ttl",
					Link:       "a",
					Image:      ".thumb_area img",
					Category:   ".cate",
					Summary:    ".news_desc",
					Date:       ".time_area span",
					ImageAttrs: []string{"data-src", "src"},
				},
			},
			Retry: RetryPolicy{
				MaxAttempts:       2,
				InitialDelayMs:    500,
				MaxDelayMs:        5000,
				BackoffMultiplier: 2.0,
				TimeoutSec:        30,
			},
			Workers: 4,
			Translation: TranslationConfig{
				Endpoint:          "https://translate.googleapis.com/translate_a/single",
				SourceLang:        "ko",
				TargetLang:        "en",
				RequestsPerSecond: 5,
				TimeoutSec:        15,
			},
			Store: StoreConfig{
				Backend:   BackendAirtable,
				DedupMode: DedupBulk,
				Airtable: AirtableConfig{
					Endpoint:          "https://api.airtable.com/v0",
					APIKeyEnv:         "AIRTABLE_API_KEY",
					RequestsPerSecond: 5,
					TimeoutSec:        30,
				},
				Postgres: PostgresConfig{
					DSNEnv:   "DATABASE_URL",
					MaxConns: 4,
				},
			},
			Logging: LoggingConfig{
				Level:  "info",
				Format: "text",
			},
		},
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	h := &c.Harvester

	if err := h.Site.validate(); err != nil {
		return err
	}

	// Validate retry policy
	if h.Retry.MaxAttempts < 1 {
		return ErrInvalidMaxAttempts
	}

	if h.Retry.InitialDelayMs < 0 {
		return ErrInvalidInitialDelay
	}

	if h.Retry.BackoffMultiplier < 1.0 {
		return ErrInvalidBackoffMultiplier
	}

	if h.Retry.TimeoutSec < 1 {
		return ErrInvalidTimeout
	}

	if h.Workers < 1 {
		return ErrInvalidWorkers
	}

	if h.Translation.Enabled && (h.Translation.SourceLang == "" || h.Translation.TargetLang == "") {
		return ErrMissingLanguages
	}

	if err := h.Store.validate(); err != nil {
		return err
	}

	// Validate logging config
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[h.Logging.Level] {
		return ErrInvalidLogLevel
	}

	if h.Logging.Format != "text" && h.Logging.Format != "json" {
		return ErrInvalidLogFormat
	}

	return nil
}

func (s *SiteConfig) validate() error {
	if s.Origin == "" {
		return ErrMissingOrigin
	}

	u, err := url.Parse(s.Origin)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("%w: %q", ErrInvalidOrigin, s.Origin)
	}

	if s.Keyword == "" {
		return ErrMissingKeyword
	}

	if s.MaxPages < 1 {
		return ErrInvalidMaxPages
	}

	if s.PageDelayMs < 0 {
		return ErrInvalidPageDelay
	}

	if s.DateVariant == "" {
		return ErrMissingDateVariant
	}

	if _, err := normalizer.ParseVariant(s.DateVariant); err != nil {
		return fmt.Errorf("site.date_variant: %w", err)
	}

	if s.Selectors.Item == "" {
		return ErrMissingItemSelector
	}

	return nil
}

func (s *StoreConfig) validate() error {
	switch s.Backend {
	case BackendAirtable:
		if s.Airtable.BaseID == "" || s.Airtable.TableID == "" {
			return ErrMissingAirtableTable
		}
	case BackendPostgres:
		if s.Postgres.Table == "" {
			return ErrMissingPostgresTable
		}
	case BackendMemory:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidBackend, s.Backend)
	}

	if s.DedupMode != DedupBulk && s.DedupMode != DedupOnline {
		return fmt.Errorf("%w: %q", ErrInvalidDedupMode, s.DedupMode)
	}

	for _, name := range RequiredFields {
		if s.Fields[name] == "" {
			return fmt.Errorf("%w: %s", ErrMissingField, name)
		}
	}

	return nil
}

// GetRetryDelay calculates exponential backoff delay for attempt number.
func (rp *RetryPolicy) GetRetryDelay(attempt int) time.Duration {
	if attempt <= 1 {
		return 0
	}

	delayMs := float64(rp.InitialDelayMs)
	for i := 1; i < attempt; i++ {
		delayMs *= rp.BackoffMultiplier
	}

	// Cap at max delay
	if rp.MaxDelayMs > 0 && int(delayMs) > rp.MaxDelayMs {
		delayMs = float64(rp.MaxDelayMs)
	}

	return time.Duration(int(delayMs)) * time.Millisecond
}

// GetTimeout returns the timeout duration.
func (rp *RetryPolicy) GetTimeout() time.Duration {
	return time.Duration(rp.TimeoutSec) * time.Second
}

// PageDelay returns the politeness delay between page fetches.
func (s *SiteConfig) PageDelay() time.Duration {
	return time.Duration(s.PageDelayMs) * time.Millisecond
}

// FieldID returns the store field identifier for a semantic field name.
func (s *StoreConfig) FieldID(name string) string {
	return s.Fields[name]
}

// Secret reads a secret from the environment.
func Secret(envName string) (string, error) {
	v := os.Getenv(envName)
	if v == "" {
		return "", fmt.Errorf("%w: %s", ErrMissingSecret, envName)
	}

	return v, nil
}

// String returns a string representation of the config.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Origin: %s, Keyword: %s, MaxPages: %d, Backend: %s, Dedup: %s, Translation: %t}",
		c.Harvester.Site.Origin,
		c.Harvester.Site.Keyword,
		c.Harvester.Site.MaxPages,
		c.Harvester.Store.Backend,
		c.Harvester.Store.DedupMode,
		c.Harvester.Translation.Enabled,
	)
}
