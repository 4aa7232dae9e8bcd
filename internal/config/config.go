// Package config loads service settings from defaults, an optional YAML file
// and the environment, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port string

	// Auth for inbound webhooks and API calls
	ServiceAPIKey string

	// Notion
	NotionAPIKey     string
	NotionBaseURL    string
	NotionVersion    string
	NotionTimeout    time.Duration
	NotionMaxRetries int

	// Conversion
	StartMarker      string
	BoldHeadingLevel int
	PreserveBold     bool

	// LLM restructure
	RestructureProvider  string
	OpenRouterAPIKey     string
	OpenRouterModel      string
	OpenRouterBaseURL    string
	AnthropicAPIKey      string
	AnthropicModel       string
	RestructureMaxTokens int
	RestructureTimeout   time.Duration

	// Download
	DriveBaseURL     string
	DriveTimeout     time.Duration
	MaxDownloadBytes int64

	// PDF
	PDFFallbackPdftotext bool

	// Worker pool
	WorkerCount  int
	MaxQueueSize int

	// Job state
	JobTTL     time.Duration
	LedgerPath string

	LogLevel  string
	LogFormat string
}

var defaults = map[string]any{
	"port":                   "8090",
	"notion_base_url":        "https://api.notion.com/v1",
	"notion_version":         "2022-06-28",
	"notion_timeout":         "30s",
	"notion_max_retries":     3,
	"start_marker":           "Abstract",
	"bold_heading_level":     2,
	"preserve_bold":          false,
	"restructure_provider":   "openrouter",
	"openrouter_model":       "google/gemini-2.0-flash-exp:free",
	"openrouter_base_url":    "https://openrouter.ai/api/v1/",
	"anthropic_model":        "claude-sonnet-4-5-20250929",
	"restructure_max_tokens": 200000,
	"restructure_timeout":    "180s",
	"drive_base_url":         "https://drive.google.com/uc",
	"drive_timeout":          "60s",
	"max_download_bytes":     52428800, // 50MB
	"pdf_fallback_pdftotext": true,
	"worker_count":           4,
	"max_queue_size":         100,
	"job_ttl":                "1h",
	"ledger_path":            "docblocks.db",
	"log_level":              "info",
	"log_format":             "json",
}

// Load reads configuration. file may be empty; a named file that cannot be
// read is an error. Environment variables use the upper-case key names
// (NOTION_API_KEY, WORKER_COUNT, ...). Invalid numbers fall back to the
// defaults.
func Load(file string) (Config, error) {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	for _, k := range []string{"service_api_key", "notion_api_key", "openrouter_api_key", "anthropic_api_key"} {
		v.SetDefault(k, "")
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	// LEDGER_PATH= turns the ledger off.
	v.AllowEmptyEnv(true)
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", file, err)
		}
	}

	cfg := Config{
		Port: v.GetString("port"),

		ServiceAPIKey: v.GetString("service_api_key"),

		NotionAPIKey:     v.GetString("notion_api_key"),
		NotionBaseURL:    v.GetString("notion_base_url"),
		NotionVersion:    v.GetString("notion_version"),
		NotionTimeout:    v.GetDuration("notion_timeout"),
		NotionMaxRetries: v.GetInt("notion_max_retries"),

		StartMarker:      v.GetString("start_marker"),
		BoldHeadingLevel: v.GetInt("bold_heading_level"),
		PreserveBold:     v.GetBool("preserve_bold"),

		RestructureProvider:  strings.ToLower(v.GetString("restructure_provider")),
		OpenRouterAPIKey:     v.GetString("openrouter_api_key"),
		OpenRouterModel:      v.GetString("openrouter_model"),
		OpenRouterBaseURL:    v.GetString("openrouter_base_url"),
		AnthropicAPIKey:      v.GetString("anthropic_api_key"),
		AnthropicModel:       v.GetString("anthropic_model"),
		RestructureMaxTokens: v.GetInt("restructure_max_tokens"),
		RestructureTimeout:   v.GetDuration("restructure_timeout"),

		DriveBaseURL:     v.GetString("drive_base_url"),
		DriveTimeout:     v.GetDuration("drive_timeout"),
		MaxDownloadBytes: v.GetInt64("max_download_bytes"),

		PDFFallbackPdftotext: v.GetBool("pdf_fallback_pdftotext"),

		WorkerCount:  v.GetInt("worker_count"),
		MaxQueueSize: v.GetInt("max_queue_size"),

		JobTTL:     v.GetDuration("job_ttl"),
		LedgerPath: v.GetString("ledger_path"),

		LogLevel:  strings.ToLower(v.GetString("log_level")),
		LogFormat: strings.ToLower(v.GetString("log_format")),
	}

	if cfg.Port == "" {
		cfg.Port = "8090"
	}
	if cfg.NotionTimeout <= 0 {
		cfg.NotionTimeout = 30 * time.Second
	}
	if cfg.NotionMaxRetries < 0 {
		cfg.NotionMaxRetries = 3
	}
	if cfg.StartMarker == "" {
		cfg.StartMarker = "Abstract"
	}
	if cfg.BoldHeadingLevel != 1 {
		cfg.BoldHeadingLevel = 2
	}
	if cfg.RestructureMaxTokens <= 0 {
		cfg.RestructureMaxTokens = 200000
	}
	if cfg.RestructureTimeout <= 0 {
		cfg.RestructureTimeout = 180 * time.Second
	}
	if cfg.DriveTimeout <= 0 {
		cfg.DriveTimeout = 60 * time.Second
	}
	if cfg.MaxDownloadBytes <= 0 {
		cfg.MaxDownloadBytes = 52428800
	}
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 4
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = 100
	}
	if cfg.JobTTL <= 0 {
		cfg.JobTTL = 1 * time.Hour
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = "json"
	}

	return cfg, nil
}

// Validate checks the settings the HTTP service cannot run without.
func (c Config) Validate() error {
	var errs []error
	if c.ServiceAPIKey == "" {
		errs = append(errs, errors.New("SERVICE_API_KEY is required"))
	}
	if c.NotionAPIKey == "" {
		errs = append(errs, errors.New("NOTION_API_KEY is required"))
	}
	switch c.RestructureProvider {
	case "none", "":
	case "openrouter":
		if c.OpenRouterAPIKey == "" {
			errs = append(errs, errors.New("OPENROUTER_API_KEY is required when RESTRUCTURE_PROVIDER=openrouter"))
		}
	case "anthropic":
		if c.AnthropicAPIKey == "" {
			errs = append(errs, errors.New("ANTHROPIC_API_KEY is required when RESTRUCTURE_PROVIDER=anthropic"))
		}
	default:
		errs = append(errs, fmt.Errorf("RESTRUCTURE_PROVIDER %q is not one of openrouter, anthropic, none", c.RestructureProvider))
	}
	switch c.LogFormat {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("LOG_FORMAT %q is not one of json, text", c.LogFormat))
	}
	return errors.Join(errs...)
}
