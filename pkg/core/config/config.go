// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/leseb/ragproxy/pkg/generation"
	"github.com/leseb/ragproxy/pkg/observability/logging"
	"github.com/leseb/ragproxy/pkg/ranking"
	"github.com/leseb/ragproxy/pkg/websearch"
)

// Disabled turns off an optional subsystem (search, journal, snapshot).
const Disabled = "none"

var (
	searchProviders    = []string{"startpage", "brave", "tavily", "searxng", Disabled}
	generationBackends = []string{"ollama", "openai"}
	journalTypes       = []string{"memory", "sqlite", "postgres", Disabled}
	snapshotTypes      = []string{"memory", "filesystem", "s3", Disabled}
	tlsProfiles        = []websearch.TLSProfile{
		websearch.ProfileGo, websearch.ProfileChrome,
		websearch.ProfileFirefox, websearch.ProfileSafari,
	}
)

// Config represents the main configuration
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Logging    logging.Config   `yaml:"logging"`
	Search     SearchConfig     `yaml:"search"`
	Ranking    RankingConfig    `yaml:"ranking"`
	Prompt     PromptConfig     `yaml:"prompt"`
	Generation GenerationConfig `yaml:"generation"`
	Journal    JournalConfig    `yaml:"journal"`
	Snapshot   SnapshotConfig   `yaml:"snapshot"`
	Metrics    MetricsConfig    `yaml:"metrics"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host    string        `yaml:"host"`
	Port    int           `yaml:"port"`
	Timeout time.Duration `yaml:"timeout"`
}

// SearchConfig selects and tunes the web search provider.
type SearchConfig struct {
	Provider   string         `yaml:"provider"` // "startpage" (default), "brave", "tavily", "searxng" or "none"
	URL        string         `yaml:"url"`
	APIKey     string         `yaml:"api_key"`
	Timeout    time.Duration  `yaml:"timeout"`
	MaxResults int            `yaml:"max_results"`
	UserAgents []string       `yaml:"user_agents"`
	TLSProfile string         `yaml:"tls_profile"` // "go", "chrome", "firefox" or "safari"
	RateLimit  float64        `yaml:"rate_limit"`  // searches per second, 0 disables
	Burst      int            `yaml:"burst"`
	Selectors  SelectorConfig `yaml:"selectors"`
}

// SelectorConfig overrides the CSS selectors used on HTML result pages.
type SelectorConfig struct {
	Result  string `yaml:"result"`
	Title   string `yaml:"title"`
	Snippet string `yaml:"snippet"`
}

// RankingConfig lists the domains whose results are preferred.
type RankingConfig struct {
	PreferredDomains []string `yaml:"preferred_domains"`
}

// PromptConfig customizes the augmented prompt.
type PromptConfig struct {
	System string `yaml:"system"`
}

// GenerationConfig selects the generation backend.
type GenerationConfig struct {
	Backend      string                   `yaml:"backend"` // "ollama" (default) or "openai"
	Endpoint     string                   `yaml:"endpoint"`
	APIKey       string                   `yaml:"api_key"`
	DefaultModel string                   `yaml:"default_model"`
	Stream       *bool                    `yaml:"stream"`
	Timeout      time.Duration            `yaml:"timeout"`
	Breaker      generation.BreakerConfig `yaml:"breaker"`
}

// JournalConfig contains request journal backend configuration
type JournalConfig struct {
	Type       string `yaml:"type"` // "memory" (default), "sqlite", "postgres" or "none"
	DSN        string `yaml:"dsn"`
	MaxRecords int    `yaml:"max_records"`
}

// SnapshotConfig contains search snapshot backend configuration
type SnapshotConfig struct {
	Type     string `yaml:"type"` // "none" (default), "memory", "filesystem" or "s3"
	BaseDir  string `yaml:"base_dir"`
	Bucket   string `yaml:"bucket"`
	Region   string `yaml:"region"`
	Prefix   string `yaml:"prefix"`
	Endpoint string `yaml:"endpoint"`
}

// MetricsConfig toggles the prometheus endpoint.
type MetricsConfig struct {
	Enabled *bool `yaml:"enabled"`
}

// Load loads configuration from a YAML file, then applies environment
// overrides and defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	applyEnv(&cfg)
	applyDefaults(&cfg)

	return &cfg, nil
}

// Default returns default configuration
func Default() *Config {
	var cfg Config
	applyEnv(&cfg)
	applyDefaults(&cfg)
	return &cfg
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("RAGPROXY_SEARCH_PROVIDER"); v != "" {
		cfg.Search.Provider = v
	}
	if v := os.Getenv("RAGPROXY_SEARCH_URL"); v != "" {
		cfg.Search.URL = v
	}
	if v := os.Getenv("RAGPROXY_SEARCH_API_KEY"); v != "" {
		cfg.Search.APIKey = v
	}
	if v := os.Getenv("RAGPROXY_PREFERRED_DOMAINS"); v != "" {
		cfg.Ranking.PreferredDomains = splitList(v)
	}

	// Generation env overrides
	if v := os.Getenv("RAGPROXY_GENERATION_BACKEND"); v != "" {
		cfg.Generation.Backend = v
	}
	if v := os.Getenv("OLLAMA_URL"); v != "" && (cfg.Generation.Backend == "" || cfg.Generation.Backend == "ollama") {
		cfg.Generation.Endpoint = v
	}
	if v := os.Getenv("OPENAI_API_ENDPOINT"); v != "" && cfg.Generation.Backend == "openai" {
		cfg.Generation.Endpoint = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" && cfg.Generation.Backend == "openai" {
		cfg.Generation.APIKey = v
	}

	if v := os.Getenv("RAGPROXY_JOURNAL_DSN"); v != "" {
		cfg.Journal.DSN = v
		if cfg.Journal.Type == "" || cfg.Journal.Type == "memory" {
			cfg.Journal.Type = "sqlite"
			if strings.HasPrefix(v, "postgres://") || strings.HasPrefix(v, "postgresql://") {
				cfg.Journal.Type = "postgres"
			}
		}
	}
	if v := os.Getenv("RAGPROXY_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 11435
	}
	if cfg.Server.Timeout == 0 {
		cfg.Server.Timeout = 120 * time.Second
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if cfg.Search.Provider == "" {
		cfg.Search.Provider = "startpage"
	}
	if cfg.Search.Timeout == 0 {
		cfg.Search.Timeout = websearch.DefaultTimeout
	}
	if cfg.Search.MaxResults == 0 {
		cfg.Search.MaxResults = websearch.MaxResults
	}
	if cfg.Search.TLSProfile == "" {
		cfg.Search.TLSProfile = string(websearch.ProfileGo)
	}
	if cfg.Search.RateLimit > 0 && cfg.Search.Burst == 0 {
		cfg.Search.Burst = 1
	}

	if cfg.Ranking.PreferredDomains == nil {
		cfg.Ranking.PreferredDomains = slices.Clone(ranking.DefaultDomains)
	}

	if cfg.Generation.Backend == "" {
		cfg.Generation.Backend = "ollama"
	}
	if cfg.Generation.Stream == nil {
		stream := true
		cfg.Generation.Stream = &stream
	}
	if cfg.Generation.Timeout == 0 {
		cfg.Generation.Timeout = generation.DefaultTimeout
	}

	if cfg.Journal.Type == "" {
		cfg.Journal.Type = "memory"
	}
	if cfg.Snapshot.Type == "" {
		cfg.Snapshot.Type = Disabled
	}
	if cfg.Metrics.Enabled == nil {
		enabled := true
		cfg.Metrics.Enabled = &enabled
	}
}

// Validate reports every invalid setting.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if c.Server.Timeout < 0 {
		errs = append(errs, fmt.Errorf("server.timeout must not be negative"))
	}

	if !slices.Contains(searchProviders, c.Search.Provider) {
		errs = append(errs, fmt.Errorf("search.provider %q unknown (available: %v)", c.Search.Provider, searchProviders))
	}
	if c.Search.Timeout < 0 {
		errs = append(errs, fmt.Errorf("search.timeout must not be negative"))
	}
	if c.Search.MaxResults < 1 || c.Search.MaxResults > websearch.MaxResults {
		errs = append(errs, fmt.Errorf("search.max_results must be between 1 and %d", websearch.MaxResults))
	}
	if !slices.Contains(tlsProfiles, websearch.TLSProfile(c.Search.TLSProfile)) {
		errs = append(errs, fmt.Errorf("search.tls_profile %q unknown", c.Search.TLSProfile))
	}
	if c.Search.RateLimit < 0 || c.Search.Burst < 0 {
		errs = append(errs, fmt.Errorf("search.rate_limit and search.burst must not be negative"))
	}
	if (c.Search.Provider == "brave" || c.Search.Provider == "tavily") && c.Search.APIKey == "" {
		errs = append(errs, fmt.Errorf("search.api_key is required for %s", c.Search.Provider))
	}
	if c.Search.Provider == "searxng" && c.Search.URL == "" {
		errs = append(errs, fmt.Errorf("search.url is required for searxng"))
	}

	if !slices.Contains(generationBackends, c.Generation.Backend) {
		errs = append(errs, fmt.Errorf("generation.backend %q unknown (available: %v)", c.Generation.Backend, generationBackends))
	}
	if c.Generation.Backend == "openai" && c.Generation.DefaultModel == "" {
		errs = append(errs, fmt.Errorf("generation.default_model is required for openai"))
	}
	if c.Generation.Timeout < 0 || c.Generation.Breaker.Timeout < 0 || c.Generation.Breaker.Interval < 0 {
		errs = append(errs, fmt.Errorf("generation timeouts must not be negative"))
	}

	if !slices.Contains(journalTypes, c.Journal.Type) {
		errs = append(errs, fmt.Errorf("journal.type %q unknown (available: %v)", c.Journal.Type, journalTypes))
	}
	if c.Journal.Type == "postgres" && c.Journal.DSN == "" {
		errs = append(errs, fmt.Errorf("journal.dsn is required for postgres"))
	}
	if c.Journal.MaxRecords < 0 {
		errs = append(errs, fmt.Errorf("journal.max_records must not be negative"))
	}

	if !slices.Contains(snapshotTypes, c.Snapshot.Type) {
		errs = append(errs, fmt.Errorf("snapshot.type %q unknown (available: %v)", c.Snapshot.Type, snapshotTypes))
	}
	if c.Snapshot.Type == "filesystem" && c.Snapshot.BaseDir == "" {
		errs = append(errs, fmt.Errorf("snapshot.base_dir is required for filesystem"))
	}
	if c.Snapshot.Type == "s3" && c.Snapshot.Bucket == "" {
		errs = append(errs, fmt.Errorf("snapshot.bucket is required for s3"))
	}

	return errors.Join(errs...)
}

// SearchParams returns the factory parameters for the search provider.
func (c *Config) SearchParams() map[string]string {
	s := c.Search
	params := map[string]string{
		"url":              s.URL,
		"api_key":          s.APIKey,
		"timeout":          s.Timeout.String(),
		"tls_profile":      s.TLSProfile,
		"user_agents":      strings.Join(s.UserAgents, "\n"),
		"result_selector":  s.Selectors.Result,
		"title_selector":   s.Selectors.Title,
		"snippet_selector": s.Selectors.Snippet,
	}
	return dropEmpty(params)
}

// GenerationParams returns the factory parameters for the generation backend.
func (c *Config) GenerationParams() map[string]string {
	return dropEmpty(map[string]string{
		"endpoint": c.Generation.Endpoint,
		"api_key":  c.Generation.APIKey,
	})
}

// JournalParams returns the factory parameters for the journal backend.
func (c *Config) JournalParams() map[string]string {
	params := map[string]string{"dsn": c.Journal.DSN}
	if c.Journal.MaxRecords > 0 {
		params["max_records"] = strconv.Itoa(c.Journal.MaxRecords)
	}
	return dropEmpty(params)
}

// SnapshotParams returns the factory parameters for the snapshot backend.
func (c *Config) SnapshotParams() map[string]string {
	s := c.Snapshot
	return dropEmpty(map[string]string{
		"base_dir": s.BaseDir,
		"bucket":   s.Bucket,
		"region":   s.Region,
		"prefix":   s.Prefix,
		"endpoint": s.Endpoint,
	})
}

// ClientConfig returns the generation client settings.
func (c *Config) ClientConfig() generation.ClientConfig {
	stream := true
	if c.Generation.Stream != nil {
		stream = *c.Generation.Stream
	}
	return generation.ClientConfig{
		DefaultModel: c.Generation.DefaultModel,
		Stream:       stream,
		Timeout:      c.Generation.Timeout,
		Breaker:      c.Generation.Breaker,
	}
}

// MetricsEnabled reports whether /metrics is served.
func (c *Config) MetricsEnabled() bool {
	return c.Metrics.Enabled == nil || *c.Metrics.Enabled
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func dropEmpty(params map[string]string) map[string]string {
	for k, v := range params {
		if v == "" {
			delete(params, k)
		}
	}
	return params
}
