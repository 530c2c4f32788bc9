// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Server.Port != 11435 || cfg.Server.Host != "0.0.0.0" {
		t.Errorf("unexpected server defaults: %+v", cfg.Server)
	}
	if cfg.Search.Provider != "startpage" || cfg.Search.Timeout != 10*time.Second || cfg.Search.MaxResults != 6 {
		t.Errorf("unexpected search defaults: %+v", cfg.Search)
	}
	if cfg.Generation.Backend != "ollama" || !*cfg.Generation.Stream || cfg.Generation.Timeout != 60*time.Second {
		t.Errorf("unexpected generation defaults: %+v", cfg.Generation)
	}
	if cfg.Journal.Type != "memory" || cfg.Snapshot.Type != Disabled {
		t.Errorf("unexpected storage defaults: journal=%q snapshot=%q", cfg.Journal.Type, cfg.Snapshot.Type)
	}
	if !slices.Contains(cfg.Ranking.PreferredDomains, "wowhead.com") {
		t.Errorf("expected default preferred domains, got %v", cfg.Ranking.PreferredDomains)
	}
	if !cfg.MetricsEnabled() {
		t.Error("metrics should be enabled by default")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9000
logging:
  level: debug
  format: text
search:
  provider: searxng
  url: http://searx.local
  timeout: 5s
  max_results: 3
  user_agents:
    - agent-one
    - agent-two
  rate_limit: 2
ranking:
  preferred_domains: [icy-veins.com]
generation:
  backend: ollama
  endpoint: http://ollama:11434/api/generate
  default_model: llama3
  stream: false
  breaker:
    max_failures: 3
    timeout: 10s
journal:
  type: sqlite
  dsn: /tmp/journal.db
snapshot:
  type: filesystem
  base_dir: /tmp/snaps
metrics:
  enabled: false
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	if cfg.Server.Port != 9000 || cfg.Logging.Level != "debug" || cfg.Logging.Format != "text" {
		t.Errorf("unexpected server/logging: %+v %+v", cfg.Server, cfg.Logging)
	}
	if cfg.Search.Burst != 1 {
		t.Errorf("burst should default to 1 when rate limited, got %d", cfg.Search.Burst)
	}
	if !slices.Equal(cfg.Ranking.PreferredDomains, []string{"icy-veins.com"}) {
		t.Errorf("PreferredDomains = %v", cfg.Ranking.PreferredDomains)
	}
	if cfg.MetricsEnabled() {
		t.Error("metrics should be disabled")
	}

	cc := cfg.ClientConfig()
	if cc.Stream || cc.DefaultModel != "llama3" || cc.Breaker.MaxFailures != 3 || cc.Breaker.Timeout != 10*time.Second {
		t.Errorf("unexpected client config: %+v", cc)
	}

	sp := cfg.SearchParams()
	if sp["url"] != "http://searx.local" || sp["timeout"] != "5s" || sp["user_agents"] != "agent-one\nagent-two" {
		t.Errorf("unexpected search params: %v", sp)
	}
	if _, ok := sp["api_key"]; ok {
		t.Error("empty params should be dropped")
	}
	if got := cfg.JournalParams()["dsn"]; got != "/tmp/journal.db" {
		t.Errorf("journal dsn = %q", got)
	}
	if got := cfg.SnapshotParams()["base_dir"]; got != "/tmp/snaps" {
		t.Errorf("snapshot base_dir = %q", got)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	if _, err := Load(writeConfig(t, "server: [")); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("RAGPROXY_SEARCH_PROVIDER", "brave")
	t.Setenv("RAGPROXY_SEARCH_API_KEY", "brave-key")
	t.Setenv("RAGPROXY_PREFERRED_DOMAINS", " wowhead.com, ,raider.io ")
	t.Setenv("OLLAMA_URL", "http://gpu:11434/api/generate")
	t.Setenv("RAGPROXY_JOURNAL_DSN", "postgres://u:p@db/journal")
	t.Setenv("RAGPROXY_LOG_LEVEL", "warn")

	cfg := Default()
	if cfg.Search.Provider != "brave" || cfg.Search.APIKey != "brave-key" {
		t.Errorf("search overrides not applied: %+v", cfg.Search)
	}
	if !slices.Equal(cfg.Ranking.PreferredDomains, []string{"wowhead.com", "raider.io"}) {
		t.Errorf("PreferredDomains = %v", cfg.Ranking.PreferredDomains)
	}
	if cfg.Generation.Endpoint != "http://gpu:11434/api/generate" {
		t.Errorf("Endpoint = %q", cfg.Generation.Endpoint)
	}
	if cfg.Journal.Type != "postgres" || cfg.Journal.DSN != "postgres://u:p@db/journal" {
		t.Errorf("journal override not applied: %+v", cfg.Journal)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("Level = %q", cfg.Logging.Level)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestEnvOverrides_OpenAI(t *testing.T) {
	t.Setenv("RAGPROXY_GENERATION_BACKEND", "openai")
	t.Setenv("OPENAI_API_ENDPOINT", "http://vllm:8000/v1")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("OLLAMA_URL", "http://ignored")

	cfg := Default()
	if cfg.Generation.Endpoint != "http://vllm:8000/v1" || cfg.Generation.APIKey != "sk-test" {
		t.Errorf("openai overrides not applied: %+v", cfg.Generation)
	}
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "default_model") {
		t.Errorf("expected default_model error, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"bad port", func(c *Config) { c.Server.Port = 70000 }, "server.port"},
		{"unknown provider", func(c *Config) { c.Search.Provider = "bing" }, "search.provider"},
		{"too many results", func(c *Config) { c.Search.MaxResults = 7 }, "max_results"},
		{"unknown tls profile", func(c *Config) { c.Search.TLSProfile = "edge" }, "tls_profile"},
		{"tavily without key", func(c *Config) { c.Search.Provider = "tavily" }, "api_key"},
		{"searxng without url", func(c *Config) { c.Search.Provider = "searxng" }, "search.url"},
		{"unknown backend", func(c *Config) { c.Generation.Backend = "llamacpp" }, "generation.backend"},
		{"postgres without dsn", func(c *Config) { c.Journal.Type = "postgres" }, "journal.dsn"},
		{"unknown journal", func(c *Config) { c.Journal.Type = "redis" }, "journal.type"},
		{"filesystem without dir", func(c *Config) { c.Snapshot.Type = "filesystem" }, "base_dir"},
		{"s3 without bucket", func(c *Config) { c.Snapshot.Type = "s3" }, "bucket"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Validate() = %v, want error mentioning %q", err, tt.want)
			}
		})
	}
}
