package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/seoinsight/seoinsight/internal/config"
)

const validKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"SEOINSIGHT_CONFIG", "SEOINSIGHT_PORT", "SEOINSIGHT_API_KEYS", "DATABASE_URL",
		"CREDENTIAL_ENCRYPTION_KEY", "EXECUTOR_BACKEND", "CONVERSATION_BACKEND",
		"REQUIRE_TENANT_PREDICATE", "PLAN_TIMEOUT", "ENABLE_AUTH",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := config.Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Port != config.DefaultPort || cfg.APIPrefix != "/api/v1" {
		t.Errorf("server defaults = %d %q", cfg.Port, cfg.APIPrefix)
	}
	if cfg.ExecutorBackend != config.BackendPostgres || cfg.ConversationBackend != config.BackendPostgres {
		t.Errorf("backends = %q %q", cfg.ExecutorBackend, cfg.ConversationBackend)
	}
	if !cfg.RequireTenantPredicate || !cfg.EnableAuth {
		t.Error("tenant predicate and auth should default on")
	}
	if cfg.MaxResultRows != 1000 || cfg.SummarySampleRows != 20 {
		t.Errorf("limits = %d %d", cfg.MaxResultRows, cfg.SummarySampleRows)
	}
	if got := cfg.PlanTimeoutDuration(); got != 45*time.Second {
		t.Errorf("plan timeout = %v", got)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("SEOINSIGHT_PORT", "9090")
	t.Setenv("SEOINSIGHT_API_KEYS", "a,b")
	t.Setenv("CREDENTIAL_ENCRYPTION_KEY", "  "+validKey+"\n")
	t.Setenv("REQUIRE_TENANT_PREDICATE", "false")
	t.Setenv("PLAN_TIMEOUT", "10")

	cfg, err := config.Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Port != 9090 {
		t.Errorf("port = %d", cfg.Port)
	}
	if len(cfg.APIKeys) != 2 || cfg.APIKeys[1] != "b" {
		t.Errorf("api keys = %v", cfg.APIKeys)
	}
	if cfg.EncryptionKey != validKey {
		t.Errorf("encryption key was not trimmed")
	}
	if cfg.RequireTenantPredicate {
		t.Error("tenant predicate override ignored")
	}
	if cfg.PlanTimeoutDuration() != 10*time.Second {
		t.Errorf("plan timeout = %v", cfg.PlanTimeoutDuration())
	}
}

func TestLoadFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.json")
	body := `{"port": 7000, "conversation_backend": "elasticsearch", "default_models": {"groq": "llama-3.1-8b-instant"}}`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("SEOINSIGHT_CONFIG", path)
	t.Setenv("SEOINSIGHT_PORT", "7001")

	cfg, err := config.Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Port != 7001 {
		t.Errorf("env should win over file, port = %d", cfg.Port)
	}
	if cfg.ConversationBackend != config.BackendElasticsearch {
		t.Errorf("conversation backend = %q", cfg.ConversationBackend)
	}
	if cfg.DefaultModels["groq"] != "llama-3.1-8b-instant" {
		t.Errorf("default models = %v", cfg.DefaultModels)
	}
}

func TestLoadBadFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("SEOINSIGHT_CONFIG", filepath.Join(t.TempDir(), "missing.json"))
	if _, err := config.Load(); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestValidate(t *testing.T) {
	base := func(t *testing.T) *config.Config {
		t.Helper()
		clearEnv(t)
		cfg, err := config.Load()
		if err != nil {
			t.Fatal(err)
		}
		cfg.EncryptionKey = validKey
		cfg.DatabaseURL = "postgres://localhost/seoinsight"
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"valid", func(*config.Config) {}, ""},
		{"missing key", func(c *config.Config) { c.EncryptionKey = "" }, "CREDENTIAL_ENCRYPTION_KEY is required"},
		{"short key", func(c *config.Config) { c.EncryptionKey = "abcd" }, "64 hex characters"},
		{"missing dsn", func(c *config.Config) { c.DatabaseURL = "" }, "DATABASE_URL"},
		{"bigquery without project", func(c *config.Config) { c.ExecutorBackend = config.BackendBigQuery }, "GCP_PROJECT_ID"},
		{"bigquery with project", func(c *config.Config) {
			c.ExecutorBackend = config.BackendBigQuery
			c.GCPProjectID = "seo-prod"
		}, ""},
		{"unknown executor", func(c *config.Config) { c.ExecutorBackend = "duckdb" }, "unknown executor backend"},
		{"es without address", func(c *config.Config) { c.ConversationBackend = config.BackendElasticsearch }, "ELASTICSEARCH_ADDRESS"},
		{"unknown conversation log", func(c *config.Config) { c.ConversationBackend = "kafka" }, "unknown conversation backend"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base(t)
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.want == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("err = %v, want %q", err, tt.want)
			}
		})
	}
}
