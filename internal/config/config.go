package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// Server
	Host        string `json:"host"`
	Port        int    `json:"port"`
	Environment string `json:"environment"`
	APIPrefix   string `json:"api_prefix"`
	LogLevel    string `json:"log_level"`

	// CORS
	CORSOrigins []string `json:"cors_origins"`

	// Auth
	APIKeyHeader      string   `json:"api_key_header"`
	APIKeys           []string `json:"api_keys"`
	EnableAuth        bool     `json:"enable_auth"`
	SupabaseJWTSecret string   `json:"supabase_jwt_secret"`

	// Rate Limiting
	RateLimitPerMinute int    `json:"rate_limit_per_minute"`
	RedisURL           string `json:"redis_url"`

	// Database (Supabase Postgres)
	DatabaseURL     string `json:"database_url"`
	DBMaxOpenConns  int    `json:"db_max_open_conns"`
	DBMaxIdleConns  int    `json:"db_max_idle_conns"`
	AutoMigrate     bool   `json:"auto_migrate"`
	ReadOnlyRPCName string `json:"read_only_rpc_name"`

	// Credential encryption (64 hex chars)
	EncryptionKey string `json:"-"`

	// Query execution backend: "postgres" or "bigquery"
	ExecutorBackend              string `json:"executor_backend"`
	GCPProjectID                 string `json:"gcp_project_id"`
	GoogleApplicationCredentials string `json:"google_application_credentials"`
	BigQueryLocation             string `json:"bigquery_location"`
	MaxQueryBytesProcessed       int64  `json:"max_query_bytes_processed"`

	// Conversation log backend: "postgres" or "elasticsearch"
	ConversationBackend      string `json:"conversation_backend"`
	ElasticsearchAddress     string `json:"elasticsearch_address"`
	ElasticsearchUser        string `json:"elasticsearch_user"`
	ElasticsearchPassword    string `json:"elasticsearch_password"`
	ElasticsearchVerifyCerts bool   `json:"elasticsearch_verify_certs"`
	ElasticsearchMaxRetries  int    `json:"elasticsearch_max_retries"`
	ElasticsearchIndex       string `json:"elasticsearch_index"`

	// LLM
	ProviderBaseURLs map[string]string `json:"provider_base_urls"` // provider -> base URL override
	DefaultModels    map[string]string `json:"default_models"`     // provider -> model ID
	LLMTimeout       int               `json:"llm_timeout"`        // seconds, HTTP client bound

	// Pipeline
	PlanTimeout            int    `json:"plan_timeout"`    // seconds
	ExecTimeout            int    `json:"exec_timeout"`    // seconds
	SummaryTimeout         int    `json:"summary_timeout"` // seconds
	PersistTimeout         int    `json:"persist_timeout"` // seconds
	MaxResultRows          int    `json:"max_result_rows"`
	SummarySampleRows      int    `json:"summary_sample_rows"`
	SchemaCatalogFile      string `json:"schema_catalog_file"`
	LiveSchemaColumns      bool   `json:"live_schema_columns"`
	RequireTenantPredicate bool   `json:"require_tenant_predicate"`

	// Security
	EnableDataMasking  bool     `json:"enable_data_masking"`
	SensitiveColumns   []string `json:"sensitive_columns"`
	EnableAuditLogging bool     `json:"enable_audit_logging"`
}

func Load() (*Config, error) {
	cfg := &Config{
		Host:                     DefaultHost,
		Port:                     DefaultPort,
		Environment:              DefaultEnvironment,
		APIPrefix:                DefaultAPIPrefix,
		LogLevel:                 DefaultLogLevel,
		CORSOrigins:              DefaultCORSOrigins,
		APIKeyHeader:             "X-API-Key",
		EnableAuth:               true,
		RateLimitPerMinute:       DefaultRateLimitPerMinute,
		DBMaxOpenConns:           DefaultDBMaxOpenConns,
		DBMaxIdleConns:           DefaultDBMaxIdleConns,
		AutoMigrate:              true,
		ReadOnlyRPCName:          DefaultReadOnlyRPCName,
		ExecutorBackend:          BackendPostgres,
		BigQueryLocation:         DefaultBigQueryLocation,
		MaxQueryBytesProcessed:   DefaultMaxQueryBytesProcessed,
		ConversationBackend:      BackendPostgres,
		ElasticsearchVerifyCerts: true,
		ElasticsearchMaxRetries:  DefaultElasticsearchMaxRetries,
		ElasticsearchIndex:       DefaultElasticsearchIndex,
		ProviderBaseURLs:         make(map[string]string),
		DefaultModels:            make(map[string]string),
		LLMTimeout:               DefaultLLMTimeout,
		PlanTimeout:              DefaultPlanTimeout,
		ExecTimeout:              DefaultExecTimeout,
		SummaryTimeout:           DefaultSummaryTimeout,
		PersistTimeout:           DefaultPersistTimeout,
		MaxResultRows:            DefaultMaxResultRows,
		SummarySampleRows:        DefaultSummarySampleRows,
		LiveSchemaColumns:        true,
		RequireTenantPredicate:   true,
		EnableDataMasking:        true,
		SensitiveColumns:         DefaultSensitiveColumns,
		EnableAuditLogging:       true,
	}

	// Load from JSON config file if specified
	if path := getEnv("SEOINSIGHT_CONFIG", ""); path != "" {
		if err := loadJSON(path, cfg); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	// Environment overrides
	applyEnvOverrides(cfg)

	return cfg, nil
}

// Validate checks the settings the server cannot start without.
func (c *Config) Validate() error {
	if c.EncryptionKey == "" {
		return fmt.Errorf("CREDENTIAL_ENCRYPTION_KEY is required")
	}
	if len(c.EncryptionKey) != 64 {
		return fmt.Errorf("CREDENTIAL_ENCRYPTION_KEY must be 64 hex characters")
	}
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	switch c.ExecutorBackend {
	case BackendPostgres:
	case BackendBigQuery:
		if c.GCPProjectID == "" {
			return fmt.Errorf("GCP_PROJECT_ID is required for the bigquery executor")
		}
	default:
		return fmt.Errorf("unknown executor backend %q", c.ExecutorBackend)
	}
	switch c.ConversationBackend {
	case BackendPostgres:
	case BackendElasticsearch:
		if c.ElasticsearchAddress == "" {
			return fmt.Errorf("ELASTICSEARCH_ADDRESS is required for the elasticsearch conversation log")
		}
	default:
		return fmt.Errorf("unknown conversation backend %q", c.ConversationBackend)
	}
	return nil
}

func (c *Config) PlanTimeoutDuration() time.Duration    { return seconds(c.PlanTimeout) }
func (c *Config) ExecTimeoutDuration() time.Duration    { return seconds(c.ExecTimeout) }
func (c *Config) SummaryTimeoutDuration() time.Duration { return seconds(c.SummaryTimeout) }
func (c *Config) PersistTimeoutDuration() time.Duration { return seconds(c.PersistTimeout) }
func (c *Config) LLMTimeoutDuration() time.Duration     { return seconds(c.LLMTimeout) }

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

func loadJSON(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, cfg)
}

func applyEnvOverrides(cfg *Config) {
	if v := getEnv("SEOINSIGHT_HOST", ""); v != "" {
		cfg.Host = v
	}
	if v := getEnv("SEOINSIGHT_PORT", ""); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Port = p
		}
	}
	if v := getEnv("SEOINSIGHT_ENV", ""); v != "" {
		cfg.Environment = v
	}
	if v := getEnv("SEOINSIGHT_LOG_LEVEL", ""); v != "" {
		cfg.LogLevel = v
	}
	if v := getEnv("SEOINSIGHT_API_KEYS", ""); v != "" {
		cfg.APIKeys = strings.Split(v, ",")
	}
	if v := getEnv("SEOINSIGHT_CORS_ORIGINS", ""); v != "" {
		cfg.CORSOrigins = strings.Split(v, ",")
	}
	if v := getEnv("ENABLE_AUTH", ""); v != "" {
		cfg.EnableAuth = v == "true" || v == "1"
	}
	if v := getEnv("SUPABASE_JWT_SECRET", ""); v != "" {
		cfg.SupabaseJWTSecret = v
	}
	if v := getEnv("RATE_LIMIT_PER_MINUTE", ""); v != "" {
		if r, err := strconv.Atoi(v); err == nil {
			cfg.RateLimitPerMinute = r
		}
	}
	if v := getEnv("REDIS_URL", ""); v != "" {
		cfg.RedisURL = v
	}
	if v := getEnv("DATABASE_URL", ""); v != "" {
		cfg.DatabaseURL = v
	}
	if v := getEnv("AUTO_MIGRATE", ""); v != "" {
		cfg.AutoMigrate = v == "true" || v == "1"
	}
	if v := getEnv("CREDENTIAL_ENCRYPTION_KEY", ""); v != "" {
		cfg.EncryptionKey = strings.TrimSpace(v)
	}
	if v := getEnv("EXECUTOR_BACKEND", ""); v != "" {
		cfg.ExecutorBackend = v
	}
	if v := getEnv("GCP_PROJECT_ID", ""); v != "" {
		cfg.GCPProjectID = v
	}
	if v := getEnv("GOOGLE_APPLICATION_CREDENTIALS", ""); v != "" {
		cfg.GoogleApplicationCredentials = v
	}
	if v := getEnv("MAX_QUERY_BYTES_PROCESSED", ""); v != "" {
		if b, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.MaxQueryBytesProcessed = b
		}
	}
	if v := getEnv("CONVERSATION_BACKEND", ""); v != "" {
		cfg.ConversationBackend = v
	}
	if v := getEnv("ELASTICSEARCH_ADDRESS", ""); v != "" {
		cfg.ElasticsearchAddress = v
	}
	if v := getEnv("ELASTICSEARCH_USER", ""); v != "" {
		cfg.ElasticsearchUser = v
	}
	if v := getEnv("ELASTICSEARCH_PASSWORD", ""); v != "" {
		cfg.ElasticsearchPassword = v
	}
	if v := getEnv("SCHEMA_CATALOG_FILE", ""); v != "" {
		cfg.SchemaCatalogFile = v
	}
	if v := getEnv("REQUIRE_TENANT_PREDICATE", ""); v != "" {
		cfg.RequireTenantPredicate = v == "true" || v == "1"
	}
	if v := getEnv("PLAN_TIMEOUT", ""); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.PlanTimeout = n
		}
	}
	if v := getEnv("EXEC_TIMEOUT", ""); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.ExecTimeout = n
		}
	}
	if v := getEnv("SUMMARY_TIMEOUT", ""); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.SummaryTimeout = n
		}
	}
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}
