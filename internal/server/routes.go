package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/seoinsight/seoinsight/internal/config"
	"github.com/seoinsight/seoinsight/internal/executor"
	"github.com/seoinsight/seoinsight/internal/handler"
	"github.com/seoinsight/seoinsight/internal/llm"
	"github.com/seoinsight/seoinsight/internal/metrics"
	"github.com/seoinsight/seoinsight/internal/middleware"
	"github.com/seoinsight/seoinsight/internal/pipeline"
	"github.com/seoinsight/seoinsight/internal/planner"
	"github.com/seoinsight/seoinsight/internal/security"
	"github.com/seoinsight/seoinsight/internal/store"
	"github.com/seoinsight/seoinsight/internal/summarizer"
	"github.com/seoinsight/seoinsight/internal/vault"
)

// Handlers groups what the router serves.
type Handlers struct {
	Chat     *handler.ChatHandler
	Settings *handler.SettingsHandler
	Health   *handler.HealthHandler
	Limiter  middleware.Limiter
}

// setupRoutes opens every backing service named by the config and returns
// the router. Opened resources are registered on s for shutdown.
func (s *Server) setupRoutes(ctx context.Context) (http.Handler, error) {
	cfg := s.cfg

	// ─── Credentials ────────────────────────────────────────────────────────────
	v, err := vault.New(cfg.EncryptionKey)
	if err != nil {
		return nil, err
	}

	// ─── Database ───────────────────────────────────────────────────────────────
	db, err := store.Open(ctx, store.Options{
		DSN:          cfg.DatabaseURL,
		MaxOpenConns: cfg.DBMaxOpenConns,
		MaxIdleConns: cfg.DBMaxIdleConns,
		AutoMigrate:  cfg.AutoMigrate,
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	s.closers = append(s.closers, namedCloser{"database", db.Close})
	pingers := map[string]handler.Pinger{"database": db}

	// ─── Planner ────────────────────────────────────────────────────────────────
	catalog := planner.DefaultCatalog()
	if cfg.SchemaCatalogFile != "" {
		if catalog, err = planner.LoadCatalog(cfg.SchemaCatalogFile); err != nil {
			return nil, fmt.Errorf("load schema catalog: %w", err)
		}
	}
	plannerOpts := planner.Options{
		Catalog: catalog,
		MaxRows: cfg.MaxResultRows,
		Timeout: cfg.PlanTimeoutDuration(),
	}
	if cfg.LiveSchemaColumns {
		plannerOpts.Columns = db
	}

	// ─── Executor ───────────────────────────────────────────────────────────────
	var exec executor.Executor
	switch cfg.ExecutorBackend {
	case config.BackendBigQuery:
		bq, err := executor.NewBigQuery(ctx, executor.BigQueryOptions{
			ProjectID:       cfg.GCPProjectID,
			CredentialsFile: cfg.GoogleApplicationCredentials,
			Location:        cfg.BigQueryLocation,
			Timeout:         cfg.ExecTimeoutDuration(),
			MaxRows:         cfg.MaxResultRows,
		}, security.NewCostTracker(cfg.MaxQueryBytesProcessed))
		if err != nil {
			return nil, fmt.Errorf("bigquery executor: %w", err)
		}
		s.closers = append(s.closers, namedCloser{"bigquery", bq.Close})
		pingers["bigquery"] = bq
		exec = bq
	default:
		pg, err := executor.NewPostgres(db.DB(), executor.PostgresOptions{
			Function: cfg.ReadOnlyRPCName,
			Timeout:  cfg.ExecTimeoutDuration(),
			MaxRows:  cfg.MaxResultRows,
		})
		if err != nil {
			return nil, fmt.Errorf("postgres executor: %w", err)
		}
		exec = pg
	}

	// ─── Conversation log ───────────────────────────────────────────────────────
	var conversations pipeline.ConversationStore = db
	if cfg.ConversationBackend == config.BackendElasticsearch {
		es, err := store.NewElasticConversations(store.ElasticOptions{
			Address:     cfg.ElasticsearchAddress,
			User:        cfg.ElasticsearchUser,
			Password:    cfg.ElasticsearchPassword,
			VerifyCerts: cfg.ElasticsearchVerifyCerts,
			MaxRetries:  cfg.ElasticsearchMaxRetries,
			Index:       cfg.ElasticsearchIndex,
		})
		if err != nil {
			return nil, fmt.Errorf("elasticsearch conversation log: %w", err)
		}
		pingers["elasticsearch"] = es
		conversations = es
	}

	// ─── Pipeline ───────────────────────────────────────────────────────────────
	var masker *security.DataMasker
	if cfg.EnableDataMasking {
		masker = security.NewDataMasker(cfg.SensitiveColumns)
	}

	p := pipeline.New(pipeline.Deps{
		Vault: v,
		Registry: llm.NewRegistry(llm.Options{
			BaseURLs: cfg.ProviderBaseURLs,
			Models:   cfg.DefaultModels,
			Timeout:  cfg.LLMTimeoutDuration(),
		}),
		Credentials:    db,
		Conversations:  conversations,
		Planner:        planner.New(plannerOpts),
		Guard:          security.NewSQLGuard(cfg.RequireTenantPredicate),
		Executor:       exec,
		Summarizer:     summarizer.New(summarizer.Options{SampleRows: cfg.SummarySampleRows, Timeout: cfg.SummaryTimeoutDuration()}),
		Prompts:        security.NewPromptValidator(),
		Masker:         masker,
		Audit:          security.NewAuditLogger(cfg.EnableAuditLogging),
		Metrics:        metrics.Global(),
		PersistTimeout: cfg.PersistTimeoutDuration(),
	})

	// ─── Rate limiting ──────────────────────────────────────────────────────────
	var limiter middleware.Limiter
	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parse REDIS_URL: %w", err)
		}
		rdb := redis.NewClient(opt)
		s.closers = append(s.closers, namedCloser{"redis", rdb.Close})
		limiter = middleware.NewRedisLimiter(rdb, cfg.RateLimitPerMinute)
	} else {
		limiter = middleware.NewMemoryLimiter(cfg.RateLimitPerMinute)
	}

	log.Info().
		Str("executor", cfg.ExecutorBackend).
		Str("conversation_log", cfg.ConversationBackend).
		Bool("auth_enabled", authEnabled(cfg)).
		Bool("jwt_enabled", cfg.SupabaseJWTSecret != "").
		Bool("redis_rate_limit", cfg.RedisURL != "").
		Bool("data_masking", cfg.EnableDataMasking).
		Bool("audit_logging", cfg.EnableAuditLogging).
		Bool("tenant_predicate", cfg.RequireTenantPredicate).
		Msg("service configuration")

	if cfg.EnableAuth && len(cfg.APIKeys) == 0 && cfg.SupabaseJWTSecret == "" {
		log.Warn().Msg("WARNING: auth enabled but no API keys or JWT secret configured - all API requests will be rejected")
	}

	return NewRouter(cfg, Handlers{
		Chat:     handler.NewChatHandler(p),
		Settings: handler.NewSettingsHandler(p),
		Health:   handler.NewHealthHandler(pingers),
		Limiter:  limiter,
	}), nil
}

func authEnabled(cfg *config.Config) bool {
	return cfg.EnableAuth || cfg.SupabaseJWTSecret != ""
}

// NewRouter mounts the public and authenticated routes.
func NewRouter(cfg *config.Config, h Handlers) http.Handler {
	r := chi.NewRouter()

	// Core middleware
	r.Use(middleware.Recovery)
	r.Use(middleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(middleware.Logging)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.CORS(middleware.DefaultCORSConfig(cfg.CORSOrigins, config.DefaultCORSMaxAge)))

	// Public routes
	r.Get("/health", h.Health.Health)
	r.Get("/", h.Health.Health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route(cfg.APIPrefix, func(r chi.Router) {
		// Auth runs first so the limiter can key on the session subject.
		if authEnabled(cfg) {
			r.Use(middleware.Auth(middleware.AuthConfig{
				APIKeys:    cfg.APIKeys,
				HeaderName: cfg.APIKeyHeader,
				JWTSecret:  cfg.SupabaseJWTSecret,
			}))
		}
		if h.Limiter != nil {
			r.Use(middleware.RateLimit(h.Limiter, cfg.RateLimitPerMinute))
		}

		r.Post("/chat", h.Chat.Chat)
		r.Post("/settings/ai", h.Settings.SaveAI)
	})

	return r
}
