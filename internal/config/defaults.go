package config

const (
	DefaultHost        = "0.0.0.0"
	DefaultPort        = 8000
	DefaultEnvironment = "development"
	DefaultAPIPrefix   = "/api/v1"
	DefaultLogLevel    = "info"

	DefaultRateLimitPerMinute = 30

	DefaultDBMaxOpenConns  = 20
	DefaultDBMaxIdleConns  = 5
	DefaultReadOnlyRPCName = "execute_readonly_query"

	BackendPostgres      = "postgres"
	BackendBigQuery      = "bigquery"
	BackendElasticsearch = "elasticsearch"

	DefaultBigQueryLocation       = "US"
	DefaultMaxQueryBytesProcessed = 10_000_000_000 // 10GB

	DefaultElasticsearchMaxRetries = 3
	DefaultElasticsearchIndex      = "chat-messages"

	DefaultLLMTimeout     = 60 // seconds
	DefaultPlanTimeout    = 45
	DefaultExecTimeout    = 30
	DefaultSummaryTimeout = 20
	DefaultPersistTimeout = 5

	DefaultMaxResultRows     = 1000
	DefaultSummarySampleRows = 20

	DefaultCORSMaxAge = 300
)

var DefaultCORSOrigins = []string{
	"http://localhost:3000",
	"http://localhost:8080",
}

var DefaultSensitiveColumns = []string{
	"email", "phone", "password", "secret", "token",
	"api_key", "access_key", "private_key",
}
