package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

var ErrMissingRequired = errors.New("missing required configuration")

var ErrInvalidValue = errors.New("invalid configuration value")

type Config struct {
	DBHost string `envconfig:"DB_HOST" default:"postgres"`
	DBPort int    `envconfig:"DB_PORT" default:"5432"`
	DBUser string `envconfig:"DB_USER" default:"vectorproxy"`
	DBPass string `envconfig:"DB_PASS" default:"password"`
	DBName string `envconfig:"DB_NAME" default:"vectorproxy"`

	// Metadata store holding the datasource -> team mapping.
	MetadataBackend string `envconfig:"METADATA_BACKEND" default:"postgres"`
	MongoURI        string `envconfig:"MONGO_URI" default:"mongodb://mongo:27017"`
	MongoDatabase   string `envconfig:"MONGO_DATABASE" default:"test"`

	VectorBackend       string `envconfig:"VECTOR_BACKEND" default:"weaviate"`
	WeaviateHost        string `envconfig:"WEAVIATE_HOST" default:"localhost:8080"`
	WeaviateScheme      string `envconfig:"WEAVIATE_SCHEME" default:"http"`
	WeaviateClass       string `envconfig:"WEAVIATE_CLASS" default:"DocumentChunk"`
	PGVectorDSN         string `envconfig:"PGVECTOR_DSN"`
	EmbeddingDimensions int    `envconfig:"EMBEDDING_DIMENSIONS" default:"768"`

	EmbeddingProvider    string  `envconfig:"EMBEDDING_PROVIDER" default:"gemini"`
	GeminiAPIKey         string  `envconfig:"GEMINI_API_KEY"`
	GeminiEmbeddingModel string  `envconfig:"GEMINI_EMBEDDING_MODEL" default:"gemini-embedding-001"`
	OpenAIAPIKey         string  `envconfig:"OPENAI_API_KEY"`
	OpenAIEmbeddingModel string  `envconfig:"OPENAI_EMBEDDING_MODEL" default:"text-embedding-3-small"`
	OpenAIBaseURL        string  `envconfig:"OPENAI_BASE_URL"`
	EmbedRateLimit       float64 `envconfig:"EMBED_RATE_LIMIT" default:"0"` // requests per second, 0 = unlimited
	EmbedRateBurst       int     `envconfig:"EMBED_RATE_BURST" default:"1"`
	EmbedTimeoutSeconds  int     `envconfig:"EMBED_TIMEOUT_SECONDS" default:"120"`

	NSQLookupd     string `envconfig:"NSQ_LOOKUPD" default:"nsqlookupd:4161"`
	NSQDHost       string `envconfig:"NSQD_HOST" default:"nsqd:4150"`
	NSQDHTTP       string `envconfig:"NSQD_HTTP" default:"nsqd:4151"`
	NSQChannel     string `envconfig:"NSQ_CHANNEL" default:"vector-db-proxy"`
	NSQMaxInFlight int    `envconfig:"NSQ_MAX_IN_FLIGHT" default:"50"`

	QueueWorkers       int `envconfig:"QUEUE_WORKERS" default:"16"`
	QueueMaxDepth      int `envconfig:"QUEUE_MAX_DEPTH" default:"1000"`
	TaskHistoryLimit   int `envconfig:"TASK_HISTORY_LIMIT" default:"500"`
	TenantCacheSeconds int `envconfig:"TENANT_CACHE_TTL_SECONDS" default:"60"`

	// Server
	ServerPort    int    `envconfig:"SERVER_PORT" default:"9001"`
	MigrationPath string `envconfig:"MIGRATION_PATH" default:"file://migrations"`
	LogLevel      string `envconfig:"LOG_LEVEL" default:"info"`

	// Resilience
	BootstrapRetryAttempts     int `envconfig:"BOOTSTRAP_RETRY_ATTEMPTS" default:"10"`
	BootstrapRetryDelaySeconds int `envconfig:"BOOTSTRAP_RETRY_DELAY_SECONDS" default:"2"`
}

func Load() (*Config, error) {
	// Env vars set in the shell win over .env files.
	_ = godotenv.Load(".env")

	cwd, _ := os.Getwd()
	_ = godotenv.Load(filepath.Join(cwd, "../.env"))

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.DBHost == "" {
		return fmt.Errorf("%w: DB_HOST", ErrMissingRequired)
	}
	if c.DBUser == "" {
		return fmt.Errorf("%w: DB_USER", ErrMissingRequired)
	}
	if c.DBName == "" {
		return fmt.Errorf("%w: DB_NAME", ErrMissingRequired)
	}

	switch c.MetadataBackend {
	case MetadataPostgres:
	case MetadataMongo:
		if c.MongoURI == "" {
			return fmt.Errorf("%w: MONGO_URI", ErrMissingRequired)
		}
	default:
		return fmt.Errorf("%w: METADATA_BACKEND=%q", ErrInvalidValue, c.MetadataBackend)
	}

	switch c.VectorBackend {
	case VectorWeaviate:
	case VectorPGVector:
		if c.PGVectorDSN == "" {
			return fmt.Errorf("%w: PGVECTOR_DSN", ErrMissingRequired)
		}
		if c.EmbeddingDimensions <= 0 {
			return fmt.Errorf("%w: EMBEDDING_DIMENSIONS must be positive", ErrInvalidValue)
		}
	default:
		return fmt.Errorf("%w: VECTOR_BACKEND=%q", ErrInvalidValue, c.VectorBackend)
	}

	switch c.EmbeddingProvider {
	case ProviderGemini, ProviderOpenAI:
	default:
		return fmt.Errorf("%w: EMBEDDING_PROVIDER=%q", ErrInvalidValue, c.EmbeddingProvider)
	}

	if c.QueueWorkers < 1 {
		return fmt.Errorf("%w: QUEUE_WORKERS must be at least 1", ErrInvalidValue)
	}
	if c.QueueMaxDepth < 1 {
		return fmt.Errorf("%w: QUEUE_MAX_DEPTH must be at least 1", ErrInvalidValue)
	}
	return nil
}

// EmbedTimeout is the per-task deadline covering embedding and upsert.
func (c *Config) EmbedTimeout() time.Duration {
	if c.EmbedTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(c.EmbedTimeoutSeconds) * time.Second
}

func (c *Config) TenantCacheTTL() time.Duration {
	return time.Duration(c.TenantCacheSeconds) * time.Second
}

func (c *Config) PostgresDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		c.DBHost, c.DBPort, c.DBUser, c.DBPass, c.DBName)
}

const (
	MetadataPostgres = "postgres"
	MetadataMongo    = "mongo"

	VectorWeaviate = "weaviate"
	VectorPGVector = "pgvector"

	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)
