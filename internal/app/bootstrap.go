package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	"github.com/nsqio/go-nsq"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"vectorproxy/internal/adapter/gemini"
	oaiadapter "vectorproxy/internal/adapter/openai"
	"vectorproxy/internal/adapter/pgvector"
	wstore "vectorproxy/internal/adapter/weaviate"
	"vectorproxy/internal/config"
	"vectorproxy/internal/embedding"
	"vectorproxy/internal/pipeline"
	"vectorproxy/internal/tenant"
	"vectorproxy/internal/vector"
)

// Dependencies are the long-lived handles the application lends to the
// pipeline. Bootstrap builds them; Close releases them.
type Dependencies struct {
	DB          *sql.DB
	Vectors     vector.Store
	Tenants     pipeline.TenantResolver
	Embedder    embedding.TextEmbedder
	NSQProducer *nsq.Producer

	// Dimensions is enforced on every embedding when positive.
	Dimensions int

	closers []func() error
}

func Bootstrap(ctx context.Context, cfg *config.Config) (*Dependencies, error) {
	deps := &Dependencies{}
	fail := func(err error) (*Dependencies, error) {
		if closeErr := deps.Close(); closeErr != nil {
			slog.Warn("failed to release dependencies", "error", closeErr)
		}
		return nil, err
	}
	retryDelay := time.Duration(cfg.BootstrapRetryDelaySeconds) * time.Second

	// Database
	db, err := OpenDB(ctx, cfg.PostgresDSN(), cfg.BootstrapRetryAttempts, retryDelay)
	if err != nil {
		return fail(err)
	}
	deps.DB = db
	deps.closers = append(deps.closers, db.Close)

	if err := Migrate(db, cfg.MigrationPath); err != nil {
		return fail(err)
	}

	// Tenant metadata
	lookup, err := deps.metadataLookup(ctx, cfg)
	if err != nil {
		return fail(err)
	}
	deps.Tenants = tenant.NewResolver(lookup, cfg.TenantCacheTTL())

	// Vector store
	if err := deps.vectorStore(ctx, cfg, retryDelay); err != nil {
		return fail(err)
	}

	// Embeddings
	if err := deps.embedder(ctx, cfg); err != nil {
		return fail(err)
	}

	// NSQ Producer
	producer, err := nsq.NewProducer(cfg.NSQDHost, nsq.NewConfig())
	if err != nil {
		return fail(fmt.Errorf("nsq producer error: %w", err))
	}
	deps.NSQProducer = producer
	deps.closers = append(deps.closers, func() error { producer.Stop(); return nil })

	createTopics(cfg.NSQDHTTP)

	return deps, nil
}

// OpenDB opens Postgres and pings it until it answers or attempts run out.
func OpenDB(ctx context.Context, dsn string, attempts int, delay time.Duration) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}

	err = WithRetry(ctx, attempts, delay, func(ctx context.Context) error {
		if err := db.PingContext(ctx); err != nil {
			slog.Warn("failed to ping db, retrying...", "error", err)
			return err
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}
	return db, nil
}

// Migrate applies every pending migration from path.
func Migrate(db *sql.DB, path string) error {
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("migration driver error: %w", err)
	}
	m, err := migrate.NewWithDatabaseInstance(path, "postgres", driver)
	if err != nil {
		return fmt.Errorf("migration instance error: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up error: %w", err)
	}
	return nil
}

func (d *Dependencies) metadataLookup(ctx context.Context, cfg *config.Config) (tenant.Lookup, error) {
	if cfg.MetadataBackend != config.MetadataMongo {
		return tenant.NewPostgresLookup(d.DB), nil
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return nil, fmt.Errorf("mongo connect error: %w", err)
	}
	d.closers = append(d.closers, func() error { return client.Disconnect(context.Background()) })

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		return nil, fmt.Errorf("mongo ping error: %w", err)
	}

	coll := client.Database(cfg.MongoDatabase).Collection(tenant.DatasourceCollection)
	return tenant.NewMongoLookup(coll), nil
}

func (d *Dependencies) vectorStore(ctx context.Context, cfg *config.Config, retryDelay time.Duration) error {
	if cfg.VectorBackend == config.VectorPGVector {
		store, err := pgvector.Open(ctx, cfg.PGVectorDSN, cfg.EmbeddingDimensions)
		if err != nil {
			return fmt.Errorf("pgvector error: %w", err)
		}
		d.Vectors = store
		d.Dimensions = cfg.EmbeddingDimensions
		d.closers = append(d.closers, func() error { store.Close(); return nil })
		return nil
	}

	client, err := weaviate.NewClient(weaviate.Config{Host: cfg.WeaviateHost, Scheme: cfg.WeaviateScheme})
	if err != nil {
		return fmt.Errorf("weaviate client error: %w", err)
	}
	schema := vector.NewWeaviateSchema(client)
	err = WithRetry(ctx, cfg.BootstrapRetryAttempts, retryDelay, func(ctx context.Context) error {
		return vector.EnsureSchema(ctx, schema, cfg.WeaviateClass)
	})
	if err != nil {
		return fmt.Errorf("weaviate schema error: %w", err)
	}
	d.Vectors = wstore.NewStore(client, cfg.WeaviateClass)
	return nil
}

func (d *Dependencies) embedder(ctx context.Context, cfg *config.Config) error {
	var base embedding.TextEmbedder
	switch cfg.EmbeddingProvider {
	case config.ProviderOpenAI:
		opts := []oaiadapter.Option{oaiadapter.WithTimeout(cfg.EmbedTimeout())}
		if cfg.OpenAIBaseURL != "" {
			opts = append(opts, oaiadapter.WithBaseURL(cfg.OpenAIBaseURL))
		}
		if d.Dimensions > 0 {
			opts = append(opts, oaiadapter.WithDimensions(d.Dimensions))
		}
		e, err := oaiadapter.NewEmbedder(cfg.OpenAIAPIKey, cfg.OpenAIEmbeddingModel, opts...)
		if err != nil {
			return fmt.Errorf("openai embedder error: %w", err)
		}
		base = e
	default:
		e, err := gemini.NewEmbedder(ctx, cfg.GeminiAPIKey, cfg.GeminiEmbeddingModel)
		if err != nil {
			return fmt.Errorf("gemini embedder error: %w", err)
		}
		d.closers = append(d.closers, e.Close)
		base = e
	}
	d.Embedder = embedding.NewRateLimited(base, cfg.EmbedRateLimit, cfg.EmbedRateBurst)
	return nil
}

// Close releases handles in reverse order of acquisition.
func (d *Dependencies) Close() error {
	var errs []error
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	d.closers = nil
	return errors.Join(errs...)
}

func createTopics(nsqdHTTP string) {
	create := func(topic string) {
		url := fmt.Sprintf("http://%s/topic/create?topic=%s", nsqdHTTP, topic)
		resp, err := http.Post(url, "application/json", nil) // #nosec G107 -- URL is built from internal NSQ config, not user input
		if err != nil {
			slog.Warn("failed to create NSQ topic", "topic", topic, "error", err)
			return
		}
		if closeErr := resp.Body.Close(); closeErr != nil {
			slog.Warn("failed to close NSQ topic creation response body", "error", closeErr)
		}
	}

	go func() {
		time.Sleep(2 * time.Second)
		create(config.TopicIngestMessages)
		create(config.TopicIngestFailed)
	}()
}

// WithRetry calls fn until it succeeds, attempts run out or ctx ends.
func WithRetry(ctx context.Context, attempts int, delay time.Duration, fn func(context.Context) error) error {
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if i < attempts-1 {
			select {
			case <-ctx.Done():
				return errors.Join(err, ctx.Err())
			case <-time.After(delay):
			}
		}
	}
	return err
}
