package config_test

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"vectorproxy/internal/config"
)

func TestLoadConfig(t *testing.T) {
	os.Setenv("DB_HOST", "test-host")
	defer os.Unsetenv("DB_HOST")

	cfg, err := config.Load()
	assert.NoError(t, err)
	assert.Equal(t, "test-host", cfg.DBHost)
	assert.Equal(t, config.MetadataPostgres, cfg.MetadataBackend)
	assert.Equal(t, config.VectorWeaviate, cfg.VectorBackend)
}

func TestLoadConfig_FromEnvFile(t *testing.T) {
	content := []byte("DB_HOST=loaded-from-file")
	err := os.WriteFile(".env", content, 0o644)
	if err != nil {
		t.Fatal(err)
	}
	defer os.Remove(".env")

	cfg, err := config.Load()
	assert.NoError(t, err)
	assert.Equal(t, "loaded-from-file", cfg.DBHost)
}

func TestLoadConfig_QueueSettings(t *testing.T) {
	os.Setenv("QUEUE_WORKERS", "4")
	os.Setenv("QUEUE_MAX_DEPTH", "10")
	os.Setenv("EMBED_TIMEOUT_SECONDS", "30")
	defer os.Unsetenv("QUEUE_WORKERS")
	defer os.Unsetenv("QUEUE_MAX_DEPTH")
	defer os.Unsetenv("EMBED_TIMEOUT_SECONDS")

	cfg, err := config.Load()
	assert.NoError(t, err)
	assert.Equal(t, 4, cfg.QueueWorkers)
	assert.Equal(t, 10, cfg.QueueMaxDepth)
	assert.Equal(t, 30*time.Second, cfg.EmbedTimeout())
}

func TestLoadConfig_InvalidBackend(t *testing.T) {
	os.Setenv("VECTOR_BACKEND", "qdrant")
	defer os.Unsetenv("VECTOR_BACKEND")

	cfg, err := config.Load()
	assert.ErrorIs(t, err, config.ErrInvalidValue)
	assert.Nil(t, cfg)
}

func TestValidate(t *testing.T) {
	valid := func() *config.Config {
		return &config.Config{
			DBHost:            "h",
			DBUser:            "u",
			DBName:            "n",
			MetadataBackend:   config.MetadataPostgres,
			VectorBackend:     config.VectorWeaviate,
			EmbeddingProvider: config.ProviderGemini,
			QueueWorkers:      1,
			QueueMaxDepth:     1,
		}
	}

	tests := []struct {
		name   string
		mutate func(c *config.Config)
		want   error
	}{
		{"valid", func(c *config.Config) {}, nil},
		{"missing db host", func(c *config.Config) { c.DBHost = "" }, config.ErrMissingRequired},
		{"missing db user", func(c *config.Config) { c.DBUser = "" }, config.ErrMissingRequired},
		{"mongo without uri", func(c *config.Config) { c.MetadataBackend = config.MetadataMongo }, config.ErrMissingRequired},
		{"pgvector without dsn", func(c *config.Config) { c.VectorBackend = config.VectorPGVector }, config.ErrMissingRequired},
		{"pgvector zero dims", func(c *config.Config) {
			c.VectorBackend = config.VectorPGVector
			c.PGVectorDSN = "postgres://x"
		}, config.ErrInvalidValue},
		{"unknown provider", func(c *config.Config) { c.EmbeddingProvider = "cohere" }, config.ErrInvalidValue},
		{"zero workers", func(c *config.Config) { c.QueueWorkers = 0 }, config.ErrInvalidValue},
		{"zero depth", func(c *config.Config) { c.QueueMaxDepth = 0 }, config.ErrInvalidValue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			err := c.Validate()
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}
