package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nsqio/go-nsq"
	"github.com/urfave/cli/v2"

	"vectorproxy/internal/app"
	"vectorproxy/internal/config"
	"vectorproxy/internal/logger"
	"vectorproxy/internal/observe"
	"vectorproxy/internal/worker"
)

var version = "dev"

func main() {
	if err := newApp().Run(os.Args); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "vector-db-proxy",
		Usage:   "Embed datasource message batches and upsert them into a tenant-scoped vector store",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				EnvVars: []string{"LOG_LEVEL"},
				Value:   "info",
			},
		},
		Before: setupLogger,
		Action: serveCommand,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API, the NSQ consumer and the task queue",
				Action: serveCommand,
			},
			{
				Name:   "migrate",
				Usage:  "Apply pending SQL migrations",
				Action: migrateCommand,
			},
			{
				Name:   "publish",
				Usage:  "Publish a JSON file as an ingest message for a datasource",
				Action: publishCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "datasource",
						Aliases:  []string{"d"},
						Usage:    "Datasource id the batch belongs to",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "file",
						Aliases:  []string{"f"},
						Usage:    "Path to a JSON object or array of objects",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "table",
						Usage: "Source table name recorded on every point",
					},
					&cli.StringFlag{
						Name:    "nsqd",
						Usage:   "nsqd TCP address",
						EnvVars: []string{"NSQD_HOST"},
						Value:   "localhost:4150",
					},
				},
			},
		},
	}
}

func setupLogger(c *cli.Context) error {
	slog.SetDefault(logger.New(os.Stdout, c.String("log-level")))
	return nil
}

func serveCommand(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	shutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceVersion: version})
	if err != nil {
		return fmt.Errorf("failed to init telemetry: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(flushCtx); err != nil {
			slog.Warn("telemetry shutdown failed", "error", err)
		}
	}()

	deps, err := app.Bootstrap(ctx, cfg)
	if err != nil {
		return fmt.Errorf("bootstrap failed: %w", err)
	}
	defer func() {
		if err := deps.Close(); err != nil {
			slog.Warn("failed to release dependencies", "error", err)
		}
	}()

	a, err := app.New(cfg, deps)
	if err != nil {
		return fmt.Errorf("failed to build app: %w", err)
	}
	return a.Run(ctx)
}

func migrateCommand(c *cli.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	db, err := app.OpenDB(c.Context, cfg.PostgresDSN(), cfg.BootstrapRetryAttempts, time.Duration(cfg.BootstrapRetryDelaySeconds)*time.Second)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := app.Migrate(db, cfg.MigrationPath); err != nil {
		return err
	}
	slog.Info("migrations applied successfully")
	return nil
}

func publishCommand(c *cli.Context) error {
	body, err := buildEnvelope(c.String("file"), c.String("datasource"), c.String("table"))
	if err != nil {
		return err
	}

	producer, err := nsq.NewProducer(c.String("nsqd"), nsq.NewConfig())
	if err != nil {
		return fmt.Errorf("nsq producer error: %w", err)
	}
	defer producer.Stop()

	if err := producer.Publish(config.TopicIngestMessages, body); err != nil {
		return fmt.Errorf("publish failed: %w", err)
	}
	slog.Info("message published", "topic", config.TopicIngestMessages, "datasource_id", c.String("datasource"), "bytes", len(body))
	return nil
}

func buildEnvelope(path, datasourceID, table string) ([]byte, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path is an operator-supplied CLI argument
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	env, err := worker.NewIngestMessage(datasourceID, table, data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(env)
}
