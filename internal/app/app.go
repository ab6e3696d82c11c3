package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/nsqio/go-nsq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"vectorproxy/features/ingest"
	"vectorproxy/features/stats"
	"vectorproxy/features/task"
	"vectorproxy/internal/config"
	"vectorproxy/internal/embedding"
	"vectorproxy/internal/middleware"
	"vectorproxy/internal/pipeline"
	"vectorproxy/internal/queue"
	"vectorproxy/internal/worker"
)

type App struct {
	Handler    http.Handler
	Queue      *queue.Queue
	Dispatcher *queue.Dispatcher
	Consumer   *worker.MessageConsumer

	cfg *config.Config
}

func New(cfg *config.Config, deps *Dependencies) (*App, error) {
	// Pipeline
	coordinator := pipeline.NewCoordinator(embedding.NewPointEmbedder(deps.Embedder, deps.Dimensions), nil)
	processor := pipeline.NewProcessor(coordinator)

	// Feature: Task
	var pub task.EventPublisher
	if deps.NSQProducer != nil {
		pub = deps.NSQProducer
	}
	failedRepo := task.NewPostgresRepo(deps.DB)

	q, err := queue.New(processor, queue.Options{
		Workers:      cfg.QueueWorkers,
		MaxDepth:     cfg.QueueMaxDepth,
		HistoryLimit: cfg.TaskHistoryLimit,
		TaskTimeout:  cfg.EmbedTimeout(),
		Sink:         task.NewSink(failedRepo, pub),
	})
	if err != nil {
		return nil, fmt.Errorf("task queue error: %w", err)
	}

	dispatcher := &queue.Dispatcher{
		Queue:   q,
		Handles: pipeline.Handles{Vectors: deps.Vectors, Tenants: deps.Tenants},
	}

	taskService := task.NewService(failedRepo, pub, q, slog.Default())
	taskHandler := task.NewHandler(taskService)
	ingestHandler := ingest.NewHandler(dispatcher)
	statsHandler := stats.NewHandler(q, failedRepo)

	// Routes
	mux := http.NewServeMux()

	mux.Handle("POST /datasources/{id}/messages", middleware.CorrelationID(http.HandlerFunc(ingestHandler.Create)))

	mux.Handle("GET /tasks", middleware.CorrelationID(http.HandlerFunc(taskHandler.List)))
	mux.Handle("GET /tasks/failed", middleware.CorrelationID(http.HandlerFunc(taskHandler.ListFailed)))
	mux.Handle("GET /tasks/{id}", middleware.CorrelationID(http.HandlerFunc(taskHandler.Get)))
	mux.Handle("POST /tasks/failed/{id}/retry", middleware.CorrelationID(http.HandlerFunc(taskHandler.Retry)))

	mux.Handle("GET /stats", middleware.CorrelationID(http.HandlerFunc(statsHandler.GetStats)))
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	return &App{
		Handler:    mux,
		Queue:      q,
		Dispatcher: dispatcher,
		Consumer:   worker.NewMessageConsumer(dispatcher),
		cfg:        cfg,
	}, nil
}

// Run serves HTTP and consumes ingest messages until ctx ends, then drains
// the task queue.
func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.ServerPort),
		Handler:           a.Handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	nsqCfg := nsq.NewConfig()
	nsqCfg.MaxInFlight = a.cfg.NSQMaxInFlight
	consumer, err := nsq.NewConsumer(config.TopicIngestMessages, a.cfg.NSQChannel, nsqCfg)
	if err != nil {
		return fmt.Errorf("nsq consumer error: %w", err)
	}
	consumer.AddHandler(a.Consumer)
	if err := consumer.ConnectToNSQLookupd(a.cfg.NSQLookupd); err != nil {
		slog.Error("failed to connect to NSQLookupd", "error", err)
	} else {
		slog.Info("NSQ message consumer connected", "topic", config.TopicIngestMessages, "channel", a.cfg.NSQChannel)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("server starting", "port", a.cfg.ServerPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		consumer.Stop()
		select {
		case <-consumer.StopChan:
		case <-shutdownCtx.Done():
		}

		var errs []error
		if err := srv.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("server shutdown: %w", err))
		}
		if err := a.Queue.Close(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("queue close: %w", err))
		}
		return errors.Join(errs...)
	})

	return g.Wait()
}
