package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kirki-ai/kirki-backend/internal/analysis"
	"github.com/kirki-ai/kirki-backend/internal/pipeline"
	"github.com/kirki-ai/kirki-backend/internal/recordings"
	"github.com/kirki-ai/kirki-backend/internal/transcription"
	"github.com/kirki-ai/kirki-backend/internal/visuals"
	"github.com/kirki-ai/kirki-backend/pkg/config"
	"github.com/kirki-ai/kirki-backend/pkg/db"
	"github.com/kirki-ai/kirki-backend/pkg/logger"
	"github.com/kirki-ai/kirki-backend/pkg/metrics"
	"github.com/kirki-ai/kirki-backend/pkg/migrate"
	"github.com/kirki-ai/kirki-backend/pkg/openai"
	"github.com/kirki-ai/kirki-backend/pkg/queue"
	"github.com/kirki-ai/kirki-backend/pkg/redis"
	"github.com/kirki-ai/kirki-backend/pkg/storage/gcs"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB.WorkerPool(), logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	gcsClient, err := gcs.NewClient(context.Background(), cfg.GCS, cfg.GCP, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap gcs", err)
		os.Exit(1)
	}

	openaiClient, err := openai.NewClient(cfg.OpenAI)
	if err != nil {
		logg.Error(context.Background(), "failed to create openai client", err)
		os.Exit(1)
	}

	pipelineMetrics := metrics.NewPipelineMetrics(prometheus.DefaultRegisterer)

	dispatcher, err := queue.NewDispatcher(redisClient, nil, cfg.Queue, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create job dispatcher", err)
		os.Exit(1)
	}

	recordingsRepo := recordings.NewRepository(dbClient.DB())
	recordingsSvc, err := recordings.NewService(recordingsRepo, gcsClient, dispatcher, cfg.Upload, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create recordings service", err)
		os.Exit(1)
	}
	transcriptionSvc, err := transcription.NewService(openaiClient, nil, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create transcription service", err)
		os.Exit(1)
	}
	analysisSvc, err := analysis.NewService(openaiClient, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create analysis service", err)
		os.Exit(1)
	}
	visualsSvc, err := visuals.NewService(openaiClient, gcsClient, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create visuals service", err)
		os.Exit(1)
	}
	runner, err := pipeline.NewRunner(recordingsSvc, gcsClient, transcriptionSvc, analysisSvc, visualsSvc, pipelineMetrics, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create pipeline runner", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithField(ctx, "env", cfg.App.Env)

	go serveMetrics(ctx, logg)

	concurrency := cfg.Queue.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	logg.Info(logg.WithField(ctx, "concurrency", concurrency), "starting pipeline worker")

	var wg sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			consume(ctx, dispatcher, runner, logg)
		}()
	}
	wg.Wait()

	logg.Info(ctx, "worker shutting down gracefully")
}

// consume pulls jobs until the context is cancelled. Each job gets its own
// timeout so one stuck recording cannot hold a worker slot forever.
func consume(ctx context.Context, dispatcher *queue.Dispatcher, runner *pipeline.Runner, logg *logger.Logger) {
	for {
		if ctx.Err() != nil {
			return
		}

		job, err := dispatcher.Dequeue(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			logg.Warn(logg.WithField(ctx, "error", err.Error()), "dequeue failed, retrying")
			continue
		}
		if job == nil {
			continue
		}

		jobCtx, cancel := context.WithTimeout(ctx, dispatcher.JobTimeout())
		runJob(jobCtx, dispatcher, runner, *job, logg)
		cancel()
	}
}

func runJob(ctx context.Context, dispatcher *queue.Dispatcher, runner *pipeline.Runner, job queue.Job, logg *logger.Logger) {
	ctx = logg.WithJobID(ctx, job.ID)
	ctx = logg.WithRecordingID(ctx, job.RecordingID)

	if err := dispatcher.MarkRunning(ctx, job); err != nil {
		logg.Warn(logg.WithField(ctx, "error", err.Error()), "could not mark job running")
	}

	if err := runner.Run(ctx, job); err != nil {
		logg.Error(ctx, "pipeline job failed", err)
		if markErr := dispatcher.MarkFailed(ctx, job, err); markErr != nil {
			logg.Warn(logg.WithField(ctx, "error", markErr.Error()), "could not mark job failed")
		}
		return
	}

	if err := dispatcher.MarkSucceeded(ctx, job); err != nil {
		logg.Warn(logg.WithField(ctx, "error", err.Error()), "could not mark job succeeded")
	}
	logg.Info(ctx, "pipeline job completed")
}

func serveMetrics(ctx context.Context, logg *logger.Logger) {
	addr := os.Getenv("METRICS_ADDR")
	if addr == "" {
		addr = ":9090"
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		_ = server.Close()
	}()

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "metrics server stopped unexpectedly", err)
	}
}
