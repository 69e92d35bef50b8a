package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/kirki-ai/kirki-backend/api/controllers"
	"github.com/kirki-ai/kirki-backend/api/routes"
	"github.com/kirki-ai/kirki-backend/internal/analysis"
	"github.com/kirki-ai/kirki-backend/internal/labeling"
	"github.com/kirki-ai/kirki-backend/internal/pipeline"
	"github.com/kirki-ai/kirki-backend/internal/recordings"
	"github.com/kirki-ai/kirki-backend/internal/rules"
	"github.com/kirki-ai/kirki-backend/internal/search"
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
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
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
	dispatcher.SetMetrics(pipelineMetrics)

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

	// Inline fallback runs the same pipeline inside the API process when
	// redis refuses the job.
	runner, err := pipeline.NewRunner(recordingsSvc, gcsClient, transcriptionSvc, analysisSvc, visualsSvc, pipelineMetrics, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create pipeline runner", err)
		os.Exit(1)
	}
	dispatcher.SetRunner(runner)
	if cfg.FeatureFlags.InlineQueue {
		logg.Warn(context.Background(), "inline queue enabled, jobs will run in-process")
		dispatcher.ForceInline(true)
	}

	rulesRepo := rules.NewRepository(dbClient.DB())
	rulesSvc, err := rules.NewService(rulesRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create rules service", err)
		os.Exit(1)
	}
	labelingEngine, err := labeling.NewEngine(rulesRepo, openaiClient, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create labeling engine", err)
		os.Exit(1)
	}
	labelingSvc, err := labeling.NewLabelingService(labelingEngine, recordingsRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create labeling service", err)
		os.Exit(1)
	}
	searchSvc, err := search.NewService(search.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(context.Background(), "failed to create search service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(cfg, logg, routes.Deps{
			Recordings: recordingsSvc,
			Rules:      rulesSvc,
			Labeling:   labelingSvc,
			Search:     searchSvc,
			Dispatcher: dispatcher,
			Readiness: map[string]controllers.Pinger{
				"database": dbClient,
				"redis":    redisClient,
				"gcs":      gcsClient,
			},
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
