package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/streamforge/reelpipe/internal/api/handler"
	"github.com/streamforge/reelpipe/internal/api/middleware"
	"github.com/streamforge/reelpipe/internal/config"
	"github.com/streamforge/reelpipe/internal/domain/model"
	"github.com/streamforge/reelpipe/internal/domain/repository"
	"github.com/streamforge/reelpipe/internal/infrastructure/notify"
	"github.com/streamforge/reelpipe/internal/infrastructure/progress"
	"github.com/streamforge/reelpipe/internal/infrastructure/queue"
	"github.com/streamforge/reelpipe/internal/infrastructure/storage"
	"github.com/streamforge/reelpipe/internal/transcoder"
	"github.com/streamforge/reelpipe/internal/usecase"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Ensure staging base directory exists
	if err := os.MkdirAll(cfg.Worker.TempDir, 0755); err != nil {
		return fmt.Errorf("failed to create temp directory: %w", err)
	}

	// Initialize infrastructure clients
	storageClient, err := storage.NewClient(ctx, storage.ClientConfig{
		Endpoint:      cfg.MinIO.Endpoint,
		AccessKey:     cfg.MinIO.AccessKey,
		SecretKey:     cfg.MinIO.SecretKey,
		Bucket:        cfg.MinIO.Bucket,
		UseSSL:        cfg.MinIO.UseSSL,
		PublicBaseURL: cfg.MinIO.PublicBaseURL,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to MinIO: %w", err)
	}
	logger.Info("connected to MinIO")

	queueClient, err := queue.NewClient(ctx, queue.DefaultClientConfig(cfg.RabbitMQ.URL()))
	if err != nil {
		return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	defer queueClient.Close()
	logger.Info("connected to RabbitMQ")

	// Redis backs the upload-progress sink
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}
	logger.Info("connected to Redis")

	var notifier repository.StatusNotifier
	if cfg.Callback.URL != "" {
		notifier = notify.NewClient(cfg.Callback.URL, cfg.Callback.Timeout)
	} else {
		logger.Warn("no status callback configured, terminal outcomes will not be reported")
	}

	// Assemble the pipeline
	runner := transcoder.ExecRunner{}
	prober := transcoder.NewFFprobe(runner, cfg.FFmpeg.FFprobePath, cfg.FFmpeg.ProbeTimeout)

	engineCfg := transcoder.DefaultConfig()
	engineCfg.FFmpegPath = cfg.FFmpeg.FFmpegPath
	engineCfg.EncodeTimeout = cfg.FFmpeg.EncodeTimeout
	engine := transcoder.New(engineCfg, runner)

	fetcher := usecase.NewFetcher(usecase.FetcherConfig{
		Timeout:     cfg.Fetch.Timeout,
		MaxRetries:  cfg.Fetch.MaxRetries,
		BaseBackoff: cfg.Fetch.BaseBackoff,
		MaxBytes:    cfg.Fetch.MaxBytes,
	})

	progressSink := progress.NewSink(redisClient, cfg.Redis.ProgressTTL)
	publisher := usecase.NewPublisher(storageClient, progressSink, usecase.PublisherConfig{
		Workers:       cfg.Worker.UploadWorkers,
		UploadRetries: cfg.Worker.UploadRetries,
	})

	pipeline := usecase.NewPipeline(fetcher, prober, engine, publisher, notifier, usecase.PipelineConfig{
		TempDir:       cfg.Worker.TempDir,
		EncodeWorkers: cfg.Worker.EncodeWorkers,
	})

	// Ops listener: health, readiness, metrics
	opsServer := newOpsServer(cfg.Ops, logger, storageClient.Ping)
	go func() {
		logger.Info("ops listener started", slog.String("addr", cfg.Ops.Addr))
		if err := opsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("ops listener failed", slog.String("error", err.Error()))
		}
	}()

	// Setup signal handling for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	// WaitGroup to track in-flight jobs
	var wg sync.WaitGroup

	// Start consuming messages in a goroutine
	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting worker, consuming transcode jobs")
		err := queueClient.ConsumeJobs(ctx, func(task repository.TranscodeTask) error {
			wg.Add(1)
			defer wg.Done()

			if task.RetryCount >= cfg.Worker.MaxRetries {
				// Should not happen with the final-attempt handling below;
				// guards against messages from older producers.
				logger.Error("job exceeded max retries, dropping",
					slog.String("job_id", task.JobID),
					slog.Int("retry_count", task.RetryCount),
				)
				reportExhausted(ctx, notifier, logger, task.JobID)
				return nil
			}

			// The last allowed attempt is terminal: its failure is reported
			// and the task is not requeued.
			willRetry := task.RetryCount < cfg.Worker.MaxRetries-1

			logger.Info("processing job",
				slog.String("job_id", task.JobID),
				slog.Int("retry_count", task.RetryCount),
			)

			manifest, err := pipeline.RunTranscode(ctx, model.TranscodeJob{
				JobID:                task.JobID,
				SourceURL:            task.SourceURL,
				DestinationPrefix:    task.DestinationPrefix,
				ExistingThumbnailURL: task.ThumbnailURL,
				WillRetry:            willRetry,
			})
			if err != nil {
				logger.Error("job failed",
					slog.String("job_id", task.JobID),
					slog.String("stage", string(model.StageOf(err))),
					slog.String("class", string(model.ClassOf(err))),
					slog.Bool("will_retry", willRetry),
					slog.String("error", err.Error()),
				)
				if !willRetry {
					// Terminal failure was already reported; requeueing would
					// run the job again after its failed report.
					return nil
				}
				return err
			}

			logger.Info("job completed",
				slog.String("job_id", task.JobID),
				slog.String("master_manifest", manifest.MasterManifestURL),
				slog.Int("tiers", len(manifest.Tiers)),
			)
			return nil
		})
		if err != nil && ctx.Err() == nil {
			errCh <- fmt.Errorf("consumer error: %w", err)
		}
	}()

	// Wait for shutdown signal or error
	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		logger.Info("shutting down worker", slog.String("signal", sig.String()))
	}

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Worker.ShutdownTimeout)
	defer shutdownCancel()

	// Cancel the main context to stop consuming new messages
	cancel()

	// Wait for in-flight jobs to complete (or timeout)
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Info("all in-flight jobs completed")
	case <-shutdownCtx.Done():
		logger.Warn("shutdown timeout exceeded, some jobs may not have completed")
	}

	if err := opsServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("ops listener shutdown failed", slog.String("error", err.Error()))
	}

	logger.Info("worker stopped")
	return nil
}

// reportExhausted sends the terminal failed report for a task that arrived
// with its retry budget already spent, so the job still ends in exactly one
// status.
func reportExhausted(ctx context.Context, notifier repository.StatusNotifier, logger *slog.Logger, jobID string) {
	if notifier == nil {
		return
	}
	report := repository.StatusReport{
		JobID:        jobID,
		Status:       repository.StatusFailed,
		ErrorMessage: "retry budget exhausted",
		ErrorDetails: &repository.ErrorDetails{
			Code: string(model.FailureSystem),
		},
	}
	if err := notifier.Notify(context.WithoutCancel(ctx), report); err != nil {
		logger.Error("status notification failed",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
	}
}

// newOpsServer builds the operational HTTP listener.
func newOpsServer(cfg config.OpsConfig, logger *slog.Logger, ping func(ctx context.Context) error) *http.Server {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer(logger))
	r.Use(middleware.Logger(logger))

	r.Get("/healthz", handler.Health)
	r.Get("/readyz", handler.Ready(ping))
	r.Handle("/metrics", promhttp.Handler())

	return &http.Server{
		Addr:         cfg.Addr,
		Handler:      r,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
}
