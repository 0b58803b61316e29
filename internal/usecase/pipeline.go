package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/streamforge/reelpipe/internal/domain/model"
	"github.com/streamforge/reelpipe/internal/domain/repository"
	"github.com/streamforge/reelpipe/internal/infrastructure/metrics"
	"github.com/streamforge/reelpipe/internal/transcoder"
)

// PipelineConfig holds configuration for the transcode pipeline.
type PipelineConfig struct {
	// TempDir is the base directory for per-job staging workspaces.
	TempDir string
	// EncodeWorkers bounds concurrent tier encodes; the encoder is CPU-bound
	// and multi-threaded internally, so this stays small.
	EncodeWorkers int
	// Ladder is the quality tier table; defaults to the compiled-in ladder.
	Ladder []transcoder.TierSpec
}

// DefaultPipelineConfig returns production defaults.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		TempDir:       os.TempDir(),
		EncodeWorkers: 2,
		Ladder:        transcoder.DefaultTierLadder(),
	}
}

// Pipeline turns one uploaded source video into a published adaptive
// streaming package: thumbnail, muted preview, per-tier segmented streams and
// a master manifest, all durably stored under the job's destination prefix.
type Pipeline struct {
	fetcher   *Fetcher
	prober    transcoder.Prober
	engine    transcoder.Engine
	publisher *Publisher
	notifier  repository.StatusNotifier // optional

	config PipelineConfig
}

// NewPipeline creates a Pipeline. notifier may be nil, in which case no
// status callbacks are sent.
func NewPipeline(
	fetcher *Fetcher,
	prober transcoder.Prober,
	engine transcoder.Engine,
	publisher *Publisher,
	notifier repository.StatusNotifier,
	cfg PipelineConfig,
) *Pipeline {
	if cfg.TempDir == "" {
		cfg.TempDir = DefaultPipelineConfig().TempDir
	}
	if cfg.EncodeWorkers <= 0 {
		cfg.EncodeWorkers = DefaultPipelineConfig().EncodeWorkers
	}
	if len(cfg.Ladder) == 0 {
		cfg.Ladder = transcoder.DefaultTierLadder()
	}
	return &Pipeline{
		fetcher:   fetcher,
		prober:    prober,
		engine:    engine,
		publisher: publisher,
		notifier:  notifier,
		config:    cfg,
	}
}

// RunTranscode executes the whole pipeline for one job and returns the
// published manifest. Each job gets exactly one terminal status report: done
// on success, failed on the last attempt's failure. A failure the caller
// will retry (job.WillRetry) is not terminal and sends nothing. Notifier
// failures are logged and never change the job's own success/failure
// determination. The staging workspace is removed on every exit path.
func (p *Pipeline) RunTranscode(ctx context.Context, job model.TranscodeJob) (*model.PublishedManifest, error) {
	manifest, err := p.run(ctx, job)
	p.notify(ctx, job, err)
	if err != nil {
		metrics.JobsTotal.WithLabelValues(metrics.JobStatusFailed).Inc()
		return nil, err
	}
	metrics.JobsTotal.WithLabelValues(metrics.JobStatusDone).Inc()
	return manifest, nil
}

func (p *Pipeline) run(ctx context.Context, job model.TranscodeJob) (*model.PublishedManifest, error) {
	if err := job.Validate(); err != nil {
		return nil, fmt.Errorf("invalid job: %w", err)
	}

	ws, err := NewWorkspace(p.config.TempDir, job.JobID)
	if err != nil {
		return nil, err
	}
	defer ws.Close()

	start := time.Now()
	if err := p.fetcher.Fetch(ctx, job.SourceURL, ws.SourcePath()); err != nil {
		return nil, err
	}
	metrics.StageDurationSeconds.WithLabelValues(metrics.StageFetch).Observe(time.Since(start).Seconds())

	start = time.Now()
	info, err := p.prober.Probe(ctx, ws.SourcePath())
	if err != nil {
		return nil, err
	}
	metrics.StageDurationSeconds.WithLabelValues(metrics.StageProbe).Observe(time.Since(start).Seconds())

	plans := transcoder.PlanLadder(info, p.config.Ladder)

	start = time.Now()
	results, preview, err := p.produce(ctx, job, ws, info, plans)
	if err != nil {
		return nil, err
	}
	metrics.StageDurationSeconds.WithLabelValues(metrics.StageTranscode).Observe(time.Since(start).Seconds())

	// Manifest order must match the tier table, independent of the order in
	// which concurrent encodes finished.
	if err := transcoder.WriteMasterPlaylist(ws.MasterPlaylistPath(), results); err != nil {
		return nil, model.NewStageError(model.StagePublish, err)
	}

	start = time.Now()
	urls, err := p.publisher.PublishAll(ctx, job.JobID, ws.OutputDir(), job.DestinationPrefix)
	if err != nil {
		return nil, err
	}
	metrics.StageDurationSeconds.WithLabelValues(metrics.StagePublish).Observe(time.Since(start).Seconds())

	return buildManifest(job, info, results, preview, urls), nil
}

// produce runs tier encoding and thumbnail/preview generation. Tiers run in
// a bounded pool; thumbnail and preview run alongside the pool, independent
// of tier success or failure. Any tier or thumbnail failure is fatal; a
// preview failure degrades to "no preview".
func (p *Pipeline) produce(
	ctx context.Context,
	job model.TranscodeJob,
	ws *Workspace,
	info model.VideoInfo,
	plans []transcoder.TierPlan,
) ([]transcoder.TierResult, *transcoder.PreviewResult, error) {
	results := make([]transcoder.TierResult, len(plans))
	var preview *transcoder.PreviewResult

	g, gctx := errgroup.WithContext(ctx)

	encodes, ectx := errgroup.WithContext(gctx)
	encodes.SetLimit(p.config.EncodeWorkers)
	for i, plan := range plans {
		i, plan := i, plan
		encodes.Go(func() error {
			res, err := p.engine.EncodeTier(ectx, ws.SourcePath(), ws.TierDir(plan.Name), plan)
			if err != nil {
				return err
			}
			results[i] = *res // each goroutine owns a distinct index
			return nil
		})
	}
	g.Go(encodes.Wait)

	g.Go(func() error {
		if job.ExistingThumbnailURL == "" {
			// The manifest requires a poster image, so this failure is fatal.
			if err := p.engine.ExtractThumbnail(gctx, ws.SourcePath(), ws.ThumbnailPath()); err != nil {
				return err
			}
		}

		pv, err := p.engine.GeneratePreview(gctx, ws.SourcePath(), ws.PreviewPath(), info)
		if err != nil {
			slog.Warn("preview generation failed, continuing without preview",
				slog.String("job_id", job.JobID),
				slog.String("error", err.Error()),
			)
			// Don't let a half-written clip reach the publisher.
			_ = os.Remove(ws.PreviewPath())
			return nil
		}
		if pv.Attempts > 1 {
			metrics.PreviewRetriesTotal.Inc()
		}
		preview = pv
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	return results, preview, nil
}

// buildManifest assembles the externally visible result from upload URLs.
func buildManifest(
	job model.TranscodeJob,
	info model.VideoInfo,
	results []transcoder.TierResult,
	preview *transcoder.PreviewResult,
	urls map[string]string,
) *model.PublishedManifest {
	manifest := &model.PublishedManifest{
		MasterManifestURL: urls["master.m3u8"],
		ThumbnailURL:      job.ExistingThumbnailURL,
		DurationSeconds:   info.DurationSeconds,
	}
	if manifest.ThumbnailURL == "" {
		manifest.ThumbnailURL = urls["thumbnail.jpg"]
	}
	if preview != nil {
		manifest.PreviewURL = urls["preview.mp4"]
	}
	for _, r := range results {
		manifest.Tiers = append(manifest.Tiers, model.PublishedTier{
			Name:        r.Plan.Name,
			PlaylistURL: urls[r.Plan.Name+"/segments/playlist.m3u8"],
		})
	}
	return manifest
}

// notify reports the terminal outcome. It runs even when the job's context
// was cancelled, and its own failures are logged only. Failures on attempts
// the caller will retry are skipped: the job is not over yet, and a failed
// report followed by a done would let the system of record latch a
// contradictory state.
func (p *Pipeline) notify(ctx context.Context, job model.TranscodeJob, runErr error) {
	if p.notifier == nil {
		return
	}
	if runErr != nil && job.WillRetry {
		return
	}

	report := repository.StatusReport{
		JobID:  job.JobID,
		Status: repository.StatusDone,
	}
	if runErr != nil {
		report.Status = repository.StatusFailed
		report.ErrorMessage = runErr.Error()
		report.ErrorDetails = &repository.ErrorDetails{
			Name: string(model.StageOf(runErr)),
			Code: string(model.ClassOf(runErr)),
		}
	}

	if err := p.notifier.Notify(context.WithoutCancel(ctx), report); err != nil {
		slog.Error("status notification failed",
			slog.String("job_id", job.JobID),
			slog.String("status", report.Status),
			slog.String("error", err.Error()),
		)
	}
}
