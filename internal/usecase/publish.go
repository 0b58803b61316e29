package usecase

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/streamforge/reelpipe/internal/domain/model"
	"github.com/streamforge/reelpipe/internal/domain/repository"
	"github.com/streamforge/reelpipe/internal/infrastructure/metrics"
)

// contentTypes maps artifact extensions to upload content types.
var contentTypes = map[string]string{
	".m3u8": "application/vnd.apple.mpegurl",
	".ts":   "video/mp2t",
	".mp4":  "video/mp4",
	".jpg":  "image/jpeg",
}

const defaultContentType = "application/octet-stream"

// PublisherConfig holds configuration for the artifact publisher.
type PublisherConfig struct {
	// Workers bounds concurrent uploads, matching common multi-part upload
	// concurrency limits.
	Workers int
	// UploadRetries is the per-file retry budget.
	UploadRetries int
	// RetryBackoff is the delay before the first per-file retry; it doubles
	// per attempt.
	RetryBackoff time.Duration
}

// DefaultPublisherConfig returns production defaults.
func DefaultPublisherConfig() PublisherConfig {
	return PublisherConfig{
		Workers:       4,
		UploadRetries: 3,
		RetryBackoff:  500 * time.Millisecond,
	}
}

// Publisher uploads every produced artifact under a deterministic key scheme.
// Publication is all-or-nothing: a single file failing its retry budget fails
// the job, and anything already uploaded under the prefix is removed so a
// manifest can never reference missing segments.
type Publisher struct {
	storage  repository.ObjectStorage
	progress repository.ProgressSink // optional
	config   PublisherConfig
}

// NewPublisher creates a Publisher. progress may be nil.
func NewPublisher(storage repository.ObjectStorage, progress repository.ProgressSink, cfg PublisherConfig) *Publisher {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultPublisherConfig().Workers
	}
	if cfg.UploadRetries <= 0 {
		cfg.UploadRetries = DefaultPublisherConfig().UploadRetries
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = DefaultPublisherConfig().RetryBackoff
	}
	return &Publisher{storage: storage, progress: progress, config: cfg}
}

// localFile is one regular file found under the workspace output tree.
type localFile struct {
	abs  string
	rel  string // slash-separated, relative to the walked root
	size int64
}

// PublishAll uploads every regular file under root to destinationPrefix and
// returns remote URLs keyed by slash-separated relative path. Any stale
// master manifest left by a previous run at the same prefix is removed first
// so a retried job cannot leave two manifests live simultaneously.
func (p *Publisher) PublishAll(ctx context.Context, jobID, root, destinationPrefix string) (map[string]string, error) {
	if err := p.removeStaleManifest(ctx, destinationPrefix); err != nil {
		return nil, model.NewStageError(model.StagePublish, err)
	}

	files, totalBytes, err := collectFiles(root)
	if err != nil {
		return nil, model.NewStageError(model.StagePublish, err)
	}

	urls := make(map[string]string, len(files))
	var mu sync.Mutex
	var sent atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.config.Workers)
	for _, file := range files {
		file := file
		g.Go(func() error {
			key := joinKey(destinationPrefix, file.rel)
			url, err := p.uploadWithRetry(gctx, key, file.abs, contentTypeFor(file.rel))
			if err != nil {
				return fmt.Errorf("upload %s: %w", file.rel, err)
			}

			mu.Lock()
			urls[file.rel] = url
			mu.Unlock()

			metrics.PublishedBytesTotal.Add(float64(file.size))
			if p.progress != nil {
				p.progress.UploadProgress(gctx, jobID, sent.Add(file.size), totalBytes)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		// Partial publication is not an acceptable terminal state.
		p.removeUploaded(context.WithoutCancel(ctx), destinationPrefix)
		return nil, model.NewStageError(model.StagePublish, err)
	}

	return urls, nil
}

// removeStaleManifest deletes a master manifest left at the prefix by a
// previous run.
func (p *Publisher) removeStaleManifest(ctx context.Context, destinationPrefix string) error {
	key := joinKey(destinationPrefix, "master.m3u8")
	exists, err := p.storage.Exists(ctx, key)
	if err != nil {
		return fmt.Errorf("check stale manifest: %w", err)
	}
	if !exists {
		return nil
	}
	if err := p.storage.Delete(ctx, key); err != nil {
		return fmt.Errorf("remove stale manifest: %w", err)
	}
	return nil
}

// removeUploaded best-effort deletes everything under the prefix after a
// failed publish.
func (p *Publisher) removeUploaded(ctx context.Context, destinationPrefix string) {
	keys, err := p.storage.List(ctx, destinationPrefix)
	if err != nil {
		slog.Error("failed to list partial upload for cleanup",
			slog.String("prefix", destinationPrefix),
			slog.String("error", err.Error()),
		)
		return
	}
	for _, key := range keys {
		if err := p.storage.Delete(ctx, key); err != nil {
			slog.Error("failed to remove partially uploaded object",
				slog.String("key", key),
				slog.String("error", err.Error()),
			)
		}
	}
}

// uploadWithRetry uploads one file, reopening it per attempt.
func (p *Publisher) uploadWithRetry(ctx context.Context, key, localPath, contentType string) (string, error) {
	backoff := p.config.RetryBackoff
	var lastErr error

	for attempt := 0; attempt < p.config.UploadRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		url, err := p.uploadOnce(ctx, key, localPath, contentType)
		if err == nil {
			return url, nil
		}
		lastErr = err
	}

	return "", lastErr
}

func (p *Publisher) uploadOnce(ctx context.Context, key, localPath, contentType string) (string, error) {
	file, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	url, err := p.storage.Upload(ctx, key, file, contentType)
	if err != nil {
		return "", fmt.Errorf("storage upload: %w", err)
	}
	return url, nil
}

// collectFiles walks root and returns every regular file with its
// slash-separated relative path, plus the total byte count.
func collectFiles(root string) ([]localFile, int64, error) {
	var files []localFile
	var total int64

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		files = append(files, localFile{
			abs:  path,
			rel:  filepath.ToSlash(rel),
			size: info.Size(),
		})
		total += info.Size()
		return nil
	})
	if err != nil {
		return nil, 0, fmt.Errorf("walk workspace: %w", err)
	}

	return files, total, nil
}

// contentTypeFor derives an upload content type from the file extension.
func contentTypeFor(rel string) string {
	if ct, ok := contentTypes[strings.ToLower(filepath.Ext(rel))]; ok {
		return ct
	}
	return defaultContentType
}

// joinKey joins an object-storage prefix and a relative path with forward
// slashes regardless of host OS.
func joinKey(prefix, rel string) string {
	return strings.TrimSuffix(prefix, "/") + "/" + rel
}
