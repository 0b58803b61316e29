package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/streamforge/reelpipe/internal/domain/model"
)

// FetcherConfig holds configuration for the source fetcher.
type FetcherConfig struct {
	// Timeout bounds a single fetch attempt end to end.
	Timeout time.Duration
	// MaxRetries is how many times a transient failure is retried.
	MaxRetries int
	// BaseBackoff is the delay before the first retry; it doubles per attempt.
	BaseBackoff time.Duration
	// MaxBytes bounds the accepted payload size.
	MaxBytes int64
}

// DefaultFetcherConfig returns production defaults.
func DefaultFetcherConfig() FetcherConfig {
	return FetcherConfig{
		Timeout:     60 * time.Second,
		MaxRetries:  3,
		BaseBackoff: time.Second,
		MaxBytes:    2 << 30,
	}
}

// Fetcher retrieves the source video over HTTP into the staging workspace.
type Fetcher struct {
	client      *http.Client
	maxRetries  int
	baseBackoff time.Duration
	maxBytes    int64
}

// NewFetcher creates a Fetcher with its own time-bounded HTTP client. The
// client is stateless and safe to share across concurrent jobs.
func NewFetcher(cfg FetcherConfig) *Fetcher {
	return &Fetcher{
		client:      &http.Client{Timeout: cfg.Timeout},
		maxRetries:  cfg.MaxRetries,
		baseBackoff: cfg.BaseBackoff,
		maxBytes:    cfg.MaxBytes,
	}
}

// permanentError marks failures that retrying cannot fix (4xx responses,
// oversized payloads).
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Fetch streams the source to destPath. Transient failures (network errors,
// 5xx responses) are retried with doubling backoff; permanent failures abort
// immediately. Any terminal failure is tagged as a fetch-stage error.
func (f *Fetcher) Fetch(ctx context.Context, sourceURL, destPath string) error {
	backoff := f.baseBackoff
	var lastErr error

	for attempt := 0; attempt <= f.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return model.NewStageError(model.StageFetch, ctx.Err())
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		err := f.fetchOnce(ctx, sourceURL, destPath)
		if err == nil {
			return nil
		}
		lastErr = err

		var perm *permanentError
		if errors.As(err, &perm) {
			break
		}
	}

	return model.NewStageError(model.StageFetch, lastErr)
}

// fetchOnce performs a single streaming download attempt.
func (f *Fetcher) fetchOnce(ctx context.Context, sourceURL, destPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return &permanentError{err: fmt.Errorf("build request: %w", err)}
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("get source: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		// proceed
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return &permanentError{err: fmt.Errorf("source returned status %d", resp.StatusCode)}
	default:
		return fmt.Errorf("source returned status %d", resp.StatusCode)
	}

	file, err := os.Create(destPath)
	if err != nil {
		return &permanentError{err: fmt.Errorf("create destination file: %w", err)}
	}

	// Stream straight to disk; read one byte past the cap to detect
	// oversized payloads without buffering them.
	n, err := io.Copy(file, io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		_ = file.Close()
		return fmt.Errorf("copy source to disk: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("close destination file: %w", err)
	}
	if n > f.maxBytes {
		return &permanentError{err: fmt.Errorf("source exceeds maximum size of %d bytes", f.maxBytes)}
	}

	return nil
}
