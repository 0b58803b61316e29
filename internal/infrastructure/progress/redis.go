package progress

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/streamforge/reelpipe/internal/domain/repository"
)

const (
	// progressKeyPrefix is the prefix for upload-progress keys in Redis.
	progressKeyPrefix = "transcode:progress:"
)

// progressJSON is the wire format stored per job.
type progressJSON struct {
	BytesSent  int64 `json:"bytes_sent"`
	BytesTotal int64 `json:"bytes_total"`
}

// Sink publishes artifact upload progress to Redis so operators and upload
// UIs can poll it. Progress is advisory only: write failures are logged at
// debug level and dropped.
type Sink struct {
	client *redis.Client
	ttl    time.Duration
}

var _ repository.ProgressSink = (*Sink)(nil)

// NewSink creates a Redis-backed progress sink. Keys expire after ttl so
// abandoned jobs do not accumulate.
func NewSink(client *redis.Client, ttl time.Duration) *Sink {
	return &Sink{
		client: client,
		ttl:    ttl,
	}
}

// UploadProgress records the bytes published so far for a job.
func (s *Sink) UploadProgress(ctx context.Context, jobID string, bytesSent, bytesTotal int64) {
	data, err := json.Marshal(progressJSON{
		BytesSent:  bytesSent,
		BytesTotal: bytesTotal,
	})
	if err != nil {
		return
	}

	if err := s.client.Set(ctx, s.buildKey(jobID), data, s.ttl).Err(); err != nil {
		slog.Debug("progress write failed",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
	}
}

// buildKey constructs the Redis key for a job's progress.
func (s *Sink) buildKey(jobID string) string {
	return progressKeyPrefix + jobID
}
