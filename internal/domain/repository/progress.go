package repository

import "context"

// ProgressSink receives artifact upload progress for a job. Progress is an
// observability concern only: implementations must be safe for concurrent use
// and must swallow their own errors.
type ProgressSink interface {
	UploadProgress(ctx context.Context, jobID string, bytesSent, bytesTotal int64)
}
