package repository

import "context"

// TranscodeTask is the queue message that triggers one pipeline run.
type TranscodeTask struct {
	JobID             string `json:"job_id"`
	SourceURL         string `json:"source_url"`
	DestinationPrefix string `json:"destination_prefix"`
	ThumbnailURL      string `json:"thumbnail_url,omitempty"`
	RetryCount        int    `json:"retry_count"`
}

// MessageQueue defines the interface for message queue operations.
// Implementations should be provided by the infrastructure layer (e.g. RabbitMQ).
type MessageQueue interface {
	// PublishJob sends a transcoding task to the queue.
	PublishJob(ctx context.Context, task TranscodeTask) error

	// ConsumeJobs starts consuming transcoding tasks from the queue.
	// The handler function is called for each received task. Returns when
	// the context is cancelled or the underlying channel closes.
	ConsumeJobs(ctx context.Context, handler func(task TranscodeTask) error) error

	// Close gracefully closes the connection to the message queue.
	Close() error
}
