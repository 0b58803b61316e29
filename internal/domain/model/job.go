package model

import "errors"

// TranscodeJob identifies one pipeline run. It is supplied by the caller and
// lives for the duration of a single run; the caller's catalog owns any
// durable state about the video itself.
type TranscodeJob struct {
	// JobID is the opaque external identifier (e.g. a reel or video id).
	JobID string

	// SourceURL is the remote location of the raw upload.
	SourceURL string

	// DestinationPrefix is the object-storage path prefix under which all
	// artifacts for this job are written.
	DestinationPrefix string

	// ExistingThumbnailURL, when non-empty, skips thumbnail extraction and is
	// carried into the published manifest verbatim.
	ExistingThumbnailURL string

	// WillRetry marks an attempt whose failure the caller will retry. A
	// failure on such an attempt is not a terminal outcome and must not be
	// reported as one; only the last attempt's failure is.
	WillRetry bool
}

// Validate checks that the job carries everything a run needs.
func (j TranscodeJob) Validate() error {
	if j.JobID == "" {
		return errors.New("job id is required")
	}
	if j.SourceURL == "" {
		return errors.New("source url is required")
	}
	if j.DestinationPrefix == "" {
		return errors.New("destination prefix is required")
	}
	return nil
}

// VideoInfo is the probed metadata of a source video. Dimensions are
// load-bearing; duration is advisory and may be zero when the container does
// not report it.
type VideoInfo struct {
	Width           int
	Height          int
	DurationSeconds float64
	Codec           string
	FrameRate       float64
}

// PublishedTier points at one quality tier's playlist in object storage.
type PublishedTier struct {
	Name        string
	PlaylistURL string
}

// PublishedManifest is the externally visible result of a run, immutable once
// returned. PreviewURL is empty when no preview was produced; the preview is
// optional and never blocks job success.
type PublishedManifest struct {
	MasterManifestURL string
	ThumbnailURL      string
	PreviewURL        string
	DurationSeconds   float64
	Tiers             []PublishedTier
}
