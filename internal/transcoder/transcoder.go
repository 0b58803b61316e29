package transcoder

import (
	"context"

	"github.com/streamforge/reelpipe/internal/domain/model"
)

// TierSpec is one named rung of the quality ladder.
type TierSpec struct {
	// Name is the identifier for this tier (e.g. "720p").
	Name string
	// MaxHeight is the target video height in pixels. Width is computed from
	// the source aspect ratio.
	MaxHeight int
	// VideoBitrateKbps is the target video bitrate in kilobits per second.
	VideoBitrateKbps int
	// AudioBitrateKbps is the target audio bitrate in kilobits per second.
	AudioBitrateKbps int
}

// DefaultTierLadder returns the compiled-in quality ladder. Tiers are ordered
// ascending by height, each with a strictly higher bitrate than the previous,
// so a player can step up and down monotonically.
func DefaultTierLadder() []TierSpec {
	return []TierSpec{
		{Name: "240p", MaxHeight: 240, VideoBitrateKbps: 400, AudioBitrateKbps: 64},
		{Name: "360p", MaxHeight: 360, VideoBitrateKbps: 800, AudioBitrateKbps: 96},
		{Name: "480p", MaxHeight: 480, VideoBitrateKbps: 1400, AudioBitrateKbps: 96},
		{Name: "720p", MaxHeight: 720, VideoBitrateKbps: 2800, AudioBitrateKbps: 128},
		{Name: "1080p", MaxHeight: 1080, VideoBitrateKbps: 5000, AudioBitrateKbps: 128},
	}
}

// TierPlan is a TierSpec resolved against the probed source dimensions.
type TierPlan struct {
	TierSpec
	// Width and Height are the computed encode dimensions, both even.
	Width  int
	Height int
}

// TierResult is the output of encoding and segmenting one tier.
type TierResult struct {
	Plan TierPlan
	// PlaylistPath is the absolute path to the tier playlist.
	PlaylistPath string
	// SegmentPaths contains the generated segment files in chronological order.
	SegmentPaths []string
}

// PreviewResult describes the generated preview clip.
type PreviewResult struct {
	Path      string
	SizeBytes int64
	// Attempts is 1 for a first-pass fit, 2 when the clip had to be
	// regenerated at reduced dimensions.
	Attempts int
}

// Prober inspects a local media file.
type Prober interface {
	// Probe extracts stream metadata. It fails when no video stream is found
	// or the inspection subprocess exits non-zero; it must not be retried,
	// since a corrupt input will not become parseable on retry.
	Probe(ctx context.Context, path string) (model.VideoInfo, error)
}

// Engine is the media encoding engine behind the pipeline.
type Engine interface {
	// EncodeTier encodes the input to the tier's target resolution and
	// bitrate, then segments the result into tierDir/segments. A failure in
	// either stage is fatal to the whole job.
	EncodeTier(ctx context.Context, inputPath, tierDir string, plan TierPlan) (*TierResult, error)

	// ExtractThumbnail grabs a single still frame near the start of the video.
	ExtractThumbnail(ctx context.Context, inputPath, outputPath string) error

	// GeneratePreview produces a short, muted, size-budgeted clip. When the
	// first attempt exceeds the byte budget, exactly one retry at reduced
	// dimensions and quality is made; the second result is accepted whatever
	// its size.
	GeneratePreview(ctx context.Context, inputPath, outputPath string, info model.VideoInfo) (*PreviewResult, error)
}
