package transcoder

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/streamforge/reelpipe/internal/domain/model"
)

// Config holds configuration for the FFmpeg engine.
type Config struct {
	// FFmpegPath is the path to the ffmpeg binary.
	// If empty, "ffmpeg" will be used (assumes it's in PATH).
	FFmpegPath string

	// VideoCodec is the video codec to use.
	// Default: libx264
	VideoCodec string

	// AudioCodec is the audio codec to use.
	// Default: aac
	AudioCodec string

	// Preset controls the encoding speed/quality tradeoff.
	// Default: veryfast
	Preset string

	// SegmentSeconds is the target duration of each HLS segment.
	// Default: 1
	SegmentSeconds int

	// EncodeTimeout bounds a single ffmpeg invocation.
	EncodeTimeout time.Duration

	// ThumbnailOffsetSeconds is where the poster frame is grabbed.
	ThumbnailOffsetSeconds float64

	// PreviewSeconds is the preview clip length, clamped to the source
	// duration when the source is shorter.
	PreviewSeconds float64

	// PreviewFrameRate is the fixed preview frame rate.
	PreviewFrameRate int

	// PreviewMaxDimension caps the preview's longer side in pixels.
	PreviewMaxDimension int

	// PreviewMinDimension is the floor for the capped axis on the reduced
	// second attempt.
	PreviewMinDimension int

	// PreviewMaxBytes is the soft byte budget for the preview clip.
	PreviewMaxBytes int64

	// PreviewCRF and PreviewRetryCRF are the x264 quality factors for the
	// first and second preview attempts (higher is smaller/worse).
	PreviewCRF      int
	PreviewRetryCRF int
}

// DefaultConfig returns a Config with production-ready defaults.
func DefaultConfig() Config {
	return Config{
		FFmpegPath:             "ffmpeg",
		VideoCodec:             "libx264",
		AudioCodec:             "aac",
		Preset:                 "veryfast",
		SegmentSeconds:         1,
		EncodeTimeout:          15 * time.Minute,
		ThumbnailOffsetSeconds: 1,
		PreviewSeconds:         3,
		PreviewFrameRate:       24,
		PreviewMaxDimension:    720,
		PreviewMinDimension:    480,
		PreviewMaxBytes:        400 << 10,
		PreviewCRF:             28,
		PreviewRetryCRF:        33,
	}
}

// FFmpeg implements Engine using the ffmpeg CLI.
type FFmpeg struct {
	config Config
	runner Runner
}

var _ Engine = (*FFmpeg)(nil)

// New creates an FFmpeg engine. A nil runner defaults to real subprocess
// execution.
func New(cfg Config, runner Runner) *FFmpeg {
	if runner == nil {
		runner = ExecRunner{}
	}
	return &FFmpeg{config: cfg, runner: runner}
}

// EncodeTier runs the two subprocess stages for one tier: a full-file encode
// to the tier's target resolution and bitrate, then segmentation of the
// intermediate file into ~1s chunks plus a static tier playlist. The
// intermediate file is removed once segmentation succeeds so it never reaches
// object storage.
func (f *FFmpeg) EncodeTier(ctx context.Context, inputPath, tierDir string, plan TierPlan) (*TierResult, error) {
	segDir := filepath.Join(tierDir, "segments")
	if err := os.MkdirAll(segDir, 0755); err != nil {
		return nil, model.NewStageError(model.StageEncode, fmt.Errorf("create tier directory %s: %w", plan.Name, err))
	}

	intermediate := filepath.Join(tierDir, "encoded.mp4")
	args := f.buildEncodeArgs(inputPath, intermediate, plan)
	if _, err := f.runner.Run(ctx, f.config.EncodeTimeout, f.config.FFmpegPath, args...); err != nil {
		return nil, model.NewStageError(model.StageEncode, fmt.Errorf("encode tier %s: %w", plan.Name, err))
	}

	playlist := filepath.Join(segDir, "playlist.m3u8")
	pattern := filepath.Join(segDir, "segment_%03d.ts")
	args = f.buildSegmentArgs(intermediate, playlist, pattern)
	if _, err := f.runner.Run(ctx, f.config.EncodeTimeout, f.config.FFmpegPath, args...); err != nil {
		return nil, model.NewStageError(model.StageSegment, fmt.Errorf("segment tier %s: %w", plan.Name, err))
	}

	if err := os.Remove(intermediate); err != nil {
		slog.Warn("failed to remove intermediate encode", "tier", plan.Name, "error", err)
	}

	segments, err := collectSegments(segDir)
	if err != nil {
		return nil, model.NewStageError(model.StageSegment, fmt.Errorf("tier %s: %w", plan.Name, err))
	}

	return &TierResult{
		Plan:         plan,
		PlaylistPath: playlist,
		SegmentPaths: segments,
	}, nil
}

// buildEncodeArgs constructs the arguments for the full-file tier encode.
func (f *FFmpeg) buildEncodeArgs(inputPath, outputPath string, plan TierPlan) []string {
	return []string{
		"-i", inputPath,
		"-vf", fmt.Sprintf("scale=%d:%d", plan.Width, plan.Height),
		"-c:v", f.config.VideoCodec,
		"-preset", f.config.Preset,
		"-b:v", fmt.Sprintf("%dk", plan.VideoBitrateKbps),
		"-c:a", f.config.AudioCodec,
		"-b:a", fmt.Sprintf("%dk", plan.AudioBitrateKbps),
		"-y",
		outputPath,
	}
}

// buildSegmentArgs constructs the arguments for segmenting an already encoded
// tier file. Streams are copied, not re-encoded.
func (f *FFmpeg) buildSegmentArgs(inputPath, playlistPath, segmentPattern string) []string {
	return []string{
		"-i", inputPath,
		"-c", "copy",
		"-f", "hls",
		"-hls_time", strconv.Itoa(f.config.SegmentSeconds),
		"-hls_list_size", "0", // Include all segments in playlist
		"-hls_playlist_type", "vod",
		"-hls_segment_filename", segmentPattern,
		"-y",
		playlistPath,
	}
}

// ExtractThumbnail grabs a single frame near the configured offset.
func (f *FFmpeg) ExtractThumbnail(ctx context.Context, inputPath, outputPath string) error {
	args := []string{
		"-ss", formatSeconds(f.config.ThumbnailOffsetSeconds),
		"-i", inputPath,
		"-vframes", "1",
		"-q:v", "2",
		"-y",
		outputPath,
	}
	if _, err := f.runner.Run(ctx, f.config.EncodeTimeout, f.config.FFmpegPath, args...); err != nil {
		return model.NewStageError(model.StageEncode, fmt.Errorf("extract thumbnail: %w", err))
	}
	return nil
}

// GeneratePreview encodes a short muted clip within a soft byte budget.
// When the first attempt exceeds the budget, exactly one retry at ~75%
// linear scale and lower quality is made; the second result is accepted
// whatever its size, with a warning when it is still over budget.
func (f *FFmpeg) GeneratePreview(ctx context.Context, inputPath, outputPath string, info model.VideoInfo) (*PreviewResult, error) {
	duration := f.config.PreviewSeconds
	if info.DurationSeconds > 0 && info.DurationSeconds < duration {
		duration = info.DurationSeconds
	}

	w, h := previewDimensions(info.Width, info.Height, f.config.PreviewMaxDimension)

	size, err := f.encodePreviewAttempt(ctx, inputPath, outputPath, w, h, duration, f.config.PreviewCRF)
	if err != nil {
		return nil, model.NewStageError(model.StagePreview, err)
	}
	if size <= f.config.PreviewMaxBytes {
		return &PreviewResult{Path: outputPath, SizeBytes: size, Attempts: 1}, nil
	}

	w, h = reducedDimensions(w, h, f.config.PreviewMinDimension)
	size, err = f.encodePreviewAttempt(ctx, inputPath, outputPath, w, h, duration, f.config.PreviewRetryCRF)
	if err != nil {
		return nil, model.NewStageError(model.StagePreview, err)
	}
	if size > f.config.PreviewMaxBytes {
		slog.Warn("preview exceeds byte budget after reduced retry",
			slog.Int64("size_bytes", size),
			slog.Int64("budget_bytes", f.config.PreviewMaxBytes),
		)
	}
	return &PreviewResult{Path: outputPath, SizeBytes: size, Attempts: 2}, nil
}

// encodePreviewAttempt runs one preview encode and returns the resulting
// file size.
func (f *FFmpeg) encodePreviewAttempt(ctx context.Context, inputPath, outputPath string, w, h int, duration float64, crf int) (int64, error) {
	args := []string{
		"-i", inputPath,
		"-t", formatSeconds(duration),
		"-vf", fmt.Sprintf("scale=%d:%d", w, h),
		"-c:v", f.config.VideoCodec,
		"-preset", f.config.Preset,
		"-crf", strconv.Itoa(crf),
		"-r", strconv.Itoa(f.config.PreviewFrameRate),
		"-an", // muted
		"-y",
		outputPath,
	}
	if _, err := f.runner.Run(ctx, f.config.EncodeTimeout, f.config.FFmpegPath, args...); err != nil {
		return 0, fmt.Errorf("encode preview: %w", err)
	}
	st, err := os.Stat(outputPath)
	if err != nil {
		return 0, fmt.Errorf("stat preview: %w", err)
	}
	return st.Size(), nil
}

// previewDimensions caps the longer side at maxDim, preserving aspect ratio,
// both dimensions forced even. Sources already within the cap keep their
// dimensions.
func previewDimensions(srcW, srcH, maxDim int) (int, int) {
	w, h := srcW, srcH
	longer := w
	if h > longer {
		longer = h
	}
	if longer > maxDim {
		scale := float64(maxDim) / float64(longer)
		w = int(math.Round(float64(srcW) * scale))
		h = int(math.Round(float64(srcH) * scale))
	}
	return forceEven(w), forceEven(h)
}

// reducedDimensions applies the one-step ~75% linear reduction for the second
// preview attempt, floor-clamped so the longer side never drops below minDim.
func reducedDimensions(w, h, minDim int) (int, int) {
	scale := 0.75
	longer := w
	if h > longer {
		longer = h
	}
	if reduced := float64(longer) * scale; reduced < float64(minDim) && longer > 0 {
		scale = float64(minDim) / float64(longer)
		if scale > 1 {
			scale = 1
		}
	}
	return forceEven(int(math.Round(float64(w) * scale))),
		forceEven(int(math.Round(float64(h) * scale)))
}

func forceEven(v int) int {
	if v%2 != 0 {
		v++
	}
	return v
}

// formatSeconds renders a duration argument without trailing zeros.
func formatSeconds(s float64) string {
	return strconv.FormatFloat(s, 'f', -1, 64)
}

// collectSegments finds all generated .ts segment files in chronological
// (name) order.
func collectSegments(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read segment directory: %w", err)
	}

	var segments []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.HasSuffix(entry.Name(), ".ts") {
			segments = append(segments, filepath.Join(dir, entry.Name()))
		}
	}

	if len(segments) == 0 {
		return nil, fmt.Errorf("no segments generated")
	}

	return segments, nil
}
