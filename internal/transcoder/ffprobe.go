package transcoder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/streamforge/reelpipe/internal/domain/model"
)

// FFprobe implements Prober by shelling out to the ffprobe binary.
type FFprobe struct {
	runner  Runner
	path    string
	timeout time.Duration
}

var _ Prober = (*FFprobe)(nil)

// NewFFprobe creates an ffprobe-backed prober. path defaults to "ffprobe"
// when empty.
func NewFFprobe(runner Runner, path string, timeout time.Duration) *FFprobe {
	if path == "" {
		path = "ffprobe"
	}
	return &FFprobe{runner: runner, path: path, timeout: timeout}
}

// ffprobeOutput is the top-level JSON structure returned by
// ffprobe -show_streams -show_format.
type ffprobeOutput struct {
	Streams []struct {
		CodecName    string `json:"codec_name"`
		CodecType    string `json:"codec_type"`
		Width        int    `json:"width"`
		Height       int    `json:"height"`
		Duration     string `json:"duration"`
		RFrameRate   string `json:"r_frame_rate"`
		AvgFrameRate string `json:"avg_frame_rate"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// Probe runs ffprobe and extracts width, height, duration, codec and frame
// rate of the first video stream. Duration falls back to the format-level
// value and defaults to 0 when unparseable; dimensions are load-bearing and
// their absence fails the probe.
func (p *FFprobe) Probe(ctx context.Context, path string) (model.VideoInfo, error) {
	out, err := p.runner.Run(ctx, p.timeout, p.path,
		"-v", "quiet",
		"-print_format", "json",
		"-show_streams",
		"-show_format",
		path,
	)
	if err != nil {
		return model.VideoInfo{}, model.NewStageError(model.StageProbe, fmt.Errorf("ffprobe: %w", err))
	}

	var data ffprobeOutput
	if err := json.Unmarshal(out, &data); err != nil {
		return model.VideoInfo{}, model.NewStageError(model.StageProbe, fmt.Errorf("parse ffprobe output: %w", err))
	}

	var info model.VideoInfo
	found := false
	for _, s := range data.Streams {
		if s.CodecType != "video" {
			continue
		}
		found = true
		info.Width = s.Width
		info.Height = s.Height
		info.Codec = s.CodecName
		info.FrameRate = parseFrameRate(s.RFrameRate)
		if info.FrameRate == 0 {
			info.FrameRate = parseFrameRate(s.AvgFrameRate)
		}
		if dur, err := strconv.ParseFloat(s.Duration, 64); err == nil && dur > 0 {
			info.DurationSeconds = dur
		}
		break
	}

	if !found {
		return model.VideoInfo{}, model.NewStageError(model.StageProbe, errors.New("no video stream found"))
	}
	if info.Width <= 0 || info.Height <= 0 {
		return model.VideoInfo{}, model.NewStageError(model.StageProbe,
			fmt.Errorf("video stream has invalid dimensions %dx%d", info.Width, info.Height))
	}

	if info.DurationSeconds == 0 {
		if dur, err := strconv.ParseFloat(data.Format.Duration, 64); err == nil && dur > 0 {
			info.DurationSeconds = dur
		}
	}

	return info, nil
}

// parseFrameRate parses ffprobe's rational frame rate ("30000/1001", "25/1").
// Returns 0 for anything unparseable; frame rate is advisory.
func parseFrameRate(s string) float64 {
	num, den, ok := strings.Cut(s, "/")
	if !ok {
		if v, err := strconv.ParseFloat(s, 64); err == nil {
			return v
		}
		return 0
	}
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil || d == 0 {
		return 0
	}
	return n / d
}
