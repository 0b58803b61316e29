package usecase

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/streamforge/reelpipe/internal/domain/model"
	"github.com/streamforge/reelpipe/internal/domain/repository"
	"github.com/streamforge/reelpipe/internal/transcoder"
)

// mockObjectStorage provides a configurable mock for ObjectStorage. It
// records uploads and deletes so tests can assert on publication side
// effects.
type mockObjectStorage struct {
	uploadFn func(ctx context.Context, key string, reader io.Reader, contentType string) (string, error)
	deleteFn func(ctx context.Context, key string) error
	existsFn func(ctx context.Context, key string) (bool, error)
	listFn   func(ctx context.Context, prefix string) ([]string, error)

	mu       sync.Mutex
	uploaded map[string]string // key -> content type
	deleted  []string
}

func (m *mockObjectStorage) Upload(ctx context.Context, key string, reader io.Reader, contentType string) (string, error) {
	if m.uploadFn != nil {
		url, err := m.uploadFn(ctx, key, reader, contentType)
		if err != nil {
			return "", err
		}
		m.recordUpload(key, contentType)
		return url, nil
	}
	m.recordUpload(key, contentType)
	return "https://cdn.example.com/" + key, nil
}

func (m *mockObjectStorage) recordUpload(key, contentType string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.uploaded == nil {
		m.uploaded = make(map[string]string)
	}
	m.uploaded[key] = contentType
}

func (m *mockObjectStorage) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	m.deleted = append(m.deleted, key)
	m.mu.Unlock()
	if m.deleteFn != nil {
		return m.deleteFn(ctx, key)
	}
	return nil
}

func (m *mockObjectStorage) Exists(ctx context.Context, key string) (bool, error) {
	if m.existsFn != nil {
		return m.existsFn(ctx, key)
	}
	return false, nil
}

func (m *mockObjectStorage) List(ctx context.Context, prefix string) ([]string, error) {
	if m.listFn != nil {
		return m.listFn(ctx, prefix)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var keys []string
	for key := range m.uploaded {
		keys = append(keys, key)
	}
	return keys, nil
}

func (m *mockObjectStorage) uploadCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.uploaded)
}

// mockNotifier provides a configurable mock for StatusNotifier.
type mockNotifier struct {
	notifyFn func(ctx context.Context, report repository.StatusReport) error

	mu      sync.Mutex
	reports []repository.StatusReport
}

func (m *mockNotifier) Notify(ctx context.Context, report repository.StatusReport) error {
	m.mu.Lock()
	m.reports = append(m.reports, report)
	m.mu.Unlock()
	if m.notifyFn != nil {
		return m.notifyFn(ctx, report)
	}
	return nil
}

func (m *mockNotifier) sent() []repository.StatusReport {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]repository.StatusReport(nil), m.reports...)
}

// mockProgressSink records progress updates.
type mockProgressSink struct {
	mu      sync.Mutex
	updates [][2]int64 // sent, total
}

func (m *mockProgressSink) UploadProgress(ctx context.Context, jobID string, bytesSent, bytesTotal int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updates = append(m.updates, [2]int64{bytesSent, bytesTotal})
}

func (m *mockProgressSink) recorded() [][2]int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][2]int64(nil), m.updates...)
}

// fakeProber provides a configurable mock for transcoder.Prober.
type fakeProber struct {
	probeFn func(ctx context.Context, path string) (model.VideoInfo, error)
}

func (f *fakeProber) Probe(ctx context.Context, path string) (model.VideoInfo, error) {
	if f.probeFn != nil {
		return f.probeFn(ctx, path)
	}
	return model.VideoInfo{Width: 1920, Height: 1080, DurationSeconds: 10, Codec: "h264", FrameRate: 30}, nil
}

// fakeEngine provides a configurable mock for transcoder.Engine. The default
// EncodeTier writes the files a real encode would produce so the publisher
// has something to upload.
type fakeEngine struct {
	encodeTierFn       func(ctx context.Context, inputPath, tierDir string, plan transcoder.TierPlan) (*transcoder.TierResult, error)
	extractThumbnailFn func(ctx context.Context, inputPath, outputPath string) error
	generatePreviewFn  func(ctx context.Context, inputPath, outputPath string, info model.VideoInfo) (*transcoder.PreviewResult, error)

	mu             sync.Mutex
	thumbnailCalls int
	encodedTiers   []string
}

func (f *fakeEngine) EncodeTier(ctx context.Context, inputPath, tierDir string, plan transcoder.TierPlan) (*transcoder.TierResult, error) {
	f.mu.Lock()
	f.encodedTiers = append(f.encodedTiers, plan.Name)
	f.mu.Unlock()
	if f.encodeTierFn != nil {
		return f.encodeTierFn(ctx, inputPath, tierDir, plan)
	}
	return writeTierOutput(tierDir, plan, 2)
}

func (f *fakeEngine) ExtractThumbnail(ctx context.Context, inputPath, outputPath string) error {
	f.mu.Lock()
	f.thumbnailCalls++
	f.mu.Unlock()
	if f.extractThumbnailFn != nil {
		return f.extractThumbnailFn(ctx, inputPath, outputPath)
	}
	return writeArtifact(outputPath, "jpeg")
}

func (f *fakeEngine) GeneratePreview(ctx context.Context, inputPath, outputPath string, info model.VideoInfo) (*transcoder.PreviewResult, error) {
	if f.generatePreviewFn != nil {
		return f.generatePreviewFn(ctx, inputPath, outputPath, info)
	}
	if err := writeArtifact(outputPath, "mp4"); err != nil {
		return nil, err
	}
	return &transcoder.PreviewResult{Path: outputPath, SizeBytes: 3, Attempts: 1}, nil
}

func (f *fakeEngine) thumbnails() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.thumbnailCalls
}

// writeArtifact writes a small placeholder file.
func writeArtifact(path, content string) error {
	return os.WriteFile(path, []byte(content), 0644)
}

// writeTierOutput lays down the files a real tier encode would leave behind:
// a segment directory with a playlist and numbered segments.
func writeTierOutput(tierDir string, plan transcoder.TierPlan, segments int) (*transcoder.TierResult, error) {
	segDir := filepath.Join(tierDir, "segments")
	if err := os.MkdirAll(segDir, 0755); err != nil {
		return nil, err
	}

	playlist := filepath.Join(segDir, "playlist.m3u8")
	if err := writeArtifact(playlist, "#EXTM3U\n"); err != nil {
		return nil, err
	}

	var segmentPaths []string
	for i := 0; i < segments; i++ {
		seg := filepath.Join(segDir, fmt.Sprintf("segment_%03d.ts", i))
		if err := writeArtifact(seg, "ts"); err != nil {
			return nil, err
		}
		segmentPaths = append(segmentPaths, seg)
	}

	return &transcoder.TierResult{
		Plan:         plan,
		PlaylistPath: playlist,
		SegmentPaths: segmentPaths,
	}, nil
}
