package usecase

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Workspace is the staging directory tree private to one job. The source
// download lives at the root; everything under OutputDir is what the
// publisher uploads, so the raw source never reaches object storage.
type Workspace struct {
	root string
}

// NewWorkspace creates a uniquely named staging directory for a job. The
// uuid suffix keeps concurrent runs collision-free even when two jobs carry
// the same id.
func NewWorkspace(baseDir, jobID string) (*Workspace, error) {
	root := filepath.Join(baseDir, fmt.Sprintf("%s-%s", safeDirName(jobID), uuid.NewString()))
	if err := os.MkdirAll(filepath.Join(root, "output"), 0755); err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}
	return &Workspace{root: root}, nil
}

func (w *Workspace) Root() string {
	return w.root
}

// SourcePath is where the fetched source video lands.
func (w *Workspace) SourcePath() string {
	return filepath.Join(w.root, "source.mp4")
}

// OutputDir holds every artifact destined for object storage.
func (w *Workspace) OutputDir() string {
	return filepath.Join(w.root, "output")
}

func (w *Workspace) TierDir(name string) string {
	return filepath.Join(w.OutputDir(), name)
}

func (w *Workspace) ThumbnailPath() string {
	return filepath.Join(w.OutputDir(), "thumbnail.jpg")
}

func (w *Workspace) PreviewPath() string {
	return filepath.Join(w.OutputDir(), "preview.mp4")
}

func (w *Workspace) MasterPlaylistPath() string {
	return filepath.Join(w.OutputDir(), "master.m3u8")
}

// Close removes the workspace and everything in it. Removal failures are
// logged and swallowed: a stuck temp file must not fail an otherwise
// successful transcode.
func (w *Workspace) Close() {
	if err := os.RemoveAll(w.root); err != nil {
		slog.Warn("workspace cleanup failed",
			slog.String("path", w.root),
			slog.String("error", err.Error()),
		)
	}
}

// safeDirName flattens path separators out of externally supplied ids.
func safeDirName(id string) string {
	return strings.NewReplacer("/", "_", "\\", "_").Replace(id)
}
