// Package storage handles generated images and temporary reference
// uploads on the local filesystem.
//
// Layout under the data dir: images/ holds generated artifacts named
// <taskID>_<rand>.png; uploads/ holds reference images that live only
// until their task finishes processing.
package storage

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/brushwork-ai/brushwork/internal/domain"
)

// allowedExtensions for uploaded reference images.
var allowedExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".webp": true,
}

// MIMEType maps a filename's extension to its image MIME type,
// defaulting to JPEG like the upstream API expects.
func MIMEType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return "image/png"
	case ".webp":
		return "image/webp"
	default:
		return "image/jpeg"
	}
}

// Files stores artifacts and temporary uploads.
type Files struct {
	imagesDir  string
	uploadsDir string
	logger     zerolog.Logger
}

// New creates the storage directories if needed.
func New(imagesDir, uploadsDir string, logger zerolog.Logger) (*Files, error) {
	for _, dir := range []string{imagesDir, uploadsDir} {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("create storage dir %s: %w", dir, err)
		}
	}
	return &Files{
		imagesDir:  imagesDir,
		uploadsDir: uploadsDir,
		logger:     logger.With().Str("component", "storage").Logger(),
	}, nil
}

// ─── Artifacts ──────────────────────────────────────────────────────────────

// SaveArtifact writes generated image bytes and returns the bare
// filename recorded in the task result.
func (f *Files) SaveArtifact(taskID string, data []byte) (string, error) {
	name := fmt.Sprintf("%s_%s.png", taskID, uuid.NewString()[:8])
	if err := os.WriteFile(filepath.Join(f.imagesDir, name), data, 0600); err != nil {
		return "", fmt.Errorf("write artifact: %w", err)
	}
	return name, nil
}

// ArtifactPath resolves a stored filename, rejecting path traversal.
func (f *Files) ArtifactPath(name string) (string, error) {
	if name == "" || name != filepath.Base(name) {
		return "", domain.ErrImageNotFound
	}
	path := filepath.Join(f.imagesDir, name)
	if _, err := os.Stat(path); err != nil {
		return "", domain.ErrImageNotFound
	}
	return path, nil
}

// DeleteArtifact removes a generated image; missing files are ignored.
func (f *Files) DeleteArtifact(name string) {
	if name == "" || name != filepath.Base(name) {
		return
	}
	if err := os.Remove(filepath.Join(f.imagesDir, name)); err != nil && !os.IsNotExist(err) {
		f.logger.Warn().Err(err).Str("file", name).Msg("failed to delete artifact")
	}
}

// DeleteTaskArtifacts cascades over a task's successful results.
func (f *Files) DeleteTaskArtifacts(task *domain.Task) {
	for _, r := range task.Results {
		if r.Status == domain.ResultSuccess && r.Filename != "" {
			f.DeleteArtifact(r.Filename)
		}
	}
}

// ZipArtifacts bundles the task's successful images into w. Entry
// names are derived from the prompt so the archive is self-describing.
// Returns the number of images written.
func (f *Files) ZipArtifacts(task *domain.Task, w io.Writer) (int, error) {
	zw := zip.NewWriter(w)
	count := 0
	for i, r := range task.Results {
		if r.Status != domain.ResultSuccess || r.Filename == "" {
			continue
		}
		path, err := f.ArtifactPath(r.Filename)
		if err != nil {
			continue
		}
		entry := fmt.Sprintf("%s_%d_%s", sanitizeName(r.Prompt), i+1, r.Filename)
		if err := addZipEntry(zw, path, entry); err != nil {
			zw.Close()
			return count, err
		}
		count++
	}
	if err := zw.Close(); err != nil {
		return count, fmt.Errorf("finalize zip: %w", err)
	}
	return count, nil
}

func addZipEntry(zw *zip.Writer, path, name string) error {
	src, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer src.Close()

	dst, err := zw.Create(name)
	if err != nil {
		return fmt.Errorf("create zip entry: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("copy zip entry: %w", err)
	}
	return nil
}

// sanitizeName keeps alphanumerics, spaces, dashes and underscores,
// then trims to a sane length for a filename.
func sanitizeName(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == ' ', r == '-', r == '_':
			b.WriteRune(r)
		}
	}
	out := strings.TrimSpace(b.String())
	if len(out) > 60 {
		out = out[:60]
	}
	if out == "" {
		out = "image"
	}
	return out
}

// ─── Reference uploads ──────────────────────────────────────────────────────

// SaveUpload stores an uploaded reference image and returns its full
// path (handed back to the client and later attached to a task).
func (f *Files) SaveUpload(originalName string, r io.Reader) (string, error) {
	ext := strings.ToLower(filepath.Ext(originalName))
	if !allowedExtensions[ext] {
		return "", domain.ErrUnsupportedImage
	}

	name := fmt.Sprintf("%s_%s%s", time.Now().Format("20060102_150405"), uuid.NewString()[:8], ext)
	path := filepath.Join(f.uploadsDir, name)

	dst, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create upload: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, r); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("write upload: %w", err)
	}
	return path, nil
}

// ValidUpload reports whether path is an existing file inside the
// uploads directory. Task creation rejects anything else.
func (f *Files) ValidUpload(path string) bool {
	if path == "" {
		return false
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	dir, err := filepath.Abs(f.uploadsDir)
	if err != nil {
		return false
	}
	if !strings.HasPrefix(abs, dir+string(os.PathSeparator)) {
		return false
	}
	info, err := os.Stat(abs)
	return err == nil && info.Mode().IsRegular()
}

// DeleteUpload removes a temporary reference image once its task is done.
func (f *Files) DeleteUpload(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		f.logger.Warn().Err(err).Str("file", path).Msg("failed to delete upload")
	}
}

// CleanupUploads empties the uploads directory. Called at daemon
// startup; anything left over belongs to a previous run.
func (f *Files) CleanupUploads() {
	entries, err := os.ReadDir(f.uploadsDir)
	if err != nil {
		return
	}
	for _, e := range entries {
		if err := os.Remove(filepath.Join(f.uploadsDir, e.Name())); err != nil {
			f.logger.Warn().Err(err).Str("file", e.Name()).Msg("failed to clean upload")
		}
	}
	if len(entries) > 0 {
		f.logger.Info().Int("removed", len(entries)).Msg("cleaned leftover uploads")
	}
}
