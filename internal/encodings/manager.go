package encodings

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/andresmejia3/rollcall/internal/types"
	"github.com/andresmejia3/rollcall/internal/worker"
	"github.com/schollz/progressbar/v3"
)

// Extractor finds faces in an encoded image and returns one descriptor per face.
type Extractor interface {
	Extract(ctx context.Context, image []byte) ([]types.FaceResult, error)
}

// EnrollmentImage is one file from the enrollment directory and the name it enrolls.
type EnrollmentImage struct {
	Name string
	Path string
}

var enrollExtensions = map[string]bool{".png": true, ".jpg": true, ".jpeg": true}

// ListEnrollmentImages returns the image files in dir, named after the file
// without its extension, in directory order.
func ListEnrollmentImages(dir string) ([]EnrollmentImage, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read enrollment directory: %w", err)
	}

	var images []EnrollmentImage
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := filepath.Ext(e.Name())
		if !enrollExtensions[strings.ToLower(ext)] {
			continue
		}
		images = append(images, EnrollmentImage{
			Name: strings.TrimSuffix(e.Name(), ext),
			Path: filepath.Join(dir, e.Name()),
		})
	}
	return images, nil
}

// Manager loads the descriptor cache or rebuilds it from enrollment images.
type Manager struct {
	Path      string
	Extractor Extractor
	Logger    *slog.Logger
	// Progress receives the rebuild progress bar. Nil disables it.
	Progress io.Writer
}

// NewManager returns a manager for the cache at path.
func NewManager(path string, ex Extractor, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Manager{Path: path, Extractor: ex, Logger: logger}
}

// LoadOrBuild returns the cached known set, or rebuilds it from images when
// the cache is absent or corrupt. A corrupt cache file is deleted first.
//
// An empty result is not an error here; callers decide whether it is fatal.
func (m *Manager) LoadOrBuild(ctx context.Context, images []EnrollmentImage) (Cache, error) {
	res := Load(m.Path)
	switch res.Status {
	case OK:
		m.Logger.Info("loaded encodings from cache", "path", m.Path, "identities", res.Cache.Len())
		return res.Cache, nil
	case Corrupt:
		m.Logger.Warn("discarding unreadable encoding cache", "path", m.Path, "error", res.Err)
		if err := os.Remove(m.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
			m.Logger.Warn("failed to delete corrupt cache", "path", m.Path, "error", err)
		}
	}

	c, err := m.Build(ctx, images)
	if err != nil {
		return Cache{}, err
	}

	if c.Len() > 0 {
		if err := Save(m.Path, c); err != nil {
			m.Logger.Warn("failed to persist encoding cache", "path", m.Path, "error", err)
		} else {
			m.Logger.Info("saved encoding cache", "path", m.Path, "identities", c.Len())
		}
	}
	return c, nil
}

// ValidName reports whether name can be written to the attendance ledger,
// whose lines are comma separated.
func ValidName(name string) bool {
	return strings.TrimSpace(name) != "" && !strings.ContainsAny(name, ",\r\n")
}

// Build computes descriptors from images without touching the cache file.
// Images that cannot be read, show no face, have a name the ledger cannot hold
// or that the extractor rejects are skipped with a warning; only the first face
// of each image is kept. Later images whose name repeats an earlier identity
// (case-insensitively) are skipped so names stay unique.
//
// Any other extractor failure aborts the build: the reply stream can no
// longer be trusted to belong to the image that was sent.
func (m *Manager) Build(ctx context.Context, images []EnrollmentImage) (Cache, error) {
	m.Logger.Info("computing face encodings", "images", len(images))

	var bar *progressbar.ProgressBar
	if m.Progress != nil {
		bar = progressbar.NewOptions(len(images),
			progressbar.OptionSetDescription("🧬 Encoding faces"),
			progressbar.OptionSetWriter(m.Progress),
			progressbar.OptionShowCount(),
		)
	}

	var c Cache
	seen := make(map[string]bool, len(images))
	for _, img := range images {
		if bar != nil {
			bar.Add(1)
		}
		if err := ctx.Err(); err != nil {
			return Cache{}, err
		}

		if !ValidName(img.Name) {
			m.Logger.Warn("skipping enrollment image with an invalid name", "name", img.Name, "path", img.Path)
			continue
		}

		key := strings.ToUpper(img.Name)
		if seen[key] {
			m.Logger.Warn("skipping duplicate identity", "name", img.Name, "path", img.Path)
			continue
		}

		data, err := os.ReadFile(img.Path)
		if err != nil {
			m.Logger.Warn("skipping unreadable enrollment image", "name", img.Name, "path", img.Path, "error", err)
			continue
		}

		faces, err := m.Extractor.Extract(ctx, data)
		if err != nil {
			if ctx.Err() != nil {
				return Cache{}, ctx.Err()
			}
			if !errors.Is(err, worker.ErrWorker) {
				return Cache{}, fmt.Errorf("extract %s: %w", img.Path, err)
			}
			m.Logger.Warn("skipping enrollment image the extractor rejected", "name", img.Name, "error", err)
			continue
		}
		if len(faces) == 0 {
			m.Logger.Warn("no face found in enrollment image", "name", img.Name, "path", img.Path)
			continue
		}

		seen[key] = true
		c.Descriptors = append(c.Descriptors, faces[0].Vec)
		c.Names = append(c.Names, img.Name)
	}

	if bar != nil {
		bar.Finish()
	}
	return c, nil
}
