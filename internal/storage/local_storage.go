package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/kdimtricp/brokeshot/internal/models"
)

type LocalLibrary struct {
	basePath string
}

func NewLocalLibrary(basePath string) (*LocalLibrary, error) {
	abs, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve library path: %w", err)
	}
	if err := os.MkdirAll(abs, 0755); err != nil {
		return nil, fmt.Errorf("failed to create library directory: %w", err)
	}
	return &LocalLibrary{basePath: abs}, nil
}

func (l *LocalLibrary) BasePath() string {
	return l.basePath
}

// Save copies r into the library under a fresh uuid name that keeps the
// original extension.
func (l *LocalLibrary) Save(r io.Reader, info FileInfo) (models.VideoReference, error) {
	if !IsVideoFile(info.Filename) {
		return models.VideoReference{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(info.Filename))
	}

	filename := uuid.New().String() + strings.ToLower(filepath.Ext(info.Filename))
	fullPath := filepath.Join(l.basePath, filename)

	dst, err := os.Create(fullPath)
	if err != nil {
		return models.VideoReference{}, fmt.Errorf("failed to create file: %w", err)
	}
	defer dst.Close()

	n, err := io.Copy(dst, r)
	if err != nil {
		os.Remove(fullPath)
		return models.VideoReference{}, fmt.Errorf("failed to save file: %w", err)
	}

	log.Debug().Str("path", fullPath).Int64("bytes", n).Str("original", info.Filename).Msg("Saved video to library")
	return models.NewVideoReference(fullPath), nil
}

// Import copies a video from anywhere on disk into the library.
func (l *LocalLibrary) Import(path string) (models.VideoReference, error) {
	src, err := os.Open(path)
	if err != nil {
		return models.VideoReference{}, fmt.Errorf("failed to open video: %w", err)
	}
	defer src.Close()

	stat, err := src.Stat()
	if err != nil {
		return models.VideoReference{}, fmt.Errorf("failed to stat video: %w", err)
	}

	return l.Save(src, FileInfo{Filename: filepath.Base(path), Size: stat.Size()})
}

// Delete removes a video the library owns. Videos outside the library are
// never touched.
func (l *LocalLibrary) Delete(video models.VideoReference) error {
	fullPath, err := l.resolve(video.Path)
	if err != nil {
		return err
	}

	if err := os.Remove(fullPath); err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	log.Debug().Str("path", fullPath).Msg("Deleted video from library")
	return nil
}

// resolve maps a path inside the library, absolute or relative to it, onto
// its absolute location.
func (l *LocalLibrary) resolve(path string) (string, error) {
	if filepath.IsAbs(path) {
		rel, err := filepath.Rel(l.basePath, path)
		if err != nil {
			return "", fmt.Errorf("%w: %s", ErrNotInLibrary, path)
		}
		path = rel
	}
	cleanPath := filepath.Clean(path)
	if cleanPath == "." || strings.HasPrefix(cleanPath, "..") || filepath.IsAbs(cleanPath) {
		return "", fmt.Errorf("%w: %s", ErrNotInLibrary, path)
	}
	return filepath.Join(l.basePath, cleanPath), nil
}
