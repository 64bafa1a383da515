package storage

import (
	"errors"
	"io"
	"path/filepath"
	"strings"

	"github.com/kdimtricp/brokeshot/internal/models"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported video format")
	ErrNotInLibrary      = errors.New("video is not in the library")
)

// AcceptedExtensions are the containers the analysis service can decode.
var AcceptedExtensions = []string{".mp4", ".mov", ".avi", ".mkv"}

type FileInfo struct {
	Filename    string
	ContentType string
	Size        int64
}

// Library owns the videos that have been picked for analysis.
type Library interface {
	Save(r io.Reader, info FileInfo) (models.VideoReference, error)
	Import(path string) (models.VideoReference, error)
	Delete(video models.VideoReference) error
}

// IsVideoFile reports whether name has an accepted video extension.
func IsVideoFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, accepted := range AcceptedExtensions {
		if ext == accepted {
			return true
		}
	}
	return false
}
