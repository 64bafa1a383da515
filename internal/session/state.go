package session

import (
	"image"
	"time"

	"github.com/kdimtricp/brokeshot/internal/models"
)

type Status int

const (
	Idle Status = iota
	Loading
	Succeeded
	Failed
)

func (s Status) String() string {
	switch s {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	}
	return "unknown"
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Terminal reports whether no further transition can happen.
func (s Status) Terminal() bool {
	return s == Succeeded || s == Failed
}

// State is a snapshot of one flow. Result is set only when Succeeded and Err
// only when Failed. Preview may arrive before or after Succeeded.
type State struct {
	Status      Status
	Result      *models.AnalysisResult
	Preview     image.Image
	Err         string
	Cached      bool
	StartedAt   time.Time
	CompletedAt *time.Time
}
