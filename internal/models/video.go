package models

import (
	"path/filepath"
	"time"
)

// VideoReference points at a local video file. It is never mutated once created.
type VideoReference struct {
	Path string `json:"path"`
}

// NewVideoReference cleans path. An empty path gives the zero reference.
func NewVideoReference(path string) VideoReference {
	if path == "" {
		return VideoReference{}
	}
	return VideoReference{Path: filepath.Clean(path)}
}

func (v VideoReference) String() string {
	return v.Path
}

// IsZero reports whether v points at no file.
func (v VideoReference) IsZero() bool {
	return v.Path == ""
}

// ShotCapture is one recorded attempt submitted for analysis.
type ShotCapture struct {
	CapturedAt time.Time      `json:"captured_at"`
	Video      VideoReference `json:"video"`
}

func NewShotCapture(video VideoReference) ShotCapture {
	return ShotCapture{
		CapturedAt: time.Now().UTC(),
		Video:      video,
	}
}
