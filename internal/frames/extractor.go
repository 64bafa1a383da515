// Package frames produces still preview images from recorded shot videos.
//
// Extraction never fails loudly: any problem loading the duration or
// decoding the frame is logged and reported as a nil image, which callers
// treat as "no preview available".
package frames

import (
	"bytes"
	"context"
	"image"
	"image/jpeg"
	"math"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/image/draw"

	"github.com/kdimtricp/brokeshot/internal/models"
)

// EndEpsilon keeps seeks strictly before end-of-stream.
const EndEpsilon = 100 * time.Millisecond

// Decoder is the video-asset facility the extractor depends on.
type Decoder interface {
	Duration(ctx context.Context, videoPath string) (time.Duration, error)
	FrameAt(ctx context.Context, videoPath string, at time.Duration) (image.Image, error)
}

// Position is either an absolute timestamp or a 0-1 ratio of the duration.
type Position struct {
	at       time.Duration
	ratio    float64
	relative bool
}

func At(d time.Duration) Position {
	if d < 0 {
		d = 0
	}
	return Position{at: d}
}

func Ratio(r float64) Position {
	switch {
	case r < 0 || math.IsNaN(r):
		r = 0
	case r > 1:
		r = 1
	}
	return Position{ratio: r, relative: true}
}

var (
	First  = Ratio(0)
	Middle = Ratio(0.5)
	Last   = Ratio(1)
)

// Resolve turns the position into a timestamp for a video of the given
// duration. Absolute positions are returned unchanged.
func (p Position) Resolve(duration time.Duration) time.Duration {
	if !p.relative {
		return p.at
	}
	ts := time.Duration(float64(duration) * p.ratio)
	if limit := duration - EndEpsilon; ts > limit {
		ts = max(limit, 0)
	}
	return ts
}

type Extractor struct {
	decoder Decoder
	maxSize int
}

// NewExtractor returns an extractor that downsizes frames so neither edge
// exceeds maxSize pixels. maxSize <= 0 keeps the decoded size.
func NewExtractor(decoder Decoder, maxSize int) *Extractor {
	return &Extractor{decoder: decoder, maxSize: maxSize}
}

func (e *Extractor) ExtractFrame(ctx context.Context, video models.VideoReference, pos Position) image.Image {
	at := pos.at
	if pos.relative {
		duration, err := e.decoder.Duration(ctx, video.Path)
		if err != nil {
			log.Warn().Err(err).Str("video", video.Path).Msg("Error loading duration")
			return nil
		}
		at = pos.Resolve(duration)
	}

	img, err := e.decoder.FrameAt(ctx, video.Path, at)
	if err != nil {
		log.Warn().Err(err).Str("video", video.Path).Dur("at", at).Msg("Error extracting frame")
		return nil
	}
	if img == nil {
		return nil
	}
	return Fit(img, e.maxSize)
}

func (e *Extractor) FirstFrame(ctx context.Context, video models.VideoReference) image.Image {
	return e.ExtractFrame(ctx, video, First)
}

// MiddleFrame is the frame shown as the analysis preview.
func (e *Extractor) MiddleFrame(ctx context.Context, video models.VideoReference) image.Image {
	return e.ExtractFrame(ctx, video, Middle)
}

func (e *Extractor) LastFrame(ctx context.Context, video models.VideoReference) image.Image {
	return e.ExtractFrame(ctx, video, Last)
}

// Fit scales img down, preserving aspect ratio, until both edges are at most
// maxSize. Smaller images are returned as is.
func Fit(img image.Image, maxSize int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if maxSize <= 0 || (w <= maxSize && h <= maxSize) {
		return img
	}

	if w >= h {
		h = max(h*maxSize/w, 1)
		w = maxSize
	} else {
		w = max(w*maxSize/h, 1)
		h = maxSize
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	return dst
}

func EncodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 85}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
