// Package session drives one shot analysis flow from Idle to a terminal state.
package session

import (
	"context"
	"errors"
	"image"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/kdimtricp/brokeshot/internal/database"
	"github.com/kdimtricp/brokeshot/internal/dispatch"
	"github.com/kdimtricp/brokeshot/internal/models"
)

var (
	ErrAlreadyStarted = errors.New("session already started")
	ErrNoVideo        = errors.New("capture has no video")
)

type Analyzer interface {
	Submit(ctx context.Context, video models.VideoReference) (*models.AnalysisResult, error)
}

// FrameSource returns nil when no preview can be produced.
type FrameSource interface {
	MiddleFrame(ctx context.Context, video models.VideoReference) image.Image
}

// History is the store of completed analyses. FindByCapture returns
// database.ErrNotFound on a miss.
type History interface {
	FindByCapture(ctx context.Context, capture models.ShotCapture) (*models.ScoredCapture, error)
	Append(ctx context.Context, capture models.ShotCapture, result models.AnalysisResult) (*models.ScoredCapture, error)
}

type Deps struct {
	Analyzer Analyzer
	Frames   FrameSource
	History  History
	// Main is the serialized context every transition and history write runs on.
	Main dispatch.Executor
}

type Session struct {
	ID      string
	Capture models.ShotCapture

	deps    Deps
	started atomic.Bool

	mu    sync.RWMutex
	state State

	// recorded is only touched on the main executor.
	recorded bool

	done    chan struct{}
	settled chan struct{}
}

func New(capture models.ShotCapture, deps Deps) *Session {
	return &Session{
		ID:      uuid.New().String(),
		Capture: capture,
		deps:    deps,
		state:   State{Status: Idle},
		done:    make(chan struct{}),
		settled: make(chan struct{}),
	}
}

// Start begins the flow. A session runs at most once; later calls return
// ErrAlreadyStarted. A capture without a video is rejected with ErrNoVideo.
func (s *Session) Start(ctx context.Context) error {
	if s.Capture.Video.IsZero() {
		return ErrNoVideo
	}
	if !s.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}

	startedAt := time.Now()
	s.deps.Main.Post(func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.state.Status = Loading
		s.state.StartedAt = startedAt
	})

	go s.run(ctx)
	return nil
}

// State returns a snapshot safe to read from any goroutine.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Done is closed once the session reaches Succeeded or Failed.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Settled is closed once the extractor and the service call have both
// returned. Their final updates may still be queued on the main executor.
func (s *Session) Settled() <-chan struct{} {
	return s.settled
}

// Wait blocks until the session is terminal or ctx ends.
func (s *Session) Wait(ctx context.Context) (State, error) {
	select {
	case <-s.done:
		return s.State(), nil
	case <-ctx.Done():
		return s.State(), ctx.Err()
	}
}

func (s *Session) run(ctx context.Context) {
	defer close(s.settled)

	logger := log.With().Str("session", s.ID).Str("capture", s.Capture.Video.String()).Logger()
	video := s.Capture.Video

	cached, err := s.deps.History.FindByCapture(ctx, s.Capture)
	if err != nil {
		if !errors.Is(err, database.ErrNotFound) {
			logger.Warn().Err(err).Msg("History lookup failed, analyzing again")
		}
		cached = nil
	}

	if cached != nil {
		logger.Debug().Int("score", cached.Result.OverallScore).Msg("Using stored result")
		preview := s.deps.Frames.MiddleFrame(ctx, video)
		result := cached.Result
		s.deps.Main.Post(func() {
			s.succeed(&result, preview, true)
		})
		return
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		preview := s.deps.Frames.MiddleFrame(gctx, video)
		if preview == nil {
			return nil
		}
		s.deps.Main.Post(func() {
			s.attachPreview(preview)
		})
		return nil
	})

	g.Go(func() error {
		result, err := s.deps.Analyzer.Submit(gctx, video)
		if err != nil {
			logger.Error().Err(err).Msg("Analysis failed")
			s.deps.Main.Post(func() {
				s.fail(err)
			})
			return err
		}
		// The history write lands before Succeeded becomes visible.
		s.deps.Main.Post(func() {
			if s.State().Status != Loading {
				return
			}
			s.record(ctx, *result)
			s.succeed(result, nil, false)
		})
		return nil
	})

	g.Wait()
}

// The methods below run on the main executor only.

func (s *Session) attachPreview(preview image.Image) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Status == Failed {
		return
	}
	s.state.Preview = preview
}

func (s *Session) succeed(result *models.AnalysisResult, preview image.Image, cached bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Status != Loading {
		return
	}

	now := time.Now()
	s.state.Status = Succeeded
	s.state.Result = result
	s.state.Cached = cached
	s.state.CompletedAt = &now
	if preview != nil {
		s.state.Preview = preview
	}
	close(s.done)
}

func (s *Session) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Status != Loading {
		return
	}

	now := time.Now()
	s.state.Status = Failed
	s.state.Err = err.Error()
	s.state.Preview = nil
	s.state.CompletedAt = &now
	close(s.done)
}

func (s *Session) record(ctx context.Context, result models.AnalysisResult) {
	if s.recorded {
		return
	}
	s.recorded = true

	scored, err := s.deps.History.Append(ctx, s.Capture, result)
	if err != nil {
		if errors.Is(err, database.ErrAlreadyRecorded) {
			log.Debug().Str("session", s.ID).Msg("Capture already recorded")
			return
		}
		log.Error().Err(err).Str("session", s.ID).Msg("Failed to record analysis")
		return
	}
	log.Info().
		Str("session", s.ID).
		Str("history_id", scored.ID).
		Int("score", result.OverallScore).
		Msg("Analysis recorded")
}
