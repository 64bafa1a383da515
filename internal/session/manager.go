package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/kdimtricp/brokeshot/internal/models"
)

// Manager keeps the sessions started by a long running process so they can
// be polled by ID.
type Manager struct {
	deps       Deps
	baseCtx    context.Context
	sessions   map[string]*Session
	sessionsMu sync.RWMutex
}

// NewManager creates a manager whose flows outlive the request that started
// them. They end when ctx does.
func NewManager(ctx context.Context, deps Deps) *Manager {
	return &Manager{
		deps:     deps,
		baseCtx:  ctx,
		sessions: make(map[string]*Session),
	}
}

func (m *Manager) Start(capture models.ShotCapture) (*Session, error) {
	s := New(capture, m.deps)

	m.sessionsMu.Lock()
	m.sessions[s.ID] = s
	m.sessionsMu.Unlock()

	if err := s.Start(m.baseCtx); err != nil {
		m.Remove(s.ID)
		return nil, fmt.Errorf("starting session: %w", err)
	}

	log.Info().
		Str("session", s.ID).
		Str("video", capture.Video.String()).
		Time("captured_at", capture.CapturedAt).
		Msg("Analysis session started")

	return s, nil
}

func (m *Manager) Get(id string) (*Session, bool) {
	m.sessionsMu.RLock()
	defer m.sessionsMu.RUnlock()

	s, ok := m.sessions[id]
	return s, ok
}

func (m *Manager) Remove(id string) {
	m.sessionsMu.Lock()
	defer m.sessionsMu.Unlock()
	delete(m.sessions, id)
}

// OnFailure calls fn once s has failed and both of its operations have
// returned, so nothing is still reading the capture's video. fn is not called
// when s succeeds or the manager's context ends first.
func (m *Manager) OnFailure(s *Session, fn func()) {
	go func() {
		for _, ch := range []<-chan struct{}{s.Done(), s.Settled()} {
			select {
			case <-ch:
			case <-m.baseCtx.Done():
				return
			}
		}
		if s.State().Status == Failed {
			fn()
		}
	}()
}
