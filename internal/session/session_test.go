package session

import (
	"context"
	"errors"
	"image"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kdimtricp/brokeshot/internal/analysis"
	"github.com/kdimtricp/brokeshot/internal/database"
	"github.com/kdimtricp/brokeshot/internal/dispatch"
	"github.com/kdimtricp/brokeshot/internal/models"
	"github.com/kdimtricp/brokeshot/internal/scoring"
)

type mockAnalyzer struct {
	result *models.AnalysisResult
	err    error
	calls  atomic.Int32
}

func (m *mockAnalyzer) Submit(ctx context.Context, video models.VideoReference) (*models.AnalysisResult, error) {
	m.calls.Add(1)
	if m.err != nil {
		return nil, m.err
	}
	r := *m.result
	return &r, nil
}

type mockFrames struct {
	img     image.Image
	release chan struct{}
	calls   atomic.Int32
}

func (m *mockFrames) MiddleFrame(ctx context.Context, video models.VideoReference) image.Image {
	m.calls.Add(1)
	if m.release != nil {
		<-m.release
	}
	return m.img
}

type mockHistory struct {
	mu      sync.Mutex
	entries []models.ScoredCapture
	findErr error
}

func (m *mockHistory) FindByCapture(ctx context.Context, capture models.ShotCapture) (*models.ScoredCapture, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findErr != nil {
		return nil, m.findErr
	}
	for _, e := range m.entries {
		if e.Capture.CapturedAt.Equal(capture.CapturedAt) && e.Capture.Video == capture.Video {
			e := e
			return &e, nil
		}
	}
	return nil, database.ErrNotFound
}

func (m *mockHistory) Append(ctx context.Context, capture models.ShotCapture, result models.AnalysisResult) (*models.ScoredCapture, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sc := models.ScoredCapture{ID: "h" + capture.Video.Path, Capture: capture, Result: result}
	m.entries = append(m.entries, sc)
	return &sc, nil
}

func (m *mockHistory) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func pureResult() *models.AnalysisResult {
	label := 1
	return &models.AnalysisResult{
		OverallScore:      9,
		MaxScore:          9,
		DiagnosticMessage: "pure",
		ServerTimestamp:   "t",
		PerPhase: models.PhaseResults{
			ShotPocket:    models.PhaseResult{PredictedLabel: &label, Confidence: 0.9},
			SetPoint:      models.PhaseResult{PredictedLabel: &label, Confidence: 0.9},
			FollowThrough: models.PhaseResult{PredictedLabel: &label, Confidence: 0.9},
		},
	}
}

func testImage() image.Image {
	return image.NewRGBA(image.Rect(0, 0, 4, 4))
}

// startQueue runs a main queue for the duration of the test.
func startQueue(t *testing.T) *dispatch.Queue {
	t.Helper()
	q := dispatch.NewQueue()
	stop := q.Start(context.Background())
	t.Cleanup(stop)
	return q
}

func waitTerminal(t *testing.T, s *Session) State {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	state, err := s.Wait(ctx)
	if err != nil {
		t.Fatalf("session did not finish: %v", err)
	}
	return state
}

// settle waits for every goroutine of the flow and drains what they posted.
func settle(t *testing.T, s *Session, q *dispatch.Queue) State {
	t.Helper()
	select {
	case <-s.settled:
	case <-time.After(5 * time.Second):
		t.Fatal("session goroutines did not finish")
	}
	if err := q.Do(context.Background(), func() {}); err != nil {
		t.Fatalf("failed to flush queue: %v", err)
	}
	return s.State()
}

func TestColdFlowSuccess(t *testing.T) {
	q := startQueue(t)
	analyzer := &mockAnalyzer{result: pureResult()}
	frames := &mockFrames{img: testImage()}
	history := &mockHistory{}

	capture := models.NewShotCapture(models.NewVideoReference("shot.mp4"))
	s := New(capture, Deps{Analyzer: analyzer, Frames: frames, History: history, Main: q})

	if s.State().Status != Idle {
		t.Fatalf("expected Idle before start, got %s", s.State().Status)
	}
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	state := waitTerminal(t, s)
	if state.Status != Succeeded {
		t.Fatalf("expected Succeeded, got %s (%s)", state.Status, state.Err)
	}
	if state.Result == nil || state.Result.OverallScore != 9 {
		t.Errorf("unexpected result: %+v", state.Result)
	}
	if state.Cached {
		t.Error("expected fresh result")
	}

	state = settle(t, s, q)
	if state.Preview == nil {
		t.Error("expected preview to be attached")
	}
	if analyzer.calls.Load() != 1 {
		t.Errorf("expected one submit, got %d", analyzer.calls.Load())
	}
	if history.count() != 1 {
		t.Errorf("expected one history entry, got %d", history.count())
	}
}

func TestColdFlowFailure(t *testing.T) {
	q := startQueue(t)
	analyzer := &mockAnalyzer{err: errors.New("The Internet connection appears to be offline.")}
	history := &mockHistory{}

	s := New(models.NewShotCapture(models.NewVideoReference("shot.mp4")), Deps{
		Analyzer: analyzer,
		Frames:   &mockFrames{img: testImage()},
		History:  history,
		Main:     q,
	})
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	state := waitTerminal(t, s)
	if state.Status != Failed {
		t.Fatalf("expected Failed, got %s", state.Status)
	}
	if state.Err != "The Internet connection appears to be offline." {
		t.Errorf("expected transport description verbatim, got %q", state.Err)
	}
	if state.Result != nil {
		t.Error("expected no result on failure")
	}

	state = settle(t, s, q)
	if state.Preview != nil {
		t.Error("expected preview to be dropped after failure")
	}
	if history.count() != 0 {
		t.Errorf("expected no history entries, got %d", history.count())
	}
}

func TestCacheHitSkipsService(t *testing.T) {
	q := startQueue(t)
	analyzer := &mockAnalyzer{result: pureResult()}
	frames := &mockFrames{img: testImage()}

	capture := models.NewShotCapture(models.NewVideoReference("old.mp4"))
	stored := *pureResult()
	stored.OverallScore = 5
	history := &mockHistory{entries: []models.ScoredCapture{{ID: "1", Capture: capture, Result: stored}}}

	s := New(capture, Deps{Analyzer: analyzer, Frames: frames, History: history, Main: q})
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	state := waitTerminal(t, s)
	if state.Status != Succeeded {
		t.Fatalf("expected Succeeded, got %s", state.Status)
	}
	if state.Result.OverallScore != 5 || !state.Cached {
		t.Errorf("expected cached score 5, got %+v cached=%v", state.Result, state.Cached)
	}
	if state.Preview == nil {
		t.Error("expected preview with cached result")
	}

	settle(t, s, q)
	if analyzer.calls.Load() != 0 {
		t.Errorf("expected no submit on cache hit, got %d", analyzer.calls.Load())
	}
	if frames.calls.Load() != 1 {
		t.Errorf("expected one frame extraction, got %d", frames.calls.Load())
	}
	if history.count() != 1 {
		t.Errorf("expected history unchanged, got %d entries", history.count())
	}
}

func TestExtractionFailureStillSucceeds(t *testing.T) {
	q := startQueue(t)
	history := &mockHistory{}

	s := New(models.NewShotCapture(models.NewVideoReference("shot.mp4")), Deps{
		Analyzer: &mockAnalyzer{result: pureResult()},
		Frames:   &mockFrames{},
		History:  history,
		Main:     q,
	})
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	waitTerminal(t, s)
	state := settle(t, s, q)
	if state.Status != Succeeded || state.Result == nil {
		t.Fatalf("expected Succeeded with a result, got %s", state.Status)
	}
	if state.Preview != nil {
		t.Error("expected no preview")
	}
	if history.count() != 1 {
		t.Errorf("expected one history entry, got %d", history.count())
	}
}

func TestPreviewAfterSuccessIsAttached(t *testing.T) {
	q := startQueue(t)
	frames := &mockFrames{img: testImage(), release: make(chan struct{})}

	s := New(models.NewShotCapture(models.NewVideoReference("shot.mp4")), Deps{
		Analyzer: &mockAnalyzer{result: pureResult()},
		Frames:   frames,
		History:  &mockHistory{},
		Main:     q,
	})
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	state := waitTerminal(t, s)
	if state.Status != Succeeded || state.Preview != nil {
		t.Fatalf("expected Succeeded without preview yet, got %s preview=%v", state.Status, state.Preview != nil)
	}

	close(frames.release)
	state = settle(t, s, q)
	if state.Status != Succeeded {
		t.Errorf("expected Succeeded to be sticky, got %s", state.Status)
	}
	if state.Preview == nil {
		t.Error("expected late preview to attach")
	}
}

func TestHistoryLookupErrorFallsBackToService(t *testing.T) {
	q := startQueue(t)
	analyzer := &mockAnalyzer{result: pureResult()}

	s := New(models.NewShotCapture(models.NewVideoReference("shot.mp4")), Deps{
		Analyzer: analyzer,
		Frames:   &mockFrames{},
		History:  &mockHistory{findErr: errors.New("disk I/O error")},
		Main:     q,
	})
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	state := waitTerminal(t, s)
	if state.Status != Succeeded {
		t.Fatalf("expected Succeeded, got %s", state.Status)
	}
	if analyzer.calls.Load() != 1 {
		t.Errorf("expected one submit, got %d", analyzer.calls.Load())
	}
}

func TestStartTwice(t *testing.T) {
	q := startQueue(t)
	s := New(models.NewShotCapture(models.NewVideoReference("shot.mp4")), Deps{
		Analyzer: &mockAnalyzer{result: pureResult()},
		Frames:   &mockFrames{},
		History:  &mockHistory{},
		Main:     q,
	})

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.Start(context.Background()); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("expected ErrAlreadyStarted, got %v", err)
	}
	waitTerminal(t, s)
	settle(t, s, q)
}

// observingExecutor records the session status after every posted function.
type observingExecutor struct {
	q        *dispatch.Queue
	s        *Session
	statuses []Status
}

func (o *observingExecutor) Post(fn func()) {
	o.q.Post(func() {
		fn()
		o.statuses = append(o.statuses, o.s.State().Status)
	})
}

func TestTransitionsAreMonotonic(t *testing.T) {
	tests := []struct {
		name     string
		analyzer *mockAnalyzer
		want     Status
	}{
		{name: "success", analyzer: &mockAnalyzer{result: pureResult()}, want: Succeeded},
		{name: "failure", analyzer: &mockAnalyzer{err: errors.New("boom")}, want: Failed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := startQueue(t)
			exec := &observingExecutor{q: q}
			s := New(models.NewShotCapture(models.NewVideoReference("shot.mp4")), Deps{
				Analyzer: tt.analyzer,
				Frames:   &mockFrames{img: testImage()},
				History:  &mockHistory{},
				Main:     exec,
			})
			exec.s = s

			if err := s.Start(context.Background()); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			waitTerminal(t, s)
			settle(t, s, q)

			var statuses []Status
			q.Do(context.Background(), func() {
				statuses = append(statuses, exec.statuses...)
			})

			if len(statuses) == 0 || statuses[0] != Loading {
				t.Fatalf("expected first transition to Loading, got %v", statuses)
			}
			for i := 1; i < len(statuses); i++ {
				if statuses[i] < statuses[i-1] {
					t.Fatalf("status went backwards: %v", statuses)
				}
				if statuses[i-1].Terminal() && statuses[i] != statuses[i-1] {
					t.Fatalf("left terminal state: %v", statuses)
				}
			}
			if last := statuses[len(statuses)-1]; last != tt.want {
				t.Errorf("expected final %s, got %s", tt.want, last)
			}
		})
	}
}

func TestEndToEndWithService(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.Write([]byte(`{
			"score": 9, "is_broke": false, "max_score": 9, "message": "pure", "timestamp": "t",
			"phases": {
				"shot_pocket": {"prediction": 1, "confidence": 0.9, "phase": null, "phase_confidence": null},
				"set_point": {"prediction": 1, "confidence": 0.9, "phase": null, "phase_confidence": null},
				"follow_through": {"prediction": 1, "confidence": 0.9, "phase": null, "phase_confidence": null}
			}
		}`))
	}))
	defer server.Close()

	path := filepath.Join(t.TempDir(), "shot.mp4")
	if err := os.WriteFile(path, []byte("video"), 0644); err != nil {
		t.Fatalf("Failed to write video: %v", err)
	}

	q := startQueue(t)
	history := &mockHistory{}
	client := analysis.NewClient(analysis.Config{Endpoint: server.URL + "/analyze"}, server.Client())

	s := New(models.NewShotCapture(models.NewVideoReference(path)), Deps{
		Analyzer: client,
		Frames:   &mockFrames{},
		History:  history,
		Main:     q,
	})
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	state := waitTerminal(t, s)
	if state.Status != Succeeded {
		t.Fatalf("expected Succeeded, got %s (%s)", state.Status, state.Err)
	}

	report := scoring.NewReport(state.Result.OverallScore)
	for _, v := range []scoring.Verdict{report.Overall, report.ShotPocket, report.SetPoint, report.FollowThrough} {
		if v.Message != scoring.LabelPure {
			t.Errorf("expected %s message %q, got %q", v.Channel, scoring.LabelPure, v.Message)
		}
	}

	settle(t, s, q)
	if requests.Load() != 1 {
		t.Errorf("expected one request, got %d", requests.Load())
	}
	if history.count() != 1 {
		t.Fatalf("expected one history entry, got %d", history.count())
	}
	if history.entries[0].Result.OverallScore != 9 {
		t.Errorf("expected stored score 9, got %d", history.entries[0].Result.OverallScore)
	}
}

func TestManager(t *testing.T) {
	q := startQueue(t)
	m := NewManager(context.Background(), Deps{
		Analyzer: &mockAnalyzer{result: pureResult()},
		Frames:   &mockFrames{},
		History:  &mockHistory{},
		Main:     q,
	})

	s, err := m.Start(models.NewShotCapture(models.NewVideoReference("shot.mp4")))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, ok := m.Get(s.ID)
	if !ok || got != s {
		t.Fatalf("expected to find session %s", s.ID)
	}

	waitTerminal(t, s)
	settle(t, s, q)

	m.Remove(s.ID)
	if _, ok := m.Get(s.ID); ok {
		t.Error("expected session to be removed")
	}
}

func TestStartWithoutVideo(t *testing.T) {
	q := startQueue(t)
	analyzer := &mockAnalyzer{result: pureResult()}
	m := NewManager(context.Background(), Deps{
		Analyzer: analyzer,
		Frames:   &mockFrames{},
		History:  &mockHistory{},
		Main:     q,
	})

	if _, err := m.Start(models.NewShotCapture(models.NewVideoReference(""))); !errors.Is(err, ErrNoVideo) {
		t.Fatalf("expected ErrNoVideo, got %v", err)
	}
	if analyzer.calls.Load() != 0 {
		t.Errorf("expected no submit, got %d", analyzer.calls.Load())
	}
}

func TestManagerOnFailure(t *testing.T) {
	tests := []struct {
		name     string
		analyzer *mockAnalyzer
		want     bool
	}{
		{name: "failure", analyzer: &mockAnalyzer{err: errors.New("boom")}, want: true},
		{name: "success", analyzer: &mockAnalyzer{result: pureResult()}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := startQueue(t)
			m := NewManager(context.Background(), Deps{
				Analyzer: tt.analyzer,
				Frames:   &mockFrames{img: testImage()},
				History:  &mockHistory{},
				Main:     q,
			})

			s, err := m.Start(models.NewShotCapture(models.NewVideoReference("shot.mp4")))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			called := make(chan struct{})
			m.OnFailure(s, func() { close(called) })

			waitTerminal(t, s)
			settle(t, s, q)

			select {
			case <-called:
				if !tt.want {
					t.Error("callback ran for a successful flow")
				}
			case <-time.After(200 * time.Millisecond):
				if tt.want {
					t.Error("callback did not run for a failed flow")
				}
			}
		})
	}
}
