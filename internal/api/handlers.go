package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/hlog"

	"github.com/kdimtricp/brokeshot/internal/database"
	"github.com/kdimtricp/brokeshot/internal/frames"
	"github.com/kdimtricp/brokeshot/internal/models"
	"github.com/kdimtricp/brokeshot/internal/scoring"
	"github.com/kdimtricp/brokeshot/internal/session"
	"github.com/kdimtricp/brokeshot/internal/storage"
)

// HistoryReader is the read side of the history store.
type HistoryReader interface {
	ListAll(ctx context.Context) ([]models.ScoredCapture, error)
	GetByID(ctx context.Context, id string) (*models.ScoredCapture, error)
}

const multipartOverhead = 1 << 20

type App struct {
	Library       storage.Library
	History       HistoryReader
	Sessions      *session.Manager
	MaxUploadSize int64
}

func PingHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("pong"))
}

func GuidelinesHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintln(w, "Upload Guidelines for Best Results:")
	for i, g := range models.UploadGuidelines {
		fmt.Fprintf(w, "%d. %s\n", i+1, g)
	}
}

type analysisView struct {
	ID          string                 `json:"id"`
	Status      session.Status         `json:"status"`
	Capture     models.ShotCapture     `json:"capture"`
	Error       string                 `json:"error,omitempty"`
	Result      *models.AnalysisResult `json:"result,omitempty"`
	Report      *scoring.Report        `json:"report,omitempty"`
	Cached      bool                   `json:"cached"`
	HasPreview  bool                   `json:"has_preview"`
	StartedAt   time.Time              `json:"started_at"`
	CompletedAt *time.Time             `json:"completed_at,omitempty"`
}

func newAnalysisView(s *session.Session) analysisView {
	state := s.State()
	view := analysisView{
		ID:          s.ID,
		Status:      state.Status,
		Capture:     s.Capture,
		Error:       state.Err,
		Result:      state.Result,
		Cached:      state.Cached,
		HasPreview:  state.Preview != nil,
		StartedAt:   state.StartedAt,
		CompletedAt: state.CompletedAt,
	}
	if state.Result != nil {
		report := scoring.NewReport(state.Result.OverallScore)
		view.Report = &report
	}
	return view
}

type historyView struct {
	models.ScoredCapture
	Report scoring.Report `json:"report"`
}

func newHistoryView(sc models.ScoredCapture) historyView {
	return historyView{ScoredCapture: sc, Report: scoring.NewReport(sc.Result.OverallScore)}
}

func (app *App) CreateAnalysisHandler(w http.ResponseWriter, r *http.Request) {
	// The limit applies to the video; the multipart framing gets some headroom.
	r.Body = http.MaxBytesReader(w, r.Body, app.MaxUploadSize+multipartOverhead)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, app.tooLargeDetail())
			return
		}
		writeError(w, http.StatusBadRequest, "Invalid multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("video")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to get file")
		return
	}
	defer file.Close()

	if header.Size > app.MaxUploadSize {
		writeError(w, http.StatusRequestEntityTooLarge, app.tooLargeDetail())
		return
	}

	video, err := app.Library.Save(file, storage.FileInfo{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
	})
	if err != nil {
		if errors.Is(err, storage.ErrUnsupportedFormat) {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("Unsupported file type. Allowed: %s", strings.Join(storage.AcceptedExtensions, ", ")))
			return
		}
		hlog.FromRequest(r).Error().Err(err).Msg("Failed to save upload")
		writeError(w, http.StatusInternalServerError, "Failed to save file")
		return
	}

	s, ok := app.startSession(w, r, models.NewShotCapture(video))
	if !ok {
		app.discard(r, video)
		return
	}
	// A failed upload never reaches the history, so its copy is dropped.
	app.Sessions.OnFailure(s, func() { app.discard(r, video) })
}

func (app *App) discard(r *http.Request, video models.VideoReference) {
	logger := hlog.FromRequest(r)
	if err := app.Library.Delete(video); err != nil {
		logger.Warn().Err(err).Str("path", video.Path).Msg("Failed to discard upload")
		return
	}
	logger.Debug().Str("path", video.Path).Msg("Discarded upload of failed analysis")
}

// ReopenHistoryHandler starts a new flow for a capture already in the history.
// The stored result is reused and only the preview is extracted again.
func (app *App) ReopenHistoryHandler(w http.ResponseWriter, r *http.Request) {
	scored, ok := app.lookupHistory(w, r)
	if !ok {
		return
	}
	app.startSession(w, r, scored.Capture)
}

func (app *App) startSession(w http.ResponseWriter, r *http.Request, capture models.ShotCapture) (*session.Session, bool) {
	s, err := app.Sessions.Start(capture)
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("Failed to start analysis")
		writeError(w, http.StatusInternalServerError, "Failed to start analysis")
		return nil, false
	}

	w.Header().Set("Location", "/analyses/"+s.ID)
	writeJSON(w, http.StatusAccepted, map[string]string{"id": s.ID})
	return s, true
}

func (app *App) GetAnalysisHandler(w http.ResponseWriter, r *http.Request) {
	s, ok := app.Sessions.Get(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "Analysis not found")
		return
	}
	writeJSON(w, http.StatusOK, newAnalysisView(s))
}

// AnalysisEventsHandler streams the analysis state as server-sent events
// until it is terminal.
func (app *App) AnalysisEventsHandler(w http.ResponseWriter, r *http.Request) {
	s, ok := app.Sessions.Get(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "Analysis not found")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "Streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	send := func() {
		data, _ := json.Marshal(newAnalysisView(s))
		fmt.Fprintf(w, "event: state\ndata: %s\n\n", data)
		flusher.Flush()
	}

	send()
	select {
	case <-s.Done():
		send()
	case <-r.Context().Done():
	}
}

func (app *App) PreviewHandler(w http.ResponseWriter, r *http.Request) {
	s, ok := app.Sessions.Get(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "Analysis not found")
		return
	}

	preview := s.State().Preview
	if preview == nil {
		writeError(w, http.StatusNotFound, "No preview available")
		return
	}

	data, err := frames.EncodeJPEG(preview)
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("Failed to encode preview")
		writeError(w, http.StatusInternalServerError, "Failed to encode preview")
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Write(data)
}

func (app *App) ListHistoryHandler(w http.ResponseWriter, r *http.Request) {
	shots, err := app.History.ListAll(r.Context())
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("Failed to list history")
		writeError(w, http.StatusInternalServerError, "Error loading history")
		return
	}

	views := make([]historyView, 0, len(shots))
	for _, sc := range shots {
		views = append(views, newHistoryView(sc))
	}
	writeJSON(w, http.StatusOK, views)
}

func (app *App) GetHistoryHandler(w http.ResponseWriter, r *http.Request) {
	scored, ok := app.lookupHistory(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, newHistoryView(*scored))
}

func (app *App) lookupHistory(w http.ResponseWriter, r *http.Request) (*models.ScoredCapture, bool) {
	scored, err := app.History.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Shot not found")
			return nil, false
		}
		hlog.FromRequest(r).Error().Err(err).Msg("Failed to load shot")
		writeError(w, http.StatusInternalServerError, "Error loading shot")
		return nil, false
	}
	return scored, true
}

func (app *App) tooLargeDetail() string {
	return fmt.Sprintf("File too large. Max size: %dMB", app.MaxUploadSize/(1024*1024))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
