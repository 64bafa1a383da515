package analysis

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kdimtricp/brokeshot/internal/models"
)

// field records whether a key was present and whether it was null, which
// encoding/json cannot tell apart on its own.
type field[T any] struct {
	set  bool
	null bool
	v    T
}

func (f *field[T]) UnmarshalJSON(b []byte) error {
	f.set = true
	if string(b) == "null" {
		f.null = true
		return nil
	}
	return json.Unmarshal(b, &f.v)
}

func (f field[T]) ptr() *T {
	if !f.set || f.null {
		return nil
	}
	v := f.v
	return &v
}

type analyzeResponse struct {
	Score     field[int]            `json:"score"`
	IsBroke   field[bool]           `json:"is_broke"`
	MaxScore  field[int]            `json:"max_score"`
	Message   field[string]         `json:"message"`
	Timestamp field[string]         `json:"timestamp"`
	Phases    field[analyzedPhases] `json:"phases"`
}

type analyzedPhases struct {
	ShotPocket    field[analyzedPhase] `json:"shot_pocket"`
	SetPoint      field[analyzedPhase] `json:"set_point"`
	FollowThrough field[analyzedPhase] `json:"follow_through"`
}

type analyzedPhase struct {
	Prediction      field[int]     `json:"prediction"`
	Confidence      field[float64] `json:"confidence"`
	Phase           field[string]  `json:"phase"`
	PhaseName       field[string]  `json:"phase_name"`
	PhaseConfidence field[float64] `json:"phase_confidence"`
}

type errorResponse struct {
	Detail json.RawMessage `json:"detail"`
}

type missingFields []string

func (m *missingFields) value(name string, set, null bool) {
	if !set || null {
		*m = append(*m, name)
	}
}

func decodeResponse(body []byte) (*models.AnalysisResult, error) {
	var resp analyzeResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode analysis response: %w", err)
	}

	var missing missingFields
	missing.value("score", resp.Score.set, resp.Score.null)
	missing.value("is_broke", resp.IsBroke.set, resp.IsBroke.null)
	missing.value("max_score", resp.MaxScore.set, resp.MaxScore.null)
	missing.value("message", resp.Message.set, resp.Message.null)
	missing.value("timestamp", resp.Timestamp.set, resp.Timestamp.null)
	missing.value("phases", resp.Phases.set, resp.Phases.null)

	var phases models.PhaseResults
	if p := resp.Phases.ptr(); p != nil {
		phases.ShotPocket = decodePhase("phases.shot_pocket", p.ShotPocket, &missing)
		phases.SetPoint = decodePhase("phases.set_point", p.SetPoint, &missing)
		phases.FollowThrough = decodePhase("phases.follow_through", p.FollowThrough, &missing)
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("analysis response missing required fields: %s", strings.Join(missing, ", "))
	}

	return &models.AnalysisResult{
		OverallScore:      resp.Score.v,
		IsBroke:           resp.IsBroke.v,
		MaxScore:          resp.MaxScore.v,
		DiagnosticMessage: resp.Message.v,
		ServerTimestamp:   resp.Timestamp.v,
		PerPhase:          phases,
	}, nil
}

func decodePhase(name string, f field[analyzedPhase], missing *missingFields) models.PhaseResult {
	missing.value(name, f.set, f.null)
	if !f.set || f.null {
		return models.PhaseResult{}
	}

	// prediction, phase and phase_confidence are nullable and may be omitted.
	p := f.v
	missing.value(name+".confidence", p.Confidence.set, p.Confidence.null)

	phaseName := p.Phase.ptr()
	if phaseName == nil {
		phaseName = p.PhaseName.ptr()
	}

	return models.PhaseResult{
		PredictedLabel:  p.Prediction.ptr(),
		Confidence:      p.Confidence.v,
		PhaseName:       phaseName,
		PhaseConfidence: p.PhaseConfidence.ptr(),
	}
}

// errorDetail extracts FastAPI's {"detail": ...} message from an error body.
func errorDetail(body []byte) string {
	var resp errorResponse
	if err := json.Unmarshal(body, &resp); err == nil && len(resp.Detail) > 0 {
		var s string
		if err := json.Unmarshal(resp.Detail, &s); err == nil {
			return s
		}
		return string(resp.Detail)
	}
	return strings.TrimSpace(string(body))
}
