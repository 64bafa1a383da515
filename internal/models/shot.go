package models

// Phase identifies one judged component of a jumpshot.
type Phase string

const (
	PhaseShotPocket    Phase = "shot_pocket"
	PhaseSetPoint      Phase = "set_point"
	PhaseFollowThrough Phase = "follow_through"
)

// Phases lists the three phases in shooting order.
var Phases = []Phase{PhaseShotPocket, PhaseSetPoint, PhaseFollowThrough}

type PhaseResult struct {
	PredictedLabel  *int     `json:"prediction"`
	Confidence      float64  `json:"confidence"`
	PhaseName       *string  `json:"phase"`
	PhaseConfidence *float64 `json:"phase_confidence"`
}

type PhaseResults struct {
	ShotPocket    PhaseResult `json:"shot_pocket"`
	SetPoint      PhaseResult `json:"set_point"`
	FollowThrough PhaseResult `json:"follow_through"`
}

func (p PhaseResults) Get(phase Phase) (PhaseResult, bool) {
	switch phase {
	case PhaseShotPocket:
		return p.ShotPocket, true
	case PhaseSetPoint:
		return p.SetPoint, true
	case PhaseFollowThrough:
		return p.FollowThrough, true
	}
	return PhaseResult{}, false
}

// AnalysisResult is the decoded response of one successful analysis call.
type AnalysisResult struct {
	OverallScore      int          `json:"score"`
	IsBroke           bool         `json:"is_broke"`
	MaxScore          int          `json:"max_score"`
	DiagnosticMessage string       `json:"message"`
	ServerTimestamp   string       `json:"timestamp"`
	PerPhase          PhaseResults `json:"phases"`
}

// ScoredCapture is the unit stored in the history.
type ScoredCapture struct {
	ID      string         `json:"id"`
	Capture ShotCapture    `json:"capture"`
	Result  AnalysisResult `json:"result"`
}
