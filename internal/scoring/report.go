package scoring

import "github.com/kdimtricp/brokeshot/internal/models"

// Report collects every channel of one score for display.
type Report struct {
	Score         int     `json:"score"`
	Overall       Verdict `json:"overall"`
	ShotPocket    Verdict `json:"shot_pocket"`
	SetPoint      Verdict `json:"set_point"`
	FollowThrough Verdict `json:"follow_through"`
	Coaching      string  `json:"coaching"`
}

func NewReport(score int) Report {
	return Report{
		Score:         score,
		Overall:       Decode(score, Overall),
		ShotPocket:    Decode(score, ShotPocket),
		SetPoint:      Decode(score, SetPoint),
		FollowThrough: Decode(score, FollowThrough),
		Coaching:      Decode(score, Coaching).Message,
	}
}

// Phase returns the verdict for one phase. Unknown phases never pass.
func (r Report) Phase(phase models.Phase) Verdict {
	switch phase {
	case models.PhaseShotPocket:
		return r.ShotPocket
	case models.PhaseSetPoint:
		return r.SetPoint
	case models.PhaseFollowThrough:
		return r.FollowThrough
	}
	return Verdict{}
}

// BrokePhases names the phases that did not pass, in shooting order.
func (r Report) BrokePhases() []models.Phase {
	var broke []models.Phase
	for _, phase := range models.Phases {
		if !r.Phase(phase).Pass {
			broke = append(broke, phase)
		}
	}
	return broke
}
