package scoring

import (
	"fmt"
	"slices"
	"testing"

	"pgregory.net/rapid"

	"github.com/kdimtricp/brokeshot/internal/models"
)

func TestDecodeValidScores(t *testing.T) {
	tests := []struct {
		score         int
		overall       bool
		shotPocket    bool
		setPoint      bool
		followThrough bool
	}{
		{score: 0},
		{score: 2, shotPocket: true},
		{score: 3, setPoint: true},
		{score: 4, followThrough: true},
		{score: 5, shotPocket: true, setPoint: true},
		{score: 6, shotPocket: true, followThrough: true},
		{score: 7, setPoint: true, followThrough: true},
		{score: 9, overall: true, shotPocket: true, setPoint: true, followThrough: true},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("score_%d", tt.score), func(t *testing.T) {
			checks := []struct {
				channel Channel
				want    bool
			}{
				{Overall, tt.overall},
				{ShotPocket, tt.shotPocket},
				{SetPoint, tt.setPoint},
				{FollowThrough, tt.followThrough},
			}
			for _, c := range checks {
				v := Decode(tt.score, c.channel)
				if v.Pass != c.want {
					t.Errorf("Decode(%d, %s).Pass = %v, want %v", tt.score, c.channel, v.Pass, c.want)
				}
				wantMsg := LabelBroke
				if c.want {
					wantMsg = LabelPure
				}
				if v.Message != wantMsg {
					t.Errorf("Decode(%d, %s).Message = %q, want %q", tt.score, c.channel, v.Message, wantMsg)
				}
			}

			coaching := Decode(tt.score, Coaching)
			if coaching.Message == FallbackCoaching || coaching.Message == "" {
				t.Errorf("expected coaching text for score %d, got %q", tt.score, coaching.Message)
			}
			if coaching.Pass != tt.overall {
				t.Errorf("coaching pass for %d = %v, want %v", tt.score, coaching.Pass, tt.overall)
			}
		})
	}
}

func TestDecodeInvalidScoresFallBack(t *testing.T) {
	for _, score := range []int{1, 8, -1, 10, 1 << 30} {
		if got := Decode(score, Coaching).Message; got != FallbackCoaching {
			t.Errorf("Decode(%d, Coaching) = %q, want %q", score, got, FallbackCoaching)
		}
		for _, ch := range []Channel{Overall, ShotPocket, SetPoint, FollowThrough} {
			v := Decode(score, ch)
			if v.Pass {
				t.Errorf("Decode(%d, %s) unexpectedly passed", score, ch)
			}
			if v.Message != LabelBroke {
				t.Errorf("Decode(%d, %s) = %q, want %q", score, ch, v.Message, LabelBroke)
			}
		}
	}
}

func TestDecodeUnknownChannel(t *testing.T) {
	v := Decode(9, Channel(42))
	if v.Pass || v.Message != "" {
		t.Errorf("unknown channel decoded to %+v", v)
	}
}

func TestDecorated(t *testing.T) {
	if got := Decode(9, Overall).Decorated(); got != "PURE 💦" {
		t.Errorf("got %q", got)
	}
	if got := Decode(0, SetPoint).Decorated(); got != "BROKE 🧱" {
		t.Errorf("got %q", got)
	}
	if got := Decode(8, Coaching).Decorated(); got != FallbackCoaching {
		t.Errorf("got %q", got)
	}
}

func TestPhasePassSetsMatchBitWeights(t *testing.T) {
	// Pocket, set point and follow through contribute 2, 3 and 4 respectively.
	for _, score := range ValidScores {
		sum := 0
		if Decode(score, ShotPocket).Pass {
			sum += 2
		}
		if Decode(score, SetPoint).Pass {
			sum += 3
		}
		if Decode(score, FollowThrough).Pass {
			sum += 4
		}
		if sum != score {
			t.Errorf("score %d decodes to phase weights summing to %d", score, sum)
		}
	}
}

func TestReport(t *testing.T) {
	r := NewReport(6)
	if r.Overall.Pass {
		t.Error("score 6 should not pass overall")
	}
	if got := r.BrokePhases(); !slices.Equal(got, []models.Phase{models.PhaseSetPoint}) {
		t.Errorf("BrokePhases() = %v", got)
	}
	if r.Coaching != CoachingFor(6) {
		t.Errorf("coaching mismatch: %q", r.Coaching)
	}

	if !r.Phase(models.PhaseShotPocket).Pass || r.Phase(models.PhaseSetPoint).Pass {
		t.Errorf("unexpected phase verdicts for 6: %+v", r)
	}
	if v := r.Phase(models.Phase("jump")); v.Pass {
		t.Errorf("unknown phase passed: %+v", v)
	}

	pure := NewReport(9)
	if len(pure.BrokePhases()) != 0 {
		t.Errorf("pure shot has broke phases: %v", pure.BrokePhases())
	}
}

func TestDecodeIsTotal(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		score := rapid.Int().Draw(t, "score")
		ch := Channel(rapid.IntRange(int(Overall), int(Coaching)).Draw(t, "channel"))

		v := Decode(score, ch)
		if v.Channel != ch {
			t.Fatalf("channel changed: %v -> %v", ch, v.Channel)
		}
		if v.Message == "" {
			t.Fatalf("empty message for score %d channel %s", score, ch)
		}
		if !IsValidScore(score) && v.Pass {
			t.Fatalf("invalid score %d passed on %s", score, ch)
		}
		if Decode(score, ch) != v {
			t.Fatalf("decode is not deterministic for %d/%s", score, ch)
		}
	})
}
