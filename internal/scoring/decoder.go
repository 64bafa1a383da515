package scoring

// Channel selects which part of a score is being decoded.
type Channel int

const (
	Overall Channel = iota + 1
	ShotPocket
	SetPoint
	FollowThrough
	Coaching
)

func (c Channel) String() string {
	switch c {
	case Overall:
		return "overall"
	case ShotPocket:
		return "shot_pocket"
	case SetPoint:
		return "set_point"
	case FollowThrough:
		return "follow_through"
	case Coaching:
		return "coaching"
	}
	return "unknown"
}

const (
	LabelPure  = "PURE"
	LabelBroke = "BROKE"

	// FallbackCoaching is returned for scores the analyzer never produces.
	FallbackCoaching = "N/A"
)

// MaxScore is the score of a shot where every phase passes.
const MaxScore = 9

// ValidScores are the only scores the analyzer emits. 1 and 8 cannot occur.
var ValidScores = []int{0, 2, 3, 4, 5, 6, 7, 9}

var (
	shotPocketPass    = map[int]bool{2: true, 5: true, 6: true, 9: true}
	setPointPass      = map[int]bool{3: true, 5: true, 7: true, 9: true}
	followThroughPass = map[int]bool{4: true, 6: true, 7: true, 9: true}
)

var coachingMessages = map[int]string{
	0: "Your shot is about as broke as a shot can be. The video uploaded may not be the best. " +
		"Try another video or restart your shot anew.",
	2: "You have a good base to your shot but it all falls apart once you start bringing the ball up. " +
		"Lift the ball straight up from the pocket and hold your set point above your eyes before releasing.",
	3: "You have a good set point, but the base and follow through aren't there. " +
		"Start the ball in a consistent pocket at your hip and finish every shot with your wrist snapped down.",
	4: "You end the shot off well, but the base is a bit weak and the shot pocket is off. " +
		"Catch the ball in the same pocket every time and keep your elbow under the ball on the way up.",
	5: "Everything is good up until the release. " +
		"Hold your follow through until the ball hits the rim and keep your fingers pointed at the basket.",
	6: "Everything is good except that set point, and sometimes that's all it takes. " +
		"Pause the ball above your forehead with your elbow at ninety degrees before you shoot.",
	7: "Your shot would be pure if you just start it from a better pocket. " +
		"Catch low on your shooting side and keep the ball in one line from pocket to release.",
	9: "Your shot is about as pure as it gets. Focus on getting reps in and you'll be golden.",
}

// Verdict is the decoded view of one score on one channel. For the Coaching
// channel Pass mirrors the Overall verdict.
type Verdict struct {
	Channel Channel
	Pass    bool
	Message string
}

// Decode maps a score onto a channel. It is total over int.
func Decode(score int, channel Channel) Verdict {
	v := Verdict{Channel: channel}
	switch channel {
	case Overall:
		v.Pass = score == MaxScore
	case ShotPocket:
		v.Pass = shotPocketPass[score]
	case SetPoint:
		v.Pass = setPointPass[score]
	case FollowThrough:
		v.Pass = followThroughPass[score]
	case Coaching:
		v.Pass = score == MaxScore
		v.Message = CoachingFor(score)
		return v
	default:
		return v
	}
	v.Message = label(v.Pass)
	return v
}

// CoachingFor returns the improvement advice for a score.
func CoachingFor(score int) string {
	if msg, ok := coachingMessages[score]; ok {
		return msg
	}
	return FallbackCoaching
}

// IsValidScore reports whether the analyzer can produce score.
func IsValidScore(score int) bool {
	_, ok := coachingMessages[score]
	return ok
}

// Decorated renders the verdict the way the results screen shows it.
func (v Verdict) Decorated() string {
	switch {
	case v.Channel == Coaching || v.Message == "":
		return v.Message
	case v.Pass:
		return v.Message + " 💦"
	default:
		return v.Message + " 🧱"
	}
}

func label(pass bool) string {
	if pass {
		return LabelPure
	}
	return LabelBroke
}
