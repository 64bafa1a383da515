package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/kdimtricp/brokeshot/internal/frames"
	"github.com/kdimtricp/brokeshot/internal/models"
	"github.com/kdimtricp/brokeshot/internal/scoring"
	"github.com/kdimtricp/brokeshot/internal/session"
)

var analyzingMessages = []string{
	"Analyzing your jumpshot...",
	"Checking the shot pocket...",
	"Looking at the set point...",
	"Watching the follow through...",
	"Still analyzing...",
}

// waitForResult blocks until s is terminal, printing a rotating progress
// line to w every interval.
func waitForResult(ctx context.Context, s *session.Session, w io.Writer, interval time.Duration) (session.State, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for i := 0; ; i++ {
		select {
		case <-s.Done():
			return s.State(), nil
		case <-ctx.Done():
			return s.State(), ctx.Err()
		case <-ticker.C:
			fmt.Fprintln(w, analyzingMessages[i%len(analyzingMessages)])
		}
	}
}

var phaseTitles = map[models.Phase]string{
	models.PhaseShotPocket:    "Shot Pocket",
	models.PhaseSetPoint:      "Set Point",
	models.PhaseFollowThrough: "Follow Through",
}

func printReport(w io.Writer, result models.AnalysisResult) {
	report := scoring.NewReport(result.OverallScore)

	fmt.Fprintln(w, "Your Jumpshot is...")
	fmt.Fprintln(w, report.Overall.Decorated())
	fmt.Fprintln(w)
	for _, phase := range models.Phases {
		line := fmt.Sprintf("%s: %s", phaseTitles[phase], report.Phase(phase).Decorated())
		if pr, ok := result.PerPhase.Get(phase); ok && pr.PredictedLabel != nil {
			line += fmt.Sprintf(" (%.0f%% confident)", pr.Confidence*100)
		}
		fmt.Fprintln(w, line)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, report.Coaching)
	if !scoring.IsValidScore(result.OverallScore) {
		fmt.Fprintf(w, "(unexpected score %d from the analysis service)\n", result.OverallScore)
	}
}

func printHistoryLine(w io.Writer, sc models.ScoredCapture) {
	report := scoring.NewReport(sc.Result.OverallScore)
	line := fmt.Sprintf("%s  %s  %d/%d  %s",
		sc.ID,
		sc.Capture.CapturedAt.Local().Format("Jan 2, 2006 15:04"),
		sc.Result.OverallScore,
		sc.Result.MaxScore,
		report.Overall.Decorated(),
	)
	if broke := report.BrokePhases(); len(broke) > 0 && len(broke) < len(models.Phases) {
		names := make([]string, len(broke))
		for i, phase := range broke {
			names[i] = phaseTitles[phase]
		}
		line += "  broke: " + strings.Join(names, ", ")
	}
	fmt.Fprintln(w, line)
}

func guidelinesText() string {
	var b strings.Builder
	b.WriteString("Upload Guidelines for Best Results:\n")
	for i, g := range models.UploadGuidelines {
		fmt.Fprintf(&b, "  %d. %s\n", i+1, g)
	}
	return b.String()
}

func writePreview(path string, s *session.Session) error {
	preview := s.State().Preview
	if preview == nil {
		return fmt.Errorf("no preview available for %s", s.Capture.Video)
	}
	data, err := frames.EncodeJPEG(preview)
	if err != nil {
		return fmt.Errorf("failed to encode preview: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}
