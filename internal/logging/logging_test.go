package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func TestInit(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)

	var buf bytes.Buffer
	if err := Init("warn", &buf, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	log.Info().Msg("hidden")
	log.Warn().Str("capture", "shot.mp4").Msg("shown")

	var event map[string]any
	if err := json.Unmarshal(buf.Bytes(), &event); err != nil {
		t.Fatalf("expected exactly one JSON event, got %q: %v", buf.String(), err)
	}
	if event["message"] != "shown" || event["capture"] != "shot.mp4" || event["level"] != "warn" {
		t.Errorf("unexpected event: %v", event)
	}
}

func TestInitRejectsUnknownLevel(t *testing.T) {
	if err := Init("loud", nil, true); err == nil {
		t.Error("expected error for unknown level")
	}
}
