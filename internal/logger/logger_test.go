package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
)

func TestNewJSON(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.TraceLevel)

	var buf bytes.Buffer
	log := Component(New(&buf, "warn", "json"), "engine")

	log.Info().Msg("dropped")
	log.Warn().Str("student_id", "s-1").Msg("kept")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("expected one JSON line, got %q: %v", buf.String(), err)
	}
	if line["message"] != "kept" || line["service"] != "nihongo-exam" || line["component"] != "engine" {
		t.Errorf("line = %v", line)
	}
	if _, ok := line["caller"]; ok {
		t.Error("caller attached above debug level")
	}
}

func TestNewUnknownLevel(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.TraceLevel)

	New(&bytes.Buffer{}, "chatty", "json")
	if zerolog.GlobalLevel() != zerolog.InfoLevel {
		t.Errorf("level = %v", zerolog.GlobalLevel())
	}
}
