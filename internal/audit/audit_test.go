package audit

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestSlogSinkEmitsStructuredRecord(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	sink := NewSlogSink(logger)

	sink.Emit(Record{TargetKey: "github|github.com|acme", Status: StatusLockContention, Detail: "held by pid 123"})

	var line map[string]interface{}
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line); err != nil {
		t.Fatalf("decode log line: %v (raw: %s)", err, buf.String())
	}
	if line["target"] != "github|github.com|acme" {
		t.Fatalf("unexpected target field: %v", line["target"])
	}
	if line["status"] != string(StatusLockContention) {
		t.Fatalf("unexpected status field: %v", line["status"])
	}
	if !strings.Contains(buf.String(), "held by pid 123") {
		t.Fatalf("expected detail in log output, got %s", buf.String())
	}
}

func TestSlogSinkUsesWarnForNonSuccess(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}))
	sink := NewSlogSink(logger)

	sink.Emit(Record{TargetKey: "t1", Status: StatusSuccess})
	if buf.Len() != 0 {
		t.Fatalf("expected success record suppressed at warn level, got %s", buf.String())
	}

	sink.Emit(Record{TargetKey: "t1", Status: StatusTargetFailure})
	if buf.Len() == 0 {
		t.Fatalf("expected failure record logged at warn level")
	}
}
