package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func newBufferLogger(buf *bytes.Buffer) *Logger {
	return &Logger{
		output:     buf,
		level:      DEBUG,
		component:  "test",
		jsonFormat: true,
		fields:     make(map[string]interface{}),
	}
}

func lastEntry(t *testing.T, buf *bytes.Buffer) Entry {
	t.Helper()
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	var entry Entry
	if err := json.Unmarshal([]byte(lines[len(lines)-1]), &entry); err != nil {
		t.Fatalf("failed to decode log line %q: %v", lines[len(lines)-1], err)
	}
	return entry
}

func TestLogKeyValuePairs(t *testing.T) {
	var buf bytes.Buffer
	logger := newBufferLogger(&buf)

	logger.Info("signal stored", "symbol", "BTCUSDT", "confidence", 72.5)

	entry := lastEntry(t, &buf)
	if entry.Message != "signal stored" {
		t.Errorf("unexpected message %q", entry.Message)
	}
	if entry.Level != "INFO" || entry.Component != "test" {
		t.Errorf("unexpected envelope %+v", entry)
	}
	if entry.Fields["symbol"] != "BTCUSDT" {
		t.Errorf("symbol field missing: %+v", entry.Fields)
	}
	if entry.Fields["confidence"] != 72.5 {
		t.Errorf("confidence field missing: %+v", entry.Fields)
	}
}

func TestLogMessageNeverFormatted(t *testing.T) {
	var buf bytes.Buffer
	logger := newBufferLogger(&buf)

	// The message is always emitted verbatim; percent signs and extra
	// args must not trigger printf interpretation
	logger.Warn("progress at 50%", "count", 3)

	entry := lastEntry(t, &buf)
	if entry.Message != "progress at 50%" {
		t.Errorf("message was formatted: %q", entry.Message)
	}
	if entry.Fields["count"] != float64(3) {
		t.Errorf("count field missing: %+v", entry.Fields)
	}
}

func TestLogDanglingArg(t *testing.T) {
	var buf bytes.Buffer
	logger := newBufferLogger(&buf)

	logger.Info("sweep complete", "evicted", 2, "leftover")

	entry := lastEntry(t, &buf)
	if entry.Fields["evicted"] != float64(2) {
		t.Errorf("evicted field missing: %+v", entry.Fields)
	}
	if entry.Fields["msg_arg"] != "leftover" {
		t.Errorf("dangling arg not captured: %+v", entry.Fields)
	}
}

func TestLogErrorValuesFlattened(t *testing.T) {
	var buf bytes.Buffer
	logger := newBufferLogger(&buf)

	logger.Error("delivery failed", "error", errors.New("connection refused"))

	entry := lastEntry(t, &buf)
	if entry.Fields["error"] != "connection refused" {
		t.Errorf("error not flattened to its message: %+v", entry.Fields)
	}
}

func TestLogLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := newBufferLogger(&buf)
	logger.level = WARN

	logger.Debug("hidden")
	logger.Info("hidden")
	logger.Warn("shown")

	if got := strings.Count(buf.String(), "\n"); got != 1 {
		t.Errorf("expected exactly one emitted line, got %d: %s", got, buf.String())
	}
}
