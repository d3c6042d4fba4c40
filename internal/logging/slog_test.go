package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
)

func newBufferLogger() (*SlogLogger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	h := slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	return NewSlogLogger(slog.New(h)), buf
}

func lastRecord(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("log output is not valid JSON: %v", err)
	}
	return rec
}

func TestSlogLogger_Info(t *testing.T) {
	l, buf := newBufferLogger()
	l.Info(context.Background(), "hello", "k", "v")

	rec := lastRecord(t, buf)
	if rec["msg"] != "hello" || rec["k"] != "v" {
		t.Fatalf("unexpected record: %v", rec)
	}
	if rec["level"] != "INFO" {
		t.Fatalf("unexpected level: %v", rec["level"])
	}
}

func TestSlogLogger_With(t *testing.T) {
	l, buf := newBufferLogger()
	child := l.With("module", "test")
	child.Error(context.Background(), "boom")

	rec := lastRecord(t, buf)
	if rec["module"] != "test" || rec["msg"] != "boom" {
		t.Fatalf("unexpected record: %v", rec)
	}
}
