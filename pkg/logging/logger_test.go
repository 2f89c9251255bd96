package logging

import (
	"errors"
	"path/filepath"
	"testing"
)

func TestLoggerWritesSessionLog(t *testing.T) {
	dir := t.TempDir()
	logger, err := NewLogger(dir, "sess-1")
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	defer logger.Close()

	if err := logger.Info(CategoryInterrupt, "initialized", "built responses", map[string]any{"count": 3}); err != nil {
		t.Fatalf("Info: %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	events, err := ReadRecentEvents(filepath.Join(dir, "sessions", "sess-1.jsonl"), 10)
	if err != nil {
		t.Fatalf("ReadRecentEvents: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	if events[0].Category != CategoryInterrupt {
		t.Errorf("Category = %v, want %v", events[0].Category, CategoryInterrupt)
	}
	if events[0].SessionID != "sess-1" {
		t.Errorf("SessionID = %q, want sess-1", events[0].SessionID)
	}
}

func TestLoggerErrorDuplicatedToErrorLog(t *testing.T) {
	dir := t.TempDir()
	logger, err := NewLogger(dir, "sess-2")
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}

	logger.Error(CategorySession, "submit_failed", errors.New("ws closed"), map[string]any{"operation": "submit"})
	logger.Close()

	events, err := ReadRecentEvents(filepath.Join(dir, "errors.jsonl"), 10)
	if err != nil {
		t.Fatalf("ReadRecentEvents: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("got %d error events, want 1", len(events))
	}
	if events[0].Details["error"] != "ws closed" {
		t.Errorf("Details[error] = %v, want ws closed", events[0].Details["error"])
	}
}

func TestLoggerMinLevel(t *testing.T) {
	dir := t.TempDir()
	logger, err := NewLogger(dir, "sess-3")
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}

	// Default min level is info; debug should be dropped.
	logger.Debug(CategoryPlatform, "request", "GET /threads", nil)
	logger.SetMinLevel(LevelDebug)
	logger.Debug(CategoryPlatform, "request", "GET /workflows", nil)
	logger.Close()

	events, err := ReadRecentEvents(filepath.Join(dir, "sessions", "sess-3.jsonl"), 10)
	if err != nil {
		t.Fatalf("ReadRecentEvents: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1 (debug filtered before SetMinLevel)", len(events))
	}
	if events[0].Message != "GET /workflows" {
		t.Errorf("Message = %q, want the post-SetMinLevel debug event", events[0].Message)
	}
}

func TestNilLoggerIsSafe(t *testing.T) {
	var logger *Logger

	if err := logger.Info(CategoryInterrupt, "noop", "dropped", nil); err != nil {
		t.Errorf("nil logger Info = %v, want nil", err)
	}
	if err := logger.Error(CategoryInterrupt, "noop", errors.New("x"), nil); err != nil {
		t.Errorf("nil logger Error = %v, want nil", err)
	}
	if err := logger.Close(); err != nil {
		t.Errorf("nil logger Close = %v, want nil", err)
	}
}

func TestSetThreadIDStampsEvents(t *testing.T) {
	dir := t.TempDir()
	logger, err := NewLogger(dir, "sess-4")
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}

	logger.SetThreadID("th-42")
	logger.Info(CategoryInterrupt, "edit_applied", "", nil)
	logger.Close()

	events, err := ReadRecentEvents(filepath.Join(dir, "sessions", "sess-4.jsonl"), 10)
	if err != nil {
		t.Fatalf("ReadRecentEvents: %v", err)
	}
	if len(events) != 1 || events[0].ThreadID != "th-42" {
		t.Fatalf("events = %+v, want one event stamped with th-42", events)
	}
}
