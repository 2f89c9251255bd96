package logging

import (
	"os"
	"strings"
	"testing"
)

func TestAuditLoggerRecordsDecisions(t *testing.T) {
	dir := t.TempDir()
	l, err := NewAuditLogger(dir)
	if err != nil {
		t.Fatalf("NewAuditLogger: %v", err)
	}
	defer l.Close()

	if err := l.Record("t1", "send_email", "edit", "submitted"); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := l.Record("t2", "delete_file", "ignore", "submitted"); err != nil {
		t.Fatalf("Record: %v", err)
	}

	data, err := os.ReadFile(l.Path())
	if err != nil {
		t.Fatalf("read audit file: %v", err)
	}
	text := string(data)

	if !strings.Contains(text, "thread=t1 action=send_email decision=edit outcome=submitted") {
		t.Errorf("missing first decision line:\n%s", text)
	}
	if !strings.Contains(text, "thread=t2") {
		t.Errorf("missing second decision line:\n%s", text)
	}
	if got := strings.Count(text, "\n"); got != 2 {
		t.Errorf("lines = %d, want 2", got)
	}
}

func TestAuditLoggerPathUsesDailyName(t *testing.T) {
	l, err := NewAuditLogger(t.TempDir())
	if err != nil {
		t.Fatalf("NewAuditLogger: %v", err)
	}
	defer l.Close()

	if !strings.Contains(l.Path(), "decisions-") {
		t.Errorf("path = %q, want decisions-YYYY-MM-DD.log naming", l.Path())
	}
}

func TestAuditLoggerCloseIsIdempotent(t *testing.T) {
	l, err := NewAuditLogger(t.TempDir())
	if err != nil {
		t.Fatalf("NewAuditLogger: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close (second): %v", err)
	}
}
