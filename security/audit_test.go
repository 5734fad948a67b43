package security

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func newTestAuditor(enabled bool) (*Auditor, *bytes.Buffer) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	return NewAuditor(logger, enabled), &buf
}

func TestAuditor_LogEvent(t *testing.T) {
	auditor, buf := newTestAuditor(true)

	auditor.LogEvent(Event{
		Type:     EventGrantCreated,
		UserID:   "user-1234",
		ClientID: "client-1",
	})

	out := buf.String()
	if !strings.Contains(out, "security_audit") {
		t.Error("output missing security_audit marker")
	}
	if !strings.Contains(out, EventGrantCreated) {
		t.Errorf("output missing event type %q", EventGrantCreated)
	}
	if !strings.Contains(out, "client-1") {
		t.Error("output missing client id")
	}
}

func TestAuditor_HashesUserID(t *testing.T) {
	auditor, buf := newTestAuditor(true)

	auditor.LogTokenIssued("user-1234", "client-1", "deploy-1", []string{"read"})

	out := buf.String()
	if strings.Contains(out, "user-1234") {
		t.Error("raw user id leaked into the audit log")
	}
	if !strings.Contains(out, hashForLogging("user-1234")) {
		t.Error("output missing hashed user id")
	}
}

func TestAuditor_Disabled(t *testing.T) {
	auditor, buf := newTestAuditor(false)

	auditor.LogGrantCreated("user-1234", "client-1", []string{"read"})
	auditor.LogAuthFailure("user-1234", "client-1", "", "bad_token")

	if buf.Len() != 0 {
		t.Errorf("disabled auditor wrote output: %q", buf.String())
	}
}

func TestAuditor_NilSafe(t *testing.T) {
	var auditor *Auditor
	// Must not panic
	auditor.LogEvent(Event{Type: EventAuthFailure})
	auditor.LogTokenRefreshed("u", "c", "d", true)
}

func TestHashForLogging(t *testing.T) {
	a := hashForLogging("user-1234")
	b := hashForLogging("user-1234")
	if a != b {
		t.Error("hash is not deterministic")
	}
	if len(a) != 16 {
		t.Errorf("hash length = %d, want 16", len(a))
	}
	if a == hashForLogging("user-5678") {
		t.Error("different inputs hash identically")
	}
	if got := hashForLogging(""); got != "<empty>" {
		t.Errorf("hashForLogging(\"\") = %q, want %q", got, "<empty>")
	}
}
