package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"securelogin/internal/auth"
	"securelogin/internal/obs"
)

func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	obs.Logger().SetOutput(&buf)
	t.Cleanup(func() { obs.Logger().SetOutput(os.Stdout) })
	return &buf
}

func TestLogEventCarriesContext(t *testing.T) {
	buf := captureLog(t)

	ctx := WithRequestID(context.Background(), "req-123")
	ctx = auth.ContextWithPrincipal(ctx, auth.Principal{AccountID: "acct-1", IssuedAt: time.Now()})

	if err := LogEvent(ctx, "auth.logout", map[string]any{"extra": "value"}); err != nil {
		t.Fatalf("LogEvent: %v", err)
	}

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	if entry["type"] != "audit" || entry["event"] != "auth.logout" {
		t.Fatalf("unexpected entry: %v", entry)
	}
	if entry["request_id"] != "req-123" || entry["account_id"] != "acct-1" {
		t.Fatalf("context fields missing: %v", entry)
	}
	fields, ok := entry["fields"].(map[string]any)
	if !ok || fields["extra"] != "value" {
		t.Fatalf("fields missing: %v", entry)
	}
}

func TestLogEventRequiresName(t *testing.T) {
	captureLog(t)
	if err := LogEvent(context.Background(), "   ", nil); err == nil {
		t.Fatal("expected error for blank event name")
	}
}

func TestWithRequestIDIgnoresBlank(t *testing.T) {
	ctx := context.Background()
	if got := WithRequestID(ctx, "  "); got != ctx {
		t.Fatal("blank request id must not allocate a context")
	}
}

func TestLogSinkAppend(t *testing.T) {
	buf := captureLog(t)

	sink := NewLogSink()
	err := sink.Append(context.Background(), auth.AuditEntry{
		ID: "01AAA", AccountID: "acct-1", Action: "login_success",
		Detail: "authenticated", CreatedAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if entry["event"] != "security_event" {
		t.Fatalf("unexpected entry: %v", entry)
	}
	fields := entry["fields"].(map[string]any)
	if fields["action"] != "login_success" || fields["id"] != "01AAA" {
		t.Fatalf("unexpected fields: %v", fields)
	}
}
