package audit

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"securelogin/internal/auth"
	"securelogin/internal/obs"
)

type ctxKey string

const requestIDKey ctxKey = "audit_request_id"

// WithRequestID attaches the request identifier to the context for audit
// logging.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

func requestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

// LogEvent writes an audit log line enriched with request and principal
// context. This is the operator-facing trail; the durable audit_log table
// is written through auth.AuditSink.
func LogEvent(ctx context.Context, event string, fields map[string]any) error {
	event = strings.TrimSpace(event)
	if event == "" {
		return errors.New("event name is required")
	}
	entry := map[string]any{
		"ts":    time.Now().UTC().Format(time.RFC3339Nano),
		"type":  "audit",
		"event": event,
	}
	if rid := requestIDFromContext(ctx); rid != "" {
		entry["request_id"] = rid
	}
	if principal, ok := auth.PrincipalFromContext(ctx); ok {
		entry["account_id"] = principal.AccountID
	}
	if len(fields) > 0 {
		copyFields := make(map[string]any, len(fields))
		for k, v := range fields {
			copyFields[k] = v
		}
		entry["fields"] = copyFields
	} else {
		entry["fields"] = map[string]any{}
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	obs.Logger().Println(string(data))
	return nil
}

var _ auth.AuditSink = (*LogSink)(nil)

// LogSink emits audit entries as JSON log lines. It backs DSN-less runs;
// durable deployments use the Postgres sink instead.
type LogSink struct{}

func NewLogSink() *LogSink { return &LogSink{} }

func (s *LogSink) Append(ctx context.Context, entry auth.AuditEntry) error {
	return LogEvent(ctx, "security_event", map[string]any{
		"id":         entry.ID,
		"account_id": entry.AccountID,
		"action":     entry.Action,
		"detail":     entry.Detail,
		"created_at": entry.CreatedAt.Format(time.RFC3339Nano),
	})
}
