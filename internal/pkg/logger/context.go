// internal/pkg/logger/context.go
package logger

import (
	"context"
	"log/slog"

	"github.com/ammerola/resell-stock/internal/pkg/tenant"
)

// Request identifies the HTTP request a record was logged under.
type Request struct {
	ID       string
	TraceID  string
	ClientIP string
	Method   string
	Path     string
}

// Job identifies the background task a record was logged under.
type Job struct {
	ID    string
	Type  string
	Queue string
	Retry int
}

type (
	requestKey struct{}
	jobKey     struct{}
)

// WithRequest attaches r to ctx. Later calls replace earlier ones.
func WithRequest(ctx context.Context, r Request) context.Context {
	return context.WithValue(ctx, requestKey{}, r)
}

// RequestFrom returns the request attached to ctx.
func RequestFrom(ctx context.Context) (Request, bool) {
	r, ok := ctx.Value(requestKey{}).(Request)
	return r, ok
}

// RequestID returns the ID of the request attached to ctx, or "".
func RequestID(ctx context.Context) string {
	r, _ := RequestFrom(ctx)
	return r.ID
}

// WithJob attaches j to ctx.
func WithJob(ctx context.Context, j Job) context.Context {
	return context.WithValue(ctx, jobKey{}, j)
}

// JobFrom returns the job attached to ctx.
func JobFrom(ctx context.Context) (Job, bool) {
	j, ok := ctx.Value(jobKey{}).(Job)
	return j, ok
}

// contextAttrs lists what ctx says about who is acting and on whose behalf.
func contextAttrs(ctx context.Context) []slog.Attr {
	var attrs []slog.Attr
	if r, ok := RequestFrom(ctx); ok {
		attrs = appendNonEmpty(attrs,
			"request_id", r.ID,
			"trace_id", r.TraceID,
			"client_ip", r.ClientIP,
			"method", r.Method,
			"path", r.Path)
	}
	if j, ok := JobFrom(ctx); ok {
		attrs = appendNonEmpty(attrs,
			"job_id", j.ID,
			"task_type", j.Type,
			"queue", j.Queue)
		if j.Retry > 0 {
			attrs = append(attrs, slog.Int("retry", j.Retry))
		}
	}
	if t, ok := tenant.FromContext(ctx); ok {
		if t.UserID != "" {
			attrs = append(attrs, slog.String("user_id", t.UserID))
		}
		if t.Admin {
			attrs = append(attrs, slog.Bool("admin", true))
		}
	}
	return attrs
}

func appendNonEmpty(attrs []slog.Attr, kv ...string) []slog.Attr {
	for i := 0; i+1 < len(kv); i += 2 {
		if kv[i+1] != "" {
			attrs = append(attrs, slog.String(kv[i], kv[i+1]))
		}
	}
	return attrs
}
