package logger

import "context"

// Field keys shared by the context-aware logging API.
const (
	KeyTraceID    = "trace_id"
	KeySpanID     = "span_id"
	KeyCommand    = "command"
	KeyGameCode   = "game_code"
	KeyClientAddr = "client"
	KeySession    = "session"
)

// LogContext carries request-scoped fields through a dispatch cycle so that
// every log line emitted while handling a datagram identifies its origin.
type LogContext struct {
	TraceID    string
	SpanID     string
	Command    string
	GameCode   string
	ClientAddr string
	Session    int
}

type logContextKey struct{}

// NewContext returns a context carrying lc.
func NewContext(ctx context.Context, lc *LogContext) context.Context {
	return context.WithValue(ctx, logContextKey{}, lc)
}

// FromContext extracts the LogContext, or nil when the context has none.
func FromContext(ctx context.Context) *LogContext {
	lc, _ := ctx.Value(logContextKey{}).(*LogContext)
	return lc
}

// appendContextFields prepends LogContext fields so they appear first.
func appendContextFields(ctx context.Context, args []any) []any {
	lc := FromContext(ctx)
	if lc == nil {
		return args
	}

	ctxArgs := make([]any, 0, 12+len(args))

	if lc.TraceID != "" {
		ctxArgs = append(ctxArgs, KeyTraceID, lc.TraceID)
	}
	if lc.SpanID != "" {
		ctxArgs = append(ctxArgs, KeySpanID, lc.SpanID)
	}
	if lc.Command != "" {
		ctxArgs = append(ctxArgs, KeyCommand, lc.Command)
	}
	if lc.GameCode != "" {
		ctxArgs = append(ctxArgs, KeyGameCode, lc.GameCode)
	}
	if lc.ClientAddr != "" {
		ctxArgs = append(ctxArgs, KeyClientAddr, lc.ClientAddr)
	}
	if lc.Session != 0 {
		ctxArgs = append(ctxArgs, KeySession, lc.Session)
	}

	return append(ctxArgs, args...)
}
