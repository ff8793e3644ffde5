// Package observability provides logging, metrics, and tracing.
package observability

import (
	"context"
	"log/slog"
	"math/rand"
	"os"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Logger is the process-wide structured logger.
var Logger *slog.Logger

// LogContextKey is a type for context keys used by the logging package.
type LogContextKey string

// Context keys lifted into every log record.
const (
	RequestIDKey     LogContextKey = "request_id"
	OperatorIDKey    LogContextKey = "operator_id"
	TenantIDKey      LogContextKey = "tenant_id"
	InteractionIDKey LogContextKey = "interaction_id"
	CorrelationIDKey LogContextKey = "correlation_id"
	TraceIDKey       LogContextKey = "trace_id"
)

var contextAttrKeys = []LogContextKey{
	RequestIDKey,
	OperatorIDKey,
	TenantIDKey,
	InteractionIDKey,
	CorrelationIDKey,
	TraceIDKey,
}

// ctxHandler is a slog.Handler that adds context values to the log record.
type ctxHandler struct {
	slog.Handler
}

// Handle adds context values to the record before passing it to the underlying handler.
func (h *ctxHandler) Handle(ctx context.Context, r slog.Record) error {
	for _, key := range contextAttrKeys {
		if v, ok := ctx.Value(key).(string); ok && v != "" {
			r.AddAttrs(slog.String(string(key), v))
		}
	}
	return h.Handler.Handle(ctx, r)
}

func (h *ctxHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ctxHandler{h.Handler.WithAttrs(attrs)}
}

func (h *ctxHandler) WithGroup(name string) slog.Handler {
	return &ctxHandler{h.Handler.WithGroup(name)}
}

func init() {
	var handler slog.Handler
	level := slog.LevelInfo

	if os.Getenv("APP_ENV") == "production" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	}

	Logger = slog.New(&ctxHandler{handler})
}

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0)
)

// GenerateCorrelationID returns a new lexicographically sortable correlation ID.
func GenerateCorrelationID() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// WithTenant returns a context carrying the tenant id for logging.
func WithTenant(ctx context.Context, tenantID string) context.Context {
	return context.WithValue(ctx, TenantIDKey, tenantID)
}

// WithInteraction returns a context carrying the interaction and correlation ids.
func WithInteraction(ctx context.Context, interactionID, correlationID string) context.Context {
	ctx = context.WithValue(ctx, InteractionIDKey, interactionID)
	return context.WithValue(ctx, CorrelationIDKey, correlationID)
}

// ExtractCorrelationID retrieves the correlation ID from the context.
func ExtractCorrelationID(ctx context.Context) string {
	if id, ok := ctx.Value(CorrelationIDKey).(string); ok {
		return id
	}
	return ""
}

// SessionLogger provides structured logging for gateway session lifecycle events.
type SessionLogger struct {
	component string
	logger    *slog.Logger
}

// NewSessionLogger creates a SessionLogger for the given component.
func NewSessionLogger(component string) *SessionLogger {
	return &SessionLogger{
		component: component,
		logger:    Logger,
	}
}

// LogTransition logs a session state change.
func (l *SessionLogger) LogTransition(ctx context.Context, tenantID, from, to string, retries int) {
	l.logger.InfoContext(ctx, "session transition",
		slog.String("component", l.component),
		slog.String("tenant_id", tenantID),
		slog.String("from", from),
		slog.String("to", to),
		slog.Int("retries", retries),
	)
}

// LogRestartScheduled logs a pending reconnect.
func (l *SessionLogger) LogRestartScheduled(ctx context.Context, tenantID string, retries int, delay time.Duration) {
	l.logger.WarnContext(ctx, "session restart scheduled",
		slog.String("component", l.component),
		slog.String("tenant_id", tenantID),
		slog.Int("retries", retries),
		slog.Duration("delay", delay),
	)
}

// LogError logs a session error.
func (l *SessionLogger) LogError(ctx context.Context, tenantID string, err error, operation string) {
	l.logger.ErrorContext(ctx, "session error",
		slog.String("component", l.component),
		slog.String("tenant_id", tenantID),
		slog.String("operation", operation),
		slog.String("error", err.Error()),
	)
}
