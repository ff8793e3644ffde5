// Package notifications mirrors session state into Redis and fans transition
// events out to dashboard websocket clients.
package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strconv"
	"time"

	"warden/internal/observability"
	"warden/internal/supervisor"

	"github.com/redis/go-redis/v9"
)

const (
	// EventsChannel carries JSON-encoded session transitions.
	EventsChannel = "sessions:events"

	sessionKeyPrefix  = "sessions:"
	defaultSessionTTL = 24 * time.Hour
	redisTimeout      = 2 * time.Second
)

// SessionKey returns the Redis hash key of a tenant's session state.
func SessionKey(tenantID string) string {
	return sessionKeyPrefix + tenantID
}

// SessionMirror implements supervisor.Observer. With a nil client it is a
// no-op.
type SessionMirror struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewSessionMirror creates a mirror. ttl <= 0 uses the default.
func NewSessionMirror(rdb *redis.Client, ttl time.Duration) *SessionMirror {
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	return &SessionMirror{rdb: rdb, ttl: ttl}
}

// SessionChanged stores the new state and publishes the transition.
func (m *SessionMirror) SessionChanged(ctx context.Context, t supervisor.Transition) {
	if m.rdb == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), redisTimeout)
	defer cancel()

	payload, err := json.Marshal(t)
	if err != nil {
		observability.Logger.ErrorContext(ctx, "failed to encode session transition", slog.String("error", err.Error()))
		return
	}

	key := SessionKey(t.TenantID)
	pipe := m.rdb.TxPipeline()
	pipe.HSet(ctx, key, map[string]interface{}{
		"state":      string(t.To),
		"retries":    strconv.Itoa(t.Retries),
		"identity":   t.Identity.Username,
		"updated_at": t.At.UTC().Format(time.RFC3339),
	})
	pipe.Expire(ctx, key, m.ttl)
	pipe.Publish(ctx, EventsChannel, payload)
	if _, err := pipe.Exec(ctx); err != nil {
		observability.RedisErrors.WithLabelValues("session_mirror").Inc()
		observability.Logger.WarnContext(ctx, "failed to mirror session state",
			slog.String("tenant_id", t.TenantID),
			slog.String("error", err.Error()),
		)
	}
}

// Lookup returns the mirrored state of a tenant's session, or nil when none
// is stored.
func (m *SessionMirror) Lookup(ctx context.Context, tenantID string) (map[string]string, error) {
	if m.rdb == nil {
		return nil, nil
	}
	vals, err := m.rdb.HGetAll(ctx, SessionKey(tenantID)).Result()
	if err != nil {
		observability.RedisErrors.WithLabelValues("hgetall").Inc()
		return nil, fmt.Errorf("lookup session %s: %w", tenantID, err)
	}
	if len(vals) == 0 {
		return nil, nil
	}
	return vals, nil
}

// Subscribe delivers every published transition payload to onMessage until
// ctx is cancelled.
func (m *SessionMirror) Subscribe(ctx context.Context, onMessage func(payload string)) error {
	if m.rdb == nil {
		return nil
	}
	sub := m.rdb.Subscribe(ctx, EventsChannel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("subscribe %s: %w", EventsChannel, err)
	}
	ch := sub.Channel()

	go func() {
		defer func() { _ = sub.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				func() {
					defer func() {
						if r := recover(); r != nil {
							observability.Logger.Error("panic in session event subscriber",
								slog.Any("panic", r), slog.String("stack", string(debug.Stack())))
						}
					}()
					onMessage(msg.Payload)
				}()
			}
		}
	}()

	return nil
}
