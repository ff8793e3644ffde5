package notifications

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"testing"
	"time"

	"warden/internal/gateway"
	"warden/internal/supervisor"
	"warden/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testEventuallyTimeout = time.Second
	testPollInterval      = 10 * time.Millisecond
)

func transition(tenantID string, to supervisor.State) supervisor.Transition {
	return supervisor.Transition{
		TenantID: tenantID,
		From:     supervisor.StateStarting,
		To:       to,
		Retries:  2,
		Identity: gateway.Identity{ID: "b1", Username: "warden-bot"},
		At:       time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestSessionKey(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "sessions:t1", SessionKey("t1"))
}

func TestSessionMirror_NilRedisIsNoop(t *testing.T) {
	m := NewSessionMirror(nil, 0)
	m.SessionChanged(context.Background(), transition("t1", supervisor.StateLive))

	vals, err := m.Lookup(context.Background(), "t1")
	assert.NoError(t, err)
	assert.Nil(t, vals)
	assert.NoError(t, m.Subscribe(context.Background(), func(string) {}))
}

func TestSessionMirror_StoresStateWithTTL(t *testing.T) {
	mr, rdb := testutil.NewRedis(t)
	m := NewSessionMirror(rdb, time.Hour)

	m.SessionChanged(context.Background(), transition("t1", supervisor.StateLive))

	vals, err := m.Lookup(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, "live", vals["state"])
	assert.Equal(t, "2", vals["retries"])
	assert.Equal(t, "warden-bot", vals["identity"])
	assert.Equal(t, "2026-06-01T12:00:00Z", vals["updated_at"])
	assert.Equal(t, time.Hour, mr.TTL(SessionKey("t1")))

	missing, err := m.Lookup(context.Background(), "t2")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestSessionMirror_PublishesTransitions(t *testing.T) {
	_, rdb := testutil.NewRedis(t)
	m := NewSessionMirror(rdb, 0)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	payloads := make(chan string, 4)
	require.NoError(t, m.Subscribe(ctx, func(payload string) { payloads <- payload }))

	m.SessionChanged(context.Background(), transition("t1", supervisor.StateRestarting))

	var got string
	require.Eventually(t, func() bool {
		select {
		case got = <-payloads:
			return true
		default:
			return false
		}
	}, testEventuallyTimeout, testPollInterval)

	var decoded supervisor.Transition
	require.NoError(t, json.Unmarshal([]byte(got), &decoded))
	assert.Equal(t, "t1", decoded.TenantID)
	assert.Equal(t, supervisor.StateRestarting, decoded.To)
}

func TestSessionMirror_SubscriberSurvivesPanics(t *testing.T) {
	_, rdb := testutil.NewRedis(t)
	m := NewSessionMirror(rdb, 0)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls int32
	require.NoError(t, m.Subscribe(ctx, func(string) {
		if atomic.AddInt32(&calls, 1) == 1 {
			panic("boom")
		}
	}))

	m.SessionChanged(context.Background(), transition("t1", supervisor.StateLive))
	m.SessionChanged(context.Background(), transition("t1", supervisor.StateDisconnected))

	assert.Eventually(t, func() bool {
		return atomic.LoadInt32(&calls) == 2
	}, testEventuallyTimeout, testPollInterval)
}

func TestSessionMirror_RedisFailureDoesNotPanic(t *testing.T) {
	mr, rdb := testutil.NewRedis(t)
	m := NewSessionMirror(rdb, 0)
	mr.Close()

	assert.NotPanics(t, func() {
		m.SessionChanged(context.Background(), transition("t1", supervisor.StateLive))
	})
}
