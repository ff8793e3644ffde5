package notifications

import (
	"context"
	"testing"

	"warden/internal/supervisor"
	"warden/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drain(c *Client) []string {
	var out []string
	for {
		select {
		case msg, ok := <-c.Send:
			if !ok {
				return out
			}
			out = append(out, string(msg))
		default:
			return out
		}
	}
}

func TestStatusHub_BroadcastFiltersByTenant(t *testing.T) {
	hub := NewStatusHub()

	all, err := hub.Register(nil, "")
	require.NoError(t, err)
	t1, err := hub.Register(nil, "t1")
	require.NoError(t, err)
	t2, err := hub.Register(nil, "t2")
	require.NoError(t, err)
	assert.Equal(t, 3, hub.Count())

	hub.Broadcast(`{"tenant_id":"t1","to":"live"}`)

	assert.Len(t, drain(all), 1)
	assert.Len(t, drain(t1), 1)
	assert.Empty(t, drain(t2))

	_ = hub.Shutdown(context.Background())
}

func TestStatusHub_DropsMalformedEvents(t *testing.T) {
	hub := NewStatusHub()
	c, err := hub.Register(nil, "")
	require.NoError(t, err)

	hub.Broadcast("not json")
	assert.Empty(t, drain(c))

	_ = hub.Shutdown(context.Background())
}

func TestStatusHub_FullClientDropsInsteadOfBlocking(t *testing.T) {
	hub := NewStatusHub()
	c, err := hub.Register(nil, "")
	require.NoError(t, err)

	for i := 0; i < sendBuffer+10; i++ {
		hub.Broadcast(`{"tenant_id":"t1"}`)
	}
	assert.Len(t, drain(c), sendBuffer)

	_ = hub.Shutdown(context.Background())
}

func TestStatusHub_ConnectionLimit(t *testing.T) {
	hub := NewStatusHub()
	hub.maxConns = 1

	_, err := hub.Register(nil, "")
	require.NoError(t, err)
	_, err = hub.Register(nil, "")
	assert.ErrorIs(t, err, ErrHubFull)

	_ = hub.Shutdown(context.Background())
}

func TestStatusHub_UnregisterAndShutdown(t *testing.T) {
	hub := NewStatusHub()
	a, err := hub.Register(nil, "")
	require.NoError(t, err)
	b, err := hub.Register(nil, "")
	require.NoError(t, err)

	hub.UnregisterClient(a)
	hub.UnregisterClient(a)
	assert.Equal(t, 1, hub.Count())
	assert.NotPanics(t, func() { a.TrySend([]byte("late")) })

	require.NoError(t, hub.Shutdown(context.Background()))
	assert.Equal(t, 0, hub.Count())
	_, ok := <-b.Send
	assert.False(t, ok)

	_, err = hub.Register(nil, "")
	assert.ErrorIs(t, err, ErrHubFull)
}

func TestStatusHub_WiredToMirror(t *testing.T) {
	_, rdb := testutil.NewRedis(t)
	mirror := NewSessionMirror(rdb, 0)
	hub := NewStatusHub()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, hub.StartWiring(ctx, mirror))

	c, err := hub.Register(nil, "t1")
	require.NoError(t, err)

	mirror.SessionChanged(context.Background(), transition("t1", supervisor.StateGivenUp))

	var got []string
	assert.Eventually(t, func() bool {
		got = append(got, drain(c)...)
		return len(got) == 1
	}, testEventuallyTimeout, testPollInterval)
	assert.Contains(t, got[0], `"to":"given_up"`)

	_ = hub.Shutdown(context.Background())
}
