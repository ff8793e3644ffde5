package roblox

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(Config{
		UsersBaseURL:   srv.URL + "/v1",
		CloudBaseURL:   srv.URL + "/cloud/v2",
		RequestTimeout: 2 * time.Second,
	})
}

func TestResolveIdentityID(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v1/usernames/users", r.URL.Path)

		var body struct {
			Usernames          []string `json:"usernames"`
			ExcludeBannedUsers bool     `json:"excludeBannedUsers"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.False(t, body.ExcludeBannedUsers)
		require.Len(t, body.Usernames, 1)

		switch body.Usernames[0] {
		case "builderman":
			_, _ = w.Write([]byte(`{"data":[{"id":156,"name":"builderman"}]}`))
		case "broken":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			_, _ = w.Write([]byte(`{"data":[]}`))
		}
	})

	id, err := c.ResolveIdentityID(context.Background(), "builderman")
	require.NoError(t, err)
	assert.Equal(t, int64(156), id)

	_, err = c.ResolveIdentityID(context.Background(), "nobody")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = c.ResolveIdentityID(context.Background(), "broken")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetIdentity(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/users/156":
			_, _ = w.Write([]byte(`{"id":156,"name":"builderman","displayName":"Builderman","created":"2006-02-27T21:06:40.3Z"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	identity, err := c.GetIdentity(context.Background(), 156)
	require.NoError(t, err)
	assert.Equal(t, 2006, identity.Created.Year())

	_, err = c.GetIdentity(context.Background(), 1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestApplyRestriction(t *testing.T) {
	var got map[string]map[string]any
	var apiKey, path, method string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
		path = r.URL.Path
		apiKey = r.Header.Get("x-api-key")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{}`))
	})

	days := 2
	res := c.ApplyRestriction(context.Background(), Restriction{
		UniverseID:         "999",
		IdentityID:         156,
		APIKey:             "key-1",
		PrivateReason:      "exploiting",
		DisplayReason:      "Banned",
		ExcludeAltAccounts: true,
		DurationDays:       &days,
	})

	assert.True(t, res.Success)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, http.MethodPatch, method)
	assert.Equal(t, "/cloud/v2/universes/999/user-restrictions/156", path)
	assert.Equal(t, "key-1", apiKey)

	restriction := got["gameJoinRestriction"]
	assert.Equal(t, true, restriction["active"])
	assert.Equal(t, "exploiting", restriction["privateReason"])
	assert.Equal(t, true, restriction["excludeAltAccounts"])
	assert.Equal(t, "172800s", restriction["duration"])
}

func TestLiftRestriction_NonSuccess(t *testing.T) {
	var got map[string]map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"message":"insufficient scope"}`))
	})

	res := c.LiftRestriction(context.Background(), Restriction{UniverseID: "1", IdentityID: 2, APIKey: "k"})
	assert.False(t, res.Success)
	assert.Equal(t, http.StatusForbidden, res.StatusCode)
	assert.Contains(t, res.Error, "insufficient scope")
	assert.Equal(t, false, got["gameJoinRestriction"]["active"])
	_, hasDuration := got["gameJoinRestriction"]["duration"]
	assert.False(t, hasDuration)
}

func TestApplyRestriction_LongErrorBodyKeepsValidUTF8(t *testing.T) {
	body := strings.Repeat("a", maxErrorBody-1) + "é" + strings.Repeat("b", 100)
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(body))
	})

	res := c.ApplyRestriction(context.Background(), Restriction{UniverseID: "1", IdentityID: 2, APIKey: "k"})
	assert.False(t, res.Success)
	assert.True(t, utf8.ValidString(res.Error))
	assert.Equal(t, strings.Repeat("a", maxErrorBody-1), res.Error)
}

func TestTruncateUTF8(t *testing.T) {
	assert.Equal(t, "short", truncateUTF8("short", 10))
	assert.Equal(t, "ab", truncateUTF8("ab€", 4))
	assert.Equal(t, "ab€", truncateUTF8("ab€d", 5))
}

func TestApplyRestriction_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := NewClient(Config{UsersBaseURL: url, CloudBaseURL: url, RequestTimeout: time.Second})
	res := c.ApplyRestriction(context.Background(), Restriction{UniverseID: "1", IdentityID: 2})
	assert.False(t, res.Success)
	assert.Zero(t, res.StatusCode)
	assert.NotEmpty(t, res.Error)
}

func TestDurationString(t *testing.T) {
	zero, one := 0, 1
	assert.Equal(t, "", DurationString(nil))
	assert.Equal(t, "", DurationString(&zero))
	assert.Equal(t, "86400s", DurationString(&one))
}
