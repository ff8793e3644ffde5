// Package roblox is a thin REST client for Roblox identity lookup and
// game-join restrictions. It never retries; callers decide what to do with a
// failed EnforcementResult.
package roblox

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"warden/internal/observability"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/time/rate"
)

// ErrNotFound is returned when an identity cannot be resolved.
var ErrNotFound = errors.New("roblox: identity not found")

const maxErrorBody = 512

// Config configures the client endpoints and pacing.
type Config struct {
	UsersBaseURL   string
	CloudBaseURL   string
	RatePerSecond  float64
	RequestTimeout time.Duration
	HTTPClient     *http.Client
}

// Identity is the subset of the Roblox user record the core needs.
type Identity struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	DisplayName string    `json:"displayName"`
	Created     time.Time `json:"created"`
}

// Restriction describes a game-join restriction to apply.
type Restriction struct {
	UniverseID         string
	IdentityID         int64
	APIKey             string
	PrivateReason      string
	DisplayReason      string
	ExcludeAltAccounts bool
	DurationDays       *int
}

// EnforcementResult is the outcome of a restriction call. Success is only set
// on an explicit 2xx response.
type EnforcementResult struct {
	Success    bool
	StatusCode int
	Error      string
}

// Client talks to the users and open cloud APIs.
type Client struct {
	usersURL string
	cloudURL string
	http     *http.Client
	limiter  *rate.Limiter
	timeout  time.Duration
}

// NewClient creates a Client.
func NewClient(cfg Config) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	limit := rate.Inf
	burst := 1
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
		burst = int(cfg.RatePerSecond)
		if burst < 1 {
			burst = 1
		}
	}
	return &Client{
		usersURL: strings.TrimRight(cfg.UsersBaseURL, "/"),
		cloudURL: strings.TrimRight(cfg.CloudBaseURL, "/"),
		http:     httpClient,
		limiter:  rate.NewLimiter(limit, burst),
		timeout:  timeout,
	}
}

// ResolveIdentityID looks up the id for a username. Any non-2xx response or an
// empty result is reported as ErrNotFound.
func (c *Client) ResolveIdentityID(ctx context.Context, username string) (int64, error) {
	ctx, span := observability.StartClientSpan(ctx, "roblox.resolve_identity")
	var spanErr error
	defer func() { observability.EndSpan(span, spanErr) }()

	payload := map[string]any{
		"usernames":          []string{username},
		"excludeBannedUsers": false,
	}
	var out struct {
		Data []struct {
			ID   int64  `json:"id"`
			Name string `json:"name"`
		} `json:"data"`
	}
	status, body, err := c.do(ctx, http.MethodPost, c.usersURL+"/usernames/users", "", payload)
	if err != nil {
		spanErr = err
		return 0, err
	}
	if status < 200 || status >= 300 {
		return 0, ErrNotFound
	}
	if err := json.Unmarshal(body, &out); err != nil {
		spanErr = err
		return 0, fmt.Errorf("roblox: decode usernames response: %w", err)
	}
	if len(out.Data) == 0 {
		return 0, ErrNotFound
	}
	return out.Data[0].ID, nil
}

// GetIdentity fetches the user record including its creation timestamp.
func (c *Client) GetIdentity(ctx context.Context, id int64) (*Identity, error) {
	ctx, span := observability.StartClientSpan(ctx, "roblox.get_identity",
		attribute.Int64("roblox.user_id", id))
	var spanErr error
	defer func() { observability.EndSpan(span, spanErr) }()

	status, body, err := c.do(ctx, http.MethodGet, c.usersURL+"/users/"+strconv.FormatInt(id, 10), "", nil)
	if err != nil {
		spanErr = err
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if status < 200 || status >= 300 {
		spanErr = fmt.Errorf("roblox: users api status %d", status)
		return nil, spanErr
	}
	var identity Identity
	if err := json.Unmarshal(body, &identity); err != nil {
		spanErr = err
		return nil, fmt.Errorf("roblox: decode user: %w", err)
	}
	return &identity, nil
}

// ApplyRestriction bans the identity from the universe.
func (c *Client) ApplyRestriction(ctx context.Context, r Restriction) EnforcementResult {
	return c.patchRestriction(ctx, "apply", r, true)
}

// LiftRestriction removes an existing restriction.
func (c *Client) LiftRestriction(ctx context.Context, r Restriction) EnforcementResult {
	return c.patchRestriction(ctx, "lift", r, false)
}

func (c *Client) patchRestriction(ctx context.Context, operation string, r Restriction, active bool) EnforcementResult {
	ctx, span := observability.StartClientSpan(ctx, "roblox."+operation+"_restriction",
		attribute.String("roblox.universe_id", r.UniverseID),
		attribute.Int64("roblox.user_id", r.IdentityID))

	restriction := map[string]any{
		"active":             active,
		"privateReason":      r.PrivateReason,
		"displayReason":      r.DisplayReason,
		"excludeAltAccounts": r.ExcludeAltAccounts,
	}
	if d := DurationString(r.DurationDays); d != "" && active {
		restriction["duration"] = d
	}
	payload := map[string]any{"gameJoinRestriction": restriction}

	url := fmt.Sprintf("%s/universes/%s/user-restrictions/%d", c.cloudURL, r.UniverseID, r.IdentityID)
	status, body, err := c.do(ctx, http.MethodPatch, url, r.APIKey, payload)
	if err != nil {
		observability.EnforcementRequests.WithLabelValues(operation, "error").Inc()
		observability.EndSpan(span, err)
		return EnforcementResult{Error: err.Error()}
	}

	observability.EnforcementRequests.WithLabelValues(operation, strconv.Itoa(status)).Inc()
	if status >= 200 && status < 300 {
		observability.EndSpan(span, nil)
		return EnforcementResult{Success: true, StatusCode: status}
	}

	msg := strings.TrimSpace(string(body))
	msg = truncateUTF8(msg, maxErrorBody)
	if msg == "" {
		msg = http.StatusText(status)
	}
	observability.EndSpan(span, fmt.Errorf("status %d", status))
	return EnforcementResult{StatusCode: status, Error: msg}
}

// truncateUTF8 cuts s to at most n bytes without splitting a rune.
func truncateUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// DurationString converts a day count into the "<seconds>s" duration format.
// Nil or non-positive durations yield an empty string (permanent).
func DurationString(days *int) string {
	if days == nil || *days <= 0 {
		return ""
	}
	return strconv.FormatInt(int64(*days)*86400, 10) + "s"
}

func (c *Client) do(ctx context.Context, method, url, apiKey string, payload any) (int, []byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, nil, fmt.Errorf("roblox: rate limit wait: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if payload != nil {
		buf, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, fmt.Errorf("roblox: encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("roblox: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if apiKey != "" {
		req.Header.Set("x-api-key", apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("roblox: %s %s: %w", method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("roblox: read response: %w", err)
	}
	return resp.StatusCode, body, nil
}
