// Package featureflags evaluates per-tenant route switches and percentage
// rollouts configured as "name=value" pairs, for example
// "altcheck=on,ban=25%,report_open=off".
package featureflags

import (
	"hash/fnv"
	"strconv"
	"strings"
)

// Manager holds the parsed flag set. A nil Manager has no flags.
type Manager struct {
	flags map[string]string
}

// NewManager parses a comma-separated flag list. Malformed pairs are skipped.
func NewManager(raw string) *Manager {
	out := make(map[string]string)

	for _, pair := range strings.Split(raw, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok {
			continue
		}
		key, value = normalize(key), normalize(value)
		if key == "" || value == "" {
			continue
		}
		out[key] = value
	}

	return &Manager{flags: out}
}

// Lookup evaluates a flag for one tenant and reports whether it is defined.
// Supported values are on/true/1, off/false/0 and N% (deterministic rollout
// by tenant id).
func (m *Manager) Lookup(name, tenantID string) (enabled, defined bool) {
	if m == nil {
		return false, false
	}
	value, ok := m.flags[normalize(name)]
	if !ok {
		return false, false
	}

	switch value {
	case "on", "true", "1":
		return true, true
	case "off", "false", "0":
		return false, true
	}

	pctRaw, isPct := strings.CutSuffix(value, "%")
	if !isPct {
		return false, true
	}
	pct, err := strconv.Atoi(pctRaw)
	if err != nil || pct <= 0 {
		return false, true
	}
	if pct >= 100 {
		return true, true
	}
	if tenantID == "" {
		return false, true
	}
	return rolloutBucket(name, tenantID) < pct, true
}

// Allows reports whether a route may run for a tenant. Routes without a flag
// are allowed.
func (m *Manager) Allows(name, tenantID string) bool {
	enabled, defined := m.Lookup(name, tenantID)
	return !defined || enabled
}

// Snapshot returns every configured flag evaluated for one tenant.
func (m *Manager) Snapshot(tenantID string) map[string]bool {
	if m == nil {
		return map[string]bool{}
	}
	out := make(map[string]bool, len(m.flags))
	for name := range m.flags {
		out[name], _ = m.Lookup(name, tenantID)
	}
	return out
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func rolloutBucket(name, tenantID string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(normalize(name) + ":" + tenantID))
	return int(h.Sum32() % 100)
}
