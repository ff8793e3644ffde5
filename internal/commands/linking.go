package commands

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"warden/internal/models"

	"github.com/jonboulle/clockwork"
)

// LinkSecretTTL is how long a generated link secret stays valid.
const LinkSecretTTL = 7 * 24 * time.Hour

// NewLinkSecret returns 32 uppercase hex characters and their expiry.
func NewLinkSecret(clock clockwork.Clock) (string, time.Time, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", time.Time{}, fmt.Errorf("generate link secret: %w", err)
	}
	return strings.ToUpper(hex.EncodeToString(buf)), clock.Now().Add(LinkSecretTTL).UTC(), nil
}

// IssueLinkSecret stores a fresh link secret on the tenant, replacing any
// previous one.
func (r *Router) IssueLinkSecret(ctx context.Context, tenantID string) (string, time.Time, error) {
	secret, expires, err := NewLinkSecret(r.clock)
	if err != nil {
		return "", time.Time{}, err
	}
	if err := r.store.UpdateTenant(ctx, tenantID, models.TenantPatch{
		LinkSecret:          &secret,
		LinkSecretExpiresAt: &expires,
	}); err != nil {
		return "", time.Time{}, err
	}
	return secret, expires, nil
}

// handleLinkKey exchanges a single-use link secret. The secret is cleared on
// both the expiry and the success path.
func (r *Router) handleLinkKey(ctx context.Context, req *Request) (Result, error) {
	tenant := req.Tenant
	key := strings.ToUpper(req.Inv.Option("key"))

	if tenant.LinkSecret == nil || *tenant.LinkSecret == "" {
		return fail("No link key is configured for this server. Generate one from the dashboard, then run `/linkkey` again."), nil
	}

	if tenant.LinkSecretExpiresAt != nil && r.clock.Now().After(*tenant.LinkSecretExpiresAt) {
		if err := r.store.UpdateTenant(ctx, tenant.ID, models.TenantPatch{ClearLinkSecret: true}); err != nil {
			return Result{}, fmt.Errorf("clear expired link secret: %w", err)
		}
		return fail("This link key has expired. Generate a new one from the dashboard."), nil
	}

	if key != strings.ToUpper(*tenant.LinkSecret) {
		return fail("That link key does not match. Copy the full 32-character key from the dashboard page for this server and try again."), nil
	}

	consumed, err := r.store.ConsumeLinkSecret(ctx, tenant.ID, *tenant.LinkSecret, r.clock.Now())
	if err != nil {
		return Result{}, fmt.Errorf("mark tenant linked: %w", err)
	}
	if !consumed {
		return fail("This link key has already been used. Generate a new one from the dashboard."), nil
	}
	return succeed("Server linked", "This server is now linked to your dashboard account."), nil
}
