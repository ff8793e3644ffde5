package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"warden/internal/gateway"
	"warden/internal/models"
	"warden/internal/roblox"
	"warden/internal/validation"
)

const defaultDisplayReason = "You have been banned from this experience."

// resolveIdentity maps a username to an id. A nil Result means success;
// otherwise the Result is the user-facing failure.
func (r *Router) resolveIdentity(ctx context.Context, username string) (int64, *Result) {
	if username == "" {
		res := fail("Provide a Roblox username.")
		return 0, &res
	}
	if err := validation.ValidateUsername(username); err != nil {
		res := fail(fmt.Sprintf("**%s** is not a valid Roblox username.", username))
		return 0, &res
	}
	id, err := r.enforcer.ResolveIdentityID(ctx, username)
	if errors.Is(err, roblox.ErrNotFound) {
		res := fail(fmt.Sprintf("Could not find a Roblox user named **%s**.", username))
		return 0, &res
	}
	if err != nil {
		r.logger.WarnContext(ctx, "identity lookup failed",
			slog.String("username", username), slog.String("error", err.Error()))
		res := fail("Roblox could not be reached to look up that user. Try again in a moment.")
		return 0, &res
	}
	return id, nil
}

// enforcementKey decrypts the tenant's enforcement API key.
func (r *Router) enforcementKey(ctx context.Context, tenant *models.Tenant) (string, error) {
	key, err := r.vault.Decrypt(*tenant.RobloxAPIKey)
	if err != nil {
		r.logger.ErrorContext(ctx, "failed to decrypt enforcement api key",
			slog.String("tenant_id", tenant.ID), slog.String("error", err.Error()))
		return "", err
	}
	return key, nil
}

// handleBan resolves the target, scores it, attempts in-game enforcement and
// records the sanction. The sanction is persisted whatever the enforcement
// outcome.
func (r *Router) handleBan(ctx context.Context, req *Request) (Result, error) {
	tenant := req.Tenant
	username := req.Inv.Option("username")
	reason := req.Inv.Option("reason")
	if reason == "" {
		return fail("Provide a reason for the ban."), nil
	}

	id, failure := r.resolveIdentity(ctx, username)
	if failure != nil {
		return *failure, nil
	}

	alt := r.scorer.Score(ctx, tenant.ID, id, nil)

	now := r.clock.Now().UTC()
	sanction := &models.Sanction{
		TenantID:       tenant.ID,
		RobloxUserID:   id,
		RobloxUsername: username,
		Reason:         reason,
		ModeratorID:    req.Inv.UserID,
		ModeratorName:  req.Inv.UserName,
		Active:         true,
		Metadata: models.SanctionMetadata{
			AltDetection:       &alt,
			ExcludeAltAccounts: req.Inv.BoolOption("exclude_alts"),
		},
	}
	if days, ok := req.Inv.IntOption("duration"); ok && days > 0 {
		expires := now.AddDate(0, 0, days)
		sanction.ExpiresAt = &expires
		sanction.Metadata.DurationDays = &days
	}

	enforcement := "Not enforced in-game: no Roblox credentials are configured for this server."
	if tenant.HasEnforcementCredentials() {
		enforcement = r.applyRestriction(ctx, tenant, sanction, req.Inv.Option("display_reason"), now)
	}

	if err := r.store.CreateSanction(ctx, sanction); err != nil {
		return Result{}, fmt.Errorf("persist sanction: %w", err)
	}

	embed := gateway.Embed{
		Title: "Player banned",
		Color: colorDanger,
		Fields: []gateway.EmbedField{
			{Name: "Player", Value: identityLabel(username, id), Inline: true},
			{Name: "Duration", Value: durationLabel(sanction.Metadata.DurationDays), Inline: true},
			{Name: "Reason", Value: truncate(reason, 1000)},
			{Name: "Enforcement", Value: enforcement},
		},
		Footer: "Sanction " + sanction.PublicID.String(),
	}
	if alt.IsLikelyAlt {
		embed.Fields = append(embed.Fields, gateway.EmbedField{Name: "Alt detection", Value: altVerdict(alt)})
	}
	return Result{Reply: gateway.Reply{Embeds: []gateway.Embed{embed}}}, nil
}

// applyRestriction calls the enforcement API and records the outcome on the
// sanction metadata. It returns the enforcement line for the reply.
func (r *Router) applyRestriction(ctx context.Context, tenant *models.Tenant, sanction *models.Sanction, displayReason string, now time.Time) string {
	meta := &sanction.Metadata
	meta.RobloxEnforcedAt = &now

	apiKey, err := r.enforcementKey(ctx, tenant)
	if err != nil {
		meta.RobloxError = "stored enforcement API key could not be decrypted"
		return "Not enforced in-game: the stored Roblox API key is unreadable. Re-enter it on the dashboard."
	}

	if displayReason == "" {
		displayReason = defaultDisplayReason
	}
	res := r.enforcer.ApplyRestriction(ctx, roblox.Restriction{
		UniverseID:         *tenant.RobloxUniverseID,
		IdentityID:         sanction.RobloxUserID,
		APIKey:             apiKey,
		PrivateReason:      sanction.Reason,
		DisplayReason:      displayReason,
		ExcludeAltAccounts: meta.ExcludeAltAccounts,
		DurationDays:       meta.DurationDays,
	})
	meta.RobloxEnforced = res.Success
	meta.RobloxStatusCode = res.StatusCode
	meta.RobloxError = res.Error

	if res.Success {
		return "✅ Enforced in-game."
	}
	r.logger.WarnContext(ctx, "in-game enforcement failed",
		slog.Int64("roblox_user_id", sanction.RobloxUserID),
		slog.Int("status", res.StatusCode),
		slog.String("error", res.Error),
	)
	return "⚠️ Not enforced in-game: Roblox rejected the request" + statusSuffix(res.StatusCode) +
		". The ban is recorded locally."
}

// handleUnban lifts the in-game restriction when possible and deactivates
// local sanctions regardless of the external outcome.
func (r *Router) handleUnban(ctx context.Context, req *Request) (Result, error) {
	tenant := req.Tenant
	username := req.Inv.Option("username")

	id, failure := r.resolveIdentity(ctx, username)
	if failure != nil {
		return *failure, nil
	}

	enforcement := "Not lifted in-game: no Roblox credentials are configured for this server."
	if tenant.HasEnforcementCredentials() {
		enforcement = "Not lifted in-game: the stored Roblox API key is unreadable."
		if apiKey, err := r.enforcementKey(ctx, tenant); err == nil {
			res := r.enforcer.LiftRestriction(ctx, roblox.Restriction{
				UniverseID: *tenant.RobloxUniverseID,
				IdentityID: id,
				APIKey:     apiKey,
			})
			if res.Success {
				enforcement = "✅ Lifted in-game."
			} else {
				enforcement = "⚠️ Not lifted in-game: Roblox rejected the request" + statusSuffix(res.StatusCode) + "."
			}
		}
	}

	n, err := r.store.DeactivateSanction(ctx, tenant.ID, username, req.Inv.UserName, r.clock.Now().UTC())
	if err != nil {
		return Result{}, fmt.Errorf("deactivate sanctions: %w", err)
	}

	records := "No active sanctions were recorded for this player."
	if n > 0 {
		records = fmt.Sprintf("%d active sanction(s) lifted.", n)
	}
	return Result{Reply: gateway.Reply{Embeds: []gateway.Embed{{
		Title: "Player unbanned",
		Color: colorSuccess,
		Fields: []gateway.EmbedField{
			{Name: "Player", Value: identityLabel(username, id), Inline: true},
			{Name: "Records", Value: records, Inline: true},
			{Name: "Enforcement", Value: enforcement},
		},
	}}}}, nil
}

func statusSuffix(status int) string {
	if status == 0 {
		return ""
	}
	return " (HTTP " + strconv.Itoa(status) + ")"
}
