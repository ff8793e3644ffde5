package commands

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"warden/internal/gateway"
	"warden/internal/models"
	"warden/internal/repository"

	"github.com/google/uuid"
)

const (
	historySelectID  = "history_select"
	maxSelectOptions = 25
)

func (r *Router) handleAltCheck(ctx context.Context, req *Request) (Result, error) {
	username := req.Inv.Option("username")
	id, failure := r.resolveIdentity(ctx, username)
	if failure != nil {
		return *failure, nil
	}

	alt := r.scorer.Score(ctx, req.Tenant.ID, id, nil)

	color := colorSuccess
	if alt.IsLikelyAlt {
		color = colorWarning
	}
	age := "Unknown"
	if alt.AccountAgeDays != nil {
		age = fmt.Sprintf("%d days", *alt.AccountAgeDays)
	}
	embed := gateway.Embed{
		Title: "Alt check",
		Color: color,
		Fields: []gateway.EmbedField{
			{Name: "Player", Value: identityLabel(username, id), Inline: true},
			{Name: "Account age", Value: age, Inline: true},
			{Name: "Verdict", Value: altVerdict(alt)},
		},
	}
	if len(alt.KnownAlts) > 0 {
		ids := make([]string, 0, len(alt.KnownAlts))
		for _, a := range alt.KnownAlts {
			ids = append(ids, "`"+strconv.FormatInt(a, 10)+"`")
		}
		embed.Fields = append(embed.Fields, gateway.EmbedField{Name: "Linked accounts", Value: strings.Join(ids, ", ")})
	}
	return Result{Reply: gateway.Reply{Embeds: []gateway.Embed{embed}}}, nil
}

func (r *Router) handleNote(ctx context.Context, req *Request) (Result, error) {
	username := req.Inv.Option("username")
	content := req.Inv.Option("content")
	if content == "" {
		return fail("A note cannot be empty."), nil
	}

	id, failure := r.resolveIdentity(ctx, username)
	if failure != nil {
		return *failure, nil
	}

	note := &models.Note{
		TenantID:       req.Tenant.ID,
		RobloxUserID:   id,
		RobloxUsername: username,
		AuthorID:       req.Inv.UserID,
		AuthorName:     req.Inv.UserName,
		Content:        truncate(content, 2000),
	}
	if err := r.store.CreateNote(ctx, note); err != nil {
		return Result{}, fmt.Errorf("create note: %w", err)
	}
	return succeed("Note saved", "Note added to "+identityLabel(username, id)+"."), nil
}

// handleHistory lists sanctions and notes for a player, with a select menu
// to open any sanction in detail.
func (r *Router) handleHistory(ctx context.Context, req *Request) (Result, error) {
	username := req.Inv.Option("username")
	id, failure := r.resolveIdentity(ctx, username)
	if failure != nil {
		return *failure, nil
	}

	sanctions, err := r.store.ListSanctionsForIdentity(ctx, req.Tenant.ID, id)
	if err != nil {
		return Result{}, fmt.Errorf("list sanctions: %w", err)
	}
	notes, err := r.store.ListNotes(ctx, req.Tenant.ID, id)
	if err != nil {
		return Result{}, fmt.Errorf("list notes: %w", err)
	}

	embed := gateway.Embed{
		Title: "History for " + username,
		Color: colorInfo,
	}
	if len(sanctions) == 0 && len(notes) == 0 {
		embed.Description = "No sanctions or notes recorded for " + identityLabel(username, id) + "."
		return Result{Reply: gateway.Reply{Embeds: []gateway.Embed{embed}}}, nil
	}

	var lines []string
	for _, s := range sanctions {
		status := "lifted"
		if s.Active {
			status = "active"
		}
		lines = append(lines, fmt.Sprintf("**%s** · %s · %s", s.CreatedAt.Format("2006-01-02"), status, truncate(s.Reason, 80)))
	}
	if len(lines) > 0 {
		embed.Fields = append(embed.Fields, gateway.EmbedField{Name: "Sanctions", Value: truncate(strings.Join(lines, "\n"), 1024)})
	}

	lines = lines[:0]
	for _, n := range notes {
		lines = append(lines, fmt.Sprintf("**%s** · %s: %s", n.CreatedAt.Format("2006-01-02"), n.AuthorName, truncate(n.Content, 120)))
	}
	if len(lines) > 0 {
		embed.Fields = append(embed.Fields, gateway.EmbedField{Name: "Notes", Value: truncate(strings.Join(lines, "\n"), 1024)})
	}

	reply := gateway.Reply{Embeds: []gateway.Embed{embed}}
	if len(sanctions) > 0 {
		menu := &gateway.SelectMenu{
			CustomID:    historySelectID + ":" + strconv.FormatInt(id, 10),
			Placeholder: "Open a sanction",
		}
		for i, s := range sanctions {
			if i == maxSelectOptions {
				break
			}
			menu.Options = append(menu.Options, gateway.SelectOption{
				Label:       s.CreatedAt.Format("2006-01-02") + " · " + truncate(s.Reason, 60),
				Value:       s.PublicID.String(),
				Description: "by " + truncate(s.ModeratorName, 80),
			})
		}
		reply.Components = []gateway.ComponentRow{{Select: menu}}
	}
	return Result{Reply: reply}, nil
}

func (r *Router) handleHistorySelect(ctx context.Context, req *Request) (Result, error) {
	if len(req.Inv.Values) == 0 {
		return fail("Pick a sanction to view."), nil
	}
	id, err := uuid.Parse(req.Inv.Values[0])
	if err != nil {
		return fail("That sanction could not be found."), nil
	}

	s, err := r.store.GetSanctionByPublicID(ctx, req.Tenant.ID, id)
	if errors.Is(err, repository.ErrNotFound) {
		return fail("That sanction could not be found."), nil
	}
	if err != nil {
		return Result{}, fmt.Errorf("load sanction: %w", err)
	}

	status := "Active"
	if !s.Active {
		status = "Lifted"
		if s.Metadata.LiftedBy != "" {
			status += " by " + s.Metadata.LiftedBy
		}
	}
	enforced := "No"
	if s.Metadata.RobloxEnforced {
		enforced = "Yes"
	} else if s.Metadata.RobloxError != "" {
		enforced = "No: " + truncate(s.Metadata.RobloxError, 200)
	}

	embed := gateway.Embed{
		Title: "Sanction " + s.PublicID.String(),
		Color: colorInfo,
		Fields: []gateway.EmbedField{
			{Name: "Player", Value: identityLabel(s.RobloxUsername, s.RobloxUserID), Inline: true},
			{Name: "Status", Value: status, Inline: true},
			{Name: "Duration", Value: durationLabel(s.Metadata.DurationDays), Inline: true},
			{Name: "Reason", Value: truncate(s.Reason, 1000)},
			{Name: "Moderator", Value: s.ModeratorName, Inline: true},
			{Name: "Enforced in-game", Value: enforced, Inline: true},
		},
	}
	if alt := s.AltDetection(); alt != nil {
		embed.Fields = append(embed.Fields, gateway.EmbedField{Name: "Alt detection at ban time", Value: altVerdict(*alt)})
	}
	return Result{Reply: gateway.Reply{Embeds: []gateway.Embed{embed}}}, nil
}
