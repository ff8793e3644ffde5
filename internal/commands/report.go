package commands

import (
	"context"
	"fmt"

	"warden/internal/gateway"
	"warden/internal/models"
	"warden/internal/validation"
)

const (
	reportOpenID  = "report_open"
	reportModalID = "report_modal"
)

var reportModal = gateway.Modal{
	CustomID: reportModalID,
	Title:    "Report a player",
	Inputs: []gateway.TextInput{
		{CustomID: "target", Label: "Roblox username", Style: gateway.TextShort, Required: true, MaxLength: 20},
		{CustomID: "reason", Label: "What happened?", Style: gateway.TextParagraph, Required: true, MaxLength: 1000},
		{CustomID: "evidence", Label: "Evidence links (optional)", Style: gateway.TextParagraph, MaxLength: 1000},
	},
}

// Panel is the reusable report panel deployed by the centralized session.
func (r *Router) Panel() gateway.Reply {
	return gateway.Reply{
		Embeds: []gateway.Embed{{
			Title:       "Report a player",
			Description: "Saw someone breaking the rules in-game? Press the button below to send a report to the moderators.",
			Color:       colorInfo,
		}},
		Components: []gateway.ComponentRow{{
			Buttons: []gateway.Button{{CustomID: reportOpenID, Label: "Report a player", Style: gateway.ButtonDanger}},
		}},
	}
}

func (r *Router) handleReportOpen(_ context.Context, _ *Request) (Result, error) {
	modal := reportModal
	return Result{Modal: &modal}, nil
}

func (r *Router) handleReportSubmit(ctx context.Context, req *Request) (Result, error) {
	target := req.Inv.Field("target")
	reason := req.Inv.Field("reason")
	if target == "" || reason == "" {
		return fail("A report needs a username and a description of what happened."), nil
	}
	if err := validation.ValidateUsername(target); err != nil {
		return fail(fmt.Sprintf("**%s** is not a valid Roblox username.", target)), nil
	}

	report := &models.Report{
		TenantID:       req.Tenant.ID,
		ReporterID:     req.Inv.UserID,
		ReporterName:   req.Inv.UserName,
		TargetUsername: target,
		Reason:         reason,
		Evidence:       req.Inv.Field("evidence"),
	}
	if err := r.store.CreateReport(ctx, report); err != nil {
		return Result{}, fmt.Errorf("create report: %w", err)
	}
	return succeed("Report submitted", fmt.Sprintf("Thanks. Your report about **%s** was sent to the moderators.", target)), nil
}
