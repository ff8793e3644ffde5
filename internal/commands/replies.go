package commands

import (
	"fmt"
	"strings"

	"warden/internal/gateway"
	"warden/internal/models"
)

const (
	colorSuccess = 0x2ECC71
	colorWarning = 0xF1C40F
	colorDanger  = 0xE74C3C
	colorInfo    = 0x3498DB
)

func fail(msg string) Result {
	return Result{Reply: gateway.Reply{
		Embeds:    []gateway.Embed{{Description: "❌ " + msg, Color: colorDanger}},
		Ephemeral: true,
	}}
}

func succeed(title, msg string) Result {
	return Result{Reply: gateway.Reply{
		Embeds: []gateway.Embed{{Title: title, Description: msg, Color: colorSuccess}},
	}}
}

func identityLabel(name string, id int64) string {
	return fmt.Sprintf("%s (`%d`)", name, id)
}

func durationLabel(days *int) string {
	if days == nil || *days <= 0 {
		return "Permanent"
	}
	if *days == 1 {
		return "1 day"
	}
	return fmt.Sprintf("%d days", *days)
}

func altVerdict(alt models.AltDetectionResult) string {
	var b strings.Builder
	if alt.IsLikelyAlt {
		fmt.Fprintf(&b, "⚠️ Likely alt account (confidence %d%%)", alt.Confidence)
	} else {
		fmt.Fprintf(&b, "Not flagged (confidence %d%%)", alt.Confidence)
	}
	for _, reason := range alt.Reasons {
		b.WriteString("\n• ")
		b.WriteString(reason)
	}
	return b.String()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
