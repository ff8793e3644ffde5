package gateway

import (
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToInvocation_Command(t *testing.T) {
	i := &discordgo.Interaction{
		ID:      "i1",
		Type:    discordgo.InteractionApplicationCommand,
		GuildID: "g1",
		Member:  &discordgo.Member{User: &discordgo.User{ID: "u1", Username: "mod"}},
		Data: discordgo.ApplicationCommandInteractionData{
			Name: "ban",
			Options: []*discordgo.ApplicationCommandInteractionDataOption{
				{Name: "username", Type: discordgo.ApplicationCommandOptionString, Value: "builderman"},
				{Name: "duration", Type: discordgo.ApplicationCommandOptionInteger, Value: float64(7)},
				{Name: "exclude_alts", Type: discordgo.ApplicationCommandOptionBoolean, Value: true},
			},
		},
	}

	inv, ok := toInvocation(i)
	require.True(t, ok)
	assert.Equal(t, KindCommand, inv.Kind)
	assert.Equal(t, "ban", inv.Route())
	assert.Equal(t, "u1", inv.UserID)
	assert.Equal(t, "builderman", inv.Option("username"))

	days, ok := inv.IntOption("duration")
	assert.True(t, ok)
	assert.Equal(t, 7, days)
	assert.True(t, inv.BoolOption("exclude_alts"))

	_, ok = inv.IntOption("missing")
	assert.False(t, ok)
}

func TestToInvocation_Components(t *testing.T) {
	button := &discordgo.Interaction{
		Type: discordgo.InteractionMessageComponent,
		User: &discordgo.User{ID: "u2"},
		Data: discordgo.MessageComponentInteractionData{CustomID: "report_open", ComponentType: discordgo.ButtonComponent},
	}
	inv, ok := toInvocation(button)
	require.True(t, ok)
	assert.Equal(t, KindButton, inv.Kind)
	assert.Equal(t, "u2", inv.UserID)

	menu := &discordgo.Interaction{
		Type: discordgo.InteractionMessageComponent,
		Data: discordgo.MessageComponentInteractionData{
			CustomID:      "history_select:156",
			ComponentType: discordgo.SelectMenuComponent,
			Values:        []string{"abc"},
		},
	}
	inv, ok = toInvocation(menu)
	require.True(t, ok)
	assert.Equal(t, KindSelectMenu, inv.Kind)
	assert.Equal(t, "history_select", inv.Route())
	assert.Equal(t, "156", inv.RouteArg())
	assert.Equal(t, []string{"abc"}, inv.Values)

	modal := &discordgo.Interaction{
		Type: discordgo.InteractionModalSubmit,
		Data: discordgo.ModalSubmitInteractionData{
			CustomID: "report_modal",
			Components: []discordgo.MessageComponent{
				&discordgo.ActionsRow{Components: []discordgo.MessageComponent{
					&discordgo.TextInput{CustomID: "target", Value: " cheater "},
				}},
				&discordgo.ActionsRow{Components: []discordgo.MessageComponent{
					&discordgo.TextInput{CustomID: "reason", Value: "speed hacks"},
				}},
			},
		},
	}
	inv, ok = toInvocation(modal)
	require.True(t, ok)
	assert.Equal(t, KindModalSubmit, inv.Kind)
	assert.Equal(t, "cheater", inv.Field("target"))
	assert.Equal(t, "speed hacks", inv.Field("reason"))

	_, ok = toInvocation(&discordgo.Interaction{Type: discordgo.InteractionPing})
	assert.False(t, ok)
}

func TestToApplicationCommands(t *testing.T) {
	cmds := toApplicationCommands([]CommandSpec{
		{
			Name:        "ban",
			Description: "Ban a player",
			Permission:  "ban_members",
			Options: []OptionSpec{
				{Name: "username", Description: "Roblox username", Type: OptionString, Required: true},
				{Name: "duration", Description: "Days", Type: OptionInteger},
			},
		},
		{Name: "linkkey", Description: "Link this server"},
	})

	require.Len(t, cmds, 2)
	require.NotNil(t, cmds[0].DefaultMemberPermissions)
	assert.Equal(t, int64(discordgo.PermissionBanMembers), *cmds[0].DefaultMemberPermissions)
	assert.Equal(t, discordgo.ApplicationCommandOptionInteger, cmds[0].Options[1].Type)
	assert.True(t, cmds[0].Options[0].Required)
	assert.Nil(t, cmds[1].DefaultMemberPermissions)
}

func TestToComponents(t *testing.T) {
	rows := toComponents([]ComponentRow{
		{Buttons: []Button{{CustomID: "report_open", Label: "Report", Style: ButtonDanger}}},
		{Select: &SelectMenu{CustomID: "history_select", Options: []SelectOption{{Label: "a", Value: "1"}}}},
		{},
	})
	require.Len(t, rows, 2)

	first, ok := rows[0].(discordgo.ActionsRow)
	require.True(t, ok)
	btn, ok := first.Components[0].(discordgo.Button)
	require.True(t, ok)
	assert.Equal(t, discordgo.DangerButton, btn.Style)
}
