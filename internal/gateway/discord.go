package gateway

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/bwmarrin/discordgo"
)

// Intents is the fixed capability set requested by every session.
const Intents = discordgo.IntentsGuilds |
	discordgo.IntentsGuildMessages |
	discordgo.IntentsMessageContent |
	discordgo.IntentsGuildMembers

var permissions = map[string]int64{
	"ban_members":      discordgo.PermissionBanMembers,
	"kick_members":     discordgo.PermissionKickMembers,
	"moderate_members": discordgo.PermissionModerateMembers,
	"manage_guild":     discordgo.PermissionManageServer,
}

// DiscordDialer opens discordgo sessions. Automatic reconnects inside
// discordgo are disabled; recovery belongs to the supervisor.
type DiscordDialer struct{}

// Dial opens a gateway connection and blocks until the handshake completes.
func (DiscordDialer) Dial(ctx context.Context, cfg DialConfig) (Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("gateway: new session: %w", err)
	}
	s.Identify.Intents = Intents
	s.ShouldReconnectOnError = false

	c := &discordConn{s: s}
	h := cfg.Handlers

	s.AddHandler(func(_ *discordgo.Session, r *discordgo.Ready) {
		if r.User != nil {
			c.setIdentity(Identity{ID: r.User.ID, Username: r.User.Username})
		}
		if h.OnReady != nil {
			h.OnReady(c)
		}
	})
	s.AddHandler(func(_ *discordgo.Session, _ *discordgo.Disconnect) {
		if c.closing.Load() {
			return
		}
		if h.OnDisconnect != nil {
			h.OnDisconnect(ErrDisconnected)
		}
	})
	s.AddHandler(func(ds *discordgo.Session, ic *discordgo.InteractionCreate) {
		inv, ok := toInvocation(ic.Interaction)
		if !ok || h.OnInteraction == nil {
			return
		}
		h.OnInteraction(inv, &discordResponder{s: ds, i: ic.Interaction})
	})

	if err := s.Open(); err != nil {
		c.closing.Store(true)
		return nil, fmt.Errorf("gateway: open: %w", err)
	}
	return c, nil
}

type discordConn struct {
	s       *discordgo.Session
	closing atomic.Bool

	mu       sync.RWMutex
	identity Identity
}

func (c *discordConn) setIdentity(id Identity) {
	c.mu.Lock()
	c.identity = id
	c.mu.Unlock()
}

func (c *discordConn) Identity() Identity {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.identity
}

func (c *discordConn) RegisterCommands(ctx context.Context, guildID string, specs []CommandSpec) error {
	appID := c.Identity().ID
	if appID == "" && c.s.State != nil && c.s.State.User != nil {
		appID = c.s.State.User.ID
	}
	if appID == "" {
		return fmt.Errorf("gateway: register commands: application id unknown")
	}
	_, err := c.s.ApplicationCommandBulkOverwrite(appID, guildID, toApplicationCommands(specs), discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("gateway: register commands: %w", err)
	}
	return nil
}

func (c *discordConn) Channels(ctx context.Context, guildID string) ([]Channel, error) {
	chans, err := c.s.GuildChannels(guildID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("gateway: list channels: %w", err)
	}
	out := make([]Channel, 0, len(chans))
	for _, ch := range chans {
		out = append(out, Channel{ID: ch.ID, Name: ch.Name, Type: int(ch.Type)})
	}
	return out, nil
}

func (c *discordConn) SendMessage(ctx context.Context, channelID string, msg Reply) error {
	_, err := c.s.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Content:    msg.Content,
		Embeds:     toEmbeds(msg.Embeds),
		Components: toComponents(msg.Components),
	}, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("gateway: send message: %w", err)
	}
	return nil
}

func (c *discordConn) Close() error {
	c.closing.Store(true)
	return c.s.Close()
}

type discordResponder struct {
	s *discordgo.Session
	i *discordgo.Interaction
}

func (r *discordResponder) Reply(ctx context.Context, reply Reply) error {
	return r.s.InteractionRespond(r.i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: toResponseData(reply),
	}, discordgo.WithContext(ctx))
}

func (r *discordResponder) Defer(ctx context.Context, ephemeral bool) error {
	data := &discordgo.InteractionResponseData{}
	if ephemeral {
		data.Flags = discordgo.MessageFlagsEphemeral
	}
	return r.s.InteractionRespond(r.i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: data,
	}, discordgo.WithContext(ctx))
}

func (r *discordResponder) Edit(ctx context.Context, reply Reply) error {
	content := reply.Content
	embeds := toEmbeds(reply.Embeds)
	components := toComponents(reply.Components)
	_, err := r.s.InteractionResponseEdit(r.i, &discordgo.WebhookEdit{
		Content:    &content,
		Embeds:     &embeds,
		Components: &components,
	}, discordgo.WithContext(ctx))
	return err
}

func (r *discordResponder) OpenModal(ctx context.Context, modal Modal) error {
	rows := make([]discordgo.MessageComponent, 0, len(modal.Inputs))
	for _, in := range modal.Inputs {
		style := discordgo.TextInputShort
		if in.Style == TextParagraph {
			style = discordgo.TextInputParagraph
		}
		rows = append(rows, discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.TextInput{
				CustomID:    in.CustomID,
				Label:       in.Label,
				Style:       style,
				Placeholder: in.Placeholder,
				Required:    in.Required,
				MaxLength:   in.MaxLength,
			},
		}})
	}
	return r.s.InteractionRespond(r.i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseModal,
		Data: &discordgo.InteractionResponseData{
			CustomID:   modal.CustomID,
			Title:      modal.Title,
			Components: rows,
		},
	}, discordgo.WithContext(ctx))
}

func toInvocation(i *discordgo.Interaction) (Invocation, bool) {
	inv := Invocation{
		InteractionID: i.ID,
		GuildID:       i.GuildID,
		ChannelID:     i.ChannelID,
	}
	switch {
	case i.Member != nil && i.Member.User != nil:
		inv.UserID, inv.UserName = i.Member.User.ID, i.Member.User.Username
	case i.User != nil:
		inv.UserID, inv.UserName = i.User.ID, i.User.Username
	}

	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		data := i.ApplicationCommandData()
		inv.Kind = KindCommand
		inv.Name = data.Name
		inv.Options = make(map[string]string, len(data.Options))
		for _, opt := range data.Options {
			inv.Options[opt.Name] = optionString(opt.Value)
		}
	case discordgo.InteractionMessageComponent:
		data := i.MessageComponentData()
		inv.CustomID = data.CustomID
		inv.Values = data.Values
		if data.ComponentType == discordgo.ButtonComponent {
			inv.Kind = KindButton
		} else {
			inv.Kind = KindSelectMenu
		}
	case discordgo.InteractionModalSubmit:
		data := i.ModalSubmitData()
		inv.Kind = KindModalSubmit
		inv.CustomID = data.CustomID
		inv.Fields = map[string]string{}
		collectFields(data.Components, inv.Fields)
	default:
		return Invocation{}, false
	}
	return inv, true
}

func collectFields(components []discordgo.MessageComponent, into map[string]string) {
	for _, c := range components {
		switch v := c.(type) {
		case *discordgo.ActionsRow:
			collectFields(v.Components, into)
		case discordgo.ActionsRow:
			collectFields(v.Components, into)
		case *discordgo.TextInput:
			into[v.CustomID] = v.Value
		case discordgo.TextInput:
			into[v.CustomID] = v.Value
		}
	}
}

func optionString(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		if t == float64(int64(t)) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case nil:
		return ""
	default:
		return fmt.Sprint(t)
	}
}

func toApplicationCommands(specs []CommandSpec) []*discordgo.ApplicationCommand {
	cmds := make([]*discordgo.ApplicationCommand, 0, len(specs))
	for _, spec := range specs {
		cmd := &discordgo.ApplicationCommand{
			Name:        spec.Name,
			Description: spec.Description,
		}
		if perm, ok := permissions[spec.Permission]; ok {
			p := perm
			cmd.DefaultMemberPermissions = &p
		}
		for _, opt := range spec.Options {
			cmd.Options = append(cmd.Options, &discordgo.ApplicationCommandOption{
				Type:        optionType(opt.Type),
				Name:        opt.Name,
				Description: opt.Description,
				Required:    opt.Required,
			})
		}
		cmds = append(cmds, cmd)
	}
	return cmds
}

func optionType(t OptionType) discordgo.ApplicationCommandOptionType {
	switch t {
	case OptionInteger:
		return discordgo.ApplicationCommandOptionInteger
	case OptionBoolean:
		return discordgo.ApplicationCommandOptionBoolean
	case OptionUser:
		return discordgo.ApplicationCommandOptionUser
	default:
		return discordgo.ApplicationCommandOptionString
	}
}

func toResponseData(reply Reply) *discordgo.InteractionResponseData {
	data := &discordgo.InteractionResponseData{
		Content:    reply.Content,
		Embeds:     toEmbeds(reply.Embeds),
		Components: toComponents(reply.Components),
	}
	if reply.Ephemeral {
		data.Flags = discordgo.MessageFlagsEphemeral
	}
	return data
}

func toEmbeds(embeds []Embed) []*discordgo.MessageEmbed {
	out := make([]*discordgo.MessageEmbed, 0, len(embeds))
	for _, e := range embeds {
		me := &discordgo.MessageEmbed{
			Title:       e.Title,
			Description: e.Description,
			Color:       e.Color,
		}
		for _, f := range e.Fields {
			me.Fields = append(me.Fields, &discordgo.MessageEmbedField{Name: f.Name, Value: f.Value, Inline: f.Inline})
		}
		if e.Footer != "" {
			me.Footer = &discordgo.MessageEmbedFooter{Text: e.Footer}
		}
		out = append(out, me)
	}
	return out
}

func toComponents(rows []ComponentRow) []discordgo.MessageComponent {
	out := make([]discordgo.MessageComponent, 0, len(rows))
	for _, row := range rows {
		var items []discordgo.MessageComponent
		for _, b := range row.Buttons {
			items = append(items, discordgo.Button{
				CustomID: b.CustomID,
				Label:    b.Label,
				Style:    buttonStyle(b.Style),
			})
		}
		if row.Select != nil {
			opts := make([]discordgo.SelectMenuOption, 0, len(row.Select.Options))
			for _, o := range row.Select.Options {
				opts = append(opts, discordgo.SelectMenuOption{Label: o.Label, Value: o.Value, Description: o.Description})
			}
			items = append(items, discordgo.SelectMenu{
				CustomID:    row.Select.CustomID,
				Placeholder: row.Select.Placeholder,
				Options:     opts,
			})
		}
		if len(items) > 0 {
			out = append(out, discordgo.ActionsRow{Components: items})
		}
	}
	return out
}

func buttonStyle(s ButtonStyle) discordgo.ButtonStyle {
	switch s {
	case ButtonDanger:
		return discordgo.DangerButton
	case ButtonSecondary:
		return discordgo.SecondaryButton
	default:
		return discordgo.PrimaryButton
	}
}
