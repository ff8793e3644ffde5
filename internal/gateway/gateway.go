// Package gateway defines the transport-neutral shapes of the real-time
// session: inbound interactions, outbound replies, and the connection handle
// the supervisor owns. The Discord implementation lives in discord.go.
package gateway

import (
	"context"
	"errors"
	"strconv"
	"strings"
)

// ErrDisconnected is reported to OnDisconnect when the transport closes
// without an explicit Close.
var ErrDisconnected = errors.New("gateway: connection lost")

// Kind identifies the type of inbound interaction.
type Kind string

// Interaction kinds.
const (
	KindCommand     Kind = "command"
	KindModalSubmit Kind = "modalSubmit"
	KindSelectMenu  Kind = "selectMenu"
	KindButton      Kind = "button"
)

// Invocation is one inbound interaction. It is built from the transport event
// and never persisted.
type Invocation struct {
	Kind          Kind
	InteractionID string
	// TenantID is empty for interactions received on the centralized session.
	TenantID  string
	GuildID   string
	ChannelID string
	UserID    string
	UserName  string
	// Name is the command name for KindCommand.
	Name string
	// CustomID is the component or modal id for the other kinds.
	CustomID      string
	Options       map[string]string
	Values        []string
	Fields        map[string]string
	CorrelationID string
}

// Route returns the registry key of the invocation: the command name, or the
// custom id up to the first colon.
func (inv Invocation) Route() string {
	if inv.Kind == KindCommand {
		return inv.Name
	}
	route, _, _ := strings.Cut(inv.CustomID, ":")
	return route
}

// RouteArg returns the custom id suffix after the first colon.
func (inv Invocation) RouteArg() string {
	_, arg, _ := strings.Cut(inv.CustomID, ":")
	return arg
}

// Option returns a trimmed string option.
func (inv Invocation) Option(name string) string {
	return strings.TrimSpace(inv.Options[name])
}

// IntOption returns an integer option and whether it was supplied.
func (inv Invocation) IntOption(name string) (int, bool) {
	v, ok := inv.Options[name]
	if !ok || v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

// BoolOption returns a boolean option, false when absent.
func (inv Invocation) BoolOption(name string) bool {
	b, _ := strconv.ParseBool(inv.Options[name])
	return b
}

// Field returns a trimmed modal field value.
func (inv Invocation) Field(name string) string {
	return strings.TrimSpace(inv.Fields[name])
}

// EmbedField is one name/value row of an Embed.
type EmbedField struct {
	Name   string
	Value  string
	Inline bool
}

// Embed is a rich message block.
type Embed struct {
	Title       string
	Description string
	Color       int
	Fields      []EmbedField
	Footer      string
}

// ButtonStyle selects the visual style of a Button.
type ButtonStyle int

// Button styles.
const (
	ButtonPrimary ButtonStyle = iota
	ButtonSecondary
	ButtonDanger
)

// Button is a clickable component.
type Button struct {
	CustomID string
	Label    string
	Style    ButtonStyle
}

// SelectOption is one entry of a SelectMenu.
type SelectOption struct {
	Label       string
	Value       string
	Description string
}

// SelectMenu is a string select component.
type SelectMenu struct {
	CustomID    string
	Placeholder string
	Options     []SelectOption
}

// ComponentRow is one action row: either buttons or a single select menu.
type ComponentRow struct {
	Buttons []Button
	Select  *SelectMenu
}

// Reply is an outbound message.
type Reply struct {
	Content    string
	Embeds     []Embed
	Components []ComponentRow
	Ephemeral  bool
}

// TextInputStyle selects single or multi line input.
type TextInputStyle int

// Text input styles.
const (
	TextShort TextInputStyle = iota
	TextParagraph
)

// TextInput is one modal field.
type TextInput struct {
	CustomID    string
	Label       string
	Style       TextInputStyle
	Placeholder string
	Required    bool
	MaxLength   int
}

// Modal is a popup form.
type Modal struct {
	CustomID string
	Title    string
	Inputs   []TextInput
}

// Responder answers one interaction. Exactly one of Reply, Defer or
// OpenModal acknowledges it; Edit updates a deferred reply.
type Responder interface {
	Reply(ctx context.Context, reply Reply) error
	Defer(ctx context.Context, ephemeral bool) error
	Edit(ctx context.Context, reply Reply) error
	OpenModal(ctx context.Context, modal Modal) error
}

// OptionType is the declared type of a command option.
type OptionType string

// Option types.
const (
	OptionString  OptionType = "string"
	OptionInteger OptionType = "integer"
	OptionBoolean OptionType = "boolean"
	OptionUser    OptionType = "user"
)

// OptionSpec declares one command option.
type OptionSpec struct {
	Name        string     `yaml:"name"`
	Description string     `yaml:"description"`
	Type        OptionType `yaml:"type"`
	Required    bool       `yaml:"required"`
}

// CommandSpec declares one command of the surface. Permission names the
// member permission required to see the command; empty means everyone.
type CommandSpec struct {
	Name        string       `yaml:"name"`
	Description string       `yaml:"description"`
	Permission  string       `yaml:"permission"`
	Options     []OptionSpec `yaml:"options"`
}

// Channel is a guild channel visible to the session.
type Channel struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type int    `json:"type"`
}

// Identity is the bot account a session is logged in as.
type Identity struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// Conn is a live transport connection.
type Conn interface {
	Identity() Identity
	// RegisterCommands replaces the full command surface in one guild.
	RegisterCommands(ctx context.Context, guildID string, specs []CommandSpec) error
	Channels(ctx context.Context, guildID string) ([]Channel, error)
	SendMessage(ctx context.Context, channelID string, msg Reply) error
	Close() error
}

// Handlers are the transport callbacks. They may run on transport goroutines.
type Handlers struct {
	OnReady       func(conn Conn)
	OnDisconnect  func(err error)
	OnInteraction func(inv Invocation, responder Responder)
}

// DialConfig configures one connection.
type DialConfig struct {
	Token    string
	Handlers Handlers
}

// Dialer opens connections. Dial returns an error when the handshake is
// rejected, for example because of a bad token.
type Dialer interface {
	Dial(ctx context.Context, cfg DialConfig) (Conn, error)
}
