// Package gatewaytest provides in-memory gateway fakes for tests.
package gatewaytest

import (
	"context"
	"errors"
	"sync"

	"warden/internal/gateway"
)

// Dialer is a scripted gateway.Dialer. Tokens listed in Reject fail the
// handshake; every successful Dial produces a Conn recorded in Conns.
type Dialer struct {
	mu       sync.Mutex
	Reject   map[string]bool
	Conns    []*Conn
	attempts int
	// AutoReady fires OnReady synchronously inside Dial.
	AutoReady bool
}

// ErrRejected is returned for rejected tokens.
var ErrRejected = errors.New("gatewaytest: authentication failed")

// NewDialer creates a Dialer that reports ready immediately.
func NewDialer() *Dialer {
	return &Dialer{Reject: map[string]bool{}, AutoReady: true}
}

// Dial implements gateway.Dialer.
func (d *Dialer) Dial(_ context.Context, cfg gateway.DialConfig) (gateway.Conn, error) {
	d.mu.Lock()
	d.attempts++
	if d.Reject[cfg.Token] {
		d.mu.Unlock()
		return nil, ErrRejected
	}
	c := &Conn{
		Token:    cfg.Token,
		handlers: cfg.Handlers,
		identity: gateway.Identity{ID: "app-" + cfg.Token, Username: "bot-" + cfg.Token},
		channels: map[string][]gateway.Channel{},
	}
	d.Conns = append(d.Conns, c)
	autoReady := d.AutoReady
	d.mu.Unlock()

	if autoReady {
		c.Ready()
	}
	return c, nil
}

// SetReject marks a token as rejected or accepted.
func (d *Dialer) SetReject(token string, reject bool) {
	d.mu.Lock()
	d.Reject[token] = reject
	d.mu.Unlock()
}

// Attempts returns the number of Dial calls, including rejected ones.
func (d *Dialer) Attempts() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.attempts
}

// DialCount returns the number of successful dials.
func (d *Dialer) DialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.Conns)
}

// Last returns the most recent Conn.
func (d *Dialer) Last() *Conn {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.Conns) == 0 {
		return nil
	}
	return d.Conns[len(d.Conns)-1]
}

// OpenConns counts dialled connections that were not closed.
func (d *Dialer) OpenConns() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, c := range d.Conns {
		if !c.IsClosed() {
			n++
		}
	}
	return n
}

// Conn is an in-memory gateway.Conn.
type Conn struct {
	Token    string
	handlers gateway.Handlers
	identity gateway.Identity

	// RegisterErr makes RegisterCommands fail.
	RegisterErr error

	mu         sync.Mutex
	closed     bool
	registered map[string][]gateway.CommandSpec
	channels   map[string][]gateway.Channel
	sent       []SentMessage
}

// SentMessage records one SendMessage call.
type SentMessage struct {
	ChannelID string
	Message   gateway.Reply
}

// Ready fires the OnReady handler.
func (c *Conn) Ready() {
	if c.handlers.OnReady != nil {
		c.handlers.OnReady(c)
	}
}

// Drop simulates a transport failure.
func (c *Conn) Drop(err error) {
	if err == nil {
		err = gateway.ErrDisconnected
	}
	if c.handlers.OnDisconnect != nil {
		c.handlers.OnDisconnect(err)
	}
}

// Interact delivers an interaction to the connection's handler.
func (c *Conn) Interact(inv gateway.Invocation, r gateway.Responder) {
	if c.handlers.OnInteraction != nil {
		c.handlers.OnInteraction(inv, r)
	}
}

// SetChannels seeds the channel list of a guild.
func (c *Conn) SetChannels(guildID string, channels []gateway.Channel) {
	c.mu.Lock()
	c.channels[guildID] = channels
	c.mu.Unlock()
}

// Registered returns the command surface last registered for a guild.
func (c *Conn) Registered(guildID string) []gateway.CommandSpec {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.registered[guildID]
}

// Sent returns the messages sent through the connection.
func (c *Conn) Sent() []SentMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]SentMessage(nil), c.sent...)
}

// IsClosed reports whether Close was called.
func (c *Conn) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Conn) Identity() gateway.Identity { return c.identity }

func (c *Conn) RegisterCommands(_ context.Context, guildID string, specs []gateway.CommandSpec) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.RegisterErr != nil {
		return c.RegisterErr
	}
	if c.registered == nil {
		c.registered = map[string][]gateway.CommandSpec{}
	}
	c.registered[guildID] = specs
	return nil
}

func (c *Conn) Channels(_ context.Context, guildID string) ([]gateway.Channel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.channels[guildID], nil
}

func (c *Conn) SendMessage(_ context.Context, channelID string, msg gateway.Reply) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, SentMessage{ChannelID: channelID, Message: msg})
	return nil
}

func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

// Responder records every response call.
type Responder struct {
	mu                sync.Mutex
	Replies           []gateway.Reply
	Edits             []gateway.Reply
	Modals            []gateway.Modal
	Deferred          bool
	DeferredEphemeral bool
	// FailReply makes Reply return an error.
	FailReply error
}

func (r *Responder) Reply(_ context.Context, reply gateway.Reply) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailReply != nil {
		return r.FailReply
	}
	r.Replies = append(r.Replies, reply)
	return nil
}

func (r *Responder) Defer(_ context.Context, ephemeral bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Deferred = true
	r.DeferredEphemeral = ephemeral
	return nil
}

func (r *Responder) Edit(_ context.Context, reply gateway.Reply) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Edits = append(r.Edits, reply)
	return nil
}

func (r *Responder) OpenModal(_ context.Context, modal gateway.Modal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Modals = append(r.Modals, modal)
	return nil
}

// Final returns the last visible response: the last edit when deferred,
// otherwise the last reply.
func (r *Responder) Final() gateway.Reply {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Deferred && len(r.Edits) > 0 {
		return r.Edits[len(r.Edits)-1]
	}
	if len(r.Replies) > 0 {
		return r.Replies[len(r.Replies)-1]
	}
	return gateway.Reply{}
}
