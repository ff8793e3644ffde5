// Package supervisor owns one live gateway session per tenant plus the
// centralized session. It starts sessions, registers the command surface on
// ready, and restarts failed sessions with bounded exponential backoff.
package supervisor

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"warden/internal/gateway"
	"warden/internal/models"
	"warden/internal/observability"

	"github.com/jonboulle/clockwork"
)

// State is the lifecycle state of one session.
type State string

// Session states.
const (
	StateStopped      State = "stopped"
	StateStarting     State = "starting"
	StateLive         State = "live"
	StateDisconnected State = "disconnected"
	StateRestarting   State = "restarting"
	StateGivenUp      State = "given_up"
)

const (
	// MaxRetries is the number of automatic restarts before a session gives up.
	// The counter survives reaching Live and only resets once the session has
	// stayed Live for StableWindow, so a session that flaps between ready and
	// disconnected still gives up.
	MaxRetries = 5
	// StableWindow is how long a session must stay Live before its retry
	// counter resets.
	StableWindow = 5 * time.Minute
	// BaseBackoff is the restart delay unit; the n-th retry waits BaseBackoff * 2^n.
	BaseBackoff = 5 * time.Second
	// CentralKey is the session key of the centralized session.
	CentralKey = "__central__"

	defaultConcurrency = 4
)

var (
	// ErrNotLive is returned by operations that need a live session.
	ErrNotLive = errors.New("supervisor: session is not live")
	// ErrNoCentralCredential is returned when no central token can be resolved.
	ErrNoCentralCredential = errors.New("supervisor: no central bot credential configured")
)

// BackoffDelay returns the restart delay for the given retry count.
func BackoffDelay(retries int) time.Duration {
	return BaseBackoff << uint(retries)
}

// Surface is the command surface served on every session.
type Surface interface {
	Commands() []gateway.CommandSpec
	Panel() gateway.Reply
	Dispatch(ctx context.Context, inv gateway.Invocation, r gateway.Responder)
}

// Vault encrypts and decrypts stored credentials.
type Vault interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// Store is the persistence the supervisor reads credentials from.
type Store interface {
	ListAllBotCredentials(ctx context.Context) ([]models.BotCredential, error)
	GetAppSetting(ctx context.Context, key string) (*models.AppSetting, error)
	SetAppSetting(ctx context.Context, key, value string, encrypted bool) error
}

// Transition describes one session state change.
type Transition struct {
	TenantID string           `json:"tenant_id"`
	From     State            `json:"from"`
	To       State            `json:"to"`
	Retries  int              `json:"retries"`
	Identity gateway.Identity `json:"identity"`
	At       time.Time        `json:"at"`
}

// Observer is notified of every transition. Implementations must not block.
type Observer interface {
	SessionChanged(ctx context.Context, t Transition)
}

// Status is the externally visible state of one session.
type Status struct {
	TenantID    string            `json:"tenant_id"`
	Online      bool              `json:"online"`
	Identity    *gateway.Identity `json:"identity,omitempty"`
	State       State             `json:"state"`
	Retries     int               `json:"retries"`
	LastRestart *time.Time        `json:"last_restart,omitempty"`
}

// Deps are the collaborators of a Supervisor.
type Deps struct {
	Dialer   gateway.Dialer
	Surface  Surface
	Vault    Vault
	Store    Store
	Observer Observer
}

// Option customises a Supervisor.
type Option func(*Supervisor)

// WithClock sets the clock used for restart timers.
func WithClock(c clockwork.Clock) Option {
	return func(s *Supervisor) { s.clock = c }
}

// WithConcurrency bounds the number of parallel dials in LoadAll.
func WithConcurrency(n int) Option {
	return func(s *Supervisor) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// WithCentralToken sets the environment fallback for the central credential.
func WithCentralToken(token string) Option {
	return func(s *Supervisor) { s.envCentralToken = token }
}

type session struct {
	tenantID    string
	token       string
	guildID     string
	conn        gateway.Conn
	identity    gateway.Identity
	state       State
	retries     int
	lastRestart time.Time
	liveSince   time.Time
	timer       clockwork.Timer
	gen         uint64
}

// Supervisor is the session arena. All map mutations happen under mu;
// transports are dialled and closed outside it.
type Supervisor struct {
	dialer   gateway.Dialer
	surface  Surface
	vault    Vault
	store    Store
	observer Observer

	clock           clockwork.Clock
	concurrency     int
	envCentralToken string
	log             *observability.SessionLogger
	logger          *slog.Logger

	mu           sync.RWMutex
	sessions     map[string]*session
	nextGen      uint64
	centralToken string
}

// New creates a Supervisor.
func New(deps Deps, opts ...Option) *Supervisor {
	s := &Supervisor{
		dialer:      deps.Dialer,
		surface:     deps.Surface,
		vault:       deps.Vault,
		store:       deps.Store,
		observer:    deps.Observer,
		clock:       clockwork.NewRealClock(),
		concurrency: defaultConcurrency,
		log:         observability.NewSessionLogger("supervisor"),
		logger:      observability.Logger,
		sessions:    make(map[string]*session),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start opens a session for a tenant, replacing any existing one. It returns
// false when the handshake is rejected; callers surface that to the user.
func (s *Supervisor) Start(ctx context.Context, tenantID, token, guildID string) bool {
	return s.start(ctx, tenantID, token, guildID, 0, 0)
}

// start installs and dials a new session generation. A non-zero restartGen
// marks a scheduled restart: it only proceeds while that generation is still
// current and Restarting, so a Stop or an explicit Start that landed after
// the timer fired wins.
func (s *Supervisor) start(ctx context.Context, tenantID, token, guildID string, retries int, restartGen uint64) bool {
	ctx = observability.WithTenant(ctx, tenantID)
	restart := restartGen != 0

	s.mu.Lock()
	if restart {
		cur := s.currentLocked(tenantID, restartGen)
		if cur == nil || cur.state != StateRestarting {
			s.mu.Unlock()
			return false
		}
	}
	prev := StateStopped
	var oldConn gateway.Conn
	if old, ok := s.sessions[tenantID]; ok {
		prev = old.state
		oldConn = s.detachLocked(old)
	}
	s.nextGen++
	sess := &session{
		tenantID: tenantID,
		token:    token,
		guildID:  guildID,
		state:    StateStarting,
		retries:  retries,
		gen:      s.nextGen,
	}
	if restart {
		sess.lastRestart = s.clock.Now()
	}
	s.sessions[tenantID] = sess
	gen := sess.gen
	s.mu.Unlock()

	closeConn(oldConn)
	s.emit(ctx, tenantID, prev, StateStarting, retries, gateway.Identity{})

	conn, err := s.dialer.Dial(ctx, gateway.DialConfig{
		Token:    token,
		Handlers: s.handlers(tenantID, gen),
	})
	if err != nil {
		s.log.LogError(ctx, tenantID, err, "dial")
		if restart {
			s.onFailure(tenantID, gen, err)
			return false
		}
		s.mu.Lock()
		removed := false
		if cur, ok := s.sessions[tenantID]; ok && cur.gen == gen {
			delete(s.sessions, tenantID)
			removed = true
		}
		s.mu.Unlock()
		if removed {
			s.emit(ctx, tenantID, StateStarting, StateStopped, retries, gateway.Identity{})
		}
		return false
	}

	s.mu.Lock()
	cur, ok := s.sessions[tenantID]
	if !ok || cur.gen != gen {
		s.mu.Unlock()
		closeConn(conn)
		return false
	}
	if cur.conn == nil {
		cur.conn = conn
	}
	s.mu.Unlock()
	return true
}

func (s *Supervisor) handlers(tenantID string, gen uint64) gateway.Handlers {
	return gateway.Handlers{
		OnReady: func(conn gateway.Conn) {
			s.onReady(tenantID, gen, conn)
		},
		OnDisconnect: func(err error) {
			s.onFailure(tenantID, gen, err)
		},
		OnInteraction: func(inv gateway.Invocation, r gateway.Responder) {
			s.onInteraction(tenantID, gen, inv, r)
		},
	}
}

func (s *Supervisor) onReady(tenantID string, gen uint64, conn gateway.Conn) {
	ctx := observability.WithTenant(context.Background(), tenantID)

	s.mu.Lock()
	sess := s.currentLocked(tenantID, gen)
	if sess == nil {
		s.mu.Unlock()
		return
	}
	sess.conn = conn
	guildID := sess.guildID
	s.mu.Unlock()

	if guildID != "" && s.surface != nil {
		if err := conn.RegisterCommands(ctx, guildID, s.surface.Commands()); err != nil {
			s.log.LogError(ctx, tenantID, err, "register_commands")
		}
	}

	s.mu.Lock()
	sess = s.currentLocked(tenantID, gen)
	if sess == nil {
		s.mu.Unlock()
		return
	}
	prev := sess.state
	sess.state = StateLive
	sess.liveSince = s.clock.Now()
	sess.identity = conn.Identity()
	identity, retries := sess.identity, sess.retries
	s.mu.Unlock()

	s.emit(ctx, tenantID, prev, StateLive, retries, identity)
}

// onFailure handles a transport error or disconnect for one generation.
// Repeated events for the same generation are ignored.
func (s *Supervisor) onFailure(tenantID string, gen uint64, cause error) {
	ctx := observability.WithTenant(context.Background(), tenantID)

	s.mu.Lock()
	sess := s.currentLocked(tenantID, gen)
	if sess == nil || sess.state == StateRestarting || sess.state == StateGivenUp {
		s.mu.Unlock()
		return
	}
	prev := sess.state
	conn := sess.conn
	sess.conn = nil
	sess.state = StateDisconnected
	if prev == StateLive && s.clock.Since(sess.liveSince) >= StableWindow {
		sess.retries = 0
	}

	if sess.retries+1 > MaxRetries {
		sess.state = StateGivenUp
		s.nextGen++
		sess.gen = s.nextGen
		retries := sess.retries
		s.mu.Unlock()

		closeConn(conn)
		if cause != nil {
			s.log.LogError(ctx, tenantID, cause, "session")
		}
		s.emit(ctx, tenantID, prev, StateDisconnected, retries, gateway.Identity{})
		s.emit(ctx, tenantID, StateDisconnected, StateGivenUp, retries, gateway.Identity{})
		observability.SessionsGivenUp.Inc()
		return
	}

	sess.retries++
	sess.state = StateRestarting
	retries := sess.retries
	delay := BackoffDelay(retries)
	sess.timer = s.clock.AfterFunc(delay, func() {
		s.restart(tenantID, gen)
	})
	s.mu.Unlock()

	closeConn(conn)
	if cause != nil {
		s.log.LogError(ctx, tenantID, cause, "session")
	}
	s.emit(ctx, tenantID, prev, StateDisconnected, retries, gateway.Identity{})
	s.emit(ctx, tenantID, StateDisconnected, StateRestarting, retries, gateway.Identity{})
	s.log.LogRestartScheduled(ctx, tenantID, retries, delay)
	observability.SessionRestarts.Inc()
}

func (s *Supervisor) restart(tenantID string, gen uint64) {
	s.mu.Lock()
	sess := s.currentLocked(tenantID, gen)
	if sess == nil || sess.state != StateRestarting {
		s.mu.Unlock()
		return
	}
	sess.timer = nil
	token, guildID, retries := sess.token, sess.guildID, sess.retries
	s.mu.Unlock()

	s.start(context.Background(), tenantID, token, guildID, retries, gen)
}

func (s *Supervisor) onInteraction(tenantID string, gen uint64, inv gateway.Invocation, r gateway.Responder) {
	s.mu.RLock()
	sess := s.currentLocked(tenantID, gen)
	s.mu.RUnlock()
	if sess == nil || s.surface == nil {
		return
	}

	if tenantID != CentralKey {
		inv.TenantID = tenantID
	}
	if inv.CorrelationID == "" {
		inv.CorrelationID = observability.GenerateCorrelationID()
	}
	ctx := observability.WithInteraction(context.Background(), inv.InteractionID, inv.CorrelationID)
	if inv.TenantID != "" {
		ctx = observability.WithTenant(ctx, inv.TenantID)
	}
	s.surface.Dispatch(ctx, inv, r)
}

// Stop tears down a tenant's session and cancels any pending restart. It
// reports whether a session existed.
func (s *Supervisor) Stop(ctx context.Context, tenantID string) bool {
	s.mu.Lock()
	sess, ok := s.sessions[tenantID]
	if !ok {
		s.mu.Unlock()
		return false
	}
	delete(s.sessions, tenantID)
	prev := sess.state
	conn := s.detachLocked(sess)
	s.mu.Unlock()

	closeConn(conn)
	s.emit(observability.WithTenant(ctx, tenantID), tenantID, prev, StateStopped, 0, gateway.Identity{})
	return true
}

// Shutdown stops every session.
func (s *Supervisor) Shutdown(ctx context.Context) {
	s.mu.Lock()
	type stopped struct {
		tenantID string
		prev     State
		conn     gateway.Conn
	}
	all := make([]stopped, 0, len(s.sessions))
	for id, sess := range s.sessions {
		all = append(all, stopped{tenantID: id, prev: sess.state, conn: s.detachLocked(sess)})
	}
	s.sessions = make(map[string]*session)
	s.mu.Unlock()

	for _, st := range all {
		closeConn(st.conn)
		s.emit(ctx, st.tenantID, st.prev, StateStopped, 0, gateway.Identity{})
	}
	s.logger.InfoContext(ctx, "supervisor shut down", slog.Int("sessions", len(all)))
}

// IsLive reports whether the tenant's transport last reported ready. It does
// not guarantee the next call on the session succeeds.
func (s *Supervisor) IsLive(tenantID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[tenantID]
	return ok && sess.state == StateLive
}

// Status returns the session status of a tenant.
func (s *Supervisor) Status(tenantID string) Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[tenantID]
	if !ok {
		return Status{TenantID: tenantID, State: StateStopped}
	}
	return statusOf(sess)
}

// Snapshot returns the status of every tracked session ordered by tenant id.
func (s *Supervisor) Snapshot() []Status {
	s.mu.RLock()
	out := make([]Status, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, statusOf(sess))
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].TenantID < out[j].TenantID })
	return out
}

// Channels lists the channels of the tenant's guild. It returns an empty list
// when the session is not live or the call fails.
func (s *Supervisor) Channels(ctx context.Context, tenantID string) []gateway.Channel {
	s.mu.RLock()
	sess, ok := s.sessions[tenantID]
	var conn gateway.Conn
	var guildID string
	if ok && sess.state == StateLive {
		conn, guildID = sess.conn, sess.guildID
	}
	s.mu.RUnlock()

	return s.channels(ctx, tenantID, conn, guildID)
}

// CentralChannels lists the channels of any guild visible to the centralized
// session, with the same empty-list contract as Channels.
func (s *Supervisor) CentralChannels(ctx context.Context, guildID string) []gateway.Channel {
	s.mu.RLock()
	sess, ok := s.sessions[CentralKey]
	var conn gateway.Conn
	if ok && sess.state == StateLive {
		conn = sess.conn
	}
	s.mu.RUnlock()

	return s.channels(ctx, CentralKey, conn, guildID)
}

func (s *Supervisor) channels(ctx context.Context, tenantID string, conn gateway.Conn, guildID string) []gateway.Channel {
	if conn == nil || guildID == "" {
		return []gateway.Channel{}
	}
	chans, err := conn.Channels(ctx, guildID)
	if err != nil {
		s.log.LogError(ctx, tenantID, err, "list_channels")
		return []gateway.Channel{}
	}
	if chans == nil {
		return []gateway.Channel{}
	}
	return chans
}

func (s *Supervisor) currentLocked(tenantID string, gen uint64) *session {
	sess, ok := s.sessions[tenantID]
	if !ok || sess.gen != gen {
		return nil
	}
	return sess
}

// detachLocked stops the session's timer and hands back its transport for
// closing once the lock is released.
func (s *Supervisor) detachLocked(sess *session) gateway.Conn {
	if sess.timer != nil {
		sess.timer.Stop()
		sess.timer = nil
	}
	conn := sess.conn
	sess.conn = nil
	s.nextGen++
	sess.gen = s.nextGen
	return conn
}

func (s *Supervisor) emit(ctx context.Context, tenantID string, from, to State, retries int, identity gateway.Identity) {
	if from == to {
		return
	}
	if from != StateStopped {
		observability.Sessions.WithLabelValues(string(from)).Dec()
	}
	if to != StateStopped {
		observability.Sessions.WithLabelValues(string(to)).Inc()
	}
	s.log.LogTransition(ctx, tenantID, string(from), string(to), retries)
	if s.observer != nil {
		s.observer.SessionChanged(ctx, Transition{
			TenantID: tenantID,
			From:     from,
			To:       to,
			Retries:  retries,
			Identity: identity,
			At:       s.clock.Now(),
		})
	}
}

func statusOf(sess *session) Status {
	st := Status{
		TenantID: sess.tenantID,
		Online:   sess.state == StateLive,
		State:    sess.state,
		Retries:  sess.retries,
	}
	if sess.state == StateLive {
		id := sess.identity
		st.Identity = &id
	}
	if !sess.lastRestart.IsZero() {
		t := sess.lastRestart
		st.LastRestart = &t
	}
	return st
}

func closeConn(conn gateway.Conn) {
	if conn == nil {
		return
	}
	if err := conn.Close(); err != nil {
		observability.Logger.Warn("failed to close gateway connection", slog.String("error", err.Error()))
	}
}
