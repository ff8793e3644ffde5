// Package commands routes inbound interactions to moderation handlers.
package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"warden/internal/featureflags"
	"warden/internal/gateway"
	"warden/internal/models"
	"warden/internal/observability"
	"warden/internal/repository"
	"warden/internal/roblox"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.opentelemetry.io/otel/attribute"
)

const (
	genericFailure    = "Something went wrong while handling that. Please try again."
	unknownRoute      = "This interaction is no longer supported."
	tenantUnavailable = "This server is not set up yet. Add it from the dashboard first."
	routeDisabled     = "This feature is disabled for this server."
)

// Store is the persistence used by the handlers.
type Store interface {
	GetTenant(ctx context.Context, id string) (*models.Tenant, error)
	GetTenantByGuildID(ctx context.Context, guildID string) (*models.Tenant, error)
	UpdateTenant(ctx context.Context, id string, patch models.TenantPatch) error
	ConsumeLinkSecret(ctx context.Context, id, secret string, now time.Time) (bool, error)
	CreateSanction(ctx context.Context, sanction *models.Sanction) error
	DeactivateSanction(ctx context.Context, tenantID, identityName, liftedBy string, liftedAt time.Time) (int64, error)
	ListSanctionsForIdentity(ctx context.Context, tenantID string, robloxUserID int64) ([]models.Sanction, error)
	GetSanctionByPublicID(ctx context.Context, tenantID string, id uuid.UUID) (*models.Sanction, error)
	CreateNote(ctx context.Context, note *models.Note) error
	ListNotes(ctx context.Context, tenantID string, robloxUserID int64) ([]models.Note, error)
	CreateReport(ctx context.Context, report *models.Report) error
}

// Enforcer resolves identities and applies in-game restrictions.
type Enforcer interface {
	ResolveIdentityID(ctx context.Context, username string) (int64, error)
	ApplyRestriction(ctx context.Context, r roblox.Restriction) roblox.EnforcementResult
	LiftRestriction(ctx context.Context, r roblox.Restriction) roblox.EnforcementResult
}

// Scorer computes alt-detection results.
type Scorer interface {
	Score(ctx context.Context, tenantID string, identityID int64, knownAlts []int64) models.AltDetectionResult
}

// Decrypter decrypts stored credentials.
type Decrypter interface {
	Decrypt(ciphertext string) (string, error)
}

// Request is what a handler sees: the invocation and its resolved tenant.
type Request struct {
	Inv    gateway.Invocation
	Tenant *models.Tenant
}

// Result is a handler outcome: a reply, or a modal to open.
type Result struct {
	Reply gateway.Reply
	Modal *gateway.Modal
}

// HandlerFunc handles one route. Expected failures are returned as replies;
// an error means something unexpected happened.
type HandlerFunc func(ctx context.Context, req *Request) (Result, error)

type route struct {
	spec    RouteSpec
	handler HandlerFunc
}

// Deps are the collaborators of a Router.
type Deps struct {
	Store    Store
	Enforcer Enforcer
	Scorer   Scorer
	Vault    Decrypter
}

// Option customises a Router.
type Option func(*Router)

// WithClock sets the clock used for expiry checks and timestamps.
func WithClock(c clockwork.Clock) Option {
	return func(r *Router) { r.clock = c }
}

// WithSurface replaces the embedded surface.
func WithSurface(s *Surface) Option {
	return func(r *Router) { r.surface = s }
}

// WithFlags gates routes behind per-tenant feature flags named after the
// route.
func WithFlags(m *featureflags.Manager) Option {
	return func(r *Router) { r.flags = m }
}

// Router is the registry of interaction routes keyed by kind and route name.
type Router struct {
	store    Store
	enforcer Enforcer
	scorer   Scorer
	vault    Decrypter
	clock    clockwork.Clock
	logger   *slog.Logger
	flags    *featureflags.Manager

	surface *Surface
	routes  map[string]route
}

// NewRouter builds the router and binds every declared route to its handler.
func NewRouter(deps Deps, opts ...Option) (*Router, error) {
	r := &Router{
		store:    deps.Store,
		enforcer: deps.Enforcer,
		scorer:   deps.Scorer,
		vault:    deps.Vault,
		clock:    clockwork.NewRealClock(),
		logger:   observability.Logger,
		routes:   make(map[string]route),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.surface == nil {
		s, err := DefaultSurface()
		if err != nil {
			return nil, err
		}
		r.surface = s
	}

	handlers := map[string]HandlerFunc{
		routeKey(gateway.KindCommand, "linkkey"):          r.handleLinkKey,
		routeKey(gateway.KindCommand, "ban"):              r.handleBan,
		routeKey(gateway.KindCommand, "unban"):            r.handleUnban,
		routeKey(gateway.KindCommand, "altcheck"):         r.handleAltCheck,
		routeKey(gateway.KindCommand, "note"):             r.handleNote,
		routeKey(gateway.KindCommand, "history"):          r.handleHistory,
		routeKey(gateway.KindCommand, "report"):           r.handleReportOpen,
		routeKey(gateway.KindButton, reportOpenID):        r.handleReportOpen,
		routeKey(gateway.KindModalSubmit, reportModalID):  r.handleReportSubmit,
		routeKey(gateway.KindSelectMenu, historySelectID): r.handleHistorySelect,
	}
	for _, spec := range r.surface.Routes {
		h, ok := handlers[routeKey(spec.Kind, spec.Name)]
		if !ok {
			return nil, fmt.Errorf("commands: no handler for %s route %q", spec.Kind, spec.Name)
		}
		r.Register(spec, h)
	}
	return r, nil
}

// Register binds a handler to a route, replacing any previous binding.
func (r *Router) Register(spec RouteSpec, h HandlerFunc) {
	r.routes[routeKey(spec.Kind, spec.Name)] = route{spec: spec, handler: h}
}

// Commands returns the command surface registered on every tenant guild.
func (r *Router) Commands() []gateway.CommandSpec {
	return r.surface.Commands
}

// Dispatch acknowledges and handles one interaction. Handler failures and
// panics are logged and answered with a generic message; they never reach
// the transport.
func (r *Router) Dispatch(ctx context.Context, inv gateway.Invocation, resp gateway.Responder) {
	start := time.Now()
	name := inv.Route()
	ctx, span := observability.StartSpan(ctx, "commands.dispatch",
		attribute.String("interaction.kind", string(inv.Kind)),
		attribute.String("interaction.route", name),
		attribute.String("guild.id", inv.GuildID),
	)
	outcome := "ok"
	var spanErr error
	defer func() {
		observability.InteractionsTotal.WithLabelValues(string(inv.Kind), name, outcome).Inc()
		observability.InteractionDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
		observability.EndSpan(span, spanErr)
	}()

	rt, ok := r.routes[routeKey(inv.Kind, name)]
	if !ok {
		outcome = "unknown"
		r.send(ctx, resp, false, gateway.Reply{Content: unknownRoute, Ephemeral: true})
		return
	}

	deferred := false
	if rt.spec.Defer {
		if err := resp.Defer(ctx, rt.spec.Ephemeral); err != nil {
			outcome = "ack_failed"
			spanErr = err
			r.logger.ErrorContext(ctx, "failed to defer interaction",
				slog.String("route", name), slog.String("error", err.Error()))
			return
		}
		deferred = true
	}

	res, err := r.invoke(ctx, rt, inv)
	if err != nil {
		outcome = "error"
		spanErr = err
		r.logger.ErrorContext(ctx, "interaction handler failed",
			slog.String("route", name),
			slog.String("kind", string(inv.Kind)),
			slog.Bool("deferred", deferred),
			slog.String("error", err.Error()),
		)
		r.send(ctx, resp, deferred, gateway.Reply{Content: genericFailure, Ephemeral: true})
		return
	}

	if res.Modal != nil {
		if deferred {
			outcome = "error"
			spanErr = errors.New("modal returned from deferred route")
			r.send(ctx, resp, true, gateway.Reply{Content: genericFailure, Ephemeral: true})
			return
		}
		if err := resp.OpenModal(ctx, *res.Modal); err != nil {
			r.logger.ErrorContext(ctx, "failed to open modal",
				slog.String("route", name), slog.String("error", err.Error()))
		}
		return
	}

	if rt.spec.Ephemeral {
		res.Reply.Ephemeral = true
	}
	r.send(ctx, resp, deferred, res.Reply)
}

// invoke resolves the tenant and runs the handler, converting panics into
// errors.
func (r *Router) invoke(ctx context.Context, rt route, inv gateway.Invocation) (res Result, err error) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.ErrorContext(ctx, "interaction handler panicked",
				slog.Any("panic", p),
				slog.String("stack", string(debug.Stack())),
			)
			err = fmt.Errorf("handler panic: %v", p)
		}
	}()

	tenant, err := r.resolveTenant(ctx, inv)
	if errors.Is(err, repository.ErrNotFound) {
		return fail(tenantUnavailable), nil
	}
	if err != nil {
		return Result{}, fmt.Errorf("resolve tenant: %w", err)
	}
	if inv.TenantID == "" {
		ctx = observability.WithTenant(ctx, tenant.ID)
	}
	if !r.flags.Allows(rt.spec.Name, tenant.ID) {
		return fail(routeDisabled), nil
	}
	return rt.handler(ctx, &Request{Inv: inv, Tenant: tenant})
}

// resolveTenant loads the tenant by id, or by guild id for interactions
// received on the centralized session.
func (r *Router) resolveTenant(ctx context.Context, inv gateway.Invocation) (*models.Tenant, error) {
	if inv.TenantID != "" {
		return r.store.GetTenant(ctx, inv.TenantID)
	}
	if inv.GuildID == "" {
		return nil, repository.ErrNotFound
	}
	return r.store.GetTenantByGuildID(ctx, inv.GuildID)
}

func (r *Router) send(ctx context.Context, resp gateway.Responder, deferred bool, reply gateway.Reply) {
	var err error
	if deferred {
		err = resp.Edit(ctx, reply)
	} else {
		err = resp.Reply(ctx, reply)
	}
	if err != nil {
		r.logger.ErrorContext(ctx, "failed to respond to interaction",
			slog.Bool("deferred", deferred),
			slog.String("error", err.Error()),
		)
	}
}

func routeKey(kind gateway.Kind, name string) string {
	return string(kind) + "/" + name
}
