package server

import (
	"strings"

	"warden/internal/models"

	"github.com/gofiber/fiber/v2"
)

// ListSessions handles GET /api/sessions.
func (s *Server) ListSessions(c *fiber.Ctx) error {
	return c.JSON(s.supervisor.Snapshot())
}

// GetTenantSession handles GET /api/tenants/:id/session.
func (s *Server) GetTenantSession(c *fiber.Ctx) error {
	return c.JSON(s.supervisor.Status(c.Params("id")))
}

// StartTenantSession handles POST /api/tenants/:id/session/start.
func (s *Server) StartTenantSession(c *fiber.Ctx) error {
	ctx := c.UserContext()
	tenant, err := s.loadTenant(ctx, c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	if tenant.BotToken == nil || *tenant.BotToken == "" || tenant.GuildID == "" {
		return respondError(c, models.NewValidationError("Tenant has no bot token or guild configured"))
	}

	token, err := s.vault.Decrypt(*tenant.BotToken)
	if err != nil {
		return respondError(c, err)
	}
	if !s.supervisor.Start(ctx, tenant.ID, token, tenant.GuildID) {
		return respondError(c, models.NewUpstreamError(handshakeRejected))
	}
	return c.JSON(s.supervisor.Status(tenant.ID))
}

// StopTenantSession handles POST /api/tenants/:id/session/stop.
func (s *Server) StopTenantSession(c *fiber.Ctx) error {
	id := c.Params("id")
	stopped := s.supervisor.Stop(c.UserContext(), id)
	return c.JSON(fiber.Map{
		"stopped": stopped,
		"session": s.supervisor.Status(id),
	})
}

type botTokenRequest struct {
	Token string `json:"token"`
}

// SetTenantBotToken handles PUT /api/tenants/:id/bot-token. The token is
// stored encrypted and the session is restarted with it.
func (s *Server) SetTenantBotToken(c *fiber.Ctx) error {
	ctx := c.UserContext()
	var req botTokenRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, models.NewValidationError("Invalid request body"))
	}
	req.Token = strings.TrimSpace(req.Token)
	if req.Token == "" {
		return respondError(c, models.NewValidationError("token is required"))
	}

	tenant, err := s.loadTenant(ctx, c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}

	encrypted, err := s.vault.Encrypt(req.Token)
	if err != nil {
		return respondError(c, err)
	}
	if err := s.store.UpdateTenant(ctx, tenant.ID, models.TenantPatch{BotToken: &encrypted}); err != nil {
		return respondError(c, err)
	}

	if tenant.GuildID == "" {
		return c.JSON(s.supervisor.Status(tenant.ID))
	}
	if !s.supervisor.Start(ctx, tenant.ID, req.Token, tenant.GuildID) {
		return respondError(c, models.NewUpstreamError(handshakeRejected))
	}
	return c.JSON(s.supervisor.Status(tenant.ID))
}

// GetTenantChannels handles GET /api/tenants/:id/channels. The list is empty
// while the session is not live.
func (s *Server) GetTenantChannels(c *fiber.Ctx) error {
	return c.JSON(s.supervisor.Channels(c.UserContext(), c.Params("id")))
}

// IssueLinkSecret handles POST /api/tenants/:id/link-secret.
func (s *Server) IssueLinkSecret(c *fiber.Ctx) error {
	ctx := c.UserContext()
	tenant, err := s.loadTenant(ctx, c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}

	secret, expiresAt, err := s.links.IssueLinkSecret(ctx, tenant.ID)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"secret":    secret,
		"expiresAt": expiresAt,
	})
}

// GetTenantFeatures handles GET /api/tenants/:id/features. It reports every
// configured interaction flag as evaluated for the tenant.
func (s *Server) GetTenantFeatures(c *fiber.Ctx) error {
	tenant, err := s.loadTenant(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"tenantId": tenant.ID,
		"features": s.flags.Snapshot(tenant.ID),
	})
}
