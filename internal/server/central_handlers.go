package server

import (
	"errors"
	"strings"

	"warden/internal/models"
	"warden/internal/supervisor"
	"warden/internal/validation"

	"github.com/gofiber/fiber/v2"
)

// GetCentralSession handles GET /api/central.
func (s *Server) GetCentralSession(c *fiber.Ctx) error {
	return c.JSON(s.supervisor.CentralStatus())
}

// StartCentralSession handles POST /api/central/start.
func (s *Server) StartCentralSession(c *fiber.Ctx) error {
	ok, err := s.supervisor.StartCentral(c.UserContext())
	return s.centralResult(c, ok, err)
}

type restartCentralRequest struct {
	Token string `json:"token"`
}

// RestartCentralSession handles POST /api/central/restart. An optional token
// replaces the stored central credential.
func (s *Server) RestartCentralSession(c *fiber.Ctx) error {
	var req restartCentralRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return respondError(c, models.NewValidationError("Invalid request body"))
		}
	}
	ok, err := s.supervisor.RestartCentral(c.UserContext(), strings.TrimSpace(req.Token))
	return s.centralResult(c, ok, err)
}

func (s *Server) centralResult(c *fiber.Ctx, ok bool, err error) error {
	if errors.Is(err, supervisor.ErrNoCentralCredential) {
		return respondError(c, models.NewValidationError("No central bot token configured"))
	}
	if err != nil {
		return respondError(c, err)
	}
	if !ok {
		return respondError(c, models.NewUpstreamError(handshakeRejected))
	}
	return c.JSON(s.supervisor.CentralStatus())
}

// GetCentralChannels handles GET /api/central/channels/:guildId.
func (s *Server) GetCentralChannels(c *fiber.Ctx) error {
	guildID := c.Params("guildId")
	if err := validation.ValidateSnowflake("guildId", guildID); err != nil {
		return respondError(c, models.NewValidationError(err.Error()))
	}
	return c.JSON(s.supervisor.CentralChannels(c.UserContext(), guildID))
}

type deployPanelRequest struct {
	ChannelID string `json:"channelId"`
}

// DeployPanel handles POST /api/central/panels.
func (s *Server) DeployPanel(c *fiber.Ctx) error {
	var req deployPanelRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, models.NewValidationError("Invalid request body"))
	}
	req.ChannelID = strings.TrimSpace(req.ChannelID)
	if req.ChannelID == "" {
		return respondError(c, models.NewValidationError("channelId is required"))
	}
	if err := validation.ValidateSnowflake("channelId", req.ChannelID); err != nil {
		return respondError(c, models.NewValidationError(err.Error()))
	}

	if err := s.supervisor.DeployPanel(c.UserContext(), req.ChannelID); err != nil {
		if errors.Is(err, supervisor.ErrNotLive) {
			return models.RespondWithError(c, fiber.StatusConflict,
				models.NewConflictError("Central bot is not online", nil))
		}
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"channelId": req.ChannelID})
}
