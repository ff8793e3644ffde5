package server

import (
	"context"
	"errors"
	"strings"

	"warden/internal/models"
	"warden/internal/repository"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// handshakeRejected is shown when the platform refuses a bot token.
const handshakeRejected = "Failed to connect to Discord. Verify the bot token and try again."

// respondError maps domain errors to HTTP statuses.
func respondError(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	var appErr *models.AppError
	switch {
	case errors.As(err, &appErr):
		switch appErr.Code {
		case "VALIDATION_ERROR":
			status = fiber.StatusBadRequest
		case "NOT_FOUND":
			status = fiber.StatusNotFound
		case "UNAUTHORIZED":
			status = fiber.StatusUnauthorized
		case "CONFLICT":
			status = fiber.StatusConflict
		case "UPSTREAM_ERROR":
			status = fiber.StatusBadGateway
		}
	case errors.Is(err, repository.ErrNotFound):
		return models.RespondWithError(c, fiber.StatusNotFound, models.NewNotFoundError("Record", c.Params("id")))
	default:
		err = models.NewInternalError(err)
	}
	return models.RespondWithError(c, status, err)
}

func (s *Server) loadTenant(ctx context.Context, id string) (*models.Tenant, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, models.NewValidationError("tenant id is required")
	}
	tenant, err := s.store.GetTenant(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, models.NewNotFoundError("Tenant", id)
		}
		return nil, err
	}
	return tenant, nil
}

func requireUpgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}
