// Package middleware provides the fiber middleware stack of the admin API.
package middleware

import (
	"context"
	"strings"

	"warden/internal/observability"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

// OperatorLocal is the fiber locals key holding the authenticated operator id.
const OperatorLocal = "operatorID"

// AuthRequired validates an HS256 bearer token signed with secret and stores
// its subject as the operator id. Websocket upgrades may pass the token in the
// "token" query parameter instead.
func AuthRequired(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenString, msg := bearerToken(c)
		if tokenString == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": msg,
			})
		}

		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fiber.NewError(fiber.StatusUnauthorized, "Invalid signing method")
			}
			return []byte(secret), nil
		})
		if err != nil || !token.Valid {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid or expired token",
			})
		}

		subject, err := token.Claims.GetSubject()
		if err != nil || strings.TrimSpace(subject) == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid token structure - missing subject",
			})
		}

		c.Locals(OperatorLocal, subject)
		c.SetUserContext(context.WithValue(c.UserContext(), observability.OperatorIDKey, subject))
		return c.Next()
	}
}

func bearerToken(c *fiber.Ctx) (string, string) {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		if token := c.Query("token"); token != "" {
			return token, ""
		}
		return "", "Authorization header required"
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", "Invalid authorization header format"
	}
	return parts[1], ""
}

// OperatorID returns the authenticated operator id, if any.
func OperatorID(c *fiber.Ctx) string {
	if v, ok := c.Locals(OperatorLocal).(string); ok {
		return v
	}
	return ""
}
