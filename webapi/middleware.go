package webapi

import (
	"errors"

	"github.com/buildrail/escrow/pkg/config"
	jwtware "github.com/gofiber/contrib/jwt"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// JwtProtected guards a route with bearer-token auth. The parsed token
// lands in c.Locals("user").
func JwtProtected(cfg *config.Jwt) fiber.Handler {
	return jwtware.New(jwtware.Config{
		SigningKey:   jwtware.SigningKey{Key: []byte(cfg.Secret)},
		ErrorHandler: jwtError,
	})
}

func jwtError(c *fiber.Ctx, err error) error {
	if errors.Is(err, jwtware.ErrJWTMissingOrMalformed) {
		return ErrorResponseJSON(c, fiber.StatusBadRequest, "Bad Request", "Missing or malformed JWT")
	}
	return ErrorResponseJSON(c, fiber.StatusUnauthorized, "Unauthorized", "Invalid or expired JWT")
}

// currentUserID extracts the authenticated user's id from the JWT subject.
func currentUserID(c *fiber.Ctx) (uuid.UUID, error) {
	token, ok := c.Locals("user").(*jwt.Token)
	if !ok {
		return uuid.Nil, fiber.ErrUnauthorized
	}
	sub, err := token.Claims.GetSubject()
	if err != nil {
		return uuid.Nil, fiber.ErrUnauthorized
	}
	id, err := uuid.Parse(sub)
	if err != nil {
		return uuid.Nil, fiber.ErrUnauthorized
	}
	return id, nil
}
