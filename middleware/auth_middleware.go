package middleware

import (
	"errors"
	"fmt"

	config "github.com/anjiri1684/learning_assessment/configs"
	"github.com/anjiri1684/learning_assessment/models"
	"github.com/gofiber/fiber/v2"
	jwtware "github.com/gofiber/jwt/v3"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
)

var errNoClaims = errors.New("missing token claims")

func Protected() fiber.Handler {
	return jwtware.New(jwtware.Config{
		SigningKey:   []byte(config.Config("JWT_SECRET")),
		ErrorHandler: jwtError,
	})
}

func jwtError(c *fiber.Ctx, err error) error {
	if err.Error() == "Missing or malformed JWT" {
		return c.Status(fiber.StatusBadRequest).
			JSON(fiber.Map{"status": "error", "message": "Missing or malformed JWT", "data": nil})
	}
	return c.Status(fiber.StatusUnauthorized).
		JSON(fiber.Map{"status": "error", "message": "Invalid or expired JWT", "data": nil})
}

// ParseToken verifies an HMAC-signed token outside the HTTP middleware chain.
func ParseToken(tokenString, secret string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	if mc, ok := token.Claims.(jwt.MapClaims); ok && token.Valid {
		return mc, nil
	}
	return nil, errors.New("invalid token")
}

func claims(c *fiber.Ctx) (jwt.MapClaims, error) {
	token, ok := c.Locals("user").(*jwt.Token)
	if !ok {
		return nil, errNoClaims
	}
	mc, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errNoClaims
	}
	return mc, nil
}

// CurrentUserID reads the user_id claim set by Protected.
func CurrentUserID(c *fiber.Ctx) (uuid.UUID, error) {
	mc, err := claims(c)
	if err != nil {
		return uuid.Nil, err
	}
	raw, _ := mc["user_id"].(string)
	return uuid.Parse(raw)
}

func currentRole(c *fiber.Ctx) string {
	mc, err := claims(c)
	if err != nil {
		return ""
	}
	role, _ := mc["role"].(string)
	return role
}

func requireRole(message string, roles ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		role := currentRole(c)
		for _, r := range roles {
			if role == r {
				return c.Next()
			}
		}
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": message,
		})
	}
}

func AdminRequired() fiber.Handler {
	return requireRole("Forbidden: Admin access required", models.RoleAdmin)
}

func TeacherRequired() fiber.Handler {
	return requireRole("Forbidden: Teacher access required", models.RoleTeacher, models.RoleAdmin)
}

func StudentRequired() fiber.Handler {
	return requireRole("Forbidden: Student access required", models.RoleStudent)
}
