package handlers

import (
	"errors"
	"log"
	"strconv"

	"github.com/anjiri1684/learning_assessment/middleware"
	"github.com/anjiri1684/learning_assessment/services"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

var validate = validator.New()

var errorStatus = []struct {
	kind   error
	status int
	code   string
}{
	{services.ErrNotFound, fiber.StatusNotFound, "not_found"},
	{services.ErrAttemptLimitExceeded, fiber.StatusForbidden, "attempt_limit_exceeded"},
	{services.ErrAlreadyInProgress, fiber.StatusConflict, "already_in_progress"},
	{services.ErrOutsideWindow, fiber.StatusForbidden, "outside_window"},
	{services.ErrAttemptClosed, fiber.StatusConflict, "attempt_closed"},
	{services.ErrValidation, fiber.StatusBadRequest, "validation_error"},
}

// errorResponse renders a service error. Unknown errors are logged and hidden behind a 500.
func errorResponse(c *fiber.Ctx, err error) error {
	for _, e := range errorStatus {
		if errors.Is(err, e.kind) {
			return c.Status(e.status).JSON(fiber.Map{"error": err.Error(), "code": e.code})
		}
	}
	log.Printf("🔥 %s %s failed: %v", c.Method(), c.Path(), err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Internal server error"})
}

// ErrorHandler renders errors that escape handlers, mostly *fiber.Error from request parsing.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	if code >= fiber.StatusInternalServerError {
		log.Printf("[ERROR] %v | Path: %s | Method: %s", err, c.Path(), c.Method())
	}
	return c.Status(code).JSON(fiber.Map{
		"status":  "error",
		"code":    code,
		"message": err.Error(),
	})
}

func badRequest(msg string) error {
	return fiber.NewError(fiber.StatusBadRequest, msg)
}

func uuidParam(c *fiber.Ctx, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params(name))
	if err != nil {
		return uuid.Nil, badRequest("Invalid "+name)
	}
	return id, nil
}

func currentUser(c *fiber.Ctx) (uuid.UUID, error) {
	id, err := middleware.CurrentUserID(c)
	if err != nil {
		return uuid.Nil, fiber.NewError(fiber.StatusUnauthorized, "Invalid user in token")
	}
	return id, nil
}

func queryFloat(c *fiber.Ctx, key string) (*float64, error) {
	raw := c.Query(key)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, badRequest("Invalid "+key)
	}
	return &v, nil
}

func queryInt(c *fiber.Ctx, key string) (*int, error) {
	raw := c.Query(key)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return nil, badRequest("Invalid "+key)
	}
	return &v, nil
}

func queryBool(c *fiber.Ctx, key string) (*bool, error) {
	raw := c.Query(key)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, badRequest("Invalid "+key)
	}
	return &v, nil
}
