package handlers

import (
	"github.com/anjiri1684/learning_assessment/services"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type EnrollRequest struct {
	StudentIDs []uuid.UUID `json:"student_ids" validate:"required,min=1"`
}

type UserStatusRequest struct {
	IsActive *bool `json:"is_active" validate:"required"`
}

type AdminHandler struct {
	roster *services.RosterService
}

func NewAdminHandler(roster *services.RosterService) *AdminHandler {
	return &AdminHandler{roster: roster}
}

func (h *AdminHandler) CreateClassroom(c *fiber.Ctx) error {
	var req services.ClassroomDraft
	if err := c.BodyParser(&req); err != nil {
		return badRequest("Cannot parse JSON")
	}
	classroom, err := h.roster.CreateClassroom(c.UserContext(), req)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(classroom)
}

func (h *AdminHandler) EnrollStudents(c *fiber.Ctx) error {
	classroomID, err := uuidParam(c, "classroomId")
	if err != nil {
		return err
	}
	var req EnrollRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest("Cannot parse JSON")
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error(), "code": "validation_error"})
	}

	res, err := h.roster.Enroll(c.UserContext(), classroomID, req.StudentIDs)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(res)
}

func (h *AdminHandler) GetAllUsers(c *fiber.Ctx) error {
	q := services.UserQuery{
		Search: c.Query("search"),
		Role:   c.Query("role"),
	}
	var err error
	if q.Page, q.Size, err = pageParams(c); err != nil {
		return err
	}
	page, err := h.roster.ListUsers(c.UserContext(), q)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(page)
}

func (h *AdminHandler) ToggleUserStatus(c *fiber.Ctx) error {
	userID, err := uuidParam(c, "userId")
	if err != nil {
		return err
	}
	var req UserStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest("Cannot parse JSON")
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error(), "code": "validation_error"})
	}

	if err := h.roster.SetUserActive(c.UserContext(), userID, *req.IsActive); err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(fiber.Map{"message": "User status updated successfully."})
}
