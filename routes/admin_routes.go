package routes

import (
	"github.com/anjiri1684/learning_assessment/handlers"
	"github.com/anjiri1684/learning_assessment/middleware"
	"github.com/gofiber/fiber/v2"
)

func AdminRoutes(app *fiber.App, h *handlers.AdminHandler) {
	api := app.Group("/api/v1")

	admin := api.Group("/admin", middleware.Protected(), middleware.AdminRequired())

	classrooms := admin.Group("/classrooms")
	classrooms.Post("", h.CreateClassroom)
	classrooms.Post("/:classroomId/enrollments", h.EnrollStudents)

	users := admin.Group("/users")
	users.Get("", h.GetAllUsers)
	users.Put("/:userId/status", h.ToggleUserStatus)
}
