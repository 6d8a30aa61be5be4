package routes

import (
	"github.com/anjiri1684/learning_assessment/handlers"
	"github.com/anjiri1684/learning_assessment/middleware"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
)

func TeacherRoutes(app *fiber.App, h *handlers.TeacherHandler) {
	api := app.Group("/api/v1")

	// the websocket authenticates with its first message, so it sits outside the JWT group
	api.Use("/teacher/ws", func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		return c.Next()
	})
	api.Get("/teacher/ws/tests/:testId/live", websocket.New(h.LiveResults))

	teacher := api.Group("/teacher", middleware.Protected(), middleware.TeacherRequired())

	tests := teacher.Group("/tests")
	tests.Post("", h.CreateTest)
	tests.Get("/:testId", h.GetTest)

	results := tests.Group("/:testId/results")
	results.Get("/score-distribution", h.ScoreDistribution)
	results.Get("/question-choice-rate", h.QuestionChoiceRate)
	results.Get("/not-attempted", h.StudentsNotAttempted)
	results.Get("/overview", h.Overview)
}
