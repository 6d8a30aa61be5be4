package routes

import (
	"github.com/anjiri1684/learning_assessment/handlers"
	"github.com/anjiri1684/learning_assessment/middleware"
	"github.com/gofiber/fiber/v2"
)

func ExamRoutes(app *fiber.App, h *handlers.ExamHandler) {
	api := app.Group("/api/v1")

	studentExams := api.Group("/exams", middleware.Protected(), middleware.StudentRequired())

	tests := studentExams.Group("/tests/:testId")
	tests.Post("/attempts", h.StartTestAttempt)
	tests.Get("/attempts/current", h.GetCurrentAttempt)
	tests.Get("/results", h.ListMyResults)

	attempts := studentExams.Group("/attempts/:attemptId")
	attempts.Get("", h.ResumeAttempt)
	attempts.Put("/questions/:questionId", h.SaveProgress)
	attempts.Post("/submit", h.SubmitTestAttempt)
	attempts.Get("/result", h.GetAttemptResult)
}
