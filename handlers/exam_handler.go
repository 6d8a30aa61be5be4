package handlers

import (
	"github.com/anjiri1684/learning_assessment/models"
	"github.com/anjiri1684/learning_assessment/services"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type SaveProgressRequest struct {
	AnswerIDs []uuid.UUID `json:"answer_ids"`
}

type ResponseInput struct {
	QuestionID uuid.UUID   `json:"question_id" validate:"required"`
	AnswerIDs  []uuid.UUID `json:"answer_ids"`
}

// SubmitRequest carries the final answers. Leaving responses out grades what was autosaved.
type SubmitRequest struct {
	Responses *[]ResponseInput `json:"responses" validate:"omitempty,dive"`
}

type ExamHandler struct {
	attempts *services.AttemptService
}

func NewExamHandler(attempts *services.AttemptService) *ExamHandler {
	return &ExamHandler{attempts: attempts}
}

func (h *ExamHandler) StartTestAttempt(c *fiber.Ctx) error {
	studentID, err := currentUser(c)
	if err != nil {
		return err
	}
	testID, err := uuidParam(c, "testId")
	if err != nil {
		return err
	}
	view, err := h.attempts.Start(c.UserContext(), studentID, testID)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(view)
}

func (h *ExamHandler) GetCurrentAttempt(c *fiber.Ctx) error {
	studentID, err := currentUser(c)
	if err != nil {
		return err
	}
	testID, err := uuidParam(c, "testId")
	if err != nil {
		return err
	}
	view, err := h.attempts.ResumeCurrent(c.UserContext(), studentID, testID)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(view)
}

func (h *ExamHandler) ListMyResults(c *fiber.Ctx) error {
	studentID, err := currentUser(c)
	if err != nil {
		return err
	}
	testID, err := uuidParam(c, "testId")
	if err != nil {
		return err
	}
	views, err := h.attempts.Results(c.UserContext(), studentID, testID)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(views)
}

func (h *ExamHandler) ResumeAttempt(c *fiber.Ctx) error {
	studentID, err := currentUser(c)
	if err != nil {
		return err
	}
	attemptID, err := uuidParam(c, "attemptId")
	if err != nil {
		return err
	}
	view, err := h.attempts.Resume(c.UserContext(), studentID, attemptID)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(view)
}

func (h *ExamHandler) SaveProgress(c *fiber.Ctx) error {
	studentID, err := currentUser(c)
	if err != nil {
		return err
	}
	attemptID, err := uuidParam(c, "attemptId")
	if err != nil {
		return err
	}
	questionID, err := uuidParam(c, "questionId")
	if err != nil {
		return err
	}

	var req SaveProgressRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest("Cannot parse JSON")
	}
	if err := h.attempts.SaveProgress(c.UserContext(), studentID, attemptID, questionID, req.AnswerIDs); err != nil {
		return errorResponse(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *ExamHandler) SubmitTestAttempt(c *fiber.Ctx) error {
	studentID, err := currentUser(c)
	if err != nil {
		return err
	}
	attemptID, err := uuidParam(c, "attemptId")
	if err != nil {
		return err
	}

	var req SubmitRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return badRequest("Cannot parse JSON")
		}
		if err := validate.Struct(req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error(), "code": "validation_error"})
		}
	}

	var final models.SelectionSet
	if req.Responses != nil {
		final = models.SelectionSet{}
		for _, r := range *req.Responses {
			final[r.QuestionID] = append(final[r.QuestionID], r.AnswerIDs...)
		}
	}

	view, err := h.attempts.Submit(c.UserContext(), studentID, attemptID, final)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(fiber.Map{
		"message": "Test submitted successfully",
		"result":  view,
	})
}

func (h *ExamHandler) GetAttemptResult(c *fiber.Ctx) error {
	studentID, err := currentUser(c)
	if err != nil {
		return err
	}
	attemptID, err := uuidParam(c, "attemptId")
	if err != nil {
		return err
	}
	view, err := h.attempts.Result(c.UserContext(), studentID, attemptID)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(view)
}
