package handlers

import (
	"log"

	config "github.com/anjiri1684/learning_assessment/configs"
	"github.com/anjiri1684/learning_assessment/middleware"
	"github.com/anjiri1684/learning_assessment/models"
	"github.com/anjiri1684/learning_assessment/services"
	hub "github.com/anjiri1684/learning_assessment/websocket"
	websocketcontrib "github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type TeacherHandler struct {
	authoring *services.AuthoringService
	results   *services.ResultService
	live      *hub.Hub
}

func NewTeacherHandler(authoring *services.AuthoringService, results *services.ResultService, live *hub.Hub) *TeacherHandler {
	return &TeacherHandler{authoring: authoring, results: results, live: live}
}

func (h *TeacherHandler) CreateTest(c *fiber.Ctx) error {
	var req services.TestDraft
	if err := c.BodyParser(&req); err != nil {
		return badRequest("Cannot parse JSON")
	}
	detail, err := h.authoring.CreateTest(c.UserContext(), req)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(detail)
}

func (h *TeacherHandler) GetTest(c *fiber.Ctx) error {
	testID, err := uuidParam(c, "testId")
	if err != nil {
		return err
	}
	detail, err := h.authoring.Detail(c.UserContext(), testID)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(detail)
}

func (h *TeacherHandler) ScoreDistribution(c *fiber.Ctx) error {
	testID, err := uuidParam(c, "testId")
	if err != nil {
		return err
	}
	q := services.ScoreQuery{
		StudentName: c.Query("student_name"),
		SortBy:      c.Query("sort_by"),
		SortOrder:   c.Query("sort_order"),
	}
	if q.MinGrade, err = queryFloat(c, "min_grade"); err != nil {
		return err
	}
	if q.MaxGrade, err = queryFloat(c, "max_grade"); err != nil {
		return err
	}
	if q.Passed, err = queryBool(c, "passed"); err != nil {
		return err
	}
	if q.Page, q.Size, err = pageParams(c); err != nil {
		return err
	}

	page, err := h.results.ScoreDistribution(c.UserContext(), testID, q)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(page)
}

func (h *TeacherHandler) QuestionChoiceRate(c *fiber.Ctx) error {
	testID, err := uuidParam(c, "testId")
	if err != nil {
		return err
	}
	q := services.QuestionQuery{
		Content:   c.Query("content"),
		SortBy:    c.Query("sort_by"),
		SortOrder: c.Query("sort_order"),
	}
	if q.MinCorrect, err = queryInt(c, "min_correct"); err != nil {
		return err
	}
	if q.MaxCorrect, err = queryInt(c, "max_correct"); err != nil {
		return err
	}
	if q.Page, q.Size, err = pageParams(c); err != nil {
		return err
	}

	page, err := h.results.QuestionChoiceRate(c.UserContext(), testID, q)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(page)
}

func (h *TeacherHandler) StudentsNotAttempted(c *fiber.Ctx) error {
	testID, err := uuidParam(c, "testId")
	if err != nil {
		return err
	}
	students, err := h.results.StudentsNotAttempted(c.UserContext(), testID)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(fiber.Map{"total": len(students), "students": students})
}

func (h *TeacherHandler) Overview(c *fiber.Ctx) error {
	testID, err := uuidParam(c, "testId")
	if err != nil {
		return err
	}
	ov, err := h.results.OverviewOfResults(c.UserContext(), testID)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(ov)
}

// LiveResults streams finished attempts of one test. The first frame must authenticate a teacher.
func (h *TeacherHandler) LiveResults(c *websocketcontrib.Conn) {
	type AuthMessage struct {
		Type  string `json:"type"`
		Token string `json:"token"`
	}

	testID, err := uuid.Parse(c.Params("testId"))
	if err != nil {
		_ = c.WriteJSON(fiber.Map{"error": "Invalid test ID"})
		c.Close()
		return
	}

	var authMsg AuthMessage
	if err := c.ReadJSON(&authMsg); err != nil || authMsg.Type != "auth" {
		log.Printf("WebSocket auth failed: invalid or missing auth message, error: %v", err)
		_ = c.WriteJSON(fiber.Map{"error": "Invalid or missing auth message"})
		c.Close()
		return
	}
	claims, err := middleware.ParseToken(authMsg.Token, config.Config("JWT_SECRET"))
	if err != nil {
		log.Printf("WebSocket auth failed: invalid token, error: %v", err)
		_ = c.WriteJSON(fiber.Map{"error": "Invalid token"})
		c.Close()
		return
	}
	role, _ := claims["role"].(string)
	if role != models.RoleTeacher && role != models.RoleAdmin {
		_ = c.WriteJSON(fiber.Map{"error": "Forbidden: Teacher access required"})
		c.Close()
		return
	}
	rawID, _ := claims["user_id"].(string)
	userID, err := uuid.Parse(rawID)
	if err != nil {
		_ = c.WriteJSON(fiber.Map{"error": "Invalid user ID"})
		c.Close()
		return
	}

	client := &hub.Client{UserID: userID, TestID: testID, Conn: c}
	if !h.live.Register(client) {
		_ = c.WriteJSON(fiber.Map{"error": "Server is shutting down"})
		c.Close()
		return
	}
	defer func() {
		h.live.Unregister(client)
		c.Close()
	}()

	// reads only detect the disconnect
	for {
		if _, _, err := c.ReadMessage(); err != nil {
			if !hub.IsCloseError(err) {
				log.Printf("WebSocket read error for client %s: %v", userID, err)
			}
			return
		}
	}
}

func pageParams(c *fiber.Ctx) (page, size int, err error) {
	p, err := queryInt(c, "page")
	if err != nil {
		return 0, 0, err
	}
	s, err := queryInt(c, "size")
	if err != nil {
		return 0, 0, err
	}
	if p != nil {
		page = *p
	}
	if s != nil {
		size = *s
	}
	return page, size, nil
}
