package handlers_test

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/anjiri1684/learning_assessment/handlers"
	"github.com/anjiri1684/learning_assessment/models"
	"github.com/anjiri1684/learning_assessment/routes"
	"github.com/anjiri1684/learning_assessment/services"
	"github.com/anjiri1684/learning_assessment/store"
	"github.com/anjiri1684/learning_assessment/testutil"
	"github.com/anjiri1684/learning_assessment/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
)

const secret = "handler-test-secret"

type api struct {
	app *fiber.App
	fx  testutil.Fixture
}

func newAPI(t *testing.T) *api {
	t.Helper()
	t.Setenv("JWT_SECRET", secret)

	db := testutil.NewDB(t)
	fx := testutil.Seed(t, db, testutil.Blueprint{
		DurationSeconds: 600,
		Questions:       [][]bool{{true, false}, {true, false}},
		Students:        []string{"Amina", "Brian"},
	})

	attempts := store.NewAttemptStore(db)
	catalog := store.NewCatalog(db)
	grader := services.NewGradingEngine(services.DefaultPassThreshold)
	results := services.NewResultService(attempts, catalog, grader)
	lifecycle := services.NewAttemptService(attempts, catalog, grader, services.WithFinishListener(results))

	app := fiber.New(fiber.Config{ErrorHandler: handlers.ErrorHandler})
	routes.ExamRoutes(app, handlers.NewExamHandler(lifecycle))
	routes.TeacherRoutes(app, handlers.NewTeacherHandler(services.NewAuthoringService(catalog), results, websocket.NewHub()))
	routes.AdminRoutes(app, handlers.NewAdminHandler(services.NewRosterService(store.NewRoster(db))))
	return &api{app: app, fx: fx}
}

func token(t *testing.T, userID uuid.UUID, role string) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID.String(),
		"role":    role,
		"exp":     time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func (a *api) do(t *testing.T, method, path, bearer, body string) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	resp, err := a.app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	out := map[string]any{}
	if len(raw) > 0 && raw[0] == '{' {
		if err := json.Unmarshal(raw, &out); err != nil {
			t.Fatalf("decode %s: %v", raw, err)
		}
	}
	return resp.StatusCode, out
}

func TestStudentAttemptFlow(t *testing.T) {
	a := newAPI(t)
	student := token(t, a.fx.Students[0].ID, models.RoleStudent)
	testPath := "/api/v1/exams/tests/" + a.fx.Test.ID.String()

	status, body := a.do(t, http.MethodPost, testPath+"/attempts", student, "")
	if status != fiber.StatusCreated {
		t.Fatalf("start: expected 201, got %d %v", status, body)
	}
	attemptID := body["attempt"].(map[string]any)["id"].(string)
	if body["remaining_seconds"].(float64) <= 0 {
		t.Fatalf("expected remaining time, got %v", body["remaining_seconds"])
	}

	q := a.fx.Test.Questions[0]
	save := fmt.Sprintf(`{"answer_ids":["%s"]}`, q.CorrectAnswerIDs()[0])
	status, _ = a.do(t, http.MethodPut, "/api/v1/exams/attempts/"+attemptID+"/questions/"+q.ID.String(), student, save)
	if status != fiber.StatusNoContent {
		t.Fatalf("save: expected 204, got %d", status)
	}

	status, body = a.do(t, http.MethodGet, testPath+"/attempts/current", student, "")
	if status != fiber.StatusOK {
		t.Fatalf("current: expected 200, got %d %v", status, body)
	}

	status, body = a.do(t, http.MethodPost, "/api/v1/exams/attempts/"+attemptID+"/submit", student, "")
	if status != fiber.StatusOK {
		t.Fatalf("submit: expected 200, got %d %v", status, body)
	}
	result := body["result"].(map[string]any)
	if grade := result["attempt"].(map[string]any)["grade"].(float64); grade != 5 {
		t.Fatalf("expected grade 5 from the autosaved answer, got %v", grade)
	}

	status, body = a.do(t, http.MethodPost, "/api/v1/exams/attempts/"+attemptID+"/submit", student, "")
	if status != fiber.StatusConflict || body["code"] != "attempt_closed" {
		t.Fatalf("second submit: expected 409 attempt_closed, got %d %v", status, body)
	}

	status, body = a.do(t, http.MethodPost, testPath+"/attempts", student, "")
	if status != fiber.StatusForbidden || body["code"] != "attempt_limit_exceeded" {
		t.Fatalf("restart: expected 403 attempt_limit_exceeded, got %d %v", status, body)
	}

	status, _ = a.do(t, http.MethodGet, "/api/v1/exams/attempts/"+attemptID+"/result", student, "")
	if status != fiber.StatusOK {
		t.Fatalf("result: expected 200, got %d", status)
	}
}

func TestExamRequestErrors(t *testing.T) {
	a := newAPI(t)
	amina := token(t, a.fx.Students[0].ID, models.RoleStudent)
	brian := token(t, a.fx.Students[1].ID, models.RoleStudent)
	testPath := "/api/v1/exams/tests/" + a.fx.Test.ID.String()

	_, body := a.do(t, http.MethodPost, testPath+"/attempts", amina, "")
	attemptPath := "/api/v1/exams/attempts/" + body["attempt"].(map[string]any)["id"].(string)

	tests := []struct {
		name   string
		method string
		path   string
		bearer string
		body   string
		status int
		code   any
	}{
		{"teacher on student route", http.MethodPost, testPath + "/attempts", token(t, uuid.New(), models.RoleTeacher), "", fiber.StatusForbidden, nil},
		{"malformed test id", http.MethodPost, "/api/v1/exams/tests/nope/attempts", amina, "", fiber.StatusBadRequest, float64(fiber.StatusBadRequest)},
		{"unknown test", http.MethodPost, "/api/v1/exams/tests/" + uuid.NewString() + "/attempts", amina, "", fiber.StatusNotFound, "not_found"},
		{"start again while the only attempt is open", http.MethodPost, testPath + "/attempts", amina, "", fiber.StatusForbidden, "attempt_limit_exceeded"},
		{"someone else's attempt", http.MethodGet, attemptPath, brian, "", fiber.StatusNotFound, "not_found"},
		{"bad json", http.MethodPost, attemptPath + "/submit", amina, "{", fiber.StatusBadRequest, float64(fiber.StatusBadRequest)},
		{"unknown question", http.MethodPost, attemptPath + "/submit", amina, fmt.Sprintf(`{"responses":[{"question_id":"%s","answer_ids":[]}]}`, uuid.New()), fiber.StatusNotFound, "not_found"},
		{"result while ongoing", http.MethodGet, attemptPath + "/result", amina, "", fiber.StatusBadRequest, "validation_error"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			status, body := a.do(t, tc.method, tc.path, tc.bearer, tc.body)
			if status != tc.status {
				t.Fatalf("expected %d, got %d %v", tc.status, status, body)
			}
			if tc.code != nil && body["code"] != tc.code {
				t.Fatalf("expected code %v, got %v", tc.code, body["code"])
			}
		})
	}
}

func TestMissingTokenIsRejected(t *testing.T) {
	a := newAPI(t)
	status, _ := a.do(t, http.MethodPost, "/api/v1/exams/tests/"+a.fx.Test.ID.String()+"/attempts", "", "")
	if status != fiber.StatusBadRequest && status != fiber.StatusUnauthorized {
		t.Fatalf("expected the JWT middleware to reject the request, got %d", status)
	}
}

func TestTeacherResults(t *testing.T) {
	a := newAPI(t)
	teacher := token(t, uuid.New(), models.RoleTeacher)
	student := token(t, a.fx.Students[0].ID, models.RoleStudent)
	base := "/api/v1/teacher/tests/" + a.fx.Test.ID.String()

	_, body := a.do(t, http.MethodPost, "/api/v1/exams/tests/"+a.fx.Test.ID.String()+"/attempts", student, "")
	attemptID := body["attempt"].(map[string]any)["id"].(string)
	a.do(t, http.MethodPost, "/api/v1/exams/attempts/"+attemptID+"/submit", student, `{"responses":[]}`)

	status, body := a.do(t, http.MethodGet, base+"/results/score-distribution?sort_by=grade&sort_order=desc", teacher, "")
	if status != fiber.StatusOK || body["total"].(float64) != 1 {
		t.Fatalf("score distribution: %d %v", status, body)
	}

	status, body = a.do(t, http.MethodGet, base+"/results/score-distribution?sort_by=password", teacher, "")
	if status != fiber.StatusBadRequest || body["code"] != "validation_error" {
		t.Fatalf("bad sort: %d %v", status, body)
	}

	status, body = a.do(t, http.MethodGet, base+"/results/score-distribution?min_grade=abc", teacher, "")
	if status != fiber.StatusBadRequest {
		t.Fatalf("bad min_grade: %d %v", status, body)
	}

	status, body = a.do(t, http.MethodGet, base+"/results/not-attempted", teacher, "")
	if status != fiber.StatusOK || body["total"].(float64) != 1 {
		t.Fatalf("not attempted: %d %v", status, body)
	}

	status, body = a.do(t, http.MethodGet, base+"/results/overview", teacher, "")
	if status != fiber.StatusOK || body["total_failed"].(float64) != 1 || body["total_not_attempted"].(float64) != 1 {
		t.Fatalf("overview: %d %v", status, body)
	}

	status, _ = a.do(t, http.MethodGet, base+"/results/overview", student, "")
	if status != fiber.StatusForbidden {
		t.Fatalf("student on teacher route: expected 403, got %d", status)
	}
}

func TestTeacherCreateTest(t *testing.T) {
	a := newAPI(t)
	teacher := token(t, uuid.New(), models.RoleTeacher)

	draft := fmt.Sprintf(`{
		"classroom_id": "%s",
		"title": "Fractions",
		"duration_seconds": 900,
		"questions": [
			{"content": "1/2 + 1/4?", "type": "single_choice", "answers": [
				{"content": "3/4", "is_correct": true},
				{"content": "2/6", "is_correct": false}
			]}
		]
	}`, a.fx.Classroom.ID)
	status, body := a.do(t, http.MethodPost, "/api/v1/teacher/tests", teacher, draft)
	if status != fiber.StatusCreated {
		t.Fatalf("create: expected 201, got %d %v", status, body)
	}
	id := body["test"].(map[string]any)["id"].(string)

	status, body = a.do(t, http.MethodGet, "/api/v1/teacher/tests/"+id, teacher, "")
	if status != fiber.StatusOK || len(body["questions"].([]any)) != 1 {
		t.Fatalf("detail: %d %v", status, body)
	}

	status, body = a.do(t, http.MethodPost, "/api/v1/teacher/tests", teacher, `{"title": ""}`)
	if status != fiber.StatusBadRequest || body["code"] != "validation_error" {
		t.Fatalf("invalid draft: %d %v", status, body)
	}
}

func TestAdminRoster(t *testing.T) {
	a := newAPI(t)
	admin := token(t, uuid.New(), models.RoleAdmin)

	status, body := a.do(t, http.MethodPost, "/api/v1/admin/classrooms", admin, `{"name": "Form 3A"}`)
	if status != fiber.StatusCreated {
		t.Fatalf("create classroom: %d %v", status, body)
	}
	classroomID := body["id"].(string)

	enroll := fmt.Sprintf(`{"student_ids":["%s","%s"]}`, a.fx.Students[0].ID, a.fx.Students[1].ID)
	status, body = a.do(t, http.MethodPost, "/api/v1/admin/classrooms/"+classroomID+"/enrollments", admin, enroll)
	if status != fiber.StatusOK || body["enrolled"].(float64) != 2 {
		t.Fatalf("enroll: %d %v", status, body)
	}

	status, body = a.do(t, http.MethodGet, "/api/v1/admin/users?search=amina", admin, "")
	if status != fiber.StatusOK || body["total"].(float64) != 1 {
		t.Fatalf("list users: %d %v", status, body)
	}

	status, _ = a.do(t, http.MethodPut, "/api/v1/admin/users/"+a.fx.Students[1].ID.String()+"/status", admin, `{"is_active": false}`)
	if status != fiber.StatusOK {
		t.Fatalf("toggle status: expected 200, got %d", status)
	}
	status, body = a.do(t, http.MethodPut, "/api/v1/admin/users/"+a.fx.Students[1].ID.String()+"/status", admin, `{}`)
	if status != fiber.StatusBadRequest || body["code"] != "validation_error" {
		t.Fatalf("missing is_active: %d %v", status, body)
	}

	teacher := token(t, uuid.New(), models.RoleTeacher)
	if status, _ = a.do(t, http.MethodGet, "/api/v1/admin/users", teacher, ""); status != fiber.StatusForbidden {
		t.Fatalf("teacher on admin route: expected 403, got %d", status)
	}
}
