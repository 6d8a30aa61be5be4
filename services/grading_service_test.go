package services

import (
	"errors"
	"testing"

	"github.com/anjiri1684/learning_assessment/models"
	"github.com/google/uuid"
)

func question(flags ...bool) models.Question {
	q := models.Question{ID: uuid.New(), Type: models.SingleChoice}
	for i, ok := range flags {
		q.Answers = append(q.Answers, models.AnswerOption{ID: uuid.New(), QuestionID: q.ID, Position: i, IsCorrect: ok})
	}
	return q
}

func TestIsQuestionCorrect(t *testing.T) {
	g := NewGradingEngine(DefaultPassThreshold)
	multi := question(true, false, true)
	none := question(false, false)

	tests := []struct {
		name     string
		q        models.Question
		selected []uuid.UUID
		want     bool
	}{
		{"exact multi match", multi, []uuid.UUID{multi.Answers[2].ID, multi.Answers[0].ID}, true},
		{"subset gets no credit", multi, []uuid.UUID{multi.Answers[0].ID}, false},
		{"superset gets no credit", multi, []uuid.UUID{multi.Answers[0].ID, multi.Answers[1].ID, multi.Answers[2].ID}, false},
		{"unanswered", multi, nil, false},
		{"no correct options and nothing picked", none, nil, true},
		{"no correct options but something picked", none, []uuid.UUID{none.Answers[0].ID}, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := g.IsQuestionCorrect(tc.q, tc.selected); got != tc.want {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

func TestGradeRounding(t *testing.T) {
	g := NewGradingEngine(DefaultPassThreshold)
	questions := []models.Question{question(true, false), question(true, false), question(true, false)}
	selections := models.SelectionSet{
		questions[0].ID: {questions[0].Answers[0].ID},
		questions[1].ID: {questions[1].Answers[0].ID, questions[1].Answers[0].ID},
		questions[2].ID: {questions[2].Answers[1].ID},
	}

	res, err := g.Grade(models.TestAttempt{ID: uuid.New()}, selections, questions)
	if err != nil {
		t.Fatalf("grade: %v", err)
	}
	if res.Grade != 6.67 || res.CorrectCount != 2 || res.TotalQuestions != 3 {
		t.Fatalf("unexpected result %+v", res)
	}
	if len(res.Outcomes) != 3 || len(res.Outcomes[1].Selected) != 1 {
		t.Fatalf("expected de-duplicated outcomes, got %+v", res.Outcomes)
	}
}

func TestGradeZeroQuestions(t *testing.T) {
	res, err := NewGradingEngine(DefaultPassThreshold).Grade(models.TestAttempt{ID: uuid.New()}, nil, nil)
	if !errors.Is(err, ErrDataIntegrity) {
		t.Fatalf("expected ErrDataIntegrity, got %v", err)
	}
	if res.Grade != 0 || res.TotalQuestions != 0 {
		t.Fatalf("expected zero grade, got %+v", res)
	}
}

func TestPassed(t *testing.T) {
	tests := []struct {
		threshold float64
		grade     float64
		want      bool
	}{
		{DefaultPassThreshold, 5, true},
		{DefaultPassThreshold, 4.99, false},
		{4, 4, true},
		{0, 4.5, false},
		{11, 5, true},
	}
	for _, tc := range tests {
		if got := NewGradingEngine(tc.threshold).Passed(tc.grade); got != tc.want {
			t.Errorf("threshold %.2f grade %.2f: expected %v, got %v", tc.threshold, tc.grade, tc.want, got)
		}
	}
}
