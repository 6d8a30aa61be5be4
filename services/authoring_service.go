package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/anjiri1684/learning_assessment/models"
	"github.com/anjiri1684/learning_assessment/store"
	"github.com/google/uuid"
)

type AnswerDraft struct {
	Content   string `json:"content" validate:"required,max=2000"`
	IsCorrect bool   `json:"is_correct"`
}

type QuestionDraft struct {
	Content     string              `json:"content" validate:"required,max=5000"`
	Description string              `json:"description"`
	Type        models.QuestionType `json:"type" validate:"required,oneof=single_choice multi_choice"`
	Answers     []AnswerDraft       `json:"answers" validate:"required,min=2,dive"`
}

type TestDraft struct {
	ClassroomID      uuid.UUID               `json:"classroom_id" validate:"required"`
	Title            string                  `json:"title" validate:"required,max=255"`
	Description      string                  `json:"description"`
	DurationSeconds  int                     `json:"duration_seconds" validate:"required,gt=0"`
	StartAt          *time.Time              `json:"start_at"`
	EndAt            *time.Time              `json:"end_at"`
	AttemptLimit     int                     `json:"attempt_limit" validate:"omitempty,gte=1"`
	ShowResultPolicy models.ShowResultPolicy `json:"show_result_policy" validate:"omitempty,oneof=show_immediately show_after_window_closes"`
	Questions        []QuestionDraft         `json:"questions" validate:"dive"`
}

// TestDetail is the teacher's view of a test, correctness flags included.
type TestDetail struct {
	Test      models.TestDefinition `json:"test"`
	Questions []QuestionView        `json:"questions"`
}

type AuthoringService struct {
	catalog store.Catalog
}

func NewAuthoringService(catalog store.Catalog) *AuthoringService {
	return &AuthoringService{catalog: catalog}
}

func (s *AuthoringService) CreateTest(ctx context.Context, draft TestDraft) (*TestDetail, error) {
	if err := checkQuery(uuid.Nil, draft); err != nil {
		return nil, err
	}
	if draft.StartAt != nil && draft.EndAt != nil && !draft.EndAt.After(*draft.StartAt) {
		return nil, validationError(uuid.Nil, "end_at must be after start_at")
	}
	if draft.AttemptLimit == 0 {
		draft.AttemptLimit = models.DefaultAttemptLimit
	}
	if draft.ShowResultPolicy == "" {
		draft.ShowResultPolicy = models.ShowImmediately
	}

	test := models.TestDefinition{
		ClassroomID:      draft.ClassroomID,
		Title:            strings.TrimSpace(draft.Title),
		Description:      draft.Description,
		DurationSeconds:  draft.DurationSeconds,
		StartAt:          utc(draft.StartAt),
		EndAt:            utc(draft.EndAt),
		AttemptLimit:     draft.AttemptLimit,
		ShowResultPolicy: draft.ShowResultPolicy,
	}
	for qi, qd := range draft.Questions {
		correct := 0
		q := models.Question{Position: qi, Content: qd.Content, Description: qd.Description, Type: qd.Type}
		for ai, ad := range qd.Answers {
			if ad.IsCorrect {
				correct++
			}
			q.Answers = append(q.Answers, models.AnswerOption{Position: ai, Content: ad.Content, IsCorrect: ad.IsCorrect})
		}
		if qd.Type == models.SingleChoice && correct > 1 {
			return nil, validationError(uuid.Nil, "question %d is single choice but marks %d answers correct", qi+1, correct)
		}
		test.Questions = append(test.Questions, q)
	}

	if err := s.catalog.CreateTestDefinition(ctx, &test); err != nil {
		return nil, fmt.Errorf("create test: %w", err)
	}
	log.Printf("✅ Test %q created with %d questions", test.Title, len(test.Questions))
	return s.Detail(ctx, test.ID)
}

func (s *AuthoringService) Detail(ctx context.Context, testID uuid.UUID) (*TestDetail, error) {
	test, err := s.catalog.GetTestDefinition(ctx, testID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, newError(ErrNotFound, testID, uuid.Nil, "test not found")
	}
	if err != nil {
		return nil, fmt.Errorf("load test %s: %w", testID, err)
	}
	questions, err := s.catalog.GetQuestions(ctx, testID)
	if err != nil {
		return nil, fmt.Errorf("load questions of %s: %w", testID, err)
	}

	detail := &TestDetail{Test: *test, Questions: make([]QuestionView, 0, len(questions))}
	detail.Test.Questions = nil
	for _, q := range questions {
		qv := QuestionView{ID: q.ID, Position: q.Position, Content: q.Content, Description: q.Description, Type: q.Type}
		for _, a := range q.Answers {
			isCorrect := a.IsCorrect
			qv.Answers = append(qv.Answers, AnswerView{ID: a.ID, Position: a.Position, Content: a.Content, IsCorrect: &isCorrect})
		}
		detail.Questions = append(detail.Questions, qv)
	}
	return detail, nil
}

func utc(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
