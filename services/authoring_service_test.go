package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/anjiri1684/learning_assessment/models"
	"github.com/anjiri1684/learning_assessment/store"
	"github.com/anjiri1684/learning_assessment/testutil"
	"github.com/google/uuid"
)

func validDraft() TestDraft {
	return TestDraft{
		ClassroomID:     uuid.New(),
		Title:           " Fractions quiz ",
		DurationSeconds: 900,
		Questions: []QuestionDraft{
			{Content: "1/2 + 1/4?", Type: models.SingleChoice, Answers: []AnswerDraft{{Content: "3/4", IsCorrect: true}, {Content: "2/6"}}},
			{Content: "Equal to 1/2?", Type: models.MultiChoice, Answers: []AnswerDraft{{Content: "2/4", IsCorrect: true}, {Content: "3/6", IsCorrect: true}, {Content: "1/3"}}},
		},
	}
}

func TestCreateTest(t *testing.T) {
	svc := NewAuthoringService(store.NewCatalog(testutil.NewDB(t)))

	detail, err := svc.CreateTest(context.Background(), validDraft())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if detail.Test.Title != "Fractions quiz" || detail.Test.AttemptLimit != 1 || detail.Test.ShowResultPolicy != models.ShowImmediately {
		t.Fatalf("defaults not applied: %+v", detail.Test)
	}
	if len(detail.Questions) != 2 || len(detail.Questions[1].Answers) != 3 {
		t.Fatalf("unexpected questions %+v", detail.Questions)
	}
	if a := detail.Questions[0].Answers[0]; a.IsCorrect == nil || !*a.IsCorrect {
		t.Fatal("teacher detail must carry correctness flags")
	}
}

func TestCreateTestValidation(t *testing.T) {
	svc := NewAuthoringService(store.NewCatalog(testutil.NewDB(t)))
	start := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	before := start.Add(-time.Hour)

	tests := []struct {
		name   string
		mutate func(d *TestDraft)
	}{
		{"missing title", func(d *TestDraft) { d.Title = "" }},
		{"zero duration", func(d *TestDraft) { d.DurationSeconds = 0 }},
		{"bad policy", func(d *TestDraft) { d.ShowResultPolicy = "never" }},
		{"one answer only", func(d *TestDraft) { d.Questions[0].Answers = d.Questions[0].Answers[:1] }},
		{"single choice with two correct", func(d *TestDraft) { d.Questions[1].Type = models.SingleChoice }},
		{"window ends before it starts", func(d *TestDraft) { d.StartAt, d.EndAt = &start, &before }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			d := validDraft()
			tc.mutate(&d)
			if _, err := svc.CreateTest(context.Background(), d); !errors.Is(err, ErrValidation) {
				t.Fatalf("expected ErrValidation, got %v", err)
			}
		})
	}

	if _, err := svc.Detail(context.Background(), uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
