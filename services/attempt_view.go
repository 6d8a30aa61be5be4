package services

import (
	"time"

	"github.com/anjiri1684/learning_assessment/models"
	"github.com/google/uuid"
)

type AnswerView struct {
	ID        uuid.UUID `json:"id"`
	Position  int       `json:"position"`
	Content   string    `json:"content"`
	Selected  bool      `json:"selected"`
	IsCorrect *bool     `json:"is_correct,omitempty"`
}

type QuestionView struct {
	ID          uuid.UUID           `json:"id"`
	Position    int                 `json:"position"`
	Content     string              `json:"content"`
	Description string              `json:"description,omitempty"`
	Type        models.QuestionType `json:"type"`
	Correct     *bool               `json:"correct,omitempty"`
	Answers     []AnswerView        `json:"answers"`
}

// AttemptView is what a student sees of an attempt. Correctness is only filled in once the
// test's result policy reveals it.
type AttemptView struct {
	Attempt          models.TestAttempt `json:"attempt"`
	TestTitle        string             `json:"test_title"`
	RemainingSeconds int                `json:"remaining_seconds"`
	Passed           *bool              `json:"passed,omitempty"`
	CorrectRevealed  bool               `json:"correct_revealed"`
	Questions        []QuestionView     `json:"questions"`
	Warnings         []string           `json:"warnings,omitempty"`
}

func (s *AttemptService) buildView(test *models.TestDefinition, attempt *models.TestAttempt, responses []models.StudentResponse) *AttemptView {
	now := s.now()
	view := &AttemptView{
		Attempt:   *attempt,
		TestTitle: test.Title,
		Questions: make([]QuestionView, 0, len(test.Questions)),
	}

	selected := models.GroupResponses(responses)
	outcomes := map[uuid.UUID]models.QuestionOutcome{}
	if attempt.IsOngoing() {
		if left := attempt.DueAt.Sub(now); left > 0 {
			view.RemainingSeconds = int(left.Round(time.Second) / time.Second)
		}
	} else {
		for _, o := range attempt.Breakdown {
			outcomes[o.QuestionID] = o
			selected[o.QuestionID] = o.Selected
		}
		if attempt.Grade != nil {
			passed := s.grader.Passed(*attempt.Grade)
			view.Passed = &passed
		}
		view.CorrectRevealed = test.RevealsCorrectness(now)
	}

	for _, q := range test.Questions {
		picked := map[uuid.UUID]bool{}
		for _, id := range selected[q.ID] {
			picked[id] = true
		}
		qv := QuestionView{
			ID:          q.ID,
			Position:    q.Position,
			Content:     q.Content,
			Description: q.Description,
			Type:        q.Type,
			Answers:     make([]AnswerView, 0, len(q.Answers)),
		}
		// The question verdict is the frozen one; answer flags follow the current catalog.
		if o, ok := outcomes[q.ID]; ok && view.CorrectRevealed {
			correct := o.Correct
			qv.Correct = &correct
		}
		for _, a := range q.Answers {
			av := AnswerView{ID: a.ID, Position: a.Position, Content: a.Content, Selected: picked[a.ID]}
			if view.CorrectRevealed {
				isCorrect := a.IsCorrect
				av.IsCorrect = &isCorrect
			}
			qv.Answers = append(qv.Answers, av)
		}
		view.Questions = append(view.Questions, qv)
	}
	return view
}
