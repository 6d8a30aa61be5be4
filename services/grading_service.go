package services

import (
	"math"
	"sort"

	"github.com/anjiri1684/learning_assessment/models"
	"github.com/google/uuid"
)

const (
	MaxGrade             = 10.0
	DefaultPassThreshold = 5.0
)

type GradeResult struct {
	Grade          float64                  `json:"grade"`
	CorrectCount   int                      `json:"correct_count"`
	TotalQuestions int                      `json:"total_questions"`
	Outcomes       []models.QuestionOutcome `json:"outcomes"`
}

// GradingEngine scores an attempt all-or-nothing per question on a 0..10 scale.
type GradingEngine struct {
	passThreshold float64
}

func NewGradingEngine(passThreshold float64) *GradingEngine {
	if passThreshold <= 0 || passThreshold > MaxGrade {
		passThreshold = DefaultPassThreshold
	}
	return &GradingEngine{passThreshold: passThreshold}
}

func (g *GradingEngine) PassThreshold() float64 { return g.passThreshold }

func (g *GradingEngine) Passed(grade float64) bool {
	return grade >= g.passThreshold
}

// Grade counts a question correct only when the selected set equals the correct set exactly.
// Unanswered questions count as incorrect. A test without questions grades to 0 and the
// result comes back together with an ErrDataIntegrity error.
func (g *GradingEngine) Grade(attempt models.TestAttempt, selections models.SelectionSet, questions []models.Question) (GradeResult, error) {
	result := GradeResult{
		TotalQuestions: len(questions),
		Outcomes:       make([]models.QuestionOutcome, 0, len(questions)),
	}
	if len(questions) == 0 {
		return result, newError(ErrDataIntegrity, attempt.TestID, attempt.ID, "test has no questions, graded as 0")
	}

	for _, q := range questions {
		selected := uniqueSorted(selections[q.ID])
		correct := g.IsQuestionCorrect(q, selected)
		if correct {
			result.CorrectCount++
		}
		result.Outcomes = append(result.Outcomes, models.QuestionOutcome{
			QuestionID: q.ID,
			Selected:   selected,
			Correct:    correct,
		})
	}
	result.Grade = RoundGrade(float64(result.CorrectCount) / float64(result.TotalQuestions) * MaxGrade)
	return result, nil
}

func (g *GradingEngine) IsQuestionCorrect(q models.Question, selected []uuid.UUID) bool {
	want := map[uuid.UUID]struct{}{}
	for _, id := range q.CorrectAnswerIDs() {
		want[id] = struct{}{}
	}
	got := map[uuid.UUID]struct{}{}
	for _, id := range selected {
		got[id] = struct{}{}
	}
	if len(want) != len(got) {
		return false
	}
	for id := range got {
		if _, ok := want[id]; !ok {
			return false
		}
	}
	return true
}

// RoundGrade rounds to two decimals.
func RoundGrade(v float64) float64 {
	return math.Round(v*100) / 100
}

func uniqueSorted(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}
