package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type AttemptState string

const (
	AttemptOngoing  AttemptState = "ongoing"
	AttemptFinished AttemptState = "finished"
)

type FinishReason string

const (
	FinishSubmitted FinishReason = "submitted"
	FinishTimeout   FinishReason = "timeout"
)

// QuestionOutcome is the per-question grading snapshot frozen on a finished attempt.
type QuestionOutcome struct {
	QuestionID uuid.UUID   `json:"question_id"`
	Selected   []uuid.UUID `json:"selected"`
	Correct    bool        `json:"correct"`
}

type TestAttempt struct {
	ID        uuid.UUID    `gorm:"type:uuid;primary_key" json:"id"`
	TestID    uuid.UUID    `gorm:"type:uuid;not null;uniqueIndex:idx_attempt_no,priority:1;index:idx_attempt_pair,priority:1" json:"test_id"`
	StudentID uuid.UUID    `gorm:"type:uuid;not null;uniqueIndex:idx_attempt_no,priority:2;index:idx_attempt_pair,priority:2" json:"student_id"`
	AttemptNo int          `gorm:"not null;uniqueIndex:idx_attempt_no,priority:3" json:"attempt_no"`
	State     AttemptState `gorm:"size:20;not null;index" json:"state"`

	StartedAt  time.Time  `gorm:"not null" json:"started_at"`
	DueAt      time.Time  `gorm:"not null;index" json:"due_at"`
	FinishedAt *time.Time `json:"finished_at"`

	Grade          *float64                             `json:"grade"`
	CorrectCount   int                                  `gorm:"not null;default:0" json:"correct_count"`
	TotalQuestions int                                  `gorm:"not null;default:0" json:"total_questions"`
	FinishReason   *FinishReason                        `gorm:"size:20" json:"finish_reason,omitempty"`
	Breakdown      datatypes.JSONSlice[QuestionOutcome] `json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (a *TestAttempt) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

func (a TestAttempt) IsOngoing() bool { return a.State == AttemptOngoing }

// Overdue reports whether now is past the attempt's due time. There is no grace.
func (a TestAttempt) Overdue(now time.Time) bool {
	return now.After(a.DueAt)
}
