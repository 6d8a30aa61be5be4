package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type QuestionType string

const (
	SingleChoice QuestionType = "single_choice"
	MultiChoice  QuestionType = "multi_choice"
)

type Question struct {
	ID          uuid.UUID    `gorm:"type:uuid;primary_key" json:"id"`
	TestID      uuid.UUID    `gorm:"type:uuid;not null;index" json:"test_id"`
	Position    int          `gorm:"not null;default:0" json:"position"`
	Content     string       `gorm:"type:text;not null" json:"content"`
	Description string       `gorm:"type:text" json:"description"`
	Type        QuestionType `gorm:"size:30;not null;default:'single_choice'" json:"type"`

	Answers []AnswerOption `gorm:"foreignKey:QuestionID" json:"answers"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (q *Question) BeforeCreate(tx *gorm.DB) error {
	if q.ID == uuid.Nil {
		q.ID = uuid.New()
	}
	return nil
}

// AnswerOption.IsCorrect is never serialised; views that may reveal it copy it explicitly.
type AnswerOption struct {
	ID         uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	QuestionID uuid.UUID `gorm:"type:uuid;not null;index" json:"question_id"`
	Position   int       `gorm:"not null;default:0" json:"position"`
	Content    string    `gorm:"type:text;not null" json:"content"`
	IsCorrect  bool      `gorm:"not null;default:false" json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (a *AnswerOption) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

func (q Question) HasAnswer(id uuid.UUID) bool {
	for _, a := range q.Answers {
		if a.ID == id {
			return true
		}
	}
	return false
}

func (q Question) CorrectAnswerIDs() []uuid.UUID {
	out := make([]uuid.UUID, 0, len(q.Answers))
	for _, a := range q.Answers {
		if a.IsCorrect {
			out = append(out, a.ID)
		}
	}
	return out
}
