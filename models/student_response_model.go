package models

import (
	"time"

	"github.com/google/uuid"
)

// StudentResponse is one selected option: a row exists iff the answer was chosen.
type StudentResponse struct {
	AttemptID  uuid.UUID `gorm:"type:uuid;primaryKey" json:"attempt_id"`
	QuestionID uuid.UUID `gorm:"type:uuid;primaryKey" json:"question_id"`
	AnswerID   uuid.UUID `gorm:"type:uuid;primaryKey" json:"answer_id"`

	CreatedAt time.Time `json:"created_at"`
}

// SelectionSet groups response rows by question.
type SelectionSet map[uuid.UUID][]uuid.UUID

func GroupResponses(rows []StudentResponse) SelectionSet {
	out := SelectionSet{}
	for _, r := range rows {
		out[r.QuestionID] = append(out[r.QuestionID], r.AnswerID)
	}
	return out
}
