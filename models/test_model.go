package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ShowResultPolicy string

const (
	ShowImmediately       ShowResultPolicy = "show_immediately"
	ShowAfterWindowCloses ShowResultPolicy = "show_after_window_closes"
)

const DefaultAttemptLimit = 1

// TestDefinition is the authored test. Grading treats it as read-only.
type TestDefinition struct {
	ID               uuid.UUID        `gorm:"type:uuid;primary_key" json:"id"`
	ClassroomID      uuid.UUID        `gorm:"type:uuid;not null;index" json:"classroom_id"`
	Title            string           `gorm:"size:255;not null" json:"title"`
	Description      string           `gorm:"type:text" json:"description"`
	DurationSeconds  int              `gorm:"not null" json:"duration_seconds"`
	StartAt          *time.Time       `json:"start_at"`
	EndAt            *time.Time       `gorm:"index" json:"end_at"`
	AttemptLimit     int              `gorm:"not null;default:1" json:"attempt_limit"`
	ShowResultPolicy ShowResultPolicy `gorm:"size:40;not null;default:'show_immediately'" json:"show_result_policy"`

	Questions []Question `gorm:"foreignKey:TestID" json:"questions,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (t *TestDefinition) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

func (t TestDefinition) Duration() time.Duration {
	return time.Duration(t.DurationSeconds) * time.Second
}

// EffectiveAttemptLimit treats an unset limit as one attempt.
func (t TestDefinition) EffectiveAttemptLimit() int {
	if t.AttemptLimit < 1 {
		return DefaultAttemptLimit
	}
	return t.AttemptLimit
}

// WithinWindow reports whether now falls inside the optional start/end window.
func (t TestDefinition) WithinWindow(now time.Time) bool {
	if t.StartAt != nil && now.Before(*t.StartAt) {
		return false
	}
	if t.EndAt != nil && now.After(*t.EndAt) {
		return false
	}
	return true
}

// RevealsCorrectness decides whether correctness flags may be shown for a finished attempt.
func (t TestDefinition) RevealsCorrectness(now time.Time) bool {
	switch t.ShowResultPolicy {
	case ShowAfterWindowCloses:
		return t.EndAt == nil || now.After(*t.EndAt)
	default:
		return true
	}
}
