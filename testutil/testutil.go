// Package testutil opens throwaway sqlite databases migrated with the production schema.
package testutil

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/anjiri1684/learning_assessment/database"
	"github.com/anjiri1684/learning_assessment/models"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "assessment.db") + "?_pragma=busy_timeout(5000)"
	cfg := database.GormConfig()
	cfg.Logger = logger.Default.LogMode(logger.Silent)

	db, err := gorm.Open(sqlite.Open(dsn), cfg)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql handle: %v", err)
	}
	// one connection serialises transactions the way row locks do on postgres
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// Fixture is a seeded classroom with students and one test definition.
type Fixture struct {
	Classroom models.Classroom
	Students  []models.User
	Test      models.TestDefinition
}

// Blueprint describes the test a fixture seeds. Each entry of Questions is the list of
// correctness flags for that question's answers.
type Blueprint struct {
	DurationSeconds  int
	AttemptLimit     int
	StartAt, EndAt   *time.Time
	ShowResultPolicy models.ShowResultPolicy
	Questions        [][]bool
	Students         []string
}

func Seed(t *testing.T, db *gorm.DB, bp Blueprint) Fixture {
	t.Helper()

	fx := Fixture{Classroom: models.Classroom{Name: "Class A"}}
	if err := db.Create(&fx.Classroom).Error; err != nil {
		t.Fatalf("seed classroom: %v", err)
	}
	for _, name := range bp.Students {
		u := models.User{FullName: name, Email: uuid.NewString() + "@example.test", Role: models.RoleStudent}
		if err := db.Create(&u).Error; err != nil {
			t.Fatalf("seed student: %v", err)
		}
		if err := db.Create(&models.Enrollment{ClassroomID: fx.Classroom.ID, StudentID: u.ID}).Error; err != nil {
			t.Fatalf("seed enrollment: %v", err)
		}
		fx.Students = append(fx.Students, u)
	}

	policy := bp.ShowResultPolicy
	if policy == "" {
		policy = models.ShowImmediately
	}
	fx.Test = models.TestDefinition{
		ClassroomID:      fx.Classroom.ID,
		Title:            "Unit test",
		DurationSeconds:  bp.DurationSeconds,
		AttemptLimit:     bp.AttemptLimit,
		StartAt:          bp.StartAt,
		EndAt:            bp.EndAt,
		ShowResultPolicy: policy,
	}
	for qi, flags := range bp.Questions {
		q := models.Question{Position: qi, Content: "Question " + string(rune('A'+qi)), Type: models.SingleChoice}
		correct := 0
		for ai, ok := range flags {
			if ok {
				correct++
			}
			q.Answers = append(q.Answers, models.AnswerOption{Position: ai, Content: string(rune('a' + ai)), IsCorrect: ok})
		}
		if correct > 1 {
			q.Type = models.MultiChoice
		}
		fx.Test.Questions = append(fx.Test.Questions, q)
	}
	if err := db.Create(&fx.Test).Error; err != nil {
		t.Fatalf("seed test: %v", err)
	}
	return fx
}

// CorrectSelection returns the correct answer ids of question qi.
func (f Fixture) CorrectSelection(qi int) []uuid.UUID {
	return f.Test.Questions[qi].CorrectAnswerIDs()
}

// WrongSelection returns the first incorrect answer id of question qi.
func (f Fixture) WrongSelection(qi int) []uuid.UUID {
	for _, a := range f.Test.Questions[qi].Answers {
		if !a.IsCorrect {
			return []uuid.UUID{a.ID}
		}
	}
	return nil
}
