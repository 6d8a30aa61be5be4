package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/anjiri1684/learning_assessment/models"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// FinishFields is written together with the Ongoing -> Finished transition.
type FinishFields struct {
	FinishedAt     time.Time
	Grade          float64
	CorrectCount   int
	TotalQuestions int
	Reason         models.FinishReason
	Breakdown      []models.QuestionOutcome
}

type AttemptFilter struct {
	StudentID     uuid.UUID
	StudentName   string
	MinGrade      *float64
	MaxGrade      *float64
	Passed        *bool
	PassThreshold float64
	SortBy        string
	SortDesc      bool
}

type Page struct {
	Page int
	Size int
}

func (p Page) Offset() int { return (p.Page - 1) * p.Size }

// FinishedAttempt is a finished attempt joined with the student's display name.
type FinishedAttempt struct {
	models.TestAttempt `gorm:"embedded"`
	StudentName        string `json:"student_name"`
}

type AttemptStore interface {
	InTx(ctx context.Context, fn func(AttemptStore) error) error

	CreateAttempt(ctx context.Context, attempt *models.TestAttempt, limit int) error
	GetAttempt(ctx context.Context, id uuid.UUID) (*models.TestAttempt, error)
	CountAttempts(ctx context.Context, studentID, testID uuid.UUID) (int, error)
	FindOngoing(ctx context.Context, studentID, testID uuid.UUID) (*models.TestAttempt, error)

	Claim(ctx context.Context, attemptID uuid.UUID) (bool, error)
	TryTransition(ctx context.Context, attemptID uuid.UUID, from, to models.AttemptState, fields FinishFields) (bool, error)

	UpsertResponses(ctx context.Context, attemptID, questionID uuid.UUID, answerIDs []uuid.UUID) error
	ReplaceResponses(ctx context.Context, attemptID uuid.UUID, selections models.SelectionSet) error
	ListResponses(ctx context.Context, attemptID uuid.UUID) ([]models.StudentResponse, error)

	ListFinished(ctx context.Context, testID uuid.UUID, filter AttemptFilter, page Page) ([]FinishedAttempt, int64, error)
	ListFinishedAttempts(ctx context.Context, testID uuid.UUID) ([]models.TestAttempt, error)
	ListFinishedResponses(ctx context.Context, testID uuid.UUID) ([]models.StudentResponse, error)
	ListOverdue(ctx context.Context, now time.Time, skip []uuid.UUID, limit int) ([]models.TestAttempt, error)
	AttemptedStudentIDs(ctx context.Context, testID uuid.UUID) ([]uuid.UUID, error)
}

type GormAttemptStore struct {
	db *gorm.DB
}

func NewAttemptStore(db *gorm.DB) *GormAttemptStore {
	return &GormAttemptStore{db: db}
}

var sortColumns = map[string]string{
	"grade":        "test_attempts.grade",
	"finished_at":  "test_attempts.finished_at",
	"started_at":   "test_attempts.started_at",
	"attempt_no":   "test_attempts.attempt_no",
	"student_name": "users.full_name",
}

// SortableAttemptFields lists the keys ListFinished accepts in AttemptFilter.SortBy.
func SortableAttemptFields() []string {
	return []string{"grade", "finished_at", "started_at", "attempt_no", "student_name"}
}

func (s *GormAttemptStore) InTx(ctx context.Context, fn func(AttemptStore) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormAttemptStore{db: tx})
	})
}

// CreateAttempt numbers the attempt and inserts it, refusing once limit attempts exist.
// The unique indexes turn a lost race into ErrDuplicate.
func (s *GormAttemptStore) CreateAttempt(ctx context.Context, attempt *models.TestAttempt, limit int) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.TestAttempt{}).
			Where("student_id = ? AND test_id = ?", attempt.StudentID, attempt.TestID).
			Count(&count).Error; err != nil {
			return err
		}
		if int(count) >= limit {
			return ErrLimitReached
		}
		attempt.AttemptNo = int(count) + 1
		return tx.Create(attempt).Error
	})
	if isDuplicate(err) {
		return ErrDuplicate
	}
	return err
}

func (s *GormAttemptStore) GetAttempt(ctx context.Context, id uuid.UUID) (*models.TestAttempt, error) {
	var attempt models.TestAttempt
	if err := s.db.WithContext(ctx).First(&attempt, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &attempt, nil
}

func (s *GormAttemptStore) CountAttempts(ctx context.Context, studentID, testID uuid.UUID) (int, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.TestAttempt{}).
		Where("student_id = ? AND test_id = ?", studentID, testID).
		Count(&count).Error
	return int(count), err
}

func (s *GormAttemptStore) FindOngoing(ctx context.Context, studentID, testID uuid.UUID) (*models.TestAttempt, error) {
	var attempt models.TestAttempt
	err := s.db.WithContext(ctx).
		Where("student_id = ? AND test_id = ? AND state = ?", studentID, testID, models.AttemptOngoing).
		Order("started_at DESC").
		First(&attempt).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &attempt, nil
}

// Claim write-locks an ongoing attempt for the rest of the transaction.
// It returns false when the attempt is no longer ongoing.
func (s *GormAttemptStore) Claim(ctx context.Context, attemptID uuid.UUID) (bool, error) {
	res := s.db.WithContext(ctx).Model(&models.TestAttempt{}).
		Where("id = ? AND state = ?", attemptID, models.AttemptOngoing).
		Update("updated_at", time.Now().UTC())
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (s *GormAttemptStore) TryTransition(ctx context.Context, attemptID uuid.UUID, from, to models.AttemptState, fields FinishFields) (bool, error) {
	res := s.db.WithContext(ctx).Model(&models.TestAttempt{}).
		Where("id = ? AND state = ?", attemptID, from).
		Updates(map[string]any{
			"state":           to,
			"finished_at":     fields.FinishedAt,
			"grade":           fields.Grade,
			"correct_count":   fields.CorrectCount,
			"total_questions": fields.TotalQuestions,
			"finish_reason":   fields.Reason,
			"breakdown":       datatypes.NewJSONSlice(fields.Breakdown),
			"updated_at":      fields.FinishedAt,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// UpsertResponses replaces the selection for one question, only while the attempt is ongoing.
func (s *GormAttemptStore) UpsertResponses(ctx context.Context, attemptID, questionID uuid.UUID, answerIDs []uuid.UUID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txStore := &GormAttemptStore{db: tx}
		ok, err := txStore.Claim(ctx, attemptID)
		if err != nil {
			return err
		}
		if !ok {
			return ErrNotOngoing
		}
		if err := tx.Where("attempt_id = ? AND question_id = ?", attemptID, questionID).
			Delete(&models.StudentResponse{}).Error; err != nil {
			return err
		}
		return insertResponses(tx, attemptID, models.SelectionSet{questionID: answerIDs})
	})
}

// ReplaceResponses swaps the whole response set. Callers hold the claim.
func (s *GormAttemptStore) ReplaceResponses(ctx context.Context, attemptID uuid.UUID, selections models.SelectionSet) error {
	tx := s.db.WithContext(ctx)
	if err := tx.Where("attempt_id = ?", attemptID).Delete(&models.StudentResponse{}).Error; err != nil {
		return err
	}
	return insertResponses(tx, attemptID, selections)
}

func insertResponses(tx *gorm.DB, attemptID uuid.UUID, selections models.SelectionSet) error {
	now := time.Now().UTC()
	rows := make([]models.StudentResponse, 0)
	for questionID, answerIDs := range selections {
		for _, answerID := range answerIDs {
			rows = append(rows, models.StudentResponse{
				AttemptID:  attemptID,
				QuestionID: questionID,
				AnswerID:   answerID,
				CreatedAt:  now,
			})
		}
	}
	if len(rows) == 0 {
		return nil
	}
	return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error
}

func (s *GormAttemptStore) ListResponses(ctx context.Context, attemptID uuid.UUID) ([]models.StudentResponse, error) {
	var rows []models.StudentResponse
	err := s.db.WithContext(ctx).
		Where("attempt_id = ?", attemptID).
		Order("question_id ASC, answer_id ASC").
		Find(&rows).Error
	return rows, err
}

func (s *GormAttemptStore) finishedQuery(ctx context.Context, testID uuid.UUID, filter AttemptFilter) *gorm.DB {
	q := s.db.WithContext(ctx).
		Table("test_attempts").
		Joins("LEFT JOIN users ON users.id = test_attempts.student_id").
		Where("test_attempts.test_id = ? AND test_attempts.state = ?", testID, models.AttemptFinished)

	if filter.StudentID != uuid.Nil {
		q = q.Where("test_attempts.student_id = ?", filter.StudentID)
	}
	if name := strings.TrimSpace(filter.StudentName); name != "" {
		q = q.Where("LOWER(users.full_name) LIKE ?", "%"+strings.ToLower(name)+"%")
	}
	if filter.MinGrade != nil {
		q = q.Where("test_attempts.grade >= ?", *filter.MinGrade)
	}
	if filter.MaxGrade != nil {
		q = q.Where("test_attempts.grade <= ?", *filter.MaxGrade)
	}
	if filter.Passed != nil {
		if *filter.Passed {
			q = q.Where("test_attempts.grade >= ?", filter.PassThreshold)
		} else {
			q = q.Where("test_attempts.grade < ?", filter.PassThreshold)
		}
	}
	return q
}

// ListFinished pages finished attempts. Equal sort keys fall back to attempt id so pages are stable.
func (s *GormAttemptStore) ListFinished(ctx context.Context, testID uuid.UUID, filter AttemptFilter, page Page) ([]FinishedAttempt, int64, error) {
	column, ok := sortColumns[filter.SortBy]
	if !ok {
		return nil, 0, fmt.Errorf("unsupported sort field %q", filter.SortBy)
	}

	var total int64
	if err := s.finishedQuery(ctx, testID, filter).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []FinishedAttempt
	err := s.finishedQuery(ctx, testID, filter).
		Select("test_attempts.*, users.full_name AS student_name").
		Order(clause.OrderBy{Columns: []clause.OrderByColumn{
			{Column: clause.Column{Name: column, Raw: true}, Desc: filter.SortDesc},
			{Column: clause.Column{Name: "test_attempts.id", Raw: true}},
		}}).
		Offset(page.Offset()).
		Limit(page.Size).
		Scan(&rows).Error
	if err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

func (s *GormAttemptStore) ListFinishedAttempts(ctx context.Context, testID uuid.UUID) ([]models.TestAttempt, error) {
	var attempts []models.TestAttempt
	err := s.db.WithContext(ctx).
		Where("test_id = ? AND state = ?", testID, models.AttemptFinished).
		Order("id ASC").
		Find(&attempts).Error
	return attempts, err
}

func (s *GormAttemptStore) ListFinishedResponses(ctx context.Context, testID uuid.UUID) ([]models.StudentResponse, error) {
	var rows []models.StudentResponse
	err := s.db.WithContext(ctx).
		Model(&models.StudentResponse{}).
		Joins("JOIN test_attempts ON test_attempts.id = student_responses.attempt_id").
		Where("test_attempts.test_id = ? AND test_attempts.state = ?", testID, models.AttemptFinished).
		Find(&rows).Error
	return rows, err
}

// ListOverdue returns ongoing attempts past their due time, oldest first, leaving out skip.
func (s *GormAttemptStore) ListOverdue(ctx context.Context, now time.Time, skip []uuid.UUID, limit int) ([]models.TestAttempt, error) {
	var attempts []models.TestAttempt
	q := s.db.WithContext(ctx).Where("state = ? AND due_at < ?", models.AttemptOngoing, now)
	if len(skip) > 0 {
		q = q.Where("id NOT IN ?", skip)
	}
	err := q.Order("due_at ASC").Limit(limit).Find(&attempts).Error
	return attempts, err
}

func (s *GormAttemptStore) AttemptedStudentIDs(ctx context.Context, testID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := s.db.WithContext(ctx).
		Model(&models.TestAttempt{}).
		Where("test_id = ?", testID).
		Distinct().
		Pluck("student_id", &ids).Error
	return ids, err
}
