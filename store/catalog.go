package store

import (
	"context"
	"time"

	"github.com/anjiri1684/learning_assessment/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Catalog is the read side of authored content. The attempt engine never writes through it
// except for teacher authoring.
type Catalog interface {
	GetTestDefinition(ctx context.Context, testID uuid.UUID) (*models.TestDefinition, error)
	GetQuestions(ctx context.Context, testID uuid.UUID) ([]models.Question, error)
	EnrolledStudents(ctx context.Context, classroomID uuid.UUID) ([]models.User, error)
	TestsEndingBetween(ctx context.Context, from, to time.Time) ([]models.TestDefinition, error)
	CreateTestDefinition(ctx context.Context, test *models.TestDefinition) error
}

type GormCatalog struct {
	db *gorm.DB
}

func NewCatalog(db *gorm.DB) *GormCatalog {
	return &GormCatalog{db: db}
}

func byPosition(db *gorm.DB) *gorm.DB {
	return db.Order("position ASC, id ASC")
}

func (c *GormCatalog) GetTestDefinition(ctx context.Context, testID uuid.UUID) (*models.TestDefinition, error) {
	var test models.TestDefinition
	err := c.db.WithContext(ctx).
		Preload("Questions", byPosition).
		Preload("Questions.Answers", byPosition).
		First(&test, "id = ?", testID).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &test, nil
}

func (c *GormCatalog) GetQuestions(ctx context.Context, testID uuid.UUID) ([]models.Question, error) {
	var questions []models.Question
	err := c.db.WithContext(ctx).
		Preload("Answers", byPosition).
		Where("test_id = ?", testID).
		Scopes(byPosition).
		Find(&questions).Error
	return questions, err
}

func (c *GormCatalog) EnrolledStudents(ctx context.Context, classroomID uuid.UUID) ([]models.User, error) {
	var students []models.User
	err := c.db.WithContext(ctx).
		Joins("JOIN enrollments ON enrollments.student_id = users.id").
		Where("enrollments.classroom_id = ?", classroomID).
		Order("users.full_name ASC, users.id ASC").
		Find(&students).Error
	return students, err
}

// TestsEndingBetween returns tests whose window closes in (from, to].
func (c *GormCatalog) TestsEndingBetween(ctx context.Context, from, to time.Time) ([]models.TestDefinition, error) {
	var tests []models.TestDefinition
	err := c.db.WithContext(ctx).
		Where("end_at > ? AND end_at <= ?", from, to).
		Order("end_at ASC").
		Find(&tests).Error
	return tests, err
}

func (c *GormCatalog) CreateTestDefinition(ctx context.Context, test *models.TestDefinition) error {
	return c.db.WithContext(ctx).Create(test).Error
}
