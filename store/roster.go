package store

import (
	"context"
	"strings"

	"github.com/anjiri1684/learning_assessment/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Roster owns classrooms, their enrollments and the mirrored user accounts.
type Roster interface {
	CreateClassroom(ctx context.Context, classroom *models.Classroom) error
	GetClassroom(ctx context.Context, id uuid.UUID) (*models.Classroom, error)
	FindUsers(ctx context.Context, ids []uuid.UUID) ([]models.User, error)
	Enroll(ctx context.Context, classroomID uuid.UUID, studentIDs []uuid.UUID) (int64, error)
	ListUsers(ctx context.Context, search, role string, page Page) ([]models.User, int64, error)
	SetUserActive(ctx context.Context, userID uuid.UUID, active bool) error
}

type GormRoster struct {
	db *gorm.DB
}

func NewRoster(db *gorm.DB) *GormRoster {
	return &GormRoster{db: db}
}

func (r *GormRoster) CreateClassroom(ctx context.Context, classroom *models.Classroom) error {
	return r.db.WithContext(ctx).Create(classroom).Error
}

func (r *GormRoster) GetClassroom(ctx context.Context, id uuid.UUID) (*models.Classroom, error) {
	var classroom models.Classroom
	if err := r.db.WithContext(ctx).First(&classroom, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &classroom, nil
}

func (r *GormRoster) FindUsers(ctx context.Context, ids []uuid.UUID) ([]models.User, error) {
	var users []models.User
	if len(ids) == 0 {
		return users, nil
	}
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&users).Error
	return users, err
}

// Enroll adds the students to the classroom and returns how many were newly enrolled.
func (r *GormRoster) Enroll(ctx context.Context, classroomID uuid.UUID, studentIDs []uuid.UUID) (int64, error) {
	if len(studentIDs) == 0 {
		return 0, nil
	}
	rows := make([]models.Enrollment, 0, len(studentIDs))
	for _, id := range studentIDs {
		rows = append(rows, models.Enrollment{ClassroomID: classroomID, StudentID: id})
	}
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&rows)
	return res.RowsAffected, res.Error
}

func (r *GormRoster) ListUsers(ctx context.Context, search, role string, page Page) ([]models.User, int64, error) {
	q := r.db.WithContext(ctx).Model(&models.User{})
	if search = strings.TrimSpace(search); search != "" {
		term := "%" + strings.ToLower(search) + "%"
		q = q.Where("LOWER(full_name) LIKE ? OR LOWER(email) LIKE ?", term, term)
	}
	if role != "" {
		q = q.Where("role = ?", role)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var users []models.User
	err := q.Order("full_name ASC, id ASC").Offset(page.Offset()).Limit(page.Size).Find(&users).Error
	return users, total, err
}

func (r *GormRoster) SetUserActive(ctx context.Context, userID uuid.UUID, active bool) error {
	res := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).Update("is_active", active)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
