package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anjiri1684/learning_assessment/models"
	"github.com/anjiri1684/learning_assessment/store"
	"github.com/google/uuid"
)

type ClassroomDraft struct {
	Name string `json:"name" validate:"required,max=255"`
}

type UserQuery struct {
	Search string `validate:"max=255"`
	Role   string `validate:"omitempty,oneof=student teacher admin"`
	Page   int    `validate:"gte=0"`
	Size   int    `validate:"gte=0,lte=100"`
}

type EnrollResult struct {
	ClassroomID uuid.UUID `json:"classroom_id"`
	Requested   int       `json:"requested"`
	Enrolled    int64     `json:"enrolled"`
}

// RosterService manages who sits which tests: classrooms, enrollments and account status.
type RosterService struct {
	roster store.Roster
}

func NewRosterService(roster store.Roster) *RosterService {
	return &RosterService{roster: roster}
}

func (s *RosterService) CreateClassroom(ctx context.Context, draft ClassroomDraft) (*models.Classroom, error) {
	if err := checkQuery(uuid.Nil, draft); err != nil {
		return nil, err
	}
	classroom := &models.Classroom{Name: strings.TrimSpace(draft.Name)}
	if err := s.roster.CreateClassroom(ctx, classroom); err != nil {
		return nil, fmt.Errorf("create classroom: %w", err)
	}
	return classroom, nil
}

// Enroll adds students to a classroom. Every id must name an existing student account;
// students already enrolled are left alone.
func (s *RosterService) Enroll(ctx context.Context, classroomID uuid.UUID, studentIDs []uuid.UUID) (*EnrollResult, error) {
	if _, err := s.roster.GetClassroom(ctx, classroomID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, newError(ErrNotFound, uuid.Nil, uuid.Nil, fmt.Sprintf("classroom %s", classroomID))
		}
		return nil, err
	}
	ids := uniqueSorted(studentIDs)
	if len(ids) == 0 {
		return nil, validationError(uuid.Nil, "no students given")
	}

	users, err := s.roster.FindUsers(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load students: %w", err)
	}
	found := make(map[uuid.UUID]models.User, len(users))
	for _, u := range users {
		found[u.ID] = u
	}
	for _, id := range ids {
		u, ok := found[id]
		if !ok {
			return nil, newError(ErrNotFound, uuid.Nil, uuid.Nil, fmt.Sprintf("student %s", id))
		}
		if u.Role != models.RoleStudent {
			return nil, validationError(uuid.Nil, "user %s is not a student", id)
		}
	}

	enrolled, err := s.roster.Enroll(ctx, classroomID, ids)
	if err != nil {
		return nil, fmt.Errorf("enroll students: %w", err)
	}
	return &EnrollResult{ClassroomID: classroomID, Requested: len(ids), Enrolled: enrolled}, nil
}

func (s *RosterService) ListUsers(ctx context.Context, q UserQuery) (PageResult[models.User], error) {
	if err := checkQuery(uuid.Nil, q); err != nil {
		return PageResult[models.User]{}, err
	}
	page, size := pageDefaults(q.Page, q.Size)
	users, total, err := s.roster.ListUsers(ctx, q.Search, q.Role, store.Page{Page: page, Size: size})
	if err != nil {
		return PageResult[models.User]{}, fmt.Errorf("list users: %w", err)
	}
	return newPage(users, page, size, total), nil
}

func (s *RosterService) SetUserActive(ctx context.Context, userID uuid.UUID, active bool) error {
	err := s.roster.SetUserActive(ctx, userID, active)
	if errors.Is(err, store.ErrNotFound) {
		return newError(ErrNotFound, uuid.Nil, uuid.Nil, fmt.Sprintf("user %s", userID))
	}
	return err
}
