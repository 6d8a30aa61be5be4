package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/anjiri1684/learning_assessment/models"
	"github.com/anjiri1684/learning_assessment/store"
	"github.com/google/uuid"
)

// FinishListener is told about every attempt that reaches Finished.
type FinishListener interface {
	AttemptFinished(ctx context.Context, attempt models.TestAttempt)
}

type AttemptOption func(*AttemptService)

func WithClock(now func() time.Time) AttemptOption {
	return func(s *AttemptService) { s.now = now }
}

func WithFinishListener(l FinishListener) AttemptOption {
	return func(s *AttemptService) { s.listeners = append(s.listeners, l) }
}

// AttemptService owns the attempt state machine: Ongoing -> Finished, nothing else.
type AttemptService struct {
	attempts  store.AttemptStore
	catalog   store.Catalog
	grader    *GradingEngine
	now       func() time.Time
	listeners []FinishListener
}

func NewAttemptService(attempts store.AttemptStore, catalog store.Catalog, grader *GradingEngine, opts ...AttemptOption) *AttemptService {
	s := &AttemptService{
		attempts: attempts,
		catalog:  catalog,
		grader:   grader,
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *AttemptService) Start(ctx context.Context, studentID, testID uuid.UUID) (*AttemptView, error) {
	test, err := s.loadTest(ctx, testID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if !test.WithinWindow(now) {
		return nil, newError(ErrOutsideWindow, testID, uuid.Nil, "")
	}

	// An overdue attempt is closed first. The limit wins over an open attempt in the last slot.
	ongoing, err := s.attempts.FindOngoing(ctx, studentID, testID)
	switch {
	case err == nil:
		if ongoing.Overdue(now) {
			if err := s.forceFinish(ctx, ongoing, test); err != nil {
				return nil, err
			}
			ongoing = nil
		}
	case errors.Is(err, store.ErrNotFound):
		ongoing = nil
	default:
		return nil, fmt.Errorf("find ongoing attempt: %w", err)
	}

	limit := test.EffectiveAttemptLimit()
	used, err := s.attempts.CountAttempts(ctx, studentID, testID)
	if err != nil {
		return nil, fmt.Errorf("count attempts: %w", err)
	}
	if used >= limit {
		return nil, newError(ErrAttemptLimitExceeded, testID, uuid.Nil, fmt.Sprintf("%d of %d attempts used", used, limit))
	}
	if ongoing != nil {
		return nil, newError(ErrAlreadyInProgress, testID, ongoing.ID, "")
	}

	attempt := &models.TestAttempt{
		TestID:    testID,
		StudentID: studentID,
		State:     models.AttemptOngoing,
		StartedAt: now,
		DueAt:     now.Add(test.Duration()),
	}
	switch err := s.attempts.CreateAttempt(ctx, attempt, limit); {
	case errors.Is(err, store.ErrLimitReached):
		return nil, newError(ErrAttemptLimitExceeded, testID, uuid.Nil, "")
	case errors.Is(err, store.ErrDuplicate):
		return nil, newError(ErrAlreadyInProgress, testID, uuid.Nil, "")
	case err != nil:
		return nil, fmt.Errorf("create attempt: %w", err)
	}

	log.Printf("✅ Student %s started attempt %s (#%d) on test %s", studentID, attempt.ID, attempt.AttemptNo, testID)
	return s.buildView(test, attempt, nil), nil
}

// SaveProgress replaces the selection for one question. A save that arrives after the due
// time closes the attempt instead and is not applied.
func (s *AttemptService) SaveProgress(ctx context.Context, studentID, attemptID, questionID uuid.UUID, answerIDs []uuid.UUID) error {
	attempt, err := s.loadOwnAttempt(ctx, studentID, attemptID)
	if err != nil {
		return err
	}
	if !attempt.IsOngoing() {
		return newError(ErrAttemptClosed, attempt.TestID, attempt.ID, "")
	}
	test, err := s.loadTest(ctx, attempt.TestID)
	if err != nil {
		return err
	}
	if attempt.Overdue(s.now()) {
		if err := s.forceFinish(ctx, attempt, test); err != nil {
			return err
		}
		return newError(ErrAttemptClosed, attempt.TestID, attempt.ID, "time is up")
	}

	selected, err := checkSelection(test, questionID, answerIDs)
	if err != nil {
		return err
	}
	if err := s.attempts.UpsertResponses(ctx, attempt.ID, questionID, selected); err != nil {
		if errors.Is(err, store.ErrNotOngoing) {
			return newError(ErrAttemptClosed, attempt.TestID, attempt.ID, "")
		}
		return fmt.Errorf("save responses: %w", err)
	}
	return nil
}

// Resume returns the attempt with its recorded responses, finishing it first when overdue.
func (s *AttemptService) Resume(ctx context.Context, studentID, attemptID uuid.UUID) (*AttemptView, error) {
	attempt, err := s.loadOwnAttempt(ctx, studentID, attemptID)
	if err != nil {
		return nil, err
	}
	return s.resume(ctx, attempt)
}

// ResumeCurrent resumes the student's ongoing attempt on a test.
func (s *AttemptService) ResumeCurrent(ctx context.Context, studentID, testID uuid.UUID) (*AttemptView, error) {
	attempt, err := s.attempts.FindOngoing(ctx, studentID, testID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, newError(ErrNotFound, testID, uuid.Nil, "no attempt in progress")
	}
	if err != nil {
		return nil, fmt.Errorf("find ongoing attempt: %w", err)
	}
	return s.resume(ctx, attempt)
}

func (s *AttemptService) resume(ctx context.Context, attempt *models.TestAttempt) (*AttemptView, error) {
	test, err := s.loadTest(ctx, attempt.TestID)
	if err != nil {
		return nil, err
	}
	if attempt.IsOngoing() && attempt.Overdue(s.now()) {
		if err := s.forceFinish(ctx, attempt, test); err != nil {
			return nil, err
		}
		if attempt, err = s.reload(ctx, attempt.ID); err != nil {
			return nil, err
		}
	}
	var responses []models.StudentResponse
	if attempt.IsOngoing() {
		if responses, err = s.attempts.ListResponses(ctx, attempt.ID); err != nil {
			return nil, fmt.Errorf("list responses: %w", err)
		}
	}
	return s.buildView(test, attempt, responses), nil
}

// Submit grades the attempt. A nil finalResponses grades what was autosaved; any non-nil
// set, even empty, replaces it. A second submit observes ErrAttemptClosed.
func (s *AttemptService) Submit(ctx context.Context, studentID, attemptID uuid.UUID, finalResponses models.SelectionSet) (*AttemptView, error) {
	attempt, err := s.loadOwnAttempt(ctx, studentID, attemptID)
	if err != nil {
		return nil, err
	}
	if !attempt.IsOngoing() {
		return nil, newError(ErrAttemptClosed, attempt.TestID, attempt.ID, "already submitted")
	}
	test, err := s.loadTest(ctx, attempt.TestID)
	if err != nil {
		return nil, err
	}
	if attempt.Overdue(s.now()) {
		if err := s.forceFinish(ctx, attempt, test); err != nil {
			return nil, err
		}
		return nil, newError(ErrAttemptClosed, attempt.TestID, attempt.ID, "submitted after the due time")
	}

	if finalResponses != nil {
		checked := make(models.SelectionSet, len(finalResponses))
		for questionID, answerIDs := range finalResponses {
			selected, err := checkSelection(test, questionID, answerIDs)
			if err != nil {
				return nil, err
			}
			checked[questionID] = selected
		}
		finalResponses = checked
	}

	warning, err := s.finish(ctx, attempt, test, finalResponses, models.FinishSubmitted)
	if err != nil {
		return nil, err
	}
	finished, err := s.reload(ctx, attempt.ID)
	if err != nil {
		return nil, err
	}
	view := s.buildView(test, finished, nil)
	if warning != nil {
		view.Warnings = append(view.Warnings, warning.Error())
	}
	return view, nil
}

// Result returns a finished attempt with the student's selections. An attempt still running
// has no result yet.
func (s *AttemptService) Result(ctx context.Context, studentID, attemptID uuid.UUID) (*AttemptView, error) {
	attempt, err := s.loadOwnAttempt(ctx, studentID, attemptID)
	if err != nil {
		return nil, err
	}
	view, err := s.resume(ctx, attempt)
	if err != nil {
		return nil, err
	}
	if view.Attempt.IsOngoing() {
		return nil, validationError(attempt.TestID, "attempt %s is still in progress", attempt.ID)
	}
	return view, nil
}

// Results lists the student's finished attempts on a test, oldest first.
func (s *AttemptService) Results(ctx context.Context, studentID, testID uuid.UUID) ([]AttemptView, error) {
	test, err := s.loadTest(ctx, testID)
	if err != nil {
		return nil, err
	}
	if ongoing, err := s.attempts.FindOngoing(ctx, studentID, testID); err == nil && ongoing.Overdue(s.now()) {
		if err := s.forceFinish(ctx, ongoing, test); err != nil {
			return nil, err
		}
	}
	rows, _, err := s.attempts.ListFinished(ctx, testID, store.AttemptFilter{
		StudentID: studentID,
		SortBy:    "attempt_no",
	}, store.Page{Page: 1, Size: test.EffectiveAttemptLimit()})
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	views := make([]AttemptView, 0, len(rows))
	for i := range rows {
		views = append(views, *s.buildView(test, &rows[i].TestAttempt, nil))
	}
	return views, nil
}

// SweepOverdue force-finishes overdue attempts, batch rows at a time, and reports how many it
// closed. Rows that fail are skipped for the rest of the run so they cannot hide the ones
// queued behind them. An attempt whose test is gone is graded against no questions.
func (s *AttemptService) SweepOverdue(ctx context.Context, batch int) (int, error) {
	tests := map[uuid.UUID]*models.TestDefinition{}
	var skipped []uuid.UUID
	closed := 0
	for ctx.Err() == nil {
		overdue, err := s.attempts.ListOverdue(ctx, s.now(), skipped, batch)
		if err != nil {
			return closed, fmt.Errorf("list overdue attempts: %w", err)
		}
		for i := range overdue {
			attempt := &overdue[i]
			test, ok := tests[attempt.TestID]
			if !ok {
				test, err = s.loadTest(ctx, attempt.TestID)
				switch {
				case errors.Is(err, ErrNotFound):
					log.Printf("⚠️ Test %s is gone, closing attempt %s without questions", attempt.TestID, attempt.ID)
					test = &models.TestDefinition{ID: attempt.TestID}
				case err != nil:
					log.Printf("🔥 Sweep could not load test %s for attempt %s: %v", attempt.TestID, attempt.ID, err)
					skipped = append(skipped, attempt.ID)
					continue
				}
				tests[attempt.TestID] = test
			}
			if err := s.forceFinish(ctx, attempt, test); err != nil {
				log.Printf("🔥 Sweep failed to finish attempt %s: %v", attempt.ID, err)
				skipped = append(skipped, attempt.ID)
				continue
			}
			closed++
		}
		if len(overdue) < batch {
			break
		}
	}
	return closed, nil
}

// forceFinish closes an overdue attempt from its autosaved responses. Losing the race to
// another finisher is not an error.
func (s *AttemptService) forceFinish(ctx context.Context, attempt *models.TestAttempt, test *models.TestDefinition) error {
	_, err := s.finish(ctx, attempt, test, nil, models.FinishTimeout)
	if errors.Is(err, ErrAttemptClosed) {
		return nil
	}
	if err == nil {
		log.Printf("⏰ Force-finished overdue attempt %s (due %s)", attempt.ID, attempt.DueAt.Format(time.RFC3339))
	}
	return err
}

var errLostTransition = errors.New("attempt left ongoing state")

// finish flips Ongoing -> Finished and writes the grade in one transaction. The claim at the
// start blocks concurrent saves, so the graded responses are exactly what gets frozen.
func (s *AttemptService) finish(ctx context.Context, attempt *models.TestAttempt, test *models.TestDefinition, final models.SelectionSet, reason models.FinishReason) (warning error, err error) {
	finishedAt := s.now()
	if reason == models.FinishTimeout && attempt.DueAt.Before(finishedAt) {
		finishedAt = attempt.DueAt
	}

	var graded GradeResult
	run := func() error {
		warning = nil
		return s.attempts.InTx(ctx, func(tx store.AttemptStore) error {
			ok, err := tx.Claim(ctx, attempt.ID)
			if err != nil {
				return err
			}
			if !ok {
				return errLostTransition
			}
			if final != nil {
				if err := tx.ReplaceResponses(ctx, attempt.ID, final); err != nil {
					return err
				}
			}
			rows, err := tx.ListResponses(ctx, attempt.ID)
			if err != nil {
				return err
			}
			graded, err = s.grader.Grade(*attempt, models.GroupResponses(rows), test.Questions)
			if err != nil {
				if !errors.Is(err, ErrDataIntegrity) {
					return err
				}
				warning = err
			}
			ok, err = tx.TryTransition(ctx, attempt.ID, models.AttemptOngoing, models.AttemptFinished, store.FinishFields{
				FinishedAt:     finishedAt,
				Grade:          graded.Grade,
				CorrectCount:   graded.CorrectCount,
				TotalQuestions: graded.TotalQuestions,
				Reason:         reason,
				Breakdown:      graded.Outcomes,
			})
			if err != nil {
				return err
			}
			if !ok {
				return errLostTransition
			}
			return nil
		})
	}

	err = run()
	if store.IsConflict(err) {
		log.Printf("⚠️ Write conflict finishing attempt %s, retrying once", attempt.ID)
		err = run()
	}
	switch {
	case err == nil:
	case errors.Is(err, errLostTransition), store.IsConflict(err):
		return nil, newError(ErrAttemptClosed, attempt.TestID, attempt.ID, "")
	default:
		return nil, fmt.Errorf("finish attempt %s: %w", attempt.ID, err)
	}

	if warning != nil {
		log.Printf("⚠️ %v", warning)
	}
	log.Printf("✅ Attempt %s finished (%s) with grade %.2f (%d/%d)", attempt.ID, reason, graded.Grade, graded.CorrectCount, graded.TotalQuestions)

	finished := *attempt
	finished.State = models.AttemptFinished
	finished.FinishedAt = &finishedAt
	finished.Grade = &graded.Grade
	finished.CorrectCount = graded.CorrectCount
	finished.TotalQuestions = graded.TotalQuestions
	finished.FinishReason = &reason
	for _, l := range s.listeners {
		l.AttemptFinished(ctx, finished)
	}
	return warning, nil
}

func (s *AttemptService) loadTest(ctx context.Context, testID uuid.UUID) (*models.TestDefinition, error) {
	test, err := s.catalog.GetTestDefinition(ctx, testID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, newError(ErrNotFound, testID, uuid.Nil, "test not found")
	}
	if err != nil {
		return nil, fmt.Errorf("load test %s: %w", testID, err)
	}
	return test, nil
}

// loadOwnAttempt hides other students' attempts behind ErrNotFound.
func (s *AttemptService) loadOwnAttempt(ctx context.Context, studentID, attemptID uuid.UUID) (*models.TestAttempt, error) {
	attempt, err := s.reload(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	if attempt.StudentID != studentID {
		return nil, newError(ErrNotFound, uuid.Nil, attemptID, "attempt not found")
	}
	return attempt, nil
}

func (s *AttemptService) reload(ctx context.Context, attemptID uuid.UUID) (*models.TestAttempt, error) {
	attempt, err := s.attempts.GetAttempt(ctx, attemptID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, newError(ErrNotFound, uuid.Nil, attemptID, "attempt not found")
	}
	if err != nil {
		return nil, fmt.Errorf("load attempt %s: %w", attemptID, err)
	}
	return attempt, nil
}

// checkSelection validates a selection against the catalog and returns it de-duplicated.
func checkSelection(test *models.TestDefinition, questionID uuid.UUID, answerIDs []uuid.UUID) ([]uuid.UUID, error) {
	var question *models.Question
	for i := range test.Questions {
		if test.Questions[i].ID == questionID {
			question = &test.Questions[i]
			break
		}
	}
	if question == nil {
		return nil, newError(ErrNotFound, test.ID, uuid.Nil, fmt.Sprintf("question %s is not part of this test", questionID))
	}
	selected := uniqueSorted(answerIDs)
	for _, id := range selected {
		if !question.HasAnswer(id) {
			return nil, validationError(test.ID, "answer %s does not belong to question %s", id, questionID)
		}
	}
	if question.Type == models.SingleChoice && len(selected) > 1 {
		return nil, validationError(test.ID, "question %s accepts a single answer", questionID)
	}
	return selected, nil
}
