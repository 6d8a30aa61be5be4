package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/anjiri1684/learning_assessment/cache"
	"github.com/anjiri1684/learning_assessment/models"
	"github.com/anjiri1684/learning_assessment/store"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultPageSize     = 10
	DefaultHardestCount = 5
	DefaultOverviewTTL  = 5 * time.Minute
)

const (
	sortDesc              = "desc"
	overviewCachePrefix   = "overview:"
	questionSortCorrect   = "total_correct"
	questionSortIncorrect = "total_incorrect"
)

var validate = validator.New()

// ScoreQuery filters and pages ScoreDistribution. Zero values pick the defaults.
type ScoreQuery struct {
	StudentName string   `validate:"max=255"`
	MinGrade    *float64 `validate:"omitempty,gte=0,lte=10"`
	MaxGrade    *float64 `validate:"omitempty,gte=0,lte=10"`
	Passed      *bool
	Page        int    `validate:"gte=1"`
	Size        int    `validate:"gte=1,lte=100"`
	SortBy      string `validate:"oneof=grade finished_at started_at attempt_no student_name"`
	SortOrder   string `validate:"oneof=asc desc"`
}

type QuestionQuery struct {
	Content    string `validate:"max=255"`
	MinCorrect *int   `validate:"omitempty,gte=0"`
	MaxCorrect *int   `validate:"omitempty,gte=0"`
	Page       int    `validate:"gte=1"`
	Size       int    `validate:"gte=1,lte=100"`
	SortBy     string `validate:"oneof=total_correct total_incorrect position content"`
	SortOrder  string `validate:"oneof=asc desc"`
}

type PageResult[T any] struct {
	Items      []T   `json:"items"`
	Page       int   `json:"page"`
	Size       int   `json:"size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
}

func newPage[T any](items []T, page, size int, total int64) PageResult[T] {
	if items == nil {
		items = []T{}
	}
	return PageResult[T]{
		Items:      items,
		Page:       page,
		Size:       size,
		Total:      total,
		TotalPages: int((total + int64(size) - 1) / int64(size)),
	}
}

type ScoreRow struct {
	AttemptID      uuid.UUID            `json:"attempt_id"`
	StudentID      uuid.UUID            `json:"student_id"`
	StudentName    string               `json:"student_name"`
	AttemptNo      int                  `json:"attempt_no"`
	Grade          float64              `json:"grade"`
	CorrectCount   int                  `json:"correct_count"`
	TotalQuestions int                  `json:"total_questions"`
	Passed         bool                 `json:"passed"`
	StartedAt      time.Time            `json:"started_at"`
	FinishedAt     *time.Time           `json:"finished_at"`
	FinishReason   *models.FinishReason `json:"finish_reason,omitempty"`
}

type AnswerStat struct {
	AnswerID      uuid.UUID `json:"answer_id"`
	Position      int       `json:"position"`
	Content       string    `json:"content"`
	IsCorrect     bool      `json:"is_correct"`
	TotalSelected int       `json:"total_selected"`
	ChoiceRate    float64   `json:"choice_rate"`
}

type QuestionStat struct {
	QuestionID     uuid.UUID           `json:"question_id"`
	Position       int                 `json:"position"`
	Content        string              `json:"content"`
	Type           models.QuestionType `json:"type"`
	TotalAttempts  int                 `json:"total_attempts"`
	TotalCorrect   int                 `json:"total_correct"`
	TotalIncorrect int                 `json:"total_incorrect"`
	IncorrectRate  float64             `json:"incorrect_rate"`
	Answers        []AnswerStat        `json:"answers"`
}

type Overview struct {
	TestID            uuid.UUID      `json:"test_id"`
	Title             string         `json:"title"`
	PassThreshold     float64        `json:"pass_threshold"`
	TotalEnrolled     int            `json:"total_enrolled"`
	TotalAttempted    int            `json:"total_attempted"`
	TotalNotAttempted int            `json:"total_not_attempted"`
	TotalPassed       int            `json:"total_passed"`
	TotalFailed       int            `json:"total_failed"`
	AverageGrade      float64        `json:"average_grade"`
	HardestQuestions  []QuestionStat `json:"hardest_questions"`
	GeneratedAt       time.Time      `json:"generated_at"`
}

type ResultOption func(*ResultService)

// WithCache stores overviews in c for ttl. Finished attempts evict their test's entry.
func WithCache(c cache.Cache, ttl time.Duration) ResultOption {
	return func(s *ResultService) {
		s.cache = c
		s.ttl = ttl
	}
}

func WithHardestCount(n int) ResultOption {
	return func(s *ResultService) { s.hardest = n }
}

// ResultService answers teacher statistics over finished attempts. It only reads.
type ResultService struct {
	attempts store.AttemptStore
	catalog  store.Catalog
	grader   *GradingEngine
	cache    cache.Cache
	ttl      time.Duration
	hardest  int
	group    singleflight.Group
}

func NewResultService(attempts store.AttemptStore, catalog store.Catalog, grader *GradingEngine, opts ...ResultOption) *ResultService {
	s := &ResultService{
		attempts: attempts,
		catalog:  catalog,
		grader:   grader,
		ttl:      DefaultOverviewTTL,
		hardest:  DefaultHardestCount,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *ResultService) ScoreDistribution(ctx context.Context, testID uuid.UUID, q ScoreQuery) (PageResult[ScoreRow], error) {
	q.Page, q.Size = pageDefaults(q.Page, q.Size)
	if q.SortBy == "" {
		q.SortBy = "grade"
	}
	if q.SortOrder == "" {
		q.SortOrder = sortDesc
	}
	if err := checkQuery(testID, q); err != nil {
		return PageResult[ScoreRow]{}, err
	}
	if q.MinGrade != nil && q.MaxGrade != nil && *q.MinGrade > *q.MaxGrade {
		return PageResult[ScoreRow]{}, validationError(testID, "min grade %.2f is above max grade %.2f", *q.MinGrade, *q.MaxGrade)
	}
	if _, err := s.loadTest(ctx, testID); err != nil {
		return PageResult[ScoreRow]{}, err
	}

	rows, total, err := s.attempts.ListFinished(ctx, testID, store.AttemptFilter{
		StudentName:   q.StudentName,
		MinGrade:      q.MinGrade,
		MaxGrade:      q.MaxGrade,
		Passed:        q.Passed,
		PassThreshold: s.grader.PassThreshold(),
		SortBy:        q.SortBy,
		SortDesc:      q.SortOrder == sortDesc,
	}, store.Page{Page: q.Page, Size: q.Size})
	if err != nil {
		return PageResult[ScoreRow]{}, fmt.Errorf("list finished attempts: %w", err)
	}

	items := make([]ScoreRow, 0, len(rows))
	for _, r := range rows {
		var grade float64
		if r.Grade != nil {
			grade = *r.Grade
		}
		items = append(items, ScoreRow{
			AttemptID:      r.ID,
			StudentID:      r.StudentID,
			StudentName:    r.StudentName,
			AttemptNo:      r.AttemptNo,
			Grade:          grade,
			CorrectCount:   r.CorrectCount,
			TotalQuestions: r.TotalQuestions,
			Passed:         s.grader.Passed(grade),
			StartedAt:      r.StartedAt,
			FinishedAt:     r.FinishedAt,
			FinishReason:   r.FinishReason,
		})
	}
	return newPage(items, q.Page, q.Size, total), nil
}

func (s *ResultService) QuestionChoiceRate(ctx context.Context, testID uuid.UUID, q QuestionQuery) (PageResult[QuestionStat], error) {
	q.Page, q.Size = pageDefaults(q.Page, q.Size)
	if q.SortBy == "" {
		q.SortBy = questionSortCorrect
	}
	if q.SortOrder == "" {
		q.SortOrder = sortDesc
	}
	if err := checkQuery(testID, q); err != nil {
		return PageResult[QuestionStat]{}, err
	}
	if q.MinCorrect != nil && q.MaxCorrect != nil && *q.MinCorrect > *q.MaxCorrect {
		return PageResult[QuestionStat]{}, validationError(testID, "min correct %d is above max correct %d", *q.MinCorrect, *q.MaxCorrect)
	}

	stats, err := s.questionStats(ctx, testID)
	if err != nil {
		return PageResult[QuestionStat]{}, err
	}

	needle := strings.ToLower(strings.TrimSpace(q.Content))
	filtered := stats[:0]
	for _, st := range stats {
		if needle != "" && !strings.Contains(strings.ToLower(st.Content), needle) {
			continue
		}
		if q.MinCorrect != nil && st.TotalCorrect < *q.MinCorrect {
			continue
		}
		if q.MaxCorrect != nil && st.TotalCorrect > *q.MaxCorrect {
			continue
		}
		filtered = append(filtered, st)
	}
	sortQuestionStats(filtered, q.SortBy, q.SortOrder == sortDesc)

	total := int64(len(filtered))
	from := min((q.Page-1)*q.Size, len(filtered))
	to := min(from+q.Size, len(filtered))
	return newPage(filtered[from:to], q.Page, q.Size, total), nil
}

// StudentsNotAttempted lists enrolled students with no attempt in any state, by name.
func (s *ResultService) StudentsNotAttempted(ctx context.Context, testID uuid.UUID) ([]models.User, error) {
	test, err := s.loadTest(ctx, testID)
	if err != nil {
		return nil, err
	}
	var (
		enrolled  []models.User
		attempted []uuid.UUID
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		enrolled, err = s.catalog.EnrolledStudents(gctx, test.ClassroomID)
		return err
	})
	g.Go(func() error {
		var err error
		attempted, err = s.attempts.AttemptedStudentIDs(gctx, testID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("load students for test %s: %w", testID, err)
	}
	return notAttempted(enrolled, attempted), nil
}

// OverviewOfResults summarises a test per student, judging each by their best finished attempt.
// Concurrent callers share one build, which outlives any single caller's cancellation.
func (s *ResultService) OverviewOfResults(ctx context.Context, testID uuid.UUID) (*Overview, error) {
	key := overviewCachePrefix + testID.String()
	flight := s.group.DoChan(key, func() (any, error) {
		fctx := context.WithoutCancel(ctx)
		if s.cache == nil {
			return s.buildOverview(fctx, testID)
		}
		return cache.GetOrLoad(fctx, s.cache, key, s.ttl, func() (*Overview, error) {
			return s.buildOverview(fctx, testID)
		})
	})
	select {
	case res := <-flight:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Overview), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// AttemptFinished evicts the cached overview of the attempt's test.
func (s *ResultService) AttemptFinished(ctx context.Context, attempt models.TestAttempt) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, overviewCachePrefix+attempt.TestID.String()); err != nil {
		log.Printf("⚠️ Could not evict overview for test %s: %v", attempt.TestID, err)
	}
}

func (s *ResultService) buildOverview(ctx context.Context, testID uuid.UUID) (*Overview, error) {
	test, err := s.loadTest(ctx, testID)
	if err != nil {
		return nil, err
	}
	var (
		enrolled  []models.User
		attempted []uuid.UUID
		finished  []models.TestAttempt
		responses []models.StudentResponse
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		enrolled, err = s.catalog.EnrolledStudents(gctx, test.ClassroomID)
		return err
	})
	g.Go(func() error {
		var err error
		attempted, err = s.attempts.AttemptedStudentIDs(gctx, testID)
		return err
	})
	g.Go(func() error {
		var err error
		finished, err = s.attempts.ListFinishedAttempts(gctx, testID)
		return err
	})
	g.Go(func() error {
		var err error
		responses, err = s.attempts.ListFinishedResponses(gctx, testID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("build overview for test %s: %w", testID, err)
	}

	best := map[uuid.UUID]float64{}
	for _, a := range finished {
		if a.Grade == nil {
			continue
		}
		if prev, ok := best[a.StudentID]; !ok || *a.Grade > prev {
			best[a.StudentID] = *a.Grade
		}
	}

	ov := &Overview{
		TestID:            test.ID,
		Title:             test.Title,
		PassThreshold:     s.grader.PassThreshold(),
		TotalEnrolled:     len(enrolled),
		TotalAttempted:    len(attempted),
		TotalNotAttempted: len(notAttempted(enrolled, attempted)),
		GeneratedAt:       time.Now().UTC(),
	}
	var sum float64
	for _, grade := range best {
		sum += grade
		if s.grader.Passed(grade) {
			ov.TotalPassed++
		} else {
			ov.TotalFailed++
		}
	}
	if len(best) > 0 {
		ov.AverageGrade = RoundGrade(sum / float64(len(best)))
	}

	stats := questionStats(test, finished, responses)
	hardest := make([]QuestionStat, 0, len(stats))
	for _, st := range stats {
		if st.TotalAttempts > 0 {
			hardest = append(hardest, st)
		}
	}
	sort.SliceStable(hardest, func(i, j int) bool {
		if hardest[i].IncorrectRate != hardest[j].IncorrectRate {
			return hardest[i].IncorrectRate > hardest[j].IncorrectRate
		}
		return lessByPosition(hardest[i], hardest[j])
	})
	if len(hardest) > s.hardest {
		hardest = hardest[:s.hardest]
	}
	ov.HardestQuestions = hardest
	return ov, nil
}

func (s *ResultService) questionStats(ctx context.Context, testID uuid.UUID) ([]QuestionStat, error) {
	test, err := s.loadTest(ctx, testID)
	if err != nil {
		return nil, err
	}
	var (
		finished  []models.TestAttempt
		responses []models.StudentResponse
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		finished, err = s.attempts.ListFinishedAttempts(gctx, testID)
		return err
	})
	g.Go(func() error {
		var err error
		responses, err = s.attempts.ListFinishedResponses(gctx, testID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("question stats for test %s: %w", testID, err)
	}
	return questionStats(test, finished, responses), nil
}

// questionStats counts correctness from the breakdown frozen on each attempt and selections
// from the response rows, so later catalog edits do not rewrite history.
func questionStats(test *models.TestDefinition, finished []models.TestAttempt, responses []models.StudentResponse) []QuestionStat {
	answered := map[uuid.UUID]int{}
	correct := map[uuid.UUID]int{}
	for _, a := range finished {
		for _, o := range a.Breakdown {
			answered[o.QuestionID]++
			if o.Correct {
				correct[o.QuestionID]++
			}
		}
	}
	selected := map[uuid.UUID]int{}
	for _, r := range responses {
		selected[r.AnswerID]++
	}

	stats := make([]QuestionStat, 0, len(test.Questions))
	for _, q := range test.Questions {
		st := QuestionStat{
			QuestionID:    q.ID,
			Position:      q.Position,
			Content:       q.Content,
			Type:          q.Type,
			TotalAttempts: answered[q.ID],
			TotalCorrect:  correct[q.ID],
			Answers:       make([]AnswerStat, 0, len(q.Answers)),
		}
		st.TotalIncorrect = st.TotalAttempts - st.TotalCorrect
		st.IncorrectRate = ratio(st.TotalIncorrect, st.TotalAttempts)
		for _, a := range q.Answers {
			st.Answers = append(st.Answers, AnswerStat{
				AnswerID:      a.ID,
				Position:      a.Position,
				Content:       a.Content,
				IsCorrect:     a.IsCorrect,
				TotalSelected: selected[a.ID],
				ChoiceRate:    ratio(selected[a.ID], st.TotalAttempts),
			})
		}
		stats = append(stats, st)
	}
	return stats
}

func (s *ResultService) loadTest(ctx context.Context, testID uuid.UUID) (*models.TestDefinition, error) {
	test, err := s.catalog.GetTestDefinition(ctx, testID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, newError(ErrNotFound, testID, uuid.Nil, "test not found")
	}
	if err != nil {
		return nil, fmt.Errorf("load test %s: %w", testID, err)
	}
	return test, nil
}

func sortQuestionStats(stats []QuestionStat, by string, desc bool) {
	sort.SliceStable(stats, func(i, j int) bool {
		a, b := stats[i], stats[j]
		var cmp int
		switch by {
		case questionSortCorrect:
			cmp = a.TotalCorrect - b.TotalCorrect
		case questionSortIncorrect:
			cmp = a.TotalIncorrect - b.TotalIncorrect
		case "content":
			cmp = strings.Compare(strings.ToLower(a.Content), strings.ToLower(b.Content))
		}
		if cmp != 0 {
			if desc {
				return cmp > 0
			}
			return cmp < 0
		}
		return lessByPosition(a, b)
	})
}

func lessByPosition(a, b QuestionStat) bool {
	if a.Position != b.Position {
		return a.Position < b.Position
	}
	return a.QuestionID.String() < b.QuestionID.String()
}

func notAttempted(enrolled []models.User, attempted []uuid.UUID) []models.User {
	seen := make(map[uuid.UUID]struct{}, len(attempted))
	for _, id := range attempted {
		seen[id] = struct{}{}
	}
	out := make([]models.User, 0, len(enrolled))
	for _, u := range enrolled {
		if _, ok := seen[u.ID]; !ok {
			out = append(out, u)
		}
	}
	return out
}

func pageDefaults(page, size int) (int, int) {
	if page == 0 {
		page = 1
	}
	if size == 0 {
		size = DefaultPageSize
	}
	return page, size
}

func checkQuery(testID uuid.UUID, q any) error {
	err := validate.Struct(q)
	if err == nil {
		return nil
	}
	var fields validator.ValidationErrors
	if errors.As(err, &fields) {
		msgs := make([]string, 0, len(fields))
		for _, f := range fields {
			msgs = append(msgs, fmt.Sprintf("%s failed %s", f.Field(), f.Tag()))
		}
		return validationError(testID, "%s", strings.Join(msgs, ", "))
	}
	return validationError(testID, "%v", err)
}

func ratio(n, d int) float64 {
	if d == 0 {
		return 0
	}
	return RoundGrade(float64(n) / float64(d))
}
