package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/anjiri1684/learning_assessment/services"
	"github.com/anjiri1684/learning_assessment/store"
	"github.com/anjiri1684/learning_assessment/testutil"
)

type sentMail struct{ name, email, subject string }

type fakeMailer struct {
	sent []sentMail
	fail map[string]bool
}

func (f *fakeMailer) SendEmail(_ context.Context, toName, toEmail, subject, _ string) error {
	if f.fail[toEmail] {
		return errors.New("mailbox unavailable")
	}
	f.sent = append(f.sent, sentMail{toName, toEmail, subject})
	return nil
}

func TestSendTestReminders(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	closing := now.Add(58 * time.Minute)
	later := now.Add(3 * time.Hour)

	db := testutil.NewDB(t)
	fx := testutil.Seed(t, db, testutil.Blueprint{DurationSeconds: 600, EndAt: &closing, Questions: [][]bool{{true, false}}, Students: []string{"Amina", "Brian"}})
	testutil.Seed(t, db, testutil.Blueprint{DurationSeconds: 600, EndAt: &later, Questions: [][]bool{{true}}, Students: []string{"Chloe"}})

	catalog := store.NewCatalog(db)
	attempts := store.NewAttemptStore(db)
	grader := services.NewGradingEngine(services.DefaultPassThreshold)
	lifecycle := services.NewAttemptService(attempts, catalog, grader, services.WithClock(func() time.Time { return now }))
	if _, err := lifecycle.Start(ctx, fx.Students[0].ID, fx.Test.ID); err != nil {
		t.Fatalf("start: %v", err)
	}

	mailer := &fakeMailer{}
	reminder := &TestReminder{
		Tests:   catalog,
		Results: services.NewResultService(attempts, catalog, grader),
		Mailer:  mailer,
		Lead:    time.Hour,
		Span:    5 * time.Minute,
		Now:     func() time.Time { return now },
	}
	sent, err := reminder.SendTestReminders(ctx)
	if err != nil {
		t.Fatalf("reminders: %v", err)
	}
	if sent != 1 || len(mailer.sent) != 1 || mailer.sent[0].name != "Brian" {
		t.Fatalf("expected one reminder to Brian, got %+v", mailer.sent)
	}

	// the next run covers a later slice and must not repeat
	reminder.Now = func() time.Time { return now.Add(5 * time.Minute) }
	if sent, _ := reminder.SendTestReminders(ctx); sent != 0 {
		t.Fatalf("expected no repeat reminders, got %d", sent)
	}
}

type fakeSweeper struct {
	pending int
	calls   int
}

func (f *fakeSweeper) SweepOverdue(_ context.Context, batch int) (int, error) {
	f.calls++
	n := min(batch, f.pending)
	f.pending -= n
	return n, nil
}

func TestSweepOverdueAttemptsDrainsFullBatches(t *testing.T) {
	sw := &fakeSweeper{pending: 25}
	SweepOverdueAttempts(context.Background(), sw, 10)
	if sw.pending != 0 || sw.calls != 3 {
		t.Fatalf("expected 3 sweeps draining everything, got calls=%d pending=%d", sw.calls, sw.pending)
	}
}
