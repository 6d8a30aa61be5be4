package jobs

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/anjiri1684/learning_assessment/models"
	"github.com/google/uuid"
)

type Mailer interface {
	SendEmail(ctx context.Context, toName, toEmail, subject, htmlContent string) error
}

type ClosingTests interface {
	TestsEndingBetween(ctx context.Context, from, to time.Time) ([]models.TestDefinition, error)
}

type NotAttemptedLister interface {
	StudentsNotAttempted(ctx context.Context, testID uuid.UUID) ([]models.User, error)
}

// TestReminder emails students who have not attempted a test whose window closes in about an
// hour. Each run covers one Span-wide slice, so a schedule of the same period reminds once.
type TestReminder struct {
	Tests   ClosingTests
	Results NotAttemptedLister
	Mailer  Mailer
	Lead    time.Duration
	Span    time.Duration
	Now     func() time.Time
}

func (r *TestReminder) SendTestReminders(ctx context.Context) (int, error) {
	log.Println("Running job: SendTestReminders...")
	if r.Mailer == nil {
		log.Println("Email client not initialized, skipping test reminders.")
		return 0, nil
	}

	now := r.Now()
	lowerBound := now.Add(r.Lead - r.Span)
	upperBound := now.Add(r.Lead)

	tests, err := r.Tests.TestsEndingBetween(ctx, lowerBound, upperBound)
	if err != nil {
		return 0, fmt.Errorf("find closing tests: %w", err)
	}

	sent := 0
	for _, test := range tests {
		students, err := r.Results.StudentsNotAttempted(ctx, test.ID)
		if err != nil {
			log.Printf("🔥 Could not list students for test %s: %v", test.ID, err)
			continue
		}
		subject := fmt.Sprintf("Reminder: %s closes soon", test.Title)
		body := fmt.Sprintf(
			"<h1>Test Reminder</h1><p>Hi there,</p><p>You have not attempted <b>%s</b> yet. It closes at %s UTC.</p>",
			test.Title,
			test.EndAt.UTC().Format("2006-01-02 15:04"),
		)
		for _, s := range students {
			if err := r.Mailer.SendEmail(ctx, s.FullName, s.Email, subject, body); err != nil {
				log.Printf("🔥 Failed to send reminder to %s: %v", s.Email, err)
				continue
			}
			sent++
		}
	}
	return sent, nil
}
