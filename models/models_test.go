package models

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestWithinWindow(t *testing.T) {
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	end := start.Add(2 * time.Hour)

	tests := []struct {
		name       string
		start, end *time.Time
		now        time.Time
		want       bool
	}{
		{"no window", nil, nil, start, true},
		{"before start", &start, &end, start.Add(-time.Second), false},
		{"at start", &start, &end, start, true},
		{"at end", &start, &end, end, true},
		{"after end", &start, &end, end.Add(time.Second), false},
		{"open ended", &start, nil, end.Add(24 * time.Hour), true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			def := TestDefinition{StartAt: tc.start, EndAt: tc.end}
			if got := def.WithinWindow(tc.now); got != tc.want {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

func TestRevealsCorrectness(t *testing.T) {
	end := time.Date(2026, 3, 2, 11, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		policy ShowResultPolicy
		end    *time.Time
		now    time.Time
		want   bool
	}{
		{"immediately", ShowImmediately, &end, end.Add(-time.Hour), true},
		{"unset policy", "", &end, end.Add(-time.Hour), true},
		{"window still open", ShowAfterWindowCloses, &end, end, false},
		{"window closed", ShowAfterWindowCloses, &end, end.Add(time.Second), true},
		{"no end to wait for", ShowAfterWindowCloses, nil, end, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			def := TestDefinition{ShowResultPolicy: tc.policy, EndAt: tc.end}
			if got := def.RevealsCorrectness(tc.now); got != tc.want {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

func TestEffectiveAttemptLimit(t *testing.T) {
	if got := (TestDefinition{}).EffectiveAttemptLimit(); got != DefaultAttemptLimit {
		t.Fatalf("expected default %d, got %d", DefaultAttemptLimit, got)
	}
	if got := (TestDefinition{AttemptLimit: 3}).EffectiveAttemptLimit(); got != 3 {
		t.Fatalf("expected 3, got %d", got)
	}
}

func TestGroupResponses(t *testing.T) {
	q1, q2 := uuid.New(), uuid.New()
	a, b, c := uuid.New(), uuid.New(), uuid.New()

	set := GroupResponses([]StudentResponse{
		{QuestionID: q1, AnswerID: a},
		{QuestionID: q2, AnswerID: b},
		{QuestionID: q2, AnswerID: c},
	})
	if len(set[q1]) != 1 || len(set[q2]) != 2 {
		t.Fatalf("unexpected grouping %v", set)
	}
	if empty := GroupResponses(nil); empty == nil {
		t.Fatal("expected a usable empty set")
	}
}
