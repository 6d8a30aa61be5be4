package cache

import (
	"context"
	"errors"
	"testing"
	"time"
)

type overview struct {
	Passed int `json:"passed"`
	Failed int `json:"failed"`
}

func TestGetOrLoadCachesUntilDeleted(t *testing.T) {
	ctx := context.Background()
	c := NewMemory()
	calls := 0
	load := func() (overview, error) {
		calls++
		return overview{Passed: calls, Failed: 1}, nil
	}

	first, err := GetOrLoad(ctx, c, "test:1", time.Minute, load)
	if err != nil {
		t.Fatalf("first load: %v", err)
	}
	second, err := GetOrLoad(ctx, c, "test:1", time.Minute, load)
	if err != nil {
		t.Fatalf("second load: %v", err)
	}
	if calls != 1 || first != second {
		t.Fatalf("expected one load and equal values, got calls=%d %+v %+v", calls, first, second)
	}

	if err := c.Delete(ctx, "test:1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	third, _ := GetOrLoad(ctx, c, "test:1", time.Minute, load)
	if calls != 2 || third.Passed != 2 {
		t.Fatalf("expected reload after delete, got calls=%d %+v", calls, third)
	}
}

func TestMemoryExpires(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	c := NewMemory()
	c.now = func() time.Time { return now }

	if err := c.Set(ctx, "k", overview{Passed: 3}, time.Second); err != nil {
		t.Fatalf("set: %v", err)
	}
	var got overview
	if err := c.Get(ctx, "k", &got); err != nil || got.Passed != 3 {
		t.Fatalf("get before expiry: %v %+v", err, got)
	}
	now = now.Add(2 * time.Second)
	if err := c.Get(ctx, "k", &got); !errors.Is(err, ErrMiss) {
		t.Fatalf("expected miss after expiry, got %v", err)
	}
}

func TestGetOrLoadPropagatesLoadError(t *testing.T) {
	boom := errors.New("boom")
	_, err := GetOrLoad(context.Background(), NewMemory(), "k", 0, func() (int, error) { return 0, boom })
	if !errors.Is(err, boom) {
		t.Fatalf("expected load error, got %v", err)
	}
}
