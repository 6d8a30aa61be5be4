package config

import (
	"testing"
	"time"
)

func TestTypedAccessors(t *testing.T) {
	t.Setenv("LA_INT", "42")
	t.Setenv("LA_BAD_INT", "forty")
	t.Setenv("LA_FLOAT", "4.5")
	t.Setenv("LA_DUR", "90s")
	t.Setenv("LA_STR", "  value ")

	if got := ConfigInt("LA_INT", 1); got != 42 {
		t.Fatalf("ConfigInt = %d, want 42", got)
	}
	if got := ConfigInt("LA_BAD_INT", 7); got != 7 {
		t.Fatalf("ConfigInt on garbage = %d, want default 7", got)
	}
	if got := ConfigInt("LA_MISSING", 3); got != 3 {
		t.Fatalf("ConfigInt on missing = %d, want 3", got)
	}
	if got := ConfigFloat("LA_FLOAT", 0); got != 4.5 {
		t.Fatalf("ConfigFloat = %v, want 4.5", got)
	}
	if got := ConfigDuration("LA_DUR", time.Second); got != 90*time.Second {
		t.Fatalf("ConfigDuration = %s, want 90s", got)
	}
	if got := ConfigOr("LA_STR", "def"); got != "value" {
		t.Fatalf("ConfigOr = %q, want trimmed value", got)
	}
	if got := ConfigOr("LA_MISSING", "def"); got != "def" {
		t.Fatalf("ConfigOr on missing = %q, want def", got)
	}
}
