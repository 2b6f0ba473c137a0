package envutil

import (
	"testing"
	"time"
)

func TestFloatClampsToBounds(t *testing.T) {
	t.Setenv("MT_TEST_FLOAT", "3.5")
	if got := Float("MT_TEST_FLOAT", 0.3, 0, 1); got != 1 {
		t.Fatalf("expected clamp to 1, got %v", got)
	}
	t.Setenv("MT_TEST_FLOAT", "nope")
	if got := Float("MT_TEST_FLOAT", 0.3, 0, 1); got != 0.3 {
		t.Fatalf("expected default, got %v", got)
	}
}

func TestPositiveIntRejectsZero(t *testing.T) {
	t.Setenv("MT_TEST_INT", "0")
	if got := PositiveInt("MT_TEST_INT", 28); got != 28 {
		t.Fatalf("expected default 28, got %d", got)
	}
	t.Setenv("MT_TEST_INT", "12")
	if got := PositiveInt("MT_TEST_INT", 28); got != 12 {
		t.Fatalf("expected 12, got %d", got)
	}
}

func TestDurationAndList(t *testing.T) {
	t.Setenv("MT_TEST_DUR", "1500ms")
	if got := Duration("MT_TEST_DUR", time.Second); got != 1500*time.Millisecond {
		t.Fatalf("duration=%v", got)
	}
	t.Setenv("MT_TEST_LIST", " a, ,b ")
	got := List("MT_TEST_LIST", nil)
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("list=%v", got)
	}
}
