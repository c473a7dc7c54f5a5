package config

import (
	"testing"
	"time"
)

func TestDurationAcceptsSecondsAndGoSyntax(t *testing.T) {
	t.Setenv("TEST_TIMEOUT", "7")
	d, err := Duration("TEST_TIMEOUT", time.Second)
	if err != nil || d != 7*time.Second {
		t.Fatalf("expected 7s, got %v (%v)", d, err)
	}

	t.Setenv("TEST_TIMEOUT", "1500ms")
	d, err = Duration("TEST_TIMEOUT", time.Second)
	if err != nil || d != 1500*time.Millisecond {
		t.Fatalf("expected 1.5s, got %v (%v)", d, err)
	}

	t.Setenv("TEST_TIMEOUT", "soon")
	if _, err := Duration("TEST_TIMEOUT", time.Second); err == nil {
		t.Fatal("expected error for malformed duration")
	}
}

func TestIntFallbackAndError(t *testing.T) {
	t.Setenv("TEST_INT", "")
	n, err := Int("TEST_INT", 42)
	if err != nil || n != 42 {
		t.Fatalf("expected fallback 42, got %d (%v)", n, err)
	}
	t.Setenv("TEST_INT", "abc")
	if _, err := Int("TEST_INT", 42); err == nil {
		t.Fatal("expected error for malformed int")
	}
}

func TestBoolAndList(t *testing.T) {
	t.Setenv("TEST_BOOL", "Yes")
	if !Bool("TEST_BOOL", false) {
		t.Fatal("expected true")
	}
	t.Setenv("TEST_BOOL", "maybe")
	if Bool("TEST_BOOL", false) {
		t.Fatal("expected fallback false")
	}

	t.Setenv("TEST_LIST", " a, ,b ,c")
	got := List("TEST_LIST", "")
	if len(got) != 3 || got[0] != "a" || got[1] != "b" || got[2] != "c" {
		t.Fatalf("unexpected list %v", got)
	}
}

func TestPortValidation(t *testing.T) {
	t.Setenv("TEST_PORT", "70000")
	if _, err := Port("TEST_PORT", "8080"); err == nil {
		t.Fatal("expected invalid port error")
	}
}
