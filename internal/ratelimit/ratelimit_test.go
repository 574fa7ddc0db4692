package ratelimit

import "testing"

func TestAllowBurstThenBlocks(t *testing.T) {
	l := New(Config{Rate: 10, Burst: 3}, nil)
	for i := 0; i < 3; i++ {
		if !l.Allow("p1") {
			t.Fatalf("expected burst token %d to be allowed", i)
		}
	}
	if l.Allow("p1") {
		t.Fatal("expected 4th request within the same instant to be blocked")
	}
}

func TestAllowPerKeyIndependence(t *testing.T) {
	l := New(Config{Rate: 10, Burst: 1}, nil)
	if !l.Allow("a") {
		t.Fatal("expected first request for key a to be allowed")
	}
	if !l.Allow("b") {
		t.Fatal("expected first request for key b to be allowed independently of a")
	}
}
