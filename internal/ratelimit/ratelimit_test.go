package ratelimit

import (
	"testing"
	"time"
)

func TestAllowConsumesCapacity(t *testing.T) {
	l := New(&Config{Capacity: 3, PerSecond: 0})
	for i := 0; i < 3; i++ {
		if !l.Allow("+alice") {
			t.Fatalf("call %d: expected allow within capacity", i)
		}
	}
	if l.Allow("+alice") {
		t.Fatal("expected reject once bucket is drained")
	}
}

func TestZeroRateNeverRefills(t *testing.T) {
	l := New(&Config{Capacity: 1, PerSecond: 0})
	if !l.Allow("+alice") {
		t.Fatal("first call should be allowed")
	}
	for i := 0; i < 3; i++ {
		if l.Allow("+alice") {
			t.Fatal("bucket with zero rate must stay empty")
		}
	}
}

func TestRefillFromElapsedTime(t *testing.T) {
	l := New(&Config{Capacity: 2, PerSecond: 1000})
	if !l.Allow("+alice") || !l.Allow("+alice") {
		t.Fatal("expected two allows from a full bucket")
	}
	if l.Allow("+alice") {
		t.Fatal("expected reject from a drained bucket")
	}
	time.Sleep(10 * time.Millisecond)
	if !l.Allow("+alice") {
		t.Fatal("expected allow after refill interval")
	}
}

func TestSendersAreIndependent(t *testing.T) {
	l := New(&Config{Capacity: 1, PerSecond: 0})
	if !l.Allow("+alice") {
		t.Fatal("alice's first call should be allowed")
	}
	if l.Allow("+alice") {
		t.Fatal("alice's bucket should be drained")
	}
	if !l.Allow("+bob") {
		t.Fatal("bob's bucket must be unaffected by alice")
	}
}

func TestGlobalBucketShared(t *testing.T) {
	l := New(&Config{Capacity: 1, PerSecond: 0, Global: true})
	if !l.Allow("+alice") {
		t.Fatal("first call should be allowed")
	}
	if l.Allow("+bob") {
		t.Fatal("global bucket should be drained for everyone")
	}
}

func TestNilLimiterAllowsEverything(t *testing.T) {
	var l *Limiter
	for i := 0; i < 100; i++ {
		if !l.Allow("+anyone") {
			t.Fatal("nil limiter must never reject")
		}
	}
}
