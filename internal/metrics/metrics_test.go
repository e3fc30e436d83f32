package metrics

import (
	"math"
	"sync"
	"testing"
)

func TestAddCostAccumulates(t *testing.T) {
	m := New()
	if m.TotalCostUSD() != 0 {
		t.Fatalf("fresh metrics cost = %v, want 0", m.TotalCostUSD())
	}
	m.AddCost(0.5)
	m.AddCost(1.25)
	if got := m.TotalCostUSD(); math.Abs(got-1.75) > 0.001 {
		t.Fatalf("total cost = %v, want 1.75", got)
	}
}

func TestAddCostFractionalMicrodollars(t *testing.T) {
	m := New()
	m.AddCost(0.000001)
	if got := m.TotalCostUSD(); got <= 0 || got >= 0.001 {
		t.Fatalf("microdollar cost lost: %v", got)
	}
}

func TestConcurrentCounters(t *testing.T) {
	m := New()
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.Messages.Add(1)
			m.AddCost(0.01)
		}()
	}
	wg.Wait()
	if m.Messages.Load() != 100 {
		t.Fatalf("messages = %d, want 100", m.Messages.Load())
	}
	if got := m.TotalCostUSD(); math.Abs(got-1.0) > 0.001 {
		t.Fatalf("total cost = %v, want 1.0", got)
	}
}
