package results

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type countingSink struct {
	mu      sync.Mutex
	records []Outcome
	err     error
}

func (s *countingSink) Record(_ context.Context, o Outcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.records = append(s.records, o)
	return nil
}

func (s *countingSink) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

func TestDispatcherRecordsAndDrains(t *testing.T) {
	sink := &countingSink{}
	d := NewDispatcher(sink, DispatcherOptions{QueueSize: 8, Workers: 2})

	for i := 0; i < 5; i++ {
		d.Dispatch(Outcome{UserID: int64(i), Role: "Лікар", Correct: 5})
	}
	d.Close()

	if sink.len() != 5 {
		t.Fatalf("recorded = %d, want 5", sink.len())
	}
	if d.RecordedCount() != 5 || d.ErrorCount() != 0 {
		t.Fatalf("counters = %d/%d, want 5/0", d.RecordedCount(), d.ErrorCount())
	}
}

func TestDispatcherSwallowsSinkFailures(t *testing.T) {
	sink := &countingSink{err: errors.New("sheets down")}
	d := NewDispatcher(sink, DispatcherOptions{QueueSize: 4, Workers: 1})

	// Dispatch never returns an error and never blocks the caller.
	d.Dispatch(Outcome{UserID: 1})
	d.Dispatch(Outcome{UserID: 2})
	d.Close()

	if d.RecordedCount() != 0 {
		t.Fatalf("recorded = %d, want 0", d.RecordedCount())
	}
	if d.ErrorCount() != 2 {
		t.Fatalf("errors = %d, want 2", d.ErrorCount())
	}
}

func TestDispatcherDropsWhenClosed(t *testing.T) {
	d := NewDispatcher(&countingSink{}, DispatcherOptions{QueueSize: 1, Workers: 1})
	d.Close()

	d.Dispatch(Outcome{UserID: 1})
	if d.ErrorCount() != 1 {
		t.Fatalf("errors = %d, want a counted drop", d.ErrorCount())
	}
}

func TestDispatcherConcurrentCloseDoesNotPanic(t *testing.T) {
	sink := &countingSink{}
	d := NewDispatcher(sink, DispatcherOptions{QueueSize: 4, Workers: 2})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				d.Dispatch(Outcome{UserID: id})
			}
		}(int64(i))
	}
	d.Close()
	wg.Wait()

	// Every outcome is either recorded or counted as dropped.
	if got := d.RecordedCount() + d.ErrorCount(); got != 800 {
		t.Fatalf("accounted outcomes = %d, want 800", got)
	}
}

func TestDispatcherNilSinkDefaultsToNop(t *testing.T) {
	d := NewDispatcher(nil, DispatcherOptions{})
	d.Dispatch(Outcome{UserID: 1, CompletedAt: time.Now()})
	d.Close()

	if d.RecordedCount() != 1 {
		t.Fatalf("recorded = %d, want 1", d.RecordedCount())
	}
}
