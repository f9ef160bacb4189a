package queue

import (
	"context"
	"testing"
	"time"
)

func TestPlan(t *testing.T) {
	jobs := Plan(10, 4)
	want := []Job{{0, 0, 4}, {1, 4, 4}, {2, 8, 2}}
	if len(jobs) != len(want) {
		t.Fatalf("expected %d jobs, got %d", len(want), len(jobs))
	}
	for i := range want {
		if jobs[i] != want[i] {
			t.Errorf("job %d: expected %+v, got %+v", i, want[i], jobs[i])
		}
	}

	if got := Plan(0, 4); got != nil {
		t.Errorf("expected no jobs for an empty run, got %v", got)
	}
	if got := Plan(5, 0); len(got) != 1 || got[0].Count != 5 {
		t.Errorf("expected a single batch when batch size is unset, got %v", got)
	}
}

func TestInMemoryQueue_BasicOperations(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	if l := q.Len(ctx); l != 0 {
		t.Errorf("expected length 0, got %d", l)
	}

	if !q.Enqueue(ctx, Job{Index: 0, Count: 10}) {
		t.Error("expected enqueue to succeed")
	}
	if l := q.Len(ctx); l != 1 {
		t.Errorf("expected length 1, got %d", l)
	}

	j := <-q.Dequeue(ctx)
	if j.Count != 10 {
		t.Errorf("expected job with 10 records, got %+v", j)
	}
	if l := q.Len(ctx); l != 0 {
		t.Errorf("expected length 0, got %d", l)
	}
}

func TestInMemoryQueue_Full(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(1))
	ctx := context.Background()

	if !q.Enqueue(ctx, Job{Index: 0}) {
		t.Fatal("expected first enqueue to succeed")
	}
	if q.Enqueue(ctx, Job{Index: 1}) {
		t.Error("expected enqueue on a full queue to fail")
	}
}

func TestInMemoryQueue_CloseDrains(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(3))
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		q.Enqueue(ctx, Job{Index: i})
	}
	if err := q.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if l := q.Len(ctx); l != 3 {
		t.Errorf("expected closed queue to keep 3 jobs, got %d", l)
	}
	if q.Enqueue(ctx, Job{Index: 9}) {
		t.Error("expected enqueue after close to fail")
	}
	if err := q.Close(); err != nil {
		t.Errorf("second close should be a no-op, got %v", err)
	}

	var got []int
	for j := range q.Dequeue(ctx) {
		got = append(got, j.Index)
	}
	if len(got) != 3 || got[0] != 0 || got[2] != 2 {
		t.Errorf("expected queued jobs in order after close, got %v", got)
	}
}

func TestInMemoryQueue_DequeueCancel(t *testing.T) {
	q := NewInMemoryQueue()
	ctx, cancel := context.WithCancel(context.Background())
	ch := q.Dequeue(ctx)
	cancel()

	select {
	case _, ok := <-ch:
		if ok {
			t.Error("expected no job after cancel")
		}
	case <-time.After(time.Second):
		t.Error("dequeue channel not closed after cancel")
	}
}
