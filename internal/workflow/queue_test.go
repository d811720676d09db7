package workflow

import (
	"context"
	"testing"
	"time"

	"github.com/spec-kit/case-workflow-service/internal/domain"
	"github.com/spec-kit/case-workflow-service/internal/repository"
)

func claimAll(ctx context.Context, item WorkItem) (bool, error) {
	return true, nil
}

func TestPopOldestFIFO(t *testing.T) {
	q := NewQueueIndex()
	base := time.Now()

	// insert out of order
	q.Insert(WorkItem{CaseID: "c-2", LineOfBusiness: "retail", Level: domain.LevelNone, PriorityTimestamp: base.Add(2 * time.Second)})
	q.Insert(WorkItem{CaseID: "c-1", LineOfBusiness: "retail", Level: domain.LevelNone, PriorityTimestamp: base.Add(1 * time.Second)})
	q.Insert(WorkItem{CaseID: "c-3", LineOfBusiness: "retail", Level: domain.LevelNone, PriorityTimestamp: base.Add(3 * time.Second)})

	for _, want := range []string{"c-1", "c-2", "c-3"} {
		item, err := q.PopOldest(context.Background(), "retail", domain.LevelNone, claimAll)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if item == nil || item.CaseID != want {
			t.Fatalf("expected %s, got %+v", want, item)
		}
	}

	item, err := q.PopOldest(context.Background(), "retail", domain.LevelNone, claimAll)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if item != nil {
		t.Fatalf("expected empty queue, got %+v", item)
	}
}

func TestPopOldestTieBreakByCaseID(t *testing.T) {
	q := NewQueueIndex()
	ts := time.Now()

	q.Insert(WorkItem{CaseID: "b", LineOfBusiness: "retail", Level: domain.LevelNone, PriorityTimestamp: ts})
	q.Insert(WorkItem{CaseID: "a", LineOfBusiness: "retail", Level: domain.LevelNone, PriorityTimestamp: ts})

	item, _ := q.PopOldest(context.Background(), "retail", domain.LevelNone, claimAll)
	if item == nil || item.CaseID != "a" {
		t.Fatalf("expected a first on equal timestamps, got %+v", item)
	}
}

func TestPopOldestSkipsStaleEntries(t *testing.T) {
	q := NewQueueIndex()
	base := time.Now()
	q.Insert(WorkItem{CaseID: "stale", LineOfBusiness: "retail", Level: domain.LevelNone, PriorityTimestamp: base})
	q.Insert(WorkItem{CaseID: "live", LineOfBusiness: "retail", Level: domain.LevelNone, PriorityTimestamp: base.Add(time.Second)})

	item, err := q.PopOldest(context.Background(), "retail", domain.LevelNone, func(ctx context.Context, item WorkItem) (bool, error) {
		return item.CaseID != "stale", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if item == nil || item.CaseID != "live" {
		t.Fatalf("expected live entry, got %+v", item)
	}
	if depth := q.Depth("retail", domain.LevelNone); depth != 0 {
		t.Fatalf("stale entry should have been dropped, depth %d", depth)
	}
}

func TestBucketsAreIsolatedByLOBAndLevel(t *testing.T) {
	q := NewQueueIndex()
	now := time.Now()
	q.Insert(WorkItem{CaseID: "retail-new", LineOfBusiness: "retail", Level: domain.LevelNone, PriorityTimestamp: now})
	q.Insert(WorkItem{CaseID: "retail-mgr", LineOfBusiness: "retail", Level: domain.LevelManager, PriorityTimestamp: now})
	q.Insert(WorkItem{CaseID: "wealth-new", LineOfBusiness: "wealth", Level: domain.LevelNone, PriorityTimestamp: now})

	item, _ := q.PopOldest(context.Background(), "retail", domain.LevelManager, claimAll)
	if item == nil || item.CaseID != "retail-mgr" {
		t.Fatalf("expected retail-mgr, got %+v", item)
	}
	if q.Depth("retail", domain.LevelNone) != 1 || q.Depth("wealth", domain.LevelNone) != 1 {
		t.Fatal("pop must not drain other buckets")
	}
}

func TestRemove(t *testing.T) {
	q := NewQueueIndex()
	now := time.Now()
	q.Insert(WorkItem{CaseID: "c-1", LineOfBusiness: "retail", Level: domain.LevelNone, PriorityTimestamp: now})
	q.Insert(WorkItem{CaseID: "c-2", LineOfBusiness: "retail", Level: domain.LevelNone, PriorityTimestamp: now.Add(time.Second)})

	q.Remove("c-1")
	if depth := q.Depth("retail", domain.LevelNone); depth != 1 {
		t.Fatalf("expected depth 1 after remove, got %d", depth)
	}
	item, _ := q.PopOldest(context.Background(), "retail", domain.LevelNone, claimAll)
	if item == nil || item.CaseID != "c-2" {
		t.Fatalf("expected c-2, got %+v", item)
	}
}

func TestDepths(t *testing.T) {
	q := NewQueueIndex()
	now := time.Now()
	q.Insert(WorkItem{CaseID: "c-1", LineOfBusiness: "retail", Level: domain.LevelNone, PriorityTimestamp: now})
	q.Insert(WorkItem{CaseID: "c-2", LineOfBusiness: "retail", Level: domain.LevelNone, PriorityTimestamp: now})
	q.Insert(WorkItem{CaseID: "c-3", LineOfBusiness: "retail", Level: domain.LevelGFC, PriorityTimestamp: now})

	depths := q.Depths()
	if depths["retail"][domain.LevelNone] != 2 {
		t.Fatalf("expected 2 analyst-pool entries, got %d", depths["retail"][domain.LevelNone])
	}
	if depths["retail"][domain.LevelGFC] != 1 {
		t.Fatalf("expected 1 GFC entry, got %d", depths["retail"][domain.LevelGFC])
	}
}

func TestRebuild(t *testing.T) {
	cases := repository.NewMemoryCaseRepository()
	ctx := context.Background()
	now := time.Now()

	assignee := "u-1"
	seed := []domain.Case{
		{ID: "new-1", LineOfBusiness: "retail", Status: domain.CaseStatusNew, EscalationLevel: domain.LevelNone, QueuedAt: now},
		{ID: "esc-1", LineOfBusiness: "retail", Status: domain.CaseStatusEscalated, EscalationLevel: domain.LevelManager, QueuedAt: now},
		{ID: "held-1", LineOfBusiness: "retail", Status: domain.CaseStatusAssigned, Assignee: &assignee, EscalationLevel: domain.LevelNone, QueuedAt: now},
	}
	for i := range seed {
		if err := cases.Create(ctx, &seed[i]); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	q := NewQueueIndex()
	q.Insert(WorkItem{CaseID: "leftover", LineOfBusiness: "retail", Level: domain.LevelNone, PriorityTimestamp: now})

	if err := q.Rebuild(ctx, cases); err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	if depth := q.Depth("retail", domain.LevelNone); depth != 1 {
		t.Fatalf("expected only the NEW case in the analyst pool, got %d", depth)
	}
	if depth := q.Depth("retail", domain.LevelManager); depth != 1 {
		t.Fatalf("expected the escalated case in the manager bucket, got %d", depth)
	}
}
