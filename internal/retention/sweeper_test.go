package retention

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/iliyamo/venture-platform/internal/audit"
	"github.com/iliyamo/venture-platform/internal/model"
	"github.com/iliyamo/venture-platform/internal/store"
)

func seed(t *testing.T, docs store.DocumentStore, prefix string, n int, at time.Time) {
	t.Helper()
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("%s-%03d", prefix, i)
		if err := docs.Set(context.Background(), store.Notifications, id, model.Notification{ID: id, UserID: "u", CreatedAt: at}); err != nil {
			t.Fatal(err)
		}
	}
}

func TestSweepDeletesOnlyExpired(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	docs := store.NewMemory()
	seed(t, docs, "old", 7, now.AddDate(0, 0, -31))
	seed(t, docs, "new", 3, now.AddDate(0, 0, -10))

	var sizes []int
	docs.BatchHook = func(ops []store.BatchOp) error {
		sizes = append(sizes, len(ops))
		return nil
	}

	s := NewSweeper(docs, audit.NewWriter(docs, nil), nil, Config{BatchSize: 3})
	res, err := s.Sweep(context.Background(), now)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if res.Deleted != 7 || res.Batches != 3 || res.Truncated {
		t.Fatalf("result = %+v", res)
	}
	if fmt.Sprint(sizes) != "[3 3 1]" {
		t.Fatalf("batch sizes = %v", sizes)
	}
	if got := docs.Count(store.Notifications); got != 3 {
		t.Fatalf("remaining = %d, want 3", got)
	}
	var n model.Notification
	if err := docs.Get(context.Background(), store.Notifications, "new-000", &n); err != nil {
		t.Fatalf("recent notification deleted: %v", err)
	}
	if docs.Count(store.Logs) != 1 {
		t.Fatalf("expected one audit entry")
	}
}

func TestSweepStopsAtMaxBatches(t *testing.T) {
	now := time.Now().UTC()
	docs := store.NewMemory()
	seed(t, docs, "old", 10, now.AddDate(0, 0, -40))

	s := NewSweeper(docs, audit.NewWriter(docs, nil), nil, Config{BatchSize: 2, MaxBatches: 2})
	res, err := s.Sweep(context.Background(), now)
	if err != nil {
		t.Fatal(err)
	}
	if res.Deleted != 4 || !res.Truncated {
		t.Fatalf("result = %+v", res)
	}
	if docs.Count(store.Notifications) != 6 {
		t.Fatalf("remaining = %d", docs.Count(store.Notifications))
	}
}

func TestSweepExactlyAtMaxBatchesIsComplete(t *testing.T) {
	now := time.Now().UTC()
	docs := store.NewMemory()
	seed(t, docs, "old", 2, now.AddDate(0, 0, -40))

	s := NewSweeper(docs, audit.NewWriter(docs, nil), nil, Config{BatchSize: 2, MaxBatches: 1})
	res, err := s.Sweep(context.Background(), now)
	if err != nil {
		t.Fatal(err)
	}
	if res.Deleted != 2 || res.Batches != 1 || res.Truncated {
		t.Fatalf("result = %+v", res)
	}
	if docs.Count(store.Notifications) != 0 {
		t.Fatalf("remaining = %d", docs.Count(store.Notifications))
	}
}

func TestSweepFailedBatchKeepsEarlierDeletes(t *testing.T) {
	now := time.Now().UTC()
	docs := store.NewMemory()
	seed(t, docs, "old", 5, now.AddDate(0, 0, -40))
	calls := 0
	docs.BatchHook = func([]store.BatchOp) error {
		calls++
		if calls == 2 {
			return errors.New("unavailable")
		}
		return nil
	}

	s := NewSweeper(docs, audit.NewWriter(docs, nil), nil, Config{BatchSize: 2})
	res, err := s.Sweep(context.Background(), now)
	if err == nil {
		t.Fatal("expected error")
	}
	if res.Deleted != 2 || docs.Count(store.Notifications) != 3 {
		t.Fatalf("result = %+v remaining = %d", res, docs.Count(store.Notifications))
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	s := NewSweeper(store.NewMemory(), audit.NewWriter(store.NewMemory(), nil), nil, Config{})
	go func() {
		s.Run(ctx, time.Hour)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
