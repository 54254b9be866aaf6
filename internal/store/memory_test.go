package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/iliyamo/venture-platform/internal/apperr"
)

type doc struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Tags      []string  `json:"tags,omitempty"`
	Count     int       `json:"count"`
	CreatedAt time.Time `json:"createdAt"`
}

func TestGetMissingIsNotFound(t *testing.T) {
	var d doc
	err := NewMemory().Get(context.Background(), Users, "nope", &d)
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("err = %v", err)
	}
}

func TestQueryFilters(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	_ = m.Set(ctx, Users, "a", doc{Role: "investor", Tags: []string{"food"}, CreatedAt: base})
	_ = m.Set(ctx, Users, "b", doc{Role: "investor", CreatedAt: base.AddDate(0, 1, 0)})
	_ = m.Set(ctx, Users, "c", doc{Role: "banker", Tags: []string{"food", "tech"}, CreatedAt: base.AddDate(0, 2, 0)})

	cases := []struct {
		name    string
		filters []Filter
		want    []string
	}{
		{"eq", []Filter{Where("role", OpEq, "investor")}, []string{"a", "b"}},
		{"in", []Filter{Where("role", OpIn, []string{"banker", "admin"})}, []string{"c"}},
		{"contains", []Filter{Where("tags", OpContains, "food")}, []string{"a", "c"}},
		{"time lt", []Filter{Where("createdAt", OpLt, base.AddDate(0, 1, 0))}, []string{"a"}},
		{"and", []Filter{Where("role", OpEq, "investor"), Where("createdAt", OpGt, base)}, []string{"b"}},
	}
	for _, tc := range cases {
		got, err := m.Query(ctx, Users, tc.filters...)
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		var ids []string
		for _, d := range got {
			ids = append(ids, d.ID)
		}
		if len(ids) != len(tc.want) {
			t.Fatalf("%s: got %v, want %v", tc.name, ids, tc.want)
		}
		for i := range ids {
			if ids[i] != tc.want[i] {
				t.Fatalf("%s: got %v, want %v", tc.name, ids, tc.want)
			}
		}
	}
}

func TestUpdateIncrementAndMissing(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	_ = m.Set(ctx, Queries, "q", doc{Count: 1})
	if err := m.Update(ctx, Queries, "q", map[string]any{"count": Increment{N: 2}, "role": "x"}); err != nil {
		t.Fatal(err)
	}
	var d doc
	_ = m.Get(ctx, Queries, "q", &d)
	if d.Count != 3 || d.Role != "x" || d.ID != "q" {
		t.Fatalf("doc = %+v", d)
	}
	if err := m.Update(ctx, Queries, "missing", map[string]any{"role": "y"}); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("err = %v", err)
	}
}

func TestBatchWriteIsAtomic(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	_ = m.Set(ctx, Users, "keep", doc{Role: "user"})

	err := m.BatchWrite(ctx, []BatchOp{
		{Kind: OpCreate, Collection: Notifications, Data: doc{Role: "n"}},
		{Kind: OpDelete, Collection: Users, ID: "keep"},
		{Kind: OpUpdate, Collection: Users, ID: "ghost", Data: map[string]any{"role": "x"}},
	})
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("err = %v", err)
	}
	if m.Count(Notifications) != 0 || m.Count(Users) != 1 {
		t.Fatalf("partial batch applied: notifications=%d users=%d", m.Count(Notifications), m.Count(Users))
	}

	if err := m.BatchWrite(ctx, make([]BatchOp, MaxBatchSize+1)); !errors.Is(err, ErrBatchTooLarge) {
		t.Fatalf("oversized batch: err = %v", err)
	}
}

func TestChunk(t *testing.T) {
	items := make([]int, 1201)
	chunks := Chunk(items, 0)
	if len(chunks) != 3 || len(chunks[0]) != MaxBatchSize || len(chunks[2]) != 201 {
		t.Fatalf("chunk sizes %d/%d", len(chunks), len(chunks[2]))
	}
	if got := Chunk([]int{}, 10); len(got) != 0 {
		t.Fatalf("empty input gave %d chunks", len(got))
	}
}
