package portfolio

import (
	"context"
	"testing"

	"github.com/iliyamo/venture-platform/internal/model"
	"github.com/iliyamo/venture-platform/internal/store"
)

func TestLoadMissingIsEmpty(t *testing.T) {
	b := NewBook(store.NewMemory())
	p, err := b.Load(context.Background(), "inv-1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if p.InvestorID != "inv-1" || len(p.Investments) != 0 {
		t.Fatalf("unexpected portfolio %+v", p)
	}
}

func TestAcceptAppendsAndRecomputes(t *testing.T) {
	ctx := context.Background()
	docs := store.NewMemory()
	b := NewBook(docs)

	for _, prop := range []model.InvestmentProposal{
		{ID: "p1", IdeaID: "i1", InvestorID: "inv-1", Amount: 1000, Category: "tech"},
		{ID: "p2", IdeaID: "i2", InvestorID: "inv-1", Amount: 500, Category: "food"},
	} {
		if _, err := b.Accept(ctx, prop); err != nil {
			t.Fatalf("accept %s: %v", prop.ID, err)
		}
	}

	var p model.Portfolio
	if err := docs.Get(ctx, store.Portfolios, "inv-1", &p); err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(p.Investments) != 2 {
		t.Fatalf("investments = %d, want 2", len(p.Investments))
	}
	if p.Investments[0].CurrentValue != 1000 || p.Investments[0].Status != "active" {
		t.Fatalf("investment not valued at amount: %+v", p.Investments[0])
	}
	if p.Metrics.TotalInvested != 1500 || p.Metrics.ROI != 0 || p.Metrics.DiversificationScore != 40 {
		t.Fatalf("metrics = %+v", p.Metrics)
	}
}
