package intake

import (
	"context"
	"errors"
	"testing"

	"github.com/iliyamo/venture-platform/internal/apperr"
	"github.com/iliyamo/venture-platform/internal/audit"
	"github.com/iliyamo/venture-platform/internal/events"
	"github.com/iliyamo/venture-platform/internal/fanout"
	"github.com/iliyamo/venture-platform/internal/model"
	"github.com/iliyamo/venture-platform/internal/store"
)

type captured struct{ events []events.Event }

func (c *captured) Publish(_ context.Context, ev events.Event) error {
	c.events = append(c.events, ev)
	return nil
}

func seed(t *testing.T, docs store.DocumentStore, users ...model.User) {
	t.Helper()
	for _, u := range users {
		if err := docs.Set(context.Background(), store.Users, u.ID, u); err != nil {
			t.Fatal(err)
		}
	}
}

func TestCreateIdeaNotifiesInvestorsInline(t *testing.T) {
	ctx := context.Background()
	docs := store.NewMemory()
	seed(t, docs,
		model.User{ID: "bp", Role: "business_person"},
		model.User{ID: "inv-1", Role: "investor"},
		model.User{ID: "inv-2", Role: "investor"},
	)
	pipe := fanout.NewPipeline(docs, nil, audit.NewWriter(docs, nil), nil, fanout.Options{})
	svc := NewService(docs, events.Inline{Handler: pipe}, nil)

	rec, err := svc.Create(ctx, "bp", KindIdea, []byte(`{"title":"Cloud kitchen","category":"food","budget":"₹5,00,000","ownerId":"someone-else"}`))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	idea := rec.(model.BusinessIdea)
	if idea.OwnerID != "bp" || idea.ID == "" {
		t.Fatalf("ownership not stamped: %+v", idea)
	}
	if docs.Count(store.Notifications) != 2 {
		t.Fatalf("notifications = %d, want 2", docs.Count(store.Notifications))
	}
}

func TestCreateChecksStoredRole(t *testing.T) {
	docs := store.NewMemory()
	seed(t, docs, model.User{ID: "inv", Role: "investor"})
	svc := NewService(docs, &captured{}, nil)

	_, err := svc.Create(context.Background(), "inv", KindLoanScheme, []byte(`{"title":"x"}`))
	if !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("err = %v, want ErrForbidden", err)
	}
	if _, err := svc.Create(context.Background(), "inv", Kind("widgets"), []byte(`{}`)); !errors.Is(err, apperr.ErrInvalidInput) {
		t.Fatalf("unknown kind: err = %v", err)
	}
	if _, err := svc.Create(context.Background(), "", KindQuery, []byte(`{}`)); !errors.Is(err, apperr.ErrUnauthenticated) {
		t.Fatalf("anonymous: err = %v", err)
	}
}

func TestProposalStatusFlow(t *testing.T) {
	ctx := context.Background()
	docs := store.NewMemory()
	seed(t, docs,
		model.User{ID: "bp", Role: "business_person"},
		model.User{ID: "inv", Role: "investor"},
	)
	_ = docs.Set(ctx, store.BusinessIdeas, "idea", model.BusinessIdea{ID: "idea", OwnerID: "bp", Category: "tech"})
	pub := &captured{}
	svc := NewService(docs, pub, nil)

	rec, err := svc.Create(ctx, "inv", KindProposal, []byte(`{"ideaId":"idea","amount":1000}`))
	if err != nil {
		t.Fatalf("create proposal: %v", err)
	}
	prop := rec.(model.InvestmentProposal)
	if prop.Category != "tech" || prop.Status != model.ProposalPending {
		t.Fatalf("proposal = %+v", prop)
	}

	if _, err := svc.UpdateProposalStatus(ctx, "inv", prop.ID, model.ProposalAccepted); !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("investor accepting own proposal: err = %v", err)
	}
	got, err := svc.UpdateProposalStatus(ctx, "bp", prop.ID, model.ProposalAccepted)
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if got.Status != model.ProposalAccepted {
		t.Fatalf("status = %s", got.Status)
	}
	if _, err := svc.UpdateProposalStatus(ctx, "inv", prop.ID, model.ProposalWithdrawn); !errors.Is(err, apperr.ErrInvalidInput) {
		t.Fatalf("withdraw after accept: err = %v", err)
	}

	if len(pub.events) != 2 {
		t.Fatalf("published %d events, want 2", len(pub.events))
	}
	changed, ok := pub.events[1].Payload.(events.ProposalStatusChanged)
	if !ok || changed.PreviousStatus != model.ProposalPending || changed.Proposal.Status != model.ProposalAccepted {
		t.Fatalf("status event = %+v", pub.events[1])
	}
}
