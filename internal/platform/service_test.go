package platform

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/iliyamo/venture-platform/internal/apperr"
	"github.com/iliyamo/venture-platform/internal/audit"
	"github.com/iliyamo/venture-platform/internal/model"
	"github.com/iliyamo/venture-platform/internal/store"
)

func fixture(t *testing.T) (*store.Memory, *Service) {
	t.Helper()
	ctx := context.Background()
	docs := store.NewMemory()
	must := func(coll, id string, doc any) {
		if err := docs.Set(ctx, coll, id, doc); err != nil {
			t.Fatalf("seed %s/%s: %v", coll, id, err)
		}
	}
	must(store.Users, "bank", model.User{ID: "bank", Role: "banker"})
	must(store.Users, "admin", model.User{ID: "admin", Role: "admin"})
	must(store.Users, "inv", model.User{ID: "inv", Role: "investor"})
	must(store.Users, "owner", model.User{ID: "owner", Role: "business_person", ExperienceYears: 1, TeamSize: 1})
	must(store.BusinessIdeas, "idea", model.BusinessIdea{
		ID: "idea", OwnerID: "owner", Category: "Technology",
		Budget: "₹800,00,000", Description: "An AI assistant for small retailers",
	})
	must(store.InvestmentProposals, "prop", model.InvestmentProposal{
		ID: "prop", IdeaID: "idea", InvestorID: "inv", Amount: 1000, Status: model.ProposalPending,
	})
	return docs, NewService(docs, audit.NewWriter(docs, nil), nil)
}

func TestGenerateRiskAssessment(t *testing.T) {
	docs, svc := fixture(t)
	ra, err := svc.GenerateRiskAssessment(context.Background(), "bank", "prop")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if ra.Score != 56 || ra.Level != "HIGH" || ra.AssessorID != "bank" {
		t.Fatalf("assessment = %+v", ra)
	}
	if docs.Count(store.RiskAssessments) != 1 {
		t.Fatalf("assessment not stored")
	}
}

func TestRiskAssessmentRequiresBanker(t *testing.T) {
	docs, svc := fixture(t)
	for _, caller := range []string{"inv", "admin", "owner"} {
		_, err := svc.GenerateRiskAssessment(context.Background(), caller, "prop")
		if !errors.Is(err, apperr.ErrForbidden) {
			t.Fatalf("%s: err = %v, want ErrForbidden", caller, err)
		}
	}
	if _, err := svc.GenerateRiskAssessment(context.Background(), "", "prop"); !errors.Is(err, apperr.ErrUnauthenticated) {
		t.Fatalf("anonymous: err = %v", err)
	}
	if docs.Count(store.RiskAssessments) != 0 {
		t.Fatalf("assessment stored for unauthorized caller")
	}
	if docs.Count(store.Logs) != 3 {
		t.Fatalf("denials audited = %d, want 3", docs.Count(store.Logs))
	}
}

func TestLatestRiskAssessmentWins(t *testing.T) {
	_, svc := fixture(t)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	svc.now = func() time.Time { tick++; return base.Add(time.Duration(tick) * time.Hour) }

	var last model.RiskAssessment
	for i := 0; i < 3; i++ {
		ra, err := svc.GenerateRiskAssessment(context.Background(), "bank", "prop")
		if err != nil {
			t.Fatal(err)
		}
		last = ra
	}
	got, err := svc.LatestRiskAssessment(context.Background(), "admin", "prop")
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if got.ID != last.ID {
		t.Fatalf("latest = %s, want %s", got.ID, last.ID)
	}
	if _, err := svc.LatestRiskAssessment(context.Background(), "bank", "missing"); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("missing: err = %v", err)
	}
}

func TestUpdatePortfolioMetricsSelfOnly(t *testing.T) {
	ctx := context.Background()
	docs, svc := fixture(t)
	if err := docs.Set(ctx, store.Portfolios, "inv", model.Portfolio{
		ID: "inv", InvestorID: "inv",
		Investments: []model.Investment{{Category: "tech", Amount: 1000, CurrentValue: 1500}},
	}); err != nil {
		t.Fatal(err)
	}

	m, err := svc.UpdatePortfolioMetrics(ctx, "inv", "inv")
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if m.ROI != 50 || m.BestCategory != "tech" {
		t.Fatalf("metrics = %+v", m)
	}
	if _, err := svc.UpdatePortfolioMetrics(ctx, "inv", "someone-else"); !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("other investor: err = %v", err)
	}
	if _, err := svc.UpdatePortfolioMetrics(ctx, "bank", "bank"); !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("banker: err = %v", err)
	}
}

func TestPlatformAnalytics(t *testing.T) {
	ctx := context.Background()
	docs, svc := fixture(t)
	_ = docs.Set(ctx, store.Queries, "q1", model.Query{ID: "q1", Status: model.QueryOpen})
	_ = docs.Set(ctx, store.Queries, "q2", model.Query{ID: "q2", Status: model.QueryAnswered})
	_ = docs.Set(ctx, store.Notifications, "n1", model.Notification{ID: "n1", Read: true})
	_ = docs.Set(ctx, store.Notifications, "n2", model.Notification{ID: "n2"})

	a, err := svc.GetPlatformAnalytics(ctx, "admin")
	if err != nil {
		t.Fatalf("analytics: %v", err)
	}
	if a.TotalUsers != 4 || a.UsersByRole["banker"] != 1 || a.BusinessIdeas != 1 {
		t.Fatalf("analytics = %+v", a)
	}
	if a.ProposalsByStatus[model.ProposalPending] != 1 || a.OpenQueries != 1 || a.AnsweredQueries != 1 {
		t.Fatalf("analytics = %+v", a)
	}
	if a.Notifications != 2 || a.UnreadNotifications != 1 {
		t.Fatalf("notifications = %d/%d", a.Notifications, a.UnreadNotifications)
	}
	if _, err := svc.GetPlatformAnalytics(ctx, "bank"); !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("banker: err = %v", err)
	}
}
