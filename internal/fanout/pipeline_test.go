package fanout

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/iliyamo/venture-platform/internal/apperr"
	"github.com/iliyamo/venture-platform/internal/audit"
	"github.com/iliyamo/venture-platform/internal/events"
	"github.com/iliyamo/venture-platform/internal/model"
	"github.com/iliyamo/venture-platform/internal/push"
	"github.com/iliyamo/venture-platform/internal/roles"
	"github.com/iliyamo/venture-platform/internal/store"
)

type recordingPush struct {
	mu     sync.Mutex
	tokens []string
	fail   bool
}

func (r *recordingPush) Send(_ context.Context, token string, _ push.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tokens = append(r.tokens, token)
	if r.fail {
		return errors.New("gateway unavailable")
	}
	return nil
}

func seedUser(t *testing.T, docs store.DocumentStore, u model.User) {
	t.Helper()
	if err := docs.Set(context.Background(), store.Users, u.ID, u); err != nil {
		t.Fatalf("seed %s: %v", u.ID, err)
	}
}

func notificationsFor(t *testing.T, docs store.DocumentStore, userID string) []model.Notification {
	t.Helper()
	list, err := docs.Query(context.Background(), store.Notifications, store.Where("userId", store.OpEq, userID))
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	out := make([]model.Notification, 0, len(list))
	for _, d := range list {
		var n model.Notification
		if err := d.Decode(&n); err != nil {
			t.Fatalf("decode: %v", err)
		}
		out = append(out, n)
	}
	return out
}

func fanoutAudits(t *testing.T, docs store.DocumentStore, action string) []model.AuditLogEntry {
	t.Helper()
	list, err := docs.Query(context.Background(), store.Logs, store.Where("action", store.OpEq, action))
	if err != nil {
		t.Fatalf("query logs: %v", err)
	}
	out := make([]model.AuditLogEntry, 0, len(list))
	for _, d := range list {
		var e model.AuditLogEntry
		_ = d.Decode(&e)
		out = append(out, e)
	}
	return out
}

func newPipeline(docs store.DocumentStore, tr push.Transport, batch int) *Pipeline {
	return NewPipeline(docs, tr, audit.NewWriter(docs, nil), nil, Options{BatchSize: batch})
}

func TestIdeaReachesEveryInvestor(t *testing.T) {
	docs := store.NewMemory()
	for i := 0; i < 4; i++ {
		seedUser(t, docs, model.User{ID: fmt.Sprintf("inv-%d", i), Role: "investor"})
	}
	seedUser(t, docs, model.User{ID: "bp-1", Role: "business_person"})

	ev := events.New("bp-1", events.IdeaCreated{Idea: model.BusinessIdea{ID: "idea-1", OwnerID: "bp-1", Title: "Cafe", Category: "food"}})
	res, err := newPipeline(docs, nil, 0).Deliver(context.Background(), ev)
	if err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if res.Audience != 4 || res.Written != 4 {
		t.Fatalf("result = %+v", res)
	}
	for i := 0; i < 4; i++ {
		got := notificationsFor(t, docs, fmt.Sprintf("inv-%d", i))
		if len(got) != 1 || got[0].Read || got[0].Type != "new_business_idea" {
			t.Fatalf("inv-%d notifications = %+v", i, got)
		}
	}
	if n := len(notificationsFor(t, docs, "bp-1")); n != 0 {
		t.Fatalf("owner got %d notifications", n)
	}
	if a := fanoutAudits(t, docs, audit.Fanout); len(a) != 1 {
		t.Fatalf("fanout audit entries = %d", len(a))
	}
}

func TestIdeaRespectsPreferredCategories(t *testing.T) {
	docs := store.NewMemory()
	seedUser(t, docs, model.User{ID: "a", Role: "investor", PreferredCategories: []string{"food"}})
	seedUser(t, docs, model.User{ID: "b", Role: "investor", PreferredCategories: []string{"tech"}})
	seedUser(t, docs, model.User{ID: "c", Role: "investor"})

	ev := events.New("x", events.IdeaCreated{Idea: model.BusinessIdea{ID: "i", Category: "food"}})
	res, err := newPipeline(docs, nil, 0).Deliver(context.Background(), ev)
	if err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if res.Written != 2 {
		t.Fatalf("written = %d, want 2", res.Written)
	}
	if len(notificationsFor(t, docs, "b")) != 0 {
		t.Fatalf("investor without matching preference was notified")
	}
}

func TestPreferredCategoriesIgnoreCase(t *testing.T) {
	docs := store.NewMemory()
	seedUser(t, docs, model.User{ID: "a", Role: "investor", PreferredCategories: []string{"technology"}})
	seedUser(t, docs, model.User{ID: "b", Role: "investor", PreferredCategories: []string{" FinTech "}})

	ev := events.New("x", events.IdeaCreated{Idea: model.BusinessIdea{ID: "i", Category: "Technology"}})
	res, err := newPipeline(docs, nil, 0).Deliver(context.Background(), ev)
	if err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if res.Written != 1 || len(notificationsFor(t, docs, "a")) != 1 {
		t.Fatalf("result = %+v", res)
	}

	ev = events.New("x", events.IdeaCreated{Idea: model.BusinessIdea{ID: "j", Category: "fintech"}})
	if _, err := newPipeline(docs, nil, 0).Deliver(context.Background(), ev); err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if len(notificationsFor(t, docs, "b")) != 1 {
		t.Fatalf("padded preference did not match")
	}
}

func TestChunkingAndPartialFanout(t *testing.T) {
	docs := store.NewMemory()
	for i := 0; i < 7; i++ {
		seedUser(t, docs, model.User{ID: fmt.Sprintf("adv-%d", i), Role: "business_advisor"})
	}
	var sizes []int
	docs.BatchHook = func(ops []store.BatchOp) error {
		sizes = append(sizes, len(ops))
		if len(sizes) == 2 {
			return errors.New("write quota exceeded")
		}
		return nil
	}

	ev := events.New("bp", events.QueryCreated{Query: model.Query{ID: "q", Title: "Pricing?"}})
	res, err := newPipeline(docs, nil, 3).Deliver(context.Background(), ev)
	if err != nil {
		t.Fatalf("partial fan-out must not fail the event: %v", err)
	}
	if fmt.Sprint(sizes) != "[3 3 1]" {
		t.Fatalf("chunk sizes = %v", sizes)
	}
	if res.Audience != 7 || res.Written != 4 || res.FailedChunks != 1 {
		t.Fatalf("result = %+v", res)
	}
	if got := docs.Count(store.Notifications); got != 4 {
		t.Fatalf("stored notifications = %d, want 4", got)
	}
	entries := fanoutAudits(t, docs, audit.Fanout)
	if len(entries) != 1 || entries[0].Data["failedChunks"] != float64(1) {
		t.Fatalf("audit = %+v", entries)
	}
}

func TestPushFailuresAreSwallowed(t *testing.T) {
	docs := store.NewMemory()
	seedUser(t, docs, model.User{ID: "bp-1", Role: "business_person", DeviceToken: "tok-1"})
	seedUser(t, docs, model.User{ID: "bp-2", Role: "business_person"})
	seedUser(t, docs, model.User{ID: "inv-1", Role: "investor", DeviceToken: "tok-2"})

	tr := &recordingPush{fail: true}
	ev := events.New("bank", events.LoanSchemeCreated{Scheme: model.LoanScheme{ID: "ls", Title: "SME loan"}})
	res, err := newPipeline(docs, tr, 0).Deliver(context.Background(), ev)
	if err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if res.Written != 3 || res.PushFailures != 2 {
		t.Fatalf("result = %+v", res)
	}
	if len(tr.tokens) != 2 {
		t.Fatalf("push attempts = %v", tr.tokens)
	}
}

func TestResponseMarksQueryAnswered(t *testing.T) {
	ctx := context.Background()
	docs := store.NewMemory()
	seedUser(t, docs, model.User{ID: "owner", Role: "business_person"})
	if err := docs.Set(ctx, store.Queries, "q1", model.Query{ID: "q1", OwnerID: "owner", Status: model.QueryOpen}); err != nil {
		t.Fatal(err)
	}

	ev := events.New("adv", events.ResponseCreated{Response: model.Response{ID: "r1", QueryID: "q1", AdvisorID: "adv"}})
	p := newPipeline(docs, nil, 0)
	for i := 0; i < 2; i++ {
		if _, err := p.Deliver(ctx, ev); err != nil {
			t.Fatalf("deliver: %v", err)
		}
	}

	var q model.Query
	if err := docs.Get(ctx, store.Queries, "q1", &q); err != nil {
		t.Fatal(err)
	}
	if q.Status != model.QueryAnswered || q.ResponseCount != 2 {
		t.Fatalf("query = %+v", q)
	}
	// no deduplication: the redelivered event notifies again
	if n := len(notificationsFor(t, docs, "owner")); n != 2 {
		t.Fatalf("owner notifications = %d, want 2", n)
	}
}

func TestAcceptedProposalUpdatesPortfolio(t *testing.T) {
	ctx := context.Background()
	docs := store.NewMemory()
	seedUser(t, docs, model.User{ID: "inv", Role: "investor"})
	prop := model.InvestmentProposal{ID: "p1", IdeaID: "i1", InvestorID: "inv", Amount: 2500, Category: "tech", Status: model.ProposalAccepted}

	ev := events.New("owner", events.ProposalStatusChanged{Proposal: prop, PreviousStatus: model.ProposalPending})
	if _, err := newPipeline(docs, nil, 0).Deliver(ctx, ev); err != nil {
		t.Fatalf("deliver: %v", err)
	}

	var pf model.Portfolio
	if err := docs.Get(ctx, store.Portfolios, "inv", &pf); err != nil {
		t.Fatalf("portfolio: %v", err)
	}
	if len(pf.Investments) != 1 || pf.Metrics.TotalInvested != 2500 || pf.Metrics.TotalValue != 2500 {
		t.Fatalf("portfolio = %+v", pf)
	}
	got := notificationsFor(t, docs, "inv")
	if len(got) != 1 || got[0].Data["status"] != model.ProposalAccepted {
		t.Fatalf("notifications = %+v", got)
	}
}

func TestProposalForMissingIdeaFails(t *testing.T) {
	docs := store.NewMemory()
	ev := events.New("inv", events.ProposalCreated{Proposal: model.InvestmentProposal{ID: "p", IdeaID: "gone"}})
	_, err := newPipeline(docs, nil, 0).Deliver(context.Background(), ev)
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if docs.Count(store.Notifications) != 0 {
		t.Fatalf("notifications written for unresolved event")
	}
	if len(fanoutAudits(t, docs, audit.FanoutFailed)) != 1 {
		t.Fatalf("failure not audited")
	}
}

func TestAudienceCacheServesStaleRoles(t *testing.T) {
	ctx := context.Background()
	docs := store.NewMemory()
	seedUser(t, docs, model.User{ID: "adv-1", Role: "business_advisor"})
	p := NewPipeline(docs, nil, audit.NewWriter(docs, nil), nil, Options{AudienceTTL: time.Minute})

	ev := events.New("bp", events.QueryCreated{Query: model.Query{ID: "q"}})
	if _, err := p.Deliver(ctx, ev); err != nil {
		t.Fatal(err)
	}
	seedUser(t, docs, model.User{ID: "adv-2", Role: "business_advisor"})
	res, err := p.Deliver(ctx, ev)
	if err != nil {
		t.Fatal(err)
	}
	if res.Audience != 1 {
		t.Fatalf("audience = %d, want cached 1", res.Audience)
	}
}

func TestAudienceDeduplicates(t *testing.T) {
	snap := Snapshot{ByRole: map[roles.Role][]model.User{
		roles.BusinessPerson: {{ID: "a"}, {ID: "b"}},
		roles.Investor:       {{ID: "b"}, {ID: "c"}},
	}}
	got := Audience(events.New("x", events.LoanSchemeCreated{}), snap)
	if len(got) != 3 || got[0].UserID != "a" || got[1].UserID != "b" || got[2].UserID != "c" {
		t.Fatalf("audience = %+v", got)
	}
}
