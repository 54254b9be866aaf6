package fanout

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/iliyamo/venture-platform/internal/apperr"
	"github.com/iliyamo/venture-platform/internal/audit"
	"github.com/iliyamo/venture-platform/internal/events"
	"github.com/iliyamo/venture-platform/internal/model"
	"github.com/iliyamo/venture-platform/internal/portfolio"
	"github.com/iliyamo/venture-platform/internal/push"
	"github.com/iliyamo/venture-platform/internal/roles"
	"github.com/iliyamo/venture-platform/internal/store"
)

var tracer = otel.Tracer("fanout")

// Result summarises one delivery. FailedChunks and PushFailures are
// reported here and in the audit entry, never as errors.
type Result struct {
	Audience     int
	Written      int
	FailedChunks int
	PushFailures int
}

// Options tune a Pipeline.
type Options struct {
	// BatchSize caps notifications per BatchWrite. Zero or anything above
	// store.MaxBatchSize means store.MaxBatchSize.
	BatchSize int
	// AudienceTTL is how long role lookups are cached. Zero disables the cache.
	AudienceTTL time.Duration
}

// Pipeline delivers domain events. It does not deduplicate: handling the
// same event twice writes every notification twice.
type Pipeline struct {
	docs      store.DocumentStore
	push      push.Transport
	audit     *audit.Writer
	book      *portfolio.Book
	log       *zap.Logger
	cache     *cache.Cache
	batchSize int
	now       func() time.Time
}

func NewPipeline(docs store.DocumentStore, transport push.Transport, auditor *audit.Writer, log *zap.Logger, opts Options) *Pipeline {
	if log == nil {
		log = zap.NewNop()
	}
	if transport == nil {
		transport = push.LogTransport{Log: log}
	}
	size := opts.BatchSize
	if size <= 0 || size > store.MaxBatchSize {
		size = store.MaxBatchSize
	}
	p := &Pipeline{
		docs:      docs,
		push:      transport,
		audit:     auditor,
		book:      portfolio.NewBook(docs),
		log:       log.Named("fanout"),
		batchSize: size,
		now:       func() time.Time { return time.Now().UTC() },
	}
	if opts.AudienceTTL > 0 {
		p.cache = cache.New(opts.AudienceTTL, 2*opts.AudienceTTL)
	}
	return p
}

// Handle implements events.Handler.
func (p *Pipeline) Handle(ctx context.Context, ev events.Event) error {
	_, err := p.Deliver(ctx, ev)
	return err
}

// Deliver applies the event's side effects, resolves its audience, writes
// one notification per recipient and attempts a push to each recipient
// with a device token. An error is returned only when the event cannot be
// resolved; in that case no notification is written, but side effects
// already applied (a query marked answered, an investment added to a
// portfolio) stay and may be applied again on redelivery.
func (p *Pipeline) Deliver(ctx context.Context, ev events.Event) (Result, error) {
	ctx, span := tracer.Start(ctx, "Fanout.Pipeline.Deliver")
	defer span.End()
	span.SetAttributes(attribute.String("event.kind", string(ev.Kind())), attribute.String("event.id", ev.ID))

	snap, err := p.resolve(ctx, ev)
	if err != nil {
		span.RecordError(err)
		p.log.Error("event not delivered", zap.String("event", ev.ID), zap.String("kind", string(ev.Kind())), zap.Error(err))
		_ = p.audit.Failure(ctx, ev.ActorID, audit.FanoutFailed, err, map[string]any{
			"eventId": ev.ID,
			"kind":    string(ev.Kind()),
		})
		return Result{}, err
	}

	recipients := Audience(ev, snap)
	res := Result{Audience: len(recipients)}
	kind, msg := Compose(ev)
	now := p.now()

	ops := make([]store.BatchOp, 0, len(recipients))
	for _, r := range recipients {
		ops = append(ops, store.BatchOp{
			Kind:       store.OpCreate,
			Collection: store.Notifications,
			Data: model.Notification{
				UserID:    r.UserID,
				Title:     msg.Title,
				Body:      msg.Body,
				Type:      kind,
				Data:      msg.Data,
				CreatedAt: now,
			},
		})
	}
	for i, chunk := range store.Chunk(ops, p.batchSize) {
		if err := p.docs.BatchWrite(ctx, chunk); err != nil {
			res.FailedChunks++
			p.log.Warn("notification chunk failed",
				zap.String("event", ev.ID), zap.Int("chunk", i), zap.Int("size", len(chunk)), zap.Error(err))
			continue
		}
		res.Written += len(chunk)
	}

	for _, r := range recipients {
		if r.DeviceToken == "" {
			continue
		}
		if err := p.push.Send(ctx, r.DeviceToken, msg); err != nil {
			res.PushFailures++
			p.log.Debug("push failed", zap.String("user", r.UserID), zap.Error(err))
		}
	}
	if res.PushFailures > 0 {
		p.log.Warn("push delivery incomplete", zap.String("event", ev.ID), zap.Int("failures", res.PushFailures))
	}

	_ = p.audit.Record(ctx, ev.ActorID, audit.Fanout, map[string]any{
		"eventId":      ev.ID,
		"kind":         string(ev.Kind()),
		"audience":     res.Audience,
		"written":      res.Written,
		"failedChunks": res.FailedChunks,
		"pushFailures": res.PushFailures,
	})
	span.SetAttributes(attribute.Int("fanout.audience", res.Audience), attribute.Int("fanout.written", res.Written))
	return res, nil
}

// resolve performs the event's record side effects and loads the
// directory state its audience depends on.
func (p *Pipeline) resolve(ctx context.Context, ev events.Event) (Snapshot, error) {
	snap := Snapshot{ByRole: map[roles.Role][]model.User{}, Users: map[string]model.User{}}
	switch pl := ev.Payload.(type) {
	case events.IdeaCreated:
		return snap, p.loadRoles(ctx, &snap, roles.Investor)

	case events.ProposalCreated:
		var idea model.BusinessIdea
		if err := p.docs.Get(ctx, store.BusinessIdeas, pl.Proposal.IdeaID, &idea); err != nil {
			return snap, errors.Wrap(err, "load idea for proposal")
		}
		snap.IdeaOwner = idea.OwnerID
		return snap, p.loadUser(ctx, &snap, idea.OwnerID)

	case events.ProposalStatusChanged:
		if pl.Proposal.Status == model.ProposalAccepted && pl.PreviousStatus != model.ProposalAccepted {
			if _, err := p.book.Accept(ctx, pl.Proposal); err != nil {
				return snap, errors.Wrap(err, "record accepted investment")
			}
		}
		return snap, p.loadUser(ctx, &snap, pl.Proposal.InvestorID)

	case events.QueryCreated:
		return snap, p.loadRoles(ctx, &snap, roles.BusinessAdvisor)

	case events.ResponseCreated:
		var q model.Query
		if err := p.docs.Get(ctx, store.Queries, pl.Response.QueryID, &q); err != nil {
			return snap, errors.Wrap(err, "load query for response")
		}
		if err := p.docs.Update(ctx, store.Queries, q.ID, map[string]any{
			"status":        model.QueryAnswered,
			"responseCount": store.Increment{N: 1},
		}); err != nil {
			return snap, errors.Wrap(err, "mark query answered")
		}
		snap.QueryOwner = q.OwnerID
		return snap, p.loadUser(ctx, &snap, q.OwnerID)

	case events.SuggestionCreated:
		if pl.Suggestion.TargetUserID != "" {
			return snap, p.loadUser(ctx, &snap, pl.Suggestion.TargetUserID)
		}
		return snap, p.loadRoles(ctx, &snap, roles.BusinessPerson)

	case events.LoanSchemeCreated:
		return snap, p.loadRoles(ctx, &snap, roles.BusinessPerson, roles.Investor)
	}
	return snap, errors.Wrapf(apperr.ErrInvalidInput, "unsupported event kind %q", ev.Kind())
}

// loadUser adds one user to the snapshot. A missing user still receives a
// notification, just no push.
func (p *Pipeline) loadUser(ctx context.Context, snap *Snapshot, id string) error {
	if id == "" {
		return nil
	}
	var u model.User
	err := p.docs.Get(ctx, store.Users, id, &u)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	snap.Users[id] = u
	return nil
}

func (p *Pipeline) loadRoles(ctx context.Context, snap *Snapshot, rs ...roles.Role) error {
	for _, r := range rs {
		users, err := p.usersByRole(ctx, r)
		if err != nil {
			return err
		}
		snap.ByRole[r] = users
	}
	return nil
}

func (p *Pipeline) usersByRole(ctx context.Context, r roles.Role) ([]model.User, error) {
	if p.cache != nil {
		if v, ok := p.cache.Get(string(r)); ok {
			return v.([]model.User), nil
		}
	}
	docs, err := p.docs.Query(ctx, store.Users, store.Where("role", store.OpEq, string(r)))
	if err != nil {
		return nil, errors.Wrapf(err, "list %s users", r)
	}
	users := make([]model.User, 0, len(docs))
	for _, d := range docs {
		var u model.User
		if err := d.Decode(&u); err != nil {
			return nil, errors.Wrap(err, "decode user")
		}
		users = append(users, u)
	}
	if p.cache != nil {
		p.cache.SetDefault(string(r), users)
	}
	return users, nil
}
