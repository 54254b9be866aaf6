// Package intake stores user-submitted records and publishes the domain
// event each one triggers.
package intake

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/iliyamo/venture-platform/internal/apperr"
	"github.com/iliyamo/venture-platform/internal/events"
	"github.com/iliyamo/venture-platform/internal/model"
	"github.com/iliyamo/venture-platform/internal/roles"
	"github.com/iliyamo/venture-platform/internal/store"
)

// Kind is the URL name of a record type.
type Kind string

const (
	KindIdea       Kind = "business-ideas"
	KindProposal   Kind = "investment-proposals"
	KindQuery      Kind = "queries"
	KindResponse   Kind = "responses"
	KindSuggestion Kind = "advisor-suggestions"
	KindLoanScheme Kind = "loan-schemes"
)

// authors lists the stored roles allowed to submit each kind.
var authors = map[Kind][]roles.Role{
	KindIdea:       {roles.BusinessPerson},
	KindProposal:   {roles.Investor},
	KindQuery:      {roles.BusinessPerson, roles.Investor, roles.User},
	KindResponse:   {roles.BusinessAdvisor},
	KindSuggestion: {roles.BusinessAdvisor},
	KindLoanScheme: {roles.Banker},
}

type Service struct {
	docs store.DocumentStore
	pub  events.Publisher
	log  *zap.Logger
	now  func() time.Time
}

func NewService(docs store.DocumentStore, pub events.Publisher, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{docs: docs, pub: pub, log: log.Named("intake"), now: func() time.Time { return time.Now().UTC() }}
}

// Create decodes body as a record of kind, stamps ownership, id, status
// and time, stores it and publishes its created event. The record is kept
// when publishing fails; the error is logged and the record returned.
func (s *Service) Create(ctx context.Context, callerID string, kind Kind, body []byte) (any, error) {
	if _, err := s.caller(ctx, callerID, authors[kind]...); err != nil {
		return nil, err
	}
	now := s.now()
	id := store.NewID()

	var (
		coll    string
		record  any
		payload events.Payload
	)
	switch kind {
	case KindIdea:
		var r model.BusinessIdea
		if err := decode(body, &r); err != nil {
			return nil, err
		}
		if strings.TrimSpace(r.Title) == "" || strings.TrimSpace(r.Category) == "" {
			return nil, errors.Wrap(apperr.ErrInvalidInput, "title and category are required")
		}
		r.ID, r.OwnerID, r.Status, r.CreatedAt = id, callerID, "open", now
		coll, record, payload = store.BusinessIdeas, r, events.IdeaCreated{Idea: r}

	case KindProposal:
		var r model.InvestmentProposal
		if err := decode(body, &r); err != nil {
			return nil, err
		}
		if r.IdeaID == "" || r.Amount <= 0 {
			return nil, errors.Wrap(apperr.ErrInvalidInput, "ideaId and a positive amount are required")
		}
		var idea model.BusinessIdea
		if err := s.docs.Get(ctx, store.BusinessIdeas, r.IdeaID, &idea); err != nil {
			return nil, err
		}
		if r.Category == "" {
			r.Category = idea.Category
		}
		r.ID, r.InvestorID, r.Status, r.CreatedAt, r.UpdatedAt = id, callerID, model.ProposalPending, now, now
		coll, record, payload = store.InvestmentProposals, r, events.ProposalCreated{Proposal: r}

	case KindQuery:
		var r model.Query
		if err := decode(body, &r); err != nil {
			return nil, err
		}
		if strings.TrimSpace(r.Title) == "" {
			return nil, errors.Wrap(apperr.ErrInvalidInput, "title is required")
		}
		r.ID, r.OwnerID, r.Status, r.ResponseCount, r.CreatedAt = id, callerID, model.QueryOpen, 0, now
		coll, record, payload = store.Queries, r, events.QueryCreated{Query: r}

	case KindResponse:
		var r model.Response
		if err := decode(body, &r); err != nil {
			return nil, err
		}
		if r.QueryID == "" || strings.TrimSpace(r.Body) == "" {
			return nil, errors.Wrap(apperr.ErrInvalidInput, "queryId and body are required")
		}
		r.ID, r.AdvisorID, r.CreatedAt = id, callerID, now
		coll, record, payload = store.Responses, r, events.ResponseCreated{Response: r}

	case KindSuggestion:
		var r model.AdvisorSuggestion
		if err := decode(body, &r); err != nil {
			return nil, err
		}
		if strings.TrimSpace(r.Title) == "" {
			return nil, errors.Wrap(apperr.ErrInvalidInput, "title is required")
		}
		r.ID, r.AdvisorID, r.CreatedAt = id, callerID, now
		coll, record, payload = store.AdvisorSuggestions, r, events.SuggestionCreated{Suggestion: r}

	case KindLoanScheme:
		var r model.LoanScheme
		if err := decode(body, &r); err != nil {
			return nil, err
		}
		if strings.TrimSpace(r.Title) == "" || r.InterestRate < 0 {
			return nil, errors.Wrap(apperr.ErrInvalidInput, "title and a non-negative interestRate are required")
		}
		r.ID, r.BankerID, r.Status, r.CreatedAt = id, callerID, "active", now
		coll, record, payload = store.LoanSchemes, r, events.LoanSchemeCreated{Scheme: r}

	default:
		return nil, errors.Wrapf(apperr.ErrInvalidInput, "unknown record kind %q", kind)
	}

	if err := s.docs.Set(ctx, coll, id, record); err != nil {
		return nil, err
	}
	s.publish(ctx, events.New(callerID, payload))
	return record, nil
}

// proposal status changes: the idea owner decides a pending proposal, the
// investor may withdraw it.
var (
	ownerStatuses    = map[string]bool{model.ProposalAccepted: true, model.ProposalRejected: true}
	investorStatuses = map[string]bool{model.ProposalWithdrawn: true}
)

// UpdateProposalStatus moves a pending proposal to status and publishes
// the change.
func (s *Service) UpdateProposalStatus(ctx context.Context, callerID, proposalID, status string) (model.InvestmentProposal, error) {
	if _, err := s.caller(ctx, callerID); err != nil {
		return model.InvestmentProposal{}, err
	}
	var p model.InvestmentProposal
	if err := s.docs.Get(ctx, store.InvestmentProposals, proposalID, &p); err != nil {
		return model.InvestmentProposal{}, err
	}
	if p.Status != model.ProposalPending {
		return model.InvestmentProposal{}, errors.Wrapf(apperr.ErrInvalidInput, "proposal is already %s", p.Status)
	}
	switch {
	case investorStatuses[status]:
		if callerID != p.InvestorID {
			return model.InvestmentProposal{}, apperr.ErrForbidden
		}
	case ownerStatuses[status]:
		var idea model.BusinessIdea
		if err := s.docs.Get(ctx, store.BusinessIdeas, p.IdeaID, &idea); err != nil {
			return model.InvestmentProposal{}, err
		}
		if callerID != idea.OwnerID {
			return model.InvestmentProposal{}, apperr.ErrForbidden
		}
	default:
		return model.InvestmentProposal{}, errors.Wrapf(apperr.ErrInvalidInput, "invalid status %q", status)
	}

	prev := p.Status
	p.Status, p.UpdatedAt = status, s.now()
	if err := s.docs.Update(ctx, store.InvestmentProposals, p.ID, map[string]any{
		"status":    p.Status,
		"updatedAt": p.UpdatedAt,
	}); err != nil {
		return model.InvestmentProposal{}, err
	}
	s.publish(ctx, events.New(callerID, events.ProposalStatusChanged{Proposal: p, PreviousStatus: prev}))
	return p, nil
}

func (s *Service) publish(ctx context.Context, ev events.Event) {
	if err := s.pub.Publish(ctx, ev); err != nil {
		s.log.Error("event not published", zap.String("event", ev.ID), zap.String("kind", string(ev.Kind())), zap.Error(err))
	}
}

func (s *Service) caller(ctx context.Context, callerID string, allowed ...roles.Role) (model.User, error) {
	if callerID == "" {
		return model.User{}, apperr.ErrUnauthenticated
	}
	var u model.User
	if err := s.docs.Get(ctx, store.Users, callerID, &u); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return model.User{}, apperr.ErrUnauthenticated
		}
		return model.User{}, err
	}
	if len(allowed) == 0 {
		return u, nil
	}
	for _, r := range allowed {
		if roles.Role(u.Role) == r {
			return u, nil
		}
	}
	return u, apperr.ErrForbidden
}

func decode(body []byte, out any) error {
	if err := json.Unmarshal(body, out); err != nil {
		return errors.Wrap(apperr.ErrInvalidInput, err.Error())
	}
	return nil
}
