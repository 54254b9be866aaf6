// Package events defines the domain events exchanged over the message
// broker. An Event is a closed tagged variant: Kind selects exactly one
// typed payload, and unknown kinds are rejected when decoding.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/venture-platform/internal/model"
)

// Kind tags an event.
type Kind string

const (
	KindIdeaCreated           Kind = "business_idea.created"
	KindProposalCreated       Kind = "investment_proposal.created"
	KindProposalStatusChanged Kind = "investment_proposal.status_changed"
	KindQueryCreated          Kind = "query.created"
	KindResponseCreated       Kind = "response.created"
	KindSuggestionCreated     Kind = "advisor_suggestion.created"
	KindLoanSchemeCreated     Kind = "loan_scheme.created"
)

// Payload is implemented only by the payload types of this package.
type Payload interface {
	Kind() Kind
	sealed()
}

type IdeaCreated struct {
	Idea model.BusinessIdea `json:"idea"`
}

type ProposalCreated struct {
	Proposal model.InvestmentProposal `json:"proposal"`
}

// ProposalStatusChanged carries the proposal after the change.
type ProposalStatusChanged struct {
	Proposal       model.InvestmentProposal `json:"proposal"`
	PreviousStatus string                   `json:"previousStatus"`
}

type QueryCreated struct {
	Query model.Query `json:"query"`
}

type ResponseCreated struct {
	Response model.Response `json:"response"`
}

type SuggestionCreated struct {
	Suggestion model.AdvisorSuggestion `json:"suggestion"`
}

type LoanSchemeCreated struct {
	Scheme model.LoanScheme `json:"scheme"`
}

func (IdeaCreated) Kind() Kind           { return KindIdeaCreated }
func (ProposalCreated) Kind() Kind       { return KindProposalCreated }
func (ProposalStatusChanged) Kind() Kind { return KindProposalStatusChanged }
func (QueryCreated) Kind() Kind          { return KindQueryCreated }
func (ResponseCreated) Kind() Kind       { return KindResponseCreated }
func (SuggestionCreated) Kind() Kind     { return KindSuggestionCreated }
func (LoanSchemeCreated) Kind() Kind     { return KindLoanSchemeCreated }

func (IdeaCreated) sealed()           {}
func (ProposalCreated) sealed()       {}
func (ProposalStatusChanged) sealed() {}
func (QueryCreated) sealed()          {}
func (ResponseCreated) sealed()       {}
func (SuggestionCreated) sealed()     {}
func (LoanSchemeCreated) sealed()     {}

// Event is one domain event. ID identifies the delivery for audit
// purposes only; handlers do not deduplicate on it.
type Event struct {
	ID         string
	ActorID    string
	OccurredAt time.Time
	Payload    Payload
}

// New wraps a payload in an Event with a fresh id.
func New(actorID string, p Payload) Event {
	return Event{ID: uuid.NewString(), ActorID: actorID, OccurredAt: time.Now().UTC(), Payload: p}
}

// Kind returns the payload's tag, or "" for an empty event.
func (e Event) Kind() Kind {
	if e.Payload == nil {
		return ""
	}
	return e.Payload.Kind()
}

type envelope struct {
	ID         string          `json:"id"`
	Kind       Kind            `json:"kind"`
	ActorID    string          `json:"actorId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Payload    json.RawMessage `json:"payload"`
}

func (e Event) MarshalJSON() ([]byte, error) {
	if e.Payload == nil {
		return nil, fmt.Errorf("event %s has no payload", e.ID)
	}
	body, err := json.Marshal(e.Payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelope{ID: e.ID, Kind: e.Payload.Kind(), ActorID: e.ActorID, OccurredAt: e.OccurredAt, Payload: body})
}

func (e *Event) UnmarshalJSON(data []byte) error {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}
	var p Payload
	var err error
	switch env.Kind {
	case KindIdeaCreated:
		p, err = decode[IdeaCreated](env.Payload)
	case KindProposalCreated:
		p, err = decode[ProposalCreated](env.Payload)
	case KindProposalStatusChanged:
		p, err = decode[ProposalStatusChanged](env.Payload)
	case KindQueryCreated:
		p, err = decode[QueryCreated](env.Payload)
	case KindResponseCreated:
		p, err = decode[ResponseCreated](env.Payload)
	case KindSuggestionCreated:
		p, err = decode[SuggestionCreated](env.Payload)
	case KindLoanSchemeCreated:
		p, err = decode[LoanSchemeCreated](env.Payload)
	default:
		return fmt.Errorf("unknown event kind %q", env.Kind)
	}
	if err != nil {
		return fmt.Errorf("decode %s payload: %w", env.Kind, err)
	}
	*e = Event{ID: env.ID, ActorID: env.ActorID, OccurredAt: env.OccurredAt, Payload: p}
	return nil
}

func decode[T Payload](raw json.RawMessage) (Payload, error) {
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// Handler consumes events.
type Handler interface {
	Handle(ctx context.Context, ev Event) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, ev Event) error

func (f HandlerFunc) Handle(ctx context.Context, ev Event) error { return f(ctx, ev) }

// Publisher emits events.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Inline delivers events synchronously to a handler. It is used when no
// broker is configured and in tests.
type Inline struct{ Handler Handler }

func (p Inline) Publish(ctx context.Context, ev Event) error { return p.Handler.Handle(ctx, ev) }
