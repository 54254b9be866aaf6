// Package fanout turns domain events into per-recipient notifications and
// best-effort pushes.
package fanout

import (
	"fmt"
	"strings"

	"github.com/iliyamo/venture-platform/internal/events"
	"github.com/iliyamo/venture-platform/internal/model"
	"github.com/iliyamo/venture-platform/internal/push"
	"github.com/iliyamo/venture-platform/internal/roles"
)

// Recipient is one notification target.
type Recipient struct {
	UserID      string
	DeviceToken string
}

// Snapshot is the directory state an audience is resolved against: users
// grouped by role, individually loaded users, and the owner ids of records
// an event refers to. The pipeline fills only what the event kind needs.
type Snapshot struct {
	ByRole     map[roles.Role][]model.User
	Users      map[string]model.User
	IdeaOwner  string
	QueryOwner string
}

func (s Snapshot) one(id string) []Recipient {
	if id == "" {
		return nil
	}
	u, ok := s.Users[id]
	if !ok {
		return []Recipient{{UserID: id}}
	}
	return []Recipient{{UserID: u.ID, DeviceToken: u.DeviceToken}}
}

func (s Snapshot) role(r roles.Role, keep func(model.User) bool) []Recipient {
	var out []Recipient
	for _, u := range s.ByRole[r] {
		if keep == nil || keep(u) {
			out = append(out, Recipient{UserID: u.ID, DeviceToken: u.DeviceToken})
		}
	}
	return out
}

// Audience computes the recipients of ev. It is a pure function of its
// inputs. The acting user is not excluded; duplicate user ids are dropped
// keeping the first occurrence.
func Audience(ev events.Event, s Snapshot) []Recipient {
	var list []Recipient
	switch p := ev.Payload.(type) {
	case events.IdeaCreated:
		list = s.role(roles.Investor, func(u model.User) bool {
			return prefers(u, p.Idea.Category)
		})
	case events.ProposalCreated:
		list = s.one(s.IdeaOwner)
	case events.ProposalStatusChanged:
		list = s.one(p.Proposal.InvestorID)
	case events.QueryCreated:
		list = s.role(roles.BusinessAdvisor, nil)
	case events.ResponseCreated:
		list = s.one(s.QueryOwner)
	case events.SuggestionCreated:
		if p.Suggestion.TargetUserID != "" {
			list = s.one(p.Suggestion.TargetUserID)
		} else {
			list = s.role(roles.BusinessPerson, nil)
		}
	case events.LoanSchemeCreated:
		list = append(s.role(roles.BusinessPerson, nil), s.role(roles.Investor, nil)...)
	}
	return dedupe(list)
}

// prefers reports whether an investor wants ideas in category. An empty
// preference list accepts everything. Categories compare case-insensitively.
func prefers(u model.User, category string) bool {
	if len(u.PreferredCategories) == 0 {
		return true
	}
	category = strings.TrimSpace(category)
	for _, c := range u.PreferredCategories {
		if strings.EqualFold(strings.TrimSpace(c), category) {
			return true
		}
	}
	return false
}

func dedupe(list []Recipient) []Recipient {
	seen := make(map[string]struct{}, len(list))
	out := make([]Recipient, 0, len(list))
	for _, r := range list {
		if _, ok := seen[r.UserID]; ok {
			continue
		}
		seen[r.UserID] = struct{}{}
		out = append(out, r)
	}
	return out
}

// Compose builds the notification type and message for ev.
func Compose(ev events.Event) (string, push.Message) {
	switch p := ev.Payload.(type) {
	case events.IdeaCreated:
		return "new_business_idea", push.Message{
			Title: "New Business Idea",
			Body:  fmt.Sprintf("%s in %s", p.Idea.Title, p.Idea.Category),
			Data:  map[string]string{"ideaId": p.Idea.ID, "category": p.Idea.Category},
		}
	case events.ProposalCreated:
		return "new_investment_proposal", push.Message{
			Title: "New Investment Proposal",
			Body:  fmt.Sprintf("You received a proposal of %.2f", p.Proposal.Amount),
			Data:  map[string]string{"proposalId": p.Proposal.ID, "ideaId": p.Proposal.IdeaID},
		}
	case events.ProposalStatusChanged:
		return "proposal_status", push.Message{
			Title: "Proposal Updated",
			Body:  fmt.Sprintf("Your proposal is now %s", p.Proposal.Status),
			Data: map[string]string{
				"proposalId":     p.Proposal.ID,
				"status":         p.Proposal.Status,
				"previousStatus": p.PreviousStatus,
			},
		}
	case events.QueryCreated:
		return "new_query", push.Message{
			Title: "New Query",
			Body:  p.Query.Title,
			Data:  map[string]string{"queryId": p.Query.ID, "category": p.Query.Category},
		}
	case events.ResponseCreated:
		return "query_response", push.Message{
			Title: "New Response",
			Body:  "An advisor answered your query",
			Data:  map[string]string{"queryId": p.Response.QueryID, "responseId": p.Response.ID},
		}
	case events.SuggestionCreated:
		return "advisor_suggestion", push.Message{
			Title: "New Suggestion",
			Body:  p.Suggestion.Title,
			Data:  map[string]string{"suggestionId": p.Suggestion.ID, "category": p.Suggestion.Category},
		}
	case events.LoanSchemeCreated:
		return "new_loan_scheme", push.Message{
			Title: "New Loan Scheme",
			Body:  p.Scheme.Title,
			Data:  map[string]string{"schemeId": p.Scheme.ID, "category": p.Scheme.Category},
		}
	}
	return "unknown", push.Message{Title: "Notification"}
}
