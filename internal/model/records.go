package model

import "time"

// Proposal statuses. A proposal starts pending and moves to exactly one of
// the terminal states.
const (
	ProposalPending   = "pending"
	ProposalAccepted  = "accepted"
	ProposalRejected  = "rejected"
	ProposalWithdrawn = "withdrawn"
)

// Query statuses.
const (
	QueryOpen     = "open"
	QueryAnswered = "answered"
)

// BusinessIdea is posted by a business person looking for investment.
// Budget is free text as entered by the owner (e.g. "₹800,00,000").
type BusinessIdea struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"ownerId"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	Budget      string    `json:"budget"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"createdAt"`
}

// InvestmentProposal is an investor's offer against a business idea.
type InvestmentProposal struct {
	ID         string    `json:"id"`
	IdeaID     string    `json:"ideaId"`
	InvestorID string    `json:"investorId"`
	Amount     float64   `json:"amount"`
	Category   string    `json:"category"`
	Message    string    `json:"message,omitempty"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Query is a question raised for business advisors.
type Query struct {
	ID            string    `json:"id"`
	OwnerID       string    `json:"ownerId"`
	Title         string    `json:"title"`
	Body          string    `json:"body"`
	Category      string    `json:"category"`
	Status        string    `json:"status"`
	ResponseCount int       `json:"responseCount"`
	CreatedAt     time.Time `json:"createdAt"`
}

// Response is an advisor's answer to a query.
type Response struct {
	ID        string    `json:"id"`
	QueryID   string    `json:"queryId"`
	AdvisorID string    `json:"advisorId"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"createdAt"`
}

// AdvisorSuggestion is addressed to a single user when TargetUserID is
// set, otherwise to every business person.
type AdvisorSuggestion struct {
	ID           string    `json:"id"`
	AdvisorID    string    `json:"advisorId"`
	TargetUserID string    `json:"targetUserId,omitempty"`
	Title        string    `json:"title"`
	Body         string    `json:"body"`
	Category     string    `json:"category"`
	CreatedAt    time.Time `json:"createdAt"`
}

// LoanScheme is published by a banker.
type LoanScheme struct {
	ID           string    `json:"id"`
	BankerID     string    `json:"bankerId"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	Category     string    `json:"category"`
	InterestRate float64   `json:"interestRate"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"createdAt"`
}
