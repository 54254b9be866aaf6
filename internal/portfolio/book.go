// Package portfolio persists investor portfolios at portfolios/<investorId>
// and keeps their metrics in step with the investment list.
package portfolio

import (
	"context"
	"errors"
	"time"

	"github.com/iliyamo/venture-platform/internal/apperr"
	"github.com/iliyamo/venture-platform/internal/model"
	"github.com/iliyamo/venture-platform/internal/scoring"
	"github.com/iliyamo/venture-platform/internal/store"
)

// Book reads and writes portfolio documents.
type Book struct {
	docs store.DocumentStore
	now  func() time.Time
}

func NewBook(docs store.DocumentStore) *Book {
	return &Book{docs: docs, now: func() time.Time { return time.Now().UTC() }}
}

// Load returns the investor's portfolio. A missing document yields an
// empty portfolio, not an error.
func (b *Book) Load(ctx context.Context, investorID string) (model.Portfolio, error) {
	var p model.Portfolio
	err := b.docs.Get(ctx, store.Portfolios, investorID, &p)
	if errors.Is(err, apperr.ErrNotFound) {
		return model.Portfolio{ID: investorID, InvestorID: investorID, Investments: []model.Investment{}}, nil
	}
	if err != nil {
		return model.Portfolio{}, err
	}
	return p, nil
}

// Recompute aggregates the stored investments and writes the metrics back.
func (b *Book) Recompute(ctx context.Context, investorID string) (model.PortfolioMetrics, error) {
	p, err := b.Load(ctx, investorID)
	if err != nil {
		return model.PortfolioMetrics{}, err
	}
	p.Metrics = scoring.Aggregate(p.Investments)
	p.UpdatedAt = b.now()
	if err := b.docs.Set(ctx, store.Portfolios, investorID, p); err != nil {
		return model.PortfolioMetrics{}, err
	}
	return p.Metrics, nil
}

// Accept appends an active investment for an accepted proposal, valued at
// its amount, and recomputes the metrics. Accepting the same proposal
// twice appends twice.
func (b *Book) Accept(ctx context.Context, prop model.InvestmentProposal) (model.PortfolioMetrics, error) {
	p, err := b.Load(ctx, prop.InvestorID)
	if err != nil {
		return model.PortfolioMetrics{}, err
	}
	now := b.now()
	p.Investments = append(p.Investments, model.Investment{
		ProposalID:   prop.ID,
		IdeaID:       prop.IdeaID,
		InvestorID:   prop.InvestorID,
		Category:     prop.Category,
		Amount:       prop.Amount,
		CurrentValue: prop.Amount,
		Status:       "active",
		AcceptedAt:   now,
	})
	p.Metrics = scoring.Aggregate(p.Investments)
	p.UpdatedAt = now
	if err := b.docs.Set(ctx, store.Portfolios, prop.InvestorID, p); err != nil {
		return model.PortfolioMetrics{}, err
	}
	return p.Metrics, nil
}
