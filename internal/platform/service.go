// Package platform implements the caller-facing operations that sit on top
// of scoring: risk assessments, portfolio metrics and platform analytics.
// Every operation re-reads the caller's stored role; token claims are
// never trusted for authorization here.
package platform

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/iliyamo/venture-platform/internal/apperr"
	"github.com/iliyamo/venture-platform/internal/audit"
	"github.com/iliyamo/venture-platform/internal/model"
	"github.com/iliyamo/venture-platform/internal/portfolio"
	"github.com/iliyamo/venture-platform/internal/roles"
	"github.com/iliyamo/venture-platform/internal/scoring"
	"github.com/iliyamo/venture-platform/internal/store"
)

var tracer = otel.Tracer("platform")

type Service struct {
	docs  store.DocumentStore
	audit *audit.Writer
	book  *portfolio.Book
	log   *zap.Logger
	now   func() time.Time
}

func NewService(docs store.DocumentStore, auditor *audit.Writer, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		docs:  docs,
		audit: auditor,
		book:  portfolio.NewBook(docs),
		log:   log.Named("platform"),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// authorize loads the caller and checks the stored role against allowed.
// A refusal is audit-logged under action.
func (s *Service) authorize(ctx context.Context, callerID, action string, allowed ...roles.Role) (model.User, error) {
	if callerID == "" {
		return model.User{}, apperr.ErrUnauthenticated
	}
	var u model.User
	if err := s.docs.Get(ctx, store.Users, callerID, &u); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			err = apperr.ErrUnauthenticated
		}
		return model.User{}, err
	}
	for _, r := range allowed {
		if roles.Role(u.Role) == r {
			return u, nil
		}
	}
	_ = s.audit.Failure(ctx, callerID, audit.AccessDenied, apperr.ErrForbidden, map[string]any{
		"operation": action,
		"role":      u.Role,
	})
	return u, apperr.ErrForbidden
}

// GenerateRiskAssessment scores a proposal for a banker and stores the
// result. Earlier assessments for the proposal are kept.
func (s *Service) GenerateRiskAssessment(ctx context.Context, callerID, proposalID string) (model.RiskAssessment, error) {
	ctx, span := tracer.Start(ctx, "Platform.Service.GenerateRiskAssessment")
	defer span.End()

	if _, err := s.authorize(ctx, callerID, audit.RiskAssessment, roles.Banker); err != nil {
		return model.RiskAssessment{}, err
	}

	var prop model.InvestmentProposal
	if err := s.docs.Get(ctx, store.InvestmentProposals, proposalID, &prop); err != nil {
		span.RecordError(err)
		return model.RiskAssessment{}, err
	}
	var idea model.BusinessIdea
	if err := s.docs.Get(ctx, store.BusinessIdeas, prop.IdeaID, &idea); err != nil {
		span.RecordError(err)
		return model.RiskAssessment{}, errors.Wrap(err, "load idea")
	}
	// a missing owner profile scores as no experience and no team
	var owner model.User
	if err := s.docs.Get(ctx, store.Users, idea.OwnerID, &owner); err != nil && !errors.Is(err, apperr.ErrNotFound) {
		return model.RiskAssessment{}, err
	}

	category := idea.Category
	if category == "" {
		category = prop.Category
	}
	res := scoring.Score(
		scoring.Proposal{Category: category, Description: idea.Description, Budget: idea.Budget, Amount: prop.Amount},
		scoring.OwnerProfile{ExperienceYears: owner.ExperienceYears, TeamSize: owner.TeamSize},
	)
	ra := model.RiskAssessment{
		ID:              store.NewID(),
		ProposalID:      proposalID,
		AssessorID:      callerID,
		Score:           res.Score,
		Level:           res.Level,
		Factors:         res.Factors,
		Recommendations: res.Recommendations,
		CreatedAt:       s.now(),
	}
	if err := s.docs.Set(ctx, store.RiskAssessments, ra.ID, ra); err != nil {
		span.RecordError(err)
		return model.RiskAssessment{}, err
	}
	_ = s.audit.Record(ctx, callerID, audit.RiskAssessment, map[string]any{
		"proposalId":   proposalID,
		"assessmentId": ra.ID,
		"score":        ra.Score,
		"level":        ra.Level,
	})
	s.log.Info("risk assessed", zap.String("proposal", proposalID), zap.Int("score", ra.Score), zap.String("level", ra.Level))
	return ra, nil
}

// LatestRiskAssessment returns the newest assessment for a proposal.
// Bankers and admins may read it.
func (s *Service) LatestRiskAssessment(ctx context.Context, callerID, proposalID string) (model.RiskAssessment, error) {
	if _, err := s.authorize(ctx, callerID, "read_risk_assessment", roles.Banker, roles.Admin); err != nil {
		return model.RiskAssessment{}, err
	}
	docs, err := s.docs.Query(ctx, store.RiskAssessments, store.Where("proposalId", store.OpEq, proposalID))
	if err != nil {
		return model.RiskAssessment{}, err
	}
	var latest model.RiskAssessment
	found := false
	for _, d := range docs {
		var ra model.RiskAssessment
		if err := d.Decode(&ra); err != nil {
			return model.RiskAssessment{}, errors.Wrap(err, "decode assessment")
		}
		if !found || ra.CreatedAt.After(latest.CreatedAt) {
			latest, found = ra, true
		}
	}
	if !found {
		return model.RiskAssessment{}, errors.Wrapf(apperr.ErrNotFound, "risk assessment for %s", proposalID)
	}
	return latest, nil
}

// UpdatePortfolioMetrics recomputes an investor's own portfolio metrics.
func (s *Service) UpdatePortfolioMetrics(ctx context.Context, callerID, investorID string) (model.PortfolioMetrics, error) {
	ctx, span := tracer.Start(ctx, "Platform.Service.UpdatePortfolioMetrics")
	defer span.End()

	if _, err := s.authorize(ctx, callerID, audit.PortfolioUpdate, roles.Investor); err != nil {
		return model.PortfolioMetrics{}, err
	}
	if callerID != investorID {
		_ = s.audit.Failure(ctx, callerID, audit.AccessDenied, apperr.ErrForbidden, map[string]any{
			"operation":  audit.PortfolioUpdate,
			"investorId": investorID,
		})
		return model.PortfolioMetrics{}, apperr.ErrForbidden
	}
	m, err := s.book.Recompute(ctx, investorID)
	if err != nil {
		span.RecordError(err)
		return model.PortfolioMetrics{}, err
	}
	_ = s.audit.Record(ctx, callerID, audit.PortfolioUpdate, map[string]any{
		"totalValue": m.TotalValue,
		"roi":        m.ROI,
	})
	return m, nil
}

// Analytics is a read-only snapshot of platform counts.
type Analytics struct {
	UsersByRole         map[string]int `json:"usersByRole"`
	TotalUsers          int            `json:"totalUsers"`
	BusinessIdeas       int            `json:"businessIdeas"`
	ProposalsByStatus   map[string]int `json:"proposalsByStatus"`
	OpenQueries         int            `json:"openQueries"`
	AnsweredQueries     int            `json:"answeredQueries"`
	LoanSchemes         int            `json:"loanSchemes"`
	Notifications       int            `json:"notifications"`
	UnreadNotifications int            `json:"unreadNotifications"`
	RiskAssessments     int            `json:"riskAssessments"`
	GeneratedAt         time.Time      `json:"generatedAt"`
}

// GetPlatformAnalytics counts records across collections. Admin only.
func (s *Service) GetPlatformAnalytics(ctx context.Context, callerID string) (Analytics, error) {
	ctx, span := tracer.Start(ctx, "Platform.Service.GetPlatformAnalytics")
	defer span.End()

	if _, err := s.authorize(ctx, callerID, "platform_analytics", roles.Admin); err != nil {
		return Analytics{}, err
	}
	out := Analytics{UsersByRole: map[string]int{}, ProposalsByStatus: map[string]int{}, GeneratedAt: s.now()}

	type tally struct {
		coll  string
		field string
		into  func(key string)
	}
	tallies := []tally{
		{store.Users, "role", func(k string) { out.UsersByRole[k]++; out.TotalUsers++ }},
		{store.BusinessIdeas, "", func(string) { out.BusinessIdeas++ }},
		{store.InvestmentProposals, "status", func(k string) { out.ProposalsByStatus[k]++ }},
		{store.Queries, "status", func(k string) {
			if k == model.QueryAnswered {
				out.AnsweredQueries++
			} else {
				out.OpenQueries++
			}
		}},
		{store.LoanSchemes, "", func(string) { out.LoanSchemes++ }},
		{store.Notifications, "read", func(k string) {
			out.Notifications++
			if k != "true" {
				out.UnreadNotifications++
			}
		}},
		{store.RiskAssessments, "", func(string) { out.RiskAssessments++ }},
	}
	for _, t := range tallies {
		docs, err := s.docs.Query(ctx, t.coll)
		if err != nil {
			span.RecordError(err)
			return Analytics{}, errors.Wrapf(err, "count %s", t.coll)
		}
		for _, d := range docs {
			t.into(fieldString(d, t.field))
		}
	}
	return out, nil
}
