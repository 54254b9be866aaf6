package model

import "time"

// Investment is one accepted proposal held in an investor's portfolio.
// Amount never changes once accepted; CurrentValue and Status are updated
// from outside the platform engine.
type Investment struct {
	ProposalID   string    `json:"proposalId"`
	IdeaID       string    `json:"ideaId"`
	InvestorID   string    `json:"investorId"`
	Category     string    `json:"category"`
	Amount       float64   `json:"amount"`
	CurrentValue float64   `json:"currentValue"`
	Status       string    `json:"status"`
	AcceptedAt   time.Time `json:"acceptedAt"`
}

// PortfolioMetrics is the aggregate computed by the scoring engine.
type PortfolioMetrics struct {
	TotalInvested         float64            `json:"totalInvested"`
	TotalValue            float64            `json:"totalValue"`
	ROI                   float64            `json:"roi"`
	PerformanceByCategory map[string]float64 `json:"performanceByCategory"`
	BestCategory          string             `json:"bestCategory"`
	WorstCategory         string             `json:"worstCategory"`
	DiversificationScore  float64            `json:"diversificationScore"`
	DiversificationNote   string             `json:"diversificationNote"`
}

// Portfolio is stored in the `portfolios` collection keyed by investor id.
type Portfolio struct {
	ID          string           `json:"id"`
	InvestorID  string           `json:"investorId"`
	Investments []Investment     `json:"investments"`
	Metrics     PortfolioMetrics `json:"metrics"`
	UpdatedAt   time.Time        `json:"updatedAt"`
}

// RiskFactors holds the five factor scores, each within [0,100].
type RiskFactors struct {
	Market      int `json:"market"`
	Team        int `json:"team"`
	Financial   int `json:"financial"`
	Technology  int `json:"technology"`
	Competition int `json:"competition"`
}

// RiskAssessment is written once per assessment call. Several assessments
// may exist for one proposal; the one with the latest CreatedAt wins.
type RiskAssessment struct {
	ID              string      `json:"id"`
	ProposalID      string      `json:"proposalId"`
	AssessorID      string      `json:"assessorId"`
	Score           int         `json:"score"`
	Level           string      `json:"level"`
	Factors         RiskFactors `json:"factors"`
	Recommendations []string    `json:"recommendations"`
	CreatedAt       time.Time   `json:"createdAt"`
}
