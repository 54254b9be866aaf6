// Package scoring turns domain records into deterministic scores. Every
// function here is pure: no I/O, no clock, no randomness. Persisting the
// results is the caller's job.
package scoring

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/iliyamo/venture-platform/internal/model"
)

// Risk levels, from best to worst.
const (
	LevelLow      = "LOW"
	LevelMedium   = "MEDIUM"
	LevelHigh     = "HIGH"
	LevelVeryHigh = "VERY_HIGH"
)

// Factor weights in percent. Integer weights keep the weighted sum exact,
// so a score of x.5 always rounds up.
const (
	weightMarket      = 20
	weightTeam        = 25
	weightFinancial   = 30
	weightTechnology  = 15
	weightCompetition = 10
)

// Weights returns the factor weights as fractions. They sum to 1.
func Weights() map[string]float64 {
	return map[string]float64{
		"market":      weightMarket / 100.0,
		"team":        weightTeam / 100.0,
		"financial":   weightFinancial / 100.0,
		"technology":  weightTechnology / 100.0,
		"competition": weightCompetition / 100.0,
	}
}

var (
	highGrowthCategories = []string{"technology", "healthcare", "fintech", "sustainability"}
	highCompetitionCats  = []string{"e-commerce", "food delivery", "taxi"}
	complexTechKeywords  = []string{"ai", "blockchain", "iot", "machine learning", "ar", "vr"}
	levelRecommendations = map[string]string{
		LevelLow:      "Low risk investment. Suitable for standard lending terms.",
		LevelMedium:   "Moderate risk. Consider additional collateral or guarantees.",
		LevelHigh:     "High risk. Require detailed business plan review and stronger collateral.",
		LevelVeryHigh: "Very high risk. Not recommended without significant risk mitigation.",
	}
)

// Proposal is the scoring view of an investment proposal and its idea.
// Budget is the free-text budget of the idea; Amount is used when the
// text carries no digits.
type Proposal struct {
	Category    string
	Description string
	Budget      string
	Amount      float64
}

// OwnerProfile is the scoring view of the idea owner.
type OwnerProfile struct {
	ExperienceYears float64
	TeamSize        int
}

// RiskResult is the outcome of Score.
type RiskResult struct {
	Score           int
	Weighted        float64
	Level           string
	Factors         model.RiskFactors
	Recommendations []string
}

// Score computes the weighted risk score of a proposal.
func Score(p Proposal, owner OwnerProfile) RiskResult {
	f := model.RiskFactors{
		Market:      MarketFactor(p.Category),
		Team:        TeamFactor(owner),
		Financial:   FinancialFactor(RequestedAmount(p)),
		Technology:  TechnologyFactor(p.Description),
		Competition: CompetitionFactor(p.Category),
	}
	sum := f.Market*weightMarket +
		f.Team*weightTeam +
		f.Financial*weightFinancial +
		f.Technology*weightTechnology +
		f.Competition*weightCompetition
	// sum is in hundredths; all terms are non-negative so +50 rounds half up
	score := (sum + 50) / 100
	level := Level(score)
	return RiskResult{
		Score:           score,
		Weighted:        float64(sum) / 100,
		Level:           level,
		Factors:         f,
		Recommendations: []string{levelRecommendations[level]},
	}
}

// Level maps a final score onto its band.
func Level(score int) string {
	switch {
	case score >= 80:
		return LevelLow
	case score >= 60:
		return LevelMedium
	case score >= 40:
		return LevelHigh
	}
	return LevelVeryHigh
}

// MarketFactor favours high-growth categories.
func MarketFactor(category string) int {
	if inSet(category, highGrowthCategories) {
		return 75
	}
	return 50
}

// TeamFactor rewards experience and team size, capped at 100.
func TeamFactor(o OwnerProfile) int {
	s := 50
	switch {
	case o.ExperienceYears > 5:
		s += 20
	case o.ExperienceYears > 2:
		s += 10
	}
	switch {
	case o.TeamSize >= 3:
		s += 15
	case o.TeamSize >= 2:
		s += 10
	}
	if s > 100 {
		s = 100
	}
	return s
}

// FinancialFactor is an inverse step function of the requested amount.
func FinancialFactor(amount float64) int {
	switch {
	case amount > 5_000_000:
		return 40
	case amount > 1_000_000:
		return 60
	case amount > 500_000:
		return 75
	}
	return 85
}

// TechnologyFactor lowers the score when the description mentions a
// complex technology. Matching is by plain substring, so short keywords
// such as "ar" also match inside longer words.
func TechnologyFactor(description string) int {
	d := strings.ToLower(description)
	for _, kw := range complexTechKeywords {
		if strings.Contains(d, kw) {
			return 60
		}
	}
	return 75
}

// CompetitionFactor penalises crowded categories.
func CompetitionFactor(category string) int {
	if inSet(category, highCompetitionCats) {
		return 45
	}
	return 70
}

// RequestedAmount reads the budget text, falling back to p.Amount.
func RequestedAmount(p Proposal) float64 {
	if v := ParseBudget(p.Budget); v > 0 {
		return v
	}
	return p.Amount
}

// ParseBudget keeps only the digits of a free-text budget, so grouping
// styles and currency symbols are ignored: "₹800,00,000" is 80000000.
// Decimal points are dropped too.
func ParseBudget(text string) float64 {
	var b strings.Builder
	for _, r := range text {
		if unicode.IsDigit(r) && r < unicode.MaxASCII {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return 0
	}
	v, err := strconv.ParseFloat(b.String(), 64)
	if err != nil {
		return 0
	}
	return v
}

func inSet(v string, set []string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	for _, s := range set {
		if v == s {
			return true
		}
	}
	return false
}
