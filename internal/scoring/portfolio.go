package scoring

import (
	"sort"

	"github.com/iliyamo/venture-platform/internal/model"
)

// diversificationBaseline is the number of categories that earns a full
// diversification score.
const diversificationBaseline = 5

const (
	noteEmpty         = "Start investing to build your portfolio"
	noteWell          = "Well diversified portfolio"
	noteGood          = "Good diversification, consider adding more categories"
	noteDiversifyMore = "Consider diversifying across more categories"
)

// Aggregate computes portfolio metrics. An empty slice yields zero metrics
// and never fails.
//
// PerformanceByCategory is NOT an average weighted by amount: each
// investment's ROI is folded in as avg = (avg + roi) / 2, in input order.
// That makes it order-sensitive and biased towards the latest investment.
// Totals, ROI and diversification do not depend on order.
func Aggregate(investments []model.Investment) model.PortfolioMetrics {
	m := model.PortfolioMetrics{PerformanceByCategory: map[string]float64{}}
	if len(investments) == 0 {
		m.DiversificationNote = noteEmpty
		return m
	}

	for _, inv := range investments {
		m.TotalInvested += inv.Amount
		m.TotalValue += inv.CurrentValue

		roi := 0.0
		if inv.Amount > 0 {
			roi = (inv.CurrentValue/inv.Amount - 1) * 100
		}
		if prev, ok := m.PerformanceByCategory[inv.Category]; ok {
			m.PerformanceByCategory[inv.Category] = (prev + roi) / 2
		} else {
			m.PerformanceByCategory[inv.Category] = roi
		}
	}
	if m.TotalInvested > 0 {
		m.ROI = (m.TotalValue/m.TotalInvested - 1) * 100
	}

	cats := make([]string, 0, len(m.PerformanceByCategory))
	for c := range m.PerformanceByCategory {
		cats = append(cats, c)
	}
	sort.Strings(cats)
	m.BestCategory, m.WorstCategory = cats[0], cats[0]
	for _, c := range cats[1:] {
		if m.PerformanceByCategory[c] > m.PerformanceByCategory[m.BestCategory] {
			m.BestCategory = c
		}
		if m.PerformanceByCategory[c] < m.PerformanceByCategory[m.WorstCategory] {
			m.WorstCategory = c
		}
	}

	m.DiversificationScore = float64(len(cats)) * 100 / diversificationBaseline
	if m.DiversificationScore > 100 {
		m.DiversificationScore = 100
	}
	m.DiversificationNote = DiversificationNote(m.DiversificationScore)
	return m
}

// DiversificationNote returns the textual band for a diversification score.
func DiversificationNote(score float64) string {
	switch {
	case score >= 80:
		return noteWell
	case score >= 60:
		return noteGood
	}
	return noteDiversifyMore
}
