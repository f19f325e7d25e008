package report

import (
	"fmt"
	"math"
	"strings"

	"github.com/taljindergill78/FSE570/internal/entities"
)

// RiskScores is the mean confidence per risk category and overall. Higher
// confidence in a category's findings means a higher score for it.
type RiskScores struct {
	Overall        float64                           `json:"overall"`
	ByRiskCategory map[entities.RiskCategory]float64 `json:"by_risk_category"`
	FindingCount   int                               `json:"finding_count"`
}

// ComputeRiskScores scores findings. Categories outside the fixed order count
// toward the overall mean only. Scores are rounded to four decimal places.
func ComputeRiskScores(findings []entities.Evidence) RiskScores {
	scores := RiskScores{ByRiskCategory: map[entities.RiskCategory]float64{}}
	if len(findings) == 0 {
		return scores
	}

	sums := make(map[entities.RiskCategory]float64)
	counts := make(map[entities.RiskCategory]int)
	var total float64
	for _, e := range findings {
		sums[e.RiskCategory] += e.Confidence
		counts[e.RiskCategory]++
		total += e.Confidence
	}
	for _, cat := range entities.RiskCategories {
		if counts[cat] > 0 {
			scores.ByRiskCategory[cat] = round4(sums[cat] / float64(counts[cat]))
		}
	}
	scores.Overall = round4(total / float64(len(findings)))
	scores.FindingCount = len(findings)
	return scores
}

// FormatDashboard renders scores for a terminal.
func FormatDashboard(scores RiskScores) string {
	lines := []string{
		"Risk Dashboard",
		"---------------",
		fmt.Sprintf("Overall score: %.2f", scores.Overall),
		fmt.Sprintf("Finding count: %d", scores.FindingCount),
		"",
	}
	for _, cat := range entities.RiskCategories {
		if v, ok := scores.ByRiskCategory[cat]; ok {
			lines = append(lines, fmt.Sprintf("  %s: %.2f", cat, v))
		}
	}
	return strings.Join(lines, "\n")
}

func round4(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}
