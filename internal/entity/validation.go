package entity

import "github.com/medbillai/medbill/constants"

// ValidationResult is the verdict of a single rule over a bill.
type ValidationResult struct {
	RuleID       string                  `json:"rule_id"`
	Category     string                  `json:"category"`
	Status       constants.VerdictStatus `json:"status"`
	Severity     constants.Severity      `json:"severity"`
	Message      string                  `json:"message"`
	AmountImpact float64                 `json:"amount_impact,omitempty"`
}

// ValidationSummary aggregates a verdict list for listings and dashboards.
type ValidationSummary struct {
	Total    int `json:"total"`
	Passed   int `json:"passed"`
	Failed   int `json:"failed"`
	Warnings int `json:"warnings"`
}

// Summarize counts verdicts by status.
func Summarize(results []ValidationResult) ValidationSummary {
	s := ValidationSummary{Total: len(results)}
	for _, r := range results {
		switch r.Status {
		case constants.VerdictPass:
			s.Passed++
		case constants.VerdictFail:
			s.Failed++
		case constants.VerdictWarn:
			s.Warnings++
		}
	}
	return s
}
