package rules

import (
	"log/slog"
	"strings"

	"github.com/medbillai/medbill/constants"
	"github.com/medbillai/medbill/internal/entity"
	"github.com/medbillai/medbill/internal/refdata"
)

// Reference is the immutable context a rule evaluates against: the loaded
// reference snapshot plus the bill keys already in the store. Assembled once
// per evaluation; rules never reach past it.
type Reference struct {
	Data          *refdata.Snapshot
	KnownBillKeys map[string]struct{}
}

// BillKey is the duplicate-detection key: bill number + hospital, normalized.
// The repository and the fraud rule must agree on this shape.
func BillKey(billNumber, hospitalName string) string {
	n := strings.ToUpper(strings.Join(strings.Fields(billNumber), ""))
	h := strings.ToLower(strings.Join(strings.Fields(hospitalName), " "))
	return n + "|" + h
}

// Rule is one audit check. Eval returns a single verdict; the engine stamps
// the ID and category.
type Rule struct {
	ID          string
	Category    string
	Description string
	Eval        func(b *entity.Bill, ref Reference) entity.ValidationResult
}

// Evaluate runs the full catalog against a bill, in catalog order, one
// result per rule. A rule that panics on a malformed bill is recovered and
// omitted; the rest of the catalog still runs.
func Evaluate(bill *entity.Bill, ref Reference, logger *slog.Logger) []entity.ValidationResult {
	if logger == nil {
		logger = slog.Default()
	}

	results := make([]entity.ValidationResult, 0, len(Catalog))
	for _, rule := range Catalog {
		res, ok := evalOne(rule, bill, ref, logger)
		if !ok {
			continue
		}
		res.RuleID = rule.ID
		res.Category = rule.Category
		results = append(results, res)
	}
	return results
}

func evalOne(rule Rule, bill *entity.Bill, ref Reference, logger *slog.Logger) (res entity.ValidationResult, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("rules.eval.panic", "rule_id", rule.ID, "panic", r)
			ok = false
		}
	}()
	return rule.Eval(bill, ref), true
}

func pass(msg string) entity.ValidationResult {
	return entity.ValidationResult{
		Status:   constants.VerdictPass,
		Severity: constants.SeverityInfo,
		Message:  msg,
	}
}

func warn(msg string) entity.ValidationResult {
	return entity.ValidationResult{
		Status:   constants.VerdictWarn,
		Severity: constants.SeverityWarning,
		Message:  msg,
	}
}

func fail(msg string, amountImpact float64) entity.ValidationResult {
	return entity.ValidationResult{
		Status:       constants.VerdictFail,
		Severity:     constants.SeverityError,
		Message:      msg,
		AmountImpact: amountImpact,
	}
}
