package refdata

import (
	"strings"

	"github.com/medbillai/medbill/constants"
)

// Rate is one tariff row. NABH-accredited hospitals get the higher ceiling.
type Rate struct {
	ProcedureName string            `json:"procedure_name"`
	Category      string            `json:"category,omitempty"`
	NonNABHRate   float64           `json:"non_nabh_rate"`
	NABHRate      float64           `json:"nabh_rate"`
	SchemeTag     constants.RateTag `json:"scheme_tag"`
}

// CeilingFor picks the applicable ceiling for the hospital's accreditation.
func (r Rate) CeilingFor(nabh bool) float64 {
	if nabh && r.NABHRate > 0 {
		return r.NABHRate
	}
	return r.NonNABHRate
}

// Hospital is one empanelment registry row.
type Hospital struct {
	Name            string `json:"name"`
	City            string `json:"city,omitempty"`
	State           string `json:"state,omitempty"`
	NABHStatus      bool   `json:"nabh_status"`
	EmpanelledFor   string `json:"empanelled_for,omitempty"`
	EmpanelmentDate string `json:"empanelment_date,omitempty"`
}

// ProcedureStats is the historical claim distribution for one procedure.
type ProcedureStats struct {
	Procedure   string  `json:"procedure"`
	MeanAmount  float64 `json:"mean_amount"`
	StdevAmount float64 `json:"stdev_amount"`
	SampleCount int     `json:"sample_count"`
}

// normalize canonicalizes a name for lookup: lowercase, punctuation stripped,
// whitespace collapsed.
func normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	lastSpace := true
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			lastSpace = false
		default:
			if !lastSpace {
				b.WriteByte(' ')
				lastSpace = true
			}
		}
	}
	return strings.TrimSpace(b.String())
}

func tokens(s string) []string {
	return strings.Fields(normalize(s))
}

// tokenSubset reports whether every token of q occurs in target.
func tokenSubset(q, target []string) bool {
	if len(q) == 0 {
		return false
	}
	set := make(map[string]struct{}, len(target))
	for _, t := range target {
		set[t] = struct{}{}
	}
	for _, t := range q {
		if _, ok := set[t]; !ok {
			return false
		}
	}
	return true
}
