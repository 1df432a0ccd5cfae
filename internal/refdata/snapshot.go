package refdata

import (
	"sort"
	"strings"

	"github.com/medbillai/medbill/constants"
)

// Snapshot is an immutable view of the loaded reference data. Lookups touch
// only snapshot-local state, so a snapshot taken before a Reload keeps
// answering from the old data until the caller lets go of it.
type Snapshot struct {
	Rates     []Rate
	Hospitals []Hospital
	Stats     []ProcedureStats

	ratesByName map[string][]int // normalized name -> indices into Rates
	hospByName  map[string]int
	statsByName map[string]int
}

// NewSnapshot builds an indexed snapshot from loaded rows.
func NewSnapshot(rates []Rate, hospitals []Hospital, stats []ProcedureStats) *Snapshot {
	s := &Snapshot{
		Rates:       rates,
		Hospitals:   hospitals,
		Stats:       stats,
		ratesByName: make(map[string][]int, len(rates)),
		hospByName:  make(map[string]int, len(hospitals)),
		statsByName: make(map[string]int, len(stats)),
	}
	for i, r := range rates {
		k := normalize(r.ProcedureName)
		s.ratesByName[k] = append(s.ratesByName[k], i)
	}
	for i, h := range hospitals {
		s.hospByName[normalize(h.Name)] = i
	}
	for i, st := range stats {
		s.statsByName[normalize(st.Procedure)] = i
	}
	return s
}

// FindRate resolves a procedure name against the tariff: exact normalized
// match first, then token-subset. Within a tier the scheme's own CGHS rate
// wins over the AIIMS fallback.
func (s *Snapshot) FindRate(procedure string) (Rate, bool) {
	key := normalize(procedure)
	if key == "" {
		return Rate{}, false
	}

	if idxs, ok := s.ratesByName[key]; ok {
		return s.Rates[preferCGHS(s.Rates, idxs)], true
	}

	qTokens := tokens(procedure)
	var candidates []int
	for i, r := range s.Rates {
		if tokenSubset(qTokens, tokens(r.ProcedureName)) {
			candidates = append(candidates, i)
		}
	}
	if len(candidates) == 0 {
		return Rate{}, false
	}
	return s.Rates[preferCGHS(s.Rates, candidates)], true
}

func preferCGHS(rates []Rate, idxs []int) int {
	for _, i := range idxs {
		if rates[i].SchemeTag == constants.RateCGHS {
			return i
		}
	}
	return idxs[0]
}

// FindHospital resolves a hospital name: exact normalized match, then
// token-subset in either direction since letterheads decorate the registry
// name with branch and city suffixes.
func (s *Snapshot) FindHospital(name string) (Hospital, bool) {
	key := normalize(name)
	if key == "" {
		return Hospital{}, false
	}
	if i, ok := s.hospByName[key]; ok {
		return s.Hospitals[i], true
	}

	qTokens := tokens(name)
	for i, h := range s.Hospitals {
		ht := tokens(h.Name)
		if tokenSubset(ht, qTokens) || tokenSubset(qTokens, ht) {
			return s.Hospitals[i], true
		}
	}
	return Hospital{}, false
}

// StatsFor returns the claim distribution for a procedure, if recorded.
func (s *Snapshot) StatsFor(procedure string) (ProcedureStats, bool) {
	if i, ok := s.statsByName[normalize(procedure)]; ok {
		return s.Stats[i], true
	}
	return ProcedureStats{}, false
}

const maxSearchResults = 50

// SearchRates returns prefix matches ranked above substring matches,
// alphabetical within a tier.
func (s *Snapshot) SearchRates(q string) []Rate {
	key := normalize(q)
	var prefix, substr []Rate
	for _, r := range s.Rates {
		name := normalize(r.ProcedureName)
		switch {
		case strings.HasPrefix(name, key):
			prefix = append(prefix, r)
		case strings.Contains(name, key):
			substr = append(substr, r)
		}
	}
	return rankAndCap(prefix, substr, func(r Rate) string { return r.ProcedureName })
}

// SearchHospitals mirrors SearchRates over the empanelment registry.
func (s *Snapshot) SearchHospitals(q string) []Hospital {
	key := normalize(q)
	var prefix, substr []Hospital
	for _, h := range s.Hospitals {
		name := normalize(h.Name)
		switch {
		case strings.HasPrefix(name, key):
			prefix = append(prefix, h)
		case strings.Contains(name, key):
			substr = append(substr, h)
		}
	}
	return rankAndCap(prefix, substr, func(h Hospital) string { return h.Name })
}

func rankAndCap[T any](prefix, substr []T, name func(T) string) []T {
	sort.Slice(prefix, func(i, j int) bool { return name(prefix[i]) < name(prefix[j]) })
	sort.Slice(substr, func(i, j int) bool { return name(substr[i]) < name(substr[j]) })
	out := append(prefix, substr...)
	if len(out) > maxSearchResults {
		out = out[:maxSearchResults]
	}
	return out
}
