package refdata

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medbillai/medbill/constants"
)

func testSnapshot() *Snapshot {
	return NewSnapshot(
		[]Rate{
			{ProcedureName: "Laparoscopic Cholecystectomy", NonNABHRate: 30000, NABHRate: 34500, SchemeTag: constants.RateAIIMS},
			{ProcedureName: "Laparoscopic Cholecystectomy", NonNABHRate: 29000, NABHRate: 33350, SchemeTag: constants.RateCGHS},
			{ProcedureName: "Coronary Angiography", NonNABHRate: 12000, NABHRate: 13800, SchemeTag: constants.RateAIIMS},
			{ProcedureName: "Cataract Surgery with IOL", NonNABHRate: 24000, NABHRate: 27600, SchemeTag: constants.RateCGHS},
		},
		[]Hospital{
			{Name: "Apollo Hospital, Nagpur", City: "Nagpur", NABHStatus: true},
			{Name: "City Care Centre", City: "Pune"},
		},
		[]ProcedureStats{
			{Procedure: "Coronary Angiography", MeanAmount: 15000, StdevAmount: 2500, SampleCount: 80},
		},
	)
}

func TestFindRateExactPrefersCGHS(t *testing.T) {
	snap := testSnapshot()

	r, ok := snap.FindRate("Laparoscopic Cholecystectomy")
	require.True(t, ok)
	assert.Equal(t, constants.RateCGHS, r.SchemeTag)
	assert.InDelta(t, 29000, r.NonNABHRate, 0.001)
}

func TestFindRateNormalizedAndTokenSubset(t *testing.T) {
	snap := testSnapshot()

	r, ok := snap.FindRate("LAPAROSCOPIC  CHOLECYSTECTOMY.")
	require.True(t, ok, "punctuation and casing must not matter")
	assert.Equal(t, constants.RateCGHS, r.SchemeTag)

	r, ok = snap.FindRate("Coronary Angiography")
	require.True(t, ok)
	assert.Equal(t, constants.RateAIIMS, r.SchemeTag, "AIIMS row stands when no CGHS row exists")

	// query tokens are a subset of the tariff name
	r, ok = snap.FindRate("Cataract Surgery")
	require.True(t, ok)
	assert.Equal(t, "Cataract Surgery with IOL", r.ProcedureName)

	_, ok = snap.FindRate("Total Knee Replacement")
	assert.False(t, ok)
	_, ok = snap.FindRate("")
	assert.False(t, ok)
}

func TestFindRateNABHTier(t *testing.T) {
	snap := testSnapshot()
	r, _ := snap.FindRate("Coronary Angiography")
	assert.InDelta(t, 13800, r.CeilingFor(true), 0.001)
	assert.InDelta(t, 12000, r.CeilingFor(false), 0.001)
}

func TestFindHospitalBidirectional(t *testing.T) {
	snap := testSnapshot()

	h, ok := snap.FindHospital("Apollo Hospital, Nagpur")
	require.True(t, ok)
	assert.True(t, h.NABHStatus)

	// letterhead shorter than the registry entry
	h, ok = snap.FindHospital("Apollo Hospital")
	require.True(t, ok)
	assert.Equal(t, "Apollo Hospital, Nagpur", h.Name)

	// letterhead longer than the registry entry
	h, ok = snap.FindHospital("City Care Centre, Pune Branch")
	require.True(t, ok)
	assert.Equal(t, "City Care Centre", h.Name)

	_, ok = snap.FindHospital("Backstreet Clinic")
	assert.False(t, ok)
	_, ok = snap.FindHospital("")
	assert.False(t, ok)
}

func TestStatsFor(t *testing.T) {
	snap := testSnapshot()

	st, ok := snap.StatsFor("coronary angiography")
	require.True(t, ok)
	assert.Equal(t, 80, st.SampleCount)

	_, ok = snap.StatsFor("Laparoscopic Cholecystectomy")
	assert.False(t, ok)
}

func TestSearchRanksPrefixAboveSubstring(t *testing.T) {
	snap := NewSnapshot(
		[]Rate{
			{ProcedureName: "Cholecystectomy Open", SchemeTag: constants.RateCGHS, NonNABHRate: 1},
			{ProcedureName: "Laparoscopic Cholecystectomy", SchemeTag: constants.RateCGHS, NonNABHRate: 1},
			{ProcedureName: "Cholangiogram", SchemeTag: constants.RateCGHS, NonNABHRate: 1},
		},
		nil, nil,
	)

	out := snap.SearchRates("chole")
	require.Len(t, out, 2)
	assert.Equal(t, "Cholecystectomy Open", out[0].ProcedureName, "prefix hit ranks first")
	assert.Equal(t, "Laparoscopic Cholecystectomy", out[1].ProcedureName)
}

func TestSearchCapsResults(t *testing.T) {
	rates := make([]Rate, 80)
	for i := range rates {
		rates[i] = Rate{ProcedureName: "Procedure " + string(rune('A'+i%26)) + string(rune('a'+i/26)), NonNABHRate: 1}
	}
	snap := NewSnapshot(rates, nil, nil)
	assert.Len(t, snap.SearchRates("procedure"), maxSearchResults)
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "laparoscopic cholecystectomy", normalize("  Laparoscopic-Cholecystectomy. "))
	assert.Equal(t, "c a b g", normalize("C.A.B.G."))
	assert.Equal(t, "", normalize("---"))
}
