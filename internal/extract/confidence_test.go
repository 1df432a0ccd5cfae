package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBandFor(t *testing.T) {
	cases := []struct {
		score float64
		want  Band
	}{
		{0.0, BandLow},
		{0.79, BandLow},
		{0.80, BandMedium},
		{0.89, BandMedium},
		{0.90, BandHigh},
		{1.0, BandHigh},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, BandFor(tc.score), "score %v", tc.score)
	}
}

func TestClassify(t *testing.T) {
	report := Classify(map[string]float64{
		"patient.name":  0.95,
		"total_amount":  0.85,
		"hospital.name": 0.42,
		"bill_number":   0.10,
	})

	assert.Equal(t, BandHigh, report.BandOf("patient.name"))
	assert.Equal(t, BandMedium, report.BandOf("total_amount"))
	assert.Equal(t, BandLow, report.BandOf("hospital.name"))
	assert.Equal(t, 2, report.LowCount)
}

func TestUnscoredFieldIsUnknownNotLow(t *testing.T) {
	report := Classify(map[string]float64{"patient.name": 0.95})

	assert.Equal(t, BandUnknown, report.BandOf("patient.age"))
	assert.Zero(t, report.LowCount)
	assert.Len(t, report.Bands, 1)
}

func TestClassifyEmpty(t *testing.T) {
	report := Classify(nil)
	assert.Zero(t, report.LowCount)
	assert.Empty(t, report.Bands)
	assert.Equal(t, BandUnknown, report.BandOf("anything"))
}
