package extract

// Confidence band thresholds. A field with no recorded score is unknown,
// which is distinct from low: only recorded scores below LowThreshold count
// as low confidence.
const (
	LowThreshold  = 0.80
	HighThreshold = 0.90
)

// Band classifies one confidence score.
type Band string

const (
	BandLow     Band = "low"
	BandMedium  Band = "medium"
	BandHigh    Band = "high"
	BandUnknown Band = "unknown"
)

// ConfidenceReport is the per-field banding over an extraction's scores.
type ConfidenceReport struct {
	Bands    map[string]Band
	LowCount int
}

// BandFor returns the band for a single score.
func BandFor(score float64) Band {
	switch {
	case score < LowThreshold:
		return BandLow
	case score < HighThreshold:
		return BandMedium
	default:
		return BandHigh
	}
}

// Classify bands every recorded score and counts the low-confidence fields.
// Fields absent from the map are simply absent from the report.
func Classify(scores map[string]float64) ConfidenceReport {
	report := ConfidenceReport{Bands: make(map[string]Band, len(scores))}
	for path, score := range scores {
		band := BandFor(score)
		report.Bands[path] = band
		if band == BandLow {
			report.LowCount++
		}
	}
	return report
}

// BandOf looks up the band for a field path, returning BandUnknown when the
// field has no recorded score.
func (r ConfidenceReport) BandOf(path string) Band {
	if b, ok := r.Bands[path]; ok {
		return b
	}
	return BandUnknown
}
