package ocr

import (
	"regexp"
	"strings"
)

var (
	reDate    = regexp.MustCompile(`\b\d{1,2}[./-]\d{1,2}[./-]\d{2,4}\b`)
	reRupee   = regexp.MustCompile(`\brs\.?|\binr\b|₹`)
	reAmount  = regexp.MustCompile(`\b\d{1,3}(,\d{2,3})*(\.\d{2})?\b|\b\d+\.\d{2}\b`)
	reMedical = regexp.MustCompile(`\b(hospital|patient|admission|discharge|ward|diagnosis|consultation|bill)\b`)
)

// heuristicConfidence estimates OCR quality from hospital-bill artifacts:
// dates, rupee markers, amounts and billing vocabulary each add a bit.
func heuristicConfidence(txt string) float64 {
	txtL := strings.ToLower(txt)
	score := 0.2 // base
	if reDate.MatchString(txtL) {
		score += 0.2
	}
	if reRupee.MatchString(txtL) {
		score += 0.15
	}
	if reAmount.MatchString(txtL) {
		score += 0.15
	}
	if reMedical.MatchString(txtL) {
		score += 0.15
	}
	if len(txt) > 500 {
		score += 0.1
	}
	if score > 1.0 {
		score = 1.0
	}
	return score
}

// textLayerConfidence scores an embedded text layer. A real text layer reads
// cleanly, so the floor is higher than for rasterized OCR.
func textLayerConfidence(txt string) float64 {
	score := 0.6 + 0.4*heuristicConfidence(txt)
	if score > 1.0 {
		score = 1.0
	}
	return score
}
