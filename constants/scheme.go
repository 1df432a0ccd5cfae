package constants

import "strings"

// Scheme identifies the governing medical reimbursement scheme for a claim.
type Scheme string

const (
	SchemeMAR     Scheme = "MAR"     // serving employees
	SchemeCPRMSE  Scheme = "CPRMSE"  // retired executives
	SchemeCPRMSNE Scheme = "CPRMSNE" // retired non-executives
)

// ParseScheme maps a submitted scheme name onto the known set.
func ParseScheme(s string) (Scheme, bool) {
	switch Scheme(strings.ToUpper(strings.TrimSpace(s))) {
	case SchemeMAR:
		return SchemeMAR, true
	case SchemeCPRMSE:
		return SchemeCPRMSE, true
	case SchemeCPRMSNE:
		return SchemeCPRMSNE, true
	}
	return "", false
}

// RateTag distinguishes the two reference tariffs in the rate table.
type RateTag string

const (
	RateCGHS  RateTag = "CGHS"
	RateAIIMS RateTag = "AIIMS"
)

// RoomEntitlements maps employee grade to the permitted room category.
// Board level gets Suite, E8-E9 Deluxe, E5-E7 Private (AC), up to E4 Twin
// Sharing (AC).
var RoomEntitlements = map[string]string{
	"BOARD":   "Suite",
	"E9":      "Deluxe",
	"E8":      "Deluxe",
	"E7":      "Private (AC)",
	"E6":      "Private (AC)",
	"E5":      "Private (AC)",
	"E4":      "Twin Sharing (AC)",
	"E3":      "Twin Sharing (AC)",
	"E2":      "Twin Sharing (AC)",
	"E1":      "Twin Sharing (AC)",
	"NON_EXE": "Twin Sharing (AC)",
}

// RoomEntitlementFor returns the entitled room category for a grade, or
// false when the grade is not recognized.
func RoomEntitlementFor(grade string) (string, bool) {
	e, ok := RoomEntitlements[strings.ToUpper(strings.TrimSpace(grade))]
	return e, ok
}

// AllowedExtensions holds the accepted upload extensions.
var AllowedExtensions = map[string]struct{}{
	"pdf": {},
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}
