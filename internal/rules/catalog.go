package rules

import (
	"fmt"
	"math"
	"strings"

	"github.com/medbillai/medbill/constants"
	"github.com/medbillai/medbill/internal/entity"
	"github.com/medbillai/medbill/internal/extract"
)

// Audit thresholds.
const (
	ReferralValidityDays = 45
	MaxOrdinaryStayDays  = 15
	ScrutinyThreshold    = 100_000
	EndorsementThreshold = 500_000
	OPDAnnualLimit       = 25_000
	OutlierSigma         = 3.0
)

// Catalog is the fixed, ordered audit catalog. Result order follows catalog
// order; IDs are stable and referenced by the review UI.
var Catalog = []Rule{
	{ID: "EL001", Category: "eligibility", Description: "hospital must be empanelled", Eval: evalEmpanelment},
	{ID: "EL002", Category: "eligibility", Description: "referral within validity window", Eval: evalReferralWindow},
	{ID: "RT001", Category: "rate", Description: "billed rates within tariff ceiling", Eval: evalRateCeiling},
	{ID: "RR001", Category: "room_rent", Description: "ward type matches grade entitlement", Eval: evalRoomEntitlement},
	{ID: "RR002", Category: "room_rent", Description: "billed bed days within stay", Eval: evalBedDays},
	{ID: "PK001", Category: "package", Description: "no separate billing of package-bundled items", Eval: evalPackageDoubleBilling},
	{ID: "PK002", Category: "package", Description: "multiple surgical items flagged", Eval: evalMultipleSurgeries},
	{ID: "DC001", Category: "documentation", Description: "discharge summary attached for IPD", Eval: evalDischargeSummary},
	{ID: "DC002", Category: "documentation", Description: "transfusion evidence when blood billed", Eval: evalTransfusionEvidence},
	{ID: "HV001", Category: "high_value", Description: "scrutiny above 1 lakh", Eval: evalScrutinyFlag},
	{ID: "HV002", Category: "high_value", Description: "extended stay needs approval", Eval: evalExtendedStay},
	{ID: "HV003", Category: "high_value", Description: "endorsement above 5 lakh", Eval: evalEndorsementFlag},
	{ID: "OPD001", Category: "opd", Description: "CPRMS-NE annual OPD limit", Eval: evalOPDLimit},
	{ID: "FR001", Category: "fraud", Description: "duplicate bill detection", Eval: evalDuplicateBill},
	{ID: "FR002", Category: "fraud", Description: "amount outlier versus history", Eval: evalAmountOutlier},
}

func evalEmpanelment(b *entity.Bill, ref Reference) entity.ValidationResult {
	if strings.TrimSpace(b.Hospital.Name) == "" {
		return warn("hospital name not extracted; empanelment cannot be verified")
	}
	if ref.Data == nil || len(ref.Data.Hospitals) == 0 {
		return warn("empanelment registry unavailable; empanelment not verified")
	}
	h, found := ref.Data.FindHospital(b.Hospital.Name)
	if !found {
		return fail(fmt.Sprintf("hospital %q is not in the empanelment registry", b.Hospital.Name), 0)
	}
	return pass(fmt.Sprintf("hospital empanelled as %q", h.Name))
}

func evalReferralWindow(b *entity.Bill, ref Reference) entity.ValidationResult {
	if b.Admission.ReferralDate == "" {
		return warn("no referral date on record; referral letter required for verification")
	}
	refDate, okR := extract.ParseBillDate(b.Admission.ReferralDate)
	admDate, okA := extract.ParseBillDate(b.Admission.AdmissionDate)
	if !okR || !okA {
		return warn("referral or admission date unreadable; referral window not verified")
	}
	days := int(admDate.Sub(refDate).Hours() / 24)
	if days < 0 {
		return fail("referral dated after admission", 0)
	}
	if days > ReferralValidityDays {
		return fail(fmt.Sprintf("referral %d days before admission exceeds the %d-day validity", days, ReferralValidityDays), 0)
	}
	return pass(fmt.Sprintf("referral %d days before admission", days))
}

func evalRateCeiling(b *entity.Bill, ref Reference) entity.ValidationResult {
	nabh := false
	if ref.Data != nil {
		if h, ok := ref.Data.FindHospital(b.Hospital.Name); ok {
			nabh = h.NABHStatus
		}
	}

	var (
		checked   int
		warnings  []string
		excessSum float64
		failures  []string
	)
	for _, item := range b.LineItems {
		if _, ok := constants.RateCheckedTypes[item.Type]; !ok {
			continue
		}
		checked++

		if ref.Data == nil {
			warnings = append(warnings, fmt.Sprintf("%s: tariff unavailable", item.Description))
			continue
		}
		rate, found := ref.Data.FindRate(item.Description)
		if !found {
			warnings = append(warnings, fmt.Sprintf("%s: no tariff entry found", item.Description))
			continue
		}

		qty := item.Quantity
		if qty < 1 {
			qty = 1
		}
		ceiling := rate.CeilingFor(nabh) * float64(qty)
		if ceiling <= 0 {
			warnings = append(warnings, fmt.Sprintf("%s: tariff entry has no usable rate", item.Description))
			continue
		}
		if item.Amount > ceiling {
			excess := item.Amount - ceiling
			excessSum += excess
			failures = append(failures, fmt.Sprintf("%s billed %.2f against %s ceiling %.2f (excess %.2f)",
				item.Description, item.Amount, rate.SchemeTag, ceiling, excess))
		}
	}

	switch {
	case checked == 0:
		return pass("no tariff-checked line items on the bill")
	case len(failures) > 0:
		return fail(strings.Join(failures, "; "), excessSum)
	case len(warnings) > 0:
		return warn(strings.Join(warnings, "; "))
	default:
		return pass(fmt.Sprintf("%d tariff-checked items within ceiling", checked))
	}
}

func evalRoomEntitlement(b *entity.Bill, ref Reference) entity.ValidationResult {
	ward := strings.TrimSpace(b.Admission.WardType)
	if ward == "" {
		return warn("ward type not extracted; room entitlement not verified")
	}
	entitled, ok := constants.RoomEntitlementFor(b.Grade)
	if !ok {
		return warn(fmt.Sprintf("grade %q not recognized; room entitlement not verified", b.Grade))
	}
	if !roomWithinEntitlement(ward, entitled) {
		return warn(fmt.Sprintf("billed ward %q exceeds entitlement %q for grade %s; proportionate deduction applies", ward, entitled, b.Grade))
	}
	return pass(fmt.Sprintf("ward %q within entitlement %q", ward, entitled))
}

// roomCategoryRank orders ward categories from lowest to highest.
var roomCategoryRank = []struct {
	keyword string
	rank    int
}{
	{"general", 0},
	{"twin", 1},
	{"semi", 1},
	{"private", 2},
	{"single", 2},
	{"deluxe", 3},
	{"suite", 4},
}

func roomRank(s string) int {
	ls := strings.ToLower(s)
	best := -1
	for _, rc := range roomCategoryRank {
		if strings.Contains(ls, rc.keyword) && rc.rank > best {
			best = rc.rank
		}
	}
	return best
}

func roomWithinEntitlement(ward, entitled string) bool {
	// ICU does not count against the room entitlement
	lw := strings.ToLower(ward)
	if strings.Contains(lw, "icu") || strings.Contains(lw, "hdu") || strings.Contains(lw, "critical") {
		return true
	}
	wr, er := roomRank(ward), roomRank(entitled)
	if wr < 0 || er < 0 {
		return false
	}
	return wr <= er
}

func evalBedDays(b *entity.Bill, ref Reference) entity.ValidationResult {
	var billedDays int
	for _, item := range b.LineItems {
		if item.Type == constants.RoomRent || item.Type == constants.ICU {
			qty := item.Quantity
			if qty < 1 {
				qty = 1
			}
			billedDays += qty
		}
	}
	if billedDays == 0 {
		return pass("no room or ICU charges on the bill")
	}
	stay := b.Admission.DaysStayed
	if stay <= 0 {
		return warn("admission and discharge dates incomplete; bed days not verified")
	}
	if billedDays > stay {
		return warn(fmt.Sprintf("%d bed days billed for a %d-day stay", billedDays, stay))
	}
	return pass(fmt.Sprintf("%d bed days within the %d-day stay", billedDays, stay))
}

func evalPackageDoubleBilling(b *entity.Bill, ref Reference) entity.ValidationResult {
	hasPackage := false
	for _, item := range b.LineItems {
		if item.Type == constants.Package {
			hasPackage = true
			break
		}
	}
	if !hasPackage {
		return pass("no package item on the bill")
	}

	var bundled []string
	var impact float64
	for _, item := range b.LineItems {
		if _, ok := constants.PackageBundledTypes[item.Type]; ok {
			bundled = append(bundled, item.Description)
			impact += item.Amount
		}
	}
	if len(bundled) == 0 {
		return pass("package billed without separately charged bundled items")
	}
	return fail(fmt.Sprintf("package rate includes: %s; separately billed amounts are deductible", strings.Join(bundled, ", ")), impact)
}

func evalMultipleSurgeries(b *entity.Bill, ref Reference) entity.ValidationResult {
	var surgical int
	for _, item := range b.LineItems {
		if item.Type == constants.Procedure || item.Type == constants.Package {
			surgical++
		}
	}
	if surgical > 1 {
		return warn(fmt.Sprintf("%d surgical items billed; second and subsequent procedures are payable at 50%%", surgical))
	}
	return pass("at most one surgical item billed")
}

func evalDischargeSummary(b *entity.Bill, ref Reference) entity.ValidationResult {
	if strings.EqualFold(b.Admission.TreatmentType, "OPD") {
		return pass("discharge summary not required for OPD treatment")
	}
	if b.Attachments.DischargeSummary {
		return pass("discharge summary attached")
	}
	return fail("discharge summary is mandatory for inpatient claims", 0)
}

func evalTransfusionEvidence(b *entity.Bill, ref Reference) entity.ValidationResult {
	billed := false
	for _, item := range b.LineItems {
		if item.Type == constants.BloodTransfusion {
			billed = true
			break
		}
	}
	if !billed {
		return pass("no blood transfusion charges on the bill")
	}
	if b.Attachments.TransfusionEvidence {
		return pass("transfusion evidence attached")
	}
	return warn("blood transfusion billed without supporting evidence")
}

func evalScrutinyFlag(b *entity.Bill, ref Reference) entity.ValidationResult {
	if b.TotalAmount > ScrutinyThreshold {
		return warn(fmt.Sprintf("total %.2f above %d; route through medical scrutiny", b.TotalAmount, ScrutinyThreshold))
	}
	return pass("total below the scrutiny threshold")
}

func evalExtendedStay(b *entity.Bill, ref Reference) entity.ValidationResult {
	stay := b.Admission.DaysStayed
	if stay <= MaxOrdinaryStayDays {
		return pass(fmt.Sprintf("stay of %d days within the ordinary limit", stay))
	}
	if b.Attachments.ExtendedStayApproval {
		return pass(fmt.Sprintf("extended stay of %d days covered by approval", stay))
	}
	return fail(fmt.Sprintf("stay of %d days exceeds %d days and requires competent-authority approval", stay, MaxOrdinaryStayDays), 0)
}

func evalEndorsementFlag(b *entity.Bill, ref Reference) entity.ValidationResult {
	if b.TotalAmount > EndorsementThreshold {
		return warn(fmt.Sprintf("total %.2f above %d; director endorsement required", b.TotalAmount, EndorsementThreshold))
	}
	return pass("total below the endorsement threshold")
}

// evalOPDLimit enforces the CPRMS-NE annual outpatient ceiling. Prior OPD
// usage for the financial year comes with the submission; the document
// carries only the current claim.
func evalOPDLimit(b *entity.Bill, ref Reference) entity.ValidationResult {
	if b.Scheme != constants.SchemeCPRMSNE {
		return pass("scheme not subject to the OPD annual limit")
	}
	tt := strings.ToUpper(strings.TrimSpace(b.Admission.TreatmentType))
	if tt != "OPD" && tt != "DOMICILIARY" {
		return pass("inpatient claim; OPD annual limit not applicable")
	}
	total := b.PriorOPDClaims + b.TotalAmount
	if total > OPDAnnualLimit {
		excess := total - OPDAnnualLimit
		return fail(fmt.Sprintf("CPRMS-NE OPD total %.2f exceeds the %d annual limit (excess %.2f)",
			total, OPDAnnualLimit, excess), excess)
	}
	return pass(fmt.Sprintf("CPRMS-NE OPD usage %.2f of %d; %.2f remaining", total, OPDAnnualLimit, OPDAnnualLimit-total))
}

func evalDuplicateBill(b *entity.Bill, ref Reference) entity.ValidationResult {
	if strings.TrimSpace(b.BillNumber) == "" || strings.TrimSpace(b.Hospital.Name) == "" {
		return warn("bill number or hospital missing; duplicate check not possible")
	}
	// nil means the stored-bill registry could not be read; an empty map
	// means it was read and holds nothing.
	if ref.KnownBillKeys == nil {
		return warn("stored-bill registry unavailable; duplicate check skipped")
	}
	key := BillKey(b.BillNumber, b.Hospital.Name)
	if _, dup := ref.KnownBillKeys[key]; dup {
		return fail(fmt.Sprintf("bill %s from %s already processed", b.BillNumber, b.Hospital.Name), b.TotalAmount)
	}
	return pass("no earlier bill with this number from this hospital")
}

func evalAmountOutlier(b *entity.Bill, ref Reference) entity.ValidationResult {
	procedure := primaryProcedure(b)
	if procedure == "" {
		return warn("no surgical item to match against claim history")
	}
	if ref.Data == nil {
		return warn("claim history unavailable; outlier check skipped")
	}
	stats, ok := ref.Data.StatsFor(procedure)
	if !ok {
		return warn(fmt.Sprintf("no claim history for %q; outlier check skipped", procedure))
	}
	if stats.StdevAmount <= 0 || stats.SampleCount < 2 {
		return warn(fmt.Sprintf("claim history for %q too thin (%d samples)", procedure, stats.SampleCount))
	}
	deviation := math.Abs(b.TotalAmount - stats.MeanAmount)
	if deviation > OutlierSigma*stats.StdevAmount {
		return warn(fmt.Sprintf("total %.2f deviates %.1fσ from the %.2f mean for %q",
			b.TotalAmount, deviation/stats.StdevAmount, stats.MeanAmount, procedure))
	}
	return pass(fmt.Sprintf("total within %.0fσ of the historical mean for %q", OutlierSigma, procedure))
}

func primaryProcedure(b *entity.Bill) string {
	for _, item := range b.LineItems {
		if item.Type == constants.Procedure || item.Type == constants.Package {
			return item.Description
		}
	}
	if len(b.Admission.Procedures) > 0 {
		return b.Admission.Procedures[0]
	}
	return ""
}
