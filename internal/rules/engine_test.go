package rules

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medbillai/medbill/constants"
	"github.com/medbillai/medbill/internal/entity"
)

func testBill() *entity.Bill {
	return &entity.Bill{
		Hospital: entity.HospitalInfo{Name: "Apollo Hospital"},
		Patient:  entity.PatientInfo{Name: "R. Sharma"},
		Admission: entity.AdmissionInfo{
			AdmissionDate: "10/03/2025",
			DischargeDate: "14/03/2025",
			DaysStayed:    4,
			WardType:      "Private (AC)",
			TreatmentType: "IPD",
		},
		Grade:       "E6",
		TotalAmount: 45000,
		BillNumber:  "INV-2025-0042",
		Attachments: entity.Attachments{DischargeSummary: true},
	}
}

func emptyRef() Reference {
	return Reference{Data: nil, KnownBillKeys: nil}
}

func TestEvaluateReturnsOneResultPerRule(t *testing.T) {
	results := Evaluate(testBill(), emptyRef(), slog.Default())
	require.Len(t, results, len(Catalog))

	sum := 0
	for i, r := range results {
		assert.Equal(t, Catalog[i].ID, r.RuleID, "results must follow catalog order")
		assert.Equal(t, Catalog[i].Category, r.Category)
		switch r.Status {
		case constants.VerdictPass, constants.VerdictFail, constants.VerdictWarn:
			sum++
		default:
			t.Errorf("rule %s returned unexpected status %q", r.RuleID, r.Status)
		}
	}
	assert.Equal(t, len(results), sum, "every result must be pass, fail or warn")
}

func TestEvaluateSurvivesNilSlices(t *testing.T) {
	bill := &entity.Bill{}
	results := Evaluate(bill, emptyRef(), slog.Default())
	assert.Len(t, results, len(Catalog))
}

func TestPanickingRuleIsOmitted(t *testing.T) {
	boom := Rule{ID: "XX999", Category: "test", Eval: func(b *entity.Bill, ref Reference) entity.ValidationResult {
		panic("malformed bill shape")
	}}
	_, ok := evalOne(boom, testBill(), emptyRef(), slog.Default())
	assert.False(t, ok, "panicking rule must be dropped, not propagated")

	fine := Rule{ID: "XX000", Category: "test", Eval: func(b *entity.Bill, ref Reference) entity.ValidationResult {
		return pass("ok")
	}}
	res, ok := evalOne(fine, testBill(), emptyRef(), slog.Default())
	require.True(t, ok)
	assert.Equal(t, constants.VerdictPass, res.Status)
}

func TestHighValueRulesAreIndependent(t *testing.T) {
	bill := testBill()
	bill.TotalAmount = 902379
	bill.Admission.DaysStayed = 40
	bill.Attachments.ExtendedStayApproval = false

	results := Evaluate(bill, emptyRef(), slog.Default())
	byID := indexByRule(results)

	assert.Equal(t, constants.VerdictWarn, byID["HV001"].Status, "scrutiny flag must fire")
	assert.Equal(t, constants.VerdictFail, byID["HV002"].Status, "extended stay without approval must fail")
	assert.Equal(t, constants.VerdictWarn, byID["HV003"].Status, "endorsement flag must fire")
}

func TestExtendedStayWithApprovalPasses(t *testing.T) {
	bill := testBill()
	bill.Admission.DaysStayed = 20
	bill.Attachments.ExtendedStayApproval = true

	res := evalExtendedStay(bill, emptyRef())
	assert.Equal(t, constants.VerdictPass, res.Status)
}

func TestReferralWindow(t *testing.T) {
	tests := []struct {
		name     string
		referral string
		want     constants.VerdictStatus
	}{
		{"within window", "01/03/2025", constants.VerdictPass},
		{"missing referral", "", constants.VerdictWarn},
		{"expired referral", "01/01/2025", constants.VerdictFail},
		{"referral after admission", "12/03/2025", constants.VerdictFail},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bill := testBill()
			bill.Admission.ReferralDate = tt.referral
			res := evalReferralWindow(bill, emptyRef())
			assert.Equal(t, tt.want, res.Status)
		})
	}
}

func TestPackageDoubleBilling(t *testing.T) {
	bill := testBill()
	bill.LineItems = []entity.LineItem{
		{Type: constants.Package, Description: "CABG Package", Quantity: 1, Amount: 250000},
		{Type: constants.RoomRent, Description: "Room Rent", Quantity: 4, Amount: 16000},
		{Type: constants.OTCharges, Description: "OT Charges", Quantity: 1, Amount: 30000},
		{Type: constants.Implant, Description: "Stent", Quantity: 1, Amount: 60000},
	}

	res := evalPackageDoubleBilling(bill, emptyRef())
	require.Equal(t, constants.VerdictFail, res.Status)
	assert.InDelta(t, 46000, res.AmountImpact, 0.01, "only bundled types count toward the deduction")
}

func TestMultipleSurgeries(t *testing.T) {
	bill := testBill()
	bill.LineItems = []entity.LineItem{
		{Type: constants.Procedure, Description: "Laparoscopic Cholecystectomy", Quantity: 1, Amount: 40000},
		{Type: constants.Procedure, Description: "Appendectomy", Quantity: 1, Amount: 25000},
	}
	res := evalMultipleSurgeries(bill, emptyRef())
	assert.Equal(t, constants.VerdictWarn, res.Status)
}

func TestDischargeSummary(t *testing.T) {
	bill := testBill()
	bill.Attachments.DischargeSummary = false
	assert.Equal(t, constants.VerdictFail, evalDischargeSummary(bill, emptyRef()).Status)

	bill.Admission.TreatmentType = "OPD"
	assert.Equal(t, constants.VerdictPass, evalDischargeSummary(bill, emptyRef()).Status)
}

func TestTransfusionEvidence(t *testing.T) {
	bill := testBill()
	bill.LineItems = []entity.LineItem{
		{Type: constants.BloodTransfusion, Description: "Blood Transfusion Charges", Quantity: 2, Amount: 9000},
	}
	assert.Equal(t, constants.VerdictWarn, evalTransfusionEvidence(bill, emptyRef()).Status)

	bill.Attachments.TransfusionEvidence = true
	assert.Equal(t, constants.VerdictPass, evalTransfusionEvidence(bill, emptyRef()).Status)
}

func TestDuplicateBill(t *testing.T) {
	bill := testBill()
	ref := Reference{KnownBillKeys: map[string]struct{}{
		BillKey(bill.BillNumber, bill.Hospital.Name): {},
	}}
	assert.Equal(t, constants.VerdictFail, evalDuplicateBill(bill, ref).Status)

	verified := Reference{KnownBillKeys: map[string]struct{}{}}
	assert.Equal(t, constants.VerdictPass, evalDuplicateBill(bill, verified).Status,
		"an empty registry means no earlier bill exists")

	res := evalDuplicateBill(bill, emptyRef())
	assert.Equal(t, constants.VerdictWarn, res.Status,
		"a nil registry means the check could not run at all")

	bill.BillNumber = ""
	assert.Equal(t, constants.VerdictWarn, evalDuplicateBill(bill, verified).Status)
}

func TestOPDLimit(t *testing.T) {
	opdBill := func(scheme constants.Scheme, treatment string, amount, prior float64) *entity.Bill {
		bill := testBill()
		bill.Scheme = scheme
		bill.Admission.TreatmentType = treatment
		bill.TotalAmount = amount
		bill.PriorOPDClaims = prior
		return bill
	}

	res := evalOPDLimit(opdBill(constants.SchemeCPRMSNE, "OPD", 12000, 18000), emptyRef())
	require.Equal(t, constants.VerdictFail, res.Status)
	assert.InDelta(t, 5000, res.AmountImpact, 0.01, "only the excess over the annual limit is deductible")

	assert.Equal(t, constants.VerdictPass,
		evalOPDLimit(opdBill(constants.SchemeCPRMSNE, "OPD", 12000, 8000), emptyRef()).Status)

	assert.Equal(t, constants.VerdictFail,
		evalOPDLimit(opdBill(constants.SchemeCPRMSNE, "DOMICILIARY", 30000, 0), emptyRef()).Status,
		"domiciliary treatment counts against the OPD limit")

	assert.Equal(t, constants.VerdictPass,
		evalOPDLimit(opdBill(constants.SchemeCPRMSNE, "IPD", 400000, 0), emptyRef()).Status,
		"inpatient claims are outside the OPD limit")

	assert.Equal(t, constants.VerdictPass,
		evalOPDLimit(opdBill(constants.SchemeCPRMSE, "OPD", 400000, 0), emptyRef()).Status,
		"only CPRMS-NE carries the annual OPD cap")
}

func TestBillKeyNormalization(t *testing.T) {
	a := BillKey("INV-2025-0042", "Apollo Hospital")
	b := BillKey(" inv-2025-0042 ", "apollo   hospital")
	assert.Equal(t, a, b)
}

func TestBedDays(t *testing.T) {
	bill := testBill()
	bill.LineItems = []entity.LineItem{
		{Type: constants.RoomRent, Description: "Room Rent", Quantity: 6, Amount: 24000},
	}
	res := evalBedDays(bill, emptyRef())
	assert.Equal(t, constants.VerdictWarn, res.Status, "6 bed days against a 4-day stay")

	bill.LineItems[0].Quantity = 4
	assert.Equal(t, constants.VerdictPass, evalBedDays(bill, emptyRef()).Status)
}

func TestRoomEntitlement(t *testing.T) {
	bill := testBill()
	assert.Equal(t, constants.VerdictPass, evalRoomEntitlement(bill, emptyRef()).Status)

	bill.Admission.WardType = "Deluxe"
	assert.Equal(t, constants.VerdictWarn, evalRoomEntitlement(bill, emptyRef()).Status, "deluxe exceeds E6 entitlement")

	bill.Admission.WardType = "ICU"
	assert.Equal(t, constants.VerdictPass, evalRoomEntitlement(bill, emptyRef()).Status, "ICU never counts against entitlement")

	bill.Grade = "Z9"
	bill.Admission.WardType = "Private (AC)"
	assert.Equal(t, constants.VerdictWarn, evalRoomEntitlement(bill, emptyRef()).Status)
}

func indexByRule(results []entity.ValidationResult) map[string]entity.ValidationResult {
	m := make(map[string]entity.ValidationResult, len(results))
	for _, r := range results {
		m[r.RuleID] = r
	}
	return m
}
