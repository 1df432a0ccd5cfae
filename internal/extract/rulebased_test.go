package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medbillai/medbill/constants"
	"github.com/medbillai/medbill/internal/entity"
)

const sampleBillText = `SUNRISE MULTISPECIALTY HOSPITAL
12 MG Road, Nagpur   Ph: 0712-2234567

Patient Name: RAMESH KUMAR VERMA
Age: 52 Yrs   Sex: Male
UHID: SH-99812   IP No: IPD/2025/0311
Emp No: 30412877

Date of Admission: 10/03/2025
Date of Discharge: 14/03/2025
Ward Type: Private
Diagnosis: Acute Cholecystitis
Treating Doctor: Dr. A Deshpande

Bill No: INV-2025-0042
Bill Date: 14/03/2025

Room Rent            Rs. 16,000.00
Consultation Charges Rs. 4,000
Surgery Charges      Rs. 38,500.00
Pharmacy Charges     Rs. 7,230.50
Lab Charges          Rs. 3,100

Grand Total: Rs. 68,830.50
Advance: Rs. 20,000
Balance Due: Rs. 48,830.50
`

func TestRuleBasedExtract(t *testing.T) {
	bill := NewRuleBased().Extract(sampleBillText)
	require.NotNil(t, bill)

	assert.Equal(t, "OCR_ONLY", bill.ExtractionMethod)
	assert.Equal(t, "RAMESH KUMAR VERMA", bill.Patient.Name)
	assert.Equal(t, "52 Yrs", bill.Patient.Age)
	assert.Equal(t, "Male", bill.Patient.Gender)
	assert.Equal(t, "SH-99812", bill.Patient.UHID)
	assert.Equal(t, "IPD/2025/0311", bill.Patient.IPNumber)
	assert.Equal(t, "30412877", bill.Patient.EmployeeID)

	assert.Equal(t, "SUNRISE MULTISPECIALTY HOSPITAL", bill.Hospital.Name)

	assert.Equal(t, "10/03/2025", bill.Admission.AdmissionDate)
	assert.Equal(t, "14/03/2025", bill.Admission.DischargeDate)
	assert.Equal(t, "Acute Cholecystitis", bill.Admission.Diagnosis)
	assert.Equal(t, "Private", bill.Admission.WardType)

	assert.Equal(t, "INV-2025-0042", bill.BillNumber)
	assert.InDelta(t, 68830.50, bill.TotalAmount, 0.001)
	assert.InDelta(t, 20000, bill.AdvancePaid, 0.001)
	assert.InDelta(t, 48830.50, bill.BalanceDue, 0.001)
}

func TestRuleBasedLineItems(t *testing.T) {
	bill := NewRuleBased().Extract(sampleBillText)

	byType := map[constants.ItemType]float64{}
	for _, item := range bill.LineItems {
		byType[item.Type] = item.Amount
	}

	assert.InDelta(t, 16000, byType[constants.RoomRent], 0.001)
	assert.InDelta(t, 4000, byType[constants.Consultation], 0.001)
	assert.InDelta(t, 38500, byType[constants.Procedure], 0.001)
	assert.InDelta(t, 7230.50, byType[constants.Medicine], 0.001)
	assert.InDelta(t, 3100, byType[constants.Investigation], 0.001)

	for _, item := range bill.LineItems {
		assert.Equal(t, 1, item.Quantity)
		assert.Positive(t, item.Amount)
	}
}

func TestParseBillDate(t *testing.T) {
	for _, s := range []string{"10/03/2025", "10-03-2025", "10.03.2025", "2025-03-10"} {
		d, ok := ParseBillDate(s)
		require.True(t, ok, s)
		assert.Equal(t, 2025, d.Year())
		assert.Equal(t, 3, int(d.Month()))
		assert.Equal(t, 10, d.Day())
	}

	_, ok := ParseBillDate("March 10, 2025")
	assert.False(t, ok)
	_, ok = ParseBillDate("")
	assert.False(t, ok)
}

func TestPostProcessDerivedFields(t *testing.T) {
	bill := &entity.Bill{
		Patient: entity.PatientInfo{Name: "RAMESH KUMAR VERMA"},
		Admission: entity.AdmissionInfo{
			AdmissionDate: "10/03/2025",
			DischargeDate: "14/03/2025",
		},
		LineItems: []entity.LineItem{
			{Type: constants.RoomRent, Amount: 16000},
			{Type: constants.Medicine, Amount: 4000},
		},
	}
	PostProcess(bill)

	assert.Equal(t, "Ramesh Kumar Verma", bill.Patient.Name)
	assert.Equal(t, 4, bill.Admission.DaysStayed)
	assert.InDelta(t, 20000, bill.TotalAmount, 0.001, "total falls back to the line-item sum")
	assert.Equal(t, "IPD", bill.Admission.TreatmentType)
}

func TestPostProcessKeepsExtractedTotal(t *testing.T) {
	bill := &entity.Bill{
		TotalAmount: 50000,
		LineItems:   []entity.LineItem{{Type: constants.RoomRent, Amount: 16000}},
	}
	PostProcess(bill)
	assert.InDelta(t, 50000, bill.TotalAmount, 0.001)
	assert.Empty(t, bill.Admission.TreatmentType, "no admission date means no treatment type default")
}
