package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medbillai/medbill/constants"
	"github.com/medbillai/medbill/internal/entity"
)

func TestMergeModelWinsWherePresent(t *testing.T) {
	baseline := &entity.Bill{
		Patient:     entity.PatientInfo{Name: "RAMESH VERMA", Age: "52 Yrs"},
		Hospital:    entity.HospitalInfo{Name: "SUNRISE HOSPITAL"},
		TotalAmount: 60000,
		BillNumber:  "INV-0042",
	}
	refined := &entity.Bill{
		Patient:     entity.PatientInfo{Name: "Ramesh Kumar Verma"},
		Hospital:    entity.HospitalInfo{Name: "Sunrise Multispecialty Hospital", City: "Nagpur"},
		TotalAmount: 68830.50,
	}

	out := MergeOverBaseline(baseline, refined)

	assert.Equal(t, "Ramesh Kumar Verma", out.Patient.Name)
	assert.Equal(t, "Sunrise Multispecialty Hospital", out.Hospital.Name)
	assert.Equal(t, "Nagpur", out.Hospital.City)
	assert.InDelta(t, 68830.50, out.TotalAmount, 0.001)
}

func TestMergeBaselineSurvivesModelSilence(t *testing.T) {
	baseline := &entity.Bill{
		Patient:    entity.PatientInfo{Name: "Ramesh Verma", Age: "52 Yrs", UHID: "SH-99812"},
		Admission:  entity.AdmissionInfo{AdmissionDate: "10/03/2025", WardType: "Private"},
		BillNumber: "INV-0042",
		LineItems: []entity.LineItem{
			{Type: constants.RoomRent, Description: "Room Rent", Quantity: 1, Amount: 16000},
		},
	}
	refined := &entity.Bill{}

	out := MergeOverBaseline(baseline, refined)

	assert.Equal(t, "52 Yrs", out.Patient.Age)
	assert.Equal(t, "SH-99812", out.Patient.UHID)
	assert.Equal(t, "10/03/2025", out.Admission.AdmissionDate)
	assert.Equal(t, "Private", out.Admission.WardType)
	assert.Equal(t, "INV-0042", out.BillNumber)
	require.Len(t, out.LineItems, 1)
	assert.Equal(t, constants.RoomRent, out.LineItems[0].Type)
}

func TestMergeReplacesLineItemsWholesale(t *testing.T) {
	baseline := &entity.Bill{
		LineItems: []entity.LineItem{
			{Type: constants.RoomRent, Description: "Room Rent", Amount: 16000},
		},
	}
	refined := &entity.Bill{
		LineItems: []entity.LineItem{
			{Type: constants.RoomRent, Description: "Room Rent (4 days)", Quantity: 4, Amount: 16000},
			{Type: constants.Procedure, Description: "Lap Cholecystectomy", Quantity: 1, Amount: 38500},
		},
	}

	out := MergeOverBaseline(baseline, refined)
	assert.Len(t, out.LineItems, 2)
}

func TestMergeDoesNotMutateBaseline(t *testing.T) {
	baseline := &entity.Bill{
		Patient:     entity.PatientInfo{Name: "Original"},
		TotalAmount: 100,
	}
	refined := &entity.Bill{
		Patient:     entity.PatientInfo{Name: "Refined"},
		TotalAmount: 200,
	}

	out := MergeOverBaseline(baseline, refined)

	assert.Equal(t, "Original", baseline.Patient.Name)
	assert.InDelta(t, 100, baseline.TotalAmount, 0.001)
	assert.Equal(t, "Refined", out.Patient.Name)
}
