package llm

import "github.com/medbillai/medbill/internal/entity"

// MergeOverBaseline layers the model's extraction over the rule-based draft.
// The model wins wherever it produced a value; regex hits survive where the
// model stayed silent. Never mutates the baseline.
func MergeOverBaseline(baseline, refined *entity.Bill) *entity.Bill {
	out := *baseline

	out.Patient.Name = pick(refined.Patient.Name, baseline.Patient.Name)
	out.Patient.Age = pick(refined.Patient.Age, baseline.Patient.Age)
	out.Patient.Gender = pick(refined.Patient.Gender, baseline.Patient.Gender)
	out.Patient.UHID = pick(refined.Patient.UHID, baseline.Patient.UHID)
	out.Patient.IPNumber = pick(refined.Patient.IPNumber, baseline.Patient.IPNumber)
	out.Patient.EmployeeID = pick(refined.Patient.EmployeeID, baseline.Patient.EmployeeID)

	out.Hospital.Name = pick(refined.Hospital.Name, baseline.Hospital.Name)
	out.Hospital.Address = pick(refined.Hospital.Address, baseline.Hospital.Address)
	out.Hospital.City = pick(refined.Hospital.City, baseline.Hospital.City)
	out.Hospital.Phone = pick(refined.Hospital.Phone, baseline.Hospital.Phone)
	out.Hospital.RegistrationNumber = pick(refined.Hospital.RegistrationNumber, baseline.Hospital.RegistrationNumber)

	out.Admission.AdmissionDate = pick(refined.Admission.AdmissionDate, baseline.Admission.AdmissionDate)
	out.Admission.DischargeDate = pick(refined.Admission.DischargeDate, baseline.Admission.DischargeDate)
	out.Admission.WardType = pick(refined.Admission.WardType, baseline.Admission.WardType)
	out.Admission.Diagnosis = pick(refined.Admission.Diagnosis, baseline.Admission.Diagnosis)
	out.Admission.TreatingDoctor = pick(refined.Admission.TreatingDoctor, baseline.Admission.TreatingDoctor)
	out.Admission.ReferralDate = pick(refined.Admission.ReferralDate, baseline.Admission.ReferralDate)
	out.Admission.TreatmentType = pick(refined.Admission.TreatmentType, baseline.Admission.TreatmentType)
	if len(refined.Admission.Procedures) > 0 {
		out.Admission.Procedures = refined.Admission.Procedures
	}

	out.TotalAmount = pickAmount(refined.TotalAmount, baseline.TotalAmount)
	out.Discount = pickAmount(refined.Discount, baseline.Discount)
	out.NetAmount = pickAmount(refined.NetAmount, baseline.NetAmount)
	out.AdvancePaid = pickAmount(refined.AdvancePaid, baseline.AdvancePaid)
	out.BalanceDue = pickAmount(refined.BalanceDue, baseline.BalanceDue)

	out.BillNumber = pick(refined.BillNumber, baseline.BillNumber)
	out.BillDate = pick(refined.BillDate, baseline.BillDate)

	// Line items: the model's itemization is richer than the regex one
	// whenever it exists at all.
	if len(refined.LineItems) > 0 {
		out.LineItems = refined.LineItems
	}

	return &out
}

func pick(refined, baseline string) string {
	if refined != "" {
		return refined
	}
	return baseline
}

func pickAmount(refined, baseline float64) float64 {
	if refined > 0 {
		return refined
	}
	return baseline
}
