package entity

import (
	"time"

	"github.com/medbillai/medbill/constants"
)

// PatientInfo holds the patient identity fields extracted from a bill.
type PatientInfo struct {
	Name         string `json:"name"`
	Age          string `json:"age,omitempty"`
	Gender       string `json:"gender,omitempty"`
	UHID         string `json:"uhid,omitempty"`
	IPNumber     string `json:"ip_number,omitempty"`
	EmployeeID   string `json:"employee_id,omitempty"`
	Relationship string `json:"relationship,omitempty"` // SELF, SPOUSE, ...
}

// HospitalInfo holds the treating hospital details.
type HospitalInfo struct {
	Name               string `json:"name"`
	Address            string `json:"address,omitempty"`
	City               string `json:"city,omitempty"`
	Phone              string `json:"phone,omitempty"`
	RegistrationNumber string `json:"registration_number,omitempty"`
}

// AdmissionInfo holds the admission episode details.
type AdmissionInfo struct {
	AdmissionDate   string   `json:"admission_date,omitempty"` // YYYY-MM-DD
	AdmissionTime   string   `json:"admission_time,omitempty"`
	DischargeDate   string   `json:"discharge_date,omitempty"`
	DischargeTime   string   `json:"discharge_time,omitempty"`
	DaysStayed      int      `json:"days_stayed"`
	WardType        string   `json:"ward_type,omitempty"`
	Diagnosis       string   `json:"diagnosis,omitempty"`
	Procedures      []string `json:"procedures,omitempty"`
	ReferringDoctor string   `json:"referring_doctor,omitempty"`
	TreatingDoctor  string   `json:"treating_doctor,omitempty"`
	ReferralDate    string   `json:"referral_date,omitempty"`
	TreatmentType   string   `json:"treatment_type,omitempty"` // OPD, IPD, DAYCARE, DOMICILIARY
}

// LineItem is one billed charge.
type LineItem struct {
	Type        constants.ItemType `json:"type"`
	Description string             `json:"description"`
	Quantity    int                `json:"quantity"`
	UnitRate    float64            `json:"unit_rate,omitempty"`
	Amount      float64            `json:"amount"`
	Date        string             `json:"date,omitempty"`
}

// Attachments records which supporting documents came with the claim.
type Attachments struct {
	DischargeSummary     bool `json:"discharge_summary"`
	TransfusionEvidence  bool `json:"transfusion_evidence"`
	ExtendedStayApproval bool `json:"extended_stay_approval"`
}

// Bill is the full structured representation of an audited medical bill.
// The extracted values are an immutable baseline once the pipeline finishes:
// human corrections live only in EditedFields, keyed by field path
// (e.g. "patient.name", "financials.total_amount"), and validation always
// runs against the raw extraction.
type Bill struct {
	ID         string        `json:"id"`
	SourceFile string        `json:"source_file"`
	TotalPages int           `json:"total_pages"`

	Patient   PatientInfo   `json:"patient"`
	Hospital  HospitalInfo  `json:"hospital"`
	Admission AdmissionInfo `json:"admission"`
	LineItems []LineItem    `json:"line_items"`

	TotalAmount float64 `json:"total_amount"`
	Discount    float64 `json:"discount"`
	NetAmount   float64 `json:"net_amount"`
	AdvancePaid float64 `json:"advance_paid"`
	BalanceDue  float64 `json:"balance_due"`

	BillNumber string `json:"bill_number,omitempty"`
	BillDate   string `json:"bill_date,omitempty"`

	Scheme         constants.Scheme `json:"scheme,omitempty"`
	Grade          string           `json:"grade,omitempty"`
	PriorOPDClaims float64          `json:"prior_opd_claims_fy,omitempty"`

	Attachments Attachments `json:"attachments"`

	OCRConfidence       float64            `json:"ocr_confidence"`
	ExtractionMethod    string             `json:"extraction_method"` // OCR_ONLY | OCR_LLM
	ExtractionTimestamp time.Time          `json:"extraction_timestamp"`
	ConfidenceScores    map[string]float64 `json:"confidence_scores,omitempty"`

	ValidationResults []ValidationResult `json:"validation_results,omitempty"`
	ValidationSummary *ValidationSummary `json:"validation_summary,omitempty"`

	// Overlay edits: never written back into the extracted fields above.
	EditedFields map[string]string `json:"edited_fields,omitempty"`
	EditedAt     *time.Time        `json:"edited_at,omitempty"`
	EditedByUser bool              `json:"edited_by_user,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BillSummary is the listing shape: no line items, no confidence map.
type BillSummary struct {
	ID               string             `json:"id"`
	SourceFile       string             `json:"source_file"`
	PatientName      string             `json:"patient_name"`
	HospitalName     string             `json:"hospital_name"`
	TotalAmount      float64            `json:"total_amount"`
	NetAmount        float64            `json:"net_amount"`
	ExtractionMethod string             `json:"extraction_method"`
	OCRConfidence    float64            `json:"ocr_confidence"`
	CreatedAt        time.Time          `json:"created_at"`
	Summary          *ValidationSummary `json:"validation_summary,omitempty"`
}

// Summarize produces the listing shape from a full bill.
func (b *Bill) Summarize() BillSummary {
	return BillSummary{
		ID:               b.ID,
		SourceFile:       b.SourceFile,
		PatientName:      b.Patient.Name,
		HospitalName:     b.Hospital.Name,
		TotalAmount:      b.TotalAmount,
		NetAmount:        b.NetAmount,
		ExtractionMethod: b.ExtractionMethod,
		OCRConfidence:    b.OCRConfidence,
		CreatedAt:        b.CreatedAt,
		Summary:          b.ValidationSummary,
	}
}
