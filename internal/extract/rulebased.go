package extract

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/medbillai/medbill/constants"
	"github.com/medbillai/medbill/internal/entity"
)

// RuleBased extracts structured fields from OCR text with regex patterns.
// It is the deterministic baseline: the LLM extractor refines its output,
// and it stands alone when the model is disabled or unreachable.
type RuleBased struct{}

func NewRuleBased() *RuleBased { return &RuleBased{} }

var (
	rePatientName = []*regexp.Regexp{
		regexp.MustCompile(`(?i)Patient\s*(?:Name|'s?\s*Name)\s*[.:]*\s*([A-Z][A-Za-z\s.]+?)(?:\s{2,}|\n)`),
		regexp.MustCompile(`(?i)Name\s+of\s+(?:Patient|the\s+Patient)\s*[.:]*\s*([A-Z][A-Za-z\s.]+?)(?:\s{2,}|\n)`),
		regexp.MustCompile(`Mrs?\.\s*([A-Z][A-Za-z\s.]+?)(?:\s{2,}|\n)`),
	}
	reAge = []*regexp.Regexp{
		regexp.MustCompile(`(?i)Age\s*[.:]*\s*(\d{1,3}\s*(?:Y(?:ears?|rs?)?|M(?:onths?)?|D(?:ays?)?))`),
	}
	reGender = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:Sex|Gender)\s*[.:]*\s*(Male|Female|M|F)`),
	}
	reUHID = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:UHID|MRN|MR\s*No|Patient\s*ID|Reg\s*No)\s*[.:]*\s*(\S+)`),
	}
	reIPNo = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:IP\s*No|IPD\s*No|Admission\s*No|Indoor\s*No)\s*[.:]*\s*(\S+)`),
	}
	reEmployeeID = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:Employee|Emp\s*No|EIS/NEIS)[\s.:]*(?:of\s+Employee)?[\s.:]*(\d{8,})`),
	}
	reHospitalLine = regexp.MustCompile(`(?i)(Hospital|Medical|Institute|Centre|Center|Clinic|Healthcare|Nursing)`)
	reNotHospital  = regexp.MustCompile(`(?i)(Patient|Date|Bill|Discharge|Admission)`)
	reHospitalReg  = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:Reg|Registration)\s*(?:No|Number)\s*[.:]*\s*(\S+)`),
	}
	rePhone = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:Ph|Tel|Phone|Contact)\s*[.:]*\s*([\d\s/\-+,()]{6,})`),
	}
	reAdmissionDate = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:Admission|Admitted|DOA|Date\s+of\s+Admission)\s*(?:Date)?\s*[.:]*\s*(\d{1,2}[./-]\d{1,2}[./-]\d{2,4})`),
	}
	reDischargeDate = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:Discharge|DOD|Date\s+of\s+Discharge)\s*(?:Date)?\s*[.:]*\s*(\d{1,2}[./-]\d{1,2}[./-]\d{2,4})`),
	}
	reDiagnosis = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:Diagnosis|Final\s+Diagnosis|Primary\s+Diagnosis|Provisional\s+Diagnosis)\s*[.:]*\s*(.+)`),
	}
	reWardType = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:Ward|Room|Bed)\s*(?:Type|Category)?\s*[.:]*\s*(General|Private|Semi|Deluxe|Suite|ICU|HDU|NICU|Twin)`),
	}
	reTreatingDoctor = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:Treating|Attending|Consultant)\s*(?:Doctor|Physician|Surgeon)\s*[.:]*\s*(?:Dr\.?\s*)?([A-Z][A-Za-z\s.]+?)(?:\s{2,}|\n)`),
	}
	reReferralDate = []*regexp.Regexp{
		regexp.MustCompile(`(?i)Referral\s*Date\s*[.:]*\s*(\d{1,2}[./-]\d{1,2}[./-]\d{2,4})`),
	}
	reBillNumber = []*regexp.Regexp{
		regexp.MustCompile(`(?i)Invoice\s*#\s*(\S+)`),
		regexp.MustCompile(`(?i)Bill\s*(?:No|Number|#)\s*[.:]*\s*(\S+)`),
		regexp.MustCompile(`(?i)Invoice\s*(?:No|Number|#)\s*[.:]*\s*(\S+)`),
	}
	reBillDate = []*regexp.Regexp{
		regexp.MustCompile(`(?i)Bill\s*Date\s*[.:]*\s*(\d{1,2}[./-]\d{1,2}[./-]\d{2,4})`),
		regexp.MustCompile(`(?i)Invoice\s*Date\s*[.:]*\s*(\d{1,2}[./-]\d{1,2}[./-]\d{2,4})`),
	}

	reTotal = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:Grand\s+Total|Total\s+Bill|Total\s+Amount|Gross\s+Amount)\s*[.:]*\s*(?:Rs\.?|INR|₹)?\s*([\d,]+\.?\d*)`),
	}
	reNet = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:Net\s+(?:Amount|Payable|Bill)|Amount\s+Payable|Bill\s+Amount)\s*[.:]*\s*(?:Rs\.?|INR|₹)?\s*([\d,]+\.?\d*)`),
	}
	reAdvance = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:Advance|Deposit|Payment\s+Received)\s*[.:]*\s*(?:Rs\.?|INR|₹)?\s*([\d,]+\.?\d*)`),
	}
	reBalance = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:Balance|Due|Outstanding)\s*(?:Amount)?\s*[.:]*\s*(?:Rs\.?|INR|₹)?\s*([\d,]+\.?\d*)`),
	}
	reDiscount = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:Discount|Concession)\s*[.:]*\s*(?:Rs\.?|INR|₹)?\s*([\d,]+\.?\d*)`),
	}
)

// lineItemPatterns pairs each item type with the charge-label patterns that
// identify it in OCR text.
var lineItemPatterns = []struct {
	Type     constants.ItemType
	Patterns []*regexp.Regexp
}{
	{constants.RoomRent, compileCharges(`Room\s*(?:Rent|Charges?)`, `Bed\s*Charges?`, `Ward\s*Charges?`)},
	{constants.Consultation, compileCharges(`Consultation\s*(?:Fee|Charges?)`, `Doctor\s*(?:Fee|Charges?|Visit)`)},
	{constants.Procedure, compileCharges(`(?:Surgery|Surgical|Procedure|Operation)\s*Charges?`)},
	{constants.OTCharges, compileCharges(`OT\s*Charges?`)},
	{constants.Investigation, compileCharges(`(?:Lab|Laboratory|Investigation|Pathology|Radiology|Imaging)\s*Charges?`, `(?:X-Ray|MRI|CT\s*Scan|Ultrasound|ECG|EEG)\s*Charges?`)},
	{constants.Medicine, compileCharges(`(?:Medicine|Pharmacy|Drug)\s*Charges?`)},
	{constants.Consumable, compileCharges(`(?:Consumable|Disposable|Surgical\s*Items?)\s*Charges?`)},
	{constants.Nursing, compileCharges(`Nursing\s*Charges?`)},
	{constants.ICU, compileCharges(`ICU\s*Charges?`, `(?:Intensive\s*Care|Critical\s*Care)\s*Charges?`)},
	{constants.Implant, compileCharges(`Implant\s*(?:Cost|Charges?)`)},
	{constants.BloodTransfusion, compileCharges(`Blood\s*(?:Transfusion|Bank)\s*Charges?`)},
	{constants.Ambulance, compileCharges(`Ambulance\s*Charges?`)},
	{constants.OtherItem, compileCharges(`Miscellaneous\s*Charges?`, `Other\s*Charges?`, `Sundry`)},
}

func compileCharges(labels ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(labels))
	for _, l := range labels {
		out = append(out, regexp.MustCompile(`(?i)`+l+`\s*[.:]*\s*(?:Rs\.?|INR|₹)?\s*([\d,]+\.?\d*)`))
	}
	return out
}

// Extract builds a draft bill from OCR text.
func (e *RuleBased) Extract(text string) *entity.Bill {
	bill := &entity.Bill{ExtractionMethod: "OCR_ONLY"}

	bill.Patient = entity.PatientInfo{
		Name:       firstMatch(text, rePatientName),
		Age:        firstMatch(text, reAge),
		Gender:     firstMatch(text, reGender),
		UHID:       firstMatch(text, reUHID),
		IPNumber:   firstMatch(text, reIPNo),
		EmployeeID: firstMatch(text, reEmployeeID),
	}

	bill.Hospital = entity.HospitalInfo{
		Name:               hospitalName(text),
		Phone:              strings.TrimSpace(firstMatch(text, rePhone)),
		RegistrationNumber: firstMatch(text, reHospitalReg),
	}

	bill.Admission = entity.AdmissionInfo{
		AdmissionDate:  firstMatch(text, reAdmissionDate),
		DischargeDate:  firstMatch(text, reDischargeDate),
		Diagnosis:      firstLine(firstMatch(text, reDiagnosis)),
		WardType:       firstMatch(text, reWardType),
		TreatingDoctor: firstMatch(text, reTreatingDoctor),
		ReferralDate:   firstMatch(text, reReferralDate),
	}

	bill.TotalAmount = parseAmount(firstMatch(text, reTotal))
	bill.NetAmount = parseAmount(firstMatch(text, reNet))
	bill.AdvancePaid = parseAmount(firstMatch(text, reAdvance))
	bill.BalanceDue = parseAmount(firstMatch(text, reBalance))
	bill.Discount = parseAmount(firstMatch(text, reDiscount))

	bill.BillNumber = firstMatch(text, reBillNumber)
	bill.BillDate = firstMatch(text, reBillDate)

	bill.LineItems = extractLineItems(text)
	return bill
}

func firstMatch(text string, patterns []*regexp.Regexp) string {
	for _, p := range patterns {
		if m := p.FindStringSubmatch(text); m != nil {
			return strings.TrimSpace(m[1])
		}
	}
	return ""
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return s
}

// hospitalName scans the first lines: bills carry the letterhead on top.
func hospitalName(text string) string {
	lines := strings.Split(text, "\n")
	if len(lines) > 15 {
		lines = lines[:15]
	}
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if len(line) <= 5 {
			continue
		}
		if reHospitalLine.MatchString(line) && !reNotHospital.MatchString(line) {
			return line
		}
	}
	return ""
}

func parseAmount(s string) float64 {
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	if err != nil {
		return 0
	}
	return v
}

func extractLineItems(text string) []entity.LineItem {
	var items []entity.LineItem
	for _, cat := range lineItemPatterns {
		for _, p := range cat.Patterns {
			m := p.FindStringSubmatch(text)
			if m == nil {
				continue
			}
			amount := parseAmount(m[1])
			if amount <= 0 {
				continue
			}
			items = append(items, entity.LineItem{
				Type:        cat.Type,
				Description: strings.TrimSpace(m[0]),
				Quantity:    1,
				Amount:      amount,
			})
			break // one match per category is enough for the baseline
		}
	}
	return items
}

// billDateLayouts are the date formats seen on scanned bills.
var billDateLayouts = []string{"02/01/2006", "02-01-2006", "02.01.2006", "02/01/06", "02-01-06", "2006-01-02"}

// ParseBillDate parses a date in any of the formats bills use.
func ParseBillDate(s string) (time.Time, bool) {
	for _, layout := range billDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// PostProcess cleans a draft bill: title-cases the patient name, derives the
// length of stay, and falls back to the line-item sum when no total was found.
func PostProcess(bill *entity.Bill) *entity.Bill {
	if bill.Patient.Name != "" {
		bill.Patient.Name = titleCase(bill.Patient.Name)
	}

	if bill.Admission.AdmissionDate != "" && bill.Admission.DischargeDate != "" {
		adm, okA := ParseBillDate(bill.Admission.AdmissionDate)
		dis, okD := ParseBillDate(bill.Admission.DischargeDate)
		if okA && okD {
			bill.Admission.DaysStayed = int(dis.Sub(adm).Hours() / 24)
		}
	}

	if bill.TotalAmount == 0 && len(bill.LineItems) > 0 {
		var sum float64
		for _, item := range bill.LineItems {
			sum += item.Amount
		}
		bill.TotalAmount = sum
	}

	if bill.Admission.TreatmentType == "" && bill.Admission.AdmissionDate != "" {
		bill.Admission.TreatmentType = "IPD"
	}
	return bill
}

func titleCase(s string) string {
	words := strings.Fields(strings.ToLower(strings.TrimSpace(s)))
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
