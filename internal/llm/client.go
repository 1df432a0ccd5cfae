package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/medbillai/medbill/constants"
	"github.com/medbillai/medbill/internal/entity"
	"github.com/medbillai/medbill/internal/extract"
)

// Config for the chat-completions client. Any OpenAI-compatible endpoint
// works; the default targets a local Ollama at /v1.
type Config struct {
	BaseURL     string // default http://localhost:11434/v1
	Model       string // e.g. "phi3:3.8b"
	APIKey      string // optional for local backends
	Temperature float32
	Timeout     time.Duration
}

type Client struct {
	cfg        Config
	httpClient *http.Client
	log        *slog.Logger
}

var _ extract.FieldExtractor = (*Client)(nil)

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:11434/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "phi3:3.8b"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		log:        logger,
	}
}

// Available probes the backend's model listing with a short deadline.
func (c *Client) Available(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	url := strings.TrimRight(c.cfg.BaseURL, "/") + "/models"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false
	}
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Debug("llm.probe.unreachable", "url", url, "error", err)
		return false
	}
	_ = resp.Body.Close()
	return resp.StatusCode/100 == 2
}

// ExtractFields refines the rule-based baseline with a model pass over the
// OCR text. The reply is schema-validated, leniently sanitized when needed,
// and merged over the baseline so model omissions never erase regex hits.
func (c *Client) ExtractFields(ctx context.Context, req extract.FieldsRequest) (extract.FieldsResult, error) {
	rid := uuid.New().String()
	start := time.Now()

	c.log.Info("llm.extract.start",
		"req_id", rid,
		"model", c.cfg.Model,
		"temp", c.cfg.Temperature,
		"text_len", len(req.OCRText),
		"has_baseline", req.Baseline != nil,
	)

	schema := BuildBillJSONSchema()
	body := map[string]any{
		"model":           c.cfg.Model,
		"temperature":     c.cfg.Temperature,
		"response_format": map[string]any{"type": "json_object"},
		"messages": []map[string]any{
			{"role": "system", "content": buildSystemPrompt()},
			{"role": "user", "content": buildUserPrompt(req.OCRText, req.FilenameHint) + "\n\nReturn ONLY JSON that matches the provided schema."},
			{"role": "system", "content": "JSON Schema:\n" + mustJSON(schema)},
		},
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	headers := map[string]string{}
	if c.cfg.APIKey != "" {
		headers["Authorization"] = "Bearer " + c.cfg.APIKey
	}
	raw, _, httpErr := SendJSON(ctx, c.httpClient, endpoint, body, headers, c.log)
	if httpErr != nil {
		c.log.Error("llm.extract.http_error",
			"req_id", rid, "error", httpErr,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return extract.FieldsResult{}, httpErr
	}

	var cc struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &cc); err != nil {
		return extract.FieldsResult{Raw: raw}, fmt.Errorf("decode chat response: %w", err)
	}
	if len(cc.Choices) == 0 {
		return extract.FieldsResult{Raw: raw}, fmt.Errorf("no choices in chat response")
	}
	rawContent := StripCodeFences([]byte(cc.Choices[0].Message.Content))

	// Validate strictly first, then retry once through the lenient sanitize.
	if err := ValidateJSONAgainstSchema(schema, rawContent); err != nil {
		cleaned, droppedFields, sErr := SanitizeOptionalFields(rawContent)
		if sErr != nil {
			c.log.Error("llm.extract.sanitize_failed",
				"req_id", rid, "error", sErr,
				"elapsed_ms", time.Since(start).Milliseconds(),
			)
			return extract.FieldsResult{Raw: rawContent}, fmt.Errorf("sanitize failed: %w", sErr)
		}
		if vErr := ValidateJSONAgainstSchema(schema, cleaned); vErr != nil {
			c.log.Error("llm.extract.schema_validation_failed",
				"req_id", rid, "error", vErr, "content", string(rawContent),
				"elapsed_ms", time.Since(start).Milliseconds(),
			)
			return extract.FieldsResult{Raw: rawContent}, fmt.Errorf("schema validation failed: %w", vErr)
		}
		c.log.Warn("llm.extract.lenient_sanitize_applied",
			"req_id", rid, "dropped", droppedFields,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		rawContent = cleaned
	}

	var doc billDoc
	if err := json.Unmarshal(rawContent, &doc); err != nil {
		return extract.FieldsResult{Raw: rawContent}, fmt.Errorf("unmarshal fields: %w", err)
	}

	bill := doc.toBill()
	if req.Baseline != nil {
		bill = MergeOverBaseline(req.Baseline, bill)
	}

	c.log.Info("llm.extract.ok",
		"req_id", rid,
		"patient", bill.Patient.Name,
		"hospital", bill.Hospital.Name,
		"total", bill.TotalAmount,
		"line_items", len(bill.LineItems),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return extract.FieldsResult{
		Bill:        bill,
		Confidences: doc.ConfidenceScores,
		ModelName:   c.cfg.Model,
		Raw:         rawContent,
	}, nil
}

// billDoc is the wire shape the model returns.
type billDoc struct {
	Patient struct {
		Name       string `json:"name"`
		Age        string `json:"age"`
		Gender     string `json:"gender"`
		UHID       string `json:"uhid"`
		IPNumber   string `json:"ip_number"`
		EmployeeID string `json:"employee_id"`
	} `json:"patient"`
	Hospital struct {
		Name               string `json:"name"`
		Address            string `json:"address"`
		City               string `json:"city"`
		Phone              string `json:"phone"`
		RegistrationNumber string `json:"registration_number"`
	} `json:"hospital"`
	Admission struct {
		AdmissionDate  string   `json:"admission_date"`
		DischargeDate  string   `json:"discharge_date"`
		WardType       string   `json:"ward_type"`
		Diagnosis      string   `json:"diagnosis"`
		Procedures     []string `json:"procedures"`
		TreatingDoctor string   `json:"treating_doctor"`
		ReferralDate   string   `json:"referral_date"`
		TreatmentType  string   `json:"treatment_type"`
	} `json:"admission"`
	LineItems []struct {
		Type        string  `json:"type"`
		Description string  `json:"description"`
		Quantity    int     `json:"quantity"`
		UnitRate    float64 `json:"unit_rate"`
		Amount      float64 `json:"amount"`
		Date        string  `json:"date"`
	} `json:"line_items"`
	TotalAmount      float64            `json:"total_amount"`
	Discount         float64            `json:"discount"`
	NetAmount        float64            `json:"net_amount"`
	AdvancePaid      float64            `json:"advance_paid"`
	BalanceDue       float64            `json:"balance_due"`
	BillNumber       string             `json:"bill_number"`
	BillDate         string             `json:"bill_date"`
	ConfidenceScores map[string]float64 `json:"confidence_scores"`
}

func (d *billDoc) toBill() *entity.Bill {
	b := &entity.Bill{
		Patient: entity.PatientInfo{
			Name:       d.Patient.Name,
			Age:        d.Patient.Age,
			Gender:     d.Patient.Gender,
			UHID:       d.Patient.UHID,
			IPNumber:   d.Patient.IPNumber,
			EmployeeID: d.Patient.EmployeeID,
		},
		Hospital: entity.HospitalInfo{
			Name:               d.Hospital.Name,
			Address:            d.Hospital.Address,
			City:               d.Hospital.City,
			Phone:              d.Hospital.Phone,
			RegistrationNumber: d.Hospital.RegistrationNumber,
		},
		Admission: entity.AdmissionInfo{
			AdmissionDate:  d.Admission.AdmissionDate,
			DischargeDate:  d.Admission.DischargeDate,
			WardType:       d.Admission.WardType,
			Diagnosis:      d.Admission.Diagnosis,
			Procedures:     d.Admission.Procedures,
			TreatingDoctor: d.Admission.TreatingDoctor,
			ReferralDate:   d.Admission.ReferralDate,
			TreatmentType:  d.Admission.TreatmentType,
		},
		TotalAmount: d.TotalAmount,
		Discount:    d.Discount,
		NetAmount:   d.NetAmount,
		AdvancePaid: d.AdvancePaid,
		BalanceDue:  d.BalanceDue,
		BillNumber:  d.BillNumber,
		BillDate:    d.BillDate,
	}
	for _, it := range d.LineItems {
		t, _ := constants.CanonicalItemType(it.Type)
		qty := it.Quantity
		if qty < 1 {
			qty = 1
		}
		b.LineItems = append(b.LineItems, entity.LineItem{
			Type:        t,
			Description: it.Description,
			Quantity:    qty,
			UnitRate:    it.UnitRate,
			Amount:      it.Amount,
			Date:        it.Date,
		})
	}
	return b
}

func mustJSON(v any) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}
