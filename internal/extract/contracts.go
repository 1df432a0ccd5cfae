package extract

import (
	"context"
	"time"

	"github.com/medbillai/medbill/internal/entity"
)

// TextExtractor is Stage 2: document -> raw text. Implementations wrap
// external OCR tooling; the pipeline only sees this contract.
type TextExtractor interface {
	Extract(ctx context.Context, path string, opts TextOptions) (TextResult, error)
}

// TextOptions are the per-job OCR knobs.
type TextOptions struct {
	DPI      int
	MaxPages int // 0 = all pages
	Language string
}

// TextResult is the OCR stage output.
type TextResult struct {
	Text           string
	Pages          int
	PagesProcessed int
	Method         string // "pdf-text" | "pdf-ocr"
	Confidence     float64
	Duration       time.Duration
	Warnings       []string
}

// FieldsRequest carries everything the field extractor needs.
type FieldsRequest struct {
	OCRText      string
	FilenameHint string
	Baseline     *entity.Bill // rule-based draft the model refines
}

// FieldsResult is a draft bill plus the per-field confidence map keyed by
// field path ("patient.name", "financials.total_amount", "line_items[2].amount").
type FieldsResult struct {
	Bill        *entity.Bill
	Confidences map[string]float64
	ModelName   string
	Raw         []byte
}

// FieldExtractor is Stage 3: OCR text -> structured draft bill.
type FieldExtractor interface {
	// Available reports whether the extraction backend is reachable; when it
	// is not, the pipeline keeps the rule-based baseline instead of failing.
	Available(ctx context.Context) bool
	ExtractFields(ctx context.Context, req FieldsRequest) (FieldsResult, error)
}
