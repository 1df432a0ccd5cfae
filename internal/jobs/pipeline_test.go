package jobs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medbillai/medbill/constants"
	"github.com/medbillai/medbill/internal/bills"
	"github.com/medbillai/medbill/internal/entity"
	"github.com/medbillai/medbill/internal/extract"
	"github.com/medbillai/medbill/internal/ocr"
	"github.com/medbillai/medbill/internal/refdata"
	"github.com/medbillai/medbill/internal/repository"
)

const ocrFixture = `SUNRISE MULTISPECIALTY HOSPITAL
Patient Name: RAMESH VERMA
Date of Admission: 10/03/2025
Date of Discharge: 14/03/2025
Bill No: INV-2025-0042
Room Rent Rs. 16,000
Grand Total: Rs. 45,000
`

type fakeTextExtractor struct {
	text string
	err  error
}

func (f *fakeTextExtractor) Extract(ctx context.Context, path string, opts extract.TextOptions) (extract.TextResult, error) {
	if f.err != nil {
		return extract.TextResult{}, f.err
	}
	return extract.TextResult{Text: f.text, Pages: 2, PagesProcessed: 2, Method: "pdf-text", Confidence: 0.92}, nil
}

type fakeFieldExtractor struct {
	available bool
	err       error
	bill      *entity.Bill
}

func (f *fakeFieldExtractor) Available(ctx context.Context) bool { return f.available }

func (f *fakeFieldExtractor) ExtractFields(ctx context.Context, req extract.FieldsRequest) (extract.FieldsResult, error) {
	if f.err != nil {
		return extract.FieldsResult{}, f.err
	}
	return extract.FieldsResult{
		Bill:        f.bill,
		Confidences: map[string]float64{"patient.name": 0.95, "total_amount": 0.6},
		ModelName:   "test-model",
	}, nil
}

type pipelineHarness struct {
	store   *Store
	pipe    *Pipeline
	billSvc *bills.Service
}

func newHarness(t *testing.T, text extract.TextExtractor, fields extract.FieldExtractor) *pipelineHarness {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	db, err := repository.Open(filepath.Join(t.TempDir(), "bills.db"), repository.Options{}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo := repository.NewBillRepository(db, logger)
	billSvc := bills.NewService(repo, logger)

	refIndex, err := refdata.Open(filepath.Join(t.TempDir(), "ref.db"), time.Minute, logger)
	require.NoError(t, err)

	store := NewStore()
	pipe := NewPipeline(PipelineDeps{
		Store:       store,
		Repairer:    ocr.NewRepairer("/nonexistent/gs", logger),
		Text:        text,
		Fields:      fields,
		RefIndex:    refIndex,
		BillRepo:    repo,
		BillService: billSvc,
		Logger:      logger,
	})
	return &pipelineHarness{store: store, pipe: pipe, billSvc: billSvc}
}

func submitJob(t *testing.T, h *pipelineHarness, opts entity.Options) *entity.Job {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bill.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4 test"), 0o600))
	job := entity.NewJob("job-1", "bill.pdf", path, 0.01, opts)
	h.store.Put(job)
	return job
}

func TestPipelineCompletesWithoutModel(t *testing.T) {
	h := newHarness(t, &fakeTextExtractor{text: ocrFixture}, nil)
	opts := entity.DefaultOptions()
	opts.UseLLM = false
	submitJob(t, h, opts)

	h.pipe.Run("job-1")

	job, ok := h.store.Get("job-1")
	require.True(t, ok)
	assert.Equal(t, constants.JobStatusCompleted, job.Status)
	assert.Equal(t, 100, job.Progress)
	require.NotEmpty(t, job.ResultID)

	for _, st := range job.Stages {
		assert.Equal(t, constants.StageDone, st.Status, string(st.ID))
	}
	assert.Contains(t, job.Stage(constants.StageLLM).Message, "skipped")
	assert.Contains(t, job.Stage(constants.StageValidate).Message, "checks")

	bill, err := h.billSvc.Get(context.Background(), job.ResultID)
	require.NoError(t, err)
	assert.Equal(t, "OCR_ONLY", bill.ExtractionMethod)
	assert.Equal(t, "INV-2025-0042", bill.BillNumber)
	assert.Len(t, bill.ValidationResults, 15)
	require.NotNil(t, bill.ValidationSummary)
	assert.Equal(t, 15, bill.ValidationSummary.Total)
}

func TestPipelineStampsClaimContext(t *testing.T) {
	h := newHarness(t, &fakeTextExtractor{text: ocrFixture}, nil)
	opts := entity.DefaultOptions()
	opts.UseLLM = false
	submitJob(t, h, opts)

	h.pipe.Run("job-1")

	job, ok := h.store.Get("job-1")
	require.True(t, ok)
	require.NotEmpty(t, job.ResultID)

	bill, err := h.billSvc.Get(context.Background(), job.ResultID)
	require.NoError(t, err)
	assert.Equal(t, constants.SchemeCPRMSE, bill.Scheme)
	assert.Equal(t, "E2", bill.Grade)
	assert.True(t, bill.Attachments.DischargeSummary,
		"documentation is presumed present unless the submission says otherwise")
	assert.True(t, bill.Attachments.TransfusionEvidence)
	assert.False(t, bill.Attachments.ExtendedStayApproval)

	for _, r := range bill.ValidationResults {
		if r.RuleID == "DC001" {
			assert.Equal(t, constants.VerdictPass, r.Status,
				"an inpatient bill with the default claim context must not fail on documentation")
		}
	}
}

func TestPipelineDischargeSummaryWithheldFailsDocumentation(t *testing.T) {
	h := newHarness(t, &fakeTextExtractor{text: ocrFixture}, nil)
	opts := entity.DefaultOptions()
	opts.UseLLM = false
	opts.Claim.DischargeSummary = false
	submitJob(t, h, opts)

	h.pipe.Run("job-1")

	job, _ := h.store.Get("job-1")
	require.NotEmpty(t, job.ResultID)
	bill, err := h.billSvc.Get(context.Background(), job.ResultID)
	require.NoError(t, err)

	found := false
	for _, r := range bill.ValidationResults {
		if r.RuleID == "DC001" {
			found = true
			assert.Equal(t, constants.VerdictFail, r.Status)
		}
	}
	require.True(t, found)
}

func TestPipelineFallsBackWhenModelUnreachable(t *testing.T) {
	h := newHarness(t, &fakeTextExtractor{text: ocrFixture}, &fakeFieldExtractor{available: false})
	submitJob(t, h, entity.DefaultOptions())

	h.pipe.Run("job-1")

	job, _ := h.store.Get("job-1")
	assert.Equal(t, constants.JobStatusCompleted, job.Status)
	assert.Contains(t, job.Stage(constants.StageLLM).Message, "unreachable")

	bill, err := h.billSvc.Get(context.Background(), job.ResultID)
	require.NoError(t, err)
	assert.Equal(t, "OCR_ONLY", bill.ExtractionMethod)
}

func TestPipelineFallsBackWhenModelErrors(t *testing.T) {
	h := newHarness(t, &fakeTextExtractor{text: ocrFixture},
		&fakeFieldExtractor{available: true, err: errors.New("model exploded")})
	submitJob(t, h, entity.DefaultOptions())

	h.pipe.Run("job-1")

	job, _ := h.store.Get("job-1")
	assert.Equal(t, constants.JobStatusCompleted, job.Status,
		"a model failure never fails the job")
	assert.Contains(t, job.Stage(constants.StageLLM).Message, "falling back")
}

func TestPipelineUsesModelWhenAvailable(t *testing.T) {
	refined := &entity.Bill{
		Patient:     entity.PatientInfo{Name: "Ramesh Kumar Verma"},
		Hospital:    entity.HospitalInfo{Name: "Sunrise Multispecialty Hospital"},
		TotalAmount: 45000,
		BillNumber:  "INV-2025-0042",
	}
	h := newHarness(t, &fakeTextExtractor{text: ocrFixture},
		&fakeFieldExtractor{available: true, bill: refined})
	submitJob(t, h, entity.DefaultOptions())

	h.pipe.Run("job-1")

	job, _ := h.store.Get("job-1")
	require.Equal(t, constants.JobStatusCompleted, job.Status)
	assert.Contains(t, job.Stage(constants.StageLLM).Message, "test-model")

	bill, err := h.billSvc.Get(context.Background(), job.ResultID)
	require.NoError(t, err)
	assert.Equal(t, "OCR_LLM", bill.ExtractionMethod)
	assert.Equal(t, "Ramesh Kumar Verma", bill.Patient.Name)
	assert.Equal(t, "bill.pdf", bill.SourceFile)
	assert.Equal(t, 2, bill.TotalPages)
	assert.InDelta(t, 0.92, bill.OCRConfidence, 0.001)
	assert.Contains(t, bill.ConfidenceScores, "patient.name")
}

func TestPipelineOCRFailureStopsTheJob(t *testing.T) {
	h := newHarness(t, &fakeTextExtractor{err: errors.New("tesseract not found")}, nil)
	submitJob(t, h, entity.DefaultOptions())

	h.pipe.Run("job-1")

	job, _ := h.store.Get("job-1")
	assert.Equal(t, constants.JobStatusFailed, job.Status)
	assert.Contains(t, job.Error, "tesseract not found")

	assert.Equal(t, constants.StageDone, job.Stage(constants.StagePDFRepair).Status)
	assert.Equal(t, constants.StageFailed, job.Stage(constants.StageOCR).Status)
	assert.Equal(t, constants.StageWaiting, job.Stage(constants.StageLLM).Status)
	assert.Equal(t, constants.StageWaiting, job.Stage(constants.StageValidate).Status)
	assert.Empty(t, job.ResultID)
}

func TestPipelineMissingFileFailsRepair(t *testing.T) {
	h := newHarness(t, &fakeTextExtractor{text: ocrFixture}, nil)
	job := entity.NewJob("job-1", "bill.pdf", "/nonexistent/bill.pdf", 0, entity.DefaultOptions())
	h.store.Put(job)

	h.pipe.Run("job-1")

	got, _ := h.store.Get("job-1")
	assert.Equal(t, constants.JobStatusFailed, got.Status)
	assert.Equal(t, constants.StageFailed, got.Stage(constants.StagePDFRepair).Status)
	assert.Equal(t, constants.StageWaiting, got.Stage(constants.StageOCR).Status)
}
