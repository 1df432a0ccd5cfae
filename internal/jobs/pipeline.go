package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/medbillai/medbill/constants"
	"github.com/medbillai/medbill/internal/bills"
	"github.com/medbillai/medbill/internal/common"
	"github.com/medbillai/medbill/internal/entity"
	"github.com/medbillai/medbill/internal/extract"
	"github.com/medbillai/medbill/internal/ocr"
	"github.com/medbillai/medbill/internal/refdata"
	"github.com/medbillai/medbill/internal/repository"
	"github.com/medbillai/medbill/internal/rules"
)

// Pipeline runs one job through the four fixed stages. Stages execute
// strictly in order; the first failure marks the job failed and leaves the
// remaining stages waiting.
type Pipeline struct {
	store     *Store
	repairer  *ocr.Repairer
	text      extract.TextExtractor
	fields    extract.FieldExtractor
	ruleBased *extract.RuleBased
	refIndex  *refdata.Index
	billSvc   *bills.Service
	repo      repository.BillRepository

	stageTimeout time.Duration
	log          *slog.Logger
}

type PipelineDeps struct {
	Store        *Store
	Repairer     *ocr.Repairer
	Text         extract.TextExtractor
	Fields       extract.FieldExtractor
	RefIndex     *refdata.Index
	BillRepo     repository.BillRepository
	BillService  *bills.Service
	StageTimeout time.Duration
	Logger       *slog.Logger
}

func NewPipeline(deps PipelineDeps) *Pipeline {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.StageTimeout <= 0 {
		deps.StageTimeout = 3 * time.Minute
	}
	return &Pipeline{
		store:        deps.Store,
		repairer:     deps.Repairer,
		text:         deps.Text,
		fields:       deps.Fields,
		ruleBased:    extract.NewRuleBased(),
		refIndex:     deps.RefIndex,
		billSvc:      deps.BillService,
		repo:         deps.BillRepo,
		stageTimeout: deps.StageTimeout,
		log:          deps.Logger,
	}
}

// Run processes one job end to end.
func (p *Pipeline) Run(jobID string) {
	job, ok := p.store.Get(jobID)
	if !ok {
		p.log.Error("pipeline.job_missing", "job_id", jobID)
		return
	}
	p.log.Info("pipeline.start", "job_id", jobID, "filename", job.Filename, "use_llm", job.Options.UseLLM)

	path, ok := p.runRepair(job)
	if !ok {
		return
	}
	textRes, baseline, ok := p.runOCR(job, path)
	if !ok {
		return
	}
	bill := p.runLLM(job, textRes, baseline)
	p.runValidate(job, bill)
}

func (p *Pipeline) stageCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), p.stageTimeout)
}

func (p *Pipeline) startStage(jobID string, stage constants.StageID) {
	p.store.Update(jobID, func(j *entity.Job) {
		j.Status = constants.JobStatusRunning
		if rec := j.Stage(stage); rec != nil {
			rec.Status = constants.StageActive
			rec.Timestamp = time.Now().UTC()
		}
	})
}

func (p *Pipeline) completeStage(jobID string, stage constants.StageID, msg string) {
	p.store.Update(jobID, func(j *entity.Job) {
		if rec := j.Stage(stage); rec != nil {
			rec.Status = constants.StageDone
			rec.Message = msg
			rec.Timestamp = time.Now().UTC()
		}
		j.Progress = progressFor(j)
	})
}

func (p *Pipeline) failStage(jobID string, stage constants.StageID, cause error) {
	p.log.Error("pipeline.stage_failed", "job_id", jobID, "stage", string(stage), "error", cause)
	p.store.Update(jobID, func(j *entity.Job) {
		if rec := j.Stage(stage); rec != nil {
			rec.Status = constants.StageFailed
			rec.Message = cause.Error()
			rec.Timestamp = time.Now().UTC()
		}
		j.Status = constants.JobStatusFailed
		j.Error = fmt.Sprintf("%s: %v", stage, cause)
	})
}

// stageErr folds a timeout into a stage error message.
func stageErr(ctx context.Context, err error) error {
	if ctx.Err() == context.DeadlineExceeded {
		return fmt.Errorf("stage timed out: %w", ctx.Err())
	}
	return err
}

func (p *Pipeline) runRepair(job *entity.Job) (string, bool) {
	p.startStage(job.ID, constants.StagePDFRepair)
	ctx, cancel := p.stageCtx()
	defer cancel()

	info, err := os.Stat(job.FilePath)
	if err != nil {
		p.failStage(job.ID, constants.StagePDFRepair, common.WrapError(err, "uploaded file unreadable"))
		return "", false
	}
	if info.Size() == 0 {
		p.failStage(job.ID, constants.StagePDFRepair, fmt.Errorf("uploaded file is empty"))
		return "", false
	}

	path, warns, err := p.repairer.Repair(ctx, job.FilePath)
	if err != nil {
		p.failStage(job.ID, constants.StagePDFRepair, stageErr(ctx, err))
		return "", false
	}
	msg := fmt.Sprintf("document ready (%.2f MB)", float64(info.Size())/(1024*1024))
	if len(warns) > 0 {
		msg += "; " + warns[0]
	}
	p.completeStage(job.ID, constants.StagePDFRepair, msg)
	return path, true
}

func (p *Pipeline) runOCR(job *entity.Job, path string) (extract.TextResult, *entity.Bill, bool) {
	p.startStage(job.ID, constants.StageOCR)
	ctx, cancel := p.stageCtx()
	defer cancel()

	res, err := p.text.Extract(ctx, path, extract.TextOptions{
		DPI:      job.Options.DPI,
		MaxPages: job.Options.MaxPages,
	})
	if err != nil {
		p.failStage(job.ID, constants.StageOCR, stageErr(ctx, err))
		return extract.TextResult{}, nil, false
	}

	baseline := extract.PostProcess(p.ruleBased.Extract(res.Text))
	baseline.SourceFile = job.Filename
	baseline.TotalPages = res.Pages
	baseline.OCRConfidence = res.Confidence

	p.completeStage(job.ID, constants.StageOCR,
		fmt.Sprintf("%d chars from %d pages (%s)", len(res.Text), res.Pages, res.Method))
	return res, baseline, true
}

// runLLM refines the baseline when the model is enabled and reachable. The
// llm stage never fails the job: disabled, unreachable and erroring backends
// all fall back to the rule-based extraction.
func (p *Pipeline) runLLM(job *entity.Job, textRes extract.TextResult, baseline *entity.Bill) *entity.Bill {
	p.startStage(job.ID, constants.StageLLM)
	ctx, cancel := p.stageCtx()
	defer cancel()

	if !job.Options.UseLLM {
		p.completeStage(job.ID, constants.StageLLM, "skipped: model disabled for this job; rule-based extraction stands")
		return baseline
	}
	if p.fields == nil || !p.fields.Available(ctx) {
		p.completeStage(job.ID, constants.StageLLM, "model unreachable; falling back to rule-based extraction")
		return baseline
	}

	out, err := p.fields.ExtractFields(ctx, extract.FieldsRequest{
		OCRText:      textRes.Text,
		FilenameHint: job.Filename,
		Baseline:     baseline,
	})
	if err != nil {
		p.log.Warn("pipeline.llm_fallback", "job_id", job.ID, "error", err)
		p.completeStage(job.ID, constants.StageLLM,
			fmt.Sprintf("model extraction failed (%v); falling back to rule-based extraction", stageErr(ctx, err)))
		return baseline
	}

	bill := out.Bill
	bill.SourceFile = baseline.SourceFile
	bill.TotalPages = baseline.TotalPages
	bill.OCRConfidence = baseline.OCRConfidence
	bill.ExtractionMethod = "OCR_LLM"
	bill.ConfidenceScores = out.Confidences
	bill = extract.PostProcess(bill)

	report := extract.Classify(out.Confidences)
	p.completeStage(job.ID, constants.StageLLM,
		fmt.Sprintf("fields refined by %s; %d low-confidence fields", out.ModelName, report.LowCount))
	return bill
}

// applyClaimContext stamps the submission-supplied claim facts onto the
// extracted bill before the audit runs. Nothing on the scanned document
// states the scheme, the grade, or which documents came with the claim.
func applyClaimContext(bill *entity.Bill, cc entity.ClaimContext) {
	bill.Scheme = cc.Scheme
	bill.Grade = cc.Grade
	bill.PriorOPDClaims = cc.PriorOPDClaims
	bill.Attachments = entity.Attachments{
		DischargeSummary:     cc.DischargeSummary,
		TransfusionEvidence:  cc.TransfusionEvidence,
		ExtendedStayApproval: cc.ExtendedStayApproval,
	}
}

func (p *Pipeline) runValidate(job *entity.Job, bill *entity.Bill) {
	p.startStage(job.ID, constants.StageValidate)
	ctx, cancel := p.stageCtx()
	defer cancel()

	applyClaimContext(bill, job.Options.Claim)

	knownKeys, err := p.repo.ListBillKeys(ctx)
	if err != nil {
		p.log.Warn("pipeline.bill_keys_unavailable", "job_id", job.ID, "error", err)
		knownKeys = nil
	}
	ref := rules.Reference{
		Data:          p.refIndex.Snapshot(),
		KnownBillKeys: knownKeys,
	}

	results := rules.Evaluate(bill, ref, p.log)
	stored, err := p.billSvc.Finalize(ctx, bill, results)
	if err != nil {
		p.failStage(job.ID, constants.StageValidate, stageErr(ctx, err))
		return
	}

	summary := stored.ValidationSummary
	p.store.Update(job.ID, func(j *entity.Job) {
		if rec := j.Stage(constants.StageValidate); rec != nil {
			rec.Status = constants.StageDone
			rec.Message = fmt.Sprintf("%d checks: %d passed, %d failed, %d warnings",
				summary.Total, summary.Passed, summary.Failed, summary.Warnings)
			rec.Timestamp = time.Now().UTC()
		}
		j.ResultID = stored.ID
		j.Status = constants.JobStatusCompleted
		j.Progress = 100
	})
	p.log.Info("pipeline.done", "job_id", job.ID, "bill_id", stored.ID,
		"failed", summary.Failed, "warnings", summary.Warnings)
}
