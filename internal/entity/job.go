package entity

import (
	"time"

	"github.com/medbillai/medbill/constants"
)

// StageRecord is the progress entry for one pipeline stage.
type StageRecord struct {
	ID        constants.StageID     `json:"id"`
	Status    constants.StageStatus `json:"status"`
	Message   string                `json:"message,omitempty"`
	Timestamp time.Time             `json:"timestamp"`
}

// ClaimContext carries the claim facts the scanned document itself cannot
// state: the governing scheme, the beneficiary's grade, and which supporting
// documents accompany the claim. Documentation defaults to present so an
// unsubmitted flag does not fail every inpatient bill; extended-stay
// approval is the exception and must be asserted explicitly.
type ClaimContext struct {
	Scheme               constants.Scheme `json:"scheme"`
	Grade                string           `json:"grade"`
	PriorOPDClaims       float64          `json:"prior_opd_claims_fy"`
	DischargeSummary     bool             `json:"discharge_summary"`
	TransfusionEvidence  bool             `json:"transfusion_evidence"`
	ExtendedStayApproval bool             `json:"extended_stay_approval"`
}

// Options are the per-submission processing knobs.
type Options struct {
	UseLLM   bool         `json:"use_llm"`
	DPI      int          `json:"dpi"`
	MaxPages int          `json:"max_pages"` // 0 = all pages
	Claim    ClaimContext `json:"claim"`
}

// DefaultOptions returns the submission defaults.
func DefaultOptions() Options {
	return Options{
		UseLLM:   true,
		DPI:      200,
		MaxPages: 20,
		Claim: ClaimContext{
			Scheme:              constants.SchemeCPRMSE,
			Grade:               "E2",
			DischargeSummary:    true,
			TransfusionEvidence: true,
		},
	}
}

// Job tracks one document through the four-stage pipeline. A job is created
// pending, runs each stage in order, and is immutable once terminal.
type Job struct {
	ID         string              `json:"id"`
	Filename   string              `json:"filename"`
	FilePath   string              `json:"-"`
	FileSizeMB float64             `json:"file_size_mb"`
	Options    Options             `json:"options"`
	Status     constants.JobStatus `json:"status"`
	Stages     []StageRecord       `json:"steps"`
	Progress   int                 `json:"progress"`
	Error      string              `json:"error,omitempty"`
	ResultID   string              `json:"result_id,omitempty"`
	CreatedAt  time.Time           `json:"created_at"`
}

// NewJob builds a pending job with all four stages waiting.
func NewJob(id, filename, path string, sizeMB float64, opts Options) *Job {
	now := time.Now().UTC()
	stages := make([]StageRecord, 0, len(constants.StageOrder))
	for _, sid := range constants.StageOrder {
		stages = append(stages, StageRecord{ID: sid, Status: constants.StageWaiting, Timestamp: now})
	}
	return &Job{
		ID:         id,
		Filename:   filename,
		FilePath:   path,
		FileSizeMB: sizeMB,
		Options:    opts,
		Status:     constants.JobStatusPending,
		Stages:     stages,
		CreatedAt:  now,
	}
}

// Stage returns the record for a stage id, or nil.
func (j *Job) Stage(id constants.StageID) *StageRecord {
	for i := range j.Stages {
		if j.Stages[i].ID == id {
			return &j.Stages[i]
		}
	}
	return nil
}

// Clone returns a deep copy safe to hand to subscribers.
func (j *Job) Clone() *Job {
	cp := *j
	cp.Stages = make([]StageRecord, len(j.Stages))
	copy(cp.Stages, j.Stages)
	return &cp
}
