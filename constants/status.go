package constants

// JobStatus is the canonical lifecycle status of a processing job.
type JobStatus string

// Stable values (these exact strings go over the wire and into storage).
const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// Terminal reports whether a job in this status can never change again.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// StageStatus is the status of a single pipeline stage within a job.
type StageStatus string

const (
	StageWaiting StageStatus = "waiting"
	StageActive  StageStatus = "active"
	StageDone    StageStatus = "done"
	StageFailed  StageStatus = "failed"
)

// StageID identifies one of the four fixed pipeline stages.
type StageID string

const (
	StagePDFRepair StageID = "pdf_repair"
	StageOCR       StageID = "ocr"
	StageLLM       StageID = "llm"
	StageValidate  StageID = "validate"
)

// StageOrder is the fixed execution order. Stage statuses only ever advance
// through this sequence; nothing after a failed stage leaves "waiting".
var StageOrder = []StageID{StagePDFRepair, StageOCR, StageLLM, StageValidate}

// VerdictStatus is the outcome of one validation rule.
type VerdictStatus string

const (
	VerdictPass VerdictStatus = "pass"
	VerdictFail VerdictStatus = "fail"
	VerdictWarn VerdictStatus = "warn"
)

// Severity qualifies a verdict for reviewers.
type Severity string

const (
	SeverityInfo    Severity = "INFO"
	SeverityWarning Severity = "WARNING"
	SeverityError   Severity = "ERROR"
)
