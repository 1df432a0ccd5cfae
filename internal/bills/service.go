package bills

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/medbillai/medbill/internal/common"
	"github.com/medbillai/medbill/internal/entity"
	"github.com/medbillai/medbill/internal/repository"
)

// Service aggregates pipeline output into stored audit results and carries
// reviewer edits. The extracted values are never mutated: every correction
// lands in the overlay, and validation keeps referring to the raw extraction.
type Service struct {
	repo repository.BillRepository
	log  *slog.Logger
}

func NewService(repo repository.BillRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, log: logger}
}

// Finalize stamps identity and the verdict summary onto the draft and
// persists it. The returned bill is the stored shape.
func (s *Service) Finalize(ctx context.Context, draft *entity.Bill, results []entity.ValidationResult) (*entity.Bill, error) {
	if draft == nil {
		return nil, common.NewAppError("BILL_FINALIZE", "nil draft", common.ErrInvalidInput)
	}

	now := time.Now().UTC()
	bill := *draft
	if bill.ID == "" {
		bill.ID = uuid.New().String()
	}
	bill.ValidationResults = results
	summary := entity.Summarize(results)
	bill.ValidationSummary = &summary
	if bill.ExtractionTimestamp.IsZero() {
		bill.ExtractionTimestamp = now
	}
	bill.CreatedAt = now
	bill.UpdatedAt = now

	if err := s.repo.Insert(ctx, &bill); err != nil {
		return nil, err
	}
	s.log.Info("bills.finalized",
		"bill_id", bill.ID,
		"source_file", bill.SourceFile,
		"total", bill.TotalAmount,
		"passed", summary.Passed,
		"failed", summary.Failed,
		"warnings", summary.Warnings,
	)
	return &bill, nil
}

// ApplyEdit records a single correction in the bill's overlay. The raw
// extracted value stays untouched and retrievable.
func ApplyEdit(bill *entity.Bill, fieldPath, value string) {
	if bill.EditedFields == nil {
		bill.EditedFields = map[string]string{}
	}
	bill.EditedFields[fieldPath] = value
	now := time.Now().UTC()
	bill.EditedAt = &now
	bill.EditedByUser = true
}

// Save persists an overlay of edits, last write wins per field path.
// Persistence failure surfaces to the caller; nothing else is modified, so
// the same overlay can be retried.
func (s *Service) Save(ctx context.Context, billID string, overlay map[string]string, editedByUser bool, editedAt time.Time) error {
	if billID == "" {
		return common.NewAppError("BILL_SAVE", "missing bill id", common.ErrInvalidInput)
	}
	if len(overlay) == 0 {
		return common.NewAppError("BILL_SAVE", "empty edit set", common.ErrInvalidInput)
	}
	if editedAt.IsZero() {
		editedAt = time.Now().UTC()
	}
	return s.repo.SaveOverlay(ctx, billID, overlay, editedByUser, editedAt)
}

// Get returns one stored bill with its overlay attached.
func (s *Service) Get(ctx context.Context, id string) (*entity.Bill, error) {
	return s.repo.Get(ctx, id)
}

// List returns bill summaries, newest first.
func (s *Service) List(ctx context.Context) ([]entity.BillSummary, error) {
	return s.repo.List(ctx)
}
