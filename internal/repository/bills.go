package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/medbillai/medbill/internal/common"
	"github.com/medbillai/medbill/internal/entity"
	"github.com/medbillai/medbill/internal/rules"
)

// BillRepository persists audited bills. The extraction is stored as an
// immutable JSON baseline; human corrections live in a separate overlay
// column and never rewrite the baseline.
type BillRepository interface {
	Insert(ctx context.Context, bill *entity.Bill) error
	Get(ctx context.Context, id string) (*entity.Bill, error)
	List(ctx context.Context) ([]entity.BillSummary, error)
	SaveOverlay(ctx context.Context, id string, overlay map[string]string, editedByUser bool, editedAt time.Time) error
	ListBillKeys(ctx context.Context) (map[string]struct{}, error)
}

type billRepository struct {
	db  *sql.DB
	log *slog.Logger
}

func NewBillRepository(db *sql.DB, logger *slog.Logger) BillRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &billRepository{db: db, log: logger}
}

// dbErr tags a driver failure so callers can match on common.ErrDatabase
// without knowing which driver is underneath.
func dbErr(code, message string, cause error) error {
	return common.NewAppError(code, message, fmt.Errorf("%w: %v", common.ErrDatabase, cause))
}

func (r *billRepository) Insert(ctx context.Context, bill *entity.Bill) error {
	raw, err := json.Marshal(bill)
	if err != nil {
		return common.NewAppError("BILL_ENCODE", "encode bill", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO bills (id, source_file, bill_number, hospital_name, patient_name,
			total_amount, net_amount, extraction_method, ocr_confidence,
			raw_json, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		bill.ID, bill.SourceFile, bill.BillNumber, bill.Hospital.Name, bill.Patient.Name,
		bill.TotalAmount, bill.NetAmount, bill.ExtractionMethod, bill.OCRConfidence,
		string(raw), bill.CreatedAt.Format(time.RFC3339), bill.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return dbErr("BILL_INSERT", "insert bill", err)
	}
	r.log.Debug("repository.bill.insert", "bill_id", bill.ID, "source_file", bill.SourceFile)
	return nil
}

func (r *billRepository) Get(ctx context.Context, id string) (*entity.Bill, error) {
	var (
		raw, overlay, editedAt string
		editedByUser           int
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT raw_json, overlay_json, edited_by_user, edited_at FROM bills WHERE id = $1`, id).
		Scan(&raw, &overlay, &editedByUser, &editedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, dbErr("BILL_GET", "read bill", err)
	}

	var bill entity.Bill
	if err := json.Unmarshal([]byte(raw), &bill); err != nil {
		return nil, common.NewAppError("BILL_DECODE", "decode stored bill", err)
	}

	var edits map[string]string
	if err := json.Unmarshal([]byte(overlay), &edits); err != nil {
		return nil, common.NewAppError("BILL_DECODE", "decode stored overlay", err)
	}
	if len(edits) > 0 {
		bill.EditedFields = edits
	}
	bill.EditedByUser = editedByUser != 0
	if editedAt != "" {
		if t, err := time.Parse(time.RFC3339, editedAt); err == nil {
			bill.EditedAt = &t
		}
	}
	return &bill, nil
}

func (r *billRepository) List(ctx context.Context) ([]entity.BillSummary, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT raw_json FROM bills ORDER BY created_at DESC`)
	if err != nil {
		return nil, dbErr("BILL_LIST", "list bills", err)
	}
	defer rows.Close()

	var out []entity.BillSummary
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, dbErr("BILL_LIST", "scan bill row", err)
		}
		var bill entity.Bill
		if err := json.Unmarshal([]byte(raw), &bill); err != nil {
			r.log.Warn("repository.bill.decode_failed", "error", err)
			continue
		}
		out = append(out, bill.Summarize())
	}
	return out, rows.Err()
}

// SaveOverlay merges the given edits over the stored overlay, last write
// wins per field path. Writing the same content again is a no-op by
// construction.
func (r *billRepository) SaveOverlay(ctx context.Context, id string, overlay map[string]string, editedByUser bool, editedAt time.Time) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return dbErr("BILL_SAVE", "begin overlay save", err)
	}
	defer func() { _ = tx.Rollback() }()

	var stored string
	err = tx.QueryRowContext(ctx, `SELECT overlay_json FROM bills WHERE id = $1`, id).Scan(&stored)
	if errors.Is(err, sql.ErrNoRows) {
		return common.ErrNotFound
	}
	if err != nil {
		return dbErr("BILL_SAVE", "read overlay", err)
	}

	merged := map[string]string{}
	if err := json.Unmarshal([]byte(stored), &merged); err != nil {
		return common.NewAppError("BILL_SAVE", "decode stored overlay", err)
	}
	for k, v := range overlay {
		merged[k] = v
	}
	b, err := json.Marshal(merged)
	if err != nil {
		return common.NewAppError("BILL_SAVE", "encode overlay", err)
	}

	edited := 0
	if editedByUser {
		edited = 1
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE bills SET overlay_json = $1, edited_by_user = $2, edited_at = $3, updated_at = $4
		WHERE id = $5`,
		string(b), edited, editedAt.Format(time.RFC3339), time.Now().UTC().Format(time.RFC3339), id,
	); err != nil {
		return dbErr("BILL_SAVE", "write overlay", err)
	}
	if err := tx.Commit(); err != nil {
		return dbErr("BILL_SAVE", "commit overlay", err)
	}
	r.log.Info("repository.bill.overlay_saved", "bill_id", id, "fields", len(overlay))
	return nil
}

// ListBillKeys returns the duplicate-detection keys of every stored bill.
func (r *billRepository) ListBillKeys(ctx context.Context) (map[string]struct{}, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT bill_number, hospital_name FROM bills WHERE bill_number <> ''`)
	if err != nil {
		return nil, dbErr("BILL_KEYS", "list bill keys", err)
	}
	defer rows.Close()

	keys := map[string]struct{}{}
	for rows.Next() {
		var number, hospital string
		if err := rows.Scan(&number, &hospital); err != nil {
			return nil, dbErr("BILL_KEYS", "scan bill key", err)
		}
		keys[rules.BillKey(number, hospital)] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, dbErr("BILL_KEYS", "iterate bill keys", err)
	}
	return keys, nil
}
