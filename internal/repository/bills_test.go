package repository

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medbillai/medbill/constants"
	"github.com/medbillai/medbill/internal/common"
	"github.com/medbillai/medbill/internal/entity"
	"github.com/medbillai/medbill/internal/rules"
)

func testRepo(t *testing.T) BillRepository {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	db, err := Open(filepath.Join(t.TempDir(), "bills.db"), Options{}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewBillRepository(db, logger)
}

func storedBill(id string) *entity.Bill {
	now := time.Now().UTC().Truncate(time.Second)
	return &entity.Bill{
		ID:               id,
		SourceFile:       "bill.pdf",
		BillNumber:       "INV-2025-0042",
		Patient:          entity.PatientInfo{Name: "Ramesh Verma"},
		Hospital:         entity.HospitalInfo{Name: "Sunrise Hospital"},
		TotalAmount:      45000,
		NetAmount:        44000,
		ExtractionMethod: "OCR_LLM",
		OCRConfidence:    0.92,
		LineItems: []entity.LineItem{
			{Type: constants.RoomRent, Description: "Room Rent", Quantity: 4, Amount: 16000},
		},
		ValidationResults: []entity.ValidationResult{
			{RuleID: "EL001", Category: "eligibility", Status: constants.VerdictPass, Severity: constants.SeverityInfo, Message: "ok"},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestInsertGetRoundTrip(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Insert(ctx, storedBill("b1")))

	got, err := repo.Get(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, "INV-2025-0042", got.BillNumber)
	assert.Equal(t, "Ramesh Verma", got.Patient.Name)
	assert.InDelta(t, 45000, got.TotalAmount, 0.001)
	require.Len(t, got.LineItems, 1)
	assert.Equal(t, constants.RoomRent, got.LineItems[0].Type)
	require.Len(t, got.ValidationResults, 1)
	assert.Equal(t, "EL001", got.ValidationResults[0].RuleID)
	assert.False(t, got.EditedByUser)
	assert.Empty(t, got.EditedFields)
}

func TestGetUnknownBill(t *testing.T) {
	repo := testRepo(t)
	_, err := repo.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestSaveOverlayMergesLastWriteWins(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()
	require.NoError(t, repo.Insert(ctx, storedBill("b1")))

	t1 := time.Now().UTC().Add(-time.Minute)
	require.NoError(t, repo.SaveOverlay(ctx, "b1",
		map[string]string{"patient.name": "Ramesh K Verma", "total_amount": "46000"}, true, t1))

	t2 := time.Now().UTC()
	require.NoError(t, repo.SaveOverlay(ctx, "b1",
		map[string]string{"total_amount": "47000"}, true, t2))

	got, err := repo.Get(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, "Ramesh K Verma", got.EditedFields["patient.name"], "untouched edits survive later saves")
	assert.Equal(t, "47000", got.EditedFields["total_amount"], "latest write wins per field")
	assert.True(t, got.EditedByUser)
	require.NotNil(t, got.EditedAt)

	// the raw extraction is untouched
	assert.InDelta(t, 45000, got.TotalAmount, 0.001)
	assert.Equal(t, "Ramesh Verma", got.Patient.Name)
}

func TestSaveOverlayIdempotentReSave(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()
	require.NoError(t, repo.Insert(ctx, storedBill("b1")))

	edits := map[string]string{"hospital.name": "Sunrise Multispecialty Hospital"}
	require.NoError(t, repo.SaveOverlay(ctx, "b1", edits, true, time.Now().UTC()))
	require.NoError(t, repo.SaveOverlay(ctx, "b1", edits, true, time.Now().UTC()))

	got, err := repo.Get(ctx, "b1")
	require.NoError(t, err)
	assert.Len(t, got.EditedFields, 1)
	assert.Equal(t, "Sunrise Multispecialty Hospital", got.EditedFields["hospital.name"])
}

func TestSaveOverlayUnknownBill(t *testing.T) {
	repo := testRepo(t)
	err := repo.SaveOverlay(context.Background(), "missing",
		map[string]string{"x": "y"}, true, time.Now().UTC())
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestListNewestFirst(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	older := storedBill("b1")
	older.CreatedAt = time.Now().UTC().Add(-time.Hour)
	require.NoError(t, repo.Insert(ctx, older))

	newer := storedBill("b2")
	newer.BillNumber = "INV-2025-0043"
	require.NoError(t, repo.Insert(ctx, newer))

	out, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "b2", out[0].ID)
	assert.Equal(t, "b1", out[1].ID)
}

func TestListBillKeys(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Insert(ctx, storedBill("b1")))
	blank := storedBill("b2")
	blank.BillNumber = ""
	require.NoError(t, repo.Insert(ctx, blank))

	keys, err := repo.ListBillKeys(ctx)
	require.NoError(t, err)
	assert.Len(t, keys, 1, "bills without a number carry no duplicate key")
	_, ok := keys[rules.BillKey("INV-2025-0042", "Sunrise Hospital")]
	assert.True(t, ok)
}

func TestDriverErrorsCarryDatabaseSentinel(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	db, err := Open(filepath.Join(t.TempDir(), "bills.db"), Options{}, logger)
	require.NoError(t, err)
	repo := NewBillRepository(db, logger)
	require.NoError(t, db.Close())

	ctx := context.Background()
	_, err = repo.ListBillKeys(ctx)
	assert.ErrorIs(t, err, common.ErrDatabase)

	_, err = repo.Get(ctx, "b1")
	assert.ErrorIs(t, err, common.ErrDatabase)

	_, err = repo.List(ctx)
	assert.ErrorIs(t, err, common.ErrDatabase)
}
