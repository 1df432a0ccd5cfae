package bills

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medbillai/medbill/constants"
	"github.com/medbillai/medbill/internal/common"
	"github.com/medbillai/medbill/internal/entity"
)

type fakeRepo struct {
	inserted *entity.Bill
	overlay  map[string]string
	saveID   string
}

func (f *fakeRepo) Insert(ctx context.Context, bill *entity.Bill) error {
	f.inserted = bill
	return nil
}

func (f *fakeRepo) Get(ctx context.Context, id string) (*entity.Bill, error) {
	if f.inserted != nil && f.inserted.ID == id {
		return f.inserted, nil
	}
	return nil, common.ErrNotFound
}

func (f *fakeRepo) List(ctx context.Context) ([]entity.BillSummary, error) { return nil, nil }

func (f *fakeRepo) SaveOverlay(ctx context.Context, id string, overlay map[string]string, editedByUser bool, editedAt time.Time) error {
	f.saveID = id
	f.overlay = overlay
	return nil
}

func (f *fakeRepo) ListBillKeys(ctx context.Context) (map[string]struct{}, error) { return nil, nil }

func testService() (*Service, *fakeRepo) {
	repo := &fakeRepo{}
	return NewService(repo, slog.New(slog.NewTextHandler(io.Discard, nil))), repo
}

func TestFinalizeStampsIdentityAndSummary(t *testing.T) {
	svc, repo := testService()

	draft := &entity.Bill{
		SourceFile:  "bill.pdf",
		TotalAmount: 45000,
	}
	results := []entity.ValidationResult{
		{RuleID: "EL001", Status: constants.VerdictPass},
		{RuleID: "DC001", Status: constants.VerdictFail},
		{RuleID: "HV001", Status: constants.VerdictWarn},
	}

	stored, err := svc.Finalize(context.Background(), draft, results)
	require.NoError(t, err)

	assert.NotEmpty(t, stored.ID)
	assert.Len(t, stored.ValidationResults, 3)
	require.NotNil(t, stored.ValidationSummary)
	assert.Equal(t, 3, stored.ValidationSummary.Total)
	assert.Equal(t, 1, stored.ValidationSummary.Passed)
	assert.Equal(t, 1, stored.ValidationSummary.Failed)
	assert.Equal(t, 1, stored.ValidationSummary.Warnings)
	assert.False(t, stored.CreatedAt.IsZero())
	assert.False(t, stored.ExtractionTimestamp.IsZero())

	require.NotNil(t, repo.inserted)
	assert.Equal(t, stored.ID, repo.inserted.ID)

	assert.Empty(t, draft.ID, "the draft itself stays untouched")
}

func TestFinalizeNilDraft(t *testing.T) {
	svc, _ := testService()
	_, err := svc.Finalize(context.Background(), nil, nil)
	assert.ErrorIs(t, err, common.ErrInvalidInput)
}

func TestApplyEditTouchesOnlyTheOverlay(t *testing.T) {
	bill := &entity.Bill{
		Patient:     entity.PatientInfo{Name: "Ramesh Verma"},
		TotalAmount: 45000,
	}

	ApplyEdit(bill, "patient.name", "Ramesh Kumar Verma")
	ApplyEdit(bill, "total_amount", "46000")

	assert.Equal(t, "Ramesh Verma", bill.Patient.Name, "extracted value never changes")
	assert.InDelta(t, 45000, bill.TotalAmount, 0.001)
	assert.Equal(t, "Ramesh Kumar Verma", bill.EditedFields["patient.name"])
	assert.Equal(t, "46000", bill.EditedFields["total_amount"])
	assert.True(t, bill.EditedByUser)
	require.NotNil(t, bill.EditedAt)
}

func TestSaveValidatesInput(t *testing.T) {
	svc, repo := testService()
	ctx := context.Background()

	err := svc.Save(ctx, "", map[string]string{"x": "y"}, true, time.Now())
	assert.ErrorIs(t, err, common.ErrInvalidInput)

	err = svc.Save(ctx, "b1", nil, true, time.Now())
	assert.ErrorIs(t, err, common.ErrInvalidInput)

	require.NoError(t, svc.Save(ctx, "b1", map[string]string{"patient.name": "X"}, true, time.Now()))
	assert.Equal(t, "b1", repo.saveID)
	assert.Equal(t, "X", repo.overlay["patient.name"])
}
