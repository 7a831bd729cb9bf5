package budgetlock

import (
	"bytes"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ebudget/ebudget/internal/api"
	"github.com/ebudget/ebudget/internal/budget"
)

func TestLifecycleSubmitRequestApprove(t *testing.T) {
	now := time.Date(2025, 2, 1, 9, 0, 0, 0, time.UTC)
	rec := Record{CostCenterName: "CC01", Year: 2025}
	assert.Equal(t, StatusOpen, rec.Status())

	_, err := rec.RequestUnlock("typo", now)
	require.ErrorIs(t, err, ErrNotSubmitted)

	rec, err = rec.Submit(now)
	require.NoError(t, err)
	assert.True(t, rec.Submitted)
	assert.Equal(t, StatusSubmitted, rec.Status())
	_, err = rec.Submit(now)
	require.ErrorIs(t, err, ErrAlreadySubmitted)

	_, err = rec.RequestUnlock("   ", now)
	require.ErrorIs(t, err, ErrReasonRequired)

	rec, err = rec.RequestUnlock(" wrong figures ", now)
	require.NoError(t, err)
	assert.True(t, rec.Submitted)
	assert.True(t, rec.UnlockRequested)
	assert.Equal(t, "wrong figures", rec.UnlockReason)
	assert.Equal(t, StatusUnlockRequested, rec.Status())

	rec, err = rec.ApproveUnlock()
	require.NoError(t, err)
	assert.False(t, rec.Submitted)
	assert.False(t, rec.UnlockRequested)
	assert.Empty(t, rec.UnlockReason)
	assert.Equal(t, StatusOpen, rec.Status())
}

func TestEditability(t *testing.T) {
	cases := []struct {
		name      string
		submitted bool
		locks     budget.CategorySet
		category  budget.Category
		want      bool
	}{
		{"open", false, 0, budget.Sales, true},
		{"submitted", true, 0, budget.Sales, false},
		{"locked category", false, budget.NewCategorySet(budget.Sales), budget.Sales, false},
		{"other category locked", false, budget.NewCategorySet(budget.Cost), budget.Sales, true},
		{"submitted and locked", true, budget.NewCategorySet(budget.Sales), budget.Sales, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := Record{Submitted: tc.submitted, Locks: tc.locks}
			assert.Equal(t, tc.want, rec.Editable(tc.category))
		})
	}
}

func TestLockAndUnlockCategories(t *testing.T) {
	rec := Record{Submitted: true}
	_, err := rec.LockCategories(0)
	require.ErrorIs(t, err, ErrNoCategories)

	rec, err = rec.LockCategories(budget.NewCategorySet(budget.Sales))
	require.NoError(t, err)
	rec, err = rec.LockCategories(budget.NewCategorySet(budget.Manpower))
	require.NoError(t, err)
	assert.Equal(t, []budget.Category{budget.Sales, budget.Manpower}, rec.Locks.List())
	assert.True(t, rec.Submitted)

	rec = rec.UnlockCategories()
	assert.True(t, rec.Locks.IsEmpty())
	assert.True(t, rec.Submitted)
}

func TestFromAPIDropsUnknownCategories(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	rec := FromAPI(api.LockStatus{
		CostCenterName:  "CC01",
		GLYear:          2025,
		IsSubmitted:     true,
		SubmitAt:        "2025-01-31T10:00:00Z",
		UnlockRequested: true,
		UnlockReason:    "late invoices",
		CategoryLocks:   map[string]bool{"Sales": true, "Capex": true},
	}, logger)

	assert.True(t, rec.Locks.Has(budget.Sales))
	assert.Equal(t, 1, rec.Locks.Len())
	assert.Equal(t, 31, rec.SubmittedAt.Day())
	assert.Equal(t, StatusUnlockRequested, rec.Status())
	assert.Contains(t, buf.String(), "Capex")
}
