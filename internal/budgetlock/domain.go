package budgetlock

import (
	"errors"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/ebudget/ebudget/internal/api"
	"github.com/ebudget/ebudget/internal/budget"
)

// Status enumerates the submission lifecycle of a cost-center budget.
type Status string

const (
	StatusOpen            Status = "OPEN"
	StatusSubmitted       Status = "SUBMITTED"
	StatusUnlockRequested Status = "UNLOCK_REQUESTED"
)

var (
	// ErrAlreadySubmitted is returned when submitting a submitted budget.
	ErrAlreadySubmitted = errors.New("budgetlock: budget already submitted")
	// ErrNotSubmitted is returned when an action needs a submitted budget.
	ErrNotSubmitted = errors.New("budgetlock: budget not submitted")
	// ErrUnlockPending is returned when an unlock request is already open.
	ErrUnlockPending = errors.New("budgetlock: unlock already requested")
	// ErrReasonRequired is returned when an unlock request has no reason.
	ErrReasonRequired = errors.New("budgetlock: unlock reason required")
	// ErrNoCategories is returned when a lock names no category.
	ErrNoCategories = errors.New("budgetlock: no categories selected")
	// ErrNoTargets is returned when a bulk action matches no cost center.
	ErrNoTargets = errors.New("budgetlock: no cost centers selected")
	// ErrUnknownCostCenter is returned when an admin action names no known record.
	ErrUnknownCostCenter = errors.New("budgetlock: unknown cost center")
	// ErrForbidden is returned when a non super-user calls an admin action.
	ErrForbidden = errors.New("budgetlock: super-user only")
)

// Record is the lock state of one cost center for one budget year.
type Record struct {
	CostCenterName    string             `json:"cost_center_name"`
	Region            string             `json:"region"`
	Company           string             `json:"company"`
	ProfitCenter      string             `json:"profit_center"`
	Year              int                `json:"year"`
	Submitted         bool               `json:"submitted"`
	SubmittedAt       time.Time          `json:"submitted_at"`
	UnlockRequested   bool               `json:"unlock_requested"`
	UnlockReason      string             `json:"unlock_reason"`
	UnlockRequestedAt time.Time          `json:"unlock_requested_at"`
	Locks             budget.CategorySet `json:"locks"`
}

// Status derives the lifecycle stage. Category locks are orthogonal.
func (r Record) Status() Status {
	switch {
	case r.Submitted && r.UnlockRequested:
		return StatusUnlockRequested
	case r.Submitted:
		return StatusSubmitted
	default:
		return StatusOpen
	}
}

// Editable reports whether values of category may be changed.
func (r Record) Editable(category budget.Category) bool {
	return !r.Submitted && !r.Locks.Has(category)
}

// Submit marks the budget as submitted.
func (r Record) Submit(now time.Time) (Record, error) {
	if r.Submitted {
		return r, ErrAlreadySubmitted
	}
	r.Submitted = true
	r.SubmittedAt = now
	return r, nil
}

// RequestUnlock records a reopen request on a submitted budget. The
// submission stays in place until an administrator grants it.
func (r Record) RequestUnlock(reason string, now time.Time) (Record, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return r, ErrReasonRequired
	}
	if !r.Submitted {
		return r, ErrNotSubmitted
	}
	if r.UnlockRequested {
		return r, ErrUnlockPending
	}
	r.UnlockRequested = true
	r.UnlockReason = reason
	r.UnlockRequestedAt = now
	return r, nil
}

// ApproveUnlock reopens a submitted budget. The API and the admin console
// call this action "reject".
func (r Record) ApproveUnlock() (Record, error) {
	if !r.Submitted {
		return r, ErrNotSubmitted
	}
	r.Submitted = false
	r.SubmittedAt = time.Time{}
	r.UnlockRequested = false
	r.UnlockReason = ""
	r.UnlockRequestedAt = time.Time{}
	return r, nil
}

// LockCategories adds set to the locked categories.
func (r Record) LockCategories(set budget.CategorySet) (Record, error) {
	if set.IsEmpty() {
		return r, ErrNoCategories
	}
	r.Locks = r.Locks.Union(set)
	return r, nil
}

// UnlockCategories clears every category lock.
func (r Record) UnlockCategories() Record {
	r.Locks = 0
	return r
}

// FromAPI converts the wire record. Unknown category keys are dropped with
// a warning.
func FromAPI(s api.LockStatus, logger *slog.Logger) Record {
	set, unknown := budget.CategorySetFromMap(s.CategoryLocks)
	if len(unknown) > 0 && logger != nil {
		sort.Strings(unknown)
		logger.Warn("ignoring unknown lock categories",
			slog.String("cost_center", s.CostCenterName),
			slog.Any("categories", unknown))
	}
	return Record{
		CostCenterName:    s.CostCenterName,
		Region:            s.Region,
		Company:           s.Company,
		ProfitCenter:      s.ProfitCenter,
		Year:              s.GLYear,
		Submitted:         s.IsSubmitted,
		SubmittedAt:       parseTime(s.SubmitAt),
		UnlockRequested:   s.UnlockRequested,
		UnlockReason:      s.UnlockReason,
		UnlockRequestedAt: parseTime(s.UnlockAt),
		Locks:             set,
	}
}

func parseTime(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05", "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t
		}
	}
	return time.Time{}
}
