package budgetlock

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/ebudget/ebudget/internal/api"
	"github.com/ebudget/ebudget/internal/budget"
)

// Gateway is the subset of the budget API that owns lock records.
type Gateway interface {
	LockStatus(ctx context.Context, token string, year int) (api.LockStatus, error)
	AllLocks(ctx context.Context, token string, year int) ([]api.LockStatus, error)
	Submit(ctx context.Context, token string, cmd api.LockCommand) error
	RequestUnlock(ctx context.Context, token string, cmd api.LockCommand) error
	LockCategory(ctx context.Context, token string, cmd api.LockCommand) error
	Unlock(ctx context.Context, token string, cmd api.LockCommand) error
	ApproveUnlock(ctx context.Context, token string, cmd api.LockCommand) error
	BulkLockCategories(ctx context.Context, token string, cmd api.BulkLockCommand) error
	BulkUnlockCategories(ctx context.Context, token string, cmd api.BulkLockCommand) error
	BulkApproveUnlock(ctx context.Context, token string, cmd api.BulkLockCommand) error
}

// Actor is the caller of a lock operation.
type Actor struct {
	Token     string
	SessionID string
	Super     bool
}

// BulkAction enumerates admin actions applied to many cost centers.
type BulkAction string

const (
	BulkLock          BulkAction = "lock"
	BulkUnlock        BulkAction = "unlock"
	BulkApproveUnlock BulkAction = "approve-unlock"
)

// ParseBulkAction validates a bulk action name.
func ParseBulkAction(raw string) (BulkAction, error) {
	switch a := BulkAction(strings.ToLower(strings.TrimSpace(raw))); a {
	case BulkLock, BulkUnlock, BulkApproveUnlock:
		return a, nil
	default:
		return "", fmt.Errorf("budgetlock: unknown bulk action %q", raw)
	}
}

// Service applies lock transitions in two phases: the transition is checked
// against the current record, then sent to the API, and only a successful
// call invalidates the cache and refetches the canonical record. A failed
// call leaves cached state as it was.
type Service struct {
	gateway Gateway
	cache   *Cache
	logger  *slog.Logger
	year    int
	now     func() time.Time
}

// NewService constructs a Service.
func NewService(gateway Gateway, cache *Cache, logger *slog.Logger, year int) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{gateway: gateway, cache: cache, logger: logger, year: year, now: time.Now}
}

// WithNow overrides the clock for deterministic tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Year returns the budget year governed by the service.
func (s *Service) Year() int {
	return s.year
}

// Status returns the caller's lock record through the cache.
func (s *Service) Status(ctx context.Context, actor Actor) (Record, error) {
	key, err := s.cache.BuildKey(ctx, "status", actor.SessionID, strconv.Itoa(s.year))
	if err != nil {
		return Record{}, err
	}
	var rec Record
	err = s.cache.FetchJSON(ctx, key, &rec, func(ctx context.Context) (any, error) {
		status, err := s.gateway.LockStatus(ctx, actor.Token, s.year)
		if err != nil {
			return nil, err
		}
		rec := FromAPI(status, s.logger)
		if rec.Year == 0 {
			rec.Year = s.year
		}
		return rec, nil
	})
	if err != nil {
		return Record{}, fmt.Errorf("budgetlock: load status: %w", err)
	}
	return rec, nil
}

// Editable reports whether the caller may change category.
func (s *Service) Editable(ctx context.Context, actor Actor, category budget.Category) (bool, error) {
	rec, err := s.Status(ctx, actor)
	if err != nil {
		return false, err
	}
	return rec.Editable(category), nil
}

// Submit submits the caller's budget.
func (s *Service) Submit(ctx context.Context, actor Actor) (Record, error) {
	current, err := s.Status(ctx, actor)
	if err != nil {
		return Record{}, err
	}
	if _, err := current.Submit(s.now()); err != nil {
		return current, err
	}
	if err := s.gateway.Submit(ctx, actor.Token, api.LockCommand{GLYear: s.year}); err != nil {
		return current, err
	}
	return s.refresh(ctx, actor)
}

// RequestUnlock asks an administrator to reopen the caller's budget.
func (s *Service) RequestUnlock(ctx context.Context, actor Actor, reason string) (Record, error) {
	current, err := s.Status(ctx, actor)
	if err != nil {
		return Record{}, err
	}
	next, err := current.RequestUnlock(reason, s.now())
	if err != nil {
		return current, err
	}
	cmd := api.LockCommand{GLYear: s.year, Reason: next.UnlockReason}
	if err := s.gateway.RequestUnlock(ctx, actor.Token, cmd); err != nil {
		return current, err
	}
	return s.refresh(ctx, actor)
}

func (s *Service) refresh(ctx context.Context, actor Actor) (Record, error) {
	if err := s.cache.Bump(ctx); err != nil {
		s.logger.Warn("bump lock cache", slog.Any("error", err))
	}
	return s.Status(ctx, actor)
}

// List returns every cost center's record. Super-user only.
func (s *Service) List(ctx context.Context, actor Actor) ([]Record, error) {
	if !actor.Super {
		return nil, ErrForbidden
	}
	key, err := s.cache.BuildKey(ctx, "all", strconv.Itoa(s.year))
	if err != nil {
		return nil, err
	}
	var records []Record
	err = s.cache.FetchJSON(ctx, key, &records, func(ctx context.Context) (any, error) {
		locks, err := s.gateway.AllLocks(ctx, actor.Token, s.year)
		if err != nil {
			return nil, err
		}
		out := make([]Record, 0, len(locks))
		for _, l := range locks {
			rec := FromAPI(l, s.logger)
			if rec.Year == 0 {
				rec.Year = s.year
			}
			out = append(out, rec)
		}
		return out, nil
	})
	if err != nil {
		return nil, fmt.Errorf("budgetlock: load all locks: %w", err)
	}
	return records, nil
}

func (s *Service) find(ctx context.Context, actor Actor, costCenter string) (Record, error) {
	records, err := s.List(ctx, actor)
	if err != nil {
		return Record{}, err
	}
	for _, rec := range records {
		if rec.CostCenterName == costCenter {
			return rec, nil
		}
	}
	return Record{}, fmt.Errorf("%w: %s", ErrUnknownCostCenter, costCenter)
}

// LockCategories locks set for one cost center.
func (s *Service) LockCategories(ctx context.Context, actor Actor, costCenter string, set budget.CategorySet) error {
	current, err := s.find(ctx, actor, costCenter)
	if err != nil {
		return err
	}
	if _, err := current.LockCategories(set); err != nil {
		return err
	}
	for _, c := range set.List() {
		cmd := api.LockCommand{CostCenterName: costCenter, GLYear: s.year, Category: c.String()}
		if err := s.gateway.LockCategory(ctx, actor.Token, cmd); err != nil {
			s.invalidateAfterPartial(ctx, c)
			return err
		}
	}
	return s.cache.Bump(ctx)
}

// invalidateAfterPartial drops cached state once some categories of a
// multi-call lock have already been applied upstream.
func (s *Service) invalidateAfterPartial(ctx context.Context, failed budget.Category) {
	if err := s.cache.Bump(ctx); err != nil {
		s.logger.Warn("bump lock cache", slog.String("category", failed.String()), slog.Any("error", err))
	}
}

// UnlockCategories clears every category lock of one cost center.
func (s *Service) UnlockCategories(ctx context.Context, actor Actor, costCenter string) error {
	if _, err := s.find(ctx, actor, costCenter); err != nil {
		return err
	}
	if err := s.gateway.Unlock(ctx, actor.Token, api.LockCommand{CostCenterName: costCenter, GLYear: s.year}); err != nil {
		return err
	}
	return s.cache.Bump(ctx)
}

// ApproveUnlock reopens one cost center's submitted budget.
func (s *Service) ApproveUnlock(ctx context.Context, actor Actor, costCenter string) error {
	current, err := s.find(ctx, actor, costCenter)
	if err != nil {
		return err
	}
	if _, err := current.ApproveUnlock(); err != nil {
		return err
	}
	if err := s.gateway.ApproveUnlock(ctx, actor.Token, api.LockCommand{CostCenterName: costCenter, GLYear: s.year}); err != nil {
		return err
	}
	return s.cache.Bump(ctx)
}

// Bulk applies action to exactly the given targets, typically the rows
// visible under the admin console's filter.
func (s *Service) Bulk(ctx context.Context, actor Actor, action BulkAction, targets []Record, set budget.CategorySet) error {
	if !actor.Super {
		return ErrForbidden
	}
	names := make([]string, 0, len(targets))
	for _, rec := range targets {
		names = append(names, rec.CostCenterName)
	}
	if len(names) == 0 {
		return ErrNoTargets
	}
	cmd := api.BulkLockCommand{GLYear: s.year, CostCenterNames: names}
	var err error
	switch action {
	case BulkLock:
		if set.IsEmpty() {
			return ErrNoCategories
		}
		cmd.Categories = set.Names()
		err = s.gateway.BulkLockCategories(ctx, actor.Token, cmd)
	case BulkUnlock:
		err = s.gateway.BulkUnlockCategories(ctx, actor.Token, cmd)
	case BulkApproveUnlock:
		err = s.gateway.BulkApproveUnlock(ctx, actor.Token, cmd)
	default:
		return fmt.Errorf("budgetlock: unknown bulk action %q", action)
	}
	if err != nil {
		return err
	}
	return s.cache.Bump(ctx)
}
