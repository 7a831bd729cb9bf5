package api

import (
	"context"
	"net/url"
	"strconv"
)

// LockStatus fetches the caller's lock record for a year.
func (c *Client) LockStatus(ctx context.Context, token string, year int) (LockStatus, error) {
	var out LockStatus
	err := c.get(ctx, token, "/budget-lock/status", url.Values{"glyear": {strconv.Itoa(year)}}, &out)
	return out, err
}

// AllLocks lists every cost center's lock record. Super-user only.
func (c *Client) AllLocks(ctx context.Context, token string, year int) ([]LockStatus, error) {
	var out []LockStatus
	err := c.get(ctx, token, "/budget-lock/all-locks", url.Values{"glyear": {strconv.Itoa(year)}}, &out)
	return out, err
}

// Submit marks the caller's budget as submitted.
func (c *Client) Submit(ctx context.Context, token string, cmd LockCommand) error {
	return c.post(ctx, token, "/budget-lock/submit", cmd, nil)
}

// RequestUnlock asks for a submitted budget to be reopened.
func (c *Client) RequestUnlock(ctx context.Context, token string, cmd LockCommand) error {
	return c.post(ctx, token, "/budget-lock/request-unlock", cmd, nil)
}

// LockCategory locks one category of a cost center.
func (c *Client) LockCategory(ctx context.Context, token string, cmd LockCommand) error {
	return c.post(ctx, token, "/budget-lock/lock-category", cmd, nil)
}

// Unlock clears every category lock of a cost center.
func (c *Client) Unlock(ctx context.Context, token string, cmd LockCommand) error {
	return c.post(ctx, token, "/budget-lock/unlock", cmd, nil)
}

// ApproveUnlock grants a pending unlock request. The API names this
// endpoint "reject".
func (c *Client) ApproveUnlock(ctx context.Context, token string, cmd LockCommand) error {
	return c.post(ctx, token, "/budget-lock/reject", cmd, nil)
}

// BulkLockCategories locks categories across many cost centers.
func (c *Client) BulkLockCategories(ctx context.Context, token string, cmd BulkLockCommand) error {
	return c.post(ctx, token, "/budget-lock/bulk-lock-categories", cmd, nil)
}

// BulkUnlockCategories clears category locks across many cost centers.
func (c *Client) BulkUnlockCategories(ctx context.Context, token string, cmd BulkLockCommand) error {
	return c.post(ctx, token, "/budget-lock/bulk-unlock-categories", cmd, nil)
}

// BulkApproveUnlock grants unlock requests across many cost centers.
func (c *Client) BulkApproveUnlock(ctx context.Context, token string, cmd BulkLockCommand) error {
	return c.post(ctx, token, "/budget-lock/bulk-approve-unlock", cmd, nil)
}
