package api

import (
	"context"
	"net/url"
	"strconv"
)

// LoadPPE fetches the caller's PPE plan.
func (c *Client) LoadPPE(ctx context.Context, token string, year int) (PPESnapshot, error) {
	var out PPESnapshot
	if err := c.get(ctx, token, "/ppe/load", url.Values{"year": {strconv.Itoa(year)}}, &out); err != nil {
		return PPESnapshot{}, err
	}
	if out.Current == nil {
		out.Current = PPEPlan{}
	}
	return out, nil
}

// SavePPE persists the caller's PPE plan.
func (c *Client) SavePPE(ctx context.Context, token string, in PPESaveInput) error {
	return c.post(ctx, token, "/ppe/save", in, nil)
}
