package api

import (
	"context"
	"net/url"
	"strconv"
)

// CategoryItems lists the GL accounts of a category. category is the
// lower-case API slug.
func (c *Client) CategoryItems(ctx context.Context, token, category string) (CategoryItems, error) {
	var out CategoryItems
	err := c.get(ctx, token, "/gl/glinput-category", url.Values{"category": {category}}, &out)
	return out, err
}

// LoadInput fetches the saved and previous-year values of a category.
func (c *Client) LoadInput(ctx context.Context, token, branch string, year int, category string) (InputSnapshot, error) {
	q := url.Values{
		"branch":   {branch},
		"glyear":   {strconv.Itoa(year)},
		"category": {category},
	}
	var out InputSnapshot
	if err := c.get(ctx, token, "/gl/glinput-load", q, &out); err != nil {
		return InputSnapshot{}, err
	}
	if out.Current == nil {
		out.Current = InputValues{}
	}
	if out.Previous == nil {
		out.Previous = InputValues{}
	}
	return out, nil
}

// SaveInput persists the values of a category.
func (c *Client) SaveInput(ctx context.Context, token string, in SaveInput) error {
	return c.post(ctx, token, "/gl/glinput-save", in, nil)
}

// LoadRelated fetches related-party reference values.
func (c *Client) LoadRelated(ctx context.Context, token string, q RelatedQuery) (RelatedValues, error) {
	var out RelatedValues
	if err := c.post(ctx, token, "/gl/glinput-load-related", q, &out); err != nil {
		return RelatedValues{}, err
	}
	if out.Current == nil {
		out.Current = InputValues{}
	}
	return out, nil
}
