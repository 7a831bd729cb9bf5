package api

import (
	"context"
	"net/url"
	"strconv"
)

func (f ReportFilter) values(yearKey string) url.Values {
	q := url.Values{}
	if f.GLYear > 0 {
		q.Set(yearKey, strconv.Itoa(f.GLYear))
	}
	if f.Company != "" {
		q.Set("company", f.Company)
	}
	for _, pc := range f.ProfitCenters {
		q.Add("profit_centers", pc)
	}
	for _, cc := range f.CostCenters {
		q.Add("cost_centers", cc)
	}
	return q
}

// PNL fetches the flat GL records of the P&L report.
func (c *Client) PNL(ctx context.Context, token string, f ReportFilter) (PNLReport, error) {
	var out PNLReport
	err := c.get(ctx, token, "/report/pnl", f.values("glyear"), &out)
	return out, err
}

// PNLSummary fetches the condensed P&L lines.
func (c *Client) PNLSummary(ctx context.Context, token string, f ReportFilter) (PNLSummary, error) {
	var out PNLSummary
	err := c.get(ctx, token, "/report/pnl-summary", f.values("glyear"), &out)
	return out, err
}

// PPE fetches the PPE report records.
func (c *Client) PPE(ctx context.Context, token string, f ReportFilter) (PPEReport, error) {
	var out PPEReport
	err := c.get(ctx, token, "/report/ppe", f.values("year"), &out)
	return out, err
}

// Details fetches the rows behind one GL code.
func (c *Client) Details(ctx context.Context, token string, f ReportFilter, glCode string) (DetailReport, error) {
	q := f.values("glyear")
	q.Set("gl_code", glCode)
	var out DetailReport
	err := c.get(ctx, token, "/report/details", q, &out)
	return out, err
}

// CompanyStructure lists the profit and cost centers visible to the caller.
func (c *Client) CompanyStructure(ctx context.Context, token string) (CompanyStructure, error) {
	var out CompanyStructure
	err := c.get(ctx, token, "/report/company-structure", nil, &out)
	return out, err
}
