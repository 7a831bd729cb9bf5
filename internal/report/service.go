package report

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/ebudget/ebudget/internal/aggregate"
	"github.com/ebudget/ebudget/internal/api"
)

// Gateway is the subset of the budget API used for reports.
type Gateway interface {
	PNL(ctx context.Context, token string, f api.ReportFilter) (api.PNLReport, error)
	PNLSummary(ctx context.Context, token string, f api.ReportFilter) (api.PNLSummary, error)
	PPE(ctx context.Context, token string, f api.ReportFilter) (api.PPEReport, error)
	Details(ctx context.Context, token string, f api.ReportFilter, glCode string) (api.DetailReport, error)
	CompanyStructure(ctx context.Context, token string) (api.CompanyStructure, error)
}

// Query describes one report request.
type Query struct {
	Token         string
	Company       string
	ProfitCenters []string
	CostCenters   []string
	HideZero      bool
	Mode          Mode
	Scale         Scale
}

func (q Query) filter(year int) api.ReportFilter {
	return api.ReportFilter{GLYear: year, Company: q.Company, ProfitCenters: q.ProfitCenters, CostCenters: q.CostCenters}
}

// PNLResult is a fetched and aggregated P&L.
type PNLResult struct {
	Year      int
	Records   []aggregate.Record
	Tree      *aggregate.Tree
	Converter Converter
}

// Service fetches report data and memoizes aggregation.
type Service struct {
	gateway Gateway
	trees   *aggregate.Cache
	year    int
}

// NewService constructs a Service for the given budget year.
func NewService(gateway Gateway, trees *aggregate.Cache, year int) *Service {
	return &Service{gateway: gateway, trees: trees, year: year}
}

// Year returns the report year.
func (s *Service) Year() int {
	return s.year
}

// PNL fetches and aggregates the year's P&L.
func (s *Service) PNL(ctx context.Context, q Query) (PNLResult, error) {
	return s.pnl(ctx, q, s.year)
}

func (s *Service) pnl(ctx context.Context, q Query, year int) (PNLResult, error) {
	rep, err := s.gateway.PNL(ctx, q.Token, q.filter(year))
	if err != nil {
		return PNLResult{}, fmt.Errorf("report: load pnl %d: %w", year, err)
	}
	return PNLResult{
		Year:      year,
		Records:   rep.Data,
		Tree:      s.trees.Build(rep.Data, aggregate.Options{HideZero: q.HideZero}),
		Converter: NewConverter(rep.CurrencyInfo, q.Mode, q.Scale),
	}, nil
}

// Dashboard loads this year and last year concurrently.
func (s *Service) Dashboard(ctx context.Context, q Query) (Dashboard, Converter, error) {
	var current, previous PNLResult
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		current, err = s.pnl(gctx, q, s.year)
		return err
	})
	g.Go(func() error {
		var err error
		previous, err = s.pnl(gctx, q, s.year-1)
		return err
	})
	if err := g.Wait(); err != nil {
		return Dashboard{}, Converter{}, err
	}
	conv := current.Converter
	return BuildDashboard(s.year, current.Records, previous.Records, conv), conv, nil
}

// Summary fills the condensed P&L lines.
func (s *Service) Summary(ctx context.Context, q Query) ([]SummaryLine, error) {
	rep, err := s.gateway.PNLSummary(ctx, q.Token, q.filter(s.year))
	if err != nil {
		return nil, fmt.Errorf("report: load summary: %w", err)
	}
	return SummaryLines(rep.Summary, NewConverter(nil, ModeBase, q.Scale)), nil
}

// PPE groups the year's PPE report.
func (s *Service) PPE(ctx context.Context, q Query) (PPESummary, Converter, error) {
	rep, err := s.gateway.PPE(ctx, q.Token, q.filter(s.year))
	if err != nil {
		return PPESummary{}, Converter{}, fmt.Errorf("report: load ppe: %w", err)
	}
	conv := NewConverter(rep.CurrencyInfo, q.Mode, q.Scale)
	return GroupPPE(rep.Data, conv), conv, nil
}

// DetailLine is one converted drill-down row.
type DetailLine struct {
	Month       string
	CostCenter  string
	Description string
	Amount      float64
}

// Details lists the rows behind one GL code.
func (s *Service) Details(ctx context.Context, q Query, glCode string) ([]DetailLine, error) {
	rep, err := s.gateway.Details(ctx, q.Token, q.filter(s.year), glCode)
	if err != nil {
		return nil, fmt.Errorf("report: load details for %s: %w", glCode, err)
	}
	conv := NewConverter(nil, ModeBase, q.Scale)
	out := make([]DetailLine, 0, len(rep.Data))
	for _, row := range rep.Data {
		out = append(out, DetailLine{
			Month:       row.Month,
			CostCenter:  row.CostCenter,
			Description: row.Description,
			Amount:      conv.Convert(row.Amount.Float()),
		})
	}
	return out, nil
}

// Structure lists the profit and cost centers a super-user may filter by.
func (s *Service) Structure(ctx context.Context, token string) (api.CompanyStructure, error) {
	out, err := s.gateway.CompanyStructure(ctx, token)
	if err != nil {
		return api.CompanyStructure{}, fmt.Errorf("report: load company structure: %w", err)
	}
	return out, nil
}
