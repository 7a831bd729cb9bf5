package reporthttp

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/ebudget/ebudget/internal/aggregate"
	"github.com/ebudget/ebudget/internal/api"
	"github.com/ebudget/ebudget/internal/auth"
	"github.com/ebudget/ebudget/internal/report"
	"github.com/ebudget/ebudget/internal/shared"
	"github.com/ebudget/ebudget/internal/view"
)

const requestTimeout = 10 * time.Second

type reportService interface {
	Year() int
	PNL(ctx context.Context, q report.Query) (report.PNLResult, error)
	Dashboard(ctx context.Context, q report.Query) (report.Dashboard, report.Converter, error)
	Summary(ctx context.Context, q report.Query) ([]report.SummaryLine, error)
	PPE(ctx context.Context, q report.Query) (report.PPESummary, report.Converter, error)
	Details(ctx context.Context, q report.Query, glCode string) ([]report.DetailLine, error)
	Structure(ctx context.Context, token string) (api.CompanyStructure, error)
}

// Handler serves the dashboard and the read-only reports.
type Handler struct {
	logger    *slog.Logger
	service   reportService
	gate      *auth.Gate
	templates *view.Engine
	csrf      *shared.CSRFManager
}

// NewHandler constructs the report HTTP handler.
func NewHandler(logger *slog.Logger, service reportService, gate *auth.Gate, templates *view.Engine, csrf *shared.CSRFManager) *Handler {
	return &Handler{logger: logger, service: service, gate: gate, templates: templates, csrf: csrf}
}

// MountRoutes registers report endpoints. Exports are rate limited per user.
func (h *Handler) MountRoutes(r chi.Router) {
	limiter := httprate.Limit(10, time.Minute,
		httprate.WithKeyFuncs(rateLimitKey),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
		}),
	)

	r.Get("/dashboard", h.showDashboard)
	r.Route("/report", func(r chi.Router) {
		r.Get("/pnl", h.showPNL)
		r.Get("/pnl/details", h.showDetails)
		r.Get("/pnl-summary", h.showSummary)
		r.Get("/ppe", h.showPPE)
		r.Group(func(gr chi.Router) {
			gr.Use(limiter)
			gr.Get("/pnl/export", h.exportPNL)
		})
	})
}

func rateLimitKey(r *http.Request) (string, error) {
	if user, ok := auth.CurrentUser(auth.StateFromContext(r.Context())); ok && user.CostCenterName != "" {
		return "user:" + user.CostCenterName, nil
	}
	key, err := httprate.KeyByIP(r)
	if err != nil {
		return "", err
	}
	return "ip:" + key, nil
}

type option struct {
	Value    string
	Selected bool
}

type filterView struct {
	Enabled       bool
	ProfitCenters []option
	CostCenters   []option
}

type currencyView struct {
	Enabled     bool
	Currency    string
	SwitchLabel string
	RateLabel   string
	SwitchURL   string
}

type scaleLink struct {
	Label  string
	URL    string
	Active bool
}

type toolbar struct {
	Currency currencyView
	Scales   []scaleLink
	Filter   filterView
}

type dashboardPageData struct {
	report.Dashboard
	Currency string
	Error    string
}

type pnlRow struct {
	report.Row
	Class     string
	Indent    int
	ToggleURL string
	DetailURL string
}

type pnlPageData struct {
	Year         int
	Rows         []pnlRow
	Toolbar      toolbar
	HideZero     bool
	HideZeroURL  string
	ExpandURL    string
	CollapseURL  string
	ExportRaw    string
	ExportStyled string
	Error        string
}

type detailsPageData struct {
	Year    int
	GLCode  string
	Lines   []report.DetailLine
	Total   float64
	BackURL string
	Error   string
}

type summaryPageData struct {
	Year    int
	Lines   []report.SummaryLine
	Toolbar toolbar
	Error   string
}

type ppeGroupView struct {
	report.PPEGroup
	Open      bool
	ToggleURL string
}

type ppePageData struct {
	Year        int
	Groups      []ppeGroupView
	Values      aggregate.Totals
	Units       aggregate.Totals
	Toolbar     toolbar
	CanExpand   bool
	ExpandURL   string
	CollapseURL string
	Error       string
}

func (h *Handler) showDashboard(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	q, _ := h.query(ctx, r)
	d, conv, err := h.service.Dashboard(ctx, q)
	if err != nil {
		data := dashboardPageData{Dashboard: report.Dashboard{Year: h.service.Year()}}
		if h.fail(w, r, err, "Failed to load dashboard", &data.Error) {
			return
		}
		h.render(w, r, "pages/dashboard.html", "Dashboard", data, http.StatusBadGateway)
		return
	}
	h.render(w, r, "pages/dashboard.html", "Dashboard", dashboardPageData{Dashboard: d, Currency: conv.Currency()}, http.StatusOK)
}

func (h *Handler) showPNL(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	q, filter := h.query(ctx, r)
	params := r.URL.Query()
	title := fmt.Sprintf("P&L Report (%d)", h.service.Year())
	data := pnlPageData{
		Year:         h.service.Year(),
		HideZero:     q.HideZero,
		HideZeroURL:  link("/report/pnl", params, map[string]string{"hide_zero": toggleFlag(q.HideZero)}),
		ExpandURL:    link("/report/pnl", params, map[string]string{"expand": "all", "open": ""}),
		CollapseURL:  link("/report/pnl", params, map[string]string{"expand": "", "open": ""}),
		ExportRaw:    link("/report/pnl/export", params, map[string]string{"kind": string(report.ExportRaw), "expand": "", "open": ""}),
		ExportStyled: link("/report/pnl/export", params, map[string]string{"kind": string(report.ExportFormatted), "expand": "", "open": ""}),
	}
	res, err := h.service.PNL(ctx, q)
	if err != nil {
		if h.fail(w, r, err, "Failed to load report", &data.Error) {
			return
		}
		h.render(w, r, "pages/report/pnl.html", title, data, http.StatusBadGateway)
		return
	}
	data.Toolbar = h.toolbar("/report/pnl", params, res.Converter, filter)
	exp := report.ParseExpansion(params)
	for _, row := range report.Rows(res.Tree, exp, res.Converter) {
		v := pnlRow{Row: row, Class: row.Kind.Class(), Indent: row.Depth}
		if row.Expandable && !exp.All {
			v.ToggleURL = link("/report/pnl", params, map[string]string{"open": exp.Toggle(row.Key)})
		}
		if row.Kind == report.RowDetail && row.GLCode != "" {
			v.DetailURL = link("/report/pnl/details", params, map[string]string{"gl_code": row.GLCode, "expand": "", "open": ""})
		}
		data.Rows = append(data.Rows, v)
	}
	h.render(w, r, "pages/report/pnl.html", title, data, http.StatusOK)
}

func (h *Handler) showDetails(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	params := r.URL.Query()
	glCode := strings.TrimSpace(params.Get("gl_code"))
	if glCode == "" {
		http.Redirect(w, r, "/report/pnl", http.StatusSeeOther)
		return
	}
	q, _ := h.query(ctx, r)
	data := detailsPageData{
		Year:    h.service.Year(),
		GLCode:  glCode,
		BackURL: link("/report/pnl", params, map[string]string{"gl_code": ""}),
	}
	lines, err := h.service.Details(ctx, q, glCode)
	status := http.StatusOK
	if err != nil {
		if h.fail(w, r, err, "Failed to load details", &data.Error) {
			return
		}
		status = http.StatusBadGateway
	}
	data.Lines = lines
	for _, l := range lines {
		data.Total += l.Amount
	}
	h.render(w, r, "pages/report/details.html", "Details: "+glCode, data, status)
}

func (h *Handler) showSummary(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	q, _ := h.query(ctx, r)
	params := r.URL.Query()
	data := summaryPageData{Year: h.service.Year()}
	data.Toolbar = h.toolbar("/report/pnl-summary", params, report.NewConverter(nil, report.ModeBase, q.Scale), filterView{})
	lines, err := h.service.Summary(ctx, q)
	status := http.StatusOK
	if err != nil {
		if h.fail(w, r, err, "Failed to load summary", &data.Error) {
			return
		}
		status = http.StatusBadGateway
	}
	data.Lines = lines
	h.render(w, r, "pages/report/summary.html", fmt.Sprintf("P&L Summary (%d)", data.Year), data, status)
}

func (h *Handler) showPPE(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	q, filter := h.query(ctx, r)
	params := r.URL.Query()
	data := ppePageData{
		Year:        h.service.Year(),
		CanExpand:   h.gate.IsSuper(r),
		ExpandURL:   link("/report/ppe", params, map[string]string{"expand": "all", "open": ""}),
		CollapseURL: link("/report/ppe", params, map[string]string{"expand": "", "open": ""}),
	}
	title := fmt.Sprintf("PPE Report (%d)", data.Year)
	sum, conv, err := h.service.PPE(ctx, q)
	if err != nil {
		if h.fail(w, r, err, "Failed to load PPE report", &data.Error) {
			return
		}
		h.render(w, r, "pages/report/ppe.html", title, data, http.StatusBadGateway)
		return
	}
	data.Toolbar = h.toolbar("/report/ppe", params, conv, filter)
	data.Values, data.Units = sum.Values, sum.Units
	exp := report.ParseExpansion(params)
	for _, g := range sum.Groups {
		data.Groups = append(data.Groups, ppeGroupView{
			PPEGroup:  g,
			Open:      exp.IsOpen(g.Category),
			ToggleURL: link("/report/ppe", params, map[string]string{"expand": "", "open": exp.Toggle(g.Category)}),
		})
	}
	h.render(w, r, "pages/report/ppe.html", title, data, http.StatusOK)
}

func (h *Handler) exportPNL(w http.ResponseWriter, r *http.Request) {
	kind, ok := report.ParseExportKind(r.URL.Query().Get("kind"))
	if !ok {
		http.Error(w, "unknown export kind", http.StatusBadRequest)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	q, _ := h.query(ctx, r)
	res, err := h.service.PNL(ctx, q)
	if err != nil {
		if h.gate.HandleUnauthorized(w, r, err) {
			return
		}
		h.logger.Error("export pnl", slog.Any("error", err))
		http.Error(w, api.Message(err, "the budget service is unavailable"), http.StatusBadGateway)
		return
	}

	var buf bytes.Buffer
	switch kind {
	case report.ExportFormatted:
		err = report.WriteFormatted(&buf, res.Tree, res.Converter)
	default:
		err = report.WriteRaw(&buf, res.Records, res.Converter)
	}
	if err != nil {
		h.logger.Error("write pnl workbook", slog.String("kind", string(kind)), slog.Any("error", err))
		http.Error(w, "failed to build workbook", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", report.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", kind.Filename(res.Year)))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

// query reads currency, scale and the super-user center filter. Without an
// explicit selection every center of the company structure is selected.
func (h *Handler) query(ctx context.Context, r *http.Request) (report.Query, filterView) {
	params := r.URL.Query()
	q := report.Query{
		Token:    auth.Token(auth.StateFromContext(r.Context())),
		HideZero: params.Get("hide_zero") == "1",
		Mode:     report.ParseMode(params.Get("currency")),
		Scale:    report.ParseScale(params.Get("scale")),
	}
	if !h.gate.IsSuper(r) {
		return q, filterView{}
	}
	structure, err := h.service.Structure(ctx, q.Token)
	if err != nil {
		h.logger.Warn("load company structure", slog.Any("error", err))
		return q, filterView{}
	}
	q.ProfitCenters = selection(params["profit_center"], structure.ProfitCenters)
	q.CostCenters = selection(params["cost_center"], structure.CostCenters)
	return q, filterView{
		Enabled:       true,
		ProfitCenters: options(structure.ProfitCenters, q.ProfitCenters),
		CostCenters:   options(structure.CostCenters, q.CostCenters),
	}
}

func selection(picked, all []string) []string {
	if len(picked) == 0 {
		return all
	}
	known := make(map[string]bool, len(all))
	for _, v := range all {
		known[v] = true
	}
	var out []string
	for _, v := range picked {
		if known[v] {
			out = append(out, v)
		}
	}
	if len(out) == 0 {
		return all
	}
	return out
}

func options(all, selected []string) []option {
	chosen := make(map[string]bool, len(selected))
	for _, v := range selected {
		chosen[v] = true
	}
	out := make([]option, len(all))
	for i, v := range all {
		out[i] = option{Value: v, Selected: chosen[v]}
	}
	return out
}

func (h *Handler) toolbar(path string, params url.Values, conv report.Converter, filter filterView) toolbar {
	t := toolbar{Filter: filter}
	if conv.CanSwitch() {
		next := string(report.ModeUser)
		if conv.Mode() == report.ModeUser {
			next = string(report.ModeBase)
		}
		t.Currency = currencyView{
			Enabled:     true,
			Currency:    conv.Currency(),
			SwitchLabel: conv.SwitchLabel(),
			RateLabel:   conv.RateLabel(),
			SwitchURL:   link(path, params, map[string]string{"currency": next}),
		}
	} else {
		t.Currency.Currency = conv.Currency()
	}
	for _, s := range report.Scales {
		t.Scales = append(t.Scales, scaleLink{
			Label:  s.Label,
			URL:    link(path, params, map[string]string{"scale": string(s.Value)}),
			Active: conv.Scale() == s.Value,
		})
	}
	return t
}

// link rebuilds path with params, replacing or dropping (empty value) the
// overridden keys.
func link(path string, params url.Values, overrides map[string]string) string {
	q := url.Values{}
	for k, v := range params {
		q[k] = append([]string(nil), v...)
	}
	for k, v := range overrides {
		if v == "" {
			q.Del(k)
			continue
		}
		q.Set(k, v)
	}
	if len(q) == 0 {
		return path
	}
	return path + "?" + q.Encode()
}

func toggleFlag(on bool) string {
	if on {
		return ""
	}
	return "1"
}

// fail handles 401s and stores the message for the page. It reports
// whether a response was written.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error, prefix string, msg *string) bool {
	if h.gate.HandleUnauthorized(w, r, err) {
		return true
	}
	h.logger.Error(strings.ToLower(prefix), slog.Any("error", err))
	*msg = prefix + ": " + api.Message(err, "the budget service is unavailable")
	return false
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, template, title string, data any, status int) {
	sess := shared.SessionFromContext(r.Context())
	csrfToken := h.csrf.Token(sess)
	var flash *shared.FlashMessage
	if sess != nil {
		flash = sess.PopFlash()
	}
	viewData := view.TemplateData{
		Title:       title,
		CSRFToken:   csrfToken,
		Flash:       flash,
		CurrentPath: r.URL.Path,
		User:        h.gate.UserInfo(r),
		Data:        data,
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := h.templates.Render(w, template, viewData); err != nil {
		h.logger.Error("render template", slog.Any("error", err))
	}
}
