package budgetlockhttp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ebudget/ebudget/internal/api"
	"github.com/ebudget/ebudget/internal/auth"
	"github.com/ebudget/ebudget/internal/budget"
	"github.com/ebudget/ebudget/internal/budgetlock"
	"github.com/ebudget/ebudget/internal/shared"
	"github.com/ebudget/ebudget/internal/view"
)

type adminService interface {
	Year() int
	List(ctx context.Context, actor budgetlock.Actor) ([]budgetlock.Record, error)
	LockCategories(ctx context.Context, actor budgetlock.Actor, costCenter string, set budget.CategorySet) error
	UnlockCategories(ctx context.Context, actor budgetlock.Actor, costCenter string) error
	ApproveUnlock(ctx context.Context, actor budgetlock.Actor, costCenter string) error
	Bulk(ctx context.Context, actor budgetlock.Actor, action budgetlock.BulkAction, targets []budgetlock.Record, set budget.CategorySet) error
}

// Handler serves the super-user lock console.
type Handler struct {
	logger    *slog.Logger
	service   adminService
	gate      *auth.Gate
	templates *view.Engine
	csrf      *shared.CSRFManager
}

type badgeView struct {
	Label string
	Kind  string
}

type rowView struct {
	CostCenter   string
	Region       string
	Company      string
	ProfitCenter string
	Status       badgeView
	SubmittedAt  string
	UnlockReason string
	Locks        []string
	CanApprove   bool
	CanUnlock    bool
}

type categoryOption struct {
	Name string
	Slug string
}

type pageLink struct {
	Label  string
	URL    string
	Active bool
}

type listPageData struct {
	Year       int
	Filter     budgetlock.Filter
	Options    budgetlock.Options
	Statuses   []budgetlock.StatusView
	Rows       []rowView
	Matched    int
	Categories []categoryOption
	Pagination shared.Pagination
	PageSizes  []int
	PrevURL    string
	NextURL    string
	SizeLinks  []pageLink
	ReturnURL  string
	Error      string
}

// NewHandler constructs the admin lock handler.
func NewHandler(logger *slog.Logger, service adminService, gate *auth.Gate, templates *view.Engine, csrf *shared.CSRFManager) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, gate: gate, templates: templates, csrf: csrf}
}

// MountRoutes registers HTTP routes. Callers restrict r to super-users.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/admin/locks", func(r chi.Router) {
		r.Get("/", h.list)
		r.Post("/lock", h.lock)
		r.Post("/unlock", h.unlock)
		r.Post("/approve-unlock", h.approveUnlock)
		r.Post("/bulk", h.bulk)
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := budgetlock.FilterFromQuery(q)
	page, size := budgetlock.PageParams(q)
	data := listPageData{
		Year:       h.service.Year(),
		Filter:     filter,
		Statuses:   []budgetlock.StatusView{budgetlock.ViewSubmitted, budgetlock.ViewNotSubmitted, budgetlock.ViewAll},
		Categories: categoryOptions(),
		PageSizes:  shared.PageSizes,
	}
	records, err := h.service.List(r.Context(), h.actor(r))
	if err != nil {
		if h.gate.HandleUnauthorized(w, r, err) {
			return
		}
		h.logger.Error("list budget locks", slog.Any("error", err))
		data.Error = api.Message(err, "Failed to load lock records")
		data.Pagination = shared.NewPagination(1, size, 0)
		h.render(w, r, data, http.StatusBadGateway)
		return
	}
	matched := filter.Apply(records)
	p := budgetlock.Paginate(matched, page, size)
	data.Options = budgetlock.FilterOptions(records, filter)
	data.Matched = len(matched)
	data.Pagination = p.Pagination
	data.ReturnURL = listURL(filter, p.Pagination.Page, p.Pagination.PerPage)
	if p.Pagination.HasPrev() {
		data.PrevURL = listURL(filter, p.Pagination.PrevPage(), p.Pagination.PerPage)
	}
	if p.Pagination.HasNext() {
		data.NextURL = listURL(filter, p.Pagination.NextPage(), p.Pagination.PerPage)
	}
	for _, s := range shared.PageSizes {
		data.SizeLinks = append(data.SizeLinks, pageLink{
			Label:  fmt.Sprint(s),
			URL:    listURL(filter, 1, s),
			Active: s == p.Pagination.PerPage,
		})
	}
	for _, rec := range p.Rows {
		data.Rows = append(data.Rows, buildRow(rec))
	}
	h.render(w, r, data, http.StatusOK)
}

func (h *Handler) lock(w http.ResponseWriter, r *http.Request) {
	costCenter, back, ok := h.parseRowForm(w, r)
	if !ok {
		return
	}
	set, err := parseCategories(r.PostForm["categories"])
	if err != nil {
		h.redirectWithFlash(w, r, back, "danger", categoryMessage(err))
		return
	}
	if err := h.service.LockCategories(r.Context(), h.actor(r), costCenter, set); err != nil {
		h.fail(w, r, back, "lock categories", costCenter, err)
		return
	}
	h.redirectWithFlash(w, r, back, "success", fmt.Sprintf("Locked %s for %s", strings.Join(set.Names(), ", "), costCenter))
}

func (h *Handler) unlock(w http.ResponseWriter, r *http.Request) {
	costCenter, back, ok := h.parseRowForm(w, r)
	if !ok {
		return
	}
	if err := h.service.UnlockCategories(r.Context(), h.actor(r), costCenter); err != nil {
		h.fail(w, r, back, "unlock categories", costCenter, err)
		return
	}
	h.redirectWithFlash(w, r, back, "success", "Unlocked all categories for "+costCenter)
}

func (h *Handler) approveUnlock(w http.ResponseWriter, r *http.Request) {
	costCenter, back, ok := h.parseRowForm(w, r)
	if !ok {
		return
	}
	if err := h.service.ApproveUnlock(r.Context(), h.actor(r), costCenter); err != nil {
		h.fail(w, r, back, "approve unlock", costCenter, err)
		return
	}
	h.redirectWithFlash(w, r, back, "success", "Approved the unlock request for "+costCenter)
}

func (h *Handler) bulk(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	filter := budgetlock.FilterFromQuery(r.PostForm)
	back := listURL(filter, 1, 0)
	action, err := budgetlock.ParseBulkAction(r.PostFormValue("action"))
	if err != nil {
		h.redirectWithFlash(w, r, back, "danger", "Unknown bulk action")
		return
	}
	var set budget.CategorySet
	if action == budgetlock.BulkLock {
		if set, err = parseCategories(r.PostForm["categories"]); err != nil {
			h.redirectWithFlash(w, r, back, "danger", categoryMessage(err))
			return
		}
	}
	actor := h.actor(r)
	records, err := h.service.List(r.Context(), actor)
	if err != nil {
		h.fail(w, r, back, "list budget locks", "", err)
		return
	}
	targets := filter.Apply(records)
	if err := h.service.Bulk(r.Context(), actor, action, targets, set); err != nil {
		h.fail(w, r, back, "bulk lock action", "", err)
		return
	}
	h.redirectWithFlash(w, r, back, "success", fmt.Sprintf("Applied %s to %d cost centers", action, len(targets)))
}

func (h *Handler) parseRowForm(w http.ResponseWriter, r *http.Request) (string, string, bool) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return "", "", false
	}
	back := returnURL(r.PostFormValue("return"))
	costCenter := strings.TrimSpace(r.PostFormValue("target"))
	if costCenter == "" {
		h.redirectWithFlash(w, r, back, "danger", "Select a cost center")
		return "", "", false
	}
	return costCenter, back, true
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, back, op, costCenter string, err error) {
	if h.gate.HandleUnauthorized(w, r, err) {
		return
	}
	var msg string
	switch {
	case errors.Is(err, budgetlock.ErrForbidden):
		http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
		return
	case errors.Is(err, budgetlock.ErrNoTargets):
		msg = "No cost centers match the current filter"
	case errors.Is(err, budgetlock.ErrNoCategories):
		msg = "Select at least one category to lock"
	case errors.Is(err, budgetlock.ErrUnknownCostCenter):
		msg = "Unknown cost center " + costCenter
	case errors.Is(err, budgetlock.ErrNotSubmitted):
		msg = costCenter + " has not submitted its budget"
	default:
		h.logger.Warn(op, slog.String("cost_center", costCenter), slog.Any("error", err))
		msg = api.Message(err, "The request failed. Please try again.")
	}
	h.redirectWithFlash(w, r, back, "danger", msg)
}

func (h *Handler) actor(r *http.Request) budgetlock.Actor {
	actor := budgetlock.Actor{Token: auth.Token(auth.StateFromContext(r.Context())), Super: h.gate.IsSuper(r)}
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		actor.SessionID = sess.ID
	}
	return actor
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, data listPageData, status int) {
	sess := shared.SessionFromContext(r.Context())
	csrfToken := h.csrf.Token(sess)
	var flash *shared.FlashMessage
	if sess != nil {
		flash = sess.PopFlash()
	}
	viewData := view.TemplateData{
		Title:       "Budget Locks",
		CSRFToken:   csrfToken,
		Flash:       flash,
		CurrentPath: r.URL.Path,
		User:        h.gate.UserInfo(r),
		Data:        data,
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := h.templates.Render(w, "pages/admin/locks.html", viewData); err != nil {
		h.logger.Error("render template", slog.Any("error", err))
	}
}

func (h *Handler) redirectWithFlash(w http.ResponseWriter, r *http.Request, location, kind, message string) {
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		sess.AddFlash(shared.FlashMessage{Kind: kind, Message: message})
	}
	http.Redirect(w, r, location, http.StatusSeeOther)
}

func buildRow(rec budgetlock.Record) rowView {
	row := rowView{
		CostCenter:   rec.CostCenterName,
		Region:       rec.Region,
		Company:      rec.Company,
		ProfitCenter: rec.ProfitCenter,
		UnlockReason: rec.UnlockReason,
		Locks:        rec.Locks.Names(),
		CanApprove:   rec.UnlockRequested,
		CanUnlock:    !rec.Locks.IsEmpty(),
	}
	if !rec.SubmittedAt.IsZero() {
		row.SubmittedAt = rec.SubmittedAt.Format("02 Jan 2006 15:04")
	}
	switch rec.Status() {
	case budgetlock.StatusUnlockRequested:
		row.Status = badgeView{Label: "Unlock Requested", Kind: "warning"}
	case budgetlock.StatusSubmitted:
		row.Status = badgeView{Label: "Submitted", Kind: "success"}
	default:
		row.Status = badgeView{Label: "Not Submitted", Kind: "muted"}
	}
	return row
}

func parseCategories(raw []string) (budget.CategorySet, error) {
	var set budget.CategorySet
	for _, name := range raw {
		c, err := budget.ParseCategory(name)
		if err != nil {
			return 0, err
		}
		set = set.With(c)
	}
	if set.IsEmpty() {
		return 0, budgetlock.ErrNoCategories
	}
	return set, nil
}

func categoryMessage(err error) string {
	if errors.Is(err, budget.ErrUnknownCategory) {
		return "Unknown category selected"
	}
	return "Select at least one category to lock"
}

func categoryOptions() []categoryOption {
	out := make([]categoryOption, 0, len(budget.Categories()))
	for _, c := range budget.Categories() {
		out = append(out, categoryOption{Name: c.String(), Slug: c.Slug()})
	}
	return out
}

func listURL(f budgetlock.Filter, page, size int) string {
	q := f.Query()
	if page > 1 {
		q.Set("page", fmt.Sprint(page))
	}
	if size > 0 {
		q.Set("size", fmt.Sprint(size))
	}
	return "/admin/locks?" + q.Encode()
}

func returnURL(raw string) string {
	return shared.LocalPath(raw, "/admin/locks", "/admin/locks")
}
