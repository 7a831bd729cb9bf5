package budgethttp

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/ebudget/ebudget/internal/aggregate"
	"github.com/ebudget/ebudget/internal/api"
	"github.com/ebudget/ebudget/internal/auth"
	"github.com/ebudget/ebudget/internal/budget"
	"github.com/ebudget/ebudget/internal/budgetlock"
	"github.com/ebudget/ebudget/internal/shared"
	"github.com/ebudget/ebudget/internal/view"
)

type budgetService interface {
	Year() int
	Open(ctx context.Context, actor budget.Actor, category budget.Category) (*budget.Draft, error)
	Apply(ctx context.Context, actor budget.Actor, category budget.Category, changes []budget.Change) (*budget.Draft, error)
	Save(ctx context.Context, actor budget.Actor, category budget.Category) (*budget.Draft, error)
	Switch(ctx context.Context, actor budget.Actor, from, to budget.Category, confirmed bool) error
	Discard(ctx context.Context, actor budget.Actor, category budget.Category) error
	Related(ctx context.Context, actor budget.Actor, d *budget.Draft, req budget.RelatedRequest) (budget.RelatedView, error)
}

type lockService interface {
	Status(ctx context.Context, actor budgetlock.Actor) (budgetlock.Record, error)
	Submit(ctx context.Context, actor budgetlock.Actor) (budgetlock.Record, error)
	RequestUnlock(ctx context.Context, actor budgetlock.Actor, reason string) (budgetlock.Record, error)
}

// Handler serves budget entry and the user side of the submission workflow.
type Handler struct {
	logger    *slog.Logger
	service   budgetService
	locks     lockService
	gate      *auth.Gate
	templates *view.Engine
	csrf      *shared.CSRFManager
	validator *validator.Validate
}

type badgeView struct {
	Label string
	Kind  string
}

type actionState struct {
	Enabled bool
	Message string
}

type tabView struct {
	Name   string
	Slug   string
	Active bool
	Locked bool
}

type cellView struct {
	Month    string
	Raw      string
	Previous float64
}

type rowView struct {
	GLCode   string
	Name     string
	Cells    []cellView
	Total    float64
	Previous float64
}

type titleView struct {
	SubTitle string
	Rows     []rowView
	Total    float64
	Previous float64
}

type groupView struct {
	Sub2     string
	Titles   []titleView
	Total    float64
	Previous float64
}

type inputPageData struct {
	Year          int
	Category      budget.Category
	Tabs          []tabView
	Branch        string
	SavedAt       string
	Groups        []groupView
	GrandTotal    float64
	PreviousTotal float64
	Status        badgeView
	Editable      bool
	Save          actionState
	Submit        actionState
	RequestUnlock actionState
	UnlockReason  string
	IsRelated     bool
}

type confirmSwitchData struct {
	From       budget.Category
	To         budget.Category
	ConfirmURL string
	CancelURL  string
}

type relatedCell struct {
	Month    string
	Raw      string
	Related  float64
	Previous float64
}

type relatedPageData struct {
	Category budget.Category
	Item     budget.Item
	View     budget.RelatedView
	Cells    []relatedCell
	BackURL  string
}

type unlockForm struct {
	Reason string `validate:"required,max=500"`
}

// NewHandler constructs the budget HTTP handler.
func NewHandler(logger *slog.Logger, service budgetService, locks lockService, gate *auth.Gate, templates *view.Engine, csrf *shared.CSRFManager) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:    logger,
		service:   service,
		locks:     locks,
		gate:      gate,
		templates: templates,
		csrf:      csrf,
		validator: validator.New(),
	}
}

// MountRoutes registers HTTP routes. Callers wrap r with the auth gate.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/budget/input", func(r chi.Router) {
		r.Get("/", h.showInput)
		r.Get("/switch", h.switchCategory)
		r.Post("/{category}/values", h.applyValues)
		r.Post("/{category}/save", h.save)
		r.Post("/{category}/discard", h.discard)
		r.Get("/{category}/related", h.showRelated)
	})
	r.Route("/budget/lock", func(r chi.Router) {
		r.Post("/submit", h.submit)
		r.Post("/request-unlock", h.requestUnlock)
	})
}

func (h *Handler) showInput(w http.ResponseWriter, r *http.Request) {
	category := budget.Sales
	if raw := r.URL.Query().Get("category"); raw != "" {
		c, err := budget.ParseCategory(raw)
		if err != nil {
			h.redirectWithFlash(w, r, "/budget/input", "danger", "Unknown category")
			return
		}
		category = c
	}
	draft, err := h.service.Open(r.Context(), h.actor(r), category)
	if err != nil {
		if h.gate.HandleUnauthorized(w, r, err) {
			return
		}
		h.logger.Error("open budget draft", slog.String("category", category.String()), slog.Any("error", err))
		data := inputPageData{Year: h.service.Year(), Category: category, Tabs: tabs(category, 0)}
		h.render(w, r, "pages/budget/input.html", "Budget Input", data, false, http.StatusBadGateway,
			&shared.FlashMessage{Kind: "danger", Message: api.Message(err, "Failed to load budget values")})
		return
	}
	lock, err := h.locks.Status(r.Context(), h.lockActor(r))
	if err != nil {
		if h.gate.HandleUnauthorized(w, r, err) {
			return
		}
		h.logger.Warn("load lock status", slog.Any("error", err))
	}
	data := h.inputData(r, draft, lock, err == nil)
	h.render(w, r, "pages/budget/input.html", "Budget Input: "+category.String(), data, draft.Store.IsDirty(), http.StatusOK, nil)
}

func (h *Handler) inputData(r *http.Request, draft *budget.Draft, lock budgetlock.Record, lockKnown bool) inputPageData {
	category := draft.Category()
	grouping := budget.Group(draft.Items, draft.Store)
	data := inputPageData{
		Year:          h.service.Year(),
		Category:      category,
		Tabs:          tabs(category, lock.Locks),
		GrandTotal:    grouping.GrandTotal,
		PreviousTotal: grouping.PreviousTotal,
		Status:        statusBadge(lock, lockKnown),
		Editable:      lockKnown && lock.Editable(category),
		Save:          saveState(lock, lockKnown, category),
		Submit:        submitState(lock, lockKnown),
		RequestUnlock: unlockState(lock, lockKnown),
		UnlockReason:  lock.UnlockReason,
		IsRelated:     category == budget.Related,
	}
	if user, ok := auth.CurrentUser(auth.StateFromContext(r.Context())); ok {
		data.Branch = user.BranchCode2.String()
	}
	if !draft.Store.SavedAt.IsZero() {
		data.SavedAt = draft.Store.SavedAt.Format("02 Jan 2006 15:04")
	}
	for _, g := range grouping.Groups {
		gv := groupView{Sub2: g.Sub2, Total: g.Total, Previous: g.Previous}
		for _, tg := range g.Titles {
			tv := titleView{SubTitle: tg.SubTitle, Total: tg.Total, Previous: tg.Previous}
			for _, row := range tg.Rows {
				rv := rowView{GLCode: row.Item.GLCode, Name: row.Item.Name, Total: row.Total, Previous: row.Previous}
				for _, m := range aggregate.Months {
					rv.Cells = append(rv.Cells, cellView{
						Month:    m,
						Raw:      draft.Store.Value(row.Item.GLCode, m),
						Previous: draft.Store.Previous[row.Item.GLCode].Get(m),
					})
				}
				tv.Rows = append(tv.Rows, rv)
			}
			gv.Titles = append(gv.Titles, tv)
		}
		data.Groups = append(data.Groups, gv)
	}
	return data
}

func (h *Handler) switchCategory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	to, err := budget.ParseCategory(q.Get("to"))
	if err != nil {
		h.redirectWithFlash(w, r, "/budget/input", "danger", "Unknown category")
		return
	}
	from, _ := budget.ParseCategory(q.Get("from"))
	err = h.service.Switch(r.Context(), h.actor(r), from, to, q.Get("confirm") == "1")
	switch {
	case errors.Is(err, budget.ErrUnsavedChanges):
		confirm := url.Values{"from": {from.String()}, "to": {to.String()}, "confirm": {"1"}}
		h.render(w, r, "pages/budget/confirm_switch.html", "Unsaved changes", confirmSwitchData{
			From:       from,
			To:         to,
			ConfirmURL: "/budget/input/switch?" + confirm.Encode(),
			CancelURL:  inputURL(from),
		}, true, http.StatusConflict, nil)
		return
	case err != nil:
		h.logger.Error("switch category", slog.Any("error", err))
		h.redirectWithFlash(w, r, inputURL(from), "danger", "Failed to switch category")
		return
	}
	http.Redirect(w, r, inputURL(to), http.StatusSeeOther)
}

func (h *Handler) applyValues(w http.ResponseWriter, r *http.Request) {
	category, changes, ok := h.parseGrid(w, r)
	if !ok || !h.ensureEditable(w, r, category) {
		return
	}
	if _, err := h.service.Apply(r.Context(), h.actor(r), category, changes); err != nil {
		h.fail(w, r, category, "apply budget values", err, "Failed to record values")
		return
	}
	http.Redirect(w, r, inputURL(category), http.StatusSeeOther)
}

func (h *Handler) save(w http.ResponseWriter, r *http.Request) {
	category, changes, ok := h.parseGrid(w, r)
	if !ok || !h.ensureEditable(w, r, category) {
		return
	}
	actor := h.actor(r)
	if len(changes) > 0 {
		if _, err := h.service.Apply(r.Context(), actor, category, changes); err != nil {
			h.fail(w, r, category, "apply budget values", err, "Failed to record values")
			return
		}
	}
	if _, err := h.service.Save(r.Context(), actor, category); err != nil {
		h.fail(w, r, category, "save budget", err, "Failed to save")
		return
	}
	h.redirectWithFlash(w, r, inputURL(category), "success", "Budget saved successfully!")
}

func (h *Handler) discard(w http.ResponseWriter, r *http.Request) {
	category, err := budget.ParseCategory(chi.URLParam(r, "category"))
	if err != nil {
		http.NotFound(w, r)
		return
	}
	if err := h.service.Discard(r.Context(), h.actor(r), category); err != nil {
		h.logger.Error("discard draft", slog.Any("error", err))
		h.redirectWithFlash(w, r, inputURL(category), "danger", "Failed to discard changes")
		return
	}
	h.redirectWithFlash(w, r, inputURL(category), "info", "Unsaved changes discarded")
}

func (h *Handler) showRelated(w http.ResponseWriter, r *http.Request) {
	category, err := budget.ParseCategory(chi.URLParam(r, "category"))
	if err != nil {
		http.NotFound(w, r)
		return
	}
	actor := h.actor(r)
	draft, err := h.service.Open(r.Context(), actor, category)
	if err != nil {
		h.fail(w, r, category, "open budget draft", err, "Failed to load budget values")
		return
	}
	q := r.URL.Query()
	glCode := strings.TrimSpace(q.Get("gl_code"))
	item, ok := draft.Item(glCode)
	if !ok {
		h.redirectWithFlash(w, r, inputURL(category), "danger", "Unknown GL account")
		return
	}
	var flash *shared.FlashMessage
	rv, err := h.service.Related(r.Context(), actor, draft, budget.RelatedRequest{
		GLCode:       glCode,
		Company:      strings.TrimSpace(q.Get("company")),
		ProfitCenter: strings.TrimSpace(q.Get("profit_center")),
	})
	if err != nil {
		if h.gate.HandleUnauthorized(w, r, err) {
			return
		}
		h.logger.Warn("load related values", slog.Any("error", err))
		flash = &shared.FlashMessage{Kind: "warning", Message: api.Message(err, "Failed to load related values")}
	}
	data := relatedPageData{Category: category, Item: item, View: rv, BackURL: inputURL(category)}
	for _, m := range aggregate.Months {
		data.Cells = append(data.Cells, relatedCell{
			Month:    m,
			Raw:      draft.Store.Value(glCode, m),
			Related:  rv.Hints.Get(m),
			Previous: draft.Store.Previous[glCode].Get(m),
		})
	}
	h.render(w, r, "pages/budget/related.html", "Related: "+item.Name, data, draft.Store.IsDirty(), http.StatusOK, flash)
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	back := returnURL(r)
	if _, err := h.locks.Submit(r.Context(), h.lockActor(r)); err != nil {
		if h.gate.HandleUnauthorized(w, r, err) {
			return
		}
		h.logger.Warn("submit budget", slog.Any("error", err))
		h.redirectWithFlash(w, r, back, "danger", lockMessage(err, "Failed to submit budget"))
		return
	}
	h.redirectWithFlash(w, r, back, "success", "Budget submitted")
}

func (h *Handler) requestUnlock(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	back := returnURL(r)
	form := unlockForm{Reason: strings.TrimSpace(r.PostFormValue("reason"))}
	if err := h.validator.Struct(form); err != nil {
		h.redirectWithFlash(w, r, back, "danger", "Please give a reason of up to 500 characters for the unlock request")
		return
	}
	if _, err := h.locks.RequestUnlock(r.Context(), h.lockActor(r), form.Reason); err != nil {
		if h.gate.HandleUnauthorized(w, r, err) {
			return
		}
		h.logger.Warn("request unlock", slog.Any("error", err))
		h.redirectWithFlash(w, r, back, "danger", lockMessage(err, "Failed to request unlock"))
		return
	}
	h.redirectWithFlash(w, r, back, "success", "Unlock requested")
}

func (h *Handler) parseGrid(w http.ResponseWriter, r *http.Request) (budget.Category, []budget.Change, bool) {
	category, err := budget.ParseCategory(chi.URLParam(r, "category"))
	if err != nil {
		http.NotFound(w, r)
		return 0, nil, false
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return 0, nil, false
	}
	return category, ParseCells(r.PostForm), true
}

// ParseCells extracts typed cells from form fields named cell:<gl_code>:<month>.
func ParseCells(form url.Values) []budget.Change {
	var changes []budget.Change
	for key, values := range form {
		rest, ok := strings.CutPrefix(key, "cell:")
		if !ok || len(values) == 0 {
			continue
		}
		i := strings.LastIndex(rest, ":")
		if i <= 0 {
			continue
		}
		changes = append(changes, budget.Change{GLCode: rest[:i], Month: rest[i+1:], Raw: values[len(values)-1]})
	}
	return changes
}

func (h *Handler) ensureEditable(w http.ResponseWriter, r *http.Request, category budget.Category) bool {
	lock, err := h.locks.Status(r.Context(), h.lockActor(r))
	if err != nil {
		if h.gate.HandleUnauthorized(w, r, err) {
			return false
		}
		h.logger.Warn("load lock status", slog.Any("error", err))
		h.redirectWithFlash(w, r, inputURL(category), "danger", "Unable to confirm the budget is open for editing")
		return false
	}
	if !lock.Editable(category) {
		h.redirectWithFlash(w, r, inputURL(category), "warning", "This category is locked or the budget has been submitted")
		return false
	}
	return true
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, category budget.Category, op string, err error, prefix string) {
	if h.gate.HandleUnauthorized(w, r, err) {
		return
	}
	switch {
	case errors.Is(err, api.ErrLocked):
		h.redirectWithFlash(w, r, inputURL(category), "warning", "This budget is locked. Please refresh the page.")
		return
	case errors.Is(err, budget.ErrUnknownAccount), errors.Is(err, budget.ErrUnknownMonth):
		h.redirectWithFlash(w, r, inputURL(category), "danger", err.Error())
		return
	}
	h.logger.Error(op, slog.String("category", category.String()), slog.Any("error", err))
	h.redirectWithFlash(w, r, inputURL(category), "danger", prefix+": "+api.Message(err, "the budget service is unavailable"))
}

func (h *Handler) actor(r *http.Request) budget.Actor {
	state := auth.StateFromContext(r.Context())
	actor := budget.Actor{Token: auth.Token(state)}
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		actor.SessionID = sess.ID
	}
	if user, ok := auth.CurrentUser(state); ok {
		actor.Branch = user.CostCenterID.String()
		actor.Currency = user.Currency
	}
	return actor
}

func (h *Handler) lockActor(r *http.Request) budgetlock.Actor {
	actor := budgetlock.Actor{Token: auth.Token(auth.StateFromContext(r.Context())), Super: h.gate.IsSuper(r)}
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		actor.SessionID = sess.ID
	}
	return actor
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, template, title string, data any, dirty bool, status int, flash *shared.FlashMessage) {
	sess := shared.SessionFromContext(r.Context())
	csrfToken := h.csrf.Token(sess)
	if sess != nil {
		if pending := sess.PopFlash(); flash == nil {
			flash = pending
		}
	}
	viewData := view.TemplateData{
		Title:       title,
		CSRFToken:   csrfToken,
		Flash:       flash,
		CurrentPath: r.URL.Path,
		User:        h.gate.UserInfo(r),
		Dirty:       dirty,
		Data:        data,
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := h.templates.Render(w, template, viewData); err != nil {
		h.logger.Error("render template", slog.Any("error", err))
	}
}

func (h *Handler) redirectWithFlash(w http.ResponseWriter, r *http.Request, location, kind, message string) {
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		sess.AddFlash(shared.FlashMessage{Kind: kind, Message: message})
	}
	http.Redirect(w, r, location, http.StatusSeeOther)
}

func inputURL(category budget.Category) string {
	if !category.Valid() {
		return "/budget/input"
	}
	return "/budget/input?category=" + category.Slug()
}

func returnURL(r *http.Request) string {
	return shared.LocalPath(r.FormValue("return"), "/", "/budget/input")
}

func tabs(active budget.Category, locks budget.CategorySet) []tabView {
	out := make([]tabView, 0, len(budget.Categories()))
	for _, c := range budget.Categories() {
		out = append(out, tabView{Name: c.String(), Slug: c.Slug(), Active: c == active, Locked: locks.Has(c)})
	}
	return out
}

func statusBadge(lock budgetlock.Record, known bool) badgeView {
	if !known {
		return badgeView{Label: "Status unknown", Kind: "muted"}
	}
	switch lock.Status() {
	case budgetlock.StatusUnlockRequested:
		return badgeView{Label: "Unlock Requested", Kind: "warning"}
	case budgetlock.StatusSubmitted:
		return badgeView{Label: "Submitted", Kind: "success"}
	default:
		return badgeView{Label: "Open", Kind: "info"}
	}
}

func saveState(lock budgetlock.Record, known bool, category budget.Category) actionState {
	switch {
	case !known:
		return actionState{Message: "Lock status unavailable"}
	case lock.Submitted:
		return actionState{Message: "Budget has been submitted"}
	case lock.Locks.Has(category):
		return actionState{Message: category.String() + " is locked by the administrator"}
	default:
		return actionState{Enabled: true}
	}
}

func submitState(lock budgetlock.Record, known bool) actionState {
	switch {
	case !known:
		return actionState{}
	case lock.Submitted:
		return actionState{Message: "Submitted"}
	default:
		return actionState{Enabled: true}
	}
}

func unlockState(lock budgetlock.Record, known bool) actionState {
	switch {
	case !known || !lock.Submitted:
		return actionState{}
	case lock.UnlockRequested:
		return actionState{Message: "Unlock request pending"}
	default:
		return actionState{Enabled: true}
	}
}

func lockMessage(err error, fallback string) string {
	switch {
	case errors.Is(err, budgetlock.ErrAlreadySubmitted):
		return "Budget is already submitted"
	case errors.Is(err, budgetlock.ErrNotSubmitted):
		return "Submit the budget before requesting an unlock"
	case errors.Is(err, budgetlock.ErrUnlockPending):
		return "An unlock request is already pending"
	case errors.Is(err, budgetlock.ErrReasonRequired):
		return "Please give a reason for the unlock request"
	case errors.Is(err, api.ErrLocked):
		return "This budget is locked. Please refresh the page."
	}
	return api.Message(err, fallback)
}
