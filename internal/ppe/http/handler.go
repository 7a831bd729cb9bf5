package ppehttp

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ebudget/ebudget/internal/aggregate"
	"github.com/ebudget/ebudget/internal/api"
	"github.com/ebudget/ebudget/internal/auth"
	"github.com/ebudget/ebudget/internal/ppe"
	"github.com/ebudget/ebudget/internal/shared"
	"github.com/ebudget/ebudget/internal/view"
)

const inputPath = "/ppe/input"

type ppeService interface {
	Year() int
	Open(ctx context.Context, actor ppe.Actor) (*ppe.Draft, error)
	Upsert(ctx context.Context, actor ppe.Actor, in ppe.ItemInput) (*ppe.Draft, error)
	Remove(ctx context.Context, actor ppe.Actor, id string) (*ppe.Draft, error)
	Save(ctx context.Context, actor ppe.Actor) (*ppe.Draft, error)
	Discard(ctx context.Context, actor ppe.Actor) error
}

// Handler serves PPE plan input.
type Handler struct {
	logger    *slog.Logger
	service   ppeService
	gate      *auth.Gate
	templates *view.Engine
	csrf      *shared.CSRFManager
}

// NewHandler constructs the PPE input handler.
func NewHandler(logger *slog.Logger, service ppeService, gate *auth.Gate, templates *view.Engine, csrf *shared.CSRFManager) *Handler {
	return &Handler{logger: logger, service: service, gate: gate, templates: templates, csrf: csrf}
}

// MountRoutes registers PPE input endpoints.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route(inputPath, func(r chi.Router) {
		r.Get("/", h.showInput)
		r.Post("/items", h.saveItem)
		r.Post("/items/{id}/delete", h.deleteItem)
		r.Post("/save", h.save)
		r.Post("/discard", h.discard)
	})
}

type itemView struct {
	ppe.Item
	Total     float64
	UnitTotal float64
	EditURL   string
}

type categoryView struct {
	Name     string
	Items    []itemView
	Subtotal float64
	AddURL   string
}

type itemForm struct {
	ID          string
	Category    string
	Description string
	Purpose     string
	UnitCost    string
	Units       map[string]string
	Errors      map[string]string
}

type inputPageData struct {
	Year       int
	SavedAt    time.Time
	Categories []categoryView
	GrandTotal float64
	Form       *itemForm
	CancelURL  string
}

func (h *Handler) showInput(w http.ResponseWriter, r *http.Request) {
	d, err := h.service.Open(r.Context(), h.actor(r))
	if err != nil {
		h.fail(w, r, err, "Failed to load PPE plan")
		return
	}
	var form *itemForm
	q := r.URL.Query()
	if id := q.Get("edit"); id != "" {
		if it, cat, ok := d.Find(id); ok {
			form = &itemForm{ID: it.ID, Category: cat, Description: it.Description, Purpose: it.Purpose, UnitCost: it.UnitCost, Units: it.Units}
		}
	} else if cat := q.Get("add"); ppe.IsCategory(cat) {
		form = &itemForm{Category: cat}
	}
	h.render(w, r, d, form, http.StatusOK)
}

func (h *Handler) saveItem(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.redirectWithFlash(w, r, inputPath, "danger", "Invalid form submission")
		return
	}
	in := ppe.ItemInput{
		ID:          strings.TrimSpace(r.PostForm.Get("id")),
		Category:    r.PostForm.Get("category"),
		Description: r.PostForm.Get("description"),
		Purpose:     r.PostForm.Get("purpose"),
		UnitCost:    r.PostForm.Get("unit_cost"),
		Units:       map[string]string{},
	}
	for _, m := range aggregate.Months {
		in.Units[m] = r.PostForm.Get("unit:" + m)
	}
	_, err := h.service.Upsert(r.Context(), h.actor(r), in)
	var verr *ppe.ValidationError
	if errors.As(err, &verr) {
		d, openErr := h.service.Open(r.Context(), h.actor(r))
		if openErr != nil {
			h.fail(w, r, openErr, "Failed to load PPE plan")
			return
		}
		form := &itemForm{ID: in.ID, Category: in.Category, Description: in.Description, Purpose: in.Purpose, UnitCost: in.UnitCost, Units: in.Units, Errors: verr.Fields}
		h.render(w, r, d, form, http.StatusUnprocessableEntity)
		return
	}
	if err != nil {
		h.fail(w, r, err, "Failed to update item")
		return
	}
	h.redirectWithFlash(w, r, inputPath, "success", "Item updated. Remember to save the plan.")
}

func (h *Handler) deleteItem(w http.ResponseWriter, r *http.Request) {
	_, err := h.service.Remove(r.Context(), h.actor(r), chi.URLParam(r, "id"))
	if errors.Is(err, ppe.ErrItemNotFound) {
		h.redirectWithFlash(w, r, inputPath, "warning", "That item no longer exists.")
		return
	}
	if err != nil {
		h.fail(w, r, err, "Failed to remove item")
		return
	}
	h.redirectWithFlash(w, r, inputPath, "success", "Item removed. Remember to save the plan.")
}

func (h *Handler) save(w http.ResponseWriter, r *http.Request) {
	if _, err := h.service.Save(r.Context(), h.actor(r)); err != nil {
		h.fail(w, r, err, "Failed to save")
		return
	}
	h.redirectWithFlash(w, r, inputPath, "success", "PPE plan saved successfully!")
}

func (h *Handler) discard(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Discard(r.Context(), h.actor(r)); err != nil {
		h.fail(w, r, err, "Failed to discard changes")
		return
	}
	h.redirectWithFlash(w, r, inputPath, "info", "Unsaved changes discarded.")
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error, prefix string) {
	if h.gate.HandleUnauthorized(w, r, err) {
		return
	}
	h.logger.Error(strings.ToLower(prefix), slog.Any("error", err))
	msg := prefix + ": " + api.Message(err, "the budget service is unavailable")
	if r.Method == http.MethodGet {
		http.Error(w, msg, http.StatusBadGateway)
		return
	}
	h.redirectWithFlash(w, r, inputPath, "danger", msg)
}

func (h *Handler) actor(r *http.Request) ppe.Actor {
	actor := ppe.Actor{Token: auth.Token(auth.StateFromContext(r.Context()))}
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		actor.SessionID = sess.ID
	}
	return actor
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, d *ppe.Draft, form *itemForm, status int) {
	data := inputPageData{Year: d.Year, SavedAt: d.SavedAt, Form: form, CancelURL: inputPath}
	for _, name := range ppe.Categories {
		cv := categoryView{Name: name, AddURL: inputPath + "?add=" + url.QueryEscape(name)}
		for _, it := range d.Current[name] {
			cv.Items = append(cv.Items, itemView{
				Item:      it,
				Total:     it.Total(),
				UnitTotal: it.UnitTotal(),
				EditURL:   inputPath + "?edit=" + url.QueryEscape(it.ID),
			})
		}
		cv.Subtotal = d.Current.CategoryTotal(name)
		data.Categories = append(data.Categories, cv)
	}
	data.GrandTotal = d.Current.GrandTotal()

	sess := shared.SessionFromContext(r.Context())
	csrfToken := h.csrf.Token(sess)
	var flash *shared.FlashMessage
	if sess != nil {
		flash = sess.PopFlash()
	}
	viewData := view.TemplateData{
		Title:       "PPE Input for " + strconv.Itoa(d.Year),
		CSRFToken:   csrfToken,
		Flash:       flash,
		CurrentPath: r.URL.Path,
		User:        h.gate.UserInfo(r),
		Dirty:       d.IsDirty(),
		Data:        data,
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := h.templates.Render(w, "pages/ppe/input.html", viewData); err != nil {
		h.logger.Error("render template", slog.Any("error", err))
	}
}

func (h *Handler) redirectWithFlash(w http.ResponseWriter, r *http.Request, location, kind, message string) {
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		sess.AddFlash(shared.FlashMessage{Kind: kind, Message: message})
	}
	http.Redirect(w, r, location, http.StatusSeeOther)
}
