package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/ebudget/ebudget/internal/shared"
	"github.com/ebudget/ebudget/internal/view"
)

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger         *slog.Logger
	service        *Service
	gate           *Gate
	templates      *view.Engine
	sessionManager *shared.SessionManager
	csrfManager    *shared.CSRFManager
	validator      *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, gate *Gate, templates *view.Engine, sessions *shared.SessionManager, csrf *shared.CSRFManager) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:         logger,
		service:        service,
		gate:           gate,
		templates:      templates,
		sessionManager: sessions,
		csrfManager:    csrf,
		validator:      validator.New(),
	}
}

// MountRoutes registers auth routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/login", h.showLogin)
	r.Post("/login", h.handleLogin)
	r.Post("/logout", h.handleLogout)
}

type loginForm struct {
	CostCenterName string `validate:"required,max=100"`
	Password       string `validate:"required"`
}

type loginPageData struct {
	Form    loginForm
	Errors  map[string]string
	Warning string
}

var fieldMessages = map[string]string{
	"CostCenterName": "Cost center is required",
	"Password":       "Password is required",
}

func (h *Handler) showLogin(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if IsAuthenticated(Load(sess)) {
		http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
		return
	}
	data := loginPageData{Warning: Reason(r.URL.Query().Get("reason")).Message()}
	h.render(w, r, data, http.StatusOK)
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	sess := shared.SessionFromContext(r.Context())
	form := loginForm{
		CostCenterName: strings.TrimSpace(r.PostFormValue("cost_center_name")),
		Password:       r.PostFormValue("password"),
	}
	errs := make(map[string]string)
	if err := h.validator.Struct(form); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fieldErr := range verrs {
				errs[fieldErr.Field()] = fieldMessages[fieldErr.Field()]
			}
		}
	}

	if len(errs) == 0 {
		Dispatch(sess, LoginStarted{})
		success, err := h.service.Authenticate(r.Context(), form.CostCenterName, form.Password)
		if err == nil {
			Dispatch(sess, success)
			if sess != nil {
				sess.AddFlash(shared.FlashMessage{Kind: "success", Message: "Welcome back, " + success.User.CostCenterName})
			} else {
				h.logger.Error("session missing during login")
			}
			http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
			return
		}
		if errors.Is(err, shared.ErrInvalidCredentials) {
			errs["general"] = "Invalid cost center or password"
		} else {
			h.logger.Warn("login", slog.Any("error", err))
			errs["general"] = "Login failed. Please try again."
		}
		Dispatch(sess, LoginFailed{Err: errs["general"]})
	}

	form.Password = ""
	h.render(w, r, loginPageData{Form: form, Errors: errs}, http.StatusBadRequest)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	state := Load(sess)
	if err := h.service.Logout(r.Context(), Token(state)); err != nil {
		h.logger.Warn("logout", slog.Any("error", err))
	}
	Dispatch(sess, LoggedOut{})
	if sess != nil {
		if h.gate != nil {
			h.gate.end(r.Context(), sess, ReasonLogout)
		}
		h.sessionManager.Destroy(sess)
	}
	http.Redirect(w, r, LoginURL(ReasonLogout), http.StatusSeeOther)
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, data loginPageData, status int) {
	sess := shared.SessionFromContext(r.Context())
	csrfToken := h.csrfManager.Token(sess)
	var flash *shared.FlashMessage
	if sess != nil {
		flash = sess.PopFlash()
	}
	viewData := view.TemplateData{
		Title:       "Login",
		CSRFToken:   csrfToken,
		Flash:       flash,
		CurrentPath: r.URL.Path,
		Data:        data,
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := h.templates.Render(w, "pages/login.html", viewData); err != nil {
		h.logger.Error("render login", slog.Any("error", err))
	}
}

// ShowLoginForTest exposes the GET handler for tests.
func (h *Handler) ShowLoginForTest(w http.ResponseWriter, r *http.Request) {
	h.showLogin(w, r)
}

// HandleLoginForTest exposes the POST handler for tests.
func (h *Handler) HandleLoginForTest(w http.ResponseWriter, r *http.Request) {
	h.handleLogin(w, r)
}

// HandleLogoutForTest exposes the logout handler for tests.
func (h *Handler) HandleLogoutForTest(w http.ResponseWriter, r *http.Request) {
	h.handleLogout(w, r)
}
