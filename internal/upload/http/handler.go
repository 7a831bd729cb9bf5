package uploadhttp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ebudget/ebudget/internal/api"
	"github.com/ebudget/ebudget/internal/auth"
	"github.com/ebudget/ebudget/internal/shared"
	"github.com/ebudget/ebudget/internal/upload"
	"github.com/ebudget/ebudget/internal/view"
)

const (
	uploadPath     = "/budget/upload"
	maxUploadBytes = 10 << 20
	previewLimit   = 200
)

type uploadService interface {
	Preview(ctx context.Context, actor upload.Actor, filename string, r io.Reader) (upload.Preview, error)
	Load(ctx context.Context, actor upload.Actor, id string) (upload.Preview, error)
	Confirm(ctx context.Context, actor upload.Actor, id string) (upload.Result, error)
}

// Handler serves spreadsheet upload with a confirm step.
type Handler struct {
	logger    *slog.Logger
	service   uploadService
	gate      *auth.Gate
	templates *view.Engine
	csrf      *shared.CSRFManager
}

// NewHandler constructs the upload handler.
func NewHandler(logger *slog.Logger, service uploadService, gate *auth.Gate, templates *view.Engine, csrf *shared.CSRFManager) *Handler {
	return &Handler{logger: logger, service: service, gate: gate, templates: templates, csrf: csrf}
}

// MountRoutes registers upload endpoints.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route(uploadPath, func(r chi.Router) {
		r.Get("/", h.show)
		r.Post("/", h.preview)
		r.Post("/{batch}/confirm", h.confirm)
	})
}

type previewView struct {
	ID        string
	Filename  string
	Sheet     string
	Headers   []string
	Rows      [][]string
	Total     int
	Truncated bool
	Confirm   string
}

type pageData struct {
	Preview *previewView
	Result  *upload.Result
	Error   string
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	data := pageData{}
	if id := r.URL.Query().Get("batch"); id != "" {
		p, err := h.service.Load(r.Context(), h.actor(r), id)
		switch {
		case errors.Is(err, upload.ErrPreviewNotFound):
			data.Error = "This upload has expired. Please choose the file again."
		case err != nil:
			h.logger.Error("load upload preview", slog.Any("error", err))
			data.Error = "Unable to load the upload preview."
		default:
			data.Preview = newPreviewView(p)
		}
	}
	h.render(w, r, data, http.StatusOK)
}

func (h *Handler) preview(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		h.render(w, r, pageData{Error: "The file is too large or the form is malformed."}, http.StatusBadRequest)
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		h.render(w, r, pageData{Error: "Please choose an Excel file to upload."}, http.StatusBadRequest)
		return
	}
	defer file.Close()
	if ext := strings.ToLower(filepath.Ext(header.Filename)); ext != ".xlsx" && ext != ".xlsm" {
		h.render(w, r, pageData{Error: "Only .xlsx workbooks are supported."}, http.StatusBadRequest)
		return
	}

	p, err := h.service.Preview(r.Context(), h.actor(r), filepath.Base(header.Filename), file)
	if err != nil {
		h.logger.Warn("parse upload", slog.String("file", header.Filename), slog.Any("error", err))
		msg := "The workbook could not be read."
		if errors.Is(err, upload.ErrNoRows) || errors.Is(err, upload.ErrNoSheet) {
			msg = "The first sheet has no data rows."
		}
		h.render(w, r, pageData{Error: msg}, http.StatusUnprocessableEntity)
		return
	}
	http.Redirect(w, r, uploadPath+"?batch="+p.ID, http.StatusSeeOther)
}

func (h *Handler) confirm(w http.ResponseWriter, r *http.Request) {
	res, err := h.service.Confirm(r.Context(), h.actor(r), chi.URLParam(r, "batch"))
	switch {
	case errors.Is(err, upload.ErrPreviewNotFound):
		h.render(w, r, pageData{Error: "This upload has expired. Please choose the file again."}, http.StatusNotFound)
		return
	case err != nil:
		if h.gate.HandleUnauthorized(w, r, err) {
			return
		}
		h.logger.Error("confirm upload", slog.Any("error", err))
		h.render(w, r, pageData{Error: "Upload failed: " + api.Message(err, "the budget service is unavailable")}, http.StatusBadGateway)
		return
	}
	status := http.StatusOK
	if res.Failed {
		status = http.StatusUnprocessableEntity
	}
	h.render(w, r, pageData{Result: &res}, status)
}

func newPreviewView(p upload.Preview) *previewView {
	v := &previewView{
		ID:       p.ID,
		Filename: p.Filename,
		Sheet:    p.Sheet,
		Headers:  p.Headers,
		Total:    len(p.Rows),
		Confirm:  fmt.Sprintf("%s/%s/confirm", uploadPath, p.ID),
	}
	for i, row := range p.Rows {
		if i == previewLimit {
			v.Truncated = true
			break
		}
		cells := make([]string, len(p.Headers))
		for j, h := range p.Headers {
			if val, ok := row[h]; ok {
				cells[j] = fmt.Sprint(val)
			}
		}
		v.Rows = append(v.Rows, cells)
	}
	return v
}

func (h *Handler) actor(r *http.Request) upload.Actor {
	actor := upload.Actor{Token: auth.Token(auth.StateFromContext(r.Context()))}
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		actor.SessionID = sess.ID
	}
	return actor
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, data pageData, status int) {
	sess := shared.SessionFromContext(r.Context())
	csrfToken := h.csrf.Token(sess)
	var flash *shared.FlashMessage
	if sess != nil {
		flash = sess.PopFlash()
	}
	viewData := view.TemplateData{
		Title:       "Upload Budget Excel",
		CSRFToken:   csrfToken,
		Flash:       flash,
		CurrentPath: r.URL.Path,
		User:        h.gate.UserInfo(r),
		Data:        data,
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := h.templates.Render(w, "pages/upload/upload.html", viewData); err != nil {
		h.logger.Error("render template", slog.Any("error", err))
	}
}
