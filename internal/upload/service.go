package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/ebudget/ebudget/internal/api"
)

// Gateway is the subset of the budget API used for uploads.
type Gateway interface {
	UploadBudgets(ctx context.Context, token string, rows []api.UploadRow) (api.UploadResult, error)
}

// Actor identifies the uploading session.
type Actor struct {
	Token     string
	SessionID string
}

// Result is the outcome of a confirmed upload. Rejected uploads carry the
// API's row-level errors verbatim.
type Result struct {
	Message string
	Errors  []string
	Failed  bool
}

// Service parses uploads into previews and confirms them.
type Service struct {
	gateway  Gateway
	previews *PreviewStore
	now      func() time.Time
}

// NewService constructs a Service.
func NewService(gateway Gateway, previews *PreviewStore) *Service {
	return &Service{gateway: gateway, previews: previews, now: time.Now}
}

// Preview parses the workbook and stores it for confirmation.
func (s *Service) Preview(ctx context.Context, actor Actor, filename string, r io.Reader) (Preview, error) {
	sheet, err := Parse(r)
	if err != nil {
		return Preview{}, err
	}
	return s.previews.Put(ctx, actor.SessionID, Preview{
		Filename:  filename,
		Sheet:     sheet.Name,
		Headers:   sheet.Headers,
		Rows:      sheet.Rows,
		CreatedAt: s.now(),
	})
}

// Load returns a stored preview.
func (s *Service) Load(ctx context.Context, actor Actor, id string) (Preview, error) {
	return s.previews.Get(ctx, actor.SessionID, id)
}

// Confirm posts the preview's rows. Accepted or rejected, the preview is
// dropped; transport failures keep it for a retry.
func (s *Service) Confirm(ctx context.Context, actor Actor, id string) (Result, error) {
	p, err := s.previews.Get(ctx, actor.SessionID, id)
	if err != nil {
		return Result{}, err
	}
	res, err := s.gateway.UploadBudgets(ctx, actor.Token, p.Rows)
	var verr *api.ValidationError
	switch {
	case errors.As(err, &verr):
		out := Result{Message: res.Message, Errors: res.Errors, Failed: true}
		if out.Message == "" {
			out.Message = "Upload failed"
		}
		return out, s.previews.Delete(ctx, actor.SessionID, id)
	case err != nil:
		return Result{}, fmt.Errorf("upload: post rows: %w", err)
	}
	out := Result{Message: res.Message}
	if out.Message == "" {
		out.Message = "Upload successful"
	}
	return out, s.previews.Delete(ctx, actor.SessionID, id)
}
