package api

import (
	"context"
	"errors"
)

// UploadBudgets posts parsed spreadsheet rows. Row-level rejections come
// back as *ValidationError.
func (c *Client) UploadBudgets(ctx context.Context, token string, rows []UploadRow) (UploadResult, error) {
	var out UploadResult
	err := c.post(ctx, token, "/upload/upload-budgets", map[string]any{"data": rows}, &out)
	var verr *ValidationError
	if errors.As(err, &verr) {
		return UploadResult{Message: verr.Message, Errors: verr.Errors}, err
	}
	if err != nil {
		return UploadResult{}, err
	}
	if len(out.Errors) > 0 {
		return out, &ValidationError{Message: out.Message, Errors: out.Errors}
	}
	return out, nil
}
