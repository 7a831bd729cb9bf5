package view

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEngine(t *testing.T) {
	engine, err := NewEngine()
	assert.NoError(t, err, "Templates should parse without error")
	assert.NotNil(t, engine)
}

func TestFormatNumber(t *testing.T) {
	assert.Equal(t, "0.00", FormatNumber(0))
	assert.Equal(t, "1,234.50", FormatNumber(1234.5))
	assert.Equal(t, "-2,000.00", FormatNumber(-2000))
}

func TestFormatUnits(t *testing.T) {
	assert.Equal(t, "2", FormatUnits(2))
	assert.Equal(t, "1.5", FormatUnits(1.5))
}

func TestRenderLoginMarksCleanPage(t *testing.T) {
	engine, err := NewEngine()
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	require.NoError(t, engine.Render(rec, "pages/login.html", TemplateData{Title: "Login", CSRFToken: "tok"}))
	body := rec.Body.String()
	assert.Contains(t, body, `data-dirty="false"`)
	assert.Contains(t, body, `name="csrf_token" value="tok"`)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
}
