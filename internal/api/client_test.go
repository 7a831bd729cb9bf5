package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *prometheus.Registry) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	reg := prometheus.NewRegistry()
	return NewClient(Options{BaseURL: srv.URL + "/api/", Timeout: time.Second, Registerer: reg}), reg
}

func TestLoadInputSendsBearerAndQuery(t *testing.T) {
	client, reg := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/gl/glinput-load", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "CC01", r.URL.Query().Get("branch"))
		assert.Equal(t, "2025", r.URL.Query().Get("glyear"))
		assert.Equal(t, "sales", r.URL.Query().Get("category"))
		_, _ = w.Write([]byte(`{"current": {"4001": {"Jan": 10, "Feb": "2.5"}}, "savedAt": "2025-01-02T03:04:05Z"}`))
	})

	snap, err := client.LoadInput(context.Background(), "tok", "CC01", 2025, "sales")
	require.NoError(t, err)
	assert.Equal(t, "10", string(snap.Current["4001"]["Jan"]))
	assert.Equal(t, "2.5", string(snap.Current["4001"]["Feb"]))
	assert.NotNil(t, snap.Previous)
	assert.Equal(t, "2025-01-02T03:04:05Z", snap.SavedAt)
	count, err := testutil.GatherAndCount(reg, "ebudget_api_request_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestUnauthorizedMapsToSentinel(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := client.Me(context.Background(), "expired")
	require.ErrorIs(t, err, ErrUnauthorized)

	require.NoError(t, client.Logout(context.Background(), "expired"))
}

func TestForbiddenLockedMapsToErrLocked(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"message": "Budget is locked"}`))
	})

	err := client.SaveInput(context.Background(), "tok", SaveInput{GLYear: 2025})
	require.ErrorIs(t, err, ErrLocked)
}

func TestUploadReturnsRowErrors(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Data []UploadRow `json:"data"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Len(t, body.Data, 2)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"message": "Upload failed", "errors": ["Row 2: missing gl_code", "Row 3: bad month"]}`))
	})

	res, err := client.UploadBudgets(context.Background(), "tok", []UploadRow{{"gl_code": "1"}, {"gl_code": ""}})
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "Upload failed", res.Message)
	assert.Equal(t, []string{"Row 2: missing gl_code", "Row 3: bad month"}, res.Errors)
}

func TestServerErrorKeepsMessage(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"message": "database unavailable"}`))
	})

	err := client.Submit(context.Background(), "tok", LockCommand{GLYear: 2025})
	var serr *StatusError
	require.True(t, errors.As(err, &serr))
	assert.Equal(t, http.StatusInternalServerError, serr.Status)
	assert.Equal(t, "database unavailable", Message(err, "fallback"))
}

func TestReportFilterEncodesMultiValues(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "2025", q.Get("year"))
		assert.Equal(t, []string{"PC1", "PC2"}, q["profit_centers"])
		assert.Equal(t, []string{"CC9"}, q["cost_centers"])
		_, _ = w.Write([]byte(`{"data": [{"category": "HEARSE", "values": {"Jan": "100"}, "units": {"Jan": "1"}}], "currency_info": {"base_currency": "MYR", "user_currency": "SGD", "rate": 0.3}}`))
	})

	rep, err := client.PPE(context.Background(), "tok", ReportFilter{GLYear: 2025, ProfitCenters: []string{"PC1", "PC2"}, CostCenters: []string{"CC9"}})
	require.NoError(t, err)
	require.Len(t, rep.Data, 1)
	assert.Equal(t, "HEARSE", rep.Data[0].Category)
	require.NotNil(t, rep.CurrencyInfo)
	assert.Equal(t, 0.3, rep.CurrencyInfo.Rate)
}
