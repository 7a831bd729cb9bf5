package budgetlockhttp_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ebudget/ebudget/internal/api"
	"github.com/ebudget/ebudget/internal/auth"
	"github.com/ebudget/ebudget/internal/budget"
	"github.com/ebudget/ebudget/internal/budgetlock"
	budgetlockhttp "github.com/ebudget/ebudget/internal/budgetlock/http"
	"github.com/ebudget/ebudget/internal/shared"
	"github.com/ebudget/ebudget/internal/view"
	_ "github.com/ebudget/ebudget/testing"
)

type bulkCall struct {
	action  budgetlock.BulkAction
	targets []string
	set     budget.CategorySet
}

type stubAdmin struct {
	records  []budgetlock.Record
	locked   map[string]budget.CategorySet
	approved []string
	unlocked []string
	bulk     []bulkCall
	err      error
}

func (s *stubAdmin) Year() int { return 2025 }

func (s *stubAdmin) List(_ context.Context, actor budgetlock.Actor) ([]budgetlock.Record, error) {
	if !actor.Super {
		return nil, budgetlock.ErrForbidden
	}
	return s.records, s.err
}

func (s *stubAdmin) LockCategories(_ context.Context, _ budgetlock.Actor, cc string, set budget.CategorySet) error {
	if s.locked == nil {
		s.locked = map[string]budget.CategorySet{}
	}
	s.locked[cc] = set
	return s.err
}

func (s *stubAdmin) UnlockCategories(_ context.Context, _ budgetlock.Actor, cc string) error {
	s.unlocked = append(s.unlocked, cc)
	return s.err
}

func (s *stubAdmin) ApproveUnlock(_ context.Context, _ budgetlock.Actor, cc string) error {
	s.approved = append(s.approved, cc)
	return s.err
}

func (s *stubAdmin) Bulk(_ context.Context, _ budgetlock.Actor, action budgetlock.BulkAction, targets []budgetlock.Record, set budget.CategorySet) error {
	call := bulkCall{action: action, set: set}
	for _, t := range targets {
		call.targets = append(call.targets, t.CostCenterName)
	}
	s.bulk = append(s.bulk, call)
	return s.err
}

type noopAuth struct{}

func (noopAuth) Login(context.Context, api.Credentials) (api.LoginResult, error) {
	return api.LoginResult{}, api.ErrUnauthorized
}
func (noopAuth) Logout(context.Context, string) error { return nil }
func (noopAuth) Me(context.Context, string) (api.User, error) {
	return api.User{}, nil
}

type fixture struct {
	router  chi.Router
	service *stubAdmin
	sess    *shared.Session
}

func sampleRecords() []budgetlock.Record {
	return []budgetlock.Record{
		{CostCenterName: "CC01", Region: "North", Company: "Alpha", ProfitCenter: "PC1", Submitted: true},
		{CostCenterName: "CC02", Region: "North", Company: "Alpha", ProfitCenter: "PC1", Submitted: true, UnlockRequested: true, UnlockReason: "typo"},
		{CostCenterName: "CC03", Region: "South", Company: "Beta", ProfitCenter: "PC7", Locks: budget.NewCategorySet(budget.Sales)},
	}
}

func newFixture(t *testing.T, super bool) *fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	sessions := shared.NewSessionManager(client, "test_session", "secret", time.Hour, false)
	templates, err := view.NewEngine()
	require.NoError(t, err)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	gate := auth.NewGate(auth.NewService(noopAuth{}, time.Hour), logger, "FIN&CORP")

	sess, err := sessions.Load(context.Background(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	user := api.User{CostCenterName: "HQ", CostCenter: "OPS"}
	if super {
		user.CostCenter = "FIN&CORP"
	}
	auth.Dispatch(sess, auth.LoginSucceeded{Token: "tok", User: user, At: time.Now()})

	f := &fixture{service: &stubAdmin{records: sampleRecords()}, sess: sess}
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := shared.ContextWithSession(req.Context(), sess)
			next.ServeHTTP(w, req.WithContext(auth.ContextWithState(ctx, auth.Load(sess))))
		})
	})
	r.Group(func(r chi.Router) {
		r.Use(gate.RequireSuper)
		budgetlockhttp.NewHandler(logger, f.service, gate, templates, shared.NewCSRFManager("csrf")).MountRoutes(r)
	})
	f.router = r
	return f
}

func (f *fixture) do(method, target string, form url.Values) *httptest.ResponseRecorder {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req := httptest.NewRequest(method, target, body)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	res := httptest.NewRecorder()
	f.router.ServeHTTP(res, req)
	return res
}

func TestListDefaultsToSubmitted(t *testing.T) {
	f := newFixture(t, true)
	res := f.do(http.MethodGet, "/admin/locks/", nil)

	require.Equal(t, http.StatusOK, res.Code)
	body := res.Body.String()
	assert.Contains(t, body, "<td>CC01</td>")
	assert.Contains(t, body, "<td>CC02</td>")
	assert.NotContains(t, body, "<td>CC03</td>")
	assert.Contains(t, body, "Unlock Requested")
}

func TestListFiltersByCompany(t *testing.T) {
	f := newFixture(t, true)
	res := f.do(http.MethodGet, "/admin/locks/?status=all&company=Beta", nil)

	require.Equal(t, http.StatusOK, res.Code)
	body := res.Body.String()
	assert.Contains(t, body, "<td>CC03</td>")
	assert.NotContains(t, body, "<td>CC01</td>")
}

func TestNonSuperIsForbidden(t *testing.T) {
	f := newFixture(t, false)
	res := f.do(http.MethodGet, "/admin/locks/", nil)
	assert.Equal(t, http.StatusForbidden, res.Code)
}

func TestLockRowCategories(t *testing.T) {
	f := newFixture(t, true)
	res := f.do(http.MethodPost, "/admin/locks/lock", url.Values{
		"target":     {"CC03"},
		"categories": {"sales", "Cost"},
		"return":     {"/admin/locks?status=all"},
	})

	require.Equal(t, http.StatusSeeOther, res.Code)
	assert.Equal(t, "/admin/locks?status=all", res.Header().Get("Location"))
	assert.Equal(t, budget.NewCategorySet(budget.Sales, budget.Cost), f.service.locked["CC03"])
}

func TestLockWithoutCategoriesIsRejected(t *testing.T) {
	f := newFixture(t, true)
	res := f.do(http.MethodPost, "/admin/locks/lock", url.Values{"target": {"CC03"}})

	require.Equal(t, http.StatusSeeOther, res.Code)
	assert.Empty(t, f.service.locked)
	flash := f.sess.PopFlash()
	require.NotNil(t, flash)
	assert.Equal(t, "danger", flash.Kind)
	assert.Equal(t, "Select at least one category to lock", flash.Message)
}

func TestLockUnknownCategoryIsRejected(t *testing.T) {
	f := newFixture(t, true)
	res := f.do(http.MethodPost, "/admin/locks/lock", url.Values{"target": {"CC03"}, "categories": {"sales", "bonus"}})

	require.Equal(t, http.StatusSeeOther, res.Code)
	assert.Empty(t, f.service.locked)
	flash := f.sess.PopFlash()
	require.NotNil(t, flash)
	assert.Equal(t, "Unknown category selected", flash.Message)
}

func TestRowActionRejectsBackslashReturn(t *testing.T) {
	f := newFixture(t, true)
	res := f.do(http.MethodPost, "/admin/locks/unlock", url.Values{"target": {"CC03"}, "return": {"/admin/locks\\evil.example"}})

	require.Equal(t, http.StatusSeeOther, res.Code)
	assert.Equal(t, "/admin/locks", res.Header().Get("Location"))
	assert.Equal(t, []string{"CC03"}, f.service.unlocked)
}

func TestApproveUnlockRow(t *testing.T) {
	f := newFixture(t, true)
	res := f.do(http.MethodPost, "/admin/locks/approve-unlock", url.Values{"target": {"CC02"}, "return": {"https://evil.example/admin/locks"}})

	require.Equal(t, http.StatusSeeOther, res.Code)
	assert.Equal(t, "/admin/locks", res.Header().Get("Location"))
	assert.Equal(t, []string{"CC02"}, f.service.approved)
}

func TestBulkTargetsFilteredRows(t *testing.T) {
	f := newFixture(t, true)
	res := f.do(http.MethodPost, "/admin/locks/bulk", url.Values{
		"action":     {"lock"},
		"categories": {"sales"},
		"status":     {"all"},
		"region":     {"North"},
	})

	require.Equal(t, http.StatusSeeOther, res.Code)
	require.Len(t, f.service.bulk, 1)
	assert.Equal(t, budgetlock.BulkLock, f.service.bulk[0].action)
	assert.Equal(t, []string{"CC01", "CC02"}, f.service.bulk[0].targets)
	assert.Equal(t, budget.NewCategorySet(budget.Sales), f.service.bulk[0].set)
}

func TestBulkUnknownAction(t *testing.T) {
	f := newFixture(t, true)
	res := f.do(http.MethodPost, "/admin/locks/bulk", url.Values{"action": {"delete"}})

	require.Equal(t, http.StatusSeeOther, res.Code)
	assert.Empty(t, f.service.bulk)
}
