package auth_test

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
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ebudget/ebudget/internal/api"
	"github.com/ebudget/ebudget/internal/auth"
	"github.com/ebudget/ebudget/internal/shared"
	"github.com/ebudget/ebudget/internal/view"
	_ "github.com/ebudget/ebudget/testing"
)

type stubGateway struct {
	loginFn   func(api.Credentials) (api.LoginResult, error)
	meFn      func(string) (api.User, error)
	logoutErr error
	meCalls   int
	loggedOut []string
}

func (s *stubGateway) Login(_ context.Context, creds api.Credentials) (api.LoginResult, error) {
	if s.loginFn != nil {
		return s.loginFn(creds)
	}
	return api.LoginResult{}, api.ErrUnauthorized
}

func (s *stubGateway) Logout(_ context.Context, token string) error {
	s.loggedOut = append(s.loggedOut, token)
	return s.logoutErr
}

func (s *stubGateway) Me(_ context.Context, token string) (api.User, error) {
	s.meCalls++
	if s.meFn != nil {
		return s.meFn(token)
	}
	return api.User{CostCenterName: "CC01"}, nil
}

type cleaner struct{ ids []string }

func (c *cleaner) DeleteSession(_ context.Context, id string) error {
	c.ids = append(c.ids, id)
	return nil
}

type fixture struct {
	handler  *auth.Handler
	gate     *auth.Gate
	sessions *shared.SessionManager
	gateway  *stubGateway
	cleaner  *cleaner
}

func newFixture(t *testing.T, gw *stubGateway) fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	sessions := shared.NewSessionManager(client, "test_session", "secret", time.Hour, false)
	csrf := shared.NewCSRFManager("csrfsecret")
	templates, err := view.NewEngine()
	require.NoError(t, err)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	service := auth.NewService(gw, 0)
	c := &cleaner{}
	gate := auth.NewGate(service, logger, "FIN&CORP", c)
	return fixture{
		handler:  auth.NewHandler(logger, service, gate, templates, sessions, csrf),
		gate:     gate,
		sessions: sessions,
		gateway:  gw,
		cleaner:  c,
	}
}

func withSession(t *testing.T, sm *shared.SessionManager, req *http.Request) (*http.Request, *shared.Session) {
	t.Helper()
	sess, err := sm.Load(context.Background(), req)
	require.NoError(t, err)
	return req.WithContext(shared.ContextWithSession(req.Context(), sess)), sess
}

func signedIn(sess *shared.Session, token string) {
	auth.Dispatch(sess, auth.LoginSucceeded{Token: token, User: api.User{CostCenterName: "CC01"}, At: time.Now()})
}

func TestLoginPageShowsReason(t *testing.T) {
	f := newFixture(t, &stubGateway{})
	req, _ := withSession(t, f.sessions, httptest.NewRequest(http.MethodGet, "/login?reason=expired", nil))
	res := httptest.NewRecorder()
	f.handler.ShowLoginForTest(res, req)

	require.Equal(t, http.StatusOK, res.Code)
	assert.Contains(t, res.Body.String(), "<form")
	assert.Contains(t, res.Body.String(), "Your session has expired")
}

func TestLoginPageRedirectsWhenSignedIn(t *testing.T) {
	f := newFixture(t, &stubGateway{})
	req, sess := withSession(t, f.sessions, httptest.NewRequest(http.MethodGet, "/login", nil))
	signedIn(sess, "tok")
	res := httptest.NewRecorder()
	f.handler.ShowLoginForTest(res, req)

	assert.Equal(t, http.StatusSeeOther, res.Code)
	assert.Equal(t, "/dashboard", res.Header().Get("Location"))
}

func postForm(path string, form url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func TestLoginSuccessStoresToken(t *testing.T) {
	gw := &stubGateway{loginFn: func(creds api.Credentials) (api.LoginResult, error) {
		if creds.CostCenterName != "CC01" || creds.Password != "pw" {
			return api.LoginResult{}, api.ErrUnauthorized
		}
		return api.LoginResult{Token: "jwt", User: api.User{CostCenterName: "CC01", Currency: "MYR"}}, nil
	}}
	f := newFixture(t, gw)
	req, sess := withSession(t, f.sessions, postForm("/login", url.Values{"cost_center_name": {" CC01 "}, "password": {"pw"}}))
	res := httptest.NewRecorder()
	f.handler.HandleLoginForTest(res, req)

	assert.Equal(t, http.StatusSeeOther, res.Code)
	assert.Equal(t, "/dashboard", res.Header().Get("Location"))
	state := auth.Load(sess)
	assert.Equal(t, "jwt", auth.Token(state))
	assert.Equal(t, "MYR", state.User.Currency)
	user, ok := auth.CurrentUser(state)
	require.True(t, ok)
	assert.Equal(t, "CC01", user.CostCenterName)
}

func TestLoginInvalidCredentials(t *testing.T) {
	f := newFixture(t, &stubGateway{})
	req, sess := withSession(t, f.sessions, postForm("/login", url.Values{"cost_center_name": {"CC01"}, "password": {"nope"}}))
	res := httptest.NewRecorder()
	f.handler.HandleLoginForTest(res, req)

	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.Contains(t, res.Body.String(), "Invalid cost center or password")
	assert.False(t, auth.IsAuthenticated(auth.Load(sess)))
}

func TestLoginRequiresFields(t *testing.T) {
	f := newFixture(t, &stubGateway{})
	req, _ := withSession(t, f.sessions, postForm("/login", url.Values{}))
	res := httptest.NewRecorder()
	f.handler.HandleLoginForTest(res, req)

	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.Contains(t, res.Body.String(), "Cost center is required")
}

func TestLogoutIgnoresUnauthorized(t *testing.T) {
	gw := &stubGateway{logoutErr: api.ErrUnauthorized}
	f := newFixture(t, gw)
	req, sess := withSession(t, f.sessions, postForm("/logout", url.Values{}))
	signedIn(sess, "tok")
	res := httptest.NewRecorder()
	f.handler.HandleLogoutForTest(res, req)

	assert.Equal(t, "/login?reason=logout", res.Header().Get("Location"))
	assert.Equal(t, []string{"tok"}, gw.loggedOut)
	assert.False(t, auth.IsAuthenticated(auth.Load(sess)))
	assert.Equal(t, []string{sess.ID}, f.cleaner.ids)
}

func serveGate(t *testing.T, f fixture, sess *shared.Session, req *http.Request) (*httptest.ResponseRecorder, *auth.State) {
	t.Helper()
	var seen *auth.State
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s := auth.StateFromContext(r.Context())
		seen = &s
		w.WriteHeader(http.StatusNoContent)
	})
	res := httptest.NewRecorder()
	f.gate.Require(next).ServeHTTP(res, req)
	return res, seen
}

func TestGateRedirectsWithoutToken(t *testing.T) {
	f := newFixture(t, &stubGateway{})
	req, sess := withSession(t, f.sessions, httptest.NewRequest(http.MethodGet, "/dashboard", nil))
	res, seen := serveGate(t, f, sess, req)

	assert.Equal(t, "/login", res.Header().Get("Location"))
	assert.Nil(t, seen)
}

func TestGateExpiredTokenSkipsAPI(t *testing.T) {
	f := newFixture(t, &stubGateway{})
	req, sess := withSession(t, f.sessions, httptest.NewRequest(http.MethodGet, "/dashboard", nil))
	// header {"alg":"none"}, payload {"exp":1}
	signedIn(sess, "eyJhbGciOiJub25lIn0.eyJleHAiOjF9.")
	res, seen := serveGate(t, f, sess, req)

	assert.Equal(t, "/login?reason=expired", res.Header().Get("Location"))
	assert.Nil(t, seen)
	assert.Zero(t, f.gateway.meCalls)
	assert.False(t, auth.IsAuthenticated(auth.Load(sess)))
}

func TestGateKicksRejectedToken(t *testing.T) {
	gw := &stubGateway{meFn: func(string) (api.User, error) { return api.User{}, api.ErrUnauthorized }}
	f := newFixture(t, gw)
	req, sess := withSession(t, f.sessions, httptest.NewRequest(http.MethodGet, "/budget/input", nil))
	signedIn(sess, "tok")
	res, seen := serveGate(t, f, sess, req)

	assert.Equal(t, "/login?reason=kicked", res.Header().Get("Location"))
	assert.Nil(t, seen)
	assert.False(t, auth.IsAuthenticated(auth.Load(sess)))
	assert.Equal(t, []string{sess.ID}, f.cleaner.ids)
}

func TestGateRefreshesUser(t *testing.T) {
	gw := &stubGateway{meFn: func(token string) (api.User, error) {
		return api.User{CostCenterName: "CC01", CostCenter: "FIN&CORP"}, nil
	}}
	f := newFixture(t, gw)
	req, sess := withSession(t, f.sessions, httptest.NewRequest(http.MethodGet, "/dashboard", nil))
	signedIn(sess, "tok")
	res, seen := serveGate(t, f, sess, req)

	assert.Equal(t, http.StatusNoContent, res.Code)
	require.NotNil(t, seen)
	assert.Equal(t, "FIN&CORP", seen.User.CostCenter)
	assert.Equal(t, 1, gw.meCalls)
}

func TestUnauthorizedAPICallEndsSession(t *testing.T) {
	f := newFixture(t, &stubGateway{})
	req, sess := withSession(t, f.sessions, httptest.NewRequest(http.MethodPost, "/budget/input/sales/save", nil))
	signedIn(sess, "tok")

	res := httptest.NewRecorder()
	assert.False(t, f.gate.HandleUnauthorized(res, req, api.ErrLocked))
	handled := f.gate.HandleUnauthorized(res, req, api.ErrUnauthorized)

	assert.True(t, handled)
	assert.Equal(t, "/login?reason=expired", res.Header().Get("Location"))
	assert.Empty(t, auth.Token(auth.Load(sess)))
	_, ok := auth.CurrentUser(auth.Load(sess))
	assert.False(t, ok)
}

func TestRequireSuper(t *testing.T) {
	f := newFixture(t, &stubGateway{})
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })

	req := httptest.NewRequest(http.MethodGet, "/admin/locks", nil)
	req = req.WithContext(auth.ContextWithState(req.Context(), auth.State{Token: "t", User: &api.User{CostCenter: "OPS"}}))
	res := httptest.NewRecorder()
	f.gate.RequireSuper(ok).ServeHTTP(res, req)
	assert.Equal(t, http.StatusForbidden, res.Code)

	req = req.WithContext(auth.ContextWithState(req.Context(), auth.State{Token: "t", User: &api.User{CostCenter: "FIN&CORP"}}))
	res = httptest.NewRecorder()
	f.gate.RequireSuper(ok).ServeHTTP(res, req)
	assert.Equal(t, http.StatusNoContent, res.Code)
}
