package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/ebudget/ebudget/internal/api"
	"github.com/ebudget/ebudget/internal/shared"
	"github.com/ebudget/ebudget/internal/view"
)

// SessionCleaner drops per-session data owned by other packages when a
// session ends.
type SessionCleaner interface {
	DeleteSession(ctx context.Context, sessionID string) error
}

// Gate guards protected routes.
type Gate struct {
	service         *Service
	logger          *slog.Logger
	superCostCenter string
	cleaners        []SessionCleaner
}

// NewGate constructs a Gate.
func NewGate(service *Service, logger *slog.Logger, superCostCenter string, cleaners ...SessionCleaner) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{service: service, logger: logger, superCostCenter: superCostCenter, cleaners: cleaners}
}

// Require lets a request through only with a verified token.
func (g *Gate) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := shared.SessionFromContext(r.Context())
		state := Load(sess)
		if !IsAuthenticated(state) {
			http.Redirect(w, r, LoginURL(""), http.StatusSeeOther)
			return
		}
		action, reason, err := g.service.Verify(r.Context(), state)
		if err != nil {
			if state.User == nil {
				g.logger.Error("verify session", slog.Any("error", err))
				http.Error(w, "Unable to reach the budget service. Please try again.", http.StatusBadGateway)
				return
			}
			g.logger.Warn("verify session, using cached user", slog.Any("error", err))
		}
		if action != nil {
			state = Dispatch(sess, action)
		}
		if reason != "" {
			g.end(r.Context(), sess, reason)
			http.Redirect(w, r, LoginURL(reason), http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r.WithContext(ContextWithState(r.Context(), state)))
	})
}

// RequireSuper limits a route to super-users. It must run after Require.
func (g *Gate) RequireSuper(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !IsSuper(StateFromContext(r.Context()), g.superCostCenter) {
			http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// IsSuper reports whether the request's user is a super-user.
func (g *Gate) IsSuper(r *http.Request) bool {
	return IsSuper(StateFromContext(r.Context()), g.superCostCenter)
}

// HandleUnauthorized ends the session and redirects to the login page when
// err is an API 401. It reports whether it wrote a response.
func (g *Gate) HandleUnauthorized(w http.ResponseWriter, r *http.Request, err error) bool {
	if !errors.Is(err, api.ErrUnauthorized) {
		return false
	}
	sess := shared.SessionFromContext(r.Context())
	Dispatch(sess, LoggedOut{})
	g.end(r.Context(), sess, ReasonExpired)
	http.Redirect(w, r, LoginURL(ReasonExpired), http.StatusSeeOther)
	return true
}

func (g *Gate) end(ctx context.Context, sess *shared.Session, reason Reason) {
	if sess == nil {
		return
	}
	for _, c := range g.cleaners {
		if err := c.DeleteSession(ctx, sess.ID); err != nil {
			g.logger.Warn("clean session data", slog.String("reason", string(reason)), slog.Any("error", err))
		}
	}
}

// UserInfo returns the navigation view of the request's user.
func (g *Gate) UserInfo(r *http.Request) *view.UserInfo {
	state := StateFromContext(r.Context())
	user, ok := CurrentUser(state)
	if !ok {
		return nil
	}
	return &view.UserInfo{
		Name:       user.CostCenterName,
		CostCenter: user.CostCenter,
		Company:    user.CompanyName,
		Currency:   user.Currency,
		Super:      IsSuper(state, g.superCostCenter),
	}
}
