package auth

import (
	"time"

	"github.com/ebudget/ebudget/internal/api"
)

// State is the authentication state of one browser session.
type State struct {
	User        *api.User `json:"user,omitempty"`
	Token       string    `json:"token,omitempty"`
	Loading     bool      `json:"loading,omitempty"`
	Err         string    `json:"error,omitempty"`
	RefreshedAt time.Time `json:"refreshed_at"`
}

// Action is an event that changes State. Only Reduce applies actions.
type Action interface {
	isAction()
}

// LoginStarted marks a login attempt in flight.
type LoginStarted struct{}

// LoginSucceeded stores the issued token and the signed-in user.
type LoginSucceeded struct {
	Token string
	User  api.User
	At    time.Time
}

// LoginFailed records a rejected login.
type LoginFailed struct {
	Err string
}

// LoggedOut clears the token and user.
type LoggedOut struct{}

// UserRefreshed replaces the user with the API's current view of it.
type UserRefreshed struct {
	User api.User
	At   time.Time
}

// RefreshFailed clears the session after the API rejected the token.
type RefreshFailed struct {
	Err string
}

func (LoginStarted) isAction()   {}
func (LoginSucceeded) isAction() {}
func (LoginFailed) isAction()    {}
func (LoggedOut) isAction()      {}
func (UserRefreshed) isAction()  {}
func (RefreshFailed) isAction()  {}

// Reduce returns the state after applying action. It never mutates s.
func Reduce(s State, action Action) State {
	switch a := action.(type) {
	case LoginStarted:
		s.Loading = true
		s.Err = ""
	case LoginSucceeded:
		user := a.User
		s = State{User: &user, Token: a.Token, RefreshedAt: a.At}
	case LoginFailed:
		s = State{Err: a.Err}
	case LoggedOut:
		s = State{}
	case UserRefreshed:
		user := a.User
		s.User = &user
		s.RefreshedAt = a.At
		s.Loading = false
		s.Err = ""
	case RefreshFailed:
		s = State{Err: a.Err}
	}
	return s
}

// CurrentUser returns the signed-in user.
func CurrentUser(s State) (api.User, bool) {
	if s.User == nil {
		return api.User{}, false
	}
	return *s.User, true
}

// Token returns the bearer token, empty when signed out.
func Token(s State) string {
	return s.Token
}

// IsAuthenticated reports whether a token is held.
func IsAuthenticated(s State) bool {
	return s.Token != ""
}

// IsSuper reports whether the user may use the admin console and the
// company-wide report filters.
func IsSuper(s State, superCostCenter string) bool {
	if s.User == nil {
		return false
	}
	return s.User.Role == "super" || (superCostCenter != "" && s.User.CostCenter == superCostCenter)
}

// Reason explains why a session ended.
type Reason string

const (
	ReasonExpired Reason = "expired"
	ReasonKicked  Reason = "kicked"
	ReasonLogout  Reason = "logout"
)

// Message is the warning shown on the login page for a reason.
func (r Reason) Message() string {
	switch r {
	case ReasonExpired:
		return "Your session has expired. Please log in again."
	case ReasonKicked:
		return "You were signed out because your account was used elsewhere or your token is no longer valid."
	case ReasonLogout:
		return "You have been logged out."
	default:
		return ""
	}
}

// LoginURL returns the login path carrying reason.
func LoginURL(reason Reason) string {
	if reason == "" {
		return "/login"
	}
	return "/login?reason=" + string(reason)
}
