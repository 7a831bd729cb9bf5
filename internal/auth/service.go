package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ebudget/ebudget/internal/api"
	"github.com/ebudget/ebudget/internal/shared"
)

// Gateway is the subset of the budget API that authenticates users.
type Gateway interface {
	Login(ctx context.Context, creds api.Credentials) (api.LoginResult, error)
	Logout(ctx context.Context, token string) error
	Me(ctx context.Context, token string) (api.User, error)
}

// Service wraps authentication business rules.
type Service struct {
	gateway Gateway
	recheck time.Duration
	now     func() time.Time
}

// NewService constructs a new Service. The API is asked who the user is at
// most once per recheck interval; zero asks on every request.
func NewService(gateway Gateway, recheck time.Duration) *Service {
	return &Service{gateway: gateway, recheck: recheck, now: time.Now}
}

// WithNow overrides the clock for deterministic tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Authenticate exchanges credentials for a token.
func (s *Service) Authenticate(ctx context.Context, costCenter, password string) (LoginSucceeded, error) {
	res, err := s.gateway.Login(ctx, api.Credentials{CostCenterName: costCenter, Password: password})
	if err != nil {
		if errors.Is(err, api.ErrUnauthorized) || errors.Is(err, api.ErrNotFound) {
			return LoginSucceeded{}, shared.ErrInvalidCredentials
		}
		return LoginSucceeded{}, err
	}
	if strings.TrimSpace(res.Token) == "" {
		return LoginSucceeded{}, shared.ErrInvalidCredentials
	}
	return LoginSucceeded{Token: res.Token, User: res.User, At: s.now()}, nil
}

// Logout revokes the token upstream. A rejected token is already logged out.
func (s *Service) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return s.gateway.Logout(ctx, token)
}

// Verify decides whether state may proceed to a protected view. It returns
// the action to dispatch and, when the session must end, the reason. A
// transient API failure yields an error and keeps the session.
func (s *Service) Verify(ctx context.Context, state State) (Action, Reason, error) {
	if !IsAuthenticated(state) {
		return LoggedOut{}, "", nil
	}
	now := s.now()
	if TokenExpired(state.Token, now) {
		return LoggedOut{}, ReasonExpired, nil
	}
	if state.User != nil && s.recheck > 0 && now.Sub(state.RefreshedAt) < s.recheck {
		return nil, "", nil
	}
	user, err := s.gateway.Me(ctx, state.Token)
	if err != nil {
		if errors.Is(err, api.ErrUnauthorized) {
			return RefreshFailed{Err: "Session expired or token invalid"}, ReasonKicked, nil
		}
		return nil, "", err
	}
	return UserRefreshed{User: user, At: now}, "", nil
}

// TokenExpired reports whether token is a JWT whose exp claim has passed.
// The signature is not checked; the API remains the judge of validity.
func TokenExpired(token string, now time.Time) bool {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return !now.Before(exp.Time)
}
