package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ebudget/ebudget/internal/api"
)

func TestReduceLoginLifecycle(t *testing.T) {
	at := time.Date(2025, 5, 1, 8, 0, 0, 0, time.UTC)
	s := Reduce(State{}, LoginStarted{})
	assert.True(t, s.Loading)

	s = Reduce(s, LoginSucceeded{Token: "abc", User: api.User{CostCenterName: "CC01"}, At: at})
	assert.False(t, s.Loading)
	assert.True(t, IsAuthenticated(s))
	assert.Equal(t, "abc", Token(s))
	user, ok := CurrentUser(s)
	require.True(t, ok)
	assert.Equal(t, "CC01", user.CostCenterName)

	refreshed := Reduce(s, UserRefreshed{User: api.User{CostCenterName: "CC01", Currency: "SGD"}, At: at.Add(time.Minute)})
	assert.Equal(t, "SGD", refreshed.User.Currency)
	assert.Equal(t, "abc", refreshed.Token)
	assert.Empty(t, s.User.Currency)

	kicked := Reduce(refreshed, RefreshFailed{Err: "token invalid"})
	assert.False(t, IsAuthenticated(kicked))
	assert.Nil(t, kicked.User)
	assert.Equal(t, "token invalid", kicked.Err)

	out := Reduce(refreshed, LoggedOut{})
	assert.Equal(t, State{}, out)
}

func TestReduceLoginFailed(t *testing.T) {
	s := Reduce(State{Loading: true}, LoginFailed{Err: "bad password"})
	assert.False(t, s.Loading)
	assert.Equal(t, "bad password", s.Err)
	assert.False(t, IsAuthenticated(s))
}

func TestIsSuper(t *testing.T) {
	assert.False(t, IsSuper(State{}, "FIN&CORP"))
	assert.True(t, IsSuper(State{User: &api.User{CostCenter: "FIN&CORP"}}, "FIN&CORP"))
	assert.True(t, IsSuper(State{User: &api.User{Role: "super"}}, "FIN&CORP"))
	assert.False(t, IsSuper(State{User: &api.User{CostCenter: "OPS"}}, "FIN&CORP"))
}

func TestReasonMessages(t *testing.T) {
	assert.Contains(t, ReasonExpired.Message(), "expired")
	assert.NotEmpty(t, ReasonKicked.Message())
	assert.Empty(t, Reason("bogus").Message())
	assert.Equal(t, "/login?reason=kicked", LoginURL(ReasonKicked))
	assert.Equal(t, "/login", LoginURL(""))
}

func signed(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("upstream-secret"))
	require.NoError(t, err)
	return token
}

func TestTokenExpired(t *testing.T) {
	now := time.Date(2025, 5, 1, 8, 0, 0, 0, time.UTC)
	assert.True(t, TokenExpired(signed(t, jwt.MapClaims{"exp": now.Add(-time.Minute).Unix()}), now))
	assert.False(t, TokenExpired(signed(t, jwt.MapClaims{"exp": now.Add(time.Hour).Unix()}), now))
	assert.False(t, TokenExpired(signed(t, jwt.MapClaims{"sub": "CC01"}), now))
	assert.True(t, TokenExpired(signed(t, jwt.MapClaims{"exp": now.Unix()}), now))
	assert.False(t, TokenExpired(signed(t, jwt.MapClaims{"exp": "tomorrow"}), now))
	assert.False(t, TokenExpired("opaque-session-token", now))
}
