package auth

import (
	"context"
	"encoding/json"

	"github.com/ebudget/ebudget/internal/shared"
)

const stateSessionKey = "auth_state"

// Load reads the auth state kept in sess.
func Load(sess *shared.Session) State {
	if sess == nil {
		return State{}
	}
	raw := sess.Get(stateSessionKey)
	if raw == "" {
		return State{}
	}
	var s State
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return State{}
	}
	return s
}

// Dispatch reduces action against the session's state and stores the result.
func Dispatch(sess *shared.Session, action Action) State {
	next := Reduce(Load(sess), action)
	if sess == nil {
		return next
	}
	if !IsAuthenticated(next) && next.User == nil && next.Err == "" {
		sess.Delete(stateSessionKey)
		return next
	}
	data, err := json.Marshal(next)
	if err != nil {
		return next
	}
	sess.Set(stateSessionKey, string(data))
	return next
}

type stateContextKey struct{}

// ContextWithState stores the verified state for downstream handlers.
func ContextWithState(ctx context.Context, s State) context.Context {
	return context.WithValue(ctx, stateContextKey{}, s)
}

// StateFromContext returns the state placed by the gate, falling back to
// the session copy.
func StateFromContext(ctx context.Context) State {
	if s, ok := ctx.Value(stateContextKey{}).(State); ok {
		return s
	}
	return Load(shared.SessionFromContext(ctx))
}
