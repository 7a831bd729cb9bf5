package shared

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newManager(t *testing.T) (*SessionManager, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewSessionManager(client, "sid", "secret", time.Hour, false), mr
}

func committedCookie(t *testing.T, sm *SessionManager, sess *Session) *http.Cookie {
	t.Helper()
	res := httptest.NewRecorder()
	require.NoError(t, sm.Commit(context.Background(), res, sess))
	cookies := res.Result().Cookies()
	require.Len(t, cookies, 1)
	return cookies[0]
}

func requestWith(cookie *http.Cookie) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	return req
}

func TestSessionRoundTrip(t *testing.T) {
	sm, mr := newManager(t)
	ctx := context.Background()

	sess, err := sm.Load(ctx, requestWith(nil))
	require.NoError(t, err)
	sess.Set("category", "sales")
	sess.AddFlash(FlashMessage{Kind: "success", Message: "saved"})

	cookie := committedCookie(t, sm, sess)
	assert.Equal(t, "sid", cookie.Name)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, http.SameSiteStrictMode, cookie.SameSite)
	assert.True(t, strings.HasPrefix(cookie.Value, sess.ID+"."))
	assert.True(t, mr.Exists("ebudget:session:"+sess.ID))

	loaded, err := sm.Load(ctx, requestWith(cookie))
	require.NoError(t, err)
	assert.Equal(t, sess.ID, loaded.ID)
	assert.Equal(t, "sales", loaded.Get("category"))
	flash := loaded.PopFlash()
	require.NotNil(t, flash)
	assert.Equal(t, "saved", flash.Message)
	assert.Nil(t, loaded.PopFlash())
}

func TestSessionForgedCookieStartsFresh(t *testing.T) {
	sm, _ := newManager(t)
	ctx := context.Background()

	sess, err := sm.Load(ctx, requestWith(nil))
	require.NoError(t, err)
	sess.Set("category", "sales")
	committedCookie(t, sm, sess)

	for _, value := range []string{sess.ID, sess.ID + ".bogus", "." + sess.ID} {
		loaded, err := sm.Load(ctx, requestWith(&http.Cookie{Name: "sid", Value: value}))
		require.NoError(t, err)
		assert.NotEqual(t, sess.ID, loaded.ID, value)
		assert.Empty(t, loaded.Get("category"), value)
	}

	other := NewSessionManager(sm.client, "sid", "another-secret", time.Hour, false)
	loaded, err := other.Load(ctx, requestWith(&http.Cookie{Name: "sid", Value: sm.sign(sess.ID)}))
	require.NoError(t, err)
	assert.NotEqual(t, sess.ID, loaded.ID)
}

func TestSessionExpiredInRedisStartsFresh(t *testing.T) {
	sm, mr := newManager(t)
	ctx := context.Background()

	sess, err := sm.Load(ctx, requestWith(nil))
	require.NoError(t, err)
	cookie := committedCookie(t, sm, sess)
	mr.FastForward(2 * time.Hour)

	loaded, err := sm.Load(ctx, requestWith(cookie))
	require.NoError(t, err)
	assert.NotEqual(t, sess.ID, loaded.ID)
}

func TestSessionUnchangedCommitExtendsExpiry(t *testing.T) {
	sm, mr := newManager(t)
	ctx := context.Background()

	sess, err := sm.Load(ctx, requestWith(nil))
	require.NoError(t, err)
	cookie := committedCookie(t, sm, sess)
	mr.FastForward(50 * time.Minute)

	loaded, err := sm.Load(ctx, requestWith(cookie))
	require.NoError(t, err)
	committedCookie(t, sm, loaded)
	assert.Equal(t, time.Hour, mr.TTL("ebudget:session:"+sess.ID))
}

func TestSessionDestroyRemovesKey(t *testing.T) {
	sm, mr := newManager(t)
	ctx := context.Background()

	sess, err := sm.Load(ctx, requestWith(nil))
	require.NoError(t, err)
	committedCookie(t, sm, sess)
	require.True(t, mr.Exists("ebudget:session:"+sess.ID))

	sm.Destroy(sess)
	cookie := committedCookie(t, sm, sess)
	assert.False(t, mr.Exists("ebudget:session:"+sess.ID))
	assert.Equal(t, -1, cookie.MaxAge)
}

func TestContextWithSession(t *testing.T) {
	sess := &Session{ID: "abc"}
	ctx := ContextWithSession(context.Background(), sess)
	assert.Same(t, sess, SessionFromContext(ctx))
	assert.Nil(t, SessionFromContext(context.Background()))
}
