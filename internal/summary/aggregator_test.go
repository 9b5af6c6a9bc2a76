package summary

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lovebox/internal/love"
	"lovebox/internal/token"
)

type fakeBackend struct {
	summaryStatus int
	usersStatus   int
	logsStatus    int
	users         []love.User
	calls         int64
}

func (f *fakeBackend) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/me/summary", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&f.calls, 1)
		if f.summaryStatus != 0 {
			http.Error(w, "summary unavailable", f.summaryStatus)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(love.Summary{Date: "2026-08-30"})
	})
	mux.HandleFunc("/api/me/users", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&f.calls, 1)
		if f.usersStatus != 0 {
			http.Error(w, "users unavailable", f.usersStatus)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(f.users)
	})
	mux.HandleFunc("/api/me/events", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&f.calls, 1)
		if f.logsStatus != 0 {
			http.Error(w, "logs unavailable", f.logsStatus)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode([]love.EventLog{{ID: 1, UserID: 2, Type: "button_used", Count: 3, Date: "2026-08-30"}})
	})
	return mux
}

func newStore(t *testing.T) *token.Store {
	t.Helper()
	s, err := token.Open("")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRefreshMissingPassphraseIsLocal(t *testing.T) {
	backend := &fakeBackend{}
	srv := httptest.NewServer(backend.handler())
	defer srv.Close()

	agg := New(love.New(srv.URL), newStore(t))
	_, err := agg.Refresh(context.Background(), "  ")
	require.ErrorIs(t, err, ErrMissingPassphrase)
	assert.Equal(t, int64(0), atomic.LoadInt64(&backend.calls))
}

func TestRefreshCommitsAllThree(t *testing.T) {
	backend := &fakeBackend{users: []love.User{{ID: 1, Token: "tok-gf", Role: "girlfriend"}}}
	srv := httptest.NewServer(backend.handler())
	defer srv.Close()

	tokens := newStore(t)
	agg := New(love.New(srv.URL), tokens)

	res, err := agg.Refresh(context.Background(), "pass")
	require.NoError(t, err)
	assert.Equal(t, "2026-08-30", res.Summary.Date)
	require.Len(t, res.Users, 1)
	require.Len(t, res.Logs, 1)

	// Backend record wins over the stale local cache.
	assert.Equal(t, "tok-gf", tokens.Profiles().Girlfriend)
}

func TestRefreshOneFailureCommitsNothing(t *testing.T) {
	backend := &fakeBackend{
		logsStatus: http.StatusInternalServerError,
		users:      []love.User{{ID: 1, Token: "tok-gf", Role: "girlfriend"}},
	}
	srv := httptest.NewServer(backend.handler())
	defer srv.Close()

	tokens := newStore(t)
	require.NoError(t, tokens.SetProfiles(token.Profiles{Girlfriend: "stale"}))

	agg := New(love.New(srv.URL), tokens)
	res, err := agg.Refresh(context.Background(), "pass")
	require.Error(t, err)
	assert.Equal(t, Result{}, res)

	// All three fetches were still attempted.
	assert.Equal(t, int64(3), atomic.LoadInt64(&backend.calls))
	// No partial application: the profile cache is untouched.
	assert.Equal(t, "stale", tokens.Profiles().Girlfriend)
}

func TestReconcile(t *testing.T) {
	p := token.Profiles{Me: "old-me", Girlfriend: "gf", Test: ""}
	users := []love.User{
		{Token: "new-me", Role: "me"},
		{Token: "gf", Role: "girlfriend"},
		{Token: "tt", Role: "test"},
		{Token: "other", Role: "user"},
		{Token: "", Role: "me"},
	}

	next, changed := Reconcile(p, users)
	assert.True(t, changed)
	assert.Equal(t, token.Profiles{Me: "new-me", Girlfriend: "gf", Test: "tt"}, next)

	again, changed := Reconcile(next, users)
	assert.False(t, changed)
	assert.Equal(t, next, again)
}
