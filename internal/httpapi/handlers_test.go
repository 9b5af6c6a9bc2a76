package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"lovebox/internal/love"
	"lovebox/internal/stream"
	"lovebox/internal/summary"
	"lovebox/internal/token"
)

// backendRecorder is a minimal stand-in for the love backend. Endpoints not
// registered answer 404, which the gateway treats as a backend rejection.
type backendRecorder struct {
	mux   *http.ServeMux
	calls atomic.Int64

	lastEventBody map[string]string
}

func newBackendRecorder() *backendRecorder {
	b := &backendRecorder{mux: http.NewServeMux()}

	b.mux.HandleFunc("/api/event", func(w http.ResponseWriter, r *http.Request) {
		var in map[string]string
		_ = json.NewDecoder(r.Body).Decode(&in)
		b.lastEventBody = in
		w.WriteHeader(http.StatusOK)
	})
	b.mux.HandleFunc("/api/me/summary", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, love.Summary{Date: "2026-08-30"})
	})
	b.mux.HandleFunc("/api/me/users", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, []love.User{
			{ID: 1, Token: "tok-me-000111", Role: "me"},
			{ID: 2, Token: "tok-gf-000222", Role: "girlfriend"},
		})
	})
	b.mux.HandleFunc("/api/me/events", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, []love.EventLog{})
	})
	b.mux.HandleFunc("/api/me/seed-users", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, love.SeedUsersResult{
			Me:         love.User{ID: 1, Token: "seed-me", Role: "me"},
			Girlfriend: love.User{ID: 2, Token: "seed-gf", Role: "girlfriend"},
			Test:       love.User{ID: 3, Token: "seed-test", Role: "test"},
		})
	})

	return b
}

func (b *backendRecorder) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.calls.Add(1)
	b.mux.ServeHTTP(w, r)
}

func newTestAPI(t *testing.T, backendURL string) (*API, *token.Store, *stream.Hub) {
	t.Helper()
	tokens, err := token.Open("")
	require.NoError(t, err)
	t.Cleanup(func() { tokens.Close() })

	backend := love.New(backendURL)
	sc := stream.NewClient(backend.StreamEndpoint())
	hub := stream.NewHub()
	api := New(tokens, backend, sc, hub, summary.New(backend, tokens), Options{
		Version: "test",
		Origin:  "http://localhost:8080",
		APIBase: backendURL,
	})
	return api, tokens, hub
}

func doJSON(t *testing.T, h http.Handler, method, path, tok string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tok != "" {
		req.Header.Set(headerToken, tok)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	api, _, _ := newTestAPI(t, "http://127.0.0.1:0")

	rec := doJSON(t, api.Handler(), http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Equal(t, "lovebox", out["service"])
}

func TestSendLoveWithoutTokenFailsLocally(t *testing.T) {
	backend := newBackendRecorder()
	srv := httptest.NewServer(backend)
	defer srv.Close()

	api, _, _ := newTestAPI(t, srv.URL)

	rec := doJSON(t, api.Handler(), http.MethodPost, "/api/love", "", map[string]string{"action": "hug"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Zero(t, backend.calls.Load(), "local validation must not reach the backend")
}

func TestSendLoveBuildsRoleKeyAndTarget(t *testing.T) {
	backend := newBackendRecorder()
	srv := httptest.NewServer(backend)
	defer srv.Close()

	api, tokens, _ := newTestAPI(t, srv.URL)
	require.NoError(t, tokens.SetProfiles(token.Profiles{Me: "tok-me", Girlfriend: "tok-gf"}))

	rec := doJSON(t, api.Handler(), http.MethodPost, "/api/love", "tok-gf", map[string]string{"action": "miss"})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "girlfriend.miss", backend.lastEventBody["key"])
	require.Equal(t, "tok-me", backend.lastEventBody["targetToken"])
}

func TestHomeHidesToolsFromGirlfriend(t *testing.T) {
	backend := newBackendRecorder()
	srv := httptest.NewServer(backend)
	defer srv.Close()

	api, tokens, _ := newTestAPI(t, srv.URL)
	require.NoError(t, tokens.SetProfiles(token.Profiles{Girlfriend: "tok-gf"}))

	rec := doJSON(t, api.Handler(), http.MethodGet, "/api/home", "tok-gf", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var view struct {
		Role            string `json:"role"`
		ShowTokenConfig bool   `json:"showTokenConfig"`
		ShowTools       bool   `json:"showTools"`
		ShowActivity    bool   `json:"showActivity"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	require.Equal(t, "girlfriend", view.Role)
	require.False(t, view.ShowTokenConfig)
	require.False(t, view.ShowTools)
	require.False(t, view.ShowActivity)
}

func TestHomeShareLinkTokenInQuery(t *testing.T) {
	backend := newBackendRecorder()
	srv := httptest.NewServer(backend)
	defer srv.Close()

	api, tokens, _ := newTestAPI(t, srv.URL)
	require.NoError(t, tokens.SetProfiles(token.Profiles{Me: "tok-me"}))

	// ?t= carries the token for share-link entry, same as the header.
	rec := doJSON(t, api.Handler(), http.MethodGet, "/api/home?t=tok-me", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var view struct {
		Role string `json:"role"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	require.Equal(t, "me", view.Role)
}

func TestAdminForbiddenForGuestAndGirlfriend(t *testing.T) {
	backend := newBackendRecorder()
	srv := httptest.NewServer(backend)
	defer srv.Close()

	api, tokens, _ := newTestAPI(t, srv.URL)
	require.NoError(t, tokens.SetProfiles(token.Profiles{Girlfriend: "tok-gf"}))

	require.Equal(t, http.StatusForbidden, doJSON(t, api.Handler(), http.MethodGet, "/api/admin", "", nil).Code)
	require.Equal(t, http.StatusForbidden, doJSON(t, api.Handler(), http.MethodGet, "/api/admin", "tok-gf", nil).Code)
}

func TestAdminRefreshCommitsAndCaches(t *testing.T) {
	backend := newBackendRecorder()
	srv := httptest.NewServer(backend)
	defer srv.Close()

	api, tokens, _ := newTestAPI(t, srv.URL)
	require.NoError(t, tokens.SetProfiles(token.Profiles{Me: "tok-me"}))
	require.NoError(t, tokens.SetAdminPass("sesame"))

	rec := doJSON(t, api.Handler(), http.MethodPost, "/api/admin/refresh", "tok-me", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var view struct {
		CanView bool `json:"canView"`
		Summary *struct {
			Date string `json:"date"`
		} `json:"summary"`
		Users []struct {
			Token string `json:"token"`
		} `json:"users"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	require.True(t, view.CanView)
	require.NotNil(t, view.Summary)
	require.Equal(t, "2026-08-30", view.Summary.Date)
	require.Len(t, view.Users, 2)
	require.Equal(t, "tok***111", view.Users[0].Token, "tokens are masked by default")

	// Profile reconciliation adopted the backend tokens; the cached result
	// now also serves plain admin reads.
	require.Equal(t, "tok-gf-000222", tokens.Profiles().Girlfriend)

	rec = doJSON(t, api.Handler(), http.MethodGet, "/api/admin", "tok-me-000111", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	require.NotNil(t, view.Summary)
}

func TestAdminRefreshWithoutPassphrase(t *testing.T) {
	backend := newBackendRecorder()
	srv := httptest.NewServer(backend)
	defer srv.Close()

	api, tokens, _ := newTestAPI(t, srv.URL)
	require.NoError(t, tokens.SetProfiles(token.Profiles{Me: "tok-me"}))

	calls := backend.calls.Load()
	rec := doJSON(t, api.Handler(), http.MethodPost, "/api/admin/refresh", "tok-me", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	// Only the role confirmation round trip may have happened; none of the
	// three admin fetches were attempted.
	require.LessOrEqual(t, backend.calls.Load()-calls, int64(1))
}

func TestSeedUsersCommitsProfiles(t *testing.T) {
	backend := newBackendRecorder()
	srv := httptest.NewServer(backend)
	defer srv.Close()

	api, tokens, _ := newTestAPI(t, srv.URL)
	require.NoError(t, tokens.SetAdminPass("sesame"))

	rec := doJSON(t, api.Handler(), http.MethodPost, "/api/seed-users", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	p := tokens.Profiles()
	require.Equal(t, "seed-me", p.Me)
	require.Equal(t, "seed-gf", p.Girlfriend)
	require.Equal(t, "seed-test", p.Test)
}

func TestStartStreamWithoutPassphrase(t *testing.T) {
	api, _, _ := newTestAPI(t, "http://127.0.0.1:0")

	rec := doJSON(t, api.Handler(), http.MethodPost, "/api/stream/start", "", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, stream.StateIdle, api.stream.State())
}

func TestHomeFallsBackToCachedToken(t *testing.T) {
	backend := newBackendRecorder()
	srv := httptest.NewServer(backend)
	defer srv.Close()

	api, tokens, _ := newTestAPI(t, srv.URL)
	require.NoError(t, tokens.SetProfiles(token.Profiles{Me: "tok-me"}))

	rec := doJSON(t, api.Handler(), http.MethodPost, "/api/token", "", map[string]string{"token": "tok-me"})
	require.Equal(t, http.StatusOK, rec.Code)

	// Neither header nor ?t=: the token committed above is the viewer.
	rec = doJSON(t, api.Handler(), http.MethodGet, "/api/home", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var view struct {
		Role string `json:"role"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	require.Equal(t, "me", view.Role)

	// An explicit query token still wins over the cached one.
	rec = doJSON(t, api.Handler(), http.MethodGet, "/api/home?t=unknown-token", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	require.Equal(t, "guest", view.Role)
}

func TestSetTokenReportsRole(t *testing.T) {
	api, tokens, _ := newTestAPI(t, "http://127.0.0.1:0")
	require.NoError(t, tokens.SetProfiles(token.Profiles{Test: "tok-test"}))

	rec := doJSON(t, api.Handler(), http.MethodPost, "/api/token", "", map[string]string{"token": "tok-test"})
	require.Equal(t, http.StatusOK, rec.Code)

	var out map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Equal(t, "test", out["role"])
	require.Equal(t, "tok-test", tokens.Token())
}
