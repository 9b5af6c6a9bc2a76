// Package httpapi is the gateway's HTTP boundary: the JSON endpoints the
// local views consume, the relayed activity stream and the usual service
// plumbing (health, readiness, metrics).
package httpapi

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"lovebox/internal/love"
	"lovebox/internal/obs"
	"lovebox/internal/stream"
	"lovebox/internal/summary"
	"lovebox/internal/token"
)

// Options tunes the API surface.
type Options struct {
	Version string
	// Origin is the public origin used for share links, e.g. "http://localhost:8080".
	Origin string
	// APIBase is the backend base URL used to resolve relative photo URLs.
	APIBase string

	RateBurst     int
	RatePerSecond int
	MaxBodyBytes  int64
}

// API is the HTTP layer. It holds no durable state of its own beyond the last
// committed admin refresh.
type API struct {
	router  *mux.Router
	opts    Options
	tokens  *token.Store
	backend *love.Client
	stream  *stream.Client
	hub     *stream.Hub
	agg     *summary.Aggregator

	mu          sync.Mutex
	lastRefresh *summary.Result
}

// New wires the routes. All dependencies are required except hub, which may
// be nil when the local relay endpoint is not wanted.
func New(tokens *token.Store, backend *love.Client, sc *stream.Client, hub *stream.Hub, agg *summary.Aggregator, opts Options) *API {
	if opts.RateBurst <= 0 {
		opts.RateBurst = 50
	}
	if opts.RatePerSecond <= 0 {
		opts.RatePerSecond = 25
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 10 << 20
	}

	a := &API{
		router:  mux.NewRouter(),
		opts:    opts,
		tokens:  tokens,
		backend: backend,
		stream:  sc,
		hub:     hub,
		agg:     agg,
	}

	r := a.router
	r.HandleFunc("/healthz", a.Healthz).Methods(http.MethodGet)
	r.HandleFunc("/readyz", a.Ready).Methods(http.MethodGet)
	r.HandleFunc("/v1/info", a.Info).Methods(http.MethodGet)
	r.Handle("/metrics", obs.Handler()).Methods(http.MethodGet)

	r.HandleFunc("/api/home", a.Home).Methods(http.MethodGet)
	r.HandleFunc("/api/admin", a.Admin).Methods(http.MethodGet)
	r.HandleFunc("/api/admin/refresh", a.AdminRefresh).Methods(http.MethodPost)

	r.HandleFunc("/api/token", a.SetToken).Methods(http.MethodPost)
	r.HandleFunc("/api/profiles", a.SetProfiles).Methods(http.MethodPost)
	r.HandleFunc("/api/admin-pass", a.SetAdminPass).Methods(http.MethodPost)

	r.HandleFunc("/api/love", a.SendLove).Methods(http.MethodPost)
	r.HandleFunc("/api/echo", a.SendEcho).Methods(http.MethodPost)
	r.HandleFunc("/api/echo/latest", a.LatestEchoes).Methods(http.MethodGet)
	r.HandleFunc("/api/signal", a.SubmitSignal).Methods(http.MethodPost)
	r.HandleFunc("/api/signal/today", a.TodaySignal).Methods(http.MethodGet)
	r.HandleFunc("/api/photo", a.UploadPhoto).Methods(http.MethodPost)
	r.HandleFunc("/api/photo/latest", a.LatestPhotos).Methods(http.MethodGet)
	r.HandleFunc("/api/seed-users", a.SeedUsers).Methods(http.MethodPost)

	r.HandleFunc("/api/stream/start", a.StartStream).Methods(http.MethodPost)
	r.HandleFunc("/api/stream/stop", a.StopStream).Methods(http.MethodPost)
	r.HandleFunc("/api/activities", a.Activities).Methods(http.MethodGet)
	r.HandleFunc("/api/event/stream", a.Relay).Methods(http.MethodGet)

	r.HandleFunc("/api/tool/script", a.ToolScript).Methods(http.MethodPost)
	r.HandleFunc("/api/tool/title", a.ToolTitle).Methods(http.MethodPost)
	r.HandleFunc("/api/tool/commission", a.ToolCommission).Methods(http.MethodPost)
	r.HandleFunc("/api/tool/refine", a.ToolRefine).Methods(http.MethodPost)

	return a
}

// Handler returns the fully wrapped server handler.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.router
	h = MaxBodyBytes(h, a.opts.MaxBodyBytes)
	h = RateLimit(h, a.opts.RateBurst, a.opts.RatePerSecond)
	h = CORS(h)
	h = SecurityHeaders(h)
	h = Logging(h)
	return obs.Instrument(h)
}

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "lovebox",
		"version": a.opts.Version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.tokens.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "lovebox",
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.opts.Version,
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
