package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"lovebox/internal/dashboard"
	"lovebox/internal/love"
	"lovebox/internal/role"
	"lovebox/internal/stream"
	"lovebox/internal/summary"
	"lovebox/internal/token"
)

const headerToken = "X-User-Token"

// profileTimeout bounds the backend role confirmation so a slow backend never
// stalls view rendering; on timeout the local derivation stands.
const profileTimeout = 3 * time.Second

// bearer extracts the viewer's token: an explicit header or share-link ?t=
// parameter wins, then the persisted active token, then empty.
func (a *API) bearer(r *http.Request) string {
	if v := strings.TrimSpace(r.Header.Get(headerToken)); v != "" {
		return v
	}
	if v := strings.TrimSpace(r.URL.Query().Get("t")); v != "" {
		return v
	}
	return a.tokens.Token()
}

// viewerRole derives the role locally and lets a confirmed backend answer
// override it. The backend round trip is best effort: any failure keeps the
// local derivation.
func (a *API) viewerRole(ctx context.Context, tok string) role.Role {
	derived := role.Resolve(tok, a.tokens.Profiles())
	if tok == "" {
		return derived
	}
	ctx, cancel := context.WithTimeout(ctx, profileTimeout)
	defer cancel()
	p, err := a.backend.Profile(ctx, tok)
	if err != nil {
		return derived
	}
	return role.Apply(p.Role, derived)
}

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errors.New("invalid JSON body")
	}
	return nil
}

// respondError maps errors onto HTTP statuses: backend rejections keep their
// status, transport failures are upstream faults, and everything that failed
// before reaching the network is the caller's fault.
func respondError(w http.ResponseWriter, err error) {
	var be *love.Error
	var ue *url.Error
	code := http.StatusBadRequest
	switch {
	case errors.As(err, &be):
		code = be.Status
	case errors.Is(err, context.DeadlineExceeded):
		code = http.StatusGatewayTimeout
	case errors.As(err, &ue):
		code = http.StatusBadGateway
	case errors.Is(err, love.ErrMissingToken),
		errors.Is(err, stream.ErrMissingPassphrase),
		errors.Is(err, summary.ErrMissingPassphrase):
		code = http.StatusBadRequest
	}
	writeJSON(w, code, map[string]any{"error": err.Error()})
}

// --- views ---

func (a *API) Home(w http.ResponseWriter, r *http.Request) {
	tok := a.bearer(r)
	viewer := a.viewerRole(r.Context(), tok)

	// Panels are best effort: a failed fetch leaves its panel empty rather
	// than failing the whole view.
	var echoes []love.Echo
	var photos []love.Photo
	if tok != "" {
		if got, err := a.backend.LatestEchoes(r.Context(), tok); err == nil {
			echoes = got
		}
		if got, err := a.backend.LatestPhotos(r.Context(), tok); err == nil {
			photos = got
		}
	}
	for i := range photos {
		photos[i].URL = dashboard.ResolvePhotoURL(a.opts.APIBase, photos[i].URL)
	}

	view := dashboard.BuildHome(viewer, a.tokens.Profiles(), a.opts.Origin,
		a.stream.State(), a.stream.Events(), echoes, photos)
	writeJSON(w, http.StatusOK, view)
}

func (a *API) Admin(w http.ResponseWriter, r *http.Request) {
	viewer := a.viewerRole(r.Context(), a.bearer(r))
	showTokens := r.URL.Query().Get("showTokens") == "1"

	a.mu.Lock()
	res := a.lastRefresh
	a.mu.Unlock()

	view := dashboard.BuildAdmin(viewer, a.stream.State(), a.stream.Events(), res, showTokens)
	if !view.CanView {
		writeJSON(w, http.StatusForbidden, view)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (a *API) AdminRefresh(w http.ResponseWriter, r *http.Request) {
	viewer := a.viewerRole(r.Context(), a.bearer(r))
	if viewer != role.Me && viewer != role.Test {
		writeJSON(w, http.StatusForbidden, map[string]any{"error": "admin view is not available for this role"})
		return
	}

	var in struct {
		AdminPass string `json:"adminPass"`
	}
	if r.ContentLength > 0 {
		if err := decodeJSON(r, &in); err != nil {
			respondError(w, err)
			return
		}
	}
	pass := strings.TrimSpace(in.AdminPass)
	if pass == "" {
		pass = a.tokens.AdminPass()
	}

	res, err := a.agg.Refresh(r.Context(), pass)
	if err != nil {
		respondError(w, err)
		return
	}
	if in.AdminPass != "" {
		_ = a.tokens.SetAdminPass(pass)
	}

	a.mu.Lock()
	a.lastRefresh = &res
	a.mu.Unlock()

	showTokens := r.URL.Query().Get("showTokens") == "1"
	writeJSON(w, http.StatusOK, dashboard.BuildAdmin(viewer, a.stream.State(), a.stream.Events(), &res, showTokens))
}

// --- credential cache ---

func (a *API) SetToken(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Token string `json:"token"`
	}
	if err := decodeJSON(r, &in); err != nil {
		respondError(w, err)
		return
	}
	if err := a.tokens.SetToken(in.Token); err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"role": role.Resolve(strings.TrimSpace(in.Token), a.tokens.Profiles()),
	})
}

func (a *API) SetProfiles(w http.ResponseWriter, r *http.Request) {
	var in token.Profiles
	if err := decodeJSON(r, &in); err != nil {
		respondError(w, err)
		return
	}
	if err := a.tokens.SetProfiles(in); err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (a *API) SetAdminPass(w http.ResponseWriter, r *http.Request) {
	var in struct {
		AdminPass string `json:"adminPass"`
	}
	if err := decodeJSON(r, &in); err != nil {
		respondError(w, err)
		return
	}
	if err := a.tokens.SetAdminPass(in.AdminPass); err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

// --- love actions ---

func (a *API) SendLove(w http.ResponseWriter, r *http.Request) {
	tok := a.bearer(r)
	if tok == "" {
		respondError(w, love.ErrMissingToken)
		return
	}
	var in struct {
		Action string `json:"action"`
	}
	if err := decodeJSON(r, &in); err != nil {
		respondError(w, err)
		return
	}
	action := strings.TrimSpace(in.Action)
	if action == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "missing action"})
		return
	}

	profiles := a.tokens.Profiles()
	viewer := role.Resolve(tok, profiles)
	key := string(viewer) + "." + action
	target := role.TargetToken(viewer, profiles)

	if err := a.backend.SendButtonEvent(r.Context(), tok, key, target); err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"key": key})
}

func (a *API) SendEcho(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Token string `json:"token"`
		Text  string `json:"text"`
	}
	if err := decodeJSON(r, &in); err != nil {
		respondError(w, err)
		return
	}
	pass := a.tokens.AdminPass()
	if strings.TrimSpace(pass) == "" {
		respondError(w, summary.ErrMissingPassphrase)
		return
	}
	if strings.TrimSpace(in.Token) == "" || strings.TrimSpace(in.Text) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "echo needs a target token and a text"})
		return
	}
	if err := a.backend.SendEcho(r.Context(), pass, in.Token, in.Text); err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "sent"})
}

func (a *API) LatestEchoes(w http.ResponseWriter, r *http.Request) {
	echoes, err := a.backend.LatestEchoes(r.Context(), a.bearer(r))
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, echoes)
}

func (a *API) SubmitSignal(w http.ResponseWriter, r *http.Request) {
	var in love.SignalInput
	if err := decodeJSON(r, &in); err != nil {
		respondError(w, err)
		return
	}
	sig, err := a.backend.SubmitSignal(r.Context(), a.bearer(r), in)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sig)
}

func (a *API) TodaySignal(w http.ResponseWriter, r *http.Request) {
	sig, err := a.backend.TodaySignal(r.Context(), a.bearer(r))
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"signal": sig})
}

func (a *API) UploadPhoto(w http.ResponseWriter, r *http.Request) {
	tok := a.bearer(r)
	if tok == "" {
		respondError(w, love.ErrMissingToken)
		return
	}
	file, hdr, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "missing photo file"})
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		respondError(w, err)
		return
	}

	profiles := a.tokens.Profiles()
	target := role.TargetToken(role.Resolve(tok, profiles), profiles)
	if err := a.backend.UploadPhoto(r.Context(), tok, target, hdr.Filename, data); err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "uploaded"})
}

func (a *API) LatestPhotos(w http.ResponseWriter, r *http.Request) {
	photos, err := a.backend.LatestPhotos(r.Context(), a.bearer(r))
	if err != nil {
		respondError(w, err)
		return
	}
	for i := range photos {
		photos[i].URL = dashboard.ResolvePhotoURL(a.opts.APIBase, photos[i].URL)
	}
	writeJSON(w, http.StatusOK, photos)
}

// SeedUsers provisions the three fixed users and commits their tokens into
// the local profile cache in one step.
func (a *API) SeedUsers(w http.ResponseWriter, r *http.Request) {
	pass := a.tokens.AdminPass()
	if strings.TrimSpace(pass) == "" {
		respondError(w, summary.ErrMissingPassphrase)
		return
	}
	res, err := a.backend.SeedUsers(r.Context(), pass)
	if err != nil {
		respondError(w, err)
		return
	}
	_ = a.tokens.SetProfiles(token.Profiles{
		Me:         res.Me.Token,
		Girlfriend: res.Girlfriend.Token,
		Test:       res.Test.Token,
	})
	writeJSON(w, http.StatusOK, res)
}

// --- live stream control ---

func (a *API) StartStream(w http.ResponseWriter, r *http.Request) {
	var in struct {
		AdminPass string `json:"adminPass"`
	}
	if r.ContentLength > 0 {
		if err := decodeJSON(r, &in); err != nil {
			respondError(w, err)
			return
		}
	}
	pass := strings.TrimSpace(in.AdminPass)
	if pass == "" {
		pass = a.tokens.AdminPass()
	}

	// The session must outlive this request; its lifecycle is owned by the
	// stop endpoint and process shutdown, not the request context.
	if err := a.stream.Start(context.Background(), pass); err != nil {
		respondError(w, err)
		return
	}
	if in.AdminPass != "" {
		_ = a.tokens.SetAdminPass(pass)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"state":     a.stream.State(),
		"sessionId": a.stream.SessionID(),
	})
}

func (a *API) StopStream(w http.ResponseWriter, r *http.Request) {
	a.stream.Stop()
	writeJSON(w, http.StatusOK, map[string]any{"state": a.stream.State()})
}

func (a *API) Activities(w http.ResponseWriter, r *http.Request) {
	viewer := a.viewerRole(r.Context(), a.bearer(r))
	if viewer != role.Me && viewer != role.Test {
		writeJSON(w, http.StatusForbidden, map[string]any{"error": "activity feed is not available for this role"})
		return
	}
	out := map[string]any{
		"state":  a.stream.State(),
		"events": a.stream.Events(),
	}
	if err := a.stream.Err(); err != nil {
		out["error"] = err.Error()
	}
	writeJSON(w, http.StatusOK, out)
}

// --- copywriting tools ---

func (a *API) ToolScript(w http.ResponseWriter, r *http.Request) {
	var in love.ScriptInput
	if err := decodeJSON(r, &in); err != nil {
		respondError(w, err)
		return
	}
	res, err := a.backend.GenerateScript(r.Context(), a.bearer(r), in)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *API) ToolTitle(w http.ResponseWriter, r *http.Request) {
	var in love.TitleInput
	if err := decodeJSON(r, &in); err != nil {
		respondError(w, err)
		return
	}
	res, err := a.backend.GenerateTitle(r.Context(), a.bearer(r), in)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *API) ToolCommission(w http.ResponseWriter, r *http.Request) {
	var in love.CommissionInput
	if err := decodeJSON(r, &in); err != nil {
		respondError(w, err)
		return
	}
	res, err := a.backend.CalculateCommission(r.Context(), a.bearer(r), in)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *API) ToolRefine(w http.ResponseWriter, r *http.Request) {
	var in love.RefineInput
	if err := decodeJSON(r, &in); err != nil {
		respondError(w, err)
		return
	}
	res, err := a.backend.RefineCopy(r.Context(), a.bearer(r), in)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
