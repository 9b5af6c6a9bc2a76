// Package love is the HTTP client for the external love backend: users,
// echoes, signals, photos, button events, the daily summary and the
// copywriting tools. The backend owns all durable state; this client only
// shapes requests and normalizes failures.
package love

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

const (
	headerToken     = "X-User-Token"
	headerAdminPass = "X-Admin-Pass"
	headerRequestID = "X-Request-Id"
)

// ErrMissingToken is the local validation error for per-user operations
// attempted without a bearer token. It never reaches the network.
var ErrMissingToken = errors.New("missing access token")

// Error is the normalized form of any non-2xx backend response. The message
// is the response body text, or the status text when the body is empty.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend returned %d", e.Status)
	}
	return e.Message
}

// Client talks to the love backend over its JSON/SSE HTTP boundary.
type Client struct {
	base string
	http *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// New creates a client for the backend at base, e.g. "http://127.0.0.1:3001".
func New(base string, opts ...Option) *Client {
	c := &Client{
		base: strings.TrimRight(base, "/"),
		http: &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// StreamURL builds the live event stream endpoint with the administrative
// passphrase carried as a query parameter, as the backend expects.
func (c *Client) StreamURL(adminPass string) string {
	u := c.base + "/api/event/stream"
	if adminPass = strings.TrimSpace(adminPass); adminPass != "" {
		u += "?adminPass=" + url.QueryEscape(adminPass)
	}
	return u
}

// StreamEndpoint is the stream path without credentials, for clients that
// attach the passphrase themselves.
func (c *Client) StreamEndpoint() string {
	return c.base + "/api/event/stream"
}

// creds carries per-request credentials. Either field may be empty; empty
// headers are not sent.
type creds struct {
	token     string
	adminPass string
}

func (c *Client) do(ctx context.Context, method, path string, cr creds, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(req, cr, out)
}

func (c *Client) send(req *http.Request, cr creds, out any) error {
	if cr.token != "" {
		req.Header.Set(headerToken, cr.token)
	}
	if cr.adminPass != "" {
		req.Header.Set(headerAdminPass, cr.adminPass)
	}
	req.Header.Set(headerRequestID, uuid.NewString())

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := strings.TrimSpace(string(data))
		if msg == "" {
			msg = resp.Status
		}
		return &Error{Status: resp.StatusCode, Message: msg}
	}

	if out == nil {
		return nil
	}
	if strings.Contains(resp.Header.Get("Content-Type"), "application/json") {
		if len(data) == 0 {
			return nil
		}
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	}
	// Anything that is not JSON is treated as raw text.
	if s, ok := out.(*string); ok {
		*s = string(data)
		return nil
	}
	return fmt.Errorf("unexpected content type %q", resp.Header.Get("Content-Type"))
}

// Summary fetches the daily cross-entity summary. Admin-gated.
func (c *Client) Summary(ctx context.Context, adminPass string) (Summary, error) {
	var out Summary
	err := c.do(ctx, http.MethodGet, "/api/me/summary", creds{adminPass: adminPass}, nil, &out)
	return out, err
}

// Users fetches the user list. Admin-gated.
func (c *Client) Users(ctx context.Context, adminPass string) ([]User, error) {
	var out []User
	err := c.do(ctx, http.MethodGet, "/api/me/users", creds{adminPass: adminPass}, nil, &out)
	return out, err
}

// EventLogs fetches the per-user daily event counters. Admin-gated.
func (c *Client) EventLogs(ctx context.Context, adminPass string) ([]EventLog, error) {
	var out []EventLog
	err := c.do(ctx, http.MethodGet, "/api/me/events", creds{adminPass: adminPass}, nil, &out)
	return out, err
}

// SeedUsers asks the backend to create the three fixed users in one shot and
// returns their tokens. Admin-gated.
func (c *Client) SeedUsers(ctx context.Context, adminPass string) (SeedUsersResult, error) {
	var out SeedUsersResult
	err := c.do(ctx, http.MethodPost, "/api/me/seed-users", creds{adminPass: adminPass}, struct{}{}, &out)
	return out, err
}

// SendEcho relays a short message to the user owning the given token.
// Admin-gated.
func (c *Client) SendEcho(ctx context.Context, adminPass, targetToken, text string) error {
	targetToken = strings.TrimSpace(targetToken)
	text = strings.TrimSpace(text)
	if targetToken == "" || text == "" {
		return errors.New("echo needs a target token and a text")
	}
	in := map[string]string{"token": targetToken, "text": text}
	return c.do(ctx, http.MethodPost, "/api/echo", creds{adminPass: adminPass}, in, nil)
}

// LatestEchoes returns the newest echoes addressed to the token's owner.
// The backend has shipped both a bare array and an {items:[...]} wrapper;
// both shapes are accepted.
func (c *Client) LatestEchoes(ctx context.Context, tok string) ([]Echo, error) {
	if tok == "" {
		return nil, ErrMissingToken
	}
	var out echoList
	err := c.do(ctx, http.MethodGet, "/api/echo/latest", creds{token: tok}, nil, &out)
	return []Echo(out), err
}

// Profile looks the token up with the backend, which may answer with an
// authoritative role.
func (c *Client) Profile(ctx context.Context, tok string) (Profile, error) {
	if tok == "" {
		return Profile{}, ErrMissingToken
	}
	var out Profile
	err := c.do(ctx, http.MethodGet, "/api/echo/profile", creds{token: tok}, nil, &out)
	return out, err
}

// SubmitSignal records today's mood/status signal for the token's owner.
// Resubmitting replaces the day's record rather than appending.
func (c *Client) SubmitSignal(ctx context.Context, tok string, in SignalInput) (Signal, error) {
	if tok == "" {
		return Signal{}, ErrMissingToken
	}
	var out Signal
	err := c.do(ctx, http.MethodPost, "/api/signal", creds{token: tok}, in, &out)
	return out, err
}

// TodaySignal fetches today's signal, or nil when none was submitted yet.
func (c *Client) TodaySignal(ctx context.Context, tok string) (*Signal, error) {
	if tok == "" {
		return nil, ErrMissingToken
	}
	var out *Signal
	err := c.do(ctx, http.MethodGet, "/api/signal/today", creds{token: tok}, nil, &out)
	return out, err
}

// LatestPhotos returns the newest reward photos visible to the token's owner.
func (c *Client) LatestPhotos(ctx context.Context, tok string) ([]Photo, error) {
	if tok == "" {
		return nil, ErrMissingToken
	}
	var out []Photo
	err := c.do(ctx, http.MethodGet, "/api/photo/latest", creds{token: tok}, nil, &out)
	return out, err
}

// SendButtonEvent submits one tap of a love button. key is the dot-joined
// "<role>.<action>" tag; targetToken optionally addresses the counterpart.
func (c *Client) SendButtonEvent(ctx context.Context, tok, key, targetToken string) error {
	if tok == "" {
		return ErrMissingToken
	}
	if strings.TrimSpace(key) == "" {
		return errors.New("missing event key")
	}
	in := map[string]string{"type": "button_used", "key": key}
	if targetToken != "" {
		in["targetToken"] = targetToken
	}
	return c.do(ctx, http.MethodPost, "/api/event", creds{token: tok}, in, nil)
}

// UploadPhoto sends a reward photo as multipart form data. The part's
// content type is sniffed from the bytes; an empty filename gets a generated
// one with the sniffed extension.
func (c *Client) UploadPhoto(ctx context.Context, tok, targetToken, filename string, data []byte) error {
	if tok == "" {
		return ErrMissingToken
	}
	if len(data) == 0 {
		return errors.New("empty photo")
	}

	kind := mimetype.Detect(data)
	if filename == "" {
		filename = uuid.NewString() + kind.Extension()
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	hdr := make(textproto.MIMEHeader)
	hdr.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	hdr.Set("Content-Type", kind.String())
	part, err := w.CreatePart(hdr)
	if err != nil {
		return err
	}
	if _, err := part.Write(data); err != nil {
		return err
	}
	if targetToken != "" {
		if err := w.WriteField("targetToken", targetToken); err != nil {
			return err
		}
	}
	if err := w.Close(); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/api/photo", &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	return c.send(req, creds{token: tok}, nil)
}
