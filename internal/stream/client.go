package stream

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"lovebox/internal/ids"
)

// State of the live stream session.
type State string

const (
	StateIdle  State = "idle"
	StateOpen  State = "open"
	StateError State = "error"
)

// ErrMissingPassphrase is returned by Start before any connection attempt
// when no passphrase is supplied.
var ErrMissingPassphrase = errors.New("missing stream passphrase")

// Client consumes the backend's live feed into a bounded buffer. At most one
// connection is live per client; starting a new session closes the previous
// one first. There is no automatic reconnect: a transport error ends the
// session and restarting is an explicit caller action.
type Client struct {
	endpoint string
	// No timeout on the live connection; liveness is detected only via
	// transport errors.
	http    *http.Client
	buf     *Buffer
	onEvent func(ActivityEvent)

	// startMu serializes session transitions (Start/Stop) end to end, so
	// two concurrent starts can never commit two live connections.
	startMu sync.Mutex

	mu        sync.Mutex
	state     State
	lastErr   error
	sessionID string
	cancel    context.CancelFunc
	done      chan struct{}
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient overrides the transport used for the stream connection.
func WithHTTPClient(h *http.Client) ClientOption {
	return func(c *Client) { c.http = h }
}

// WithBufferCapacity bounds the recent-events buffer.
func WithBufferCapacity(n int) ClientOption {
	return func(c *Client) { c.buf = NewBuffer(n) }
}

// WithOnEvent registers a hook called for every accepted event, after it is
// buffered. The hook runs on the reader goroutine; it must not block.
func WithOnEvent(fn func(ActivityEvent)) ClientOption {
	return func(c *Client) { c.onEvent = fn }
}

// NewClient creates a client for the stream endpoint, e.g.
// "http://127.0.0.1:3001/api/event/stream".
func NewClient(endpoint string, opts ...ClientOption) *Client {
	c := &Client{
		endpoint: endpoint,
		http:     &http.Client{},
		buf:      NewBuffer(DefaultCapacity),
		state:    StateIdle,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start opens the live connection with the administrative passphrase. An
// empty passphrase fails locally without touching the network and leaves the
// state unchanged. A previous session, if any, is closed first so events are
// never fanned out twice into the same buffer.
func (c *Client) Start(ctx context.Context, passphrase string) error {
	passphrase = strings.TrimSpace(passphrase)
	if passphrase == "" {
		return ErrMissingPassphrase
	}

	c.startMu.Lock()
	defer c.startMu.Unlock()

	c.stop()

	u, err := url.Parse(c.endpoint)
	if err != nil {
		return fmt.Errorf("stream endpoint: %w", err)
	}
	q := u.Query()
	q.Set("adminPass", passphrase)
	u.RawQuery = q.Encode()

	runCtx, cancel := context.WithCancel(ctx)
	req, err := http.NewRequestWithContext(runCtx, http.MethodGet, u.String(), nil)
	if err != nil {
		cancel()
		return err
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.http.Do(req)
	if err != nil {
		cancel()
		c.fail(err)
		return err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		cancel()
		err := fmt.Errorf("stream rejected: %s", resp.Status)
		c.fail(err)
		return err
	}

	done := make(chan struct{})
	c.mu.Lock()
	c.cancel = cancel
	c.done = done
	c.state = StateOpen
	c.lastErr = nil
	c.sessionID = ids.New()
	c.mu.Unlock()

	go c.read(runCtx, resp.Body, done)
	return nil
}

// Stop closes the live connection, if any, and returns the client to idle.
// It blocks until the reader goroutine has finished, so teardown is
// deterministic on every exit path.
func (c *Client) Stop() {
	c.startMu.Lock()
	defer c.startMu.Unlock()
	c.stop()
}

// stop is Stop without the session transition lock; callers hold startMu.
func (c *Client) stop() {
	c.mu.Lock()
	cancel := c.cancel
	done := c.done
	c.cancel = nil
	c.done = nil
	if cancel != nil {
		c.state = StateIdle
		c.lastErr = nil
	}
	c.mu.Unlock()

	if cancel != nil {
		cancel()
		if done != nil {
			<-done
		}
	}
}

// State returns the current session state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Active reports whether a live connection is open.
func (c *Client) Active() bool {
	return c.State() == StateOpen
}

// Err returns the error that ended the last session, if any.
func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// SessionID identifies the current or most recent session.
func (c *Client) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// Events returns a snapshot of the buffered events, newest first.
func (c *Client) Events() []ActivityEvent {
	return c.buf.Snapshot()
}

func (c *Client) fail(err error) {
	c.mu.Lock()
	c.state = StateError
	c.lastErr = err
	c.mu.Unlock()
}

// read consumes SSE frames until the connection ends. Each frame handler
// runs to completion before the next frame is processed, so buffer order is
// exactly network arrival order.
func (c *Client) read(ctx context.Context, body io.ReadCloser, done chan struct{}) {
	defer close(done)
	defer body.Close()

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 4096), 1<<20)

	var data []string
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if len(data) > 0 {
				c.handleFrame(strings.Join(data, "\n"))
				data = data[:0]
			}
		case strings.HasPrefix(line, ":"):
			// keep-alive comment
		case strings.HasPrefix(line, "data:"):
			data = append(data, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
	}
	if len(data) > 0 {
		c.handleFrame(strings.Join(data, "\n"))
	}

	err := scanner.Err()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.done != done {
		// Detached by Stop (or replaced by a newer session); whoever
		// detached it owns the state.
		return
	}
	if err == nil {
		if cerr := ctx.Err(); cerr != nil {
			// The caller's context ended, not a Stop call.
			err = cerr
		} else {
			err = io.ErrUnexpectedEOF
		}
	}
	c.state = StateError
	c.lastErr = err
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.done = nil
}

// handleFrame parses one frame as an ActivityEvent; on parse failure the raw
// payload is wrapped into a synthetic event rather than dropped.
func (c *Client) handleFrame(raw string) {
	var evt ActivityEvent
	if err := json.Unmarshal([]byte(raw), &evt); err != nil {
		evt = synthetic(raw, time.Now().UTC())
	}
	c.buf.Push(evt)
	if c.onEvent != nil {
		c.onEvent(evt)
	}
}
