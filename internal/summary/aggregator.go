// Package summary assembles the admin view's daily read model: the summary,
// the user list and the event logs are fetched in parallel and committed
// atomically, so the viewer never sees a partially refreshed dashboard.
package summary

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"lovebox/internal/love"
	"lovebox/internal/role"
	"lovebox/internal/token"
)

// ErrMissingPassphrase is the local validation error for a refresh attempted
// without an administrative passphrase.
var ErrMissingPassphrase = errors.New("missing admin passphrase")

// Result is the atomically committed outcome of one refresh.
type Result struct {
	Summary love.Summary    `json:"summary"`
	Users   []love.User     `json:"users"`
	Logs    []love.EventLog `json:"logs"`
}

// Aggregator fetches the three admin resources and reconciles the profile
// cache with the backend's role→token records.
type Aggregator struct {
	client *love.Client
	tokens *token.Store
}

// New creates an aggregator. tokens may be nil when no profile reconciliation
// is wanted.
func New(client *love.Client, tokens *token.Store) *Aggregator {
	return &Aggregator{client: client, tokens: tokens}
}

// Refresh runs the three fetches in parallel. All three are always
// attempted; if any fails, nothing is committed and the single error is
// returned. On success the cached profile set is reconciled in place from
// the user list (backend wins over stale local cache).
func (a *Aggregator) Refresh(ctx context.Context, adminPass string) (Result, error) {
	adminPass = strings.TrimSpace(adminPass)
	if adminPass == "" {
		return Result{}, ErrMissingPassphrase
	}

	var res Result
	var g errgroup.Group
	g.Go(func() error {
		s, err := a.client.Summary(ctx, adminPass)
		if err != nil {
			return fmt.Errorf("summary: %w", err)
		}
		res.Summary = s
		return nil
	})
	g.Go(func() error {
		users, err := a.client.Users(ctx, adminPass)
		if err != nil {
			return fmt.Errorf("users: %w", err)
		}
		res.Users = users
		return nil
	})
	g.Go(func() error {
		logs, err := a.client.EventLogs(ctx, adminPass)
		if err != nil {
			return fmt.Errorf("event logs: %w", err)
		}
		res.Logs = logs
		return nil
	})
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	if a.tokens != nil {
		if next, changed := Reconcile(a.tokens.Profiles(), res.Users); changed {
			// Best effort: a cache write failure must not fail the refresh.
			_ = a.tokens.SetProfiles(next)
		}
	}
	return res, nil
}

// Reconcile applies backend role→token records over the cached profile set.
// Only known roles with non-empty tokens are considered; the second return
// reports whether anything changed.
func Reconcile(p token.Profiles, users []love.User) (token.Profiles, bool) {
	changed := false
	for _, u := range users {
		if u.Token == "" {
			continue
		}
		switch u.Role {
		case string(role.Me):
			if p.Me != u.Token {
				p.Me = u.Token
				changed = true
			}
		case string(role.Girlfriend):
			if p.Girlfriend != u.Token {
				p.Girlfriend = u.Token
				changed = true
			}
		case string(role.Test):
			if p.Test != u.Token {
				p.Test = u.Token
				changed = true
			}
		}
	}
	return p, changed
}
