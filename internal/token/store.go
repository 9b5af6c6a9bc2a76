// Package token owns the client-side credential cache: the active bearer
// token, the three fixed profile tokens and the admin passphrase. Values are
// persisted in a small SQLite file and exposed through a snapshot-read /
// whole-value-write / subscribe contract so every reader sees a consistent
// value and no reader ever observes a partial update.
package token

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"sync"
	"time"
)

// Profiles maps the three fixed identities to their bearer tokens. An empty
// value never matches any real token.
type Profiles struct {
	Me         string `json:"me"`
	Girlfriend string `json:"girlfriend"`
	Test       string `json:"test"`
}

// Store is the observable credential cache. All reads are snapshot reads
// against the underlying cache; all writes replace whole values and notify
// subscribers. A polling watcher bridges writes made by other processes
// sharing the cache file into the same notifications.
type Store struct {
	db   *sql.DB
	poll time.Duration

	mu      sync.Mutex
	subs    map[int]func()
	nextSub int
	lastRev int64

	bootstrap string

	done      chan struct{}
	closeOnce sync.Once
}

// Option configures a Store at open time.
type Option func(*Store)

// WithBootstrapToken hands over a token from the environment or a share
// link. It is adopted into the persistent cache once, so it survives past
// this run; an already-cached identical value is left untouched.
func WithBootstrapToken(t string) Option {
	return func(s *Store) { s.bootstrap = t }
}

// WithPollInterval tunes how often the store checks the cache file for
// writes made by other processes.
func WithPollInterval(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.poll = d
		}
	}
}

// Open opens (and if needed creates) the cache at path. An empty path keeps
// the cache in memory for the lifetime of the process.
func Open(path string, opts ...Option) (*Store, error) {
	db, err := openCache(path)
	if err != nil {
		return nil, err
	}

	s := &Store{
		db:   db,
		poll: time.Second,
		subs: make(map[int]func()),
		done: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	if bootstrap := strings.TrimSpace(s.bootstrap); bootstrap != "" {
		cur, _ := getValue(db, keyToken)
		if cur != bootstrap {
			if err := putValue(db, keyToken, bootstrap); err != nil {
				db.Close()
				return nil, err
			}
		}
	}

	if s.lastRev, err = readRev(db); err != nil {
		db.Close()
		return nil, err
	}

	go s.watch()
	return s, nil
}

// Close stops the watcher and releases the cache.
func (s *Store) Close() error {
	s.closeOnce.Do(func() { close(s.done) })
	return s.db.Close()
}

// Ping reports whether the cache is reachable; used by readiness probes.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Token returns the active bearer token, or "" when none is cached.
func (s *Store) Token() string {
	v, _ := getValue(s.db, keyToken)
	return v
}

// SetToken trims and persists the active token. An empty value after trim
// clears the cached key instead of persisting "". Setting the current value
// again is a no-op: no write, no notification.
func (s *Store) SetToken(v string) error {
	v = strings.TrimSpace(v)
	cur, err := getValue(s.db, keyToken)
	if err != nil {
		return err
	}
	if cur == v {
		return nil
	}
	if v == "" {
		err = deleteValue(s.db, keyToken)
	} else {
		err = putValue(s.db, keyToken, v)
	}
	if err != nil {
		return err
	}
	s.noteOwnWrite()
	return nil
}

// Profiles returns the cached profile set. Missing or malformed cache
// content falls back to the all-empty default, never an error.
func (s *Store) Profiles() Profiles {
	raw, err := getValue(s.db, keyProfiles)
	if err != nil || raw == "" {
		return Profiles{}
	}
	var p Profiles
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return Profiles{}
	}
	return p
}

// SetProfiles replaces the whole profile set. Idempotent: rewriting the
// currently stored value produces no write and no notification.
func (s *Store) SetProfiles(p Profiles) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return err
	}
	cur, err := getValue(s.db, keyProfiles)
	if err != nil {
		return err
	}
	if cur == string(raw) {
		return nil
	}
	if err := putValue(s.db, keyProfiles, string(raw)); err != nil {
		return err
	}
	s.noteOwnWrite()
	return nil
}

// AdminPass returns the cached administrative passphrase, best effort.
func (s *Store) AdminPass() string {
	v, _ := getValue(s.db, keyAdminPass)
	return v
}

// SetAdminPass trims and persists the passphrase; empty clears it.
func (s *Store) SetAdminPass(v string) error {
	v = strings.TrimSpace(v)
	cur, err := getValue(s.db, keyAdminPass)
	if err != nil {
		return err
	}
	if cur == v {
		return nil
	}
	if v == "" {
		err = deleteValue(s.db, keyAdminPass)
	} else {
		err = putValue(s.db, keyAdminPass, v)
	}
	if err != nil {
		return err
	}
	s.noteOwnWrite()
	return nil
}

// Subscribe registers fn to run after every observed change, whether made
// through this store or by another process sharing the cache file. The
// returned function cancels the subscription.
func (s *Store) Subscribe(fn func()) func() {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// noteOwnWrite records the revision produced by a local write and notifies
// subscribers immediately, so the watcher does not report it a second time.
func (s *Store) noteOwnWrite() {
	rev, err := readRev(s.db)

	s.mu.Lock()
	if err == nil {
		s.lastRev = rev
	}
	fns := make([]func(), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// watch polls the cache revision and fans external writes into subscriber
// notifications. This is the storage-event bridge: another process editing
// the shared cache is observable here without any direct coupling.
func (s *Store) watch() {
	ticker := time.NewTicker(s.poll)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
		}

		rev, err := readRev(s.db)
		if err != nil {
			continue
		}

		s.mu.Lock()
		changed := rev != s.lastRev
		if changed {
			s.lastRev = rev
		}
		fns := make([]func(), 0, len(s.subs))
		for _, fn := range s.subs {
			fns = append(fns, fn)
		}
		s.mu.Unlock()

		if !changed {
			continue
		}
		for _, fn := range fns {
			fn()
		}
	}
}
