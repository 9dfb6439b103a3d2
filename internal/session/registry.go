// Package session keeps short-lived, per-user search sessions in process
// memory. Sessions are addressed by opaque tokens and expire a fixed TTL after
// creation.
package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/dharsanguruparan/vaultlink/internal/apperr"
	"github.com/dharsanguruparan/vaultlink/internal/token"
)

// MaxAttempts bounds token draws per Create.
const MaxAttempts = 5

// DefaultTTL applies when Options.TTL is zero.
const DefaultTTL = 30 * time.Minute

var (
	sessionsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vaultlink_sessions_created_total",
		Help: "Search sessions created.",
	})
	sessionsLive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "vaultlink_sessions_live",
		Help: "Search sessions currently retained.",
	})
)

// Session is one user's search, remembered so later pages can be served.
type Session struct {
	Token     string
	Owner     int64
	Query     string
	CreatedAt time.Time
}

// Options configures a Registry.
type Options struct {
	TTL      time.Duration
	Now      func() time.Time
	NewToken func() (string, error)
}

// Registry is a mutex-guarded map of live sessions. Expired entries are swept
// lazily on every call; there is no background goroutine.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]Session
	ttl      time.Duration
	now      func() time.Time
	newToken func() (string, error)
}

// NewRegistry builds an empty Registry.
func NewRegistry(opt Options) *Registry {
	if opt.TTL <= 0 {
		opt.TTL = DefaultTTL
	}
	if opt.Now == nil {
		opt.Now = time.Now
	}
	if opt.NewToken == nil {
		opt.NewToken = token.New
	}
	return &Registry{
		sessions: make(map[string]Session),
		ttl:      opt.TTL,
		now:      opt.Now,
		newToken: opt.NewToken,
	}
}

// Create stores a new session for owner and returns it. A token that is held
// by a live session is never handed out again; after MaxAttempts draws that
// all collide Create fails with apperr.CodeExhausted.
func (r *Registry) Create(owner int64, query string) (Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	r.sweepLocked(now)

	for attempt := 0; attempt < MaxAttempts; attempt++ {
		tok, err := r.newToken()
		if err != nil {
			return Session{}, fmt.Errorf("generate session token: %w", err)
		}
		if _, taken := r.sessions[tok]; taken {
			continue
		}
		s := Session{Token: tok, Owner: owner, Query: query, CreatedAt: now}
		r.sessions[tok] = s
		sessionsCreated.Inc()
		sessionsLive.Set(float64(len(r.sessions)))
		return s, nil
	}
	return Session{}, apperr.Exhaustedf("no free session token after %d attempts", MaxAttempts)
}

// Lookup returns the session for tok. Missing and expired sessions are both
// reported as absent.
func (r *Registry) Lookup(tok string) (Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	r.sweepLocked(now)

	s, ok := r.sessions[tok]
	if !ok || r.expired(s, now) {
		return Session{}, false
	}
	return s, true
}

// Len reports how many sessions are retained, including expired ones not yet
// swept.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

func (r *Registry) expired(s Session, now time.Time) bool {
	return now.Sub(s.CreatedAt) > r.ttl
}

func (r *Registry) sweepLocked(now time.Time) {
	for tok, s := range r.sessions {
		if r.expired(s, now) {
			delete(r.sessions, tok)
		}
	}
	sessionsLive.Set(float64(len(r.sessions)))
}
