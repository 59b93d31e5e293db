package main

import (
	"sync"
	"time"

	"bookstore/internal/cart"
	"bookstore/internal/metrics"
)

// session is one browser's cart. The controller lives as long as the session is not idle.
type session struct {
	id       string
	ctrl     *cart.Controller
	inbox    *cart.Inbox
	lastSeen time.Time
}

type controllerFactory func(sessionID string, inbox *cart.Inbox) *cart.Controller

type sessionRegistry struct {
	mu       sync.Mutex
	sessions map[string]*session
	idle     time.Duration
	factory  controllerFactory
	metrics  *metrics.Registry
	now      func() time.Time
}

func newSessionRegistry(idle time.Duration, m *metrics.Registry, factory controllerFactory) *sessionRegistry {
	return &sessionRegistry{
		sessions: make(map[string]*session),
		idle:     idle,
		factory:  factory,
		metrics:  m,
		now:      time.Now,
	}
}

// get returns the session for id, creating it on first use.
func (sr *sessionRegistry) get(id string) *session {
	sr.mu.Lock()
	defer sr.mu.Unlock()

	s, ok := sr.sessions[id]
	if !ok {
		inbox := &cart.Inbox{}
		s = &session{id: id, ctrl: sr.factory(id, inbox), inbox: inbox}
		sr.sessions[id] = s
		sr.gauge()
	}
	s.lastSeen = sr.now()
	return s
}

// evictIdle drops sessions not seen for the idle timeout. Guest carts stay in the local store.
func (sr *sessionRegistry) evictIdle() int {
	sr.mu.Lock()
	defer sr.mu.Unlock()

	cutoff := sr.now().Add(-sr.idle)
	n := 0
	for id, s := range sr.sessions {
		if s.lastSeen.Before(cutoff) {
			delete(sr.sessions, id)
			n++
		}
	}
	if n > 0 {
		sr.gauge()
	}
	return n
}

func (sr *sessionRegistry) len() int {
	sr.mu.Lock()
	defer sr.mu.Unlock()
	return len(sr.sessions)
}

func (sr *sessionRegistry) gauge() {
	if sr.metrics != nil {
		sr.metrics.Sessions.Set(float64(len(sr.sessions)))
	}
}
