package trivia

import (
	"fmt"
	"sync"

	"github.com/valyala/fastrand"
)

// entry guards one session. removed is set under mu when the registry drops the session,
// so a caller that looked the entry up before removal sees NotFound.
type entry struct {
	mu      sync.Mutex
	session *Session
	removed bool
}

// Registry holds live sessions by join code and serializes all work per code.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*entry
	newCode  func() string
}

// NewRegistry returns an empty registry issuing random 6-digit codes.
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*entry),
		newCode:  randomCode,
	}
}

func randomCode() string {
	return fmt.Sprintf("%06d", 100000+fastrand.Uint32n(900000))
}

// Create stores the session built for a fresh unique code and returns that code.
func (r *Registry) Create(build func(code string) *Session) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	code := r.newCode()
	for {
		if _, taken := r.sessions[code]; !taken {
			break
		}
		code = r.newCode()
	}
	r.sessions[code] = &entry{session: build(code)}
	return code
}

// Do runs fn with exclusive access to the session for code. fn's error is returned as is.
func (r *Registry) Do(code string, fn func(s *Session) error) error {
	r.mu.RLock()
	e, ok := r.sessions[code]
	r.mu.RUnlock()
	if !ok {
		return notFound("game %s not found", code)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.removed {
		return notFound("game %s not found", code)
	}
	return fn(e.session)
}

// Remove drops the session for code. It waits for any in-flight Do on that code.
func (r *Registry) Remove(code string) bool {
	r.mu.Lock()
	e, ok := r.sessions[code]
	delete(r.sessions, code)
	r.mu.Unlock()
	if !ok {
		return false
	}

	e.mu.Lock()
	e.removed = true
	e.mu.Unlock()
	return true
}

// RemoveIf drops every session for which pred holds and returns their codes.
// pred runs under the session's lock.
func (r *Registry) RemoveIf(pred func(s *Session) bool) []string {
	r.mu.RLock()
	entries := make(map[string]*entry, len(r.sessions))
	for code, e := range r.sessions {
		entries[code] = e
	}
	r.mu.RUnlock()

	var removed []string
	for code, e := range entries {
		e.mu.Lock()
		if !e.removed && pred(e.session) {
			e.removed = true
			removed = append(removed, code)
		}
		e.mu.Unlock()
	}

	if len(removed) > 0 {
		r.mu.Lock()
		for _, code := range removed {
			if r.sessions[code] == entries[code] {
				delete(r.sessions, code)
			}
		}
		r.mu.Unlock()
	}
	return removed
}

// Codes lists the codes currently registered.
func (r *Registry) Codes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	codes := make([]string, 0, len(r.sessions))
	for code := range r.sessions {
		codes = append(codes, code)
	}
	return codes
}

// Len is the number of registered sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
