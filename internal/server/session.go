// Package server provides authentication, WebSocket plumbing and command
// handling for the web interface.
package server

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"sync"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

const (
	sessionCookieName = "talkrec_session"
	// A studio tablet stays logged in for a shift of inactivity, and at most a week.
	sessionIdle     = 12 * time.Hour
	sessionLifetime = 7 * 24 * time.Hour
	csrfTokenTTL    = 10 * time.Minute
	tokenLength     = 43
)

type loginSession struct {
	created  time.Time
	lastSeen time.Time
}

// SessionManager keeps the logged-in talk-page sessions and the one-time
// tokens of rendered login forms. Expired entries are purged on every issue.
type SessionManager struct {
	mu       sync.Mutex
	sessions map[string]loginSession
	csrf     map[string]time.Time
	now      func() time.Time
}

// NewSessionManager creates an empty session manager.
func NewSessionManager() *SessionManager {
	return &SessionManager{
		sessions: make(map[string]loginSession),
		csrf:     make(map[string]time.Time),
		now:      time.Now,
	}
}

func newToken() (string, error) {
	return gonanoid.New(tokenLength)
}

func (s loginSession) expired(now time.Time) bool {
	return now.Sub(s.lastSeen) > sessionIdle || now.Sub(s.created) > sessionLifetime
}

// purgeLocked drops expired sessions and form tokens. Callers hold mu.
func (sm *SessionManager) purgeLocked(now time.Time) {
	for token, s := range sm.sessions {
		if s.expired(now) {
			delete(sm.sessions, token)
		}
	}
	for token, deadline := range sm.csrf {
		if now.After(deadline) {
			delete(sm.csrf, token)
		}
	}
}

// Create starts a new session and returns its token, or "" when no token
// could be generated.
func (sm *SessionManager) Create() string {
	token, err := newToken()
	if err != nil {
		slog.Error("failed to generate session token", "error", err)
		return ""
	}

	sm.mu.Lock()
	defer sm.mu.Unlock()
	now := sm.now()
	sm.purgeLocked(now)
	sm.sessions[token] = loginSession{created: now, lastSeen: now}
	return token
}

// Validate reports whether token names a live session and renews its idle timer.
func (sm *SessionManager) Validate(token string) bool {
	if token == "" {
		return false
	}

	sm.mu.Lock()
	defer sm.mu.Unlock()
	s, ok := sm.sessions[token]
	if !ok {
		return false
	}
	now := sm.now()
	if s.expired(now) {
		delete(sm.sessions, token)
		return false
	}
	s.lastSeen = now
	sm.sessions[token] = s
	return true
}

// Delete ends a session.
func (sm *SessionManager) Delete(token string) {
	sm.mu.Lock()
	delete(sm.sessions, token)
	sm.mu.Unlock()
}

// AuthMiddleware lets requests with a live session cookie through and sends
// everything else to /login.
func (sm *SessionManager) AuthMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(sessionCookieName)
		if err != nil || !sm.Validate(cookie.Value) {
			http.Redirect(w, r, "/login", http.StatusFound)
			return
		}
		next(w, r)
	}
}

// Login checks the submitted credentials in constant time and, on a match,
// sets a fresh session cookie.
func (sm *SessionManager) Login(w http.ResponseWriter, r *http.Request, username, password, configUser, configPass string) bool {
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(configUser))
	passOK := subtle.ConstantTimeCompare([]byte(password), []byte(configPass))
	if userOK&passOK != 1 {
		return false
	}

	token := sm.Create()
	if token == "" {
		return false
	}
	setSessionCookie(w, r, token, int(sessionLifetime.Seconds()))
	return true
}

// Logout ends the request's session and clears its cookie.
func (sm *SessionManager) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(sessionCookieName); err == nil {
		sm.Delete(cookie.Value)
	}
	setSessionCookie(w, r, "", -1)
}

func setSessionCookie(w http.ResponseWriter, r *http.Request, value string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteStrictMode,
	})
}

// CreateCSRFToken issues a one-time token for a rendered login form.
func (sm *SessionManager) CreateCSRFToken() string {
	token, err := newToken()
	if err != nil {
		slog.Error("failed to generate CSRF token", "error", err)
		return ""
	}

	sm.mu.Lock()
	defer sm.mu.Unlock()
	now := sm.now()
	sm.purgeLocked(now)
	sm.csrf[token] = now.Add(csrfTokenTTL)
	return token
}

// ValidateCSRFToken consumes token and reports whether it was still valid.
func (sm *SessionManager) ValidateCSRFToken(token string) bool {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	deadline, ok := sm.csrf[token]
	if !ok {
		return false
	}
	delete(sm.csrf, token)
	return !sm.now().After(deadline)
}
