package server

import (
	"html"
	"log/slog"
	"net/http"
	"strings"
)

// Credentials returns the configured web username and password.
type Credentials func() (username, password string)

// renderLogin writes the login page with a fresh CSRF token and an optional
// error message.
func (sm *SessionManager) renderLogin(w http.ResponseWriter, page, errMsg string, status int) {
	body := strings.ReplaceAll(page, "{{CSRF_TOKEN}}", sm.CreateCSRFToken())
	body = strings.ReplaceAll(body, "{{ERROR}}", html.EscapeString(errMsg))

	w.Header().Set("Content-Type", "text/html")
	w.WriteHeader(status)
	if _, err := w.Write([]byte(body)); err != nil {
		slog.Error("failed to write login page", "error", err)
	}
}

// HandleLogin serves the login form and processes submitted credentials.
// page may contain {{CSRF_TOKEN}} and {{ERROR}} placeholders.
func (sm *SessionManager) HandleLogin(page string, creds Credentials) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			sm.renderLogin(w, page, "", http.StatusOK)
		case http.MethodPost:
			if err := r.ParseForm(); err != nil {
				sm.renderLogin(w, page, "Invalid request", http.StatusBadRequest)
				return
			}
			if !sm.ValidateCSRFToken(r.PostFormValue("csrf_token")) {
				sm.renderLogin(w, page, "Session expired, please try again", http.StatusForbidden)
				return
			}
			user, pass := creds()
			if !sm.Login(w, r, r.PostFormValue("username"), r.PostFormValue("password"), user, pass) {
				slog.Warn("login failed", "remote", r.RemoteAddr)
				sm.renderLogin(w, page, "Invalid username or password", http.StatusUnauthorized)
				return
			}
			http.Redirect(w, r, "/", http.StatusSeeOther)
		default:
			w.Header().Set("Allow", "GET, POST")
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	}
}

// HandleLogout ends the session and returns to the login page.
func (sm *SessionManager) HandleLogout(w http.ResponseWriter, r *http.Request) {
	sm.Logout(w, r)
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}
