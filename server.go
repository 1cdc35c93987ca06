package main

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/oszuidwest/zwfm-talkrec/internal/capture"
	"github.com/oszuidwest/zwfm-talkrec/internal/config"
	"github.com/oszuidwest/zwfm-talkrec/internal/server"
	"github.com/oszuidwest/zwfm-talkrec/internal/session"
	"github.com/oszuidwest/zwfm-talkrec/internal/types"
	"github.com/oszuidwest/zwfm-talkrec/internal/ui"
	"github.com/oszuidwest/zwfm-talkrec/internal/util"
)

// statusInterval is how often connected clients receive a status refresh.
const statusInterval = 3 * time.Second

// Server is an HTTP server that provides the talk button and settings interface.
type Server struct {
	config   *config.Config
	screen   *ui.Screen
	state    func() types.SessionState
	sessions *server.SessionManager
	commands *server.CommandHandler
	version  *VersionChecker
	devices  func() []types.AudioDevice
}

// NewServer returns a new Server for the given screen. state reports the
// recording controller state; testTriggers are the notification tests.
func NewServer(cfg *config.Config, screen *ui.Screen, state func() types.SessionState, testTriggers map[string]func() error, version *VersionChecker) *Server {
	return &Server{
		config:   cfg,
		screen:   screen,
		state:    state,
		sessions: server.NewSessionManager(),
		commands: server.NewCommandHandler(cfg, screen, testTriggers),
		version:  version,
		devices:  capture.ListDevices,
	}
}

// status builds the periodic status message.
func (s *Server) status(devices []types.AudioDevice) map[string]any {
	cfg := s.config.Snapshot()
	msg := map[string]any{
		"type":             "status",
		"state":            s.state(),
		"devices":          devices,
		"webhook_url":      cfg.WebhookURL,
		"log_path":         cfg.LogPath,
		"email_smtp_host":  cfg.EmailSMTPHost,
		"email_smtp_port":  cfg.EmailSMTPPort,
		"email_from_name":  cfg.EmailFromName,
		"email_username":   cfg.EmailUsername,
		"email_recipients": cfg.EmailRecipients,
		"settings": map[string]any{
			"audio_input":    cfg.AudioInput,
			"retention_days": cfg.RetentionDays,
			"recordings_dir": session.RecordingDir(cfg.StorageRoot),
			"platform":       runtime.GOOS,
		},
	}
	if s.version != nil {
		msg["version"] = s.version.Info()
	}
	return msg
}

// viewMessage wraps the screen view for the client.
func viewMessage(v ui.View) map[string]any {
	return map[string]any{"type": "view", "view": v}
}

// handleWebSocket carries gestures and commands from the client and streams
// screen updates and status back. All writes happen on this goroutine.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := server.UpgradeConnection(w, r)
	if err != nil {
		slog.Error("WebSocket upgrade failed", "error", err)
		return
	}
	defer util.Close(conn, "WebSocket connection")

	updates, unsubscribe := s.screen.Subscribe()
	defer unsubscribe()

	statusUpdate := make(chan struct{}, 1)
	replies := make(chan any, 8)
	done := make(chan struct{})

	reply := func(v any) {
		select {
		case replies <- v:
		case <-done:
		}
	}
	triggerStatus := func() {
		select {
		case statusUpdate <- struct{}{}:
		default:
		}
	}

	// Goroutine to read and process commands from client
	go func() {
		defer close(done)
		for {
			var cmd server.WSCommand
			if err := conn.ReadJSON(&cmd); err != nil {
				return
			}
			s.commands.Handle(cmd, reply, triggerStatus)
		}
	}()

	statusTicker := time.NewTicker(statusInterval)
	defer statusTicker.Stop()

	devices := s.devices()
	if err := conn.WriteJSON(s.status(devices)); err != nil {
		return
	}
	if err := conn.WriteJSON(viewMessage(s.screen.View())); err != nil {
		return
	}

	for {
		var msg any
		select {
		case <-done:
			return
		case u, ok := <-updates:
			if !ok {
				return // Screen closed
			}
			if err := conn.WriteJSON(viewMessage(u.View)); err != nil {
				return
			}
			if u.Toast == "" {
				continue
			}
			msg = map[string]any{"type": "toast", "message": u.Toast}
		case v := <-replies:
			msg = v
		case <-statusUpdate:
			msg = s.status(devices)
		case <-statusTicker.C:
			msg = s.status(devices)
		}
		if err := conn.WriteJSON(msg); err != nil {
			return
		}
	}
}

// SetupRoutes returns an [http.Handler] configured with all application routes.
func (s *Server) SetupRoutes() http.Handler {
	mux := http.NewServeMux()
	auth := s.sessions.AuthMiddleware

	mux.HandleFunc("/login", s.sessions.HandleLogin(loginHTML, func() (string, string) {
		cfg := s.config.Snapshot()
		return cfg.WebUser, cfg.WebPassword
	}))
	mux.HandleFunc("/logout", s.sessions.HandleLogout)

	// WebSocket for all real-time communication
	mux.HandleFunc("/ws", auth(s.handleWebSocket))

	// Static files
	mux.HandleFunc("/", auth(s.handleStatic))

	return mux
}

// staticFile represents an embedded static file with its content type and content.
type staticFile struct {
	contentType string
	content     string
	name        string
}

// staticFiles maps URL paths to their corresponding static file definitions.
var staticFiles = map[string]staticFile{
	"/style.css": {
		contentType: "text/css",
		content:     styleCSS,
		name:        "style.css",
	},
	"/app.js": {
		contentType: "application/javascript",
		content:     appJS,
		name:        "app.js",
	},
}

// handleStatic serves the embedded static web interface files.
func (s *Server) handleStatic(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path
	if path == "/" {
		path = "/index.html"
	}

	// Handle index.html specially (requires template replacement)
	if path == "/index.html" {
		w.Header().Set("Content-Type", "text/html")
		html := strings.Replace(indexHTML, "{{VERSION}}", Version, 1)
		html = strings.ReplaceAll(html, "{{YEAR}}", strconv.Itoa(time.Now().Year()))
		html = strings.ReplaceAll(html, "{{LABEL}}", ui.LabelIdle)
		if _, err := w.Write([]byte(html)); err != nil {
			slog.Error("failed to write index.html", "error", err)
		}
		return
	}

	// Handle other static files via table lookup
	if file, ok := staticFiles[path]; ok {
		w.Header().Set("Content-Type", file.contentType)
		if _, err := w.Write([]byte(file.content)); err != nil {
			slog.Error("failed to write static file", "file", file.name, "error", err)
		}
		return
	}

	// File not found
	http.NotFound(w, r)
}

// Start begins listening and serving HTTP requests on the configured port.
// Returns an *http.Server that can be used for graceful shutdown.
func (s *Server) Start() *http.Server {
	addr := fmt.Sprintf(":%d", s.config.WebPort())
	slog.Info("starting web server", "addr", addr)

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.SetupRoutes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
		}
	}()

	return srv
}
