package server

import (
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"
)

// upgrader accepts the talk page from the host it was served by and from
// browsers on the studio LAN.
var upgrader = websocket.Upgrader{
	CheckOrigin: allowedOrigin,
}

// allowedOrigin reports whether a WebSocket handshake may proceed. Requests
// without an Origin header do not come from a browser page and are allowed.
func allowedOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		slog.Warn("rejected WebSocket connection", "origin", origin)
		return false
	}
	if strings.EqualFold(u.Host, r.Host) || localHost(u.Hostname()) {
		return true
	}
	slog.Warn("rejected WebSocket connection", "origin", origin)
	return false
}

// localHost reports whether host names this machine or a private network address.
func localHost(host string) bool {
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && (ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast())
}

// UpgradeConnection upgrades an HTTP connection to WebSocket.
func UpgradeConnection(w http.ResponseWriter, r *http.Request) (*websocket.Conn, error) {
	return upgrader.Upgrade(w, r, nil)
}
