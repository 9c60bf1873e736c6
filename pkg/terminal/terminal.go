// Package terminal serves calculator sessions over websockets. Every
// connection owns one calc.Session for its lifetime.
package terminal

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/antibyte/retrocalc/pkg/auth"
	"github.com/antibyte/retrocalc/pkg/calc"
	"github.com/antibyte/retrocalc/pkg/configuration"
	"github.com/antibyte/retrocalc/pkg/logger"
	"github.com/antibyte/retrocalc/pkg/shared"
	"github.com/antibyte/retrocalc/pkg/transcript"
)

// TerminalHandler verwaltet WebSocket-Verbindungen und Rechner-Sitzungen
type TerminalHandler struct {
	upgrader      websocket.Upgrader
	clientManager *ClientManager
	transcript    *transcript.Store
	banner        *shared.Banner

	mutex   sync.RWMutex
	clients map[*Client]bool
}

// NewTerminalHandler creates a handler. store may be nil when the
// transcript is disabled; banner may be nil for the built-in greeting.
func NewTerminalHandler(store *transcript.Store, banner *shared.Banner) *TerminalHandler {
	if banner == nil {
		banner = shared.NewBanner()
	}
	return &TerminalHandler{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
		clientManager: NewClientManager(),
		transcript:    store,
		banner:        banner,
		clients:       make(map[*Client]bool),
	}
}

// checkOrigin allows same-host origins and, if configured, any origin.
func checkOrigin(r *http.Request) bool {
	if configuration.GetBool("Network", "allow_any_origin", false) {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	return origin == "http://"+r.Host || origin == "https://"+r.Host
}

// Clients returns the client manager.
func (h *TerminalHandler) Clients() *ClientManager {
	return h.clientManager
}

// HandleWebSocket authenticates the request, upgrades it and starts the
// read and write pumps of a new client.
func (h *TerminalHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	ipAddress := auth.GetClientIP(r)
	logger.WebSocketDebug("New WebSocket connection attempt from %s", ipAddress)

	if err := h.clientManager.CheckRateLimit(ipAddress); err != nil {
		http.Error(w, "Too many requests", http.StatusTooManyRequests)
		return
	}

	tokenString, err := auth.ExtractTokenFromRequest(r)
	if err != nil {
		logger.AuthWarn("WebSocket request without token from %s: %v", ipAddress, err)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	claims, err := auth.ValidateSessionToken(tokenString)
	if err != nil {
		logger.AuthWarn("Invalid token in WebSocket request from %s: %v", ipAddress, err)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	if err := ValidateSessionID(claims.SessionID); err != nil {
		logger.SecurityWarn("Rejected session id from %s: %v", ipAddress, err)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	client := newClient(h, claims.SessionID, ipAddress)
	if err := h.clientManager.AddClient(client.sessionID, client); err != nil {
		logger.SecurityWarn("Connection from %s refused: %v", ipAddress, err)
		status := http.StatusServiceUnavailable
		if h.clientManager.HasClient(client.sessionID) {
			status = http.StatusConflict
		}
		http.Error(w, err.Error(), status)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written an HTTP error response.
		logger.WebSocketError("WebSocket upgrade failed for %s: %v", ipAddress, err)
		h.clientManager.RemoveClient(client.sessionID, client)
		return
	}
	client.conn = conn
	if h.transcript != nil {
		client.recorder = h.transcript.ForSession(client.sessionID)
	}

	h.mutex.Lock()
	h.clients[client] = true
	h.mutex.Unlock()

	logger.WebSocketInfo("Session %s established for %s (%d clients)", client.sessionID, ipAddress, h.clientManager.GetClientCount())

	greeting, err := h.banner.Render(shared.BannerData{SessionID: client.sessionID})
	if err != nil {
		logger.WebSocketWarn("Banner rendering failed: %v", err)
		greeting = "RetroCalc session " + client.sessionID
	}
	client.queue(shared.Message{Type: shared.MessageTypeSession, SessionID: client.sessionID, Content: greeting})

	go client.writePump()
	go client.readPump()
}

// HandleTranscript returns the journal of the caller's own session as JSON.
// It must be wrapped in auth.RequireSessionToken.
func (h *TerminalHandler) HandleTranscript(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if h.transcript == nil {
		http.Error(w, "Transcript disabled", http.StatusNotFound)
		return
	}
	own, ok := auth.GetSessionIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	sessionID := r.URL.Query().Get("session")
	if sessionID == "" {
		sessionID = own
	}
	if err := ValidateSessionID(sessionID); err != nil {
		http.Error(w, "Invalid session id", http.StatusBadRequest)
		return
	}
	if sessionID != own {
		logger.SecurityWarn("Session %s tried to read transcript of %s", own, sessionID)
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	entries, err := h.transcript.List(r.Context(), sessionID)
	if err != nil {
		logger.Error(logger.AreaTranscript, "Listing transcript for %s failed: %v", sessionID, err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	json.NewEncoder(w).Encode(entries)
}

// RunIdleSweeper closes connections idle for longer than
// [Server] max_inactive_time until ctx is cancelled.
func (h *TerminalHandler) RunIdleSweeper(ctx context.Context) {
	maxIdle := configuration.GetDuration("Server", "max_inactive_time", 30*time.Minute)
	if maxIdle <= 0 {
		return
	}
	ticker := time.NewTicker(maxIdle / 4)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, client := range h.clientManager.IdleClients(maxIdle) {
				logger.Info(logger.AreaSession, "Closing idle session %s", client.sessionID)
				client.close()
			}
			h.clientManager.pruneRateLimits()
		}
	}
}

// Shutdown closes all open connections.
func (h *TerminalHandler) Shutdown() {
	h.mutex.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mutex.RUnlock()

	for _, c := range clients {
		c.close()
	}
}

func (h *TerminalHandler) cleanupClient(client *Client) {
	h.mutex.Lock()
	delete(h.clients, client)
	h.mutex.Unlock()
	h.clientManager.RemoveClient(client.sessionID, client)
	client.closeSend()
	logger.WebSocketInfo("Session %s closed", client.sessionID)
}

// exec runs one statement of a client's session and turns the outcome into
// a message. ok is false for empty statements.
func exec(sess *calc.Session, stmt *calc.Statement) (msg shared.Message, ok bool) {
	if stmt.Empty() {
		return shared.Message{}, false
	}
	res, err := sess.Exec(stmt)
	if err != nil {
		return errorMessage(stmt.Source, err), true
	}
	return shared.Message{Type: shared.MessageTypeOutput, Content: res.Text, Input: stmt.Source}, true
}

func errorMessage(input string, err error) shared.Message {
	msg := shared.Message{Type: shared.MessageTypeError, Content: err.Error(), Input: input}
	if kind, ok := calc.KindOf(err); ok {
		msg.Kind = kind.String()
	}
	return msg
}
