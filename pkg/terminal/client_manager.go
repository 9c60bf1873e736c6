package terminal

import (
	"fmt"
	"sync"
	"time"

	"github.com/antibyte/retrocalc/pkg/configuration"
	"github.com/antibyte/retrocalc/pkg/logger"
)

// Konstanten für Client-Management
const (
	MaxClientsDefault = 100 // Maximale Anzahl gleichzeitiger Clients
)

// RateLimitInfo speichert Rate-Limiting-Informationen pro IP
type RateLimitInfo struct {
	requests  int
	lastReset time.Time
}

// ClientManager tracks connected clients by session id and rate limits
// requests per IP address.
type ClientManager struct {
	clients    map[string]*Client        // sessionID -> Client
	rateLimits map[string]*RateLimitInfo // ipAddress -> RateLimitInfo
	mu         sync.RWMutex

	maxClients  int
	maxRequests int
	window      time.Duration
	now         func() time.Time
}

// NewClientManager creates a manager with limits from the [Server] section.
func NewClientManager() *ClientManager {
	return &ClientManager{
		clients:     make(map[string]*Client),
		rateLimits:  make(map[string]*RateLimitInfo),
		maxClients:  configuration.GetInt("Server", "max_sessions", MaxClientsDefault),
		maxRequests: configuration.GetInt("Server", "rate_limit_requests", 200),
		window:      configuration.GetDuration("Server", "rate_limit_window", time.Minute),
		now:         time.Now,
	}
}

// AddClient registers client under sessionID. It fails when the server is
// full or the session is already connected.
func (cm *ClientManager) AddClient(sessionID string, client *Client) error {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	if _, exists := cm.clients[sessionID]; exists {
		return fmt.Errorf("session %s already connected", sessionID)
	}
	if cm.maxClients > 0 && len(cm.clients) >= cm.maxClients {
		return fmt.Errorf("maximum of %d sessions reached", cm.maxClients)
	}
	cm.clients[sessionID] = client
	logger.Debug(logger.AreaSession, "Client added for session %s", sessionID)
	return nil
}

// RemoveClient entfernt einen Client
func (cm *ClientManager) RemoveClient(sessionID string, client *Client) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	if current, exists := cm.clients[sessionID]; exists && current == client {
		delete(cm.clients, sessionID)
		logger.Debug(logger.AreaSession, "Client removed for session %s", sessionID)
	}
}

// GetClientCount gibt die Anzahl der verbundenen Clients zurück
func (cm *ClientManager) GetClientCount() int {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return len(cm.clients)
}

// HasClient prüft, ob ein Client für die Session existiert
func (cm *ClientManager) HasClient(sessionID string) bool {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	_, exists := cm.clients[sessionID]
	return exists
}

// IdleClients returns the clients whose last activity is older than maxIdle.
func (cm *ClientManager) IdleClients(maxIdle time.Duration) []*Client {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	cutoff := cm.now().Add(-maxIdle)
	var idle []*Client
	for _, client := range cm.clients {
		if client.LastActivity().Before(cutoff) {
			idle = append(idle, client)
		}
	}
	return idle
}

// CheckRateLimit prüft das Rate-Limiting für eine IP-Adresse
func (cm *ClientManager) CheckRateLimit(ipAddress string) error {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	now := cm.now()

	rateLimit, exists := cm.rateLimits[ipAddress]
	if !exists {
		rateLimit = &RateLimitInfo{lastReset: now}
		cm.rateLimits[ipAddress] = rateLimit
	}

	// Reset Zähler wenn das Fenster abgelaufen ist
	if now.Sub(rateLimit.lastReset) > cm.window {
		rateLimit.requests = 0
		rateLimit.lastReset = now
	}
	rateLimit.requests++
	if cm.maxRequests > 0 && rateLimit.requests > cm.maxRequests {
		logger.SecurityWarn("Rate limit exceeded for IP %s: %d requests in %v", ipAddress, rateLimit.requests, cm.window)
		return fmt.Errorf("rate limit exceeded: too many requests from %s", ipAddress)
	}
	return nil
}

// pruneRateLimits drops rate limit entries whose window has expired.
func (cm *ClientManager) pruneRateLimits() {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	now := cm.now()
	for ip, info := range cm.rateLimits {
		if now.Sub(info.lastReset) > cm.window {
			delete(cm.rateLimits, ip)
		}
	}
}
