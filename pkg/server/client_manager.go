package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/antibyte/retrocalc/pkg/logger"
	"github.com/antibyte/retrocalc/pkg/shared"
)

var (
	ErrTooManyClients = errors.New("too many clients")
	ErrRateLimited    = errors.New("rate limit exceeded")
)

// rateLimitInfo counts the messages of one IP in the current window.
type rateLimitInfo struct {
	requests  int
	lastReset time.Time
}

// ClientManager tracks websocket clients by session id and rate-limits them
// by IP address.
type ClientManager struct {
	clients    map[string]*Client
	rateLimits map[string]*rateLimitInfo
	maxClients int
	rateLimit  int
	window     time.Duration
	now        func() time.Time
	mu         sync.RWMutex
}

// NewClientManager creates a manager allowing maxClients connections and
// rateLimit messages per IP and window. Zero limits disable the check.
func NewClientManager(maxClients, rateLimit int, window time.Duration) *ClientManager {
	return &ClientManager{
		clients:    make(map[string]*Client),
		rateLimits: make(map[string]*rateLimitInfo),
		maxClients: maxClients,
		rateLimit:  rateLimit,
		window:     window,
		now:        time.Now,
	}
}

// AddClient registers c for its session. A previous client of the same
// session is closed and replaced.
func (cm *ClientManager) AddClient(c *Client) error {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	old, exists := cm.clients[c.sessionID]
	if !exists && cm.maxClients > 0 && len(cm.clients) >= cm.maxClients {
		logger.SecurityWarn("Client limit of %d reached, rejecting %s", cm.maxClients, c.ip)
		return ErrTooManyClients
	}
	if exists {
		logger.WebSocketInfo("Replacing client of session %s", c.sessionID)
		old.close()
	}
	cm.clients[c.sessionID] = c
	logger.WebSocketDebug("Client added for session %s", c.sessionID)
	return nil
}

// RemoveClient unregisters c and closes it. It is a no-op when c has already
// been replaced.
func (cm *ClientManager) RemoveClient(c *Client) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if cur, exists := cm.clients[c.sessionID]; exists && cur == c {
		delete(cm.clients, c.sessionID)
		logger.WebSocketDebug("Client removed for session %s", c.sessionID)
	}
	c.close()
}

// ClientCount returns the number of connected clients.
func (cm *ClientManager) ClientCount() int {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return len(cm.clients)
}

// Full reports whether a new session could not connect now.
func (cm *ClientManager) Full() bool {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.maxClients > 0 && len(cm.clients) >= cm.maxClients
}

// HasClient reports whether sessionID has a connected client.
func (cm *ClientManager) HasClient(sessionID string) bool {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	_, exists := cm.clients[sessionID]
	return exists
}

// CheckRateLimit counts one message from ipAddress and fails once the
// window's budget is used up.
func (cm *ClientManager) CheckRateLimit(ipAddress string) error {
	if cm.rateLimit <= 0 {
		return nil
	}

	cm.mu.Lock()
	defer cm.mu.Unlock()

	now := cm.now()
	info, exists := cm.rateLimits[ipAddress]
	if !exists {
		info = &rateLimitInfo{lastReset: now}
		cm.rateLimits[ipAddress] = info
	}

	if now.Sub(info.lastReset) > cm.window {
		info.requests = 0
		info.lastReset = now
	}
	info.requests++
	if info.requests > cm.rateLimit {
		if info.requests == cm.rateLimit+1 {
			logger.SecurityWarn("Rate limit exceeded for IP %s: %d messages in %v", ipAddress, info.requests, cm.window)
		}
		return fmt.Errorf("%w: too many messages from %s", ErrRateLimited, ipAddress)
	}
	return nil
}

// PruneRateLimits forgets IPs whose window has passed.
func (cm *ClientManager) PruneRateLimits() {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	now := cm.now()
	for ip, info := range cm.rateLimits {
		if now.Sub(info.lastReset) > cm.window {
			delete(cm.rateLimits, ip)
		}
	}
}

// CloseAll disconnects every client.
func (cm *ClientManager) CloseAll() {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	for id, c := range cm.clients {
		c.close()
		delete(cm.clients, id)
	}
}

func marshalMessage(message shared.ServerMessage) ([]byte, error) {
	data, err := json.Marshal(message)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal message: %w", err)
	}
	return data, nil
}
