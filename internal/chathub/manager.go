package chathub

import (
	"sync"

	"anonchat/backend/internal/models"
	"anonchat/backend/internal/pkg/logx"
)

// ManagerService is the presence registry: at most one live connection per user.
type ManagerService struct {
	mu      sync.RWMutex
	clients map[string]Client
}

func NewManagerService() *ManagerService {
	return &ManagerService{
		clients: make(map[string]Client),
	}
}

// Register installs c as the user's connection. A previously registered connection
// of the same user is told session_superseded and closed first.
func (m *ManagerService) Register(c Client) {
	userID := c.GetUserID()

	m.mu.Lock()
	defer m.mu.Unlock()

	if prev, ok := m.clients[userID]; ok && prev != c {
		logx.Info("Superseding previous connection", "user_id", userID, "old_conn", prev.ConnID(), "new_conn", c.ConnID())
		prev.Send(models.Notification{Type: models.NotifySessionSuperseded})
		prev.Close()
	}
	m.clients[userID] = c
}

func (m *ManagerService) Lookup(userID string) (Client, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.clients[userID]
	return c, ok
}

// IsLive reports whether connID is the registered connection of userID.
func (m *ManagerService) IsLive(userID, connID string) bool {
	c, ok := m.Lookup(userID)
	return ok && c.ConnID() == connID
}

// Remove deletes c's mapping. It returns false when c was never registered or has
// been superseded.
func (m *ManagerService) Remove(c Client) bool {
	userID := c.GetUserID()

	m.mu.Lock()
	defer m.mu.Unlock()

	if cur, ok := m.clients[userID]; ok && cur == c {
		delete(m.clients, userID)
		return true
	}
	return false
}

func (m *ManagerService) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.clients)
}
