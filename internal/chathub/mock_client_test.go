package chathub_test

import (
	"sync"

	"anonchat/backend/internal/chathub"
	"anonchat/backend/internal/models"
)

// MockClient records every notification instead of writing it to a socket.
type MockClient struct {
	*chathub.Session

	mu     sync.Mutex
	recv   []models.Notification
	closed bool
}

func newMockClient(userID string) *MockClient {
	c := &MockClient{Session: chathub.NewSession("")}
	if userID != "" {
		c.SetIdentity(models.Identity{UserID: userID, Username: "name_" + userID})
	}
	return c
}

func (c *MockClient) Send(n models.Notification) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.recv = append(c.recv, n)
	}
}

func (c *MockClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *MockClient) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *MockClient) Received() []models.Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]models.Notification(nil), c.recv...)
}

// Of returns the received notifications of the given type.
func (c *MockClient) Of(notifyType string) []models.Notification {
	var out []models.Notification
	for _, n := range c.Received() {
		if n.Type == notifyType {
			out = append(out, n)
		}
	}
	return out
}

func (c *MockClient) Last() models.Notification {
	recv := c.Received()
	if len(recv) == 0 {
		return models.Notification{}
	}
	return recv[len(recv)-1]
}

func (c *MockClient) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.recv = nil
}
