package chathub

import (
	"sync"

	"anonchat/backend/internal/config"
	"anonchat/backend/internal/localization"
	"anonchat/backend/internal/models"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// Client is one live connection as seen by the hub. Implementations must make Send
// and Close safe to call from any goroutine and never block on a slow peer.
type Client interface {
	// ConnID is unique per connection, unlike the user id.
	ConnID() string
	// AuthenticatedID is the user id proven by the transport, or "" if the
	// connection was not authenticated.
	AuthenticatedID() string

	GetUserID() string
	GetUsername() string
	SetIdentity(models.Identity)
	Lang() string
	SetLang(string)

	// GetRoomID returns the room this connection is bound to, or "".
	GetRoomID() string
	SetRoomID(string)

	// Allow consumes one token of the connection's inbound rate limit.
	Allow() bool

	Send(models.Notification)
	Close()
}

// Session holds the per-connection state shared by every Client implementation.
type Session struct {
	connID  string
	authID  string
	limiter *rate.Limiter

	mu       sync.RWMutex
	identity models.Identity
	lang     string
	roomID   string
}

func NewSession(authenticatedID string) *Session {
	return &Session{
		connID:  uuid.NewString(),
		authID:  authenticatedID,
		limiter: rate.NewLimiter(rate.Limit(config.MessagesPerSecond), config.MessageBurst),
		lang:    localization.DefaultLang,
	}
}

func (s *Session) ConnID() string          { return s.connID }
func (s *Session) AuthenticatedID() string { return s.authID }
func (s *Session) Allow() bool             { return s.limiter.Allow() }

func (s *Session) GetUserID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.identity.UserID
}

func (s *Session) GetUsername() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.identity.Username
}

func (s *Session) SetIdentity(id models.Identity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.identity = id
}

func (s *Session) Lang() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lang
}

func (s *Session) SetLang(lang string) {
	if lang == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lang = lang
}

func (s *Session) GetRoomID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.roomID
}

func (s *Session) SetRoomID(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.roomID = id
}

// releaseRoom unbinds c from roomID. A connection already bound elsewhere is left alone.
func releaseRoom(c Client, roomID string) {
	if c != nil && c.GetRoomID() == roomID {
		c.SetRoomID("")
	}
}
