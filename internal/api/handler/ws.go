package handler

import (
	"net/http"

	"anonchat/backend/internal/chathub"
	"anonchat/backend/internal/pkg/logx"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

func (h *Handler) upgrader() *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(h.allowedOrigins) == 0 {
				return true
			}
			return h.allowedOrigins[r.Header.Get("Origin")]
		},
	}
}

// ServeWebSocket оновлює HTTP-з'єднання до WebSocket
func (h *Handler) ServeWebSocket(c *gin.Context) {
	if !h.allowUpgrade(c.ClientIP()) {
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Too many connection attempts"})
		return
	}

	// Without a secret the identity comes from the login event alone.
	var userID string
	if len(h.jwtSecret) > 0 {
		token, err := bearerToken(c)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization token missing"})
			return
		}
		userID, err = h.validateAndGetUserID(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token or expired"})
			return
		}
	}

	conn, err := h.upgrader().Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		logx.Warn("Failed to upgrade connection", "ip", c.ClientIP(), "error", err.Error())
		return
	}

	client := chathub.NewWebSocketClient(conn, h.Hub, h.Localizer, userID)
	logx.Info("Connection opened", "conn_id", client.ConnID(), "ip", c.ClientIP())
	client.Run()
}
