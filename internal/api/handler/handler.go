package handler

import (
	"net/http"
	"sync"

	"anonchat/backend/internal/chathub"
	"anonchat/backend/internal/config"
	"anonchat/backend/internal/localization"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// Handler містить посилання на ChatHub
type Handler struct {
	Hub       *chathub.Hub
	Localizer *localization.Localizer

	jwtSecret      []byte
	allowedOrigins map[string]bool

	limitersMu sync.Mutex
	limiters   map[string]*rate.Limiter
}

func NewHandler(hub *chathub.Hub, localizer *localization.Localizer, cfg *config.Config) *Handler {
	origins := make(map[string]bool, len(cfg.AllowedOrigins))
	for _, o := range cfg.AllowedOrigins {
		origins[o] = true
	}

	return &Handler{
		Hub:            hub,
		Localizer:      localizer,
		jwtSecret:      []byte(cfg.JWTSecret),
		allowedOrigins: origins,
		limiters:       make(map[string]*rate.Limiter),
	}
}

// Register mounts the routes on r.
func (h *Handler) Register(r gin.IRoutes) {
	r.GET("/health", h.Health)
	r.GET("/ws", h.ServeWebSocket)
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "ok",
		"connections": h.Hub.Presence.Count(),
		"activeRooms": h.Hub.Relay.ActiveRooms(),
	})
}

// allowUpgrade applies the per-IP upgrade rate limit.
func (h *Handler) allowUpgrade(ip string) bool {
	h.limitersMu.Lock()
	defer h.limitersMu.Unlock()

	l, ok := h.limiters[ip]
	if !ok {
		l = rate.NewLimiter(rate.Limit(config.UpgradesPerSecond), config.UpgradeBurst)
		h.limiters[ip] = l
	}
	return l.Allow()
}
