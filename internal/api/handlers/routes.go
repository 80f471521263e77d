package handlers

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/Marga-Ghale/meetup-bot-backend/internal/api/middleware"
	"github.com/Marga-Ghale/meetup-bot-backend/internal/socket"
)

// RouterConfig carries everything the router needs besides the handlers.
type RouterConfig struct {
	BotAuth         middleware.BotAuthConfig
	AdminAPIKeyHash string
	AllowOrigins    []string
	// WebSocket serves the admin live feed; nil disables it.
	WebSocket *socket.Handler
	// Health adds component status to GET /health.
	Health func() gin.H
}

// NewRouter wires middleware and routes.
func NewRouter(h *Handlers, rc RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger())

	origins := rc.AllowOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000", "http://localhost:5173"}
	}
	r.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Admin-Key"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Health check
	r.GET("/health", func(c *gin.Context) {
		body := gin.H{
			"status":    "healthy",
			"timestamp": time.Now(),
		}
		if rc.Health != nil {
			for k, v := range rc.Health() {
				body[k] = v
			}
		}
		c.JSON(http.StatusOK, body)
	})

	api := r.Group("/api")
	{
		api.POST("/messages", middleware.BotAuth(rc.BotAuth), h.Messages.Receive)

		// The feed checks the key itself since browsers can't send headers on upgrade.
		if rc.WebSocket != nil {
			api.GET("/admin/ws", rc.WebSocket.HandleWebSocket)
		}

		admin := api.Group("/admin")
		admin.Use(middleware.AdminKey(rc.AdminAPIKeyHash))
		{
			admin.POST("/pairups/run", h.Admin.RunPairUps)
			admin.GET("/pairups/last", h.Admin.LastPairUp)
			admin.POST("/moods/poll", h.Admin.SendMoodPoll)
			admin.GET("/teams", h.Admin.ListTeams)
			admin.GET("/teams/:teamId/moods/today", h.Admin.TodaysMoods)
		}
	}

	return r
}
