package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Marga-Ghale/meetup-bot-backend/internal/service"
)

// Handlers contains all HTTP handlers
type Handlers struct {
	Messages *MessagesHandler
	Admin    *AdminHandler
}

// NewHandlers creates all handlers
func NewHandlers(services *service.Services) *Handlers {
	return &Handlers{
		Messages: NewMessagesHandler(services.Bot),
		Admin:    NewAdminHandler(services.PairUp, services.Bot),
	}
}

// handleServiceError maps service errors to HTTP responses
func handleServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrTeamNotInstalled):
		c.JSON(http.StatusNotFound, gin.H{"error": "Bot is not installed in this team"})
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Resource not found"})
	case errors.Is(err, service.ErrRunInProgress):
		c.JSON(http.StatusConflict, gin.H{"error": "A run of this kind is already in progress"})
	case errors.Is(err, service.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		log.Printf("❌ [API] %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
