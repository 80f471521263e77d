package handlers

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Marga-Ghale/meetup-bot-backend/internal/api/middleware"
	"github.com/Marga-Ghale/meetup-bot-backend/internal/connector"
	"github.com/Marga-Ghale/meetup-bot-backend/internal/service"
)

// MessagesHandler is the Bot Framework webhook.
type MessagesHandler struct {
	botService service.BotService
}

func NewMessagesHandler(botService service.BotService) *MessagesHandler {
	return &MessagesHandler{botService: botService}
}

// Receive handles POST /api/messages
func (h *MessagesHandler) Receive(c *gin.Context) {
	var a connector.Activity
	if err := c.ShouldBindJSON(&a); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if trusted := middleware.TrustedServiceURL(c); trusted != "" && !middleware.SameServiceURL(trusted, a.ServiceURL) {
		log.Printf("❌ [Messages] serviceUrl %q does not match token claim %q", a.ServiceURL, trusted)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "serviceUrl does not match token"})
		return
	}

	if err := h.botService.HandleActivity(c.Request.Context(), &a); err != nil {
		log.Printf("❌ [Messages] Failed to handle %s activity: %v", a.Type, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process activity"})
		return
	}

	c.Status(http.StatusOK)
}
