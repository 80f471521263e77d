package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Marga-Ghale/meetup-bot-backend/internal/service"
	"github.com/Marga-Ghale/meetup-bot-backend/internal/types"
)

// AdminHandler exposes manual runs and read-only run state to operators.
type AdminHandler struct {
	pairUpService service.PairUpService
	botService    service.BotService
}

func NewAdminHandler(pairUpService service.PairUpService, botService service.BotService) *AdminHandler {
	return &AdminHandler{pairUpService: pairUpService, botService: botService}
}

// TeamResponse is an installed team as listed by the admin API.
type TeamResponse struct {
	TeamID     string `json:"teamId"`
	TenantID   string `json:"tenantId"`
	ServiceURL string `json:"serviceUrl"`
	UpdatedAt  string `json:"updatedAt"`
}

// RunPairUps handles POST /api/admin/pairups/run. The run is not cancelled
// when the client disconnects.
func (h *AdminHandler) RunPairUps(c *gin.Context) {
	summary, err := h.pairUpService.Run(context.WithoutCancel(c.Request.Context()), types.TriggerManual)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// LastPairUp handles GET /api/admin/pairups/last
func (h *AdminHandler) LastPairUp(c *gin.Context) {
	summary := h.pairUpService.LastRun(types.RunPairUp)
	if summary == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "No pair-up run yet"})
		return
	}
	c.JSON(http.StatusOK, summary)
}

// SendMoodPoll handles POST /api/admin/moods/poll
func (h *AdminHandler) SendMoodPoll(c *gin.Context) {
	summary, err := h.pairUpService.SendMoodPoll(context.WithoutCancel(c.Request.Context()), types.TriggerManual)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// ListTeams handles GET /api/admin/teams
func (h *AdminHandler) ListTeams(c *gin.Context) {
	teams, err := h.botService.ListTeams(c.Request.Context())
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response := make([]TeamResponse, 0, len(teams))
	for _, t := range teams {
		response = append(response, TeamResponse{
			TeamID:     t.TeamID,
			TenantID:   t.TenantID,
			ServiceURL: t.ServiceURL,
			UpdatedAt:  t.UpdatedAt.UTC().Format(time.RFC3339),
		})
	}
	c.JSON(http.StatusOK, response)
}

// TodaysMoods handles GET /api/admin/teams/:teamId/moods/today
func (h *AdminHandler) TodaysMoods(c *gin.Context) {
	summary, err := h.botService.SummarizeMoods(c.Request.Context(), c.Param("teamId"))
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}
