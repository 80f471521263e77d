package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/Marga-Ghale/meetup-bot-backend/internal/api/middleware"
	"github.com/Marga-Ghale/meetup-bot-backend/internal/config"
	"github.com/Marga-Ghale/meetup-bot-backend/internal/connector"
	"github.com/Marga-Ghale/meetup-bot-backend/internal/notification"
	"github.com/Marga-Ghale/meetup-bot-backend/internal/repository"
	"github.com/Marga-Ghale/meetup-bot-backend/internal/service"
)

const (
	adminKey = "let-me-in"
	svcURL   = "https://smba.example"
)

type testEnv struct {
	router   *gin.Engine
	client   *connector.MemoryClient
	services *service.Services
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	hash, err := bcrypt.GenerateFromPassword([]byte(adminKey), bcrypt.MinCost)
	require.NoError(t, err)

	cfg := &config.Config{
		BotAccountID:      "28:bot",
		BotName:           "MeetupBot",
		PairUpConcurrency: 2,
		SummaryTrigger:    config.DefaultSummaryTrigger,
	}
	client := connector.NewMemoryClient()
	services := service.NewServices(&service.ServiceDeps{
		Config:   cfg,
		Repos:    repository.NewRepositories(),
		Client:   client,
		NotifSvc: notification.NewService(notification.Config{BotID: cfg.BotID(), BotName: cfg.BotName}, client, nil),
	})

	router := NewRouter(NewHandlers(services), RouterConfig{
		BotAuth:         middleware.BotAuthConfig{Disabled: true},
		AdminAPIKeyHash: string(hash),
		Health:          func() gin.H { return gin.H{"transport": "memory"} },
	})
	return &testEnv{router: router, client: client, services: services}
}

func (e *testEnv) do(method, path string, body interface{}, admin bool) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if admin {
		req.Header.Set("X-Admin-Key", adminKey)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func member(name string) connector.TeamsChannelAccount {
	return connector.TeamsChannelAccount{
		ID:          "29:" + name,
		Name:        name,
		GivenName:   name,
		Surname:     "Doe",
		AADObjectID: "aad-" + name,
	}
}

func botAdded(teamID string) *connector.Activity {
	return &connector.Activity{
		Type:         connector.ActivityTypeConversationUpdate,
		ServiceURL:   svcURL,
		Recipient:    &connector.ChannelAccount{ID: "28:bot"},
		MembersAdded: []connector.ChannelAccount{{ID: "28:bot"}},
		ChannelData: &connector.TeamsChannelData{
			Tenant: &connector.TenantInfo{ID: "tenant"},
			Team:   &connector.TeamInfo{ID: teamID},
		},
	}
}

func TestHealth(t *testing.T) {
	e := newTestEnv(t)
	w := e.do(http.MethodGet, "/health", nil, false)
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "memory", body["transport"])
}

func TestMessagesInstallsTeam(t *testing.T) {
	e := newTestEnv(t)

	w := e.do(http.MethodPost, "/api/messages", botAdded("team-1"), false)
	require.Equal(t, http.StatusOK, w.Code)

	w = e.do(http.MethodGet, "/api/admin/teams", nil, true)
	require.Equal(t, http.StatusOK, w.Code)

	var teams []TeamResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &teams))
	require.Len(t, teams, 1)
	assert.Equal(t, "team-1", teams[0].TeamID)
	assert.Equal(t, "tenant", teams[0].TenantID)
}

func TestMessagesRejectsGarbage(t *testing.T) {
	e := newTestEnv(t)
	req := httptest.NewRequest(http.MethodPost, "/api/messages", bytes.NewBufferString("{not json"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMessagesRepliesToMood(t *testing.T) {
	e := newTestEnv(t)
	a := &connector.Activity{
		Type:         connector.ActivityTypeMessage,
		ServiceURL:   svcURL,
		From:         &connector.ChannelAccount{ID: "29:ann", AADObjectID: "aad-ann"},
		Recipient:    &connector.ChannelAccount{ID: "28:bot"},
		Conversation: &connector.ConversationAccount{ID: "conv"},
		Value:        json.RawMessage(`{"mood":"happy"}`),
		ChannelData:  &connector.TeamsChannelData{Tenant: &connector.TenantInfo{ID: "tenant"}},
	}

	w := e.do(http.MethodPost, "/api/messages", a, false)
	require.Equal(t, http.StatusOK, w.Code)

	replies := e.client.Replies()
	require.Len(t, replies, 1)
	assert.Equal(t, service.ReplyHappy, replies[0].Text)
}

func TestAdminRequiresKey(t *testing.T) {
	e := newTestEnv(t)
	assert.Equal(t, http.StatusUnauthorized, e.do(http.MethodGet, "/api/admin/teams", nil, false).Code)
	assert.Equal(t, http.StatusUnauthorized, e.do(http.MethodPost, "/api/admin/pairups/run", nil, false).Code)
}

func TestAdminRunPairUps(t *testing.T) {
	e := newTestEnv(t)
	require.Equal(t, http.StatusOK, e.do(http.MethodPost, "/api/messages", botAdded("team-1"), false).Code)
	e.client.SetRoster("team-1", "Team One", []connector.TeamsChannelAccount{member("ann"), member("bob")})

	assert.Equal(t, http.StatusNotFound, e.do(http.MethodGet, "/api/admin/pairups/last", nil, true).Code)

	w := e.do(http.MethodPost, "/api/admin/pairups/run", nil, true)
	require.Equal(t, http.StatusOK, w.Code)

	var summary service.RunSummary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &summary))
	assert.Equal(t, 1, summary.PairsNotified)
	assert.Equal(t, "manual", summary.Trigger)
	assert.Len(t, e.client.SentTo("29:ann"), 1)

	w = e.do(http.MethodGet, "/api/admin/pairups/last", nil, true)
	require.Equal(t, http.StatusOK, w.Code)
	var last service.RunSummary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &last))
	assert.Equal(t, summary.RunID, last.RunID)
}

func TestAdminMoodPollAndSummary(t *testing.T) {
	e := newTestEnv(t)
	require.Equal(t, http.StatusOK, e.do(http.MethodPost, "/api/messages", botAdded("team-1"), false).Code)
	e.client.SetRoster("team-1", "Team One", []connector.TeamsChannelAccount{member("ann"), member("bob")})

	w := e.do(http.MethodPost, "/api/admin/moods/poll", nil, true)
	require.Equal(t, http.StatusOK, w.Code)
	var poll service.RunSummary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &poll))
	assert.Equal(t, 2, poll.Delivered)

	_, err := e.services.Bot.RecordMood(context.Background(), "tenant", "team-1", "aad-ann", "happy")
	require.NoError(t, err)

	w = e.do(http.MethodGet, "/api/admin/teams/team-1/moods/today", nil, true)
	require.Equal(t, http.StatusOK, w.Code)
	var moods service.MoodSummary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &moods))
	assert.Equal(t, 1, moods.ResponseCount)
	assert.Equal(t, "100", moods.HappyShare)
}

func TestAdminMoodsForUnknownTeam(t *testing.T) {
	e := newTestEnv(t)
	w := e.do(http.MethodGet, "/api/admin/teams/nope/moods/today", nil, true)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

type busyPairUps struct{ service.PairUpService }

func (busyPairUps) Run(ctx context.Context, trigger string) (*service.RunSummary, error) {
	return nil, service.ErrRunInProgress
}

func TestAdminRunConflict(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewAdminHandler(busyPairUps{}, nil)
	r.POST("/run", h.RunPairUps)

	req := httptest.NewRequest(http.MethodPost, "/run", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusConflict, w.Code)
}
