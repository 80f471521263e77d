package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Marga-Ghale/meetup-bot-backend/internal/config"
	"github.com/Marga-Ghale/meetup-bot-backend/internal/connector"
	"github.com/Marga-Ghale/meetup-bot-backend/internal/email"
	"github.com/Marga-Ghale/meetup-bot-backend/internal/notification"
	"github.com/Marga-Ghale/meetup-bot-backend/internal/repository"
	"github.com/Marga-Ghale/meetup-bot-backend/internal/socket"
)

var (
	ErrNotFound         = errors.New("resource not found")
	ErrTeamNotInstalled = errors.New("bot is not installed in team")
	ErrRunInProgress    = errors.New("a run of this kind is already in progress")
	ErrInvalidInput     = errors.New("invalid input")
)

// ConsistencyError means data we expected to find was missing, such as a
// newly added member that the roster doesn't list yet.
type ConsistencyError struct {
	TeamID   string
	MemberID string
	Reason   string
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("consistency: team %s member %s: %s", e.TeamID, e.MemberID, e.Reason)
}

func (e *ConsistencyError) Unwrap() error {
	return ErrNotFound
}

// Feed receives live run and lifecycle events. *socket.Broadcaster implements it.
type Feed interface {
	RunStarted(kind, runID, trigger string)
	RunCompleted(kind, runID string, summary map[string]interface{})
	PairNotified(runID, teamID string)
	TeamFailed(runID, teamID, reason string)
	TeamInstalled(teamID, tenantID string, installed bool)
	MoodRecorded(teamID, mood string)
}

// Mailer queues run report emails. *email.EmailQueue implements it.
type Mailer interface {
	EnqueueRunReport(to []string, data email.RunReportData)
}

type noopFeed struct{}

func (noopFeed) RunStarted(kind, runID, trigger string)                          {}
func (noopFeed) RunCompleted(kind, runID string, summary map[string]interface{}) {}
func (noopFeed) PairNotified(runID, teamID string)                               {}
func (noopFeed) TeamFailed(runID, teamID, reason string)                         {}
func (noopFeed) TeamInstalled(teamID, tenantID string, installed bool)           {}
func (noopFeed) MoodRecorded(teamID, mood string)                                {}

// ============================================
// Services Container
// ============================================

type Services struct {
	PairUp      PairUpService
	Bot         BotService
	Broadcaster *socket.Broadcaster
}

// ServiceDeps contains all dependencies needed to create services
type ServiceDeps struct {
	Config      *config.Config
	Repos       *repository.Repositories
	Client      connector.Client
	NotifSvc    *notification.Service
	EmailQueue  *email.EmailQueue
	Broadcaster *socket.Broadcaster
}

func NewServices(deps *ServiceDeps) *Services {
	var feed Feed = noopFeed{}
	if deps.Broadcaster != nil {
		feed = deps.Broadcaster
	}
	var mailer Mailer
	if deps.EmailQueue != nil {
		mailer = deps.EmailQueue
	}

	cfg := deps.Config
	return &Services{
		PairUp: NewPairUpService(
			PairUpConfig{
				BotID:             cfg.BotID(),
				MaxPairUpsPerTeam: cfg.MaxPairUpsPerTeam,
				Concurrency:       cfg.PairUpConcurrency,
				OpsEmails:         splitEmails(cfg.OpsEmail),
			},
			deps.Repos.TeamRepo,
			deps.Repos.OptInRepo,
			deps.Client,
			deps.NotifSvc,
			feed,
			mailer,
		),
		Bot: NewBotService(
			BotConfig{
				BotID:          cfg.BotID(),
				SummaryTrigger: cfg.SummaryTrigger,
			},
			deps.Repos,
			deps.Client,
			deps.NotifSvc,
			feed,
		),
		Broadcaster: deps.Broadcaster,
	}
}

func splitEmails(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
