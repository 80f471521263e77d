package service

import (
	"context"
	"fmt"
	"log"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/Marga-Ghale/meetup-bot-backend/internal/connector"
	"github.com/Marga-Ghale/meetup-bot-backend/internal/email"
	"github.com/Marga-Ghale/meetup-bot-backend/internal/notification"
	"github.com/Marga-Ghale/meetup-bot-backend/internal/pairing"
	"github.com/Marga-Ghale/meetup-bot-backend/internal/repository"
	"github.com/Marga-Ghale/meetup-bot-backend/internal/types"
)

// fallbackTeamName is used on cards when the team name lookup fails.
const fallbackTeamName = "your team"

// ============================================
// Run Summary
// ============================================

// TeamError is one team skipped during a run.
type TeamError struct {
	TeamID string `json:"teamId"`
	Error  string `json:"error"`
}

// RunSummary describes one pair-up or mood poll run.
type RunSummary struct {
	RunID      string    `json:"runId"`
	Kind       string    `json:"kind"`
	Trigger    string    `json:"trigger"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`

	TeamsProcessed int `json:"teamsProcessed"`
	TeamsFailed    int `json:"teamsFailed"`
	// PairsNotified counts pairs whose both deliveries succeeded.
	PairsNotified int `json:"pairsNotified"`
	// MembersDropped counts consenting members left out: the odd member plus
	// anyone beyond the per-team cap.
	MembersDropped int `json:"membersDropped"`
	// Delivered counts mood poll cards sent.
	Delivered        int         `json:"delivered"`
	DeliveryFailures int         `json:"deliveryFailures"`
	Errors           []TeamError `json:"errors"`
}

// Payload flattens the summary for the live feed.
func (s *RunSummary) Payload() map[string]interface{} {
	return map[string]interface{}{
		"runId":            s.RunID,
		"kind":             s.Kind,
		"trigger":          s.Trigger,
		"startedAt":        s.StartedAt,
		"finishedAt":       s.FinishedAt,
		"teamsProcessed":   s.TeamsProcessed,
		"teamsFailed":      s.TeamsFailed,
		"pairsNotified":    s.PairsNotified,
		"membersDropped":   s.MembersDropped,
		"delivered":        s.Delivered,
		"deliveryFailures": s.DeliveryFailures,
		"errors":           s.Errors,
	}
}

func (s *RunSummary) clone() *RunSummary {
	c := *s
	c.Errors = append([]TeamError(nil), s.Errors...)
	return &c
}

// teamResult is what one team contributes to a run.
type teamResult struct {
	pairsNotified    int
	membersDropped   int
	delivered        int
	deliveryFailures int
}

// runAccumulator merges team results from concurrent workers.
type runAccumulator struct {
	mu      sync.Mutex
	summary *RunSummary
}

func (a *runAccumulator) add(teamID string, res teamResult, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.summary.TeamsProcessed++
	a.summary.PairsNotified += res.pairsNotified
	a.summary.MembersDropped += res.membersDropped
	a.summary.Delivered += res.delivered
	a.summary.DeliveryFailures += res.deliveryFailures
	if err != nil {
		a.summary.TeamsFailed++
		a.summary.Errors = append(a.summary.Errors, TeamError{TeamID: teamID, Error: err.Error()})
	}
}

// ============================================
// PairUp Service
// ============================================

type PairUpService interface {
	// Run pairs up consenting members of every installed team and notifies
	// each pair. Team failures are recorded in the summary, not returned.
	Run(ctx context.Context, trigger string) (*RunSummary, error)
	// SendMoodPoll sends the daily mood card to every member of every installed team.
	SendMoodPoll(ctx context.Context, trigger string) (*RunSummary, error)
	// LastRun returns the most recent finished run of a kind, or nil.
	LastRun(kind string) *RunSummary
}

// PairUpConfig is passed at construction so runs don't read global state.
type PairUpConfig struct {
	BotID string
	// MaxPairUpsPerTeam caps pairs notified per team; 0 means no cap.
	MaxPairUpsPerTeam int
	// Concurrency is how many teams are processed at once; values below 1 mean 1.
	Concurrency int
	OpsEmails   []string
	// PairingSource returns the shuffle source for one team, e.g. a seeded
	// one in tests. Teams run concurrently, so each call must return a source
	// no other team shares. nil uses the global source.
	PairingSource func(teamID string) *rand.Rand
}

type pairUpService struct {
	config    PairUpConfig
	teamRepo  repository.TeamRepository
	optInRepo repository.OptInRepository
	client    connector.Client
	notifier  *notification.Service
	feed      Feed
	mailer    Mailer

	mu      sync.Mutex
	running map[string]bool
	last    map[string]*RunSummary
}

func NewPairUpService(
	config PairUpConfig,
	teamRepo repository.TeamRepository,
	optInRepo repository.OptInRepository,
	client connector.Client,
	notifier *notification.Service,
	feed Feed,
	mailer Mailer,
) PairUpService {
	if config.Concurrency < 1 {
		config.Concurrency = 1
	}
	if feed == nil {
		feed = noopFeed{}
	}
	return &pairUpService{
		config:    config,
		teamRepo:  teamRepo,
		optInRepo: optInRepo,
		client:    client,
		notifier:  notifier,
		feed:      feed,
		mailer:    mailer,
		running:   make(map[string]bool),
		last:      make(map[string]*RunSummary),
	}
}

func (s *pairUpService) Run(ctx context.Context, trigger string) (*RunSummary, error) {
	return s.runAll(ctx, types.RunPairUp, trigger, s.pairTeam)
}

func (s *pairUpService) SendMoodPoll(ctx context.Context, trigger string) (*RunSummary, error) {
	return s.runAll(ctx, types.RunMoodPoll, trigger, s.pollTeam)
}

func (s *pairUpService) LastRun(kind string) *RunSummary {
	s.mu.Lock()
	defer s.mu.Unlock()

	if last, ok := s.last[kind]; ok {
		return last.clone()
	}
	return nil
}

type teamFunc func(ctx context.Context, runID string, team *repository.TeamInstallation) (teamResult, error)

func (s *pairUpService) runAll(ctx context.Context, kind, trigger string, process teamFunc) (*RunSummary, error) {
	if !s.begin(kind) {
		return nil, ErrRunInProgress
	}
	defer s.end(kind)

	summary := &RunSummary{
		RunID:     uuid.New().String(),
		Kind:      kind,
		Trigger:   trigger,
		StartedAt: time.Now().UTC(),
		Errors:    []TeamError{},
	}

	teams, err := s.teamRepo.GetInstalledTeams(ctx)
	if err != nil {
		return nil, fmt.Errorf("load installed teams: %w", err)
	}

	log.Printf("[PairUp] 🚀 Starting %s run %s (%s) for %d teams", kind, summary.RunID, trigger, len(teams))
	s.feed.RunStarted(kind, summary.RunID, trigger)

	acc := &runAccumulator{summary: summary}
	var g errgroup.Group
	g.SetLimit(s.config.Concurrency)

	for _, team := range teams {
		if ctx.Err() != nil {
			log.Printf("[PairUp] Run %s cancelled, not starting remaining teams", summary.RunID)
			break
		}

		team := team
		g.Go(func() error {
			res, err := s.superviseTeam(ctx, summary.RunID, team, process)
			if err != nil {
				log.Printf("[PairUp] ❌ Team %s failed: %v", team.TeamID, err)
				s.feed.TeamFailed(summary.RunID, team.TeamID, err.Error())
			}
			acc.add(team.TeamID, res, err)
			return nil
		})
	}
	g.Wait()

	summary.FinishedAt = time.Now().UTC()

	log.Printf("[PairUp] ✅ %s run %s finished: teams=%d failed=%d pairs=%d delivered=%d delivery_failures=%d",
		kind, summary.RunID, summary.TeamsProcessed, summary.TeamsFailed,
		summary.PairsNotified, summary.Delivered, summary.DeliveryFailures)

	s.mu.Lock()
	s.last[kind] = summary.clone()
	s.mu.Unlock()

	s.feed.RunCompleted(kind, summary.RunID, summary.Payload())
	s.report(summary)

	return summary, nil
}

func (s *pairUpService) begin(kind string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running[kind] {
		return false
	}
	s.running[kind] = true
	return true
}

func (s *pairUpService) end(kind string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.running, kind)
}

// superviseTeam turns a panic in one team into that team's error.
func (s *pairUpService) superviseTeam(ctx context.Context, runID string, team *repository.TeamInstallation, process teamFunc) (res teamResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return process(ctx, runID, team)
}

// pairTeam runs the roster, consent, pairing and notify steps for one team.
func (s *pairUpService) pairTeam(ctx context.Context, runID string, team *repository.TeamInstallation) (teamResult, error) {
	var res teamResult

	members, err := s.client.GetTeamMembers(ctx, team.ServiceURL, team.TeamID, team.TenantID)
	if err != nil {
		return res, fmt.Errorf("get team members: %w", err)
	}

	consenting, err := FilterConsenting(ctx, s.optInRepo, s.config.BotID, team.TenantID, members)
	if err != nil {
		return res, fmt.Errorf("filter consenting members: %w", err)
	}

	var opts []pairing.Option
	if s.config.PairingSource != nil {
		opts = append(opts, pairing.WithRand(s.config.PairingSource(team.TeamID)))
	}
	pairs := pairing.MakePairs(consenting, opts...)
	res.membersDropped = len(consenting) % 2

	if limit := s.config.MaxPairUpsPerTeam; limit > 0 && len(pairs) > limit {
		res.membersDropped += 2 * (len(pairs) - limit)
		pairs = pairs[:limit]
	}

	if len(pairs) == 0 {
		log.Printf("[PairUp] Team %s has %d consenting members, nothing to pair", team.TeamID, len(consenting))
		return res, nil
	}

	teamName := s.teamName(ctx, team)

	for _, pair := range pairs {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		if err := s.notifier.NotifyPair(ctx, team.ServiceURL, team.TenantID, teamName, pair); err != nil {
			res.deliveryFailures++
			if connector.IsUnauthorized(err) {
				return res, fmt.Errorf("notify pair: %w", err)
			}
			log.Printf("[PairUp] ⚠️ Pair delivery failed in team %s: %v", team.TeamID, err)
			continue
		}
		res.pairsNotified++
		s.feed.PairNotified(runID, team.TeamID)
	}

	log.Printf("[PairUp] Team %s: %d consenting, %d pairs notified, %d dropped",
		team.TeamID, len(consenting), res.pairsNotified, res.membersDropped)
	return res, nil
}

// pollTeam sends the mood card to every human member of one team.
func (s *pairUpService) pollTeam(ctx context.Context, runID string, team *repository.TeamInstallation) (teamResult, error) {
	var res teamResult

	members, err := s.client.GetTeamMembers(ctx, team.ServiceURL, team.TeamID, team.TenantID)
	if err != nil {
		return res, fmt.Errorf("get team members: %w", err)
	}

	for _, member := range members {
		if IsBot(member, s.config.BotID) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return res, err
		}

		if err := s.notifier.NotifyPerson(ctx, team.ServiceURL, team.TenantID, team.TeamID, member); err != nil {
			res.deliveryFailures++
			if connector.IsUnauthorized(err) {
				return res, fmt.Errorf("notify member: %w", err)
			}
			log.Printf("[PairUp] ⚠️ Mood poll delivery to %s failed: %v", member.ID, err)
			continue
		}
		res.delivered++
	}
	return res, nil
}

func (s *pairUpService) teamName(ctx context.Context, team *repository.TeamInstallation) string {
	name, err := s.client.GetTeamName(ctx, team.ServiceURL, team.TeamID)
	if err != nil || name == "" {
		log.Printf("[PairUp] Could not fetch name of team %s: %v", team.TeamID, err)
		return fallbackTeamName
	}
	return name
}

func (s *pairUpService) report(summary *RunSummary) {
	if summary.TeamsFailed == 0 || s.mailer == nil || len(s.config.OpsEmails) == 0 {
		return
	}

	failures := make([]email.TeamFailure, 0, len(summary.Errors))
	for _, e := range summary.Errors {
		failures = append(failures, email.TeamFailure{TeamID: e.TeamID, Error: e.Error})
	}

	s.mailer.EnqueueRunReport(s.config.OpsEmails, email.RunReportData{
		Kind:          summary.Kind,
		RunID:         summary.RunID,
		Trigger:       summary.Trigger,
		StartedAt:     summary.StartedAt,
		FinishedAt:    summary.FinishedAt,
		TeamsTotal:    summary.TeamsProcessed,
		TeamsFailed:   summary.TeamsFailed,
		PairsNotified: summary.PairsNotified,
		Delivered:     summary.Delivered,
		Failures:      failures,
	})
}

// ============================================
// Consent Filter
// ============================================

// IsBot reports whether a roster member is the bot's own account. Bots carry
// no surname; when botID is known it is compared as well.
func IsBot(member connector.TeamsChannelAccount, botID string) bool {
	if botID != "" && member.ID == botID {
		return true
	}
	return member.Surname == ""
}

// MemberUserID is the id consent and moods are stored under.
func MemberUserID(member connector.TeamsChannelAccount) string {
	if member.AADObjectID != "" {
		return member.AADObjectID
	}
	return member.ID
}

// FilterConsenting keeps members who never opted out, minus the bot.
func FilterConsenting(
	ctx context.Context,
	optInRepo repository.OptInRepository,
	botID, tenantID string,
	members []connector.TeamsChannelAccount,
) ([]connector.TeamsChannelAccount, error) {
	consenting := make([]connector.TeamsChannelAccount, 0, len(members))
	for _, m := range members {
		if IsBot(m, botID) {
			continue
		}

		status, err := optInRepo.GetOptInStatus(ctx, tenantID, MemberUserID(m))
		if err != nil {
			return nil, err
		}
		if status == nil || status.OptedIn {
			consenting = append(consenting, m)
		}
	}
	return consenting, nil
}
