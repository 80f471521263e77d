package service

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/Marga-Ghale/meetup-bot-backend/internal/activity"
	"github.com/Marga-Ghale/meetup-bot-backend/internal/cards"
	"github.com/Marga-Ghale/meetup-bot-backend/internal/connector"
	"github.com/Marga-Ghale/meetup-bot-backend/internal/notification"
	"github.com/Marga-Ghale/meetup-bot-backend/internal/repository"
	"github.com/Marga-Ghale/meetup-bot-backend/internal/types"
)

// Replies sent back to users
const (
	ReplyHappy         = "We love to see a happy taco. Have a great day! 🌮🙌"
	ReplySad           = "Aw no... we all have those days. Hang in there! ❤️🥺"
	ReplyDontKnow      = "Sorry, I didn't get that. I only understand the buttons on my cards for now."
	ReplyErrorOccurred = "Oops! Something went wrong on my side. Please try again in a bit."
	ReplySummaryFailed = "My robot brain doesn't know how to handle that yet... try asking later!"
	ReplyOptedOut      = "You're out of the meetup pairings. We won't pair you up until you resume matches."
	ReplyOptedIn       = "You're back in! Look out for your next meetup pairing."
)

// MoodReply picks the acknowledgement for a submitted mood.
func MoodReply(mood string) string {
	if !types.IsValidMood(mood) {
		return ReplyDontKnow
	}
	if mood == types.MoodHappy {
		return ReplyHappy
	}
	return ReplySad
}

// MoodSummary is today's check-in tally for a team.
type MoodSummary struct {
	TeamID        string `json:"teamId"`
	ResponseCount int    `json:"responseCount"`
	Happy         int    `json:"happy"`
	Sad           int    `json:"sad"`
	HappyShare    string `json:"happyShare"`
}

// CountMoods tallies entries. Every entry counts, duplicates included.
func CountMoods(entries []*repository.MoodEntry) cards.SummaryData {
	data := cards.SummaryData{ResponseCount: len(entries)}
	for _, e := range entries {
		switch e.Mood {
		case types.MoodHappy:
			data.Happy++
		case types.MoodSad:
			data.Sad++
		}
	}
	return data
}

// ============================================
// Bot Service
// ============================================

type BotService interface {
	// HandleActivity processes one inbound activity from the webhook.
	HandleActivity(ctx context.Context, a *connector.Activity) error

	SaveAddedToTeam(ctx context.Context, serviceURL, teamID, tenantID string) error
	SaveRemoveFromTeam(ctx context.Context, serviceURL, teamID, tenantID string) error
	OptIn(ctx context.Context, tenantID, userID, serviceURL string) error
	OptOut(ctx context.Context, tenantID, userID, serviceURL string) error
	// WelcomeUser sends the welcome card to a newly added member. A member
	// missing from the roster is logged and skipped.
	WelcomeUser(ctx context.Context, serviceURL, memberID, tenantID, teamID string) error
	RecordMood(ctx context.Context, tenantID, teamID, userID, mood string) (string, error)
	SendTeamSummary(ctx context.Context, teamID, channelID string) error
	SummarizeMoods(ctx context.Context, teamID string) (*MoodSummary, error)
	ListTeams(ctx context.Context) ([]*repository.TeamInstallation, error)
}

// BotConfig is the bot's identity and trigger phrase.
type BotConfig struct {
	BotID          string
	SummaryTrigger string
}

type botService struct {
	config    BotConfig
	teamRepo  repository.TeamRepository
	optInRepo repository.OptInRepository
	moodRepo  repository.MoodRepository
	client    connector.Client
	notifier  *notification.Service
	cards     *cards.Renderer
	feed      Feed
}

func NewBotService(
	config BotConfig,
	repos *repository.Repositories,
	client connector.Client,
	notifier *notification.Service,
	feed Feed,
) BotService {
	if feed == nil {
		feed = noopFeed{}
	}
	return &botService{
		config:    config,
		teamRepo:  repos.TeamRepo,
		optInRepo: repos.OptInRepo,
		moodRepo:  repos.MoodRepo,
		client:    client,
		notifier:  notifier,
		cards:     cards.NewRenderer(),
		feed:      feed,
	}
}

// ============================================
// Activity Dispatch
// ============================================

func (s *botService) HandleActivity(ctx context.Context, a *connector.Activity) error {
	ev, err := activity.Parse(a, activity.Options{
		BotID:          s.config.BotID,
		SummaryTrigger: s.config.SummaryTrigger,
	})
	switch {
	case errors.Is(err, activity.ErrUnsupportedActivity):
		log.Printf("[Bot] Ignoring activity: %v", err)
		return nil
	case errors.Is(err, activity.ErrMalformedValue):
		log.Printf("[Bot] ⚠️ %v", err)
		return s.reply(ctx, a, ReplyErrorOccurred)
	case err != nil:
		return err
	}

	if ev.Kind == activity.KindConversationUpdate {
		return s.handleConversationUpdate(ctx, ev)
	}
	return s.handleMessage(ctx, ev)
}

func (s *botService) handleMessage(ctx context.Context, ev *activity.Event) error {
	var replyText string

	switch ev.Kind {
	case activity.KindMoodSubmission:
		text, err := s.RecordMood(ctx, ev.TenantID, ev.TeamID, ev.UserID, ev.Mood)
		if err != nil {
			log.Printf("[Bot] ❌ Failed to record mood for %s: %v", ev.UserID, err)
			text = ReplyErrorOccurred
		}
		replyText = text

	case activity.KindOptOutRequest:
		var err error
		if ev.OptOut {
			err = s.OptOut(ctx, ev.TenantID, ev.UserID, ev.ServiceURL)
			replyText = ReplyOptedOut
		} else {
			err = s.OptIn(ctx, ev.TenantID, ev.UserID, ev.ServiceURL)
			replyText = ReplyOptedIn
		}
		if err != nil {
			log.Printf("[Bot] ❌ Failed to update opt-in status for %s: %v", ev.UserID, err)
			return s.reply(ctx, ev.Activity, ReplyErrorOccurred)
		}
		return s.replyOptState(ctx, ev.Activity, !ev.OptOut, replyText)

	case activity.KindSummaryRequest:
		channelID := ev.ChannelID
		if channelID == "" {
			channelID = ev.TeamID
		}
		err := s.SendTeamSummary(ctx, ev.TeamID, channelID)
		if err == nil {
			return nil
		}
		log.Printf("[Bot] ❌ Failed to send summary for team %s: %v", ev.TeamID, err)
		replyText = ReplySummaryFailed

	default:
		replyText = ReplyDontKnow
	}

	return s.reply(ctx, ev.Activity, replyText)
}

func (s *botService) reply(ctx context.Context, a *connector.Activity, text string) error {
	if _, err := s.client.ReplyToActivity(ctx, a.CreateReply(text)); err != nil {
		return fmt.Errorf("reply to activity: %w", err)
	}
	return nil
}

// replyOptState confirms the new opt status with a card that can undo it.
func (s *botService) replyOptState(ctx context.Context, a *connector.Activity, optedIn bool, text string) error {
	card, err := s.cards.OptState(cards.OptStateData{OptedIn: optedIn, Message: text})
	if err != nil {
		log.Printf("[Bot] ⚠️ Failed to render opt state card: %v", err)
		return s.reply(ctx, a, text)
	}

	reply := a.CreateReply(text)
	reply.Attachments = connector.CardActivity(card).Attachments
	if _, err := s.client.ReplyToActivity(ctx, reply); err != nil {
		return fmt.Errorf("reply to activity: %w", err)
	}
	return nil
}

func (s *botService) handleConversationUpdate(ctx context.Context, ev *activity.Event) error {
	var err error
	switch ev.Update {
	case activity.UpdateBotAdded:
		err = s.SaveAddedToTeam(ctx, ev.ServiceURL, ev.TeamID, ev.TenantID)
	case activity.UpdateBotRemoved:
		err = s.SaveRemoveFromTeam(ctx, ev.ServiceURL, ev.TeamID, ev.TenantID)
	case activity.UpdateMemberAdded:
		err = s.WelcomeUser(ctx, ev.ServiceURL, ev.MemberID, ev.TenantID, ev.TeamID)
	default:
		return nil
	}

	if err != nil {
		log.Printf("[Bot] ❌ Conversation update %s for team %s failed: %v", ev.Update, ev.TeamID, err)
		return err
	}
	return nil
}

// ============================================
// Lifecycle
// ============================================

func (s *botService) SaveAddedToTeam(ctx context.Context, serviceURL, teamID, tenantID string) error {
	return s.saveInstallStatus(ctx, serviceURL, teamID, tenantID, true)
}

func (s *botService) SaveRemoveFromTeam(ctx context.Context, serviceURL, teamID, tenantID string) error {
	return s.saveInstallStatus(ctx, serviceURL, teamID, tenantID, false)
}

func (s *botService) saveInstallStatus(ctx context.Context, serviceURL, teamID, tenantID string, installed bool) error {
	if teamID == "" {
		return fmt.Errorf("%w: team id is required", ErrInvalidInput)
	}

	team := &repository.TeamInstallation{TeamID: teamID, ServiceURL: serviceURL, TenantID: tenantID}
	if err := s.teamRepo.SaveTeamInstallStatus(ctx, team, installed); err != nil {
		return fmt.Errorf("save install status: %w", err)
	}

	log.Printf("[Bot] Team %s installed=%t", teamID, installed)
	s.feed.TeamInstalled(teamID, tenantID, installed)
	return nil
}

func (s *botService) OptIn(ctx context.Context, tenantID, userID, serviceURL string) error {
	return s.setOptIn(ctx, tenantID, userID, serviceURL, true)
}

func (s *botService) OptOut(ctx context.Context, tenantID, userID, serviceURL string) error {
	return s.setOptIn(ctx, tenantID, userID, serviceURL, false)
}

func (s *botService) setOptIn(ctx context.Context, tenantID, userID, serviceURL string, optedIn bool) error {
	if tenantID == "" || userID == "" {
		return fmt.Errorf("%w: tenant and user are required", ErrInvalidInput)
	}
	if err := s.optInRepo.SetOptInStatus(ctx, tenantID, userID, optedIn, serviceURL); err != nil {
		return fmt.Errorf("set opt-in status: %w", err)
	}
	log.Printf("[Bot] User %s opted_in=%t", userID, optedIn)
	return nil
}

func (s *botService) WelcomeUser(ctx context.Context, serviceURL, memberID, tenantID, teamID string) error {
	teamName, err := s.client.GetTeamName(ctx, serviceURL, teamID)
	if err != nil {
		return fmt.Errorf("get team name: %w", err)
	}

	members, err := s.client.GetTeamMembers(ctx, serviceURL, teamID, tenantID)
	if err != nil {
		return fmt.Errorf("get team members: %w", err)
	}

	for _, m := range members {
		if m.ID == memberID {
			return s.notifier.WelcomeUser(ctx, serviceURL, tenantID, teamName, m)
		}
	}

	cerr := &ConsistencyError{TeamID: teamID, MemberID: memberID, Reason: "not in roster yet"}
	log.Printf("[Bot] ⚠️ Skipping welcome: %v", cerr)
	return nil
}

// ============================================
// Moods
// ============================================

func (s *botService) RecordMood(ctx context.Context, tenantID, teamID, userID, mood string) (string, error) {
	entry := &repository.MoodEntry{
		TenantID: tenantID,
		TeamID:   teamID,
		UserID:   userID,
		Mood:     mood,
	}
	if err := s.moodRepo.SaveMood(ctx, entry); err != nil {
		return "", fmt.Errorf("save mood: %w", err)
	}

	s.feed.MoodRecorded(teamID, mood)
	return MoodReply(mood), nil
}

func (s *botService) SummarizeMoods(ctx context.Context, teamID string) (*MoodSummary, error) {
	team, data, err := s.todaysMoods(ctx, teamID)
	if err != nil {
		return nil, err
	}
	return &MoodSummary{
		TeamID:        team.TeamID,
		ResponseCount: data.ResponseCount,
		Happy:         data.Happy,
		Sad:           data.Sad,
		HappyShare:    data.HappyShare(),
	}, nil
}

func (s *botService) SendTeamSummary(ctx context.Context, teamID, channelID string) error {
	team, data, err := s.todaysMoods(ctx, teamID)
	if err != nil {
		return err
	}
	return s.notifier.Summary(ctx, team.ServiceURL, channelID, data)
}

func (s *botService) todaysMoods(ctx context.Context, teamID string) (*repository.TeamInstallation, cards.SummaryData, error) {
	team, err := s.teamRepo.GetTeamInstallStatus(ctx, teamID)
	if err != nil {
		return nil, cards.SummaryData{}, err
	}
	if team == nil || !team.Installed {
		return nil, cards.SummaryData{}, ErrTeamNotInstalled
	}

	members, err := s.client.GetTeamMembers(ctx, team.ServiceURL, team.TeamID, team.TenantID)
	if err != nil {
		return nil, cards.SummaryData{}, fmt.Errorf("get team members: %w", err)
	}

	userIDs := make([]string, 0, len(members))
	for _, m := range members {
		userIDs = append(userIDs, MemberUserID(m))
	}

	entries, err := s.moodRepo.GetTodaysMoods(ctx, team.TenantID, userIDs)
	if err != nil {
		return nil, cards.SummaryData{}, fmt.Errorf("get today's moods: %w", err)
	}
	return team, CountMoods(entries), nil
}

func (s *botService) ListTeams(ctx context.Context) ([]*repository.TeamInstallation, error) {
	return s.teamRepo.GetInstalledTeams(ctx)
}
