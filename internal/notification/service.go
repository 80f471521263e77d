package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/Marga-Ghale/meetup-bot-backend/internal/cards"
	"github.com/Marga-Ghale/meetup-bot-backend/internal/connector"
	"github.com/Marga-Ghale/meetup-bot-backend/internal/pairing"
)

// Config controls how notifications are delivered.
type Config struct {
	// Testing still creates 1:1 conversations but never sends to them.
	Testing bool
	BotID   string
	BotName string
}

// Service delivers cards to pair members, new team members and channels.
type Service struct {
	config Config
	client connector.Client
	cards  *cards.Renderer
}

// NewService creates a new notification service
func NewService(config Config, client connector.Client, renderer *cards.Renderer) *Service {
	if renderer == nil {
		renderer = cards.NewRenderer()
	}
	return &Service{
		config: config,
		client: client,
		cards:  renderer,
	}
}

func (s *Service) bot() connector.ChannelAccount {
	return connector.ChannelAccount{ID: s.config.BotID, Name: s.config.BotName}
}

// ============================================
// Pair Notifications
// ============================================

// NotifyPair sends each member a card about the other. Both deliveries are
// attempted; failures are joined.
func (s *Service) NotifyPair(ctx context.Context, serviceURL, tenantID, teamName string, pair pairing.Pair[connector.TeamsChannelAccount]) error {
	first, second := pair.First, pair.Second

	cardForFirst, err := s.cards.PairUp(pairUpData(teamName, first, second))
	if err != nil {
		return err
	}
	cardForSecond, err := s.cards.PairUp(pairUpData(teamName, second, first))
	if err != nil {
		return err
	}

	var errs []error
	if err := s.NotifyUser(ctx, serviceURL, cardForFirst, first, tenantID); err != nil {
		errs = append(errs, fmt.Errorf("notify %s: %w", first.ID, err))
	}
	if err := s.NotifyUser(ctx, serviceURL, cardForSecond, second, tenantID); err != nil {
		errs = append(errs, fmt.Errorf("notify %s: %w", second.ID, err))
	}
	return errors.Join(errs...)
}

func pairUpData(teamName string, recipient, counterpart connector.TeamsChannelAccount) cards.PairUpData {
	return cards.PairUpData{
		TeamName:             teamName,
		RecipientGivenName:   recipient.GivenName,
		CounterpartName:      counterpart.Name,
		CounterpartGivenName: counterpart.GivenName,
		CounterpartUPN:       counterpart.UserPrincipalName,
	}
}

// ============================================
// Person Notifications
// ============================================

// NotifyUser ensures a 1:1 conversation with member and sends the card to it.
func (s *Service) NotifyUser(ctx context.Context, serviceURL string, card json.RawMessage, member connector.TeamsChannelAccount, tenantID string) error {
	conv, err := s.client.CreateOrGetDirectConversation(ctx, serviceURL, s.bot(), member.Account(), tenantID)
	if err != nil {
		return fmt.Errorf("ensure conversation: %w", err)
	}

	if s.config.Testing {
		log.Printf("[Notify] 🧪 Testing mode, not sending to %s (conversation %s)", member.ID, conv.ID)
		return nil
	}

	activity := connector.CardActivity(card)
	activity.Conversation = &connector.ConversationAccount{ID: conv.ID}

	if _, err := s.client.SendToConversation(ctx, serviceURL, conv.ID, activity); err != nil {
		return fmt.Errorf("send to conversation: %w", err)
	}
	return nil
}

// NotifyPerson sends member the daily mood poll for teamID.
func (s *Service) NotifyPerson(ctx context.Context, serviceURL, tenantID, teamID string, member connector.TeamsChannelAccount) error {
	name := member.GivenName
	if name == "" {
		name = member.Name
	}
	card, err := s.cards.MoodPoll(cards.MoodPollData{ReceiverName: name, TeamID: teamID})
	if err != nil {
		return err
	}
	return s.NotifyUser(ctx, serviceURL, card, member, tenantID)
}

// WelcomeUser sends the welcome card to a member who just joined teamName.
func (s *Service) WelcomeUser(ctx context.Context, serviceURL, tenantID, teamName string, member connector.TeamsChannelAccount) error {
	card, err := s.cards.Welcome(cards.WelcomeData{
		TeamName:   teamName,
		MemberName: member.Name,
		BotName:    s.config.BotName,
	})
	if err != nil {
		return err
	}
	return s.NotifyUser(ctx, serviceURL, card, member, tenantID)
}

// ============================================
// Channel Notifications
// ============================================

// NotifyChannel starts a new thread in a channel with card as its first post.
func (s *Service) NotifyChannel(ctx context.Context, serviceURL string, card json.RawMessage, channelID string) error {
	params := &connector.ConversationParameters{
		IsGroup: true,
		ChannelData: &connector.TeamsChannelData{
			Channel: &connector.ChannelInfo{ID: channelID},
		},
		Activity: connector.CardActivity(card),
	}

	if _, err := s.client.CreateConversation(ctx, serviceURL, params); err != nil {
		return fmt.Errorf("create channel conversation: %w", err)
	}
	return nil
}

// Summary renders the mood summary card and posts it to a channel.
func (s *Service) Summary(ctx context.Context, serviceURL, channelID string, data cards.SummaryData) error {
	card, err := s.cards.Summary(data)
	if err != nil {
		return err
	}
	return s.NotifyChannel(ctx, serviceURL, card, channelID)
}
