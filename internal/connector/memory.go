package connector

import (
	"context"
	"fmt"
	"sync"
)

// SentActivity records one delivery made through a MemoryClient.
type SentActivity struct {
	ServiceURL     string
	ConversationID string
	UserID         string
	ChannelID      string
	Activity       *Activity
}

// MemoryClient is an in-process transport used for local development and
// tests. Rosters are seeded with SetRoster; failures can be injected per
// team or per recipient.
type MemoryClient struct {
	mu sync.Mutex

	rosters       map[string][]TeamsChannelAccount
	teamNames     map[string]string
	conversations map[string]string // tenant:user -> conversation id
	convUsers     map[string]string // conversation id -> user id
	rosterErrs    map[string]error
	sendErrs      map[string]error

	sent    []SentActivity
	replies []*Activity
	created int
	nextID  int
}

func NewMemoryClient() *MemoryClient {
	return &MemoryClient{
		rosters:       make(map[string][]TeamsChannelAccount),
		teamNames:     make(map[string]string),
		conversations: make(map[string]string),
		convUsers:     make(map[string]string),
		rosterErrs:    make(map[string]error),
		sendErrs:      make(map[string]error),
	}
}

// SetRoster replaces the member list and display name of a team.
func (c *MemoryClient) SetRoster(teamID, teamName string, members []TeamsChannelAccount) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rosters[teamID] = append([]TeamsChannelAccount(nil), members...)
	c.teamNames[teamID] = teamName
}

// FailRoster makes roster lookups for teamID return err.
func (c *MemoryClient) FailRoster(teamID string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rosterErrs[teamID] = err
}

// FailSendTo makes deliveries to userID's 1:1 conversation return err.
func (c *MemoryClient) FailSendTo(userID string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sendErrs[userID] = err
}

func (c *MemoryClient) GetTeamMembers(ctx context.Context, serviceURL, teamID, tenantID string) ([]TeamsChannelAccount, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.rosterErrs[teamID]; err != nil {
		return nil, err
	}
	members, ok := c.rosters[teamID]
	if !ok {
		return nil, &TransportError{Op: "get team members", StatusCode: 404, Err: fmt.Errorf("%w: team %s", ErrNotFound, teamID)}
	}
	return append([]TeamsChannelAccount(nil), members...), nil
}

func (c *MemoryClient) GetTeamName(ctx context.Context, serviceURL, teamID string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.rosterErrs[teamID]; err != nil {
		return "", err
	}
	name, ok := c.teamNames[teamID]
	if !ok {
		return "", &TransportError{Op: "get team details", StatusCode: 404, Err: fmt.Errorf("%w: team %s", ErrNotFound, teamID)}
	}
	return name, nil
}

func (c *MemoryClient) CreateOrGetDirectConversation(ctx context.Context, serviceURL string, bot, user ChannelAccount, tenantID string) (*ConversationResourceResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := tenantID + ":" + user.ID
	if id, ok := c.conversations[key]; ok {
		return &ConversationResourceResponse{ID: id, ServiceURL: serviceURL}, nil
	}

	c.nextID++
	c.created++
	id := fmt.Sprintf("a:direct-%d", c.nextID)
	c.conversations[key] = id
	c.convUsers[id] = user.ID
	return &ConversationResourceResponse{ID: id, ServiceURL: serviceURL}, nil
}

func (c *MemoryClient) CreateConversation(ctx context.Context, serviceURL string, params *ConversationParameters) (*ConversationResourceResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextID++
	c.created++
	id := fmt.Sprintf("19:channel-%d", c.nextID)

	var channelID string
	if params.ChannelData != nil && params.ChannelData.Channel != nil {
		channelID = params.ChannelData.Channel.ID
	}
	if params.Activity != nil {
		c.sent = append(c.sent, SentActivity{
			ServiceURL:     serviceURL,
			ConversationID: id,
			ChannelID:      channelID,
			Activity:       params.Activity,
		})
	}
	return &ConversationResourceResponse{ID: id, ActivityID: fmt.Sprintf("activity-%d", c.nextID), ServiceURL: serviceURL}, nil
}

func (c *MemoryClient) SendToConversation(ctx context.Context, serviceURL, conversationID string, activity *Activity) (*ResourceResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	userID := c.convUsers[conversationID]
	if err := c.sendErrs[userID]; err != nil {
		return nil, err
	}

	c.nextID++
	c.sent = append(c.sent, SentActivity{
		ServiceURL:     serviceURL,
		ConversationID: conversationID,
		UserID:         userID,
		Activity:       activity,
	})
	return &ResourceResponse{ID: fmt.Sprintf("activity-%d", c.nextID)}, nil
}

func (c *MemoryClient) ReplyToActivity(ctx context.Context, reply *Activity) (*ResourceResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextID++
	c.replies = append(c.replies, reply)
	return &ResourceResponse{ID: fmt.Sprintf("activity-%d", c.nextID)}, nil
}

// Sent returns every delivered activity in order.
func (c *MemoryClient) Sent() []SentActivity {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]SentActivity(nil), c.sent...)
}

// SentTo returns deliveries made to one user's 1:1 conversation.
func (c *MemoryClient) SentTo(userID string) []SentActivity {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []SentActivity
	for _, s := range c.sent {
		if s.UserID == userID {
			out = append(out, s)
		}
	}
	return out
}

func (c *MemoryClient) Replies() []*Activity {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*Activity(nil), c.replies...)
}

// ConversationsCreated counts conversations actually created, not reused.
func (c *MemoryClient) ConversationsCreated() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.created
}
