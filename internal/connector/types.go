// Package connector talks to the chat transport (Bot Framework connector
// REST API): rosters, conversations and message delivery.
package connector

import (
	"encoding/json"
	"time"
)

// Activity types
const (
	ActivityTypeMessage            = "message"
	ActivityTypeConversationUpdate = "conversationUpdate"
)

// ContentTypeAdaptiveCard is the attachment content type for adaptive cards.
const ContentTypeAdaptiveCard = "application/vnd.microsoft.card.adaptive"

type ChannelAccount struct {
	ID          string `json:"id"`
	Name        string `json:"name,omitempty"`
	AADObjectID string `json:"aadObjectId,omitempty"`
	Role        string `json:"role,omitempty"`
}

// TeamsChannelAccount is a roster member as reported by the transport.
type TeamsChannelAccount struct {
	ID                string `json:"id"`
	Name              string `json:"name,omitempty"`
	GivenName         string `json:"givenName,omitempty"`
	Surname           string `json:"surname,omitempty"`
	Email             string `json:"email,omitempty"`
	UserPrincipalName string `json:"userPrincipalName,omitempty"`
	AADObjectID       string `json:"aadObjectId,omitempty"`
}

// UnmarshalJSON accepts both the v3 "objectId" and the newer "aadObjectId".
func (m *TeamsChannelAccount) UnmarshalJSON(data []byte) error {
	type plain TeamsChannelAccount
	var raw struct {
		plain
		ObjectID string `json:"objectId,omitempty"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*m = TeamsChannelAccount(raw.plain)
	if m.AADObjectID == "" {
		m.AADObjectID = raw.ObjectID
	}
	return nil
}

// Account returns the plain channel account for conversation calls.
func (m TeamsChannelAccount) Account() ChannelAccount {
	return ChannelAccount{ID: m.ID, Name: m.Name, AADObjectID: m.AADObjectID}
}

type ConversationAccount struct {
	ID               string `json:"id"`
	Name             string `json:"name,omitempty"`
	IsGroup          bool   `json:"isGroup,omitempty"`
	ConversationType string `json:"conversationType,omitempty"`
	TenantID         string `json:"tenantId,omitempty"`
}

type Attachment struct {
	ContentType string          `json:"contentType"`
	Content     json.RawMessage `json:"content,omitempty"`
}

type TenantInfo struct {
	ID string `json:"id"`
}

type TeamInfo struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

type ChannelInfo struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// TeamsChannelData is the Teams-specific part of an activity.
type TeamsChannelData struct {
	EventType string       `json:"eventType,omitempty"`
	Tenant    *TenantInfo  `json:"tenant,omitempty"`
	Team      *TeamInfo    `json:"team,omitempty"`
	Channel   *ChannelInfo `json:"channel,omitempty"`
}

type Activity struct {
	Type         string               `json:"type"`
	ID           string               `json:"id,omitempty"`
	Timestamp    *time.Time           `json:"timestamp,omitempty"`
	ServiceURL   string               `json:"serviceUrl,omitempty"`
	ChannelID    string               `json:"channelId,omitempty"`
	From         *ChannelAccount      `json:"from,omitempty"`
	Recipient    *ChannelAccount      `json:"recipient,omitempty"`
	Conversation *ConversationAccount `json:"conversation,omitempty"`
	ReplyToID    string               `json:"replyToId,omitempty"`
	Text         string               `json:"text,omitempty"`
	TextFormat   string               `json:"textFormat,omitempty"`
	Value        json.RawMessage      `json:"value,omitempty"`
	Attachments  []Attachment         `json:"attachments,omitempty"`
	ChannelData  *TeamsChannelData    `json:"channelData,omitempty"`

	MembersAdded   []ChannelAccount `json:"membersAdded,omitempty"`
	MembersRemoved []ChannelAccount `json:"membersRemoved,omitempty"`
}

// CreateReply builds a text reply addressed back to the sender.
func (a *Activity) CreateReply(text string) *Activity {
	reply := &Activity{
		Type:         ActivityTypeMessage,
		ServiceURL:   a.ServiceURL,
		ChannelID:    a.ChannelID,
		From:         a.Recipient,
		Recipient:    a.From,
		Conversation: a.Conversation,
		ReplyToID:    a.ID,
		Text:         text,
		TextFormat:   "plain",
	}
	return reply
}

// TenantID prefers the channel data tenant and falls back to the conversation's.
func (a *Activity) TenantID() string {
	if a.ChannelData != nil && a.ChannelData.Tenant != nil && a.ChannelData.Tenant.ID != "" {
		return a.ChannelData.Tenant.ID
	}
	if a.Conversation != nil {
		return a.Conversation.TenantID
	}
	return ""
}

// CardActivity wraps a rendered adaptive card into a message activity.
func CardActivity(card json.RawMessage) *Activity {
	return &Activity{
		Type: ActivityTypeMessage,
		Attachments: []Attachment{
			{ContentType: ContentTypeAdaptiveCard, Content: card},
		},
	}
}

type ConversationParameters struct {
	IsGroup     bool              `json:"isGroup"`
	Bot         *ChannelAccount   `json:"bot,omitempty"`
	Members     []ChannelAccount  `json:"members,omitempty"`
	TopicName   string            `json:"topicName,omitempty"`
	TenantID    string            `json:"tenantId,omitempty"`
	Activity    *Activity         `json:"activity,omitempty"`
	ChannelData *TeamsChannelData `json:"channelData,omitempty"`
}

type ConversationResourceResponse struct {
	ID         string `json:"id"`
	ActivityID string `json:"activityId,omitempty"`
	ServiceURL string `json:"serviceUrl,omitempty"`
}

type ResourceResponse struct {
	ID string `json:"id"`
}

type TeamDetails struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	AADGroupID string `json:"aadGroupId,omitempty"`
}
