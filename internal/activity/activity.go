// Package activity turns inbound transport activities into typed bot events.
package activity

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/Marga-Ghale/meetup-bot-backend/internal/connector"
)

var (
	ErrInvalidActivity     = errors.New("invalid activity")
	ErrUnsupportedActivity = errors.New("unsupported activity type")
	ErrMalformedValue      = errors.New("malformed activity value")
)

// Kind is the closed set of events the bot reacts to.
type Kind string

const (
	KindMoodSubmission     Kind = "mood_submission"
	KindOptOutRequest      Kind = "opt_out_request"
	KindSummaryRequest     Kind = "summary_request"
	KindConversationUpdate Kind = "conversation_update"
	KindPlainMessage       Kind = "plain_message"
)

// UpdateKind says what a conversation update was about.
type UpdateKind string

const (
	UpdateBotAdded    UpdateKind = "bot_added"
	UpdateBotRemoved  UpdateKind = "bot_removed"
	UpdateMemberAdded UpdateKind = "member_added"
	// UpdateIgnored covers 1:1 conversation updates and removals of other members.
	UpdateIgnored UpdateKind = "ignored"
)

// Event is a parsed inbound activity. Only the fields for its Kind are set.
type Event struct {
	Kind     Kind
	Activity *connector.Activity

	ServiceURL string
	TenantID   string
	TeamID     string
	ChannelID  string
	// UserID is the sender's tenant object id, or the channel id when the
	// transport didn't send one.
	UserID string

	// KindMoodSubmission
	Mood string
	// KindOptOutRequest; false means the user is opting back in.
	OptOut bool
	// KindSummaryRequest and KindPlainMessage
	Text string
	// KindConversationUpdate
	Update UpdateKind
	// MemberID is the transport id of the member added or removed.
	MemberID string
}

// Options configures Parse.
type Options struct {
	// BotID is used when the activity has no recipient to compare against.
	BotID string
	// SummaryTrigger is the phrase that asks for the channel mood summary.
	SummaryTrigger string
}

type submitValue struct {
	Mood   json.RawMessage `json:"mood"`
	OptOut *bool           `json:"optout"`
	TeamID string          `json:"teamId"`
}

// Parse classifies an inbound activity.
func Parse(a *connector.Activity, opts Options) (*Event, error) {
	if a == nil {
		return nil, ErrInvalidActivity
	}

	ev := &Event{
		Activity:   a,
		ServiceURL: a.ServiceURL,
		TenantID:   a.TenantID(),
	}
	if a.ChannelData != nil {
		if a.ChannelData.Team != nil {
			ev.TeamID = a.ChannelData.Team.ID
		}
		if a.ChannelData.Channel != nil {
			ev.ChannelID = a.ChannelData.Channel.ID
		}
	}
	if a.From != nil {
		ev.UserID = a.From.AADObjectID
		if ev.UserID == "" {
			ev.UserID = a.From.ID
		}
	}

	switch a.Type {
	case connector.ActivityTypeMessage:
		return parseMessage(ev, a, opts)
	case connector.ActivityTypeConversationUpdate:
		return parseConversationUpdate(ev, a, opts)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedActivity, a.Type)
	}
}

func parseMessage(ev *Event, a *connector.Activity, opts Options) (*Event, error) {
	ev.Text = a.Text

	if len(a.Value) > 0 && !bytes.Equal(bytes.TrimSpace(a.Value), []byte("null")) {
		var v submitValue
		if err := json.Unmarshal(a.Value, &v); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedValue, err)
		}
		if v.TeamID != "" && ev.TeamID == "" {
			ev.TeamID = v.TeamID
		}

		if mood, ok := moodValue(v.Mood); ok {
			ev.Kind = KindMoodSubmission
			ev.Mood = mood
			return ev, nil
		}
		if v.OptOut != nil {
			ev.Kind = KindOptOutRequest
			ev.OptOut = *v.OptOut
			return ev, nil
		}
	}

	if opts.SummaryTrigger != "" && strings.Contains(a.Text, opts.SummaryTrigger) {
		ev.Kind = KindSummaryRequest
		return ev, nil
	}

	ev.Kind = KindPlainMessage
	return ev, nil
}

// moodValue reads the submitted mood. Non-string values are kept verbatim so
// they fall through to the "don't know" reply.
func moodValue(raw json.RawMessage) (string, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, true
	}
	return string(raw), true
}

func parseConversationUpdate(ev *Event, a *connector.Activity, opts Options) (*Event, error) {
	ev.Kind = KindConversationUpdate
	ev.Update = UpdateIgnored

	// Updates for 1:1 chats carry no team.
	if ev.TeamID == "" {
		return ev, nil
	}

	botID := opts.BotID
	if a.Recipient != nil && a.Recipient.ID != "" {
		botID = a.Recipient.ID
	}

	var added, removed string
	if len(a.MembersAdded) > 0 {
		added = a.MembersAdded[0].ID
	}
	if len(a.MembersRemoved) > 0 {
		removed = a.MembersRemoved[0].ID
	}

	switch {
	case added != "" && added == botID:
		ev.Update = UpdateBotAdded
		ev.MemberID = added
	case removed != "" && removed == botID:
		ev.Update = UpdateBotRemoved
		ev.MemberID = removed
	case added != "":
		ev.Update = UpdateMemberAdded
		ev.MemberID = added
	}
	return ev, nil
}
