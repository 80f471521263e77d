// Package cards renders the adaptive cards the bot sends.
package cards

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"text/template"

	"github.com/shopspring/decimal"
)

// Template names
const (
	TemplatePairUp   = "pair_up"
	TemplateWelcome  = "welcome"
	TemplateMoodPoll = "mood_poll"
	TemplateSummary  = "summary"
	TemplateOptState = "opt_state"
)

// PairUpData fills the card one pair member receives about the other.
type PairUpData struct {
	TeamName             string
	RecipientGivenName   string
	CounterpartName      string
	CounterpartGivenName string
	CounterpartUPN       string
}

// ChatURL is the deep link that opens a chat with the counterpart.
func (d PairUpData) ChatURL() string {
	if d.CounterpartUPN == "" {
		return ""
	}
	return "https://teams.microsoft.com/l/chat/0/0?users=" + url.QueryEscape(d.CounterpartUPN)
}

type WelcomeData struct {
	TeamName   string
	MemberName string
	BotName    string
}

type MoodPollData struct {
	ReceiverName string
	TeamID       string
}

type SummaryData struct {
	ResponseCount int
	Happy         int
	Sad           int
}

// HappyShare is the percentage of responses that were happy, rounded to
// one decimal place. Zero responses give "0".
func (d SummaryData) HappyShare() string {
	if d.ResponseCount == 0 {
		return "0"
	}
	return decimal.NewFromInt(int64(d.Happy)).
		Mul(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(int64(d.ResponseCount))).
		Round(1).
		String()
}

// OptStateData confirms a pairing opt in or out. The card's action flips it back.
type OptStateData struct {
	OptedIn bool
	Message string
}

// Renderer holds the parsed card templates.
type Renderer struct {
	templates map[string]*template.Template
}

func NewRenderer() *Renderer {
	r := &Renderer{templates: make(map[string]*template.Template)}
	r.loadTemplates()
	return r
}

func (r *Renderer) PairUp(data PairUpData) (json.RawMessage, error) {
	return r.render(TemplatePairUp, data)
}

func (r *Renderer) Welcome(data WelcomeData) (json.RawMessage, error) {
	return r.render(TemplateWelcome, data)
}

func (r *Renderer) MoodPoll(data MoodPollData) (json.RawMessage, error) {
	return r.render(TemplateMoodPoll, data)
}

func (r *Renderer) Summary(data SummaryData) (json.RawMessage, error) {
	return r.render(TemplateSummary, data)
}

func (r *Renderer) OptState(data OptStateData) (json.RawMessage, error) {
	return r.render(TemplateOptState, data)
}

func (r *Renderer) render(name string, data interface{}) (json.RawMessage, error) {
	tmpl, ok := r.templates[name]
	if !ok {
		return nil, fmt.Errorf("card template %s not found", name)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("render card %s: %w", name, err)
	}
	if !json.Valid(buf.Bytes()) {
		return nil, fmt.Errorf("render card %s: produced invalid JSON", name)
	}
	return json.RawMessage(buf.Bytes()), nil
}

// js writes v as a JSON value so user supplied names can't break the card.
func js(v interface{}) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (r *Renderer) loadTemplates() {
	funcs := template.FuncMap{"js": js}
	parse := func(name, body string) {
		r.templates[name] = template.Must(template.New(name).Funcs(funcs).Parse(body))
	}

	// Pair-up notification, sent to each side of a pair
	parse(TemplatePairUp, `{
  "$schema": "http://adaptivecards.io/schemas/adaptive-card.json",
  "type": "AdaptiveCard",
  "version": "1.0",
  "body": [
    {
      "type": "TextBlock",
      "size": "Medium",
      "weight": "Bolder",
      "text": {{js (printf "Meetup time, %s!" .RecipientGivenName)}}
    },
    {
      "type": "TextBlock",
      "wrap": true,
      "text": {{js (printf "You have been paired up with %s from %s this week. Reach out to %s and set up a time to grab a coffee together.\n\nCan't make it? Opt out below and we won't pair you again." .CounterpartName .TeamName .CounterpartGivenName)}}
    }
  ],
  "actions": [
    {{- with .ChatURL}}
    {
      "type": "Action.OpenUrl",
      "title": {{js (printf "Chat with %s" $.CounterpartGivenName)}},
      "url": {{js .}}
    },
    {{- end}}
    {
      "type": "Action.Submit",
      "title": "Pause all matches",
      "data": { "optout": true }
    }
  ]
}`)

	// Welcome card for members who just joined a team
	parse(TemplateWelcome, `{
  "$schema": "http://adaptivecards.io/schemas/adaptive-card.json",
  "type": "AdaptiveCard",
  "version": "1.0",
  "body": [
    {
      "type": "TextBlock",
      "size": "Medium",
      "weight": "Bolder",
      "text": {{js (printf "Welcome to %s, %s!" .TeamName .MemberName)}}
    },
    {
      "type": "TextBlock",
      "wrap": true,
      "text": {{js (printf "I'm %s. Every week I pair up members of %s for a casual meetup. You're in by default; opt out any time below." .BotName .TeamName)}}
    }
  ],
  "actions": [
    {
      "type": "Action.Submit",
      "title": "Pause all matches",
      "data": { "optout": true }
    }
  ]
}`)

	// Daily taco mood poll
	parse(TemplateMoodPoll, `{
  "$schema": "http://adaptivecards.io/schemas/adaptive-card.json",
  "type": "AdaptiveCard",
  "version": "1.0",
  "body": [
    {
      "type": "TextBlock",
      "size": "Medium",
      "weight": "Bolder",
      "text": {{js (printf "Good morning, %s! 🌮" .ReceiverName)}}
    },
    {
      "type": "TextBlock",
      "wrap": true,
      "text": "How's your taco feeling today?"
    }
  ],
  "actions": [
    {
      "type": "Action.Submit",
      "title": "🙂 Happy taco",
      "data": { "mood": "happy", "teamId": {{js .TeamID}} }
    },
    {
      "type": "Action.Submit",
      "title": "🙁 Sad taco",
      "data": { "mood": "sad", "teamId": {{js .TeamID}} }
    }
  ]
}`)

	// Channel summary of today's moods
	parse(TemplateSummary, `{
  "$schema": "http://adaptivecards.io/schemas/adaptive-card.json",
  "type": "AdaptiveCard",
  "version": "1.0",
  "body": [
    {
      "type": "TextBlock",
      "size": "Medium",
      "weight": "Bolder",
      "text": "Today's taco check-in"
    },
    {
      "type": "FactSet",
      "facts": [
        { "title": "Responses", "value": {{js (printf "%d" .ResponseCount)}} },
        { "title": "🙂 Happy tacos", "value": {{js (printf "%d" .Happy)}} },
        { "title": "🙁 Sad tacos", "value": {{js (printf "%d" .Sad)}} },
        { "title": "Happy share", "value": {{js (printf "%s%%" .HappyShare)}} }
      ]
    }
  ]
}`)

	// Opt in/out confirmation with the action to undo it
	parse(TemplateOptState, `{
  "$schema": "http://adaptivecards.io/schemas/adaptive-card.json",
  "type": "AdaptiveCard",
  "version": "1.0",
  "body": [
    {
      "type": "TextBlock",
      "wrap": true,
      "text": {{js .Message}}
    }
  ],
  "actions": [
    {{- if .OptedIn}}
    {
      "type": "Action.Submit",
      "title": "Pause all matches",
      "data": { "optout": true }
    }
    {{- else}}
    {
      "type": "Action.Submit",
      "title": "Resume matches",
      "data": { "optout": false }
    }
    {{- end}}
  ]
}`)
}
