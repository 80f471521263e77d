package email

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunReportRendersFailures(t *testing.T) {
	svc := NewService(&Config{})
	started := time.Date(2026, 3, 9, 9, 0, 0, 0, time.UTC)

	data := RunReportData{
		Kind:          "pairup",
		RunID:         "run-1",
		Trigger:       "schedule",
		StartedAt:     started,
		FinishedAt:    started.Add(1500 * time.Millisecond),
		TeamsTotal:    3,
		TeamsFailed:   1,
		PairsNotified: 4,
		Failures:      []TeamFailure{{TeamID: "team-<b>", Error: "connector get team members: status 403"}},
	}

	body, err := svc.Render(TemplateRunReport, data)
	require.NoError(t, err)
	assert.Contains(t, body, "1 of 3 teams failed")
	assert.Contains(t, body, "Pairs notified:</strong> 4")
	assert.Contains(t, body, "took 1.5s")
	assert.Contains(t, body, "team-&lt;b&gt;", "team ids are escaped")
	assert.Contains(t, body, "status 403")

	assert.Equal(t, "[Meetup Bot] pairup run run-1: 1 of 3 teams failed", RunReportSubject(data))
}

func TestMoodPollReportShowsMembersReached(t *testing.T) {
	body, err := NewService(&Config{}).Render(TemplateRunReport, RunReportData{Kind: "mood_poll", Delivered: 12})
	require.NoError(t, err)
	assert.Contains(t, body, "Members reached:</strong> 12")
}

func TestSendWithoutHostIsNoop(t *testing.T) {
	svc := NewService(&Config{})
	assert.False(t, svc.Enabled())
	assert.NoError(t, svc.SendRunReport([]string{"ops@example.com"}, RunReportData{}))
}

func TestUnknownTemplate(t *testing.T) {
	_, err := NewService(&Config{}).Render("nope", nil)
	assert.Error(t, err)
}

func TestBuildMessageHeaders(t *testing.T) {
	msg := buildMessage("Meetup Bot", "bot@example.com", &Email{
		To:       []string{"ops@example.com", "lead@example.com"},
		Subject:  "2 of 5 teams failed",
		HTMLBody: "<p>report</p>",
	}).String()

	head, body, ok := strings.Cut(msg, "\r\n\r\n")
	require.True(t, ok)
	assert.Contains(t, head, "From: Meetup Bot <bot@example.com>\r\n")
	assert.Contains(t, head, "To: ops@example.com, lead@example.com\r\n")
	assert.Contains(t, head, "Content-Type: text/html; charset=UTF-8")
	assert.NotContains(t, head, "Cc:")
	assert.Equal(t, "<p>report</p>", body)
}
