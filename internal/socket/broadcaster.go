package socket

import (
	"log"
)

// Broadcaster provides high-level methods for broadcasting events
type Broadcaster struct {
	hub *Hub
}

// NewBroadcaster creates a new Broadcaster
func NewBroadcaster(hub *Hub) *Broadcaster {
	return &Broadcaster{hub: hub}
}

// ============================================
// Run Broadcasting
// ============================================

// RunStarted announces a pair-up or mood poll run
func (b *Broadcaster) RunStarted(kind, runID, trigger string) {
	b.hub.SendToRoom(RoomRuns, MessageRunStarted, map[string]interface{}{
		"kind":    kind,
		"runId":   runID,
		"trigger": trigger,
	})
}

// RunCompleted publishes a finished run's summary
func (b *Broadcaster) RunCompleted(kind, runID string, summary map[string]interface{}) {
	log.Printf("📡 RunCompleted: kind=%s, runId=%s", kind, runID)

	b.hub.SendToRoom(RoomRuns, MessageRunCompleted, map[string]interface{}{
		"kind":    kind,
		"runId":   runID,
		"summary": summary,
	})
}

// PairNotified is sent to the team's room. Member names are left out.
func (b *Broadcaster) PairNotified(runID, teamID string) {
	b.hub.SendToRoom(TeamRoom(teamID), MessagePairNotified, map[string]interface{}{
		"runId":  runID,
		"teamId": teamID,
	})
}

// TeamFailed goes to both the runs room and the team's room
func (b *Broadcaster) TeamFailed(runID, teamID, reason string) {
	payload := map[string]interface{}{
		"runId":  runID,
		"teamId": teamID,
		"error":  reason,
	}
	b.hub.SendToRoom(RoomRuns, MessageTeamFailed, payload)
	b.hub.SendToRoom(TeamRoom(teamID), MessageTeamFailed, payload)
}

// ============================================
// Team Lifecycle Broadcasting
// ============================================

// TeamInstalled reports the bot being added to or removed from a team
func (b *Broadcaster) TeamInstalled(teamID, tenantID string, installed bool) {
	msgType := MessageTeamRemoved
	if installed {
		msgType = MessageTeamInstalled
	}
	payload := map[string]interface{}{
		"teamId":    teamID,
		"tenantId":  tenantID,
		"installed": installed,
	}
	b.hub.SendToRoom(RoomRuns, msgType, payload)
	b.hub.SendToRoom(TeamRoom(teamID), msgType, payload)
}

// MoodRecorded reports a check-in without saying who sent it
func (b *Broadcaster) MoodRecorded(teamID, mood string) {
	if teamID == "" {
		return
	}
	b.hub.SendToRoom(TeamRoom(teamID), MessageMoodRecorded, map[string]interface{}{
		"teamId": teamID,
		"mood":   mood,
	})
}
