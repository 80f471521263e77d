package types

// Mood values submitted from the mood card
const (
	MoodHappy = "happy"
	MoodSad   = "sad"
)

// ValidMoods lists the moods the summary counts by name.
var ValidMoods = []string{MoodHappy, MoodSad}

// Run kinds
const (
	RunPairUp   = "pairup"
	RunMoodPoll = "mood_poll"
)

// Run triggers
const (
	TriggerSchedule = "schedule"
	TriggerManual   = "manual"
)

// IsValidMood checks if a mood is one the bot understands.
func IsValidMood(mood string) bool {
	for _, m := range ValidMoods {
		if m == mood {
			return true
		}
	}
	return false
}
