package timeline

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/unclebandit/mica-backend/internal/model"
)

func TestAssetTitle(t *testing.T) {
	tests := []struct {
		channel string
		day     int
		want    string
	}{
		{"email", 1, "Welcome Email"},
		{"email", 5, "Value Proposition"},
		{"email", 28, "Closing Email"},
		{"email", 12, "Follow-up Email (Day 12)"},
		{"whatsapp", 1, "Intro Message"},
		{"whatsapp", 10, "Nurture Message (Day 10)"},
		{"instagram", 1, "Social Post #1 (Day 1)"},
		{"instagram", 3, "Social Post #1 (Day 3)"},
		{"instagram", 4, "Social Post #2 (Day 4)"},
		{"instagram", 28, "Social Post #10 (Day 28)"},
		{"voice_agent", 3, "voice_agent Content"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, AssetTitle(tt.channel, tt.day), "%s day %d", tt.channel, tt.day)
	}
}

func TestCompletionPercent(t *testing.T) {
	assert.Equal(t, 0, CompletionPercent(nil))

	entries := []model.ScheduleEntry{
		{Status: model.EntryCompleted},
		{Status: model.EntryFailed},
		{Status: model.EntryInProgress},
		{Status: model.EntryScheduled},
		{Status: model.EntryPaused},
		{Status: model.EntryScheduled},
	}
	// 2 of 6 = 33.3
	assert.Equal(t, 33, CompletionPercent(entries))
	// 2 of 3 = 66.7
	assert.Equal(t, 67, CompletionPercent(entries[:3]))
}

func TestResultsText(t *testing.T) {
	assert.Equal(t, "—", ResultsText(model.ScheduleEntry{Status: model.EntryScheduled}))
	assert.Equal(t, "—", ResultsText(model.ScheduleEntry{Status: model.EntryPaused}))
	assert.Equal(t, "Sending...", ResultsText(model.ScheduleEntry{Status: model.EntryInProgress}))
	assert.Equal(t, "Posted", ResultsText(model.ScheduleEntry{Channel: "instagram", Status: model.EntryCompleted}))
	assert.Equal(t, "Failed", ResultsText(model.ScheduleEntry{Channel: "instagram", Status: model.EntryFailed}))
	assert.Equal(t, "120/247", ResultsText(model.ScheduleEntry{Channel: "email", Status: model.EntryFailed, RecipientsSent: 120, RecipientsTotal: 247}))
}

func TestBuildBuckets(t *testing.T) {
	entries := []model.ScheduleEntry{
		{ID: "1", Channel: "email", ScheduledDay: 1, Status: model.EntryCompleted, RecipientsSent: 247, RecipientsTotal: 247},
		{ID: "2", Channel: "whatsapp", ScheduledDay: 1, Status: model.EntryInProgress, RecipientsSent: 100, RecipientsTotal: 247},
		{ID: "3", Channel: "instagram", ScheduledDay: 2, Status: model.EntryScheduled},
		{ID: "4", Channel: "email", ScheduledDay: 5, Status: model.EntryPaused},
	}

	v := Build("c1", entries, nil)
	assert.Equal(t, 25, v.CompletionPercent)
	assert.Len(t, v.Done, 1)
	assert.Len(t, v.Live, 1)
	assert.Len(t, v.Upcoming, 2)
	assert.Equal(t, "Welcome Email", v.Done[0].Title)
	assert.Equal(t, "Done", v.Done[0].Badge)
	assert.Equal(t, "Live", v.Live[0].Badge)
	assert.Equal(t, "Paused", v.Upcoming[1].Badge)
	assert.Equal(t, Stats{Total: 4, Done: 1, Live: 1, Upcoming: 2, Completed: 1, Sent: 347}, v.Stats)
}
