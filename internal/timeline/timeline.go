// Package timeline shapes schedule entries and logs for the dashboard.
package timeline

import (
	"fmt"
	"math"

	"github.com/unclebandit/mica-backend/internal/model"
)

// AssetTitle names an entry from its channel and day.
func AssetTitle(channel string, day int) string {
	switch channel {
	case model.ChannelEmail:
		switch day {
		case 1:
			return "Welcome Email"
		case 5:
			return "Value Proposition"
		case 28:
			return "Closing Email"
		}
		return fmt.Sprintf("Follow-up Email (Day %d)", day)
	case model.ChannelWhatsApp:
		if day == 1 {
			return "Intro Message"
		}
		return fmt.Sprintf("Nurture Message (Day %d)", day)
	case model.ChannelInstagram:
		return fmt.Sprintf("Social Post #%d (Day %d)", (day+2)/3, day)
	}
	return channel + " Content"
}

// CompletionPercent is the rounded share of entries that are completed or failed.
func CompletionPercent(entries []model.ScheduleEntry) int {
	if len(entries) == 0 {
		return 0
	}
	done := 0
	for i := range entries {
		if entries[i].Done() {
			done++
		}
	}
	return int(math.Round(float64(done) / float64(len(entries)) * 100))
}

// ResultsText is the short delivery summary shown next to an entry.
func ResultsText(e model.ScheduleEntry) string {
	switch e.Status {
	case model.EntryScheduled, model.EntryPaused:
		return "—"
	case model.EntryInProgress:
		return "Sending..."
	}
	if e.Channel == model.ChannelInstagram {
		if e.Status == model.EntryCompleted {
			return "Posted"
		}
		return "Failed"
	}
	return fmt.Sprintf("%d/%d", e.RecipientsSent, e.RecipientsTotal)
}

func StatusBadge(status string) string {
	switch status {
	case model.EntryCompleted:
		return "Done"
	case model.EntryInProgress:
		return "Live"
	case model.EntryFailed:
		return "Failed"
	case model.EntryPaused:
		return "Paused"
	}
	return "Scheduled"
}

type Item struct {
	model.ScheduleEntry
	Title   string `json:"title"`
	Badge   string `json:"badge"`
	Results string `json:"results"`
}

type Stats struct {
	Total     int `json:"total"`
	Done      int `json:"done"`
	Live      int `json:"live"`
	Upcoming  int `json:"upcoming"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Sent      int `json:"recipients_sent"`
}

// View is the full timeline payload: entries split into buckets plus stats.
type View struct {
	CampaignID        string              `json:"campaign_id"`
	CompletionPercent int                 `json:"completion_percent"`
	Stats             Stats               `json:"stats"`
	Done              []Item              `json:"done"`
	Live              []Item              `json:"live"`
	Upcoming          []Item              `json:"upcoming"`
	Logs              []model.CampaignLog `json:"logs,omitempty"`
}

// Build groups entries into done (completed|failed), live (in_progress) and
// upcoming (scheduled|paused) in their stored order.
func Build(campaignID string, entries []model.ScheduleEntry, logs []model.CampaignLog) View {
	v := View{
		CampaignID:        campaignID,
		CompletionPercent: CompletionPercent(entries),
		Done:              []Item{},
		Live:              []Item{},
		Upcoming:          []Item{},
		Logs:              logs,
	}
	v.Stats.Total = len(entries)

	for _, e := range entries {
		item := Item{
			ScheduleEntry: e,
			Title:         AssetTitle(e.Channel, e.ScheduledDay),
			Badge:         StatusBadge(e.Status),
			Results:       ResultsText(e),
		}
		v.Stats.Sent += e.RecipientsSent
		switch e.Status {
		case model.EntryCompleted, model.EntryFailed:
			v.Done = append(v.Done, item)
			if e.Status == model.EntryCompleted {
				v.Stats.Completed++
			} else {
				v.Stats.Failed++
			}
		case model.EntryInProgress:
			v.Live = append(v.Live, item)
		default:
			v.Upcoming = append(v.Upcoming, item)
		}
	}
	v.Stats.Done = len(v.Done)
	v.Stats.Live = len(v.Live)
	v.Stats.Upcoming = len(v.Upcoming)
	return v
}
