// internal/model/schedule.go
package model

import "time"

// Schedule entry lifecycle:
// scheduled -> in_progress -> completed | failed, with scheduled <-> paused.
const (
	EntryScheduled  = "scheduled"
	EntryInProgress = "in_progress"
	EntryCompleted  = "completed"
	EntryFailed     = "failed"
	EntryPaused     = "paused"
)

// ScheduleEntry is one asset delivered on one campaign day.
type ScheduleEntry struct {
	ID               string     `db:"id" json:"id"`
	CampaignID       string     `db:"campaign_id" json:"campaign_id"`
	Channel          string     `db:"channel" json:"channel"`
	AssetType        string     `db:"asset_type" json:"asset_type"`
	AssetID          string     `db:"asset_id" json:"asset_id"`
	ScheduledDay     int        `db:"scheduled_day" json:"scheduled_day"`
	ScheduledDate    Date       `db:"scheduled_date" json:"scheduled_date"`
	Status           string     `db:"status" json:"status"`
	RecipientsTotal  int        `db:"recipients_total" json:"recipients_total"`
	RecipientsSent   int        `db:"recipients_sent" json:"recipients_sent"`
	RecipientsFailed int        `db:"recipients_failed" json:"recipients_failed"`
	StartedAt        *time.Time `db:"started_at" json:"started_at,omitempty"`
	CompletedAt      *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`

	// Version is bumped by every write; a write carrying an older version is rejected.
	Version int `db:"version" json:"-"`
}

// Done reports whether the entry reached a terminal status.
func (e *ScheduleEntry) Done() bool {
	return e.Status == EntryCompleted || e.Status == EntryFailed
}

// Log actions.
const (
	ActionSent   = "sent"
	ActionPosted = "posted"
	ActionFailed = "failed"
)

type CampaignLog struct {
	ID              string    `db:"id" json:"id"`
	CampaignID      string    `db:"campaign_id" json:"campaign_id"`
	ScheduleEntryID string    `db:"schedule_entry_id" json:"schedule_entry_id,omitempty"`
	Channel         string    `db:"channel" json:"channel"`
	Action          string    `db:"action" json:"action"`
	Recipient       string    `db:"recipient" json:"recipient"`
	StatusDetails   string    `db:"status_details" json:"status_details"`
	ExecutedAt      time.Time `db:"executed_at" json:"executed_at"`
}
