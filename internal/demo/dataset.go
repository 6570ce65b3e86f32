// Package demo serves a self-contained sample campaign that runs entirely in
// memory, one isolated copy per demo session.
package demo

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"time"

	"github.com/unclebandit/mica-backend/internal/execution"
	"github.com/unclebandit/mica-backend/internal/model"
)

//go:embed data/demo.json
var demoJSON []byte

// DefaultToneVariant is used when a requested tone has no sample.
const DefaultToneVariant = "Warm & Inspirational"

// Dataset is the parsed demo campaign. Treat it as read-only; sessions get
// their own copies through Rebase.
type Dataset struct {
	Campaign       model.Campaign
	Assets         model.AssetSet
	Schedule       []model.ScheduleEntry
	Logs           []model.CampaignLog
	RecipientCount int
	ToneVariants   map[string]model.TonePreview
}

type rawDataset struct {
	Campaign struct {
		model.Campaign
		RecipientCount int                     `json:"recipient_count"`
		Emails         []model.EmailTemplate   `json:"email_templates"`
		WhatsApp       []model.WhatsAppMessage `json:"whatsapp_messages"`
		SocialPosts    []model.SocialPost      `json:"social_posts"`
		Schedule       []model.ScheduleEntry   `json:"execution_schedule"`
		Logs           []model.CampaignLog     `json:"campaign_logs"`
	} `json:"campaign"`
	ToneVariants map[string]model.TonePreview `json:"tone_variants"`
}

// Load parses the embedded demo dataset.
func Load() (*Dataset, error) {
	return Parse(demoJSON)
}

func Parse(data []byte) (*Dataset, error) {
	var raw rawDataset
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse demo dataset: %w", err)
	}

	c := raw.Campaign
	id := c.Campaign.ID
	for i := range c.Emails {
		c.Emails[i].CampaignID = id
	}
	for i := range c.WhatsApp {
		c.WhatsApp[i].CampaignID = id
	}
	for i := range c.SocialPosts {
		c.SocialPosts[i].CampaignID = id
		if c.SocialPosts[i].Platform == "" {
			c.SocialPosts[i].Platform = model.ChannelInstagram
		}
	}
	for i := range c.Schedule {
		c.Schedule[i].CampaignID = id
	}
	for i := range c.Logs {
		c.Logs[i].CampaignID = id
		if c.Logs[i].ID == "" {
			c.Logs[i].ID = fmt.Sprintf("demo-log-%d", i+1)
		}
	}

	return &Dataset{
		Campaign:       c.Campaign,
		Assets:         model.AssetSet{Emails: c.Emails, WhatsApp: c.WhatsApp, SocialPosts: c.SocialPosts},
		Schedule:       c.Schedule,
		Logs:           c.Logs,
		RecipientCount: c.RecipientCount,
		ToneVariants:   raw.ToneVariants,
	}, nil
}

// ToneVariant returns the sample preview for tone, falling back to the default.
func (d *Dataset) ToneVariant(tone string) model.TonePreview {
	if v, ok := d.ToneVariants[tone]; ok {
		return v
	}
	return d.ToneVariants[DefaultToneVariant]
}

// Rebase copies the campaign, schedule and logs so that day 1 falls on start.
func (d *Dataset) Rebase(start model.Date) (model.Campaign, []model.ScheduleEntry, []model.CampaignLog) {
	shift := start.Sub(d.Campaign.StartDate.Time)

	c := d.Campaign
	c.LaunchDate = start
	c.StartDate = start
	c.EndDate = execution.EndDate(start)
	c.Status = model.CampaignExecuting
	if c.LaunchedAt != nil {
		at := c.LaunchedAt.Add(shift)
		c.LaunchedAt = &at
	}

	entries := make([]model.ScheduleEntry, len(d.Schedule))
	for i, e := range d.Schedule {
		e.ScheduledDate = execution.ScheduledDate(start, e.ScheduledDay)
		e.StartedAt = shiftPtr(e.StartedAt, shift)
		e.CompletedAt = shiftPtr(e.CompletedAt, shift)
		entries[i] = e
	}

	logs := make([]model.CampaignLog, len(d.Logs))
	for i, l := range d.Logs {
		l.ExecutedAt = l.ExecutedAt.Add(shift)
		logs[i] = l
	}
	return c, entries, logs
}

func shiftPtr(t *time.Time, d time.Duration) *time.Time {
	if t == nil {
		return nil
	}
	s := t.Add(d)
	return &s
}
