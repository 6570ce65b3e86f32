package execution

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	appErrors "github.com/unclebandit/mica-backend/internal/errors"
	"github.com/unclebandit/mica-backend/internal/model"
)

// ScheduledDate is the calendar date of a campaign day.
func ScheduledDate(start model.Date, day int) model.Date {
	return start.AddDays(day - 1)
}

// EndDate is the last day of a campaign started on start.
func EndDate(start model.Date) model.Date {
	return ScheduledDate(start, model.CampaignDays)
}

var channelRank = map[string]int{
	model.ChannelEmail:     0,
	model.ChannelWhatsApp:  1,
	model.ChannelInstagram: 2,
}

type pending struct {
	entry model.ScheduleEntry
	order int
}

// BuildSchedule turns a campaign's generated assets into schedule entries.
//
// Emails are always scheduled. WhatsApp messages are scheduled only when the
// campaign recommends whatsapp, social posts only when it recommends
// instagram. Posts go out once, so their recipients_total is 0; everything
// else targets every uploaded recipient.
func BuildSchedule(c *model.Campaign, assets model.AssetSet, recipients int, start model.Date, now time.Time) ([]model.ScheduleEntry, error) {
	const op = "build schedule"

	if len(assets.Emails) == 0 {
		return nil, appErrors.Validation(op, "campaign has no email templates")
	}
	if recipients < 0 {
		recipients = 0
	}

	var out []pending
	add := func(channel, assetType, assetID string, day, order, total int) error {
		if day < 1 || day > model.CampaignDays {
			return appErrors.Validation(op, fmt.Sprintf("%s %s has scheduled_day %d outside 1..%d", assetType, assetID, day, model.CampaignDays))
		}
		out = append(out, pending{
			order: order,
			entry: model.ScheduleEntry{
				ID:              uuid.NewString(),
				CampaignID:      c.ID,
				Channel:         channel,
				AssetType:       assetType,
				AssetID:         assetID,
				ScheduledDay:    day,
				ScheduledDate:   ScheduledDate(start, day),
				Status:          model.EntryScheduled,
				RecipientsTotal: total,
				CreatedAt:       now,
			},
		})
		return nil
	}

	for _, e := range assets.Emails {
		if err := add(model.ChannelEmail, model.AssetEmailTemplate, e.ID, e.ScheduledDay, e.TemplateOrder, recipients); err != nil {
			return nil, err
		}
	}
	if c.HasChannel(model.ChannelWhatsApp) {
		for _, m := range assets.WhatsApp {
			if err := add(model.ChannelWhatsApp, model.AssetWhatsAppMessage, m.ID, m.ScheduledDay, m.MessageOrder, recipients); err != nil {
				return nil, err
			}
		}
	}
	if c.HasChannel(model.ChannelInstagram) {
		for _, p := range assets.SocialPosts {
			if err := add(model.ChannelInstagram, model.AssetSocialPost, p.ID, p.ScheduledDay, p.PostOrder, 0); err != nil {
				return nil, err
			}
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.entry.ScheduledDay != b.entry.ScheduledDay {
			return a.entry.ScheduledDay < b.entry.ScheduledDay
		}
		if a.entry.Channel != b.entry.Channel {
			return channelRank[a.entry.Channel] < channelRank[b.entry.Channel]
		}
		return a.order < b.order
	})

	// created_at carries the build order into storage
	entries := make([]model.ScheduleEntry, len(out))
	for i := range out {
		entries[i] = out[i].entry
		entries[i].CreatedAt = now.Add(time.Duration(i) * time.Microsecond)
	}
	return entries, nil
}
