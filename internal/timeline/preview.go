package timeline

import (
	"fmt"

	"github.com/unclebandit/mica-backend/internal/model"
)

const PreviewNotFound = "Content not found."

// Preview is the content shown when a timeline item is opened.
type Preview struct {
	EntryID   string `json:"entry_id"`
	Channel   string `json:"channel"`
	AssetType string `json:"asset_type"`
	Title     string `json:"title"`
	Content   string `json:"content"`
	ImageURL  string `json:"image_url,omitempty"`
}

func EmailPreview(t *model.EmailTemplate) string {
	return fmt.Sprintf("**Subject:** %s\n\n**Preview:** %s\n\n%s\n\n_CTA: %s_", t.Subject, t.PreHeader, t.Body, t.CTAText)
}

func WhatsAppPreview(m *model.WhatsAppMessage) string {
	return m.MessageText
}

func SocialPreview(p *model.SocialPost) string {
	return fmt.Sprintf("%s\n\n%s", p.Caption, p.Hashtags)
}

// PreviewFromSet resolves an entry's asset inside an in-memory asset set.
func PreviewFromSet(e model.ScheduleEntry, assets model.AssetSet) Preview {
	p := Preview{
		EntryID:   e.ID,
		Channel:   e.Channel,
		AssetType: e.AssetType,
		Title:     AssetTitle(e.Channel, e.ScheduledDay),
		Content:   PreviewNotFound,
	}
	switch e.AssetType {
	case model.AssetEmailTemplate:
		for i := range assets.Emails {
			if assets.Emails[i].ID == e.AssetID {
				p.Content = EmailPreview(&assets.Emails[i])
			}
		}
	case model.AssetWhatsAppMessage:
		for i := range assets.WhatsApp {
			if assets.WhatsApp[i].ID == e.AssetID {
				p.Content = WhatsAppPreview(&assets.WhatsApp[i])
			}
		}
	case model.AssetSocialPost:
		for i := range assets.SocialPosts {
			if assets.SocialPosts[i].ID == e.AssetID {
				p.Content = SocialPreview(&assets.SocialPosts[i])
				p.ImageURL = assets.SocialPosts[i].ImageURL
			}
		}
	}
	return p
}
