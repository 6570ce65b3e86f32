// internal/model/asset.go
package model

import "time"

// Asset types recorded on schedule entries.
const (
	AssetEmailTemplate   = "email_template"
	AssetWhatsAppMessage = "whatsapp_message"
	AssetSocialPost      = "social_post"
)

type EmailTemplate struct {
	ID            string    `db:"id" json:"id"`
	CampaignID    string    `db:"campaign_id" json:"campaign_id"`
	TemplateOrder int       `db:"template_order" json:"template_order"`
	Subject       string    `db:"subject" json:"subject"`
	PreHeader     string    `db:"pre_header" json:"pre_header"`
	Body          string    `db:"body" json:"body"`
	CTAText       string    `db:"cta_text" json:"cta_text"`
	ScheduledDay  int       `db:"scheduled_day" json:"scheduled_day"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

type WhatsAppMessage struct {
	ID           string    `db:"id" json:"id"`
	CampaignID   string    `db:"campaign_id" json:"campaign_id"`
	MessageOrder int       `db:"message_order" json:"message_order"`
	MessageText  string    `db:"message_text" json:"message_text"`
	MessageType  string    `db:"message_type" json:"message_type"`
	ScheduledDay int       `db:"scheduled_day" json:"scheduled_day"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

type SocialPost struct {
	ID              string    `db:"id" json:"id"`
	CampaignID      string    `db:"campaign_id" json:"campaign_id"`
	PostOrder       int       `db:"post_order" json:"post_order"`
	Platform        string    `db:"platform" json:"platform"`
	Caption         string    `db:"caption" json:"caption"`
	Hashtags        string    `db:"hashtags" json:"hashtags"`
	ScheduledDay    int       `db:"scheduled_day" json:"scheduled_day"`
	ImageSuggestion string    `db:"image_suggestion" json:"image_suggestion"`
	PostType        string    `db:"post_type" json:"post_type,omitempty"`
	ImageURL        string    `db:"image_url" json:"image_url,omitempty"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}

// AssetSet groups the generated content of one campaign.
type AssetSet struct {
	Emails      []EmailTemplate   `json:"email_templates"`
	WhatsApp    []WhatsAppMessage `json:"whatsapp_messages"`
	SocialPosts []SocialPost      `json:"social_posts"`
}
