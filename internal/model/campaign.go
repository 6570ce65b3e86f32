// internal/model/campaign.go
package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Campaign lifecycle:
// tone_preview -> tone_approved -> generating -> plan_ready -> executing <-> paused -> completed
const (
	CampaignTonePreview  = "tone_preview"
	CampaignToneApproved = "tone_approved"
	CampaignGenerating   = "generating"
	CampaignPlanReady    = "plan_ready"
	CampaignExecuting    = "executing"
	CampaignPaused       = "paused"
	CampaignCompleted    = "completed"
)

const (
	ChannelEmail      = "email"
	ChannelWhatsApp   = "whatsapp"
	ChannelInstagram  = "instagram"
	ChannelVoiceAgent = "voice_agent"
	ChannelVideoAd    = "video_ad"
)

const (
	VideoStatusPending    = "pending"
	VideoStatusGenerating = "generating"
	VideoStatusReady      = "ready"
	VideoStatusFallback   = "fallback"
)

// CampaignDays is the fixed length of every campaign.
const CampaignDays = 28

type Campaign struct {
	ID                  string         `db:"id" json:"id"`
	UserID              string         `db:"user_id" json:"user_id"`
	CreatorName         string         `db:"creator_name" json:"creator_name"`
	ProductName         string         `db:"product_name" json:"product_name"`
	ProductDescription  string         `db:"product_description" json:"product_description"`
	ProductLinks        string         `db:"product_links" json:"product_links,omitempty"`
	TargetAudience      string         `db:"target_audience" json:"target_audience"`
	Location            string         `db:"location" json:"location,omitempty"`
	LaunchDate          Date           `db:"launch_date" json:"launch_date"`
	Budget              float64        `db:"budget" json:"budget"`
	Tone                string         `db:"tone" json:"tone"`
	ToneCustomWords     string         `db:"tone_custom_words" json:"tone_custom_words,omitempty"`
	ToneRevisionUsed    bool           `db:"tone_revision_used" json:"tone_revision_used"`
	TonePreview         *TonePreview   `db:"tone_preview_content" json:"tone_preview_content,omitempty"`
	RecommendedChannels []string       `db:"recommended_channels" json:"recommended_channels"`
	Status              string         `db:"status" json:"status"`
	MarketingPlan       *MarketingPlan `db:"marketing_plan" json:"marketing_plan,omitempty"`
	VideoScript         string         `db:"video_script" json:"video_script,omitempty"`
	VideoURL            string         `db:"video_url" json:"video_url,omitempty"`
	VideoStatus         string         `db:"video_status" json:"video_status,omitempty"`
	LaunchedAt          *time.Time     `db:"launched_at" json:"launched_at,omitempty"`
	StartDate           Date           `db:"campaign_start_date" json:"campaign_start_date"`
	EndDate             Date           `db:"campaign_end_date" json:"campaign_end_date"`
	CreatedAt           time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt           *time.Time     `db:"updated_at" json:"updated_at,omitempty"`
}

// HasChannel reports whether ch is one of the recommended channels.
func (c *Campaign) HasChannel(ch string) bool {
	for _, rc := range c.RecommendedChannels {
		if rc == ch {
			return true
		}
	}
	return false
}

// ToneLabel is the tone as it goes into prompts, custom words included.
func (c *Campaign) ToneLabel() string {
	if c.Tone == "Custom" && c.ToneCustomWords != "" {
		return fmt.Sprintf("Custom (%s)", c.ToneCustomWords)
	}
	return c.Tone
}

// CampaignDay returns the 1-based campaign day for the given date,
// or 0 when the campaign has not started.
func (c *Campaign) CampaignDay(today Date) int {
	if c.StartDate.IsZero() || today.Before(c.StartDate.Time) {
		return 0
	}
	return today.DaysSince(c.StartDate) + 1
}

type MarketingPlan struct {
	CampaignName     string             `json:"campaign_name"`
	StrategySummary  string             `json:"strategy_summary"`
	TargetPersona    string             `json:"target_persona"`
	Channels         []string           `json:"channels"`
	WeeklyPlan       []WeekPlan         `json:"weekly_plan"`
	BudgetAllocation map[string]float64 `json:"budget_allocation"`
	ExpectedOutcomes ExpectedOutcomes   `json:"expected_outcomes"`
	ExecutiveSummary string             `json:"executive_summary,omitempty"`
	KeyMetrics       map[string]any     `json:"key_metrics,omitempty"`
	Recommendations  []string           `json:"recommendations,omitempty"`
}

type WeekPlan struct {
	Week    int      `json:"week"`
	Theme   string   `json:"theme"`
	Goal    string   `json:"goal"`
	Tactics []Tactic `json:"tactics"`
}

type Tactic struct {
	Day         int    `json:"day"`
	Channel     string `json:"channel"`
	Action      string `json:"action"`
	Description string `json:"description,omitempty"`
}

type ExpectedOutcomes struct {
	Reach              string `json:"reach"`
	EngagementRate     string `json:"engagement_rate"`
	ConversionEstimate string `json:"conversion_estimate"`
}

func (p *MarketingPlan) Value() (driver.Value, error) { return jsonValue(p) }
func (p *MarketingPlan) Scan(src any) error          { return jsonScan(src, p) }

type TonePreview struct {
	ToneSummary         string         `json:"tone_summary"`
	SampleEmail         SampleEmail    `json:"sample_email"`
	SampleSocialPost    SampleSocial   `json:"sample_social_post"`
	SampleWhatsApp      SampleWhatsApp `json:"sample_whatsapp"`
	RecommendedChannels []string       `json:"recommended_channels"`
	ChannelReasoning    string         `json:"channel_reasoning"`
}

type SampleEmail struct {
	Subject          string `json:"subject"`
	OpeningParagraph string `json:"opening_paragraph"`
}

type SampleSocial struct {
	Caption  string `json:"caption"`
	PostType string `json:"post_type"`
}

type SampleWhatsApp struct {
	Message string `json:"message"`
}

func (p *TonePreview) Value() (driver.Value, error) { return jsonValue(p) }
func (p *TonePreview) Scan(src any) error          { return jsonScan(src, p) }

func jsonValue(v any) (driver.Value, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func jsonScan(src any, dst any) error {
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(v, dst)
	case string:
		return json.Unmarshal([]byte(v), dst)
	}
	return fmt.Errorf("model: cannot scan %T into %T", src, dst)
}
