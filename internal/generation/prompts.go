package generation

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/unclebandit/mica-backend/internal/model"
)

const TonePreviewSystemPrompt = `You are MiCA, an expert AI marketing strategist specializing in campaigns for small businesses, solo entrepreneurs, and social impact organizations in India.

Your task is to generate a TONE PREVIEW: 3 short samples that show the user what their marketing campaign will feel and sound like. This is NOT the full campaign. This is a quick taste so the user can approve the tone before we invest in full generation.

You must respond in valid JSON format only. No markdown, no preamble, no explanation outside the JSON.

Response format:
{
  "tone_summary": "2-3 sentences describing the overall marketing tone and approach you'll take for this campaign",
  "sample_email": {
    "subject": "Email subject line (max 60 chars)",
    "opening_paragraph": "First paragraph of the email (3-4 sentences, ~80 words)"
  },
  "sample_social_post": {
    "caption": "Instagram caption (150-200 words, include 3-5 relevant hashtags at the end)",
    "post_type": "carousel | single_image | reel_script"
  },
  "sample_whatsapp": {
    "message": "WhatsApp message (60-100 words, conversational, include one emoji, include a clear CTA)"
  },
  "recommended_channels": ["email", "whatsapp", "instagram", "voice_agent", "video_ad"],
  "channel_reasoning": "1-2 sentences explaining why these channels were chosen based on the product type and budget"
}

Rules:
- Match the requested tone EXACTLY (Professional, Warm, Urgent, Casual, or Custom)
- Write for the Indian market context: use ₹ for currency, reference Indian cultural context where relevant
- Keep language simple and accessible (target audience may not be marketing-savvy)
- WhatsApp message should feel personal, like it's from a friend, not a corporation
- Email should be professional but engaging
- Social post should be scroll-stopping and visual-friendly
- For recommended_channels: ALWAYS include "email" and "whatsapp". Only add "instagram" if budget >= ₹5000. Only add "voice_agent" if budget >= ₹15000. Only add "video_ad" if budget >= ₹25000.`

const (
	StrategySystemPrompt  = "You are an expert marketing strategist. Return ONLY valid JSON. No markdown."
	EmailSystemPrompt     = "You are an email marketing expert. Return ONLY valid JSON."
	WhatsAppSystemPrompt  = "You are a WhatsApp marketing expert. Return valid JSON."
	InstagramSystemPrompt = "You are an Instagram expert. Return valid JSON."
	VideoSystemPrompt     = "You are a video ad scriptwriter. Return plain text only."
)

const (
	EmailCount      = 5
	WhatsAppCount   = 8
	SocialPostCount = 10
)

// TonePreviewPrompt renders the user prompt for a tone preview. tone and
// customWords override the campaign's stored values when non-empty.
func TonePreviewPrompt(c *model.Campaign, tone, customWords string) string {
	if tone == "" {
		tone = c.Tone
	}
	if customWords == "" {
		customWords = c.ToneCustomWords
	}
	location := c.Location
	if location == "" {
		location = "India (general)"
	}
	requested := tone
	if tone == "Custom" {
		requested += ": Custom tone words: " + customWords
	}

	return fmt.Sprintf(`Generate a tone preview for this campaign:

PRODUCT NAME: %s
PRODUCT DESCRIPTION: %s
TARGET AUDIENCE: %s
LAUNCH DATE: %s
BUDGET: ₹%s
LOCATION: %s
REQUESTED TONE: %s

Generate the tone preview samples now.`,
		c.ProductName, c.ProductDescription, c.TargetAudience, c.LaunchDate,
		FormatRupees(c.Budget), location, requested)
}

func StrategyPrompt(c *model.Campaign) string {
	tone := c.Tone
	if c.Tone == "Custom" {
		tone += " (" + c.ToneCustomWords + ")"
	}
	channels, _ := json.Marshal(c.RecommendedChannels)

	return fmt.Sprintf(`Generate a 4-week marketing campaign plan for:
PRODUCT: %s
DESC: %s
AUDIENCE: %s
TONE: %s
BUDGET: ₹%s
CHANNELS: %s

The output MUST be valid JSON matching the schema:
{
  "campaign_name": "string",
  "strategy_summary": "string",
  "target_persona": "string",
  "channels": ["string"],
  "weekly_plan": [{ "week": 1, "theme": "string", "goal": "string", "tactics": [{ "day": 1, "channel": "string", "action": "string", "description": "string" }] }],
  "budget_allocation": { "channel_name": number },
  "expected_outcomes": { "reach": "string", "engagement_rate": "string", "conversion_estimate": "string" }
}`, c.ProductName, c.ProductDescription, c.TargetAudience, tone, FormatRupees(c.Budget), channels)
}

func EmailPrompt(c *model.Campaign, plan *model.MarketingPlan) string {
	summary := ""
	if plan != nil {
		summary = plan.StrategySummary
	}
	return fmt.Sprintf(`Generate %d marketing emails for this campaign.
STRATEGY SUMMARY: %s
TONE: %s

Output JSON format:
{
  "emails": [
    {
      "template_order": 1,
      "subject": "string",
      "pre_header": "string",
      "body": "HTML string with simple formatting",
      "cta_text": "string",
      "scheduled_day": 1
    }
  ]
}
Rules:
- %d emails total
- Spread over %d days
- HTML body should be clean, use <p>, <br>, <strong>`, EmailCount, summary, c.Tone, EmailCount, model.CampaignDays)
}

func WhatsAppPrompt(c *model.Campaign) string {
	return fmt.Sprintf(`Generate %d WhatsApp messages for:
PRODUCT: %s
TONE: %s
Output JSON: { "whatsapp_messages": [{ "message_order": 1, "message_text": "string", "message_type": "string", "scheduled_day": 1 }] }`,
		WhatsAppCount, c.ProductName, c.Tone)
}

func InstagramPrompt(c *model.Campaign) string {
	return fmt.Sprintf(`Generate %d Instagram posts for:
PRODUCT: %s
TONE: %s
Output JSON: { "social_posts": [{ "post_order": 1, "caption": "string", "hashtags": "string", "scheduled_day": 1, "image_suggestion": "string" }] }`,
		SocialPostCount, c.ProductName, c.Tone)
}

// VideoScriptPrompt asks for a short spoken script used as the video agent prompt.
func VideoScriptPrompt(c *model.Campaign, plan *model.MarketingPlan) string {
	summary := ""
	if plan != nil {
		summary = plan.StrategySummary
	}
	return fmt.Sprintf(`Write a 30-second vertical video ad script for:
PRODUCT: %s
DESC: %s
AUDIENCE: %s
TONE: %s
STRATEGY: %s
Keep it under 90 words, spoken by a single presenter, ending with a clear call to action.`,
		c.ProductName, c.ProductDescription, c.TargetAudience, c.ToneLabel(), summary)
}

var toneStyles = map[string]string{
	"Professional & Trustworthy": "clean, corporate, minimal, professional photography style, soft lighting, muted elegant colors",
	"Warm & Inspirational":       "warm golden light, hopeful, uplifting, natural colors, soft focus background, inspiring atmosphere",
	"Urgent & Action-Oriented":   "bold, dynamic, high contrast, vibrant reds and oranges, energetic composition, strong typography space",
	"Casual & Friendly":          "bright, cheerful, pastel colors, playful composition, friendly vibe, lifestyle photography style",
	"Custom":                     defaultToneStyle,
}

const defaultToneStyle = "modern, clean, visually appealing, professional marketing style"

// BuildImagePrompt turns a post's image suggestion into a text-to-image prompt.
func BuildImagePrompt(suggestion, product, tone string) string {
	style, ok := toneStyles[tone]
	if !ok {
		style = defaultToneStyle
	}
	return fmt.Sprintf(`Marketing social media post image for "%s". %s. Style: %s. Square format for Instagram. No text overlays, no watermarks, no logos. High quality, photorealistic.`,
		product, suggestion, style)
}

// FormatRupees groups an amount the Indian way: 1250000 -> "12,50,000".
func FormatRupees(amount float64) string {
	n := int64(amount + 0.5)
	neg := n < 0
	if neg {
		n = -n
	}
	s := fmt.Sprintf("%d", n)
	if len(s) > 3 {
		head, tail := s[:len(s)-3], s[len(s)-3:]
		var parts []string
		for len(head) > 2 {
			parts = append([]string{head[len(head)-2:]}, parts...)
			head = head[:len(head)-2]
		}
		if head != "" {
			parts = append([]string{head}, parts...)
		}
		s = strings.Join(parts, ",") + "," + tail
	}
	if neg {
		s = "-" + s
	}
	return s
}
