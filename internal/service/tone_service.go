package service

import (
	"context"

	"github.com/rs/zerolog"

	appErrors "github.com/unclebandit/mica-backend/internal/errors"
	"github.com/unclebandit/mica-backend/internal/generation"
	"github.com/unclebandit/mica-backend/internal/model"
	"github.com/unclebandit/mica-backend/internal/repository"
)

// Budget thresholds (₹) that unlock optional channels.
const (
	InstagramMinBudget  = 5000
	VoiceAgentMinBudget = 15000
	VideoAdMinBudget    = 25000
)

// RecommendedChannels derives the channel list from the budget.
// Email and WhatsApp are always included.
func RecommendedChannels(budget float64) []string {
	channels := []string{model.ChannelEmail, model.ChannelWhatsApp}
	if budget >= InstagramMinBudget {
		channels = append(channels, model.ChannelInstagram)
	}
	if budget >= VoiceAgentMinBudget {
		channels = append(channels, model.ChannelVoiceAgent)
	}
	if budget >= VideoAdMinBudget {
		channels = append(channels, model.ChannelVideoAd)
	}
	return channels
}

type ToneService struct {
	CampaignRepo repository.CampaignRepositoryInterface
	AI           generation.Completer
	Log          zerolog.Logger
}

type ReviseToneInput struct {
	Tone            string `json:"tone"`
	ToneCustomWords string `json:"tone_custom_words"`
}

// Preview returns the stored tone preview, generating it on first use.
func (s *ToneService) Preview(ctx context.Context, campaignID string) (*model.Campaign, error) {
	c, err := s.CampaignRepo.GetByID(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	if c.TonePreview != nil {
		return c, nil
	}
	if c.Status != model.CampaignTonePreview {
		return nil, appErrors.Conflict("tone preview", "campaign is "+c.Status+", tone preview is no longer available")
	}

	preview, err := s.generate(ctx, c, "", "")
	if err != nil {
		return nil, err
	}
	if err := s.CampaignRepo.SaveTonePreview(ctx, c.ID, preview, preview.RecommendedChannels); err != nil {
		return nil, appErrors.Persistence("tone preview", err)
	}

	c.TonePreview = preview
	c.RecommendedChannels = preview.RecommendedChannels
	return c, nil
}

// Revise regenerates the preview with a new tone. Only one revision is allowed.
func (s *ToneService) Revise(ctx context.Context, campaignID string, in ReviseToneInput) (*model.Campaign, error) {
	const op = "revise tone"

	if in.Tone == "" {
		return nil, appErrors.Validation(op, "tone is required")
	}
	if in.Tone == ToneCustom && in.ToneCustomWords == "" {
		return nil, appErrors.Validation(op, "tone_custom_words is required for a custom tone")
	}

	c, err := s.CampaignRepo.GetByID(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	if c.Status != model.CampaignTonePreview {
		return nil, appErrors.Conflict(op, "campaign is "+c.Status+", tone can no longer be revised")
	}
	if c.ToneRevisionUsed {
		return nil, appErrors.Conflict(op, "The tone revision has already been used")
	}

	preview, err := s.generate(ctx, c, in.Tone, in.ToneCustomWords)
	if err != nil {
		return nil, err
	}

	if err := s.CampaignRepo.UpdateTone(ctx, c.ID, in.Tone, in.ToneCustomWords, true); err != nil {
		return nil, appErrors.Persistence(op, err)
	}
	if err := s.CampaignRepo.SaveTonePreview(ctx, c.ID, preview, preview.RecommendedChannels); err != nil {
		return nil, appErrors.Persistence(op, err)
	}

	s.Log.Info().Str("campaign_id", c.ID).Str("tone", in.Tone).Msg("🎨 tone revised")

	c.Tone = in.Tone
	c.ToneCustomWords = in.ToneCustomWords
	c.ToneRevisionUsed = true
	c.TonePreview = preview
	c.RecommendedChannels = preview.RecommendedChannels
	return c, nil
}

// Approve locks in the tone so generation can start.
func (s *ToneService) Approve(ctx context.Context, campaignID string) (*model.Campaign, error) {
	c, err := s.CampaignRepo.GetByID(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	if c.Status != model.CampaignTonePreview {
		return nil, appErrors.Conflict("approve tone", "campaign is "+c.Status+", expected "+model.CampaignTonePreview)
	}
	if c.TonePreview == nil {
		return nil, appErrors.Conflict("approve tone", "generate a tone preview before approving")
	}
	if err := s.CampaignRepo.UpdateStatus(ctx, c.ID, model.CampaignToneApproved); err != nil {
		return nil, appErrors.Persistence("approve tone", err)
	}
	c.Status = model.CampaignToneApproved
	return c, nil
}

func (s *ToneService) generate(ctx context.Context, c *model.Campaign, tone, customWords string) (*model.TonePreview, error) {
	text, err := s.AI.Complete(ctx, generation.Request{
		SystemPrompt: generation.TonePreviewSystemPrompt,
		UserPrompt:   generation.TonePreviewPrompt(c, tone, customWords),
		Temperature:  0.7,
	})
	if err != nil {
		return nil, err
	}

	var preview model.TonePreview
	if err := generation.DecodeJSON(text, &preview); err != nil {
		s.Log.Warn().Err(err).Str("campaign_id", c.ID).Str("raw", text).Msg("unparseable tone preview")
		return nil, err
	}
	preview.RecommendedChannels = RecommendedChannels(c.Budget)
	return &preview, nil
}
