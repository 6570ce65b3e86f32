package service_test

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/unclebandit/mica-backend/internal/errors"
	"github.com/unclebandit/mica-backend/internal/generation"
	"github.com/unclebandit/mica-backend/internal/model"
	"github.com/unclebandit/mica-backend/internal/repository/repotest"
	"github.com/unclebandit/mica-backend/internal/service"
)

const tonePreviewJSON = "```json\n" + `{
  "tone_summary": "Friendly and relaxed",
  "sample_email": {"subject": "Your new favourite chai", "opening_paragraph": "Hey there!"},
  "sample_social_post": {"caption": "Chai o'clock", "post_type": "carousel"},
  "sample_whatsapp": {"message": "Hi! Fresh masala just landed."},
  "recommended_channels": ["email"],
  "channel_reasoning": "Budget allows a broad mix"
}` + "\n```"

func newToneService(db *repotest.DB, ai generation.Completer) *service.ToneService {
	return &service.ToneService{CampaignRepo: db.Campaigns, AI: ai, Log: zerolog.Nop()}
}

func TestRecommendedChannels(t *testing.T) {
	tests := []struct {
		budget float64
		want   []string
	}{
		{1000, []string{"email", "whatsapp"}},
		{5000, []string{"email", "whatsapp", "instagram"}},
		{15000, []string{"email", "whatsapp", "instagram", "voice_agent"}},
		{25000, []string{"email", "whatsapp", "instagram", "voice_agent", "video_ad"}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, service.RecommendedChannels(tt.budget), "budget %v", tt.budget)
	}
}

func TestTonePreviewIsGeneratedOnce(t *testing.T) {
	db := repotest.New()
	db.Campaigns.Put(sampleCampaign("c1", model.CampaignTonePreview, 6000))
	ai := newScriptedAI()
	ai.responses[generation.TonePreviewSystemPrompt] = tonePreviewJSON
	svc := newToneService(db, ai)

	c, err := svc.Preview(context.Background(), "c1")
	require.NoError(t, err)
	require.NotNil(t, c.TonePreview)
	assert.Equal(t, "Friendly and relaxed", c.TonePreview.ToneSummary)
	assert.Equal(t, []string{"email", "whatsapp", "instagram"}, c.RecommendedChannels)

	_, err = svc.Preview(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, 1, ai.Calls(generation.TonePreviewSystemPrompt))

	stored := db.Campaigns.Get("c1")
	assert.Equal(t, []string{"email", "whatsapp", "instagram"}, stored.RecommendedChannels)
}

func TestTonePreviewMalformedOutput(t *testing.T) {
	db := repotest.New()
	db.Campaigns.Put(sampleCampaign("c1", model.CampaignTonePreview, 6000))
	ai := newScriptedAI()
	ai.responses[generation.TonePreviewSystemPrompt] = "Sure! Here is your preview."

	_, err := newToneService(db, ai).Preview(context.Background(), "c1")
	require.Error(t, err)
	assert.Equal(t, appErrors.KindMalformedOutput, appErrors.KindOf(err))
	assert.True(t, appErrors.IsRetryable(err))
	assert.Nil(t, db.Campaigns.Get("c1").TonePreview)
}

func TestTonePreviewMissingKeyIsConfigError(t *testing.T) {
	db := repotest.New()
	db.Campaigns.Put(sampleCampaign("c1", model.CampaignTonePreview, 6000))
	ai := newScriptedAI()
	ai.errs[generation.TonePreviewSystemPrompt] = appErrors.Config("complete", generation.MsgMissingAIKey)

	_, err := newToneService(db, ai).Preview(context.Background(), "c1")
	require.Error(t, err)
	assert.Equal(t, appErrors.KindConfig, appErrors.KindOf(err))
	assert.False(t, appErrors.IsRetryable(err))
}

func TestReviseToneOnlyOnce(t *testing.T) {
	db := repotest.New()
	db.Campaigns.Put(sampleCampaign("c1", model.CampaignTonePreview, 6000))
	ai := newScriptedAI()
	ai.responses[generation.TonePreviewSystemPrompt] = tonePreviewJSON
	svc := newToneService(db, ai)
	ctx := context.Background()

	c, err := svc.Revise(ctx, "c1", service.ReviseToneInput{Tone: "Urgent"})
	require.NoError(t, err)
	assert.Equal(t, "Urgent", c.Tone)
	assert.True(t, c.ToneRevisionUsed)
	assert.True(t, db.Campaigns.Get("c1").ToneRevisionUsed)

	_, err = svc.Revise(ctx, "c1", service.ReviseToneInput{Tone: "Professional"})
	require.Error(t, err)
	assert.Equal(t, appErrors.KindConflict, appErrors.KindOf(err))
	assert.Equal(t, "Urgent", db.Campaigns.Get("c1").Tone)
}

func TestReviseToneValidation(t *testing.T) {
	db := repotest.New()
	db.Campaigns.Put(sampleCampaign("c1", model.CampaignTonePreview, 6000))
	svc := newToneService(db, newScriptedAI())

	_, err := svc.Revise(context.Background(), "c1", service.ReviseToneInput{Tone: service.ToneCustom})
	assert.Equal(t, appErrors.KindValidation, appErrors.KindOf(err))
}

func TestApproveTone(t *testing.T) {
	db := repotest.New()
	db.Campaigns.Put(sampleCampaign("c1", model.CampaignTonePreview, 6000))
	ai := newScriptedAI()
	ai.responses[generation.TonePreviewSystemPrompt] = tonePreviewJSON
	svc := newToneService(db, ai)
	ctx := context.Background()

	_, err := svc.Approve(ctx, "c1")
	assert.Equal(t, appErrors.KindConflict, appErrors.KindOf(err), "approval needs a preview first")

	_, err = svc.Preview(ctx, "c1")
	require.NoError(t, err)

	c, err := svc.Approve(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, model.CampaignToneApproved, c.Status)
	assert.Equal(t, model.CampaignToneApproved, db.Campaigns.Get("c1").Status)

	_, err = svc.Approve(ctx, "c1")
	assert.Equal(t, appErrors.KindConflict, appErrors.KindOf(err))
}
