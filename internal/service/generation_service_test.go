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

func pipelineAI() *scriptedAI {
	ai := newScriptedAI()
	ai.responses[generation.StrategySystemPrompt] = `{"campaign_name":"Chai Season","strategy_summary":"Warm up, then convert","weekly_plan":[{"week":1,"theme":"Awareness","goal":"Reach","tactics":[{"day":1,"channel":"email","action":"welcome"}]}]}`
	ai.responses[generation.EmailSystemPrompt] = "```json\n" + `{"emails":[
		{"template_order":1,"subject":"Welcome {{first_name}}","pre_header":"Fresh","body":"Hi","cta_text":"Shop","scheduled_day":1},
		{"template_order":2,"subject":"Last call","body":"Bye","cta_text":"Shop","scheduled_day":40}
	]}` + "\n```"
	ai.responses[generation.WhatsAppSystemPrompt] = `{"whatsapp_messages":[{"message_text":"Namaste!","message_type":"intro","scheduled_day":2}]}`
	ai.responses[generation.InstagramSystemPrompt] = `{"social_posts":[
		{"caption":"Sunrise chai","hashtags":"#chai","scheduled_day":3,"image_suggestion":"sunrise over a tea garden"},
		{"caption":"Monsoon mood","hashtags":"#rain","scheduled_day":0,"image_suggestion":"rain on a window"}
	]}`
	ai.responses[generation.VideoSystemPrompt] = "SCENE 1: steam rises from a kulhad."
	return ai
}

func newGenerationService(db *repotest.DB, ai generation.Completer) *service.GenerationService {
	return &service.GenerationService{
		CampaignRepo: db.Campaigns,
		AssetRepo:    db.Assets,
		AI:           ai,
		Images:       fakeImages{},
		Video:        fakeVideo{result: generation.VideoResult{URL: "https://video.example/1.mp4", Status: model.VideoStatusReady}},
		ImageWorkers: 2,
		Log:          zerolog.Nop(),
	}
}

func TestGenerationPipelineProducesPlan(t *testing.T) {
	db := repotest.New()
	db.Campaigns.Put(sampleCampaign("c1", model.CampaignToneApproved, 30000))
	svc := newGenerationService(db, pipelineAI())
	ctx := context.Background()

	progress, err := svc.Run(ctx, "c1")
	require.NoError(t, err)
	assert.False(t, progress.Running)
	assert.Equal(t, service.GenerationSteps, progress.Completed)
	assert.Empty(t, progress.FailedStep)

	c := db.Campaigns.Get("c1")
	assert.Equal(t, model.CampaignPlanReady, c.Status)
	require.NotNil(t, c.MarketingPlan)
	assert.Equal(t, "Chai Season", c.MarketingPlan.CampaignName)
	assert.Equal(t, "SCENE 1: steam rises from a kulhad.", c.VideoScript)
	assert.Equal(t, "https://video.example/1.mp4", c.VideoURL)
	assert.Equal(t, model.VideoStatusReady, c.VideoStatus)

	emails, _ := db.Assets.ListEmailTemplates(ctx, "c1")
	require.Len(t, emails, 2)
	assert.Equal(t, 1, emails[0].ScheduledDay)
	assert.Equal(t, model.CampaignDays, emails[1].ScheduledDay, "days are clamped into the campaign")

	messages, _ := db.Assets.ListWhatsAppMessages(ctx, "c1")
	require.Len(t, messages, 1)
	assert.Equal(t, 2, messages[0].ScheduledDay)

	posts, _ := db.Assets.ListSocialPosts(ctx, "c1")
	require.Len(t, posts, 2)
	assert.Equal(t, model.ChannelInstagram, posts[0].Platform)
	assert.Equal(t, 1, posts[1].ScheduledDay)
	assert.NotEmpty(t, posts[0].ImageURL)
	assert.Empty(t, posts[1].ImageURL, "a failed image leaves the post without one")
}

func TestGenerationSkipsChannelsNotRecommended(t *testing.T) {
	db := repotest.New()
	db.Campaigns.Put(sampleCampaign("c1", model.CampaignToneApproved, 1000))
	ai := pipelineAI()

	_, err := newGenerationService(db, ai).Run(context.Background(), "c1")
	require.NoError(t, err)

	assert.Equal(t, 1, ai.Calls(generation.WhatsAppSystemPrompt))
	assert.Zero(t, ai.Calls(generation.InstagramSystemPrompt))
	assert.Zero(t, ai.Calls(generation.VideoSystemPrompt))
	assert.Empty(t, db.Campaigns.Get("c1").VideoURL)
}

func TestGenerationFailureReportsStepAndCanRetry(t *testing.T) {
	db := repotest.New()
	db.Campaigns.Put(sampleCampaign("c1", model.CampaignToneApproved, 1000))
	ai := pipelineAI()
	good := ai.responses[generation.EmailSystemPrompt]
	ai.responses[generation.EmailSystemPrompt] = "I could not write those emails."
	svc := newGenerationService(db, ai)
	ctx := context.Background()

	progress, err := svc.Run(ctx, "c1")
	require.Error(t, err)
	assert.Equal(t, appErrors.KindMalformedOutput, appErrors.KindOf(err))
	assert.Equal(t, service.StepEmails, progress.FailedStep)
	assert.True(t, progress.Retryable)
	assert.Equal(t, []string{service.StepStrategy}, progress.Completed)
	assert.Equal(t, model.CampaignGenerating, db.Campaigns.Get("c1").Status)

	ai.mu.Lock()
	ai.responses[generation.EmailSystemPrompt] = good
	ai.mu.Unlock()

	progress, err = svc.Run(ctx, "c1")
	require.NoError(t, err)
	assert.Empty(t, progress.FailedStep)
	assert.Equal(t, model.CampaignPlanReady, db.Campaigns.Get("c1").Status)
}

func TestGenerationRequiresApprovedTone(t *testing.T) {
	db := repotest.New()
	db.Campaigns.Put(sampleCampaign("c1", model.CampaignTonePreview, 1000))

	err := newGenerationService(db, pipelineAI()).Start(context.Background(), "c1")
	assert.Equal(t, appErrors.KindConflict, appErrors.KindOf(err))
}

func TestGenerationStartIsGuarded(t *testing.T) {
	db := repotest.New()
	db.Campaigns.Put(sampleCampaign("c1", model.CampaignToneApproved, 1000))
	ai := pipelineAI()
	ai.block = make(chan struct{})
	svc := newGenerationService(db, ai)
	ctx := context.Background()

	require.NoError(t, svc.Start(ctx, "c1"))
	assert.True(t, svc.Progress("c1").Running)
	assert.ErrorIs(t, svc.Start(ctx, "c1"), service.ErrGenerationRunning)

	close(ai.block)
	svc.Wait()

	p := svc.Progress("c1")
	assert.False(t, p.Running)
	assert.Equal(t, service.GenerationSteps, p.Completed)
	assert.Equal(t, model.CampaignPlanReady, db.Campaigns.Get("c1").Status)
}
