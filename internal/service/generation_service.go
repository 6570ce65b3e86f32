package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	appErrors "github.com/unclebandit/mica-backend/internal/errors"
	"github.com/unclebandit/mica-backend/internal/generation"
	"github.com/unclebandit/mica-backend/internal/metrics"
	"github.com/unclebandit/mica-backend/internal/model"
	"github.com/unclebandit/mica-backend/internal/repository"
)

// Generation steps, in order.
const (
	StepStrategy = "strategy"
	StepEmails   = "emails"
	StepContent  = "content"
	StepVisuals  = "visuals"
	StepFinalize = "finalize"
)

var GenerationSteps = []string{StepStrategy, StepEmails, StepContent, StepVisuals, StepFinalize}

// ErrGenerationRunning is returned when a run for the campaign is already in flight.
var ErrGenerationRunning = errors.New("generation already running")

// GenerationProgress is the pollable state of a campaign's generation run.
type GenerationProgress struct {
	CampaignID string   `json:"campaign_id"`
	Running    bool     `json:"running"`
	Step       string   `json:"current_step,omitempty"`
	Completed  []string `json:"completed_steps"`
	FailedStep string   `json:"failed_step,omitempty"`
	Error      string   `json:"error,omitempty"`
	Retryable  bool     `json:"retryable,omitempty"`
}

type GenerationService struct {
	CampaignRepo repository.CampaignRepositoryInterface
	AssetRepo    repository.AssetRepositoryInterface
	AI           generation.Completer
	Images       generation.ImageGenerator // nil skips image generation
	Video        generation.VideoGenerator // nil skips video generation
	ImageWorkers int
	Log          zerolog.Logger

	mu       sync.Mutex
	progress map[string]*GenerationProgress
	wg       sync.WaitGroup
}

// Progress returns a copy of the campaign's latest run state.
func (s *GenerationService) Progress(campaignID string) GenerationProgress {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.progress[campaignID]
	if !ok {
		return GenerationProgress{CampaignID: campaignID, Completed: []string{}}
	}
	cp := *p
	cp.Completed = append([]string{}, p.Completed...)
	return cp
}

func (s *GenerationService) acquire(campaignID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.progress == nil {
		s.progress = make(map[string]*GenerationProgress)
	}
	if p, ok := s.progress[campaignID]; ok && p.Running {
		return false
	}
	s.progress[campaignID] = &GenerationProgress{CampaignID: campaignID, Running: true, Completed: []string{}}
	return true
}

func (s *GenerationService) update(campaignID string, fn func(p *GenerationProgress)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.progress[campaignID]; ok {
		fn(p)
	}
}

// Start validates the campaign and runs the pipeline in the background.
// A second Start while a run is in flight returns ErrGenerationRunning.
func (s *GenerationService) Start(ctx context.Context, campaignID string) error {
	c, err := s.CampaignRepo.GetByID(ctx, campaignID)
	if err != nil {
		return err
	}
	if err := checkGenerationAllowed(c); err != nil {
		return err
	}
	if !s.acquire(campaignID) {
		return ErrGenerationRunning
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		_ = s.run(context.WithoutCancel(ctx), c)
	}()
	return nil
}

// Run is the blocking form of Start.
func (s *GenerationService) Run(ctx context.Context, campaignID string) (GenerationProgress, error) {
	c, err := s.CampaignRepo.GetByID(ctx, campaignID)
	if err != nil {
		return GenerationProgress{}, err
	}
	if err := checkGenerationAllowed(c); err != nil {
		return GenerationProgress{}, err
	}
	if !s.acquire(campaignID) {
		return s.Progress(campaignID), ErrGenerationRunning
	}
	err = s.run(ctx, c)
	return s.Progress(campaignID), err
}

// Wait blocks until every background run has returned.
func (s *GenerationService) Wait() {
	s.wg.Wait()
}

func checkGenerationAllowed(c *model.Campaign) error {
	if c.Status == model.CampaignToneApproved || c.Status == model.CampaignGenerating {
		return nil
	}
	return appErrors.Conflict("generate campaign", "campaign is "+c.Status+", expected "+model.CampaignToneApproved)
}

func (s *GenerationService) run(ctx context.Context, c *model.Campaign) error {
	log := s.Log.With().Str("campaign_id", c.ID).Logger()
	log.Info().Msg("🚀 campaign generation started")

	steps := []struct {
		name string
		fn   func(context.Context, *model.Campaign) error
	}{
		{StepStrategy, s.strategy},
		{StepEmails, s.emails},
		{StepContent, s.content},
		{StepVisuals, s.visuals},
		{StepFinalize, s.finalize},
	}

	if c.Status != model.CampaignGenerating {
		if err := s.CampaignRepo.UpdateStatus(ctx, c.ID, model.CampaignGenerating); err != nil {
			err = appErrors.Persistence("generate campaign", err)
			s.finish(c.ID, StepStrategy, err)
			return err
		}
		c.Status = model.CampaignGenerating
	}

	for _, step := range steps {
		s.update(c.ID, func(p *GenerationProgress) { p.Step = step.name })

		if err := step.fn(ctx, c); err != nil {
			metrics.RecordGenerationStep(step.name, false)
			log.Error().Err(err).Str("step", step.name).Msg("❌ generation step failed")
			s.finish(c.ID, step.name, err)
			return fmt.Errorf("%s step: %w", step.name, err)
		}

		metrics.RecordGenerationStep(step.name, true)
		s.update(c.ID, func(p *GenerationProgress) { p.Completed = append(p.Completed, step.name) })
		log.Info().Str("step", step.name).Msg("✅ generation step done")
	}

	s.finish(c.ID, "", nil)
	return nil
}

// finish releases the guard so a failed run can be retried.
func (s *GenerationService) finish(campaignID, failedStep string, err error) {
	s.update(campaignID, func(p *GenerationProgress) {
		p.Running = false
		p.Step = ""
		if err != nil {
			p.FailedStep = failedStep
			p.Error = err.Error()
			p.Retryable = appErrors.IsRetryable(err)
		}
	})
}

func (s *GenerationService) strategy(ctx context.Context, c *model.Campaign) error {
	text, err := s.AI.Complete(ctx, generation.Request{
		SystemPrompt: generation.StrategySystemPrompt,
		UserPrompt:   generation.StrategyPrompt(c),
		Temperature:  0.7,
	})
	if err != nil {
		return err
	}

	var plan model.MarketingPlan
	if err := generation.DecodeJSON(text, &plan); err != nil {
		return err
	}
	if err := s.CampaignRepo.SaveMarketingPlan(ctx, c.ID, &plan); err != nil {
		return appErrors.Persistence("save marketing plan", err)
	}
	c.MarketingPlan = &plan
	return nil
}

func (s *GenerationService) emails(ctx context.Context, c *model.Campaign) error {
	text, err := s.AI.Complete(ctx, generation.Request{
		SystemPrompt: generation.EmailSystemPrompt,
		UserPrompt:   generation.EmailPrompt(c, c.MarketingPlan),
		Temperature:  0.7,
	})
	if err != nil {
		return err
	}

	var out struct {
		Emails []model.EmailTemplate `json:"emails"`
	}
	if err := generation.DecodeJSON(text, &out); err != nil {
		return err
	}
	if len(out.Emails) == 0 {
		return appErrors.Malformed("generate emails", generation.MsgParseFailed, nil)
	}

	for i := range out.Emails {
		e := &out.Emails[i]
		e.ID = uuid.NewString()
		e.CampaignID = c.ID
		if e.TemplateOrder == 0 {
			e.TemplateOrder = i + 1
		}
		e.ScheduledDay = clampDay(e.ScheduledDay)
	}
	if err := s.AssetRepo.ReplaceEmailTemplates(ctx, c.ID, out.Emails); err != nil {
		return appErrors.Persistence("save email templates", err)
	}
	return nil
}

func (s *GenerationService) content(ctx context.Context, c *model.Campaign) error {
	if c.HasChannel(model.ChannelWhatsApp) {
		text, err := s.AI.Complete(ctx, generation.Request{
			SystemPrompt: generation.WhatsAppSystemPrompt,
			UserPrompt:   generation.WhatsAppPrompt(c),
			Temperature:  0.8,
		})
		if err != nil {
			return err
		}
		var out struct {
			Messages []model.WhatsAppMessage `json:"whatsapp_messages"`
		}
		if err := generation.DecodeJSON(text, &out); err != nil {
			return err
		}
		for i := range out.Messages {
			m := &out.Messages[i]
			m.ID = uuid.NewString()
			m.CampaignID = c.ID
			if m.MessageOrder == 0 {
				m.MessageOrder = i + 1
			}
			m.ScheduledDay = clampDay(m.ScheduledDay)
		}
		if len(out.Messages) > 0 {
			if err := s.AssetRepo.ReplaceWhatsAppMessages(ctx, c.ID, out.Messages); err != nil {
				return appErrors.Persistence("save whatsapp messages", err)
			}
		}
	}

	if c.HasChannel(model.ChannelInstagram) {
		text, err := s.AI.Complete(ctx, generation.Request{
			SystemPrompt: generation.InstagramSystemPrompt,
			UserPrompt:   generation.InstagramPrompt(c),
			Temperature:  0.8,
		})
		if err != nil {
			return err
		}
		var out struct {
			Posts []model.SocialPost `json:"social_posts"`
		}
		if err := generation.DecodeJSON(text, &out); err != nil {
			return err
		}
		for i := range out.Posts {
			p := &out.Posts[i]
			p.ID = uuid.NewString()
			p.CampaignID = c.ID
			p.Platform = model.ChannelInstagram
			if p.PostOrder == 0 {
				p.PostOrder = i + 1
			}
			p.ScheduledDay = clampDay(p.ScheduledDay)
		}
		if len(out.Posts) > 0 {
			if err := s.AssetRepo.ReplaceSocialPosts(ctx, c.ID, out.Posts); err != nil {
				return appErrors.Persistence("save social posts", err)
			}
		}
	}
	return nil
}

// visuals renders post images and the video ad. A failed image or video never
// fails the step; only persistence errors do.
func (s *GenerationService) visuals(ctx context.Context, c *model.Campaign) error {
	if s.Images != nil && c.HasChannel(model.ChannelInstagram) {
		posts, err := s.AssetRepo.ListSocialPosts(ctx, c.ID)
		if err != nil {
			return appErrors.Persistence("load social posts", err)
		}

		workers := s.ImageWorkers
		if workers < 1 {
			workers = 2
		}
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(workers)
		for i := range posts {
			post := posts[i]
			if post.ImageURL != "" {
				continue
			}
			g.Go(func() error {
				prompt := generation.BuildImagePrompt(post.ImageSuggestion, c.ProductName, c.Tone)
				url, err := s.Images.GenerateImage(gctx, prompt)
				if err != nil {
					metrics.RecordImageFailure()
					s.Log.Warn().Err(err).Str("post_id", post.ID).Msg("⚠️ image generation failed, post kept without image")
					return nil
				}
				if err := s.AssetRepo.UpdateSocialPostImage(gctx, post.ID, url); err != nil {
					return appErrors.Persistence("save post image", err)
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
	}

	if s.Video != nil && c.HasChannel(model.ChannelVideoAd) {
		script, err := s.AI.Complete(ctx, generation.Request{
			SystemPrompt: generation.VideoSystemPrompt,
			UserPrompt:   generation.VideoScriptPrompt(c, c.MarketingPlan),
		})
		if err != nil {
			s.Log.Warn().Err(err).Str("campaign_id", c.ID).Msg("⚠️ video script generation failed")
			script = ""
		}
		if err := s.CampaignRepo.UpdateVideo(ctx, c.ID, script, "", model.VideoStatusGenerating); err != nil {
			return appErrors.Persistence("save video", err)
		}

		prompt := script
		if prompt == "" {
			prompt = generation.VideoScriptPrompt(c, c.MarketingPlan)
		}
		res := s.Video.Render(ctx, prompt)
		if err := s.CampaignRepo.UpdateVideo(ctx, c.ID, script, res.URL, res.Status); err != nil {
			return appErrors.Persistence("save video", err)
		}
	}
	return nil
}

func (s *GenerationService) finalize(ctx context.Context, c *model.Campaign) error {
	if err := s.CampaignRepo.UpdateStatus(ctx, c.ID, model.CampaignPlanReady); err != nil {
		return appErrors.Persistence("finalize campaign", err)
	}
	c.Status = model.CampaignPlanReady
	return nil
}

func clampDay(day int) int {
	return min(max(day, 1), model.CampaignDays)
}
