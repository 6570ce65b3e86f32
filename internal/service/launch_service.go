package service

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/rs/zerolog"

	appErrors "github.com/unclebandit/mica-backend/internal/errors"
	"github.com/unclebandit/mica-backend/internal/execution"
	"github.com/unclebandit/mica-backend/internal/generation"
	"github.com/unclebandit/mica-backend/internal/metrics"
	"github.com/unclebandit/mica-backend/internal/model"
	"github.com/unclebandit/mica-backend/internal/repository"
)

// AssetLoader returns a campaign's generated content.
type AssetLoader interface {
	GetAssets(ctx context.Context, campaignID string) (model.AssetSet, error)
}

type LaunchService struct {
	CampaignRepo repository.CampaignRepositoryInterface
	CustomerRepo repository.CustomerRepositoryInterface
	ScheduleRepo repository.ScheduleRepositoryInterface
	Assets       AssetLoader
	Webhook      generation.Triggerer
	Engine       *execution.Engine
	Pauser       *execution.Pauser

	// Jobs, when set, hands day runs to the worker process instead of Engine.
	Jobs execution.JobPublisher

	// BaseCtx outlives requests; simulated progressions run under it.
	BaseCtx context.Context
	Now     func() time.Time
	Log     zerolog.Logger
}

type LaunchResult struct {
	CampaignID   string                   `json:"campaign_id"`
	Status       string                   `json:"status"`
	Entries      int                      `json:"entries"`
	StartDate    model.Date               `json:"campaign_start_date"`
	EndDate      model.Date               `json:"campaign_end_date"`
	Webhook      generation.WebhookResult `json:"webhook"`
	WebhookError string                   `json:"webhook_error,omitempty"`
}

type launchPayload struct {
	CampaignID string `json:"campaign_id"`
	Action     string `json:"action"`
	StartDate  string `json:"start_date"`
}

type testSendPayload struct {
	CampaignID     string `json:"campaign_id"`
	Action         string `json:"action"`
	RecipientName  string `json:"recipient_name,omitempty"`
	RecipientEmail string `json:"recipient_email,omitempty"`
	Subject        string `json:"subject"`
	PreHeader      string `json:"pre_header"`
	Body           string `json:"body"`
	CTAText        string `json:"cta_text"`
}

func (s *LaunchService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *LaunchService) baseCtx() context.Context {
	if s.BaseCtx != nil {
		return s.BaseCtx
	}
	return context.Background()
}

// Launch builds the 28-day schedule, stores it with the campaign's move to
// executing, then notifies the automation webhook. With no webhook
// configured, day 1 is progressed locally in the background.
func (s *LaunchService) Launch(ctx context.Context, campaignID string) (*LaunchResult, error) {
	const op = "launch campaign"

	c, err := s.CampaignRepo.GetByID(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	if c.Status != model.CampaignPlanReady {
		return nil, appErrors.Conflict(op, "campaign is "+c.Status+", expected "+model.CampaignPlanReady)
	}

	assets, err := s.Assets.GetAssets(ctx, campaignID)
	if err != nil {
		return nil, appErrors.Persistence(op, err)
	}
	recipients, err := s.CustomerRepo.CountByCampaign(ctx, campaignID)
	if err != nil {
		return nil, appErrors.Persistence(op, err)
	}

	now := s.now()
	start := model.NewDate(now)
	end := execution.EndDate(start)

	entries, err := execution.BuildSchedule(c, assets, recipients, start, now)
	if err != nil {
		return nil, err
	}
	if err := s.ScheduleRepo.LaunchTx(ctx, campaignID, entries, start, end, now); err != nil {
		var appErr *appErrors.Error
		if errors.As(err, &appErr) {
			return nil, err
		}
		return nil, appErrors.Persistence(op, err)
	}
	metrics.RecordScheduleBuilt(len(entries))

	log := s.Log.With().Str("campaign_id", campaignID).Logger()
	log.Info().Int("entries", len(entries)).Int("recipients", recipients).Msg("🚀 campaign launched")

	result := &LaunchResult{
		CampaignID: campaignID,
		Status:     model.CampaignExecuting,
		Entries:    len(entries),
		StartDate:  start,
		EndDate:    end,
	}

	wh, err := s.Webhook.Trigger(ctx, generation.ActionCampaignLaunched, launchPayload{
		CampaignID: campaignID,
		Action:     generation.ActionCampaignLaunched,
		StartDate:  now.UTC().Format(time.RFC3339),
	})
	if err != nil {
		// The schedule is committed; the day scheduler still drives it.
		log.Warn().Err(err).Msg("⚠️ launch webhook failed")
		result.WebhookError = err.Error()
		return result, nil
	}
	result.Webhook = wh

	if wh.Simulated && wh.Error == "" {
		s.startDay(log, campaignID, 1)
	}
	return result, nil
}

func (s *LaunchService) startDay(log zerolog.Logger, campaignID string, day int) {
	if s.Jobs != nil {
		job := execution.DayJob{CampaignID: campaignID, Day: day}
		if err := s.Jobs.PublishDayJob(s.baseCtx(), job); err != nil {
			log.Error().Err(err).Int("day", day).Msg("failed to publish day job")
			return
		}
		log.Info().Int("day", day).Msg("📤 day job published")
		return
	}
	if s.Engine == nil {
		return
	}
	err := s.Engine.Start(s.baseCtx(), campaignID, day)
	if errors.Is(err, execution.ErrAlreadyRunning) {
		log.Info().Int("day", day).Msg("progression already running")
		return
	}
	if err != nil {
		log.Error().Err(err).Int("day", day).Msg("failed to start progression")
		return
	}
	log.Info().Int("day", day).Msg("▶️ simulated progression started")
}

// TestSend fires the send_test webhook with the first email rendered for
// the first uploaded contact.
func (s *LaunchService) TestSend(ctx context.Context, campaignID string) (generation.WebhookResult, error) {
	const op = "test send"

	c, err := s.CampaignRepo.GetByID(ctx, campaignID)
	if err != nil {
		return generation.WebhookResult{}, err
	}
	assets, err := s.Assets.GetAssets(ctx, campaignID)
	if err != nil {
		return generation.WebhookResult{}, appErrors.Persistence(op, err)
	}
	if len(assets.Emails) == 0 {
		return generation.WebhookResult{}, appErrors.Conflict(op, "campaign has no email templates yet")
	}
	sort.SliceStable(assets.Emails, func(i, j int) bool {
		return assets.Emails[i].TemplateOrder < assets.Emails[j].TemplateOrder
	})
	email := assets.Emails[0]

	recipient, err := s.CustomerRepo.First(ctx, campaignID)
	if err != nil {
		return generation.WebhookResult{}, appErrors.Persistence(op, err)
	}
	payload := testSendPayload{
		CampaignID: c.ID,
		Action:     generation.ActionSendTest,
		PreHeader:  email.PreHeader,
		CTAText:    email.CTAText,
	}
	data := map[string]string{"first_name": FirstName(""), "cta_link": c.ProductLinks}
	if recipient != nil {
		payload.RecipientName = recipient.Name
		payload.RecipientEmail = recipient.Email
		data["first_name"] = FirstName(recipient.Name)
	}
	payload.Subject = RenderTemplate(email.Subject, data)
	payload.Body = RenderTemplate(email.Body, data)

	return s.Webhook.Trigger(ctx, generation.ActionSendTest, payload)
}

func (s *LaunchService) Pause(ctx context.Context, campaignID string) (int64, error) {
	return s.Pauser.Pause(ctx, campaignID)
}

// Resume reopens paused entries. Without an automation webhook the current
// campaign day is progressed locally again.
func (s *LaunchService) Resume(ctx context.Context, campaignID string) (int64, error) {
	n, err := s.Pauser.Resume(ctx, campaignID)
	if err != nil {
		return 0, err
	}
	if !s.Webhook.Simulated(generation.ActionCampaignLaunched) {
		return n, nil
	}

	c, err := s.CampaignRepo.GetByID(ctx, campaignID)
	if err != nil {
		return n, err
	}
	// days missed while paused are caught up by the current day's run
	if day := min(c.CampaignDay(model.NewDate(s.now())), model.CampaignDays); day >= 1 {
		s.startDay(s.Log.With().Str("campaign_id", campaignID).Logger(), campaignID, day)
	}
	return n, nil
}
