// internal/service/campaign_service.go
package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	appErrors "github.com/unclebandit/mica-backend/internal/errors"
	"github.com/unclebandit/mica-backend/internal/model"
	"github.com/unclebandit/mica-backend/internal/repository"
	"github.com/unclebandit/mica-backend/internal/timeline"
)

// MinLaunchLeadDays is how far ahead a new campaign's launch date must be.
const MinLaunchLeadDays = 7

const ToneCustom = "Custom"

type CampaignService struct {
	CampaignRepo repository.CampaignRepositoryInterface
	CustomerRepo repository.CustomerRepositoryInterface
	AssetRepo    repository.AssetRepositoryInterface
	ScheduleRepo repository.ScheduleRepositoryInterface
	Now          func() time.Time
	Log          zerolog.Logger
}

type CreateCampaignInput struct {
	UserID             string           `json:"user_id"`
	CreatorName        string           `json:"creator_name"`
	ProductName        string           `json:"product_name"`
	ProductDescription string           `json:"product_description"`
	ProductLinks       string           `json:"product_links"`
	TargetAudience     string           `json:"target_audience"`
	Location           string           `json:"location"`
	LaunchDate         string           `json:"launch_date"`
	Budget             float64          `json:"budget"`
	Tone               string           `json:"tone"`
	ToneCustomWords    string           `json:"tone_custom_words"`
	Customers          []model.Customer `json:"customers,omitempty"`
}

type CampaignDetails struct {
	*model.Campaign
	Assets         model.AssetSet `json:"assets"`
	RecipientCount int            `json:"recipient_count"`
	Stats          map[string]int `json:"stats"`
}

func (s *CampaignService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *CampaignService) CreateCampaign(ctx context.Context, in CreateCampaignInput) (*model.Campaign, error) {
	const op = "create campaign"

	if strings.TrimSpace(in.ProductName) == "" {
		return nil, appErrors.Validation(op, "product_name is required")
	}
	if strings.TrimSpace(in.ProductDescription) == "" {
		return nil, appErrors.Validation(op, "product_description is required")
	}
	if strings.TrimSpace(in.TargetAudience) == "" {
		return nil, appErrors.Validation(op, "target_audience is required")
	}
	if in.Budget <= 0 {
		return nil, appErrors.Validation(op, "budget must be positive")
	}
	if in.Tone == "" {
		return nil, appErrors.Validation(op, "tone is required")
	}
	if in.Tone == ToneCustom && strings.TrimSpace(in.ToneCustomWords) == "" {
		return nil, appErrors.Validation(op, "tone_custom_words is required for a custom tone")
	}

	launch, err := model.ParseDate(in.LaunchDate)
	if err != nil {
		return nil, appErrors.Validation(op, "launch_date must be YYYY-MM-DD")
	}
	if launch.Before(model.NewDate(s.now()).AddDays(MinLaunchLeadDays).Time) {
		return nil, appErrors.Validation(op, "Launch date must be at least 7 days in the future")
	}

	c := &model.Campaign{
		ID:                 uuid.NewString(),
		UserID:             in.UserID,
		CreatorName:        in.CreatorName,
		ProductName:        in.ProductName,
		ProductDescription: in.ProductDescription,
		ProductLinks:       in.ProductLinks,
		TargetAudience:     in.TargetAudience,
		Location:           in.Location,
		LaunchDate:         launch,
		Budget:             in.Budget,
		Tone:               in.Tone,
		Status:             model.CampaignTonePreview,
	}
	if in.Tone == ToneCustom {
		c.Tone = in.ToneCustomWords
		c.ToneCustomWords = in.ToneCustomWords
	}

	if err := s.CampaignRepo.Create(ctx, c); err != nil {
		return nil, appErrors.Persistence(op, err)
	}

	if len(in.Customers) > 0 {
		n, err := s.CustomerRepo.InsertBatch(ctx, c.ID, in.Customers)
		if err != nil {
			s.Log.Error().Err(err).Str("campaign_id", c.ID).Msg("⚠️ failed to import customers")
		} else {
			s.Log.Info().Str("campaign_id", c.ID).Int("customers", n).Msg("customers imported")
		}
	}

	return c, nil
}

// ListCampaigns fetches campaigns with pagination
func (s *CampaignService) ListCampaigns(ctx context.Context, page, pageSize int, status string) ([]model.Campaign, map[string]int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	offset := (page - 1) * pageSize

	ptrs, total, err := s.CampaignRepo.ListCampaigns(ctx, offset, pageSize, status)
	if err != nil {
		return nil, nil, err
	}

	campaigns := make([]model.Campaign, len(ptrs))
	for i, c := range ptrs {
		campaigns[i] = *c
	}

	totalPages := (total + pageSize - 1) / pageSize
	pagination := map[string]int{
		"page":        page,
		"page_size":   pageSize,
		"total_count": total,
		"total_pages": totalPages,
	}

	return campaigns, pagination, nil
}

// GetCampaignDetails fetches a campaign by ID
func (s *CampaignService) GetCampaignDetails(ctx context.Context, id string) (*model.Campaign, error) {
	return s.CampaignRepo.GetByID(ctx, id)
}

// GetAssets loads the three generated content sets concurrently.
func (s *CampaignService) GetAssets(ctx context.Context, campaignID string) (model.AssetSet, error) {
	var set model.AssetSet
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		set.Emails, err = s.AssetRepo.ListEmailTemplates(gctx, campaignID)
		return err
	})
	g.Go(func() (err error) {
		set.WhatsApp, err = s.AssetRepo.ListWhatsAppMessages(gctx, campaignID)
		return err
	})
	g.Go(func() (err error) {
		set.SocialPosts, err = s.AssetRepo.ListSocialPosts(gctx, campaignID)
		return err
	})
	if err := g.Wait(); err != nil {
		return model.AssetSet{}, err
	}
	return set, nil
}

func (s *CampaignService) GetCampaignDetailsWithStats(ctx context.Context, campaignID string) (*CampaignDetails, error) {
	campaign, err := s.CampaignRepo.GetByID(ctx, campaignID)
	if err != nil {
		return nil, err
	}

	details := &CampaignDetails{Campaign: campaign}
	stats := map[string]int{
		"total":               0,
		model.EntryScheduled:  0,
		model.EntryInProgress: 0,
		model.EntryCompleted:  0,
		model.EntryFailed:     0,
		model.EntryPaused:     0,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		details.Assets, err = s.GetAssets(gctx, campaignID)
		return err
	})
	g.Go(func() (err error) {
		details.RecipientCount, err = s.CustomerRepo.CountByCampaign(gctx, campaignID)
		return err
	})
	g.Go(func() error {
		counts, err := s.ScheduleRepo.CountByStatus(gctx, campaignID)
		if err != nil {
			return err
		}
		for status, n := range counts {
			stats[status] = n
			stats["total"] += n
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		s.Log.Error().Err(err).Str("campaign_id", campaignID).Msg("failed to load campaign details")
		return nil, err
	}

	details.Stats = stats
	return details, nil
}

// PreviewEntry resolves the asset behind a schedule entry. When firstName is
// set, {{first_name}} placeholders are filled for a personalised preview.
func (s *CampaignService) PreviewEntry(ctx context.Context, campaignID, entryID, firstName string) (*timeline.Preview, error) {
	entry, err := s.ScheduleRepo.GetEntry(ctx, campaignID, entryID)
	if err != nil {
		return nil, err
	}

	p := &timeline.Preview{
		EntryID:   entry.ID,
		Channel:   entry.Channel,
		AssetType: entry.AssetType,
		Title:     timeline.AssetTitle(entry.Channel, entry.ScheduledDay),
	}

	switch entry.AssetType {
	case model.AssetEmailTemplate:
		t, err := s.AssetRepo.GetEmailTemplate(ctx, entry.AssetID)
		if err != nil {
			return nil, err
		}
		p.Content = timeline.EmailPreview(t)
	case model.AssetWhatsAppMessage:
		m, err := s.AssetRepo.GetWhatsAppMessage(ctx, entry.AssetID)
		if err != nil {
			return nil, err
		}
		p.Content = timeline.WhatsAppPreview(m)
	case model.AssetSocialPost:
		sp, err := s.AssetRepo.GetSocialPost(ctx, entry.AssetID)
		if err != nil {
			return nil, err
		}
		p.Content = timeline.SocialPreview(sp)
		p.ImageURL = sp.ImageURL
	default:
		p.Content = timeline.PreviewNotFound
	}

	if firstName != "" {
		p.Content = RenderTemplate(p.Content, map[string]string{"first_name": firstName})
	}
	return p, nil
}
