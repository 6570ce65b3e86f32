package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/unclebandit/mica-backend/internal/execution"
	"github.com/unclebandit/mica-backend/internal/model"
	"github.com/unclebandit/mica-backend/internal/repository"
	"github.com/unclebandit/mica-backend/internal/timeline"
)

const DefaultLogLimit = 50

type TimelineService struct {
	CampaignRepo repository.CampaignRepositoryInterface
	LogRepo      repository.LogRepositoryInterface
	Store        execution.Store
	Broadcaster  *execution.Broadcaster
	PollInterval time.Duration
	Log          zerolog.Logger
}

// Timeline returns the dashboard view of a campaign's schedule.
func (s *TimelineService) Timeline(ctx context.Context, campaignID string) (timeline.View, error) {
	if _, err := s.CampaignRepo.GetByID(ctx, campaignID); err != nil {
		return timeline.View{}, err
	}
	entries, err := s.Store.ReadEntries(ctx, campaignID)
	if err != nil {
		return timeline.View{}, err
	}
	logs, err := s.LogRepo.ListByCampaign(ctx, campaignID, DefaultLogLimit)
	if err != nil {
		return timeline.View{}, err
	}
	return timeline.Build(campaignID, entries, logs), nil
}

// Logs returns the newest execution log rows first.
func (s *TimelineService) Logs(ctx context.Context, campaignID string, limit int) ([]model.CampaignLog, error) {
	if _, err := s.CampaignRepo.GetByID(ctx, campaignID); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 500 {
		limit = DefaultLogLimit
	}
	return s.LogRepo.ListByCampaign(ctx, campaignID, limit)
}

// Stream emits a fresh view on every poll tick or progression signal until
// ctx is done.
func (s *TimelineService) Stream(ctx context.Context, campaignID string) (<-chan timeline.View, error) {
	if _, err := s.CampaignRepo.GetByID(ctx, campaignID); err != nil {
		return nil, err
	}

	out := make(chan timeline.View)
	updates := execution.Watch(ctx, s.Store, campaignID, s.PollInterval, s.Broadcaster)
	go func() {
		defer close(out)
		for entries := range updates {
			logs, err := s.LogRepo.ListByCampaign(ctx, campaignID, DefaultLogLimit)
			if err != nil {
				s.Log.Warn().Err(err).Str("campaign_id", campaignID).Msg("failed to read logs for stream")
			}
			select {
			case out <- timeline.Build(campaignID, entries, logs):
			case <-ctx.Done():
				for range updates {
				}
				return
			}
		}
	}()
	return out, nil
}
