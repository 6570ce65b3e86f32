package execution

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/unclebandit/mica-backend/internal/model"
)

// Transitioner atomically moves a campaign and its matching entries between statuses.
type Transitioner interface {
	TransitionTx(ctx context.Context, campaignID, fromCampaign, toCampaign, fromEntry, toEntry string) (int64, error)
}

// Pauser implements operator pause and resume. Only entries still scheduled
// are paused; anything already in progress runs to the end.
type Pauser struct {
	Store Transitioner
	Log   zerolog.Logger
}

func (p *Pauser) Pause(ctx context.Context, campaignID string) (int64, error) {
	n, err := p.Store.TransitionTx(ctx, campaignID,
		model.CampaignExecuting, model.CampaignPaused,
		model.EntryScheduled, model.EntryPaused)
	if err != nil {
		return 0, err
	}
	p.Log.Info().Str("campaign_id", campaignID).Int64("entries", n).Msg("⏸️ campaign paused")
	return n, nil
}

func (p *Pauser) Resume(ctx context.Context, campaignID string) (int64, error) {
	n, err := p.Store.TransitionTx(ctx, campaignID,
		model.CampaignPaused, model.CampaignExecuting,
		model.EntryPaused, model.EntryScheduled)
	if err != nil {
		return 0, err
	}
	p.Log.Info().Str("campaign_id", campaignID).Int64("entries", n).Msg("▶️ campaign resumed")
	return n, nil
}
