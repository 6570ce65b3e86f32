package execution

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/unclebandit/mica-backend/internal/model"
)

// DayJob asks a worker to progress one campaign day.
type DayJob struct {
	CampaignID string `json:"campaign_id"`
	Day        int    `json:"day"`
}

type JobPublisher interface {
	PublishDayJob(ctx context.Context, job DayJob) error
}

type CampaignLister interface {
	ListByStatus(ctx context.Context, status string) ([]*model.Campaign, error)
}

// DayScheduler advances days 2..28: on every tick it publishes a job for
// the current day of each executing campaign. Day 1 is started by the
// launch itself, but republishing it is harmless because finished entries
// are never picked up again. A run for day N also catches up earlier days
// that were missed, and campaigns past day 28 keep getting a day-28 job
// until the runner closes them.
type DayScheduler struct {
	Campaigns CampaignLister
	Publisher JobPublisher
	Interval  time.Duration
	Now       func() time.Time
	Log       zerolog.Logger
}

// Tick publishes one job per executing campaign and reports how many went out.
func (s *DayScheduler) Tick(ctx context.Context) (int, error) {
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	today := model.NewDate(now())

	campaigns, err := s.Campaigns.ListByStatus(ctx, model.CampaignExecuting)
	if err != nil {
		return 0, err
	}

	var errs []error
	published := 0
	for _, c := range campaigns {
		day := min(c.CampaignDay(today), model.CampaignDays)
		if day < 1 {
			continue
		}
		if err := s.Publisher.PublishDayJob(ctx, DayJob{CampaignID: c.ID, Day: day}); err != nil {
			errs = append(errs, err)
			continue
		}
		published++
	}
	return published, errors.Join(errs...)
}

// Run ticks immediately and then on every interval until ctx is done.
func (s *DayScheduler) Run(ctx context.Context) error {
	interval := s.Interval
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		n, err := s.Tick(ctx)
		if err != nil {
			s.Log.Error().Err(err).Msg("day scheduler tick failed")
		} else {
			s.Log.Info().Int("jobs", n).Msg("day scheduler tick")
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

type CampaignStatusStore interface {
	GetByID(ctx context.Context, id string) (*model.Campaign, error)
	UpdateStatus(ctx context.Context, id, status string) error
}

// DayRunner is the consumer side of DayJob.
type DayRunner struct {
	Engine    *Engine
	Store     Store
	Campaigns CampaignStatusStore
	Log       zerolog.Logger
}

// Handle runs the job's day and closes the campaign once nothing is left.
// Jobs for campaigns that are not executing are dropped.
func (r *DayRunner) Handle(ctx context.Context, job DayJob) error {
	c, err := r.Campaigns.GetByID(ctx, job.CampaignID)
	if err != nil {
		return err
	}
	if c.Status != model.CampaignExecuting {
		r.Log.Info().Str("campaign_id", c.ID).Str("status", c.Status).Msg("skipping day job")
		return nil
	}

	res, err := r.Engine.Run(ctx, job.CampaignID, job.Day)
	if errors.Is(err, ErrAlreadyRunning) || errors.Is(err, ErrEntryTaken) {
		return nil
	}
	if err != nil {
		return err
	}
	r.Log.Info().Str("campaign_id", c.ID).Int("day", job.Day).
		Int("completed", res.Completed).Int("failed", res.Failed).Msg("✅ day processed")

	entries, err := r.Store.ReadEntries(ctx, job.CampaignID)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}
	for i := range entries {
		if !entries[i].Done() {
			return nil
		}
	}
	return r.Campaigns.UpdateStatus(ctx, job.CampaignID, model.CampaignCompleted)
}
