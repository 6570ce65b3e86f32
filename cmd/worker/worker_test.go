package main

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/unclebandit/mica-backend/internal/execution"
	"github.com/unclebandit/mica-backend/internal/model"
	"github.com/unclebandit/mica-backend/internal/repository/repotest"
)

// chanQueue stands in for RabbitMQ on both the publish and consume side.
type chanQueue struct {
	jobs chan execution.DayJob
}

func (q *chanQueue) PublishDayJob(ctx context.Context, job execution.DayJob) error {
	select {
	case q.jobs <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *chanQueue) Consume(ctx context.Context, handle func(context.Context, execution.DayJob) error) {
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-q.jobs:
			_ = handle(ctx, job)
		}
	}
}

var launchTime = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func noSleep(ctx context.Context, _ time.Duration) error { return ctx.Err() }

func setupWorker(t *testing.T) (*repotest.DB, *execution.DayRunner) {
	t.Helper()
	db := repotest.New()
	db.Campaigns.Put(model.Campaign{ID: "c1", Status: model.CampaignPlanReady})
	start := model.NewDate(launchTime)
	require.NoError(t, db.Schedule.LaunchTx(context.Background(), "c1", []model.ScheduleEntry{
		{ID: "s1", CampaignID: "c1", Channel: model.ChannelEmail, ScheduledDay: 1, Status: model.EntryScheduled, RecipientsTotal: 3},
		{ID: "s2", CampaignID: "c1", Channel: model.ChannelWhatsApp, ScheduledDay: 1, Status: model.EntryScheduled, RecipientsTotal: 3},
	}, start, start.AddDays(model.CampaignDays-1), launchTime))

	store := &execution.RepositoryStore{Schedule: db.Schedule, Logs: db.Logs}
	engine := execution.NewEngine(store, execution.Pacing{MaxSteps: 5}, zerolog.Nop(), execution.WithSleep(noSleep))
	return db, &execution.DayRunner{Engine: engine, Store: store, Campaigns: db.Campaigns, Log: zerolog.Nop()}
}

func TestWorker(t *testing.T) {
	defer goleak.VerifyNone(t)

	db, runner := setupWorker(t)
	q := &chanQueue{jobs: make(chan execution.DayJob, 8)}
	scheduler := &execution.DayScheduler{
		Campaigns: db.Campaigns,
		Publisher: q,
		Interval:  time.Hour,
		Now:       func() time.Time { return launchTime.Add(2 * time.Hour) },
		Log:       zerolog.Nop(),
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- runWorker(ctx, q, runner, scheduler, zerolog.Nop()) }()

	require.Eventually(t, func() bool {
		return db.Campaigns.Get("c1").Status == model.CampaignCompleted
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)

	counts, err := db.Schedule.CountByStatus(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, 2, counts[model.EntryCompleted])
}

func TestWorkerWithoutScheduler(t *testing.T) {
	defer goleak.VerifyNone(t)

	db, runner := setupWorker(t)
	q := &chanQueue{jobs: make(chan execution.DayJob, 8)}
	q.jobs <- execution.DayJob{CampaignID: "c1", Day: 2}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- runWorker(ctx, q, runner, nil, zerolog.Nop()) }()

	// day 1 never ran, so the day-2 job catches it up
	require.Eventually(t, func() bool {
		return db.Campaigns.Get("c1").Status == model.CampaignCompleted
	}, 5*time.Second, 10*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	counts, err := db.Schedule.CountByStatus(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, 2, counts[model.EntryCompleted])
}
