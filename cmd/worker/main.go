// cmd/worker/main.go
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/unclebandit/mica-backend/internal/config"
	"github.com/unclebandit/mica-backend/internal/db"
	"github.com/unclebandit/mica-backend/internal/execution"
	"github.com/unclebandit/mica-backend/internal/logger"
	"github.com/unclebandit/mica-backend/internal/queue"
	"github.com/unclebandit/mica-backend/internal/repository"
)

// jobSource feeds day jobs to a handler until ctx is done.
type jobSource interface {
	Consume(ctx context.Context, handle func(context.Context, execution.DayJob) error)
}

func main() {
	envErr := config.LoadEnvFile()

	cfg, err := config.Load()
	if err != nil {
		bootLog := logger.New(config.LoggerConfig{})
		bootLog.Fatal().Err(err).Msg("failed to load config")
	}
	log := logger.New(cfg.Logger)
	if envErr != nil {
		log.Warn().Msg("⚠️ No .env file found, relying on OS environment variables")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, err := db.Open(ctx, cfg.DataBase, logger.Component(log, "db"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to DB")
	}
	defer conn.Close()

	campaignRepo := &repository.CampaignRepository{DB: conn}
	store := &execution.RepositoryStore{
		Schedule: &repository.ScheduleRepository{DB: conn},
		Logs:     &repository.LogRepository{DB: conn},
	}
	engine := execution.NewEngine(store, execution.PacingFromConfig(cfg.Progression), logger.Component(log, "progression"))

	rabbit := queue.NewRabbitClient(cfg.Rabbit.URL, cfg.Rabbit.Queue, logger.Component(log, "rabbitmq"))
	defer rabbit.Close()

	runner := &execution.DayRunner{
		Engine:    engine,
		Store:     store,
		Campaigns: campaignRepo,
		Log:       logger.Component(log, "day-runner"),
	}
	var scheduler *execution.DayScheduler
	if cfg.Scheduler.Enabled {
		scheduler = &execution.DayScheduler{
			Campaigns: campaignRepo,
			Publisher: rabbit,
			Interval:  cfg.Scheduler.TickInterval,
			Log:       logger.Component(log, "scheduler"),
		}
	}

	log.Info().Msg("Worker running, waiting for day jobs...")
	if err := runWorker(ctx, rabbit, runner, scheduler, log); err != nil {
		log.Error().Err(err).Msg("worker stopped with error")
		os.Exit(1)
	}
	engine.Wait()
	log.Info().Msg("👋 worker stopped")
}

// runWorker consumes day jobs and, when scheduler is set, publishes the
// current day of every executing campaign on each tick.
func runWorker(ctx context.Context, src jobSource, runner *execution.DayRunner, scheduler *execution.DayScheduler, log zerolog.Logger) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		src.Consume(gctx, func(ctx context.Context, job execution.DayJob) error {
			log.Info().Str("campaign_id", job.CampaignID).Int("day", job.Day).Msg("📩 processing day job")
			return runner.Handle(ctx, job)
		})
		return nil
	})
	if scheduler != nil {
		g.Go(func() error {
			if err := scheduler.Run(gctx); !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}
	return g.Wait()
}
