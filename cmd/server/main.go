// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/unclebandit/mica-backend/internal/config"
	"github.com/unclebandit/mica-backend/internal/controller"
	"github.com/unclebandit/mica-backend/internal/db"
	"github.com/unclebandit/mica-backend/internal/demo"
	"github.com/unclebandit/mica-backend/internal/execution"
	"github.com/unclebandit/mica-backend/internal/generation"
	"github.com/unclebandit/mica-backend/internal/handler"
	"github.com/unclebandit/mica-backend/internal/logger"
	"github.com/unclebandit/mica-backend/internal/queue"
	"github.com/unclebandit/mica-backend/internal/repository"
	"github.com/unclebandit/mica-backend/internal/service"
)

func main() {
	// Load .env
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

	if err := run(ctx, cfg, log); err != nil {
		log.Error().Err(err).Msg("server stopped with error")
		os.Exit(1)
	}
	log.Info().Msg("👋 server stopped")
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	conn, err := db.Open(ctx, cfg.DataBase, logger.Component(log, "db"))
	if err != nil {
		return err
	}
	defer conn.Close()

	customerRepo := &repository.CustomerRepository{DB: conn}
	campaignRepo := &repository.CampaignRepository{DB: conn}
	assetRepo := &repository.AssetRepository{DB: conn}
	scheduleRepo := &repository.ScheduleRepository{DB: conn}
	logRepo := &repository.LogRepository{DB: conn}

	ai := generation.NewCompletionClient(cfg.AI, nil, logger.Component(log, "ai"))
	webhook := generation.NewWebhook(cfg.Webhook, nil, logger.Component(log, "webhook"))

	store := &execution.RepositoryStore{Schedule: scheduleRepo, Logs: logRepo}
	broadcaster := execution.NewBroadcaster()
	engine := execution.NewEngine(store, execution.PacingFromConfig(cfg.Progression),
		logger.Component(log, "progression"), execution.WithBroadcaster(broadcaster))

	campaignService := &service.CampaignService{
		CampaignRepo: campaignRepo,
		CustomerRepo: customerRepo,
		AssetRepo:    assetRepo,
		ScheduleRepo: scheduleRepo,
		Log:          logger.Component(log, "campaigns"),
	}
	generationService := &service.GenerationService{
		CampaignRepo: campaignRepo,
		AssetRepo:    assetRepo,
		AI:           ai,
		Images:       generation.NewReplicateClient(cfg.Image, nil, logger.Component(log, "images")),
		Video:        generation.NewHeyGenClient(cfg.Video, nil, logger.Component(log, "video")),
		Log:          logger.Component(log, "generation"),
	}
	launchService := &service.LaunchService{
		CampaignRepo: campaignRepo,
		CustomerRepo: customerRepo,
		ScheduleRepo: scheduleRepo,
		Assets:       campaignService,
		Webhook:      webhook,
		Engine:       engine,
		Pauser:       &execution.Pauser{Store: scheduleRepo, Log: logger.Component(log, "pause")},
		BaseCtx:      ctx,
		Log:          logger.Component(log, "launch"),
	}
	// With RabbitMQ the worker owns progression, day 1 included.
	if cfg.Rabbit.Enabled {
		rabbit := queue.NewRabbitClient(cfg.Rabbit.URL, cfg.Rabbit.Queue, logger.Component(log, "rabbitmq"))
		defer rabbit.Close()
		launchService.Jobs = rabbit
	}
	timelineService := &service.TimelineService{
		CampaignRepo: campaignRepo,
		LogRepo:      logRepo,
		Store:        store,
		Broadcaster:  broadcaster,
		PollInterval: cfg.Progression.ObserverPoll,
		Log:          logger.Component(log, "timeline"),
	}

	ctrlLog := logger.Component(log, "http")
	routes := handler.Routes{
		Campaigns: &controller.CampaignController{
			CampaignService:   campaignService,
			ToneService:       &service.ToneService{CampaignRepo: campaignRepo, AI: ai, Log: logger.Component(log, "tone")},
			GenerationService: generationService,
			LaunchService:     launchService,
			Log:               ctrlLog,
		},
		Details:  handler.NewCampaignHandler(campaignService, ctrlLog),
		Timeline: &controller.TimelineController{TimelineService: timelineService, Log: ctrlLog},
		Log:      ctrlLog,
	}
	if cfg.Metrics.Enabled {
		routes.MetricsPath = cfg.Metrics.Path
	}

	if cfg.Demo.Enabled {
		data, err := demo.Load()
		if err != nil {
			return err
		}
		sessions := demo.NewSessionStore(data, demo.Options{
			TTL:        cfg.Demo.SessionTTL,
			Cleanup:    10 * time.Minute,
			StepDelay:  cfg.Demo.StepDelay,
			StartDelay: cfg.Demo.StartDelay,
			EntryPause: cfg.Progression.EntryPause,
		}, logger.Component(log, "demo"))
		defer sessions.Close()
		routes.Demo = &controller.DemoController{
			Sessions:     sessions,
			PollInterval: cfg.Progression.ObserverPoll,
			Log:          ctrlLog,
		}
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Web.Port,
		Handler:           handler.NewRouter(routes),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	// Without RabbitMQ the day scheduler and its consumer share this process.
	if cfg.Scheduler.Enabled && !cfg.Rabbit.Enabled {
		q := queue.NewInMemoryQueue(logger.Component(log, "queue"))
		runner := &execution.DayRunner{
			Engine:    engine,
			Store:     store,
			Campaigns: campaignRepo,
			Log:       logger.Component(log, "day-runner"),
		}
		if err := queue.SubscribeDayJobs(gctx, q, logger.Component(log, "queue"), runner.Handle); err != nil {
			return err
		}
		scheduler := &execution.DayScheduler{
			Campaigns: campaignRepo,
			Publisher: &queue.DayJobs{Queue: q},
			Interval:  cfg.Scheduler.TickInterval,
			Log:       logger.Component(log, "scheduler"),
		}
		g.Go(func() error {
			err := scheduler.Run(gctx)
			q.Wait()
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}

	g.Go(func() error {
		log.Info().Str("addr", srv.Addr).Msg("🚀 Server running")
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		log.Info().Msg("shutting down server")
		return srv.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	generationService.Wait()
	engine.Wait()
	return err
}
