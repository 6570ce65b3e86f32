package execution

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/unclebandit/mica-backend/internal/config"
	appErrors "github.com/unclebandit/mica-backend/internal/errors"
	"github.com/unclebandit/mica-backend/internal/metrics"
	"github.com/unclebandit/mica-backend/internal/model"
)

// ErrAlreadyRunning is returned by Start while a run for the campaign is in flight.
var ErrAlreadyRunning = errors.New("execution: progression already running")

// ErrEntryTaken ends a run whose entry was written by another run, usually
// one in a different process. The other run carries on with the campaign.
var ErrEntryTaken = errors.New("execution: entry taken by another run")

const (
	simulatedRecipient = "Simulated Batch"
	simulatedDetails   = "Simulated execution completed"
)

// Pacing controls how fast entries are narrated.
type Pacing struct {
	InitialDelay time.Duration
	StepDelay    time.Duration
	FinalDelay   time.Duration
	EntryPause   time.Duration
	MaxSteps     int
}

func PacingFromConfig(cfg config.ProgressionConfig) Pacing {
	return Pacing{
		InitialDelay: cfg.InitialDelay,
		StepDelay:    cfg.StepDelay,
		FinalDelay:   cfg.FinalDelay,
		EntryPause:   cfg.EntryPause,
		MaxSteps:     cfg.MaxSteps,
	}
}

// RunState is the per-campaign guard: Idle -> Running -> Completed.
type RunState int

const (
	StateIdle RunState = iota
	StateRunning
	StateCompleted
)

func (s RunState) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	}
	return "idle"
}

// Result summarises one day's run.
type Result struct {
	Day       int `json:"day"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
}

// Engine advances schedule entries for one campaign day at a time.
// Entries are processed strictly one after another.
type Engine struct {
	store  Store
	pacing Pacing
	log    zerolog.Logger
	notify *Broadcaster
	now    func() time.Time
	sleep  func(ctx context.Context, d time.Duration) error

	mu     sync.Mutex
	states map[string]RunState
	wg     sync.WaitGroup
}

type Option func(*Engine)

func WithBroadcaster(b *Broadcaster) Option { return func(e *Engine) { e.notify = b } }
func WithClock(now func() time.Time) Option { return func(e *Engine) { e.now = now } }

// WithSleep replaces the pacing timer, mostly for tests.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(e *Engine) { e.sleep = fn }
}

func NewEngine(store Store, pacing Pacing, log zerolog.Logger, opts ...Option) *Engine {
	if pacing.MaxSteps < 1 {
		pacing.MaxSteps = 5
	}
	e := &Engine{
		store:  store,
		pacing: pacing,
		log:    log,
		now:    time.Now,
		sleep:  sleepCtx,
		states: make(map[string]RunState),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// State reports the guard state for a campaign.
func (e *Engine) State(campaignID string) RunState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.states[campaignID]
}

func (e *Engine) acquire(campaignID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.states[campaignID] == StateRunning {
		return false
	}
	e.states[campaignID] = StateRunning
	return true
}

func (e *Engine) release(campaignID string) {
	e.mu.Lock()
	e.states[campaignID] = StateCompleted
	e.mu.Unlock()
}

// Start runs the given day in the background. A second Start for the same
// campaign while the first is running returns ErrAlreadyRunning and does
// nothing. The run stops when ctx is cancelled.
func (e *Engine) Start(ctx context.Context, campaignID string, day int) error {
	if !e.acquire(campaignID) {
		return ErrAlreadyRunning
	}
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer e.release(campaignID)
		_, err := e.run(ctx, campaignID, day)
		if errors.Is(err, ErrEntryTaken) {
			e.log.Info().Str("campaign_id", campaignID).Int("day", day).Msg("progression handed to another run")
			return
		}
		if err != nil && !errors.Is(err, context.Canceled) {
			e.log.Error().Err(err).Str("campaign_id", campaignID).Int("day", day).Msg("progression run failed")
		}
	}()
	return nil
}

// Run is the blocking form of Start.
func (e *Engine) Run(ctx context.Context, campaignID string, day int) (Result, error) {
	if !e.acquire(campaignID) {
		return Result{Day: day}, ErrAlreadyRunning
	}
	defer e.release(campaignID)
	return e.run(ctx, campaignID, day)
}

// Wait blocks until every background run has returned.
func (e *Engine) Wait() {
	e.wg.Wait()
}

// eligible reports whether a run for day should progress entry. Earlier
// days that never ran are caught up.
func eligible(entry *model.ScheduleEntry, day int) bool {
	if entry.ScheduledDay > day {
		return false
	}
	return entry.Status == model.EntryScheduled || entry.Status == model.EntryInProgress
}

func (e *Engine) run(ctx context.Context, campaignID string, day int) (Result, error) {
	res := Result{Day: day}
	log := e.log.With().Str("campaign_id", campaignID).Int("day", day).Logger()

	if err := e.sleep(ctx, e.pacing.InitialDelay); err != nil {
		return res, err
	}

	var errs []error
	seen := make(map[string]bool)
	for {
		// re-read so a pause issued mid-run keeps later entries from starting
		entries, err := e.store.ReadEntries(ctx, campaignID)
		if err != nil {
			errs = append(errs, appErrors.Persistence("read entries", err))
			break
		}

		var next *model.ScheduleEntry
		for i := range entries {
			if !seen[entries[i].ID] && eligible(&entries[i], day) {
				next = &entries[i]
				break
			}
		}
		if next == nil {
			break
		}
		if len(seen) > 0 {
			if err := e.sleep(ctx, e.pacing.EntryPause); err != nil {
				return res, err
			}
		}
		seen[next.ID] = true

		ok, err := e.progress(ctx, log, next)
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return res, err
		}
		if errors.Is(err, ErrEntryTaken) {
			log.Info().Str("entry_id", next.ID).Msg("entry taken by another run, stopping")
			return res, err
		}
		if ok {
			res.Completed++
		} else {
			res.Failed++
		}
		if err != nil {
			errs = append(errs, err)
		}
	}

	log.Info().Int("completed", res.Completed).Int("failed", res.Failed).Msg("progression day finished")
	return res, errors.Join(errs...)
}

// progress walks one entry to completed. It reports whether the entry ended
// completed; a write failure marks it failed and returns the error.
func (e *Engine) progress(ctx context.Context, log zerolog.Logger, entry *model.ScheduleEntry) (bool, error) {
	began := e.now()
	total := entry.RecipientsTotal
	entry.RecipientsFailed = 0
	if entry.Status != model.EntryInProgress || entry.StartedAt == nil {
		// a resumed entry keeps its count so progress never goes backwards
		entry.RecipientsSent = 0
		startedAt := e.now()
		entry.StartedAt = &startedAt
	}
	entry.Status = model.EntryInProgress

	if err := e.write(ctx, log, entry); err != nil {
		return false, e.fail(ctx, log, entry, err)
	}

	if total > 0 {
		steps := min(total, e.pacing.MaxSteps)
		perStep := (total + steps - 1) / steps
		for i := 1; i <= steps; i++ {
			if err := e.sleep(ctx, e.pacing.StepDelay); err != nil {
				return false, err
			}
			sent := min(i*perStep, total)
			if sent <= entry.RecipientsSent {
				continue
			}
			prev := entry.RecipientsSent
			entry.RecipientsSent = sent
			if err := e.write(ctx, log, entry); err != nil {
				entry.RecipientsSent = prev
				return false, e.fail(ctx, log, entry, err)
			}
		}
	}

	if err := e.sleep(ctx, e.pacing.FinalDelay); err != nil {
		return false, err
	}

	completedAt := e.now()
	done := *entry
	done.Status = model.EntryCompleted
	done.RecipientsSent = total
	done.RecipientsFailed = 0
	done.CompletedAt = &completedAt
	if err := e.write(ctx, log, &done); err != nil {
		return false, e.fail(ctx, log, entry, err)
	}
	*entry = done
	metrics.RecordEntryFinished(entry.Channel, model.EntryCompleted, e.now().Sub(began))

	action := model.ActionSent
	if entry.Channel == model.ChannelInstagram {
		action = model.ActionPosted
	}
	err := e.store.AppendLog(ctx, &model.CampaignLog{
		CampaignID:      entry.CampaignID,
		ScheduleEntryID: entry.ID,
		Channel:         entry.Channel,
		Action:          action,
		Recipient:       simulatedRecipient,
		StatusDetails:   simulatedDetails,
		ExecutedAt:      completedAt,
	})
	e.notify.Notify(entry.CampaignID)
	if err != nil {
		return true, appErrors.Persistence("append log", err)
	}
	return true, nil
}

func (e *Engine) write(ctx context.Context, log zerolog.Logger, entry *model.ScheduleEntry) error {
	if err := e.store.WriteEntry(ctx, entry); err != nil {
		if errors.Is(err, appErrors.ErrStaleEntry) {
			return fmt.Errorf("entry %s: %w", entry.ID, ErrEntryTaken)
		}
		return err
	}
	log.Debug().
		Str("entry_id", entry.ID).
		Str("channel", entry.Channel).
		Str("status", entry.Status).
		Str("progress", fmt.Sprintf("%d/%d", entry.RecipientsSent, entry.RecipientsTotal)).
		Msg("entry updated")
	e.notify.Notify(entry.CampaignID)
	return nil
}

// fail records cause and makes a best-effort attempt to mark the entry failed.
func (e *Engine) fail(ctx context.Context, log zerolog.Logger, entry *model.ScheduleEntry, cause error) error {
	if ctx.Err() != nil {
		// stopped, not broken: the entry resumes from in_progress next run
		return ctx.Err()
	}
	if errors.Is(cause, ErrEntryTaken) {
		return cause
	}
	log.Error().Err(cause).Str("entry_id", entry.ID).Msg("entry progression failed")

	now := e.now()
	entry.Status = model.EntryFailed
	entry.RecipientsFailed = entry.RecipientsTotal - entry.RecipientsSent
	entry.CompletedAt = &now
	if err := e.store.WriteEntry(ctx, entry); err != nil {
		log.Warn().Err(err).Str("entry_id", entry.ID).Msg("could not mark entry failed")
	}
	if err := e.store.AppendLog(ctx, &model.CampaignLog{
		CampaignID:      entry.CampaignID,
		ScheduleEntryID: entry.ID,
		Channel:         entry.Channel,
		Action:          model.ActionFailed,
		Recipient:       simulatedRecipient,
		StatusDetails:   cause.Error(),
		ExecutedAt:      now,
	}); err != nil {
		log.Warn().Err(err).Str("entry_id", entry.ID).Msg("could not log entry failure")
	}
	metrics.RecordEntryFinished(entry.Channel, model.EntryFailed, 0)
	e.notify.Notify(entry.CampaignID)

	return appErrors.Persistence(fmt.Sprintf("progress entry %s", entry.ID), cause)
}
