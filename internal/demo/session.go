package demo

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"

	appErrors "github.com/unclebandit/mica-backend/internal/errors"
	"github.com/unclebandit/mica-backend/internal/execution"
	"github.com/unclebandit/mica-backend/internal/metrics"
	"github.com/unclebandit/mica-backend/internal/model"
	"github.com/unclebandit/mica-backend/internal/timeline"
)

// sessionStore is what a session progresses and reads back.
type sessionStore interface {
	execution.Store
	Logs() []model.CampaignLog
}

// Session is one visitor's private copy of the demo campaign.
type Session struct {
	ID       string
	Campaign model.Campaign
	Assets   model.AssetSet

	store  sessionStore
	engine *execution.Engine
	notify *execution.Broadcaster
	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once
}

// StartSimulation progresses the day-1 entries in the background. It is a
// no-op while a run is in flight or when day 1 is already done.
func (s *Session) StartSimulation() error {
	entries, err := s.store.ReadEntries(s.ctx, s.Campaign.ID)
	if err != nil {
		return err
	}
	pending := false
	for i := range entries {
		if entries[i].ScheduledDay == 1 && !entries[i].Done() {
			pending = true
			break
		}
	}
	if !pending {
		return nil
	}

	err = s.engine.Start(s.ctx, s.Campaign.ID, 1)
	if errors.Is(err, execution.ErrAlreadyRunning) {
		return nil
	}
	if err == nil {
		metrics.RecordDemoSession("simulation_started")
	}
	return err
}

// Running reports whether the day-1 simulation is in flight.
func (s *Session) Running() bool {
	return s.engine.State(s.Campaign.ID) == execution.StateRunning
}

// Stop cancels any running simulation and waits for it to return.
func (s *Session) Stop() {
	s.once.Do(func() {
		s.cancel()
		s.engine.Wait()
	})
}

func (s *Session) Timeline() (timeline.View, error) {
	entries, err := s.store.ReadEntries(s.ctx, s.Campaign.ID)
	if err != nil {
		return timeline.View{}, err
	}
	return timeline.Build(s.Campaign.ID, entries, s.store.Logs()), nil
}

// Watch streams the session timeline until ctx is done or the session stops.
func (s *Session) Watch(ctx context.Context, interval time.Duration) <-chan timeline.View {
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(s.ctx, cancel)

	out := make(chan timeline.View)
	updates := execution.Watch(ctx, s.store, s.Campaign.ID, interval, s.notify)
	go func() {
		defer close(out)
		defer stop()
		defer cancel()
		for entries := range updates {
			select {
			case out <- timeline.Build(s.Campaign.ID, entries, s.store.Logs()):
			case <-ctx.Done():
			}
		}
	}()
	return out
}

func (s *Session) Preview(entryID string) (timeline.Preview, error) {
	entries, err := s.store.ReadEntries(s.ctx, s.Campaign.ID)
	if err != nil {
		return timeline.Preview{}, err
	}
	for _, e := range entries {
		if e.ID == entryID {
			return timeline.PreviewFromSet(e, s.Assets), nil
		}
	}
	return timeline.Preview{}, appErrors.NewAssetNotFound("schedule entry", entryID)
}

// Options tune the demo sessions.
type Options struct {
	TTL        time.Duration
	Cleanup    time.Duration // 0 disables the background janitor
	StepDelay  time.Duration
	StartDelay time.Duration
	EntryPause time.Duration
	Sleep      func(ctx context.Context, d time.Duration) error
}

// SessionStore owns the live demo sessions. Expired sessions are stopped.
type SessionStore struct {
	data  *Dataset
	opts  Options
	cache *cache.Cache
	log   zerolog.Logger
}

func NewSessionStore(data *Dataset, opts Options, log zerolog.Logger) *SessionStore {
	if opts.TTL <= 0 {
		opts.TTL = 2 * time.Hour
	}
	if opts.EntryPause == 0 {
		opts.EntryPause = 500 * time.Millisecond
	}
	st := &SessionStore{
		data:  data,
		opts:  opts,
		cache: cache.New(opts.TTL, opts.Cleanup),
		log:   log,
	}
	st.cache.OnEvicted(func(_ string, v any) {
		if s, ok := v.(*Session); ok {
			s.Stop()
			metrics.RecordDemoSession("stopped")
		}
	})
	return st
}

func (st *SessionStore) Dataset() *Dataset { return st.data }

// Create starts a fresh session whose campaign begins on start.
func (st *SessionStore) Create(start model.Date) *Session {
	c, entries, logs := st.data.Rebase(start)

	store := execution.NewMemoryStore(model.CampaignExecuting, entries, logs)
	notify := execution.NewBroadcaster()
	pacing := execution.Pacing{
		InitialDelay: st.opts.StartDelay,
		StepDelay:    st.opts.StepDelay,
		EntryPause:   st.opts.EntryPause,
		MaxSteps:     5,
	}
	engineOpts := []execution.Option{execution.WithBroadcaster(notify)}
	if st.opts.Sleep != nil {
		engineOpts = append(engineOpts, execution.WithSleep(st.opts.Sleep))
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		ID:       uuid.NewString(),
		Campaign: c,
		Assets:   st.data.Assets,
		store:    store,
		notify:   notify,
		engine:   execution.NewEngine(store, pacing, st.log.With().Str("component", "demo").Logger(), engineOpts...),
		ctx:      ctx,
		cancel:   cancel,
	}
	st.cache.Set(s.ID, s, cache.DefaultExpiration)
	metrics.RecordDemoSession("created")
	st.log.Info().Str("session_id", s.ID).Str("start", start.String()).Msg("🎬 demo session created")
	return s
}

func (st *SessionStore) Get(id string) (*Session, bool) {
	v, ok := st.cache.Get(id)
	if !ok {
		return nil, false
	}
	s, ok := v.(*Session)
	return s, ok
}

// Delete stops and forgets a session. Unknown ids are ignored.
func (st *SessionStore) Delete(id string) {
	st.cache.Delete(id)
}

// Close stops every session.
func (st *SessionStore) Close() {
	for id := range st.cache.Items() {
		st.cache.Delete(id)
	}
}
