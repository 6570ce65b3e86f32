package controller_test

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unclebandit/mica-backend/internal/controller"
	"github.com/unclebandit/mica-backend/internal/execution"
	"github.com/unclebandit/mica-backend/internal/model"
	"github.com/unclebandit/mica-backend/internal/repository/repotest"
	"github.com/unclebandit/mica-backend/internal/service"
	"github.com/unclebandit/mica-backend/internal/timeline"
)

func launchedDB(t *testing.T) *repotest.DB {
	t.Helper()
	db := repotest.New()
	ctx := context.Background()
	db.Campaigns.Put(model.Campaign{ID: "c1", Status: model.CampaignPlanReady})
	require.NoError(t, db.Schedule.LaunchTx(ctx, "c1", []model.ScheduleEntry{
		{ID: "s1", CampaignID: "c1", Channel: model.ChannelEmail, ScheduledDay: 1, Status: model.EntryCompleted, RecipientsTotal: 10, RecipientsSent: 10},
		{ID: "s2", CampaignID: "c1", Channel: model.ChannelWhatsApp, ScheduledDay: 1, Status: model.EntryInProgress, RecipientsTotal: 10, RecipientsSent: 4},
		{ID: "s3", CampaignID: "c1", Channel: model.ChannelEmail, ScheduledDay: 5, Status: model.EntryScheduled, RecipientsTotal: 10},
	}, model.NewDate(fixedNow), model.NewDate(fixedNow).AddDays(27), fixedNow))
	for i := 0; i < 3; i++ {
		require.NoError(t, db.Logs.Append(ctx, &model.CampaignLog{CampaignID: "c1", Channel: model.ChannelEmail, Action: model.ActionSent}))
	}
	return db
}

func newTimelineController(db *repotest.DB) *controller.TimelineController {
	return &controller.TimelineController{
		TimelineService: &service.TimelineService{
			CampaignRepo: db.Campaigns,
			LogRepo:      db.Logs,
			Store:        &execution.RepositoryStore{Schedule: db.Schedule, Logs: db.Logs},
			Broadcaster:  execution.NewBroadcaster(),
			PollInterval: 20 * time.Millisecond,
			Log:          zerolog.Nop(),
		},
		Log: zerolog.Nop(),
	}
}

func TestTimelineHandler(t *testing.T) {
	ctrl := newTimelineController(launchedDB(t))

	w := httptest.NewRecorder()
	ctrl.Timeline(w, withParams(httptest.NewRequest(http.MethodGet, "/campaigns/c1/timeline", nil), "id", "c1"))
	require.Equal(t, http.StatusOK, w.Code)

	var view timeline.View
	require.NoError(t, json.NewDecoder(w.Body).Decode(&view))
	assert.Equal(t, 33, view.CompletionPercent)
	assert.Len(t, view.Done, 1)
	assert.Len(t, view.Live, 1)
	assert.Len(t, view.Upcoming, 1)
	assert.Equal(t, "Sending...", view.Live[0].Results)
	assert.Equal(t, "Follow-up Email (Day 5)", view.Upcoming[0].Title)
	assert.Len(t, view.Logs, 3)
}

func TestTimelineUnknownCampaign(t *testing.T) {
	ctrl := newTimelineController(repotest.New())

	w := httptest.NewRecorder()
	ctrl.Timeline(w, withParams(httptest.NewRequest(http.MethodGet, "/", nil), "id", "nope"))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestLogsHandlerHonoursLimit(t *testing.T) {
	ctrl := newTimelineController(launchedDB(t))

	w := httptest.NewRecorder()
	ctrl.Logs(w, withParams(httptest.NewRequest(http.MethodGet, "/campaigns/c1/logs?limit=2", nil), "id", "c1"))
	require.Equal(t, http.StatusOK, w.Code)

	var res struct {
		Data []model.CampaignLog `json:"data"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&res))
	assert.Len(t, res.Data, 2)
}

func TestTimelineStreamSendsEvents(t *testing.T) {
	ctrl := newTimelineController(launchedDB(t))
	r := chi.NewRouter()
	r.Get("/campaigns/{id}/timeline/stream", ctrl.Stream)
	srv := httptest.NewServer(r)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/campaigns/c1/timeline/stream", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	sc := bufio.NewScanner(resp.Body)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	var event, data string
	for sc.Scan() {
		line := sc.Text()
		if strings.HasPrefix(line, "event: ") {
			event = strings.TrimPrefix(line, "event: ")
		}
		if strings.HasPrefix(line, "data: ") {
			data = strings.TrimPrefix(line, "data: ")
			break
		}
	}
	require.NoError(t, sc.Err())
	assert.Equal(t, "timeline", event)

	var view timeline.View
	require.NoError(t, json.Unmarshal([]byte(data), &view))
	assert.Equal(t, "c1", view.CampaignID)
	assert.Equal(t, 3, view.Stats.Total)
}
