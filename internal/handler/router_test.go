package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unclebandit/mica-backend/internal/controller"
	"github.com/unclebandit/mica-backend/internal/demo"
	"github.com/unclebandit/mica-backend/internal/execution"
	"github.com/unclebandit/mica-backend/internal/generation"
	"github.com/unclebandit/mica-backend/internal/handler"
	"github.com/unclebandit/mica-backend/internal/model"
	"github.com/unclebandit/mica-backend/internal/repository/repotest"
	"github.com/unclebandit/mica-backend/internal/service"
)

type nopAI struct{}

func (nopAI) Complete(context.Context, generation.Request) (string, error) { return "{}", nil }

type nopWebhook struct{}

func (nopWebhook) Trigger(context.Context, string, any) (generation.WebhookResult, error) {
	return generation.WebhookResult{Success: true}, nil
}

func (nopWebhook) Simulated(string) bool { return false }

func newTestRouter(t *testing.T, db *repotest.DB, withDemo bool) http.Handler {
	t.Helper()
	log := zerolog.Nop()
	store := &execution.RepositoryStore{Schedule: db.Schedule, Logs: db.Logs}
	campaigns := &service.CampaignService{
		CampaignRepo: db.Campaigns,
		CustomerRepo: db.Customers,
		AssetRepo:    db.Assets,
		ScheduleRepo: db.Schedule,
		Log:          log,
	}

	rt := handler.Routes{
		Campaigns: &controller.CampaignController{
			CampaignService:   campaigns,
			ToneService:       &service.ToneService{CampaignRepo: db.Campaigns, AI: nopAI{}, Log: log},
			GenerationService: &service.GenerationService{CampaignRepo: db.Campaigns, AssetRepo: db.Assets, AI: nopAI{}, Log: log},
			LaunchService: &service.LaunchService{
				CampaignRepo: db.Campaigns,
				CustomerRepo: db.Customers,
				ScheduleRepo: db.Schedule,
				Assets:       campaigns,
				Webhook:      nopWebhook{},
				Pauser:       &execution.Pauser{Store: db.Schedule, Log: log},
				Log:          log,
			},
			Log: log,
		},
		Details: handler.NewCampaignHandler(campaigns, log),
		Timeline: &controller.TimelineController{
			TimelineService: &service.TimelineService{CampaignRepo: db.Campaigns, LogRepo: db.Logs, Store: store, Log: log},
			Log:             log,
		},
		MetricsPath: "/metrics",
		Log:         log,
	}
	if withDemo {
		data, err := demo.Load()
		require.NoError(t, err)
		sessions := demo.NewSessionStore(data, demo.Options{Sleep: func(ctx context.Context, _ time.Duration) error { return ctx.Err() }}, log)
		t.Cleanup(sessions.Close)
		rt.Demo = &controller.DemoController{Sessions: sessions, Log: log}
	}
	return handler.NewRouter(rt)
}

func TestCampaignDetailsRoute(t *testing.T) {
	db := repotest.New()
	db.Campaigns.Put(model.Campaign{ID: "c1", ProductName: "Chai", Status: model.CampaignPlanReady})
	_ = db.Assets.ReplaceEmailTemplates(context.Background(), "c1", []model.EmailTemplate{{ID: "e1", CampaignID: "c1", TemplateOrder: 1}})
	r := newTestRouter(t, db, false)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/campaigns/c1", nil))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var details struct {
		ID     string         `json:"id"`
		Stats  map[string]int `json:"stats"`
		Assets struct {
			Emails []model.EmailTemplate `json:"email_templates"`
		} `json:"assets"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&details))
	assert.Equal(t, "c1", details.ID)
	assert.Len(t, details.Assets.Emails, 1)
	assert.Equal(t, 0, details.Stats["total"])

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/campaigns/missing", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRoutesAreMounted(t *testing.T) {
	db := repotest.New()
	db.Campaigns.Put(model.Campaign{ID: "c1", Status: model.CampaignTonePreview})
	r := newTestRouter(t, db, false)

	routes := []struct {
		method, path string
		want         int
	}{
		{http.MethodGet, "/health", http.StatusOK},
		{http.MethodGet, "/metrics", http.StatusOK},
		{http.MethodGet, "/campaigns", http.StatusOK},
		{http.MethodPost, "/campaigns", http.StatusBadRequest},
		{http.MethodPost, "/campaigns/c1/tone/approve", http.StatusConflict},
		{http.MethodPost, "/campaigns/c1/generate", http.StatusConflict},
		{http.MethodGet, "/campaigns/c1/generate", http.StatusOK},
		{http.MethodPost, "/campaigns/c1/launch", http.StatusConflict},
		{http.MethodPost, "/campaigns/c1/pause", http.StatusConflict},
		{http.MethodPost, "/campaigns/c1/resume", http.StatusConflict},
		{http.MethodPost, "/campaigns/c1/test-send", http.StatusConflict},
		{http.MethodGet, "/campaigns/c1/timeline", http.StatusOK},
		{http.MethodGet, "/campaigns/c1/logs", http.StatusOK},
		{http.MethodGet, "/campaigns/c1/schedule/s1/preview", http.StatusNotFound},
		{http.MethodPost, "/demo/sessions", http.StatusNotFound},
	}
	for _, rt := range routes {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(rt.method, rt.path, nil))
		assert.Equal(t, rt.want, w.Code, "%s %s: %s", rt.method, rt.path, w.Body.String())
	}
}

func TestDemoRoutes(t *testing.T) {
	r := newTestRouter(t, repotest.New(), true)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/demo/sessions", strings.NewReader(`{"start_date":"2026-05-01"}`)))
	require.Equal(t, http.StatusCreated, w.Code)
	var created struct {
		SessionID string `json:"session_id"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&created))

	base := "/demo/sessions/" + created.SessionID
	for _, path := range []string{base, base + "/timeline", base + "/schedule/sched-2/preview", "/demo/tone-preview"} {
		w = httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, w.Code, path)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, base, nil))
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, base+"/timeline", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
