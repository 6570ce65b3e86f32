package service_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/unclebandit/mica-backend/internal/generation"
	"github.com/unclebandit/mica-backend/internal/model"
	"github.com/unclebandit/mica-backend/internal/repository/repotest"
	"github.com/unclebandit/mica-backend/internal/service"
)

var fixedNow = time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

func noSleep(ctx context.Context, _ time.Duration) error { return ctx.Err() }

// scriptedAI answers by system prompt.
type scriptedAI struct {
	mu        sync.Mutex
	responses map[string]string
	errs      map[string]error
	calls     map[string]int
	block     chan struct{}
}

func newScriptedAI() *scriptedAI {
	return &scriptedAI{
		responses: map[string]string{},
		errs:      map[string]error{},
		calls:     map[string]int{},
	}
}

func (a *scriptedAI) Complete(ctx context.Context, req generation.Request) (string, error) {
	a.mu.Lock()
	a.calls[req.SystemPrompt]++
	resp, err, block := a.responses[req.SystemPrompt], a.errs[req.SystemPrompt], a.block
	a.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if err != nil {
		return "", err
	}
	return resp, nil
}

func (a *scriptedAI) Calls(prompt string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls[prompt]
}

// fakeImages fails for any prompt mentioning "rain on".
type fakeImages struct{}

func (fakeImages) GenerateImage(_ context.Context, prompt string) (string, error) {
	if strings.Contains(prompt, "rain on") {
		return "", errors.New("Image generation failed: nsfw")
	}
	return "https://img.example/" + strings.Fields(prompt)[0], nil
}

type fakeVideo struct{ result generation.VideoResult }

func (v fakeVideo) Render(context.Context, string) generation.VideoResult { return v.result }

// fakeWebhook records every trigger.
type fakeWebhook struct {
	mu        sync.Mutex
	simulated bool
	err       error
	actions   []string
	payloads  []map[string]any
}

func (w *fakeWebhook) Trigger(_ context.Context, action string, payload any) (generation.WebhookResult, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.actions = append(w.actions, action)
	raw, _ := json.Marshal(payload)
	var m map[string]any
	_ = json.Unmarshal(raw, &m)
	w.payloads = append(w.payloads, m)
	if w.err != nil {
		return generation.WebhookResult{}, w.err
	}
	if w.simulated {
		return generation.WebhookResult{Success: true, Simulated: true, Message: generation.MsgSimulated}, nil
	}
	return generation.WebhookResult{Success: true}, nil
}

func (w *fakeWebhook) Simulated(string) bool { return w.simulated }

func newCampaignService(db *repotest.DB) *service.CampaignService {
	return &service.CampaignService{
		CampaignRepo: db.Campaigns,
		CustomerRepo: db.Customers,
		AssetRepo:    db.Assets,
		ScheduleRepo: db.Schedule,
		Now:          clock,
		Log:          zerolog.Nop(),
	}
}

func sampleCampaign(id, status string, budget float64) model.Campaign {
	return model.Campaign{
		ID:                  id,
		ProductName:         "Chai Masala",
		ProductDescription:  "Hand-ground spice blend",
		ProductLinks:        "https://chai.example",
		TargetAudience:      "Tea lovers",
		LaunchDate:          model.NewDate(fixedNow).AddDays(10),
		Budget:              budget,
		Tone:                "Casual",
		Status:              status,
		RecommendedChannels: service.RecommendedChannels(budget),
	}
}

// seedAssets stores two emails (days 1 and 5), one WhatsApp message (day 1)
// and one social post (day 3).
func seedAssets(db *repotest.DB, campaignID string) {
	ctx := context.Background()
	_ = db.Assets.ReplaceEmailTemplates(ctx, campaignID, []model.EmailTemplate{
		{ID: campaignID + "-e2", CampaignID: campaignID, TemplateOrder: 2, Subject: "Why {{first_name}} loves chai", Body: "Body two", ScheduledDay: 5},
		{ID: campaignID + "-e1", CampaignID: campaignID, TemplateOrder: 1, Subject: "Welcome {{first_name}}", PreHeader: "Fresh blend", Body: "Hi {{first_name}}, visit {{cta_link}}", CTAText: "Shop", ScheduledDay: 1},
	})
	_ = db.Assets.ReplaceWhatsAppMessages(ctx, campaignID, []model.WhatsAppMessage{
		{ID: campaignID + "-w1", CampaignID: campaignID, MessageOrder: 1, MessageText: "Namaste {{first_name}}!", ScheduledDay: 1},
	})
	_ = db.Assets.ReplaceSocialPosts(ctx, campaignID, []model.SocialPost{
		{ID: campaignID + "-s1", CampaignID: campaignID, PostOrder: 1, Platform: model.ChannelInstagram, Caption: "Steam rising", Hashtags: "#chai", ScheduledDay: 3},
	})
}
