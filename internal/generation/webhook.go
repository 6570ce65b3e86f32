package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"

	"github.com/unclebandit/mica-backend/internal/config"
	appErrors "github.com/unclebandit/mica-backend/internal/errors"
	"github.com/unclebandit/mica-backend/internal/metrics"
)

const (
	ActionCampaignLaunched = "campaign_launched"
	ActionSendTest         = "send_test"
)

const MsgSimulated = "Execution simulated (n8n not connected)"

// WebhookResult is returned to the caller of a launch or test send.
type WebhookResult struct {
	Success   bool            `json:"success"`
	Simulated bool            `json:"simulated"`
	Message   string          `json:"message,omitempty"`
	Error     string          `json:"error,omitempty"`
	Response  json.RawMessage `json:"response,omitempty"`
}

// Triggerer fires an automation webhook.
type Triggerer interface {
	Trigger(ctx context.Context, action string, payload any) (WebhookResult, error)
	Simulated(action string) bool
}

// Webhook posts campaign actions to the external automation workflow.
type Webhook struct {
	cfg    config.WebhookConfig
	client *http.Client
	sleep  func(context.Context, time.Duration) error
	log    zerolog.Logger
}

func NewWebhook(cfg config.WebhookConfig, client *http.Client, log zerolog.Logger) *Webhook {
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &Webhook{cfg: cfg, client: client, sleep: sleepCtx, log: log}
}

func (w *Webhook) url(action string) string {
	if action == ActionSendTest {
		return w.cfg.TestSendURL
	}
	return w.cfg.LaunchURL
}

// Simulated reports whether action has no real endpoint configured.
func (w *Webhook) Simulated(action string) bool {
	u := strings.TrimSpace(w.url(action))
	return u == "" || strings.Contains(u, "placeholder")
}

// Trigger posts payload for action. Unconfigured endpoints and transport
// failures are reported as simulated successes; a non-2xx answer is an error.
func (w *Webhook) Trigger(ctx context.Context, action string, payload any) (WebhookResult, error) {
	const op = "trigger webhook"

	switch action {
	case ActionCampaignLaunched, ActionSendTest:
	default:
		return WebhookResult{}, appErrors.Validation(op, "unknown webhook action "+action)
	}

	if w.Simulated(action) {
		w.log.Info().Str("action", action).Msg("🧪 webhook not configured, simulating")
		if err := w.sleep(ctx, w.cfg.SimulateDelay); err != nil {
			return WebhookResult{}, err
		}
		metrics.RecordWebhook(action, true, true)
		return WebhookResult{Success: true, Simulated: true, Message: MsgSimulated}, nil
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return WebhookResult{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url(action), bytes.NewReader(body))
	if err != nil {
		return WebhookResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		w.log.Warn().Err(err).Str("action", action).Msg("⚠️ webhook unreachable, reporting simulated success")
		metrics.RecordWebhook(action, true, false)
		return WebhookResult{Success: true, Simulated: true, Error: err.Error()}, nil
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		metrics.RecordWebhook(action, false, false)
		return WebhookResult{}, appErrors.Transient(op, "Webhook failed: "+http.StatusText(resp.StatusCode), nil)
	}

	metrics.RecordWebhook(action, false, true)
	result := WebhookResult{Success: true}
	if gjson.ValidBytes(raw) && len(bytes.TrimSpace(raw)) > 0 {
		result.Response = json.RawMessage(raw)
	}
	return result, nil
}
