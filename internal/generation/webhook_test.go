package generation

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unclebandit/mica-backend/internal/config"
	appErrors "github.com/unclebandit/mica-backend/internal/errors"
)

func TestWebhookSimulatedWhenUnconfigured(t *testing.T) {
	for _, url := range []string{"", "https://placeholder.n8n.local/hook"} {
		w := NewWebhook(config.WebhookConfig{LaunchURL: url}, nil, zerolog.Nop())
		w.sleep = noSleep

		res, err := w.Trigger(context.Background(), ActionCampaignLaunched, map[string]string{"campaign_id": "c1"})
		require.NoError(t, err)
		assert.Equal(t, WebhookResult{Success: true, Simulated: true, Message: MsgSimulated}, res)
	}
}

func TestWebhookPostsPayload(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/test", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"queued":true}`))
	}))
	defer srv.Close()

	w := NewWebhook(config.WebhookConfig{LaunchURL: srv.URL + "/launch", TestSendURL: srv.URL + "/test"}, srv.Client(), zerolog.Nop())
	res, err := w.Trigger(context.Background(), ActionSendTest, map[string]string{"campaign_id": "c1", "action": ActionSendTest})

	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.False(t, res.Simulated)
	assert.JSONEq(t, `{"queued":true}`, string(res.Response))
	assert.Equal(t, "c1", got["campaign_id"])
}

func TestWebhookNonOKIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	w := NewWebhook(config.WebhookConfig{LaunchURL: srv.URL}, srv.Client(), zerolog.Nop())
	_, err := w.Trigger(context.Background(), ActionCampaignLaunched, map[string]string{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Webhook failed: Internal Server Error")
}

func TestWebhookUnreachableReportsSimulated(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	w := NewWebhook(config.WebhookConfig{LaunchURL: url}, nil, zerolog.Nop())
	res, err := w.Trigger(context.Background(), ActionCampaignLaunched, map[string]string{})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.True(t, res.Simulated)
	assert.NotEmpty(t, res.Error)
}

func TestWebhookRejectsUnknownAction(t *testing.T) {
	w := NewWebhook(config.WebhookConfig{}, nil, zerolog.Nop())
	_, err := w.Trigger(context.Background(), "delete_everything", nil)
	assert.Equal(t, appErrors.KindValidation, appErrors.KindOf(err))
}
