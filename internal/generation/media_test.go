package generation

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unclebandit/mica-backend/internal/config"
	appErrors "github.com/unclebandit/mica-backend/internal/errors"
	"github.com/unclebandit/mica-backend/internal/model"
)

func noSleep(ctx context.Context, _ time.Duration) error { return ctx.Err() }

func TestBuildImagePromptToneStyles(t *testing.T) {
	p := BuildImagePrompt("A family sharing chai", "Chai Co", "Warm & Inspirational")
	assert.Equal(t, `Marketing social media post image for "Chai Co". A family sharing chai. Style: warm golden light, hopeful, uplifting, natural colors, soft focus background, inspiring atmosphere. Square format for Instagram. No text overlays, no watermarks, no logos. High quality, photorealistic.`, p)

	assert.Contains(t, BuildImagePrompt("x", "y", "Custom"), "Style: modern, clean, visually appealing, professional marketing style.")
	assert.Contains(t, BuildImagePrompt("x", "y", "Whimsical"), "Style: modern, clean, visually appealing, professional marketing style.")
}

func TestFormatRupees(t *testing.T) {
	assert.Equal(t, "999", FormatRupees(999))
	assert.Equal(t, "5,000", FormatRupees(5000))
	assert.Equal(t, "12,50,000", FormatRupees(1250000))
	assert.Equal(t, "1,00,00,000", FormatRupees(10000000))
}

func TestTonePreviewPromptCustomTone(t *testing.T) {
	c := &model.Campaign{ProductName: "EcoBottle", Tone: "Professional & Trustworthy", Budget: 25000,
		LaunchDate: model.MustDate("2026-11-01")}

	p := TonePreviewPrompt(c, "Custom", "playful, bold")
	assert.Contains(t, p, "REQUESTED TONE: Custom: Custom tone words: playful, bold")
	assert.Contains(t, p, "LOCATION: India (general)")
	assert.Contains(t, p, "BUDGET: ₹25,000")
	assert.Contains(t, p, "LAUNCH DATE: 2026-11-01")
}

func TestReplicatePollsUntilSucceeded(t *testing.T) {
	var polls int32
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer r8-test", r.Header.Get("Authorization"))
		if r.Method == http.MethodPost {
			var body map[string]map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "K_EULER", body["input"]["scheduler"])
			assert.EqualValues(t, 1080, body["input"]["width"])
			w.Write([]byte(`{"status":"starting","urls":{"get":"` + srv.URL + `/predictions/p1"}}`))
			return
		}
		if atomic.AddInt32(&polls, 1) < 3 {
			w.Write([]byte(`{"status":"processing","urls":{"get":"` + srv.URL + `/predictions/p1"}}`))
			return
		}
		w.Write([]byte(`{"status":"succeeded","output":["https://cdn/img.png","https://cdn/other.png"]}`))
	}))
	defer srv.Close()

	c := NewReplicateClient(config.ImageConfig{APIToken: "r8-test", URL: srv.URL, Width: 1080, Height: 1080}, srv.Client(), zerolog.Nop())
	c.sleep = noSleep

	url, err := c.GenerateImage(context.Background(), "prompt")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn/img.png", url)
	assert.EqualValues(t, 3, polls)
}

func TestReplicateStringOutputAndFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("fail") != "" {
			w.Write([]byte(`{"status":"failed","error":"NSFW content detected"}`))
			return
		}
		w.Write([]byte(`{"status":"succeeded","output":"https://cdn/single.png"}`))
	}))
	defer srv.Close()

	c := NewReplicateClient(config.ImageConfig{APIToken: "t", URL: srv.URL}, srv.Client(), zerolog.Nop())
	c.sleep = noSleep

	url, err := c.GenerateImage(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn/single.png", url)

	c.cfg.URL = srv.URL + "?fail=1"
	_, err = c.GenerateImage(context.Background(), "p")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Image generation failed: NSFW content detected")
}

func TestReplicateNonOK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	c := NewReplicateClient(config.ImageConfig{APIToken: "t", URL: srv.URL}, srv.Client(), zerolog.Nop())
	_, err := c.GenerateImage(context.Background(), "p")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Replicate API Error: Unprocessable Entity")
}

func heygenServer(t *testing.T, statuses ...string) *httptest.Server {
	t.Helper()
	var i int32
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "hg-key", r.Header.Get("X-Api-Key"))
		if r.Method == http.MethodPost {
			w.Write([]byte(`{"data":{"video_id":"v-1"}}`))
			return
		}
		assert.Equal(t, "v-1", r.URL.Query().Get("video_id"))
		n := int(atomic.AddInt32(&i, 1)) - 1
		if n >= len(statuses) {
			n = len(statuses) - 1
		}
		switch statuses[n] {
		case "500":
			w.WriteHeader(http.StatusInternalServerError)
		case "completed":
			w.Write([]byte(`{"data":{"status":"completed","video_url":"https://cdn/video.mp4"}}`))
		case "failed":
			w.Write([]byte(`{"data":{"status":"failed","error":"avatar unavailable"}}`))
		default:
			w.Write([]byte(`{"data":{"status":"` + statuses[n] + `"}}`))
		}
	}))
}

func testVideoConfig(url string) config.VideoConfig {
	return config.VideoConfig{
		APIKey:          "hg-key",
		GenerateURL:     url + "/generate",
		StatusURL:       url + "/status",
		MaxPollAttempts: 10,
		FallbackURL:     "https://cdn/fallback.mp4",
		APIEnabled:      true,
	}
}

func TestHeyGenRetriesFailedStatusChecks(t *testing.T) {
	srv := heygenServer(t, "pending", "500", "processing", "completed")
	defer srv.Close()

	c := NewHeyGenClient(testVideoConfig(srv.URL), srv.Client(), zerolog.Nop())
	c.sleep = noSleep

	res := c.Render(context.Background(), "script")
	assert.Equal(t, VideoResult{URL: "https://cdn/video.mp4", Status: model.VideoStatusReady}, res)
}

func TestHeyGenFailureFallsBack(t *testing.T) {
	srv := heygenServer(t, "processing", "failed")
	defer srv.Close()

	c := NewHeyGenClient(testVideoConfig(srv.URL), srv.Client(), zerolog.Nop())
	c.sleep = noSleep

	res := c.Render(context.Background(), "script")
	assert.Equal(t, "https://cdn/fallback.mp4", res.URL)
	assert.Equal(t, model.VideoStatusFallback, res.Status)
	require.Error(t, res.Err)
	assert.Contains(t, res.Err.Error(), "Video generation failed: avatar unavailable")
}

func TestHeyGenGivesUpAfterMaxPolls(t *testing.T) {
	srv := heygenServer(t, "processing")
	defer srv.Close()

	cfg := testVideoConfig(srv.URL)
	cfg.MaxPollAttempts = 3
	c := NewHeyGenClient(cfg, srv.Client(), zerolog.Nop())
	c.sleep = noSleep

	_, err := c.GenerateVideo(context.Background(), "script")
	require.Error(t, err)
	assert.Equal(t, appErrors.KindTimeout, appErrors.KindOf(err))
}

func TestHeyGenDisabledSkipsAPI(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}))
	defer srv.Close()

	cfg := testVideoConfig(srv.URL)
	cfg.APIEnabled = false
	res := NewHeyGenClient(cfg, srv.Client(), zerolog.Nop()).Render(context.Background(), "script")

	assert.Equal(t, model.VideoStatusFallback, res.Status)
	assert.NoError(t, res.Err)
	assert.Zero(t, atomic.LoadInt32(&hits))
}

func TestHeyGenMissingVideoID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{}}`))
	}))
	defer srv.Close()

	_, err := NewHeyGenClient(testVideoConfig(srv.URL), srv.Client(), zerolog.Nop()).GenerateVideo(context.Background(), "s")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "No video_id returned from HeyGen")
}
