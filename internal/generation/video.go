package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"

	"github.com/unclebandit/mica-backend/internal/config"
	appErrors "github.com/unclebandit/mica-backend/internal/errors"
	"github.com/unclebandit/mica-backend/internal/metrics"
	"github.com/unclebandit/mica-backend/internal/model"
)

// VideoResult is what the campaign stores after a video attempt.
type VideoResult struct {
	URL    string
	Status string
	Err    error // set when the fallback was used because generation failed
}

// VideoGenerator produces a campaign video, falling back when the provider can't.
type VideoGenerator interface {
	Render(ctx context.Context, prompt string) VideoResult
}

// HeyGenClient drives the HeyGen video agent API.
type HeyGenClient struct {
	cfg    config.VideoConfig
	client *http.Client
	sleep  func(context.Context, time.Duration) error
	log    zerolog.Logger
}

func NewHeyGenClient(cfg config.VideoConfig, client *http.Client, log zerolog.Logger) *HeyGenClient {
	if client == nil {
		client = &http.Client{}
	}
	return &HeyGenClient{cfg: cfg, client: client, sleep: sleepCtx, log: log}
}

// Render generates a video or returns the configured fallback.
func (c *HeyGenClient) Render(ctx context.Context, prompt string) VideoResult {
	if !c.cfg.APIEnabled {
		metrics.RecordVideoFallback("disabled")
		c.log.Info().Msg("🎬 video API disabled, using fallback video")
		return VideoResult{URL: c.cfg.FallbackURL, Status: model.VideoStatusFallback}
	}

	videoURL, err := c.GenerateVideo(ctx, prompt)
	if err != nil {
		metrics.RecordVideoFallback(string(appErrors.KindOf(err)))
		c.log.Warn().Err(err).Msg("⚠️ video generation failed, using fallback video")
		return VideoResult{URL: c.cfg.FallbackURL, Status: model.VideoStatusFallback, Err: err}
	}
	return VideoResult{URL: videoURL, Status: model.VideoStatusReady}
}

// GenerateVideo submits prompt and polls until the video completes or fails.
func (c *HeyGenClient) GenerateVideo(ctx context.Context, prompt string) (string, error) {
	const op = "video generation"

	if c.cfg.APIKey == "" {
		return "", appErrors.Config(op, "Missing HeyGen API key. Please set HEYGEN_API_KEY in .env")
	}
	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	body, err := json.Marshal(map[string]string{"prompt": prompt})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.GenerateURL, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("X-Api-Key", c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	status, raw, err := c.send(req)
	if err != nil {
		return "", classify(op, err)
	}
	if status < 200 || status > 299 {
		return "", appErrors.Transient(op,
			fmt.Sprintf("HeyGen API Error: %d %s - %s", status, http.StatusText(status), raw), nil)
	}

	videoID := gjson.GetBytes(raw, "data.video_id").String()
	if videoID == "" {
		return "", appErrors.Transient(op, "No video_id returned from HeyGen", nil)
	}
	c.log.Info().Str("video_id", videoID).Msg("🎬 video generation started")

	statusURL := c.cfg.StatusURL + "?video_id=" + url.QueryEscape(videoID)
	for attempt := 0; c.cfg.MaxPollAttempts <= 0 || attempt < c.cfg.MaxPollAttempts; attempt++ {
		if err := c.sleep(ctx, c.cfg.PollInterval); err != nil {
			return "", classify(op, err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, statusURL, nil)
		if err != nil {
			return "", err
		}
		req.Header.Set("X-Api-Key", c.cfg.APIKey)

		code, raw, err := c.send(req)
		if err != nil {
			if ctx.Err() != nil {
				return "", classify(op, err)
			}
			c.log.Warn().Err(err).Int("attempt", attempt+1).Msg("status check failed, retrying")
			continue
		}
		if code < 200 || code > 299 {
			c.log.Warn().Int("status", code).Int("attempt", attempt+1).Msg("status check failed, retrying")
			continue
		}

		switch gjson.GetBytes(raw, "data.status").String() {
		case "completed":
			return gjson.GetBytes(raw, "data.video_url").String(), nil
		case "failed":
			reason := gjson.GetBytes(raw, "data.error").String()
			if reason == "" {
				reason = "Unknown error"
			}
			return "", appErrors.Transient(op, "Video generation failed: "+reason, nil)
		}
	}

	return "", appErrors.Timeout(op,
		fmt.Sprintf("video %s still processing after %d status checks", videoID, c.cfg.MaxPollAttempts), nil)
}

func (c *HeyGenClient) send(req *http.Request) (int, []byte, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, raw, nil
}
