package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"

	"github.com/unclebandit/mica-backend/internal/config"
	appErrors "github.com/unclebandit/mica-backend/internal/errors"
)

// ImageGenerator renders a prompt into a hosted image URL.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, prompt string) (string, error)
}

// ReplicateClient creates a prediction and polls it until it settles.
type ReplicateClient struct {
	cfg    config.ImageConfig
	client *http.Client
	sleep  func(context.Context, time.Duration) error
	log    zerolog.Logger
}

func NewReplicateClient(cfg config.ImageConfig, client *http.Client, log zerolog.Logger) *ReplicateClient {
	if client == nil {
		client = &http.Client{}
	}
	return &ReplicateClient{cfg: cfg, client: client, sleep: sleepCtx, log: log}
}

func (c *ReplicateClient) GenerateImage(ctx context.Context, prompt string) (string, error) {
	const op = "image generation"

	if c.cfg.APIToken == "" {
		return "", appErrors.Config(op, "Missing Replicate API token. Please set REPLICATE_API_TOKEN in .env")
	}
	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	body, err := json.Marshal(map[string]any{
		"input": map[string]any{
			"prompt":              prompt,
			"width":               c.cfg.Width,
			"height":              c.cfg.Height,
			"num_outputs":         1,
			"scheduler":           "K_EULER",
			"num_inference_steps": 50,
		},
	})
	if err != nil {
		return "", err
	}

	result, err := c.do(ctx, http.MethodPost, c.cfg.URL, body)
	if err != nil {
		return "", err
	}

	for {
		status := gjson.GetBytes(result, "status").String()
		if status == "succeeded" || status == "failed" {
			break
		}
		if err := c.sleep(ctx, c.cfg.PollInterval); err != nil {
			return "", classifyImage(err)
		}
		getURL := gjson.GetBytes(result, "urls.get").String()
		if getURL == "" {
			return "", appErrors.Transient(op, "Replicate API Error: prediction has no poll URL", nil)
		}
		if result, err = c.do(ctx, http.MethodGet, getURL, nil); err != nil {
			return "", err
		}
	}

	if gjson.GetBytes(result, "status").String() == "failed" {
		reason := gjson.GetBytes(result, "error").String()
		if reason == "" {
			reason = "Unknown error"
		}
		return "", appErrors.Transient(op, "Image generation failed: "+reason, nil)
	}

	output := gjson.GetBytes(result, "output")
	if output.IsArray() {
		return output.Get("0").String(), nil
	}
	return output.String(), nil
}

func (c *ReplicateClient) do(ctx context.Context, method, url string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIToken)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, classifyImage(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classifyImage(err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, appErrors.Transient("image generation", "Replicate API Error: "+http.StatusText(resp.StatusCode), nil)
	}
	return raw, nil
}

func classifyImage(err error) error {
	e := classify("image generation", err)
	if appErrors.KindOf(e) == appErrors.KindTimeout {
		return appErrors.Timeout("image generation", "Image generation timed out", err)
	}
	return e
}

// sleepCtx waits for d or until ctx is done.
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
