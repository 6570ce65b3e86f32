package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"

	"github.com/unclebandit/mica-backend/internal/config"
	appErrors "github.com/unclebandit/mica-backend/internal/errors"
)

const (
	MsgMissingAIKey = "Missing OpenRouter API Key. Please set OPENROUTER_API_KEY in .env"
	MsgAITimeout    = "AI request timed out. The model is taking too long to respond. Please try again."
)

// Request is one chat completion: a system and a user message.
type Request struct {
	SystemPrompt string
	UserPrompt   string
	MaxTokens    int
	Temperature  float64
}

// Completer turns a prompt pair into the model's plain text answer.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// CompletionClient talks to the OpenRouter chat completions API.
type CompletionClient struct {
	cfg     config.AIConfig
	client  *http.Client
	limiter *rate.Limiter
	log     zerolog.Logger
}

func NewCompletionClient(cfg config.AIConfig, client *http.Client, log zerolog.Logger) *CompletionClient {
	if client == nil {
		client = &http.Client{}
	}
	limit := rate.Inf
	if cfg.RatePerSec > 0 {
		limit = rate.Limit(cfg.RatePerSec)
	}
	return &CompletionClient{
		cfg:     cfg,
		client:  client,
		limiter: rate.NewLimiter(limit, 1),
		log:     log,
	}
}

func (c *CompletionClient) Complete(ctx context.Context, req Request) (string, error) {
	const op = "ai completion"

	if c.cfg.APIKey == "" || strings.Contains(c.cfg.APIKey, "your_openrouter_api_key") {
		return "", appErrors.Config(op, MsgMissingAIKey)
	}
	if req.MaxTokens <= 0 {
		req.MaxTokens = c.cfg.MaxTokens
	}
	if req.Temperature == 0 {
		req.Temperature = c.cfg.Temperature
	}

	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return "", classify(op, err)
	}

	body, err := json.Marshal(map[string]any{
		"model": c.cfg.Model,
		"messages": []map[string]string{
			{"role": "system", "content": req.SystemPrompt},
			{"role": "user", "content": req.UserPrompt},
		},
		"max_tokens":  req.MaxTokens,
		"temperature": req.Temperature,
	})
	if err != nil {
		return "", err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("HTTP-Referer", "https://mica.app")
	httpReq.Header.Set("X-Title", c.cfg.AppTitle)

	c.log.Debug().Str("model", c.cfg.Model).Int("max_tokens", req.MaxTokens).Msg("sending completion request")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", classify(op, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", classify(op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := gjson.GetBytes(raw, "error.message").String()
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			return "", appErrors.Config(op, "AI API Error: "+msg)
		}
		return "", appErrors.Transient(op, "AI API Error: "+msg, nil)
	}

	return gjson.GetBytes(raw, "choices.0.message.content").String(), nil
}

// classify maps transport failures onto the error taxonomy.
func classify(op string, err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return appErrors.Timeout(op, MsgAITimeout, err)
	}
	return appErrors.Transient(op, "", err)
}
