package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/joseph-ayodele/invoice-reconciler/internal/common"
	"github.com/joseph-ayodele/invoice-reconciler/internal/retry"
)

// ErrMissingAPIKey is returned by NewClient without an API key.
var ErrMissingAPIKey = errors.New("OPENROUTER_API_KEY is not set")

// Config for the OpenRouter client.
type Config struct {
	APIKey      string
	BaseURL     string // default https://openrouter.ai/api/v1
	Model       string
	Temperature float32
	Timeout     time.Duration // http client timeout
	RPM         int           // requests per minute, 0 = unlimited
	Referrer    string        // HTTP-Referer header
	Title       string        // X-Title header
}

func ConfigFrom(c common.LLMConfig) Config {
	return Config{
		APIKey:      c.APIKey,
		BaseURL:     c.BaseURL,
		Model:       c.Model,
		Temperature: c.Temperature,
		Timeout:     c.Timeout,
		RPM:         c.RPM,
		Referrer:    c.Referrer,
		Title:       c.Title,
	}
}

// Observer is notified after every chat completion call.
type Observer interface {
	QueryDone(model string, d time.Duration, err error)
}

// Client talks to the OpenRouter chat completions API.
type Client struct {
	cfg      Config
	http     *http.Client
	limiter  *rate.Limiter
	breaker  *gobreaker.CircuitBreaker[[]byte]
	policy   retry.Policy
	observer Observer
	logger   *slog.Logger
}

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.http = h
		}
	}
}

func WithRetryPolicy(p retry.Policy) Option {
	return func(c *Client) { c.policy = p }
}

func WithObserver(o Observer) Option {
	return func(c *Client) { c.observer = o }
}

func NewClient(cfg Config, logger *slog.Logger, opts ...Option) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrMissingAPIKey
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://openrouter.ai/api/v1"
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = 0.1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	c := &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Inf, 1),
		policy:  retry.LLM(),
		logger:  logger,
	}
	if cfg.RPM > 0 {
		c.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RPM)), 1)
	}
	c.breaker = gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "openrouter",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			var se *StatusError
			if errors.As(err, &se) {
				return !se.Retryable()
			}
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("llm.breaker.state_change", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
	for _, o := range opts {
		o(c)
	}
	c.policy.Logger = logger
	return c, nil
}

// Model returns the configured default model.
func (c *Client) Model() string { return c.cfg.Model }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float32       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content *string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Query sends prompt as a single user message and returns the reply text.
// An empty model uses the configured default. A null reply content yields "".
func (c *Client) Query(ctx context.Context, prompt, model string) (string, error) {
	if model == "" {
		model = c.cfg.Model
	}
	start := time.Now()
	c.logger.Info("llm.query.start", "model", model, "prompt_chars", len([]rune(prompt)))

	body := chatRequest{
		Model:       model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Temperature: c.cfg.Temperature,
	}
	raw, err := c.call(ctx, http.MethodPost, "/chat/completions", body, true)
	if c.observer != nil {
		c.observer.QueryDone(model, time.Since(start), err)
	}
	if err != nil {
		c.logger.Error("llm.query.failed", "model", model, "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return "", common.NewParseError(common.KindLLM, "", "openrouter request failed", err)
	}

	var cr chatResponse
	if err := json.Unmarshal(raw, &cr); err != nil {
		return "", common.NewParseError(common.KindLLM, "", "decode response: "+truncate(string(raw), 1000), err)
	}
	if len(cr.Choices) == 0 {
		return "", common.NewParseError(common.KindLLM, "", "no choices in response: "+truncate(string(raw), 1000), nil)
	}
	content := cr.Choices[0].Message.Content
	if content == nil {
		c.logger.Warn("llm.query.empty_content", "model", model)
		return "", nil
	}
	c.logger.Info("llm.query.ok", "model", model, "reply_chars", len([]rune(*content)), "elapsed_ms", time.Since(start).Milliseconds())
	return *content, nil
}

// ListModels returns the ids of the models the key can use.
func (c *Client) ListModels(ctx context.Context) ([]string, error) {
	raw, err := c.call(ctx, http.MethodGet, "/models", nil, false)
	if err != nil {
		return nil, fmt.Errorf("list models: %w", err)
	}
	var resp struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("decode models: %w", err)
	}
	ids := make([]string, 0, len(resp.Data))
	for _, m := range resp.Data {
		if m.ID != "" {
			ids = append(ids, m.ID)
		}
	}
	return ids, nil
}

func (c *Client) call(ctx context.Context, method, path string, body any, appHeaders bool) ([]byte, error) {
	url := strings.TrimRight(c.cfg.BaseURL, "/") + path
	headers := map[string]string{"Authorization": "Bearer " + c.cfg.APIKey}
	if appHeaders {
		if c.cfg.Referrer != "" {
			headers["HTTP-Referer"] = c.cfg.Referrer
		}
		if c.cfg.Title != "" {
			headers["X-Title"] = c.cfg.Title
		}
	}

	return retry.Do(ctx, c.policy, func(ctx context.Context) ([]byte, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, retry.Permanent(err)
		}
		raw, err := c.breaker.Execute(func() ([]byte, error) {
			raw, _, err := SendJSON(ctx, c.http, method, url, body, headers, c.logger)
			return raw, err
		})
		var se *StatusError
		if errors.As(err, &se) && !se.Retryable() {
			return nil, retry.Permanent(err)
		}
		return raw, err
	})
}
