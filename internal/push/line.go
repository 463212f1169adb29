package push

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/charlesng35/yaruyo/pkg/logger"
	"github.com/charlesng35/yaruyo/pkg/metrics"
)

const (
	// DefaultLineBaseURL is the LINE Messaging API host.
	DefaultLineBaseURL = "https://api.line.me"

	linePushPath  = "/v2/bot/message/push"
	lineReplyPath = "/v2/bot/message/reply"

	maxErrorBody = 512
)

// LineConfig configures the LINE Messaging API client.
type LineConfig struct {
	ChannelAccessToken string
	BaseURL            string
	Timeout            time.Duration
	// RequestsPerSecond throttles outbound calls; zero disables throttling.
	RequestsPerSecond float64
	Burst             int
	HTTPClient        *http.Client
}

// LineClient sends push and reply messages through the LINE Messaging API.
// Without a channel access token every call is a logged no-op.
type LineClient struct {
	token   string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	log     *zap.Logger
}

// NewLineClient constructs a LINE client from cfg.
func NewLineClient(cfg LineConfig) *LineClient {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultLineBaseURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	return &LineClient{
		token:   strings.TrimSpace(cfg.ChannelAccessToken),
		baseURL: baseURL,
		http:    httpClient,
		limiter: limiter,
		log:     logger.WithModule("push.line"),
	}
}

// Enabled reports whether a channel access token is configured.
func (c *LineClient) Enabled() bool {
	return c != nil && c.token != ""
}

// Push sends text to the LINE user to.
func (c *LineClient) Push(ctx context.Context, to, text string) error {
	if !c.Enabled() {
		c.log.Warn("line channel access token missing; skipping push", zap.String("to", to))
		return nil
	}

	payload := struct {
		To       string    `json:"to"`
		Messages []Message `json:"messages"`
	}{
		To:       to,
		Messages: []Message{TextMessage(text)},
	}

	return c.post(ctx, "push", linePushPath, payload)
}

// Reply answers the webhook event identified by replyToken.
func (c *LineClient) Reply(ctx context.Context, replyToken string, messages ...Message) error {
	if !c.Enabled() {
		c.log.Warn("line channel access token missing; skipping reply")
		return nil
	}
	if replyToken == "" || len(messages) == 0 {
		return nil
	}

	payload := struct {
		ReplyToken string    `json:"replyToken"`
		Messages   []Message `json:"messages"`
	}{
		ReplyToken: replyToken,
		Messages:   messages,
	}

	return c.post(ctx, "reply", lineReplyPath, payload)
}

func (c *LineClient) post(ctx context.Context, kind, path string, payload any) (err error) {
	defer func() {
		result := "success"
		if err != nil {
			result = "failure"
		}
		metrics.PushRequests.WithLabelValues("line", kind, result).Inc()
	}()

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("line %s: rate limit: %w", kind, err)
		}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("line %s: encode payload: %w", kind, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("line %s: build request: %w", kind, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("line %s: %w", kind, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("line %s failed: %d %s", kind, resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
