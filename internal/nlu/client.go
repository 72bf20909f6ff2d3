package nlu

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"toko-builder/internal/metrics"
	"toko-builder/internal/repo"
	"toko-builder/internal/store"

	"google.golang.org/genai"
)

var (
	// ErrInvalidEnvelope indicates the AI boundary returned nothing usable.
	ErrInvalidEnvelope = errors.New("gemini returned an empty response")
	// ErrNoActiveKeys indicates every configured key is on cooldown or absent.
	ErrNoActiveKeys = errors.New("no gemini api key available")
)

// KeyStore is the slice of the repository the client needs for key rotation.
type KeyStore interface {
	ListActiveGeminiKeys(ctx context.Context) ([]repo.APIKey, error)
	SetCooldownUntil(ctx context.Context, id string, until time.Time) error
	ClearCooldown(ctx context.Context, id string) error
}

// Config holds Gemini client configuration.
type Config struct {
	Model    string
	Timeout  time.Duration
	Cooldown time.Duration
}

// Client talks to Gemini with database-backed key rotation: quota failures put
// the offending key on cooldown and the next key takes over.
type Client struct {
	keys    KeyStore
	logger  *slog.Logger
	metrics *metrics.Metrics
	cfg     Config

	mu      sync.Mutex
	clients map[string]*genai.Client
}

// New creates a Gemini client.
func New(keys KeyStore, logger *slog.Logger, metricRegistry *metrics.Metrics, cfg Config) *Client {
	if cfg.Model == "" {
		cfg.Model = "gemini-2.0-flash"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 5 * time.Minute
	}
	return &Client{
		keys:    keys,
		logger:  logger.With("component", "nlu"),
		metrics: metricRegistry,
		cfg:     cfg,
		clients: make(map[string]*genai.Client),
	}
}

// GenerateStoreUpdate runs one builder turn against Gemini and normalizes the
// response into a message plus an optional configuration delta.
func (c *Client) GenerateStoreUpdate(ctx context.Context, userText string, cfg store.Configuration) (Result, error) {
	raw, err := c.generate(ctx, builderSystemInstruction, BuildBuilderPrompt(cfg, userText), true)
	if err != nil {
		return Result{}, err
	}
	return Normalize(raw), nil
}

// GenerateSupportReply asks Gemini for a support-agent answer. An empty reply
// means "no response" and must not create a message.
func (c *Client) GenerateSupportReply(ctx context.Context, customerText string, settings store.AICustomerService, history []store.SupportChatMessage) (string, error) {
	raw, err := c.generate(ctx, BuildSupportSystemInstruction(settings), BuildSupportPrompt(customerText, history), false)
	if err != nil {
		return "", err
	}
	reply := strings.TrimSpace(raw)
	if reply == "" || strings.EqualFold(reply, "NO_RESPONSE") {
		return "", nil
	}
	return reply, nil
}

// Close releases every cached Gemini client.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	// genai.Client has no Close method; dropping the cache is sufficient.
	c.clients = make(map[string]*genai.Client)
}

func (c *Client) generate(ctx context.Context, system, prompt string, jsonOutput bool) (string, error) {
	keys, err := c.keys.ListActiveGeminiKeys(ctx)
	if err != nil {
		return "", fmt.Errorf("list gemini keys: %w", err)
	}

	now := time.Now()
	var lastErr error
	for _, key := range keys {
		if !key.Available(now) {
			continue
		}

		start := time.Now()
		text, err := c.generateWithKey(ctx, key.Value, system, prompt, jsonOutput)
		status := "ok"
		if err != nil {
			status = "error"
		}
		if c.metrics != nil {
			c.metrics.GeminiRequests.WithLabelValues(status).Inc()
			c.metrics.GeminiLatency.WithLabelValues(status).Observe(time.Since(start).Seconds())
		}
		if err == nil {
			if strings.TrimSpace(text) == "" {
				return "", ErrInvalidEnvelope
			}
			// The key worked again after an expired cooldown; reset it so
			// rotation ordering goes back to plain priority.
			if key.CooldownUntil != nil {
				if cdErr := c.keys.ClearCooldown(context.WithoutCancel(ctx), key.ID); cdErr != nil {
					c.logger.Warn("failed clearing key cooldown", "error", cdErr)
				}
			}
			return text, nil
		}

		lastErr = err
		if isQuotaError(err) {
			until := time.Now().Add(c.cfg.Cooldown)
			if cdErr := c.keys.SetCooldownUntil(context.WithoutCancel(ctx), key.ID, until); cdErr != nil {
				c.logger.Warn("failed setting key cooldown", "error", cdErr)
			} else {
				c.logger.Info("gemini key on cooldown", "until", until)
			}
		}
	}

	if lastErr != nil {
		return "", lastErr
	}
	return "", ErrNoActiveKeys
}

func (c *Client) generateWithKey(ctx context.Context, apiKey, system, prompt string, jsonOutput bool) (string, error) {
	client, err := c.clientFor(ctx, apiKey)
	if err != nil {
		return "", err
	}

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	genCfg := &genai.GenerateContentConfig{}
	if system != "" {
		genCfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}
	if jsonOutput {
		genCfg.ResponseMIMEType = "application/json"
	}

	resp, err := client.Models.GenerateContent(ctx, c.cfg.Model, genai.Text(prompt), genCfg)
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	return resp.Text(), nil
}

func (c *Client) clientFor(ctx context.Context, apiKey string) (*genai.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if client, ok := c.clients[apiKey]; ok {
		return client, nil
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	c.clients[apiKey] = client
	return client, nil
}

func isQuotaError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "429") ||
		strings.Contains(msg, "RESOURCE_EXHAUSTED") ||
		strings.Contains(strings.ToLower(msg), "quota")
}
