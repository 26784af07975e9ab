package render

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"claimtrack/internal/model"
)

// Client calls the companion render service: POST {wikitext, section?,
// domain} returning {html, dsr_map}. Requests are rate limited so keystroke
// bursts never hammer the service.
type Client struct {
	httpClient *http.Client
	endpoint   string
	domain     string
	userAgent  string
	limiter    *rate.Limiter
	cache      Cache
	log        *zap.Logger
}

// NewClient creates a render client from configuration. A nil cache disables
// response caching.
func NewClient(cfg model.RenderConfig, cache Cache, logger *zap.Logger) *Client {
	if cache == nil {
		cache = nopCache{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 1
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &Client{
		// Per-request deadlines come from the caller's context; the
		// coordinator owns the timeout policy
		httpClient: &http.Client{},
		endpoint:   cfg.Endpoint,
		domain:     cfg.Domain,
		userAgent:  cfg.UserAgent,
		limiter:    rate.NewLimiter(rate.Limit(rps), burst),
		cache:      cache,
		log:        logger,
	}
}

// Render requests a render of the full document text, optionally scoped to a
// section as an optimization hint
func (c *Client) Render(ctx context.Context, wikitext, section string) (*model.RenderReply, error) {
	key := Key(wikitext, section)
	if data, ok := c.cache.Get(key); ok {
		var reply model.RenderReply
		if err := json.Unmarshal(data, &reply); err == nil {
			c.log.Debug("render served from cache")
			return &reply, nil
		}
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}

	payload, err := json.Marshal(model.RenderRequest{
		Wikitext: wikitext,
		Section:  section,
		Domain:   c.domain,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("render service status %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}

	var reply model.RenderReply
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return nil, fmt.Errorf("decode reply: %w", err)
	}

	if data, err := json.Marshal(&reply); err == nil {
		c.cache.Set(key, data)
	}

	return &reply, nil
}
