// Package analyzer implements the HTTP client for the LLM-backed task
// analyzer. Failures here never abort the surrounding task operation:
// callers degrade to defaults.
package analyzer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/auratask/core/internal/domain/entities"
	"github.com/auratask/core/internal/infrastructure/config"
	"github.com/auratask/core/internal/infrastructure/logger"
	"github.com/auratask/core/internal/ports"
)

// Defaults applied when the analyzer's output cannot be parsed.
const (
	fallbackEmoji          = "📝"
	defaultSpeedScore      = 10
	defaultImportanceScore = 10
)

// Client calls the analyzer endpoint, resolving a key per request: the
// user-supplied key wins, otherwise one is drawn from the admin pool.
type Client struct {
	baseURL string
	http    *http.Client
	pool    *KeyPool
	logger  *logger.Logger
}

// NewClient creates the analyzer client.
func NewClient(cfg config.AnalyzerConfig, pool *KeyPool, log *logger.Logger) *Client {
	return &Client{
		baseURL: cfg.BaseURL,
		http:    &http.Client{Timeout: cfg.Timeout},
		pool:    pool,
		logger:  log,
	}
}

// Analyze sends the task to the analyzer and decodes its enrichment.
// Unparsable output falls back to a fixed default object; transport and
// HTTP errors return ErrEnrichment.
func (c *Client) Analyze(ctx context.Context, req ports.AnalyzeRequest) (*ports.Enrichment, error) {
	key := req.APIKey
	if key == "" {
		pooled, err := c.pool.Acquire(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: no analyzer key available: %v", entities.ErrEnrichment, err)
		}
		key = pooled
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("%w: encode request: %v", entities.ErrEnrichment, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/analyze", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", entities.ErrEnrichment, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+key)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", entities.ErrEnrichment, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: analyzer returned %d", entities.ErrEnrichment, resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", entities.ErrEnrichment, err)
	}

	var enrichment ports.Enrichment
	if err := json.Unmarshal(raw, &enrichment); err != nil {
		// The model produced something unparsable; degrade to defaults
		// rather than failing the surrounding task operation.
		c.logger.WithError(err).Warnw("Unparsable analyzer output, using fallback")
		return c.fallback(req), nil
	}
	enrichment.AIGenerated = true
	clampScores(&enrichment)
	return &enrichment, nil
}

// SuggestEmoji asks the analyzer for a single emoji for a group name.
func (c *Client) SuggestEmoji(ctx context.Context, name string) (string, error) {
	enrichment, err := c.Analyze(ctx, ports.AnalyzeRequest{Title: name})
	if err != nil {
		return "", err
	}
	if enrichment.Emoji == nil {
		return "", nil
	}
	return *enrichment.Emoji, nil
}

func (c *Client) fallback(req ports.AnalyzeRequest) *ports.Enrichment {
	emoji := fallbackEmoji
	enrichment := &ports.Enrichment{Emoji: &emoji, AIGenerated: true}
	if req.EnableAIRanking {
		speed := defaultSpeedScore
		importance := defaultImportanceScore
		enrichment.SpeedScore = &speed
		enrichment.ImportanceScore = &importance
	}
	return enrichment
}

// clampScores drops out-of-range scores instead of storing bad data.
func clampScores(e *ports.Enrichment) {
	if e.SpeedScore != nil && entities.ValidateScore(*e.SpeedScore) != nil {
		e.SpeedScore = nil
	}
	if e.ImportanceScore != nil && entities.ValidateScore(*e.ImportanceScore) != nil {
		e.ImportanceScore = nil
	}
}
