package analyzer

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/auratask/core/internal/domain/entities"
	"github.com/auratask/core/internal/infrastructure/config"
	"github.com/auratask/core/internal/infrastructure/logger"
	"github.com/auratask/core/internal/ports"
)

// stubKeyRepo serves a fixed key list so the pool has something to rotate.
type stubKeyRepo struct {
	mu      sync.Mutex
	keys    []entities.APIKey
	listErr error
	touched []string
}

func (s *stubKeyRepo) ListKeys(ctx context.Context) ([]entities.APIKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	out := make([]entities.APIKey, len(s.keys))
	copy(out, s.keys)
	return out, nil
}

func (s *stubKeyRepo) CreateKey(ctx context.Context, label, key string) (*entities.APIKey, error) {
	return nil, nil
}

func (s *stubKeyRepo) SetKeyEnabled(ctx context.Context, id uuid.UUID, enabled bool) error {
	return nil
}

func (s *stubKeyRepo) DeleteKey(ctx context.Context, id uuid.UUID) error { return nil }

func (s *stubKeyRepo) TouchKey(ctx context.Context, key string) error {
	s.mu.Lock()
	s.touched = append(s.touched, key)
	s.mu.Unlock()
	return nil
}

func (s *stubKeyRepo) UsageStats(ctx context.Context, days int) ([]entities.UsageStat, error) {
	return nil, nil
}

func newTestClient(t *testing.T, handler http.Handler, repo *stubKeyRepo) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	cfg := config.AnalyzerConfig{
		BaseURL:       srv.URL,
		Timeout:       5 * time.Second,
		KeyRatePerMin: 600,
		KeyBurst:      10,
	}
	pool := NewKeyPool(cfg, repo, logger.Nop())
	return NewClient(cfg, pool, logger.Nop())
}

func enabledKey(key string) entities.APIKey {
	return entities.APIKey{Key: key, Enabled: true}
}

func TestAnalyzeDecodesEnrichment(t *testing.T) {
	repo := &stubKeyRepo{keys: []entities.APIKey{enabledKey("pool-key")}}
	var gotAuth string
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		assert.Equal(t, "/analyze", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ai_speed_score":7,"ai_importance_score":14,"emoji":"🛒","sub_tasks":["milk","bread"]}`))
	}), repo)

	enrichment, err := client.Analyze(context.Background(), ports.AnalyzeRequest{Title: "buy groceries"})
	require.NoError(t, err)

	assert.Equal(t, "Bearer pool-key", gotAuth)
	require.NotNil(t, enrichment.SpeedScore)
	assert.Equal(t, 7, *enrichment.SpeedScore)
	require.NotNil(t, enrichment.ImportanceScore)
	assert.Equal(t, 14, *enrichment.ImportanceScore)
	require.NotNil(t, enrichment.Emoji)
	assert.Equal(t, "🛒", *enrichment.Emoji)
	assert.Equal(t, []string{"milk", "bread"}, enrichment.Subtasks)
	assert.True(t, enrichment.AIGenerated)
}

func TestAnalyzeUserKeyBypassesPool(t *testing.T) {
	// Empty pool: the request only succeeds if the user key is used.
	repo := &stubKeyRepo{}
	var gotAuth string
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`{"emoji":"🔑"}`))
	}), repo)

	_, err := client.Analyze(context.Background(), ports.AnalyzeRequest{Title: "t", APIKey: "user-key"})
	require.NoError(t, err)
	assert.Equal(t, "Bearer user-key", gotAuth)
	assert.Empty(t, repo.touched)
}

func TestAnalyzeErrorStatusWrapsEnrichmentError(t *testing.T) {
	repo := &stubKeyRepo{keys: []entities.APIKey{enabledKey("k")}}
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}), repo)

	_, err := client.Analyze(context.Background(), ports.AnalyzeRequest{Title: "t"})
	assert.ErrorIs(t, err, entities.ErrEnrichment)
}

func TestAnalyzeEmptyPoolFailsWithEnrichmentError(t *testing.T) {
	repo := &stubKeyRepo{}
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("request should not reach the analyzer")
	}), repo)

	_, err := client.Analyze(context.Background(), ports.AnalyzeRequest{Title: "t"})
	assert.ErrorIs(t, err, entities.ErrEnrichment)
}

func TestAnalyzeGarbageBodyFallsBack(t *testing.T) {
	repo := &stubKeyRepo{keys: []entities.APIKey{enabledKey("k")}}
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("I could not produce JSON, sorry"))
	}), repo)

	enrichment, err := client.Analyze(context.Background(), ports.AnalyzeRequest{
		Title:           "t",
		EnableAIRanking: true,
	})
	require.NoError(t, err)
	require.NotNil(t, enrichment.Emoji)
	assert.Equal(t, "📝", *enrichment.Emoji)
	require.NotNil(t, enrichment.SpeedScore)
	assert.Equal(t, 10, *enrichment.SpeedScore)
	require.NotNil(t, enrichment.ImportanceScore)
	assert.Equal(t, 10, *enrichment.ImportanceScore)
	assert.True(t, enrichment.AIGenerated)
}

func TestAnalyzeGarbageBodyWithoutRankingOmitsScores(t *testing.T) {
	repo := &stubKeyRepo{keys: []entities.APIKey{enabledKey("k")}}
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("}{")) // malformed on purpose
	}), repo)

	enrichment, err := client.Analyze(context.Background(), ports.AnalyzeRequest{Title: "t"})
	require.NoError(t, err)
	assert.Nil(t, enrichment.SpeedScore)
	assert.Nil(t, enrichment.ImportanceScore)
}

func TestAnalyzeDropsOutOfRangeScores(t *testing.T) {
	repo := &stubKeyRepo{keys: []entities.APIKey{enabledKey("k")}}
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"ai_speed_score":0,"ai_importance_score":21,"emoji":"🎯"}`))
	}), repo)

	enrichment, err := client.Analyze(context.Background(), ports.AnalyzeRequest{Title: "t"})
	require.NoError(t, err)
	assert.Nil(t, enrichment.SpeedScore)
	assert.Nil(t, enrichment.ImportanceScore)
	require.NotNil(t, enrichment.Emoji)
	assert.Equal(t, "🎯", *enrichment.Emoji)
}

func TestSuggestEmoji(t *testing.T) {
	repo := &stubKeyRepo{keys: []entities.APIKey{enabledKey("k")}}
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"emoji":"💼"}`))
	}), repo)

	emoji, err := client.SuggestEmoji(context.Background(), "work")
	require.NoError(t, err)
	assert.Equal(t, "💼", emoji)
}
