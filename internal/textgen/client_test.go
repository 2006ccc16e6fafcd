package textgen

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/motivation-hub/internal/config"
	"github.com/magabrotheeeer/motivation-hub/internal/models"
)

func newTestClient(url string) *Client {
	c := NewClient(config.AI{
		APIKey:      "key",
		BaseURL:     url,
		Model:       "gpt-test",
		MaxTokens:   100,
		Temperature: 0.5,
		Timeout:     time.Second,
	})
	tick := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time {
		tick = tick.Add(1500 * time.Millisecond)
		return tick
	}
	return c
}

func TestGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-test", req.Model)
		assert.Equal(t, 100, req.MaxTokens)
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)
		assert.Equal(t, "hello", req.Messages[1].Content)

		_, _ = w.Write([]byte(`{"model":"gpt-test-0613","choices":[{"message":{"role":"assistant","content":"  Keep going!  "}}],"usage":{"total_tokens":42}}`))
	}))
	defer srv.Close()

	res, err := newTestClient(srv.URL).Generate(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "Keep going!", res.Content)
	assert.Equal(t, 42, res.TokensUsed)
	assert.Equal(t, "gpt-test-0613", res.Model)
	assert.Equal(t, 1500*time.Millisecond, res.Elapsed)
}

func TestGenerate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{name: "api error", status: http.StatusUnauthorized, body: `{"error":{"message":"invalid key"}}`},
		{name: "no choices", status: http.StatusOK, body: `{"choices":[]}`},
		{name: "blank content", status: http.StatusOK, body: `{"choices":[{"message":{"content":"   "}}]}`},
		{name: "not json", status: http.StatusBadGateway, body: `<html>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := newTestClient(srv.URL).Generate(context.Background(), "p")
			require.Error(t, err)
			assert.ErrorIs(t, err, models.ErrUpstream)
		})
	}
}

func TestGenerate_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newTestClient(srv.URL).Generate(ctx, "p")
	assert.ErrorIs(t, err, models.ErrUpstream)
}
