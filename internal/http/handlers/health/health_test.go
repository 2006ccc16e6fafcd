package health

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestHandler(t *testing.T) {
	ok := pingFunc(func(context.Context) error { return nil })
	down := pingFunc(func(context.Context) error { return errors.New("connection refused") })

	tests := []struct {
		name       string
		checks     map[string]Pinger
		wantStatus int
		wantState  string
		wantDeps   map[string]any
	}{
		{
			name:       "all healthy",
			checks:     map[string]Pinger{"postgres": ok, "redis": ok},
			wantStatus: http.StatusOK,
			wantState:  "ok",
			wantDeps:   map[string]any{"postgres": "ok", "redis": "ok"},
		},
		{
			name:       "redis down",
			checks:     map[string]Pinger{"postgres": ok, "redis": down},
			wantStatus: http.StatusServiceUnavailable,
			wantState:  "degraded",
			wantDeps:   map[string]any{"postgres": "ok", "redis": "unavailable"},
		},
		{
			name:       "nil dependency skipped",
			checks:     map[string]Pinger{"postgres": ok, "redis": nil},
			wantStatus: http.StatusOK,
			wantState:  "ok",
			wantDeps:   map[string]any{"postgres": "ok"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := New(slog.New(slog.NewTextHandler(io.Discard, nil)), "1.2.0", tt.checks)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

			assert.Equal(t, tt.wantStatus, rec.Code)
			var got struct {
				Data map[string]any `json:"data"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
			assert.Equal(t, tt.wantState, got.Data["status"])
			assert.Equal(t, "1.2.0", got.Data["version"])
			assert.Equal(t, tt.wantDeps, got.Data["dependencies"])
		})
	}
}
