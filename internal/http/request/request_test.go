package request

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	var dst struct {
		Name string `json:"name"`
	}

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"ann"}`))
	require.NoError(t, Decode(req, &dst))
	assert.Equal(t, "ann", dst.Name)

	err := Decode(httptest.NewRequest(http.MethodPost, "/", strings.NewReader("")), &dst)
	assert.ErrorIs(t, err, ErrBadRequest)
	assert.Equal(t, "empty request body", Message(err))

	err = Decode(httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{")), &dst)
	assert.Equal(t, "invalid request body", Message(err))
}

func TestIDParam(t *testing.T) {
	tests := []struct {
		raw     string
		want    int64
		wantErr bool
	}{
		{raw: "42", want: 42},
		{raw: "0", wantErr: true},
		{raw: "-1", wantErr: true},
		{raw: "abc", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			rctx := chi.NewRouteContext()
			rctx.URLParams.Add("id", tt.raw)
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))

			got, err := IDParam(req, "id")
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrBadRequest)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestQuery(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?limit=10&unread=true&bad=x", nil)

	n, err := IntQuery(req, "limit", 50)
	require.NoError(t, err)
	assert.Equal(t, 10, n)

	n, err = IntQuery(req, "offset", 0)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	_, err = IntQuery(req, "bad", 0)
	assert.Error(t, err)

	b, err := BoolQuery(req, "unread")
	require.NoError(t, err)
	assert.True(t, b)

	_, err = BoolQuery(req, "bad")
	assert.Error(t, err)
}
