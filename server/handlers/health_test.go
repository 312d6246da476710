package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lakedict/lakedict/server/types"
)

func TestHealthHandler_InstanceIDIsStable(t *testing.T) {
	h := NewHealthHandler("instance-1", time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))

	for range 2 {
		rec := httptest.NewRecorder()
		h.Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
		require.Equal(t, http.StatusOK, rec.Code)

		var resp types.HealthResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "ok", resp.Status)
		assert.Equal(t, "instance-1", resp.ServerInstanceID)
		assert.Equal(t, "2026-01-02T03:04:05Z", resp.StartedAt)
	}
}

func TestHealthHandler_Root(t *testing.T) {
	h := NewHealthHandler("instance-1", time.Now())

	rec := httptest.NewRecorder()
	h.Root(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp types.RootResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "lakedict", resp.Name)
	assert.NotEmpty(t, resp.Version)
}
