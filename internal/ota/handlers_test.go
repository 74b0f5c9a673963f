package ota

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T) *mux.Router {
	svc, _ := newTestService(t)
	r := mux.NewRouter()
	NewHTTP(svc).RegisterRoutes(r)
	return r
}

func postIngest(t *testing.T, r *mux.Router, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/ingest", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestIngestEndpoint(t *testing.T) {
	r := newTestRouter(t)
	w := postIngest(t, r, `{
		"unitId": "U1", "deviceId": "dev-1", "status": "2",
		"previousVersion": "1.0", "updatedVersion": "2.0",
		"timestamp": "2026-08-30T12:00:00Z"
	}`)
	require.Equal(t, http.StatusOK, w.Code)

	var out IngestResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	assert.Equal(t, "success", out.EffectiveBadge)
	assert.Equal(t, "2026-08-30", out.Day)
	assert.Equal(t, 1, out.DayCounts.Success)
}

func TestIngestEndpointValidation(t *testing.T) {
	r := newTestRouter(t)
	w := postIngest(t, r, `{"deviceId": "dev-1"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "problem+json")
}

func TestIngestEndpointUnknownDevice(t *testing.T) {
	r := newTestRouter(t)
	w := postIngest(t, r, `{"unitId":"U1","deviceId":"ghost","status":"2","updatedVersion":"2.0"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestIngestEndpointUnconfiguredDevice(t *testing.T) {
	r := newTestRouter(t)
	w := postIngest(t, r, `{"unitId":"U1","deviceId":"dev-2","status":"2","updatedVersion":"2.0"}`)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestIngestEndpointStorageConflictMapsTo503(t *testing.T) {
	svc, d := newTestService(t)
	sqlDB, err := d.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	r := mux.NewRouter()
	NewHTTP(svc).RegisterRoutes(r)
	w := postIngest(t, r, `{
		"unitId": "U1", "deviceId": "dev-1", "status": "2",
		"previousVersion": "1.0", "updatedVersion": "2.0"
	}`)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "problem+json")
}

func TestIngestEndpointMalformedTimestampDefaultsToNow(t *testing.T) {
	r := newTestRouter(t)
	w := postIngest(t, r, `{
		"unitId": "U1", "deviceId": "dev-1", "status": "2",
		"previousVersion": "1.0", "updatedVersion": "2.0",
		"timestamp": "yesterday-ish"
	}`)
	require.Equal(t, http.StatusOK, w.Code)
	var out IngestResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	assert.NotEmpty(t, out.Day)
}
