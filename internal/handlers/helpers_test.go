package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequireMethod(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/api/jobs/single", nil)

	assert.False(t, RequireMethod(w, r, http.MethodPost))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)

	w = httptest.NewRecorder()
	r = httptest.NewRequest(http.MethodPost, "/api/jobs/single", nil)
	assert.True(t, RequireMethod(w, r, http.MethodPost))
}

func TestWriteError(t *testing.T) {
	w := httptest.NewRecorder()

	WriteError(w, http.StatusBadRequest, "bad input")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), "bad input")
}

func TestExtractJobID(t *testing.T) {
	tests := []struct {
		path   string
		suffix string
		want   string
	}{
		{"/api/jobs/job-42/status", "/status", "job-42"},
		{"/api/jobs/job-42/cancel", "/cancel", "job-42"},
		{"/api/jobs/job-42/polling/stop", "/polling/stop", "job-42"},
		{"/api/jobs//status", "/status", ""},
		{"/api/jobs/job-42/other", "/status", ""},
		{"/api/jobs/a/b/status", "/status", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, extractJobID(tt.path, tt.suffix), "path %s", tt.path)
	}
}
