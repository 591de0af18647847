package problem

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriteSetsProblemContentType(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/events/123", nil)
	rec := httptest.NewRecorder()

	Write(rec, req, http.StatusNotFound, "https://gatherly.events/problems/not-found", "Event not found", nil, "test")

	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))

	var body ProblemDetails
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "Event not found", body.Title)
	require.Equal(t, http.StatusNotFound, body.Status)
	require.Equal(t, "/events/123", body.Instance)
}

func TestWriteExposesDetailOnlyOutsideProduction(t *testing.T) {
	err := errors.New("pq: connection refused")

	req := httptest.NewRequest(http.MethodGet, "/events", nil)
	rec := httptest.NewRecorder()
	Write(rec, req, http.StatusInternalServerError, "https://gatherly.events/problems/server-error", "Server error", err, "development")

	var body ProblemDetails
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "pq: connection refused", body.Detail)

	req = httptest.NewRequest(http.MethodGet, "/events", nil)
	rec = httptest.NewRecorder()
	Write(rec, req, http.StatusInternalServerError, "https://gatherly.events/problems/server-error", "Server error", err, "production")

	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotContains(t, body.Detail, "connection refused")
}

func TestWriteAppliesOptions(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/signup", nil)
	rec := httptest.NewRecorder()

	Write(rec, req, http.StatusBadRequest, "https://gatherly.events/problems/validation-error", "Invalid request", nil, "test",
		WithDetail("username too short"),
		WithErrors(map[string]interface{}{"username": "min length is 5"}),
	)

	var body ProblemDetails
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "username too short", body.Detail)
	require.Equal(t, "min length is 5", body.Errors["username"])
}
