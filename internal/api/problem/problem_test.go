package problem

import (
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrite_DevelopmentExposesDetail(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest("GET", "/api/dashboard/abc", nil)

	Write(w, r, 404, "about:blank", "Not Found", errors.New("item abc does not exist"), "development")

	assert.Equal(t, 404, w.Code)
	assert.Equal(t, "application/problem+json", w.Header().Get("Content-Type"))

	var p ProblemDetails
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &p))
	assert.Equal(t, "Not Found", p.Title)
	assert.Equal(t, 404, p.Status)
	assert.Equal(t, "item abc does not exist", p.Detail)
	assert.Equal(t, "/api/dashboard/abc", p.Instance)
}

func TestWrite_ProductionHidesDetail(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest("GET", "/api/users", nil)

	Write(w, r, 500, "about:blank", "Internal Server Error", errors.New("pgx: connection refused"), "production")

	var p ProblemDetails
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &p))
	assert.Equal(t, "Internal Server Error", p.Detail)
	assert.NotContains(t, w.Body.String(), "pgx")
}

func TestWrite_ExplicitDetailWins(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest("POST", "/api/auth/login", nil)

	Write(w, r, 401, "about:blank", "Unauthorized", errors.New("bcrypt mismatch"), "production",
		WithDetail("invalid credentials"))

	var p ProblemDetails
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &p))
	assert.Equal(t, "invalid credentials", p.Detail)
}
