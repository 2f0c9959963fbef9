package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func record(fn func(c *gin.Context)) map[string]any {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	fn(c)

	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		panic(err)
	}
	return out
}

func TestSuccessEnvelope(t *testing.T) {
	env := record(func(c *gin.Context) {
		Success(c, http.StatusOK, gin.H{"k": "v"}, "done")
	})
	assert.Equal(t, true, env["success"])
	assert.Equal(t, "done", env["message"])
	assert.Equal(t, float64(http.StatusOK), env["status"])
	assert.Equal(t, map[string]any{"k": "v"}, env["data"])
}

func TestSuccessEmptyListIsNotOmitted(t *testing.T) {
	env := record(func(c *gin.Context) {
		Success(c, http.StatusOK, []string{}, "empty")
	})
	data, ok := env["data"].([]any)
	require.True(t, ok, "empty list must serialize as [], not disappear")
	assert.Empty(t, data)
}

func TestOKEnvelopeHasNoData(t *testing.T) {
	env := record(func(c *gin.Context) {
		OK(c, http.StatusOK, "updated")
	})
	assert.Equal(t, true, env["success"])
	assert.NotContains(t, env, "data")
}

func TestErrorEnvelope(t *testing.T) {
	env := record(func(c *gin.Context) {
		Error[any](c, http.StatusBadRequest, "bad input", map[string]string{"email": "is required"})
	})
	assert.Equal(t, false, env["success"])
	assert.Equal(t, "bad input", env["message"])
	assert.Equal(t, map[string]any{"email": "is required"}, env["error"])
	assert.NotContains(t, env, "data")
}
