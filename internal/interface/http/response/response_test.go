package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/services-marketplace/internal/pkg/apperror"
)

func render(t *testing.T, err error) (int, ErrorBody) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	Error(c, err)

	var body ErrorBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return w.Code, body
}

func TestError_Fields(t *testing.T) {
	code, body := render(t, apperror.Field("status", "Already Approved"))
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Already Approved", body.Fields["status"])
	assert.Equal(t, "VALIDATION_ERROR", body.Code)
}

func TestError_NotFound(t *testing.T) {
	code, _ := render(t, apperror.ErrServiceRequestNotFound)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestError_InternalMasked(t *testing.T) {
	code, body := render(t, errors.New("pq: connection refused"))
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.NotContains(t, body.Error, "pq")
}
