package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestPaymentHandler_Unauthorized(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := &PaymentHandler{payments: nil}

	for _, tc := range []struct {
		path string
		h    gin.HandlerFunc
	}{
		{"/payments", handler.ListPayments},
		{"/loyalty", handler.Loyalty},
	} {
		r := gin.New()
		r.GET(tc.path, tc.h)

		req, _ := http.NewRequest(http.MethodGet, tc.path, nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code, tc.path)
	}
}
