package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/services-marketplace/internal/domain/valueobject"
	"github.com/ignatzorin/services-marketplace/internal/http/middleware"
	"github.com/ignatzorin/services-marketplace/internal/usecase/servicerequest"
)

type stubWebhooks struct {
	invoiceID string
	err       error
	signature string
}

func (s *stubWebhooks) ParseWebhook(_ []byte, signature string) (string, error) {
	s.signature = signature
	return s.invoiceID, s.err
}

func newTestRouter(h *ServiceRequestHandler, userID *uuid.UUID) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		if userID != nil {
			c.Set(middleware.ContextUserIDKey, *userID)
			c.Set(middleware.ContextRoleKey, "client")
		}
		c.Next()
	})
	r.GET("/service-requests", h.List)
	r.GET("/service-requests/:id", h.Get)
	r.PATCH("/service-requests/:id/reschedule", h.Reschedule())
	r.PATCH("/service-requests/:id/assign", h.Assign())
	r.POST("/features/:id/service-request", h.Create)
	r.POST("/features/:id/extra-service-request", h.CreateExtra)
	r.GET("/service-request/payments", h.PaymentReturn)
	r.POST("/payments/webhook", h.Webhook)
	return r
}

func decodeFields(t *testing.T, w *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var body struct {
		Fields map[string]string `json:"fields"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body.Fields
}

func TestServiceRequestHandler_Unauthorized(t *testing.T) {
	h := NewServiceRequestHandler(&servicerequest.Deps{}, nil)
	r := newTestRouter(h, nil)

	tests := []struct {
		name   string
		method string
		path   string
	}{
		{"list", http.MethodGet, "/service-requests"},
		{"get", http.MethodGet, "/service-requests/" + uuid.NewString()},
		{"assign", http.MethodPatch, "/service-requests/" + uuid.NewString() + "/assign"},
		{"create", http.MethodPost, "/features/" + uuid.NewString() + "/service-request"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(tt.method, tt.path, nil)
			r.ServeHTTP(w, req)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
		})
	}
}

func TestServiceRequestHandler_InvalidIDIsNotFound(t *testing.T) {
	userID := uuid.New()
	h := NewServiceRequestHandler(&servicerequest.Deps{}, nil)
	r := newTestRouter(h, &userID)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/service-requests/not-a-uuid", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "Not found.")
}

func TestServiceRequestHandler_ListRejectsUnknownStatus(t *testing.T) {
	userID := uuid.New()
	h := NewServiceRequestHandler(&servicerequest.Deps{}, nil)
	r := newTestRouter(h, &userID)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/service-requests?status=bogus", nil))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decodeFields(t, w), "status")
}

func TestServiceRequestHandler_ListFilterParams(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewServiceRequestHandler(&servicerequest.Deps{}, nil)
	employee, provider, rejectedBy := uuid.New(), uuid.New(), uuid.New()

	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/service-requests?status=approved,pending&status=accepted"+
		"&assign="+employee.String()+
		"&assigned_service_provider="+provider.String()+
		"&service_provider_rejected="+rejectedBy.String()+
		"&query=FLGP-2026&limit=5&offset=10", nil)

	in, err := h.listInput(c)
	require.NoError(t, err)
	assert.Equal(t, []valueobject.RequestStatus{
		valueobject.RequestStatusApproved,
		valueobject.RequestStatusPending,
		valueobject.RequestStatusAccepted,
	}, in.Statuses)
	require.NotNil(t, in.AssigneeID)
	assert.Equal(t, employee, *in.AssigneeID)
	require.NotNil(t, in.AssignedProviderID)
	assert.Equal(t, provider, *in.AssignedProviderID)
	require.NotNil(t, in.RejectedByProviderID)
	assert.Equal(t, rejectedBy, *in.RejectedByProviderID)
	assert.Equal(t, "FLGP-2026", in.Query)
	assert.Equal(t, 5, in.Limit)
	assert.Equal(t, 10, in.Offset)
}

func TestServiceRequestHandler_ListRejectsBadUUIDFilter(t *testing.T) {
	userID := uuid.New()
	h := NewServiceRequestHandler(&servicerequest.Deps{}, nil)
	r := newTestRouter(h, &userID)

	for _, key := range []string{"assign", "assigned_service_provider", "service_provider_rejected"} {
		t.Run(key, func(t *testing.T) {
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/service-requests?"+key+"=42", nil))
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, "Must be a valid UUID.", decodeFields(t, w)[key])
		})
	}
}

func TestServiceRequestHandler_AssignEmptyList(t *testing.T) {
	userID := uuid.New()
	h := NewServiceRequestHandler(&servicerequest.Deps{}, nil)
	r := newTestRouter(h, &userID)

	for _, body := range []string{`{}`, `{"assign": []}`} {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPatch, "/service-requests/"+uuid.NewString()+"/assign", bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "Assign list can not be empty.", decodeFields(t, w)["assign"])
	}
}

func TestServiceRequestHandler_RescheduleRequiresPrimary(t *testing.T) {
	userID := uuid.New()
	h := NewServiceRequestHandler(&servicerequest.Deps{}, nil)
	r := newTestRouter(h, &userID)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPatch, "/service-requests/"+uuid.NewString()+"/reschedule", bytes.NewBufferString(`{}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "This field is required.", decodeFields(t, w)["primary_schedule"])
}

func TestServiceRequestHandler_CreateValidatesForm(t *testing.T) {
	userID := uuid.New()
	h := NewServiceRequestHandler(&servicerequest.Deps{}, nil)
	r := newTestRouter(h, &userID)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("primary_schedule", "tomorrow"))
	require.NoError(t, mw.WriteField("loyalty_points", "-5"))
	require.NoError(t, mw.Close())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/features/"+uuid.NewString()+"/service-request", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
	fields := decodeFields(t, w)
	assert.Equal(t, "This field is required.", fields["address"])
	assert.Equal(t, scheduleFormatMessage, fields["primary_schedule"])
	assert.Equal(t, "A valid integer is required.", fields["loyalty_points"])
}

func TestServiceRequestHandler_CreateExtraRequiresParent(t *testing.T) {
	userID := uuid.New()
	h := NewServiceRequestHandler(&servicerequest.Deps{}, nil)
	r := newTestRouter(h, &userID)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/features/"+uuid.NewString()+"/extra-service-request", bytes.NewBufferString(`{"values":{"rooms":"2"}}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
	fields := decodeFields(t, w)
	assert.Equal(t, "This field is required.", fields["parent"])
	assert.NotContains(t, fields, "address")
}

func TestReadForm_SplitsReservedKeysAndFiles(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("description", "fix the sink"))
	require.NoError(t, mw.WriteField("rooms", "3"))
	fw, err := mw.CreateFormFile("attachments", "a.jpg")
	require.NoError(t, err)
	_, _ = fw.Write([]byte("jpg"))
	fw, err = mw.CreateFormFile("floor_plan", "plan.pdf")
	require.NoError(t, err)
	_, _ = fw.Write([]byte("pdf"))
	require.NoError(t, mw.Close())

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/", &buf)
	c.Request.Header.Set("Content-Type", mw.FormDataContentType())

	meta, form, err := readForm(c)
	require.NoError(t, err)

	assert.Equal(t, "fix the sink", meta["description"])
	assert.Equal(t, map[string]string{"rooms": "3"}, form.values)
	require.Len(t, form.attachments, 1)
	assert.Equal(t, "a.jpg", form.attachments[0].Name)
	require.Contains(t, form.files, "floor_plan")
	assert.Nil(t, form.audioNote)
}

func TestServiceRequestHandler_PaymentReturn(t *testing.T) {
	h := NewServiceRequestHandler(&servicerequest.Deps{}, nil)
	r := newTestRouter(h, nil)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/service-request/payments", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/service-request/payments?invoice_id=cs_1&cancelled=1", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "cancelled")
}

func TestServiceRequestHandler_Webhook(t *testing.T) {
	t.Run("disabled without parser", func(t *testing.T) {
		r := newTestRouter(NewServiceRequestHandler(&servicerequest.Deps{}, nil), nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/payments/webhook", bytes.NewBufferString(`{}`)))
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("bad signature", func(t *testing.T) {
		parser := &stubWebhooks{err: errors.New("signature mismatch")}
		r := newTestRouter(NewServiceRequestHandler(&servicerequest.Deps{}, parser), nil)
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/payments/webhook", bytes.NewBufferString(`{}`))
		req.Header.Set("Stripe-Signature", "t=1,v1=abc")
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "t=1,v1=abc", parser.signature)
	})

	t.Run("ignored event", func(t *testing.T) {
		parser := &stubWebhooks{}
		r := newTestRouter(NewServiceRequestHandler(&servicerequest.Deps{}, parser), nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/payments/webhook", bytes.NewBufferString(`{}`)))
		assert.Equal(t, http.StatusNoContent, w.Code)
	})
}
