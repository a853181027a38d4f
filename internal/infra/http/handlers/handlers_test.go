package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/xavierca1/eva-followup/internal/entity"
	"github.com/xavierca1/eva-followup/internal/usecase"
)

type MockCapturer struct {
	mock.Mock
}

func (m *MockCapturer) Execute(ctx context.Context, input usecase.CaptureLeadInput) (*usecase.CaptureLeadOutput, error) {
	args := m.Called(ctx, input)
	out, _ := args.Get(0).(*usecase.CaptureLeadOutput)
	return out, args.Error(1)
}

type MockFinder struct {
	mock.Mock
}

func (m *MockFinder) FindByInternalID(ctx context.Context, id string) (*entity.Lead, error) {
	args := m.Called(ctx, id)
	lead, _ := args.Get(0).(*entity.Lead)
	return lead, args.Error(1)
}

func (m *MockFinder) List(ctx context.Context, filter entity.LeadFilter) ([]*entity.Lead, error) {
	args := m.Called(ctx, filter)
	leads, _ := args.Get(0).([]*entity.Lead)
	return leads, args.Error(1)
}

func newTestRouter(t *testing.T, capturer LeadCapturer, finder entity.LeadFinder, perMinute int) http.Handler {
	leads := NewLeadHandler(capturer, finder, perMinute)
	t.Cleanup(leads.Close)
	return NewRouter(leads, NewHealthHandler("memory", nil))
}

func postJSON(router http.Handler, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestCaptureLeadSuccess(t *testing.T) {
	capturer := new(MockCapturer)
	capturer.On("Execute", mock.Anything, mock.MatchedBy(func(in usecase.CaptureLeadInput) bool {
		return in.Name == "Ana" && in.Email == "ana@x.com" && in.Phone == "11988887777"
	})).Return(&usecase.CaptureLeadOutput{
		Status:          "success",
		Message:         "Lead Ana capturado com sucesso! Eva Follow-up em andamento.",
		LeadID:          "id-1",
		LeadEmail:       "ana@x.com",
		CallID:          "call_abc",
		CallStatus:      entity.StatusCallInitiated,
		BackupScheduled: true,
		NextActions:     []string{"Eva está ligando para o lead"},
		Timestamp:       time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC),
	}, nil)

	router := newTestRouter(t, capturer, nil, 10)

	for _, path := range []string{"/leads", "/webhook"} {
		rec := postJSON(router, path, `{"name":"Ana","email":"ana@x.com","phone":"11988887777"}`)

		require.Equal(t, http.StatusOK, rec.Code)
		var body map[string]interface{}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "success", body["status"])
		assert.Equal(t, "call_abc", body["retell_call_id"])
		assert.Equal(t, "call_initiated", body["retell_initiation_status"])
		assert.Equal(t, true, body["whatsapp_backup_scheduled"])
		assert.Equal(t, "2025-03-10T14:00:00Z", body["timestamp"])
	}
	capturer.AssertNumberOfCalls(t, "Execute", 2)
}

func TestCaptureLeadFormEncoded(t *testing.T) {
	capturer := new(MockCapturer)
	capturer.On("Execute", mock.Anything, mock.MatchedBy(func(in usecase.CaptureLeadInput) bool {
		return in.Nome == "Carlos" && in.Email == "carlos@x.com" && in.Telefone == "64999999999"
	})).Return(&usecase.CaptureLeadOutput{Status: "success"}, nil)

	form := url.Values{"nome": {"Carlos"}, "email": {"carlos@x.com"}, "telefone": {"64999999999"}}
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()

	newTestRouter(t, capturer, nil, 10).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	capturer.AssertExpectations(t)
}

func TestCaptureLeadMultipartForm(t *testing.T) {
	capturer := new(MockCapturer)
	capturer.On("Execute", mock.Anything, mock.MatchedBy(func(in usecase.CaptureLeadInput) bool {
		return in.Name == "Ana" && in.Email == "ana@x.com" && in.Phone == "11988887777"
	})).Return(&usecase.CaptureLeadOutput{Status: "success"}, nil)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("name", "Ana"))
	require.NoError(t, mw.WriteField("email", "ana@x.com"))
	require.NoError(t, mw.WriteField("phone", "11988887777"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/leads", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()

	newTestRouter(t, capturer, nil, 10).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	capturer.AssertExpectations(t)
}

func TestCaptureLeadValidationError(t *testing.T) {
	capturer := new(MockCapturer)
	capturer.On("Execute", mock.Anything, mock.Anything).Return(nil, &usecase.ValidationError{
		Fields: []usecase.FieldError{{Field: "email", Message: "is required"}},
	})

	rec := postJSON(newTestRouter(t, capturer, nil, 10), "/leads", `{"name":"Bob"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"status":"error","message":"Campos obrigatórios: email","errors":[{"field":"email","message":"is required"}]}`, rec.Body.String())
}

func TestCaptureLeadInvalidEmailMessage(t *testing.T) {
	capturer := new(MockCapturer)
	capturer.On("Execute", mock.Anything, mock.Anything).Return(nil, &usecase.ValidationError{
		Fields: []usecase.FieldError{{Field: "email", Message: "is invalid"}},
	})

	rec := postJSON(newTestRouter(t, capturer, nil, 10), "/leads", `{"name":"Bob","email":"bob"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Email inválido")
}

func TestCaptureLeadMalformedJSON(t *testing.T) {
	capturer := new(MockCapturer)

	rec := postJSON(newTestRouter(t, capturer, nil, 10), "/leads", `{"name":`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	capturer.AssertNotCalled(t, "Execute", mock.Anything, mock.Anything)
}

func TestCaptureLeadInternalError(t *testing.T) {
	capturer := new(MockCapturer)
	capturer.On("Execute", mock.Anything, mock.Anything).Return(nil, &usecase.InternalError{Op: "capture", Err: errors.New("boom")})

	rec := postJSON(newTestRouter(t, capturer, nil, 10), "/leads", `{"name":"Ana","email":"ana@x.com"}`)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"status":"error","message":"Erro interno do servidor"}`, rec.Body.String())
}

func TestMethodNotAllowed(t *testing.T) {
	router := newTestRouter(t, new(MockCapturer), nil, 10)

	for _, method := range []string{http.MethodGet, http.MethodPut, http.MethodDelete} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(method, "/webhook", nil))

		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code, method)
		assert.Contains(t, rec.Body.String(), `"status":"error"`)
	}
}

func TestOptionsReturnsOK(t *testing.T) {
	router := newTestRouter(t, new(MockCapturer), nil, 10)

	plain := httptest.NewRecorder()
	router.ServeHTTP(plain, httptest.NewRequest(http.MethodOptions, "/webhook", nil))
	assert.Equal(t, http.StatusOK, plain.Code)

	preflight := httptest.NewRequest(http.MethodOptions, "/leads", nil)
	preflight.Header.Set("Origin", "https://fluxomatika.com")
	preflight.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, preflight)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCaptureLeadRateLimited(t *testing.T) {
	capturer := new(MockCapturer)
	capturer.On("Execute", mock.Anything, mock.Anything).Return(&usecase.CaptureLeadOutput{Status: "success"}, nil)
	router := newTestRouter(t, capturer, nil, 2)

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		codes = append(codes, postJSON(router, "/leads", `{"name":"Ana","email":"ana@x.com"}`).Code)
	}

	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestGetLead(t *testing.T) {
	finder := new(MockFinder)
	finder.On("FindByInternalID", mock.Anything, "id-1").Return(&entity.Lead{InternalID: "id-1", Name: "Ana", Status: entity.StatusMessageSent}, nil)
	finder.On("FindByInternalID", mock.Anything, "missing").Return(nil, entity.ErrLeadNotFound)
	router := newTestRouter(t, new(MockCapturer), finder, 10)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/leads/id-1", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"message_sent"`)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/leads/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetLeadWithoutFinder(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestRouter(t, new(MockCapturer), nil, 10).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/leads/id-1", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListLeads(t *testing.T) {
	finder := new(MockFinder)
	finder.On("List", mock.Anything, entity.LeadFilter{Status: entity.StatusCallFailed, Limit: 2}).Return([]*entity.Lead{
		{InternalID: "id-1", Status: entity.StatusCallFailed},
		{InternalID: "id-2", Status: entity.StatusCallFailed},
	}, nil)
	finder.On("List", mock.Anything, entity.LeadFilter{Limit: maxListLimit}).Return([]*entity.Lead{}, nil)
	router := newTestRouter(t, new(MockCapturer), finder, 10)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/leads?status=call_failed&limit=2", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Count int            `json:"count"`
		Leads []*entity.Lead `json:"leads"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Count)
	assert.Equal(t, "id-2", body.Leads[1].InternalID)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/leads?limit=5000", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"leads":[]`)

	finder.AssertExpectations(t)
}

func TestListLeadsRejectsBadQuery(t *testing.T) {
	finder := new(MockFinder)
	router := newTestRouter(t, new(MockCapturer), finder, 10)

	for _, q := range []string{"status=bogus", "limit=abc", "limit=0"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/leads?"+q, nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
	}
	finder.AssertNotCalled(t, "List", mock.Anything, mock.Anything)
}

func TestRateLimiterStopEndsCleanup(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute)
	now := time.Now()
	rl.Allow("10.0.0.1")

	assert.Equal(t, 0, rl.evict(now))
	assert.Equal(t, 1, rl.evict(now.Add(3*time.Minute)))

	rl.Stop()
	rl.Stop()
	select {
	case <-rl.done:
	default:
		t.Fatal("cleanup goroutine still running")
	}
}

func TestHealth(t *testing.T) {
	health := NewHealthHandler("rabbitmq", map[string]HealthCheck{
		"database": func(context.Context) error { return nil },
		"rabbitmq": func(context.Context) error { return errors.New("connection closed") },
	})
	leads := NewLeadHandler(new(MockCapturer), nil, 10)
	defer leads.Close()
	router := NewRouter(leads, health)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var body HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "degraded", body.Status)
	assert.Equal(t, "healthy", body.Dependencies["database"])
	assert.Equal(t, "unhealthy: connection closed", body.Dependencies["rabbitmq"])
	assert.Equal(t, "rabbitmq", body.Scheduler)
}

func TestMetricsEndpoint(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestRouter(t, new(MockCapturer), nil, 10).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
