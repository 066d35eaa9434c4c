package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parking-gate-backend/internal/decision"
	"parking-gate-backend/internal/model"
	"parking-gate-backend/internal/registry"
	"parking-gate-backend/internal/session"
	"parking-gate-backend/internal/store"
	"parking-gate-backend/internal/store/memory"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func setupRouter(t *testing.T, push *webpush.Options) (*gin.Engine, *memory.Store) {
	t.Helper()
	s := memory.New()
	logger := log.New(io.Discard, "", 0)
	d := Deps{
		Store:    s,
		Engine:   decision.New(s, s, s, s, decision.Options{Logger: logger}),
		Registry: registry.NewService(s, s),
		Sessions: session.NewService(s, s, time.UTC),
		WebPush:  push,
		Logger:   logger,
	}
	return NewRouter(d, RouterOptions{CacheTTL: time.Minute}), s
}

func doJSON(r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	var buf io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		buf = bytes.NewReader(b)
	}
	req, _ := http.NewRequest(method, path, buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var e errorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &e))
	return e
}

func registerGate(t *testing.T, r http.Handler, key string, dir model.GateDirection) {
	t.Helper()
	w := doJSON(r, http.MethodPost, "/api/v1/gates/register", gin.H{
		"parkingLotId": 1, "name": key, "deviceKey": key, "direction": dir,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
}

func TestPlateDetected(t *testing.T) {
	r, _ := setupRouter(t, nil)
	registerGate(t, r, "G1", model.DirectionBoth)

	w := doJSON(r, http.MethodPost, "/api/v1/events/plate-detected", gin.H{
		"deviceKey": "G1", "plateNumber": "12 가 3456", "capturedAt": "2025-03-01T09:00:00+09:00",
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"action":"ENTER","sessionId":1,"plateNumber":"12가3456","isRegistered":false}`, w.Body.String())

	w = doJSON(r, http.MethodPost, "/api/v1/events/plate-detected", gin.H{
		"deviceKey": "G1", "plateNumber": "12가3456",
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"action":"EXIT","sessionId":1,"plateNumber":"12가3456","isRegistered":false}`, w.Body.String())
}

func TestPlateDetected_RegisteredVehicle(t *testing.T) {
	r, _ := setupRouter(t, nil)
	registerGate(t, r, "G1", model.DirectionBoth)

	w := doJSON(r, http.MethodPost, "/api/v1/vehicles", gin.H{
		"parkingLotId": 1, "plateNumber": "12가3456", "label": "101-1001", "category": "RESIDENT",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(r, http.MethodPost, "/api/v1/events/plate-detected", gin.H{"deviceKey": "G1", "plateNumber": "12가3456"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"action":"ENTER","sessionId":1,"plateNumber":"12가3456","isRegistered":true,"vehicleLabel":"101-1001","vehicleCategory":"RESIDENT"}`, w.Body.String())
}

func TestPlateDetected_Errors(t *testing.T) {
	r, _ := setupRouter(t, nil)
	registerGate(t, r, "IN", model.DirectionEnter)
	registerGate(t, r, "OUT", model.DirectionExit)

	testCases := []struct {
		name         string
		body         any
		expectedCode int
		expectedBody errorResponse
	}{
		{
			name:         "Unknown device key",
			body:         gin.H{"deviceKey": "nope", "plateNumber": "12가3456"},
			expectedCode: http.StatusNotFound,
			expectedBody: errorResponse{Code: "GATE_NOT_FOUND", Message: "gate not found: nope"},
		},
		{
			name:         "Exit-only gate without a session",
			body:         gin.H{"deviceKey": "OUT", "plateNumber": "12가3456"},
			expectedCode: http.StatusBadRequest,
			expectedBody: errorResponse{Code: "INVALID_DIRECTION", Message: "cannot exit through an entry-only gate with no active session"},
		},
		{
			name:         "Missing plate",
			body:         gin.H{"deviceKey": "IN"},
			expectedCode: http.StatusBadRequest,
		},
		{
			name:         "Whitespace-only plate",
			body:         gin.H{"deviceKey": "IN", "plateNumber": "   "},
			expectedCode: http.StatusBadRequest,
			expectedBody: errorResponse{Code: "BAD_REQUEST", Message: "plateNumber is required"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			w := doJSON(r, http.MethodPost, "/api/v1/events/plate-detected", tc.body)
			assert.Equal(t, tc.expectedCode, w.Code)
			got := decodeError(t, w)
			if tc.expectedBody.Code != "" {
				assert.Equal(t, tc.expectedBody, got)
			} else {
				assert.Equal(t, "BAD_REQUEST", got.Code)
			}
		})
	}
}

func TestRegisterGate_DuplicateAndCacheInvalidation(t *testing.T) {
	r, _ := setupRouter(t, nil)

	w := doJSON(r, http.MethodGet, "/api/v1/gates?parkingLotId=1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())

	registerGate(t, r, "G1", model.DirectionBoth)

	w = doJSON(r, http.MethodGet, "/api/v1/gates?parkingLotId=1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var gates []model.GateDevice
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &gates))
	require.Len(t, gates, 1)
	assert.Equal(t, "G1", gates[0].DeviceKey)

	w = doJSON(r, http.MethodPost, "/api/v1/gates/register", gin.H{
		"parkingLotId": 1, "name": "again", "deviceKey": "G1", "direction": "ENTER",
	})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "DUPLICATE", decodeError(t, w).Code)

	w = doJSON(r, http.MethodPost, "/api/v1/gates/register", gin.H{
		"parkingLotId": 1, "name": "bad", "deviceKey": "G9", "direction": "UP",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(r, http.MethodGet, "/api/v1/gates", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSessionsEndpoints(t *testing.T) {
	r, _ := setupRouter(t, nil)
	registerGate(t, r, "G1", model.DirectionBoth)

	w := doJSON(r, http.MethodPost, "/api/v1/events/plate-detected", gin.H{
		"deviceKey": "G1", "plateNumber": "12가3456", "capturedAt": "2025-03-01T09:00:00Z",
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(r, http.MethodGet, "/api/v1/sessions/open?parkingLotId=1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var views []session.View
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &views))
	require.Len(t, views, 1)
	assert.Equal(t, "2025-03-01T09:00:00Z", views[0].EnteredAt)

	w = doJSON(r, http.MethodGet, "/api/v1/sessions/history?parkingLotId=1&date=2025-03-01", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &views))
	assert.Len(t, views, 1)

	w = doJSON(r, http.MethodGet, "/api/v1/sessions/history?parkingLotId=1&date=yesterday", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(r, http.MethodGet, "/api/v1/parking-lots/1/sessions/current/12가3456", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var current session.View
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &current))
	assert.Equal(t, model.SessionOpen, current.Status)

	w = doJSON(r, http.MethodGet, "/api/v1/parking-lots/1/sessions/current/99허9999", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSubscriptions(t *testing.T) {
	r, s := setupRouter(t, nil)

	w := doJSON(r, http.MethodPut, "/api/v1/subscriptions", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(r, http.MethodPut, "/api/v1/subscriptions", gin.H{
		"endpoint": "https://push.example/abc", "p256dh": "k", "auth": "a", "subscribed_lots": []int64{1, 2},
	})
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(r, http.MethodGet, "/api/v1/subscriptions?endpoint=https://push.example/abc", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"subscribed_lots":[1,2]}`, w.Body.String())

	w = doJSON(r, http.MethodDelete, "/api/v1/subscriptions", gin.H{"endpoint": "https://push.example/abc"})
	assert.Equal(t, http.StatusNoContent, w.Code)

	subs, err := s.SubscriptionsForLot(context.Background(), 1)
	require.NoError(t, err)
	assert.Empty(t, subs)

	w = doJSON(r, http.MethodGet, "/api/v1/subscriptions?endpoint=https://push.example/abc", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestVAPIDAndHealth(t *testing.T) {
	r, _ := setupRouter(t, nil)
	w := doJSON(r, http.MethodGet, "/api/v1/vapid_public_key", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = doJSON(r, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	r, _ = setupRouter(t, &webpush.Options{VAPIDPublicKey: "pub"})
	w = doJSON(r, http.MethodGet, "/api/v1/vapid_public_key", nil)
	assert.JSONEq(t, `{"public_key":"pub"}`, w.Body.String())
}

func TestDecisionStatus(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, decisionStatus(decision.KindNotFound))
	assert.Equal(t, http.StatusBadRequest, decisionStatus(decision.KindInvalidDirection))
	assert.Equal(t, http.StatusBadRequest, decisionStatus(decision.KindInvalidInput))
	assert.Equal(t, http.StatusInternalServerError, decisionStatus(decision.KindInvariantViolation))
	assert.Equal(t, http.StatusServiceUnavailable, decisionStatus(decision.KindStorageUnavailable))
}

// unreachableGates fails every lookup as if the database were down.
type unreachableGates struct{}

func (unreachableGates) ResolveGate(context.Context, string) (model.GateDevice, error) {
	return model.GateDevice{}, errors.New("connection refused")
}

var _ store.GateDirectory = unreachableGates{}

func TestPlateDetected_StorageUnavailable(t *testing.T) {
	s := memory.New()
	logger := log.New(io.Discard, "", 0)
	r := NewRouter(Deps{
		Store:    s,
		Engine:   decision.New(unreachableGates{}, s, s, s, decision.Options{Logger: logger}),
		Registry: registry.NewService(s, s),
		Sessions: session.NewService(s, s, time.UTC),
		Logger:   logger,
	}, RouterOptions{})

	w := doJSON(r, http.MethodPost, "/api/v1/events/plate-detected", gin.H{"deviceKey": "G1", "plateNumber": "12가3456"})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))
	assert.Equal(t, "STORAGE_UNAVAILABLE", decodeError(t, w).Code)
}

func TestPlateDetected_NoRetryAfterOnClientErrors(t *testing.T) {
	r, _ := setupRouter(t, nil)
	w := doJSON(r, http.MethodPost, "/api/v1/events/plate-detected", gin.H{"deviceKey": "nope", "plateNumber": "12가3456"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Empty(t, w.Header().Get("Retry-After"))
}

func TestRateLimit_SkipsPlateDetection(t *testing.T) {
	s := memory.New()
	logger := log.New(io.Discard, "", 0)
	r := NewRouter(Deps{
		Store:    s,
		Engine:   decision.New(s, s, s, s, decision.Options{Logger: logger}),
		Registry: registry.NewService(s, s),
		Sessions: session.NewService(s, s, time.UTC),
		Logger:   logger,
	}, RouterOptions{RateLimit: 1, Burst: 1})

	g := &model.GateDevice{LotID: 1, Name: "정문", DeviceKey: "G1", Direction: model.DirectionBoth}
	require.NoError(t, s.CreateGate(context.Background(), g))

	// Every camera behind one address is served.
	for i := 0; i < 5; i++ {
		w := doJSON(r, http.MethodPost, "/api/v1/events/plate-detected", gin.H{"deviceKey": "G1", "plateNumber": "12가3456"})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	}

	w := doJSON(r, http.MethodGet, "/api/v1/gates?parkingLotId=1", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = doJSON(r, http.MethodGet, "/api/v1/gates?parkingLotId=1", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}
