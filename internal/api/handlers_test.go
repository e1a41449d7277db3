package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/vigilstack/vigil-telemetry/internal/classify"
	"github.com/vigilstack/vigil-telemetry/internal/detectors"
	"github.com/vigilstack/vigil-telemetry/internal/engine"
	"github.com/vigilstack/vigil-telemetry/internal/patterns"
	"github.com/vigilstack/vigil-telemetry/internal/utils"
)

func newTestServer(t *testing.T) (*Server, *engine.Engine) {
	t.Helper()
	logger := utils.NewLogger("error", false)
	e := engine.New(logger, engine.Options{AutoClassify: true, AnomalyEnabled: true},
		classify.NewClassifierWithRules(classify.DefaultRules()),
		detectors.NewAnomalyDetector(50, 0), nil,
		patterns.NewTracker(nil, logger), nil, nil)
	t.Cleanup(e.Close)
	return NewServer(":0", e), e
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestRecordErrorEndpoint(t *testing.T) {
	server, _ := newTestServer(t)

	rec := doJSON(t, server.Handler(), http.MethodPost, "/api/v1/errors", map[string]any{
		"message": "database deadlock detected",
		"context": map[string]string{"service": "orders", "module": "checkout"},
	})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusAccepted, rec.Body.String())
	}

	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["id"] == "" {
		t.Fatal("expected an event id in the response")
	}
}

func TestRecordErrorRequiresMessage(t *testing.T) {
	server, _ := newTestServer(t)

	rec := doJSON(t, server.Handler(), http.MethodPost, "/api/v1/errors", map[string]any{
		"context": map[string]string{"service": "orders"},
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestRecordErrorRejectsMalformedBody(t *testing.T) {
	server, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/errors", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestRecordPerformanceEndpoint(t *testing.T) {
	server, _ := newTestServer(t)

	rec := doJSON(t, server.Handler(), http.MethodPost, "/api/v1/performance", map[string]any{
		"type":       "api-call",
		"metric":     "api.orders.latency",
		"value":      320.5,
		"unit":       "ms",
		"context":    map[string]string{"service": "orders"},
		"thresholds": map[string]float64{"warning": 500, "critical": 900},
	})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusAccepted, rec.Body.String())
	}
}

func TestRecordPerformanceRequiresMetric(t *testing.T) {
	server, _ := newTestServer(t)

	rec := doJSON(t, server.Handler(), http.MethodPost, "/api/v1/performance", map[string]any{
		"value": 100,
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestRecordWebVitalEndpoint(t *testing.T) {
	server, _ := newTestServer(t)

	rec := doJSON(t, server.Handler(), http.MethodPost, "/api/v1/webvitals", map[string]any{
		"name":    "LCP",
		"value":   3200,
		"context": map[string]string{"service": "web"},
	})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusAccepted, rec.Body.String())
	}
}

func TestRecordWebVitalUnknownName(t *testing.T) {
	server, _ := newTestServer(t)

	rec := doJSON(t, server.Handler(), http.MethodPost, "/api/v1/webvitals", map[string]any{
		"name":  "FPS",
		"value": 60,
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestListPatternsEndpoint(t *testing.T) {
	server, e := newTestServer(t)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := e.RecordError(ctx, engine.ErrorInput{Message: "cache miss storm"}); err != nil {
			t.Fatalf("RecordError: %v", err)
		}
	}

	rec := doJSON(t, server.Handler(), http.MethodGet, "/api/v1/patterns?limit=10", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var resp struct {
		Total int `json:"total"`
		Data  []struct {
			Count int64 `json:"count"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Total != 1 {
		t.Fatalf("total = %d, want 1", resp.Total)
	}
	if resp.Data[0].Count != 3 {
		t.Fatalf("count = %d, want 3", resp.Data[0].Count)
	}
}

func TestStatsEndpointRejectsBadWindow(t *testing.T) {
	server, _ := newTestServer(t)

	rec := doJSON(t, server.Handler(), http.MethodGet, "/api/v1/stats?window=soon", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestHealthEndpoint(t *testing.T) {
	server, _ := newTestServer(t)

	rec := doJSON(t, server.Handler(), http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}
