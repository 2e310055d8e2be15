package handlers

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/soundprediction/harmony"
	"github.com/soundprediction/harmony/pkg/embedder"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(t *testing.T, path string, h gin.HandlerFunc) map[string]interface{} {
	t.Helper()
	r := gin.New()
	r.GET(path, h)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))

	var response map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	response["_code"] = float64(w.Code)
	return response
}

func testClient() *harmony.Client {
	return harmony.NewClient(embedder.NewHashingEmbedder(128), nil, nil, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestHealthCheck(t *testing.T) {
	handler := NewHealthHandler(nil)
	response := serve(t, "/health", handler.HealthCheck)

	if response["_code"] != float64(http.StatusOK) {
		t.Errorf("expected status %d, got %v", http.StatusOK, response["_code"])
	}
	if response["status"] != "healthy" {
		t.Errorf("expected status healthy, got %v", response["status"])
	}
	if response["service"] != "harmony" {
		t.Errorf("expected service harmony, got %v", response["service"])
	}
	if _, ok := response["timestamp"]; !ok {
		t.Error("expected timestamp in response")
	}
	if _, ok := response["version"]; !ok {
		t.Error("expected version in response")
	}
}

func TestLivenessCheck(t *testing.T) {
	handler := NewHealthHandler(nil)
	response := serve(t, "/live", handler.LivenessCheck)

	if response["status"] != "alive" {
		t.Errorf("expected status alive, got %v", response["status"])
	}
}

func TestReadinessCheckWithNilClient(t *testing.T) {
	handler := NewHealthHandler(nil)
	response := serve(t, "/ready", handler.ReadinessCheck)

	if response["_code"] != float64(http.StatusServiceUnavailable) {
		t.Errorf("expected status %d, got %v", http.StatusServiceUnavailable, response["_code"])
	}
	if response["status"] != "not_ready" {
		t.Errorf("expected status not_ready, got %v", response["status"])
	}

	checks, ok := response["checks"].(map[string]interface{})
	if !ok {
		t.Fatal("expected checks in response")
	}
	clientCheck, ok := checks["harmony_client"].(map[string]interface{})
	if !ok {
		t.Fatal("expected harmony_client check in response")
	}
	if clientCheck["status"] != "unhealthy" {
		t.Errorf("expected client status unhealthy, got %v", clientCheck["status"])
	}
}

func TestReadinessCheckWithClient(t *testing.T) {
	handler := NewHealthHandler(testClient())
	response := serve(t, "/ready", handler.ReadinessCheck)

	if response["_code"] != float64(http.StatusOK) {
		t.Fatalf("expected status %d, got %v", http.StatusOK, response["_code"])
	}

	checks := response["checks"].(map[string]interface{})
	for _, name := range []string{"vector_cache", "embedder", "system"} {
		check, ok := checks[name].(map[string]interface{})
		if !ok {
			t.Fatalf("expected %s check in response", name)
		}
		if check["status"] != "healthy" {
			t.Errorf("expected %s healthy, got %v", name, check["status"])
		}
	}
	if dims := checks["embedder"].(map[string]interface{})["dimensions"]; dims != float64(128) {
		t.Errorf("expected embedder dimensions 128, got %v", dims)
	}
}

func TestDetailedHealthCheckWithNilClient(t *testing.T) {
	handler := NewHealthHandler(nil)
	response := serve(t, "/health/detailed", handler.DetailedHealthCheck)

	if response["_code"] != float64(http.StatusServiceUnavailable) {
		t.Errorf("expected status %d, got %v", http.StatusServiceUnavailable, response["_code"])
	}
	if response["status"] != "unhealthy" {
		t.Errorf("expected status unhealthy, got %v", response["status"])
	}
	if _, ok := response["build_info"]; !ok {
		t.Error("expected build_info in response")
	}

	metrics, ok := response["metrics"].(map[string]interface{})
	if !ok {
		t.Fatal("expected metrics in response")
	}
	if _, ok := metrics["response_time_ms"]; !ok {
		t.Error("expected response_time_ms in metrics")
	}
}

func TestGetSystemMetrics(t *testing.T) {
	handler := NewHealthHandler(nil)

	metrics := handler.getSystemMetrics()

	if metrics.MemoryUsage == "" {
		t.Error("expected memory_usage to be set")
	}
	if metrics.Goroutines < 1 {
		t.Errorf("expected at least 1 goroutine, got %d", metrics.Goroutines)
	}
	if metrics.StackUsage == "" {
		t.Error("expected stack_usage to be set")
	}
}
