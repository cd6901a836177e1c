package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/maxrawlins/transaction-summary-api/config"
	"github.com/maxrawlins/transaction-summary-api/internal/domain/models"
)

func TestNewRouter_WiringAndMiddlewares(t *testing.T) {
	gin.SetMode(gin.TestMode)

	svc := &mockSummaryService{resp: &models.Summary{UserID: 42, Count: 1, Min: 1, Max: 1, Mean: 1}}
	h := NewHandler(&mockIngestService{}, svc, 1<<20)
	r := NewRouter(h, config.ServerConfig{RequestTimeout: time.Second, RateLimit: 0})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/summary/42", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Fatalf("expected X-Request-ID header to be set")
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "txsummary_http_requests_total") {
		t.Fatalf("metrics endpoint: %d", w.Code)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/swagger/index.html", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("swagger endpoint: %d", w.Code)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/upload", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("GET /upload should not be routed, got %d", w.Code)
	}
}

func TestNewRouter_RateLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := &mockSummaryService{resp: &models.Summary{UserID: 1, Count: 1, Min: 1, Max: 1, Mean: 1}}
	r := NewRouter(NewHandler(&mockIngestService{}, svc, 0), config.ServerConfig{RateLimit: 2})

	var codes []int
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/summary/1", nil))
		codes = append(codes, w.Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Fatalf("unexpected status sequence %v", codes)
	}
}
