package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/dataflow/internal/metrics"
)

// =============================================================================
// 路径归一化测试
// =============================================================================

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		name string
		path string
		want string
	}{
		{"collection route", "/data", "/data"},
		{"numeric id", "/data/42", "/data/:id"},
		{"large numeric id", "/data/9000000001", "/data/:id"},
		{"uuid segment", "/data/550e8400-e29b-41d4-a716-446655440000", "/data/:id"},
		{"hex segment", "/data/deadbeef01", "/data/:id"},
		{"health route", "/health", "/health"},
		{"metrics route", "/metrics", "/metrics"},
		{"static nested path", "/foo/bar", "/foo/bar"},
		{"short hex not normalized", "/data/abc", "/data/abc"},
		{"root", "/", "/"},
		{"nested numeric", "/a/1/b/2", "/a/:id/b/:id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, normalizePath(tt.path))
		})
	}
}

// =============================================================================
// 指标中间件测试
// =============================================================================

// gatherMetric 在 registry 中查找指定名称和标签的指标值
func gatherMetric(t *testing.T, c *metrics.Collector, name string, labels map[string]string) (float64, bool) {
	t.Helper()

	families, err := c.Registry().Gather()
	require.NoError(t, err)

	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if !labelsMatch(m, labels) {
				continue
			}
			switch {
			case m.GetCounter() != nil:
				return m.GetCounter().GetValue(), true
			case m.GetGauge() != nil:
				return m.GetGauge().GetValue(), true
			case m.GetHistogram() != nil:
				return float64(m.GetHistogram().GetSampleCount()), true
			}
		}
	}
	return 0, false
}

func labelsMatch(m *dto.Metric, want map[string]string) bool {
	got := make(map[string]string, len(m.GetLabel()))
	for _, lp := range m.GetLabel() {
		got[lp.GetName()] = lp.GetValue()
	}
	for k, v := range want {
		if got[k] != v {
			return false
		}
	}
	return true
}

func TestMetricsMiddleware_RecordsRequest(t *testing.T) {
	collector := metrics.NewCollector("", zap.NewNop())

	handler := Chain(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}),
		MetricsMiddleware(collector),
	)

	req := httptest.NewRequest(http.MethodGet, "/data/42", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	labels := map[string]string{"method": "GET", "route": "/data/:id", "status": "404"}

	count, ok := gatherMetric(t, collector, "http_requests_total", labels)
	require.True(t, ok, "counter series should exist")
	assert.Equal(t, float64(1), count)

	samples, ok := gatherMetric(t, collector, "http_request_duration_seconds", labels)
	require.True(t, ok, "histogram series should exist")
	assert.Equal(t, float64(1), samples)
}

func TestMetricsMiddleware_DefaultStatusIs200(t *testing.T) {
	collector := metrics.NewCollector("", zap.NewNop())

	handler := Chain(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("ok")) // 未显式调用 WriteHeader
		}),
		MetricsMiddleware(collector),
	)

	req := httptest.NewRequest(http.MethodGet, "/data", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	count, ok := gatherMetric(t, collector, "http_requests_total",
		map[string]string{"method": "GET", "route": "/data", "status": "200"})
	require.True(t, ok)
	assert.Equal(t, float64(1), count)
}

func TestMetricsMiddleware_InFlightGauge(t *testing.T) {
	collector := metrics.NewCollector("", zap.NewNop())

	var duringRequest float64
	handler := Chain(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			duringRequest, _ = gatherMetric(t, collector, "inprogress_requests", nil)
			w.WriteHeader(http.StatusOK)
		}),
		MetricsMiddleware(collector),
	)

	req := httptest.NewRequest(http.MethodGet, "/data", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, float64(1), duringRequest, "gauge should be 1 while the handler runs")

	after, ok := gatherMetric(t, collector, "inprogress_requests", nil)
	require.True(t, ok)
	assert.Equal(t, float64(0), after, "gauge should return to 0 after the request")
}

func TestMetricsMiddleware_PanicRecordsClientStatus(t *testing.T) {
	collector := metrics.NewCollector("", zap.NewNop())

	// 生产链顺序：指标在 Recovery 之外，panic 转成的 500 经过指标 writer
	handler := Chain(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			panic("boom")
		}),
		MetricsMiddleware(collector),
		Recovery(zap.NewNop()),
	)

	req := httptest.NewRequest(http.MethodGet, "/data", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	count, ok := gatherMetric(t, collector, "http_requests_total",
		map[string]string{"method": "GET", "route": "/data", "status": "500"})
	require.True(t, ok, "the request must be counted under the status the client received")
	assert.Equal(t, float64(1), count)

	_, ok = gatherMetric(t, collector, "http_requests_total",
		map[string]string{"method": "GET", "route": "/data", "status": "200"})
	assert.False(t, ok, "no series under the pre-panic default status")

	after, ok := gatherMetric(t, collector, "inprogress_requests", nil)
	require.True(t, ok)
	assert.Equal(t, float64(0), after, "gauge must be decremented even on panic")
}

// =============================================================================
// 中间件链测试
// =============================================================================

func TestChain_Order(t *testing.T) {
	var order []string
	tag := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	handler := Chain(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			order = append(order, "handler")
		}),
		tag("first"), tag("second"), tag("third"),
	)

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, []string{"first", "second", "third", "handler"}, order)
}

// =============================================================================
// 请求 ID 中间件测试
// =============================================================================

func TestRequestID_Generated(t *testing.T) {
	var ctxID string
	handler := Chain(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctxID = RequestIDFromContext(r.Context())
		}),
		RequestID(),
	)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/data", nil))

	headerID := rec.Header().Get("X-Request-ID")
	assert.NotEmpty(t, headerID)
	assert.Equal(t, headerID, ctxID)
}

func TestRequestID_Preserved(t *testing.T) {
	handler := Chain(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}),
		RequestID(),
	)

	req := httptest.NewRequest(http.MethodGet, "/data", nil)
	req.Header.Set("X-Request-ID", "client-supplied-id")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, "client-supplied-id", rec.Header().Get("X-Request-ID"))
}

func TestRequestIDFromContext_Empty(t *testing.T) {
	assert.Empty(t, RequestIDFromContext(context.Background()))
}

// =============================================================================
// 安全头与 CORS 测试
// =============================================================================

func TestSecurityHeaders(t *testing.T) {
	handler := Chain(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}),
		SecurityHeaders(),
	)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "strict-origin-when-cross-origin", rec.Header().Get("Referrer-Policy"))
}

func TestCORS_AllowedOrigin(t *testing.T) {
	handler := Chain(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}),
		CORS([]string{"https://app.example.com"}),
	)

	req := httptest.NewRequest(http.MethodGet, "/data", nil)
	req.Header.Set("Origin", "https://app.example.com")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORS_DisallowedOrigin(t *testing.T) {
	handler := Chain(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}),
		CORS([]string{"https://app.example.com"}),
	)

	req := httptest.NewRequest(http.MethodGet, "/data", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORS_PreflightAllowed(t *testing.T) {
	handler := Chain(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("preflight should not reach the handler")
		}),
		CORS([]string{"https://app.example.com"}),
	)

	req := httptest.NewRequest(http.MethodOptions, "/data", nil)
	req.Header.Set("Origin", "https://app.example.com")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestCORS_NoOriginsConfigured(t *testing.T) {
	handler := Chain(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("cross-origin preflight should be rejected")
		}),
		CORS(nil),
	)

	req := httptest.NewRequest(http.MethodOptions, "/data", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

// =============================================================================
// 限流中间件测试
// =============================================================================

func TestRateLimiter_BlocksBeyondBurst(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	handler := Chain(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}),
		RateLimiter(ctx, 0.001, 1, zap.NewNop()),
	)

	req := httptest.NewRequest(http.MethodGet, "/data", nil)
	req.RemoteAddr = "10.0.0.1:12345"

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, req)
	assert.Equal(t, http.StatusOK, first.Code)

	second := httptest.NewRecorder()
	handler.ServeHTTP(second, req)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
}

func TestRateLimiter_PerIP(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	handler := Chain(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}),
		RateLimiter(ctx, 0.001, 1, zap.NewNop()),
	)

	reqA := httptest.NewRequest(http.MethodGet, "/data", nil)
	reqA.RemoteAddr = "10.0.0.1:12345"
	handler.ServeHTTP(httptest.NewRecorder(), reqA)

	// 不同 IP 不受前一个 visitor 的限制影响
	reqB := httptest.NewRequest(http.MethodGet, "/data", nil)
	reqB.RemoteAddr = "10.0.0.2:12345"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, reqB)
	assert.Equal(t, http.StatusOK, rec.Code)
}

// =============================================================================
// 日志中间件测试
// =============================================================================

func TestRequestLogger_PassesThrough(t *testing.T) {
	handler := Chain(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTeapot)
			w.Write([]byte("short and stout"))
		}),
		RequestLogger(zap.NewNop()),
	)

	rec := httptest.NewRecorder()
	start := time.Now()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/data", nil))

	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, "short and stout", rec.Body.String())
	assert.Less(t, time.Since(start), time.Second)
}
