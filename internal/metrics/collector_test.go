package metrics

import (
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// =============================================================================
// 🧪 Collector 测试
// =============================================================================

func TestNewCollector(t *testing.T) {
	collector := NewCollector("", zap.NewNop())

	assert.NotNil(t, collector)
	assert.NotNil(t, collector.requestsTotal)
	assert.NotNil(t, collector.requestDuration)
	assert.NotNil(t, collector.inFlight)
	assert.NotNil(t, collector.Registry())
}

func TestCollector_RecordHTTPRequest(t *testing.T) {
	collector := NewCollector("", zap.NewNop())

	collector.RecordHTTPRequest("GET", "/data", 200, 100*time.Millisecond)
	collector.RecordHTTPRequest("GET", "/data", 200, 50*time.Millisecond)
	collector.RecordHTTPRequest("POST", "/data", 201, 70*time.Millisecond)

	// 计数器等于每个标签组合下完成的请求数
	assert.Equal(t, float64(2),
		testutil.ToFloat64(collector.requestsTotal.WithLabelValues("GET", "/data", "200")))
	assert.Equal(t, float64(1),
		testutil.ToFloat64(collector.requestsTotal.WithLabelValues("POST", "/data", "201")))

	count := testutil.CollectAndCount(collector.requestDuration)
	assert.Greater(t, count, 0)
}

func TestCollector_InFlightGauge(t *testing.T) {
	collector := NewCollector("", zap.NewNop())

	collector.IncInFlight()
	collector.IncInFlight()
	assert.Equal(t, float64(2), testutil.ToFloat64(collector.inFlight))

	collector.DecInFlight()
	collector.DecInFlight()
	assert.Equal(t, float64(0), testutil.ToFloat64(collector.inFlight))
}

func TestCollector_RecordDBConnections(t *testing.T) {
	collector := NewCollector("", zap.NewNop())

	collector.RecordDBConnections("postgres", 10, 5)

	assert.Equal(t, float64(10),
		testutil.ToFloat64(collector.dbConnectionsOpen.WithLabelValues("postgres")))
	assert.Equal(t, float64(5),
		testutil.ToFloat64(collector.dbConnectionsIdle.WithLabelValues("postgres")))
}

func TestCollector_NamespacePrefix(t *testing.T) {
	collector := NewCollector("dataflow", zap.NewNop())
	collector.RecordHTTPRequest("GET", "/data", 200, time.Millisecond)

	families, err := collector.Registry().Gather()
	require.NoError(t, err)

	found := false
	for _, mf := range families {
		if mf.GetName() == "dataflow_http_requests_total" {
			found = true
		}
	}
	assert.True(t, found, "namespaced counter should be registered")
}

func TestCollector_ConcurrentRecording(t *testing.T) {
	collector := NewCollector("", zap.NewNop())

	const goroutines = 20
	const perGoroutine = 50

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < perGoroutine; j++ {
				collector.IncInFlight()
				collector.RecordHTTPRequest("GET", "/data", 200, 10*time.Millisecond)
				collector.DecInFlight()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, float64(goroutines*perGoroutine),
		testutil.ToFloat64(collector.requestsTotal.WithLabelValues("GET", "/data", "200")))
	// 所有请求结束后在途请求数回到 0
	assert.Equal(t, float64(0), testutil.ToFloat64(collector.inFlight))
}
