// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// DurationBuckets are the histogram boundaries (seconds) for request latency.
var DurationBuckets = []float64{0.1, 0.3, 0.5, 1, 3, 5}

// =============================================================================
// 📊 指标收集器
// =============================================================================

// Collector 指标收集器
//
// 所有 instrument 均可被并发请求安全地更新；记录指标永远不会使被测请求失败。
// Collector 持有自己的 Registry，导出端点通过 Registry() 读取当前聚合状态。
type Collector struct {
	registry *prometheus.Registry

	// HTTP 指标
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	inFlight        prometheus.Gauge

	// 数据库连接池指标
	dbConnectionsOpen *prometheus.GaugeVec
	dbConnectionsIdle *prometheus.GaugeVec

	logger *zap.Logger
}

// NewCollector 创建指标收集器
//
// namespace 为空时使用裸指标名（http_requests_total 等），与通用抓取配置兼容。
func NewCollector(namespace string, logger *zap.Logger) *Collector {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	c := &Collector{
		registry: registry,
		logger:   logger.With(zap.String("component", "metrics")),
	}

	c.requestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	c.requestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency in seconds",
			Buckets:   DurationBuckets,
		},
		[]string{"method", "route", "status"},
	)

	c.inFlight = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "inprogress_requests",
			Help:      "Number of HTTP requests currently in flight",
		},
	)

	c.dbConnectionsOpen = factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "db_connections_open",
			Help:      "Number of open database connections",
		},
		[]string{"database"},
	)

	c.dbConnectionsIdle = factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "db_connections_idle",
			Help:      "Number of idle database connections",
		},
		[]string{"database"},
	)

	// 运行时与进程指标
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	logger.Info("metrics collector initialized", zap.String("namespace", namespace))

	return c
}

// Registry 返回该收集器的 Prometheus registry，供导出端点使用
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// =============================================================================
// 🎯 HTTP 指标记录
// =============================================================================

// RecordHTTPRequest 记录一次已完成的 HTTP 请求
func (c *Collector) RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	code := strconv.Itoa(status)
	c.requestsTotal.WithLabelValues(method, route, code).Inc()
	c.requestDuration.WithLabelValues(method, route, code).Observe(duration.Seconds())
}

// IncInFlight 请求开始时递增在途请求数
func (c *Collector) IncInFlight() {
	c.inFlight.Inc()
}

// DecInFlight 请求结束时递减在途请求数
func (c *Collector) DecInFlight() {
	c.inFlight.Dec()
}

// =============================================================================
// 🗄️ 数据库指标记录
// =============================================================================

// RecordDBConnections 记录数据库连接池状态
func (c *Collector) RecordDBConnections(database string, open, idle int) {
	c.dbConnectionsOpen.WithLabelValues(database).Set(float64(open))
	c.dbConnectionsIdle.WithLabelValues(database).Set(float64(idle))
}
