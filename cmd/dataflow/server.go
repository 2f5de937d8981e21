package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/BaSui01/dataflow/api/handlers"
	"github.com/BaSui01/dataflow/config"
	"github.com/BaSui01/dataflow/internal/database"
	"github.com/BaSui01/dataflow/internal/metrics"
	"github.com/BaSui01/dataflow/internal/server"
	"github.com/BaSui01/dataflow/internal/store"
	"github.com/BaSui01/dataflow/internal/telemetry"
)

// =============================================================================
// 🖥️ Server 结构
// =============================================================================

// Server 是 DataFlow 的主服务器
type Server struct {
	cfg    *config.Config
	logger *zap.Logger

	// 服务器管理器
	httpManager *server.Manager

	// Handlers
	healthHandler   *handlers.HealthHandler
	userDataHandler *handlers.UserDataHandler

	// 指标收集器
	metricsCollector *metrics.Collector

	// 数据层
	poolManager *database.PoolManager
	dataStore   *store.Store

	// OTel tracing provider（可选）
	tracing *telemetry.Provider

	// Rate limiter 生命周期管理
	rateLimiterCancel context.CancelFunc
}

// NewServer 创建新的服务器实例
func NewServer(cfg *config.Config, logger *zap.Logger, tracing *telemetry.Provider, db *gorm.DB) (*Server, error) {
	s := &Server{
		cfg:           cfg,
		logger:        logger,
		tracing: tracing,
	}

	// 1. 指标收集器
	s.metricsCollector = metrics.NewCollector(cfg.Metrics.Namespace, logger)

	// 2. 数据库连接池
	poolConfig := database.PoolConfig{
		Name:                cfg.Database.Name,
		MaxOpenConns:        cfg.Database.MaxOpenConns,
		MaxIdleConns:        cfg.Database.MaxIdleConns,
		ConnMaxLifetime:     cfg.Database.ConnMaxLifetime,
		ConnMaxIdleTime:     database.DefaultPoolConfig().ConnMaxIdleTime,
		HealthCheckInterval: database.DefaultPoolConfig().HealthCheckInterval,
	}
	pool, err := database.NewPoolManager(db, poolConfig, s.metricsCollector, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to init database pool: %w", err)
	}
	s.poolManager = pool

	// 3. 存储层（写事务经连接池重试策略）
	s.dataStore = store.NewPooledStore(pool, logger)
	if err := s.dataStore.AutoMigrate(); err != nil {
		return nil, fmt.Errorf("failed to auto-migrate schema: %w", err)
	}

	// 4. Handlers
	s.userDataHandler = handlers.NewUserDataHandler(s.dataStore, logger)
	s.healthHandler = handlers.NewHealthHandler(logger)
	s.healthHandler.RegisterCheck(handlers.NewDatabaseHealthCheck("database", pool.Ping))

	return s, nil
}

// =============================================================================
// 🚀 启动流程
// =============================================================================

// Start 启动 HTTP 服务器（非阻塞）
func (s *Server) Start() error {
	handler := s.buildHandler()

	serverConfig := server.Config{
		Addr:            fmt.Sprintf(":%d", s.cfg.Server.HTTPPort),
		ReadTimeout:     s.cfg.Server.ReadTimeout,
		WriteTimeout:    s.cfg.Server.WriteTimeout,
		IdleTimeout:     2 * s.cfg.Server.ReadTimeout, // 2x ReadTimeout
		MaxHeaderBytes:  1 << 20,                      // 1 MB
		ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
	}

	s.httpManager = server.NewManager(handler, serverConfig, s.logger)

	if err := s.httpManager.Start(); err != nil {
		return err
	}

	s.logger.Info("HTTP server started", zap.Int("port", s.cfg.Server.HTTPPort))
	return nil
}

// buildHandler 组装路由与中间件链
func (s *Server) buildHandler() http.Handler {
	mux := http.NewServeMux()

	// ========================================
	// 用户数据 CRUD 端点
	// ========================================
	mux.HandleFunc("/data", s.userDataHandler.HandleCollection)
	mux.HandleFunc("/data/{id}", s.userDataHandler.HandleItem)

	// ========================================
	// 健康检查端点
	// ========================================
	mux.HandleFunc("/health", s.healthHandler.HandleHealth)
	mux.HandleFunc("/healthz", s.healthHandler.HandleHealthz)
	mux.HandleFunc("/ready", s.healthHandler.HandleReady)
	mux.HandleFunc("/readyz", s.healthHandler.HandleReady)

	// 版本信息端点
	mux.HandleFunc("/version", s.healthHandler.HandleVersion(Version, BuildTime, GitCommit))

	// ========================================
	// Prometheus 指标端点（与业务端点同端口，
	// 指标中间件同样会统计对 /metrics 的抓取）
	// ========================================
	mux.Handle("/metrics", promhttp.HandlerFor(
		s.metricsCollector.Registry(),
		promhttp.HandlerOpts{},
	))

	// ========================================
	// 构建中间件链
	// ========================================
	rateLimiterCtx, rateLimiterCancel := context.WithCancel(context.Background())
	s.rateLimiterCancel = rateLimiterCancel

	// MetricsMiddleware 与 RequestLogger 位于 Recovery 之外：
	// panic 被 Recovery 转成 500 后仍经过二者的 ResponseWriter，
	// 指标和日志记录的是客户端实际收到的状态码。
	middlewares := []Middleware{
		RequestID(),
		SecurityHeaders(),
		RequestLogger(s.logger),
		MetricsMiddleware(s.metricsCollector),
		Recovery(s.logger),
		CORS(s.cfg.Server.CORSAllowedOrigins),
	}
	if s.cfg.Server.RateLimitRPS > 0 {
		middlewares = append(middlewares,
			RateLimiter(rateLimiterCtx, float64(s.cfg.Server.RateLimitRPS), s.cfg.Server.RateLimitBurst, s.logger))
	}
	if s.cfg.Telemetry.Enabled {
		middlewares = append(middlewares, OTelTracing())
	}

	return Chain(mux, middlewares...)
}

// =============================================================================
// 🛑 关闭流程
// =============================================================================

// WaitForShutdown 等待关闭信号并优雅关闭
func (s *Server) WaitForShutdown() {
	if s.httpManager != nil {
		s.httpManager.WaitForShutdown()
	}

	s.Shutdown()
}

// Shutdown 优雅关闭所有服务
func (s *Server) Shutdown() {
	s.logger.Info("Starting graceful shutdown...")

	ctx := context.Background()

	// 1. 停止 rate limiter 清理 goroutine
	if s.rateLimiterCancel != nil {
		s.rateLimiterCancel()
	}

	// 2. 关闭 HTTP 服务器
	if s.httpManager != nil {
		if err := s.httpManager.Shutdown(ctx); err != nil {
			s.logger.Error("HTTP server shutdown error", zap.Error(err))
		}
	}

	// 3. 关闭数据库连接池
	if s.poolManager != nil {
		if err := s.poolManager.Close(); err != nil {
			s.logger.Error("Database pool shutdown error", zap.Error(err))
		}
	}

	// 4. 关闭链路追踪
	if s.tracing != nil {
		if err := s.tracing.Shutdown(ctx); err != nil {
			s.logger.Error("Telemetry shutdown error", zap.Error(err))
		}
	}

	s.logger.Info("Graceful shutdown completed")
}
